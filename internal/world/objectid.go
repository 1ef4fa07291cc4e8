package world

import "sync/atomic"

// ObjectIDGenerator generates unique IDs for trackable objects.
//
// ID ranges (convention):
//
//	0x00000000 - 0x0FFFFFFF: Reserved (0 = invalid, test fixtures)
//	0x10000000 - 0x1FFFFFFF: Static objects (object regions)
//	0x20000000 - 0x2FFFFFFF: Mobile entities (entity regions)
type ObjectIDGenerator struct {
	nextObjectID atomic.Uint32
	nextEntityID atomic.Uint32
}

// NewObjectIDGenerator creates a new ID generator.
func NewObjectIDGenerator() *ObjectIDGenerator {
	gen := &ObjectIDGenerator{}
	gen.nextObjectID.Store(0x10000000)
	gen.nextEntityID.Store(0x20000000)
	return gen
}

// NextObjectID generates next static object ID.
func (g *ObjectIDGenerator) NextObjectID() uint32 {
	return g.nextObjectID.Add(1)
}

// NextEntityID generates next mobile entity ID.
func (g *ObjectIDGenerator) NextEntityID() uint32 {
	return g.nextEntityID.Add(1)
}

// IsEntityID reports whether id belongs to the entity range.
func IsEntityID(id uint32) bool {
	return id >= 0x20000000 && id < 0x30000000
}

var globalIDGenerator = NewObjectIDGenerator()

// IDGenerator returns global object ID generator.
func IDGenerator() *ObjectIDGenerator {
	return globalIDGenerator
}
