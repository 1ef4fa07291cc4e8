package world

import (
	"github.com/udisondev/tickregion/internal/config"
)

// ChunkShift - chunk is 2^4 = 16 world units (storage granularity).
const ChunkShift = 4

// floorDiv divides rounding toward negative infinity (-1/16 = -1, not 0).
func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// RegionCoords converts world coordinate to region index.
func RegionCoords(x, z, regionSize int32) (rx, rz int32) {
	return floorDiv(x, regionSize), floorDiv(z, regionSize)
}

// RegionHash packs region index pair into a single integer.
// Injective over all int32 pairs: rx occupies the high 32 bits, rz the low 32 bits.
func RegionHash(rx, rz int32) int64 {
	return int64(rx)<<32 | int64(uint32(rz))
}

// UnpackRegionHash is the inverse of RegionHash.
func UnpackRegionHash(hash int64) (rx, rz int32) {
	return int32(hash >> 32), int32(uint32(hash))
}

// ChunkCoords converts world coordinate to chunk index.
func ChunkCoords(x, z int32) (cx, cz int32) {
	return x >> ChunkShift, z >> ChunkShift
}

// Grid maps world coordinates to regions. Value type, shared by Manager and every Region
// so a hash is computed identically everywhere.
type Grid struct {
	regionSize int32
	bounds     config.Bounds
}

// NewGrid creates grid with given region size (must be > 0) and world bounds.
func NewGrid(regionSize int32, bounds config.Bounds) Grid {
	if regionSize <= 0 {
		panic("world.NewGrid: regionSize must be > 0")
	}
	return Grid{regionSize: regionSize, bounds: bounds}
}

// RegionSize returns region side length in world units.
func (g Grid) RegionSize() int32 {
	return g.regionSize
}

// Coords returns region index for world coordinate.
func (g Grid) Coords(x, z int32) (rx, rz int32) {
	return RegionCoords(x, z, g.regionSize)
}

// HashCode returns region hash for world coordinate (ignores bounds).
func (g Grid) HashCode(x, z int32) int64 {
	return RegionHash(g.Coords(x, z))
}

// HashOf returns region hash for world coordinate.
// ok=false when the coordinate lies outside world bounds (owned by "no region").
func (g Grid) HashOf(x, z int32) (hash int64, ok bool) {
	if !g.bounds.Contains(x, z) {
		return 0, false
	}
	return g.HashCode(x, z), true
}

// Origin returns world coordinate of the region's minimal corner.
func (g Grid) Origin(rx, rz int32) (x, z int64) {
	return int64(rx) * int64(g.regionSize), int64(rz) * int64(g.regionSize)
}
