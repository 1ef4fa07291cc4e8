package model

import "fmt"

// Location представляет целочисленные координаты объекта в мире.
// Value type, передаётся по значению (immutable).
// Горизонтальная плоскость — X/Z, Y — высота.
type Location struct {
	X int32
	Y int32
	Z int32
}

// NewLocation создаёт Location с указанными координатами.
func NewLocation(x, y, z int32) Location {
	return Location{X: x, Y: y, Z: z}
}

// WithCoordinates возвращает новый Location с обновлёнными координатами (immutable pattern).
func (l Location) WithCoordinates(x, y, z int32) Location {
	l.X = x
	l.Y = y
	l.Z = z
	return l
}

// Offset returns a copy shifted by (dx, dy, dz).
func (l Location) Offset(dx, dy, dz int32) Location {
	return Location{X: l.X + dx, Y: l.Y + dy, Z: l.Z + dz}
}

// String formats location as "x,y,z" (used in log attributes).
func (l Location) String() string {
	return fmt.Sprintf("%d,%d,%d", l.X, l.Y, l.Z)
}
