// Package grid implements position arithmetic on a toroidal W×H grid:
// the leaf geometry layer every other package in this module builds on.
package grid

// Position is an integer cell on the grid. Equality is component-wise.
type Position struct {
	X int
	Y int
}

// Size describes the grid dimensions used for wrap arithmetic.
type Size struct {
	W int
	H int
}

// Add returns p displaced by d, wrapped modulo the grid size.
func (s Size) Add(p Position, d Direction) Position {
	v := d.Vector()
	return Position{
		X: wrap(p.X+v.X, s.W),
		Y: wrap(p.Y+v.Y, s.H),
	}
}

// Contains reports whether p lies within the grid bounds.
func (s Size) Contains(p Position) bool {
	return p.X >= 0 && p.X < s.W && p.Y >= 0 && p.Y < s.H
}

// Cells returns the total number of cells on the grid.
func (s Size) Cells() int {
	return s.W * s.H
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
