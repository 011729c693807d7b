package engine

import "snakearena/internal/grid"

// Snake is an identified entity owned by GameState (spec §3). body[0]
// is the head; the last index is the tail end.
type Snake struct {
	PlayerID      string
	Name          string
	Color         string
	Body          []grid.Position
	Alive         bool
	PendingGrowth int
	LastDirection grid.Direction
	hasMoved      bool // true once LastDirection has been set by a tick
}

// newSnake creates a length-1 snake at the given cell. Color is assigned
// by the caller from the join-order palette (spec §4.1.2).
func newSnake(playerID, name, color string, at grid.Position) *Snake {
	return &Snake{
		PlayerID: playerID,
		Name:     name,
		Color:    color,
		Body:     []grid.Position{at},
		Alive:    true,
	}
}

// Head returns the snake's head position. Callers must not invoke this
// on a snake with an empty body; per the invariant in spec §3 this never
// happens while Alive is true.
func (s *Snake) Head() grid.Position {
	return s.Body[0]
}

// Length returns the snake's current logical length.
func (s *Snake) Length() int {
	return len(s.Body)
}

// HasMoved reports whether the snake has completed at least one tick,
// i.e. whether LastDirection reflects a real previous move rather than
// its zero value.
func (s *Snake) HasMoved() bool {
	return s.hasMoved
}

// IsLegalMove reports whether d is an allowed move given the snake's
// current state (spec §4.1.1 step 1). Exported so the scheduler can
// apply the identical legality test while filling in missing
// submissions (spec §4.2 step 3) ahead of calling Tick.
func (s *Snake) IsLegalMove(d grid.Direction) bool {
	return s.isLegalMove(d)
}

// isLegalMove reports whether d is an allowed move given the snake's
// current state (spec §4.1.1 step 1): any direction is legal for a
// length-1 snake or one that has not moved yet; otherwise the exact
// reverse of LastDirection is not.
func (s *Snake) isLegalMove(d grid.Direction) bool {
	if s.Length() < 2 || !s.hasMoved {
		return true
	}
	return d != s.LastDirection.Opposite()
}

// resolvedDirection substitutes a deterministic legal direction when d
// is illegal: prefer LastDirection, else the first legal direction in
// CyclicOrder (spec §4.1.1 step 1).
func (s *Snake) resolvedDirection(d grid.Direction) grid.Direction {
	if s.isLegalMove(d) {
		return d
	}
	if s.hasMoved && s.isLegalMove(s.LastDirection) {
		return s.LastDirection
	}
	for _, cand := range grid.CyclicOrder {
		if s.isLegalMove(cand) {
			return cand
		}
	}
	// Unreachable: with Length>=2 at most one direction (the reverse)
	// is ever illegal, so CyclicOrder always yields at least three
	// legal candidates.
	return d
}
