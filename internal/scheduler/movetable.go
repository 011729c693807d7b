package scheduler

import (
	"sync"

	"snakearena/internal/grid"
)

// MoveTable is the single shared mutable region sessions and the
// scheduler both touch (spec §4.4, §5). Many inbound pumps call Put
// concurrently; exactly one scheduler goroutine calls Drain once per
// tick. Last write wins within a tick window; there is no ordering
// guarantee between competing Puts beyond that.
type MoveTable struct {
	mu    sync.Mutex
	moves map[string]grid.Direction
}

// NewMoveTable returns an empty move table.
func NewMoveTable() *MoveTable {
	return &MoveTable{moves: make(map[string]grid.Direction)}
}

// Put records playerID's intended direction for the current tick,
// overwriting any earlier submission from the same player this window
// (spec §4.2 "At-most-one-per-tick").
func (t *MoveTable) Put(playerID string, dir grid.Direction) {
	t.mu.Lock()
	t.moves[playerID] = dir
	t.mu.Unlock()
}

// Drain returns the accumulated moves and clears the table for the next
// tick window. Called exactly once per tick by the scheduler.
func (t *MoveTable) Drain() map[string]grid.Direction {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.moves
	t.moves = make(map[string]grid.Direction, len(out))
	return out
}
