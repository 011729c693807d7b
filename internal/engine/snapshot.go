package engine

import "snakearena/internal/grid"

// SnakeSnapshot is the read-only view of a Snake handed to sessions for
// broadcast (spec §3 "sessions receive immutable snapshots").
type SnakeSnapshot struct {
	Name          string
	Color         string
	Body          []grid.Position
	Length        int
	Alive         bool
	LastDirection grid.Direction
	HasMoved      bool
}

// Snapshot is an immutable, deep-copied view of GameState suitable for
// concurrent broadcast to many sessions (spec §3, §5).
type Snapshot struct {
	Snakes  map[string]SnakeSnapshot
	Fruits  []grid.Position
	Tick    int
	Running bool
	Winner  string
	Size    grid.Size
}

// Snapshot produces a deep copy of the current state. The scheduler
// calls this once per tick before handing the result to the session
// multiplexer for fan-out (spec §3, §4.2 step 6).
func (g *GameState) Snapshot() Snapshot {
	snakes := make(map[string]SnakeSnapshot, len(g.Snakes))
	for id, s := range g.Snakes {
		body := make([]grid.Position, len(s.Body))
		copy(body, s.Body)
		snakes[id] = SnakeSnapshot{
			Name:          s.Name,
			Color:         s.Color,
			Body:          body,
			Length:        s.Length(),
			Alive:         s.Alive,
			LastDirection: s.LastDirection,
			HasMoved:      s.HasMoved(),
		}
	}
	return Snapshot{
		Snakes:  snakes,
		Fruits:  g.Fruits(),
		Tick:    g.TickCount,
		Running: g.Running,
		Winner:  g.Winner,
		Size:    g.Size,
	}
}
