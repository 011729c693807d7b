package engine

import (
	"math/rand"
	"sort"

	"snakearena/internal/config"
	"snakearena/internal/grid"
)

// GameState is the aggregate world (spec §3). It is owned by the match
// scheduler, which holds the sole mutation capability; sessions only
// ever see immutable snapshots produced by Snapshot.
type GameState struct {
	Size   grid.Size
	Snakes map[string]*Snake
	slots  []fruitSlot
	TickCount int
	Running bool
	Winner  string // empty string means "no winner yet / none"

	joinOrder []string // stable join order, used for color assignment
	rng       *rand.Rand
}

// New creates an idle GameState sized per the published grid
// dimensions. rng is the scheduler-local random source (spec §5); a
// seeded source may be injected for deterministic tests (spec §8).
func New(rng *rand.Rand) *GameState {
	return &GameState{
		Size:   grid.Size{W: config.GridWidth, H: config.GridHeight},
		Snakes: make(map[string]*Snake),
		rng:    rng,
	}
}

// AliveCount returns the number of currently alive snakes.
func (g *GameState) AliveCount() int {
	n := 0
	for _, s := range g.Snakes {
		if s.Alive {
			n++
		}
	}
	return n
}

// TotalCount returns the number of snakes that ever joined this match.
func (g *GameState) TotalCount() int {
	return len(g.Snakes)
}

// AlivePlayerIDs returns the player IDs of every currently alive snake,
// in stable sorted order.
func (g *GameState) AlivePlayerIDs() []string {
	return g.orderedAliveIDs()
}

// Snake returns the snake for playerID, if any. The scheduler uses this
// to read LastDirection/HasMoved when filling in a missing submission
// (spec §4.2 step 3) without taking on mutation capability itself.
func (g *GameState) Snake(playerID string) (*Snake, bool) {
	s, ok := g.Snakes[playerID]
	return s, ok
}

// SpawnSnake creates a new snake for playerID at a uniformly random
// empty cell (spec §4.1, §4.1.2). Rejected once the match is running,
// once the lobby is full, on a duplicate join, or if no cell is free.
func (g *GameState) SpawnSnake(playerID, name string) error {
	if g.Running {
		return ErrMatchRunning
	}
	if _, exists := g.Snakes[playerID]; exists {
		return ErrAlreadyJoined
	}
	if len(g.Snakes) >= config.MaxPlayers {
		return ErrLobbyFull
	}
	pos, ok := g.randomEmptyCell()
	if !ok {
		return ErrNoFreeCell
	}
	color := config.ColorPalette[len(g.joinOrder)%len(config.ColorPalette)]
	g.Snakes[playerID] = newSnake(playerID, name, color, pos)
	g.joinOrder = append(g.joinOrder, playerID)
	return nil
}

// SetRunning transitions the match from idle to running (spec §4.1),
// allocating the fruit slots sized to the join-time snake count.
func (g *GameState) SetRunning() error {
	if g.Running {
		return ErrMatchRunning
	}
	n := len(g.Snakes)
	if n < config.MinPlayers {
		return ErrNotEnoughPlayers
	}
	if n > config.MaxPlayers {
		return ErrTooManyPlayers
	}
	target := n - 1
	if target < 0 {
		target = 0
	}
	g.slots = make([]fruitSlot, target)
	g.Running = true
	return nil
}

// Stats is the side-effect-free read contract (spec §4.1).
type Stats struct {
	Tick        int
	AliveCount  int
	TotalCount  int
	Winner      string
	Running     bool
	GridWidth   int
	GridHeight  int
}

// Stats returns a read-only snapshot of the match's vital counters.
func (g *GameState) Stats() Stats {
	return Stats{
		Tick:       g.TickCount,
		AliveCount: g.AliveCount(),
		TotalCount: g.TotalCount(),
		Winner:     g.Winner,
		Running:    g.Running,
		GridWidth:  g.Size.W,
		GridHeight: g.Size.H,
	}
}

// Fruits returns the positions currently occupied by fruit.
func (g *GameState) Fruits() []grid.Position {
	out := make([]grid.Position, 0, len(g.slots))
	for _, slot := range g.slots {
		if slot.Occupied {
			out = append(out, slot.Position)
		}
	}
	return out
}

// randomEmptyCell picks a uniformly random cell with no snake body and
// no fruit occupying it. ok is false if the grid is entirely full.
func (g *GameState) randomEmptyCell() (grid.Position, bool) {
	total := g.Size.Cells()
	occupied := make(map[grid.Position]bool, total)
	for _, s := range g.Snakes {
		for _, seg := range s.Body {
			occupied[seg] = true
		}
	}
	for _, slot := range g.slots {
		if slot.Occupied {
			occupied[slot.Position] = true
		}
	}
	free := make([]grid.Position, 0, total-len(occupied))
	for x := 0; x < g.Size.W; x++ {
		for y := 0; y < g.Size.H; y++ {
			p := grid.Position{X: x, Y: y}
			if !occupied[p] {
				free = append(free, p)
			}
		}
	}
	if len(free) == 0 {
		return grid.Position{}, false
	}
	return free[g.rng.Intn(len(free))], true
}

// orderedPlayerIDs returns snake player IDs in stable sorted order, used
// for deterministic tie-breaking (spec §3, §4.1.1 step 8).
func (g *GameState) orderedPlayerIDs() []string {
	ids := make([]string, 0, len(g.Snakes))
	for id := range g.Snakes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
