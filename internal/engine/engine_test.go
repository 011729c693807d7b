package engine

import (
	"errors"
	"math/rand"
	"testing"

	"snakearena/internal/grid"
)

func newTestState(t *testing.T, w, h int) *GameState {
	t.Helper()
	g := New(rand.New(rand.NewSource(1)))
	g.Size = grid.Size{W: w, H: h}
	return g
}

func placeSnake(g *GameState, id string, at grid.Position) *Snake {
	s := newSnake(id, id, "#fff", at)
	g.Snakes[id] = s
	g.joinOrder = append(g.joinOrder, id)
	return s
}

func TestTwoSnakeToroidalWrap(t *testing.T) {
	g := newTestState(t, 10, 10)
	placeSnake(g, "p1", grid.Position{X: 0, Y: 5})
	placeSnake(g, "p2", grid.Position{X: 9, Y: 5})
	g.slots = nil
	g.Running = true

	moves := map[string]grid.Direction{"p1": grid.Left, "p2": grid.Left}
	if _, err := g.Tick(moves); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	if got := g.Snakes["p1"].Head(); got != (grid.Position{X: 9, Y: 5}) {
		t.Errorf("p1 head after tick1 = %v, want (9,5)", got)
	}
	if got := g.Snakes["p2"].Head(); got != (grid.Position{X: 8, Y: 5}) {
		t.Errorf("p2 head after tick1 = %v, want (8,5)", got)
	}

	if _, err := g.Tick(moves); err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	if !g.Snakes["p1"].Alive || !g.Snakes["p2"].Alive {
		t.Fatalf("both snakes should survive tick 2")
	}
	if got := g.Snakes["p1"].Head(); got != (grid.Position{X: 8, Y: 5}) {
		t.Errorf("p1 head after tick2 = %v, want (8,5)", got)
	}
	if got := g.Snakes["p2"].Head(); got != (grid.Position{X: 7, Y: 5}) {
		t.Errorf("p2 head after tick2 = %v, want (7,5)", got)
	}

	if _, err := g.Tick(moves); err != nil {
		t.Fatalf("tick 3: %v", err)
	}
	if !g.Snakes["p1"].Alive || !g.Snakes["p2"].Alive {
		t.Fatalf("both snakes should survive tick 3 (chasing vacated tail is legal)")
	}
}

func TestHeadOnKillBothDieAndFruitNotConsumed(t *testing.T) {
	g := newTestState(t, 10, 10)
	placeSnake(g, "p1", grid.Position{X: 4, Y: 5})
	placeSnake(g, "p2", grid.Position{X: 6, Y: 5})
	g.slots = []fruitSlot{{Occupied: true, Position: grid.Position{X: 5, Y: 5}}}
	g.Running = true

	outcome, err := g.Tick(map[string]grid.Direction{"p1": grid.Right, "p2": grid.Left})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if g.Snakes["p1"].Alive || g.Snakes["p2"].Alive {
		t.Fatalf("both snakes should die on head-on collision")
	}
	if !outcome.Terminated || outcome.Winner != "" {
		t.Fatalf("expected termination with no winner, got terminated=%v winner=%q", outcome.Terminated, outcome.Winner)
	}
	if len(g.Fruits()) != 1 {
		t.Fatalf("fruit under a mutual head-kill must not be consumed, got %d fruits", len(g.Fruits()))
	}
}

func TestSuicideByReverseIsRewritten(t *testing.T) {
	g := newTestState(t, 10, 10)
	s := placeSnake(g, "p1", grid.Position{X: 7, Y: 5})
	s.Body = []grid.Position{{X: 5, Y: 5}, {X: 6, Y: 5}, {X: 7, Y: 5}}
	s.LastDirection = grid.Left
	s.hasMoved = true
	g.slots = nil
	g.Running = true
	// Second snake so the match has >=2 players and doesn't terminate mid-test.
	placeSnake(g, "p2", grid.Position{X: 0, Y: 0})

	outcome, err := g.Tick(map[string]grid.Direction{"p1": grid.Right, "p2": grid.Up})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if outcome.Terminated {
		t.Fatalf("no snake should die from a rewritten reverse move")
	}
	want := []grid.Position{{X: 4, Y: 5}, {X: 5, Y: 5}, {X: 6, Y: 5}}
	got := g.Snakes["p1"].Body
	if len(got) != len(want) {
		t.Fatalf("body length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("body[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResolvedDirectionKeepsLegalMoveForLengthOneSnake(t *testing.T) {
	g := newTestState(t, 10, 10)
	s := placeSnake(g, "p1", grid.Position{X: 5, Y: 5})
	s.LastDirection = grid.Right
	s.hasMoved = true
	placeSnake(g, "p2", grid.Position{X: 0, Y: 0})
	g.slots = nil
	g.Running = true

	resolved := s.resolvedDirection(grid.Up) // a length-1 snake may turn any way
	if resolved != grid.Up {
		t.Fatalf("Up is legal for a length-1 snake and should be kept, got %v", resolved)
	}
}

func TestFruitConsumptionDefersGrowthToNextTick(t *testing.T) {
	g := newTestState(t, 10, 10)
	placeSnake(g, "p1", grid.Position{X: 4, Y: 5})
	placeSnake(g, "p2", grid.Position{X: 0, Y: 0})
	g.slots = []fruitSlot{{Occupied: true, Position: grid.Position{X: 5, Y: 5}}}
	g.Running = true

	if _, err := g.Tick(map[string]grid.Direction{"p1": grid.Right, "p2": grid.Up}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	p1 := g.Snakes["p1"]
	if p1.Length() != 1 {
		t.Fatalf("length should stay 1 on the tick the fruit is eaten, got %d", p1.Length())
	}
	if p1.PendingGrowth != 1 {
		t.Fatalf("pending growth should be 1, got %d", p1.PendingGrowth)
	}
	if len(g.Fruits()) != 0 {
		t.Fatalf("fruit should be consumed")
	}

	if _, err := g.Tick(map[string]grid.Direction{"p1": grid.Right, "p2": grid.Down}); err != nil {
		t.Fatalf("tick2: %v", err)
	}
	if g.Snakes["p1"].Length() != 2 {
		t.Fatalf("length should grow to 2 on the next tick, got %d", g.Snakes["p1"].Length())
	}
}

func TestVacatedTailIsNotAnObstacle(t *testing.T) {
	g := newTestState(t, 10, 10)
	a := placeSnake(g, "a", grid.Position{X: 3, Y: 5})
	a.Body = []grid.Position{{X: 3, Y: 5}, {X: 2, Y: 5}}
	b := placeSnake(g, "b", grid.Position{X: 5, Y: 5})
	b.Body = []grid.Position{{X: 5, Y: 5}, {X: 4, Y: 5}}
	g.slots = nil
	g.Running = true

	// b moves right, vacating its tail cell (4,5); a moves right into it the same tick.
	outcome, err := g.Tick(map[string]grid.Direction{"a": grid.Right, "b": grid.Right})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !g.Snakes["a"].Alive || !g.Snakes["b"].Alive {
		t.Fatalf("both snakes should survive: chasing a vacated tail is legal")
	}
	if outcome.Terminated {
		t.Fatalf("match should not terminate")
	}
}

func TestLengthWinTerminatesWithTieBreakOnSmallestID(t *testing.T) {
	g := newTestState(t, 50, 50)
	a := placeSnake(g, "a", grid.Position{X: 0, Y: 0})
	b := placeSnake(g, "b", grid.Position{X: 25, Y: 0})
	colA := make([]grid.Position, 50)
	colB := make([]grid.Position, 50)
	for i := range colA {
		colA[i] = grid.Position{X: 0, Y: i}
		colB[i] = grid.Position{X: 25, Y: i}
	}
	a.Body = colA
	b.Body = colB
	g.slots = nil
	g.Running = true

	outcome, err := g.Tick(map[string]grid.Direction{"a": grid.Up, "b": grid.Up})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !outcome.Terminated {
		t.Fatalf("expected termination on winning length")
	}
	if outcome.Winner != "a" {
		t.Fatalf("winner = %q, want \"a\" (smallest id tie-break)", outcome.Winner)
	}
}

func TestIncompleteMovesRejected(t *testing.T) {
	g := newTestState(t, 10, 10)
	placeSnake(g, "p1", grid.Position{X: 1, Y: 1})
	placeSnake(g, "p2", grid.Position{X: 2, Y: 2})
	g.slots = nil
	g.Running = true

	if _, err := g.Tick(map[string]grid.Direction{"p1": grid.Up}); err != ErrIncompleteMoves {
		t.Fatalf("expected ErrIncompleteMoves, got %v", err)
	}
}

func TestTickRejectsNonPositiveGridDimensions(t *testing.T) {
	g := newTestState(t, 0, 10)
	placeSnake(g, "p1", grid.Position{X: 0, Y: 0})
	placeSnake(g, "p2", grid.Position{X: 0, Y: 1})
	g.Running = true

	_, err := g.Tick(map[string]grid.Direction{"p1": grid.Up, "p2": grid.Up})
	var invariantErr *EngineInvariantError
	if !errors.As(err, &invariantErr) {
		t.Fatalf("expected *EngineInvariantError, got %v", err)
	}
}

func TestSpawnSnakeRejectsWhenRunningOrDuplicate(t *testing.T) {
	g := newTestState(t, 4, 4)
	if err := g.SpawnSnake("p1", "Alice"); err != nil {
		t.Fatalf("spawn p1: %v", err)
	}
	if err := g.SpawnSnake("p1", "Alice"); err != ErrAlreadyJoined {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}
	g.Running = true
	if err := g.SpawnSnake("p2", "Bob"); err != ErrMatchRunning {
		t.Fatalf("expected ErrMatchRunning, got %v", err)
	}
}

func TestSetRunningRequiresMinPlayers(t *testing.T) {
	g := newTestState(t, 10, 10)
	placeSnake(g, "p1", grid.Position{X: 0, Y: 0})
	if err := g.SetRunning(); err != ErrNotEnoughPlayers {
		t.Fatalf("expected ErrNotEnoughPlayers, got %v", err)
	}
}

func TestFruitSpacingRespawnsAfterDelay(t *testing.T) {
	g := newTestState(t, 10, 10)
	placeSnake(g, "p1", grid.Position{X: 0, Y: 0})
	placeSnake(g, "p2", grid.Position{X: 5, Y: 5})
	placeSnake(g, "p3", grid.Position{X: 9, Y: 9})
	if err := g.SetRunning(); err != nil {
		t.Fatalf("set running: %v", err)
	}
	if len(g.slots) != 2 {
		t.Fatalf("expected 2 fruit slots for 3 players, got %d", len(g.slots))
	}

	moves := map[string]grid.Direction{"p1": grid.Right, "p2": grid.Right, "p3": grid.Left}
	for i := 0; i < 5; i++ {
		if _, err := g.Tick(moves); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if len(g.Fruits()) != 2 {
		t.Fatalf("expected both fruits spawned after 5 ticks, got %d", len(g.Fruits()))
	}
}
