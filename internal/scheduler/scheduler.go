// Package scheduler implements the match state machine and tick loop
// (spec §4.2): it advances the match on a fixed cadence without waiting
// for submissions, uses whatever moves arrived within each tick window,
// fills in missing or illegal ones, enforces at-most-one move per player
// per tick, and decides when to broadcast and when to terminate.
package scheduler

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"snakearena/internal/applog"
	"snakearena/internal/config"
	"snakearena/internal/engine"
	"snakearena/internal/grid"
)

// State is one of the three match states (spec §4.2).
type State int

const (
	Idle State = iota
	Running
	Halted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Halted:
		return "Halted"
	default:
		return "Unknown"
	}
}

// ErrWrongState is returned when a transition is attempted from a state
// that does not allow it (spec §4.2 "No other transitions").
var ErrWrongState = errors.New("scheduler: transition not valid from current state")

// Broadcaster is the session multiplexer's fan-out surface, invoked
// once per tick by the scheduler (spec §4.2 step 6-7, §4.3.2). A single
// producer (the scheduler) drives many consumers (sessions); see
// Design Note §9 on avoiding observer-callback-style broadcast.
type Broadcaster interface {
	BroadcastGameUpdate(engine.Snapshot)
	BroadcastGameEnded(snapshot engine.Snapshot, winner string)
	BroadcastMoveRequest(playerID string, validDirections []grid.Direction, timeLimitMS int)
}

// Scheduler owns the GameState and drives its tick loop. It is the sole
// mutator of GameState (spec §3, §5); external callers (session
// join/start routing, the /stats endpoint) only ever go through its
// exported methods, which serialize access with a single RWMutex —
// the same "one small structure, one lock" shape the teacher's World
// uses for AddSnake/broadcast (Design Note §9).
type Scheduler struct {
	mu    sync.RWMutex
	state State
	game  *engine.GameState
	moves *MoveTable

	broadcaster Broadcaster
	log         *applog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates an Idle scheduler. rng seeds the engine's random source
// (spec §5 "scheduler-local"; deterministic seeding permitted for
// tests per spec §8).
func New(broadcaster Broadcaster, log *applog.Logger, rng *rand.Rand) *Scheduler {
	return &Scheduler{
		state:       Idle,
		game:        engine.New(rng),
		moves:       NewMoveTable(),
		broadcaster: broadcaster,
		log:         log,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// SetBroadcaster assigns the broadcaster after construction, resolving
// the construction-order cycle between Scheduler and the session
// manager (each needs a reference to the other). Must be called once,
// before Start.
func (s *Scheduler) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// State returns the scheduler's current state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// JoinLobby spawns a snake for playerID (spec §4.1, §4.3 "JoinLobby").
// Only valid while Idle.
func (s *Scheduler) JoinLobby(playerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return engine.ErrMatchRunning
	}
	return s.game.SpawnSnake(playerID, name)
}

// SubmitMove records playerID's move for the current tick (spec §4.2
// "At-most-one-per-tick", §4.4). Ignored for dead or unknown players,
// and for a player submitted before the match is Running — the caller
// (session) is expected to also gate on its own Playing state, this is
// a defensive second check.
func (s *Scheduler) SubmitMove(playerID string, dir grid.Direction) {
	s.mu.RLock()
	running := s.state == Running
	snake, ok := s.game.Snake(playerID)
	alive := ok && snake.Alive
	s.mu.RUnlock()
	if !running || !alive {
		return
	}
	s.moves.Put(playerID, dir)
}

// Start transitions Idle -> Running, provided at least MinPlayers have
// joined (spec §4.2). It launches the tick loop in a new goroutine and
// returns immediately.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrWrongState
	}
	if err := s.game.SetRunning(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = Running
	s.mu.Unlock()

	go s.run()
	return nil
}

// Stats returns a read-only snapshot of the match's vital counters
// (spec §4.1 Stats contract, §6 process-level surface).
func (s *Scheduler) Stats() engine.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.game.Stats()
}

// Snapshot returns a deep-copied view of the current game state,
// usable both for the lobby's initial LobbyJoined payload and for the
// state sent to a newly connected session.
func (s *Scheduler) Snapshot() engine.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.game.Snapshot()
}

// Shutdown forces the scheduler to Halted regardless of its current
// state (spec §5 "Match-level cancellation"). Safe to call multiple
// times and from any goroutine; the tick loop, if running, observes
// stopCh at the next tick boundary and exits.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Lock()
	if s.state == Idle {
		// The tick loop was never started, so nothing else closes doneCh.
		close(s.doneCh)
	}
	if s.state != Halted {
		s.state = Halted
		s.game.Running = false
	}
	s.mu.Unlock()
}

// Done is closed once the tick loop goroutine has exited, or by
// Shutdown if the loop was never started.
func (s *Scheduler) Done() <-chan struct{} {
	return s.doneCh
}

// run is the tick loop (spec §4.2). It executes on its own goroutine
// for the lifetime of the Running state.
func (s *Scheduler) run() {
	defer close(s.doneCh)
	ticker := time.NewTicker(config.TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.tick() {
				return
			}
		}
	}
}

// tick executes a single scheduler tick (spec §4.2 steps 1-7). Returns
// true once the match has terminated and the loop should stop.
func (s *Scheduler) tick() bool {
	submitted := s.moves.Drain()

	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return true
	}

	resolved := s.resolveMoves(submitted)
	outcome, err := s.game.Tick(resolved)
	if err != nil {
		s.log.Error("engine invariant violated, halting match", "error", err)
		s.state = Halted
		s.game.Running = false
		snap := s.game.Snapshot()
		s.mu.Unlock()
		s.broadcaster.BroadcastGameEnded(snap, "")
		return true
	}
	snap := s.game.Snapshot()
	if outcome.Terminated {
		s.state = Halted
	}
	s.mu.Unlock()

	s.broadcaster.BroadcastGameUpdate(snap)
	s.notifyMoveRequests(snap)

	if outcome.Terminated {
		s.log.Info("match terminated", "winner", outcome.Winner, "tick", snap.Tick)
		s.broadcaster.BroadcastGameEnded(snap, outcome.Winner)
		return true
	}
	return false
}

// resolveMoves fills in every alive snake's move for this tick (spec
// §4.2 step 3): a legal submission is used as-is; otherwise the
// snake's own last direction is substituted if legal; otherwise the
// first legal direction in the fixed cyclic order. Must be called with
// s.mu held.
func (s *Scheduler) resolveMoves(submitted map[string]grid.Direction) map[string]grid.Direction {
	resolved := make(map[string]grid.Direction, len(submitted))
	for _, id := range s.game.AlivePlayerIDs() {
		snake, _ := s.game.Snake(id)
		if dir, ok := submitted[id]; ok && snake.IsLegalMove(dir) {
			resolved[id] = dir
			continue
		}
		if snake.HasMoved() && snake.IsLegalMove(snake.LastDirection) {
			resolved[id] = snake.LastDirection
			continue
		}
		resolved[id] = firstLegalDirection(snake)
	}
	return resolved
}

func firstLegalDirection(s *engine.Snake) grid.Direction {
	for _, d := range grid.CyclicOrder {
		if s.IsLegalMove(d) {
			return d
		}
	}
	return grid.Up
}

// notifyMoveRequests sends the optional informational MoveRequest to
// each alive player (spec §6 table), carrying the set of directions
// that would be accepted as-is next tick and the published tick
// duration. Must be called without s.mu held (it only reads the
// already-produced snapshot).
func (s *Scheduler) notifyMoveRequests(snap engine.Snapshot) {
	for id, sn := range snap.Snakes {
		if !sn.Alive {
			continue
		}
		valid := validDirectionsFor(sn)
		s.broadcaster.BroadcastMoveRequest(id, valid, config.TickDurationMS)
	}
}

// validDirectionsFor returns the directions MoveRequest advertises as
// acceptable next tick (spec §6): every direction for a length-1 snake
// or one that has not moved yet, all but the reverse of its last move
// otherwise (spec §4.1.1 step 1).
func validDirectionsFor(sn engine.SnakeSnapshot) []grid.Direction {
	if sn.Length < 2 || !sn.HasMoved {
		return grid.CyclicOrder
	}
	reverse := sn.LastDirection.Opposite()
	dirs := make([]grid.Direction, 0, len(grid.CyclicOrder)-1)
	for _, d := range grid.CyclicOrder {
		if d != reverse {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
