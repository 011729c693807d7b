package scheduler

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"snakearena/internal/applog"
	"snakearena/internal/engine"
	"snakearena/internal/grid"
)

type fakeBroadcaster struct {
	mu       sync.Mutex
	updates  []engine.Snapshot
	endedAt  *engine.Snapshot
	winner   string
	requests int
}

func (f *fakeBroadcaster) BroadcastGameUpdate(s engine.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, s)
}

func (f *fakeBroadcaster) BroadcastGameEnded(s engine.Snapshot, winner string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := s
	f.endedAt = &cp
	f.winner = winner
}

func (f *fakeBroadcaster) BroadcastMoveRequest(string, []grid.Direction, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
}

func (f *fakeBroadcaster) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func newTestScheduler() (*Scheduler, *fakeBroadcaster) {
	fb := &fakeBroadcaster{}
	s := New(fb, applog.New("test"), rand.New(rand.NewSource(42)))
	return s, fb
}

func TestJoinLobbyOnlyWhileIdle(t *testing.T) {
	s, _ := newTestScheduler()
	if err := s.JoinLobby("p1", "Alice"); err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if err := s.JoinLobby("p2", "Bob"); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Shutdown()

	if err := s.JoinLobby("p3", "Carl"); err == nil {
		t.Fatalf("expected join to be rejected once running")
	}
}

func TestStartRequiresMinPlayers(t *testing.T) {
	s, _ := newTestScheduler()
	if err := s.JoinLobby("p1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatalf("expected Start to fail with only one player")
	}
}

func TestTickLoopBroadcastsGameUpdates(t *testing.T) {
	s, fb := newTestScheduler()
	if err := s.JoinLobby("p1", "Alice"); err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if err := s.JoinLobby("p2", "Bob"); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
	}

	if fb.updateCount() == 0 {
		t.Fatalf("expected at least one GameUpdate broadcast")
	}
	if s.State() != Halted && s.State() != Running {
		t.Fatalf("unexpected state %v", s.State())
	}
	s.Shutdown()
}

func TestShutdownForcesHalted(t *testing.T) {
	s, _ := newTestScheduler()
	if err := s.JoinLobby("p1", "Alice"); err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if err := s.JoinLobby("p2", "Bob"); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Shutdown()
	<-s.Done()
	if s.State() != Halted {
		t.Fatalf("state = %v, want Halted", s.State())
	}
}

func TestSubmitMoveIgnoredForUnknownPlayerBeforeStart(t *testing.T) {
	s, _ := newTestScheduler()
	// Submitting before the match starts (and for an unknown player) must
	// not panic and must not populate the move table.
	s.SubmitMove("ghost", grid.Up)
	if len(s.moves.Drain()) != 0 {
		t.Fatalf("expected no moves recorded for unknown player")
	}
}
