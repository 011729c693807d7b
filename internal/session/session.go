// Package session multiplexes match broadcasts across many concurrent
// websocket connections and routes inbound client messages into a
// MatchController (spec §4.3). Grounded on the teacher's Conn/ConnManager
// split (server/connection.go) — a read pump goroutine plus a
// mutex-guarded send — generalized with an explicit bounded outbox so a
// slow consumer falls behind instead of blocking the broadcaster.
package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"snakearena/internal/applog"
	"snakearena/internal/config"
	"snakearena/internal/grid"
)

// pongWait bounds how long a session may go without a pong reply before
// its read side gives up; pingPeriod must stay comfortably under it so
// at least one ping lands inside every window (grounded on
// rswebdev-schlangen/engine/network.go's readPump/writePump pair).
const (
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	maxReadBytes = 1024
)

// Kind tags a session as one of the two roles spec §4.3 distinguishes.
// A Session is a single tagged variant over Kind rather than two
// separate types, since both share the identical connection lifecycle
// and outbound queue (Design Note §9).
type Kind int

const (
	KindSpectator Kind = iota
	KindPlayer
)

func (k Kind) String() string {
	if k == KindPlayer {
		return "player"
	}
	return "spectator"
}

// ErrAlreadyJoined is returned by becomePlayer when a session has
// already claimed a player ID.
var ErrAlreadyJoined = errors.New("session: already joined")

// Session wraps one websocket connection. It starts as a Spectator and
// becomes a Player on a successful JoinLobby (spec §4.3.1); it never
// transitions back.
type Session struct {
	ID           string // connection identity, independent of PlayerID
	ws           *websocket.Conn
	log          *applog.Logger
	out          *outbox
	send         chan struct{}
	joinEligible bool // true only for a connection accepted on the player endpoint

	mu       sync.RWMutex
	kind     Kind
	playerID string
	name     string
	closed   bool
}

func newSession(ws *websocket.Conn, log *applog.Logger, joinEligible bool) *Session {
	return &Session{
		ID:           uuid.New().String(),
		ws:           ws,
		log:          log,
		out:          newOutbox(config.DefaultSettings().SpectatorQueueBound),
		send:         make(chan struct{}, 1),
		joinEligible: joinEligible,
	}
}

// Kind returns the session's current role.
func (s *Session) Kind() Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kind
}

// PlayerID returns the joined player ID, if any.
func (s *Session) PlayerID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playerID, s.kind == KindPlayer
}

// becomePlayer promotes the session to KindPlayer and widens its
// outbound queue bound to the player threshold (spec §4.3.2: players
// get a deeper backlog than spectators before being dropped for lag).
func (s *Session) becomePlayer(playerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kind == KindPlayer {
		return ErrAlreadyJoined
	}
	s.kind = KindPlayer
	s.playerID = playerID
	s.name = name
	s.out.bound = config.DefaultSettings().PlayerQueueBound
	return nil
}

// enqueue pushes a pre-serialized frame onto the session's outbox and
// reports whether sustained lag means the session should be closed
// (players only; spec §4.3.2).
func (s *Session) enqueue(data []byte) (shouldClose bool) {
	s.mu.RLock()
	isPlayer := s.kind == KindPlayer
	s.mu.RUnlock()

	threshold := 0
	if isPlayer {
		threshold = 3
	}
	return s.out.push(data, threshold)
}

// writePump drains the outbox to the websocket connection until closed,
// and sends a keepalive ping every pingPeriod so the peer's readLoop
// deadline keeps getting refreshed (grounded on
// rswebdev-schlangen/engine/network.go's writePump ping ticker). Runs on
// its own goroutine, one per session.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case _, ok := <-s.out.notify:
			if !ok {
				return
			}
			for _, msg := range s.out.drain() {
				if err := s.writeRaw(msg); err != nil {
					return
				}
			}
		case <-ticker.C:
			if err := s.writePing(); err != nil {
				return
			}
		}
	}
}

func (s *Session) writePing() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session: closed")
	}
	s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.ws.WriteMessage(websocket.PingMessage, nil)
}

func (s *Session) writeRaw(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session: closed")
	}
	s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

// sendDirect serializes and writes msg immediately, bypassing the
// outbox. Used for the one-shot LobbyJoined / Error replies that must
// reach the originating session before anything else (spec §6).
func (s *Session) sendDirect(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.writeRaw(data)
}

// Close marks the session closed and releases the underlying
// connection. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.out.close()
	close(s.out.notify)
	s.ws.Close()
}

// readLoop reads inbound frames until the connection closes or a fatal
// protocol violation occurs, dispatching each to handle. Mirrors the
// teacher's ReadLoop shape (server/connection.go) but dispatches on the
// full JSON type discriminator (spec §6) rather than a single-char tag.
func (s *Session) readLoop(handle func(*Session, []byte)) {
	s.ws.SetReadLimit(maxReadBytes)
	s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read error", "session", s.ID, "error", err)
			}
			return
		}
		handle(s, raw)
	}
}

// validDirectionStrings converts grid.Direction values to their wire
// strings, used by the manager while building MoveRequest.
func validDirectionStrings(dirs []grid.Direction) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = d.String()
	}
	return out
}
