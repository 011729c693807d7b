package session

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"snakearena/internal/applog"
	"snakearena/internal/config"
	"snakearena/internal/engine"
	"snakearena/internal/grid"
	"snakearena/internal/protocol"
)

// MatchController is the subset of *scheduler.Scheduler the session
// layer depends on. Decoupled into an interface so this package never
// imports the concrete scheduler type (spec §4.3 sits strictly above
// §4.2 in the module map).
type MatchController interface {
	JoinLobby(playerID, name string) error
	SubmitMove(playerID string, dir grid.Direction)
	Start() error
	Snapshot() engine.Snapshot
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	ReadBufferSize:    1024,
	WriteBufferSize:   4096,
	EnableCompression: true,
}

// ipLimiter throttles new connections per source IP (grounded on the
// teacher's ipRateLimiter in server/main.go).
type ipLimiter struct {
	mu    sync.Mutex
	last  map[string]time.Time
	delay time.Duration
}

func newIPLimiter(delay time.Duration) *ipLimiter {
	l := &ipLimiter{last: make(map[string]time.Time), delay: delay}
	go l.sweep()
	return l
}

func (l *ipLimiter) sweep() {
	for range time.Tick(60 * time.Second) {
		l.mu.Lock()
		cutoff := time.Now().Add(-l.delay)
		for ip, t := range l.last {
			if t.Before(cutoff) {
				delete(l.last, ip)
			}
		}
		l.mu.Unlock()
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.last[ip]; ok && time.Since(last) < l.delay {
		return false
	}
	l.last[ip] = time.Now()
	return true
}

// Manager fans broadcasts out across every connected session and routes
// inbound frames into a MatchController. It implements
// scheduler.Broadcaster structurally (no import cycle: scheduler does
// not know about session).
type Manager struct {
	mu          sync.RWMutex
	byConnID    map[string]*Session
	match       MatchController
	log         *applog.Logger
	limiter     *ipLimiter
	maxSessions int
}

// NewManager constructs a session Manager bound to match. The number of
// concurrent connections (player and spectator alike) accepted at once
// is capped at config.DefaultSettings's MaxSessions.
func NewManager(match MatchController, log *applog.Logger, joinCooldown time.Duration) *Manager {
	return &Manager{
		byConnID:    make(map[string]*Session),
		match:       match,
		log:         log,
		limiter:     newIPLimiter(joinCooldown),
		maxSessions: config.DefaultSettings().MaxSessions,
	}
}

// ServeSpectatorConnect upgrades r into a websocket connection and
// registers a spectator-only Session for it: no query parameter is
// read, and the session is never eligible to JoinLobby (spec §6: "two
// endpoints ... Spectator endpoint, no parameters").
func (m *Manager) ServeSpectatorConnect(w http.ResponseWriter, r *http.Request) {
	m.serveConnect(w, r, false)
}

// ServePlayerConnect upgrades r into a websocket connection after
// validating the player_name query parameter (spec §6: "Player
// endpoint, takes a query parameter player_name ... Rejected if absent
// or malformed"). The resulting session is eligible to JoinLobby; the
// in-band JoinLobby message (spec line 219) is still required to
// actually spawn the snake, re-validating the same name.
func (m *Manager) ServePlayerConnect(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("player_name")
	if err := validatePlayerName(name); err != nil {
		http.Error(w, "invalid player_name: "+err.Error(), http.StatusBadRequest)
		return
	}
	m.serveConnect(w, r, true)
}

// serveConnect holds the connect-to-disconnect lifecycle shared by both
// endpoints (grounded on server/main.go's inline WebSocket handler,
// generalized into two reusable http.HandlerFuncs). The player_name
// query parameter is validated by the caller before this runs; only the
// resulting joinEligible flag carries through to the Session.
func (m *Manager) serveConnect(w http.ResponseWriter, r *http.Request, joinEligible bool) {
	if err := m.CapacityGuard(m.maxSessions); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	if !m.limiter.allow(ip) {
		denyAndClose(ws, "too many connection attempts, please wait")
		return
	}

	sess := newSession(ws, m.log, joinEligible)
	m.register(sess)
	go sess.writePump()

	m.sendLobbySnapshot(sess)

	sess.readLoop(m.handleFrame)

	m.unregister(sess)
	sess.Close()
}

func denyAndClose(ws *websocket.Conn, reason string) {
	data, _ := json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, Message: reason})
	_ = ws.WriteMessage(websocket.TextMessage, data)
	ws.Close()
}

func (m *Manager) register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byConnID[s.ID] = s
}

func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byConnID, s.ID)
	if pid, ok := s.PlayerID(); ok {
		m.log.Info("player disconnected", "player_id", pid)
	}
}

// sendLobbySnapshot sends the spectator its initial GameState view
// before anything else arrives on the socket (spec §6: a newly
// connected, not-yet-joined session still observes the lobby/match).
func (m *Manager) sendLobbySnapshot(s *Session) {
	snap := m.match.Snapshot()
	_ = s.sendDirect(protocol.GameUpdateMsg{
		Type:      protocol.TypeGameUpdate,
		GameState: protocol.FromSnapshot(snap),
	})
}

// handleFrame dispatches one inbound frame by its type discriminator
// (spec §6). Malformed JSON or an unknown type is a protocol violation:
// the offending session receives an Error and is closed (spec §7).
func (m *Manager) handleFrame(s *Session, raw []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		m.protocolViolation(s, "malformed message")
		return
	}

	switch env.Type {
	case protocol.TypeJoinLobby:
		m.handleJoinLobby(s, raw)
	case protocol.TypeSubmitMove:
		m.handleSubmitMove(s, raw)
	case protocol.TypeStartGame:
		m.handleStartGame(s)
	default:
		m.protocolViolation(s, "unknown message type: "+env.Type)
	}
}

// errInvalidPlayerName reports a player name that fails spec §6/§7's
// InvalidJoin rules: absent, not valid UTF-8, outside 1-32 characters,
// or carrying leading/trailing whitespace.
var errInvalidPlayerName = errors.New("invalid player name")

func validatePlayerName(name string) error {
	if !utf8.ValidString(name) {
		return errInvalidPlayerName
	}
	if n := utf8.RuneCountInString(name); n < 1 || n > 32 {
		return errInvalidPlayerName
	}
	if strings.TrimSpace(name) != name {
		return errInvalidPlayerName
	}
	return nil
}

func (m *Manager) handleJoinLobby(s *Session, raw []byte) {
	if _, ok := s.PlayerID(); ok {
		m.protocolViolation(s, "already joined")
		return
	}
	if !s.joinEligible {
		_ = s.sendDirect(protocol.ErrorMsg{Type: protocol.TypeError, Message: "joins are not accepted on the spectator endpoint"})
		return
	}
	var msg protocol.JoinLobbyMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		m.protocolViolation(s, "malformed JoinLobby")
		return
	}
	if err := validatePlayerName(msg.PlayerName); err != nil {
		_ = s.sendDirect(protocol.ErrorMsg{Type: protocol.TypeError, Message: err.Error()})
		return
	}
	name := msg.PlayerName

	playerID := s.ID
	if err := m.match.JoinLobby(playerID, name); err != nil {
		_ = s.sendDirect(protocol.ErrorMsg{Type: protocol.TypeError, Message: err.Error()})
		return
	}
	if err := s.becomePlayer(playerID, name); err != nil {
		m.protocolViolation(s, err.Error())
		return
	}

	snap := m.match.Snapshot()
	_ = s.sendDirect(protocol.LobbyJoinedMsg{
		Type:      protocol.TypeLobbyJoined,
		PlayerID:  playerID,
		GameState: protocol.FromSnapshot(snap),
	})
	m.broadcastLobbyState(snap)
	m.log.Info("player joined lobby", "player_id", playerID, "name", name)
}

// handleSubmitMove ignores submissions from sessions that have not
// joined as a player. This follows spec §4.2's literal operational
// description over the generic §7 error table entry: a submission from
// an unknown/unjoined submitter is ordinary game noise, not a
// structural protocol violation (see DESIGN.md). An unparseable
// direction value IS reported back, per spec §7: "Error is sent only
// for truly unparseable direction values."
func (m *Manager) handleSubmitMove(s *Session, raw []byte) {
	playerID, ok := s.PlayerID()
	if !ok {
		return
	}
	var msg protocol.SubmitMoveMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	dir, ok := grid.ParseDirection(msg.Direction)
	if !ok {
		_ = s.sendDirect(protocol.ErrorMsg{Type: protocol.TypeError, Message: "unparseable direction: " + msg.Direction})
		return
	}
	m.match.SubmitMove(playerID, dir)
}

func (m *Manager) handleStartGame(s *Session) {
	if err := m.match.Start(); err != nil {
		_ = s.sendDirect(protocol.ErrorMsg{Type: protocol.TypeError, Message: err.Error()})
	}
}

func (m *Manager) protocolViolation(s *Session, reason string) {
	_ = s.sendDirect(protocol.ErrorMsg{Type: protocol.TypeError, Message: reason})
	s.Close()
}

// broadcastLobbyState fans LobbyState out to every connected session
// (spec §6: sent on any pre-match membership change).
func (m *Manager) broadcastLobbyState(snap engine.Snapshot) {
	players := make([]protocol.LobbyPlayer, 0, len(snap.Snakes))
	for id, sn := range snap.Snakes {
		players = append(players, protocol.LobbyPlayer{ID: id, Name: sn.Name, Color: sn.Color})
	}
	m.fanOut(protocol.LobbyStateMsg{Type: protocol.TypeLobbyState, Players: players}, nil)
}

// BroadcastGameUpdate implements scheduler.Broadcaster.
func (m *Manager) BroadcastGameUpdate(snap engine.Snapshot) {
	m.fanOut(protocol.GameUpdateMsg{Type: protocol.TypeGameUpdate, GameState: protocol.FromSnapshot(snap)}, nil)
}

// BroadcastGameEnded implements scheduler.Broadcaster.
func (m *Manager) BroadcastGameEnded(snap engine.Snapshot, winner string) {
	var winnerID *string
	if winner != "" {
		winnerID = &winner
	}
	m.fanOut(protocol.GameEndedMsg{
		Type:      protocol.TypeGameEnded,
		WinnerID:  winnerID,
		GameState: protocol.FromSnapshot(snap),
	}, nil)
}

// BroadcastMoveRequest implements scheduler.Broadcaster. Unlike the
// other two broadcasts this is addressed to a single player, so it
// serializes once and enqueues to that player's session only.
func (m *Manager) BroadcastMoveRequest(playerID string, valid []grid.Direction, timeLimitMS int) {
	msg := protocol.MoveRequestMsg{
		Type:            protocol.TypeMoveRequest,
		ValidDirections: validDirectionStrings(valid),
		TimeLimitMS:     timeLimitMS,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		m.log.Error("failed to marshal MoveRequest", "error", err)
		return
	}

	sess := m.sessionFor(playerID)
	if sess == nil {
		return
	}
	if sess.enqueue(data) {
		m.log.Warn("closing player session for sustained lag", "player_id", playerID)
		m.unregister(sess)
		sess.Close()
	}
}

func (m *Manager) sessionFor(playerID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.byConnID {
		if pid, ok := s.PlayerID(); ok && pid == playerID {
			return s
		}
	}
	return nil
}

// fanOut serializes msg exactly once (spec §4.3.2: one allocation, N
// enqueues) and pushes it to every registered session except skip (if
// non-nil). A player session that overflows its lag-close threshold is
// dropped from the registry and closed.
func (m *Manager) fanOut(msg interface{}, skip *Session) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.log.Error("failed to marshal broadcast", "error", err)
		return
	}

	m.mu.RLock()
	targets := make([]*Session, 0, len(m.byConnID))
	for _, s := range m.byConnID {
		if s == skip {
			continue
		}
		targets = append(targets, s)
	}
	m.mu.RUnlock()

	var toClose []*Session
	for _, s := range targets {
		if s.enqueue(data) {
			toClose = append(toClose, s)
		}
	}
	for _, s := range toClose {
		if pid, ok := s.PlayerID(); ok {
			m.log.Warn("closing player session for sustained lag", "player_id", pid)
		}
		m.unregister(s)
		s.Close()
	}
}

// Count returns the number of currently connected sessions, player and
// spectator alike (used by the join-path capacity check alongside
// engine.ErrLobbyFull).
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byConnID)
}

var errServerFull = errors.New("server full")

// CapacityGuard rejects a new connection outright once the number of
// sessions has reached maxSessions (config.MaxPlayers * 4 when
// maxSessions is 0). The cap counts players and spectators together and
// keeps a single process from being overwhelmed.
func (m *Manager) CapacityGuard(maxSessions int) error {
	if maxSessions <= 0 {
		maxSessions = config.MaxPlayers * 4
	}
	if m.Count() >= maxSessions {
		return errServerFull
	}
	return nil
}
