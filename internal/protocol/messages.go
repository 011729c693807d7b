// Package protocol defines the wire message envelope and payload types
// exchanged between sessions and clients (spec §6). Every frame carries
// a top-level Type discriminator, grounded on the teacher's protocol.go
// envelope convention but using full field names rather than the
// teacher's single-character keys: this match's tick cadence and grid
// payload size do not need byte-shaving the way a 20 tick/s continuous
// physics world does.
package protocol

import "snakearena/internal/grid"

// Inbound message type discriminators (client -> server).
const (
	TypeJoinLobby  = "JoinLobby"
	TypeSubmitMove = "SubmitMove"
	TypeStartGame  = "StartGame"
)

// Outbound message type discriminators (server -> client).
const (
	TypeLobbyJoined = "LobbyJoined"
	TypeLobbyState  = "LobbyState"
	TypeGameUpdate  = "GameUpdate"
	TypeMoveRequest = "MoveRequest"
	TypeGameEnded   = "GameEnded"
	TypeError       = "Error"
)

// Inbound envelope: the server peeks at Type before parsing the rest of
// a frame into the matching payload struct.
type Envelope struct {
	Type string `json:"type"`
}

// JoinLobbyMsg is the first-and-only message a player sends after
// connecting (spec §6).
type JoinLobbyMsg struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name"`
}

// SubmitMoveMsg records a player's intended move for the current tick.
type SubmitMoveMsg struct {
	Type      string `json:"type"`
	Direction string `json:"direction"`
}

// StartGameMsg is sent by a spectator to transition Idle -> Running.
type StartGameMsg struct {
	Type string `json:"type"`
}

// Position is the wire shape of grid.Position.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// FromGridPositions converts grid positions to their wire shape.
func FromGridPositions(ps []grid.Position) []Position {
	out := make([]Position, len(ps))
	for i, p := range ps {
		out[i] = Position{X: p.X, Y: p.Y}
	}
	return out
}

// SnakeWire is one entry of GameStateWire.Snakes (spec §6 "GameState
// wire shape").
type SnakeWire struct {
	Name   string     `json:"name"`
	Color  string     `json:"color"`
	Body   []Position `json:"body"`
	Length int        `json:"length"`
	Alive  bool       `json:"alive"`
}

// GameStateWire is the wire shape of a game state snapshot (spec §6).
type GameStateWire struct {
	Snakes     map[string]SnakeWire `json:"snakes"`
	Fruits     []Position           `json:"fruits"`
	Tick       int                  `json:"tick"`
	IsRunning  bool                 `json:"is_running"`
	Winner     *string              `json:"winner"`
	GridWidth  int                  `json:"grid_width"`
	GridHeight int                  `json:"grid_height"`
}

// LobbyJoinedMsg is sent to a joining player immediately after a
// successful spawn (spec §6).
type LobbyJoinedMsg struct {
	Type      string        `json:"type"`
	PlayerID  string        `json:"player_id"`
	GameState GameStateWire `json:"game_state"`
}

// LobbyPlayer is one roster entry of LobbyStateMsg.
type LobbyPlayer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// LobbyStateMsg is broadcast to everyone on any pre-match membership
// change (spec §6).
type LobbyStateMsg struct {
	Type    string        `json:"type"`
	Players []LobbyPlayer `json:"players"`
}

// GameUpdateMsg is broadcast once per tick to all sessions (spec §6).
type GameUpdateMsg struct {
	Type      string        `json:"type"`
	GameState GameStateWire `json:"game_state"`
}

// MoveRequestMsg is the optional informational per-tick nudge to an
// alive player (spec §6).
type MoveRequestMsg struct {
	Type            string   `json:"type"`
	ValidDirections []string `json:"valid_directions"`
	TimeLimitMS     int      `json:"time_limit_ms"`
}

// GameEndedMsg is broadcast on termination (spec §6).
type GameEndedMsg struct {
	Type      string        `json:"type"`
	WinnerID  *string       `json:"winner_id"`
	GameState GameStateWire `json:"game_state"`
}

// ErrorMsg is sent to the offending session on a protocol violation
// (spec §6, §7).
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Constants published to clients, fixed and not negotiated (spec §6).
type Constants struct {
	GridWidth            int `json:"grid_width"`
	GridHeight           int `json:"grid_height"`
	WinningLength        int `json:"winning_length"`
	TickDurationMS       int `json:"tick_duration_ms"`
	MinPlayers           int `json:"min_players"`
	MaxPlayers           int `json:"max_players"`
	FruitSpawnDelayTicks int `json:"fruit_spawn_delay_ticks"`
}
