// Package httpapi wires the websocket upgrade endpoint, a JSON /stats
// endpoint, and static asset serving into one http.Server (spec §6
// "Process Surface"). Grounded on rswebdev-schlangen/engine/server.go's
// Server/setupMux/Start/Stop shape, generalized to delegate the
// websocket upgrade to session.Manager instead of a single HandleWS
// function.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"snakearena/internal/applog"
	"snakearena/internal/config"
	"snakearena/internal/engine"
	"snakearena/internal/protocol"
)

// StatsSource is the read-only surface httpapi needs from the match
// (kept as an interface so this package never imports scheduler
// directly, matching session.MatchController's decoupling).
type StatsSource interface {
	Stats() engine.Stats
}

// WebSocketHandler upgrades and serves websocket connections on both
// transport endpoints (spec §6: a player endpoint and a spectator
// endpoint), implemented by *session.Manager.
type WebSocketHandler interface {
	ServeSpectatorConnect(w http.ResponseWriter, r *http.Request)
	ServePlayerConnect(w http.ResponseWriter, r *http.Request)
}

// Server wraps the process's single http.Server (spec §6: websocket
// endpoint, /stats, /health, static client assets).
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	log        *applog.Logger
}

// New constructs a Server bound to the given settings, wiring ws, the
// stats source, and a static file root.
func New(settings config.Settings, ws WebSocketHandler, stats StatsSource, log *applog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc(settings.SpectatorWebSocketPath, ws.ServeSpectatorConnect)
	mux.HandleFunc(settings.PlayerWebSocketPath, ws.ServePlayerConnect)

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(toStatsWire(stats.Stats())); err != nil {
			log.Error("failed to encode stats", "error", err)
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/constants", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(publishedConstants()); err != nil {
			log.Error("failed to encode constants", "error", err)
		}
	})

	mux.Handle("/", http.FileServer(http.Dir(settings.StaticDir)))

	return &Server{
		httpServer: &http.Server{Addr: settings.ListenAddr, Handler: mux},
		log:        log,
	}
}

// statsWire is the JSON shape published at /stats (spec §6).
type statsWire struct {
	AliveCount int    `json:"alive_count"`
	TotalCount int    `json:"total_count"`
	Tick       int    `json:"tick"`
	IsRunning  bool   `json:"is_running"`
	Winner     string `json:"winner,omitempty"`
}

func toStatsWire(s engine.Stats) statsWire {
	return statsWire{
		AliveCount: s.AliveCount,
		TotalCount: s.TotalCount,
		Tick:       s.Tick,
		IsRunning:  s.Running,
		Winner:     s.Winner,
	}
}

// ListenAndServe starts the listener and blocks until Stop is called or
// the listener errors.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.Serve(ln)
}

// Stop gracefully shuts the server down, bounded by ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// publishedConstants builds the wire shape of the fixed, non-negotiated
// constants (spec §6 "Constants").
func publishedConstants() protocol.Constants {
	return protocol.Constants{
		GridWidth:            config.GridWidth,
		GridHeight:           config.GridHeight,
		WinningLength:        config.WinningLength,
		TickDurationMS:       config.TickDurationMS,
		MinPlayers:           config.MinPlayers,
		MaxPlayers:           config.MaxPlayers,
		FruitSpawnDelayTicks: config.FruitSpawnDelayTicks,
	}
}
