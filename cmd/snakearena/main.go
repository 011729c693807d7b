// Command snakearena runs the match server (spec §6 "Process Surface"):
// it wires the engine, scheduler, session manager, and HTTP/WebSocket
// listener together and blocks until shutdown. Grounded on
// server/main.go's wiring order (world -> conns -> game loop -> mux)
// but generalized into flag/env-driven Settings rather than compile-time
// constants, matching rswebdev-schlangen's GameConfig-driven NewServer.
package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snakearena/internal/applog"
	"snakearena/internal/config"
	"snakearena/internal/httpapi"
	"snakearena/internal/scheduler"
	"snakearena/internal/session"
)

func main() {
	settings := config.DefaultSettings()

	flag.StringVar(&settings.ListenAddr, "listen", settings.ListenAddr, "HTTP listen address")
	flag.StringVar(&settings.StaticDir, "static-dir", settings.StaticDir, "static client asset directory")
	flag.StringVar(&settings.SpectatorWebSocketPath, "ws-path", settings.SpectatorWebSocketPath, "spectator websocket endpoint path")
	flag.StringVar(&settings.PlayerWebSocketPath, "player-ws-path", settings.PlayerWebSocketPath, "player websocket endpoint path")
	flag.DurationVar(&settings.JoinCooldown, "join-cooldown", settings.JoinCooldown, "minimum time between connection attempts from one IP")
	flag.Parse()

	if v := os.Getenv("SNAKEARENA_STATIC_DIR"); v != "" {
		settings.StaticDir = v
	}
	if v := os.Getenv("SNAKEARENA_LISTEN_ADDR"); v != "" {
		settings.ListenAddr = v
	}

	log := applog.New("snakearena")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sched := scheduler.New(nil, log.With("component", "scheduler"), rng)

	mgr := session.NewManager(sched, log.With("component", "session"), settings.JoinCooldown)
	sched.SetBroadcaster(mgr)

	srv := httpapi.New(settings, mgr, sched, log.With("component", "httpapi"))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("snakearena listening", "addr", settings.ListenAddr,
		"spectator_ws_path", settings.SpectatorWebSocketPath,
		"player_ws_path", settings.PlayerWebSocketPath)

	waitForShutdown(log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Shutdown()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("error during http server shutdown", "error", err)
	}
	log.Info("snakearena stopped")
}

// waitForShutdown blocks until SIGINT or SIGTERM is received.
func waitForShutdown(log *applog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())
}
