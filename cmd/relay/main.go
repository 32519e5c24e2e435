// Package main runs the provider relay. It forwards allow-listed MusicBrainz and
// AcousticBrainz requests so that browsers and sandboxed clients can reach them with the
// right User-Agent and without CORS trouble.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/fetchify/internal/adapters/relay"
	"github.com/ewilliams-labs/fetchify/internal/config"
	"github.com/ewilliams-labs/fetchify/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(cfg.Logging)

	rc := cfg.RelayHandler()
	client := &http.Client{Timeout: cfg.Relay.Timeout}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		readyHandler(w, r, client, rc.MusicBrainzUpstream)
	})
	mux.Handle("/", relay.NewHandler(rc, client))

	srv := &http.Server{
		Addr:         cfg.Relay.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Relay.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Info().
			Str("addr", cfg.Relay.Addr).
			Str("musicbrainz", rc.MusicBrainzUpstream).
			Str("acousticbrainz", rc.AcousticBrainzUpstream).
			Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down relay")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Fatal().Err(err).Msg("shutdown error")
	}
	logging.Info().Msg("relay stopped")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// healthHandler returns the relay's own health status
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "relay"})
}

// readyHandler checks that the MusicBrainz upstream answers at all.
func readyHandler(w http.ResponseWriter, r *http.Request, client *http.Client, upstream string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, upstream, nil)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "error": err.Error()})
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "error": err.Error()})
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "upstream_status": resp.StatusCode})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "upstream": "reachable"})
}
