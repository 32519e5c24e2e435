package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ewilliams-labs/fetchify/internal/adapters/rest"
	"github.com/ewilliams-labs/fetchify/internal/app"
	"github.com/ewilliams-labs/fetchify/internal/config"
	"github.com/ewilliams-labs/fetchify/internal/logging"
	"github.com/ewilliams-labs/fetchify/internal/worker"
)

func main() {
	// 1. Configuration: defaults, fetchify.yaml, FETCHIFY_* environment
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Driven adapters and core services
	engine, err := app.New(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to wire engine")
	}
	defer engine.Close()

	pool := worker.NewPool(engine.Recommender, worker.Config{
		Workers:   cfg.Worker.Workers,
		QueueSize: cfg.Worker.QueueSize,
		Retention: cfg.Worker.Retention,
	})
	defer pool.Stop()

	// 3. Driving adapter
	handler := rest.NewHandler(rest.Deps{
		Recommender: engine.Recommender,
		Analyzer:    engine.Analyzer,
		Jobs:        pool,
		Catalogs:    engine.Catalogs,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.Server.Addr).Msg("fetchify api listening")
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logging.Error().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		logging.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("shutdown error")
		}
	}
}
