// Package server wires the sync API together: repository, middleware and
// router, with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cardkeeper/cardkeeper/internal/logging"
	"github.com/cardkeeper/cardkeeper/internal/server/config"
	"github.com/cardkeeper/cardkeeper/internal/server/handler"
	"github.com/cardkeeper/cardkeeper/internal/server/middleware"
	"github.com/cardkeeper/cardkeeper/internal/server/repository"
)

type App struct {
	config config.Config
	logger logging.Logger
	repo   repository.Repository
}

func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	var (
		repo repository.Repository
		err  error
	)
	switch cfg.DatabaseDriver {
	case "postgres":
		repo, err = repository.OpenPostgres(ctx, cfg.DatabaseDSN)
	case "sqlite":
		repo, err = repository.OpenSQLite(ctx, cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return &App{config: cfg, logger: logger, repo: repo}, nil
}

// Router assembles the HTTP surface: a health probe and the authenticated,
// rate-limited sync endpoints.
func (app *App) Router() http.Handler {
	sync := handler.NewSyncHandler(app.repo, app.logger)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(app.config.RateRPS, app.config.RateBurst))
		r.Use(middleware.TokenAuth(app.config.Secret))
		r.Get("/api/v1/sync/pull", sync.HandlePull)
		r.Post("/api/v1/sync/push", sync.HandlePush)
	})

	return r
}

// Run serves until the context is cancelled or a termination signal arrives,
// then shuts the server down gracefully and closes the repository.
func (app *App) Run(ctx context.Context) error {
	defer app.repo.Close()

	srv := &http.Server{
		Addr:    app.config.Addr,
		Handler: app.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "server starting", "addr", app.config.Addr, "env", app.config.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	app.logger.Info(ctx, "server stopped")
	return nil
}
