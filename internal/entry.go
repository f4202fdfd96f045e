// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/karta-graph/karta/internal/api"
	"github.com/karta-graph/karta/internal/contexts"
	"github.com/karta-graph/karta/internal/graph"
	"github.com/karta-graph/karta/internal/mcpserver"
	"github.com/karta-graph/karta/internal/service"
	"github.com/karta-graph/karta/internal/settings"
	"github.com/karta-graph/karta/internal/sse"
	"github.com/karta-graph/karta/internal/store"
	"github.com/karta-graph/karta/internal/vaultfs"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("db_file", cfg.Storage.DBFile),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker: mutation events fan out to connected clients.
	broker := sse.NewBroker()
	defer broker.Close()

	svc, set, cleanup, err := buildService(cfg, broker)
	if err != nil {
		return err
	}
	defer cleanup()

	if n, err := svc.SweepOrphanedContexts(ctx); err != nil {
		logger.Warn("Context sweep failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("Removed orphaned context documents", slog.Int("count", n))
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Mount("/", api.NewRouter(svc, api.Config{
		AuthEnabled:    cfg.Auth.AuthEnabled(),
		AuthToken:      cfg.Auth.Token,
		MaxUploadBytes: cfg.Assets.MaxUploadBytes(),
	}, broker))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: router,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the settings file for external edits. Vault content is never
	// watched; file discovery stays lazy.
	g.Go(func() error {
		if err := settings.Watch(gCtx, set, logger, svc.NotifySettingsChanged); err != nil {
			logger.Warn("settings watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the Karta tools over MCP stdio with the given options.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Logging goes to stderr: stdout is the MCP transport.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	svc, _, cleanup, err := buildService(cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	if n, err := svc.SweepOrphanedContexts(ctx); err != nil {
		logger.Warn("Context sweep failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("Removed orphaned context documents", slog.Int("count", n))
	}

	logger.Info("Serving MCP on stdio", slog.String("vault_path", cfg.Vault.Path))
	return mcpserver.New(svc).ServeStdio()
}

// buildService opens the vault with its graph state and wires the
// service facade. The returned cleanup closes the database.
func buildService(cfg *Config, pub service.Publisher) (*service.Service, *settings.Store, func(), error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create vault dir: %w", err)
	}
	vault, err := vaultfs.Open(cfg.Vault.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open vault: %w", err)
	}
	db, err := store.Open(filepath.Join(vault.KartaDir(), cfg.Storage.DBFile))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open graph db: %w", err)
	}
	g, err := graph.Open(vault, db)
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("open graph: %w", err)
	}
	ctxStore, err := contexts.NewStore(filepath.Join(vault.KartaDir(), "contexts"))
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("open context store: %w", err)
	}
	set, err := settings.NewStore(filepath.Join(vault.KartaDir(), "settings.json"))
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("open settings: %w", err)
	}

	svc := service.New(g, ctxStore, set, pub)
	return svc, set, func() { db.Close() }, nil
}
