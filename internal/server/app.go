// Package server initializes and runs the check-in server. It wires the
// store, reconciliation engine and roster service behind the HTTP API and
// handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gatherhall/doorsync/internal/logging"
	"github.com/gatherhall/doorsync/internal/server/config"
	"github.com/gatherhall/doorsync/internal/server/httpapi"
	"github.com/gatherhall/doorsync/internal/server/reconcile"
	"github.com/gatherhall/doorsync/internal/server/roster"
	"github.com/gatherhall/doorsync/internal/server/storage"
)

const shutdownGrace = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	store  storage.Store
	server *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	var store storage.Store
	if cfg.DatabaseDSN == "" {
		store = storage.NewMemoryStore()
	} else {
		var err error
		store, err = storage.NewPostgresStore(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
	}

	if err := store.RunMigrations(context.Background()); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	engine := reconcile.NewEngine(store, logger)
	if cfg.ActionTimeout > 0 {
		engine.SetActionTimeout(cfg.ActionTimeout)
	}

	rosterSvc := roster.NewService(store)
	rosterSvc.SetActivityLimit(cfg.ActivityLimit)

	srv := httpapi.NewServer(httpapi.Options{
		Addr:           cfg.EndpointAddrHTTP,
		SecretKey:      []byte(cfg.SecretKey),
		AllowedOrigins: cfg.AllowedOrigins,
	}, engine, rosterSvc, store, logger)

	return &App{config: cfg, logger: logger, store: store, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown error", "error", err)
	}

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(context.Background(), "store close error", "error", err)
	}
}
