// Package server wires the sync server together: storage, services and the
// gRPC endpoint, with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/farmsync/internal/logging"
	"github.com/dmitrijs2005/farmsync/internal/server/config"
	"github.com/dmitrijs2005/farmsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/farmsync/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/farmsync/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	userService *services.UserService
	syncService *services.SyncService
}

// NewApp opens storage, applies migrations and builds the services.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{Level: c.LogLevel, Format: c.LogFormat})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	var rm repomanager.RepositoryManager
	if c.InMemory {
		logger.Warn(ctx, "Using in-memory storage, data is lost on exit")
		rm = repomanager.NewMemoryRepositoryManager()
	} else {
		pg, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		rm = pg
	}

	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return &App{
		config:      c,
		logger:      logger,
		repomanager: rm,
		userService: services.NewUserService(rm, c),
		syncService: services.NewSyncService(rm),
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
}

// Run serves until a signal arrives or the server fails, then releases
// storage.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := app.initSignalHandler(ctx)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.syncService, app.config.SecretKey)
		return s.Run(ctx)
	})

	err := g.Wait()
	if cErr := app.repomanager.Close(); cErr != nil {
		app.logger.Error(ctx, "close storage", "error", cErr)
	}
	if err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
		return err
	}

	app.logger.Info(ctx, "Stopped")
	return nil
}
