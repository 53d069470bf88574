package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/client/backup"
	"github.com/dmitrijs2005/farmsync/internal/client/client"
	"github.com/dmitrijs2005/farmsync/internal/client/config"
	"github.com/dmitrijs2005/farmsync/internal/client/models"
	"github.com/dmitrijs2005/farmsync/internal/client/services"
	"github.com/dmitrijs2005/farmsync/internal/client/store"
	"github.com/dmitrijs2005/farmsync/internal/client/syncer"
	"github.com/dmitrijs2005/farmsync/internal/client/tracker"
	"github.com/dmitrijs2005/farmsync/internal/logging"
	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	ModeUnknown Mode = ""
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const pingTimeout = 3 * time.Second

type authService interface {
	Register(ctx context.Context, userName, password string) error
	Login(ctx context.Context, userName, password string) error
	Restore(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
}

type syncService interface {
	Run(ctx context.Context) error
	SyncNow(ctx context.Context) error
	RequestPushChanges()
	Status() syncer.Status
}

type backupService interface {
	Backup(ctx context.Context) (*backup.Result, error)
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	closers []io.Closer

	authService   authService
	recordService *services.RecordService
	syncService   syncService
	backupService backupService

	reader *bufio.Reader
	out    io.Writer

	mu       sync.RWMutex
	userName string
	mode     Mode
	pending  int
}

// NewApp opens the local store and connects the services. The returned App
// owns the store and the connection until Run returns.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	base, err := logging.New(logging.Options{Level: c.LogLevel, File: c.LogFile})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	st, err := store.Open(ctx, c.DatabasePath, base)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	deviceID, err := services.DeviceID(ctx, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	logger := base.With("device", deviceID)

	remote, err := client.NewGRPCClient(c.ServerEndpointAddr,
		client.WithRequestTimeout(c.RequestTimeout),
		client.WithDeviceID(deviceID),
	)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	pusher := syncer.NewPusher(st, remote, logger, c.PushBatchSize)
	puller := syncer.NewPuller(st, remote, logger, c.PullPageSize)
	orchestrator := syncer.NewOrchestrator(pusher, puller, logger, syncer.Config{
		Interval:   c.SyncInterval,
		BackoffMin: c.BackoffMin,
		BackoffMax: c.BackoffMax,
		Ready:      func() bool { return remote.AccessToken() != "" },
	})

	tr := tracker.New(st, logger, tracker.WithOnChange(func(models.Table) {
		orchestrator.RequestPushChanges()
	}))

	return &App{
		config:        c,
		logger:        logger.With("module", "cli"),
		closers:       []io.Closer{remote, st},
		authService:   services.NewAuthService(remote, st),
		recordService: services.NewRecordService(st, tr),
		syncService:   orchestrator,
		backupService: backup.NewService(st, c.Backup, logger),
		reader:        bufio.NewReader(os.Stdin),
		out:           os.Stdout,
	}, nil
}

// Run restores a saved session, starts background sync and the
// connectivity watcher, and serves the shell until the user exits or ctx
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if name, err := a.authService.Restore(ctx); err == nil {
		a.setUserName(name)
		a.printf("Welcome back, %s\n", name)
	} else if !errors.Is(err, services.ErrNotLoggedIn) {
		a.logger.Warn(ctx, "restoring session failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.syncService.Run(gctx)
	})
	g.Go(func() error {
		a.watchPending(gctx)
		return nil
	})
	if a.config != nil && a.config.OnlineCheckInterval > 0 {
		g.Go(func() error {
			a.StartOnlineStatusWatcher(gctx, a.config.OnlineCheckInterval)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.printf("Welcome to farmsync (type 'help' for commands)\n")
		runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader), a.out)
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
	cancel()
	return g.Wait()
}

// Close releases the connection and the store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// StartOnlineStatusWatcher pings the server every interval and flips the
// mode accordingly. Coming back online asks for a sync cycle so that edits
// made offline are pushed.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// watchPending keeps the pending count in the prompt current until ctx ends.
func (a *App) watchPending(ctx context.Context) {
	for n := range a.recordService.WatchPending(ctx) {
		a.mu.Lock()
		a.pending = n
		a.mu.Unlock()
	}
}

func (a *App) checkOnline(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := a.authService.Ping(pctx)
	cancel()

	if err != nil {
		a.setMode(ctx, ModeOffline)
		return
	}
	if a.setMode(ctx, ModeOnline) && a.isLoggedIn() {
		a.syncService.RequestPushChanges()
	}
}

// setMode reports whether the mode changed.
func (a *App) setMode(ctx context.Context, mode Mode) bool {
	a.mu.Lock()
	prev := a.mode
	a.mode = mode
	a.mu.Unlock()

	if prev == mode {
		return false
	}
	a.logger.Info(ctx, "connectivity changed", "mode", mode)
	return true
}

func (a *App) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

func (a *App) setUserName(name string) {
	a.mu.Lock()
	a.userName = name
	a.mu.Unlock()
}

func (a *App) isLoggedIn() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userName != ""
}

func (a *App) getStatus() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := a.userName
	if a.mode != ModeUnknown {
		if s != "" {
			s += " "
		}
		s += string(a.mode)
	}
	if a.pending > 0 {
		if s != "" {
			s += ", "
		}
		s += fmt.Sprintf("%d pending", a.pending)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
