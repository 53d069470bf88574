package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/farmsync/internal/logging"
	"github.com/sethvargo/go-retry"
)

// State is the scheduling state of the Orchestrator.
type State int

const (
	StateIdle State = iota
	StateSyncing
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Status is a snapshot for the background sync indicator.
type Status struct {
	State               State
	LastAttempt         time.Time
	LastSuccess         time.Time
	LastError           error
	ConsecutiveFailures int
	LastPush            PushReport
	LastPull            PullReport
	NextRetryAt         time.Time
}

type Config struct {
	// Interval between periodic cycles. Zero disables the timer.
	Interval   time.Duration
	BackoffMin time.Duration
	BackoffMax time.Duration
	// Ready gates background cycles, e.g. on having an access token. Skipped
	// cycles count neither as success nor as failure. Nil means always ready.
	Ready      func() bool
}

const (
	defaultBackoffMin = time.Second
	defaultBackoffMax = 5 * time.Minute
)

// Orchestrator runs push-then-pull cycles one at a time. Triggers that
// arrive while a cycle runs or while it backs off are coalesced into one
// follow-up cycle.
type Orchestrator struct {
	pusher *Pusher
	puller *Puller
	logger logging.Logger
	cfg    Config
	now    func() time.Time

	trigger chan struct{}
	cycleMu sync.Mutex

	mu      sync.RWMutex
	status  Status
	backoff retry.Backoff
}

func NewOrchestrator(pusher *Pusher, puller *Puller, logger logging.Logger, cfg Config) *Orchestrator {
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = defaultBackoffMin
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = max(defaultBackoffMax, cfg.BackoffMin)
	}

	o := &Orchestrator{
		pusher:  pusher,
		puller:  puller,
		logger:  logger.With("module", "orchestrator"),
		cfg:     cfg,
		now:     time.Now,
		trigger: make(chan struct{}, 1),
	}
	o.backoff = o.newBackoff()
	return o
}

func (o *Orchestrator) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(o.cfg.BackoffMax, retry.NewExponential(o.cfg.BackoffMin))
}

// RequestPushChanges asks for a sync cycle and returns immediately.
func (o *Orchestrator) RequestPushChanges() {
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

// Status returns the current state and the outcome of the last cycle.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.status.State = s
	o.mu.Unlock()
}

// Run serves triggers and the periodic timer until ctx is done. After a
// failed cycle it waits out the backoff delay and then retries.
func (o *Orchestrator) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if o.cfg.Interval > 0 {
		ticker := time.NewTicker(o.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	o.logger.Info(ctx, "sync orchestrator started", "interval", o.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info(ctx, "sync orchestrator stopped")
			return nil
		case <-o.trigger:
		case <-tick:
		}

		if o.cfg.Ready != nil && !o.cfg.Ready() {
			o.logger.Debug(ctx, "sync cycle skipped, not ready")
			continue
		}

		if err := o.SyncNow(ctx); err == nil || ctx.Err() != nil {
			continue
		}

		delay := o.enterBackoff()
		o.logger.Info(ctx, "sync backing off", "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			o.logger.Info(ctx, "sync orchestrator stopped")
			return nil
		case <-timer.C:
		}

		o.setState(StateIdle)
		o.RequestPushChanges()
	}
}

func (o *Orchestrator) enterBackoff() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	delay, _ := o.backoff.Next()
	o.status.State = StateBackoff
	o.status.NextRetryAt = o.now().Add(delay)
	return delay
}

// SyncNow runs one push-then-pull cycle, waiting for a running cycle to
// finish first. A pull is attempted even if the push failed.
func (o *Orchestrator) SyncNow(ctx context.Context) error {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	started := o.now()
	o.mu.Lock()
	o.status.State = StateSyncing
	o.status.LastAttempt = started
	o.mu.Unlock()

	pushRep, pushErr := o.pusher.Push(ctx)
	pullRep, pullErr := o.puller.Pull(ctx)
	err := errors.Join(pushErr, pullErr)

	o.mu.Lock()
	o.status.State = StateIdle
	o.status.LastPush = pushRep
	o.status.LastPull = pullRep
	o.status.LastError = err
	if err == nil {
		o.status.LastSuccess = o.now()
		o.status.ConsecutiveFailures = 0
		o.status.NextRetryAt = time.Time{}
		o.backoff = o.newBackoff()
	} else {
		o.status.ConsecutiveFailures++
	}
	failures := o.status.ConsecutiveFailures
	o.mu.Unlock()

	if err != nil {
		o.logger.Warn(ctx, "sync cycle failed", "error", err, "failures", failures)
		return err
	}

	o.logger.Info(ctx, "sync cycle finished",
		"pushed", pushRep.Pushed, "acked", pushRep.Acked, "raced", pushRep.Raced,
		"rejected", pushRep.Rejected, "pulled", pullRep.Received,
		"conflicts", len(pullRep.Conflicts), "took", o.now().Sub(started))
	return nil
}
