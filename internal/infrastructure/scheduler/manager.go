// Package scheduler manages the background sweep jobs using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"dropcode/internal/shared/logger"
)

// SweepFunc is one background sweep. Sweeps own their error handling;
// the scheduler only supplies the deadline.
type SweepFunc func(ctx context.Context)

// Manager owns the single gocron scheduler instance and the standard
// job set: subscription expiry, session expiry, and provider inventory
// sync.
type Manager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	started   bool
	startedMu sync.Mutex
}

func NewManager(log logger.Interface) (*Manager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, err
	}

	return &Manager{
		scheduler: scheduler,
		logger:    log.Named("scheduler"),
	}, nil
}

// RegisterSubscriptionSweep runs the subscription expiry and stale
// invoice sweep every hour, starting immediately so a restart catches
// up on missed expiries.
func (m *Manager) RegisterSubscriptionSweep(sweep SweepFunc) error {
	return m.register("subscription-sweep", time.Hour, 10*time.Minute, sweep)
}

// RegisterSessionSweep retires expired rental sessions every minute.
// Sessions are minutes-long; the sweep cadence matches.
func (m *Manager) RegisterSessionSweep(sweep SweepFunc) error {
	return m.register("session-sweep", time.Minute, time.Minute, sweep)
}

// RegisterProviderSync reconciles the device pool with provider
// inventories every five minutes.
func (m *Manager) RegisterProviderSync(sweep SweepFunc) error {
	return m.register("provider-sync", 5*time.Minute, 5*time.Minute, sweep)
}

func (m *Manager) register(name string, interval, timeout time.Duration, sweep SweepFunc) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			sweep(ctx)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(name),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered job", "name", name, "interval", interval)
	return nil
}

// Start begins executing registered jobs. Idempotent.
func (m *Manager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}
	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler started")
}

// Shutdown stops the scheduler and waits for running jobs.
func (m *Manager) Shutdown() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false
	return m.scheduler.Shutdown()
}
