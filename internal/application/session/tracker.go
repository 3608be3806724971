// Package session contains the rental session lifecycle service.
package session

import (
	"context"
	"errors"
	"fmt"

	appdevice "dropcode/internal/application/device"
	"dropcode/internal/domain/session"
	"dropcode/internal/shared/logger"
)

// Tracker owns the session state machine: at most one live session per
// customer, device binding on start, and the expiry sweep that releases
// devices back to the pool.
type Tracker struct {
	sessionRepo session.Repository
	allocator   *appdevice.Allocator
	logger      logger.Interface
}

func NewTracker(sessionRepo session.Repository, allocator *appdevice.Allocator, log logger.Interface) *Tracker {
	return &Tracker{
		sessionRepo: sessionRepo,
		allocator:   allocator,
		logger:      log.Named("session-tracker"),
	}
}

// Open creates a pending session for the customer. A customer with a
// live session cannot open another one.
func (t *Tracker) Open(ctx context.Context, customerID uint, durationMinutes int) (*session.RentalSession, error) {
	existing, err := t.sessionRepo.GetLiveByCustomer(ctx, customerID)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to check live session: %w", err)
	}
	if existing != nil {
		if existing.IsLogicallyExpired() {
			// The sweep has not caught up; retire the stale session inline.
			if err := t.expireOne(ctx, existing); err != nil {
				return nil, err
			}
		} else {
			return nil, session.ErrSessionAlreadyActive
		}
	}

	s, err := session.NewRentalSession(customerID, durationMinutes)
	if err != nil {
		return nil, err
	}
	if err := t.sessionRepo.Create(ctx, s); err != nil {
		return nil, err
	}

	t.logger.Infow("session opened", "sid", s.SID(), "customer_id", customerID, "duration_minutes", durationMinutes)
	return s, nil
}

// Start binds a device and activates the session.
func (t *Tracker) Start(ctx context.Context, s *session.RentalSession, deviceID uint) error {
	if err := s.Start(deviceID); err != nil {
		return err
	}
	if err := t.sessionRepo.Update(ctx, s); err != nil {
		return err
	}
	t.logger.Infow("session started", "sid", s.SID(), "device_id", deviceID, "expires_at", s.ExpiresAt())
	return nil
}

// Complete ends the session successfully and releases its device.
func (t *Tracker) Complete(ctx context.Context, s *session.RentalSession) error {
	if err := s.Complete(); err != nil {
		return err
	}
	if err := t.sessionRepo.Update(ctx, s); err != nil {
		return err
	}
	t.releaseDevice(ctx, s)
	t.logger.Infow("session completed", "sid", s.SID())
	return nil
}

// Cancel ends the session without completion and releases its device.
func (t *Tracker) Cancel(ctx context.Context, sid string) (*session.RentalSession, error) {
	s, err := t.sessionRepo.GetBySID(ctx, sid)
	if err != nil {
		return nil, err
	}
	if err := s.Cancel(); err != nil {
		return nil, err
	}
	if err := t.sessionRepo.Update(ctx, s); err != nil {
		return nil, err
	}
	t.releaseDevice(ctx, s)
	t.logger.Infow("session cancelled", "sid", sid)
	return s, nil
}

// SweepExpired retires every active session whose expiry has passed and
// releases their devices. Called by the scheduler; individual failures
// are logged and do not stop the sweep.
func (t *Tracker) SweepExpired(ctx context.Context) {
	expired, err := t.sessionRepo.ListExpiredActive(ctx)
	if err != nil {
		t.logger.Errorw("failed to list expired sessions", "error", err)
		return
	}

	for _, s := range expired {
		if err := t.expireOne(ctx, s); err != nil {
			t.logger.Warnw("failed to expire session", "sid", s.SID(), "error", err)
		}
	}

	if len(expired) > 0 {
		t.logger.Infow("expired sessions swept", "count", len(expired))
	}
}

func (t *Tracker) expireOne(ctx context.Context, s *session.RentalSession) error {
	if err := s.MarkExpired(); err != nil {
		return err
	}
	if err := t.sessionRepo.Update(ctx, s); err != nil {
		return err
	}
	t.releaseDevice(ctx, s)
	t.logger.Infow("session expired", "sid", s.SID())
	return nil
}

// releaseDevice is best-effort: a failed release leaves the device
// in_use until the next administrative pass, never blocks the session
// transition that already happened.
func (t *Tracker) releaseDevice(ctx context.Context, s *session.RentalSession) {
	if s.DeviceID() == nil {
		return
	}
	if err := t.allocator.Release(ctx, *s.DeviceID()); err != nil {
		t.logger.Warnw("failed to release session device", "sid", s.SID(), "device_id", *s.DeviceID(), "error", err)
	}
}
