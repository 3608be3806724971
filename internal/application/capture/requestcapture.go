package capture

import (
	"context"
	"errors"
	"fmt"

	appdevice "dropcode/internal/application/device"
	appsession "dropcode/internal/application/session"
	"dropcode/internal/domain/customer"
	"dropcode/internal/domain/device"
	"dropcode/internal/domain/session"
	"dropcode/internal/domain/subscription"
	"dropcode/internal/shared/logger"
)

// RequestCaptureCommand asks for one pickup-code capture on behalf of a
// customer.
type RequestCaptureCommand struct {
	TelegramID int64
	TrackingID string
}

// RequestCaptureResult reports the opened session and queued artifact.
type RequestCaptureResult struct {
	Session  *session.RentalSession
	Artifact *session.CaptureArtifact
	Device   *device.Device
}

// RequestCaptureUseCase validates entitlement, binds a device, opens a
// rental session, and queues the capture job. The capture itself runs
// asynchronously on the worker.
type RequestCaptureUseCase struct {
	customerRepo     customer.Repository
	subscriptionRepo subscription.Repository
	deviceRepo       device.Repository
	allocator        *appdevice.Allocator
	tracker          *appsession.Tracker
	artifactRepo     session.ArtifactRepository
	worker           *Worker
	durationMinutes  int
	logger           logger.Interface
}

func NewRequestCaptureUseCase(
	customerRepo customer.Repository,
	subscriptionRepo subscription.Repository,
	deviceRepo device.Repository,
	allocator *appdevice.Allocator,
	tracker *appsession.Tracker,
	artifactRepo session.ArtifactRepository,
	worker *Worker,
	durationMinutes int,
	log logger.Interface,
) *RequestCaptureUseCase {
	return &RequestCaptureUseCase{
		customerRepo:     customerRepo,
		subscriptionRepo: subscriptionRepo,
		deviceRepo:       deviceRepo,
		allocator:        allocator,
		tracker:          tracker,
		artifactRepo:     artifactRepo,
		worker:           worker,
		durationMinutes:  durationMinutes,
		logger:           log,
	}
}

func (uc *RequestCaptureUseCase) Execute(ctx context.Context, cmd RequestCaptureCommand) (*RequestCaptureResult, error) {
	cust, err := uc.customerRepo.GetByTelegramID(ctx, cmd.TelegramID)
	if err != nil {
		return nil, err
	}
	if cust.IsBlocked() {
		return nil, customer.ErrCustomerBlocked
	}

	sub, err := uc.subscriptionRepo.GetActiveByCustomer(ctx, cust.ID())
	if err != nil {
		return nil, err
	}

	s, err := uc.tracker.Open(ctx, cust.ID(), uc.durationMinutes)
	if err != nil {
		return nil, err
	}

	dev, err := uc.resolveDevice(ctx, sub)
	if err != nil {
		uc.abortSession(ctx, s)
		return nil, err
	}

	if err := uc.tracker.Start(ctx, s, dev.ID()); err != nil {
		if rerr := uc.allocator.Release(ctx, dev.ID()); rerr != nil {
			uc.logger.Warnw("failed to release device after start failure", "device_id", dev.ID(), "error", rerr)
		}
		uc.abortSession(ctx, s)
		return nil, err
	}

	artifact, err := session.NewCaptureArtifact(s.ID(), cmd.TrackingID)
	if err != nil {
		return nil, err
	}
	if err := uc.artifactRepo.Create(ctx, artifact); err != nil {
		return nil, fmt.Errorf("failed to persist artifact: %w", err)
	}

	// The tracking id, if any, consumed the awaiting-input state.
	if cust.AwaitingInput() != customer.AwaitingNone {
		cust.ClearAwaitingInput()
		if err := uc.customerRepo.Update(ctx, cust); err != nil {
			uc.logger.Warnw("failed to clear awaiting input", "customer_id", cust.ID(), "error", err)
		}
	}

	job := Job{
		SessionID:        s.ID(),
		ArtifactID:       artifact.ID(),
		Provider:         dev.Provider(),
		ProviderDeviceID: dev.ProviderDeviceID(),
		TrackingID:       cmd.TrackingID,
		CustomerID:       cust.ID(),
		TelegramChatID:   cust.TelegramID(),
		CourierName:      dev.CourierName(),
		LockerCode:       dev.LockerCode(),
	}
	if err := uc.worker.Enqueue(job); err != nil {
		// Unwind: a job that never entered the queue leaves no live session
		// or pending artifact behind.
		if ferr := artifact.MarkFailed("capture queue full"); ferr == nil {
			if uerr := uc.artifactRepo.Update(ctx, artifact); uerr != nil {
				uc.logger.Warnw("failed to persist queue-full artifact", "artifact_id", artifact.ID(), "error", uerr)
			}
		}
		if _, cerr := uc.tracker.Cancel(ctx, s.SID()); cerr != nil {
			uc.logger.Warnw("failed to cancel session after queue-full", "sid", s.SID(), "error", cerr)
		}
		return nil, err
	}

	uc.logger.Infow("capture requested",
		"customer_id", cust.ID(),
		"sid", s.SID(),
		"device_id", dev.ID(),
		"has_tracking", cmd.TrackingID != "",
	)

	return &RequestCaptureResult{Session: s, Artifact: artifact, Device: dev}, nil
}

// resolveDevice claims the subscription's bound device for this
// session, falling back to a fresh assignment when the binding is gone
// or raced away. Every path goes through the available->in_use guard,
// so a device serving a live session can never be handed out again.
func (uc *RequestCaptureUseCase) resolveDevice(ctx context.Context, sub *subscription.Subscription) (*device.Device, error) {
	if sub.DeviceID() != nil {
		boundID := *sub.DeviceID()
		switch err := uc.deviceRepo.Claim(ctx, boundID); {
		case err == nil:
			dev, err := uc.deviceRepo.GetByID(ctx, boundID)
			if err != nil {
				if rerr := uc.allocator.Release(ctx, boundID); rerr != nil {
					uc.logger.Warnw("failed to release claimed device", "device_id", boundID, "error", rerr)
				}
				return nil, err
			}
			return dev, nil
		case errors.Is(err, device.ErrDeviceNotAvailable):
			// Bound device left the pool or lost the claim; reassign.
			uc.logger.Warnw("bound device not claimable, reassigning",
				"subscription_id", sub.ID(), "device_id", boundID)
		default:
			return nil, err
		}
	}

	dev, err := uc.allocator.Assign(ctx)
	if err != nil {
		return nil, err
	}
	if err := sub.AssignDevice(dev.ID()); err != nil {
		return nil, err
	}
	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to persist lazy device binding: %w", err)
	}
	return dev, nil
}

// abortSession retires a session whose capture never materialized.
func (uc *RequestCaptureUseCase) abortSession(ctx context.Context, s *session.RentalSession) {
	if _, err := uc.tracker.Cancel(ctx, s.SID()); err != nil {
		uc.logger.Warnw("failed to cancel aborted session", "sid", s.SID(), "error", err)
	}
}
