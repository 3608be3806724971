package usecases

import (
	"context"

	appdevice "dropcode/internal/application/device"
	"dropcode/internal/domain/subscription"
	"dropcode/internal/shared/logger"
)

// ExpireSubscriptionsUseCase is the time-driven bookkeeping sweep: it
// retires active subscriptions past their expiry and cancels stale
// pending_payment subscriptions whose invoices can no longer be paid.
// A customer reading their own subscription never depends on this
// sweep; validity is always re-derived from expires_at.
type ExpireSubscriptionsUseCase struct {
	subscriptionRepo subscription.Repository
	allocator        *appdevice.Allocator
	invoiceExpirySec int
	logger           logger.Interface
}

func NewExpireSubscriptionsUseCase(
	subscriptionRepo subscription.Repository,
	allocator *appdevice.Allocator,
	invoiceExpirySec int,
	log logger.Interface,
) *ExpireSubscriptionsUseCase {
	return &ExpireSubscriptionsUseCase{
		subscriptionRepo: subscriptionRepo,
		allocator:        allocator,
		invoiceExpirySec: invoiceExpirySec,
		logger:           log,
	}
}

// Execute runs both sweeps. Individual failures are logged and skipped;
// the next run retries them.
func (uc *ExpireSubscriptionsUseCase) Execute(ctx context.Context) {
	uc.sweepExpiredActive(ctx)
	uc.sweepStalePending(ctx)
}

func (uc *ExpireSubscriptionsUseCase) sweepExpiredActive(ctx context.Context) {
	expired, err := uc.subscriptionRepo.ListExpiredActive(ctx)
	if err != nil {
		uc.logger.Errorw("failed to list expired subscriptions", "error", err)
		return
	}

	for _, sub := range expired {
		if err := sub.MarkExpired(); err != nil {
			uc.logger.Warnw("failed to mark subscription expired", "subscription_id", sub.ID(), "error", err)
			continue
		}

		boundDevice := sub.DeviceID()
		sub.UnassignDevice()

		if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
			uc.logger.Warnw("failed to persist subscription expiry", "subscription_id", sub.ID(), "error", err)
			continue
		}

		if boundDevice != nil {
			if err := uc.allocator.Release(ctx, *boundDevice); err != nil {
				uc.logger.Warnw("failed to release device on expiry",
					"subscription_id", sub.ID(), "device_id", *boundDevice, "error", err)
			}
		}
		uc.logger.Infow("subscription expired", "subscription_id", sub.ID(), "customer_id", sub.CustomerID())
	}
}

func (uc *ExpireSubscriptionsUseCase) sweepStalePending(ctx context.Context) {
	stale, err := uc.subscriptionRepo.ListStalePending(ctx, uc.invoiceExpirySec)
	if err != nil {
		uc.logger.Errorw("failed to list stale pending subscriptions", "error", err)
		return
	}

	for _, sub := range stale {
		if err := sub.Cancel(); err != nil {
			uc.logger.Warnw("failed to cancel stale pending subscription", "subscription_id", sub.ID(), "error", err)
			continue
		}
		sub.SetMetadata("cancel_reason", "invoice expired unpaid")
		if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
			uc.logger.Warnw("failed to persist stale pending cancellation", "subscription_id", sub.ID(), "error", err)
			continue
		}
		uc.logger.Infow("stale pending subscription cancelled", "subscription_id", sub.ID())
	}
}
