package usecases

import (
	"context"
	"fmt"

	appdevice "dropcode/internal/application/device"
	"dropcode/internal/domain/customer"
	"dropcode/internal/domain/subscription"
	"dropcode/internal/shared/logger"
)

// CancelSubscriptionCommand cancels a pending or active subscription.
type CancelSubscriptionCommand struct {
	SubscriptionID uint
	Reason         string
}

// CancelSubscriptionUseCase applies the explicit cancel transition and
// frees the bound device, if any. Cancelling twice is a no-op success.
type CancelSubscriptionUseCase struct {
	subscriptionRepo subscription.Repository
	customerRepo     customer.Repository
	allocator        *appdevice.Allocator
	notifier         CustomerNotifier
	logger           logger.Interface
}

func NewCancelSubscriptionUseCase(
	subscriptionRepo subscription.Repository,
	customerRepo customer.Repository,
	allocator *appdevice.Allocator,
	notifier CustomerNotifier,
	log logger.Interface,
) *CancelSubscriptionUseCase {
	return &CancelSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		customerRepo:     customerRepo,
		allocator:        allocator,
		notifier:         notifier,
		logger:           log,
	}
}

func (uc *CancelSubscriptionUseCase) Execute(ctx context.Context, cmd CancelSubscriptionCommand) (*subscription.Subscription, error) {
	sub, err := uc.subscriptionRepo.GetByID(ctx, cmd.SubscriptionID)
	if err != nil {
		return nil, err
	}

	if err := sub.Cancel(); err != nil {
		return nil, err
	}
	if cmd.Reason != "" {
		sub.SetMetadata("cancel_reason", cmd.Reason)
	}

	boundDevice := sub.DeviceID()
	sub.UnassignDevice()

	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to persist cancellation: %w", err)
	}

	if boundDevice != nil {
		if err := uc.allocator.Release(ctx, *boundDevice); err != nil {
			uc.logger.Warnw("failed to release device on cancel",
				"subscription_id", sub.ID(), "device_id", *boundDevice, "error", err)
		}
	}

	uc.notifyCancelled(ctx, sub)

	uc.logger.Infow("subscription cancelled", "subscription_id", sub.ID(), "customer_id", sub.CustomerID())
	return sub, nil
}

func (uc *CancelSubscriptionUseCase) notifyCancelled(ctx context.Context, sub *subscription.Subscription) {
	if uc.notifier == nil {
		return
	}
	cust, err := uc.customerRepo.GetByID(ctx, sub.CustomerID())
	if err != nil {
		uc.logger.Warnw("failed to load customer for notification", "customer_id", sub.CustomerID(), "error", err)
		return
	}
	if err := uc.notifier.SendMessage(ctx, cust.TelegramID(), "Your subscription has been cancelled."); err != nil {
		uc.logger.Warnw("failed to notify customer", "customer_id", cust.ID(), "error", err)
	}
}
