package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	appdevice "dropcode/internal/application/device"
	"dropcode/internal/domain/customer"
	"dropcode/internal/domain/device"
	"dropcode/internal/domain/subscription"
	"dropcode/internal/shared/biztime"
	"dropcode/internal/shared/logger"
)

// ActivateSubscriptionCommand confirms payment of an invoice, either
// from the processor webhook or an explicit administrative confirm.
type ActivateSubscriptionCommand struct {
	InvoiceID string
	PaidAt    time.Time
}

// ActivateSubscriptionResult reports what the activation did.
type ActivateSubscriptionResult struct {
	Subscription *subscription.Subscription
	// AlreadyActive means this delivery was a duplicate; nothing changed.
	AlreadyActive bool
	// Reactivated is always false for cancelled subscriptions: a payment
	// landing after a cancel is recorded but never reactivates.
	DeviceAssigned bool
	AssignedDevice *device.Device
}

// ActivateSubscriptionUseCase applies the pending_payment -> active
// transition idempotently. Duplicate deliveries are success no-ops so
// the processor stops retrying; device assignment is a side effect that
// never rolls activation back.
type ActivateSubscriptionUseCase struct {
	subscriptionRepo subscription.Repository
	planRepo         subscription.PlanRepository
	customerRepo     customer.Repository
	allocator        *appdevice.Allocator
	notifier         CustomerNotifier
	logger           logger.Interface
}

func NewActivateSubscriptionUseCase(
	subscriptionRepo subscription.Repository,
	planRepo subscription.PlanRepository,
	customerRepo customer.Repository,
	allocator *appdevice.Allocator,
	notifier CustomerNotifier,
	log logger.Interface,
) *ActivateSubscriptionUseCase {
	return &ActivateSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		customerRepo:     customerRepo,
		allocator:        allocator,
		notifier:         notifier,
		logger:           log,
	}
}

func (uc *ActivateSubscriptionUseCase) Execute(ctx context.Context, cmd ActivateSubscriptionCommand) (*ActivateSubscriptionResult, error) {
	sub, err := uc.subscriptionRepo.GetByInvoiceID(ctx, cmd.InvoiceID)
	if err != nil {
		return nil, err
	}

	if sub.Status() == subscription.StatusActive {
		uc.logger.Infow("duplicate activation ignored", "subscription_id", sub.ID(), "invoice_id", cmd.InvoiceID)
		return &ActivateSubscriptionResult{Subscription: sub, AlreadyActive: true}, nil
	}

	plan, err := uc.planRepo.GetByID(ctx, sub.PlanID())
	if err != nil {
		return nil, err
	}

	paidAt := cmd.PaidAt
	if paidAt.IsZero() {
		paidAt = biztime.NowUTC()
	}

	if err := sub.Activate(paidAt, plan.DurationDays()); err != nil {
		if errors.Is(err, subscription.ErrSubscriptionCancelled) {
			// Cancel-then-pay: record that money arrived, do not reactivate,
			// and report success so the processor stops redelivering.
			sub.SetMetadata("payment_after_cancel_at", biztime.FormatMetadataTime(biztime.NowUTC()))
			if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
				uc.logger.Errorw("failed to record post-cancel payment", "subscription_id", sub.ID(), "error", err)
			}
			uc.logger.Warnw("payment received for cancelled subscription",
				"subscription_id", sub.ID(), "invoice_id", cmd.InvoiceID)
			return &ActivateSubscriptionResult{Subscription: sub}, nil
		}
		return nil, err
	}

	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to persist activation: %w", err)
	}

	uc.logger.Infow("subscription activated",
		"subscription_id", sub.ID(),
		"customer_id", sub.CustomerID(),
		"invoice_id", cmd.InvoiceID,
		"expires_at", sub.ExpiresAt(),
	)

	result := &ActivateSubscriptionResult{Subscription: sub}
	uc.assignDevice(ctx, sub, result)
	uc.notifyActivated(ctx, result)
	return result, nil
}

// assignDevice is best-effort: an empty pool leaves the subscription
// active with no device, assigned lazily on the first capture request.
func (uc *ActivateSubscriptionUseCase) assignDevice(ctx context.Context, sub *subscription.Subscription, result *ActivateSubscriptionResult) {
	assigned, err := uc.allocator.Assign(ctx)
	if err != nil {
		if errors.Is(err, device.ErrNoDeviceAvailable) {
			uc.logger.Warnw("no device available at activation, deferring assignment",
				"subscription_id", sub.ID())
			return
		}
		uc.logger.Errorw("device assignment failed at activation",
			"subscription_id", sub.ID(), "error", err)
		return
	}

	if err := sub.AssignDevice(assigned.ID()); err != nil {
		uc.logger.Errorw("failed to bind assigned device", "subscription_id", sub.ID(), "error", err)
		return
	}
	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		uc.logger.Errorw("failed to persist device binding", "subscription_id", sub.ID(), "error", err)
		return
	}

	result.DeviceAssigned = true
	result.AssignedDevice = assigned
}

func (uc *ActivateSubscriptionUseCase) notifyActivated(ctx context.Context, result *ActivateSubscriptionResult) {
	if uc.notifier == nil {
		return
	}
	sub := result.Subscription

	cust, err := uc.customerRepo.GetByID(ctx, sub.CustomerID())
	if err != nil {
		uc.logger.Warnw("failed to load customer for activation notice", "customer_id", sub.CustomerID(), "error", err)
		return
	}

	msg := "Payment received. Your subscription is now active"
	if expires := sub.ExpiresAt(); expires != nil {
		msg += fmt.Sprintf(" until %s", expires.Format("2006-01-02 15:04 MST"))
	}
	msg += "."
	if result.DeviceAssigned && result.AssignedDevice != nil && result.AssignedDevice.HasDeliveryIdentity() {
		msg += fmt.Sprintf("\nCourier: %s\nLocker: %s",
			result.AssignedDevice.CourierName(), result.AssignedDevice.LockerCode())
	}

	if err := uc.notifier.SendMessage(ctx, cust.TelegramID(), msg); err != nil {
		uc.logger.Warnw("failed to notify customer", "customer_id", cust.ID(), "error", err)
	}
}
