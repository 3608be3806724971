// Package usecases contains the subscription application operations.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"dropcode/internal/application/payment/gateway"
	"dropcode/internal/domain/subscription"
	"dropcode/internal/shared/logger"
)

// RateSource serves the processor's exchange-rate table, possibly
// through a cache.
type RateSource interface {
	GetRates(ctx context.Context) ([]gateway.ExchangeRate, error)
}

// CreateSubscriptionCommand starts a purchase: the customer picked a
// plan and a settlement asset.
type CreateSubscriptionCommand struct {
	CustomerID uint
	PlanID     uint
	Asset      string
}

// CreateSubscriptionResult carries the pending subscription and the
// customer-facing payment link.
type CreateSubscriptionResult struct {
	Subscription *subscription.Subscription
	PayURL       string
}

// CreateSubscriptionUseCase creates a pending_payment subscription with
// a processor invoice. Quote conversion failing (no usable rate) aborts
// the whole operation; no subscription row is written without an
// invoice behind it.
type CreateSubscriptionUseCase struct {
	subscriptionRepo subscription.Repository
	planRepo         subscription.PlanRepository
	processor        gateway.Processor
	rates            RateSource
	invoiceExpirySec int
	logger           logger.Interface
}

func NewCreateSubscriptionUseCase(
	subscriptionRepo subscription.Repository,
	planRepo subscription.PlanRepository,
	processor gateway.Processor,
	rates RateSource,
	invoiceExpirySec int,
	log logger.Interface,
) *CreateSubscriptionUseCase {
	return &CreateSubscriptionUseCase{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		processor:        processor,
		rates:            rates,
		invoiceExpirySec: invoiceExpirySec,
		logger:           log,
	}
}

func (uc *CreateSubscriptionUseCase) Execute(ctx context.Context, cmd CreateSubscriptionCommand) (*CreateSubscriptionResult, error) {
	// Advisory one-pending check. There is no uniqueness constraint; a
	// racing duplicate slips through and simply yields two invoices, only
	// one of which will ever be paid.
	pending, err := uc.subscriptionRepo.GetPendingByCustomer(ctx, cmd.CustomerID)
	if err != nil && !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("failed to check pending subscription: %w", err)
	}
	if pending != nil {
		return nil, subscription.ErrPendingPaymentExists
	}

	plan, err := uc.planRepo.GetByID(ctx, cmd.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive() {
		return nil, subscription.ErrPlanInactive
	}

	rates, err := uc.rates.GetRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exchange rates: %w", err)
	}
	amount, err := gateway.QuoteAsset(plan.PriceEURCents(), cmd.Asset, rates)
	if err != nil {
		return nil, fmt.Errorf("failed to quote %s for plan %s: %w", cmd.Asset, plan.Name(), err)
	}

	invoice, err := uc.processor.CreateInvoice(ctx, gateway.CreateInvoiceRequest{
		Asset:       cmd.Asset,
		Amount:      amount,
		Description: fmt.Sprintf("Plan %s (%d days)", plan.Name(), plan.DurationDays()),
		Payload:     strconv.FormatUint(uint64(cmd.CustomerID), 10),
		ExpiresIn:   invoiceExpiry(uc.invoiceExpirySec),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	sub, err := subscription.NewSubscription(cmd.CustomerID, cmd.PlanID, "crypto", invoice.ID, cmd.Asset, amount)
	if err != nil {
		return nil, err
	}
	if err := uc.subscriptionRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to persist subscription: %w", err)
	}

	uc.logger.Infow("subscription created",
		"subscription_id", sub.ID(),
		"customer_id", cmd.CustomerID,
		"plan_id", cmd.PlanID,
		"invoice_id", invoice.ID,
		"asset", cmd.Asset,
		"amount", amount,
	)

	return &CreateSubscriptionResult{
		Subscription: sub,
		PayURL:       invoice.PayURL,
	}, nil
}

func invoiceExpiry(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
