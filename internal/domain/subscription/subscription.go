package subscription

import (
	"fmt"
	"time"
)

// Subscription is one customer's paid (or pending) access period. It
// optionally references the pool device assigned for the period; an
// active subscription without a device is valid and gets one lazily on
// the first capture request.
type Subscription struct {
	id            uint
	customerID    uint
	planID        uint
	deviceID      *uint
	status        Status
	paymentMethod string
	invoiceID     string
	asset         string
	assetAmount   string
	paidAt        *time.Time
	startsAt      *time.Time
	expiresAt     *time.Time
	metadata      map[string]interface{}
	version       int
	createdAt     time.Time
	updatedAt     time.Time
}

// NewSubscription creates a subscription awaiting payment. The invoice
// id and quoted asset amount come from the payment processor at
// pending_payment entry.
func NewSubscription(customerID, planID uint, paymentMethod, invoiceID, asset, assetAmount string) (*Subscription, error) {
	if customerID == 0 {
		return nil, fmt.Errorf("customer ID is required")
	}
	if planID == 0 {
		return nil, fmt.Errorf("plan ID is required")
	}
	if invoiceID == "" {
		return nil, fmt.Errorf("invoice ID is required")
	}

	now := time.Now()
	return &Subscription{
		customerID:    customerID,
		planID:        planID,
		status:        StatusPendingPayment,
		paymentMethod: paymentMethod,
		invoiceID:     invoiceID,
		asset:         asset,
		assetAmount:   assetAmount,
		metadata:      make(map[string]interface{}),
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructSubscription reconstructs a subscription from persistence.
func ReconstructSubscription(
	id, customerID, planID uint,
	deviceID *uint,
	status Status,
	paymentMethod, invoiceID, asset, assetAmount string,
	paidAt, startsAt, expiresAt *time.Time,
	metadata map[string]interface{},
	version int,
	createdAt, updatedAt time.Time,
) (*Subscription, error) {
	if id == 0 {
		return nil, fmt.Errorf("subscription ID cannot be zero")
	}
	if customerID == 0 {
		return nil, fmt.Errorf("customer ID is required")
	}
	if planID == 0 {
		return nil, fmt.Errorf("plan ID is required")
	}
	if !ValidStatuses[status] {
		return nil, fmt.Errorf("invalid subscription status: %s", status)
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return &Subscription{
		id:            id,
		customerID:    customerID,
		planID:        planID,
		deviceID:      deviceID,
		status:        status,
		paymentMethod: paymentMethod,
		invoiceID:     invoiceID,
		asset:         asset,
		assetAmount:   assetAmount,
		paidAt:        paidAt,
		startsAt:      startsAt,
		expiresAt:     expiresAt,
		metadata:      metadata,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}, nil
}

func (s *Subscription) ID() uint                          { return s.id }
func (s *Subscription) CustomerID() uint                  { return s.customerID }
func (s *Subscription) PlanID() uint                      { return s.planID }
func (s *Subscription) DeviceID() *uint                   { return s.deviceID }
func (s *Subscription) Status() Status                    { return s.status }
func (s *Subscription) PaymentMethod() string             { return s.paymentMethod }
func (s *Subscription) InvoiceID() string                 { return s.invoiceID }
func (s *Subscription) Asset() string                     { return s.asset }
func (s *Subscription) AssetAmount() string               { return s.assetAmount }
func (s *Subscription) PaidAt() *time.Time                { return s.paidAt }
func (s *Subscription) StartsAt() *time.Time              { return s.startsAt }
func (s *Subscription) ExpiresAt() *time.Time             { return s.expiresAt }
func (s *Subscription) Metadata() map[string]interface{}  { return s.metadata }
func (s *Subscription) Version() int                      { return s.version }
func (s *Subscription) CreatedAt() time.Time              { return s.createdAt }
func (s *Subscription) UpdatedAt() time.Time              { return s.updatedAt }

// SetID sets the subscription ID (only for persistence layer use)
func (s *Subscription) SetID(id uint) error {
	if s.id != 0 {
		return fmt.Errorf("subscription ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("subscription ID cannot be zero")
	}
	s.id = id
	return nil
}

// SetMetadata sets a metadata key.
func (s *Subscription) SetMetadata(key string, value interface{}) {
	if s.metadata == nil {
		s.metadata = make(map[string]interface{})
	}
	s.metadata[key] = value
	s.touch()
}

// Activate transitions pending_payment -> active. The call is
// idempotent: activating an already-active subscription is a no-op
// success, so duplicate payment callbacks do not double-apply side
// effects. Activating a cancelled subscription returns
// ErrSubscriptionCancelled; callers decide whether that surfaces
// (cancel-then-pay must never reactivate).
func (s *Subscription) Activate(paidAt time.Time, durationDays int) error {
	if s.status == StatusActive {
		return nil
	}
	if s.status == StatusCancelled {
		return ErrSubscriptionCancelled
	}
	if !s.status.CanTransitionTo(StatusActive) {
		return ErrInvalidTransition(s.status.String(), StatusActive.String())
	}
	if durationDays <= 0 {
		return fmt.Errorf("duration days must be positive")
	}

	expires := paidAt.Add(time.Duration(durationDays) * 24 * time.Hour)
	s.status = StatusActive
	s.paidAt = &paidAt
	s.startsAt = &paidAt
	s.expiresAt = &expires
	s.touch()
	return nil
}

// Cancel transitions pending_payment|active -> cancelled. Cancelling an
// already-cancelled subscription is a no-op success.
func (s *Subscription) Cancel() error {
	if s.status == StatusCancelled {
		return nil
	}
	if !s.status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition(s.status.String(), StatusCancelled.String())
	}
	s.status = StatusCancelled
	s.touch()
	return nil
}

// MarkExpired transitions to expired. Expiry is time-driven; this is a
// bookkeeping transition applied by the sweep job.
func (s *Subscription) MarkExpired() error {
	if s.status == StatusExpired {
		return nil
	}
	if !s.status.CanTransitionTo(StatusExpired) {
		return ErrInvalidTransition(s.status.String(), StatusExpired.String())
	}
	s.status = StatusExpired
	s.touch()
	return nil
}

// AssignDevice binds a pool device to the subscription.
func (s *Subscription) AssignDevice(deviceID uint) error {
	if deviceID == 0 {
		return fmt.Errorf("device ID is required")
	}
	s.deviceID = &deviceID
	s.touch()
	return nil
}

// UnassignDevice clears the device binding.
func (s *Subscription) UnassignDevice() {
	if s.deviceID == nil {
		return
	}
	s.deviceID = nil
	s.touch()
}

// IsCurrentlyValid reports status active with expires_at in the future.
// "status=active but expires_at in the past" reads as expired even
// before the sweep job catches up.
func (s *Subscription) IsCurrentlyValid() bool {
	if !s.status.CanUseService() {
		return false
	}
	if s.expiresAt == nil {
		return false
	}
	return s.expiresAt.After(time.Now())
}

func (s *Subscription) touch() {
	s.updatedAt = time.Now()
	s.version++
}
