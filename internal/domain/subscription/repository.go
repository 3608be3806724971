package subscription

import "context"

// Repository persists subscriptions.
type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	Update(ctx context.Context, s *Subscription) error
	GetByID(ctx context.Context, id uint) (*Subscription, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (*Subscription, error)
	List(ctx context.Context, page, pageSize int) ([]*Subscription, int64, error)

	// GetPendingByCustomer returns the customer's pending_payment
	// subscription, if any. At most one exists by advisory invariant.
	GetPendingByCustomer(ctx context.Context, customerID uint) (*Subscription, error)

	// GetActiveByCustomer returns the customer's currently valid active
	// subscription (status active and expires_at in the future), if any.
	GetActiveByCustomer(ctx context.Context, customerID uint) (*Subscription, error)

	// ListExpiredActive returns active subscriptions whose expires_at has
	// passed, for the expiry sweep.
	ListExpiredActive(ctx context.Context) ([]*Subscription, error)

	// ListStalePending returns pending_payment subscriptions created
	// before the cutoff, for the unpaid-invoice sweep.
	ListStalePending(ctx context.Context, olderThanSeconds int) ([]*Subscription, error)
}

// PlanRepository persists rental plans.
type PlanRepository interface {
	Create(ctx context.Context, p *Plan) error
	Update(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, id uint) (*Plan, error)
	ListActive(ctx context.Context) ([]*Plan, error)
}
