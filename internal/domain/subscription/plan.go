package subscription

import (
	"fmt"
	"time"
)

// Plan is a rental plan: a duration and a fixed price in the service's
// settlement currency (EUR, stored in cents).
type Plan struct {
	id            uint
	name          string
	durationDays  int
	priceEURCents int64
	active        bool
	sortOrder     int
	version       int
	createdAt     time.Time
	updatedAt     time.Time
}

// NewPlan creates a new rental plan.
func NewPlan(name string, durationDays int, priceEURCents int64) (*Plan, error) {
	if name == "" {
		return nil, fmt.Errorf("plan name is required")
	}
	if len(name) > 100 {
		return nil, fmt.Errorf("plan name too long")
	}
	if durationDays <= 0 {
		return nil, fmt.Errorf("plan duration must be positive")
	}
	if priceEURCents <= 0 {
		return nil, fmt.Errorf("plan price must be positive")
	}

	now := time.Now()
	return &Plan{
		name:          name,
		durationDays:  durationDays,
		priceEURCents: priceEURCents,
		active:        true,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructPlan reconstructs a plan from persistence.
func ReconstructPlan(
	id uint,
	name string,
	durationDays int,
	priceEURCents int64,
	active bool,
	sortOrder int,
	version int,
	createdAt, updatedAt time.Time,
) (*Plan, error) {
	if id == 0 {
		return nil, fmt.Errorf("plan ID cannot be zero")
	}
	if name == "" {
		return nil, fmt.Errorf("plan name is required")
	}
	if durationDays <= 0 {
		return nil, fmt.Errorf("plan duration must be positive")
	}

	return &Plan{
		id:            id,
		name:          name,
		durationDays:  durationDays,
		priceEURCents: priceEURCents,
		active:        active,
		sortOrder:     sortOrder,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}, nil
}

func (p *Plan) ID() uint             { return p.id }
func (p *Plan) Name() string         { return p.name }
func (p *Plan) DurationDays() int    { return p.durationDays }
func (p *Plan) PriceEURCents() int64 { return p.priceEURCents }
func (p *Plan) IsActive() bool       { return p.active }
func (p *Plan) SortOrder() int       { return p.sortOrder }
func (p *Plan) Version() int         { return p.version }
func (p *Plan) CreatedAt() time.Time { return p.createdAt }
func (p *Plan) UpdatedAt() time.Time { return p.updatedAt }

// SetID sets the plan ID (only for persistence layer use)
func (p *Plan) SetID(id uint) error {
	if p.id != 0 {
		return fmt.Errorf("plan ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("plan ID cannot be zero")
	}
	p.id = id
	return nil
}

// Duration returns the plan duration as a time.Duration.
func (p *Plan) Duration() time.Duration {
	return time.Duration(p.durationDays) * 24 * time.Hour
}

// Deactivate hides the plan from new purchases.
func (p *Plan) Deactivate() {
	if !p.active {
		return
	}
	p.active = false
	p.updatedAt = time.Now()
	p.version++
}
