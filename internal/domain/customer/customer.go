package customer

import (
	"fmt"
	"time"
)

// AwaitingInput marks the conversational step the customer is parked on.
// It is persisted with the customer so a multi-turn flow survives a
// process restart instead of living in an in-memory map.
type AwaitingInput string

const (
	AwaitingNone     AwaitingInput = "none"
	AwaitingAsset    AwaitingInput = "asset"
	AwaitingTracking AwaitingInput = "tracking"
)

var validAwaiting = map[AwaitingInput]bool{
	AwaitingNone:     true,
	AwaitingAsset:    true,
	AwaitingTracking: true,
}

// Customer is a messaging-platform user of the rental service.
type Customer struct {
	id            uint
	telegramID    int64
	blocked       bool
	captureCount  uint
	awaitingInput AwaitingInput
	pendingPlanID *uint
	version       int
	createdAt     time.Time
	updatedAt     time.Time
}

// NewCustomer registers a customer by messaging-platform user id.
func NewCustomer(telegramID int64) (*Customer, error) {
	if telegramID == 0 {
		return nil, fmt.Errorf("telegram ID is required")
	}

	now := time.Now()
	return &Customer{
		telegramID:    telegramID,
		awaitingInput: AwaitingNone,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructCustomer reconstructs a customer from persistence.
func ReconstructCustomer(
	id uint,
	telegramID int64,
	blocked bool,
	captureCount uint,
	awaitingInput AwaitingInput,
	pendingPlanID *uint,
	version int,
	createdAt, updatedAt time.Time,
) (*Customer, error) {
	if id == 0 {
		return nil, fmt.Errorf("customer ID cannot be zero")
	}
	if telegramID == 0 {
		return nil, fmt.Errorf("telegram ID is required")
	}
	if awaitingInput == "" {
		awaitingInput = AwaitingNone
	}
	if !validAwaiting[awaitingInput] {
		return nil, fmt.Errorf("invalid awaiting input state: %s", awaitingInput)
	}

	return &Customer{
		id:            id,
		telegramID:    telegramID,
		blocked:       blocked,
		captureCount:  captureCount,
		awaitingInput: awaitingInput,
		pendingPlanID: pendingPlanID,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}, nil
}

func (c *Customer) ID() uint                     { return c.id }
func (c *Customer) TelegramID() int64            { return c.telegramID }
func (c *Customer) IsBlocked() bool              { return c.blocked }
func (c *Customer) CaptureCount() uint           { return c.captureCount }
func (c *Customer) AwaitingInput() AwaitingInput { return c.awaitingInput }
func (c *Customer) PendingPlanID() *uint         { return c.pendingPlanID }
func (c *Customer) Version() int                 { return c.version }
func (c *Customer) CreatedAt() time.Time         { return c.createdAt }
func (c *Customer) UpdatedAt() time.Time         { return c.updatedAt }

// SetID sets the customer ID (only for persistence layer use)
func (c *Customer) SetID(id uint) error {
	if c.id != 0 {
		return fmt.Errorf("customer ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("customer ID cannot be zero")
	}
	c.id = id
	return nil
}

// Block flags the customer; only administrative action calls this.
func (c *Customer) Block() {
	if c.blocked {
		return
	}
	c.blocked = true
	c.touch()
}

// Unblock clears the block flag.
func (c *Customer) Unblock() {
	if !c.blocked {
		return
	}
	c.blocked = false
	c.touch()
}

// RecordCapture bumps the lifetime usage counter.
func (c *Customer) RecordCapture() {
	c.captureCount++
	c.touch()
}

// AwaitAssetChoice parks the customer on asset selection for a plan.
func (c *Customer) AwaitAssetChoice(planID uint) error {
	if planID == 0 {
		return fmt.Errorf("plan ID is required")
	}
	c.awaitingInput = AwaitingAsset
	c.pendingPlanID = &planID
	c.touch()
	return nil
}

// AwaitTrackingID parks the customer on tracking-number entry.
func (c *Customer) AwaitTrackingID() {
	c.awaitingInput = AwaitingTracking
	c.pendingPlanID = nil
	c.touch()
}

// ClearAwaitingInput consumes the pending conversational state. Called
// on consumption or on any superseding event.
func (c *Customer) ClearAwaitingInput() {
	if c.awaitingInput == AwaitingNone && c.pendingPlanID == nil {
		return
	}
	c.awaitingInput = AwaitingNone
	c.pendingPlanID = nil
	c.touch()
}

func (c *Customer) touch() {
	c.updatedAt = time.Now()
	c.version++
}
