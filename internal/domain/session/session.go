package session

import (
	"fmt"
	"time"

	"dropcode/internal/shared/id"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the session has ended. A device is only
// released back to the pool once its owning session is terminal.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusCancelled
}

func (s Status) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPending:   {StatusActive, StatusCancelled, StatusExpired},
		StatusActive:    {StatusCompleted, StatusCancelled, StatusExpired},
		StatusCompleted: {},
		StatusExpired:   {},
		StatusCancelled: {},
	}

	allowed, exists := transitions[s]
	if !exists {
		return false
	}

	for _, allowedStatus := range allowed {
		if allowedStatus == target {
			return true
		}
	}
	return false
}

var ValidStatuses = map[Status]bool{
	StatusPending:   true,
	StatusActive:    true,
	StatusCompleted: true,
	StatusExpired:   true,
	StatusCancelled: true,
}

// RentalSession is one bounded-duration occupation of a device by a
// customer. It starts pending and becomes active only once a device is
// bound.
type RentalSession struct {
	dbID            uint
	sid             string
	customerID      uint
	deviceID        *uint
	status          Status
	durationMinutes int
	startedAt       *time.Time
	expiresAt       *time.Time
	completedAt     *time.Time
	version         int
	createdAt       time.Time
	updatedAt       time.Time
}

// NewRentalSession opens a pending session for a customer.
func NewRentalSession(customerID uint, durationMinutes int) (*RentalSession, error) {
	if customerID == 0 {
		return nil, fmt.Errorf("customer ID is required")
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("duration minutes must be positive")
	}

	now := time.Now()
	return &RentalSession{
		sid:             id.MustGenerateWithPrefix(id.PrefixSession, id.DefaultLength),
		customerID:      customerID,
		status:          StatusPending,
		durationMinutes: durationMinutes,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// ReconstructRentalSession reconstructs a session from persistence.
func ReconstructRentalSession(
	dbID uint,
	sid string,
	customerID uint,
	deviceID *uint,
	status Status,
	durationMinutes int,
	startedAt, expiresAt, completedAt *time.Time,
	version int,
	createdAt, updatedAt time.Time,
) (*RentalSession, error) {
	if dbID == 0 {
		return nil, fmt.Errorf("session ID cannot be zero")
	}
	if sid == "" {
		return nil, fmt.Errorf("session SID is required")
	}
	if customerID == 0 {
		return nil, fmt.Errorf("customer ID is required")
	}
	if !ValidStatuses[status] {
		return nil, fmt.Errorf("invalid session status: %s", status)
	}

	return &RentalSession{
		dbID:            dbID,
		sid:             sid,
		customerID:      customerID,
		deviceID:        deviceID,
		status:          status,
		durationMinutes: durationMinutes,
		startedAt:       startedAt,
		expiresAt:       expiresAt,
		completedAt:     completedAt,
		version:         version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}, nil
}

func (s *RentalSession) ID() uint               { return s.dbID }
func (s *RentalSession) SID() string            { return s.sid }
func (s *RentalSession) CustomerID() uint       { return s.customerID }
func (s *RentalSession) DeviceID() *uint        { return s.deviceID }
func (s *RentalSession) Status() Status         { return s.status }
func (s *RentalSession) DurationMinutes() int   { return s.durationMinutes }
func (s *RentalSession) StartedAt() *time.Time  { return s.startedAt }
func (s *RentalSession) ExpiresAt() *time.Time  { return s.expiresAt }
func (s *RentalSession) CompletedAt() *time.Time { return s.completedAt }
func (s *RentalSession) Version() int           { return s.version }
func (s *RentalSession) CreatedAt() time.Time   { return s.createdAt }
func (s *RentalSession) UpdatedAt() time.Time   { return s.updatedAt }

// SetID sets the session database ID (only for persistence layer use)
func (s *RentalSession) SetID(dbID uint) error {
	if s.dbID != 0 {
		return fmt.Errorf("session ID is already set")
	}
	if dbID == 0 {
		return fmt.Errorf("session ID cannot be zero")
	}
	s.dbID = dbID
	return nil
}

// Start binds a device and activates the session, stamping started_at
// and expires_at = started_at + duration.
func (s *RentalSession) Start(deviceID uint) error {
	if deviceID == 0 {
		return fmt.Errorf("device ID is required")
	}
	if !s.status.CanTransitionTo(StatusActive) {
		return ErrInvalidTransition(s.status.String(), StatusActive.String())
	}

	now := time.Now()
	expires := now.Add(time.Duration(s.durationMinutes) * time.Minute)
	s.deviceID = &deviceID
	s.status = StatusActive
	s.startedAt = &now
	s.expiresAt = &expires
	s.touch()
	return nil
}

// Complete stamps completed_at. It deliberately does not touch device
// status: completion is reached via success, failure, or cancellation,
// and each caller wants a different device-status outcome.
func (s *RentalSession) Complete() error {
	if s.status == StatusCompleted {
		return nil
	}
	if !s.status.CanTransitionTo(StatusCompleted) {
		return ErrInvalidTransition(s.status.String(), StatusCompleted.String())
	}
	now := time.Now()
	s.status = StatusCompleted
	s.completedAt = &now
	s.touch()
	return nil
}

// Cancel ends the session without completion.
func (s *RentalSession) Cancel() error {
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

// MarkExpired applies the time-driven expiry transition.
func (s *RentalSession) MarkExpired() error {
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

// IsLogicallyExpired reports "status=active but expires_at in the
// past". No background process is required for a consumer to observe
// expiry.
func (s *RentalSession) IsLogicallyExpired() bool {
	if s.status != StatusActive {
		return false
	}
	if s.expiresAt == nil {
		return false
	}
	return s.expiresAt.Before(time.Now())
}

func (s *RentalSession) touch() {
	s.updatedAt = time.Now()
	s.version++
}
