package session

import (
	"fmt"
	"time"

	"dropcode/internal/shared/id"
)

type ArtifactStatus string

const (
	ArtifactPending   ArtifactStatus = "pending"
	ArtifactCaptured  ArtifactStatus = "captured"
	ArtifactDelivered ArtifactStatus = "delivered"
	ArtifactFailed    ArtifactStatus = "failed"
)

func (s ArtifactStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the artifact reached delivered or failed.
// captured is a transient intermediate confirming the image exists
// before delivery to the customer succeeds.
func (s ArtifactStatus) IsTerminal() bool {
	return s == ArtifactDelivered || s == ArtifactFailed
}

func (s ArtifactStatus) CanTransitionTo(target ArtifactStatus) bool {
	transitions := map[ArtifactStatus][]ArtifactStatus{
		ArtifactPending:   {ArtifactCaptured, ArtifactFailed},
		ArtifactCaptured:  {ArtifactDelivered, ArtifactFailed},
		ArtifactDelivered: {},
		ArtifactFailed:    {},
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

var ValidArtifactStatuses = map[ArtifactStatus]bool{
	ArtifactPending:   true,
	ArtifactCaptured:  true,
	ArtifactDelivered: true,
	ArtifactFailed:    true,
}

// CaptureArtifact is the derived product of a session: the screenshot
// believed to contain the pickup code, keyed by the customer-supplied
// tracking identifier.
type CaptureArtifact struct {
	dbID       uint
	sid        string
	sessionID  uint
	trackingID string
	status     ArtifactStatus
	imageName  string
	failReason string
	version    int
	createdAt  time.Time
	updatedAt  time.Time
}

// NewCaptureArtifact creates a pending artifact for a session.
func NewCaptureArtifact(sessionID uint, trackingID string) (*CaptureArtifact, error) {
	if sessionID == 0 {
		return nil, fmt.Errorf("session ID is required")
	}

	now := time.Now()
	return &CaptureArtifact{
		sid:        id.MustGenerateWithPrefix(id.PrefixArtifact, id.DefaultLength),
		sessionID:  sessionID,
		trackingID: trackingID,
		status:     ArtifactPending,
		version:    1,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructCaptureArtifact reconstructs an artifact from persistence.
func ReconstructCaptureArtifact(
	dbID uint,
	sid string,
	sessionID uint,
	trackingID string,
	status ArtifactStatus,
	imageName, failReason string,
	version int,
	createdAt, updatedAt time.Time,
) (*CaptureArtifact, error) {
	if dbID == 0 {
		return nil, fmt.Errorf("artifact ID cannot be zero")
	}
	if sessionID == 0 {
		return nil, fmt.Errorf("session ID is required")
	}
	if !ValidArtifactStatuses[status] {
		return nil, fmt.Errorf("invalid artifact status: %s", status)
	}

	return &CaptureArtifact{
		dbID:       dbID,
		sid:        sid,
		sessionID:  sessionID,
		trackingID: trackingID,
		status:     status,
		imageName:  imageName,
		failReason: failReason,
		version:    version,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}, nil
}

func (a *CaptureArtifact) ID() uint               { return a.dbID }
func (a *CaptureArtifact) SID() string            { return a.sid }
func (a *CaptureArtifact) SessionID() uint        { return a.sessionID }
func (a *CaptureArtifact) TrackingID() string     { return a.trackingID }
func (a *CaptureArtifact) Status() ArtifactStatus { return a.status }
func (a *CaptureArtifact) ImageName() string      { return a.imageName }
func (a *CaptureArtifact) FailReason() string     { return a.failReason }
func (a *CaptureArtifact) Version() int           { return a.version }
func (a *CaptureArtifact) CreatedAt() time.Time   { return a.createdAt }
func (a *CaptureArtifact) UpdatedAt() time.Time   { return a.updatedAt }

// SetID sets the artifact database ID (only for persistence layer use)
func (a *CaptureArtifact) SetID(dbID uint) error {
	if a.dbID != 0 {
		return fmt.Errorf("artifact ID is already set")
	}
	if dbID == 0 {
		return fmt.Errorf("artifact ID cannot be zero")
	}
	a.dbID = dbID
	return nil
}

// MarkCaptured records the stored image name once the screenshot exists.
func (a *CaptureArtifact) MarkCaptured(imageName string) error {
	if imageName == "" {
		return fmt.Errorf("image name is required")
	}
	if !a.status.CanTransitionTo(ArtifactCaptured) {
		return ErrInvalidArtifactTransition(a.status.String(), ArtifactCaptured.String())
	}
	a.status = ArtifactCaptured
	a.imageName = imageName
	a.touch()
	return nil
}

// MarkDelivered records successful delivery of the image to the customer.
func (a *CaptureArtifact) MarkDelivered() error {
	if a.status == ArtifactDelivered {
		return nil
	}
	if !a.status.CanTransitionTo(ArtifactDelivered) {
		return ErrInvalidArtifactTransition(a.status.String(), ArtifactDelivered.String())
	}
	a.status = ArtifactDelivered
	a.touch()
	return nil
}

// MarkFailed records a terminal failure with a reason. A failed capture
// never leaves the artifact stuck in pending.
func (a *CaptureArtifact) MarkFailed(reason string) error {
	if a.status == ArtifactFailed {
		return nil
	}
	if !a.status.CanTransitionTo(ArtifactFailed) {
		return ErrInvalidArtifactTransition(a.status.String(), ArtifactFailed.String())
	}
	a.status = ArtifactFailed
	a.failReason = reason
	a.touch()
	return nil
}

func (a *CaptureArtifact) touch() {
	a.updatedAt = time.Now()
	a.version++
}
