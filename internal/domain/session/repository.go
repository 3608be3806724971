package session

import "context"

// Repository persists rental sessions.
type Repository interface {
	Create(ctx context.Context, s *RentalSession) error
	Update(ctx context.Context, s *RentalSession) error
	GetByID(ctx context.Context, dbID uint) (*RentalSession, error)
	GetBySID(ctx context.Context, sid string) (*RentalSession, error)
	List(ctx context.Context, page, pageSize int) ([]*RentalSession, int64, error)

	// GetLiveByCustomer returns the customer's pending or active session,
	// if any.
	GetLiveByCustomer(ctx context.Context, customerID uint) (*RentalSession, error)

	// GetLiveByDevice returns the non-terminal session currently bound to
	// a device, if any.
	GetLiveByDevice(ctx context.Context, deviceID uint) (*RentalSession, error)

	// ListExpiredActive returns active sessions whose expires_at has
	// passed, for the expiry sweep.
	ListExpiredActive(ctx context.Context) ([]*RentalSession, error)
}

// ArtifactRepository persists capture artifacts.
type ArtifactRepository interface {
	Create(ctx context.Context, a *CaptureArtifact) error
	Update(ctx context.Context, a *CaptureArtifact) error
	GetByID(ctx context.Context, dbID uint) (*CaptureArtifact, error)
	GetBySessionID(ctx context.Context, sessionID uint) (*CaptureArtifact, error)
}
