package device

import "context"

// Repository persists pool devices.
type Repository interface {
	Create(ctx context.Context, d *Device) error
	Update(ctx context.Context, d *Device) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*Device, error)
	GetByProviderRef(ctx context.Context, provider, providerDeviceID string) (*Device, error)
	List(ctx context.Context, page, pageSize int) ([]*Device, int64, error)

	// ListAvailable returns available devices, those carrying a delivery
	// identity first, preserving insertion order within each group.
	ListAvailable(ctx context.Context) ([]*Device, error)

	// Claim performs the guarded available -> in_use transition. It
	// succeeds only when the row still reads status=available at update
	// time; a raced claim returns ErrDeviceNotAvailable.
	Claim(ctx context.Context, id uint) error
}
