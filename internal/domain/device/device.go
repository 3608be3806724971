package device

import (
	"fmt"
	"time"
)

// Device represents one remotely hosted cloud phone instance tracked in
// the rental pool. Identity is the provider name plus the provider-native
// device id; pool status is bookkeeping owned by the allocator and is
// independent of the provider-side runtime state.
type Device struct {
	id               uint
	provider         string
	providerDeviceID string
	name             string
	courierName      string
	lockerCode       string
	status           Status
	lastUsedAt       *time.Time
	version          int
	createdAt        time.Time
	updatedAt        time.Time
}

// NewDevice creates a new pool device for a provider-native device id.
func NewDevice(provider, providerDeviceID, name string) (*Device, error) {
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if providerDeviceID == "" {
		return nil, fmt.Errorf("provider device ID is required")
	}

	now := time.Now()
	return &Device{
		provider:         provider,
		providerDeviceID: providerDeviceID,
		name:             name,
		status:           StatusAvailable,
		version:          1,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// ReconstructDevice reconstructs a device from persistence.
func ReconstructDevice(
	id uint,
	provider, providerDeviceID, name string,
	courierName, lockerCode string,
	status Status,
	lastUsedAt *time.Time,
	version int,
	createdAt, updatedAt time.Time,
) (*Device, error) {
	if id == 0 {
		return nil, fmt.Errorf("device ID cannot be zero")
	}
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if providerDeviceID == "" {
		return nil, fmt.Errorf("provider device ID is required")
	}
	if !ValidStatuses[status] {
		return nil, fmt.Errorf("invalid device status: %s", status)
	}

	return &Device{
		id:               id,
		provider:         provider,
		providerDeviceID: providerDeviceID,
		name:             name,
		courierName:      courierName,
		lockerCode:       lockerCode,
		status:           status,
		lastUsedAt:       lastUsedAt,
		version:          version,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}, nil
}

func (d *Device) ID() uint                 { return d.id }
func (d *Device) Provider() string        { return d.provider }
func (d *Device) ProviderDeviceID() string { return d.providerDeviceID }
func (d *Device) Name() string            { return d.name }
func (d *Device) CourierName() string     { return d.courierName }
func (d *Device) LockerCode() string      { return d.lockerCode }
func (d *Device) Status() Status          { return d.status }
func (d *Device) LastUsedAt() *time.Time  { return d.lastUsedAt }
func (d *Device) Version() int            { return d.version }
func (d *Device) CreatedAt() time.Time    { return d.createdAt }
func (d *Device) UpdatedAt() time.Time    { return d.updatedAt }

// SetID sets the device ID (only for persistence layer use)
func (d *Device) SetID(id uint) error {
	if d.id != 0 {
		return fmt.Errorf("device ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("device ID cannot be zero")
	}
	d.id = id
	return nil
}

// HasDeliveryIdentity reports whether the device carries the courier
// name + locker code pair the customer needs for package drop-off.
func (d *Device) HasDeliveryIdentity() bool {
	return d.courierName != "" && d.lockerCode != ""
}

// SetDeliveryIdentity updates the display-only delivery identity fields.
func (d *Device) SetDeliveryIdentity(courierName, lockerCode string) {
	if d.courierName == courierName && d.lockerCode == lockerCode {
		return
	}
	d.courierName = courierName
	d.lockerCode = lockerCode
	d.touch()
}

// Rename updates the display name.
func (d *Device) Rename(name string) {
	if d.name == name {
		return
	}
	d.name = name
	d.touch()
}

// MarkInUse transitions the device into active rental use and stamps
// the last-used timestamp.
func (d *Device) MarkInUse() error {
	if d.status == StatusInUse {
		return nil
	}
	if !d.status.CanTransitionTo(StatusInUse) {
		return ErrInvalidTransition(d.status.String(), StatusInUse.String())
	}
	now := time.Now()
	d.status = StatusInUse
	d.lastUsedAt = &now
	d.touch()
	return nil
}

// Release returns the device to the available pool. Release is pure
// bookkeeping; it does not verify the provider-side device is idle.
func (d *Device) Release() {
	if d.status == StatusAvailable {
		return
	}
	d.status = StatusAvailable
	d.touch()
}

// MarkStatus applies an administrative or sync-driven status override.
func (d *Device) MarkStatus(status Status) error {
	if !ValidStatuses[status] {
		return fmt.Errorf("invalid device status: %s", status)
	}
	if d.status == status {
		return nil
	}
	if !d.status.CanTransitionTo(status) {
		return ErrInvalidTransition(d.status.String(), status.String())
	}
	d.status = status
	d.touch()
	return nil
}

func (d *Device) touch() {
	d.updatedAt = time.Now()
	d.version++
}
