// Package device contains the pool allocation service: exclusive
// assignment of scarce pool devices to customers under concurrent
// demand.
package device

import (
	"context"
	"errors"
	"fmt"

	"dropcode/internal/application/capture/devicegateway"
	"dropcode/internal/domain/device"
	"dropcode/internal/shared/logger"
)

// Allocator hands out pool devices. Assignment is claim-loop based:
// candidates are read in preference order, then each is claimed with
// the repository's guarded update, so two concurrent assignments can
// never land on the same device.
type Allocator struct {
	deviceRepo device.Repository
	registry   *devicegateway.Registry
	logger     logger.Interface
}

func NewAllocator(deviceRepo device.Repository, registry *devicegateway.Registry, log logger.Interface) *Allocator {
	return &Allocator{
		deviceRepo: deviceRepo,
		registry:   registry,
		logger:     log.Named("allocator"),
	}
}

// Assign claims one available device, preferring devices that carry a
// delivery identity. It returns ErrNoDeviceAvailable when the pool is
// exhausted or every candidate was raced away.
func (a *Allocator) Assign(ctx context.Context) (*device.Device, error) {
	candidates, err := a.deviceRepo.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list available devices: %w", err)
	}
	if len(candidates) == 0 {
		return nil, device.ErrNoDeviceAvailable
	}

	for _, candidate := range candidates {
		err := a.deviceRepo.Claim(ctx, candidate.ID())
		if err == nil {
			a.logger.Infow("device assigned",
				"device_id", candidate.ID(),
				"provider", candidate.Provider(),
				"has_delivery_identity", candidate.HasDeliveryIdentity(),
			)
			// Re-read so the returned entity reflects the claimed state.
			return a.deviceRepo.GetByID(ctx, candidate.ID())
		}
		if errors.Is(err, device.ErrDeviceNotAvailable) {
			// Raced by a concurrent claim; try the next candidate.
			continue
		}
		return nil, fmt.Errorf("failed to claim device %d: %w", candidate.ID(), err)
	}

	return nil, device.ErrNoDeviceAvailable
}

// Release returns a device to the available pool. Unconditional
// bookkeeping: releasing an already-available device is a no-op.
func (a *Allocator) Release(ctx context.Context, deviceID uint) error {
	d, err := a.deviceRepo.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}

	if d.Status() == device.StatusAvailable {
		return nil
	}
	d.Release()
	if err := a.deviceRepo.Update(ctx, d); err != nil {
		return fmt.Errorf("failed to release device: %w", err)
	}

	a.logger.Infow("device released", "device_id", deviceID)
	return nil
}

// MarkStatus applies an administrative status override (maintenance,
// offline, back to available).
func (a *Allocator) MarkStatus(ctx context.Context, deviceID uint, status device.Status) error {
	d, err := a.deviceRepo.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}
	if err := d.MarkStatus(status); err != nil {
		return err
	}
	if err := a.deviceRepo.Update(ctx, d); err != nil {
		return fmt.Errorf("failed to update device status: %w", err)
	}
	return nil
}

// SyncFromProviders reconciles the pool with each provider's inventory:
// unseen provider devices are registered as new pool entries, and known
// devices whose provider-side state reads offline are flagged unless
// they are mid-rental. It never errors; a provider that fails to list
// simply contributes nothing to this pass.
func (a *Allocator) SyncFromProviders(ctx context.Context) {
	for _, adapter := range a.registry.All() {
		infos := adapter.ListDevices(ctx)
		if len(infos) == 0 {
			continue
		}

		for _, info := range infos {
			a.syncOne(ctx, adapter.Name(), info)
		}
	}
}

func (a *Allocator) syncOne(ctx context.Context, provider string, info devicegateway.DeviceInfo) {
	existing, err := a.deviceRepo.GetByProviderRef(ctx, provider, info.ID)
	if errors.Is(err, device.ErrDeviceNotFound) {
		d, err := device.NewDevice(provider, info.ID, info.Name)
		if err != nil {
			a.logger.Warnw("skipping invalid provider device", "provider", provider, "provider_device_id", info.ID, "error", err)
			return
		}
		if err := a.deviceRepo.Create(ctx, d); err != nil {
			a.logger.Warnw("failed to register discovered device", "provider", provider, "provider_device_id", info.ID, "error", err)
			return
		}
		a.logger.Infow("registered discovered device", "provider", provider, "provider_device_id", info.ID)
		return
	}
	if err != nil {
		a.logger.Warnw("failed to look up device during sync", "provider", provider, "provider_device_id", info.ID, "error", err)
		return
	}

	// In-use devices are left alone: a provider-side blip must not yank
	// a device out from under a live session.
	if existing.Status() == device.StatusInUse {
		return
	}

	switch info.Status {
	case devicegateway.StatusOffline:
		if existing.Status() != device.StatusOffline {
			if err := existing.MarkStatus(device.StatusOffline); err == nil {
				if err := a.deviceRepo.Update(ctx, existing); err != nil {
					a.logger.Warnw("failed to mark device offline", "device_id", existing.ID(), "error", err)
				}
			}
		}
	case devicegateway.StatusOnline:
		if existing.Status() == device.StatusOffline {
			if err := existing.MarkStatus(device.StatusAvailable); err == nil {
				if err := a.deviceRepo.Update(ctx, existing); err != nil {
					a.logger.Warnw("failed to mark device available", "device_id", existing.ID(), "error", err)
				}
			}
		}
	}
}
