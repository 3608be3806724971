// Package repository contains gorm-backed implementations of the domain
// repository interfaces.
package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"dropcode/internal/domain/device"
	"dropcode/internal/infrastructure/persistence/mappers"
	"dropcode/internal/infrastructure/persistence/models"
)

type DeviceRepository struct {
	db     *gorm.DB
	mapper mappers.DeviceMapper
}

func NewDeviceRepository(db *gorm.DB) device.Repository {
	return &DeviceRepository{
		db:     db,
		mapper: mappers.NewDeviceMapper(),
	}
}

func (r *DeviceRepository) Create(ctx context.Context, d *device.Device) error {
	model, err := r.mapper.ToModel(d)
	if err != nil {
		return fmt.Errorf("failed to map device: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	if d.ID() == 0 {
		if err := d.SetID(model.ID); err != nil {
			return fmt.Errorf("failed to set device ID: %w", err)
		}
	}
	return nil
}

func (r *DeviceRepository) Update(ctx context.Context, d *device.Device) error {
	model, err := r.mapper.ToModel(d)
	if err != nil {
		return fmt.Errorf("failed to map device: %w", err)
	}
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return device.ErrDeviceNotFound
	}
	return nil
}

func (r *DeviceRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.DeviceModel{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return device.ErrDeviceNotFound
	}
	return nil
}

func (r *DeviceRepository) GetByID(ctx context.Context, id uint) (*device.Device, error) {
	var model models.DeviceModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, device.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device by ID: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *DeviceRepository) GetByProviderRef(ctx context.Context, provider, providerDeviceID string) (*device.Device, error) {
	var model models.DeviceModel
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_device_id = ?", provider, providerDeviceID).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, device.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device by provider ref: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *DeviceRepository) List(ctx context.Context, page, pageSize int) ([]*device.Device, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.DeviceModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count devices: %w", err)
	}

	var deviceModels []*models.DeviceModel
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&deviceModels).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list devices: %w", err)
	}

	entities, err := r.mapper.ToEntities(deviceModels)
	if err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

// ListAvailable orders delivery-identity holders first so allocation
// prefers devices the customer can actually ship to.
func (r *DeviceRepository) ListAvailable(ctx context.Context) ([]*device.Device, error) {
	var deviceModels []*models.DeviceModel
	err := r.db.WithContext(ctx).
		Where("status = ?", device.StatusAvailable.String()).
		Order("(courier_name <> '' AND locker_code <> '') DESC, id ASC").
		Find(&deviceModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list available devices: %w", err)
	}
	return r.mapper.ToEntities(deviceModels)
}

// Claim is the compare-and-set guard for device assignment: the update
// only lands if the row still reads available, so two concurrent claims
// of the same device cannot both succeed.
func (r *DeviceRepository) Claim(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.DeviceModel{}).
		Where("id = ? AND status = ?", id, device.StatusAvailable.String()).
		Updates(map[string]interface{}{
			"status":       device.StatusInUse.String(),
			"last_used_at": gorm.Expr("CURRENT_TIMESTAMP"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to claim device: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return device.ErrDeviceNotAvailable
	}
	return nil
}
