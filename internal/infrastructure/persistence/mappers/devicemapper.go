// Package mappers converts between domain entities and persistence
// models.
package mappers

import (
	"fmt"

	"dropcode/internal/domain/device"
	"dropcode/internal/infrastructure/persistence/models"
)

type DeviceMapper interface {
	ToEntity(model *models.DeviceModel) (*device.Device, error)
	ToModel(entity *device.Device) (*models.DeviceModel, error)
	ToEntities(models []*models.DeviceModel) ([]*device.Device, error)
}

type DeviceMapperImpl struct{}

func NewDeviceMapper() DeviceMapper {
	return &DeviceMapperImpl{}
}

func (m *DeviceMapperImpl) ToEntity(model *models.DeviceModel) (*device.Device, error) {
	if model == nil {
		return nil, nil
	}

	entity, err := device.ReconstructDevice(
		model.ID,
		model.Provider,
		model.ProviderDeviceID,
		model.Name,
		model.CourierName,
		model.LockerCode,
		device.Status(model.Status),
		model.LastUsedAt,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct device entity: %w", err)
	}
	return entity, nil
}

func (m *DeviceMapperImpl) ToModel(entity *device.Device) (*models.DeviceModel, error) {
	if entity == nil {
		return nil, nil
	}

	return &models.DeviceModel{
		ID:               entity.ID(),
		Provider:         entity.Provider(),
		ProviderDeviceID: entity.ProviderDeviceID(),
		Name:             entity.Name(),
		CourierName:      entity.CourierName(),
		LockerCode:       entity.LockerCode(),
		Status:           entity.Status().String(),
		LastUsedAt:       entity.LastUsedAt(),
		Version:          entity.Version(),
		CreatedAt:        entity.CreatedAt(),
		UpdatedAt:        entity.UpdatedAt(),
	}, nil
}

func (m *DeviceMapperImpl) ToEntities(dbModels []*models.DeviceModel) ([]*device.Device, error) {
	entities := make([]*device.Device, 0, len(dbModels))
	for _, model := range dbModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
