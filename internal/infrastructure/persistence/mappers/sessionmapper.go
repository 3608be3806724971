package mappers

import (
	"fmt"

	"dropcode/internal/domain/session"
	"dropcode/internal/infrastructure/persistence/models"
)

type SessionMapper interface {
	ToEntity(model *models.RentalSessionModel) (*session.RentalSession, error)
	ToModel(entity *session.RentalSession) (*models.RentalSessionModel, error)
	ToEntities(models []*models.RentalSessionModel) ([]*session.RentalSession, error)
}

type SessionMapperImpl struct{}

func NewSessionMapper() SessionMapper {
	return &SessionMapperImpl{}
}

func (m *SessionMapperImpl) ToEntity(model *models.RentalSessionModel) (*session.RentalSession, error) {
	if model == nil {
		return nil, nil
	}

	entity, err := session.ReconstructRentalSession(
		model.ID,
		model.SID,
		model.CustomerID,
		model.DeviceID,
		session.Status(model.Status),
		model.DurationMinutes,
		model.StartedAt,
		model.ExpiresAt,
		model.CompletedAt,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct session entity: %w", err)
	}
	return entity, nil
}

func (m *SessionMapperImpl) ToModel(entity *session.RentalSession) (*models.RentalSessionModel, error) {
	if entity == nil {
		return nil, nil
	}

	return &models.RentalSessionModel{
		ID:              entity.ID(),
		SID:             entity.SID(),
		CustomerID:      entity.CustomerID(),
		DeviceID:        entity.DeviceID(),
		Status:          entity.Status().String(),
		DurationMinutes: entity.DurationMinutes(),
		StartedAt:       entity.StartedAt(),
		ExpiresAt:       entity.ExpiresAt(),
		CompletedAt:     entity.CompletedAt(),
		Version:         entity.Version(),
		CreatedAt:       entity.CreatedAt(),
		UpdatedAt:       entity.UpdatedAt(),
	}, nil
}

func (m *SessionMapperImpl) ToEntities(dbModels []*models.RentalSessionModel) ([]*session.RentalSession, error) {
	entities := make([]*session.RentalSession, 0, len(dbModels))
	for _, model := range dbModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
