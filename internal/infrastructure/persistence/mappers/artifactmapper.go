package mappers

import (
	"fmt"

	"dropcode/internal/domain/session"
	"dropcode/internal/infrastructure/persistence/models"
)

type ArtifactMapper interface {
	ToEntity(model *models.CaptureArtifactModel) (*session.CaptureArtifact, error)
	ToModel(entity *session.CaptureArtifact) (*models.CaptureArtifactModel, error)
	ToEntities(models []*models.CaptureArtifactModel) ([]*session.CaptureArtifact, error)
}

type ArtifactMapperImpl struct{}

func NewArtifactMapper() ArtifactMapper {
	return &ArtifactMapperImpl{}
}

func (m *ArtifactMapperImpl) ToEntity(model *models.CaptureArtifactModel) (*session.CaptureArtifact, error) {
	if model == nil {
		return nil, nil
	}

	entity, err := session.ReconstructCaptureArtifact(
		model.ID,
		model.SID,
		model.SessionID,
		model.TrackingID,
		session.ArtifactStatus(model.Status),
		model.ImageName,
		model.FailReason,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct artifact entity: %w", err)
	}
	return entity, nil
}

func (m *ArtifactMapperImpl) ToModel(entity *session.CaptureArtifact) (*models.CaptureArtifactModel, error) {
	if entity == nil {
		return nil, nil
	}

	return &models.CaptureArtifactModel{
		ID:         entity.ID(),
		SID:        entity.SID(),
		SessionID:  entity.SessionID(),
		TrackingID: entity.TrackingID(),
		Status:     entity.Status().String(),
		ImageName:  entity.ImageName(),
		FailReason: entity.FailReason(),
		Version:    entity.Version(),
		CreatedAt:  entity.CreatedAt(),
		UpdatedAt:  entity.UpdatedAt(),
	}, nil
}

func (m *ArtifactMapperImpl) ToEntities(dbModels []*models.CaptureArtifactModel) ([]*session.CaptureArtifact, error) {
	entities := make([]*session.CaptureArtifact, 0, len(dbModels))
	for _, model := range dbModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
