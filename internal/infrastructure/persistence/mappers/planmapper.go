package mappers

import (
	"fmt"

	"dropcode/internal/domain/subscription"
	"dropcode/internal/infrastructure/persistence/models"
)

type PlanMapper interface {
	ToEntity(model *models.PlanModel) (*subscription.Plan, error)
	ToModel(entity *subscription.Plan) (*models.PlanModel, error)
	ToEntities(models []*models.PlanModel) ([]*subscription.Plan, error)
}

type PlanMapperImpl struct{}

func NewPlanMapper() PlanMapper {
	return &PlanMapperImpl{}
}

func (m *PlanMapperImpl) ToEntity(model *models.PlanModel) (*subscription.Plan, error) {
	if model == nil {
		return nil, nil
	}

	entity, err := subscription.ReconstructPlan(
		model.ID,
		model.Name,
		model.DurationDays,
		model.PriceEURCents,
		model.Active,
		model.SortOrder,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct plan entity: %w", err)
	}
	return entity, nil
}

func (m *PlanMapperImpl) ToModel(entity *subscription.Plan) (*models.PlanModel, error) {
	if entity == nil {
		return nil, nil
	}

	return &models.PlanModel{
		ID:            entity.ID(),
		Name:          entity.Name(),
		DurationDays:  entity.DurationDays(),
		PriceEURCents: entity.PriceEURCents(),
		Active:        entity.IsActive(),
		SortOrder:     entity.SortOrder(),
		Version:       entity.Version(),
		CreatedAt:     entity.CreatedAt(),
		UpdatedAt:     entity.UpdatedAt(),
	}, nil
}

func (m *PlanMapperImpl) ToEntities(dbModels []*models.PlanModel) ([]*subscription.Plan, error) {
	entities := make([]*subscription.Plan, 0, len(dbModels))
	for _, model := range dbModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
