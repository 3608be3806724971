package mappers

import (
	"fmt"

	"dropcode/internal/domain/customer"
	"dropcode/internal/infrastructure/persistence/models"
)

type CustomerMapper interface {
	ToEntity(model *models.CustomerModel) (*customer.Customer, error)
	ToModel(entity *customer.Customer) (*models.CustomerModel, error)
	ToEntities(models []*models.CustomerModel) ([]*customer.Customer, error)
}

type CustomerMapperImpl struct{}

func NewCustomerMapper() CustomerMapper {
	return &CustomerMapperImpl{}
}

func (m *CustomerMapperImpl) ToEntity(model *models.CustomerModel) (*customer.Customer, error) {
	if model == nil {
		return nil, nil
	}

	entity, err := customer.ReconstructCustomer(
		model.ID,
		model.TelegramID,
		model.Blocked,
		model.CaptureCount,
		customer.AwaitingInput(model.AwaitingInput),
		model.PendingPlanID,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct customer entity: %w", err)
	}
	return entity, nil
}

func (m *CustomerMapperImpl) ToModel(entity *customer.Customer) (*models.CustomerModel, error) {
	if entity == nil {
		return nil, nil
	}

	return &models.CustomerModel{
		ID:            entity.ID(),
		TelegramID:    entity.TelegramID(),
		Blocked:       entity.IsBlocked(),
		CaptureCount:  entity.CaptureCount(),
		AwaitingInput: string(entity.AwaitingInput()),
		PendingPlanID: entity.PendingPlanID(),
		Version:       entity.Version(),
		CreatedAt:     entity.CreatedAt(),
		UpdatedAt:     entity.UpdatedAt(),
	}, nil
}

func (m *CustomerMapperImpl) ToEntities(dbModels []*models.CustomerModel) ([]*customer.Customer, error) {
	entities := make([]*customer.Customer, 0, len(dbModels))
	for _, model := range dbModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
