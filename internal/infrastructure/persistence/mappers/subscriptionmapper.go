package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"dropcode/internal/domain/subscription"
	"dropcode/internal/infrastructure/persistence/models"
)

type SubscriptionMapper interface {
	ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error)
	ToModel(entity *subscription.Subscription) (*models.SubscriptionModel, error)
	ToEntities(models []*models.SubscriptionModel) ([]*subscription.Subscription, error)
}

type SubscriptionMapperImpl struct{}

func NewSubscriptionMapper() SubscriptionMapper {
	return &SubscriptionMapperImpl{}
}

func (m *SubscriptionMapperImpl) ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error) {
	if model == nil {
		return nil, nil
	}

	status := subscription.Status(model.Status)
	if !subscription.ValidStatuses[status] {
		return nil, fmt.Errorf("invalid subscription status: %s", model.Status)
	}

	var metadata map[string]interface{}
	if model.Metadata != nil {
		if err := json.Unmarshal(model.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	entity, err := subscription.ReconstructSubscription(
		model.ID,
		model.CustomerID,
		model.PlanID,
		model.DeviceID,
		status,
		model.PaymentMethod,
		model.InvoiceID,
		model.Asset,
		model.AssetAmount,
		model.PaidAt,
		model.StartsAt,
		model.ExpiresAt,
		metadata,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct subscription entity: %w", err)
	}
	return entity, nil
}

func (m *SubscriptionMapperImpl) ToModel(entity *subscription.Subscription) (*models.SubscriptionModel, error) {
	if entity == nil {
		return nil, nil
	}

	var metadata datatypes.JSON
	if len(entity.Metadata()) > 0 {
		data, err := json.Marshal(entity.Metadata())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = data
	}

	return &models.SubscriptionModel{
		ID:            entity.ID(),
		CustomerID:    entity.CustomerID(),
		PlanID:        entity.PlanID(),
		DeviceID:      entity.DeviceID(),
		Status:        entity.Status().String(),
		PaymentMethod: entity.PaymentMethod(),
		InvoiceID:     entity.InvoiceID(),
		Asset:         entity.Asset(),
		AssetAmount:   entity.AssetAmount(),
		PaidAt:        entity.PaidAt(),
		StartsAt:      entity.StartsAt(),
		ExpiresAt:     entity.ExpiresAt(),
		Metadata:      metadata,
		Version:       entity.Version(),
		CreatedAt:     entity.CreatedAt(),
		UpdatedAt:     entity.UpdatedAt(),
	}, nil
}

func (m *SubscriptionMapperImpl) ToEntities(dbModels []*models.SubscriptionModel) ([]*subscription.Subscription, error) {
	entities := make([]*subscription.Subscription, 0, len(dbModels))
	for _, model := range dbModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
