package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"dropcode/internal/domain/subscription"
	"dropcode/internal/infrastructure/persistence/mappers"
	"dropcode/internal/infrastructure/persistence/models"
)

type PlanRepository struct {
	db     *gorm.DB
	mapper mappers.PlanMapper
}

func NewPlanRepository(db *gorm.DB) subscription.PlanRepository {
	return &PlanRepository{
		db:     db,
		mapper: mappers.NewPlanMapper(),
	}
}

func (r *PlanRepository) Create(ctx context.Context, p *subscription.Plan) error {
	model, err := r.mapper.ToModel(p)
	if err != nil {
		return fmt.Errorf("failed to map plan: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	if p.ID() == 0 {
		if err := p.SetID(model.ID); err != nil {
			return fmt.Errorf("failed to set plan ID: %w", err)
		}
	}
	return nil
}

func (r *PlanRepository) Update(ctx context.Context, p *subscription.Plan) error {
	model, err := r.mapper.ToModel(p)
	if err != nil {
		return fmt.Errorf("failed to map plan: %w", err)
	}
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update plan: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return subscription.ErrPlanNotFound
	}
	return nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id uint) (*subscription.Plan, error) {
	var model models.PlanModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, subscription.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan by ID: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *PlanRepository) ListActive(ctx context.Context) ([]*subscription.Plan, error) {
	var planModels []*models.PlanModel
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&planModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active plans: %w", err)
	}
	return r.mapper.ToEntities(planModels)
}
