package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dropcode/internal/domain/subscription"
	"dropcode/internal/infrastructure/persistence/mappers"
	"dropcode/internal/infrastructure/persistence/models"
	"dropcode/internal/shared/biztime"
)

type SubscriptionRepository struct {
	db     *gorm.DB
	mapper mappers.SubscriptionMapper
}

func NewSubscriptionRepository(db *gorm.DB) subscription.Repository {
	return &SubscriptionRepository{
		db:     db,
		mapper: mappers.NewSubscriptionMapper(),
	}
}

func (r *SubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	model, err := r.mapper.ToModel(s)
	if err != nil {
		return fmt.Errorf("failed to map subscription: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	if s.ID() == 0 {
		if err := s.SetID(model.ID); err != nil {
			return fmt.Errorf("failed to set subscription ID: %w", err)
		}
	}
	return nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	model, err := r.mapper.ToModel(s)
	if err != nil {
		return fmt.Errorf("failed to map subscription: %w", err)
	}
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return subscription.ErrSubscriptionNotFound
	}
	return nil
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id uint) (*subscription.Subscription, error) {
	var model models.SubscriptionModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription by ID: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *SubscriptionRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*subscription.Subscription, error) {
	var model models.SubscriptionModel
	err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription by invoice ID: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *SubscriptionRepository) List(ctx context.Context, page, pageSize int) ([]*subscription.Subscription, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.SubscriptionModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	var subModels []*models.SubscriptionModel
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&subModels).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	entities, err := r.mapper.ToEntities(subModels)
	if err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

func (r *SubscriptionRepository) GetPendingByCustomer(ctx context.Context, customerID uint) (*subscription.Subscription, error) {
	var model models.SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, subscription.StatusPendingPayment.String()).
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get pending subscription: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetPendingByCustomer and GetActiveByCustomer implement the query-time
// at-most-one predicate; there is no uniqueness constraint backing it.
func (r *SubscriptionRepository) GetActiveByCustomer(ctx context.Context, customerID uint) (*subscription.Subscription, error) {
	var model models.SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ? AND expires_at > ?",
			customerID, subscription.StatusActive.String(), biztime.NowUTC()).
		Order("expires_at DESC").
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, subscription.ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("failed to get active subscription: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *SubscriptionRepository) ListExpiredActive(ctx context.Context) ([]*subscription.Subscription, error) {
	var subModels []*models.SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", subscription.StatusActive.String(), biztime.NowUTC()).
		Find(&subModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired subscriptions: %w", err)
	}
	return r.mapper.ToEntities(subModels)
}

func (r *SubscriptionRepository) ListStalePending(ctx context.Context, olderThanSeconds int) ([]*subscription.Subscription, error) {
	cutoff := biztime.NowUTC().Add(-time.Duration(olderThanSeconds) * time.Second)

	var subModels []*models.SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", subscription.StatusPendingPayment.String(), cutoff).
		Find(&subModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending subscriptions: %w", err)
	}
	return r.mapper.ToEntities(subModels)
}
