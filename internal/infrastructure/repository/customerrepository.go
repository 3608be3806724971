package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"dropcode/internal/domain/customer"
	"dropcode/internal/infrastructure/persistence/mappers"
	"dropcode/internal/infrastructure/persistence/models"
)

type CustomerRepository struct {
	db     *gorm.DB
	mapper mappers.CustomerMapper
}

func NewCustomerRepository(db *gorm.DB) customer.Repository {
	return &CustomerRepository{
		db:     db,
		mapper: mappers.NewCustomerMapper(),
	}
}

func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	model, err := r.mapper.ToModel(c)
	if err != nil {
		return fmt.Errorf("failed to map customer: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	if c.ID() == 0 {
		if err := c.SetID(model.ID); err != nil {
			return fmt.Errorf("failed to set customer ID: %w", err)
		}
	}
	return nil
}

func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	model, err := r.mapper.ToModel(c)
	if err != nil {
		return fmt.Errorf("failed to map customer: %w", err)
	}
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update customer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return customer.ErrCustomerNotFound
	}
	return nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id uint) (*customer.Customer, error) {
	var model models.CustomerModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, customer.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer by ID: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *CustomerRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*customer.Customer, error) {
	var model models.CustomerModel
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, customer.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer by telegram ID: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *CustomerRepository) List(ctx context.Context, page, pageSize int) ([]*customer.Customer, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	var customerModels []*models.CustomerModel
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&customerModels).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}

	entities, err := r.mapper.ToEntities(customerModels)
	if err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}
