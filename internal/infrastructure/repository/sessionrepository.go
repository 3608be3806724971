package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"dropcode/internal/domain/session"
	"dropcode/internal/infrastructure/persistence/mappers"
	"dropcode/internal/infrastructure/persistence/models"
	"dropcode/internal/shared/biztime"
)

var liveSessionStatuses = []string{
	session.StatusPending.String(),
	session.StatusActive.String(),
}

type SessionRepository struct {
	db     *gorm.DB
	mapper mappers.SessionMapper
}

func NewSessionRepository(db *gorm.DB) session.Repository {
	return &SessionRepository{
		db:     db,
		mapper: mappers.NewSessionMapper(),
	}
}

func (r *SessionRepository) Create(ctx context.Context, s *session.RentalSession) error {
	model, err := r.mapper.ToModel(s)
	if err != nil {
		return fmt.Errorf("failed to map session: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if s.ID() == 0 {
		if err := s.SetID(model.ID); err != nil {
			return fmt.Errorf("failed to set session ID: %w", err)
		}
	}
	return nil
}

func (r *SessionRepository) Update(ctx context.Context, s *session.RentalSession) error {
	model, err := r.mapper.ToModel(s)
	if err != nil {
		return fmt.Errorf("failed to map session: %w", err)
	}
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, dbID uint) (*session.RentalSession, error) {
	var model models.RentalSessionModel
	err := r.db.WithContext(ctx).First(&model, dbID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session by ID: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *SessionRepository) GetBySID(ctx context.Context, sid string) (*session.RentalSession, error) {
	var model models.RentalSessionModel
	err := r.db.WithContext(ctx).Where("sid = ?", sid).First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session by SID: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *SessionRepository) List(ctx context.Context, page, pageSize int) ([]*session.RentalSession, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.RentalSessionModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	var sessionModels []*models.RentalSessionModel
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&sessionModels).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	entities, err := r.mapper.ToEntities(sessionModels)
	if err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

func (r *SessionRepository) GetLiveByCustomer(ctx context.Context, customerID uint) (*session.RentalSession, error) {
	var model models.RentalSessionModel
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status IN ?", customerID, liveSessionStatuses).
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get live session by customer: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *SessionRepository) GetLiveByDevice(ctx context.Context, deviceID uint) (*session.RentalSession, error) {
	var model models.RentalSessionModel
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND status IN ?", deviceID, liveSessionStatuses).
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get live session by device: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *SessionRepository) ListExpiredActive(ctx context.Context) ([]*session.RentalSession, error) {
	var sessionModels []*models.RentalSessionModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", session.StatusActive.String(), biztime.NowUTC()).
		Find(&sessionModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	return r.mapper.ToEntities(sessionModels)
}
