package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"dropcode/internal/domain/session"
	"dropcode/internal/infrastructure/persistence/mappers"
	"dropcode/internal/infrastructure/persistence/models"
)

type ArtifactRepository struct {
	db     *gorm.DB
	mapper mappers.ArtifactMapper
}

func NewArtifactRepository(db *gorm.DB) session.ArtifactRepository {
	return &ArtifactRepository{
		db:     db,
		mapper: mappers.NewArtifactMapper(),
	}
}

func (r *ArtifactRepository) Create(ctx context.Context, a *session.CaptureArtifact) error {
	model, err := r.mapper.ToModel(a)
	if err != nil {
		return fmt.Errorf("failed to map artifact: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	if a.ID() == 0 {
		if err := a.SetID(model.ID); err != nil {
			return fmt.Errorf("failed to set artifact ID: %w", err)
		}
	}
	return nil
}

func (r *ArtifactRepository) Update(ctx context.Context, a *session.CaptureArtifact) error {
	model, err := r.mapper.ToModel(a)
	if err != nil {
		return fmt.Errorf("failed to map artifact: %w", err)
	}
	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update artifact: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return session.ErrArtifactNotFound
	}
	return nil
}

func (r *ArtifactRepository) GetByID(ctx context.Context, dbID uint) (*session.CaptureArtifact, error) {
	var model models.CaptureArtifactModel
	err := r.db.WithContext(ctx).First(&model, dbID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, session.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to get artifact by ID: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *ArtifactRepository) GetBySessionID(ctx context.Context, sessionID uint) (*session.CaptureArtifact, error) {
	var model models.CaptureArtifactModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, session.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to get artifact by session ID: %w", err)
	}
	return r.mapper.ToEntity(&model)
}
