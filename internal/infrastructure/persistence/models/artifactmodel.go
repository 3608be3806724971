package models

import (
	"time"

	"gorm.io/gorm"

	"dropcode/internal/shared/constants"
)

// CaptureArtifactModel is the persistence model for capture artifacts.
type CaptureArtifactModel struct {
	ID         uint   `gorm:"primarykey"`
	SID        string `gorm:"uniqueIndex;not null;size:50;comment:Stripe-style ID: cap_xxx"`
	SessionID  uint   `gorm:"not null;index:idx_artifact_session"`
	TrackingID string `gorm:"size:100"`
	Status     string `gorm:"not null;size:20;index:idx_artifact_status"`
	ImageName  string `gorm:"size:100"`
	FailReason string `gorm:"size:500"`
	Version    int    `gorm:"not null;default:1"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (CaptureArtifactModel) TableName() string {
	return constants.TableCaptureArtifacts
}

func (m *CaptureArtifactModel) BeforeCreate(tx *gorm.DB) error {
	if m.Version == 0 {
		m.Version = 1
	}
	return nil
}
