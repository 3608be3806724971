package models

import (
	"time"

	"gorm.io/gorm"

	"dropcode/internal/shared/constants"
)

// RentalSessionModel is the persistence model for rental sessions.
type RentalSessionModel struct {
	ID              uint   `gorm:"primarykey"`
	SID             string `gorm:"uniqueIndex;not null;size:50;comment:Stripe-style ID: ses_xxx"`
	CustomerID      uint   `gorm:"not null;index:idx_customer_session"`
	DeviceID        *uint  `gorm:"index:idx_session_device"`
	Status          string `gorm:"not null;size:20;index:idx_session_status"`
	DurationMinutes int    `gorm:"not null"`
	StartedAt       *time.Time
	ExpiresAt       *time.Time `gorm:"index:idx_session_expires"`
	CompletedAt     *time.Time
	Version         int `gorm:"not null;default:1"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (RentalSessionModel) TableName() string {
	return constants.TableRentalSessions
}

func (m *RentalSessionModel) BeforeCreate(tx *gorm.DB) error {
	if m.Version == 0 {
		m.Version = 1
	}
	return nil
}
