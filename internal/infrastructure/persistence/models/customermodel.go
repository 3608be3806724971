package models

import (
	"time"

	"gorm.io/gorm"

	"dropcode/internal/shared/constants"
)

// CustomerModel is the persistence model for customers. The awaiting
// input column carries the customer's parked conversational step so
// multi-turn flows survive restarts.
type CustomerModel struct {
	ID            uint   `gorm:"primarykey"`
	TelegramID    int64  `gorm:"not null;uniqueIndex:idx_telegram_id"`
	Blocked       bool   `gorm:"not null;default:false"`
	CaptureCount  uint   `gorm:"not null;default:0"`
	AwaitingInput string `gorm:"not null;size:20;default:none"`
	PendingPlanID *uint
	Version       int `gorm:"not null;default:1"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (CustomerModel) TableName() string {
	return constants.TableCustomers
}

func (m *CustomerModel) BeforeCreate(tx *gorm.DB) error {
	if m.Version == 0 {
		m.Version = 1
	}
	return nil
}
