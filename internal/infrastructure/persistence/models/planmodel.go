package models

import (
	"time"

	"gorm.io/gorm"

	"dropcode/internal/shared/constants"
)

// PlanModel is the persistence model for rental plans. Price is stored
// in cents of the settlement currency.
type PlanModel struct {
	ID            uint   `gorm:"primarykey"`
	Name          string `gorm:"not null;size:100"`
	DurationDays  int    `gorm:"not null"`
	PriceEURCents int64  `gorm:"not null"`
	Active        bool   `gorm:"not null;default:true;index:idx_plan_active"`
	SortOrder     int    `gorm:"not null;default:0"`
	Version       int    `gorm:"not null;default:1"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (PlanModel) TableName() string {
	return constants.TablePlans
}

func (m *PlanModel) BeforeCreate(tx *gorm.DB) error {
	if m.Version == 0 {
		m.Version = 1
	}
	return nil
}
