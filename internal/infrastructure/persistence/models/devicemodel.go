// Package models contains the database persistence models. They are
// the anti-corruption layer between domain entities and the database.
package models

import (
	"time"

	"gorm.io/gorm"

	"dropcode/internal/shared/constants"
)

// DeviceModel is the persistence model for pool devices.
type DeviceModel struct {
	ID               uint   `gorm:"primarykey"`
	Provider         string `gorm:"not null;size:50;uniqueIndex:idx_provider_device,priority:1"`
	ProviderDeviceID string `gorm:"not null;size:100;uniqueIndex:idx_provider_device,priority:2"`
	Name             string `gorm:"size:100"`
	CourierName      string `gorm:"size:100"`
	LockerCode       string `gorm:"size:50"`
	Status           string `gorm:"not null;size:20;index:idx_device_status"`
	LastUsedAt       *time.Time
	Version          int `gorm:"not null;default:1"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (DeviceModel) TableName() string {
	return constants.TableDevices
}

func (m *DeviceModel) BeforeCreate(tx *gorm.DB) error {
	if m.Version == 0 {
		m.Version = 1
	}
	return nil
}
