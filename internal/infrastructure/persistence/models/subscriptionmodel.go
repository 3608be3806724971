package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"dropcode/internal/shared/constants"
)

// SubscriptionModel is the persistence model for subscriptions. The
// invoice id correlates processor webhooks back to the row.
type SubscriptionModel struct {
	ID            uint   `gorm:"primarykey"`
	CustomerID    uint   `gorm:"not null;index:idx_customer_subscription"`
	PlanID        uint   `gorm:"not null;index:idx_plan_subscription"`
	DeviceID      *uint  `gorm:"index:idx_subscription_device"`
	Status        string `gorm:"not null;size:20;index:idx_subscription_status"`
	PaymentMethod string `gorm:"not null;size:30"`
	InvoiceID     string `gorm:"not null;size:100;uniqueIndex:idx_invoice_id"`
	Asset         string `gorm:"size:20"`
	AssetAmount   string `gorm:"size:50"`
	PaidAt        *time.Time
	StartsAt      *time.Time
	ExpiresAt     *time.Time `gorm:"index:idx_subscription_expires"`
	Metadata      datatypes.JSON
	Version       int `gorm:"not null;default:1"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (SubscriptionModel) TableName() string {
	return constants.TableSubscriptions
}

func (m *SubscriptionModel) BeforeCreate(tx *gorm.DB) error {
	if m.Version == 0 {
		m.Version = 1
	}
	return nil
}
