package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProviderSetting is one gateway entry inside the admin payment config.
type ProviderSetting struct {
	Name      string            `json:"name"`
	IsEnabled bool              `json:"is_enabled"`
	Settings  map[string]string `json:"settings,omitempty"`
}

// PaymentConfig is the single admin-mutable payment configuration row.
// Services never read it directly; they receive an immutable snapshot
// refreshed through an explicit reload.
type PaymentConfig struct {
	ID                   int               `gorm:"column:id;primaryKey"`
	OnlinePaymentEnabled bool              `gorm:"column:online_payment_enabled;not null;default:true"`
	CODEnabled           bool              `gorm:"column:cod_enabled;not null;default:true"`
	DefaultProvider      string            `gorm:"column:default_provider;not null;default:'razorpay'"`
	MinAmount            decimal.Decimal   `gorm:"column:min_amount;type:numeric(12,2);not null"`
	MaxAmount            decimal.Decimal   `gorm:"column:max_amount;type:numeric(12,2);not null"`
	Providers            []ProviderSetting `gorm:"column:providers;type:jsonb;serializer:json"`
	UpdatedAt            time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
