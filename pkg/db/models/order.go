package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	"github.com/arjunmehra/stitchkart-backend/pkg/types"
)

// Order is the aggregate root for fulfillment. PaymentProvider and
// TransactionID are set only after an online payment callback has been
// accepted; they stay null for COD orders.
type Order struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	PublicID        string                 `gorm:"column:public_id;not null;uniqueIndex"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null"`
	ShippingAddress types.Address          `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	PaymentMethod   enums.PaymentMethod    `gorm:"column:payment_method;type:text;not null;default:'cod'"`
	PaymentProvider *enums.PaymentProvider `gorm:"column:payment_provider;type:text"`
	PaymentStatus   enums.PaymentStatus    `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	TransactionID   *uuid.UUID             `gorm:"column:transaction_id;type:uuid"`
	TotalAmount     decimal.Decimal        `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency        string                 `gorm:"column:currency;not null;default:'INR'"`
	OrderedAt       time.Time              `gorm:"column:ordered_at;not null"`
	Items           []OrderItem            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipping        *ShippingProgress      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
