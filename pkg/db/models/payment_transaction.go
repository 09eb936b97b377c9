package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
)

// PaymentTransaction records a single payment attempt. The row ID doubles as
// the idempotency key for provider callbacks: a transaction moves from
// pending to exactly one terminal state, and only success may later move to
// refunded.
type PaymentTransaction struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	Provider        enums.PaymentProvider   `gorm:"column:provider;type:text;not null"`
	ProviderOrderID *string                 `gorm:"column:provider_order_id"`
	CheckoutRef     *string                 `gorm:"column:checkout_ref"`
	Amount          decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        string                  `gorm:"column:currency;not null;default:'INR'"`
	Status          enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ProviderPayID   *string                 `gorm:"column:provider_payment_id"`
	RefundID        *string                 `gorm:"column:refund_id"`
	FailureReason   *string                 `gorm:"column:failure_reason"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *PaymentTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
