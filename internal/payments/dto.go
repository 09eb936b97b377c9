package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
)

// CreateIntentInput requests a new provider payment attempt for an order.
type CreateIntentInput struct {
	OrderID     uuid.UUID
	Amount      decimal.Decimal
	Provider    enums.PaymentProvider
	ActorUserID uuid.UUID
}

// IntentResult is the only data ever handed back to the untrusted client.
type IntentResult struct {
	TransactionID   uuid.UUID             `json:"transaction_id"`
	Provider        enums.PaymentProvider `json:"provider"`
	ProviderOrderID string                `json:"provider_order_id"`
	CheckoutRef     string                `json:"checkout_ref,omitempty"`
	Amount          decimal.Decimal       `json:"amount"`
	Currency        string                `json:"currency"`
}

// VerifyInput is the provider callback payload for one transaction.
type VerifyInput struct {
	TransactionID     uuid.UUID
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
	Timestamp         string
	RawBody           []byte
	Amount            *decimal.Decimal
}

// VerifyResult reports the transaction and order state after verification.
// Repeated deliveries of the same callback produce the same result.
type VerifyResult struct {
	TransactionID      uuid.UUID               `json:"transaction_id"`
	Status             enums.TransactionStatus `json:"status"`
	OrderPaymentStatus enums.PaymentStatus     `json:"order_payment_status"`
	AlreadyProcessed   bool                    `json:"already_processed"`
}

// RefundResult reports a completed provider refund.
type RefundResult struct {
	TransactionID uuid.UUID               `json:"transaction_id"`
	RefundID      string                  `json:"refund_id"`
	Status        enums.TransactionStatus `json:"status"`
}

// PaymentIntentCreatedEvent is emitted when a pending transaction is stored.
type PaymentIntentCreatedEvent struct {
	TransactionID   uuid.UUID             `json:"transaction_id"`
	OrderID         uuid.UUID             `json:"order_id"`
	Provider        enums.PaymentProvider `json:"provider"`
	ProviderOrderID string                `json:"provider_order_id"`
	Amount          decimal.Decimal       `json:"amount"`
	Currency        string                `json:"currency"`
	CreatedAt       time.Time             `json:"created_at"`
}

// PaymentVerifiedEvent is emitted when a callback is accepted.
type PaymentVerifiedEvent struct {
	TransactionID     uuid.UUID             `json:"transaction_id"`
	OrderID           uuid.UUID             `json:"order_id"`
	Provider          enums.PaymentProvider `json:"provider"`
	ProviderPaymentID string                `json:"provider_payment_id"`
	Amount            decimal.Decimal       `json:"amount"`
	VerifiedAt        time.Time             `json:"verified_at"`
}

// PaymentFailedEvent is emitted when a callback is rejected.
type PaymentFailedEvent struct {
	TransactionID uuid.UUID             `json:"transaction_id"`
	OrderID       uuid.UUID             `json:"order_id"`
	Provider      enums.PaymentProvider `json:"provider"`
	Reason        string                `json:"reason"`
	FailedAt      time.Time             `json:"failed_at"`
}

// PaymentRefundedEvent is emitted when a provider refund completes.
type PaymentRefundedEvent struct {
	TransactionID uuid.UUID             `json:"transaction_id"`
	OrderID       uuid.UUID             `json:"order_id"`
	Provider      enums.PaymentProvider `json:"provider"`
	RefundID      string                `json:"refund_id"`
	Amount        decimal.Decimal       `json:"amount"`
	RefundedAt    time.Time             `json:"refunded_at"`
}
