package returns

import (
	"time"

	"github.com/google/uuid"

	"github.com/arjunmehra/stitchkart-backend/internal/transitions"
)

// RequestInput asks for a return on a quantity of a delivered line.
type RequestInput struct {
	ItemID      uuid.UUID
	Quantity    int
	Note        *string
	ActorUserID uuid.UUID
	ActorRole   string
}

// DecideInput records the merchant's decision on a requested return.
// Approving moves the units into the return pipeline; rejecting sends them
// back to the delivered side via return_cancelled.
type DecideInput struct {
	ItemID      uuid.UUID
	Quantity    int
	Approve     bool
	Note        *string
	ActorUserID uuid.UUID
	ActorRole   string
}

// RefundItemInput settles refundable units of a line. For online orders the
// provider refund runs first; for COD orders only the status moves.
type RefundItemInput struct {
	ItemID      uuid.UUID
	Quantity    int
	Note        *string
	ActorUserID uuid.UUID
	ActorRole   string
}

// CancelOrderInput cancels every still-ordered line of an order.
type CancelOrderInput struct {
	OrderID     uuid.UUID
	Note        *string
	ActorUserID uuid.UUID
	ActorRole   string
}

// CancelOrderResult reports the batch cancellation outcome.
type CancelOrderResult struct {
	OrderID        uuid.UUID `json:"order_id"`
	CancelledItems int       `json:"cancelled_items"`
	Refunded       bool      `json:"refunded"`
}

// ItemResult wraps the transition outcome of a single-line operation.
type ItemResult = transitions.ApplyResult

// ReturnRequestedEvent is emitted when a customer opens a return.
type ReturnRequestedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	ItemID      uuid.UUID `json:"item_id"`
	Quantity    int       `json:"quantity"`
	Note        *string   `json:"note,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// ReturnDecidedEvent is emitted when the merchant resolves a return request.
type ReturnDecidedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	ItemID    uuid.UUID `json:"item_id"`
	Approved  bool      `json:"approved"`
	Quantity  int       `json:"quantity"`
	DecidedAt time.Time `json:"decided_at"`
}

// OrderCancelledEvent is emitted when a batch cancellation completes.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	CancelledItems int       `json:"cancelled_items"`
	Refunded       bool      `json:"refunded"`
	CancelledAt    time.Time `json:"cancelled_at"`
}
