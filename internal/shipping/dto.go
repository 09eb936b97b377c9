package shipping

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdvanceInput asks the saga to run the next pending step for an order.
// The package measurements are only consumed by the courier-order step;
// later steps ignore them.
type AdvanceInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   string
	LengthCM    decimal.Decimal
	BreadthCM   decimal.Decimal
	HeightCM    decimal.Decimal
	WeightKG    decimal.Decimal
}

// AdvanceResult reports which step ran and the progress afterwards.
type AdvanceResult struct {
	OrderID      uuid.UUID `json:"order_id"`
	Step         Step      `json:"step"`
	Completed    bool      `json:"completed"`
	AWBCode      string    `json:"awb_code,omitempty"`
	CourierName  string    `json:"courier_name,omitempty"`
	ShippedItems int       `json:"shipped_items,omitempty"`
}

// ShipmentOrderCreatedEvent is emitted when the courier-side order exists.
type ShipmentOrderCreatedEvent struct {
	OrderID           uuid.UUID `json:"order_id"`
	ShiprocketOrderID string    `json:"shiprocket_order_id"`
	ShipmentID        string    `json:"shipment_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// ShipmentAWBAssignedEvent is emitted when a waybill is assigned.
type ShipmentAWBAssignedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	AWBCode     string    `json:"awb_code"`
	CourierName string    `json:"courier_name"`
	AssignedAt  time.Time `json:"assigned_at"`
}

// ShipmentPickupBookedEvent is emitted when the pickup is booked and the
// order's remaining ordered lines move to shipped.
type ShipmentPickupBookedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	PickupID     string    `json:"pickup_id"`
	ShippedItems int       `json:"shipped_items"`
	BookedAt     time.Time `json:"booked_at"`
}
