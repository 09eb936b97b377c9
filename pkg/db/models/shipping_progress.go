package models

import (
	"time"

	"github.com/google/uuid"
)

// ShippingProgress tracks the three-step shipping saga for one order.
// The boolean flags are monotonic: once a step succeeds its flag is never
// reset, which is what makes re-invoking a completed step a no-op.
type ShippingProgress struct {
	OrderID           uuid.UUID  `gorm:"column:order_id;type:uuid;primaryKey"`
	AdhocOrderCreated bool       `gorm:"column:adhoc_order_created;not null;default:false"`
	AWBAssigned       bool       `gorm:"column:awb_assigned;not null;default:false"`
	PickupGenerated   bool       `gorm:"column:pickup_generated;not null;default:false"`
	ShiprocketOrderID *string    `gorm:"column:shiprocket_order_id"`
	ShipmentID        *string    `gorm:"column:shipment_id"`
	TrackingNumber    *string    `gorm:"column:tracking_number"`
	CourierName       *string    `gorm:"column:courier_name"`
	PickupID          *string    `gorm:"column:pickup_id"`
	ShippedAt         *time.Time `gorm:"column:shipped_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the plural-noun convention despite the singular struct name.
func (ShippingProgress) TableName() string {
	return "shipping_progress"
}
