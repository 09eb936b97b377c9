package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
)

// OrderItem is one (product, color, size) line at a given quantity-state.
// Partial status changes split a row instead of mutating quantity in place,
// so rows sharing an order/product/color/size key always sum to the quantity
// originally ordered. ParentItemID links a split-off row back to its source.
type OrderItem struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID    uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	ColorID      uuid.UUID             `gorm:"column:color_id;type:uuid;not null"`
	Size         string                `gorm:"column:size;not null"`
	Quantity     int                   `gorm:"column:quantity;not null"`
	UnitAmount   decimal.Decimal       `gorm:"column:unit_amount;type:numeric(12,2);not null"`
	TotalAmount  decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Status       enums.OrderItemStatus `gorm:"column:status;type:text;not null;default:'ordered'"`
	ParentItemID *uuid.UUID            `gorm:"column:parent_item_id;type:uuid"`
	History      []StatusHistoryEntry  `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
