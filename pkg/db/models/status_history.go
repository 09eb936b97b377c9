package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
)

// StatusHistoryEntry is an append-only audit record for an item status
// change. Rows are never updated or deleted.
type StatusHistoryEntry struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ItemID    uuid.UUID             `gorm:"column:item_id;type:uuid;not null;index"`
	Status    enums.OrderItemStatus `gorm:"column:status;type:text;not null"`
	Quantity  int                   `gorm:"column:quantity;not null"`
	Note      *string               `gorm:"column:note"`
	ChangedAt time.Time             `gorm:"column:changed_at;not null"`
}

func (e *StatusHistoryEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
