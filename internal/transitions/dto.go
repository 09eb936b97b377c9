package transitions

import (
	"time"

	"github.com/google/uuid"

	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
)

// ApplyInput carries one requested status change for a quantity of an item.
type ApplyInput struct {
	ItemID      uuid.UUID
	Quantity    int
	Target      enums.OrderItemStatus
	Note        *string
	ActorUserID uuid.UUID
	ActorRole   string
}

// ApplyResult reports the rows after a transition. SplitItem is set only when
// the requested quantity was below the row's quantity and a new row was
// created for the transitioned units.
type ApplyResult struct {
	Item      *models.OrderItem
	SplitItem *models.OrderItem
}

// AvailableResult pairs the item's current status with its legal next steps.
type AvailableResult struct {
	ItemID      uuid.UUID             `json:"item_id"`
	Current     enums.OrderItemStatus `json:"current_status"`
	Transitions []TransitionOption    `json:"transitions"`
}

// ItemTransitionedEvent is emitted on every accepted transition.
type ItemTransitionedEvent struct {
	OrderID     uuid.UUID             `json:"order_id"`
	ItemID      uuid.UUID             `json:"item_id"`
	SplitItemID *uuid.UUID            `json:"split_item_id,omitempty"`
	From        enums.OrderItemStatus `json:"from"`
	To          enums.OrderItemStatus `json:"to"`
	Quantity    int                   `json:"quantity"`
	ChangedAt   time.Time             `json:"changed_at"`
}
