package transitions

import "github.com/arjunmehra/stitchkart-backend/pkg/enums"

// transitionTable holds, for every item status, the set of statuses it may
// legally move to. Terminal states have no row. Every state change has to be
// an edge here, so nothing ever skips a state.
var transitionTable = map[enums.OrderItemStatus][]enums.OrderItemStatus{
	enums.OrderItemStatusOrdered: {
		enums.OrderItemStatusCancelled,
		enums.OrderItemStatusShipped,
	},
	enums.OrderItemStatusShipped: {
		enums.OrderItemStatusDelivered,
	},
	enums.OrderItemStatusDelivered: {
		enums.OrderItemStatusReturnRequested,
	},
	enums.OrderItemStatusCancelled: {
		enums.OrderItemStatusRefunded,
	},
	enums.OrderItemStatusReturnRequested: {
		enums.OrderItemStatusDepartedForReturning,
		enums.OrderItemStatusReturnCancelled,
	},
	enums.OrderItemStatusDepartedForReturning: {
		enums.OrderItemStatusReturned,
		enums.OrderItemStatusReturnCancelled,
	},
	enums.OrderItemStatusReturned: {
		enums.OrderItemStatusRefunded,
	},
}

// statusLabels are the human-readable names surfaced alongside available
// transitions so callers never hardcode the table.
var statusLabels = map[enums.OrderItemStatus]string{
	enums.OrderItemStatusOrdered:              "Ordered",
	enums.OrderItemStatusShipped:              "Shipped",
	enums.OrderItemStatusDelivered:            "Delivered",
	enums.OrderItemStatusCancelled:            "Cancelled",
	enums.OrderItemStatusReturnRequested:      "Return Requested",
	enums.OrderItemStatusDepartedForReturning: "Departed For Returning",
	enums.OrderItemStatusReturned:             "Returned",
	enums.OrderItemStatusReturnCancelled:      "Return Cancelled",
	enums.OrderItemStatusRefunded:             "Refunded",
}

// TransitionOption is one legal target annotated with its display label.
type TransitionOption struct {
	Status enums.OrderItemStatus `json:"status"`
	Label  string                `json:"label"`
}

// IsValidTransition reports whether current may move to target in one step.
func IsValidTransition(current, target enums.OrderItemStatus) bool {
	for _, candidate := range transitionTable[current] {
		if candidate == target {
			return true
		}
	}
	return false
}

// AvailableTransitions returns the legal next statuses for current, with
// labels. Terminal states yield an empty slice.
func AvailableTransitions(current enums.OrderItemStatus) []TransitionOption {
	targets := transitionTable[current]
	options := make([]TransitionOption, 0, len(targets))
	for _, target := range targets {
		options = append(options, TransitionOption{
			Status: target,
			Label:  StatusLabel(target),
		})
	}
	return options
}

// IsTerminal reports whether the status has no outgoing edges.
func IsTerminal(status enums.OrderItemStatus) bool {
	return len(transitionTable[status]) == 0
}

// StatusLabel returns the display name for a status.
func StatusLabel(status enums.OrderItemStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}
