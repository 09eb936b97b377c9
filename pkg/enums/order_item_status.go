package enums

import "fmt"

// OrderItemStatus tracks the fulfillment lifecycle of an order line item.
type OrderItemStatus string

const (
	OrderItemStatusOrdered              OrderItemStatus = "ordered"
	OrderItemStatusShipped              OrderItemStatus = "shipped"
	OrderItemStatusDelivered            OrderItemStatus = "delivered"
	OrderItemStatusCancelled            OrderItemStatus = "cancelled"
	OrderItemStatusReturnRequested      OrderItemStatus = "return_requested"
	OrderItemStatusDepartedForReturning OrderItemStatus = "departed_for_returning"
	OrderItemStatusReturned             OrderItemStatus = "returned"
	OrderItemStatusReturnCancelled      OrderItemStatus = "return_cancelled"
	OrderItemStatusRefunded             OrderItemStatus = "refunded"
)

var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusOrdered,
	OrderItemStatusShipped,
	OrderItemStatusDelivered,
	OrderItemStatusCancelled,
	OrderItemStatusReturnRequested,
	OrderItemStatusDepartedForReturning,
	OrderItemStatusReturned,
	OrderItemStatusReturnCancelled,
	OrderItemStatusRefunded,
}

// String implements fmt.Stringer.
func (o OrderItemStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderItemStatus.
func (o OrderItemStatus) IsValid() bool {
	for _, candidate := range validOrderItemStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderItemStatus converts raw input into an OrderItemStatus.
func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	for _, candidate := range validOrderItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order item status %q", value)
}
