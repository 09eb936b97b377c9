package enums

import "fmt"

// OutboxAggregateType identifies the aggregate a domain event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder              OutboxAggregateType = "order"
	AggregateOrderItem          OutboxAggregateType = "order_item"
	AggregatePaymentTransaction OutboxAggregateType = "payment_transaction"
	AggregateShipment           OutboxAggregateType = "shipment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateOrderItem,
	AggregatePaymentTransaction,
	AggregateShipment,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType identifies the domain event carried in an outbox row.
type OutboxEventType string

const (
	EventItemTransitioned     OutboxEventType = "item_transitioned"
	EventPaymentIntentCreated OutboxEventType = "payment_intent_created"
	EventPaymentVerified      OutboxEventType = "payment_verified"
	EventPaymentFailed        OutboxEventType = "payment_failed"
	EventPaymentRefunded      OutboxEventType = "payment_refunded"
	EventShipmentOrderCreated OutboxEventType = "shipment_order_created"
	EventShipmentAWBAssigned  OutboxEventType = "shipment_awb_assigned"
	EventShipmentPickupBooked OutboxEventType = "shipment_pickup_booked"
	EventReturnRequested      OutboxEventType = "return_requested"
	EventReturnDecided        OutboxEventType = "return_decided"
	EventOrderCancelled       OutboxEventType = "order_cancelled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventItemTransitioned,
	EventPaymentIntentCreated,
	EventPaymentVerified,
	EventPaymentFailed,
	EventPaymentRefunded,
	EventShipmentOrderCreated,
	EventShipmentAWBAssigned,
	EventShipmentPickupBooked,
	EventReturnRequested,
	EventReturnDecided,
	EventOrderCancelled,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
