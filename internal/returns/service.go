package returns

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunmehra/stitchkart-backend/internal/payments"
	"github.com/arjunmehra/stitchkart-backend/internal/transitions"
	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/logger"
	"github.com/arjunmehra/stitchkart-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// transitionApplier is the slice of the transition service the return
// workflow drives. Every status move goes through it so the transition table
// and history rules hold here too.
type transitionApplier interface {
	Apply(ctx context.Context, input transitions.ApplyInput) (*transitions.ApplyResult, error)
}

// paymentRefunder runs the provider refund for an order's transaction.
type paymentRefunder interface {
	Refund(ctx context.Context, transactionID, actorUserID uuid.UUID) (*payments.RefundResult, error)
}

// Service owns the return and cancellation workflow.
type Service interface {
	RequestReturn(ctx context.Context, input RequestInput) (*ItemResult, error)
	Decide(ctx context.Context, input DecideInput) (*ItemResult, error)
	RefundItem(ctx context.Context, input RefundItemInput) (*ItemResult, error)
	CancelOrder(ctx context.Context, input CancelOrderInput) (*CancelOrderResult, error)
}

type service struct {
	repo        Repository
	transitions transitionApplier
	payments    paymentRefunder
	tx          txRunner
	outbox      outboxPublisher
	logg        *logger.Logger
}

// NewService builds a returns service with the required dependencies.
func NewService(
	repo Repository,
	applier transitionApplier,
	refunder paymentRefunder,
	tx txRunner,
	outboxSvc outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("returns repository required")
	}
	if applier == nil {
		return nil, fmt.Errorf("transition applier required")
	}
	if refunder == nil {
		return nil, fmt.Errorf("payment refunder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:        repo,
		transitions: applier,
		payments:    refunder,
		tx:          tx,
		outbox:      outboxSvc,
		logg:        logg,
	}, nil
}

func (s *service) RequestReturn(ctx context.Context, input RequestInput) (*ItemResult, error) {
	item, err := s.loadItem(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}

	result, err := s.transitions.Apply(ctx, transitions.ApplyInput{
		ItemID:      input.ItemID,
		Quantity:    input.Quantity,
		Target:      enums.OrderItemStatusReturnRequested,
		Note:        input.Note,
		ActorUserID: input.ActorUserID,
		ActorRole:   input.ActorRole,
	})
	if err != nil {
		return nil, err
	}

	event := ReturnRequestedEvent{
		OrderID:     item.OrderID,
		ItemID:      input.ItemID,
		Quantity:    input.Quantity,
		Note:        input.Note,
		RequestedAt: time.Now(),
	}
	if err := s.emit(ctx, enums.EventReturnRequested, input.ItemID, input.ActorUserID, input.ActorRole, event); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Decide(ctx context.Context, input DecideInput) (*ItemResult, error) {
	item, err := s.loadItem(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}

	target := enums.OrderItemStatusReturnCancelled
	if input.Approve {
		target = enums.OrderItemStatusDepartedForReturning
	}
	result, err := s.transitions.Apply(ctx, transitions.ApplyInput{
		ItemID:      input.ItemID,
		Quantity:    input.Quantity,
		Target:      target,
		Note:        input.Note,
		ActorUserID: input.ActorUserID,
		ActorRole:   input.ActorRole,
	})
	if err != nil {
		return nil, err
	}

	event := ReturnDecidedEvent{
		OrderID:   item.OrderID,
		ItemID:    input.ItemID,
		Approved:  input.Approve,
		Quantity:  input.Quantity,
		DecidedAt: time.Now(),
	}
	if err := s.emit(ctx, enums.EventReturnDecided, input.ItemID, input.ActorUserID, input.ActorRole, event); err != nil {
		return nil, err
	}
	return result, nil
}

// RefundItem settles refundable units. For an online order the provider
// refund runs before the status change, so the transition service's refund
// precondition sees a refunded transaction. COD orders have nothing to refund
// at the provider, only the status moves.
func (s *service) RefundItem(ctx context.Context, input RefundItemInput) (*ItemResult, error) {
	item, err := s.loadItem(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentMethod == enums.PaymentMethodOnline && order.PaymentStatus != enums.PaymentStatusRefunded {
		if order.TransactionID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no settled transaction to refund")
		}
		if _, err := s.payments.Refund(ctx, *order.TransactionID, input.ActorUserID); err != nil {
			return nil, err
		}
	}

	return s.transitions.Apply(ctx, transitions.ApplyInput{
		ItemID:      input.ItemID,
		Quantity:    input.Quantity,
		Target:      enums.OrderItemStatusRefunded,
		Note:        input.Note,
		ActorUserID: input.ActorUserID,
		ActorRole:   input.ActorRole,
	})
}

// CancelOrder moves every still-ordered line to cancelled and, for a paid
// online order, refunds the transaction.
func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) (*CancelOrderResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListItemsByStatus(ctx, order.ID, enums.OrderItemStatusOrdered)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no lines left to cancel")
	}

	for _, item := range items {
		if _, err := s.transitions.Apply(ctx, transitions.ApplyInput{
			ItemID:      item.ID,
			Quantity:    item.Quantity,
			Target:      enums.OrderItemStatusCancelled,
			Note:        input.Note,
			ActorUserID: input.ActorUserID,
			ActorRole:   input.ActorRole,
		}); err != nil {
			return nil, err
		}
	}

	// A paid online order gets its money back, and the cancelled lines
	// complete the short path to refunded so the provider refund and the item
	// states tell the same story.
	refunded := false
	if order.PaymentMethod == enums.PaymentMethodOnline &&
		order.PaymentStatus == enums.PaymentStatusPaid &&
		order.TransactionID != nil {
		if _, err := s.payments.Refund(ctx, *order.TransactionID, input.ActorUserID); err != nil {
			return nil, err
		}
		refunded = true

		for _, item := range items {
			if _, err := s.transitions.Apply(ctx, transitions.ApplyInput{
				ItemID:      item.ID,
				Quantity:    item.Quantity,
				Target:      enums.OrderItemStatusRefunded,
				Note:        input.Note,
				ActorUserID: input.ActorUserID,
				ActorRole:   input.ActorRole,
			}); err != nil {
				return nil, err
			}
		}
	}

	event := OrderCancelledEvent{
		OrderID:        order.ID,
		CancelledItems: len(items),
		Refunded:       refunded,
		CancelledAt:    time.Now(),
	}
	if err := s.emitOrder(ctx, enums.EventOrderCancelled, order.ID, input.ActorUserID, input.ActorRole, event); err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{"order_id": order.ID.String(), "cancelled": len(items), "refunded": refunded}
		s.logg.Info(s.logg.WithFields(ctx, fields), "order cancelled")
	}
	return &CancelOrderResult{
		OrderID:        order.ID,
		CancelledItems: len(items),
		Refunded:       refunded,
	}, nil
}

func (s *service) loadItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
	}
	return item, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) emit(ctx context.Context, eventType enums.OutboxEventType, itemID, actorUserID uuid.UUID, role string, data any) error {
	return s.emitAggregate(ctx, eventType, enums.AggregateOrderItem, itemID, actorUserID, role, data)
}

func (s *service) emitOrder(ctx context.Context, eventType enums.OutboxEventType, orderID, actorUserID uuid.UUID, role string, data any) error {
	return s.emitAggregate(ctx, eventType, enums.AggregateOrder, orderID, actorUserID, role, data)
}

func (s *service) emitAggregate(ctx context.Context, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, aggregateID, actorUserID uuid.UUID, role string, data any) error {
	var actor *outbox.ActorRef
	if actorUserID != uuid.Nil {
		actor = &outbox.ActorRef{UserID: actorUserID, Role: role}
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: aggregate,
			AggregateID:   aggregateID,
			Actor:         actor,
			Data:          data,
			Version:       1,
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit return event")
	}
	return nil
}
