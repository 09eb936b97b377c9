package transitions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

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

// PaymentReconciler is the slice of the payment service the transition
// service needs: whether a provider refund has completed for an order, and a
// hook to record that a refund was applied to specific units.
type PaymentReconciler interface {
	RefundCompleted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
	RefundApplied(ctx context.Context, tx *gorm.DB, orderID, itemID uuid.UUID, quantity int) error
}

// Service applies status transitions to order items.
type Service interface {
	AvailableTransitions(ctx context.Context, itemID uuid.UUID) (*AvailableResult, error)
	Apply(ctx context.Context, input ApplyInput) (*ApplyResult, error)
	ShipAllOrdered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	payments PaymentReconciler
	logg     *logger.Logger
}

// NewService builds a transition service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, payments PaymentReconciler, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transitions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment reconciler required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		payments: payments,
		logg:     logg,
	}, nil
}

func (s *service) AvailableTransitions(ctx context.Context, itemID uuid.UUID) (*AvailableResult, error) {
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
	return &AvailableResult{
		ItemID:      item.ID,
		Current:     item.Status,
		Transitions: AvailableTransitions(item.Status),
	}, nil
}

func (s *service) Apply(ctx context.Context, input ApplyInput) (*ApplyResult, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown target status %q", input.Target))
	}

	var result *ApplyResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Resolve the order first and lock it: every mutation of an
		// order's items goes through this row lock, which serializes
		// racing transitions and the shipping saga's batch update.
		item, err := repo.FindItem(ctx, input.ItemID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		order, err := repo.FindOrderForUpdate(ctx, item.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		item, err = repo.FindItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order item")
		}

		if input.Quantity > item.Quantity {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("quantity %d exceeds the %d units on this line", input.Quantity, item.Quantity))
		}
		if !IsValidTransition(item.Status, input.Target) {
			return illegalTransitionError(item.Status, input.Target)
		}
		if input.Target == enums.OrderItemStatusRefunded && order.PaymentMethod == enums.PaymentMethodOnline {
			refunded, err := s.payments.RefundCompleted(ctx, tx, order.ID)
			if err != nil {
				return err
			}
			if !refunded {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					"cannot mark refunded: no successful provider refund recorded for this order's transaction")
			}
		}

		res, err := s.applyLocked(ctx, repo, order, item, input)
		if err != nil {
			return err
		}

		transitionedID := res.Item.ID
		var splitID *uuid.UUID
		if res.SplitItem != nil {
			transitionedID = res.SplitItem.ID
			splitID = &res.SplitItem.ID
		}
		if input.Target == enums.OrderItemStatusRefunded {
			if err := s.payments.RefundApplied(ctx, tx, order.ID, transitionedID, input.Quantity); err != nil {
				return err
			}
		}

		event := ItemTransitionedEvent{
			OrderID:     order.ID,
			ItemID:      item.ID,
			SplitItemID: splitID,
			From:        item.Status,
			To:          input.Target,
			Quantity:    input.Quantity,
			ChangedAt:   time.Now(),
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemTransitioned,
			AggregateType: enums.AggregateOrderItem,
			AggregateID:   item.ID,
			Actor:         actorRef(input.ActorUserID, input.ActorRole),
			Data:          event,
			Version:       1,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit transition event")
		}

		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{"item_id": input.ItemID.String(), "target": input.Target.String(), "quantity": input.Quantity}
		s.logg.Info(s.logg.WithFields(ctx, fields), "item transition applied")
	}
	return result, nil
}

// applyLocked performs the row mutation under the caller's transaction and
// order lock. A full-quantity move mutates the row in place; a partial move
// splits off a new row carrying the target status.
func (s *service) applyLocked(ctx context.Context, repo Repository, order *models.Order, item *models.OrderItem, input ApplyInput) (*ApplyResult, error) {
	now := time.Now()

	if input.Quantity == item.Quantity {
		if err := repo.UpdateItem(ctx, item.ID, map[string]any{"status": input.Target}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item status")
		}
		entry := models.StatusHistoryEntry{
			ItemID:    item.ID,
			Status:    input.Target,
			Quantity:  input.Quantity,
			Note:      input.Note,
			ChangedAt: now,
		}
		if err := repo.AppendHistory(ctx, &entry); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}
		updated := *item
		updated.Status = input.Target
		return &ApplyResult{Item: &updated}, nil
	}

	remaining := item.Quantity - input.Quantity
	if err := repo.UpdateItem(ctx, item.ID, map[string]any{
		"quantity":     remaining,
		"total_amount": item.UnitAmount.Mul(decimalFromInt(remaining)),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "shrink source item")
	}

	split := models.OrderItem{
		ID:           uuid.New(),
		OrderID:      order.ID,
		ProductID:    item.ProductID,
		ColorID:      item.ColorID,
		Size:         item.Size,
		Quantity:     input.Quantity,
		UnitAmount:   item.UnitAmount,
		TotalAmount:  item.UnitAmount.Mul(decimalFromInt(input.Quantity)),
		Status:       input.Target,
		ParentItemID: &item.ID,
	}
	if err := repo.CreateItem(ctx, &split); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create split item")
	}
	entry := models.StatusHistoryEntry{
		ItemID:    split.ID,
		Status:    input.Target,
		Quantity:  input.Quantity,
		Note:      input.Note,
		ChangedAt: now,
	}
	if err := repo.AppendHistory(ctx, &entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append split history")
	}

	updated := *item
	updated.Quantity = remaining
	updated.TotalAmount = item.UnitAmount.Mul(decimalFromInt(remaining))
	return &ApplyResult{Item: &updated, SplitItem: &split}, nil
}

// ShipAllOrdered moves every Ordered item of the order to Shipped inside the
// caller's transaction. The shipping orchestrator invokes this after pickup
// generation so no item is left behind mid-shipment.
func (s *service) ShipAllOrdered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	repo := s.repo.WithTx(tx)

	items, err := repo.ListItemsByStatus(ctx, orderID, enums.OrderItemStatusOrdered)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ordered items")
	}

	now := time.Now()
	for _, item := range items {
		if err := repo.UpdateItem(ctx, item.ID, map[string]any{"status": enums.OrderItemStatusShipped}); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item shipped")
		}
		entry := models.StatusHistoryEntry{
			ItemID:    item.ID,
			Status:    enums.OrderItemStatusShipped,
			Quantity:  item.Quantity,
			ChangedAt: now,
		}
		if err := repo.AppendHistory(ctx, &entry); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append shipped history")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemTransitioned,
			AggregateType: enums.AggregateOrderItem,
			AggregateID:   item.ID,
			Data: ItemTransitionedEvent{
				OrderID:   orderID,
				ItemID:    item.ID,
				From:      enums.OrderItemStatusOrdered,
				To:        enums.OrderItemStatusShipped,
				Quantity:  item.Quantity,
				ChangedAt: now,
			},
			Version: 1,
		}); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit shipped event")
		}
	}
	return len(items), nil
}

func illegalTransitionError(current, target enums.OrderItemStatus) error {
	options := AvailableTransitions(current)
	if len(options) == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("%s is a terminal status; no further transitions are allowed", StatusLabel(current)))
	}
	labels := make([]string, 0, len(options))
	for _, option := range options {
		labels = append(labels, option.Label)
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot move %s to %s; allowed: %s", StatusLabel(current), StatusLabel(target), strings.Join(labels, ", ")))
}

func decimalFromInt(v int) decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}

func actorRef(userID uuid.UUID, role string) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, Role: role}
}
