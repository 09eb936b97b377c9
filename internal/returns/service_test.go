package returns

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/arjunmehra/stitchkart-backend/internal/payments"
	"github.com/arjunmehra/stitchkart-backend/internal/transitions"
	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/outbox"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubApplier struct {
	applied []transitions.ApplyInput
	err     error
}

func (s *stubApplier) Apply(ctx context.Context, input transitions.ApplyInput) (*transitions.ApplyResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.applied = append(s.applied, input)
	return &transitions.ApplyResult{
		Item: &models.OrderItem{ID: input.ItemID, Status: input.Target, Quantity: input.Quantity},
	}, nil
}

type stubRefunder struct {
	calls  int
	lastID uuid.UUID
	err    error
}

func (s *stubRefunder) Refund(ctx context.Context, transactionID, actorUserID uuid.UUID) (*payments.RefundResult, error) {
	s.calls++
	s.lastID = transactionID
	if s.err != nil {
		return nil, s.err
	}
	return &payments.RefundResult{TransactionID: transactionID, RefundID: "rfnd_1", Status: enums.TransactionStatusRefunded}, nil
}

type stubRepo struct {
	order *models.Order
	items map[uuid.UUID]*models.OrderItem
}

func newStubRepo(order *models.Order, items ...*models.OrderItem) *stubRepo {
	repo := &stubRepo{order: order, items: map[uuid.UUID]*models.OrderItem{}}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (s *stubRepo) FindItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	item, ok := s.items[itemID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *item
	return &clone, nil
}

func (s *stubRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.order
	return &clone, nil
}

func (s *stubRepo) ListItemsByStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderItemStatus) ([]models.OrderItem, error) {
	var items []models.OrderItem
	for _, item := range s.items {
		if item.OrderID == orderID && item.Status == status {
			items = append(items, *item)
		}
	}
	return items, nil
}

type returnsFixture struct {
	svc      Service
	repo     *stubRepo
	applier  *stubApplier
	refunder *stubRefunder
	outbox   *stubOutbox
}

func newReturnsFixture(t *testing.T, order *models.Order, items ...*models.OrderItem) *returnsFixture {
	t.Helper()
	repo := newStubRepo(order, items...)
	applier := &stubApplier{}
	refunder := &stubRefunder{}
	events := &stubOutbox{}
	svc, err := NewService(repo, applier, refunder, stubTxRunner{}, events, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return &returnsFixture{svc: svc, repo: repo, applier: applier, refunder: refunder, outbox: events}
}

func codOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		PublicID:      "SK-3001",
		UserID:        uuid.New(),
		PaymentMethod: enums.PaymentMethodCOD,
		PaymentStatus: enums.PaymentStatusPending,
		TotalAmount:   decimal.NewFromInt(400),
	}
}

func paidOnlineOrder() *models.Order {
	txnID := uuid.New()
	order := codOrder()
	order.PaymentMethod = enums.PaymentMethodOnline
	order.PaymentStatus = enums.PaymentStatusPaid
	order.TransactionID = &txnID
	return order
}

func lineAt(orderID uuid.UUID, status enums.OrderItemStatus, qty int) *models.OrderItem {
	return &models.OrderItem{
		ID:          uuid.New(),
		OrderID:     orderID,
		ProductID:   uuid.New(),
		ColorID:     uuid.New(),
		Size:        "l",
		Quantity:    qty,
		UnitAmount:  decimal.NewFromInt(100),
		TotalAmount: decimal.NewFromInt(int64(qty) * 100),
		Status:      status,
	}
}

func TestRequestReturnAppliesTransitionAndEmits(t *testing.T) {
	order := codOrder()
	item := lineAt(order.ID, enums.OrderItemStatusDelivered, 2)
	f := newReturnsFixture(t, order, item)

	result, err := f.svc.RequestReturn(context.Background(), RequestInput{ItemID: item.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("request return: %v", err)
	}
	if result.Item.Status != enums.OrderItemStatusReturnRequested {
		t.Fatalf("expected return_requested, got %s", result.Item.Status)
	}
	if len(f.applier.applied) != 1 || f.applier.applied[0].Target != enums.OrderItemStatusReturnRequested {
		t.Fatalf("expected one return_requested transition, got %+v", f.applier.applied)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventReturnRequested {
		t.Fatalf("expected one return_requested event, got %v", f.outbox.events)
	}
}

func TestDecideApproveMovesIntoReturnPipeline(t *testing.T) {
	order := codOrder()
	item := lineAt(order.ID, enums.OrderItemStatusReturnRequested, 1)
	f := newReturnsFixture(t, order, item)

	_, err := f.svc.Decide(context.Background(), DecideInput{ItemID: item.ID, Quantity: 1, Approve: true})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if f.applier.applied[0].Target != enums.OrderItemStatusDepartedForReturning {
		t.Fatalf("expected departed_for_returning, got %s", f.applier.applied[0].Target)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventReturnDecided {
		t.Fatalf("expected one return_decided event, got %v", f.outbox.events)
	}
}

func TestDecideRejectCancelsReturn(t *testing.T) {
	order := codOrder()
	item := lineAt(order.ID, enums.OrderItemStatusReturnRequested, 1)
	f := newReturnsFixture(t, order, item)

	_, err := f.svc.Decide(context.Background(), DecideInput{ItemID: item.ID, Quantity: 1, Approve: false})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if f.applier.applied[0].Target != enums.OrderItemStatusReturnCancelled {
		t.Fatalf("expected return_cancelled, got %s", f.applier.applied[0].Target)
	}
}

func TestRefundItemOnlineRunsProviderRefundFirst(t *testing.T) {
	order := paidOnlineOrder()
	item := lineAt(order.ID, enums.OrderItemStatusReturned, 1)
	f := newReturnsFixture(t, order, item)

	_, err := f.svc.RefundItem(context.Background(), RefundItemInput{ItemID: item.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("refund item: %v", err)
	}
	if f.refunder.calls != 1 || f.refunder.lastID != *order.TransactionID {
		t.Fatalf("expected one provider refund for the order transaction, got %d calls", f.refunder.calls)
	}
	if f.applier.applied[0].Target != enums.OrderItemStatusRefunded {
		t.Fatalf("expected refunded transition, got %s", f.applier.applied[0].Target)
	}
}

func TestRefundItemSkipsProviderWhenAlreadyRefunded(t *testing.T) {
	order := paidOnlineOrder()
	order.PaymentStatus = enums.PaymentStatusRefunded
	item := lineAt(order.ID, enums.OrderItemStatusReturned, 1)
	f := newReturnsFixture(t, order, item)

	_, err := f.svc.RefundItem(context.Background(), RefundItemInput{ItemID: item.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("refund item: %v", err)
	}
	if f.refunder.calls != 0 {
		t.Fatal("an already-refunded order must not trigger a second provider refund")
	}
}

func TestRefundItemCODSkipsProvider(t *testing.T) {
	order := codOrder()
	item := lineAt(order.ID, enums.OrderItemStatusCancelled, 1)
	f := newReturnsFixture(t, order, item)

	_, err := f.svc.RefundItem(context.Background(), RefundItemInput{ItemID: item.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("refund item: %v", err)
	}
	if f.refunder.calls != 0 {
		t.Fatal("cod orders have no provider refund")
	}
	if f.applier.applied[0].Target != enums.OrderItemStatusRefunded {
		t.Fatalf("expected refunded transition, got %s", f.applier.applied[0].Target)
	}
}

func TestCancelOrderCancelsAllOrderedLines(t *testing.T) {
	order := paidOnlineOrder()
	first := lineAt(order.ID, enums.OrderItemStatusOrdered, 2)
	second := lineAt(order.ID, enums.OrderItemStatusOrdered, 1)
	shipped := lineAt(order.ID, enums.OrderItemStatusShipped, 3)
	f := newReturnsFixture(t, order, first, second, shipped)

	result, err := f.svc.CancelOrder(context.Background(), CancelOrderInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if result.CancelledItems != 2 {
		t.Fatalf("expected 2 cancelled lines, got %d", result.CancelledItems)
	}
	if !result.Refunded {
		t.Fatal("a paid online order must be refunded on cancel")
	}
	if f.refunder.calls != 1 {
		t.Fatalf("expected one provider refund, got %d", f.refunder.calls)
	}

	// Each line cancels first, then completes to refunded once the provider
	// refund has settled.
	if len(f.applier.applied) != 4 {
		t.Fatalf("expected 2 cancelled + 2 refunded transitions, got %+v", f.applier.applied)
	}
	for i, applied := range f.applier.applied {
		if applied.ItemID == shipped.ID {
			t.Fatal("shipped lines must not be touched")
		}
		want := enums.OrderItemStatusCancelled
		if i >= 2 {
			want = enums.OrderItemStatusRefunded
		}
		if applied.Target != want {
			t.Fatalf("transition %d: expected %s, got %s", i, want, applied.Target)
		}
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventOrderCancelled {
		t.Fatalf("expected one order_cancelled event, got %v", f.outbox.events)
	}
}

func TestCancelOrderCODNoRefund(t *testing.T) {
	order := codOrder()
	item := lineAt(order.ID, enums.OrderItemStatusOrdered, 1)
	f := newReturnsFixture(t, order, item)

	result, err := f.svc.CancelOrder(context.Background(), CancelOrderInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if result.Refunded {
		t.Fatal("cod cancel has no provider refund")
	}
	if f.refunder.calls != 0 {
		t.Fatal("provider must not be called for cod cancel")
	}
	for _, applied := range f.applier.applied {
		if applied.Target != enums.OrderItemStatusCancelled {
			t.Fatalf("cod cancel must stop at cancelled, got %s", applied.Target)
		}
	}
}

func TestCancelOrderNothingLeft(t *testing.T) {
	order := codOrder()
	shipped := lineAt(order.ID, enums.OrderItemStatusShipped, 1)
	f := newReturnsFixture(t, order, shipped)

	_, err := f.svc.CancelOrder(context.Background(), CancelOrderInput{OrderID: order.ID})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRequestReturnUnknownItem(t *testing.T) {
	f := newReturnsFixture(t, codOrder())

	_, err := f.svc.RequestReturn(context.Background(), RequestInput{ItemID: uuid.New(), Quantity: 1})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
