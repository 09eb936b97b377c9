package transitions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

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

type stubPayments struct {
	refundCompleted bool
	appliedItemIDs  []uuid.UUID
	appliedQty      int
}

func (s *stubPayments) RefundCompleted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	return s.refundCompleted, nil
}

func (s *stubPayments) RefundApplied(ctx context.Context, tx *gorm.DB, orderID, itemID uuid.UUID, quantity int) error {
	s.appliedItemIDs = append(s.appliedItemIDs, itemID)
	s.appliedQty += quantity
	return nil
}

type stubRepo struct {
	order   *models.Order
	items   map[uuid.UUID]*models.OrderItem
	history map[uuid.UUID][]models.StatusHistoryEntry
}

func newStubRepo(order *models.Order, items ...*models.OrderItem) *stubRepo {
	repo := &stubRepo{
		order:   order,
		items:   map[uuid.UUID]*models.OrderItem{},
		history: map[uuid.UUID][]models.StatusHistoryEntry{},
	}
	for _, item := range items {
		repo.items[item.ID] = item
	}
	return repo
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	item, ok := s.items[itemID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *item
	return &clone, nil
}

func (s *stubRepo) FindItemForUpdate(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error) {
	return s.FindItem(ctx, itemID)
}

func (s *stubRepo) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.order
	return &clone, nil
}

func (s *stubRepo) UpdateItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	item := s.items[itemID]
	if status, ok := updates["status"]; ok {
		item.Status = status.(enums.OrderItemStatus)
	}
	if qty, ok := updates["quantity"]; ok {
		item.Quantity = qty.(int)
	}
	if total, ok := updates["total_amount"]; ok {
		item.TotalAmount = total.(decimal.Decimal)
	}
	return nil
}

func (s *stubRepo) CreateItem(ctx context.Context, item *models.OrderItem) error {
	clone := *item
	s.items[item.ID] = &clone
	return nil
}

func (s *stubRepo) AppendHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	s.history[entry.ItemID] = append(s.history[entry.ItemID], *entry)
	return nil
}

func (s *stubRepo) ListHistory(ctx context.Context, itemID uuid.UUID) ([]models.StatusHistoryEntry, error) {
	return s.history[itemID], nil
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

func buildFixture(t *testing.T, method enums.PaymentMethod, status enums.OrderItemStatus, qty int) (*stubRepo, *models.Order, *models.OrderItem) {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		PublicID:      "SK-1001",
		PaymentMethod: method,
	}
	item := &models.OrderItem{
		ID:          uuid.New(),
		OrderID:     order.ID,
		ProductID:   uuid.New(),
		ColorID:     uuid.New(),
		Size:        "M",
		Quantity:    qty,
		UnitAmount:  decimal.NewFromInt(499),
		TotalAmount: decimal.NewFromInt(499).Mul(decimal.NewFromInt(int64(qty))),
		Status:      status,
	}
	return newStubRepo(order, item), order, item
}

func newTestService(t *testing.T, repo Repository, payments PaymentReconciler) (Service, *stubOutbox) {
	t.Helper()
	ob := &stubOutbox{}
	svc, err := NewService(repo, stubTxRunner{}, ob, payments, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, ob
}

func TestApplyFullQuantityMutatesInPlace(t *testing.T) {
	repo, _, item := buildFixture(t, enums.PaymentMethodCOD, enums.OrderItemStatusOrdered, 3)
	svc, ob := newTestService(t, repo, &stubPayments{})

	result, err := svc.Apply(context.Background(), ApplyInput{
		ItemID:   item.ID,
		Quantity: 3,
		Target:   enums.OrderItemStatusShipped,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.SplitItem != nil {
		t.Fatal("full-quantity transition must not split")
	}
	if repo.items[item.ID].Status != enums.OrderItemStatusShipped {
		t.Fatalf("expected shipped, got %s", repo.items[item.ID].Status)
	}
	entries := repo.history[item.ID]
	if len(entries) != 1 || entries[0].Quantity != 3 || entries[0].Status != enums.OrderItemStatusShipped {
		t.Fatalf("unexpected history %+v", entries)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventItemTransitioned {
		t.Fatalf("expected one transition event, got %+v", ob.events)
	}
}

func TestApplyPartialQuantitySplitsRow(t *testing.T) {
	repo, _, item := buildFixture(t, enums.PaymentMethodCOD, enums.OrderItemStatusDelivered, 5)
	svc, _ := newTestService(t, repo, &stubPayments{})

	note := "wrong size"
	result, err := svc.Apply(context.Background(), ApplyInput{
		ItemID:   item.ID,
		Quantity: 2,
		Target:   enums.OrderItemStatusReturnRequested,
		Note:     &note,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.SplitItem == nil {
		t.Fatal("partial transition must split")
	}

	source := repo.items[item.ID]
	if source.Quantity != 3 || source.Status != enums.OrderItemStatusDelivered {
		t.Fatalf("source row should keep old status with remainder, got %+v", source)
	}
	split := repo.items[result.SplitItem.ID]
	if split.Quantity != 2 || split.Status != enums.OrderItemStatusReturnRequested {
		t.Fatalf("split row wrong, got %+v", split)
	}
	if split.ParentItemID == nil || *split.ParentItemID != item.ID {
		t.Fatal("split row must reference its parent")
	}
	if split.TotalAmount.Cmp(decimal.NewFromInt(998)) != 0 {
		t.Fatalf("split total should be 2 units, got %s", split.TotalAmount)
	}

	// Quantity conservation across the product/color/size key.
	if source.Quantity+split.Quantity != 5 {
		t.Fatalf("quantities must sum to the ordered 5, got %d", source.Quantity+split.Quantity)
	}

	entries := repo.history[split.ID]
	if len(entries) != 1 || entries[0].Quantity != 2 || entries[0].Note == nil || *entries[0].Note != note {
		t.Fatalf("split history wrong %+v", entries)
	}
	if len(repo.history[item.ID]) != 0 {
		t.Fatal("source history must be untouched by a split")
	}
}

func TestApplyRejectsIllegalTransition(t *testing.T) {
	repo, _, item := buildFixture(t, enums.PaymentMethodCOD, enums.OrderItemStatusOrdered, 2)
	svc, ob := newTestService(t, repo, &stubPayments{})

	_, err := svc.Apply(context.Background(), ApplyInput{
		ItemID:   item.ID,
		Quantity: 2,
		Target:   enums.OrderItemStatusDelivered,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if repo.items[item.ID].Status != enums.OrderItemStatusOrdered {
		t.Fatal("status must be unchanged after a rejected transition")
	}
	if len(repo.history[item.ID]) != 0 {
		t.Fatal("history must be unchanged after a rejected transition")
	}
	if len(ob.events) != 0 {
		t.Fatal("no event on a rejected transition")
	}
}

func TestApplyRejectsExcessQuantity(t *testing.T) {
	repo, _, item := buildFixture(t, enums.PaymentMethodCOD, enums.OrderItemStatusOrdered, 2)
	svc, _ := newTestService(t, repo, &stubPayments{})

	_, err := svc.Apply(context.Background(), ApplyInput{
		ItemID:   item.ID,
		Quantity: 3,
		Target:   enums.OrderItemStatusShipped,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyRefundedRequiresProviderRefundForOnline(t *testing.T) {
	repo, _, item := buildFixture(t, enums.PaymentMethodOnline, enums.OrderItemStatusReturned, 1)
	payments := &stubPayments{refundCompleted: false}
	svc, _ := newTestService(t, repo, payments)

	_, err := svc.Apply(context.Background(), ApplyInput{
		ItemID:   item.ID,
		Quantity: 1,
		Target:   enums.OrderItemStatusRefunded,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict without completed refund, got %v", err)
	}
	if repo.items[item.ID].Status != enums.OrderItemStatusReturned {
		t.Fatal("item must stay returned")
	}

	payments.refundCompleted = true
	if _, err := svc.Apply(context.Background(), ApplyInput{
		ItemID:   item.ID,
		Quantity: 1,
		Target:   enums.OrderItemStatusRefunded,
	}); err != nil {
		t.Fatalf("apply after refund: %v", err)
	}
	if payments.appliedQty != 1 || len(payments.appliedItemIDs) != 1 {
		t.Fatalf("expected refund-applied notification, got %+v", payments)
	}
}

func TestApplyRefundedSkipsProviderCheckForCOD(t *testing.T) {
	repo, _, item := buildFixture(t, enums.PaymentMethodCOD, enums.OrderItemStatusReturned, 1)
	payments := &stubPayments{refundCompleted: false}
	svc, _ := newTestService(t, repo, payments)

	if _, err := svc.Apply(context.Background(), ApplyInput{
		ItemID:   item.ID,
		Quantity: 1,
		Target:   enums.OrderItemStatusRefunded,
	}); err != nil {
		t.Fatalf("cod refund transition: %v", err)
	}
	if repo.items[item.ID].Status != enums.OrderItemStatusRefunded {
		t.Fatal("cod item should reach refunded without a provider refund")
	}
}

func TestApplyUnknownItem(t *testing.T) {
	repo, _, _ := buildFixture(t, enums.PaymentMethodCOD, enums.OrderItemStatusOrdered, 1)
	svc, _ := newTestService(t, repo, &stubPayments{})

	_, err := svc.Apply(context.Background(), ApplyInput{
		ItemID:   uuid.New(),
		Quantity: 1,
		Target:   enums.OrderItemStatusShipped,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAvailableTransitionsForItem(t *testing.T) {
	repo, _, item := buildFixture(t, enums.PaymentMethodCOD, enums.OrderItemStatusDelivered, 1)
	svc, _ := newTestService(t, repo, &stubPayments{})

	result, err := svc.AvailableTransitions(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("available transitions: %v", err)
	}
	if result.Current != enums.OrderItemStatusDelivered {
		t.Fatalf("unexpected current %s", result.Current)
	}
	if len(result.Transitions) != 1 || result.Transitions[0].Status != enums.OrderItemStatusReturnRequested {
		t.Fatalf("unexpected transitions %+v", result.Transitions)
	}
}

func TestShipAllOrderedBatch(t *testing.T) {
	order := &models.Order{ID: uuid.New(), PublicID: "SK-1002", PaymentMethod: enums.PaymentMethodCOD}
	ordered1 := &models.OrderItem{ID: uuid.New(), OrderID: order.ID, Quantity: 2, UnitAmount: decimal.NewFromInt(100), Status: enums.OrderItemStatusOrdered}
	ordered2 := &models.OrderItem{ID: uuid.New(), OrderID: order.ID, Quantity: 1, UnitAmount: decimal.NewFromInt(200), Status: enums.OrderItemStatusOrdered}
	cancelled := &models.OrderItem{ID: uuid.New(), OrderID: order.ID, Quantity: 1, UnitAmount: decimal.NewFromInt(300), Status: enums.OrderItemStatusCancelled}
	repo := newStubRepo(order, ordered1, ordered2, cancelled)
	svc, ob := newTestService(t, repo, &stubPayments{})

	count, err := svc.ShipAllOrdered(context.Background(), &gorm.DB{}, order.ID)
	if err != nil {
		t.Fatalf("ship all ordered: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 items shipped, got %d", count)
	}
	if repo.items[ordered1.ID].Status != enums.OrderItemStatusShipped ||
		repo.items[ordered2.ID].Status != enums.OrderItemStatusShipped {
		t.Fatal("ordered items should be shipped")
	}
	if repo.items[cancelled.ID].Status != enums.OrderItemStatusCancelled {
		t.Fatal("cancelled item must be untouched")
	}
	if len(ob.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(ob.events))
	}
	if len(repo.history[ordered1.ID]) != 1 || repo.history[ordered1.ID][0].Quantity != 2 {
		t.Fatalf("unexpected history %+v", repo.history[ordered1.ID])
	}
}
