package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/outbox"
	"github.com/arjunmehra/stitchkart-backend/pkg/shiprocket"
	"github.com/arjunmehra/stitchkart-backend/pkg/types"
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

type stubCourier struct {
	createCalls int
	awbCalls    int
	pickupCalls int
	createErr   error
	awbErr      error
	pickupErr   error
	lastRequest shiprocket.CreateOrderRequest
}

func (s *stubCourier) CreateAdhocOrder(ctx context.Context, req shiprocket.CreateOrderRequest) (*shiprocket.OrderResult, error) {
	s.createCalls++
	s.lastRequest = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &shiprocket.OrderResult{OrderID: 501, ShipmentID: 9001, Status: "NEW"}, nil
}

func (s *stubCourier) AssignAWB(ctx context.Context, shipmentID int64) (*shiprocket.AWBResult, error) {
	s.awbCalls++
	if s.awbErr != nil {
		return nil, s.awbErr
	}
	return &shiprocket.AWBResult{AWBCode: "AWB123", CourierName: "Delhivery"}, nil
}

func (s *stubCourier) GeneratePickup(ctx context.Context, shipmentID int64) (*shiprocket.PickupResult, error) {
	s.pickupCalls++
	if s.pickupErr != nil {
		return nil, s.pickupErr
	}
	return &shiprocket.PickupResult{PickupTokenNumber: "PK-77", Status: 1}, nil
}

type stubShipper struct {
	shipped int
	calls   int
}

func (s *stubShipper) ShipAllOrdered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error) {
	s.calls++
	return s.shipped, nil
}

type stubRepo struct {
	order    *models.Order
	progress *models.ShippingProgress
	items    []models.OrderItem
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *s.order
	return &clone, nil
}

func (s *stubRepo) FindOrCreateProgress(ctx context.Context, orderID uuid.UUID) (*models.ShippingProgress, error) {
	if s.progress == nil {
		s.progress = &models.ShippingProgress{OrderID: orderID}
	}
	clone := *s.progress
	return &clone, nil
}

func (s *stubRepo) UpdateProgress(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	p := s.progress
	if done, ok := updates["adhoc_order_created"]; ok {
		p.AdhocOrderCreated = done.(bool)
	}
	if id, ok := updates["shiprocket_order_id"]; ok {
		value := id.(string)
		p.ShiprocketOrderID = &value
	}
	if id, ok := updates["shipment_id"]; ok {
		value := id.(string)
		p.ShipmentID = &value
	}
	if done, ok := updates["awb_assigned"]; ok {
		p.AWBAssigned = done.(bool)
	}
	if code, ok := updates["tracking_number"]; ok {
		value := code.(string)
		p.TrackingNumber = &value
	}
	if name, ok := updates["courier_name"]; ok {
		value := name.(string)
		p.CourierName = &value
	}
	if done, ok := updates["pickup_generated"]; ok {
		p.PickupGenerated = done.(bool)
	}
	if id, ok := updates["pickup_id"]; ok {
		value := id.(string)
		p.PickupID = &value
	}
	return nil
}

func (s *stubRepo) ListOrderedItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	return s.items, nil
}

func paidOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		PublicID:      "SK-2001",
		UserID:        uuid.New(),
		PaymentMethod: enums.PaymentMethodOnline,
		PaymentStatus: enums.PaymentStatusPaid,
		TotalAmount:   decimal.NewFromInt(300),
		ShippingAddress: types.Address{
			Name:       "Asha Nair",
			Phone:      "9876543210",
			Line1:      "14 MG Road",
			City:       "Kochi",
			State:      "Kerala",
			PostalCode: "682016",
			Country:    "India",
		},
	}
}

func orderedLine(orderID uuid.UUID, qty int) models.OrderItem {
	return models.OrderItem{
		ID:          uuid.New(),
		OrderID:     orderID,
		ProductID:   uuid.New(),
		ColorID:     uuid.New(),
		Size:        "m",
		Quantity:    qty,
		UnitAmount:  decimal.NewFromInt(100),
		TotalAmount: decimal.NewFromInt(int64(qty) * 100),
		Status:      enums.OrderItemStatusOrdered,
	}
}

type sagaFixture struct {
	svc     Service
	repo    *stubRepo
	courier *stubCourier
	shipper *stubShipper
	outbox  *stubOutbox
}

func newSagaFixture(t *testing.T, order *models.Order, progress *models.ShippingProgress) *sagaFixture {
	t.Helper()
	repo := &stubRepo{order: order, progress: progress}
	if order != nil {
		repo.items = []models.OrderItem{orderedLine(order.ID, 2), orderedLine(order.ID, 1)}
	}
	courier := &stubCourier{}
	shipper := &stubShipper{shipped: 2}
	events := &stubOutbox{}
	svc, err := NewService(repo, stubTxRunner{}, events, courier, shipper, nil, "Primary", nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return &sagaFixture{svc: svc, repo: repo, courier: courier, shipper: shipper, outbox: events}
}

func packageInput(orderID uuid.UUID) AdvanceInput {
	return AdvanceInput{
		OrderID:   orderID,
		LengthCM:  decimal.NewFromInt(30),
		BreadthCM: decimal.NewFromInt(20),
		HeightCM:  decimal.NewFromInt(10),
		WeightKG:  decimal.NewFromFloat(0.5),
	}
}

func progressAt(orderID uuid.UUID, adhoc, awb, pickup bool) *models.ShippingProgress {
	shipmentID := "9001"
	p := &models.ShippingProgress{
		OrderID:           orderID,
		AdhocOrderCreated: adhoc,
		AWBAssigned:       awb,
		PickupGenerated:   pickup,
	}
	if adhoc {
		p.ShipmentID = &shipmentID
	}
	return p
}

func TestAdvanceRunsStepsInOrder(t *testing.T) {
	order := paidOrder()
	f := newSagaFixture(t, order, nil)

	first, err := f.svc.AdvanceNext(context.Background(), packageInput(order.ID))
	if err != nil {
		t.Fatalf("step 1: %v", err)
	}
	if first.Step != StepCreateOrder {
		t.Fatalf("expected create_order, got %s", first.Step)
	}
	if f.repo.progress.ShipmentID == nil || *f.repo.progress.ShipmentID != "9001" {
		t.Fatal("shipment id must be recorded after step 1")
	}
	if !f.courier.lastRequest.LengthCM.Equal(decimal.NewFromInt(30)) ||
		!f.courier.lastRequest.BreadthCM.Equal(decimal.NewFromInt(20)) ||
		!f.courier.lastRequest.HeightCM.Equal(decimal.NewFromInt(10)) ||
		!f.courier.lastRequest.WeightKG.Equal(decimal.NewFromFloat(0.5)) {
		t.Fatalf("package measurements must reach the courier request, got %+v", f.courier.lastRequest)
	}

	second, err := f.svc.AdvanceNext(context.Background(), AdvanceInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("step 2: %v", err)
	}
	if second.Step != StepAssignAWB || second.AWBCode != "AWB123" {
		t.Fatalf("expected assign_awb with AWB123, got %+v", second)
	}

	third, err := f.svc.AdvanceNext(context.Background(), AdvanceInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("step 3: %v", err)
	}
	if third.Step != StepBookPickup || !third.Completed {
		t.Fatalf("expected completing book_pickup, got %+v", third)
	}
	if third.ShippedItems != 2 {
		t.Fatalf("expected 2 shipped items, got %d", third.ShippedItems)
	}
	if f.shipper.calls != 1 {
		t.Fatalf("items ship exactly once, got %d calls", f.shipper.calls)
	}

	if f.courier.createCalls != 1 || f.courier.awbCalls != 1 || f.courier.pickupCalls != 1 {
		t.Fatalf("each courier call runs exactly once, got %d/%d/%d",
			f.courier.createCalls, f.courier.awbCalls, f.courier.pickupCalls)
	}
	want := []enums.OutboxEventType{
		enums.EventShipmentOrderCreated,
		enums.EventShipmentAWBAssigned,
		enums.EventShipmentPickupBooked,
	}
	if len(f.outbox.events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(f.outbox.events))
	}
	for i, eventType := range want {
		if f.outbox.events[i].EventType != eventType {
			t.Fatalf("event %d: expected %s, got %s", i, eventType, f.outbox.events[i].EventType)
		}
	}
}

func TestAdvanceResumesFromRecordedProgress(t *testing.T) {
	tests := []struct {
		name   string
		adhoc  bool
		awb    bool
		pickup bool
		expect Step
	}{
		{name: "nothing done", expect: StepCreateOrder},
		{name: "order created", adhoc: true, expect: StepAssignAWB},
		{name: "awb assigned", adhoc: true, awb: true, expect: StepBookPickup},
		{name: "all done", adhoc: true, awb: true, pickup: true, expect: StepDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := paidOrder()
			f := newSagaFixture(t, order, progressAt(order.ID, tt.adhoc, tt.awb, tt.pickup))

			// Later steps take a bare input: the package block only matters
			// while the courier order is still pending.
			input := AdvanceInput{OrderID: order.ID}
			if tt.expect == StepCreateOrder {
				input = packageInput(order.ID)
			}
			result, err := f.svc.AdvanceNext(context.Background(), input)
			if err != nil {
				t.Fatalf("advance: %v", err)
			}
			if result.Step != tt.expect {
				t.Fatalf("expected %s, got %s", tt.expect, result.Step)
			}
			if tt.adhoc && f.courier.createCalls != 0 {
				t.Fatal("a completed create step must not repeat")
			}
			if tt.awb && f.courier.awbCalls != 0 {
				t.Fatal("a completed awb step must not repeat")
			}
			if tt.pickup && f.courier.pickupCalls != 0 {
				t.Fatal("a completed pickup step must not repeat")
			}
		})
	}
}

func TestAdvanceCompletedSagaIsNoOp(t *testing.T) {
	order := paidOrder()
	f := newSagaFixture(t, order, progressAt(order.ID, true, true, true))

	result, err := f.svc.AdvanceNext(context.Background(), AdvanceInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if result.Step != StepDone || !result.Completed {
		t.Fatalf("expected done/completed, got %+v", result)
	}
	if len(f.outbox.events) != 0 {
		t.Fatal("a completed saga must not emit events")
	}
	if f.shipper.calls != 0 {
		t.Fatal("a completed saga must not touch items")
	}
}

func TestAdvanceFailedStepLeavesFlagUnset(t *testing.T) {
	order := paidOrder()
	f := newSagaFixture(t, order, progressAt(order.ID, true, false, false))
	f.courier.awbErr = errors.New("courier unavailable")

	_, err := f.svc.AdvanceNext(context.Background(), AdvanceInput{OrderID: order.ID})
	if err == nil {
		t.Fatal("expected the courier failure to surface")
	}
	if f.repo.progress.AWBAssigned {
		t.Fatal("a failed step must not set its flag")
	}

	f.courier.awbErr = nil
	result, err := f.svc.AdvanceNext(context.Background(), AdvanceInput{OrderID: order.ID})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if result.Step != StepAssignAWB {
		t.Fatalf("retry must run the same step, got %s", result.Step)
	}
	if !f.repo.progress.AWBAssigned {
		t.Fatal("the retried step must record its flag")
	}
}

func TestAdvanceRejectsNonPositivePackage(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AdvanceInput)
	}{
		{name: "zero length", mutate: func(in *AdvanceInput) { in.LengthCM = decimal.Zero }},
		{name: "zero breadth", mutate: func(in *AdvanceInput) { in.BreadthCM = decimal.Zero }},
		{name: "zero height", mutate: func(in *AdvanceInput) { in.HeightCM = decimal.Zero }},
		{name: "zero weight", mutate: func(in *AdvanceInput) { in.WeightKG = decimal.Zero }},
		{name: "negative weight", mutate: func(in *AdvanceInput) { in.WeightKG = decimal.NewFromInt(-1) }},
		{name: "missing block", mutate: func(in *AdvanceInput) {
			in.LengthCM, in.BreadthCM, in.HeightCM, in.WeightKG = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := paidOrder()
			f := newSagaFixture(t, order, nil)

			input := packageInput(order.ID)
			tt.mutate(&input)
			_, err := f.svc.AdvanceNext(context.Background(), input)
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if f.courier.createCalls != 0 {
				t.Fatal("courier must not see an unmeasured package")
			}
			if f.repo.progress != nil && f.repo.progress.AdhocOrderCreated {
				t.Fatal("a rejected step must not set its flag")
			}
		})
	}
}

func TestAdvanceRejectsUnpaidOnlineOrder(t *testing.T) {
	order := paidOrder()
	order.PaymentStatus = enums.PaymentStatusPending
	f := newSagaFixture(t, order, nil)

	_, err := f.svc.AdvanceNext(context.Background(), AdvanceInput{OrderID: order.ID})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if f.courier.createCalls != 0 {
		t.Fatal("courier must not be called for an unpaid order")
	}
}

func TestAdvanceAllowsUnpaidCODOrder(t *testing.T) {
	order := paidOrder()
	order.PaymentMethod = enums.PaymentMethodCOD
	order.PaymentStatus = enums.PaymentStatusPending
	f := newSagaFixture(t, order, nil)

	result, err := f.svc.AdvanceNext(context.Background(), packageInput(order.ID))
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if result.Step != StepCreateOrder {
		t.Fatalf("expected create_order, got %s", result.Step)
	}
	if f.courier.lastRequest.PaymentMethod != "COD" {
		t.Fatalf("expected COD payment method, got %s", f.courier.lastRequest.PaymentMethod)
	}
}

func TestAdvanceUnknownOrder(t *testing.T) {
	f := newSagaFixture(t, paidOrder(), nil)

	_, err := f.svc.AdvanceNext(context.Background(), AdvanceInput{OrderID: uuid.New()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNextStepOrdering(t *testing.T) {
	if got := NextStep(nil); got != StepCreateOrder {
		t.Fatalf("nil progress should start the saga, got %s", got)
	}
	p := &models.ShippingProgress{}
	if got := NextStep(p); got != StepCreateOrder {
		t.Fatalf("expected create_order, got %s", got)
	}
	p.AdhocOrderCreated = true
	if got := NextStep(p); got != StepAssignAWB {
		t.Fatalf("expected assign_awb, got %s", got)
	}
	p.AWBAssigned = true
	if got := NextStep(p); got != StepBookPickup {
		t.Fatalf("expected book_pickup, got %s", got)
	}
	p.PickupGenerated = true
	if got := NextStep(p); got != StepDone {
		t.Fatalf("expected done, got %s", got)
	}
}
