package shipping

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/logger"
	"github.com/arjunmehra/stitchkart-backend/pkg/metrics"
	"github.com/arjunmehra/stitchkart-backend/pkg/outbox"
	"github.com/arjunmehra/stitchkart-backend/pkg/shiprocket"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// courierGateway is the slice of the Shiprocket client the saga drives.
type courierGateway interface {
	CreateAdhocOrder(ctx context.Context, req shiprocket.CreateOrderRequest) (*shiprocket.OrderResult, error)
	AssignAWB(ctx context.Context, shipmentID int64) (*shiprocket.AWBResult, error)
	GeneratePickup(ctx context.Context, shipmentID int64) (*shiprocket.PickupResult, error)
}

// itemShipper moves an order's remaining ordered lines to shipped inside the
// caller's transaction. The transition service implements it.
type itemShipper interface {
	ShipAllOrdered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error)
}

const courierProvider = "shiprocket"

// Service runs the shipping saga for paid orders.
type Service interface {
	AdvanceNext(ctx context.Context, input AdvanceInput) (*AdvanceResult, error)
	Progress(ctx context.Context, orderID uuid.UUID) (*models.ShippingProgress, error)
}

type service struct {
	repo          Repository
	tx            txRunner
	outbox        outboxPublisher
	courier       courierGateway
	items         itemShipper
	metrics       *metrics.ProviderCallMetrics
	logg          *logger.Logger
	pickupStation string
}

// NewService builds a shipping service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	courier courierGateway,
	items itemShipper,
	callMetrics *metrics.ProviderCallMetrics,
	pickupStation string,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipping repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if courier == nil {
		return nil, fmt.Errorf("courier gateway required")
	}
	if items == nil {
		return nil, fmt.Errorf("item shipper required")
	}
	if pickupStation == "" {
		pickupStation = "Primary"
	}
	return &service{
		repo:          repo,
		tx:            tx,
		outbox:        outboxSvc,
		courier:       courier,
		items:         items,
		metrics:       callMetrics,
		logg:          logg,
		pickupStation: pickupStation,
	}, nil
}

func (s *service) Progress(ctx context.Context, orderID uuid.UUID) (*models.ShippingProgress, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var progress *models.ShippingProgress
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindOrderForUpdate(ctx, orderID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		found, err := repo.FindOrCreateProgress(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping progress")
		}
		progress = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return progress, nil
}

// AdvanceNext runs exactly one step: the first one whose flag is still unset.
// The order lock is held across the step, so a concurrent invocation waits
// and then sees the updated flags instead of repeating the step.
func (s *service) AdvanceNext(ctx context.Context, input AdvanceInput) (*AdvanceResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *AdvanceResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.PaymentMethod == enums.PaymentMethodOnline && order.PaymentStatus != enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "online order is not paid yet")
		}

		progress, err := repo.FindOrCreateProgress(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping progress")
		}

		step := NextStep(progress)
		switch step {
		case StepCreateOrder:
			result, err = s.createCourierOrder(ctx, tx, repo, order, input)
		case StepAssignAWB:
			result, err = s.assignWaybill(ctx, tx, repo, order, progress, input)
		case StepBookPickup:
			result, err = s.bookPickup(ctx, tx, repo, order, progress, input)
		case StepDone:
			result = &AdvanceResult{OrderID: order.ID, Step: StepDone, Completed: true}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		fields := map[string]any{"order_id": input.OrderID.String(), "step": string(result.Step)}
		s.logg.Info(s.logg.WithFields(ctx, fields), "shipping saga advanced")
	}
	return result, nil
}

func (s *service) createCourierOrder(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, input AdvanceInput) (*AdvanceResult, error) {
	if err := validatePackage(input); err != nil {
		return nil, err
	}

	items, err := repo.ListOrderedItems(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no lines left to ship")
	}

	lines := make([]shiprocket.OrderItem, 0, len(items))
	subTotal := decimal.Zero
	for _, item := range items {
		lines = append(lines, shiprocket.OrderItem{
			Name:  fmt.Sprintf("%s / %s", shortID(item.ProductID), item.Size),
			SKU:   lineSKU(item),
			Units: item.Quantity,
			Price: item.UnitAmount,
		})
		subTotal = subTotal.Add(item.TotalAmount)
	}

	address := order.ShippingAddress
	req := shiprocket.CreateOrderRequest{
		OrderID:        order.PublicID,
		OrderDate:      order.OrderedAt,
		PickupLocation: s.pickupStation,
		BillingName:    address.Name,
		BillingAddress: billingLine(address.Line1, address.Line2),
		BillingCity:    address.City,
		BillingState:   address.State,
		BillingPincode: address.PostalCode,
		BillingCountry: address.Country,
		BillingPhone:   address.Phone,
		PaymentMethod:  courierPaymentMethod(order.PaymentMethod),
		SubTotal:       subTotal,
		Items:          lines,
		LengthCM:       input.LengthCM,
		BreadthCM:      input.BreadthCM,
		HeightCM:       input.HeightCM,
		WeightKG:       input.WeightKG,
	}

	start := time.Now()
	created, err := s.courier.CreateAdhocOrder(ctx, req)
	s.observe("create_order", start, err)
	if err != nil {
		return nil, err
	}

	shiprocketOrderID := strconv.FormatInt(created.OrderID, 10)
	shipmentID := strconv.FormatInt(created.ShipmentID, 10)
	if err := repo.UpdateProgress(ctx, order.ID, map[string]any{
		"adhoc_order_created": true,
		"shiprocket_order_id": shiprocketOrderID,
		"shipment_id":         shipmentID,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record courier order")
	}

	event := ShipmentOrderCreatedEvent{
		OrderID:           order.ID,
		ShiprocketOrderID: shiprocketOrderID,
		ShipmentID:        shipmentID,
		CreatedAt:         time.Now(),
	}
	if err := s.emit(ctx, tx, enums.EventShipmentOrderCreated, order.ID, input, event); err != nil {
		return nil, err
	}
	return &AdvanceResult{OrderID: order.ID, Step: StepCreateOrder}, nil
}

func (s *service) assignWaybill(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, progress *models.ShippingProgress, input AdvanceInput) (*AdvanceResult, error) {
	shipmentID, err := shipmentIDFrom(progress)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	assigned, err := s.courier.AssignAWB(ctx, shipmentID)
	s.observe("assign_awb", start, err)
	if err != nil {
		return nil, err
	}

	if err := repo.UpdateProgress(ctx, order.ID, map[string]any{
		"awb_assigned":    true,
		"tracking_number": assigned.AWBCode,
		"courier_name":    assigned.CourierName,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record waybill")
	}

	event := ShipmentAWBAssignedEvent{
		OrderID:     order.ID,
		AWBCode:     assigned.AWBCode,
		CourierName: assigned.CourierName,
		AssignedAt:  time.Now(),
	}
	if err := s.emit(ctx, tx, enums.EventShipmentAWBAssigned, order.ID, input, event); err != nil {
		return nil, err
	}
	return &AdvanceResult{
		OrderID:     order.ID,
		Step:        StepAssignAWB,
		AWBCode:     assigned.AWBCode,
		CourierName: assigned.CourierName,
	}, nil
}

func (s *service) bookPickup(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, progress *models.ShippingProgress, input AdvanceInput) (*AdvanceResult, error) {
	shipmentID, err := shipmentIDFrom(progress)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	booked, err := s.courier.GeneratePickup(ctx, shipmentID)
	s.observe("generate_pickup", start, err)
	if err != nil {
		return nil, err
	}

	// The final step carries the item transitions in the same transaction:
	// either the order is fully booked and shipped, or neither happened.
	shipped, err := s.items.ShipAllOrdered(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := repo.UpdateProgress(ctx, order.ID, map[string]any{
		"pickup_generated": true,
		"pickup_id":        booked.PickupTokenNumber,
		"shipped_at":       now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record pickup")
	}

	event := ShipmentPickupBookedEvent{
		OrderID:      order.ID,
		PickupID:     booked.PickupTokenNumber,
		ShippedItems: shipped,
		BookedAt:     now,
	}
	if err := s.emit(ctx, tx, enums.EventShipmentPickupBooked, order.ID, input, event); err != nil {
		return nil, err
	}
	return &AdvanceResult{
		OrderID:      order.ID,
		Step:         StepBookPickup,
		Completed:    true,
		ShippedItems: shipped,
	}, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, orderID uuid.UUID, input AdvanceInput, data any) error {
	var actor *outbox.ActorRef
	if input.ActorUserID != uuid.Nil {
		actor = &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole}
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateShipment,
		AggregateID:   orderID,
		Actor:         actor,
		Data:          data,
		Version:       1,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit shipment event")
	}
	return nil
}

func (s *service) observe(operation string, start time.Time, err error) {
	s.metrics.ObserveDuration(courierProvider, operation, time.Since(start))
	if err != nil {
		s.metrics.IncFailure(courierProvider, operation)
		return
	}
	s.metrics.IncSuccess(courierProvider, operation)
}

func shipmentIDFrom(progress *models.ShippingProgress) (int64, error) {
	if progress.ShipmentID == nil || *progress.ShipmentID == "" {
		return 0, pkgerrors.New(pkgerrors.CodeStateConflict, "shipping progress has no shipment id")
	}
	id, err := strconv.ParseInt(*progress.ShipmentID, 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse shipment id")
	}
	return id, nil
}

// validatePackage guards the courier-order step: Shiprocket rejects or
// silently misprices shipments registered with zero dimensions or weight.
func validatePackage(input AdvanceInput) error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"length_cm", input.LengthCM},
		{"breadth_cm", input.BreadthCM},
		{"height_cm", input.HeightCM},
		{"weight_kg", input.WeightKG},
	}
	for _, f := range fields {
		if f.value.LessThanOrEqual(decimal.Zero) {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be positive", f.name))
		}
	}
	return nil
}

func courierPaymentMethod(method enums.PaymentMethod) string {
	if method == enums.PaymentMethodCOD {
		return "COD"
	}
	return "Prepaid"
}

func billingLine(line1 string, line2 *string) string {
	if line2 == nil || strings.TrimSpace(*line2) == "" {
		return line1
	}
	return line1 + ", " + *line2
}

func lineSKU(item models.OrderItem) string {
	return fmt.Sprintf("%s-%s-%s", shortID(item.ProductID), shortID(item.ColorID), strings.ToUpper(item.Size))
}

func shortID(id uuid.UUID) string {
	return strings.Split(id.String(), "-")[0]
}
