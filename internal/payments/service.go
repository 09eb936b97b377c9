package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/logger"
	"github.com/arjunmehra/stitchkart-backend/pkg/metrics"
	"github.com/arjunmehra/stitchkart-backend/pkg/outbox"
	"github.com/arjunmehra/stitchkart-backend/pkg/redis"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

const callbackScope = "payment"

// Service owns the payment lifecycle: intent creation, provider callback
// verification and refunds. It also answers the transition service's refund
// reconciliation queries.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*IntentResult, error)
	VerifyCallback(ctx context.Context, input VerifyInput) (*VerifyResult, error)
	Refund(ctx context.Context, transactionID, actorUserID uuid.UUID) (*RefundResult, error)
	RefundCompleted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
	RefundApplied(ctx context.Context, tx *gorm.DB, orderID, itemID uuid.UUID, quantity int) error
	Config() *ConfigStore
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	config      *ConfigStore
	providers   Registry
	dedup       redis.DedupGuard
	metrics     *metrics.ProviderCallMetrics
	logg        *logger.Logger
	callbackTTL time.Duration
}

// NewService builds a payment service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	configStore *ConfigStore,
	providers Registry,
	dedup redis.DedupGuard,
	callMetrics *metrics.ProviderCallMetrics,
	callbackTTL time.Duration,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if configStore == nil {
		return nil, fmt.Errorf("config store required")
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one payment provider required")
	}
	if dedup == nil {
		return nil, fmt.Errorf("dedup guard required")
	}
	if callbackTTL <= 0 {
		callbackTTL = 10 * time.Minute
	}
	return &service{
		repo:        repo,
		tx:          tx,
		outbox:      outboxSvc,
		config:      configStore,
		providers:   providers,
		dedup:       dedup,
		metrics:     callMetrics,
		logg:        logg,
		callbackTTL: callbackTTL,
	}, nil
}

func (s *service) Config() *ConfigStore {
	return s.config
}

func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*IntentResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.PaymentMethod != enums.PaymentMethodOnline {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not an online payment order")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}

	snapshot := s.config.Snapshot()
	providerName := input.Provider
	if providerName == "" {
		providerName = snapshot.DefaultProvider
	}
	if !snapshot.ProviderEnabled(providerName) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payment provider %q is currently disabled", providerName))
	}

	amount := order.TotalAmount
	if !input.Amount.IsZero() && !input.Amount.Equal(amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("amount %s does not match the order total %s", input.Amount, amount))
	}
	if err := snapshot.ValidateAmount(amount); err != nil {
		return nil, err
	}

	provider, err := s.providers.Lookup(providerName)
	if err != nil {
		return nil, err
	}

	// The transaction id doubles as the provider-side receipt, so it is
	// minted before the row exists.
	txnID := uuid.New()
	intent, err := s.callProvider(ctx, providerName, "create_order", func() (*ProviderIntent, error) {
		return provider.CreateOrder(ctx, txnID.String(), amount, snapshot.Currency, order.UserID.String())
	})
	if err != nil {
		return nil, err
	}

	txn := &models.PaymentTransaction{
		ID:              txnID,
		OrderID:         order.ID,
		Provider:        providerName,
		ProviderOrderID: &intent.ProviderOrderID,
		CheckoutRef:     &intent.CheckoutRef,
		Amount:          amount,
		Currency:        snapshot.Currency,
		Status:          enums.TransactionStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment transaction")
		}
		event := PaymentIntentCreatedEvent{
			TransactionID:   txn.ID,
			OrderID:         order.ID,
			Provider:        providerName,
			ProviderOrderID: intent.ProviderOrderID,
			Amount:          amount,
			Currency:        snapshot.Currency,
			CreatedAt:       time.Now(),
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentIntentCreated,
			AggregateType: enums.AggregatePaymentTransaction,
			AggregateID:   txn.ID,
			Actor:         actorRef(input.ActorUserID),
			Data:          event,
			Version:       1,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithTransactionID(ctx, txn.ID.String()), "payment intent created")
	}
	return &IntentResult{
		TransactionID:   txn.ID,
		Provider:        providerName,
		ProviderOrderID: intent.ProviderOrderID,
		CheckoutRef:     intent.CheckoutRef,
		Amount:          amount,
		Currency:        snapshot.Currency,
	}, nil
}

func (s *service) VerifyCallback(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	if input.TransactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	// First-writer claim on the delivery. A concurrent or repeated delivery
	// inside the TTL short-circuits to the stored outcome.
	claimed, err := s.dedup.CheckAndMark(ctx, callbackScope, input.TransactionID.String(), s.callbackTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim callback delivery")
	}
	if !claimed {
		return s.storedOutcome(ctx, input.TransactionID)
	}

	result, err := s.verifyClaimed(ctx, input)
	if err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeSignature) {
			// A system failure must not burn the claim: the provider will
			// retry the delivery and it has to be processable.
			if releaseErr := s.dedup.Release(ctx, callbackScope, input.TransactionID.String()); releaseErr != nil && s.logg != nil {
				s.logg.Error(ctx, "release callback claim", releaseErr)
			}
		}
		return nil, err
	}
	return result, nil
}

func (s *service) verifyClaimed(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	var result *VerifyResult
	var rejection error
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		txn, err := repo.FindTransactionForUpdate(ctx, input.TransactionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment transaction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment transaction")
		}

		// Terminal transactions never change again; redelivery after the
		// dedup TTL expired lands here and gets the recorded outcome.
		if txn.Status.IsTerminal() {
			order, err := repo.FindOrder(ctx, txn.OrderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
			result = &VerifyResult{
				TransactionID:      txn.ID,
				Status:             txn.Status,
				OrderPaymentStatus: order.PaymentStatus,
				AlreadyProcessed:   true,
			}
			return nil
		}

		provider, err := s.providers.Lookup(txn.Provider)
		if err != nil {
			return err
		}

		// The stored provider order id is authoritative. A payload naming a
		// different order is rejected before the provider round trip.
		if txn.ProviderOrderID != nil && *txn.ProviderOrderID != "" {
			if input.ProviderOrderID != "" && input.ProviderOrderID != *txn.ProviderOrderID {
				rejection, err = s.rejectCallback(ctx, tx, repo, txn, "callback provider order id does not match the transaction")
				return err
			}
			input.ProviderOrderID = *txn.ProviderOrderID
		}

		// Authenticity before anything else. An unauthenticated payload must
		// not influence any state beyond the failure mark itself, and that
		// mark has to commit even though the caller gets an error. A provider
		// error is not a rejection: the transaction stays pending and the
		// error surfaces so the delivery can be retried.
		authentic, err := provider.VerifyCallback(ctx, input)
		if err != nil {
			return err
		}
		if !authentic {
			rejection, err = s.rejectCallback(ctx, tx, repo, txn, "signature verification failed")
			return err
		}
		if input.Amount != nil && !input.Amount.Equal(txn.Amount) {
			rejection, err = s.rejectCallback(ctx, tx, repo, txn,
				fmt.Sprintf("callback amount %s does not match transaction amount %s", input.Amount, txn.Amount))
			return err
		}

		order, err := repo.FindOrderForUpdate(ctx, txn.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		if err := repo.UpdateTransaction(ctx, txn.ID, map[string]any{
			"status":              enums.TransactionStatusSuccess,
			"provider_payment_id": input.ProviderPaymentID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction success")
		}
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"payment_status":   enums.PaymentStatusPaid,
			"payment_provider": txn.Provider,
			"transaction_id":   txn.ID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}

		event := PaymentVerifiedEvent{
			TransactionID:     txn.ID,
			OrderID:           order.ID,
			Provider:          txn.Provider,
			ProviderPaymentID: input.ProviderPaymentID,
			Amount:            txn.Amount,
			VerifiedAt:        time.Now(),
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentVerified,
			AggregateType: enums.AggregatePaymentTransaction,
			AggregateID:   txn.ID,
			Data:          event,
			Version:       1,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment verified event")
		}

		result = &VerifyResult{
			TransactionID:      txn.ID,
			Status:             enums.TransactionStatusSuccess,
			OrderPaymentStatus: enums.PaymentStatusPaid,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rejection != nil {
		return nil, rejection
	}

	if s.logg != nil && !result.AlreadyProcessed {
		s.logg.Info(s.logg.WithTransactionID(ctx, result.TransactionID.String()), "payment callback verified")
	}
	return result, nil
}

// rejectCallback marks the transaction failed inside the caller's transaction
// and prepares the signature error handed to the caller once the mark has
// committed. The order row is never touched.
func (s *service) rejectCallback(ctx context.Context, tx *gorm.DB, repo Repository, txn *models.PaymentTransaction, reason string) (error, error) {
	if err := repo.UpdateTransaction(ctx, txn.ID, map[string]any{
		"status":         enums.TransactionStatusFailed,
		"failure_reason": reason,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction failed")
	}
	event := PaymentFailedEvent{
		TransactionID: txn.ID,
		OrderID:       txn.OrderID,
		Provider:      txn.Provider,
		Reason:        reason,
		FailedAt:      time.Now(),
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePaymentTransaction,
		AggregateID:   txn.ID,
		Data:          event,
		Version:       1,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment failed event")
	}
	sigErr := pkgerrors.New(pkgerrors.CodeSignature, reason)
	if s.logg != nil {
		s.logg.Security(s.logg.WithTransactionID(ctx, txn.ID.String()), "payment callback rejected", sigErr)
	}
	return sigErr, nil
}

func (s *service) storedOutcome(ctx context.Context, txnID uuid.UUID) (*VerifyResult, error) {
	txn, err := s.repo.FindTransaction(ctx, txnID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment transaction")
	}
	order, err := s.repo.FindOrder(ctx, txn.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &VerifyResult{
		TransactionID:      txn.ID,
		Status:             txn.Status,
		OrderPaymentStatus: order.PaymentStatus,
		AlreadyProcessed:   true,
	}, nil
}

func (s *service) Refund(ctx context.Context, transactionID, actorUserID uuid.UUID) (*RefundResult, error) {
	if transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	txn, err := s.repo.FindTransaction(ctx, transactionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment transaction")
	}
	if txn.Status != enums.TransactionStatusSuccess {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("only a successful transaction can be refunded, current status is %s", txn.Status))
	}

	provider, err := s.providers.Lookup(txn.Provider)
	if err != nil {
		return nil, err
	}
	refund, err := s.callProviderRefund(ctx, txn.Provider, func() (*ProviderRefund, error) {
		return provider.Refund(ctx, txn, txn.Amount)
	})
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindTransactionForUpdate(ctx, txn.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment transaction")
		}
		if locked.Status != enums.TransactionStatusSuccess {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("transaction moved to %s while the refund was in flight", locked.Status))
		}
		if err := repo.UpdateTransaction(ctx, txn.ID, map[string]any{
			"status":    enums.TransactionStatusRefunded,
			"refund_id": refund.RefundID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction refunded")
		}
		if err := repo.UpdateOrder(ctx, txn.OrderID, map[string]any{
			"payment_status": enums.PaymentStatusRefunded,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order refunded")
		}
		event := PaymentRefundedEvent{
			TransactionID: txn.ID,
			OrderID:       txn.OrderID,
			Provider:      txn.Provider,
			RefundID:      refund.RefundID,
			Amount:        txn.Amount,
			RefundedAt:    time.Now(),
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRefunded,
			AggregateType: enums.AggregatePaymentTransaction,
			AggregateID:   txn.ID,
			Actor:         actorRef(actorUserID),
			Data:          event,
			Version:       1,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithTransactionID(ctx, txn.ID.String()), "payment refunded")
	}
	return &RefundResult{
		TransactionID: txn.ID,
		RefundID:      refund.RefundID,
		Status:        enums.TransactionStatusRefunded,
	}, nil
}

// RefundCompleted reports whether the order has a refunded transaction. The
// transition service calls this before letting a line move to refunded.
func (s *service) RefundCompleted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	_, err := s.repo.WithTx(tx).FindTransactionByOrderAndStatus(ctx, orderID, enums.TransactionStatusRefunded)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up refunded transaction")
	}
	return true, nil
}

// RefundApplied records that refunded units were reconciled against the
// order's transaction. The transition itself already carries the event.
func (s *service) RefundApplied(ctx context.Context, _ *gorm.DB, orderID, itemID uuid.UUID, quantity int) error {
	if s.logg != nil {
		fields := map[string]any{
			"order_id": orderID.String(),
			"item_id":  itemID.String(),
			"quantity": quantity,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "refund applied to order line")
	}
	return nil
}

func (s *service) callProvider(ctx context.Context, name enums.PaymentProvider, operation string, call func() (*ProviderIntent, error)) (*ProviderIntent, error) {
	start := time.Now()
	intent, err := call()
	s.metrics.ObserveDuration(name.String(), operation, time.Since(start))
	if err != nil {
		s.metrics.IncFailure(name.String(), operation)
		return nil, err
	}
	s.metrics.IncSuccess(name.String(), operation)
	return intent, nil
}

func (s *service) callProviderRefund(ctx context.Context, name enums.PaymentProvider, call func() (*ProviderRefund, error)) (*ProviderRefund, error) {
	start := time.Now()
	refund, err := call()
	s.metrics.ObserveDuration(name.String(), "refund", time.Since(start))
	if err != nil {
		s.metrics.IncFailure(name.String(), "refund")
		return nil, err
	}
	s.metrics.IncSuccess(name.String(), "refund")
	return refund, nil
}

func actorRef(userID uuid.UUID) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID}
}
