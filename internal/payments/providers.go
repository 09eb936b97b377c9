package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arjunmehra/stitchkart-backend/pkg/cashfree"
	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/razorpay"
)

// ProviderIntent is the gateway-side handle for a freshly created payment.
// CheckoutRef is what the storefront hands to the provider SDK.
type ProviderIntent struct {
	ProviderOrderID string
	CheckoutRef     string
}

// ProviderRefund is the gateway-side handle for a completed refund.
type ProviderRefund struct {
	RefundID string
	Status   string
}

// Provider is the per-gateway capability set. One implementation exists per
// supported gateway; the service picks one by name and never branches on it.
//
// VerifyCallback answers whether the delivery is authentic. A false return is
// a definitive rejection; an error means the question could not be answered
// yet, so the caller must leave the transaction untouched and let the
// delivery be retried.
type Provider interface {
	Name() enums.PaymentProvider
	CreateOrder(ctx context.Context, receipt string, amount decimal.Decimal, currency, customerID string) (*ProviderIntent, error)
	VerifyCallback(ctx context.Context, in VerifyInput) (bool, error)
	Refund(ctx context.Context, txn *models.PaymentTransaction, amount decimal.Decimal) (*ProviderRefund, error)
}

// Registry maps enabled providers by name.
type Registry map[enums.PaymentProvider]Provider

// NewRegistry indexes the given providers by name.
func NewRegistry(providers ...Provider) Registry {
	registry := make(Registry, len(providers))
	for _, provider := range providers {
		if provider != nil {
			registry[provider.Name()] = provider
		}
	}
	return registry
}

// Lookup returns the provider or a dependency error when it is not wired.
func (r Registry) Lookup(name enums.PaymentProvider) (Provider, error) {
	provider, ok := r[name]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("payment provider %q is not configured", name))
	}
	return provider, nil
}

type razorpayProvider struct {
	client        *razorpay.Client
	webhookSecret string
}

// NewRazorpayProvider adapts the Razorpay client to the Provider interface.
// The webhook secret covers server-to-server deliveries, which are signed
// over the raw body instead of the order and payment id pair.
func NewRazorpayProvider(client *razorpay.Client, webhookSecret string) (Provider, error) {
	if client == nil {
		return nil, fmt.Errorf("razorpay client required")
	}
	return &razorpayProvider{client: client, webhookSecret: webhookSecret}, nil
}

func (p *razorpayProvider) Name() enums.PaymentProvider {
	return enums.PaymentProviderRazorpay
}

func (p *razorpayProvider) CreateOrder(ctx context.Context, receipt string, amount decimal.Decimal, currency, _ string) (*ProviderIntent, error) {
	// Order notes are copied onto the payment entity, which lets webhook
	// deliveries correlate back to our transaction row.
	order, err := p.client.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    map[string]string{"transaction_id": receipt},
	})
	if err != nil {
		return nil, err
	}
	return &ProviderIntent{
		ProviderOrderID: order.ID,
		CheckoutRef:     order.ID,
	}, nil
}

func (p *razorpayProvider) VerifyCallback(_ context.Context, in VerifyInput) (bool, error) {
	if len(in.RawBody) > 0 {
		return razorpay.VerifyWebhookSignature(p.webhookSecret, in.RawBody, in.Signature), nil
	}
	return p.client.VerifyPaymentSignature(in.ProviderOrderID, in.ProviderPaymentID, in.Signature), nil
}

func (p *razorpayProvider) Refund(ctx context.Context, txn *models.PaymentTransaction, amount decimal.Decimal) (*ProviderRefund, error) {
	if txn.ProviderPayID == nil || *txn.ProviderPayID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction has no provider payment id")
	}
	refund, err := p.client.CreateRefund(ctx, *txn.ProviderPayID, amount)
	if err != nil {
		return nil, err
	}
	return &ProviderRefund{RefundID: refund.ID, Status: refund.Status}, nil
}

type cashfreeProvider struct {
	client        *cashfree.Client
	webhookSecret string
}

// NewCashfreeProvider adapts the Cashfree client to the Provider interface.
// Cashfree signs callbacks over timestamp plus raw body, so the webhook
// secret lives here rather than on the client.
func NewCashfreeProvider(client *cashfree.Client, webhookSecret string) (Provider, error) {
	if client == nil {
		return nil, fmt.Errorf("cashfree client required")
	}
	return &cashfreeProvider{client: client, webhookSecret: webhookSecret}, nil
}

func (p *cashfreeProvider) Name() enums.PaymentProvider {
	return enums.PaymentProviderCashfree
}

func (p *cashfreeProvider) CreateOrder(ctx context.Context, receipt string, amount decimal.Decimal, currency, customerID string) (*ProviderIntent, error) {
	order, err := p.client.CreateOrder(ctx, cashfree.CreateOrderRequest{
		OrderID:    receipt,
		Amount:     amount,
		Currency:   currency,
		CustomerID: customerID,
	})
	if err != nil {
		return nil, err
	}
	return &ProviderIntent{
		ProviderOrderID: order.OrderID,
		CheckoutRef:     order.PaymentSessionID,
	}, nil
}

// VerifyCallback covers both delivery shapes. Webhooks carry a signed raw
// body and are checked locally. The hosted checkout hands the storefront no
// signature it could forward, so a client-driven verify asks Cashfree for the
// order state instead. Anything short of PAID is reported as an error, not a
// rejection: the transaction stays pending and the webhook can still settle
// it once the payment lands.
func (p *cashfreeProvider) VerifyCallback(ctx context.Context, in VerifyInput) (bool, error) {
	if len(in.RawBody) > 0 {
		return cashfree.VerifyWebhookSignature(p.webhookSecret, in.Timestamp, in.RawBody, in.Signature), nil
	}
	order, err := p.client.GetOrder(ctx, in.ProviderOrderID)
	if err != nil {
		return false, err
	}
	if order.Status != cashfree.OrderStatusPaid {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cashfree order is %s, not %s", order.Status, cashfree.OrderStatusPaid))
	}
	return true, nil
}

func (p *cashfreeProvider) Refund(ctx context.Context, txn *models.PaymentTransaction, amount decimal.Decimal) (*ProviderRefund, error) {
	if txn.ProviderOrderID == nil || *txn.ProviderOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction has no provider order id")
	}
	refundRef := fmt.Sprintf("rf_%s", txn.ID)
	refund, err := p.client.CreateRefund(ctx, *txn.ProviderOrderID, refundRef, amount)
	if err != nil {
		return nil, err
	}
	return &ProviderRefund{RefundID: refund.RefundID, Status: refund.Status}, nil
}
