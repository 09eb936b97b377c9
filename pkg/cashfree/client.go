package cashfree

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.cashfree.com/pg"
	apiVersion                  = "2023-08-01"
	responseBodyReadLimit int64 = 1024
)

// Order statuses Cashfree reports on GET /orders/{id}.
const (
	OrderStatusActive     = "ACTIVE"
	OrderStatusPaid       = "PAID"
	OrderStatusExpired    = "EXPIRED"
	OrderStatusTerminated = "TERMINATED"
)

var errCredentialsRequired = errors.New("cashfree app id and secret key are required")

// Client wraps the Cashfree Payment Gateway APIs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	secretKey  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the Cashfree client given API credentials.
func NewClient(appID, secretKey string, opts ...Option) (*Client, error) {
	trimmedID := strings.TrimSpace(appID)
	trimmedSecret := strings.TrimSpace(secretKey)
	if trimmedID == "" || trimmedSecret == "" {
		return nil, errCredentialsRequired
	}

	client := &Client{
		appID:      trimmedID,
		secretKey:  trimmedSecret,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// CreateOrderRequest describes an order to register with Cashfree.
type CreateOrderRequest struct {
	OrderID       string
	Amount        decimal.Decimal
	Currency      string
	CustomerID    string
	CustomerPhone string
}

// Order is the provider-side order returned by Cashfree. PaymentSessionID is
// handed to the client SDK to open the checkout.
type Order struct {
	OrderID          string          `json:"order_id"`
	CFOrderID        string          `json:"cf_order_id"`
	Amount           decimal.Decimal `json:"order_amount"`
	Currency         string          `json:"order_currency"`
	Status           string          `json:"order_status"`
	PaymentSessionID string          `json:"payment_session_id"`
}

// Refund is the provider-side refund returned by Cashfree.
type Refund struct {
	RefundID string          `json:"refund_id"`
	OrderID  string          `json:"order_id"`
	Amount   decimal.Decimal `json:"refund_amount"`
	Status   string          `json:"refund_status"`
}

// CreateOrder registers an order with Cashfree and returns the provider order.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cashfree client not configured")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	if strings.TrimSpace(req.Currency) == "" {
		req.Currency = "INR"
	}

	body := map[string]any{
		"order_id":       req.OrderID,
		"order_amount":   req.Amount,
		"order_currency": req.Currency,
		"customer_details": map[string]any{
			"customer_id":    req.CustomerID,
			"customer_phone": req.CustomerPhone,
		},
	}

	var order Order
	if err := c.do(ctx, http.MethodPost, "orders", body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder fetches the current provider-side state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cashfree client not configured")
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var order Order
	if err := c.do(ctx, http.MethodGet, "orders/"+url.PathEscape(trimmed), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateRefund issues a refund against a paid order.
func (c *Client) CreateRefund(ctx context.Context, orderID, refundID string, amount decimal.Decimal) (*Refund, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cashfree client not configured")
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	body := map[string]any{
		"refund_id":     refundID,
		"refund_amount": amount,
	}

	path := fmt.Sprintf("orders/%s/refunds", url.PathEscape(trimmed))
	var refund Refund
	if err := c.do(ctx, http.MethodPost, path, body, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// VerifyWebhookSignature checks the x-webhook-signature header, a base64
// HMAC-SHA256 digest of "<timestamp><raw body>" under the webhook secret.
func VerifyWebhookSignature(secret, timestamp string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal cashfree request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build cashfree request")
	}
	httpReq.Header.Set("x-client-id", c.appID)
	httpReq.Header.Set("x-client-secret", c.secretKey)
	httpReq.Header.Set("x-api-version", apiVersion)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute cashfree request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "cashfree request failed")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode cashfree response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
