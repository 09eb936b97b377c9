package shiprocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://apiv2.shiprocket.in/v1/external"
	responseBodyReadLimit int64 = 1024

	// Tokens are valid for ten days; cache slightly under that.
	tokenCacheTTL = 9 * 24 * time.Hour
	tokenScope    = "shiprocket"
)

var errCredentialsRequired = errors.New("shiprocket email and password are required")

// TokenStore caches the login token between calls. A nil store disables
// caching and forces a login per client instance.
type TokenStore interface {
	GetVendorToken(ctx context.Context, vendor string) (string, error)
	StoreVendorToken(ctx context.Context, vendor, token string, ttl time.Duration) error
}

// Client wraps the Shiprocket external APIs used for forward shipments.
type Client struct {
	httpClient *http.Client
	baseURL    string
	email      string
	password   string
	tokens     TokenStore

	cachedToken string
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

// WithTokenStore plugs in a shared token cache.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.tokens = store
	}
}

// NewClient builds the Shiprocket client given account credentials.
func NewClient(email, password string, opts ...Option) (*Client, error) {
	trimmedEmail := strings.TrimSpace(email)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedEmail == "" || trimmedPassword == "" {
		return nil, errCredentialsRequired
	}

	client := &Client{
		email:      trimmedEmail,
		password:   trimmedPassword,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// OrderItem is one line of an adhoc order.
type OrderItem struct {
	Name     string          `json:"name"`
	SKU      string          `json:"sku"`
	Units    int             `json:"units"`
	Price    decimal.Decimal `json:"selling_price"`
	Discount decimal.Decimal `json:"discount"`
}

// CreateOrderRequest describes an adhoc order to register with Shiprocket.
type CreateOrderRequest struct {
	OrderID         string
	OrderDate       time.Time
	PickupLocation  string
	BillingName     string
	BillingAddress  string
	BillingCity     string
	BillingState    string
	BillingPincode  string
	BillingCountry  string
	BillingPhone    string
	PaymentMethod   string
	SubTotal        decimal.Decimal
	Items           []OrderItem
	LengthCM        decimal.Decimal
	BreadthCM       decimal.Decimal
	HeightCM        decimal.Decimal
	WeightKG        decimal.Decimal
}

// OrderResult identifies the provider-side order and shipment created for it.
type OrderResult struct {
	OrderID    int64  `json:"order_id"`
	ShipmentID int64  `json:"shipment_id"`
	Status     string `json:"status"`
}

// AWBResult carries the waybill assigned to a shipment.
type AWBResult struct {
	AWBCode     string `json:"awb_code"`
	CourierName string `json:"courier_name"`
}

// PickupResult confirms a pickup booking.
type PickupResult struct {
	PickupTokenNumber string `json:"pickup_token_number"`
	PickupScheduled   string `json:"pickup_scheduled_date"`
	Status            int    `json:"pickup_status"`
}

// CreateAdhocOrder registers a forward order and returns the shipment handle.
func (c *Client) CreateAdhocOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shiprocket client not configured")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order item is required")
	}

	orderDate := req.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}
	country := req.BillingCountry
	if country == "" {
		country = "India"
	}

	body := map[string]any{
		"order_id":                req.OrderID,
		"order_date":              orderDate.Format("2006-01-02 15:04"),
		"pickup_location":         req.PickupLocation,
		"billing_customer_name":   req.BillingName,
		"billing_last_name":       "",
		"billing_address":         req.BillingAddress,
		"billing_city":            req.BillingCity,
		"billing_state":           req.BillingState,
		"billing_pincode":         req.BillingPincode,
		"billing_country":         country,
		"billing_phone":           req.BillingPhone,
		"shipping_is_billing":     true,
		"payment_method":          req.PaymentMethod,
		"sub_total":               req.SubTotal,
		"order_items":             req.Items,
		"length":                  req.LengthCM,
		"breadth":                 req.BreadthCM,
		"height":                  req.HeightCM,
		"weight":                  req.WeightKG,
	}

	var result OrderResult
	if err := c.doAuthed(ctx, http.MethodPost, "orders/create/adhoc", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AssignAWB requests a waybill for the shipment.
func (c *Client) AssignAWB(ctx context.Context, shipmentID int64) (*AWBResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shiprocket client not configured")
	}
	if shipmentID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id is required")
	}

	body := map[string]any{"shipment_id": shipmentID}
	var resp struct {
		AWBAssignStatus int `json:"awb_assign_status"`
		Response        struct {
			Data AWBResult `json:"data"`
		} `json:"response"`
	}
	if err := c.doAuthed(ctx, http.MethodPost, "courier/assign/awb", body, &resp); err != nil {
		return nil, err
	}
	if resp.Response.Data.AWBCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shiprocket did not assign an awb")
	}
	return &resp.Response.Data, nil
}

// GeneratePickup books the courier pickup for the shipment.
func (c *Client) GeneratePickup(ctx context.Context, shipmentID int64) (*PickupResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shiprocket client not configured")
	}
	if shipmentID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id is required")
	}

	body := map[string]any{"shipment_id": []int64{shipmentID}}
	var result PickupResult
	if err := c.doAuthed(ctx, http.MethodPost, "courier/generate/pickup", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Login exchanges credentials for a bearer token, bypassing the cache.
func (c *Client) Login(ctx context.Context) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "shiprocket client not configured")
	}

	body := map[string]any{"email": c.email, "password": c.password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/login", "", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "shiprocket login returned no token")
	}
	return resp.Token, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.cachedToken != "" {
		return c.cachedToken, nil
	}
	if c.tokens != nil {
		if token, err := c.tokens.GetVendorToken(ctx, tokenScope); err == nil && token != "" {
			c.cachedToken = token
			return token, nil
		}
	}

	token, err := c.Login(ctx)
	if err != nil {
		return "", err
	}
	c.cachedToken = token
	if c.tokens != nil {
		if err := c.tokens.StoreVendorToken(ctx, tokenScope, token, tokenCacheTTL); err != nil {
			return token, nil
		}
	}
	return token, nil
}

func (c *Client) doAuthed(ctx context.Context, method, path string, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	err = c.do(ctx, method, path, token, body, out)
	if pkgerrors.HasCode(err, pkgerrors.CodeDependency) && strings.Contains(err.Error(), "status 401") {
		// Stale cached token; log in again and retry once.
		c.cachedToken = ""
		token, loginErr := c.Login(ctx)
		if loginErr != nil {
			return loginErr
		}
		c.cachedToken = token
		if c.tokens != nil {
			_ = c.tokens.StoreVendorToken(ctx, tokenScope, token, tokenCacheTTL)
		}
		return c.do(ctx, method, path, token, body, out)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal shiprocket request")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build shiprocket request")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute shiprocket request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "shiprocket request failed")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shiprocket response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
