package cashfree

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestClientCreateOrderRequest(t *testing.T) {
	const expectedURL = "http://cashfree.test/pg/orders"
	respBody := `{"order_id":"SK-1001","cf_order_id":"cf_9","order_amount":499.50,"order_currency":"INR","order_status":"ACTIVE","payment_session_id":"session_xyz"}`

	var capturedURL string
	var capturedHeaders http.Header

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		if payload["order_id"] != "SK-1001" {
			t.Fatalf("unexpected order_id %v", payload["order_id"])
		}
		if payload["order_amount"] != float64(499.5) {
			t.Fatalf("unexpected amount %v", payload["order_amount"])
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("app_id", "secret_key",
		WithBaseURL("http://cashfree.test/pg"),
		WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		OrderID:       "SK-1001",
		Amount:        decimal.RequireFromString("499.50"),
		CustomerID:    "cust_1",
		CustomerPhone: "9999999999",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("x-client-id") != "app_id" {
		t.Fatalf("client id header missing")
	}
	if capturedHeaders.Get("x-api-version") != apiVersion {
		t.Fatalf("unexpected api version %q", capturedHeaders.Get("x-api-version"))
	}
	if order.PaymentSessionID != "session_xyz" {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestClientCreateRefundRequest(t *testing.T) {
	const expectedURL = "http://cashfree.test/pg/orders/SK-1001/refunds"
	respBody := `{"refund_id":"rf_1","order_id":"SK-1001","refund_amount":499.50,"refund_status":"SUCCESS"}`

	var capturedURL string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("app_id", "secret_key",
		WithBaseURL("http://cashfree.test/pg"),
		WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	refund, err := client.CreateRefund(context.Background(), "SK-1001", "rf_1", decimal.RequireFromString("499.50"))
	if err != nil {
		t.Fatalf("create refund: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if refund.RefundID != "rf_1" || refund.Status != "SUCCESS" {
		t.Fatalf("unexpected refund %+v", refund)
	}
}

func TestClientCreateRefundRejectsNonPositiveAmount(t *testing.T) {
	client, err := NewClient("app_id", "secret_key")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.CreateRefund(context.Background(), "SK-1001", "rf_1", decimal.Zero); err == nil {
		t.Fatal("expected validation error for zero amount")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "webhook_secret"
	timestamp := "1693380000000"
	body := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !VerifyWebhookSignature(secret, timestamp, body, signature) {
		t.Fatal("expected valid signature")
	}
	if VerifyWebhookSignature(secret, timestamp, []byte(`{}`), signature) {
		t.Fatal("expected tampered body to fail")
	}
	if VerifyWebhookSignature(secret, "1693380000001", body, signature) {
		t.Fatal("expected different timestamp to fail")
	}
	if VerifyWebhookSignature(secret, timestamp, body, "") {
		t.Fatal("expected empty signature to fail")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
