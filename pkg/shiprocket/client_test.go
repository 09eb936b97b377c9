package shiprocket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestClientCreateAdhocOrderLogsInFirst(t *testing.T) {
	var requests []string
	var capturedAuth string

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		requests = append(requests, req.URL.Path)
		switch {
		case strings.HasSuffix(req.URL.Path, "/auth/login"):
			return jsonResponse(http.StatusOK, `{"token":"sr-token"}`), nil
		case strings.HasSuffix(req.URL.Path, "/orders/create/adhoc"):
			capturedAuth = req.Header.Get("Authorization")
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
			if payload["billing_country"] != "India" {
				t.Fatalf("expected default billing country, got %v", payload["billing_country"])
			}
			return jsonResponse(http.StatusOK, `{"order_id":42,"shipment_id":77,"status":"NEW"}`), nil
		default:
			t.Fatalf("unexpected request %s", req.URL.Path)
			return nil, nil
		}
	})

	client, err := NewClient("ops@stitchkart.in", "password",
		WithBaseURL("http://shiprocket.test/v1/external"),
		WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	result, err := client.CreateAdhocOrder(context.Background(), CreateOrderRequest{
		OrderID:       "SK-1001",
		BillingName:   "Asha",
		PaymentMethod: "Prepaid",
		SubTotal:      decimal.NewFromInt(499),
		Items: []OrderItem{
			{Name: "Oversized Tee", SKU: "TEE-BLK-M", Units: 1, Price: decimal.NewFromInt(499)},
		},
	})
	if err != nil {
		t.Fatalf("create adhoc order: %v", err)
	}
	if result.OrderID != 42 || result.ShipmentID != 77 {
		t.Fatalf("unexpected result %+v", result)
	}
	if capturedAuth != "Bearer sr-token" {
		t.Fatalf("unexpected auth header %q", capturedAuth)
	}
	if len(requests) != 2 {
		t.Fatalf("expected login then order, got %v", requests)
	}
}

func TestClientReusesCachedToken(t *testing.T) {
	store := &stubTokenStore{token: "cached-token"}
	var logins int

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/auth/login") {
			logins++
			return jsonResponse(http.StatusOK, `{"token":"fresh-token"}`), nil
		}
		return jsonResponse(http.StatusOK, `{"awb_assign_status":1,"response":{"data":{"awb_code":"AWB123","courier_name":"Delhivery"}}}`), nil
	})

	client, err := NewClient("ops@stitchkart.in", "password",
		WithBaseURL("http://shiprocket.test/v1/external"),
		WithHTTPClient(&http.Client{Transport: rt}),
		WithTokenStore(store))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	awb, err := client.AssignAWB(context.Background(), 77)
	if err != nil {
		t.Fatalf("assign awb: %v", err)
	}
	if awb.AWBCode != "AWB123" {
		t.Fatalf("unexpected awb %+v", awb)
	}
	if logins != 0 {
		t.Fatalf("expected cached token to be used, got %d logins", logins)
	}
}

func TestClientRetriesOnStaleToken(t *testing.T) {
	store := &stubTokenStore{token: "stale-token"}
	var logins, attempts int

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/auth/login") {
			logins++
			return jsonResponse(http.StatusOK, `{"token":"fresh-token"}`), nil
		}
		attempts++
		if req.Header.Get("Authorization") == "Bearer stale-token" {
			return jsonResponse(http.StatusUnauthorized, `{"message":"token expired"}`), nil
		}
		return jsonResponse(http.StatusOK, `{"pickup_token_number":"PT-1","pickup_scheduled_date":"2026-08-31 10:00","pickup_status":1}`), nil
	})

	client, err := NewClient("ops@stitchkart.in", "password",
		WithBaseURL("http://shiprocket.test/v1/external"),
		WithHTTPClient(&http.Client{Transport: rt}),
		WithTokenStore(store))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	pickup, err := client.GeneratePickup(context.Background(), 77)
	if err != nil {
		t.Fatalf("generate pickup: %v", err)
	}
	if pickup.PickupTokenNumber != "PT-1" {
		t.Fatalf("unexpected pickup %+v", pickup)
	}
	if logins != 1 || attempts != 2 {
		t.Fatalf("expected one re-login and retry, got logins=%d attempts=%d", logins, attempts)
	}
	if store.stored != "fresh-token" {
		t.Fatalf("expected fresh token cached, got %q", store.stored)
	}
}

func TestAssignAWBRejectsMissingShipment(t *testing.T) {
	client, err := NewClient("ops@stitchkart.in", "password")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.AssignAWB(context.Background(), 0); err == nil {
		t.Fatal("expected validation error")
	}
}

type stubTokenStore struct {
	token  string
	stored string
}

func (s *stubTokenStore) GetVendorToken(ctx context.Context, vendor string) (string, error) {
	return s.token, nil
}

func (s *stubTokenStore) StoreVendorToken(ctx context.Context, vendor, token string, ttl time.Duration) error {
	s.stored = token
	return nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
