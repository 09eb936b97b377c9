package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arjunmehra/stitchkart-backend/pkg/cashfree"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
)

func cashfreeProviderFor(t *testing.T, server *httptest.Server) Provider {
	t.Helper()
	client, err := cashfree.NewClient("app_id", "secret_key", cashfree.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("cashfree client: %v", err)
	}
	provider, err := NewCashfreeProvider(client, "webhook-secret")
	if err != nil {
		t.Fatalf("cashfree provider: %v", err)
	}
	return provider
}

func TestCashfreeClientVerifyConfirmsPaidOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/orders/txn-1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order_id":"txn-1","order_status":"PAID"}`))
	}))
	defer server.Close()

	provider := cashfreeProviderFor(t, server)
	ok, err := provider.VerifyCallback(context.Background(), VerifyInput{ProviderOrderID: "txn-1"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("a paid order must verify")
	}
}

func TestCashfreeClientVerifyUnpaidOrderIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"order_id":"txn-1","order_status":"ACTIVE"}`))
	}))
	defer server.Close()

	provider := cashfreeProviderFor(t, server)
	_, err := provider.VerifyCallback(context.Background(), VerifyInput{ProviderOrderID: "txn-1"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("an unsettled order must surface a state conflict, got %v", err)
	}
}

func TestCashfreeClientVerifyProviderOutage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider := cashfreeProviderFor(t, server)
	_, err := provider.VerifyCallback(context.Background(), VerifyInput{ProviderOrderID: "txn-1"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("an unreachable provider must surface a dependency error, got %v", err)
	}
}

func TestCashfreeWebhookVerifyStaysLocal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("a signed webhook must not trigger a provider round trip")
	}))
	defer server.Close()

	provider := cashfreeProviderFor(t, server)
	ok, err := provider.VerifyCallback(context.Background(), VerifyInput{
		RawBody:   []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK"}`),
		Timestamp: "1693392000",
		Signature: "not-the-right-digest",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("a bad webhook signature must not verify")
	}
}
