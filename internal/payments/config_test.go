package payments

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
)

func TestConfigStoreBootstrapSnapshot(t *testing.T) {
	store, err := NewConfigStore(newStubRepo(nil), bootstrapConfig())
	if err != nil {
		t.Fatalf("config store: %v", err)
	}

	snapshot := store.Snapshot()
	if snapshot.DefaultProvider != enums.PaymentProviderRazorpay {
		t.Fatalf("expected razorpay default, got %s", snapshot.DefaultProvider)
	}
	if !snapshot.ProviderEnabled(enums.PaymentProviderCashfree) {
		t.Fatal("cashfree should be enabled by default")
	}
	if err := snapshot.ValidateAmount(decimal.NewFromInt(600)); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error above max, got %v", err)
	}
	if err := snapshot.ValidateAmount(decimal.NewFromInt(100)); err != nil {
		t.Fatalf("in-bounds amount rejected: %v", err)
	}
}

func TestConfigStoreReloadTakesRowOverBootstrap(t *testing.T) {
	repo := newStubRepo(nil)
	repo.cfg = &models.PaymentConfig{
		ID:                   1,
		OnlinePaymentEnabled: true,
		CODEnabled:           false,
		DefaultProvider:      "cashfree",
		MinAmount:            decimal.NewFromInt(10),
		MaxAmount:            decimal.NewFromInt(1000),
		Providers: []models.ProviderSetting{
			{Name: "razorpay", IsEnabled: false},
			{Name: "cashfree", IsEnabled: true},
		},
	}
	store, err := NewConfigStore(repo, bootstrapConfig())
	if err != nil {
		t.Fatalf("config store: %v", err)
	}

	snapshot, err := store.Reload(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if snapshot.DefaultProvider != enums.PaymentProviderCashfree {
		t.Fatalf("expected cashfree default, got %s", snapshot.DefaultProvider)
	}
	if snapshot.CODEnabled {
		t.Fatal("cod should be disabled by the row")
	}
	if snapshot.ProviderEnabled(enums.PaymentProviderRazorpay) {
		t.Fatal("razorpay was disabled by the row")
	}
	if !snapshot.MaxAmount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected max 1000, got %s", snapshot.MaxAmount)
	}
	if snapshot.Currency != "INR" {
		t.Fatalf("currency carries over from bootstrap, got %s", snapshot.Currency)
	}
}

func TestConfigStoreReloadWithoutRowKeepsBootstrap(t *testing.T) {
	store, err := NewConfigStore(newStubRepo(nil), bootstrapConfig())
	if err != nil {
		t.Fatalf("config store: %v", err)
	}

	snapshot, err := store.Reload(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if snapshot.DefaultProvider != enums.PaymentProviderRazorpay {
		t.Fatalf("bootstrap snapshot expected, got %s", snapshot.DefaultProvider)
	}
}

func TestConfigStoreUpdateValidatesAndPersists(t *testing.T) {
	repo := newStubRepo(nil)
	store, err := NewConfigStore(repo, bootstrapConfig())
	if err != nil {
		t.Fatalf("config store: %v", err)
	}

	_, err = store.Update(context.Background(), &models.PaymentConfig{
		DefaultProvider: "razorpay",
		MinAmount:       decimal.NewFromInt(100),
		MaxAmount:       decimal.NewFromInt(10),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for inverted bounds, got %v", err)
	}

	_, err = store.Update(context.Background(), &models.PaymentConfig{
		DefaultProvider: "paypal",
		MinAmount:       decimal.NewFromInt(1),
		MaxAmount:       decimal.NewFromInt(10),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown provider, got %v", err)
	}

	snapshot, err := store.Update(context.Background(), &models.PaymentConfig{
		OnlinePaymentEnabled: true,
		CODEnabled:           true,
		DefaultProvider:      "cashfree",
		MinAmount:            decimal.NewFromInt(5),
		MaxAmount:            decimal.NewFromInt(5000),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if repo.cfg == nil || repo.cfg.ID != 1 {
		t.Fatal("row must be persisted with the singleton id")
	}
	if snapshot.DefaultProvider != enums.PaymentProviderCashfree {
		t.Fatalf("snapshot must reflect the update, got %s", snapshot.DefaultProvider)
	}
	if !snapshot.MaxAmount.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected max 5000, got %s", snapshot.MaxAmount)
	}
}
