package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/arjunmehra/stitchkart-backend/pkg/config"
	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
)

// Snapshot is an immutable view of the payment configuration. Services
// receive it per call instead of reading shared mutable state, so validation
// stays testable and a reload never races an in-flight request.
type Snapshot struct {
	OnlineEnabled   bool
	CODEnabled      bool
	DefaultProvider enums.PaymentProvider
	MinAmount       decimal.Decimal
	MaxAmount       decimal.Decimal
	Enabled         map[enums.PaymentProvider]bool
	Currency        string
}

// ProviderEnabled reports whether the provider may take new intents.
func (s Snapshot) ProviderEnabled(provider enums.PaymentProvider) bool {
	if !s.OnlineEnabled {
		return false
	}
	return s.Enabled[provider]
}

// ValidateAmount checks the amount against the configured limits.
func (s Snapshot) ValidateAmount(amount decimal.Decimal) error {
	if amount.Cmp(s.MinAmount) < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("amount %s is below the minimum %s", amount, s.MinAmount))
	}
	if amount.Cmp(s.MaxAmount) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("amount %s exceeds the maximum %s", amount, s.MaxAmount))
	}
	return nil
}

// ConfigStore caches the admin payment configuration and refreshes it through
// an explicit Reload.
type ConfigStore struct {
	mu      sync.RWMutex
	current Snapshot
	repo    Repository
}

// NewConfigStore builds a store seeded from env-level bootstrap limits. The
// database row, when present, takes over on the first Reload.
func NewConfigStore(repo Repository, bootstrap config.PaymentsConfig) (*ConfigStore, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	provider, err := enums.ParsePaymentProvider(bootstrap.DefaultProvider)
	if err != nil {
		return nil, fmt.Errorf("bootstrap default provider: %w", err)
	}
	return &ConfigStore{
		repo: repo,
		current: Snapshot{
			OnlineEnabled:   true,
			CODEnabled:      true,
			DefaultProvider: provider,
			MinAmount:       bootstrap.MinAmount,
			MaxAmount:       bootstrap.MaxAmount,
			Currency:        bootstrap.Currency,
			Enabled: map[enums.PaymentProvider]bool{
				enums.PaymentProviderRazorpay: true,
				enums.PaymentProviderCashfree: true,
			},
		},
	}, nil
}

// Snapshot returns the current configuration view.
func (s *ConfigStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the configuration row and swaps the snapshot.
func (s *ConfigStore) Reload(ctx context.Context) (Snapshot, error) {
	row, err := s.repo.FindConfig(ctx)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return s.Snapshot(), nil
		}
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment config")
	}

	snapshot := snapshotFromRow(row, s.Snapshot().Currency)

	s.mu.Lock()
	s.current = snapshot
	s.mu.Unlock()
	return snapshot, nil
}

// Update persists a new configuration row and refreshes the snapshot.
func (s *ConfigStore) Update(ctx context.Context, row *models.PaymentConfig) (Snapshot, error) {
	if row == nil {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "payment config required")
	}
	if row.MinAmount.IsNegative() {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "min amount must not be negative")
	}
	if row.MaxAmount.Cmp(row.MinAmount) < 0 {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "max amount must not be below min amount")
	}
	if _, err := enums.ParsePaymentProvider(row.DefaultProvider); err != nil {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	row.ID = 1
	if err := s.repo.SaveConfig(ctx, row); err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment config")
	}
	return s.Reload(ctx)
}

func snapshotFromRow(row *models.PaymentConfig, currency string) Snapshot {
	enabled := map[enums.PaymentProvider]bool{}
	for _, setting := range row.Providers {
		if provider, err := enums.ParsePaymentProvider(setting.Name); err == nil {
			enabled[provider] = setting.IsEnabled
		}
	}
	if len(enabled) == 0 {
		enabled[enums.PaymentProviderRazorpay] = true
		enabled[enums.PaymentProviderCashfree] = true
	}
	provider, err := enums.ParsePaymentProvider(row.DefaultProvider)
	if err != nil {
		provider = enums.PaymentProviderRazorpay
	}
	return Snapshot{
		OnlineEnabled:   row.OnlinePaymentEnabled,
		CODEnabled:      row.CODEnabled,
		DefaultProvider: provider,
		MinAmount:       row.MinAmount,
		MaxAmount:       row.MaxAmount,
		Enabled:         enabled,
		Currency:        currency,
	}
}
