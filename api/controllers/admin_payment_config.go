package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/arjunmehra/stitchkart-backend/api/responses"
	"github.com/arjunmehra/stitchkart-backend/api/validators"
	"github.com/arjunmehra/stitchkart-backend/internal/payments"
	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/logger"
)

// GetPaymentConfig returns the snapshot the payment service is running on.
func GetPaymentConfig(store *payments.ConfigStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment config unavailable"))
			return
		}
		responses.WriteSuccess(w, newSnapshotResponse(store.Snapshot()))
	}
}

// UpdatePaymentConfig persists a new configuration row and swaps the
// running snapshot in the same call.
func UpdatePaymentConfig(store *payments.ConfigStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment config unavailable"))
			return
		}

		var payload updatePaymentConfigRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		providers := make([]models.ProviderSetting, 0, len(payload.Providers))
		for _, setting := range payload.Providers {
			providers = append(providers, models.ProviderSetting{
				Name:      setting.Name,
				IsEnabled: setting.IsEnabled,
			})
		}

		snapshot, err := store.Update(r.Context(), &models.PaymentConfig{
			OnlinePaymentEnabled: payload.OnlinePaymentEnabled,
			CODEnabled:           payload.CODEnabled,
			DefaultProvider:      payload.DefaultProvider,
			MinAmount:            payload.MinAmount,
			MaxAmount:            payload.MaxAmount,
			Providers:            providers,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSnapshotResponse(snapshot))
	}
}

// ReloadPaymentConfig re-reads the configuration row, for out-of-band edits.
func ReloadPaymentConfig(store *payments.ConfigStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment config unavailable"))
			return
		}

		snapshot, err := store.Reload(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSnapshotResponse(snapshot))
	}
}

type updatePaymentConfigRequest struct {
	OnlinePaymentEnabled bool                     `json:"online_payment_enabled"`
	CODEnabled           bool                     `json:"cod_enabled"`
	DefaultProvider      string                   `json:"default_provider" validate:"required"`
	MinAmount            decimal.Decimal          `json:"min_amount"`
	MaxAmount            decimal.Decimal          `json:"max_amount"`
	Providers            []providerSettingPayload `json:"providers" validate:"dive"`
}

type providerSettingPayload struct {
	Name      string `json:"name" validate:"required"`
	IsEnabled bool   `json:"is_enabled"`
}

type snapshotResponse struct {
	OnlinePaymentEnabled bool            `json:"online_payment_enabled"`
	CODEnabled           bool            `json:"cod_enabled"`
	DefaultProvider      string          `json:"default_provider"`
	MinAmount            decimal.Decimal `json:"min_amount"`
	MaxAmount            decimal.Decimal `json:"max_amount"`
	Currency             string          `json:"currency"`
	Providers            map[string]bool `json:"providers"`
}

func newSnapshotResponse(snapshot payments.Snapshot) snapshotResponse {
	providers := make(map[string]bool, len(snapshot.Enabled))
	for name, enabled := range snapshot.Enabled {
		providers[string(name)] = enabled
	}
	return snapshotResponse{
		OnlinePaymentEnabled: snapshot.OnlineEnabled,
		CODEnabled:           snapshot.CODEnabled,
		DefaultProvider:      string(snapshot.DefaultProvider),
		MinAmount:            snapshot.MinAmount,
		MaxAmount:            snapshot.MaxAmount,
		Currency:             snapshot.Currency,
		Providers:            providers,
	}
}
