package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/arjunmehra/stitchkart-backend/api/responses"
	"github.com/arjunmehra/stitchkart-backend/api/validators"
	"github.com/arjunmehra/stitchkart-backend/internal/payments"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/logger"
)

// CreatePaymentIntent opens a provider payment attempt for an online order.
func CreatePaymentIntent(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		orderID, err := validators.UUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createIntentRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		var provider enums.PaymentProvider
		if payload.Provider != "" {
			parsed, parseErr := enums.ParsePaymentProvider(payload.Provider)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid provider"))
				return
			}
			provider = parsed
		}

		actorID, _, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateIntent(r.Context(), payments.CreateIntentInput{
			OrderID:     orderID,
			Amount:      payload.Amount,
			Provider:    provider,
			ActorUserID: actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// VerifyPayment settles the checkout callback the storefront posts after the
// customer completes the provider flow.
func VerifyPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		transactionID, err := validators.UUIDParam(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyCallback(r.Context(), payments.VerifyInput{
			TransactionID:     transactionID,
			ProviderOrderID:   payload.ProviderOrderID,
			ProviderPaymentID: payload.ProviderPaymentID,
			Signature:         payload.Signature,
			Amount:            payload.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// RefundPayment refunds a settled transaction in full.
func RefundPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		transactionID, err := validators.UUIDParam(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, _, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Refund(r.Context(), transactionID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type createIntentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Provider string          `json:"provider,omitempty"`
}

// Signature and payment id are what a Razorpay checkout hands back. The
// Cashfree checkout returns neither, so both stay optional and the provider
// adapter decides how to authenticate the callback.
type verifyPaymentRequest struct {
	ProviderOrderID   string           `json:"provider_order_id" validate:"required"`
	ProviderPaymentID string           `json:"provider_payment_id,omitempty"`
	Signature         string           `json:"signature,omitempty"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
}
