package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arjunmehra/stitchkart-backend/api/responses"
	"github.com/arjunmehra/stitchkart-backend/internal/payments"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/logger"
)

const cashfreeSuccessWebhook = "PAYMENT_SUCCESS_WEBHOOK"

type cashfreeEvent struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderID string `json:"order_id"`
		} `json:"order"`
		Payment struct {
			CFPaymentID   json.Number     `json:"cf_payment_id"`
			PaymentStatus string          `json:"payment_status"`
			PaymentAmount decimal.Decimal `json:"payment_amount"`
		} `json:"payment"`
	} `json:"data"`
}

// CashfreeWebhook handles server-to-server payment notifications. The
// provider order id carries our transaction id, so no extra correlation
// lookup is needed.
func CashfreeWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get("x-webhook-signature"))
		timestamp := strings.TrimSpace(r.Header.Get("x-webhook-timestamp"))
		if signature == "" || timestamp == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cashfree signature headers missing"))
			return
		}

		var event cashfreeEvent
		if err := json.Unmarshal(body, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		if event.Type != cashfreeSuccessWebhook {
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		transactionID, err := uuid.Parse(strings.TrimSpace(event.Data.Order.OrderID))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "event carries no transaction reference"))
			return
		}

		amount := event.Data.Payment.PaymentAmount
		result, err := svc.VerifyCallback(ctx, payments.VerifyInput{
			TransactionID:     transactionID,
			ProviderOrderID:   event.Data.Order.OrderID,
			ProviderPaymentID: event.Data.Payment.CFPaymentID.String(),
			Signature:         signature,
			Timestamp:         timestamp,
			RawBody:           body,
			Amount:            &amount,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
