package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/arjunmehra/stitchkart-backend/api/responses"
	"github.com/arjunmehra/stitchkart-backend/internal/payments"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/logger"
	"github.com/arjunmehra/stitchkart-backend/pkg/razorpay"
)

// Capture events settle the transaction. Everything else is acknowledged so
// Razorpay stops redelivering; failures surface through the checkout callback
// and reconciliation instead.
var razorpaySettlementEvents = map[string]bool{
	"payment.captured": true,
	"order.paid":       true,
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID          string            `json:"id"`
				OrderID     string            `json:"order_id"`
				AmountPaise int64             `json:"amount"`
				Notes       map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID      string `json:"id"`
				Receipt string `json:"receipt"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// RazorpayWebhook handles server-to-server payment notifications. Signature
// verification and replay handling happen in the payment service; the
// controller only correlates the delivery to a transaction.
func RazorpayWebhook(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
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

		signature := strings.TrimSpace(r.Header.Get("X-Razorpay-Signature"))
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "razorpay signature missing"))
			return
		}

		var event razorpayEvent
		if err := json.Unmarshal(body, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		if !razorpaySettlementEvents[event.Event] {
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}

		transactionID, err := razorpayTransactionID(&event)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		amount := razorpay.FromPaise(event.Payload.Payment.Entity.AmountPaise)
		result, err := svc.VerifyCallback(ctx, payments.VerifyInput{
			TransactionID:     transactionID,
			ProviderOrderID:   event.Payload.Payment.Entity.OrderID,
			ProviderPaymentID: event.Payload.Payment.Entity.ID,
			Signature:         signature,
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

func razorpayTransactionID(event *razorpayEvent) (uuid.UUID, error) {
	candidate := event.Payload.Payment.Entity.Notes["transaction_id"]
	if candidate == "" {
		candidate = event.Payload.Order.Entity.Receipt
	}
	transactionID, err := uuid.Parse(strings.TrimSpace(candidate))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "event carries no transaction reference")
	}
	return transactionID, nil
}
