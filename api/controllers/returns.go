package controllers

import (
	"net/http"

	"github.com/arjunmehra/stitchkart-backend/api/responses"
	"github.com/arjunmehra/stitchkart-backend/api/validators"
	"github.com/arjunmehra/stitchkart-backend/internal/returns"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/logger"
)

// RequestReturn opens a return for a quantity of a delivered line.
func RequestReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}

		itemID, err := validators.UUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload returnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RequestReturn(r.Context(), returns.RequestInput{
			ItemID:      itemID,
			Quantity:    payload.Quantity,
			Note:        payload.Note,
			ActorUserID: actorID,
			ActorRole:   actorRole,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newApplyResponse(result))
	}
}

// DecideReturn records the merchant's approve or reject decision.
func DecideReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}

		itemID, err := validators.UUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload decideReturnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Decide(r.Context(), returns.DecideInput{
			ItemID:      itemID,
			Quantity:    payload.Quantity,
			Approve:     payload.Approve != nil && *payload.Approve,
			Note:        payload.Note,
			ActorUserID: actorID,
			ActorRole:   actorRole,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newApplyResponse(result))
	}
}

// RefundItem settles refundable units of a line.
func RefundItem(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}

		itemID, err := validators.UUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload returnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actorID, actorRole, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RefundItem(r.Context(), returns.RefundItemInput{
			ItemID:      itemID,
			Quantity:    payload.Quantity,
			Note:        payload.Note,
			ActorUserID: actorID,
			ActorRole:   actorRole,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newApplyResponse(result))
	}
}

// CancelOrder cancels every still-ordered line and refunds paid online orders.
func CancelOrder(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "return service unavailable"))
			return
		}

		orderID, err := validators.UUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelOrderRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		actorID, actorRole, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CancelOrder(r.Context(), returns.CancelOrderInput{
			OrderID:     orderID,
			Note:        payload.Note,
			ActorUserID: actorID,
			ActorRole:   actorRole,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type returnRequest struct {
	Quantity int     `json:"quantity" validate:"required,min=1"`
	Note     *string `json:"note,omitempty"`
}

type decideReturnRequest struct {
	Quantity int     `json:"quantity" validate:"required,min=1"`
	Approve  *bool   `json:"approve" validate:"required"`
	Note     *string `json:"note,omitempty"`
}

type cancelOrderRequest struct {
	Note *string `json:"note,omitempty"`
}
