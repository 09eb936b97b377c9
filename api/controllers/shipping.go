package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arjunmehra/stitchkart-backend/api/responses"
	"github.com/arjunmehra/stitchkart-backend/api/validators"
	"github.com/arjunmehra/stitchkart-backend/internal/shipping"
	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/logger"
)

// AdvanceShipping runs the next pending step of the order's shipping flow.
func AdvanceShipping(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		orderID, err := validators.UUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// The package block is only consumed by the courier-order step, so
		// the body stays optional for later invocations.
		var payload advanceShippingRequest
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

		result, err := svc.AdvanceNext(r.Context(), shipping.AdvanceInput{
			OrderID:     orderID,
			ActorUserID: actorID,
			ActorRole:   actorRole,
			LengthCM:    payload.Length,
			BreadthCM:   payload.Breadth,
			HeightCM:    payload.Height,
			WeightKG:    payload.Weight,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ShippingProgress reports the recorded state of the order's shipping flow.
func ShippingProgress(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		orderID, err := validators.UUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		progress, err := svc.Progress(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProgressResponse(progress))
	}
}

type advanceShippingRequest struct {
	Length  decimal.Decimal `json:"length"`
	Breadth decimal.Decimal `json:"breadth"`
	Height  decimal.Decimal `json:"height"`
	Weight  decimal.Decimal `json:"weight"`
}

type progressResponse struct {
	OrderID           uuid.UUID  `json:"order_id"`
	NextStep          string     `json:"next_step"`
	AdhocOrderCreated bool       `json:"adhoc_order_created"`
	AWBAssigned       bool       `json:"awb_assigned"`
	PickupGenerated   bool       `json:"pickup_generated"`
	ShiprocketOrderID *string    `json:"shiprocket_order_id,omitempty"`
	TrackingNumber    *string    `json:"tracking_number,omitempty"`
	CourierName       *string    `json:"courier_name,omitempty"`
	PickupID          *string    `json:"pickup_id,omitempty"`
	ShippedAt         *time.Time `json:"shipped_at,omitempty"`
}

func newProgressResponse(progress *models.ShippingProgress) progressResponse {
	return progressResponse{
		OrderID:           progress.OrderID,
		NextStep:          string(shipping.NextStep(progress)),
		AdhocOrderCreated: progress.AdhocOrderCreated,
		AWBAssigned:       progress.AWBAssigned,
		PickupGenerated:   progress.PickupGenerated,
		ShiprocketOrderID: progress.ShiprocketOrderID,
		TrackingNumber:    progress.TrackingNumber,
		CourierName:       progress.CourierName,
		PickupID:          progress.PickupID,
		ShippedAt:         progress.ShippedAt,
	}
}
