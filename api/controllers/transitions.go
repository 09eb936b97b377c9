package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arjunmehra/stitchkart-backend/api/middleware"
	"github.com/arjunmehra/stitchkart-backend/api/responses"
	"github.com/arjunmehra/stitchkart-backend/api/validators"
	"github.com/arjunmehra/stitchkart-backend/internal/transitions"
	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
	"github.com/arjunmehra/stitchkart-backend/pkg/logger"
)

// ItemTransitions lists the legal next statuses for an order item.
func ItemTransitions(svc transitions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transition service unavailable"))
			return
		}

		itemID, err := validators.UUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AvailableTransitions(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ApplyTransition moves a quantity of an order item to a new status.
func ApplyTransition(svc transitions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transition service unavailable"))
			return
		}

		itemID, err := validators.UUIDParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload applyTransitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseOrderItemStatus(payload.TargetStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		actorID, actorRole, err := actorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Apply(r.Context(), transitions.ApplyInput{
			ItemID:      itemID,
			Quantity:    payload.Quantity,
			Target:      target,
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

type applyTransitionRequest struct {
	TargetStatus string  `json:"target_status" validate:"required"`
	Quantity     int     `json:"quantity" validate:"required,min=1"`
	Note         *string `json:"note,omitempty"`
}

type applyResponse struct {
	Item      itemResponse  `json:"item"`
	SplitItem *itemResponse `json:"split_item,omitempty"`
}

type itemResponse struct {
	ID           uuid.UUID       `json:"id"`
	OrderID      uuid.UUID       `json:"order_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	Size         string          `json:"size"`
	Quantity     int             `json:"quantity"`
	UnitAmount   decimal.Decimal `json:"unit_amount"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Status       string          `json:"status"`
	StatusLabel  string          `json:"status_label"`
	ParentItemID *uuid.UUID      `json:"parent_item_id,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func newApplyResponse(result *transitions.ApplyResult) applyResponse {
	out := applyResponse{Item: newItemResponse(result.Item)}
	if result.SplitItem != nil {
		split := newItemResponse(result.SplitItem)
		out.SplitItem = &split
	}
	return out
}

func newItemResponse(item *models.OrderItem) itemResponse {
	return itemResponse{
		ID:           item.ID,
		OrderID:      item.OrderID,
		ProductID:    item.ProductID,
		Size:         item.Size,
		Quantity:     item.Quantity,
		UnitAmount:   item.UnitAmount,
		TotalAmount:  item.TotalAmount,
		Status:       string(item.Status),
		StatusLabel:  transitions.StatusLabel(item.Status),
		ParentItemID: item.ParentItemID,
		UpdatedAt:    item.UpdatedAt,
	}
}

func actorFromContext(ctx context.Context) (uuid.UUID, string, error) {
	rawID := middleware.UserIDFromContext(ctx)
	if rawID == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	actorID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id in token")
	}
	return actorID, middleware.RoleFromContext(ctx), nil
}
