package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arjunmehra/stitchkart-backend/api/middleware"
	"github.com/arjunmehra/stitchkart-backend/internal/transitions"
	"github.com/arjunmehra/stitchkart-backend/pkg/db/models"
	"github.com/arjunmehra/stitchkart-backend/pkg/enums"
	pkgerrors "github.com/arjunmehra/stitchkart-backend/pkg/errors"
)

type stubTransitionService struct {
	available  *transitions.AvailableResult
	applied    *transitions.ApplyResult
	lastInput  transitions.ApplyInput
	applyCalls int
	err        error
}

func (s *stubTransitionService) AvailableTransitions(ctx context.Context, itemID uuid.UUID) (*transitions.AvailableResult, error) {
	return s.available, s.err
}

func (s *stubTransitionService) Apply(ctx context.Context, input transitions.ApplyInput) (*transitions.ApplyResult, error) {
	s.applyCalls++
	s.lastInput = input
	return s.applied, s.err
}

func (s *stubTransitionService) ShipAllOrdered(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error) {
	return 0, nil
}

func requestWithParam(req *http.Request, name, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(name, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func authedContext(ctx context.Context, userID uuid.UUID, role string) context.Context {
	ctx = middleware.WithUserID(ctx, userID.String())
	return middleware.WithRole(ctx, role)
}

func TestItemTransitionsSuccess(t *testing.T) {
	itemID := uuid.New()
	svc := &stubTransitionService{
		available: &transitions.AvailableResult{
			ItemID:  itemID,
			Current: enums.OrderItemStatusDelivered,
			Transitions: []transitions.TransitionOption{
				{Status: enums.OrderItemStatusReturnRequested, Label: "Return Requested"},
			},
		},
	}
	handler := ItemTransitions(svc, nil)

	req := requestWithParam(httptest.NewRequest(http.MethodGet, "/api/v1/items/"+itemID.String()+"/transitions", nil), "itemID", itemID.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data transitions.AvailableResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ItemID != itemID || len(envelope.Data.Transitions) != 1 {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestItemTransitionsBadID(t *testing.T) {
	handler := ItemTransitions(&stubTransitionService{}, nil)
	req := requestWithParam(httptest.NewRequest(http.MethodGet, "/api/v1/items/nope/transitions", nil), "itemID", "nope")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestApplyTransitionSuccess(t *testing.T) {
	itemID := uuid.New()
	actorID := uuid.New()
	svc := &stubTransitionService{
		applied: &transitions.ApplyResult{
			Item: &models.OrderItem{ID: itemID, Status: enums.OrderItemStatusShipped, Quantity: 2},
		},
	}
	handler := ApplyTransition(svc, nil)

	body := bytes.NewBufferString(`{"target_status":"shipped","quantity":2}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+itemID.String()+"/transitions", body)
	req = requestWithParam(req, "itemID", itemID.String())
	req = req.WithContext(authedContext(req.Context(), actorID, "admin"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if svc.lastInput.Target != enums.OrderItemStatusShipped || svc.lastInput.Quantity != 2 {
		t.Fatalf("unexpected input %+v", svc.lastInput)
	}
	if svc.lastInput.ActorUserID != actorID || svc.lastInput.ActorRole != "admin" {
		t.Fatalf("actor not propagated: %+v", svc.lastInput)
	}
}

func TestApplyTransitionUnknownStatus(t *testing.T) {
	itemID := uuid.New()
	svc := &stubTransitionService{}
	handler := ApplyTransition(svc, nil)

	body := bytes.NewBufferString(`{"target_status":"teleported","quantity":1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+itemID.String()+"/transitions", body)
	req = requestWithParam(req, "itemID", itemID.String())
	req = req.WithContext(authedContext(req.Context(), uuid.New(), "admin"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.applyCalls != 0 {
		t.Fatalf("service should not be reached")
	}
}

func TestApplyTransitionRequiresAuthContext(t *testing.T) {
	itemID := uuid.New()
	handler := ApplyTransition(&stubTransitionService{}, nil)

	body := bytes.NewBufferString(`{"target_status":"shipped","quantity":1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+itemID.String()+"/transitions", body)
	req = requestWithParam(req, "itemID", itemID.String())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestApplyTransitionStateConflictMapsTo422(t *testing.T) {
	itemID := uuid.New()
	svc := &stubTransitionService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "cannot move")}
	handler := ApplyTransition(svc, nil)

	body := bytes.NewBufferString(`{"target_status":"delivered","quantity":1}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/"+itemID.String()+"/transitions", body)
	req = requestWithParam(req, "itemID", itemID.String())
	req = req.WithContext(authedContext(req.Context(), uuid.New(), "admin"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}
