package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/bellybox-pos/api/internal/middleware"
	"github.com/bellybox-pos/api/internal/service"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenditureHandler handles expenditure endpoints.
type ExpenditureHandler struct {
	expenses *service.ExpenseService
}

// NewExpenditureHandler creates a new ExpenditureHandler.
func NewExpenditureHandler(expenses *service.ExpenseService) *ExpenditureHandler {
	return &ExpenditureHandler{expenses: expenses}
}

// RegisterRoutes registers expenditure endpoints on the given Chi router.
func (h *ExpenditureHandler) RegisterRoutes(r chi.Router) {
	r.Get("/expenditures", h.List)
	r.Post("/expenditures", h.Create)
	r.Put("/expenditures/{id}", h.Update)
	r.Post("/expenditures/{id}/lock", h.Lock)
	r.Post("/expenditures/{id}/unlock", h.Unlock)
	r.Put("/expenditures/{id}/payment", h.SetPayment)
	r.Delete("/expenditures/{id}", h.Delete)
}

// --- Request / Response types ---

type expenditureRequest struct {
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	Category      string `json:"category"`
	Supplier      string `json:"supplier"`
	PaymentStatus string `json:"payment_status"`
}

type expenditurePaymentRequest struct {
	PaymentStatus string `json:"payment_status"`
}

type expenditureResponse struct {
	ID            uuid.UUID       `json:"id"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Supplier      string          `json:"supplier,omitempty"`
	PaymentStatus string          `json:"payment_status"`
	IsLocked      bool            `json:"is_locked"`
	LockedBy      string          `json:"locked_by,omitempty"`
	LockedAt      *time.Time      `json:"locked_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toExpenditureResponse(e store.Expenditure) expenditureResponse {
	return expenditureResponse{
		ID:            e.ID,
		Description:   e.Description,
		Amount:        e.Amount,
		Category:      e.Category,
		Supplier:      e.Supplier,
		PaymentStatus: e.PaymentStatus,
		IsLocked:      e.IsLocked,
		LockedBy:      e.LockedBy,
		LockedAt:      e.LockedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func writeExpenditureError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrDescriptionRequired),
		errors.Is(err, service.ErrInvalidExpenseAmount),
		errors.Is(err, service.ErrInvalidPaymentStatus),
		errors.Is(err, service.ErrPinFormat):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrExpenditureNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrExpenditureLocked):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidPin):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// --- Handlers ---

// List returns all expenditures, newest first.
func (h *ExpenditureHandler) List(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.expenses.List(r.Context())
	if err != nil {
		log.Printf("ERROR: list expenditures: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]expenditureResponse, len(expenses))
	for i, e := range expenses {
		resp[i] = toExpenditureResponse(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create records a new expenditure.
func (h *ExpenditureHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req expenditureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	created, err := h.expenses.Create(r.Context(), service.CreateExpenditureRequest{
		Description:   req.Description,
		Amount:        req.Amount,
		Category:      req.Category,
		Supplier:      req.Supplier,
		PaymentStatus: req.PaymentStatus,
		CreatedBy:     claims.UserID,
	})
	if err != nil {
		writeExpenditureError(w, "create expenditure", err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenditureResponse(created))
}

// Update replaces an expenditure's fields. Rejected while locked.
func (h *ExpenditureHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req expenditureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := h.expenses.Update(r.Context(), id, service.UpdateExpenditureRequest{
		Description:   req.Description,
		Amount:        req.Amount,
		Category:      req.Category,
		Supplier:      req.Supplier,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		writeExpenditureError(w, "update expenditure", err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenditureResponse(updated))
}

// Lock marks an expenditure read-only. No PIN required.
func (h *ExpenditureHandler) Lock(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	updated, err := h.expenses.Lock(r.Context(), id, claims.Name)
	if err != nil {
		writeExpenditureError(w, "lock expenditure", err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenditureResponse(updated))
}

// Unlock returns a locked expenditure to the active state. PIN required.
func (h *ExpenditureHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := h.expenses.Unlock(r.Context(), id, claims.UserID, claims.Role, req.Pin, r.RemoteAddr)
	if err != nil {
		writeExpenditureError(w, "unlock expenditure", err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenditureResponse(updated))
}

// SetPayment toggles payment status. Allowed while locked.
func (h *ExpenditureHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req expenditurePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := h.expenses.SetPayment(r.Context(), id, req.PaymentStatus)
	if err != nil {
		writeExpenditureError(w, "set expenditure payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenditureResponse(updated))
}

// Delete removes an expenditure after PIN authorization.
func (h *ExpenditureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.expenses.Delete(r.Context(), id, claims.UserID, claims.Role, req.Pin, r.RemoteAddr); err != nil {
		writeExpenditureError(w, "delete expenditure", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
