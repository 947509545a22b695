package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/bellybox-pos/api/internal/middleware"
	"github.com/bellybox-pos/api/internal/service"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderHandler handles order lifecycle endpoints.
type OrderHandler struct {
	orders *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Post("/orders", h.Create)
	r.Get("/orders/{id}", h.Get)
	r.Put("/orders/{id}", h.Edit)
	r.Post("/orders/{id}/lock", h.Lock)
	r.Post("/orders/{id}/unlock", h.Unlock)
	r.Put("/orders/{id}/payment", h.SetPayment)
	r.Delete("/orders/{id}", h.Delete)
}

// --- Request / Response types ---

type extraRequest struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int32  `json:"quantity"`
}

type orderItemRequest struct {
	MenuItemID string         `json:"menu_item_id"`
	Quantity   int32          `json:"quantity"`
	Extras     []extraRequest `json:"extras,omitempty"`
}

type createOrderRequest struct {
	PaymentMethod string             `json:"payment_method"`
	Items         []orderItemRequest `json:"items"`
}

type editOrderRequest struct {
	Items []orderItemRequest `json:"items"`
}

type pinRequest struct {
	Pin string `json:"pin"`
}

type setPaymentRequest struct {
	PaymentStatus string `json:"payment_status"`
	PaymentMethod string `json:"payment_method"`
}

type orderResponse struct {
	ID            string            `json:"id"`
	Items         []store.OrderItem `json:"items"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	PaymentStatus string            `json:"payment_status"`
	PaymentMethod string            `json:"payment_method"`
	IsLocked      bool              `json:"is_locked"`
	LockedBy      string            `json:"locked_by,omitempty"`
	LockedAt      *time.Time        `json:"locked_at,omitempty"`
	CreatedBy     uuid.UUID         `json:"created_by"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toOrderResponse(o store.Order) orderResponse {
	items := o.Items
	if items == nil {
		items = []store.OrderItem{}
	}
	return orderResponse{
		ID:            o.ID,
		Items:         items,
		TotalAmount:   o.TotalAmount,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		IsLocked:      o.IsLocked,
		LockedBy:      o.LockedBy,
		LockedAt:      o.LockedAt,
		CreatedBy:     o.CreatedBy,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toServiceItems(items []orderItemRequest) []service.OrderItemRequest {
	out := make([]service.OrderItemRequest, len(items))
	for i, item := range items {
		extras := make([]service.ExtraRequest, len(item.Extras))
		for j, ex := range item.Extras {
			extras[j] = service.ExtraRequest{Name: ex.Name, Price: ex.Price, Quantity: ex.Quantity}
		}
		out[i] = service.OrderItemRequest{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Extras:     extras,
		}
	}
	return out
}

// writeOrderError maps order service errors to HTTP statuses.
func writeOrderError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidMenuItemID),
		errors.Is(err, service.ErrInvalidExtra),
		errors.Is(err, service.ErrInvalidExtraPrice),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrInvalidPaymentStatus),
		errors.Is(err, service.ErrPinFormat):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrMenuItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderLocked):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidPin):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInventoryRestore):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// --- Handlers ---

// Create opens a new order, deducting recipe consumption from inventory.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	created, err := h.orders.Create(r.Context(), service.CreateOrderRequest{
		PaymentMethod: req.PaymentMethod,
		CreatedBy:     claims.UserID,
		Items:         toServiceItems(req.Items),
	})
	if err != nil {
		writeOrderError(w, "create order", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(created))
}

// List returns orders in a creation-time window, newest first.
// Query params: start_date, end_date (2006-01-02), limit, offset.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	params := store.ListOrdersParams{Start: start, End: end}
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			params.Limit = n
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			params.Offset = n
		}
	}

	orders, err := h.orders.List(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns one order.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeOrderError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// Edit replaces an order's items. Rejected while locked.
func (h *OrderHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req editOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := h.orders.Edit(r.Context(), chi.URLParam(r, "id"), service.EditOrderRequest{
		Items: toServiceItems(req.Items),
	})
	if err != nil {
		writeOrderError(w, "edit order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

// Lock marks an order read-only. No PIN required.
func (h *OrderHandler) Lock(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	updated, err := h.orders.Lock(r.Context(), chi.URLParam(r, "id"), claims.Name)
	if err != nil {
		writeOrderError(w, "lock order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

// Unlock returns a locked order to the active state. PIN required.
func (h *OrderHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := h.orders.Unlock(r.Context(), chi.URLParam(r, "id"), claims.UserID, claims.Role, req.Pin, r.RemoteAddr)
	if err != nil {
		writeOrderError(w, "unlock order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

// SetPayment toggles payment status and method. Allowed while locked.
func (h *OrderHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req setPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := h.orders.SetPayment(r.Context(), chi.URLParam(r, "id"), req.PaymentStatus, req.PaymentMethod)
	if err != nil {
		writeOrderError(w, "set payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

// Delete removes an order after PIN authorization, restoring its
// inventory consumption.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	err := h.orders.Delete(r.Context(), chi.URLParam(r, "id"), claims.UserID, claims.Role, req.Pin, r.RemoteAddr)
	if err != nil {
		writeOrderError(w, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
