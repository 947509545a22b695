package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/bellybox-pos/api/internal/service"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryHandler handles ingredient ledger endpoints.
type InventoryHandler struct {
	inventory *service.InventoryService
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(inventory *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventory: inventory}
}

// RegisterRoutes registers inventory endpoints on the given Chi router.
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/inventory", h.List)
	r.Get("/inventory/low-stock", h.LowStock)
	r.Post("/inventory", h.Create)
	r.Post("/inventory/adjust", h.Adjust)
	r.Put("/inventory/{id}", h.Update)
	r.Delete("/inventory/{id}", h.Delete)
}

// --- Request / Response types ---

type inventoryItemRequest struct {
	Name              string `json:"name"`
	Quantity          string `json:"quantity"`
	Unit              string `json:"unit"`
	LowStockThreshold string `json:"low_stock_threshold"`
}

type adjustStockRequest struct {
	Name  string `json:"name"`
	Delta string `json:"delta"`
}

type inventoryItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Quantity          decimal.Decimal `json:"quantity"`
	Unit              string          `json:"unit"`
	LowStockThreshold decimal.Decimal `json:"low_stock_threshold"`
}

func toInventoryResponse(item store.InventoryItem) inventoryItemResponse {
	return inventoryItemResponse{
		ID:                item.ID,
		Name:              item.Name,
		Quantity:          item.Quantity,
		Unit:              item.Unit,
		LowStockThreshold: item.LowStockThreshold,
	}
}

func toInventoryResponses(items []store.InventoryItem) []inventoryItemResponse {
	out := make([]inventoryItemResponse, len(items))
	for i, item := range items {
		out[i] = toInventoryResponse(item)
	}
	return out
}

func (req inventoryItemRequest) toItem() (store.InventoryItem, error) {
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil || qty.IsNegative() {
		return store.InventoryItem{}, errors.New("quantity must be a non-negative number")
	}
	threshold := decimal.Zero
	if req.LowStockThreshold != "" {
		threshold, err = decimal.NewFromString(req.LowStockThreshold)
		if err != nil || threshold.IsNegative() {
			return store.InventoryItem{}, errors.New("low_stock_threshold must be a non-negative number")
		}
	}
	return store.InventoryItem{
		Name:              req.Name,
		Quantity:          qty,
		Unit:              req.Unit,
		LowStockThreshold: threshold,
	}, nil
}

// --- Handlers ---

// List returns the full ingredient ledger.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.List(r.Context())
	if err != nil {
		log.Printf("ERROR: list inventory: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResponses(items))
}

// LowStock returns items at or below their restock threshold.
func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.LowStock(r.Context())
	if err != nil {
		log.Printf("ERROR: low stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResponses(items))
}

// Create adds a new ingredient to the ledger.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req inventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	item, err := req.toItem()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	created, err := h.inventory.Create(r.Context(), item)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrItemNameRequired):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrDuplicateItem):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: create inventory item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusCreated, toInventoryResponse(created))
}

// Update replaces an ingredient's fields, quantity included.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req inventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	item, err := req.toItem()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	item.ID = id

	updated, err := h.inventory.Update(r.Context(), item)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrItemNameRequired):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrDuplicateItem):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: update inventory item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, toInventoryResponse(updated))
}

// Adjust applies a signed delta to an ingredient's quantity by name.
// Deductions that would drive the quantity negative are reported as
// skipped, not applied partially.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	delta, err := decimal.NewFromString(req.Delta)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delta must be a number"})
		return
	}

	applied, err := h.inventory.ApplyDelta(r.Context(), req.Name, delta)
	if err != nil {
		if errors.Is(err, service.ErrItemNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: adjust stock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// Delete removes an ingredient from the ledger.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.inventory.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrItemNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: delete inventory item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
