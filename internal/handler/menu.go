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

// MenuHandler handles recipe catalog endpoints.
type MenuHandler struct {
	menu *service.MenuService
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(menu *service.MenuService) *MenuHandler {
	return &MenuHandler{menu: menu}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/menu", h.List)
	r.Get("/menu/availability", h.Availability)
	r.Get("/menu/{id}", h.Get)
	r.Post("/menu", h.Create)
	r.Put("/menu/{id}", h.Update)
	r.Delete("/menu/{id}", h.Delete)
}

// --- Request / Response types ---

type ingredientRequest struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

type menuItemRequest struct {
	Name        string              `json:"name"`
	Price       string              `json:"price"`
	Category    string              `json:"category"`
	ImageURL    string              `json:"image_url"`
	Ingredients []ingredientRequest `json:"ingredients"`
}

type menuItemResponse struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Price       decimal.Decimal    `json:"price"`
	Category    string             `json:"category"`
	ImageURL    string             `json:"image_url,omitempty"`
	Ingredients []store.Ingredient `json:"ingredients"`
}

type availabilityResponse struct {
	menuItemResponse
	IsAvailable bool     `json:"is_available"`
	MaxServings int64    `json:"max_servings"`
	Missing     []string `json:"missing_ingredients,omitempty"`
}

func toMenuResponse(item store.MenuItem) menuItemResponse {
	ings := item.Ingredients
	if ings == nil {
		ings = []store.Ingredient{}
	}
	return menuItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Price:       item.Price,
		Category:    item.Category,
		ImageURL:    item.ImageURL,
		Ingredients: ings,
	}
}

func (req menuItemRequest) toItem() (store.MenuItem, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return store.MenuItem{}, errors.New("price must be a number")
	}
	ings := make([]store.Ingredient, len(req.Ingredients))
	for i, ing := range req.Ingredients {
		qty, err := decimal.NewFromString(ing.Quantity)
		if err != nil {
			return store.MenuItem{}, errors.New("ingredient quantity must be a number")
		}
		ings[i] = store.Ingredient{Name: ing.Name, Quantity: qty}
	}
	return store.MenuItem{
		Name:        req.Name,
		Price:       price,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		Ingredients: ings,
	}, nil
}

// --- Handlers ---

// List returns the active menu.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.menu.List(r.Context(), true)
	if err != nil {
		log.Printf("ERROR: list menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]menuItemResponse, len(items))
	for i, item := range items {
		resp[i] = toMenuResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Availability returns every active item annotated with how many servings
// current stock supports.
func (h *MenuHandler) Availability(w http.ResponseWriter, r *http.Request) {
	results, err := h.menu.AvailabilityAll(r.Context())
	if err != nil {
		log.Printf("ERROR: menu availability: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]availabilityResponse, len(results))
	for i, res := range results {
		resp[i] = availabilityResponse{
			menuItemResponse: toMenuResponse(res.Item),
			IsAvailable:      res.Availability.IsAvailable,
			MaxServings:      res.Availability.MaxServings,
			Missing:          res.Availability.Missing,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns one menu item.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	item, err := h.menu.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrMenuItemNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toMenuResponse(item))
}

// Create adds a menu item with its recipe.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	item, err := req.toItem()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	created, err := h.menu.Create(r.Context(), item)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMenuNameRequired),
			errors.Is(err, service.ErrMenuPriceInvalid),
			errors.Is(err, service.ErrIngredientInvalid):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: create menu item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusCreated, toMenuResponse(created))
}

// Update replaces a menu item and its recipe.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req menuItemRequest
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

	updated, err := h.menu.Update(r.Context(), item)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMenuNameRequired),
			errors.Is(err, service.ErrMenuPriceInvalid),
			errors.Is(err, service.ErrIngredientInvalid):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrMenuItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: update menu item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, toMenuResponse(updated))
}

// Delete retires a menu item. Past orders keep referencing it through
// their snapshots.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.menu.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrMenuItemNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: delete menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
