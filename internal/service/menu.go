package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bellybox-pos/api/internal/enum"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Errors returned by the menu service.
var (
	ErrMenuNameRequired  = errors.New("name is required")
	ErrMenuPriceInvalid  = errors.New("price must be > 0")
	ErrIngredientInvalid = errors.New("ingredient name and positive quantity are required")
	ErrMenuItemNotFound  = errors.New("menu item not found")
)

// MenuService is the recipe catalog: menu items mapped to ordered
// ingredient lists. It consults the inventory ledger for availability but
// never mutates it.
type MenuService struct {
	store store.Store
	hub   Broadcaster
}

// NewMenuService creates a new MenuService.
func NewMenuService(st store.Store, hub Broadcaster) *MenuService {
	return &MenuService{store: st, hub: hub}
}

// List returns menu items; activeOnly hides soft-deleted items from
// ordering flows.
func (s *MenuService) List(ctx context.Context, activeOnly bool) ([]store.MenuItem, error) {
	return s.store.ListMenuItems(ctx, activeOnly)
}

// Get returns one menu item, active or not.
func (s *MenuService) Get(ctx context.Context, id uuid.UUID) (store.MenuItem, error) {
	item, err := s.store.GetMenuItem(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.MenuItem{}, ErrMenuItemNotFound
		}
		return store.MenuItem{}, fmt.Errorf("get menu item: %w", err)
	}
	return item, nil
}

func validateMenuItem(item store.MenuItem) error {
	if item.Name == "" {
		return ErrMenuNameRequired
	}
	if !item.Price.IsPositive() {
		return ErrMenuPriceInvalid
	}
	for i, ing := range item.Ingredients {
		if ing.Name == "" || !ing.Quantity.IsPositive() {
			return fmt.Errorf("ingredients[%d]: %w", i, ErrIngredientInvalid)
		}
	}
	return nil
}

// Create adds a menu item with its recipe.
func (s *MenuService) Create(ctx context.Context, item store.MenuItem) (store.MenuItem, error) {
	if err := validateMenuItem(item); err != nil {
		return store.MenuItem{}, err
	}
	created, err := s.store.CreateMenuItem(ctx, item)
	if err != nil {
		return store.MenuItem{}, fmt.Errorf("create menu item: %w", err)
	}
	s.hub.Broadcast(enum.EventMenuUpdated, nil)
	return created, nil
}

// Update replaces a menu item wholesale, recipe included. Past orders are
// unaffected: they carry name/price snapshots and only resolve the recipe
// at delete time.
func (s *MenuService) Update(ctx context.Context, item store.MenuItem) (store.MenuItem, error) {
	if err := validateMenuItem(item); err != nil {
		return store.MenuItem{}, err
	}
	updated, err := s.store.UpdateMenuItem(ctx, item)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.MenuItem{}, ErrMenuItemNotFound
		}
		return store.MenuItem{}, fmt.Errorf("update menu item: %w", err)
	}
	s.hub.Broadcast(enum.EventMenuUpdated, nil)
	return updated, nil
}

// Delete soft-deletes a menu item so historical orders keep resolving it.
func (s *MenuService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.SoftDeleteMenuItem(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMenuItemNotFound
		}
		return fmt.Errorf("delete menu item: %w", err)
	}
	s.hub.Broadcast(enum.EventMenuUpdated, nil)
	return nil
}

// AvailabilityResult reports how many servings of an item the current
// stock supports.
type AvailabilityResult struct {
	IsAvailable bool
	MaxServings int64
	// Missing lists recipe ingredients absent from inventory. A missing
	// ingredient means unavailable (treated as zero stock), reported
	// separately from "found but insufficient" so it can be logged as a
	// dangling reference.
	Missing []string
}

// Availability computes the serving floor for one item against an
// inventory snapshot keyed by ingredient name:
// min over ingredients of floor(stock / quantity_per_serving).
// An item with no recipe lines is not inventory-limited; MaxServings 0
// with IsAvailable true signals "no inventory backing".
func Availability(item store.MenuItem, stock map[string]decimal.Decimal) AvailabilityResult {
	res := AvailabilityResult{IsAvailable: true}
	first := true
	for _, ing := range item.Ingredients {
		if !ing.Quantity.IsPositive() {
			continue
		}
		qty, ok := stock[ing.Name]
		if !ok {
			res.IsAvailable = false
			res.MaxServings = 0
			res.Missing = append(res.Missing, ing.Name)
			first = false
			continue
		}
		servings := qty.Div(ing.Quantity).IntPart()
		if servings < 0 {
			servings = 0
		}
		if first || servings < res.MaxServings {
			res.MaxServings = servings
		}
		first = false
		if servings < 1 {
			res.IsAvailable = false
		}
	}
	if len(res.Missing) > 0 {
		res.MaxServings = 0
	}
	return res
}

// ItemAvailability pairs a menu item with its availability.
type ItemAvailability struct {
	Item         store.MenuItem
	Availability AvailabilityResult
}

// AvailabilityAll evaluates every active menu item against the current
// inventory snapshot.
func (s *MenuService) AvailabilityAll(ctx context.Context) ([]ItemAvailability, error) {
	items, err := s.store.ListMenuItems(ctx, true)
	if err != nil {
		return nil, err
	}
	inventory, err := s.store.ListInventory(ctx)
	if err != nil {
		return nil, err
	}
	stock := make(map[string]decimal.Decimal, len(inventory))
	for _, it := range inventory {
		stock[it.Name] = it.Quantity
	}

	out := make([]ItemAvailability, len(items))
	for i, item := range items {
		out[i] = ItemAvailability{Item: item, Availability: Availability(item, stock)}
	}
	return out, nil
}
