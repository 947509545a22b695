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

// Errors returned by the inventory service.
var (
	ErrItemNameRequired = errors.New("name is required")
	ErrItemNotFound     = errors.New("inventory item not found")
	ErrDuplicateItem    = errors.New("inventory item with this name already exists")
)

// InventoryService is the stock ledger. Quantities move through signed
// deltas; manual edits may set any value, order placement may not drive a
// quantity negative.
type InventoryService struct {
	store store.Store
	hub   Broadcaster
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(st store.Store, hub Broadcaster) *InventoryService {
	return &InventoryService{store: st, hub: hub}
}

// List returns the current snapshot, ordered by name.
func (s *InventoryService) List(ctx context.Context) ([]store.InventoryItem, error) {
	return s.store.ListInventory(ctx)
}

// LowStock returns items at or below their low-stock threshold.
func (s *InventoryService) LowStock(ctx context.Context) ([]store.InventoryItem, error) {
	items, err := s.store.ListInventory(ctx)
	if err != nil {
		return nil, err
	}
	low := []store.InventoryItem{}
	for _, it := range items {
		if it.LowStockThreshold.IsPositive() && it.Quantity.LessThanOrEqual(it.LowStockThreshold) {
			low = append(low, it)
		}
	}
	return low, nil
}

// Create adds a new ledger item. No recipe awareness; used for manual
// stock management.
func (s *InventoryService) Create(ctx context.Context, item store.InventoryItem) (store.InventoryItem, error) {
	if item.Name == "" {
		return store.InventoryItem{}, ErrItemNameRequired
	}
	created, err := s.store.CreateInventoryItem(ctx, item)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.InventoryItem{}, ErrDuplicateItem
		}
		return store.InventoryItem{}, fmt.Errorf("create inventory item: %w", err)
	}
	s.hub.Broadcast(enum.EventInventoryUpdated, nil)
	return created, nil
}

// Update replaces an item wholesale. The quantity is taken verbatim: a
// manual edit is allowed to set any value, including zero or negative.
func (s *InventoryService) Update(ctx context.Context, item store.InventoryItem) (store.InventoryItem, error) {
	if item.Name == "" {
		return store.InventoryItem{}, ErrItemNameRequired
	}
	updated, err := s.store.UpdateInventoryItem(ctx, item)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return store.InventoryItem{}, ErrItemNotFound
		case errors.Is(err, store.ErrDuplicate):
			return store.InventoryItem{}, ErrDuplicateItem
		}
		return store.InventoryItem{}, fmt.Errorf("update inventory item: %w", err)
	}
	s.hub.Broadcast(enum.EventInventoryUpdated, nil)
	return updated, nil
}

// Delete removes an item from the ledger.
func (s *InventoryService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteInventoryItem(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("delete inventory item: %w", err)
	}
	s.hub.Broadcast(enum.EventInventoryUpdated, nil)
	return nil
}

// ApplyDelta adjusts the named item's quantity by delta. Decrements are
// conditional: when the current stock cannot absorb the decrement the call
// is a no-op and applied is false. Additions always apply. The caller is
// responsible for aggregate availability pre-checks.
func (s *InventoryService) ApplyDelta(ctx context.Context, name string, delta decimal.Decimal) (applied bool, err error) {
	err = s.store.AdjustStock(ctx, name, delta)
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		return false, nil
	case errors.Is(err, store.ErrNotFound):
		return false, ErrItemNotFound
	case err != nil:
		return false, fmt.Errorf("adjust stock: %w", err)
	}
	s.hub.Broadcast(enum.EventInventoryUpdated, nil)
	return true, nil
}
