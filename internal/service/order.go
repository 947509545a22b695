package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bellybox-pos/api/internal/enum"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// orderIDPrefix starts every daily order code: prefix + DDMM + zero-padded
// daily sequence.
const orderIDPrefix = "BB"

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID    = errors.New("invalid menu_item_id")
	ErrInvalidExtra         = errors.New("extra name and positive quantity are required")
	ErrInvalidExtraPrice    = errors.New("invalid extra price")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrInvalidPaymentStatus = errors.New("invalid payment_status")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderLocked          = errors.New("order is locked")
	ErrInventoryRestore     = errors.New("inventory restoration failed")
)

// OrderService governs the order lifecycle: active (editable) → locked
// (read-only until PIN-authorized unlock) → deleted (terminal, inventory
// reversed). Creation deducts recipe consumption from the ledger; deletion
// restores it; edit re-reconciles. Payment status is an orthogonal axis.
type OrderService struct {
	store store.Store
	pins  PinVerifier
	hub   Broadcaster
}

// NewOrderService creates a new OrderService.
func NewOrderService(st store.Store, pins PinVerifier, hub Broadcaster) *OrderService {
	return &OrderService{store: st, pins: pins, hub: hub}
}

// CreateOrderRequest is the input for creating an order. The client never
// supplies the total: it is recomputed here from line items and extras.
type CreateOrderRequest struct {
	PaymentMethod string
	CreatedBy     uuid.UUID
	Items         []OrderItemRequest
}

// OrderItemRequest is a single line referencing a menu item.
type OrderItemRequest struct {
	MenuItemID string
	Quantity   int32
	Extras     []ExtraRequest
}

// ExtraRequest is a client-priced add-on on a line item.
type ExtraRequest struct {
	Name     string
	Price    string
	Quantity int32
}

// EditOrderRequest replaces an order's items wholesale.
type EditOrderRequest struct {
	Items []OrderItemRequest
}

// builtLine pairs a prepared order line with the recipe it consumes.
type builtLine struct {
	item   store.OrderItem
	recipe []store.Ingredient
}

// buildLines validates the requested items against the active menu,
// snapshots names and prices, and computes the authoritative total.
func buildLines(ctx context.Context, tx store.Store, items []OrderItemRequest) ([]builtLine, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, ErrEmptyItems
	}

	total := decimal.Zero
	lines := make([]builtLine, 0, len(items))
	for i, req := range items {
		if req.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		menuID, err := uuid.Parse(req.MenuItemID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuItemID)
		}
		menuItem, err := tx.GetMenuItem(ctx, menuID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("items[%d]: get menu item: %w", i, err)
		}
		if !menuItem.Active {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrMenuItemNotFound)
		}

		qty := decimal.NewFromInt32(req.Quantity)
		lineTotal := menuItem.Price.Mul(qty)

		extras := make([]store.Extra, 0, len(req.Extras))
		for j, ex := range req.Extras {
			if ex.Name == "" || ex.Quantity <= 0 {
				return nil, decimal.Zero, fmt.Errorf("items[%d].extras[%d]: %w", i, j, ErrInvalidExtra)
			}
			price, err := decimal.NewFromString(ex.Price)
			if err != nil || price.IsNegative() {
				return nil, decimal.Zero, fmt.Errorf("items[%d].extras[%d]: %w", i, j, ErrInvalidExtraPrice)
			}
			extras = append(extras, store.Extra{Name: ex.Name, Price: price, Quantity: ex.Quantity})
			lineTotal = lineTotal.Add(price.Mul(decimal.NewFromInt32(ex.Quantity)))
		}

		total = total.Add(lineTotal)
		lines = append(lines, builtLine{
			item: store.OrderItem{
				MenuItemID: menuItem.ID,
				Name:       menuItem.Name,
				Price:      menuItem.Price,
				Quantity:   req.Quantity,
				Extras:     extras,
			},
			recipe: menuItem.Ingredients,
		})
	}
	return lines, total, nil
}

// consumeLines deducts each line's recipe consumption from the ledger.
// Decrements are conditional: a line whose ingredient is missing or
// insufficient is skipped, never driven negative. Aggregate pre-checks
// (availability) are the caller's responsibility.
func consumeLines(ctx context.Context, tx store.Store, orderID string, lines []builtLine) error {
	for _, line := range lines {
		qty := decimal.NewFromInt32(line.item.Quantity)
		for _, ing := range line.recipe {
			delta := ing.Quantity.Mul(qty).Neg()
			err := tx.AdjustStock(ctx, ing.Name, delta)
			switch {
			case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrNotFound):
				log.Printf("WARN: order %s: skipped deduction of %q: %v", orderID, ing.Name, err)
			case err != nil:
				return fmt.Errorf("deduct %q: %w", ing.Name, err)
			}
		}
	}
	return nil
}

// restoreItems adds back the recipe consumption of the given order items.
// Restoration is unconditional addition and must fully apply: an
// ingredient that no longer exists in inventory fails the whole operation.
func restoreItems(ctx context.Context, tx store.Store, items []store.OrderItem) error {
	for _, item := range items {
		menuItem, err := tx.GetMenuItem(ctx, item.MenuItemID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: menu item %s no longer exists", ErrInventoryRestore, item.MenuItemID)
			}
			return fmt.Errorf("resolve recipe for %s: %w", item.MenuItemID, err)
		}
		qty := decimal.NewFromInt32(item.Quantity)
		for _, ing := range menuItem.Ingredients {
			err := tx.AdjustStock(ctx, ing.Name, ing.Quantity.Mul(qty))
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: ingredient %q no longer in inventory", ErrInventoryRestore, ing.Name)
			}
			if err != nil {
				return fmt.Errorf("restore %q: %w", ing.Name, err)
			}
		}
	}
	return nil
}

// Create validates the items, allocates the next daily order code,
// deducts recipe consumption, and persists the order — atomically.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (store.Order, error) {
	if !isValidPaymentMethod(req.PaymentMethod) {
		return store.Order{}, ErrInvalidPaymentMethod
	}

	var created store.Order
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		lines, total, err := buildLines(ctx, tx, req.Items)
		if err != nil {
			return err
		}

		now := time.Now()
		seq, err := tx.NextOrderSequence(ctx, now.Format("2006-01-02"))
		if err != nil {
			return fmt.Errorf("next order sequence: %w", err)
		}
		orderID := fmt.Sprintf("%s%s%02d", orderIDPrefix, now.Format("0201"), seq)

		if err := consumeLines(ctx, tx, orderID, lines); err != nil {
			return err
		}

		items := make([]store.OrderItem, len(lines))
		for i, line := range lines {
			items[i] = line.item
		}
		created, err = tx.CreateOrder(ctx, store.Order{
			ID:            orderID,
			Items:         items,
			TotalAmount:   total,
			PaymentStatus: enum.PaymentStatusUnpaid,
			PaymentMethod: req.PaymentMethod,
			CreatedBy:     req.CreatedBy,
		})
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.Order{}, err
	}

	s.hub.Broadcast(enum.EventNewOrder, map[string]string{"id": created.ID})
	s.hub.Broadcast(enum.EventSalesUpdated, nil)
	s.hub.Broadcast(enum.EventInventoryUpdated, nil)
	return created, nil
}

// Get returns one order.
func (s *OrderService) Get(ctx context.Context, id string) (store.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, ErrOrderNotFound
		}
		return store.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// List returns orders filtered by creation time, newest first.
func (s *OrderService) List(ctx context.Context, p store.ListOrdersParams) ([]store.Order, error) {
	return s.store.ListOrders(ctx, p)
}

// Edit replaces the order's items and total wholesale. Rejected while the
// order is locked. Inventory is re-reconciled in the same transaction:
// the old items' consumption is restored, then the new items' consumption
// is deducted, so the ledger stays consistent with what delete will later
// reverse.
func (s *OrderService) Edit(ctx context.Context, id string, req EditOrderRequest) (store.Order, error) {
	var updated store.Order
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("get order: %w", err)
		}
		if o.IsLocked {
			return ErrOrderLocked
		}

		if err := restoreItems(ctx, tx, o.Items); err != nil {
			return err
		}

		lines, total, err := buildLines(ctx, tx, req.Items)
		if err != nil {
			return err
		}
		if err := consumeLines(ctx, tx, o.ID, lines); err != nil {
			return err
		}

		items := make([]store.OrderItem, len(lines))
		for i, line := range lines {
			items[i] = line.item
		}
		o.Items = items
		o.TotalAmount = total

		updated, err = tx.UpdateOrder(ctx, o)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.Order{}, err
	}

	s.hub.Broadcast(enum.EventOrderUpdated, map[string]string{"id": updated.ID})
	s.hub.Broadcast(enum.EventSalesUpdated, nil)
	s.hub.Broadcast(enum.EventInventoryUpdated, nil)
	return updated, nil
}

// Lock marks the order read-only. Self-service safeguard against
// accidental edits, not a security boundary; no authorization required.
// Locking an already-locked order is a no-op that succeeds.
func (s *OrderService) Lock(ctx context.Context, id, lockedBy string) (store.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return store.Order{}, err
	}
	if o.IsLocked {
		return o, nil
	}

	now := time.Now()
	o.IsLocked = true
	o.LockedBy = lockedBy
	o.LockedAt = &now
	updated, err := s.store.UpdateOrder(ctx, o)
	if err != nil {
		return store.Order{}, fmt.Errorf("lock order: %w", err)
	}
	s.hub.Broadcast(enum.EventOrderUpdated, map[string]string{"id": updated.ID})
	return updated, nil
}

// Unlock returns a locked order to the active state. Requires PIN
// authorization. Unlocking an already-unlocked order is a no-op that
// succeeds (after the PIN check).
func (s *OrderService) Unlock(ctx context.Context, id string, actorID uuid.UUID, actorRole, pin, remoteAddr string) (store.Order, error) {
	if err := s.pins.VerifyPIN(ctx, actorID, actorRole, pin, remoteAddr); err != nil {
		return store.Order{}, err
	}

	o, err := s.Get(ctx, id)
	if err != nil {
		return store.Order{}, err
	}
	if !o.IsLocked {
		return o, nil
	}

	o.IsLocked = false
	o.LockedBy = ""
	o.LockedAt = nil
	updated, err := s.store.UpdateOrder(ctx, o)
	if err != nil {
		return store.Order{}, fmt.Errorf("unlock order: %w", err)
	}
	s.hub.Broadcast(enum.EventOrderUpdated, map[string]string{"id": updated.ID})
	return updated, nil
}

// Delete removes an order after PIN authorization, first restoring every
// line item's recipe consumption to the ledger. The restoration and the
// removal are atomic: if any ingredient can no longer be restored the
// order remains untouched.
func (s *OrderService) Delete(ctx context.Context, id string, actorID uuid.UUID, actorRole, pin, remoteAddr string) error {
	if err := s.pins.VerifyPIN(ctx, actorID, actorRole, pin, remoteAddr); err != nil {
		return err
	}

	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		o, err := tx.GetOrder(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("get order: %w", err)
		}
		if err := restoreItems(ctx, tx, o.Items); err != nil {
			return err
		}
		if err := tx.DeleteOrder(ctx, id); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.hub.Broadcast(enum.EventOrderUpdated, map[string]string{"id": id})
	s.hub.Broadcast(enum.EventSalesUpdated, nil)
	s.hub.Broadcast(enum.EventInventoryUpdated, nil)
	return nil
}

// SetPayment toggles payment status and method. Orthogonal to the lock
// state; no authorization required.
func (s *OrderService) SetPayment(ctx context.Context, id, status, method string) (store.Order, error) {
	if status != enum.PaymentStatusUnpaid && status != enum.PaymentStatusPaid {
		return store.Order{}, ErrInvalidPaymentStatus
	}
	if !isValidPaymentMethod(method) {
		return store.Order{}, ErrInvalidPaymentMethod
	}

	o, err := s.Get(ctx, id)
	if err != nil {
		return store.Order{}, err
	}
	o.PaymentStatus = status
	o.PaymentMethod = method
	updated, err := s.store.UpdateOrder(ctx, o)
	if err != nil {
		return store.Order{}, fmt.Errorf("set payment: %w", err)
	}
	s.hub.Broadcast(enum.EventOrderUpdated, map[string]string{"id": updated.ID})
	s.hub.Broadcast(enum.EventSalesUpdated, nil)
	return updated, nil
}

func isValidPaymentMethod(m string) bool {
	switch m {
	case enum.PaymentMethodCash, enum.PaymentMethodOnline, enum.PaymentMethodCashOnline:
		return true
	}
	return false
}
