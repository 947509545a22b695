package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bellybox-pos/api/internal/enum"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/bellybox-pos/api/internal/store/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Test doubles ---

// recordingHub captures broadcast events instead of pushing to sockets.
type recordingHub struct {
	events []string
}

func (h *recordingHub) Broadcast(event string, payload any) {
	h.events = append(h.events, event)
}

// stubPins approves or denies every PIN check.
type stubPins struct {
	deny  bool
	calls int
}

func (p *stubPins) VerifyPIN(_ context.Context, _ uuid.UUID, _, _, _ string) error {
	p.calls++
	if p.deny {
		return ErrInvalidPin
	}
	return nil
}

// --- Fixtures ---

type orderFixture struct {
	store  *memstore.Store
	hub    *recordingHub
	pins   *stubPins
	orders *OrderService

	burger store.MenuItem
	tea    store.MenuItem
}

// newOrderFixture seeds a ledger with buns, patties and tea leaves, and a
// two-item menu: a burger (1 bun + 1 patty) and a tea (5 g leaves).
func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()

	seed := []store.InventoryItem{
		{Name: "buns", Quantity: decimal.NewFromInt(10), Unit: "pcs"},
		{Name: "patties", Quantity: decimal.NewFromInt(5), Unit: "pcs"},
		{Name: "tea leaves", Quantity: decimal.NewFromInt(100), Unit: "g"},
	}
	for _, item := range seed {
		if _, err := st.CreateInventoryItem(ctx, item); err != nil {
			t.Fatalf("seed inventory %q: %v", item.Name, err)
		}
	}

	burger, err := st.CreateMenuItem(ctx, store.MenuItem{
		Name:  "Burger",
		Price: decimal.NewFromInt(25000),
		Ingredients: []store.Ingredient{
			{Name: "buns", Quantity: decimal.NewFromInt(1)},
			{Name: "patties", Quantity: decimal.NewFromInt(1)},
		},
	})
	if err != nil {
		t.Fatalf("seed burger: %v", err)
	}
	tea, err := st.CreateMenuItem(ctx, store.MenuItem{
		Name:  "Iced Tea",
		Price: decimal.NewFromInt(8000),
		Ingredients: []store.Ingredient{
			{Name: "tea leaves", Quantity: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("seed tea: %v", err)
	}

	hub := &recordingHub{}
	pins := &stubPins{}
	return &orderFixture{
		store:  st,
		hub:    hub,
		pins:   pins,
		orders: NewOrderService(st, pins, hub),
		burger: burger,
		tea:    tea,
	}
}

func (f *orderFixture) stockOf(t *testing.T, name string) decimal.Decimal {
	t.Helper()
	item, err := f.store.GetInventoryItemByName(context.Background(), name)
	if err != nil {
		t.Fatalf("get %q: %v", name, err)
	}
	return item.Quantity
}

func (f *orderFixture) createOrder(t *testing.T, items ...OrderItemRequest) store.Order {
	t.Helper()
	o, err := f.orders.Create(context.Background(), CreateOrderRequest{
		PaymentMethod: enum.PaymentMethodCash,
		CreatedBy:     uuid.New(),
		Items:         items,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func wantStock(t *testing.T, got decimal.Decimal, want int64) {
	t.Helper()
	if !got.Equal(decimal.NewFromInt(want)) {
		t.Errorf("stock: got %s, want %d", got, want)
	}
}

// --- Create ---

func TestCreateOrder_DeductsRecipeConsumption(t *testing.T) {
	f := newOrderFixture(t)

	o := f.createOrder(t, OrderItemRequest{MenuItemID: f.burger.ID.String(), Quantity: 2})

	wantStock(t, f.stockOf(t, "buns"), 8)
	wantStock(t, f.stockOf(t, "patties"), 3)
	wantStock(t, f.stockOf(t, "tea leaves"), 100)

	if o.PaymentStatus != enum.PaymentStatusUnpaid {
		t.Errorf("payment status: got %q, want %q", o.PaymentStatus, enum.PaymentStatusUnpaid)
	}
}

func TestCreateOrder_RecomputesTotalServerSide(t *testing.T) {
	f := newOrderFixture(t)

	o := f.createOrder(t,
		OrderItemRequest{
			MenuItemID: f.burger.ID.String(),
			Quantity:   2,
			Extras:     []ExtraRequest{{Name: "extra cheese", Price: "3000", Quantity: 1}},
		},
		OrderItemRequest{MenuItemID: f.tea.ID.String(), Quantity: 1},
	)

	// 2*25000 + 3000 + 8000
	want := decimal.NewFromInt(61000)
	if !o.TotalAmount.Equal(want) {
		t.Errorf("total: got %s, want %s", o.TotalAmount, want)
	}
}

func TestCreateOrder_IDFormatAndDailySequence(t *testing.T) {
	f := newOrderFixture(t)

	first := f.createOrder(t, OrderItemRequest{MenuItemID: f.tea.ID.String(), Quantity: 1})
	second := f.createOrder(t, OrderItemRequest{MenuItemID: f.tea.ID.String(), Quantity: 1})

	datePart := time.Now().Format("0201")
	if want := fmt.Sprintf("BB%s01", datePart); first.ID != want {
		t.Errorf("first id: got %q, want %q", first.ID, want)
	}
	if want := fmt.Sprintf("BB%s02", datePart); second.ID != want {
		t.Errorf("second id: got %q, want %q", second.ID, want)
	}
}

func TestCreateOrder_SkipsDeductionInsteadOfGoingNegative(t *testing.T) {
	f := newOrderFixture(t)

	// 7 burgers need 7 patties but only 5 exist. The order is still
	// accepted; the patty deduction is skipped, buns are deducted.
	o := f.createOrder(t, OrderItemRequest{MenuItemID: f.burger.ID.String(), Quantity: 7})

	wantStock(t, f.stockOf(t, "buns"), 3)
	wantStock(t, f.stockOf(t, "patties"), 5)
	if o.ID == "" {
		t.Error("expected order to be created")
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateOrderRequest
		want error
	}{
		{
			name: "empty items",
			req:  CreateOrderRequest{PaymentMethod: enum.PaymentMethodCash},
			want: ErrEmptyItems,
		},
		{
			name: "zero quantity",
			req: CreateOrderRequest{
				PaymentMethod: enum.PaymentMethodCash,
				Items:         []OrderItemRequest{{MenuItemID: f.tea.ID.String(), Quantity: 0}},
			},
			want: ErrInvalidQuantity,
		},
		{
			name: "bad menu id",
			req: CreateOrderRequest{
				PaymentMethod: enum.PaymentMethodCash,
				Items:         []OrderItemRequest{{MenuItemID: "nope", Quantity: 1}},
			},
			want: ErrInvalidMenuItemID,
		},
		{
			name: "unknown menu item",
			req: CreateOrderRequest{
				PaymentMethod: enum.PaymentMethodCash,
				Items:         []OrderItemRequest{{MenuItemID: uuid.NewString(), Quantity: 1}},
			},
			want: ErrMenuItemNotFound,
		},
		{
			name: "bad payment method",
			req: CreateOrderRequest{
				PaymentMethod: "barter",
				Items:         []OrderItemRequest{{MenuItemID: f.tea.ID.String(), Quantity: 1}},
			},
			want: ErrInvalidPaymentMethod,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orders.Create(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateOrder_FailureLeavesInventoryUntouched(t *testing.T) {
	f := newOrderFixture(t)

	// Second line fails validation after the first would have deducted.
	_, err := f.orders.Create(context.Background(), CreateOrderRequest{
		PaymentMethod: enum.PaymentMethodCash,
		Items: []OrderItemRequest{
			{MenuItemID: f.burger.ID.String(), Quantity: 1},
			{MenuItemID: "nope", Quantity: 1},
		},
	})
	if !errors.Is(err, ErrInvalidMenuItemID) {
		t.Fatalf("got %v, want %v", err, ErrInvalidMenuItemID)
	}

	wantStock(t, f.stockOf(t, "buns"), 10)
	wantStock(t, f.stockOf(t, "patties"), 5)
}

// --- Edit ---

func TestEditOrder_ReconcilesInventory(t *testing.T) {
	f := newOrderFixture(t)

	o := f.createOrder(t, OrderItemRequest{MenuItemID: f.burger.ID.String(), Quantity: 2})
	wantStock(t, f.stockOf(t, "buns"), 8)

	updated, err := f.orders.Edit(context.Background(), o.ID, EditOrderRequest{
		Items: []OrderItemRequest{{MenuItemID: f.tea.ID.String(), Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("edit order: %v", err)
	}

	// Burger consumption restored, tea consumption deducted.
	wantStock(t, f.stockOf(t, "buns"), 10)
	wantStock(t, f.stockOf(t, "patties"), 5)
	wantStock(t, f.stockOf(t, "tea leaves"), 85)

	if want := decimal.NewFromInt(24000); !updated.TotalAmount.Equal(want) {
		t.Errorf("total: got %s, want %s", updated.TotalAmount, want)
	}
}

func TestEditOrder_RejectedWhileLocked(t *testing.T) {
	f := newOrderFixture(t)

	o := f.createOrder(t, OrderItemRequest{MenuItemID: f.burger.ID.String(), Quantity: 1})
	if _, err := f.orders.Lock(context.Background(), o.ID, "alice"); err != nil {
		t.Fatalf("lock: %v", err)
	}

	_, err := f.orders.Edit(context.Background(), o.ID, EditOrderRequest{
		Items: []OrderItemRequest{{MenuItemID: f.tea.ID.String(), Quantity: 1}},
	})
	if !errors.Is(err, ErrOrderLocked) {
		t.Fatalf("got %v, want %v", err, ErrOrderLocked)
	}

	// Rejected edit leaves both order and ledger untouched.
	wantStock(t, f.stockOf(t, "buns"), 9)
	got, _ := f.orders.Get(context.Background(), o.ID)
	if len(got.Items) != 1 || got.Items[0].Name != "Burger" {
		t.Errorf("order items changed: %+v", got.Items)
	}
}

// --- Lock / Unlock ---

func TestLockOrder_Idempotent(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	o := f.createOrder(t, OrderItemRequest{MenuItemID: f.tea.ID.String(), Quantity: 1})

	locked, err := f.orders.Lock(ctx, o.ID, "alice")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !locked.IsLocked || locked.LockedBy != "alice" || locked.LockedAt == nil {
		t.Errorf("lock state: %+v", locked)
	}

	again, err := f.orders.Lock(ctx, o.ID, "bob")
	if err != nil {
		t.Fatalf("second lock: %v", err)
	}
	if again.LockedBy != "alice" {
		t.Errorf("second lock overwrote holder: got %q", again.LockedBy)
	}
}

func TestUnlockOrder_RequiresPin(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	o := f.createOrder(t, OrderItemRequest{MenuItemID: f.tea.ID.String(), Quantity: 1})
	if _, err := f.orders.Lock(ctx, o.ID, "alice"); err != nil {
		t.Fatalf("lock: %v", err)
	}

	f.pins.deny = true
	_, err := f.orders.Unlock(ctx, o.ID, uuid.New(), enum.UserRoleStaff, "0000", "127.0.0.1:1")
	if !errors.Is(err, ErrInvalidPin) {
		t.Fatalf("got %v, want %v", err, ErrInvalidPin)
	}
	got, _ := f.orders.Get(ctx, o.ID)
	if !got.IsLocked {
		t.Error("denied unlock cleared the lock")
	}

	f.pins.deny = false
	unlocked, err := f.orders.Unlock(ctx, o.ID, uuid.New(), enum.UserRoleStaff, "1234", "127.0.0.1:1")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if unlocked.IsLocked || unlocked.LockedBy != "" || unlocked.LockedAt != nil {
		t.Errorf("unlock state: %+v", unlocked)
	}
}

// --- Delete ---

func TestDeleteOrder_RestoresInventory(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	o := f.createOrder(t, OrderItemRequest{MenuItemID: f.burger.ID.String(), Quantity: 3})
	wantStock(t, f.stockOf(t, "buns"), 7)

	if err := f.orders.Delete(ctx, o.ID, uuid.New(), enum.UserRoleOwner, "1234", "127.0.0.1:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	wantStock(t, f.stockOf(t, "buns"), 10)
	wantStock(t, f.stockOf(t, "patties"), 5)
	if _, err := f.orders.Get(ctx, o.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("get after delete: got %v, want %v", err, ErrOrderNotFound)
	}
}

func TestDeleteOrder_DeniedPinLeavesOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	o := f.createOrder(t, OrderItemRequest{MenuItemID: f.burger.ID.String(), Quantity: 1})
	f.pins.deny = true

	err := f.orders.Delete(ctx, o.ID, uuid.New(), enum.UserRoleStaff, "0000", "127.0.0.1:1")
	if !errors.Is(err, ErrInvalidPin) {
		t.Fatalf("got %v, want %v", err, ErrInvalidPin)
	}
	if _, err := f.orders.Get(ctx, o.ID); err != nil {
		t.Errorf("order should survive denied delete: %v", err)
	}
	wantStock(t, f.stockOf(t, "buns"), 9)
}

func TestDeleteOrder_FailedRestorationIsAtomic(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	o := f.createOrder(t, OrderItemRequest{MenuItemID: f.burger.ID.String(), Quantity: 2})

	// Remove one ingredient from the ledger so restoration cannot apply.
	patties, err := f.store.GetInventoryItemByName(ctx, "patties")
	if err != nil {
		t.Fatalf("get patties: %v", err)
	}
	if err := f.store.DeleteInventoryItem(ctx, patties.ID); err != nil {
		t.Fatalf("delete patties: %v", err)
	}
	bunsBefore := f.stockOf(t, "buns")

	err = f.orders.Delete(ctx, o.ID, uuid.New(), enum.UserRoleOwner, "1234", "127.0.0.1:1")
	if !errors.Is(err, ErrInventoryRestore) {
		t.Fatalf("got %v, want %v", err, ErrInventoryRestore)
	}

	// Nothing moved: order still there, buns not partially restored.
	if _, err := f.orders.Get(ctx, o.ID); err != nil {
		t.Errorf("order should survive failed restoration: %v", err)
	}
	if got := f.stockOf(t, "buns"); !got.Equal(bunsBefore) {
		t.Errorf("buns changed on failed delete: got %s, want %s", got, bunsBefore)
	}
}

// --- Payment ---

func TestSetPayment_AllowedWhileLocked(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	o := f.createOrder(t, OrderItemRequest{MenuItemID: f.tea.ID.String(), Quantity: 1})
	if _, err := f.orders.Lock(ctx, o.ID, "alice"); err != nil {
		t.Fatalf("lock: %v", err)
	}

	updated, err := f.orders.SetPayment(ctx, o.ID, enum.PaymentStatusPaid, enum.PaymentMethodOnline)
	if err != nil {
		t.Fatalf("set payment: %v", err)
	}
	if updated.PaymentStatus != enum.PaymentStatusPaid || updated.PaymentMethod != enum.PaymentMethodOnline {
		t.Errorf("payment state: %+v", updated)
	}
	if !updated.IsLocked {
		t.Error("payment toggled the lock")
	}
}

func TestSetPayment_Validation(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	o := f.createOrder(t, OrderItemRequest{MenuItemID: f.tea.ID.String(), Quantity: 1})

	if _, err := f.orders.SetPayment(ctx, o.ID, "refunded", enum.PaymentMethodCash); !errors.Is(err, ErrInvalidPaymentStatus) {
		t.Errorf("got %v, want %v", err, ErrInvalidPaymentStatus)
	}
	if _, err := f.orders.SetPayment(ctx, o.ID, enum.PaymentStatusPaid, "barter"); !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Errorf("got %v, want %v", err, ErrInvalidPaymentMethod)
	}
}
