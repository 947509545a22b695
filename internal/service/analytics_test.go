package service

import (
	"context"
	"testing"
	"time"

	"github.com/bellybox-pos/api/internal/enum"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/bellybox-pos/api/internal/store/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type analyticsFixture struct {
	store     *memstore.Store
	analytics *AnalyticsService
	burger    store.MenuItem
	tea       store.MenuItem
	day       time.Time
}

// newAnalyticsFixture seeds a day of orders directly through the store so
// timestamps are deterministic: two paid burgers at 09:00, one paid tea at
// 09:30, one unpaid burger at 14:00.
func newAnalyticsFixture(t *testing.T) *analyticsFixture {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()

	for _, item := range []store.InventoryItem{
		{Name: "buns", Quantity: decimal.NewFromInt(50), Unit: "pcs"},
		{Name: "tea leaves", Quantity: decimal.NewFromInt(500), Unit: "g"},
	} {
		if _, err := st.CreateInventoryItem(ctx, item); err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}

	burger, err := st.CreateMenuItem(ctx, store.MenuItem{
		Name:        "Burger",
		Price:       decimal.NewFromInt(25000),
		Ingredients: []store.Ingredient{{Name: "buns", Quantity: decimal.NewFromInt(2)}},
	})
	if err != nil {
		t.Fatalf("seed burger: %v", err)
	}
	tea, err := st.CreateMenuItem(ctx, store.MenuItem{
		Name:        "Iced Tea",
		Price:       decimal.NewFromInt(8000),
		Ingredients: []store.Ingredient{{Name: "tea leaves", Quantity: decimal.NewFromInt(5)}},
	})
	if err != nil {
		t.Fatalf("seed tea: %v", err)
	}

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local)
	seedOrder := func(id string, at time.Time, status string, item store.MenuItem, qty int32) {
		t.Helper()
		total := item.Price.Mul(decimal.NewFromInt32(qty))
		_, err := st.CreateOrder(ctx, store.Order{
			ID: id,
			Items: []store.OrderItem{{
				MenuItemID: item.ID,
				Name:       item.Name,
				Price:      item.Price,
				Quantity:   qty,
			}},
			TotalAmount:   total,
			PaymentStatus: status,
			PaymentMethod: enum.PaymentMethodCash,
			CreatedBy:     uuid.New(),
			CreatedAt:     at,
		})
		if err != nil {
			t.Fatalf("seed order %s: %v", id, err)
		}
	}

	seedOrder("BB100301", day.Add(9*time.Hour), enum.PaymentStatusPaid, burger, 2)
	seedOrder("BB100302", day.Add(9*time.Hour+30*time.Minute), enum.PaymentStatusPaid, tea, 1)
	seedOrder("BB100303", day.Add(14*time.Hour), enum.PaymentStatusUnpaid, burger, 1)

	return &analyticsFixture{
		store:     st,
		analytics: NewAnalyticsService(st),
		burger:    burger,
		tea:       tea,
		day:       day,
	}
}

func (f *analyticsFixture) window() (time.Time, time.Time) {
	return f.day, f.day.AddDate(0, 0, 1)
}

func TestHourlySales(t *testing.T) {
	f := newAnalyticsFixture(t)
	start, end := f.window()

	buckets, err := f.analytics.HourlySales(context.Background(), start, end)
	if err != nil {
		t.Fatalf("hourly sales: %v", err)
	}
	if len(buckets) != 24 {
		t.Fatalf("buckets: got %d, want 24", len(buckets))
	}

	nine := buckets[9]
	if nine.OrderCount != 2 {
		t.Errorf("09:00 orders: got %d, want 2", nine.OrderCount)
	}
	if want := decimal.NewFromInt(58000); !nine.Revenue.Equal(want) {
		t.Errorf("09:00 revenue: got %s, want %s", nine.Revenue, want)
	}

	// Unpaid order counts toward activity but not revenue.
	two := buckets[14]
	if two.OrderCount != 1 {
		t.Errorf("14:00 orders: got %d, want 1", two.OrderCount)
	}
	if !two.Revenue.IsZero() {
		t.Errorf("14:00 revenue: got %s, want 0", two.Revenue)
	}

	if buckets[3].OrderCount != 0 || !buckets[3].Revenue.IsZero() {
		t.Errorf("quiet hour not empty: %+v", buckets[3])
	}
}

func TestTopProducts(t *testing.T) {
	f := newAnalyticsFixture(t)
	start, end := f.window()

	ranked, err := f.analytics.TopProducts(context.Background(), start, end, 0)
	if err != nil {
		t.Fatalf("top products: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("products: got %d, want 2", len(ranked))
	}

	if ranked[0].Name != "Burger" || ranked[0].Quantity != 3 {
		t.Errorf("top product: %+v", ranked[0])
	}
	// Only the paid burgers count toward revenue.
	if want := decimal.NewFromInt(50000); !ranked[0].Revenue.Equal(want) {
		t.Errorf("burger revenue: got %s, want %s", ranked[0].Revenue, want)
	}
	if ranked[1].Name != "Iced Tea" || ranked[1].Quantity != 1 {
		t.Errorf("second product: %+v", ranked[1])
	}
}

func TestTopProducts_Limit(t *testing.T) {
	f := newAnalyticsFixture(t)
	start, end := f.window()

	ranked, err := f.analytics.TopProducts(context.Background(), start, end, 1)
	if err != nil {
		t.Fatalf("top products: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Name != "Burger" {
		t.Errorf("limited ranking: %+v", ranked)
	}
}

func TestIngredientUsage(t *testing.T) {
	f := newAnalyticsFixture(t)
	start, end := f.window()

	usage, err := f.analytics.IngredientUsage(context.Background(), start, end)
	if err != nil {
		t.Fatalf("ingredient usage: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("ingredients: got %d, want 2", len(usage))
	}

	// Sorted by name: buns then tea leaves. 3 burgers * 2 buns each.
	if usage[0].Name != "buns" || !usage[0].Quantity.Equal(decimal.NewFromInt(6)) || usage[0].Unit != "pcs" {
		t.Errorf("buns usage: %+v", usage[0])
	}
	if usage[1].Name != "tea leaves" || !usage[1].Quantity.Equal(decimal.NewFromInt(5)) || usage[1].Unit != "g" {
		t.Errorf("tea usage: %+v", usage[1])
	}
}

func TestSummarize(t *testing.T) {
	f := newAnalyticsFixture(t)
	ctx := context.Background()
	start, end := f.window()

	sum, err := f.analytics.Summarize(ctx, start, end)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.OrderCount != 3 || sum.PaidOrderCount != 2 {
		t.Errorf("counts: %+v", sum)
	}
	if want := decimal.NewFromInt(58000); !sum.Revenue.Equal(want) {
		t.Errorf("revenue: got %s, want %s", sum.Revenue, want)
	}
	if want := decimal.NewFromInt(25000); !sum.UnpaidAmount.Equal(want) {
		t.Errorf("unpaid: got %s, want %s", sum.UnpaidAmount, want)
	}
}

func TestSummarize_ExpenditureWindow(t *testing.T) {
	f := newAnalyticsFixture(t)
	ctx := context.Background()

	if _, err := f.store.CreateExpenditure(ctx, store.Expenditure{
		Description:   "gas refill",
		Amount:        decimal.NewFromInt(150000),
		PaymentStatus: enum.PaymentStatusPaid,
	}); err != nil {
		t.Fatalf("seed expenditure: %v", err)
	}

	// The expenditure's CreatedAt is now; query a window that contains it.
	now := time.Now()
	sum, err := f.analytics.Summarize(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if want := decimal.NewFromInt(150000); !sum.ExpenditureTotal.Equal(want) {
		t.Errorf("expenditure total: got %s, want %s", sum.ExpenditureTotal, want)
	}
	if want := decimal.NewFromInt(-150000); !sum.Net.Equal(want) {
		t.Errorf("net: got %s, want %s", sum.Net, want)
	}
}
