package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bellybox-pos/api/internal/enum"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/shopspring/decimal"
)

// AnalyticsService derives sales, product, and ingredient reports by
// replaying the order log for a time window. Revenue figures count paid
// orders only; order counts include unpaid ones.
type AnalyticsService struct {
	store store.Store
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(st store.Store) *AnalyticsService {
	return &AnalyticsService{store: st}
}

// HourlyBucket is one hour of the day (0-23) with its order activity.
type HourlyBucket struct {
	Hour       int             `json:"hour"`
	OrderCount int             `json:"order_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}

// ProductSales aggregates one menu item's sold quantity and revenue,
// keyed by the name snapshotted onto the order line. Extras are priced
// into revenue but not counted as product quantity.
type ProductSales struct {
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// IngredientUsage is the total recipe consumption attributed to one
// ingredient over the window, in the unit the inventory ledger carries
// for it.
type IngredientUsage struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
}

// Summary is the headline view of a window.
type Summary struct {
	OrderCount       int             `json:"order_count"`
	PaidOrderCount   int             `json:"paid_order_count"`
	Revenue          decimal.Decimal `json:"revenue"`
	UnpaidAmount     decimal.Decimal `json:"unpaid_amount"`
	ExpenditureTotal decimal.Decimal `json:"expenditure_total"`
	Net              decimal.Decimal `json:"net"`
}

func (s *AnalyticsService) windowOrders(ctx context.Context, start, end time.Time) ([]store.Order, error) {
	orders, err := s.store.ListOrders(ctx, store.ListOrdersParams{Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// HourlySales buckets the window's orders by hour of day. All 24 buckets
// are always present so charts don't have to fill gaps.
func (s *AnalyticsService) HourlySales(ctx context.Context, start, end time.Time) ([]HourlyBucket, error) {
	orders, err := s.windowOrders(ctx, start, end)
	if err != nil {
		return nil, err
	}

	buckets := make([]HourlyBucket, 24)
	for i := range buckets {
		buckets[i].Hour = i
		buckets[i].Revenue = decimal.Zero
	}
	for _, o := range orders {
		h := o.CreatedAt.Hour()
		buckets[h].OrderCount++
		if o.PaymentStatus == enum.PaymentStatusPaid {
			buckets[h].Revenue = buckets[h].Revenue.Add(o.TotalAmount)
		}
	}
	return buckets, nil
}

// TopProducts ranks menu items by quantity sold, revenue breaking ties.
// limit <= 0 returns the full ranking.
func (s *AnalyticsService) TopProducts(ctx context.Context, start, end time.Time, limit int) ([]ProductSales, error) {
	orders, err := s.windowOrders(ctx, start, end)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*ProductSales)
	for _, o := range orders {
		for _, item := range o.Items {
			ps, ok := byName[item.Name]
			if !ok {
				ps = &ProductSales{Name: item.Name, Revenue: decimal.Zero}
				byName[item.Name] = ps
			}
			qty := decimal.NewFromInt32(item.Quantity)
			ps.Quantity += int64(item.Quantity)
			if o.PaymentStatus == enum.PaymentStatusPaid {
				ps.Revenue = ps.Revenue.Add(item.Price.Mul(qty))
				for _, ex := range item.Extras {
					ps.Revenue = ps.Revenue.Add(ex.Price.Mul(decimal.NewFromInt32(ex.Quantity)))
				}
			}
		}
	}

	ranked := make([]ProductSales, 0, len(byName))
	for _, ps := range byName {
		ranked = append(ranked, *ps)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Quantity != ranked[j].Quantity {
			return ranked[i].Quantity > ranked[j].Quantity
		}
		return ranked[i].Revenue.GreaterThan(ranked[j].Revenue)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// IngredientUsage replays each order line through its menu item's current
// recipe and sums per-ingredient consumption. Lines whose menu item has
// since been removed are skipped; the unit comes from the inventory
// ledger, blank if the ingredient is no longer stocked.
func (s *AnalyticsService) IngredientUsage(ctx context.Context, start, end time.Time) ([]IngredientUsage, error) {
	orders, err := s.windowOrders(ctx, start, end)
	if err != nil {
		return nil, err
	}

	usage := make(map[string]decimal.Decimal)
	recipes := make(map[string][]store.Ingredient)
	for _, o := range orders {
		for _, item := range o.Items {
			key := item.MenuItemID.String()
			recipe, ok := recipes[key]
			if !ok {
				menuItem, err := s.store.GetMenuItem(ctx, item.MenuItemID)
				if errors.Is(err, store.ErrNotFound) {
					recipes[key] = nil
					continue
				}
				if err != nil {
					return nil, fmt.Errorf("get menu item: %w", err)
				}
				recipe = menuItem.Ingredients
				recipes[key] = recipe
			}
			qty := decimal.NewFromInt32(item.Quantity)
			for _, ing := range recipe {
				usage[ing.Name] = usage[ing.Name].Add(ing.Quantity.Mul(qty))
			}
		}
	}

	out := make([]IngredientUsage, 0, len(usage))
	for name, qty := range usage {
		unit := ""
		if item, err := s.store.GetInventoryItemByName(ctx, name); err == nil {
			unit = item.Unit
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get inventory item: %w", err)
		}
		out = append(out, IngredientUsage{Name: name, Quantity: qty, Unit: unit})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Summarize computes the window's headline figures, netting paid revenue
// against expenditures recorded in the same window.
func (s *AnalyticsService) Summarize(ctx context.Context, start, end time.Time) (Summary, error) {
	orders, err := s.windowOrders(ctx, start, end)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Revenue:          decimal.Zero,
		UnpaidAmount:     decimal.Zero,
		ExpenditureTotal: decimal.Zero,
	}
	for _, o := range orders {
		sum.OrderCount++
		if o.PaymentStatus == enum.PaymentStatusPaid {
			sum.PaidOrderCount++
			sum.Revenue = sum.Revenue.Add(o.TotalAmount)
		} else {
			sum.UnpaidAmount = sum.UnpaidAmount.Add(o.TotalAmount)
		}
	}

	expenses, err := s.store.ListExpenditures(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list expenditures: %w", err)
	}
	for _, e := range expenses {
		if e.CreatedAt.Before(start) || !e.CreatedAt.Before(end) {
			continue
		}
		sum.ExpenditureTotal = sum.ExpenditureTotal.Add(e.Amount)
	}

	sum.Net = sum.Revenue.Sub(sum.ExpenditureTotal)
	return sum, nil
}
