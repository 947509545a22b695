package handler_test

import (
	"net/http"
	"testing"
)

func TestReportsSummary(t *testing.T) {
	env := newTestEnv(t)
	env.createOrder(t, line(env.burger.ID.String(), 2))
	tea := env.createOrder(t, line(env.tea.ID.String(), 1))

	rr := doRequest(t, env.router, "PUT", "/orders/"+tea["id"].(string)+"/payment", env.staffToken, map[string]string{
		"payment_status": "paid",
		"payment_method": "cash",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("set payment: status %d, body %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, env.router, "GET", "/reports/summary", env.staffToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary: status %d, body %s", rr.Code, rr.Body.String())
	}
	sum := decodeMap(t, rr)
	if sum["order_count"] != float64(2) {
		t.Errorf("order count: got %v, want 2", sum["order_count"])
	}
	if sum["paid_order_count"] != float64(1) {
		t.Errorf("paid order count: got %v, want 1", sum["paid_order_count"])
	}
	if sum["revenue"] != "8000" {
		t.Errorf("revenue: got %v, want 8000", sum["revenue"])
	}
	if sum["unpaid_amount"] != "50000" {
		t.Errorf("unpaid amount: got %v, want 50000", sum["unpaid_amount"])
	}
}

func TestReportsHourlySales_AlwaysReturns24Buckets(t *testing.T) {
	env := newTestEnv(t)

	rr := doRequest(t, env.router, "GET", "/reports/hourly-sales", env.staffToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}
	buckets := decodeList(t, rr)
	if len(buckets) != 24 {
		t.Fatalf("buckets: got %d, want 24", len(buckets))
	}
	if buckets[0]["hour"] != float64(0) || buckets[23]["hour"] != float64(23) {
		t.Errorf("bucket hours: got %v..%v", buckets[0]["hour"], buckets[23]["hour"])
	}
}

func TestReportsTopProducts(t *testing.T) {
	env := newTestEnv(t)
	env.createOrder(t, line(env.burger.ID.String(), 3), line(env.tea.ID.String(), 1))

	rr := doRequest(t, env.router, "GET", "/reports/top-products", env.staffToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}
	ranked := decodeList(t, rr)
	if len(ranked) != 2 {
		t.Fatalf("products: got %d, want 2", len(ranked))
	}
	if ranked[0]["name"] != "Burger" || ranked[0]["quantity"] != float64(3) {
		t.Errorf("top product: got %v", ranked[0])
	}
}

func TestReportsDateRange_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name  string
		query string
	}{
		{"malformed start", "?start_date=03-10-2026"},
		{"malformed end", "?start_date=2026-03-01&end_date=bogus"},
		{"inverted range", "?start_date=2026-03-10&end_date=2026-03-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, env.router, "GET", "/reports/summary"+tc.query, env.staffToken, nil)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}
