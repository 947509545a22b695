package handler

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/bellybox-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
)

// defaultTopProducts caps the product ranking when the client doesn't ask
// for a specific size.
const defaultTopProducts = 10

// ReportsHandler handles analytics endpoints.
type ReportsHandler struct {
	analytics *service.AnalyticsService
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(analytics *service.AnalyticsService) *ReportsHandler {
	return &ReportsHandler{analytics: analytics}
}

// RegisterRoutes registers report endpoints on the given Chi router.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/reports/summary", h.Summary)
	r.Get("/reports/hourly-sales", h.HourlySales)
	r.Get("/reports/top-products", h.TopProducts)
	r.Get("/reports/ingredient-usage", h.IngredientUsage)
}

// --- Handlers ---

// Summary returns the window's headline figures.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sum, err := h.analytics.Summarize(r.Context(), start, end)
	if err != nil {
		log.Printf("ERROR: summary report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HourlySales returns per-hour order counts and revenue.
func (h *ReportsHandler) HourlySales(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	buckets, err := h.analytics.HourlySales(r.Context(), start, end)
	if err != nil {
		log.Printf("ERROR: hourly sales report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

// TopProducts returns menu items ranked by quantity sold.
func (h *ReportsHandler) TopProducts(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	limit := defaultTopProducts
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	ranked, err := h.analytics.TopProducts(r.Context(), start, end, limit)
	if err != nil {
		log.Printf("ERROR: top products report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

// IngredientUsage returns total recipe consumption per ingredient.
func (h *ReportsHandler) IngredientUsage(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	usage, err := h.analytics.IngredientUsage(r.Context(), start, end)
	if err != nil {
		log.Printf("ERROR: ingredient usage report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// --- Helpers ---

// parseDateRange parses start_date and end_date query params
// (2006-01-02, local time). Defaults to the last 30 days. The returned
// end is exclusive (next day midnight).
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	const layout = "2006-01-02"
	loc := time.Local

	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	start := today.AddDate(0, 0, -30)
	end := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		start = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		end = t.AddDate(0, 0, 1)
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}
	return start, end, nil
}
