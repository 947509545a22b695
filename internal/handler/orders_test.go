package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bellybox-pos/api/internal/auth"
	"github.com/bellybox-pos/api/internal/config"
	"github.com/bellybox-pos/api/internal/enum"
	"github.com/bellybox-pos/api/internal/router"
	"github.com/bellybox-pos/api/internal/service"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/bellybox-pos/api/internal/store/memstore"
	"github.com/bellybox-pos/api/internal/ws"
	"github.com/shopspring/decimal"
)

const testSecret = "test-secret"

// testEnv wires the full router against an in-memory store, with one
// owner (PIN 1234) and one staff account.
type testEnv struct {
	router     http.Handler
	store      *memstore.Store
	ownerToken string
	staffToken string
	burger     store.MenuItem
	tea        store.MenuItem
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()

	accounts := service.NewAccountService(st)
	owner, err := accounts.Signup(ctx, service.SignupRequest{
		Name: "Alice", Email: "alice@shop.id", Password: "hunter22",
		Role: enum.UserRoleOwner, Pin: "1234",
	})
	if err != nil {
		t.Fatalf("signup owner: %v", err)
	}
	staff, err := accounts.Signup(ctx, service.SignupRequest{
		Name: "Bob", Email: "bob@shop.id", Password: "hunter22",
		Role: enum.UserRoleStaff,
	})
	if err != nil {
		t.Fatalf("signup staff: %v", err)
	}

	for _, item := range []store.InventoryItem{
		{Name: "buns", Quantity: decimal.NewFromInt(10), Unit: "pcs"},
		{Name: "tea leaves", Quantity: decimal.NewFromInt(100), Unit: "g"},
	} {
		if _, err := st.CreateInventoryItem(ctx, item); err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
	}
	burger, err := st.CreateMenuItem(ctx, store.MenuItem{
		Name:        "Burger",
		Price:       decimal.NewFromInt(25000),
		Ingredients: []store.Ingredient{{Name: "buns", Quantity: decimal.NewFromInt(1)}},
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

	ownerToken, err := auth.GenerateToken(testSecret, owner.ID, owner.Name, owner.Role)
	if err != nil {
		t.Fatalf("owner token: %v", err)
	}
	staffToken, err := auth.GenerateToken(testSecret, staff.ID, staff.Name, staff.Role)
	if err != nil {
		t.Fatalf("staff token: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	cfg := &config.Config{Port: "0", StoreDriver: "memory", JWTSecret: testSecret}
	return &testEnv{
		router:     router.New(cfg, st, hub),
		store:      st,
		ownerToken: ownerToken,
		staffToken: staffToken,
		burger:     burger,
		tea:        tea,
	}
}

func doRequest(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func (env *testEnv) createOrder(t *testing.T, items ...map[string]interface{}) map[string]interface{} {
	t.Helper()
	rr := doRequest(t, env.router, "POST", "/orders", env.staffToken, map[string]interface{}{
		"payment_method": enum.PaymentMethodCash,
		"items":          items,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create order: status %d, body %s", rr.Code, rr.Body.String())
	}
	return decodeMap(t, rr)
}

func line(menuItemID string, qty int) map[string]interface{} {
	return map[string]interface{}{"menu_item_id": menuItemID, "quantity": qty}
}

// --- Tests ---

func TestOrderCreate_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := doRequest(t, env.router, "POST", "/orders", "", map[string]interface{}{
		"payment_method": enum.PaymentMethodCash,
		"items":          []map[string]interface{}{line(env.tea.ID.String(), 1)},
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestOrderCreate_ReturnsDailyCode(t *testing.T) {
	env := newTestEnv(t)

	resp := env.createOrder(t, line(env.burger.ID.String(), 2))

	want := fmt.Sprintf("BB%s01", time.Now().Format("0201"))
	if resp["id"] != want {
		t.Errorf("id: got %v, want %v", resp["id"], want)
	}
	if resp["total_amount"] != "50000" {
		t.Errorf("total: got %v, want 50000", resp["total_amount"])
	}
	if resp["payment_status"] != enum.PaymentStatusUnpaid {
		t.Errorf("payment status: got %v", resp["payment_status"])
	}
}

func TestOrderCreate_UnknownMenuItem(t *testing.T) {
	env := newTestEnv(t)

	rr := doRequest(t, env.router, "POST", "/orders", env.staffToken, map[string]interface{}{
		"payment_method": enum.PaymentMethodCash,
		"items":          []map[string]interface{}{line("00000000-0000-0000-0000-000000000001", 1)},
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestOrderEdit_LockedConflict(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, line(env.burger.ID.String(), 1))
	id := o["id"].(string)

	rr := doRequest(t, env.router, "POST", "/orders/"+id+"/lock", env.staffToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("lock: status %d, body %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, env.router, "PUT", "/orders/"+id, env.staffToken, map[string]interface{}{
		"items": []map[string]interface{}{line(env.tea.ID.String(), 1)},
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("edit locked: status %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestOrderUnlock_PinFlow(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, line(env.burger.ID.String(), 1))
	id := o["id"].(string)

	doRequest(t, env.router, "POST", "/orders/"+id+"/lock", env.staffToken, nil)

	// Wrong PIN is denied without detail.
	rr := doRequest(t, env.router, "POST", "/orders/"+id+"/unlock", env.staffToken, map[string]string{"pin": "0000"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("wrong pin: status %d, body %s", rr.Code, rr.Body.String())
	}

	// Staff unlocks with the owner's PIN.
	rr = doRequest(t, env.router, "POST", "/orders/"+id+"/unlock", env.staffToken, map[string]string{"pin": "1234"})
	if rr.Code != http.StatusOK {
		t.Fatalf("unlock: status %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeMap(t, rr)
	if resp["is_locked"] != false {
		t.Errorf("is_locked: got %v", resp["is_locked"])
	}
}

func TestOrderDelete_PinGateAndRestoration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.createOrder(t, line(env.burger.ID.String(), 3))
	id := o["id"].(string)

	buns, _ := env.store.GetInventoryItemByName(ctx, "buns")
	if !buns.Quantity.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("buns after create: %s", buns.Quantity)
	}

	rr := doRequest(t, env.router, "DELETE", "/orders/"+id, env.staffToken, map[string]string{"pin": "9999"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("wrong pin: status %d", rr.Code)
	}

	rr = doRequest(t, env.router, "DELETE", "/orders/"+id, env.staffToken, map[string]string{"pin": "1234"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d, body %s", rr.Code, rr.Body.String())
	}

	buns, _ = env.store.GetInventoryItemByName(ctx, "buns")
	if !buns.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Errorf("buns after delete: got %s, want 10", buns.Quantity)
	}

	rr = doRequest(t, env.router, "GET", "/orders/"+id, env.staffToken, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d", rr.Code)
	}
}

func TestOrderPayment(t *testing.T) {
	env := newTestEnv(t)
	o := env.createOrder(t, line(env.tea.ID.String(), 1))
	id := o["id"].(string)

	rr := doRequest(t, env.router, "PUT", "/orders/"+id+"/payment", env.staffToken, map[string]string{
		"payment_status": enum.PaymentStatusPaid,
		"payment_method": enum.PaymentMethodOnline,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("set payment: status %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decodeMap(t, rr)
	if resp["payment_status"] != enum.PaymentStatusPaid {
		t.Errorf("payment status: got %v", resp["payment_status"])
	}

	rr = doRequest(t, env.router, "PUT", "/orders/"+id+"/payment", env.staffToken, map[string]string{
		"payment_status": "refunded",
		"payment_method": enum.PaymentMethodCash,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad status: got %d", rr.Code)
	}
}

func TestOrderList(t *testing.T) {
	env := newTestEnv(t)
	env.createOrder(t, line(env.tea.ID.String(), 1))
	env.createOrder(t, line(env.burger.ID.String(), 1))

	rr := doRequest(t, env.router, "GET", "/orders", env.staffToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: status %d", rr.Code)
	}
	orders := decodeList(t, rr)
	if len(orders) != 2 {
		t.Fatalf("orders: got %d, want 2", len(orders))
	}
}
