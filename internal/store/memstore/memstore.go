// Package memstore is the in-memory store.Store implementation. It backs
// unit tests and the "memory" store driver. All operations serialize
// behind a single mutex; RunInTx snapshots the state so a failed function
// rolls back completely.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bellybox-pos/api/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type state struct {
	inventory     map[uuid.UUID]store.InventoryItem
	inventoryName map[string]uuid.UUID
	menu          map[uuid.UUID]store.MenuItem
	orders        map[string]store.Order
	orderSeq      map[string]int
	expenditures  map[uuid.UUID]store.Expenditure
	users         map[uuid.UUID]store.User
	audit         []store.AuditEntry
}

func newState() *state {
	return &state{
		inventory:     make(map[uuid.UUID]store.InventoryItem),
		inventoryName: make(map[string]uuid.UUID),
		menu:          make(map[uuid.UUID]store.MenuItem),
		orders:        make(map[string]store.Order),
		orderSeq:      make(map[string]int),
		expenditures:  make(map[uuid.UUID]store.Expenditure),
		users:         make(map[uuid.UUID]store.User),
	}
}

// clone copies the maps. Struct values are copied by value; the slices they
// carry are never mutated in place (every update replaces them wholesale),
// so sharing backing arrays with the snapshot is safe.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.inventory {
		c.inventory[k] = v
	}
	for k, v := range s.inventoryName {
		c.inventoryName[k] = v
	}
	for k, v := range s.menu {
		c.menu[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderSeq {
		c.orderSeq[k] = v
	}
	for k, v := range s.expenditures {
		c.expenditures[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	c.audit = append(c.audit, s.audit...)
	return c
}

// Store is the in-memory backend.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{st: newState()}
}

var _ store.Store = (*Store)(nil)

// RunInTx serializes fn behind the store mutex and restores the previous
// state if fn returns an error.
func (s *Store) RunInTx(ctx context.Context, fn func(store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&txStore{s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// txStore delegates to the unlocked operations; it is only ever used while
// the parent's mutex is held.
type txStore struct {
	s *Store
}

var _ store.Store = (*txStore)(nil)

// RunInTx on an already-open transaction just runs fn; the outer snapshot
// covers rollback.
func (t *txStore) RunInTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(t)
}

// --- Inventory ---

func (s *Store) ListInventory(ctx context.Context) ([]store.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listInventory()
}

func (t *txStore) ListInventory(ctx context.Context) ([]store.InventoryItem, error) {
	return t.s.st.listInventory()
}

func (st *state) listInventory() ([]store.InventoryItem, error) {
	items := make([]store.InventoryItem, 0, len(st.inventory))
	for _, it := range st.inventory {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id uuid.UUID) (store.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getInventoryItem(id)
}

func (t *txStore) GetInventoryItem(ctx context.Context, id uuid.UUID) (store.InventoryItem, error) {
	return t.s.st.getInventoryItem(id)
}

func (st *state) getInventoryItem(id uuid.UUID) (store.InventoryItem, error) {
	it, ok := st.inventory[id]
	if !ok {
		return store.InventoryItem{}, store.ErrNotFound
	}
	return it, nil
}

func (s *Store) GetInventoryItemByName(ctx context.Context, name string) (store.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getInventoryItemByName(name)
}

func (t *txStore) GetInventoryItemByName(ctx context.Context, name string) (store.InventoryItem, error) {
	return t.s.st.getInventoryItemByName(name)
}

func (st *state) getInventoryItemByName(name string) (store.InventoryItem, error) {
	id, ok := st.inventoryName[name]
	if !ok {
		return store.InventoryItem{}, store.ErrNotFound
	}
	return st.inventory[id], nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, item store.InventoryItem) (store.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createInventoryItem(item)
}

func (t *txStore) CreateInventoryItem(ctx context.Context, item store.InventoryItem) (store.InventoryItem, error) {
	return t.s.st.createInventoryItem(item)
}

func (st *state) createInventoryItem(item store.InventoryItem) (store.InventoryItem, error) {
	if _, exists := st.inventoryName[item.Name]; exists {
		return store.InventoryItem{}, store.ErrDuplicate
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	st.inventory[item.ID] = item
	st.inventoryName[item.Name] = item.ID
	return item, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item store.InventoryItem) (store.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateInventoryItem(item)
}

func (t *txStore) UpdateInventoryItem(ctx context.Context, item store.InventoryItem) (store.InventoryItem, error) {
	return t.s.st.updateInventoryItem(item)
}

func (st *state) updateInventoryItem(item store.InventoryItem) (store.InventoryItem, error) {
	prev, ok := st.inventory[item.ID]
	if !ok {
		return store.InventoryItem{}, store.ErrNotFound
	}
	if item.Name != prev.Name {
		if _, exists := st.inventoryName[item.Name]; exists {
			return store.InventoryItem{}, store.ErrDuplicate
		}
		delete(st.inventoryName, prev.Name)
		st.inventoryName[item.Name] = item.ID
	}
	item.CreatedAt = prev.CreatedAt
	item.UpdatedAt = time.Now()
	st.inventory[item.ID] = item
	return item, nil
}

func (s *Store) DeleteInventoryItem(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deleteInventoryItem(id)
}

func (t *txStore) DeleteInventoryItem(ctx context.Context, id uuid.UUID) error {
	return t.s.st.deleteInventoryItem(id)
}

func (st *state) deleteInventoryItem(id uuid.UUID) error {
	it, ok := st.inventory[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(st.inventory, id)
	delete(st.inventoryName, it.Name)
	return nil
}

func (s *Store) AdjustStock(ctx context.Context, name string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.adjustStock(name, delta)
}

func (t *txStore) AdjustStock(ctx context.Context, name string, delta decimal.Decimal) error {
	return t.s.st.adjustStock(name, delta)
}

func (st *state) adjustStock(name string, delta decimal.Decimal) error {
	id, ok := st.inventoryName[name]
	if !ok {
		return store.ErrNotFound
	}
	it := st.inventory[id]
	next := it.Quantity.Add(delta)
	if delta.IsNegative() && next.IsNegative() {
		return store.ErrInsufficientStock
	}
	it.Quantity = next
	it.UpdatedAt = time.Now()
	st.inventory[id] = it
	return nil
}

// --- Menu ---

func (s *Store) ListMenuItems(ctx context.Context, activeOnly bool) ([]store.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listMenuItems(activeOnly)
}

func (t *txStore) ListMenuItems(ctx context.Context, activeOnly bool) ([]store.MenuItem, error) {
	return t.s.st.listMenuItems(activeOnly)
}

func (st *state) listMenuItems(activeOnly bool) ([]store.MenuItem, error) {
	items := make([]store.MenuItem, 0, len(st.menu))
	for _, m := range st.menu {
		if activeOnly && !m.Active {
			continue
		}
		items = append(items, m)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *Store) GetMenuItem(ctx context.Context, id uuid.UUID) (store.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getMenuItem(id)
}

func (t *txStore) GetMenuItem(ctx context.Context, id uuid.UUID) (store.MenuItem, error) {
	return t.s.st.getMenuItem(id)
}

func (st *state) getMenuItem(id uuid.UUID) (store.MenuItem, error) {
	m, ok := st.menu[id]
	if !ok {
		return store.MenuItem{}, store.ErrNotFound
	}
	return m, nil
}

func (s *Store) CreateMenuItem(ctx context.Context, item store.MenuItem) (store.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createMenuItem(item)
}

func (t *txStore) CreateMenuItem(ctx context.Context, item store.MenuItem) (store.MenuItem, error) {
	return t.s.st.createMenuItem(item)
}

func (st *state) createMenuItem(item store.MenuItem) (store.MenuItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Active = true
	st.menu[item.ID] = item
	return item, nil
}

func (s *Store) UpdateMenuItem(ctx context.Context, item store.MenuItem) (store.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateMenuItem(item)
}

func (t *txStore) UpdateMenuItem(ctx context.Context, item store.MenuItem) (store.MenuItem, error) {
	return t.s.st.updateMenuItem(item)
}

func (st *state) updateMenuItem(item store.MenuItem) (store.MenuItem, error) {
	prev, ok := st.menu[item.ID]
	if !ok {
		return store.MenuItem{}, store.ErrNotFound
	}
	item.CreatedAt = prev.CreatedAt
	item.UpdatedAt = time.Now()
	st.menu[item.ID] = item
	return item, nil
}

func (s *Store) SoftDeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.softDeleteMenuItem(id)
}

func (t *txStore) SoftDeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	return t.s.st.softDeleteMenuItem(id)
}

func (st *state) softDeleteMenuItem(id uuid.UUID) error {
	m, ok := st.menu[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Active = false
	m.UpdatedAt = time.Now()
	st.menu[id] = m
	return nil
}

// --- Orders ---

func (s *Store) NextOrderSequence(ctx context.Context, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.nextOrderSequence(day)
}

func (t *txStore) NextOrderSequence(ctx context.Context, day string) (int, error) {
	return t.s.st.nextOrderSequence(day)
}

func (st *state) nextOrderSequence(day string) (int, error) {
	st.orderSeq[day]++
	return st.orderSeq[day], nil
}

func (s *Store) CreateOrder(ctx context.Context, o store.Order) (store.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createOrder(o)
}

func (t *txStore) CreateOrder(ctx context.Context, o store.Order) (store.Order, error) {
	return t.s.st.createOrder(o)
}

func (st *state) createOrder(o store.Order) (store.Order, error) {
	if _, exists := st.orders[o.ID]; exists {
		return store.Order{}, store.ErrDuplicate
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	st.orders[o.ID] = o
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (store.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getOrder(id)
}

func (t *txStore) GetOrder(ctx context.Context, id string) (store.Order, error) {
	return t.s.st.getOrder(id)
}

func (st *state) getOrder(id string) (store.Order, error) {
	o, ok := st.orders[id]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, p store.ListOrdersParams) ([]store.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listOrders(p)
}

func (t *txStore) ListOrders(ctx context.Context, p store.ListOrdersParams) ([]store.Order, error) {
	return t.s.st.listOrders(p)
}

func (st *state) listOrders(p store.ListOrdersParams) ([]store.Order, error) {
	orders := make([]store.Order, 0, len(st.orders))
	for _, o := range st.orders {
		if !p.Start.IsZero() && o.CreatedAt.Before(p.Start) {
			continue
		}
		if !p.End.IsZero() && !o.CreatedAt.Before(p.End) {
			continue
		}
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if p.Offset > 0 {
		if p.Offset >= len(orders) {
			return []store.Order{}, nil
		}
		orders = orders[p.Offset:]
	}
	if p.Limit > 0 && len(orders) > p.Limit {
		orders = orders[:p.Limit]
	}
	return orders, nil
}

func (s *Store) UpdateOrder(ctx context.Context, o store.Order) (store.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateOrder(o)
}

func (t *txStore) UpdateOrder(ctx context.Context, o store.Order) (store.Order, error) {
	return t.s.st.updateOrder(o)
}

func (st *state) updateOrder(o store.Order) (store.Order, error) {
	prev, ok := st.orders[o.ID]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	o.CreatedAt = prev.CreatedAt
	o.CreatedBy = prev.CreatedBy
	o.UpdatedAt = time.Now()
	st.orders[o.ID] = o
	return o, nil
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deleteOrder(id)
}

func (t *txStore) DeleteOrder(ctx context.Context, id string) error {
	return t.s.st.deleteOrder(id)
}

func (st *state) deleteOrder(id string) error {
	if _, ok := st.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(st.orders, id)
	return nil
}

// --- Expenditures ---

func (s *Store) CreateExpenditure(ctx context.Context, e store.Expenditure) (store.Expenditure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createExpenditure(e)
}

func (t *txStore) CreateExpenditure(ctx context.Context, e store.Expenditure) (store.Expenditure, error) {
	return t.s.st.createExpenditure(e)
}

func (st *state) createExpenditure(e store.Expenditure) (store.Expenditure, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	st.expenditures[e.ID] = e
	return e, nil
}

func (s *Store) GetExpenditure(ctx context.Context, id uuid.UUID) (store.Expenditure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getExpenditure(id)
}

func (t *txStore) GetExpenditure(ctx context.Context, id uuid.UUID) (store.Expenditure, error) {
	return t.s.st.getExpenditure(id)
}

func (st *state) getExpenditure(id uuid.UUID) (store.Expenditure, error) {
	e, ok := st.expenditures[id]
	if !ok {
		return store.Expenditure{}, store.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListExpenditures(ctx context.Context) ([]store.Expenditure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listExpenditures()
}

func (t *txStore) ListExpenditures(ctx context.Context) ([]store.Expenditure, error) {
	return t.s.st.listExpenditures()
}

func (st *state) listExpenditures() ([]store.Expenditure, error) {
	out := make([]store.Expenditure, 0, len(st.expenditures))
	for _, e := range st.expenditures {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateExpenditure(ctx context.Context, e store.Expenditure) (store.Expenditure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateExpenditure(e)
}

func (t *txStore) UpdateExpenditure(ctx context.Context, e store.Expenditure) (store.Expenditure, error) {
	return t.s.st.updateExpenditure(e)
}

func (st *state) updateExpenditure(e store.Expenditure) (store.Expenditure, error) {
	prev, ok := st.expenditures[e.ID]
	if !ok {
		return store.Expenditure{}, store.ErrNotFound
	}
	e.CreatedAt = prev.CreatedAt
	e.CreatedBy = prev.CreatedBy
	e.UpdatedAt = time.Now()
	st.expenditures[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExpenditure(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deleteExpenditure(id)
}

func (t *txStore) DeleteExpenditure(ctx context.Context, id uuid.UUID) error {
	return t.s.st.deleteExpenditure(id)
}

func (st *state) deleteExpenditure(id uuid.UUID) error {
	if _, ok := st.expenditures[id]; !ok {
		return store.ErrNotFound
	}
	delete(st.expenditures, id)
	return nil
}

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, u store.User) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.createUser(u)
}

func (t *txStore) CreateUser(ctx context.Context, u store.User) (store.User, error) {
	return t.s.st.createUser(u)
}

func (st *state) createUser(u store.User) (store.User, error) {
	for _, existing := range st.users {
		if existing.Email == u.Email {
			return store.User{}, store.ErrDuplicate
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.IsActive = true
	u.CreatedAt = time.Now()
	st.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getUserByEmail(email)
}

func (t *txStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	return t.s.st.getUserByEmail(email)
}

func (st *state) getUserByEmail(email string) (store.User, error) {
	for _, u := range st.users {
		if u.Email == email {
			return u, nil
		}
	}
	return store.User{}, store.ErrNotFound
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getUserByID(id)
}

func (t *txStore) GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error) {
	return t.s.st.getUserByID(id)
}

func (st *state) getUserByID(id uuid.UUID) (store.User, error) {
	u, ok := st.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) ListUsersByRole(ctx context.Context, role string) ([]store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listUsersByRole(role)
}

func (t *txStore) ListUsersByRole(ctx context.Context, role string) ([]store.User, error) {
	return t.s.st.listUsersByRole(role)
}

func (st *state) listUsersByRole(role string) ([]store.User, error) {
	var out []store.User
	for _, u := range st.users {
		if u.Role == role && u.IsActive {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountUsersByRole(ctx context.Context, role string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.countUsersByRole(role)
}

func (t *txStore) CountUsersByRole(ctx context.Context, role string) (int, error) {
	return t.s.st.countUsersByRole(role)
}

func (st *state) countUsersByRole(role string) (int, error) {
	n := 0
	for _, u := range st.users {
		if u.Role == role && u.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateUserPinHash(ctx context.Context, id uuid.UUID, pinHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateUserPinHash(id, pinHash)
}

func (t *txStore) UpdateUserPinHash(ctx context.Context, id uuid.UUID, pinHash string) error {
	return t.s.st.updateUserPinHash(id, pinHash)
}

func (st *state) updateUserPinHash(id uuid.UUID, pinHash string) error {
	u, ok := st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PinHash = pinHash
	st.users[id] = u
	return nil
}

// --- Audit log ---

func (s *Store) AppendAuditEntry(ctx context.Context, e store.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.appendAuditEntry(e)
}

func (t *txStore) AppendAuditEntry(ctx context.Context, e store.AuditEntry) error {
	return t.s.st.appendAuditEntry(e)
}

func (st *state) appendAuditEntry(e store.AuditEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	st.audit = append(st.audit, e)
	return nil
}

func (s *Store) ListAuditEntries(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listAuditEntries(limit)
}

func (t *txStore) ListAuditEntries(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	return t.s.st.listAuditEntries(limit)
}

func (st *state) listAuditEntries(limit int) ([]store.AuditEntry, error) {
	out := make([]store.AuditEntry, len(st.audit))
	copy(out, st.audit)
	// Newest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
