// Package postgres is the production store.Store implementation on pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bellybox-pos/api/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the pgx-backed store.
type Store struct {
	pool *pgxpool.Pool // nil when this store is bound to a transaction
	db   querier
}

// New wraps a pgx pool as a store.Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

var _ store.Store = (*Store)(nil)

// RunInTx runs fn inside a single transaction. Nested calls reuse the
// already-open transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(store.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := fn(&Store{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Helpers ---

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrDuplicate
	}
	return err
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}

func marshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return b, nil
}

// --- Inventory ---

const inventoryCols = "id, name, quantity, unit, low_stock_threshold, created_at, updated_at"

func scanInventoryItem(row pgx.Row) (store.InventoryItem, error) {
	var it store.InventoryItem
	var qty, threshold pgtype.Numeric
	err := row.Scan(&it.ID, &it.Name, &qty, &it.Unit, &threshold, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return store.InventoryItem{}, mapErr(err)
	}
	it.Quantity = numericToDecimal(qty)
	it.LowStockThreshold = numericToDecimal(threshold)
	return it, nil
}

func (s *Store) ListInventory(ctx context.Context) ([]store.InventoryItem, error) {
	rows, err := s.db.Query(ctx, "SELECT "+inventoryCols+" FROM inventory_items ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []store.InventoryItem{}
	for rows.Next() {
		it, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) GetInventoryItem(ctx context.Context, id uuid.UUID) (store.InventoryItem, error) {
	return scanInventoryItem(s.db.QueryRow(ctx,
		"SELECT "+inventoryCols+" FROM inventory_items WHERE id = $1", id))
}

func (s *Store) GetInventoryItemByName(ctx context.Context, name string) (store.InventoryItem, error) {
	return scanInventoryItem(s.db.QueryRow(ctx,
		"SELECT "+inventoryCols+" FROM inventory_items WHERE name = $1", name))
}

func (s *Store) CreateInventoryItem(ctx context.Context, item store.InventoryItem) (store.InventoryItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return scanInventoryItem(s.db.QueryRow(ctx, `
		INSERT INTO inventory_items (id, name, quantity, unit, low_stock_threshold)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+inventoryCols,
		item.ID, item.Name, decimalToNumeric(item.Quantity), item.Unit,
		decimalToNumeric(item.LowStockThreshold)))
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item store.InventoryItem) (store.InventoryItem, error) {
	return scanInventoryItem(s.db.QueryRow(ctx, `
		UPDATE inventory_items
		SET name = $2, quantity = $3, unit = $4, low_stock_threshold = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+inventoryCols,
		item.ID, item.Name, decimalToNumeric(item.Quantity), item.Unit,
		decimalToNumeric(item.LowStockThreshold)))
}

func (s *Store) DeleteInventoryItem(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM inventory_items WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AdjustStock(ctx context.Context, name string, delta decimal.Decimal) error {
	// Decrements only apply when the stock can absorb them; additions
	// always apply (restoration must succeed even if a manual edit left
	// the quantity negative).
	tag, err := s.db.Exec(ctx, `
		UPDATE inventory_items
		SET quantity = quantity + $2, updated_at = now()
		WHERE name = $1 AND ($2::numeric >= 0 OR quantity + $2::numeric >= 0)`,
		name, decimalToNumeric(delta))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM inventory_items WHERE name = $1)", name).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrInsufficientStock
	}
	return nil
}

// --- Menu ---

const menuCols = "id, name, price, category, ingredients, image_url, is_active, created_at, updated_at"

func scanMenuItem(row pgx.Row) (store.MenuItem, error) {
	var m store.MenuItem
	var price pgtype.Numeric
	var ingredients []byte
	err := row.Scan(&m.ID, &m.Name, &price, &m.Category, &ingredients, &m.ImageURL,
		&m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return store.MenuItem{}, mapErr(err)
	}
	m.Price = numericToDecimal(price)
	if err := json.Unmarshal(ingredients, &m.Ingredients); err != nil {
		return store.MenuItem{}, fmt.Errorf("unmarshal ingredients: %w", err)
	}
	return m, nil
}

func (s *Store) ListMenuItems(ctx context.Context, activeOnly bool) ([]store.MenuItem, error) {
	q := "SELECT " + menuCols + " FROM menu_items"
	if activeOnly {
		q += " WHERE is_active"
	}
	q += " ORDER BY name"

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []store.MenuItem{}
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (s *Store) GetMenuItem(ctx context.Context, id uuid.UUID) (store.MenuItem, error) {
	return scanMenuItem(s.db.QueryRow(ctx,
		"SELECT "+menuCols+" FROM menu_items WHERE id = $1", id))
}

func (s *Store) CreateMenuItem(ctx context.Context, item store.MenuItem) (store.MenuItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.Ingredients == nil {
		item.Ingredients = []store.Ingredient{}
	}
	ingredients, err := marshalJSON(item.Ingredients)
	if err != nil {
		return store.MenuItem{}, err
	}
	return scanMenuItem(s.db.QueryRow(ctx, `
		INSERT INTO menu_items (id, name, price, category, ingredients, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+menuCols,
		item.ID, item.Name, decimalToNumeric(item.Price), item.Category, ingredients, item.ImageURL))
}

func (s *Store) UpdateMenuItem(ctx context.Context, item store.MenuItem) (store.MenuItem, error) {
	if item.Ingredients == nil {
		item.Ingredients = []store.Ingredient{}
	}
	ingredients, err := marshalJSON(item.Ingredients)
	if err != nil {
		return store.MenuItem{}, err
	}
	return scanMenuItem(s.db.QueryRow(ctx, `
		UPDATE menu_items
		SET name = $2, price = $3, category = $4, ingredients = $5, image_url = $6,
		    is_active = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+menuCols,
		item.ID, item.Name, decimalToNumeric(item.Price), item.Category, ingredients,
		item.ImageURL, item.Active))
}

func (s *Store) SoftDeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE menu_items SET is_active = FALSE, updated_at = now() WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Orders ---

const orderCols = "id, items, total_amount, payment_status, payment_method, is_locked, locked_by, locked_at, created_by, created_at, updated_at"

func scanOrder(row pgx.Row) (store.Order, error) {
	var o store.Order
	var items []byte
	var total pgtype.Numeric
	var lockedAt pgtype.Timestamptz
	err := row.Scan(&o.ID, &items, &total, &o.PaymentStatus, &o.PaymentMethod,
		&o.IsLocked, &o.LockedBy, &lockedAt, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return store.Order{}, mapErr(err)
	}
	o.TotalAmount = numericToDecimal(total)
	if lockedAt.Valid {
		t := lockedAt.Time
		o.LockedAt = &t
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return store.Order{}, fmt.Errorf("unmarshal order items: %w", err)
	}
	return o, nil
}

func lockedAtParam(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func (s *Store) NextOrderSequence(ctx context.Context, day string) (int, error) {
	var seq int
	err := s.db.QueryRow(ctx, `
		INSERT INTO order_counters (day, seq) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET seq = order_counters.seq + 1
		RETURNING seq`, day).Scan(&seq)
	return seq, err
}

func (s *Store) CreateOrder(ctx context.Context, o store.Order) (store.Order, error) {
	items, err := marshalJSON(o.Items)
	if err != nil {
		return store.Order{}, err
	}
	return scanOrder(s.db.QueryRow(ctx, `
		INSERT INTO orders (id, items, total_amount, payment_status, payment_method, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+orderCols,
		o.ID, items, decimalToNumeric(o.TotalAmount), o.PaymentStatus, o.PaymentMethod, o.CreatedBy))
}

func (s *Store) GetOrder(ctx context.Context, id string) (store.Order, error) {
	return scanOrder(s.db.QueryRow(ctx,
		"SELECT "+orderCols+" FROM orders WHERE id = $1", id))
}

func (s *Store) ListOrders(ctx context.Context, p store.ListOrdersParams) ([]store.Order, error) {
	q := "SELECT " + orderCols + " FROM orders WHERE TRUE"
	args := []any{}
	if !p.Start.IsZero() {
		args = append(args, p.Start)
		q += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !p.End.IsZero() {
		args = append(args, p.End)
		q += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	q += " ORDER BY created_at DESC, id DESC"
	if p.Limit > 0 {
		args = append(args, p.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if p.Offset > 0 {
		args = append(args, p.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []store.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *Store) UpdateOrder(ctx context.Context, o store.Order) (store.Order, error) {
	items, err := marshalJSON(o.Items)
	if err != nil {
		return store.Order{}, err
	}
	return scanOrder(s.db.QueryRow(ctx, `
		UPDATE orders
		SET items = $2, total_amount = $3, payment_status = $4, payment_method = $5,
		    is_locked = $6, locked_by = $7, locked_at = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+orderCols,
		o.ID, items, decimalToNumeric(o.TotalAmount), o.PaymentStatus, o.PaymentMethod,
		o.IsLocked, o.LockedBy, lockedAtParam(o.LockedAt)))
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Expenditures ---

const expenditureCols = "id, description, amount, category, supplier, payment_status, is_locked, locked_by, locked_at, created_by, created_at, updated_at"

func scanExpenditure(row pgx.Row) (store.Expenditure, error) {
	var e store.Expenditure
	var amount pgtype.Numeric
	var lockedAt pgtype.Timestamptz
	err := row.Scan(&e.ID, &e.Description, &amount, &e.Category, &e.Supplier,
		&e.PaymentStatus, &e.IsLocked, &e.LockedBy, &lockedAt, &e.CreatedBy,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return store.Expenditure{}, mapErr(err)
	}
	e.Amount = numericToDecimal(amount)
	if lockedAt.Valid {
		t := lockedAt.Time
		e.LockedAt = &t
	}
	return e, nil
}

func (s *Store) CreateExpenditure(ctx context.Context, e store.Expenditure) (store.Expenditure, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return scanExpenditure(s.db.QueryRow(ctx, `
		INSERT INTO expenditures (id, description, amount, category, supplier, payment_status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+expenditureCols,
		e.ID, e.Description, decimalToNumeric(e.Amount), e.Category, e.Supplier,
		e.PaymentStatus, e.CreatedBy))
}

func (s *Store) GetExpenditure(ctx context.Context, id uuid.UUID) (store.Expenditure, error) {
	return scanExpenditure(s.db.QueryRow(ctx,
		"SELECT "+expenditureCols+" FROM expenditures WHERE id = $1", id))
}

func (s *Store) ListExpenditures(ctx context.Context) ([]store.Expenditure, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+expenditureCols+" FROM expenditures ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.Expenditure{}
	for rows.Next() {
		e, err := scanExpenditure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) UpdateExpenditure(ctx context.Context, e store.Expenditure) (store.Expenditure, error) {
	return scanExpenditure(s.db.QueryRow(ctx, `
		UPDATE expenditures
		SET description = $2, amount = $3, category = $4, supplier = $5,
		    payment_status = $6, is_locked = $7, locked_by = $8, locked_at = $9,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+expenditureCols,
		e.ID, e.Description, decimalToNumeric(e.Amount), e.Category, e.Supplier,
		e.PaymentStatus, e.IsLocked, e.LockedBy, lockedAtParam(e.LockedAt)))
}

func (s *Store) DeleteExpenditure(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM expenditures WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Users ---

const userCols = "id, name, email, hashed_password, role, pin_hash, is_active, created_at"

func scanUser(row pgx.Row) (store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.HashedPassword, &u.Role,
		&u.PinHash, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return store.User{}, mapErr(err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u store.User) (store.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return scanUser(s.db.QueryRow(ctx, `
		INSERT INTO users (id, name, email, hashed_password, role, pin_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userCols,
		u.ID, u.Name, u.Email, u.HashedPassword, u.Role, u.PinHash))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	return scanUser(s.db.QueryRow(ctx,
		"SELECT "+userCols+" FROM users WHERE email = $1 AND is_active", email))
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error) {
	return scanUser(s.db.QueryRow(ctx,
		"SELECT "+userCols+" FROM users WHERE id = $1 AND is_active", id))
}

func (s *Store) ListUsersByRole(ctx context.Context, role string) ([]store.User, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+userCols+" FROM users WHERE role = $1 AND is_active ORDER BY created_at", role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CountUsersByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM users WHERE role = $1 AND is_active", role).Scan(&n)
	return n, err
}

func (s *Store) UpdateUserPinHash(ctx context.Context, id uuid.UUID, pinHash string) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE users SET pin_hash = $2 WHERE id = $1 AND is_active", id, pinHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Audit log ---

func (s *Store) AppendAuditEntry(ctx context.Context, e store.AuditEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_log (id, actor_id, actor_role, action, outcome, detail, remote_addr)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ActorID, e.ActorRole, e.Action, e.Outcome, e.Detail, e.RemoteAddr)
	return err
}

func (s *Store) ListAuditEntries(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	q := "SELECT id, actor_id, actor_role, action, outcome, detail, remote_addr, created_at FROM audit_log ORDER BY created_at DESC"
	args := []any{}
	if limit > 0 {
		args = append(args, limit)
		q += " LIMIT $1"
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.AuditEntry{}
	for rows.Next() {
		var e store.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorRole, &e.Action, &e.Outcome,
			&e.Detail, &e.RemoteAddr, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
