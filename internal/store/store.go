// Package store defines the persistence contract for the POS core.
// Two implementations exist: memstore (mutex-guarded maps, used by unit
// tests and the dev driver) and postgres (pgx, used in production).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Errors returned by store implementations. Services translate these into
// their own sentinel errors where the distinction matters.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InventoryItem is a named stock quantity. Name is the match key recipes
// reference by value; it is unique and case-sensitive.
type InventoryItem struct {
	ID                uuid.UUID
	Name              string
	Quantity          decimal.Decimal
	Unit              string
	LowStockThreshold decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Ingredient is one recipe line: the inventory name it draws from and the
// quantity consumed per serving.
type Ingredient struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
}

// MenuItem is a sellable product with its recipe. Soft-deleted via Active
// so past orders keep resolving their recipes.
type MenuItem struct {
	ID          uuid.UUID
	Name        string
	Price       decimal.Decimal
	Category    string
	Ingredients []Ingredient
	ImageURL    string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Extra is a client-priced add-on attached to an order line.
type Extra struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int32           `json:"quantity"`
}

// OrderItem is one line of an order. Name and Price are snapshots taken at
// order time so menu edits don't rewrite history.
type OrderItem struct {
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int32           `json:"quantity"`
	Extras     []Extra         `json:"extras,omitempty"`
}

// Order is keyed by its human-readable daily code ("BB" + DDMM + sequence).
type Order struct {
	ID            string
	Items         []OrderItem
	TotalAmount   decimal.Decimal
	PaymentStatus string
	PaymentMethod string
	IsLocked      bool
	LockedBy      string
	LockedAt      *time.Time
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Expenditure mirrors Order's lock and payment semantics but has no
// inventory side effects.
type Expenditure struct {
	ID            uuid.UUID
	Description   string
	Amount        decimal.Decimal
	Category      string
	Supplier      string
	PaymentStatus string
	IsLocked      bool
	LockedBy      string
	LockedAt      *time.Time
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// User is an account. Owners carry a bcrypt PIN hash; staff have none.
type User struct {
	ID             uuid.UUID
	Name           string
	Email          string
	HashedPassword string
	Role           string
	PinHash        string
	IsActive       bool
	CreatedAt      time.Time
}

// AuditEntry is one append-only record of a PIN-gated attempt.
type AuditEntry struct {
	ID         uuid.UUID
	ActorID    uuid.UUID
	ActorRole  string
	Action     string
	Outcome    string
	Detail     string
	RemoteAddr string
	CreatedAt  time.Time
}

// ListOrdersParams filters and pages order listings. Zero times mean
// unbounded; Limit <= 0 means no limit.
type ListOrdersParams struct {
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int
}

// Store is the persistence contract consumed by the service layer.
type Store interface {
	// RunInTx executes fn atomically. The Store handed to fn operates
	// inside the transaction; returning an error rolls everything back.
	RunInTx(ctx context.Context, fn func(Store) error) error

	// Inventory ledger.
	ListInventory(ctx context.Context) ([]InventoryItem, error)
	GetInventoryItem(ctx context.Context, id uuid.UUID) (InventoryItem, error)
	GetInventoryItemByName(ctx context.Context, name string) (InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item InventoryItem) (InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, item InventoryItem) (InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, id uuid.UUID) error
	// AdjustStock applies a signed delta to the named item. Negative deltas
	// are conditional: ErrInsufficientStock is returned (and nothing
	// changes) when the current quantity cannot absorb the decrement.
	// Positive deltas always apply. Missing name returns ErrNotFound.
	AdjustStock(ctx context.Context, name string, delta decimal.Decimal) error

	// Menu catalog.
	ListMenuItems(ctx context.Context, activeOnly bool) ([]MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error)
	CreateMenuItem(ctx context.Context, item MenuItem) (MenuItem, error)
	UpdateMenuItem(ctx context.Context, item MenuItem) (MenuItem, error)
	SoftDeleteMenuItem(ctx context.Context, id uuid.UUID) error

	// Orders. NextOrderSequence atomically increments the per-day counter
	// (day formatted as "2006-01-02") and returns the new value, starting
	// at 1.
	NextOrderSequence(ctx context.Context, day string) (int, error)
	CreateOrder(ctx context.Context, o Order) (Order, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, p ListOrdersParams) ([]Order, error)
	UpdateOrder(ctx context.Context, o Order) (Order, error)
	DeleteOrder(ctx context.Context, id string) error

	// Expenditures.
	CreateExpenditure(ctx context.Context, e Expenditure) (Expenditure, error)
	GetExpenditure(ctx context.Context, id uuid.UUID) (Expenditure, error)
	ListExpenditures(ctx context.Context) ([]Expenditure, error)
	UpdateExpenditure(ctx context.Context, e Expenditure) (Expenditure, error)
	DeleteExpenditure(ctx context.Context, id uuid.UUID) error

	// Users.
	CreateUser(ctx context.Context, u User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	ListUsersByRole(ctx context.Context, role string) ([]User, error)
	CountUsersByRole(ctx context.Context, role string) (int, error)
	UpdateUserPinHash(ctx context.Context, id uuid.UUID, pinHash string) error

	// Audit log.
	AppendAuditEntry(ctx context.Context, e AuditEntry) error
	ListAuditEntries(ctx context.Context, limit int) ([]AuditEntry, error)
}
