package enum

// ── State machines (CHECK constrained in DB) ──

const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

const (
	UserRoleOwner = "OWNER"
	UserRoleStaff = "STAFF"
)

// ── Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash       = "cash"
	PaymentMethodOnline     = "online"
	PaymentMethodCashOnline = "cash+online"
)

// Realtime event names pushed through the WebSocket hub.
const (
	EventNewOrder           = "new_order"
	EventOrderUpdated       = "order_updated"
	EventSalesUpdated       = "sales_updated"
	EventInventoryUpdated   = "inventory_updated"
	EventMenuUpdated        = "menu_updated"
	EventExpenditureUpdated = "expenditure_updated"
)

// Audit log outcomes and actions.
const (
	AuditOutcomeAllowed = "ALLOWED"
	AuditOutcomeDenied  = "DENIED"
)

const (
	AuditActionPinVerify = "PIN_VERIFY"
	AuditActionPinChange = "PIN_CHANGE"
)
