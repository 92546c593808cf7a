// Package store holds the workflow engine's persistent state: tables,
// sessions, orders, invoices, the menu catalog, users, and the billing
// settings singleton. Two drivers implement Store: Postgres (pgx) and
// an in-memory store used by tests and database-less dev runs.
//
// Mutations with invariant-bearing preconditions (open a table, advance
// an item, create an invoice) are atomic at the store boundary: the
// precondition check and the write happen inside one transaction or one
// critical section, and a failed precondition surfaces as a sentinel
// error rather than a partial write.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel errors. Handlers map these onto the HTTP error taxonomy.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateTable  = errors.New("table number already exists")
	ErrTableOccupied   = errors.New("table is already occupied")
	ErrNoActiveSession = errors.New("no active session for this table")
	ErrSessionClosed   = errors.New("session is closed")
	ErrStatusChanged   = errors.New("item status changed, please retry")
	ErrItemNotWaiting  = errors.New("item preparation has already started")
	ErrInvoiceExists   = errors.New("an unpaid invoice already exists for this session")
	ErrInvoicePaid     = errors.New("invoice is already paid")
	ErrDuplicateEmail  = errors.New("email already exists")
	ErrDuplicateName   = errors.New("name already exists")
)

// --- Entities ---

type Table struct {
	ID     uuid.UUID
	Number int32
	Status string
}

type Session struct {
	ID              uuid.UUID
	TableID         uuid.UUID
	Status          string
	StartedAt       time.Time
	BillRequestedAt *time.Time
	EndedAt         *time.Time
}

// ActiveSession is a session joined with its table number, for
// staff-facing pickers.
type ActiveSession struct {
	Session
	TableNumber int32
}

type Order struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	CreatedBy uuid.UUID
	CreatedAt time.Time
}

// OrderItem carries the price and name snapshot taken when the item was
// added; later catalog changes never touch these fields.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	MenuItemID  uuid.UUID
	Name        string
	Quantity    int32
	UnitPrice   decimal.Decimal
	Note        string
	Status      string
	Destination string
	CreatedAt   time.Time
}

type Invoice struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	ServiceCharge decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	Status        string
	Waiters       []string
	CreatedAt     time.Time
	PaidAt        *time.Time
}

// InvoiceItem is one immutable snapshot line on an invoice.
type InvoiceItem struct {
	ID        uuid.UUID
	InvoiceID uuid.UUID
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// PendingBill summarizes a bill_requested session for the cashier queue.
type PendingBill struct {
	SessionID       uuid.UUID
	TableNumber     int32
	BillRequestedAt *time.Time
	InvoiceID       *uuid.UUID
}

// Settings is the singleton billing-rate record. Rates are percentages.
type Settings struct {
	TaxRate           decimal.Decimal
	ServiceChargeRate decimal.Decimal
	DiscountRate      decimal.Decimal
	UpdatedAt         time.Time
}

type Category struct {
	ID   uuid.UUID
	Name string
}

type MenuItem struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	Type        string
	Available   bool
}

type User struct {
	ID             uuid.UUID
	Email          string
	FullName       string
	Role           string
	HashedPassword string
	CreatedAt      time.Time
}

// --- Params ---

type CreateOrderItemParams struct {
	OrderID     uuid.UUID
	MenuItemID  uuid.UUID
	Name        string
	Quantity    int32
	UnitPrice   decimal.Decimal
	Note        string
	Destination string
}

type InvoiceItemParams struct {
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type CreateInvoiceParams struct {
	SessionID     uuid.UUID
	Items         []InvoiceItemParams
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	ServiceCharge decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	Waiters       []string
}

type UpdateSettingsParams struct {
	TaxRate           *decimal.Decimal
	ServiceChargeRate *decimal.Decimal
	DiscountRate      *decimal.Decimal
}

type CreateMenuItemParams struct {
	CategoryID  uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	Type        string
	Available   bool
}

type UpdateMenuItemParams struct {
	ID        uuid.UUID
	Price     *decimal.Decimal
	Available *bool
}

type CreateUserParams struct {
	Email          string
	FullName       string
	Role           string
	HashedPassword string
}

// OrderItemFilter narrows ListOrderItems. Zero values mean "any".
type OrderItemFilter struct {
	Status      string
	Destination string
	SessionID   uuid.UUID
}

// Store is the full persistence surface. Handlers and services declare
// narrower interfaces at their use sites; both drivers satisfy this one.
type Store interface {
	CreateTable(ctx context.Context, number int32) (Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (Table, error)
	ListTables(ctx context.Context) ([]Table, error)

	// OpenSession atomically checks the table is available, creates an
	// open session, and flips the table to occupied. Exactly one of two
	// concurrent calls for the same table succeeds.
	OpenSession(ctx context.Context, tableID uuid.UUID) (Session, error)
	// CloseSession closes the table's active session and releases the
	// table, atomically.
	CloseSession(ctx context.Context, tableID uuid.UUID) (Session, error)
	// MarkBillRequested moves an open session to bill_requested and
	// stamps the time. Calling it again while still bill_requested is a
	// no-op returning the current session.
	MarkBillRequested(ctx context.Context, sessionID uuid.UUID) (Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (Session, error)
	GetActiveSessionByTable(ctx context.Context, tableID uuid.UUID) (Session, error)
	ListActiveSessions(ctx context.Context) ([]ActiveSession, error)

	// CreateOrder requires the session to be open or bill_requested.
	CreateOrder(ctx context.Context, sessionID, createdBy uuid.UUID) (Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)

	CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error)
	GetOrderItem(ctx context.Context, id uuid.UUID) (OrderItem, error)
	ListOrderItems(ctx context.Context, f OrderItemFilter) ([]OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error)
	// AdvanceOrderItemStatus performs a compare-and-set: the write only
	// applies while the stored status still equals from. A lost race
	// returns ErrStatusChanged, never a blind overwrite.
	AdvanceOrderItemStatus(ctx context.Context, id uuid.UUID, from, to string) (OrderItem, error)
	// DeleteOrderItem only removes items still waiting.
	DeleteOrderItem(ctx context.Context, id uuid.UUID) error

	ListSessionItems(ctx context.Context, sessionID uuid.UUID) ([]OrderItem, error)
	ListSessionWaiters(ctx context.Context, sessionID uuid.UUID) ([]string, error)

	// CreateInvoice is single-flight per session: while an unpaid
	// invoice exists, concurrent and repeated calls fail ErrInvoiceExists.
	CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, []InvoiceItem, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, []InvoiceItem, error)
	MarkInvoicePaid(ctx context.Context, id uuid.UUID) (Invoice, error)
	// GetUnpaidInvoiceBySession returns ErrNotFound when the session
	// has no open invoice.
	GetUnpaidInvoiceBySession(ctx context.Context, sessionID uuid.UUID) (Invoice, error)
	ListPendingBills(ctx context.Context) ([]PendingBill, error)

	GetSettings(ctx context.Context) (Settings, error)
	UpdateSettings(ctx context.Context, arg UpdateSettingsParams) (Settings, error)

	CreateCategory(ctx context.Context, name string) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error)
	ListMenuItems(ctx context.Context) ([]MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error)

	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}
