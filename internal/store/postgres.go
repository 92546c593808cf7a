package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mtsdb/restaurant-system/internal/enum"
)

// Postgres implements Store on a pgx pool. Precondition-bearing
// mutations use conditional UPDATE/INSERT statements so the check and
// the write hit the row in one statement; a zero-row result is then
// disambiguated with a follow-up read.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const sessionCols = `id, table_id, status, started_at, bill_requested_at, ended_at`
const orderItemCols = `id, order_id, menu_item_id, name, quantity, unit_price::text, note, status, destination, created_at`
const invoiceCols = `id, session_id, subtotal::text, discount::text, service_charge::text, tax::text, total::text, status, waiters, created_at, paid_at`

// --- Tables ---

func (p *Postgres) CreateTable(ctx context.Context, number int32) (Table, error) {
	t := Table{ID: uuid.New(), Number: number, Status: enum.TableStatusAvailable}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO tables (id, number, status) VALUES ($1, $2, $3)`,
		t.ID, t.Number, t.Status)
	if err != nil {
		if isUniqueViolation(err, "tables_number_key") {
			return Table{}, ErrDuplicateTable
		}
		return Table{}, fmt.Errorf("create table: %w", err)
	}
	return t, nil
}

func (p *Postgres) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	var t Table
	err := p.pool.QueryRow(ctx,
		`SELECT id, number, status FROM tables WHERE id = $1`, id).
		Scan(&t.ID, &t.Number, &t.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Table{}, ErrNotFound
		}
		return Table{}, fmt.Errorf("get table: %w", err)
	}
	return t, nil
}

func (p *Postgres) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, number, status FROM tables ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.Number, &t.Status); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Sessions ---

func (p *Postgres) OpenSession(ctx context.Context, tableID uuid.UUID) (Session, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Occupancy check and flip in one statement: the loser of a race
	// matches zero rows here.
	tag, err := tx.Exec(ctx,
		`UPDATE tables SET status = $1 WHERE id = $2 AND status = $3`,
		enum.TableStatusOccupied, tableID, enum.TableStatusAvailable)
	if err != nil {
		return Session{}, fmt.Errorf("occupy table: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM tables WHERE id = $1)`, tableID).Scan(&exists); err != nil {
			return Session{}, fmt.Errorf("check table: %w", err)
		}
		if !exists {
			return Session{}, ErrNotFound
		}
		return Session{}, ErrTableOccupied
	}

	var s Session
	err = tx.QueryRow(ctx,
		`INSERT INTO sessions (id, table_id, status) VALUES ($1, $2, $3)
		 RETURNING `+sessionCols,
		uuid.New(), tableID, enum.SessionStatusOpen).
		Scan(&s.ID, &s.TableID, &s.Status, &s.StartedAt, &s.BillRequestedAt, &s.EndedAt)
	if err != nil {
		if isUniqueViolation(err, "sessions_one_active_per_table") {
			return Session{}, ErrTableOccupied
		}
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, fmt.Errorf("commit tx: %w", err)
	}
	return s, nil
}

func (p *Postgres) CloseSession(ctx context.Context, tableID uuid.UUID) (Session, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var s Session
	err = tx.QueryRow(ctx,
		`UPDATE sessions SET status = $1, ended_at = now()
		 WHERE table_id = $2 AND status IN ($3, $4)
		 RETURNING `+sessionCols,
		enum.SessionStatusClosed, tableID,
		enum.SessionStatusOpen, enum.SessionStatusBillRequested).
		Scan(&s.ID, &s.TableID, &s.Status, &s.StartedAt, &s.BillRequestedAt, &s.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM tables WHERE id = $1)`, tableID).Scan(&exists); err != nil {
				return Session{}, fmt.Errorf("check table: %w", err)
			}
			if !exists {
				return Session{}, ErrNotFound
			}
			return Session{}, ErrNoActiveSession
		}
		return Session{}, fmt.Errorf("close session: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE tables SET status = $1 WHERE id = $2`,
		enum.TableStatusAvailable, tableID); err != nil {
		return Session{}, fmt.Errorf("release table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, fmt.Errorf("commit tx: %w", err)
	}
	return s, nil
}

func (p *Postgres) MarkBillRequested(ctx context.Context, sessionID uuid.UUID) (Session, error) {
	var s Session
	err := p.pool.QueryRow(ctx,
		`UPDATE sessions SET status = $1, bill_requested_at = now()
		 WHERE id = $2 AND status = $3
		 RETURNING `+sessionCols,
		enum.SessionStatusBillRequested, sessionID, enum.SessionStatusOpen).
		Scan(&s.ID, &s.TableID, &s.Status, &s.StartedAt, &s.BillRequestedAt, &s.EndedAt)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Session{}, fmt.Errorf("request bill: %w", err)
	}

	// Zero rows: the session is missing, already bill_requested
	// (idempotent no-op), or closed.
	s, getErr := p.GetSession(ctx, sessionID)
	if getErr != nil {
		return Session{}, getErr
	}
	if s.Status == enum.SessionStatusBillRequested {
		return s, nil
	}
	return Session{}, ErrSessionClosed
}

func (p *Postgres) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	var s Session
	err := p.pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id).
		Scan(&s.ID, &s.TableID, &s.Status, &s.StartedAt, &s.BillRequestedAt, &s.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (p *Postgres) GetActiveSessionByTable(ctx context.Context, tableID uuid.UUID) (Session, error) {
	var s Session
	err := p.pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM sessions
		 WHERE table_id = $1 AND status IN ($2, $3)`,
		tableID, enum.SessionStatusOpen, enum.SessionStatusBillRequested).
		Scan(&s.ID, &s.TableID, &s.Status, &s.StartedAt, &s.BillRequestedAt, &s.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get active session: %w", err)
	}
	return s, nil
}

func (p *Postgres) ListActiveSessions(ctx context.Context) ([]ActiveSession, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT s.id, s.table_id, s.status, s.started_at, s.bill_requested_at, s.ended_at, t.number
		 FROM sessions s
		 JOIN tables t ON t.id = s.table_id
		 WHERE s.status IN ($1, $2)
		 ORDER BY t.number`,
		enum.SessionStatusOpen, enum.SessionStatusBillRequested)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var out []ActiveSession
	for rows.Next() {
		var a ActiveSession
		if err := rows.Scan(&a.ID, &a.TableID, &a.Status, &a.StartedAt,
			&a.BillRequestedAt, &a.EndedAt, &a.TableNumber); err != nil {
			return nil, fmt.Errorf("scan active session: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Orders ---

func (p *Postgres) CreateOrder(ctx context.Context, sessionID, createdBy uuid.UUID) (Order, error) {
	var o Order
	err := p.pool.QueryRow(ctx,
		`INSERT INTO orders (id, session_id, created_by)
		 SELECT $1, $2, $3
		 WHERE EXISTS (SELECT 1 FROM sessions WHERE id = $2 AND status IN ($4, $5))
		 RETURNING id, session_id, created_by, created_at`,
		uuid.New(), sessionID, createdBy,
		enum.SessionStatusOpen, enum.SessionStatusBillRequested).
		Scan(&o.ID, &o.SessionID, &o.CreatedBy, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := p.GetSession(ctx, sessionID); getErr != nil {
				return Order{}, getErr
			}
			return Order{}, ErrSessionClosed
		}
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

func (p *Postgres) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	var o Order
	err := p.pool.QueryRow(ctx,
		`SELECT id, session_id, created_by, created_at FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.SessionID, &o.CreatedBy, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// --- Order items ---

func (p *Postgres) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := p.pool.QueryRow(ctx,
		`INSERT INTO order_items (id, order_id, menu_item_id, name, quantity, unit_price, note, status, destination)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
		 RETURNING `+orderItemCols,
		uuid.New(), arg.OrderID, arg.MenuItemID, arg.Name, arg.Quantity,
		arg.UnitPrice.String(), arg.Note, enum.ItemStatusWaiting, arg.Destination)
	it, err := scanOrderItem(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return OrderItem{}, ErrNotFound
		}
		return OrderItem{}, fmt.Errorf("create order item: %w", err)
	}
	return it, nil
}

func (p *Postgres) GetOrderItem(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+orderItemCols+` FROM order_items WHERE id = $1`, id)
	it, err := scanOrderItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderItem{}, ErrNotFound
		}
		return OrderItem{}, fmt.Errorf("get order item: %w", err)
	}
	return it, nil
}

func (p *Postgres) ListOrderItems(ctx context.Context, f OrderItemFilter) ([]OrderItem, error) {
	// Empty filter values match everything.
	rows, err := p.pool.Query(ctx,
		`SELECT i.id, i.order_id, i.menu_item_id, i.name, i.quantity, i.unit_price::text,
		        i.note, i.status, i.destination, i.created_at
		 FROM order_items i
		 JOIN orders o ON o.id = i.order_id
		 WHERE ($1 = '' OR i.status = $1)
		   AND ($2 = '' OR i.destination = $2)
		   AND ($3::uuid IS NULL OR o.session_id = $3)
		 ORDER BY i.created_at`,
		f.Status, f.Destination, nilIfZero(f.SessionID))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	return collectOrderItems(rows)
}

func (p *Postgres) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+orderItemCols+` FROM order_items WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items by order: %w", err)
	}
	defer rows.Close()
	return collectOrderItems(rows)
}

func (p *Postgres) AdvanceOrderItemStatus(ctx context.Context, id uuid.UUID, from, to string) (OrderItem, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE order_items SET status = $1 WHERE id = $2 AND status = $3
		 RETURNING `+orderItemCols,
		to, id, from)
	it, err := scanOrderItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the item is gone or a concurrent advance won.
			if _, getErr := p.GetOrderItem(ctx, id); getErr != nil {
				return OrderItem{}, getErr
			}
			return OrderItem{}, ErrStatusChanged
		}
		return OrderItem{}, fmt.Errorf("advance order item: %w", err)
	}
	return it, nil
}

func (p *Postgres) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM order_items WHERE id = $1 AND status = $2`,
		id, enum.ItemStatusWaiting)
	if err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := p.GetOrderItem(ctx, id); getErr != nil {
			return getErr
		}
		return ErrItemNotWaiting
	}
	return nil
}

func (p *Postgres) ListSessionItems(ctx context.Context, sessionID uuid.UUID) ([]OrderItem, error) {
	if _, err := p.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx,
		`SELECT i.id, i.order_id, i.menu_item_id, i.name, i.quantity, i.unit_price::text,
		        i.note, i.status, i.destination, i.created_at
		 FROM order_items i
		 JOIN orders o ON o.id = i.order_id
		 WHERE o.session_id = $1
		 ORDER BY i.created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session items: %w", err)
	}
	defer rows.Close()
	return collectOrderItems(rows)
}

func (p *Postgres) ListSessionWaiters(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT u.full_name
		 FROM orders o
		 JOIN users u ON u.id = o.created_by
		 WHERE o.session_id = $1
		 ORDER BY u.full_name`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session waiters: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan waiter: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// --- Invoices ---

func (p *Postgres) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, []InvoiceItem, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Invoice{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var inv Invoice
	row := tx.QueryRow(ctx,
		`INSERT INTO invoices (id, session_id, subtotal, discount, service_charge, tax, total, status, waiters)
		 VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8, $9)
		 RETURNING `+invoiceCols,
		uuid.New(), arg.SessionID,
		arg.Subtotal.String(), arg.Discount.String(), arg.ServiceCharge.String(),
		arg.Tax.String(), arg.Total.String(),
		enum.InvoiceStatusUnpaid, arg.Waiters)
	inv, err = scanInvoice(row)
	if err != nil {
		// The partial unique index on (session_id) WHERE unpaid makes
		// concurrent creation lose here, not produce a duplicate.
		if isUniqueViolation(err, "invoices_one_unpaid_per_session") {
			return Invoice{}, nil, ErrInvoiceExists
		}
		if isForeignKeyViolation(err) {
			return Invoice{}, nil, ErrNotFound
		}
		return Invoice{}, nil, fmt.Errorf("create invoice: %w", err)
	}

	items := make([]InvoiceItem, len(arg.Items))
	for i, it := range arg.Items {
		items[i] = InvoiceItem{
			ID:        uuid.New(),
			InvoiceID: inv.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO invoice_items (id, invoice_id, name, quantity, unit_price, line_total)
			 VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)`,
			items[i].ID, inv.ID, it.Name, it.Quantity,
			it.UnitPrice.String(), it.LineTotal.String()); err != nil {
			return Invoice{}, nil, fmt.Errorf("create invoice item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, nil, fmt.Errorf("commit tx: %w", err)
	}
	return inv, items, nil
}

func (p *Postgres) GetInvoice(ctx context.Context, id uuid.UUID) (Invoice, []InvoiceItem, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, nil, ErrNotFound
		}
		return Invoice{}, nil, fmt.Errorf("get invoice: %w", err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, invoice_id, name, quantity, unit_price::text, line_total::text
		 FROM invoice_items WHERE invoice_id = $1 ORDER BY name`, id)
	if err != nil {
		return Invoice{}, nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		var unitPrice, lineTotal string
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Name, &it.Quantity, &unitPrice, &lineTotal); err != nil {
			return Invoice{}, nil, fmt.Errorf("scan invoice item: %w", err)
		}
		if it.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return Invoice{}, nil, fmt.Errorf("parse unit price: %w", err)
		}
		if it.LineTotal, err = decimal.NewFromString(lineTotal); err != nil {
			return Invoice{}, nil, fmt.Errorf("parse line total: %w", err)
		}
		items = append(items, it)
	}
	return inv, items, rows.Err()
}

func (p *Postgres) MarkInvoicePaid(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE invoices SET status = $1, paid_at = now()
		 WHERE id = $2 AND status = $3
		 RETURNING `+invoiceCols,
		enum.InvoiceStatusPaid, id, enum.InvoiceStatusUnpaid)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, _, getErr := p.GetInvoice(ctx, id); getErr != nil {
				return Invoice{}, getErr
			}
			return Invoice{}, ErrInvoicePaid
		}
		return Invoice{}, fmt.Errorf("mark invoice paid: %w", err)
	}
	return inv, nil
}

func (p *Postgres) GetUnpaidInvoiceBySession(ctx context.Context, sessionID uuid.UUID) (Invoice, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE session_id = $1 AND status = $2`,
		sessionID, enum.InvoiceStatusUnpaid)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, fmt.Errorf("get unpaid invoice: %w", err)
	}
	return inv, nil
}

func (p *Postgres) ListPendingBills(ctx context.Context) ([]PendingBill, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT s.id, t.number, s.bill_requested_at, i.id
		 FROM sessions s
		 JOIN tables t ON t.id = s.table_id
		 LEFT JOIN invoices i ON i.session_id = s.id AND i.status = $2
		 WHERE s.status = $1
		 ORDER BY t.number`,
		enum.SessionStatusBillRequested, enum.InvoiceStatusUnpaid)
	if err != nil {
		return nil, fmt.Errorf("list pending bills: %w", err)
	}
	defer rows.Close()

	var out []PendingBill
	for rows.Next() {
		var pb PendingBill
		if err := rows.Scan(&pb.SessionID, &pb.TableNumber, &pb.BillRequestedAt, &pb.InvoiceID); err != nil {
			return nil, fmt.Errorf("scan pending bill: %w", err)
		}
		out = append(out, pb)
	}
	return out, rows.Err()
}

// --- Settings ---

func (p *Postgres) GetSettings(ctx context.Context) (Settings, error) {
	var s Settings
	var tax, service, discount string
	err := p.pool.QueryRow(ctx,
		`SELECT tax_rate::text, service_charge_rate::text, discount_rate::text, updated_at
		 FROM settings WHERE id = 1`).
		Scan(&tax, &service, &discount, &s.UpdatedAt)
	if err != nil {
		return Settings{}, fmt.Errorf("get settings: %w", err)
	}
	if s.TaxRate, err = decimal.NewFromString(tax); err != nil {
		return Settings{}, fmt.Errorf("parse tax rate: %w", err)
	}
	if s.ServiceChargeRate, err = decimal.NewFromString(service); err != nil {
		return Settings{}, fmt.Errorf("parse service charge rate: %w", err)
	}
	if s.DiscountRate, err = decimal.NewFromString(discount); err != nil {
		return Settings{}, fmt.Errorf("parse discount rate: %w", err)
	}
	return s, nil
}

func (p *Postgres) UpdateSettings(ctx context.Context, arg UpdateSettingsParams) (Settings, error) {
	_, err := p.pool.Exec(ctx,
		`UPDATE settings SET
			tax_rate = COALESCE($1::numeric, tax_rate),
			service_charge_rate = COALESCE($2::numeric, service_charge_rate),
			discount_rate = COALESCE($3::numeric, discount_rate),
			updated_at = now()
		 WHERE id = 1`,
		decimalPtrToString(arg.TaxRate),
		decimalPtrToString(arg.ServiceChargeRate),
		decimalPtrToString(arg.DiscountRate))
	if err != nil {
		return Settings{}, fmt.Errorf("update settings: %w", err)
	}
	return p.GetSettings(ctx)
}

// --- Menu catalog ---

func (p *Postgres) CreateCategory(ctx context.Context, name string) (Category, error) {
	c := Category{ID: uuid.New(), Name: name}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO categories (id, name) VALUES ($1, $2)`, c.ID, c.Name)
	if err != nil {
		if isUniqueViolation(err, "categories_name_key") {
			return Category{}, ErrDuplicateName
		}
		return Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (p *Postgres) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	it := MenuItem{
		ID:          uuid.New(),
		CategoryID:  arg.CategoryID,
		Name:        arg.Name,
		Description: arg.Description,
		Price:       arg.Price,
		Type:        arg.Type,
		Available:   arg.Available,
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO menu_items (id, category_id, name, description, price, type, available)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`,
		it.ID, it.CategoryID, it.Name, it.Description, it.Price.String(), it.Type, it.Available)
	if err != nil {
		if isUniqueViolation(err, "menu_items_category_id_name_key") {
			return MenuItem{}, ErrDuplicateName
		}
		if isForeignKeyViolation(err) {
			return MenuItem{}, ErrNotFound
		}
		return MenuItem{}, fmt.Errorf("create menu item: %w", err)
	}
	return it, nil
}

func (p *Postgres) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return p.scanMenuItemRow(p.pool.QueryRow(ctx,
		`SELECT id, category_id, name, description, price::text, type, available
		 FROM menu_items WHERE id = $1`, id))
}

func (p *Postgres) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, category_id, name, description, price::text, type, available
		 FROM menu_items ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	defer rows.Close()

	var out []MenuItem
	for rows.Next() {
		it, err := p.scanMenuItemRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	it, err := p.scanMenuItemRow(p.pool.QueryRow(ctx,
		`UPDATE menu_items SET
			price = COALESCE($2::numeric, price),
			available = COALESCE($3, available)
		 WHERE id = $1
		 RETURNING id, category_id, name, description, price::text, type, available`,
		arg.ID, decimalPtrToString(arg.Price), arg.Available))
	if err != nil {
		return MenuItem{}, err
	}
	return it, nil
}

// --- Users ---

func (p *Postgres) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, full_name, role, hashed_password)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, email, full_name, role, hashed_password, created_at`,
		uuid.New(), arg.Email, arg.FullName, arg.Role, arg.HashedPassword).
		Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.HashedPassword, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx,
		`SELECT id, email, full_name, role, hashed_password, created_at
		 FROM users WHERE lower(email) = lower($1)`, email).
		Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.HashedPassword, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (p *Postgres) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx,
		`SELECT id, email, full_name, role, hashed_password, created_at
		 FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.HashedPassword, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, email, full_name, role, hashed_password, created_at
		 FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.HashedPassword, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// --- Helpers ---

func (p *Postgres) scanMenuItemRow(row pgx.Row) (MenuItem, error) {
	var it MenuItem
	var price string
	err := row.Scan(&it.ID, &it.CategoryID, &it.Name, &it.Description, &price, &it.Type, &it.Available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MenuItem{}, ErrNotFound
		}
		return MenuItem{}, fmt.Errorf("scan menu item: %w", err)
	}
	if it.Price, err = decimal.NewFromString(price); err != nil {
		return MenuItem{}, fmt.Errorf("parse price: %w", err)
	}
	return it, nil
}

func scanOrderItem(row pgx.Row) (OrderItem, error) {
	var it OrderItem
	var unitPrice string
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Quantity,
		&unitPrice, &it.Note, &it.Status, &it.Destination, &it.CreatedAt)
	if err != nil {
		return OrderItem{}, err
	}
	if it.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return OrderItem{}, fmt.Errorf("parse unit price: %w", err)
	}
	return it, nil
}

func collectOrderItems(rows pgx.Rows) ([]OrderItem, error) {
	var out []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var subtotal, discount, service, tax, total string
	err := row.Scan(&inv.ID, &inv.SessionID, &subtotal, &discount, &service,
		&tax, &total, &inv.Status, &inv.Waiters, &inv.CreatedAt, &inv.PaidAt)
	if err != nil {
		return Invoice{}, err
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&inv.Subtotal, subtotal},
		{&inv.Discount, discount},
		{&inv.ServiceCharge, service},
		{&inv.Tax, tax},
		{&inv.Total, total},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return Invoice{}, fmt.Errorf("parse invoice amount: %w", err)
		}
		*f.dst = d
	}
	return inv, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nilIfZero(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func decimalPtrToString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
