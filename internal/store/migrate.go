package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup. Statements are idempotent so repeated
// boots against the same database are safe.
//
// Two partial unique indexes carry workflow invariants into the
// database itself: at most one active session per table, and at most
// one unpaid invoice per session. Conditional UPDATEs in postgres.go
// rely on them for the exactly-one-winner guarantees under concurrency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tables (
		id UUID PRIMARY KEY,
		number INTEGER NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'available'
			CHECK (status IN ('available', 'occupied'))
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		table_id UUID NOT NULL REFERENCES tables(id),
		status TEXT NOT NULL DEFAULT 'open'
			CHECK (status IN ('open', 'bill_requested', 'closed')),
		started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		bill_requested_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_active_per_table
		ON sessions(table_id) WHERE status IN ('open', 'bill_requested')`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL
			CHECK (role IN ('waiter', 'chef', 'barista', 'cashier', 'admin')),
		hashed_password TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS categories (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,

	`CREATE TABLE IF NOT EXISTS menu_items (
		id UUID PRIMARY KEY,
		category_id UUID NOT NULL REFERENCES categories(id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('food', 'drink')),
		available BOOLEAN NOT NULL DEFAULT true,
		UNIQUE (category_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES sessions(id),
		created_by UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS order_items (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		menu_item_id UUID NOT NULL REFERENCES menu_items(id),
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'waiting'
			CHECK (status IN ('waiting', 'in_progress', 'ready', 'served')),
		destination TEXT NOT NULL CHECK (destination IN ('kitchen', 'bar')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS invoices (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES sessions(id),
		subtotal NUMERIC NOT NULL,
		discount NUMERIC NOT NULL,
		service_charge NUMERIC NOT NULL,
		tax NUMERIC NOT NULL,
		total NUMERIC NOT NULL,
		status TEXT NOT NULL DEFAULT 'unpaid'
			CHECK (status IN ('unpaid', 'paid')),
		waiters TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		paid_at TIMESTAMPTZ
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS invoices_one_unpaid_per_session
		ON invoices(session_id) WHERE status = 'unpaid'`,

	`CREATE TABLE IF NOT EXISTS invoice_items (
		id UUID PRIMARY KEY,
		invoice_id UUID NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price NUMERIC NOT NULL,
		line_total NUMERIC NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		tax_rate NUMERIC NOT NULL DEFAULT 0,
		service_charge_rate NUMERIC NOT NULL DEFAULT 0,
		discount_rate NUMERIC NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
