package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mtsdb/restaurant-system/internal/enum"
)

func mustTable(t *testing.T, m *Memory, number int32) Table {
	t.Helper()
	tbl, err := m.CreateTable(context.Background(), number)
	if err != nil {
		t.Fatalf("CreateTable(%d): %v", number, err)
	}
	return tbl
}

func mustOpen(t *testing.T, m *Memory, tableID uuid.UUID) Session {
	t.Helper()
	s, err := m.OpenSession(context.Background(), tableID)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	return s
}

func price(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestCreateTableDuplicateNumber(t *testing.T) {
	m := NewMemory()
	mustTable(t, m, 4)
	if _, err := m.CreateTable(context.Background(), 4); !errors.Is(err, ErrDuplicateTable) {
		t.Errorf("err = %v, want ErrDuplicateTable", err)
	}
}

func TestOpenSessionFlipsTable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := mustTable(t, m, 1)

	s := mustOpen(t, m, tbl.ID)
	if s.Status != enum.SessionStatusOpen {
		t.Errorf("session status = %s", s.Status)
	}

	got, _ := m.GetTable(ctx, tbl.ID)
	if got.Status != enum.TableStatusOccupied {
		t.Errorf("table status = %s, want occupied", got.Status)
	}

	if _, err := m.OpenSession(ctx, tbl.ID); !errors.Is(err, ErrTableOccupied) {
		t.Errorf("second open err = %v, want ErrTableOccupied", err)
	}
}

func TestOpenSessionUnknownTable(t *testing.T) {
	m := NewMemory()
	if _, err := m.OpenSession(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// Two concurrent open attempts on the same table must yield exactly one
// success and one ErrTableOccupied.
func TestOpenSessionConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := mustTable(t, m, 7)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.OpenSession(ctx, tbl.ID)
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrTableOccupied):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != n-1 {
		t.Errorf("got %d successes and %d conflicts, want 1 and %d", ok, conflict, n-1)
	}
}

// Occupancy invariant: after any sequence of open/close calls, a table
// is occupied iff it has an open-or-bill_requested session.
func TestOccupancyInvariant(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	t1 := mustTable(t, m, 1)
	t2 := mustTable(t, m, 2)

	s1 := mustOpen(t, m, t1.ID)
	mustOpen(t, m, t2.ID)
	if _, err := m.MarkBillRequested(ctx, s1.ID); err != nil {
		t.Fatalf("MarkBillRequested: %v", err)
	}
	if _, err := m.CloseSession(ctx, t2.ID); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	tables, _ := m.ListTables(ctx)
	for _, tbl := range tables {
		_, err := m.GetActiveSessionByTable(ctx, tbl.ID)
		hasActive := err == nil
		occupied := tbl.Status == enum.TableStatusOccupied
		if hasActive != occupied {
			t.Errorf("table %d: occupied=%v but active session=%v", tbl.Number, occupied, hasActive)
		}
	}
}

func TestCloseSessionWithoutActive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := mustTable(t, m, 3)
	if _, err := m.CloseSession(ctx, tbl.ID); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestMarkBillRequestedIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := mustTable(t, m, 5)
	s := mustOpen(t, m, tbl.ID)

	first, err := m.MarkBillRequested(ctx, s.ID)
	if err != nil {
		t.Fatalf("MarkBillRequested: %v", err)
	}
	if first.BillRequestedAt == nil {
		t.Fatal("BillRequestedAt not stamped")
	}

	// repeat while still bill_requested: no-op, not an error
	second, err := m.MarkBillRequested(ctx, s.ID)
	if err != nil {
		t.Fatalf("repeat MarkBillRequested: %v", err)
	}
	if !second.BillRequestedAt.Equal(*first.BillRequestedAt) {
		t.Error("repeat call must not re-stamp bill_requested_at")
	}

	if _, err := m.CloseSession(ctx, tbl.ID); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if _, err := m.MarkBillRequested(ctx, s.ID); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("after close err = %v, want ErrSessionClosed", err)
	}
}

func TestCreateOrderOnClosedSession(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := mustTable(t, m, 6)
	s := mustOpen(t, m, tbl.ID)
	if _, err := m.CloseSession(ctx, tbl.ID); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if _, err := m.CreateOrder(ctx, s.ID, uuid.New()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("err = %v, want ErrSessionClosed", err)
	}
}

func seedItem(t *testing.T, m *Memory, sessionID uuid.UUID) OrderItem {
	t.Helper()
	ctx := context.Background()
	o, err := m.CreateOrder(ctx, sessionID, uuid.New())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	it, err := m.CreateOrderItem(ctx, CreateOrderItemParams{
		OrderID:     o.ID,
		MenuItemID:  uuid.New(),
		Name:        "Burger",
		Quantity:    1,
		UnitPrice:   price("12.00"),
		Destination: enum.DestinationKitchen,
	})
	if err != nil {
		t.Fatalf("CreateOrderItem: %v", err)
	}
	return it
}

func TestAdvanceOrderItemStatusCAS(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := mustTable(t, m, 8)
	s := mustOpen(t, m, tbl.ID)
	it := seedItem(t, m, s.ID)

	got, err := m.AdvanceOrderItemStatus(ctx, it.ID, enum.ItemStatusWaiting, enum.ItemStatusInProgress)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got.Status != enum.ItemStatusInProgress {
		t.Errorf("status = %s", got.Status)
	}

	// A stale advance (still thinks the item is waiting) must lose.
	if _, err := m.AdvanceOrderItemStatus(ctx, it.ID, enum.ItemStatusWaiting, enum.ItemStatusInProgress); !errors.Is(err, ErrStatusChanged) {
		t.Errorf("stale advance err = %v, want ErrStatusChanged", err)
	}
}

// Two concurrent advances on the same item resolve to exactly one winner.
func TestAdvanceOrderItemStatusConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := mustTable(t, m, 9)
	s := mustOpen(t, m, tbl.ID)
	it := seedItem(t, m, s.ID)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.AdvanceOrderItemStatus(ctx, it.ID, enum.ItemStatusWaiting, enum.ItemStatusInProgress)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrStatusChanged) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("got %d winners, want exactly 1", ok)
	}
}

func TestDeleteOrderItemGuard(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := mustTable(t, m, 10)
	s := mustOpen(t, m, tbl.ID)

	waiting := seedItem(t, m, s.ID)
	started := seedItem(t, m, s.ID)
	if _, err := m.AdvanceOrderItemStatus(ctx, started.ID, enum.ItemStatusWaiting, enum.ItemStatusInProgress); err != nil {
		t.Fatalf("advance: %v", err)
	}

	if err := m.DeleteOrderItem(ctx, started.ID); !errors.Is(err, ErrItemNotWaiting) {
		t.Errorf("delete in_progress err = %v, want ErrItemNotWaiting", err)
	}
	if err := m.DeleteOrderItem(ctx, waiting.ID); err != nil {
		t.Errorf("delete waiting: %v", err)
	}

	items, _ := m.ListSessionItems(ctx, s.ID)
	if len(items) != 1 || items[0].ID != started.ID {
		t.Errorf("remaining items = %v", items)
	}
}

func TestListOrderItemsFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := mustTable(t, m, 11)
	s := mustOpen(t, m, tbl.ID)
	o, _ := m.CreateOrder(ctx, s.ID, uuid.New())

	kitchen, _ := m.CreateOrderItem(ctx, CreateOrderItemParams{
		OrderID: o.ID, MenuItemID: uuid.New(), Name: "Burger", Quantity: 2,
		UnitPrice: price("12.00"), Destination: enum.DestinationKitchen,
	})
	bar, _ := m.CreateOrderItem(ctx, CreateOrderItemParams{
		OrderID: o.ID, MenuItemID: uuid.New(), Name: "Cola", Quantity: 1,
		UnitPrice: price("3.00"), Destination: enum.DestinationBar,
	})

	got, err := m.ListOrderItems(ctx, OrderItemFilter{Destination: enum.DestinationBar})
	if err != nil {
		t.Fatalf("ListOrderItems: %v", err)
	}
	if len(got) != 1 || got[0].ID != bar.ID {
		t.Errorf("bar filter returned %v", got)
	}

	if _, err := m.AdvanceOrderItemStatus(ctx, kitchen.ID, enum.ItemStatusWaiting, enum.ItemStatusInProgress); err != nil {
		t.Fatalf("advance: %v", err)
	}
	got, _ = m.ListOrderItems(ctx, OrderItemFilter{Status: enum.ItemStatusInProgress, SessionID: s.ID})
	if len(got) != 1 || got[0].ID != kitchen.ID {
		t.Errorf("status filter returned %v", got)
	}
}

func invoiceParams(sessionID uuid.UUID) CreateInvoiceParams {
	return CreateInvoiceParams{
		SessionID:     sessionID,
		Items:         []InvoiceItemParams{{Name: "Burger", Quantity: 2, UnitPrice: price("12.00"), LineTotal: price("24.00")}},
		Subtotal:      price("24.00"),
		Discount:      decimal.Zero,
		ServiceCharge: decimal.Zero,
		Tax:           price("2.40"),
		Total:         price("26.40"),
	}
}

// Single invoice per session: concurrent creates yield exactly one
// invoice, the rest observe ErrInvoiceExists.
func TestCreateInvoiceConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := mustTable(t, m, 12)
	s := mustOpen(t, m, tbl.ID)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = m.CreateInvoice(ctx, invoiceParams(s.ID))
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrInvoiceExists) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("got %d invoices, want exactly 1", ok)
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := mustTable(t, m, 13)
	s := mustOpen(t, m, tbl.ID)

	inv, items, err := m.CreateInvoice(ctx, invoiceParams(s.ID))
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if inv.Status != enum.InvoiceStatusUnpaid {
		t.Errorf("status = %s", inv.Status)
	}
	if len(items) != 1 || items[0].InvoiceID != inv.ID {
		t.Errorf("items = %v", items)
	}

	// a second unpaid invoice is refused even sequentially
	if _, _, err := m.CreateInvoice(ctx, invoiceParams(s.ID)); !errors.Is(err, ErrInvoiceExists) {
		t.Errorf("duplicate create err = %v, want ErrInvoiceExists", err)
	}

	paid, err := m.MarkInvoicePaid(ctx, inv.ID)
	if err != nil {
		t.Fatalf("MarkInvoicePaid: %v", err)
	}
	if paid.Status != enum.InvoiceStatusPaid || paid.PaidAt == nil {
		t.Errorf("paid invoice = %+v", paid)
	}

	// paid is terminal
	if _, err := m.MarkInvoicePaid(ctx, inv.ID); !errors.Is(err, ErrInvoicePaid) {
		t.Errorf("second pay err = %v, want ErrInvoicePaid", err)
	}

	// once the unpaid slot is free the session can be re-invoiced
	if _, _, err := m.CreateInvoice(ctx, invoiceParams(s.ID)); err != nil {
		t.Errorf("create after pay: %v", err)
	}
}

func TestPendingBills(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	tbl := mustTable(t, m, 14)
	s := mustOpen(t, m, tbl.ID)

	pending, _ := m.ListPendingBills(ctx)
	if len(pending) != 0 {
		t.Fatalf("pending before request = %v", pending)
	}

	if _, err := m.MarkBillRequested(ctx, s.ID); err != nil {
		t.Fatalf("MarkBillRequested: %v", err)
	}
	pending, _ = m.ListPendingBills(ctx)
	if len(pending) != 1 || pending[0].SessionID != s.ID || pending[0].InvoiceID != nil {
		t.Fatalf("pending after request = %+v", pending)
	}

	inv, _, err := m.CreateInvoice(ctx, invoiceParams(s.ID))
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	pending, _ = m.ListPendingBills(ctx)
	if len(pending) != 1 || pending[0].InvoiceID == nil || *pending[0].InvoiceID != inv.ID {
		t.Fatalf("pending with invoice = %+v", pending)
	}

	if _, err := m.MarkInvoicePaid(ctx, inv.ID); err != nil {
		t.Fatalf("MarkInvoicePaid: %v", err)
	}
	pending, _ = m.ListPendingBills(ctx)
	if len(pending) != 0 {
		t.Fatalf("pending after paid = %+v", pending)
	}
}

// Price snapshot immutability: changing the catalog price after an
// order item was created does not touch the stored unit price.
func TestPriceSnapshotImmutable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	cat, _ := m.CreateCategory(ctx, "Mains")
	menuItem, err := m.CreateMenuItem(ctx, CreateMenuItemParams{
		CategoryID: cat.ID, Name: "Burger", Price: price("12.00"),
		Type: enum.ItemTypeFood, Available: true,
	})
	if err != nil {
		t.Fatalf("CreateMenuItem: %v", err)
	}

	tbl := mustTable(t, m, 15)
	s := mustOpen(t, m, tbl.ID)
	o, _ := m.CreateOrder(ctx, s.ID, uuid.New())
	it, _ := m.CreateOrderItem(ctx, CreateOrderItemParams{
		OrderID: o.ID, MenuItemID: menuItem.ID, Name: menuItem.Name,
		Quantity: 1, UnitPrice: menuItem.Price,
		Destination: enum.DestinationForItemType(menuItem.Type),
	})

	newPrice := price("99.00")
	if _, err := m.UpdateMenuItem(ctx, UpdateMenuItemParams{ID: menuItem.ID, Price: &newPrice}); err != nil {
		t.Fatalf("UpdateMenuItem: %v", err)
	}

	got, _ := m.GetOrderItem(ctx, it.ID)
	if !got.UnitPrice.Equal(price("12.00")) {
		t.Errorf("unit price = %s, want 12.00", got.UnitPrice)
	}
}

func TestSettingsUpdatePartial(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	tax := price("10")
	s, err := m.UpdateSettings(ctx, UpdateSettingsParams{TaxRate: &tax})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if !s.TaxRate.Equal(tax) || !s.ServiceChargeRate.IsZero() {
		t.Errorf("settings = %+v", s)
	}

	service := price("5")
	s, _ = m.UpdateSettings(ctx, UpdateSettingsParams{ServiceChargeRate: &service})
	if !s.TaxRate.Equal(tax) || !s.ServiceChargeRate.Equal(service) {
		t.Errorf("partial update clobbered fields: %+v", s)
	}
}

func TestSessionWaiters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	u1, _ := m.CreateUser(ctx, CreateUserParams{Email: "a@x.com", FullName: "Ana", Role: enum.RoleWaiter, HashedPassword: "h"})
	u2, _ := m.CreateUser(ctx, CreateUserParams{Email: "b@x.com", FullName: "Ben", Role: enum.RoleWaiter, HashedPassword: "h"})

	tbl := mustTable(t, m, 16)
	s := mustOpen(t, m, tbl.ID)
	m.CreateOrder(ctx, s.ID, u1.ID)
	m.CreateOrder(ctx, s.ID, u2.ID)
	m.CreateOrder(ctx, s.ID, u1.ID)

	waiters, err := m.ListSessionWaiters(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListSessionWaiters: %v", err)
	}
	if len(waiters) != 2 || waiters[0] != "Ana" || waiters[1] != "Ben" {
		t.Errorf("waiters = %v", waiters)
	}
}
