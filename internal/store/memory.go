package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mtsdb/restaurant-system/internal/enum"
)

// Memory is the in-memory Store driver. Every mutation performs its
// read-check-write inside one short-held lock, which gives the same
// exactly-one-winner semantics the Postgres driver gets from
// conditional UPDATEs; critical sections are O(1) map operations so a
// single mutex does not become a throughput concern at this scale.
type Memory struct {
	mu sync.Mutex

	tables       map[uuid.UUID]Table
	sessions     map[uuid.UUID]Session
	orders       map[uuid.UUID]Order
	orderItems   map[uuid.UUID]OrderItem
	invoices     map[uuid.UUID]Invoice
	invoiceItems map[uuid.UUID][]InvoiceItem
	settings     Settings
	categories   map[uuid.UUID]Category
	menuItems    map[uuid.UUID]MenuItem
	users        map[uuid.UUID]User

	// insertion counters keep listings in a stable creation order
	seq     int64
	itemSeq map[uuid.UUID]int64
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		tables:       make(map[uuid.UUID]Table),
		sessions:     make(map[uuid.UUID]Session),
		orders:       make(map[uuid.UUID]Order),
		orderItems:   make(map[uuid.UUID]OrderItem),
		invoices:     make(map[uuid.UUID]Invoice),
		invoiceItems: make(map[uuid.UUID][]InvoiceItem),
		settings: Settings{
			TaxRate:           decimal.Zero,
			ServiceChargeRate: decimal.Zero,
			DiscountRate:      decimal.Zero,
			UpdatedAt:         time.Now(),
		},
		categories: make(map[uuid.UUID]Category),
		menuItems:  make(map[uuid.UUID]MenuItem),
		users:      make(map[uuid.UUID]User),
		itemSeq:    make(map[uuid.UUID]int64),
	}
}

func (m *Memory) nextSeq() int64 {
	m.seq++
	return m.seq
}

// --- Tables ---

func (m *Memory) CreateTable(_ context.Context, number int32) (Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tables {
		if t.Number == number {
			return Table{}, ErrDuplicateTable
		}
	}
	t := Table{ID: uuid.New(), Number: number, Status: enum.TableStatusAvailable}
	m.tables[t.ID] = t
	return t, nil
}

func (m *Memory) GetTable(_ context.Context, id uuid.UUID) (Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[id]
	if !ok {
		return Table{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) ListTables(_ context.Context) ([]Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Table, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// --- Sessions ---

func (m *Memory) OpenSession(_ context.Context, tableID uuid.UUID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[tableID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if t.Status != enum.TableStatusAvailable {
		return Session{}, ErrTableOccupied
	}

	s := Session{
		ID:        uuid.New(),
		TableID:   tableID,
		Status:    enum.SessionStatusOpen,
		StartedAt: time.Now(),
	}
	m.sessions[s.ID] = s
	t.Status = enum.TableStatusOccupied
	m.tables[tableID] = t
	return s, nil
}

func (m *Memory) CloseSession(_ context.Context, tableID uuid.UUID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[tableID]
	if !ok {
		return Session{}, ErrNotFound
	}

	for id, s := range m.sessions {
		if s.TableID == tableID && enum.SessionIsActive(s.Status) {
			now := time.Now()
			s.Status = enum.SessionStatusClosed
			s.EndedAt = &now
			m.sessions[id] = s
			t.Status = enum.TableStatusAvailable
			m.tables[tableID] = t
			return s, nil
		}
	}
	return Session{}, ErrNoActiveSession
}

func (m *Memory) MarkBillRequested(_ context.Context, sessionID uuid.UUID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	switch s.Status {
	case enum.SessionStatusBillRequested:
		// idempotent repeat
		return s, nil
	case enum.SessionStatusClosed:
		return Session{}, ErrSessionClosed
	}
	now := time.Now()
	s.Status = enum.SessionStatusBillRequested
	s.BillRequestedAt = &now
	m.sessions[sessionID] = s
	return s, nil
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) GetActiveSessionByTable(_ context.Context, tableID uuid.UUID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.TableID == tableID && enum.SessionIsActive(s.Status) {
			return s, nil
		}
	}
	return Session{}, ErrNotFound
}

func (m *Memory) ListActiveSessions(_ context.Context) ([]ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ActiveSession
	for _, s := range m.sessions {
		if !enum.SessionIsActive(s.Status) {
			continue
		}
		out = append(out, ActiveSession{Session: s, TableNumber: m.tables[s.TableID].Number})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableNumber < out[j].TableNumber })
	return out, nil
}

// --- Orders ---

func (m *Memory) CreateOrder(_ context.Context, sessionID, createdBy uuid.UUID) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Order{}, ErrNotFound
	}
	if !enum.SessionIsActive(s.Status) {
		return Order{}, ErrSessionClosed
	}

	o := Order{ID: uuid.New(), SessionID: sessionID, CreatedBy: createdBy, CreatedAt: time.Now()}
	m.orders[o.ID] = o
	return o, nil
}

func (m *Memory) GetOrder(_ context.Context, id uuid.UUID) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// --- Order items ---

func (m *Memory) CreateOrderItem(_ context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[arg.OrderID]; !ok {
		return OrderItem{}, ErrNotFound
	}
	it := OrderItem{
		ID:          uuid.New(),
		OrderID:     arg.OrderID,
		MenuItemID:  arg.MenuItemID,
		Name:        arg.Name,
		Quantity:    arg.Quantity,
		UnitPrice:   arg.UnitPrice,
		Note:        arg.Note,
		Status:      enum.ItemStatusWaiting,
		Destination: arg.Destination,
		CreatedAt:   time.Now(),
	}
	m.orderItems[it.ID] = it
	m.itemSeq[it.ID] = m.nextSeq()
	return it, nil
}

func (m *Memory) GetOrderItem(_ context.Context, id uuid.UUID) (OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.orderItems[id]
	if !ok {
		return OrderItem{}, ErrNotFound
	}
	return it, nil
}

func (m *Memory) ListOrderItems(_ context.Context, f OrderItemFilter) ([]OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []OrderItem
	for _, it := range m.orderItems {
		if f.Status != "" && it.Status != f.Status {
			continue
		}
		if f.Destination != "" && it.Destination != f.Destination {
			continue
		}
		if f.SessionID != uuid.Nil && m.orders[it.OrderID].SessionID != f.SessionID {
			continue
		}
		out = append(out, it)
	}
	m.sortItems(out)
	return out, nil
}

func (m *Memory) ListOrderItemsByOrder(_ context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []OrderItem
	for _, it := range m.orderItems {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	m.sortItems(out)
	return out, nil
}

func (m *Memory) AdvanceOrderItemStatus(_ context.Context, id uuid.UUID, from, to string) (OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.orderItems[id]
	if !ok {
		return OrderItem{}, ErrNotFound
	}
	if it.Status != from {
		return OrderItem{}, ErrStatusChanged
	}
	it.Status = to
	m.orderItems[id] = it
	return it, nil
}

func (m *Memory) DeleteOrderItem(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.orderItems[id]
	if !ok {
		return ErrNotFound
	}
	if it.Status != enum.ItemStatusWaiting {
		return ErrItemNotWaiting
	}
	delete(m.orderItems, id)
	delete(m.itemSeq, id)
	return nil
}

func (m *Memory) ListSessionItems(_ context.Context, sessionID uuid.UUID) ([]OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	var out []OrderItem
	for _, it := range m.orderItems {
		if m.orders[it.OrderID].SessionID == sessionID {
			out = append(out, it)
		}
	}
	m.sortItems(out)
	return out, nil
}

func (m *Memory) ListSessionWaiters(_ context.Context, sessionID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]bool{}
	var out []string
	for _, o := range m.orders {
		if o.SessionID != sessionID {
			continue
		}
		if u, ok := m.users[o.CreatedBy]; ok && !seen[u.FullName] {
			seen[u.FullName] = true
			out = append(out, u.FullName)
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- Invoices ---

func (m *Memory) CreateInvoice(_ context.Context, arg CreateInvoiceParams) (Invoice, []InvoiceItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[arg.SessionID]; !ok {
		return Invoice{}, nil, ErrNotFound
	}
	for _, inv := range m.invoices {
		if inv.SessionID == arg.SessionID && inv.Status == enum.InvoiceStatusUnpaid {
			return Invoice{}, nil, ErrInvoiceExists
		}
	}

	inv := Invoice{
		ID:            uuid.New(),
		SessionID:     arg.SessionID,
		Subtotal:      arg.Subtotal,
		Discount:      arg.Discount,
		ServiceCharge: arg.ServiceCharge,
		Tax:           arg.Tax,
		Total:         arg.Total,
		Status:        enum.InvoiceStatusUnpaid,
		Waiters:       append([]string(nil), arg.Waiters...),
		CreatedAt:     time.Now(),
	}
	items := make([]InvoiceItem, len(arg.Items))
	for i, p := range arg.Items {
		items[i] = InvoiceItem{
			ID:        uuid.New(),
			InvoiceID: inv.ID,
			Name:      p.Name,
			Quantity:  p.Quantity,
			UnitPrice: p.UnitPrice,
			LineTotal: p.LineTotal,
		}
	}
	m.invoices[inv.ID] = inv
	m.invoiceItems[inv.ID] = items
	return inv, append([]InvoiceItem(nil), items...), nil
}

func (m *Memory) GetInvoice(_ context.Context, id uuid.UUID) (Invoice, []InvoiceItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, nil, ErrNotFound
	}
	return inv, append([]InvoiceItem(nil), m.invoiceItems[id]...), nil
}

func (m *Memory) MarkInvoicePaid(_ context.Context, id uuid.UUID) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	if inv.Status == enum.InvoiceStatusPaid {
		return Invoice{}, ErrInvoicePaid
	}
	now := time.Now()
	inv.Status = enum.InvoiceStatusPaid
	inv.PaidAt = &now
	m.invoices[id] = inv
	return inv, nil
}

func (m *Memory) GetUnpaidInvoiceBySession(_ context.Context, sessionID uuid.UUID) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, inv := range m.invoices {
		if inv.SessionID == sessionID && inv.Status == enum.InvoiceStatusUnpaid {
			return inv, nil
		}
	}
	return Invoice{}, ErrNotFound
}

func (m *Memory) ListPendingBills(_ context.Context) ([]PendingBill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []PendingBill
	for _, s := range m.sessions {
		if s.Status != enum.SessionStatusBillRequested {
			continue
		}
		pb := PendingBill{
			SessionID:       s.ID,
			TableNumber:     m.tables[s.TableID].Number,
			BillRequestedAt: s.BillRequestedAt,
		}
		skip := false
		for _, inv := range m.invoices {
			if inv.SessionID != s.ID {
				continue
			}
			if inv.Status == enum.InvoiceStatusPaid {
				skip = true
				break
			}
			id := inv.ID
			pb.InvoiceID = &id
		}
		if !skip {
			out = append(out, pb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableNumber < out[j].TableNumber })
	return out, nil
}

// --- Settings ---

func (m *Memory) GetSettings(_ context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *Memory) UpdateSettings(_ context.Context, arg UpdateSettingsParams) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if arg.TaxRate != nil {
		m.settings.TaxRate = *arg.TaxRate
	}
	if arg.ServiceChargeRate != nil {
		m.settings.ServiceChargeRate = *arg.ServiceChargeRate
	}
	if arg.DiscountRate != nil {
		m.settings.DiscountRate = *arg.DiscountRate
	}
	m.settings.UpdatedAt = time.Now()
	return m.settings, nil
}

// --- Menu catalog ---

func (m *Memory) CreateCategory(_ context.Context, name string) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.categories {
		if strings.EqualFold(c.Name, name) {
			return Category{}, ErrDuplicateName
		}
	}
	c := Category{ID: uuid.New(), Name: name}
	m.categories[c.ID] = c
	return c, nil
}

func (m *Memory) ListCategories(_ context.Context) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateMenuItem(_ context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[arg.CategoryID]; !ok {
		return MenuItem{}, ErrNotFound
	}
	for _, it := range m.menuItems {
		if it.CategoryID == arg.CategoryID && strings.EqualFold(it.Name, arg.Name) {
			return MenuItem{}, ErrDuplicateName
		}
	}
	it := MenuItem{
		ID:          uuid.New(),
		CategoryID:  arg.CategoryID,
		Name:        arg.Name,
		Description: arg.Description,
		Price:       arg.Price,
		Type:        arg.Type,
		Available:   arg.Available,
	}
	m.menuItems[it.ID] = it
	return it, nil
}

func (m *Memory) GetMenuItem(_ context.Context, id uuid.UUID) (MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.menuItems[id]
	if !ok {
		return MenuItem{}, ErrNotFound
	}
	return it, nil
}

func (m *Memory) ListMenuItems(_ context.Context) ([]MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MenuItem, 0, len(m.menuItems))
	for _, it := range m.menuItems {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) UpdateMenuItem(_ context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.menuItems[arg.ID]
	if !ok {
		return MenuItem{}, ErrNotFound
	}
	if arg.Price != nil {
		it.Price = *arg.Price
	}
	if arg.Available != nil {
		it.Available = *arg.Available
	}
	m.menuItems[arg.ID] = it
	return it, nil
}

// --- Users ---

func (m *Memory) CreateUser(_ context.Context, arg CreateUserParams) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, arg.Email) {
			return User{}, ErrDuplicateEmail
		}
	}
	u := User{
		ID:             uuid.New(),
		Email:          arg.Email,
		FullName:       arg.FullName,
		Role:           arg.Role,
		HashedPassword: arg.HashedPassword,
		CreatedAt:      time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *Memory) GetUserByID(_ context.Context, id uuid.UUID) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// sortItems orders items by insertion sequence. Callers hold m.mu.
func (m *Memory) sortItems(items []OrderItem) {
	sort.Slice(items, func(i, j int) bool {
		return m.itemSeq[items[i].ID] < m.itemSeq[items[j].ID]
	})
}
