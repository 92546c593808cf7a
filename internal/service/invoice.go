package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/mtsdb/restaurant-system/internal/billing"
	"github.com/mtsdb/restaurant-system/internal/store"
)

// InvoiceStore defines the store methods needed to cut and settle invoices.
type InvoiceStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (store.Session, error)
	ListSessionItems(ctx context.Context, sessionID uuid.UUID) ([]store.OrderItem, error)
	ListSessionWaiters(ctx context.Context, sessionID uuid.UUID) ([]string, error)
	GetSettings(ctx context.Context) (store.Settings, error)
	CreateInvoice(ctx context.Context, arg store.CreateInvoiceParams) (store.Invoice, []store.InvoiceItem, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (store.Invoice, []store.InvoiceItem, error)
	MarkInvoicePaid(ctx context.Context, id uuid.UUID) (store.Invoice, error)
}

// InvoiceService cuts invoices from a session's order lines using the
// rates that are active at creation time.
type InvoiceService struct {
	store InvoiceStore
}

func NewInvoiceService(s InvoiceStore) *InvoiceService {
	return &InvoiceService{store: s}
}

// CreateInvoice snapshots every order line of the session, whatever its
// preparation status, and computes the totals with the current rates.
// A session with no lines gets a zero-total invoice. The store
// guarantees at most one unpaid invoice per session.
func (s *InvoiceService) CreateInvoice(ctx context.Context, sessionID uuid.UUID) (store.Invoice, []store.InvoiceItem, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return store.Invoice{}, nil, err
	}

	items, err := s.store.ListSessionItems(ctx, sessionID)
	if err != nil {
		return store.Invoice{}, nil, err
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return store.Invoice{}, nil, err
	}

	lines := make([]billing.Line, len(items))
	lineParams := make([]store.InvoiceItemParams, len(items))
	for i, it := range items {
		l := billing.Line{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
		lines[i] = l
		lineParams[i] = store.InvoiceItemParams{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: billing.LineTotal(l),
		}
	}

	totals := billing.Compute(lines, billing.Rates{
		Tax:           settings.TaxRate,
		ServiceCharge: settings.ServiceChargeRate,
		Discount:      settings.DiscountRate,
	})

	waiters, err := s.store.ListSessionWaiters(ctx, sessionID)
	if err != nil {
		return store.Invoice{}, nil, err
	}

	return s.store.CreateInvoice(ctx, store.CreateInvoiceParams{
		SessionID:     sessionID,
		Items:         lineParams,
		Subtotal:      totals.Subtotal,
		Discount:      totals.Discount,
		ServiceCharge: totals.ServiceCharge,
		Tax:           totals.Tax,
		Total:         totals.Total,
		Waiters:       waiters,
	})
}

// GetInvoice returns an invoice with its line items.
func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (store.Invoice, []store.InvoiceItem, error) {
	return s.store.GetInvoice(ctx, id)
}

// MarkPaid settles an invoice. Paid is terminal.
func (s *InvoiceService) MarkPaid(ctx context.Context, id uuid.UUID) (store.Invoice, error) {
	return s.store.MarkInvoicePaid(ctx, id)
}
