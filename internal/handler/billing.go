package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mtsdb/restaurant-system/internal/service"
	"github.com/mtsdb/restaurant-system/internal/store"
)

// PendingBillStore lists sessions waiting for their bill.
type PendingBillStore interface {
	ListPendingBills(ctx context.Context) ([]store.PendingBill, error)
}

// BillingHandler handles invoices and the cashier's pending bill queue.
type BillingHandler struct {
	svc   *service.InvoiceService
	store PendingBillStore
}

func NewBillingHandler(svc *service.InvoiceService, store PendingBillStore) *BillingHandler {
	return &BillingHandler{svc: svc, store: store}
}

// --- Request / Response types ---

type createInvoiceRequest struct {
	SessionID string `json:"session_id"`
}

type invoiceResponse struct {
	ID            uuid.UUID             `json:"id"`
	SessionID     uuid.UUID             `json:"session_id"`
	Subtotal      string                `json:"subtotal"`
	Discount      string                `json:"discount"`
	ServiceCharge string                `json:"service_charge"`
	Tax           string                `json:"tax"`
	Total         string                `json:"total"`
	Status        string                `json:"status"`
	Waiters       []string              `json:"waiters"`
	Items         []invoiceItemResponse `json:"items,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	PaidAt        *time.Time            `json:"paid_at,omitempty"`
}

type invoiceItemResponse struct {
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type pendingBillResponse struct {
	SessionID       uuid.UUID  `json:"session_id"`
	TableNumber     int32      `json:"table_number"`
	BillRequestedAt *time.Time `json:"bill_requested_at"`
	InvoiceID       *uuid.UUID `json:"invoice_id,omitempty"`
}

// Totals are stored at full precision and rounded to cents only here,
// at the presentation edge.
func toInvoiceResponse(inv store.Invoice, items []store.InvoiceItem) invoiceResponse {
	resp := invoiceResponse{
		ID:            inv.ID,
		SessionID:     inv.SessionID,
		Subtotal:      inv.Subtotal.StringFixed(2),
		Discount:      inv.Discount.StringFixed(2),
		ServiceCharge: inv.ServiceCharge.StringFixed(2),
		Tax:           inv.Tax.StringFixed(2),
		Total:         inv.Total.StringFixed(2),
		Status:        inv.Status,
		Waiters:       inv.Waiters,
		CreatedAt:     inv.CreatedAt,
		PaidAt:        inv.PaidAt,
	}
	if resp.Waiters == nil {
		resp.Waiters = []string{}
	}
	for _, it := range items {
		resp.Items = append(resp.Items, invoiceItemResponse{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.LineTotal.StringFixed(2),
		})
	}
	return resp
}

// --- Handlers ---

// Create cuts an invoice for a session from its order lines and the
// rates in effect right now.
func (h *BillingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session_id"})
		return
	}

	inv, items, err := h.svc.CreateInvoice(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		case errors.Is(err, store.ErrInvoiceExists):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "session already has an unpaid invoice"})
		default:
			log.Printf("ERROR: create invoice: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, toInvoiceResponse(inv, items))
}

// Get returns an invoice with its line items.
func (h *BillingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid invoice ID"})
		return
	}

	inv, items, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "invoice not found"})
			return
		}
		log.Printf("ERROR: get invoice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceResponse(inv, items))
}

// Pay settles an invoice. A paid invoice cannot be paid again.
func (h *BillingHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid invoice ID"})
		return
	}

	inv, err := h.svc.MarkPaid(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "invoice not found"})
		case errors.Is(err, store.ErrInvoicePaid):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "invoice is already paid"})
		default:
			log.Printf("ERROR: pay invoice: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceResponse(inv, nil))
}

// Pending lists sessions that asked for their bill and are not settled.
func (h *BillingHandler) Pending(w http.ResponseWriter, r *http.Request) {
	bills, err := h.store.ListPendingBills(r.Context())
	if err != nil {
		log.Printf("ERROR: list pending bills: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]pendingBillResponse, len(bills))
	for i, b := range bills {
		resp[i] = pendingBillResponse{
			SessionID:       b.SessionID,
			TableNumber:     b.TableNumber,
			BillRequestedAt: b.BillRequestedAt,
			InvoiceID:       b.InvoiceID,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
