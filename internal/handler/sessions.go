package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mtsdb/restaurant-system/internal/store"
)

// SessionStore defines the store methods needed by session handlers.
type SessionStore interface {
	OpenSession(ctx context.Context, tableID uuid.UUID) (store.Session, error)
	CloseSession(ctx context.Context, tableID uuid.UUID) (store.Session, error)
	MarkBillRequested(ctx context.Context, sessionID uuid.UUID) (store.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (store.Session, error)
	GetActiveSessionByTable(ctx context.Context, tableID uuid.UUID) (store.Session, error)
	ListActiveSessions(ctx context.Context) ([]store.ActiveSession, error)
	GetUnpaidInvoiceBySession(ctx context.Context, sessionID uuid.UUID) (store.Invoice, error)
}

// SessionHandler handles the table sitting lifecycle.
type SessionHandler struct {
	store SessionStore

	// allowCloseUnpaid lets a sitting end while an invoice is still
	// open. When false, closing requires the invoice to be settled.
	allowCloseUnpaid bool
}

func NewSessionHandler(store SessionStore, allowCloseUnpaid bool) *SessionHandler {
	return &SessionHandler{store: store, allowCloseUnpaid: allowCloseUnpaid}
}

// --- Response types ---

type sessionResponse struct {
	ID              uuid.UUID  `json:"id"`
	TableID         uuid.UUID  `json:"table_id"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	BillRequestedAt *time.Time `json:"bill_requested_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
}

type activeSessionResponse struct {
	sessionResponse
	TableNumber int32 `json:"table_number"`
}

func toSessionResponse(s store.Session) sessionResponse {
	return sessionResponse{
		ID:              s.ID,
		TableID:         s.TableID,
		Status:          s.Status,
		StartedAt:       s.StartedAt,
		BillRequestedAt: s.BillRequestedAt,
		EndedAt:         s.EndedAt,
	}
}

// --- Handlers ---

// Open seats guests at a table and starts a new session. Exactly one
// caller wins when the same table is opened concurrently.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	session, err := h.store.OpenSession(r.Context(), tableID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
		case errors.Is(err, store.ErrTableOccupied):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "table is occupied"})
		default:
			log.Printf("ERROR: open session: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

// Close ends the active session on a table and frees the table.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	if !h.allowCloseUnpaid {
		session, err := h.store.GetActiveSessionByTable(r.Context(), tableID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("ERROR: close session: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if err == nil {
			if _, err := h.store.GetUnpaidInvoiceBySession(r.Context(), session.ID); err == nil {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "session has an unpaid invoice"})
				return
			} else if !errors.Is(err, store.ErrNotFound) {
				log.Printf("ERROR: close session: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
		}
	}

	session, err := h.store.CloseSession(r.Context(), tableID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
		case errors.Is(err, store.ErrNoActiveSession):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table has no active session"})
		default:
			log.Printf("ERROR: close session: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// RequestBill flags the session as waiting for its bill. Repeating the
// request while the flag is already set is a no-op.
func (h *SessionHandler) RequestBill(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	session, err := h.store.MarkBillRequested(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		case errors.Is(err, store.ErrSessionClosed):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "session is closed"})
		default:
			log.Printf("ERROR: request bill: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Get returns a single session by ID.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	session, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
			return
		}
		log.Printf("ERROR: get session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// GetActiveByTable returns the active session of a table, if any.
func (h *SessionHandler) GetActiveByTable(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	session, err := h.store.GetActiveSessionByTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
			return
		}
		log.Printf("ERROR: get active session: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// ListActive returns every open or bill_requested session with its
// table number.
func (h *SessionHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListActiveSessions(r.Context())
	if err != nil {
		log.Printf("ERROR: list active sessions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]activeSessionResponse, len(sessions))
	for i, s := range sessions {
		resp[i] = activeSessionResponse{
			sessionResponse: toSessionResponse(s.Session),
			TableNumber:     s.TableNumber,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
