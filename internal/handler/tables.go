package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mtsdb/restaurant-system/internal/store"
)

// TableStore defines the store methods needed by table handlers.
type TableStore interface {
	CreateTable(ctx context.Context, number int32) (store.Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (store.Table, error)
	ListTables(ctx context.Context) ([]store.Table, error)
}

// TableHandler handles the dining table registry.
type TableHandler struct {
	store TableStore
}

func NewTableHandler(store TableStore) *TableHandler {
	return &TableHandler{store: store}
}

// --- Request / Response types ---

type createTableRequest struct {
	Number int32 `json:"number"`
}

type tableResponse struct {
	ID     uuid.UUID `json:"id"`
	Number int32     `json:"number"`
	Status string    `json:"status"`
}

func toTableResponse(t store.Table) tableResponse {
	return tableResponse{ID: t.ID, Number: t.Number, Status: t.Status}
}

// --- Handlers ---

// List returns every table with its current occupancy status.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single table by ID.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	table, err := h.store.GetTable(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Create registers a new table. New tables start available.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Number < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "number must be >= 1"})
		return
	}

	table, err := h.store.CreateTable(r.Context(), req.Number)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTable) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "table number already exists"})
			return
		}
		log.Printf("ERROR: create table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toTableResponse(table))
}
