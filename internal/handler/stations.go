package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mtsdb/restaurant-system/internal/enum"
	"github.com/mtsdb/restaurant-system/internal/middleware"
	"github.com/mtsdb/restaurant-system/internal/store"
)

// StationStore defines the store methods needed by station views.
type StationStore interface {
	ListOrderItems(ctx context.Context, f store.OrderItemFilter) ([]store.OrderItem, error)
}

// StationHandler serves the kitchen and bar work queues. A station only
// ever sees the items routed to it.
type StationHandler struct {
	store StationStore
}

func NewStationHandler(store StationStore) *StationHandler {
	return &StationHandler{store: store}
}

// RegisterRoutes registers station endpoints on the given Chi router.
func (h *StationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{station}/items", h.Items)
	r.Get("/{station}/dashboard", h.Dashboard)
}

// stationDestinations maps route segments onto item destinations. The
// bar queue is addressed by the role that works it.
var stationDestinations = map[string]string{
	"kitchen": enum.DestinationKitchen,
	"barista": enum.DestinationBar,
}

type stationDashboardResponse struct {
	Station    string `json:"station"`
	Waiting    int    `json:"waiting"`
	InProgress int    `json:"in_progress"`
	Ready      int    `json:"ready"`
}

func (h *StationHandler) station(w http.ResponseWriter, r *http.Request) (string, bool) {
	station, ok := stationDestinations[chi.URLParam(r, "station")]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid station"})
		return "", false
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return "", false
	}
	// station staff are pinned to their own queue; other roles with
	// view access may look at either station
	if own := claims.Station(); own != "" && own != station {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "wrong station"})
		return "", false
	}
	return station, true
}

// Items returns the station's queue, optionally filtered by status or
// session.
func (h *StationHandler) Items(w http.ResponseWriter, r *http.Request) {
	station, ok := h.station(w, r)
	if !ok {
		return
	}

	filter := store.OrderItemFilter{Destination: station}
	if s := r.URL.Query().Get("status"); s != "" {
		if !enum.ValidItemStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		filter.Status = s
	}
	if s := r.URL.Query().Get("session_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session_id filter"})
			return
		}
		filter.SessionID = id
	}

	items, err := h.store.ListOrderItems(r.Context(), filter)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
			return
		}
		log.Printf("ERROR: list station items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderItemResponse, len(items))
	for i, it := range items {
		resp[i] = toOrderItemResponse(it)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Dashboard returns live counts of the station's queue, computed from
// the items on each request.
func (h *StationHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	station, ok := h.station(w, r)
	if !ok {
		return
	}

	items, err := h.store.ListOrderItems(r.Context(), store.OrderItemFilter{Destination: station})
	if err != nil {
		log.Printf("ERROR: station dashboard: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := stationDashboardResponse{Station: station}
	for _, it := range items {
		switch it.Status {
		case enum.ItemStatusWaiting:
			resp.Waiting++
		case enum.ItemStatusInProgress:
			resp.InProgress++
		case enum.ItemStatusReady:
			resp.Ready++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
