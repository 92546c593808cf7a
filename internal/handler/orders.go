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

	"github.com/mtsdb/restaurant-system/internal/enum"
	"github.com/mtsdb/restaurant-system/internal/middleware"
	"github.com/mtsdb/restaurant-system/internal/service"
	"github.com/mtsdb/restaurant-system/internal/store"
)

// OrderItemStore defines the store methods needed by order handlers
// beyond the order service itself.
type OrderItemStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
	GetOrderItem(ctx context.Context, id uuid.UUID) (store.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]store.OrderItem, error)
	AdvanceOrderItemStatus(ctx context.Context, id uuid.UUID, from, to string) (store.OrderItem, error)
	DeleteOrderItem(ctx context.Context, id uuid.UUID) error
}

// OrderHandler handles orders and their item workflow.
type OrderHandler struct {
	svc   *service.OrderService
	store OrderItemStore
}

func NewOrderHandler(svc *service.OrderService, store OrderItemStore) *OrderHandler {
	return &OrderHandler{svc: svc, store: store}
}

// --- Request / Response types ---

type addItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Note       string `json:"note"`
}

type orderResponse struct {
	ID        uuid.UUID           `json:"id"`
	SessionID uuid.UUID           `json:"session_id"`
	CreatedBy uuid.UUID           `json:"created_by"`
	CreatedAt time.Time           `json:"created_at"`
	Items     []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	MenuItemID  uuid.UUID `json:"menu_item_id"`
	Name        string    `json:"name"`
	Quantity    int32     `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	Note        string    `json:"note,omitempty"`
	Status      string    `json:"status"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"created_at"`
}

func toOrderItemResponse(it store.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:          it.ID,
		OrderID:     it.OrderID,
		MenuItemID:  it.MenuItemID,
		Name:        it.Name,
		Quantity:    it.Quantity,
		UnitPrice:   it.UnitPrice.StringFixed(2),
		Note:        it.Note,
		Status:      it.Status,
		Destination: it.Destination,
		CreatedAt:   it.CreatedAt,
	}
}

// --- Handlers ---

// Create opens a new order on an active session, attributed to the
// authenticated waiter.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), sessionID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		case errors.Is(err, store.ErrSessionClosed):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "session is closed"})
		default:
			log.Printf("ERROR: create order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, orderResponse{
		ID:        order.ID,
		SessionID: order.SessionID,
		CreatedBy: order.CreatedBy,
		CreatedAt: order.CreatedAt,
	})
}

// Get returns an order with its items.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := orderResponse{
		ID:        order.ID,
		SessionID: order.SessionID,
		CreatedBy: order.CreatedBy,
		CreatedAt: order.CreatedAt,
		Items:     make([]orderItemResponse, len(items)),
	}
	for i, it := range items {
		resp.Items[i] = toOrderItemResponse(it)
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddItem appends a line to an order, snapshotting the menu price.
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	menuItemID, err := uuid.Parse(req.MenuItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu_item_id"})
		return
	}

	item, err := h.svc.AddItem(r.Context(), service.AddItemRequest{
		OrderID:    orderID,
		MenuItemID: menuItemID,
		Quantity:   req.Quantity,
		Note:       req.Note,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidQuantity):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be >= 1"})
		case errors.Is(err, service.ErrMenuItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
		case errors.Is(err, service.ErrItemNotAvailable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "menu item is not available"})
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, store.ErrSessionClosed):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "session is closed"})
		default:
			log.Printf("ERROR: add order item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, toOrderItemResponse(item))
}

// AdvanceItem moves an item one step along its preparation chain. The
// caller states the status it wants the item to reach; anything other
// than the single legal successor of the current status is rejected.
func (h *OrderHandler) AdvanceItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if !enum.ValidItemStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	item, err := h.store.GetOrderItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
			return
		}
		log.Printf("ERROR: get order item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Skips and reversals are transition errors; served has no successor.
	if req.Status != enum.NextItemStatus(item.Status) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "invalid status transition"})
		return
	}

	if !claims.CanAdvanceAt(item.Destination) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "wrong station for this item"})
		return
	}

	item, err = h.store.AdvanceOrderItemStatus(r.Context(), itemID, item.Status, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		case errors.Is(err, store.ErrStatusChanged):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "item status changed, reload and retry"})
		default:
			log.Printf("ERROR: advance order item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toOrderItemResponse(item))
}

// DeleteItem removes an item that has not entered preparation.
func (h *OrderHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	if err := h.store.DeleteOrderItem(r.Context(), itemID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		case errors.Is(err, store.ErrItemNotWaiting):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "item preparation has started"})
		default:
			log.Printf("ERROR: delete order item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
