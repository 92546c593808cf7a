// Package service holds the multi-step workflows that sit between the
// HTTP handlers and the store: placing orders and cutting invoices.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mtsdb/restaurant-system/internal/enum"
	"github.com/mtsdb/restaurant-system/internal/store"
)

// Errors returned by the order service.
var (
	ErrInvalidQuantity  = errors.New("quantity must be >= 1")
	ErrMenuItemNotFound = errors.New("menu item not found")
	ErrItemNotAvailable = errors.New("menu item is not available")
)

// OrderStore defines the store methods needed to place orders.
type OrderStore interface {
	CreateOrder(ctx context.Context, sessionID, createdBy uuid.UUID) (store.Order, error)
	CreateOrderItem(ctx context.Context, arg store.CreateOrderItemParams) (store.OrderItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (store.MenuItem, error)
}

// AddItemRequest is the validated input for adding one line to an order.
type AddItemRequest struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	Note       string
}

// OrderService places orders and order items against active sessions.
type OrderService struct {
	store OrderStore
}

func NewOrderService(s OrderStore) *OrderService {
	return &OrderService{store: s}
}

// CreateOrder opens a new order on the given session. The store refuses
// sessions that are no longer active.
func (s *OrderService) CreateOrder(ctx context.Context, sessionID, createdBy uuid.UUID) (store.Order, error) {
	return s.store.CreateOrder(ctx, sessionID, createdBy)
}

// AddItem looks up the menu item, snapshots its name and current price,
// and routes the line to its preparation station. Later catalog edits
// never affect the stored line.
func (s *OrderService) AddItem(ctx context.Context, req AddItemRequest) (store.OrderItem, error) {
	if req.Quantity < 1 {
		return store.OrderItem{}, ErrInvalidQuantity
	}

	item, err := s.store.GetMenuItem(ctx, req.MenuItemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.OrderItem{}, ErrMenuItemNotFound
		}
		return store.OrderItem{}, err
	}
	if !item.Available {
		return store.OrderItem{}, ErrItemNotAvailable
	}

	return s.store.CreateOrderItem(ctx, store.CreateOrderItemParams{
		OrderID:     req.OrderID,
		MenuItemID:  item.ID,
		Name:        item.Name,
		Quantity:    req.Quantity,
		UnitPrice:   item.Price,
		Note:        req.Note,
		Destination: enum.DestinationForItemType(item.Type),
	})
}
