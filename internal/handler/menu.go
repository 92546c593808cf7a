package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mtsdb/restaurant-system/internal/enum"
	"github.com/mtsdb/restaurant-system/internal/store"
)

// MenuStore defines the store methods needed by menu handlers.
type MenuStore interface {
	CreateCategory(ctx context.Context, name string) (store.Category, error)
	ListCategories(ctx context.Context) ([]store.Category, error)
	CreateMenuItem(ctx context.Context, arg store.CreateMenuItemParams) (store.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (store.MenuItem, error)
	ListMenuItems(ctx context.Context) ([]store.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg store.UpdateMenuItemParams) (store.MenuItem, error)
}

// MenuHandler handles the menu catalog.
type MenuHandler struct {
	store MenuStore
}

func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers read endpoints every staff member can use.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.ListCategories)
	r.Get("/items", h.ListItems)
	r.Get("/items/{id}", h.GetItem)
}

// RegisterManageRoutes registers catalog mutation endpoints.
func (h *MenuHandler) RegisterManageRoutes(r chi.Router) {
	r.Post("/categories", h.CreateCategory)
	r.Post("/items", h.CreateItem)
	r.Patch("/items/{id}", h.UpdateItem)
}

// --- Request / Response types ---

type createCategoryRequest struct {
	Name string `json:"name"`
}

type createMenuItemRequest struct {
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Type        string `json:"type"`
	Available   *bool  `json:"available"`
}

type updateMenuItemRequest struct {
	Price     *string `json:"price"`
	Available *bool   `json:"available"`
}

type categoryResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type menuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	CategoryID  uuid.UUID `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	Type        string    `json:"type"`
	Available   bool      `json:"available"`
}

func toMenuItemResponse(m store.MenuItem) menuItemResponse {
	return menuItemResponse{
		ID:          m.ID,
		CategoryID:  m.CategoryID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price.StringFixed(2),
		Type:        m.Type,
		Available:   m.Available,
	}
}

// --- Handlers ---

func (h *MenuHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		log.Printf("ERROR: list categories: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = categoryResponse{ID: c.ID, Name: c.Name}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MenuHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	category, err := h.store.CreateCategory(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "category already exists"})
			return
		}
		log.Printf("ERROR: create category: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, categoryResponse{ID: category.ID, Name: category.Name})
}

func (h *MenuHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListMenuItems(r.Context())
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MenuHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

func (h *MenuHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createMenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
		return
	}
	if !enum.ValidItemType(req.Type) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be food or drink"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be >= 0"})
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	item, err := h.store.CreateMenuItem(r.Context(), store.CreateMenuItemParams{
		CategoryID:  categoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Type:        req.Type,
		Available:   available,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
		case errors.Is(err, store.ErrDuplicateName):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "item already exists in category"})
		default:
			log.Printf("ERROR: create menu item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// UpdateItem changes the price or availability of a catalog item.
// Order lines already placed keep the price they were sold at.
func (h *MenuHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req updateMenuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params := store.UpdateMenuItemParams{ID: id, Available: req.Available}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil || price.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be >= 0"})
			return
		}
		params.Price = &price
	}

	if params.Price == nil && params.Available == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no fields to update"})
		return
	}

	item, err := h.store.UpdateMenuItem(r.Context(), params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: update menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}
