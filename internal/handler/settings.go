package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtsdb/restaurant-system/internal/store"
)

// SettingsStore defines the store methods needed by settings handlers.
type SettingsStore interface {
	GetSettings(ctx context.Context) (store.Settings, error)
	UpdateSettings(ctx context.Context, arg store.UpdateSettingsParams) (store.Settings, error)
}

// SettingsHandler manages the billing rates. Changes apply to invoices
// created after the update; existing invoices keep their totals.
type SettingsHandler struct {
	store SettingsStore
}

func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// --- Request / Response types ---

type updateSettingsRequest struct {
	TaxRate           *string `json:"tax_rate"`
	ServiceChargeRate *string `json:"service_charge_rate"`
	DiscountRate      *string `json:"discount_rate"`
}

type settingsResponse struct {
	TaxRate           string    `json:"tax_rate"`
	ServiceChargeRate string    `json:"service_charge_rate"`
	DiscountRate      string    `json:"discount_rate"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toSettingsResponse(s store.Settings) settingsResponse {
	return settingsResponse{
		TaxRate:           s.TaxRate.String(),
		ServiceChargeRate: s.ServiceChargeRate.String(),
		DiscountRate:      s.DiscountRate.String(),
		UpdatedAt:         s.UpdatedAt,
	}
}

// parseRate accepts a percentage in [0, 100].
func parseRate(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// --- Handlers ---

// Get returns the current billing rates.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		log.Printf("ERROR: get settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// Update changes one or more rates. Omitted fields keep their value.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var params store.UpdateSettingsParams
	if req.TaxRate != nil {
		d, ok := parseRate(*req.TaxRate)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tax_rate must be between 0 and 100"})
			return
		}
		params.TaxRate = &d
	}
	if req.ServiceChargeRate != nil {
		d, ok := parseRate(*req.ServiceChargeRate)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "service_charge_rate must be between 0 and 100"})
			return
		}
		params.ServiceChargeRate = &d
	}
	if req.DiscountRate != nil {
		d, ok := parseRate(*req.DiscountRate)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "discount_rate must be between 0 and 100"})
			return
		}
		params.DiscountRate = &d
	}

	if params.TaxRate == nil && params.ServiceChargeRate == nil && params.DiscountRate == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no fields to update"})
		return
	}

	settings, err := h.store.UpdateSettings(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: update settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}
