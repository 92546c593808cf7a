package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mtsdb/restaurant-system/internal/auth"
	"github.com/mtsdb/restaurant-system/internal/config"
	"github.com/mtsdb/restaurant-system/internal/handler"
	mw "github.com/mtsdb/restaurant-system/internal/middleware"
	"github.com/mtsdb/restaurant-system/internal/service"
	"github.com/mtsdb/restaurant-system/internal/store"
)

// New creates a Chi router with all application routes wired up.
// Mutating routes are gated on role capabilities; station views apply
// their own per-station checks.
func New(cfg *config.Config, st store.Store) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(st, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	orderService := service.NewOrderService(st)
	invoiceService := service.NewInvoiceService(st)

	tableHandler := handler.NewTableHandler(st)
	sessionHandler := handler.NewSessionHandler(st, cfg.AllowCloseUnpaid)
	orderHandler := handler.NewOrderHandler(orderService, st)
	stationHandler := handler.NewStationHandler(st)
	billingHandler := handler.NewBillingHandler(invoiceService, st)
	settingsHandler := handler.NewSettingsHandler(st)
	menuHandler := handler.NewMenuHandler(st)
	userHandler := handler.NewUserHandler(st)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterProtectedRoutes(r)

		r.Route("/tables", func(r chi.Router) {
			r.Get("/", tableHandler.List)
			r.Get("/{id}", tableHandler.Get)
			r.With(mw.RequireCapability(auth.CapRegisterTable)).Post("/", tableHandler.Create)
			r.With(mw.RequireCapability(auth.CapOpenSession)).Post("/{id}/open-session", sessionHandler.Open)
			r.With(mw.RequireCapability(auth.CapCloseSession)).Post("/{id}/close-session", sessionHandler.Close)
			r.Get("/{id}/session", sessionHandler.GetActiveByTable)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/active", sessionHandler.ListActive)
			r.Get("/{id}", sessionHandler.Get)
			r.With(mw.RequireCapability(auth.CapRequestBill)).
				Post("/{id}/request-bill", sessionHandler.RequestBill)
			r.With(mw.RequireCapability(auth.CapCreateOrder)).
				Post("/{id}/orders", orderHandler.Create)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{id}", orderHandler.Get)
			r.With(mw.RequireCapability(auth.CapAddItem)).Post("/{id}/add-item", orderHandler.AddItem)
			r.With(mw.RequireCapability(auth.CapAdvanceItem)).Patch("/items/{id}/status", orderHandler.AdvanceItem)
			r.With(mw.RequireCapability(auth.CapDeleteItem)).Delete("/items/{id}", orderHandler.DeleteItem)
		})

		// Station queues live at the root: /kitchen/... and /barista/...
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireCapability(auth.CapViewStation))
			stationHandler.RegisterRoutes(r)
		})

		r.Route("/billing", func(r chi.Router) {
			r.With(mw.RequireCapability(auth.CapCreateInvoice)).Post("/invoices", billingHandler.Create)
			r.With(mw.RequireCapability(auth.CapViewInvoice)).Get("/pending", billingHandler.Pending)
			r.With(mw.RequireCapability(auth.CapViewInvoice)).Get("/invoices/{id}", billingHandler.Get)
			r.With(mw.RequireCapability(auth.CapPayInvoice)).Patch("/invoices/{id}/pay", billingHandler.Pay)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.With(mw.RequireCapability(auth.CapManageSettings)).Patch("/", settingsHandler.Update)
		})

		r.Route("/menu", func(r chi.Router) {
			menuHandler.RegisterRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireCapability(auth.CapManageMenu))
				menuHandler.RegisterManageRoutes(r)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(mw.RequireCapability(auth.CapManageUsers))
			userHandler.RegisterRoutes(r)
		})
	})

	return r
}
