package router

import (
	"log"
	"net/http"

	"github.com/bellybox-pos/api/internal/config"
	"github.com/bellybox-pos/api/internal/enum"
	"github.com/bellybox-pos/api/internal/handler"
	mw "github.com/bellybox-pos/api/internal/middleware"
	"github.com/bellybox-pos/api/internal/service"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/bellybox-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, st store.Store, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Services
	accounts := service.NewAccountService(st)
	inventory := service.NewInventoryService(st, hub)
	menu := service.NewMenuService(st, hub)
	orders := service.NewOrderService(st, accounts, hub)
	expenses := service.NewExpenseService(st, accounts, hub)
	analytics := service.NewAnalyticsService(st)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	authHandler := handler.NewAuthHandler(accounts, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		handler.NewInventoryHandler(inventory).RegisterRoutes(r)
		handler.NewMenuHandler(menu).RegisterRoutes(r)
		handler.NewOrderHandler(orders).RegisterRoutes(r)
		handler.NewExpenditureHandler(expenses).RegisterRoutes(r)
		handler.NewReportsHandler(analytics).RegisterRoutes(r)

		// Owner-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleOwner))
			handler.NewAuditHandler(accounts).RegisterRoutes(r)
			authHandler.RegisterOwnerRoutes(r)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
