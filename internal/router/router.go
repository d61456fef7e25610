package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warungkita/api/internal/config"
	"github.com/warungkita/api/internal/database"
	"github.com/warungkita/api/internal/handler"
	mw "github.com/warungkita/api/internal/middleware"
	"github.com/warungkita/api/internal/service"
	"github.com/warungkita/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/{topic}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterProtectedRoutes(r)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole("ADMIN"))

			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", userHandler.RegisterRoutes)

			supplierHandler := handler.NewSupplierHandler(queries)
			r.Route("/suppliers", supplierHandler.RegisterRoutes)
		})

		// Menu: everyone reads, only admins write.
		menuHandler := handler.NewMenuHandler(queries)
		r.Route("/menu-items", func(r chi.Router) {
			r.Get("/", menuHandler.List)
			r.Get("/{id}", menuHandler.Get)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole("ADMIN"))
				r.Post("/", menuHandler.Create)
				r.Put("/{id}", menuHandler.Update)
				r.Delete("/{id}", menuHandler.Disable)
			})
		})

		// Stock and purchasing routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole("ADMIN", "KITCHEN"))

			ingredientHandler := handler.NewIngredientHandler(queries)
			r.Route("/ingredients", ingredientHandler.RegisterRoutes)

			inventoryHandler := handler.NewInventoryHandler(
				queries,
				pool,
				func(db database.DBTX) handler.InventoryStore {
					return database.New(db)
				},
			)
			r.Route("/inventory", inventoryHandler.RegisterRoutes)

			purchaseOrderService := service.NewPurchaseOrderService(pool, func(db database.DBTX) service.PurchaseOrderStore {
				return database.New(db)
			})
			purchaseOrderHandler := handler.NewPurchaseOrderHandler(purchaseOrderService, queries)
			r.Route("/purchase-orders", purchaseOrderHandler.RegisterRoutes)
		})

		// Orders: all staff roles take part in the workflow.
		orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
			return database.New(db)
		})
		orderHandler := handler.NewOrderHandler(orderService, queries, hub)
		r.Route("/orders", orderHandler.RegisterRoutes)

		// Payments
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole("ADMIN", "WAITER"))

			paymentHandler := handler.NewPaymentHandler(
				queries,
				pool,
				func(db database.DBTX) handler.PaymentStore {
					return database.New(db)
				},
				hub,
			)
			r.Route("/payments", paymentHandler.RegisterRoutes)
		})

		// Reports: kitchen sees the stock side, money stays admin only.
		reportsHandler := handler.NewReportsHandler(queries)
		r.Route("/reports", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole("ADMIN", "KITCHEN"))
				reportsHandler.RegisterInventoryRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole("ADMIN"))
				reportsHandler.RegisterSalesRoutes(r)
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
