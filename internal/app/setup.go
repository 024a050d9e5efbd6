// Package app contains the application setup for the marketplace service.
package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/marketplace/internal/cart"
	"github.com/vendora/marketplace/internal/catalog/persist"
	"github.com/vendora/marketplace/internal/config"
	"github.com/vendora/marketplace/internal/fulfillment"
	"github.com/vendora/marketplace/internal/stock"
	"github.com/vendora/marketplace/internal/transport/rest"
	"github.com/vendora/marketplace/pkg/imaging"
	"github.com/vendora/marketplace/pkg/messaging"
	"github.com/vendora/marketplace/pkg/server"
	"github.com/vendora/marketplace/pkg/web"
)

type Dependencies struct {
	OrderService   fulfillment.OrderService
	ProductService persist.ProductService
	CartService    cart.CartService
	Logger         *slog.Logger
}

// SetupDependencies wires the stores, services and outbound channels.
func SetupDependencies(dbPool *pgxpool.Pool, publisher messaging.Publisher, uploader imaging.Uploader, cfg *config.Config, logger *slog.Logger) *Dependencies {
	reconciler := stock.NewReconciler(cfg.Stock.LowThreshold)

	productStore := persist.NewPgStore(dbPool)
	saver := persist.NewSaver(productStore, uploader, logger)

	return &Dependencies{
		OrderService:   fulfillment.NewService(fulfillment.NewPgStore(dbPool), reconciler, publisher, logger),
		ProductService: persist.NewService(productStore, saver, logger),
		CartService:    cart.NewService(cart.NewPgStore(dbPool), logger),
		Logger:         logger,
	}
}

// SetupHttpHandler initializes the HTTP routes for the marketplace application.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

// wireRoutes sets up the HTTP routes for the marketplace application.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	orderHandler := rest.NewOrderHandler(deps.OrderService, deps.Logger)
	productHandler := rest.NewProductHandler(deps.ProductService, deps.Logger)
	cartHandler := rest.NewCartHandler(deps.CartService, deps.Logger)

	mux.Group(func(r chi.Router) {
		r.Use(web.AuthMiddleware)
		orderHandler.RegisterRoutes(r)
		productHandler.RegisterRoutes(r)
		cartHandler.RegisterRoutes(r)
	})
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// SetupHttpServer creates and configures an HTTP server for the marketplace application.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}
