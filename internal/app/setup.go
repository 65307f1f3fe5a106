// Package app contains the application setup for the catalog service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/gocatalog/internal/config"
	"github.com/abgdnv/gocatalog/internal/events"
	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/abgdnv/gocatalog/internal/repository/memory"
	mongorepo "github.com/abgdnv/gocatalog/internal/repository/mongo"
	"github.com/abgdnv/gocatalog/internal/repository/postgres"
	"github.com/abgdnv/gocatalog/internal/service"
	"github.com/abgdnv/gocatalog/internal/transport/rest"
	"github.com/abgdnv/gocatalog/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/gocatalog/pkg/config"
	"github.com/abgdnv/gocatalog/pkg/messaging"
	natsclient "github.com/abgdnv/gocatalog/pkg/nats"
	"github.com/abgdnv/gocatalog/pkg/server"

	"github.com/go-chi/chi/v5"
)

type Dependencies struct {
	ProductService     service.ProductService
	StoreService       service.StoreService
	AssociationService service.AssociationService
	Logger             *slog.Logger
}

// SetupDependencies builds the services over catalog. Association events go to publisher.
func SetupDependencies(catalog repository.Catalog, publisher messaging.Publisher, logger *slog.Logger) *Dependencies {
	return &Dependencies{
		ProductService:     service.NewProductService(catalog),
		StoreService:       service.NewStoreService(catalog),
		AssociationService: service.NewAssociationService(catalog, publisher),
		Logger:             logger,
	}
}

// OpenCatalog connects the configured persistence backend and applies its schema when cfg.Migrate is set.
// The returned func releases the connection.
func OpenCatalog(ctx context.Context, cfg pkgconfig.DatabaseConfig, logger *slog.Logger) (repository.Catalog, func(), error) {
	switch cfg.Driver {
	case pkgconfig.DriverMemory:
		logger.Warn("Using in-memory catalog, data is lost on restart")
		return memory.NewCatalog(), func() {}, nil

	case pkgconfig.DriverMongo:
		client, err := bootstrap.NewMongoClient(ctx, cfg.URL, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("Failed to disconnect from MongoDB", "error", err)
			}
		}
		catalog := mongorepo.NewMongoCatalog(client.Database(cfg.Name))
		if cfg.Migrate {
			if err := catalog.EnsureIndexes(ctx); err != nil {
				closeFn()
				return nil, nil, err
			}
			logger.Info("MongoDB indexes ensured")
		}
		return catalog, closeFn, nil

	case pkgconfig.DriverPostgres:
		if cfg.Migrate {
			if err := postgres.Migrate(cfg.URL); err != nil {
				return nil, nil, err
			}
			logger.Info("Database migrations applied")
		}
		dbPool, err := bootstrap.NewDbPool(ctx, cfg.URL, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewPgCatalog(dbPool), dbPool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// SetupPublisher connects to NATS JetStream when enabled and wraps the publisher in a circuit breaker.
// With NATS disabled events are discarded.
func SetupPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (messaging.Publisher, func(), error) {
	if !cfg.Nats.Enabled {
		logger.Info("NATS is disabled, association events will not be published")
		return messaging.NoopPublisher{}, func() {}, nil
	}

	nc, err := natsclient.NewClient(cfg.Nats.Url, cfg.Nats.Timeout)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := nc.Drain(); err != nil {
			logger.Error("Failed to drain NATS connection", "error", err)
		}
	}
	js, err := natsclient.NewJetStreamContext(nc)
	if err != nil {
		return nil, nil, err
	}
	if err := natsclient.EnsureStream(ctx, js, cfg.Nats.Stream, events.StreamSubjects); err != nil {
		closeFn()
		return nil, nil, err
	}
	publisher := natsclient.NewBreakerPublisher(natsclient.NewNatsPublisher(js), "nats-publisher", cfg.Resilience.CircuitBreaker)
	logger.Info("Connected to NATS JetStream", "stream", cfg.Nats.Stream)
	return publisher, closeFn, nil
}

// SetupHttpHandler initializes the router and routes for the catalog application.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

// wireRoutes sets up the HTTP routes for the catalog application.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	handler := rest.NewHandler(deps.ProductService, deps.StoreService, deps.AssociationService, deps.Logger)
	handler.RegisterRoutes(mux)
}

// SetupHttpServer creates and configures an HTTP server for the catalog application.
func SetupHttpServer(deps *Dependencies, cfg *config.Config, serviceName string) *http.Server {
	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, serviceName, mux)
}
