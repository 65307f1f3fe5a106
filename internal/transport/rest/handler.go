// Package rest provides the HTTP handlers for products, stores and their associations.
package rest

import (
	"errors"
	"log/slog"
	"net/http"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/abgdnv/gocatalog/internal/service"
	"github.com/abgdnv/gocatalog/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// cityCodeRule backs the citycode tag on store DTOs.
var cityCodeRule = web.StringRule{Tag: "citycode", Valid: repository.IsCityCode}

type Handler struct {
	products     service.ProductService
	stores       service.StoreService
	associations service.AssociationService
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewHandler creates a new instance of Handler with the provided services.
func NewHandler(products service.ProductService, stores service.StoreService, associations service.AssociationService, logger *slog.Logger) *Handler {
	return &Handler{
		products:     products,
		stores:       stores,
		associations: associations,
		validate:     web.NewValidator(cityCodeRule),
		logger:       logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the catalog service.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.FindAllProducts)
		r.Post("/", h.CreateProduct)

		r.Route("/{productId}", func(r chi.Router) {
			r.Get("/", h.FindProduct)
			r.Put("/", h.UpdateProduct)
			r.Delete("/", h.DeleteProduct)

			r.Route("/stores", func(r chi.Router) {
				r.Get("/", h.FindStoresFromProduct)
				r.Put("/", h.UpdateStoresFromProduct)

				r.Route("/{storeId}", func(r chi.Router) {
					r.Post("/", h.AddStoreToProduct)
					r.Get("/", h.FindStoreFromProduct)
					r.Delete("/", h.DeleteStoreFromProduct)
				})
			})
		})
	})

	r.Route("/api/v1/stores", func(r chi.Router) {
		r.Get("/", h.FindAllStores)
		r.Post("/", h.CreateStore)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindStore)
			r.Put("/", h.UpdateStore)
			r.Delete("/", h.DeleteStore)
		})
	})

	r.Get("/healthz", h.HealthCheck)
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// respondServiceError maps a service error to a status by its kind.
// Not-found and validation errors expose their detail text; anything else gets fallback.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, catalogerrors.ErrNotFound):
		logger.WarnContext(r.Context(), "Resource not found", "error", err)
		web.RespondError(w, logger, http.StatusNotFound, err.Error())
	case errors.Is(err, catalogerrors.ErrValidation):
		logger.WarnContext(r.Context(), "Request rejected by validation", "error", err)
		web.RespondError(w, logger, http.StatusBadRequest, err.Error())
	default:
		logger.ErrorContext(r.Context(), fallback, "error", err)
		web.RespondError(w, logger, http.StatusInternalServerError, fallback)
	}
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
