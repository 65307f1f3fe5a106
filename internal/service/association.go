package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/events"
	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/abgdnv/gocatalog/pkg/messaging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "catalog-associations"

// Values of the action attribute on the association changes counter.
const (
	actionAdd     = "add"
	actionRemove  = "remove"
	actionReplace = "replace"
)

// AssociationService manages the many-to-many link between products and stores.
// Every mutation updates both sides in one transaction.
type AssociationService interface {
	// AddStoreToProduct links the store to the product. Adding an existing link changes nothing.
	// Returns ErrProductNotFound, ErrStoreNotFound or ErrInvalidCity.
	AddStoreToProduct(ctx context.Context, productID, storeID uuid.UUID) (*ProductDto, error)

	// FindStoresFromProduct returns the product's stores in the product's order.
	// Returns ErrProductNotFound, or ErrNoStoresForProduct if none of its references resolve.
	FindStoresFromProduct(ctx context.Context, productID uuid.UUID) ([]StoreDto, error)

	// FindStoreFromProduct returns ErrStoreNotAssociated if the store is not among the product's stores.
	FindStoreFromProduct(ctx context.Context, productID, storeID uuid.UUID) (*StoreDto, error)

	// UpdateStoresFromProduct replaces the product's store list and reconciles the stores' product lists.
	// Returns ErrProductNotFound or ErrSomeStoresNotFound; nothing is written on error.
	UpdateStoresFromProduct(ctx context.Context, productID uuid.UUID, storeIDs []uuid.UUID) (*ProductDto, error)

	// DeleteStoreFromProduct unlinks the store from the product.
	// Returns ErrStoreNotAssociated, leaving both records untouched, if they are not linked.
	DeleteStoreFromProduct(ctx context.Context, productID, storeID uuid.UUID) (*ProductDto, error)
}

// Associations implements AssociationService.
type Associations struct {
	catalog   repository.Catalog
	publisher messaging.Publisher
	tracer    trace.Tracer
	changes   metric.Int64Counter
}

// NewAssociationService creates an AssociationService. Events go to publisher after each committed change.
func NewAssociationService(catalog repository.Catalog, publisher messaging.Publisher) *Associations {
	meter := otel.Meter(instrumentationName)
	changes, err := meter.Int64Counter("catalog_association_changes",
		metric.WithDescription("Total number of committed product-store association changes"))
	if err != nil {
		panic(fmt.Sprintf("failed to create catalog_association_changes counter: %v", err))
	}
	return &Associations{
		catalog:   catalog,
		publisher: publisher,
		tracer:    otel.Tracer(instrumentationName),
		changes:   changes,
	}
}

func (s *Associations) startSpan(ctx context.Context, name string, productID uuid.UUID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("product.id", productID.String())))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// committed records a change and publishes its event. Publish failures are only logged.
func (s *Associations) committed(ctx context.Context, action string, event messaging.Event) {
	s.changes.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish association event", "subject", event.Subject(), "error", err)
	}
}

func (s *Associations) AddStoreToProduct(ctx context.Context, productID, storeID uuid.UUID) (dto *ProductDto, err error) {
	ctx, span := s.startSpan(ctx, "AddStoreToProduct", productID)
	defer func() { endSpan(span, err) }()

	var product *repository.Product
	var changed bool
	err = s.catalog.InTx(ctx, func(tx repository.Catalog) error {
		changed = false
		var err error
		product, err = tx.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		store, err := tx.Stores().FindByID(ctx, storeID)
		if err != nil {
			return err
		}
		if !repository.IsCityCode(store.City) {
			return catalogerrors.ErrInvalidCity
		}

		if !slices.Contains(product.Stores, storeID) {
			product, err = tx.Products().SetStores(ctx, productID, append(slices.Clone(product.Stores), storeID))
			if err != nil {
				return err
			}
			changed = true
		}
		if !slices.Contains(store.Products, productID) {
			if _, err = tx.Stores().SetProducts(ctx, storeID, append(slices.Clone(store.Products), productID)); err != nil {
				return err
			}
			changed = true
		}
		return nil
	})
	if err != nil {
		return nil, wrap("add store to product", err)
	}

	if changed {
		s.committed(ctx, actionAdd, events.NewStoreAddedToProduct(ctx, productID, storeID))
	}
	return toProductDto(product), nil
}

func (s *Associations) FindStoresFromProduct(ctx context.Context, productID uuid.UUID) (dtos []StoreDto, err error) {
	ctx, span := s.startSpan(ctx, "FindStoresFromProduct", productID)
	defer func() { endSpan(span, err) }()

	return s.findStores(ctx, productID)
}

func (s *Associations) findStores(ctx context.Context, productID uuid.UUID) ([]StoreDto, error) {
	product, err := s.catalog.Products().FindByID(ctx, productID)
	if err != nil {
		return nil, wrap("find product", err)
	}
	if len(product.Stores) == 0 {
		return nil, catalogerrors.ErrNoStoresForProduct
	}

	found, err := s.catalog.Stores().FindByIDs(ctx, product.Stores)
	if err != nil {
		return nil, wrap("find stores of product", err)
	}
	byID := make(map[uuid.UUID]*repository.Store, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	// dangling references to deleted stores are skipped
	dtos := make([]StoreDto, 0, len(found))
	for _, id := range product.Stores {
		if store, ok := byID[id]; ok {
			dtos = append(dtos, *toStoreDto(store))
		}
	}
	if len(dtos) == 0 {
		return nil, catalogerrors.ErrNoStoresForProduct
	}
	return dtos, nil
}

func (s *Associations) FindStoreFromProduct(ctx context.Context, productID, storeID uuid.UUID) (dto *StoreDto, err error) {
	ctx, span := s.startSpan(ctx, "FindStoreFromProduct", productID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("store.id", storeID.String()))

	stores, err := s.findStores(ctx, productID)
	if err != nil {
		return nil, err
	}
	for i := range stores {
		if stores[i].ID == storeID {
			return &stores[i], nil
		}
	}
	return nil, catalogerrors.ErrStoreNotAssociated
}

func (s *Associations) UpdateStoresFromProduct(ctx context.Context, productID uuid.UUID, storeIDs []uuid.UUID) (dto *ProductDto, err error) {
	ctx, span := s.startSpan(ctx, "UpdateStoresFromProduct", productID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("stores.count", len(storeIDs)))

	if storeIDs == nil {
		storeIDs = []uuid.UUID{}
	}

	var product *repository.Product
	err = s.catalog.InTx(ctx, func(tx repository.Catalog) error {
		var err error
		product, err = tx.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		// one read covers the requested stores and the ones leaving the product
		touched, err := tx.Stores().FindByIDs(ctx, union(storeIDs, product.Stores))
		if err != nil {
			return err
		}
		// a repeated id resolves once, so it counts as a missing store
		resolved := 0
		for _, store := range touched {
			if slices.Contains(storeIDs, store.ID) {
				resolved++
			}
		}
		if resolved != len(storeIDs) {
			return catalogerrors.ErrSomeStoresNotFound
		}

		for _, store := range touched {
			wanted := slices.Contains(storeIDs, store.ID)
			linked := slices.Contains(store.Products, productID)
			switch {
			case wanted && !linked:
				_, err = tx.Stores().SetProducts(ctx, store.ID, append(slices.Clone(store.Products), productID))
			case !wanted && linked:
				_, err = tx.Stores().SetProducts(ctx, store.ID, repository.RemoveID(store.Products, productID))
			}
			if err != nil {
				return err
			}
		}

		product, err = tx.Products().SetStores(ctx, productID, storeIDs)
		return err
	})
	if err != nil {
		return nil, wrap("update stores of product", err)
	}

	s.committed(ctx, actionReplace, events.NewProductStoresReplaced(ctx, productID, storeIDs))
	return toProductDto(product), nil
}

func (s *Associations) DeleteStoreFromProduct(ctx context.Context, productID, storeID uuid.UUID) (dto *ProductDto, err error) {
	ctx, span := s.startSpan(ctx, "DeleteStoreFromProduct", productID)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("store.id", storeID.String()))

	var product *repository.Product
	err = s.catalog.InTx(ctx, func(tx repository.Catalog) error {
		var err error
		product, err = tx.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		store, err := tx.Stores().FindByID(ctx, storeID)
		if err != nil {
			return err
		}
		if !slices.Contains(product.Stores, storeID) {
			return catalogerrors.ErrStoreNotAssociated
		}

		product, err = tx.Products().SetStores(ctx, productID, repository.RemoveID(product.Stores, storeID))
		if err != nil {
			return err
		}
		_, err = tx.Stores().SetProducts(ctx, storeID, repository.RemoveID(store.Products, productID))
		return err
	})
	if err != nil {
		return nil, wrap("remove store from product", err)
	}

	s.committed(ctx, actionRemove, events.NewStoreRemovedFromProduct(ctx, productID, storeID))
	return toProductDto(product), nil
}

func union(a, b []uuid.UUID) []uuid.UUID {
	out := slices.Clone(a)
	for _, id := range b {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

var (
	_ ProductService     = (*Products)(nil)
	_ StoreService       = (*Stores)(nil)
	_ AssociationService = (*Associations)(nil)
)
