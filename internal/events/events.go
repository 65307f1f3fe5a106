// Package events defines the association change events published after a successful commit.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/abgdnv/gocatalog/pkg/messaging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Subjects. All of them fall under the catalog stream.
const (
	StreamSubjects                 = "catalog.>"
	StoreAddedToProductSubject     = "catalog.products.stores.added"
	StoreRemovedFromProductSubject = "catalog.products.stores.removed"
	ProductStoresReplacedSubject   = "catalog.products.stores.replaced"
)

// AssociationEvent is the payload shared by every association event.
type AssociationEvent struct {
	Carrier    propagation.MapCarrier `json:"carrier,omitempty"`
	ProductID  uuid.UUID              `json:"product_id"`
	StoreIDs   []uuid.UUID            `json:"store_ids"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func newAssociationEvent(ctx context.Context, productID uuid.UUID, storeIDs []uuid.UUID) AssociationEvent {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if storeIDs == nil {
		storeIDs = []uuid.UUID{}
	}
	return AssociationEvent{
		Carrier:    carrier,
		ProductID:  productID,
		StoreIDs:   storeIDs,
		OccurredAt: time.Now().UTC(),
	}
}

type StoreAddedToProduct struct {
	AssociationEvent
}

// NewStoreAddedToProduct builds the event for a store linked to a product.
func NewStoreAddedToProduct(ctx context.Context, productID, storeID uuid.UUID) StoreAddedToProduct {
	return StoreAddedToProduct{newAssociationEvent(ctx, productID, []uuid.UUID{storeID})}
}

func (e StoreAddedToProduct) Subject() string {
	return StoreAddedToProductSubject
}

func (e StoreAddedToProduct) Payload() ([]byte, error) {
	return json.Marshal(e)
}

type StoreRemovedFromProduct struct {
	AssociationEvent
}

// NewStoreRemovedFromProduct builds the event for a store unlinked from a product.
func NewStoreRemovedFromProduct(ctx context.Context, productID, storeID uuid.UUID) StoreRemovedFromProduct {
	return StoreRemovedFromProduct{newAssociationEvent(ctx, productID, []uuid.UUID{storeID})}
}

func (e StoreRemovedFromProduct) Subject() string {
	return StoreRemovedFromProductSubject
}

func (e StoreRemovedFromProduct) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// ProductStoresReplaced carries the product's complete new store list.
type ProductStoresReplaced struct {
	AssociationEvent
}

func NewProductStoresReplaced(ctx context.Context, productID uuid.UUID, storeIDs []uuid.UUID) ProductStoresReplaced {
	return ProductStoresReplaced{newAssociationEvent(ctx, productID, storeIDs)}
}

func (e ProductStoresReplaced) Subject() string {
	return ProductStoresReplacedSubject
}

func (e ProductStoresReplaced) Payload() ([]byte, error) {
	return json.Marshal(e)
}

var (
	_ messaging.Event = StoreAddedToProduct{}
	_ messaging.Event = StoreRemovedFromProduct{}
	_ messaging.Event = ProductStoresReplaced{}
)
