// Package repository defines the persistence contract for products and stores.
//
// Products and stores reference each other by id only: Product.Stores holds store ids and
// Store.Products holds product ids. Keeping both lists symmetric is the caller's job and
// must happen inside Catalog.InTx.
package repository

import (
	"context"

	"github.com/google/uuid"
)

// ProductType enumerates the allowed product kinds.
type ProductType string

const (
	Perishable    ProductType = "Perishable"
	NonPerishable ProductType = "Non-perishable"
)

// Valid reports whether t is one of the known product types.
func (t ProductType) Valid() bool {
	return t == Perishable || t == NonPerishable
}

// Product is a product document.
type Product struct {
	ID     uuid.UUID
	Name   string
	Price  float64
	Type   ProductType
	Stores []uuid.UUID
}

// Store is a store document.
type Store struct {
	ID       uuid.UUID
	Name     string
	City     string
	Address  string
	Products []uuid.UUID
}

// ProductPatch carries the optional fields of a product update. Nil fields are left untouched.
type ProductPatch struct {
	Name  *string
	Price *float64
	Type  *ProductType
}

// StorePatch carries the optional fields of a store update. Nil fields are left untouched.
type StorePatch struct {
	Name    *string
	City    *string
	Address *string
}

// ProductRepository is the products collection.
type ProductRepository interface {
	// FindByID returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindAll returns every product; an empty slice if none exist.
	FindAll(ctx context.Context) ([]Product, error)

	// Create stores a new product with an empty store list.
	Create(ctx context.Context, name string, price float64, productType ProductType) (*Product, error)

	// Update applies patch and returns the updated product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Update(ctx context.Context, id uuid.UUID, patch ProductPatch) (*Product, error)

	// SetStores replaces the product's store references.
	// Returns ErrProductNotFound if no product exists with the given ID.
	SetStores(ctx context.Context, id uuid.UUID, storeIDs []uuid.UUID) (*Product, error)

	// DeleteByID returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// StoreRepository is the stores collection.
type StoreRepository interface {
	// FindByID returns ErrStoreNotFound if no store exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Store, error)

	// FindByIDs returns the stores that exist among ids, in no particular order.
	// Missing ids are skipped.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Store, error)

	// FindAll returns every store; an empty slice if none exist.
	FindAll(ctx context.Context) ([]Store, error)

	// Create stores a new store with an empty product list.
	Create(ctx context.Context, name, city, address string) (*Store, error)

	// Update applies patch and returns the updated store.
	// Returns ErrStoreNotFound if no store exists with the given ID.
	Update(ctx context.Context, id uuid.UUID, patch StorePatch) (*Store, error)

	// SetProducts replaces the store's product references.
	// Returns ErrStoreNotFound if no store exists with the given ID.
	SetProducts(ctx context.Context, id uuid.UUID, productIDs []uuid.UUID) (*Store, error)

	// DeleteByID returns ErrStoreNotFound if no store exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Catalog groups both collections and runs multi-document units of work.
type Catalog interface {
	Products() ProductRepository
	Stores() StoreRepository

	// InTx runs fn with a Catalog whose repositories share one transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	// Reads made through the transactional Catalog lock the records they return where the backend supports it.
	InTx(ctx context.Context, fn func(tx Catalog) error) error
}

// RemoveID returns ids without any occurrence of id. The input slice is not modified.
func RemoveID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
