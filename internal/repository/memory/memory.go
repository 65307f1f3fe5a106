// Package memory implements the repository contract on in-process maps.
// It backs the "memory" database driver and the service level tests.
package memory

import (
	"context"
	"slices"
	"sync"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/google/uuid"
)

// state is one consistent snapshot of both collections.
// The order slices keep FindAll results in creation order.
type state struct {
	products     map[uuid.UUID]repository.Product
	productOrder []uuid.UUID
	stores       map[uuid.UUID]repository.Store
	storeOrder   []uuid.UUID
}

func newState() *state {
	return &state{
		products: make(map[uuid.UUID]repository.Product),
		stores:   make(map[uuid.UUID]repository.Store),
	}
}

func (s *state) clone() *state {
	c := &state{
		products:     make(map[uuid.UUID]repository.Product, len(s.products)),
		productOrder: slices.Clone(s.productOrder),
		stores:       make(map[uuid.UUID]repository.Store, len(s.stores)),
		storeOrder:   slices.Clone(s.storeOrder),
	}
	for id, p := range s.products {
		c.products[id] = copyProduct(p)
	}
	for id, st := range s.stores {
		c.stores[id] = copyStore(st)
	}
	return c
}

// access abstracts how repositories reach the state: through the catalog mutex,
// or directly while a transaction holds it.
type access interface {
	read(ctx context.Context, fn func(*state) error) error
	write(ctx context.Context, fn func(*state) error) error
}

// Catalog implements repository.Catalog using in-memory maps guarded by a RWMutex.
type Catalog struct {
	mu sync.RWMutex
	st *state
}

var _ repository.Catalog = (*Catalog)(nil)

// NewCatalog creates an empty in-memory catalog.
func NewCatalog() *Catalog {
	return &Catalog{st: newState()}
}

func (c *Catalog) Products() repository.ProductRepository {
	return &productRepo{db: c}
}

func (c *Catalog) Stores() repository.StoreRepository {
	return &storeRepo{db: c}
}

// InTx runs fn against a private copy of the state while holding the write lock.
// The copy replaces the live state only if fn succeeds.
func (c *Catalog) InTx(ctx context.Context, fn func(tx repository.Catalog) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := &txCatalog{st: c.st.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	c.st = tx.st
	return nil
}

func (c *Catalog) read(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c.st)
}

func (c *Catalog) write(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.st)
}

// txCatalog operates on a cloned state; the owning Catalog already holds the lock.
type txCatalog struct {
	st *state
}

func (t *txCatalog) Products() repository.ProductRepository {
	return &productRepo{db: t}
}

func (t *txCatalog) Stores() repository.StoreRepository {
	return &storeRepo{db: t}
}

// InTx joins the running transaction.
func (t *txCatalog) InTx(_ context.Context, fn func(tx repository.Catalog) error) error {
	return fn(t)
}

func (t *txCatalog) read(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(t.st)
}

func (t *txCatalog) write(ctx context.Context, fn func(*state) error) error {
	return t.read(ctx, fn)
}

func copyProduct(p repository.Product) repository.Product {
	p.Stores = slices.Clone(p.Stores)
	if p.Stores == nil {
		p.Stores = []uuid.UUID{}
	}
	return p
}

func copyStore(s repository.Store) repository.Store {
	s.Products = slices.Clone(s.Products)
	if s.Products == nil {
		s.Products = []uuid.UUID{}
	}
	return s
}

type productRepo struct {
	db access
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*repository.Product, error) {
	var found repository.Product
	err := r.db.read(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return catalogerrors.ErrProductNotFound
		}
		found = copyProduct(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (r *productRepo) FindAll(ctx context.Context) ([]repository.Product, error) {
	var list []repository.Product
	err := r.db.read(ctx, func(st *state) error {
		list = make([]repository.Product, 0, len(st.productOrder))
		for _, id := range st.productOrder {
			list = append(list, copyProduct(st.products[id]))
		}
		return nil
	})
	return list, err
}

func (r *productRepo) Create(ctx context.Context, name string, price float64, productType repository.ProductType) (*repository.Product, error) {
	product := repository.Product{
		ID:     uuid.New(),
		Name:   name,
		Price:  price,
		Type:   productType,
		Stores: []uuid.UUID{},
	}
	err := r.db.write(ctx, func(st *state) error {
		st.products[product.ID] = product
		st.productOrder = append(st.productOrder, product.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) Update(ctx context.Context, id uuid.UUID, patch repository.ProductPatch) (*repository.Product, error) {
	return r.modify(ctx, id, func(p *repository.Product) {
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Price != nil {
			p.Price = *patch.Price
		}
		if patch.Type != nil {
			p.Type = *patch.Type
		}
	})
}

func (r *productRepo) SetStores(ctx context.Context, id uuid.UUID, storeIDs []uuid.UUID) (*repository.Product, error) {
	return r.modify(ctx, id, func(p *repository.Product) {
		p.Stores = slices.Clone(storeIDs)
	})
}

func (r *productRepo) modify(ctx context.Context, id uuid.UUID, fn func(p *repository.Product)) (*repository.Product, error) {
	var updated repository.Product
	err := r.db.write(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return catalogerrors.ErrProductNotFound
		}
		p = copyProduct(p)
		fn(&p)
		st.products[id] = p
		updated = copyProduct(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *productRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.db.write(ctx, func(st *state) error {
		if _, ok := st.products[id]; !ok {
			return catalogerrors.ErrProductNotFound
		}
		delete(st.products, id)
		st.productOrder = repository.RemoveID(st.productOrder, id)
		return nil
	})
}

type storeRepo struct {
	db access
}

func (r *storeRepo) FindByID(ctx context.Context, id uuid.UUID) (*repository.Store, error) {
	var found repository.Store
	err := r.db.read(ctx, func(st *state) error {
		s, ok := st.stores[id]
		if !ok {
			return catalogerrors.ErrStoreNotFound
		}
		found = copyStore(s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (r *storeRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]repository.Store, error) {
	var list []repository.Store
	err := r.db.read(ctx, func(st *state) error {
		list = make([]repository.Store, 0, len(ids))
		seen := make(map[uuid.UUID]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if s, ok := st.stores[id]; ok {
				list = append(list, copyStore(s))
			}
		}
		return nil
	})
	return list, err
}

func (r *storeRepo) FindAll(ctx context.Context) ([]repository.Store, error) {
	var list []repository.Store
	err := r.db.read(ctx, func(st *state) error {
		list = make([]repository.Store, 0, len(st.storeOrder))
		for _, id := range st.storeOrder {
			list = append(list, copyStore(st.stores[id]))
		}
		return nil
	})
	return list, err
}

func (r *storeRepo) Create(ctx context.Context, name, city, address string) (*repository.Store, error) {
	store := repository.Store{
		ID:       uuid.New(),
		Name:     name,
		City:     city,
		Address:  address,
		Products: []uuid.UUID{},
	}
	err := r.db.write(ctx, func(st *state) error {
		st.stores[store.ID] = store
		st.storeOrder = append(st.storeOrder, store.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &store, nil
}

func (r *storeRepo) Update(ctx context.Context, id uuid.UUID, patch repository.StorePatch) (*repository.Store, error) {
	return r.modify(ctx, id, func(s *repository.Store) {
		if patch.Name != nil {
			s.Name = *patch.Name
		}
		if patch.City != nil {
			s.City = *patch.City
		}
		if patch.Address != nil {
			s.Address = *patch.Address
		}
	})
}

func (r *storeRepo) SetProducts(ctx context.Context, id uuid.UUID, productIDs []uuid.UUID) (*repository.Store, error) {
	return r.modify(ctx, id, func(s *repository.Store) {
		s.Products = slices.Clone(productIDs)
	})
}

func (r *storeRepo) modify(ctx context.Context, id uuid.UUID, fn func(s *repository.Store)) (*repository.Store, error) {
	var updated repository.Store
	err := r.db.write(ctx, func(st *state) error {
		s, ok := st.stores[id]
		if !ok {
			return catalogerrors.ErrStoreNotFound
		}
		s = copyStore(s)
		fn(&s)
		st.stores[id] = s
		updated = copyStore(s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *storeRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.db.write(ctx, func(st *state) error {
		if _, ok := st.stores[id]; !ok {
			return catalogerrors.ErrStoreNotFound
		}
		delete(st.stores, id)
		st.storeOrder = repository.RemoveID(st.storeOrder, id)
		return nil
	})
}
