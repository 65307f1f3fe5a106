package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/events"
	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/abgdnv/gocatalog/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx       context.Context
	catalog   *memory.Catalog
	publisher *recordingPublisher
	svc       *Associations
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := memory.NewCatalog()
	publisher := &recordingPublisher{}
	return &fixture{
		ctx:       context.Background(),
		catalog:   catalog,
		publisher: publisher,
		svc:       NewAssociationService(catalog, publisher),
	}
}

func (f *fixture) product(t *testing.T, name string) *repository.Product {
	t.Helper()
	p, err := f.catalog.Products().Create(f.ctx, name, 2.5, repository.Perishable)
	require.NoError(t, err)
	return p
}

func (f *fixture) store(t *testing.T, name, city string) *repository.Store {
	t.Helper()
	s, err := f.catalog.Stores().Create(f.ctx, name, city, "Main St")
	require.NoError(t, err)
	return s
}

// assertConsistent checks both sides of every product-store pair agree.
func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	products, err := f.catalog.Products().FindAll(f.ctx)
	require.NoError(t, err)
	stores, err := f.catalog.Stores().FindAll(f.ctx)
	require.NoError(t, err)
	for _, p := range products {
		for _, s := range stores {
			assert.Equal(t,
				slices.Contains(p.Stores, s.ID), slices.Contains(s.Products, p.ID),
				"product %s and store %s disagree", p.ID, s.ID)
		}
	}
}

func Test_AddStoreToProduct(t *testing.T) {
	// given
	f := newFixture(t)
	milk := f.product(t, "Milk")
	central := f.store(t, "Central", "BOG")

	// when
	got, err := f.svc.AddStoreToProduct(f.ctx, milk.ID, central.ID)

	// then
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{central.ID}, got.Stores)
	store, err := f.catalog.Stores().FindByID(f.ctx, central.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{milk.ID}, store.Products)
	assert.Equal(t, []string{events.StoreAddedToProductSubject}, f.publisher.subjects())
	f.assertConsistent(t)
}

func Test_AddStoreToProduct_Idempotent(t *testing.T) {
	f := newFixture(t)
	milk := f.product(t, "Milk")
	central := f.store(t, "Central", "BOG")

	first, err := f.svc.AddStoreToProduct(f.ctx, milk.ID, central.ID)
	require.NoError(t, err)
	second, err := f.svc.AddStoreToProduct(f.ctx, milk.ID, central.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, second.Stores, 1)
	store, err := f.catalog.Stores().FindByID(f.ctx, central.ID)
	require.NoError(t, err)
	assert.Len(t, store.Products, 1)
	assert.Len(t, f.publisher.subjects(), 1, "an unchanged link publishes nothing")
}

func Test_AddStoreToProduct_Errors(t *testing.T) {
	f := newFixture(t)
	milk := f.product(t, "Milk")
	central := f.store(t, "Central", "BOG")
	// stores created before validation existed may carry malformed cities
	legacy, err := f.catalog.Stores().Create(f.ctx, "Legacy", "bog", "Old St")
	require.NoError(t, err)

	testCases := []struct {
		name        string
		productID   uuid.UUID
		storeID     uuid.UUID
		expectError error
	}{
		{name: "missing product", productID: uuid.New(), storeID: central.ID, expectError: catalogerrors.ErrProductNotFound},
		{name: "missing store", productID: milk.ID, storeID: uuid.New(), expectError: catalogerrors.ErrStoreNotFound},
		{name: "invalid city", productID: milk.ID, storeID: legacy.ID, expectError: catalogerrors.ErrInvalidCity},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.svc.AddStoreToProduct(f.ctx, tc.productID, tc.storeID)
			require.ErrorIs(t, err, tc.expectError)
			assert.Nil(t, got)
		})
	}
	product, err := f.catalog.Products().FindByID(f.ctx, milk.ID)
	require.NoError(t, err)
	assert.Empty(t, product.Stores)
	assert.Empty(t, f.publisher.subjects())
}

func Test_AddStoreToProduct_RollsBackOnSecondWrite(t *testing.T) {
	// given
	catalog := memory.NewCatalog()
	svc := NewAssociationService(&failingCatalog{Catalog: catalog}, &recordingPublisher{})
	ctx := context.Background()
	milk, err := catalog.Products().Create(ctx, "Milk", 1, repository.Perishable)
	require.NoError(t, err)
	central, err := catalog.Stores().Create(ctx, "Central", "BOG", "Main St")
	require.NoError(t, err)

	// when
	_, err = svc.AddStoreToProduct(ctx, milk.ID, central.ID)

	// then
	require.ErrorIs(t, err, errStoreWrite)
	product, err := catalog.Products().FindByID(ctx, milk.ID)
	require.NoError(t, err)
	assert.Empty(t, product.Stores, "product write must roll back with the failed store write")
}

func Test_FindStoresFromProduct(t *testing.T) {
	f := newFixture(t)
	milk := f.product(t, "Milk")
	rice := f.product(t, "Rice")
	a := f.store(t, "A", "BOG")
	b := f.store(t, "B", "SMR")

	// order of insertion is kept
	_, err := f.svc.AddStoreToProduct(f.ctx, milk.ID, b.ID)
	require.NoError(t, err)
	_, err = f.svc.AddStoreToProduct(f.ctx, milk.ID, a.ID)
	require.NoError(t, err)

	stores, err := f.svc.FindStoresFromProduct(f.ctx, milk.ID)
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, b.ID, stores[0].ID)
	assert.Equal(t, a.ID, stores[1].ID)

	_, err = f.svc.FindStoresFromProduct(f.ctx, rice.ID)
	assert.ErrorIs(t, err, catalogerrors.ErrNoStoresForProduct)
	assert.ErrorIs(t, err, catalogerrors.ErrNotFound)

	_, err = f.svc.FindStoresFromProduct(f.ctx, uuid.New())
	assert.ErrorIs(t, err, catalogerrors.ErrProductNotFound)
	assert.NotEqual(t, catalogerrors.ErrNoStoresForProduct.Error(), catalogerrors.ErrProductNotFound.Error())
}

func Test_FindStoresFromProduct_SkipsDeletedStores(t *testing.T) {
	f := newFixture(t)
	milk := f.product(t, "Milk")
	a := f.store(t, "A", "BOG")
	b := f.store(t, "B", "SMR")
	_, err := f.svc.UpdateStoresFromProduct(f.ctx, milk.ID, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)

	require.NoError(t, f.catalog.Stores().DeleteByID(f.ctx, a.ID))
	stores, err := f.svc.FindStoresFromProduct(f.ctx, milk.ID)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, b.ID, stores[0].ID)

	require.NoError(t, f.catalog.Stores().DeleteByID(f.ctx, b.ID))
	_, err = f.svc.FindStoresFromProduct(f.ctx, milk.ID)
	assert.ErrorIs(t, err, catalogerrors.ErrNoStoresForProduct)
}

func Test_FindStoreFromProduct(t *testing.T) {
	f := newFixture(t)
	milk := f.product(t, "Milk")
	a := f.store(t, "A", "BOG")
	other := f.store(t, "Other", "MED")
	_, err := f.svc.AddStoreToProduct(f.ctx, milk.ID, a.ID)
	require.NoError(t, err)

	found, err := f.svc.FindStoreFromProduct(f.ctx, milk.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", found.Name)

	_, err = f.svc.FindStoreFromProduct(f.ctx, milk.ID, other.ID)
	assert.ErrorIs(t, err, catalogerrors.ErrStoreNotAssociated)

	_, err = f.svc.FindStoreFromProduct(f.ctx, uuid.New(), a.ID)
	assert.ErrorIs(t, err, catalogerrors.ErrProductNotFound)
}

func Test_UpdateStoresFromProduct(t *testing.T) {
	// given
	f := newFixture(t)
	milk := f.product(t, "Milk")
	a := f.store(t, "A", "BOG")
	b := f.store(t, "B", "SMR")
	c := f.store(t, "C", "MED")
	_, err := f.svc.UpdateStoresFromProduct(f.ctx, milk.ID, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)

	// when
	got, err := f.svc.UpdateStoresFromProduct(f.ctx, milk.ID, []uuid.UUID{c.ID, b.ID})

	// then
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{c.ID, b.ID}, got.Stores)
	storeA, err := f.catalog.Stores().FindByID(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, storeA.Products, "a store dropped from the list loses the product")
	storeC, err := f.catalog.Stores().FindByID(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{milk.ID}, storeC.Products)
	f.assertConsistent(t)
	assert.Equal(t, []string{events.ProductStoresReplacedSubject, events.ProductStoresReplacedSubject}, f.publisher.subjects())
}

func Test_UpdateStoresFromProduct_Clear(t *testing.T) {
	f := newFixture(t)
	milk := f.product(t, "Milk")
	a := f.store(t, "A", "BOG")
	_, err := f.svc.AddStoreToProduct(f.ctx, milk.ID, a.ID)
	require.NoError(t, err)

	got, err := f.svc.UpdateStoresFromProduct(f.ctx, milk.ID, nil)

	require.NoError(t, err)
	assert.NotNil(t, got.Stores)
	assert.Empty(t, got.Stores)
	f.assertConsistent(t)
}

func Test_UpdateStoresFromProduct_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	milk := f.product(t, "Milk")
	a := f.store(t, "A", "BOG")
	b := f.store(t, "B", "SMR")
	_, err := f.svc.AddStoreToProduct(f.ctx, milk.ID, a.ID)
	require.NoError(t, err)

	testCases := []struct {
		name        string
		productID   uuid.UUID
		storeIDs    []uuid.UUID
		expectError error
	}{
		{name: "one store missing", productID: milk.ID, storeIDs: []uuid.UUID{b.ID, uuid.New()}, expectError: catalogerrors.ErrSomeStoresNotFound},
		{name: "repeated id counts as missing", productID: milk.ID, storeIDs: []uuid.UUID{b.ID, b.ID}, expectError: catalogerrors.ErrSomeStoresNotFound},
		{name: "missing product", productID: uuid.New(), storeIDs: []uuid.UUID{b.ID}, expectError: catalogerrors.ErrProductNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.UpdateStoresFromProduct(f.ctx, tc.productID, tc.storeIDs)
			require.ErrorIs(t, err, tc.expectError)
			assert.ErrorIs(t, err, catalogerrors.ErrNotFound)

			product, err := f.catalog.Products().FindByID(f.ctx, milk.ID)
			require.NoError(t, err)
			assert.Equal(t, []uuid.UUID{a.ID}, product.Stores)
			storeB, err := f.catalog.Stores().FindByID(f.ctx, b.ID)
			require.NoError(t, err)
			assert.Empty(t, storeB.Products)
		})
	}
}

func Test_UpdateStoresFromProduct_RollsBackOnStoreWrite(t *testing.T) {
	catalog := memory.NewCatalog()
	svc := NewAssociationService(&failingCatalog{Catalog: catalog}, &recordingPublisher{})
	ctx := context.Background()
	milk, err := catalog.Products().Create(ctx, "Milk", 1, repository.Perishable)
	require.NoError(t, err)
	central, err := catalog.Stores().Create(ctx, "Central", "BOG", "Main St")
	require.NoError(t, err)

	_, err = svc.UpdateStoresFromProduct(ctx, milk.ID, []uuid.UUID{central.ID})

	require.ErrorIs(t, err, errStoreWrite)
	product, err := catalog.Products().FindByID(ctx, milk.ID)
	require.NoError(t, err)
	assert.Empty(t, product.Stores)
}

func Test_DeleteStoreFromProduct(t *testing.T) {
	f := newFixture(t)
	milk := f.product(t, "Milk")
	a := f.store(t, "A", "BOG")
	b := f.store(t, "B", "SMR")
	_, err := f.svc.UpdateStoresFromProduct(f.ctx, milk.ID, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)

	got, err := f.svc.DeleteStoreFromProduct(f.ctx, milk.ID, a.ID)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, got.Stores)
	storeA, err := f.catalog.Stores().FindByID(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, storeA.Products)
	f.assertConsistent(t)
	assert.Contains(t, f.publisher.subjects(), events.StoreRemovedFromProductSubject)
}

func Test_DeleteStoreFromProduct_NotAssociated(t *testing.T) {
	// given
	f := newFixture(t)
	milk := f.product(t, "Milk")
	a := f.store(t, "A", "BOG")
	b := f.store(t, "B", "SMR")
	_, err := f.svc.AddStoreToProduct(f.ctx, milk.ID, a.ID)
	require.NoError(t, err)
	beforeProduct, err := f.catalog.Products().FindByID(f.ctx, milk.ID)
	require.NoError(t, err)
	beforeStore, err := f.catalog.Stores().FindByID(f.ctx, b.ID)
	require.NoError(t, err)

	// when
	_, err = f.svc.DeleteStoreFromProduct(f.ctx, milk.ID, b.ID)

	// then
	require.ErrorIs(t, err, catalogerrors.ErrStoreNotAssociated)
	assert.ErrorIs(t, err, catalogerrors.ErrNotFound)
	afterProduct, err := f.catalog.Products().FindByID(f.ctx, milk.ID)
	require.NoError(t, err)
	afterStore, err := f.catalog.Stores().FindByID(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, beforeProduct, afterProduct)
	assert.Equal(t, beforeStore, afterStore)

	_, err = f.svc.DeleteStoreFromProduct(f.ctx, uuid.New(), a.ID)
	assert.ErrorIs(t, err, catalogerrors.ErrProductNotFound)
	_, err = f.svc.DeleteStoreFromProduct(f.ctx, milk.ID, uuid.New())
	assert.ErrorIs(t, err, catalogerrors.ErrStoreNotFound)
}

// Test_MilkCentralScenario walks the canonical example end to end.
func Test_MilkCentralScenario(t *testing.T) {
	ctx := context.Background()
	catalog := memory.NewCatalog()
	products := NewProductService(catalog)
	stores := NewStoreService(catalog)
	associations := NewAssociationService(catalog, &recordingPublisher{})

	milk, err := products.Create(ctx, ProductCreateDto{Name: "Milk", Price: ptr(2.5), Type: "Perishable"})
	require.NoError(t, err)
	central, err := stores.Create(ctx, StoreCreateDto{Name: "Central", City: "BOG", Address: "Cra 7 #45"})
	require.NoError(t, err)

	withStore, err := associations.AddStoreToProduct(ctx, milk.ID, central.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{central.ID}, withStore.Stores)

	listed, err := associations.FindStoresFromProduct(ctx, milk.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Central", listed[0].Name)
	assert.Equal(t, []uuid.UUID{milk.ID}, listed[0].Products)

	without, err := associations.DeleteStoreFromProduct(ctx, milk.ID, central.ID)
	require.NoError(t, err)
	assert.Empty(t, without.Stores)
	_, err = associations.FindStoresFromProduct(ctx, milk.ID)
	assert.ErrorIs(t, err, catalogerrors.ErrNoStoresForProduct)

	_, err = stores.Create(ctx, StoreCreateDto{Name: "Lower", City: "bog", Address: "x"})
	assert.ErrorIs(t, err, catalogerrors.ErrInvalidCity)
}

func Test_PublishFailureDoesNotFailOperation(t *testing.T) {
	catalog := memory.NewCatalog()
	publisher := &recordingPublisher{err: errors.New("broker down")}
	svc := NewAssociationService(catalog, publisher)
	ctx := context.Background()
	milk, err := catalog.Products().Create(ctx, "Milk", 1, repository.Perishable)
	require.NoError(t, err)
	central, err := catalog.Stores().Create(ctx, "Central", "BOG", "Main St")
	require.NoError(t, err)

	got, err := svc.AddStoreToProduct(ctx, milk.ID, central.ID)

	require.NoError(t, err)
	assert.Len(t, got.Stores, 1)
	assert.Len(t, publisher.subjects(), 1)
}
