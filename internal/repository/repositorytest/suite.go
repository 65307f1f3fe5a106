// Package repositorytest holds a conformance suite run against every repository.Catalog adapter.
package repositorytest

import (
	"context"
	"errors"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// CatalogSuite exercises the repository contract. Adapters embed it, set Catalog in
// SetupSuite and clear their collections in Reset.
type CatalogSuite struct {
	suite.Suite
	Catalog repository.Catalog
	Ctx     context.Context
	Reset   func()
}

// SetupTest empties the collections before each test.
func (s *CatalogSuite) SetupTest() {
	if s.Ctx == nil {
		s.Ctx = context.Background()
	}
	if s.Reset != nil {
		s.Reset()
	}
}

func (s *CatalogSuite) createProduct(name string) *repository.Product {
	s.T().Helper()
	p, err := s.Catalog.Products().Create(s.Ctx, name, 2.5, repository.Perishable)
	require.NoError(s.T(), err, "createProduct helper failed")
	return p
}

func (s *CatalogSuite) createStore(name, city string) *repository.Store {
	s.T().Helper()
	st, err := s.Catalog.Stores().Create(s.Ctx, name, city, "Main St")
	require.NoError(s.T(), err, "createStore helper failed")
	return st
}

func (s *CatalogSuite) TestProductCreateAndFind() {
	// given
	created, err := s.Catalog.Products().Create(s.Ctx, "Milk", 2.5, repository.Perishable)
	require.NoError(s.T(), err)

	// when
	found, err := s.Catalog.Products().FindByID(s.Ctx, created.ID)

	// then
	require.NoError(s.T(), err)
	require.NotEqual(s.T(), uuid.Nil, created.ID)
	require.Equal(s.T(), "Milk", found.Name)
	require.InDelta(s.T(), 2.5, found.Price, 1e-9)
	require.Equal(s.T(), repository.Perishable, found.Type)
	require.NotNil(s.T(), found.Stores)
	require.Empty(s.T(), found.Stores)
}

func (s *CatalogSuite) TestProductFindByID_NotFound() {
	_, err := s.Catalog.Products().FindByID(s.Ctx, uuid.New())
	require.ErrorIs(s.T(), err, catalogerrors.ErrProductNotFound)
}

func (s *CatalogSuite) TestProductFindAll() {
	all, err := s.Catalog.Products().FindAll(s.Ctx)
	require.NoError(s.T(), err)
	require.Empty(s.T(), all)

	s.createProduct("Milk")
	s.createProduct("Rice")

	all, err = s.Catalog.Products().FindAll(s.Ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 2)
}

func (s *CatalogSuite) TestProductUpdate() {
	p := s.createProduct("Milk")
	name := "Whole milk"
	nonPerishable := repository.NonPerishable

	testCases := []struct {
		name        string
		id          uuid.UUID
		patch       repository.ProductPatch
		expectedErr error
		postCheck   func(updated *repository.Product)
	}{
		{
			name:  "partial update keeps other fields",
			id:    p.ID,
			patch: repository.ProductPatch{Name: &name},
			postCheck: func(updated *repository.Product) {
				s.Equal(name, updated.Name)
				s.InDelta(2.5, updated.Price, 1e-9)
				s.Equal(repository.Perishable, updated.Type)
			},
		},
		{
			name:  "type update",
			id:    p.ID,
			patch: repository.ProductPatch{Type: &nonPerishable},
			postCheck: func(updated *repository.Product) {
				s.Equal(repository.NonPerishable, updated.Type)
				s.Equal(name, updated.Name)
			},
		},
		{
			name:        "missing product",
			id:          uuid.New(),
			patch:       repository.ProductPatch{Name: &name},
			expectedErr: catalogerrors.ErrProductNotFound,
		},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			updated, err := s.Catalog.Products().Update(s.Ctx, tc.id, tc.patch)
			if tc.expectedErr != nil {
				s.Require().ErrorIs(err, tc.expectedErr)
				s.Nil(updated)
				return
			}
			s.Require().NoError(err)
			tc.postCheck(updated)
		})
	}
}

func (s *CatalogSuite) TestProductDelete() {
	p := s.createProduct("Milk")

	require.NoError(s.T(), s.Catalog.Products().DeleteByID(s.Ctx, p.ID))
	_, err := s.Catalog.Products().FindByID(s.Ctx, p.ID)
	require.ErrorIs(s.T(), err, catalogerrors.ErrProductNotFound)

	err = s.Catalog.Products().DeleteByID(s.Ctx, p.ID)
	require.ErrorIs(s.T(), err, catalogerrors.ErrProductNotFound)
}

func (s *CatalogSuite) TestStoreCRUD() {
	st := s.createStore("Central", "BOG")
	require.Equal(s.T(), "BOG", st.City)
	require.Empty(s.T(), st.Products)

	city := "MED"
	updated, err := s.Catalog.Stores().Update(s.Ctx, st.ID, repository.StorePatch{City: &city})
	require.NoError(s.T(), err)
	require.Equal(s.T(), "MED", updated.City)
	require.Equal(s.T(), "Central", updated.Name)
	require.Equal(s.T(), "Main St", updated.Address)

	all, err := s.Catalog.Stores().FindAll(s.Ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 1)

	require.NoError(s.T(), s.Catalog.Stores().DeleteByID(s.Ctx, st.ID))
	_, err = s.Catalog.Stores().FindByID(s.Ctx, st.ID)
	require.ErrorIs(s.T(), err, catalogerrors.ErrStoreNotFound)
	_, err = s.Catalog.Stores().Update(s.Ctx, st.ID, repository.StorePatch{City: &city})
	require.ErrorIs(s.T(), err, catalogerrors.ErrStoreNotFound)
	require.ErrorIs(s.T(), s.Catalog.Stores().DeleteByID(s.Ctx, st.ID), catalogerrors.ErrStoreNotFound)
}

func (s *CatalogSuite) TestStoreFindByIDs_SkipsMissing() {
	a := s.createStore("A", "BOG")
	b := s.createStore("B", "SMR")

	found, err := s.Catalog.Stores().FindByIDs(s.Ctx, []uuid.UUID{a.ID, uuid.New(), b.ID})
	require.NoError(s.T(), err)
	require.Len(s.T(), found, 2)

	found, err = s.Catalog.Stores().FindByIDs(s.Ctx, []uuid.UUID{})
	require.NoError(s.T(), err)
	require.Empty(s.T(), found)
}

func (s *CatalogSuite) TestSetReferencesKeepsOrder() {
	p := s.createProduct("Milk")
	a := s.createStore("A", "BOG")
	b := s.createStore("B", "SMR")
	ids := []uuid.UUID{b.ID, a.ID}

	updated, err := s.Catalog.Products().SetStores(s.Ctx, p.ID, ids)
	require.NoError(s.T(), err)
	require.Equal(s.T(), ids, updated.Stores)

	found, err := s.Catalog.Products().FindByID(s.Ctx, p.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), ids, found.Stores)

	st, err := s.Catalog.Stores().SetProducts(s.Ctx, a.ID, []uuid.UUID{p.ID})
	require.NoError(s.T(), err)
	require.Equal(s.T(), []uuid.UUID{p.ID}, st.Products)

	_, err = s.Catalog.Products().SetStores(s.Ctx, uuid.New(), ids)
	require.ErrorIs(s.T(), err, catalogerrors.ErrProductNotFound)
	_, err = s.Catalog.Stores().SetProducts(s.Ctx, uuid.New(), nil)
	require.ErrorIs(s.T(), err, catalogerrors.ErrStoreNotFound)
}

func (s *CatalogSuite) TestInTx_Commit() {
	p := s.createProduct("Milk")
	st := s.createStore("Central", "BOG")

	err := s.Catalog.InTx(s.Ctx, func(tx repository.Catalog) error {
		if _, err := tx.Products().SetStores(s.Ctx, p.ID, []uuid.UUID{st.ID}); err != nil {
			return err
		}
		_, err := tx.Stores().SetProducts(s.Ctx, st.ID, []uuid.UUID{p.ID})
		return err
	})
	require.NoError(s.T(), err)

	foundProduct, err := s.Catalog.Products().FindByID(s.Ctx, p.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), []uuid.UUID{st.ID}, foundProduct.Stores)
	foundStore, err := s.Catalog.Stores().FindByID(s.Ctx, st.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), []uuid.UUID{p.ID}, foundStore.Products)
}

func (s *CatalogSuite) TestInTx_RollbackOnError() {
	p := s.createProduct("Milk")
	st := s.createStore("Central", "BOG")
	errBoom := errors.New("boom")

	err := s.Catalog.InTx(s.Ctx, func(tx repository.Catalog) error {
		if _, err := tx.Products().SetStores(s.Ctx, p.ID, []uuid.UUID{st.ID}); err != nil {
			return err
		}
		// the first write is visible inside the transaction
		inside, err := tx.Products().FindByID(s.Ctx, p.ID)
		if err != nil {
			return err
		}
		if len(inside.Stores) != 1 {
			return errors.New("write not visible inside transaction")
		}
		return errBoom
	})
	require.ErrorIs(s.T(), err, errBoom)

	found, err := s.Catalog.Products().FindByID(s.Ctx, p.ID)
	require.NoError(s.T(), err)
	require.Empty(s.T(), found.Stores, "rolled back write must not be visible")
}

func (s *CatalogSuite) TestInTx_NotFoundInsideTx() {
	err := s.Catalog.InTx(s.Ctx, func(tx repository.Catalog) error {
		_, err := tx.Stores().FindByID(s.Ctx, uuid.New())
		return err
	})
	require.ErrorIs(s.T(), err, catalogerrors.ErrStoreNotFound)
}
