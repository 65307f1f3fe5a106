package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/abgdnv/gocatalog/internal/repository/memory"
	"github.com/abgdnv/gocatalog/pkg/messaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event messaging.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Subject())
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}

func Test_ProductService_Create(t *testing.T) {
	testCases := []struct {
		name        string
		dto         ProductCreateDto
		expectError error
	}{
		{
			name: "Success - perishable",
			dto:  ProductCreateDto{Name: "Milk", Price: ptr(2.5), Type: "Perishable"},
		},
		{
			name: "Success - zero price",
			dto:  ProductCreateDto{Name: "Sample", Price: ptr(0.0), Type: "Non-perishable"},
		},
		{
			name:        "Error - unknown type",
			dto:         ProductCreateDto{Name: "Milk", Price: ptr(2.5), Type: "Frozen"},
			expectError: catalogerrors.ErrInvalidProductType,
		},
		{
			name:        "Error - negative price",
			dto:         ProductCreateDto{Name: "Milk", Price: ptr(-1.0), Type: "Perishable"},
			expectError: catalogerrors.ErrInvalidProduct,
		},
		{
			name:        "Error - missing price",
			dto:         ProductCreateDto{Name: "Milk", Type: "Perishable"},
			expectError: catalogerrors.ErrInvalidProduct,
		},
		{
			name:        "Error - blank name",
			dto:         ProductCreateDto{Name: "  ", Price: ptr(1.0), Type: "Perishable"},
			expectError: catalogerrors.ErrInvalidProduct,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			svc := NewProductService(memory.NewCatalog())
			// when
			created, err := svc.Create(context.Background(), tc.dto)
			// then
			if tc.expectError != nil {
				require.ErrorIs(t, err, tc.expectError)
				assert.ErrorIs(t, err, catalogerrors.ErrValidation)
				assert.Nil(t, created)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, created.ID)
			assert.Equal(t, tc.dto.Name, created.Name)
			assert.Equal(t, tc.dto.Type, created.Type)
			assert.Empty(t, created.Stores)
		})
	}
}

func Test_ProductService_CRUD(t *testing.T) {
	ctx := context.Background()
	svc := NewProductService(memory.NewCatalog())

	list, err := svc.FindAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	created, err := svc.Create(ctx, ProductCreateDto{Name: "Milk", Price: ptr(2.5), Type: "Perishable"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, ProductUpdateDto{Price: ptr(3.0)})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, updated.Price, 1e-9)
	assert.Equal(t, "Milk", updated.Name)

	_, err = svc.Update(ctx, created.ID, ProductUpdateDto{Type: ptr("Frozen")})
	assert.ErrorIs(t, err, catalogerrors.ErrInvalidProductType)
	_, err = svc.Update(ctx, created.ID, ProductUpdateDto{Name: ptr("")})
	assert.ErrorIs(t, err, catalogerrors.ErrInvalidProduct)
	_, err = svc.Update(ctx, uuid.New(), ProductUpdateDto{Price: ptr(3.0)})
	assert.ErrorIs(t, err, catalogerrors.ErrProductNotFound)

	found, err := svc.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, found)

	require.NoError(t, svc.DeleteByID(ctx, created.ID))
	_, err = svc.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, catalogerrors.ErrProductNotFound)
	assert.ErrorIs(t, svc.DeleteByID(ctx, created.ID), catalogerrors.ErrNotFound)
}

func Test_StoreService_Create(t *testing.T) {
	testCases := []struct {
		name        string
		city        string
		expectError error
	}{
		{name: "Success - BOG", city: "BOG"},
		{name: "Success - SMR", city: "SMR"},
		{name: "Error - lowercase", city: "bog", expectError: catalogerrors.ErrInvalidCity},
		{name: "Error - too long", city: "BOGO", expectError: catalogerrors.ErrInvalidCity},
		{name: "Error - too short", city: "BO", expectError: catalogerrors.ErrInvalidCity},
		{name: "Error - digit", city: "B0G", expectError: catalogerrors.ErrInvalidCity},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewStoreService(memory.NewCatalog())

			created, err := svc.Create(context.Background(), StoreCreateDto{Name: "Central", City: tc.city, Address: "Main St"})

			if tc.expectError != nil {
				require.ErrorIs(t, err, tc.expectError)
				assert.ErrorIs(t, err, catalogerrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.city, created.City)
			assert.Empty(t, created.Products)
		})
	}
}

func Test_StoreService_CRUD(t *testing.T) {
	ctx := context.Background()
	svc := NewStoreService(memory.NewCatalog())

	created, err := svc.Create(ctx, StoreCreateDto{Name: "Central", City: "BOG", Address: "Main St"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, StoreUpdateDto{City: ptr("med")})
	assert.ErrorIs(t, err, catalogerrors.ErrInvalidCity)

	updated, err := svc.Update(ctx, created.ID, StoreUpdateDto{City: ptr("MED"), Address: ptr("2nd Ave")})
	require.NoError(t, err)
	assert.Equal(t, "MED", updated.City)
	assert.Equal(t, "2nd Ave", updated.Address)
	assert.Equal(t, "Central", updated.Name)

	list, err := svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Update(ctx, uuid.New(), StoreUpdateDto{Name: ptr("x")})
	assert.ErrorIs(t, err, catalogerrors.ErrStoreNotFound)

	require.NoError(t, svc.DeleteByID(ctx, created.ID))
	_, err = svc.FindByID(ctx, created.ID)
	assert.ErrorIs(t, err, catalogerrors.ErrStoreNotFound)
}

// failingCatalog fails every store reference write made inside a transaction.
type failingCatalog struct {
	repository.Catalog
}

var errStoreWrite = errors.New("store write failed")

func (c *failingCatalog) InTx(ctx context.Context, fn func(tx repository.Catalog) error) error {
	return c.Catalog.InTx(ctx, func(tx repository.Catalog) error {
		return fn(&failingTx{Catalog: tx})
	})
}

type failingTx struct {
	repository.Catalog
}

func (t *failingTx) Stores() repository.StoreRepository {
	return &failingStores{StoreRepository: t.Catalog.Stores()}
}

type failingStores struct {
	repository.StoreRepository
}

func (s *failingStores) SetProducts(_ context.Context, _ uuid.UUID, _ []uuid.UUID) (*repository.Store, error) {
	return nil, errStoreWrite
}
