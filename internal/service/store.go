package service

import (
	"context"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/google/uuid"
)

// StoreService defines the methods for managing stores.
type StoreService interface {
	// FindByID returns ErrStoreNotFound if no store exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*StoreDto, error)

	// FindAll returns all stores; an empty slice if none exist.
	FindAll(ctx context.Context) ([]StoreDto, error)

	// Create returns ErrInvalidCity unless the city is a three-letter uppercase code.
	Create(ctx context.Context, store StoreCreateDto) (*StoreDto, error)

	// Update modifies the fields present in the update, re-validating the city.
	// Returns ErrStoreNotFound if no store exists with the given ID.
	Update(ctx context.Context, id uuid.UUID, store StoreUpdateDto) (*StoreDto, error)

	// DeleteByID removes a store. Products referencing it are not touched.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Stores implements StoreService.
type Stores struct {
	catalog repository.Catalog
}

func NewStoreService(catalog repository.Catalog) *Stores {
	return &Stores{catalog: catalog}
}

func (s *Stores) FindByID(ctx context.Context, id uuid.UUID) (*StoreDto, error) {
	store, err := s.catalog.Stores().FindByID(ctx, id)
	if err != nil {
		return nil, wrap("find store", err)
	}
	return toStoreDto(store), nil
}

func (s *Stores) FindAll(ctx context.Context) ([]StoreDto, error) {
	list, err := s.catalog.Stores().FindAll(ctx)
	if err != nil {
		return nil, wrap("list stores", err)
	}
	dtos := make([]StoreDto, len(list))
	for i := range list {
		dtos[i] = *toStoreDto(&list[i])
	}
	return dtos, nil
}

func (s *Stores) Create(ctx context.Context, dto StoreCreateDto) (*StoreDto, error) {
	if !repository.IsCityCode(dto.City) {
		return nil, catalogerrors.ErrInvalidCity
	}
	created, err := s.catalog.Stores().Create(ctx, dto.Name, dto.City, dto.Address)
	if err != nil {
		return nil, wrap("create store", err)
	}
	return toStoreDto(created), nil
}

func (s *Stores) Update(ctx context.Context, id uuid.UUID, dto StoreUpdateDto) (*StoreDto, error) {
	if dto.City != nil && !repository.IsCityCode(*dto.City) {
		return nil, catalogerrors.ErrInvalidCity
	}
	updated, err := s.catalog.Stores().Update(ctx, id, repository.StorePatch{
		Name:    dto.Name,
		City:    dto.City,
		Address: dto.Address,
	})
	if err != nil {
		return nil, wrap("update store", err)
	}
	return toStoreDto(updated), nil
}

func (s *Stores) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return wrap("delete store", s.catalog.Stores().DeleteByID(ctx, id))
}
