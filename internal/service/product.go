// Package service provides the catalog business logic: products, stores and the links between them.
package service

import (
	"context"
	"strings"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/google/uuid"
)

// ProductService defines the methods for managing products.
// It abstracts the underlying business logic and data access.
type ProductService interface {
	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*ProductDto, error)

	// FindAll returns all available products.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]ProductDto, error)

	// Create adds a new product to the system.
	// Returns ErrInvalidProductType or ErrInvalidProduct if the input is not acceptable.
	Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error)

	// Update modifies the fields present in the update.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Update(ctx context.Context, id uuid.UUID, product ProductUpdateDto) (*ProductDto, error)

	// DeleteByID removes a product by its ID. Stores referencing it are not touched.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Products implements ProductService.
type Products struct {
	catalog repository.Catalog
}

// NewProductService creates a new instance of ProductService with the provided catalog.
func NewProductService(catalog repository.Catalog) *Products {
	return &Products{catalog: catalog}
}

func (s *Products) FindByID(ctx context.Context, id uuid.UUID) (*ProductDto, error) {
	product, err := s.catalog.Products().FindByID(ctx, id)
	if err != nil {
		return nil, wrap("find product", err)
	}
	return toProductDto(product), nil
}

func (s *Products) FindAll(ctx context.Context) ([]ProductDto, error) {
	list, err := s.catalog.Products().FindAll(ctx)
	if err != nil {
		return nil, wrap("list products", err)
	}
	dtos := make([]ProductDto, len(list))
	for i := range list {
		dtos[i] = *toProductDto(&list[i])
	}
	return dtos, nil
}

func (s *Products) Create(ctx context.Context, dto ProductCreateDto) (*ProductDto, error) {
	productType := repository.ProductType(dto.Type)
	if !productType.Valid() {
		return nil, catalogerrors.ErrInvalidProductType
	}
	if !validName(dto.Name) || dto.Price == nil || *dto.Price < 0 {
		return nil, catalogerrors.ErrInvalidProduct
	}

	created, err := s.catalog.Products().Create(ctx, dto.Name, *dto.Price, productType)
	if err != nil {
		return nil, wrap("create product", err)
	}
	return toProductDto(created), nil
}

func (s *Products) Update(ctx context.Context, id uuid.UUID, dto ProductUpdateDto) (*ProductDto, error) {
	patch := repository.ProductPatch{Name: dto.Name, Price: dto.Price}
	if dto.Type != nil {
		productType := repository.ProductType(*dto.Type)
		if !productType.Valid() {
			return nil, catalogerrors.ErrInvalidProductType
		}
		patch.Type = &productType
	}
	if (dto.Name != nil && !validName(*dto.Name)) || (dto.Price != nil && *dto.Price < 0) {
		return nil, catalogerrors.ErrInvalidProduct
	}

	updated, err := s.catalog.Products().Update(ctx, id, patch)
	if err != nil {
		return nil, wrap("update product", err)
	}
	return toProductDto(updated), nil
}

func (s *Products) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return wrap("delete product", s.catalog.Products().DeleteByID(ctx, id))
}

func validName(name string) bool {
	return strings.TrimSpace(name) != ""
}
