package service

import (
	"github.com/abgdnv/gocatalog/internal/repository"
	"github.com/google/uuid"
)

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID     uuid.UUID   `json:"id"`
	Name   string      `json:"name"`
	Price  float64     `json:"price"`
	Type   string      `json:"type"`
	Stores []uuid.UUID `json:"stores"`
}

// ProductCreateDto represents the data transfer object for creating a new product.
// Price is a pointer so that a missing price can be told apart from a zero price.
type ProductCreateDto struct {
	Name  string   `json:"name"  validate:"required,max=100"`
	Price *float64 `json:"price" validate:"required,gte=0"`
	Type  string   `json:"type"  validate:"required,oneof=Perishable Non-perishable"`
}

// ProductUpdateDto carries a partial product update. Absent fields are left untouched.
type ProductUpdateDto struct {
	Name  *string  `json:"name,omitempty"  validate:"omitempty,max=100"`
	Price *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Type  *string  `json:"type,omitempty"  validate:"omitempty,oneof=Perishable Non-perishable"`
}

// StoreDto represents the data transfer object for a store.
type StoreDto struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	City     string      `json:"city"`
	Address  string      `json:"address"`
	Products []uuid.UUID `json:"products"`
}

// StoreCreateDto represents the data transfer object for creating a new store.
type StoreCreateDto struct {
	Name    string `json:"name"    validate:"required,max=100"`
	City    string `json:"city"    validate:"required,citycode"`
	Address string `json:"address" validate:"required,max=200"`
}

// StoreUpdateDto carries a partial store update. Absent fields are left untouched.
type StoreUpdateDto struct {
	Name    *string `json:"name,omitempty"    validate:"omitempty,max=100"`
	City    *string `json:"city,omitempty"    validate:"omitempty,citycode"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=200"`
}

func toProductDto(p *repository.Product) *ProductDto {
	if p == nil {
		return nil
	}
	stores := p.Stores
	if stores == nil {
		stores = []uuid.UUID{}
	}
	return &ProductDto{
		ID:     p.ID,
		Name:   p.Name,
		Price:  p.Price,
		Type:   string(p.Type),
		Stores: stores,
	}
}

func toStoreDto(s *repository.Store) *StoreDto {
	if s == nil {
		return nil
	}
	products := s.Products
	if products == nil {
		products = []uuid.UUID{}
	}
	return &StoreDto{
		ID:       s.ID,
		Name:     s.Name,
		City:     s.City,
		Address:  s.Address,
		Products: products,
	}
}
