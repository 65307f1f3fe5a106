// Package errors provides the error taxonomy for catalog operations.
//
// Every detail error wraps one of the kind errors, so callers can branch on the kind with
// errors.Is and show Error() to the user as the detail text.
package errors

import (
	"errors"
	"fmt"
)

// Kinds.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

var ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
var ErrStoreNotFound = fmt.Errorf("store %w", ErrNotFound)

// ErrNoStoresForProduct is returned when a product exists but none of its store references resolve.
var ErrNoStoresForProduct = fmt.Errorf("no stores associated with product: %w", ErrNotFound)
var ErrStoreNotAssociated = fmt.Errorf("store is not associated with product: %w", ErrNotFound)
var ErrSomeStoresNotFound = fmt.Errorf("some stores were %w", ErrNotFound)

var ErrInvalidCity = fmt.Errorf("city must be a three-letter uppercase code (e.g. SMR, BOG, MED): %w", ErrValidation)
var ErrInvalidProductType = fmt.Errorf("product type must be Perishable or Non-perishable: %w", ErrValidation)
var ErrInvalidProduct = fmt.Errorf("product name must not be empty and price must not be negative: %w", ErrValidation)

var ErrTransactionBegin = errors.New("failed to begin transaction")
var ErrTransactionCommit = errors.New("failed to commit transaction")
var ErrTransactionRollback = errors.New("failed to rollback transaction")
