package service

import (
	"errors"
	"fmt"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
)

// wrap adds op context to infrastructure failures.
// Not-found and validation errors pass through unchanged so their text stays user facing.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, catalogerrors.ErrNotFound) || errors.Is(err, catalogerrors.ErrValidation) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
