package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Ssanntii/Stock-Final-UTN/internal/domain"
)

var ErrInvalidCart = errors.New("cart is empty or contains malformed items")

// ProductNotFoundError reports cart lines referencing ids that do not exist.
// Nothing was mutated when this is returned.
type ProductNotFoundError struct {
	MissingIDs []int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("one or more products do not exist: %v", e.MissingIDs)
}

// InsufficientStockError carries every conflicting line of the cart, not just
// the first one, so the caller can show all shortages at once.
type InsufficientStockError struct {
	Conflicts []domain.StockConflict
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = fmt.Sprintf("%s: insufficient stock (available: %d, requested: %d)", c.Name, c.Available, c.Requested)
	}
	return strings.Join(parts, "; ")
}
