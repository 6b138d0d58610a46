package orders

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart       = errors.New("no cart items selected")
	ErrNotFound        = errors.New("order not found")
	ErrInvalidState    = errors.New("invalid order status transition")
	ErrVoucherNotFound = errors.New("voucher not found")
)

// RecipeMissingError: a product is sellable but has no recipe lines, so its
// stock impact cannot be computed. Order placement must abort on it.
type RecipeMissingError struct {
	ProductID   int64
	ProductName string
}

func (e *RecipeMissingError) Error() string {
	return fmt.Sprintf("product %q has no recipe configured, stock cannot be verified", e.ProductName)
}

// InsufficientStockError is an expected business outcome, not a fault. It
// carries the shortfall so the user sees exactly what ran out.
type InsufficientStockError struct {
	IngredientID int64
	Ingredient   string
	Have         decimal.Decimal
	Need         decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("ingredient %q insufficient, have %s need %s", e.Ingredient, e.Have, e.Need)
}
