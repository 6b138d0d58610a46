package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Ingredient stock is decimal: recipes measure in fractional units (ml,
// grams). Quantity is only ever mutated by the order workflow's ledger
// operations and the staff inventory screen.
type Ingredient struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Quantity  decimal.Decimal `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RecipeIngredient is the display projection of one recipe line.
type RecipeIngredient struct {
	IngredientID int64           `json:"ingredient_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	QtyPerUnit   decimal.Decimal `json:"qty_per_unit"`
}
