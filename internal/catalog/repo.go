package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrIngredientInUse blocks deleting an ingredient that a recipe still
	// references.
	ErrIngredientInUse = errors.New("ingredient is used by a recipe and cannot be deleted")
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, category, price_cents, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetRecipe returns the full ingredient list to produce one unit of a
// product. Pure read; an empty result is the caller's problem to interpret.
func (r *Repo) GetRecipe(ctx context.Context, productID int64) ([]RecipeIngredient, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT rl.ingredient_id, i.name, i.unit, rl.qty_per_unit::text
		FROM recipe_lines rl
		JOIN ingredients i ON i.id = rl.ingredient_id
		WHERE rl.product_id = $1
		ORDER BY rl.ingredient_id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecipeIngredient
	for rows.Next() {
		var ri RecipeIngredient
		var qty string
		if err := rows.Scan(&ri.IngredientID, &ri.Name, &ri.Unit, &qty); err != nil {
			return nil, err
		}
		if ri.QtyPerUnit, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("recipe qty: %w", err)
		}
		out = append(out, ri)
	}
	return out, rows.Err()
}

func (r *Repo) ListIngredients(ctx context.Context, search string) ([]Ingredient, error) {
	q := `SELECT id, name, unit, quantity::text, created_at, updated_at FROM ingredients`
	args := []any{}
	if search != "" {
		q += ` WHERE name ILIKE '%' || $1 || '%'`
		args = append(args, search)
	}
	q += ` ORDER BY id DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ingredient
	for rows.Next() {
		var ing Ingredient
		var qty string
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Unit, &qty, &ing.CreatedAt, &ing.UpdatedAt); err != nil {
			return nil, err
		}
		if ing.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

func (r *Repo) CreateIngredient(ctx context.Context, name, unit string, quantity decimal.Decimal) (Ingredient, error) {
	ing := Ingredient{Name: name, Unit: unit, Quantity: quantity}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO ingredients(name, unit, quantity)
		VALUES ($1, $2, $3::numeric)
		RETURNING id, created_at, updated_at`,
		name, unit, quantity.String(),
	).Scan(&ing.ID, &ing.CreatedAt, &ing.UpdatedAt)
	return ing, err
}

// UpdateIngredient is the staff restock/edit path. It overwrites quantity
// directly; it is not a ledger operation and must not run concurrently with
// itself for the same row in any meaningful way beyond last-write-wins.
func (r *Repo) UpdateIngredient(ctx context.Context, id int64, name, unit string, quantity decimal.Decimal) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE ingredients SET name = $2, unit = $3, quantity = $4::numeric, updated_at = now()
		WHERE id = $1`, id, name, unit, quantity.String())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteIngredient(ctx context.Context, id int64) error {
	var used bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM recipe_lines WHERE ingredient_id = $1)`, id).Scan(&used)
	if err != nil {
		return err
	}
	if used {
		return ErrIngredientInUse
	}
	ct, err := r.DB.Exec(ctx, `DELETE FROM ingredients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
