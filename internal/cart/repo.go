package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("cart item not found")

type Line struct {
	ID             int64  `json:"id"`
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Repo struct{ DB *pgxpool.Pool }

// Add upserts a cart line: adding the same product again bumps the quantity.
func (r *Repo) Add(ctx context.Context, userID, productID int64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("invalid qty %d", qty)
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items(user_id, product_id, qty)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty`,
		userID, productID, qty)
	return err
}

func (r *Repo) List(ctx context.Context, userID int64) ([]Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT ci.id, ci.product_id, p.name, ci.qty, p.price_cents
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProductName, &l.Qty, &l.UnitPriceCents); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) Remove(ctx context.Context, userID, lineID int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND id = $2`, userID, lineID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
