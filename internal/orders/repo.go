package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB *pgxpool.Pool }

// CreateOrderFromCart converts the selected cart lines of a user into a
// Pending order inside one transaction: snapshot prices, resolve recipes,
// lock and debit ingredient stock, insert order + items, delete the consumed
// cart lines. Any failure rolls the whole thing back — a partial stock debit
// with no resulting order is never observable.
func (r *Repo) CreateOrderFromCart(ctx context.Context, userID int64, cartItemIDs []int64, paymentMethod string, voucherID *int64) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// price comes from the products table inside the tx, never from the client
	rows, err := tx.Query(ctx, `
		SELECT ci.id, ci.product_id, p.name, ci.qty, p.price_cents
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1 AND ci.id = ANY($2)`, userID, cartItemIDs)
	if err != nil {
		return Order{}, err
	}
	var lines []PricedLine
	var consumedIDs []int64
	for rows.Next() {
		var id int64
		var l PricedLine
		if err := rows.Scan(&id, &l.ProductID, &l.ProductName, &l.Qty, &l.UnitPriceCents); err != nil {
			rows.Close()
			return Order{}, err
		}
		lines = append(lines, l)
		consumedIDs = append(consumedIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Order{}, err
	}
	if len(lines) == 0 {
		return Order{}, ErrEmptyCart
	}

	o, err := r.createOrderInTx(ctx, tx, userID, lines, paymentMethod, PaymentUnpaid, StatusPending, voucherID)
	if err != nil {
		return Order{}, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`, userID, consumedIDs); err != nil {
		return Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

// CreatePosOrder is the counter flow: staff ring up explicit items against
// the shared guest account, the drink is handed over right away, so the
// order is born Completed and Paid. Stock is debited exactly like the cart
// flow.
func (r *Repo) CreatePosOrder(ctx context.Context, guestID int64, items []ItemInput, paymentMethod string) (Order, error) {
	if len(items) == 0 {
		return Order{}, ErrEmptyCart
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	productIDs := make([]int64, 0, len(items))
	for _, it := range items {
		if it.Qty <= 0 {
			return Order{}, fmt.Errorf("invalid qty for product %d", it.ProductID)
		}
		productIDs = append(productIDs, it.ProductID)
	}

	rows, err := tx.Query(ctx, `SELECT id, name, price_cents FROM products WHERE id = ANY($1)`, productIDs)
	if err != nil {
		return Order{}, err
	}
	type priced struct {
		name  string
		price int64
	}
	prices := map[int64]priced{}
	for rows.Next() {
		var id int64
		var p priced
		if err := rows.Scan(&id, &p.name, &p.price); err != nil {
			rows.Close()
			return Order{}, err
		}
		prices[id] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Order{}, err
	}

	lines := make([]PricedLine, 0, len(items))
	for _, it := range items {
		p, ok := prices[it.ProductID]
		if !ok {
			return Order{}, fmt.Errorf("product not found: %d", it.ProductID)
		}
		lines = append(lines, PricedLine{ProductID: it.ProductID, ProductName: p.name, Qty: it.Qty, UnitPriceCents: p.price})
	}

	o, err := r.createOrderInTx(ctx, tx, guestID, lines, paymentMethod, PaymentPaid, StatusCompleted, nil)
	if err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return o, nil
}

// createOrderInTx is the shared tail of both creation flows: recipe
// resolution, stock debit, voucher discount, order + item inserts.
func (r *Repo) createOrderInTx(ctx context.Context, tx pgx.Tx, userID int64, lines []PricedLine, paymentMethod, paymentStatus string, status Status, voucherID *int64) (Order, error) {
	productIDs := make([]int64, 0, len(lines))
	for _, l := range lines {
		productIDs = append(productIDs, l.ProductID)
	}
	recipes, err := loadRecipes(ctx, tx, productIDs)
	if err != nil {
		return Order{}, err
	}

	reqs, err := AggregateRequirements(lines, recipes)
	if err != nil {
		return Order{}, err
	}
	if err := debitStock(ctx, tx, reqs); err != nil {
		return Order{}, err
	}

	total := TotalCents(lines)
	if voucherID != nil {
		v, err := loadVoucher(ctx, tx, *voucherID)
		if err != nil {
			return Order{}, err
		}
		total = ApplyVoucher(total, &v)
	}

	o := Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Status:        status,
		PaymentMethod: paymentMethod,
		PaymentStatus: paymentStatus,
		TotalCents:    total,
		VoucherID:     voucherID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, status, payment_method, payment_status, total_cents, voucher_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		o.ID, o.UserID, o.Status, o.PaymentMethod, o.PaymentStatus, o.TotalCents, o.VoucherID,
	).Scan(&o.CreatedAt)
	if err != nil {
		return Order{}, err
	}

	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, unit_price_cents)
			VALUES ($1, $2, $3, $4)`,
			o.ID, l.ProductID, l.Qty, l.UnitPriceCents,
		); err != nil {
			return Order{}, err
		}
	}
	return o, nil
}

func loadRecipes(ctx context.Context, tx pgx.Tx, productIDs []int64) (map[int64][]RecipeLine, error) {
	rows, err := tx.Query(ctx, `
		SELECT product_id, ingredient_id, qty_per_unit::text
		FROM recipe_lines WHERE product_id = ANY($1)`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64][]RecipeLine{}
	for rows.Next() {
		var rl RecipeLine
		var qty string
		if err := rows.Scan(&rl.ProductID, &rl.IngredientID, &qty); err != nil {
			return nil, err
		}
		if rl.QtyPerUnit, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("recipe qty for product %d: %w", rl.ProductID, err)
		}
		out[rl.ProductID] = append(out[rl.ProductID], rl)
	}
	return out, rows.Err()
}

// debitStock is the ledger debit: lock each ingredient row (FOR UPDATE),
// check sufficiency against the locked value, then decrement. Requirements
// arrive sorted by ingredient id, so concurrent orders take the same lock
// order and serialize instead of deadlocking. The first shortfall aborts;
// the surrounding rollback undoes every debit made so far.
func debitStock(ctx context.Context, tx pgx.Tx, reqs []Requirement) error {
	for _, req := range reqs {
		var name, haveStr string
		err := tx.QueryRow(ctx, `SELECT name, quantity::text FROM ingredients WHERE id = $1 FOR UPDATE`, req.IngredientID).
			Scan(&name, &haveStr)
		if err != nil {
			return fmt.Errorf("lock ingredient %d: %w", req.IngredientID, err)
		}
		have, err := decimal.NewFromString(haveStr)
		if err != nil {
			return fmt.Errorf("ingredient %d quantity: %w", req.IngredientID, err)
		}
		if have.LessThan(req.Qty) {
			return &InsufficientStockError{IngredientID: req.IngredientID, Ingredient: name, Have: have, Need: req.Qty}
		}
		if _, err := tx.Exec(ctx, `
			UPDATE ingredients SET quantity = quantity - $2::numeric, updated_at = now()
			WHERE id = $1`, req.IngredientID, req.Qty.String()); err != nil {
			return err
		}
	}
	return nil
}

func loadVoucher(ctx context.Context, tx pgx.Tx, id int64) (Voucher, error) {
	var v Voucher
	err := tx.QueryRow(ctx, `SELECT id, code, percent_off, amount_off_cents FROM vouchers WHERE id = $1`, id).
		Scan(&v.ID, &v.Code, &v.PercentOff, &v.AmountOffCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, ErrVoucherNotFound
	}
	return v, err
}

// CancelOrder flips a Pending order to Cancelled and credits every debited
// ingredient back, in one transaction. The credit amounts are recomputed
// from the order lines and current recipes as a flat projection, grouped
// per ingredient — mirroring what was debited at creation.
func (r *Repo) CancelOrder(ctx context.Context, orderID string, userID int64) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE`, orderID, userID).
		Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != StatusPending {
		return fmt.Errorf("%w: order is %s, only pending orders can be cancelled", ErrInvalidState, status)
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		orderID, StatusCancelled); err != nil {
		return err
	}

	rows, err := tx.Query(ctx, `
		SELECT rl.ingredient_id, (SUM(rl.qty_per_unit * oi.qty))::text
		FROM order_items oi
		JOIN recipe_lines rl ON rl.product_id = oi.product_id
		WHERE oi.order_id = $1
		GROUP BY rl.ingredient_id
		ORDER BY rl.ingredient_id`, orderID)
	if err != nil {
		return err
	}
	var credits []Requirement
	for rows.Next() {
		var c Requirement
		var qty string
		if err := rows.Scan(&c.IngredientID, &qty); err != nil {
			rows.Close()
			return err
		}
		if c.Qty, err = decimal.NewFromString(qty); err != nil {
			rows.Close()
			return err
		}
		credits = append(credits, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	// credit is unconditional, no upper bound
	for _, c := range credits {
		if _, err := tx.Exec(ctx, `
			UPDATE ingredients SET quantity = quantity + $2::numeric, updated_at = now()
			WHERE id = $1`, c.IngredientID, c.Qty.String()); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// UpdateStatus is the staff transition endpoint. It validates against the
// state machine and never touches stock. Returns the previous status.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, next Status) (Status, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if !CanTransition(cur, next) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidState, cur, next)
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, orderID, next); err != nil {
		return "", err
	}
	return cur, tx.Commit(ctx)
}

func (r *Repo) GetStatus(ctx context.Context, orderID string) (Status, error) {
	var s Status
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return s, err
}

func (r *Repo) GetMyOrders(ctx context.Context, userID int64, limit, offset int) ([]OrderSummary, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, status, payment_status, total_cents, created_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderSummary
	for rows.Next() {
		var s OrderSummary
		if err := rows.Scan(&s.ID, &s.Status, &s.PaymentStatus, &s.TotalCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) GetMyOrder(ctx context.Context, userID int64, orderID string) (OrderDetail, error) {
	var d OrderDetail
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, status, payment_method, payment_status, total_cents, voucher_id, created_at, updated_at
		FROM orders WHERE id = $1 AND user_id = $2`, orderID, userID).
		Scan(&d.ID, &d.UserID, &d.Status, &d.PaymentMethod, &d.PaymentStatus, &d.TotalCents, &d.VoucherID, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderDetail{}, ErrNotFound
	}
	if err != nil {
		return OrderDetail{}, err
	}
	d.Items, err = r.orderItems(ctx, orderID)
	return d, err
}

func (r *Repo) orderItems(ctx context.Context, orderID string) ([]OrderLine, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT oi.product_id, p.name, oi.qty, oi.unit_price_cents
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Qty, &l.UnitPriceCents); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListAdminOrders returns a page of orders with customer info and items,
// optionally filtered by status.
func (r *Repo) ListAdminOrders(ctx context.Context, status *Status, limit, offset int) ([]AdminOrder, error) {
	q := `
		SELECT o.id, o.user_id, o.status, o.payment_method, o.payment_status,
		       o.total_cents, o.voucher_id, o.created_at, o.updated_at,
		       u.name, u.phone
		FROM orders o
		JOIN users u ON u.id = o.user_id`
	args := []any{limit, offset}
	if status != nil {
		q += ` WHERE o.status = $3`
		args = append(args, *status)
	}
	q += ` ORDER BY o.created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminOrder
	var ids []string
	for rows.Next() {
		var a AdminOrder
		if err := rows.Scan(&a.ID, &a.UserID, &a.Status, &a.PaymentMethod, &a.PaymentStatus,
			&a.TotalCents, &a.VoucherID, &a.CreatedAt, &a.UpdatedAt,
			&a.CustomerName, &a.CustomerPhone); err != nil {
			return nil, err
		}
		out = append(out, a)
		ids = append(ids, a.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	itemRows, err := r.DB.Query(ctx, `
		SELECT oi.order_id, oi.product_id, p.name, oi.qty, oi.unit_price_cents
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	byOrder := map[string][]OrderLine{}
	for itemRows.Next() {
		var oid string
		var l OrderLine
		if err := itemRows.Scan(&oid, &l.ProductID, &l.ProductName, &l.Qty, &l.UnitPriceCents); err != nil {
			return nil, err
		}
		byOrder[oid] = append(byOrder[oid], l)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = byOrder[out[i].ID]
	}
	return out, nil
}
