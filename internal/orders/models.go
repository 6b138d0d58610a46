package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            string     `json:"id"`
	UserID        int64      `json:"user_id"`
	Status        Status     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	PaymentStatus string     `json:"payment_status"`
	TotalCents    int64      `json:"total_cents"`
	VoucherID     *int64     `json:"voucher_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

const (
	PaymentUnpaid = "Unpaid"
	PaymentPaid   = "Paid"
)

type OrderLine struct {
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// ItemInput is a direct (POS) order line request.
type ItemInput struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

// PricedLine is the checkout projection of one cart or POS line: quantity
// plus the product's price at this instant, which becomes the snapshot.
type PricedLine struct {
	ProductID      int64
	ProductName    string
	Qty            int
	UnitPriceCents int64
}

// RecipeLine: ingredient requirement to produce one unit of a product.
type RecipeLine struct {
	ProductID    int64
	IngredientID int64
	QtyPerUnit   decimal.Decimal
}

// Requirement is the aggregated need of one ingredient across a whole order.
type Requirement struct {
	IngredientID int64
	Qty          decimal.Decimal
}

type Voucher struct {
	ID             int64
	Code           string
	PercentOff     int
	AmountOffCents int64
}

type OrderSummary struct {
	ID            string    `json:"id"`
	Status        Status    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	TotalCents    int64     `json:"total_cents"`
	CreatedAt     time.Time `json:"created_at"`
}

type OrderDetail struct {
	Order
	Items []OrderLine `json:"items"`
}

type AdminOrder struct {
	OrderDetail
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}
