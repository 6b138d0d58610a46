package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAggregateRequirements(t *testing.T) {
	// two lattes and one cappuccino sharing milk and coffee
	lines := []PricedLine{
		{ProductID: 1, ProductName: "Latte", Qty: 2, UnitPriceCents: 4500},
		{ProductID: 2, ProductName: "Cappuccino", Qty: 1, UnitPriceCents: 5000},
	}
	recipes := map[int64][]RecipeLine{
		1: {
			{ProductID: 1, IngredientID: 10, QtyPerUnit: dec("200")}, // milk ml
			{ProductID: 1, IngredientID: 20, QtyPerUnit: dec("18")},  // coffee g
		},
		2: {
			{ProductID: 2, IngredientID: 10, QtyPerUnit: dec("120")},
			{ProductID: 2, IngredientID: 20, QtyPerUnit: dec("18")},
			{ProductID: 2, IngredientID: 30, QtyPerUnit: dec("5")}, // cocoa g
		},
	}

	reqs, err := AggregateRequirements(lines, recipes)
	require.NoError(t, err)
	require.Len(t, reqs, 3)

	// sorted by ingredient id, summed across products
	assert.Equal(t, int64(10), reqs[0].IngredientID)
	assert.True(t, reqs[0].Qty.Equal(dec("520")), "milk: got %s", reqs[0].Qty) // 2*200 + 1*120
	assert.Equal(t, int64(20), reqs[1].IngredientID)
	assert.True(t, reqs[1].Qty.Equal(dec("54")), "coffee: got %s", reqs[1].Qty) // 2*18 + 1*18
	assert.Equal(t, int64(30), reqs[2].IngredientID)
	assert.True(t, reqs[2].Qty.Equal(dec("5")))
}

func TestAggregateRequirementsDecimalExact(t *testing.T) {
	// 0.1 syrup per unit, 3 units: must be exactly 0.3, no float drift
	lines := []PricedLine{{ProductID: 1, ProductName: "Soda", Qty: 3, UnitPriceCents: 2000}}
	recipes := map[int64][]RecipeLine{
		1: {{ProductID: 1, IngredientID: 7, QtyPerUnit: dec("0.1")}},
	}

	reqs, err := AggregateRequirements(lines, recipes)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Qty.Equal(dec("0.3")), "got %s", reqs[0].Qty)
}

func TestAggregateRequirementsMissingRecipe(t *testing.T) {
	lines := []PricedLine{
		{ProductID: 1, ProductName: "Latte", Qty: 1, UnitPriceCents: 4500},
		{ProductID: 9, ProductName: "Mystery Drink", Qty: 1, UnitPriceCents: 100},
	}
	recipes := map[int64][]RecipeLine{
		1: {{ProductID: 1, IngredientID: 10, QtyPerUnit: dec("200")}},
	}

	_, err := AggregateRequirements(lines, recipes)
	var missing *RecipeMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, int64(9), missing.ProductID)
	assert.Contains(t, missing.Error(), "Mystery Drink")
}

func TestTotalCents(t *testing.T) {
	lines := []PricedLine{
		{ProductID: 1, Qty: 2, UnitPriceCents: 4500},
		{ProductID: 2, Qty: 3, UnitPriceCents: 3000},
	}
	assert.Equal(t, int64(18000), TotalCents(lines))
	assert.Equal(t, int64(0), TotalCents(nil))
}

func TestApplyVoucher(t *testing.T) {
	assert.Equal(t, int64(10000), ApplyVoucher(10000, nil))

	// fixed amount
	assert.Equal(t, int64(8500), ApplyVoucher(10000, &Voucher{AmountOffCents: 1500}))

	// percentage
	assert.Equal(t, int64(9000), ApplyVoucher(10000, &Voucher{PercentOff: 10}))

	// both stack
	assert.Equal(t, int64(7500), ApplyVoucher(10000, &Voucher{PercentOff: 10, AmountOffCents: 1500}))

	// never below zero
	assert.Equal(t, int64(0), ApplyVoucher(1000, &Voucher{AmountOffCents: 5000}))
}

func TestInsufficientStockErrorMessage(t *testing.T) {
	err := &InsufficientStockError{IngredientID: 10, Ingredient: "Milk", Have: dec("500"), Need: dec("600")}
	assert.Equal(t, `ingredient "Milk" insufficient, have 500 need 600`, err.Error())
}
