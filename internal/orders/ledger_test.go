package orders

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLedger mirrors the all-or-nothing debit the repo performs inside a
// transaction: sufficiency is checked against the current quantity, and a
// shortfall leaves every ingredient untouched.
type memLedger struct {
	mu    sync.Mutex
	stock map[int64]decimal.Decimal
	names map[int64]string
}

func (l *memLedger) debitAll(reqs []Requirement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range reqs {
		if have := l.stock[r.IngredientID]; have.LessThan(r.Qty) {
			return &InsufficientStockError{
				IngredientID: r.IngredientID,
				Ingredient:   l.names[r.IngredientID],
				Have:         have,
				Need:         r.Qty,
			}
		}
	}
	for _, r := range reqs {
		l.stock[r.IngredientID] = l.stock[r.IngredientID].Sub(r.Qty)
	}
	return nil
}

func (l *memLedger) creditAll(reqs []Requirement) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range reqs {
		l.stock[r.IngredientID] = l.stock[r.IngredientID].Add(r.Qty)
	}
}

func (l *memLedger) quantity(id int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[id]
}

func latteSetup() (*memLedger, map[int64][]RecipeLine) {
	ledger := &memLedger{
		stock: map[int64]decimal.Decimal{10: dec("500"), 20: dec("100")},
		names: map[int64]string{10: "Milk", 20: "Coffee"},
	}
	recipes := map[int64][]RecipeLine{
		1: {
			{ProductID: 1, IngredientID: 10, QtyPerUnit: dec("200")},
			{ProductID: 1, IngredientID: 20, QtyPerUnit: dec("18")},
		},
	}
	return ledger, recipes
}

func TestDebitTwoLattes(t *testing.T) {
	ledger, recipes := latteSetup()
	lines := []PricedLine{{ProductID: 1, ProductName: "Latte", Qty: 2, UnitPriceCents: 4500}}

	reqs, err := AggregateRequirements(lines, recipes)
	require.NoError(t, err)
	require.NoError(t, ledger.debitAll(reqs))

	assert.True(t, ledger.quantity(10).Equal(dec("100")), "milk: got %s", ledger.quantity(10))
	assert.True(t, ledger.quantity(20).Equal(dec("64")))
	assert.Equal(t, int64(9000), TotalCents(lines))
}

func TestShortfallRejectedEntirely(t *testing.T) {
	ledger, recipes := latteSetup()
	// 3 lattes need 600 ml milk, only 500 on hand
	lines := []PricedLine{{ProductID: 1, ProductName: "Latte", Qty: 3, UnitPriceCents: 4500}}

	reqs, err := AggregateRequirements(lines, recipes)
	require.NoError(t, err)

	err = ledger.debitAll(reqs)
	var short *InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, "Milk", short.Ingredient)
	assert.True(t, short.Have.Equal(dec("500")))
	assert.True(t, short.Need.Equal(dec("600")))

	// nothing was applied, not even the coffee that would have sufficed
	assert.True(t, ledger.quantity(10).Equal(dec("500")))
	assert.True(t, ledger.quantity(20).Equal(dec("100")))
}

func TestCancelRestoresExactly(t *testing.T) {
	ledger, recipes := latteSetup()
	lines := []PricedLine{{ProductID: 1, ProductName: "Latte", Qty: 2, UnitPriceCents: 4500}}

	reqs, err := AggregateRequirements(lines, recipes)
	require.NoError(t, err)
	require.NoError(t, ledger.debitAll(reqs))
	ledger.creditAll(reqs)

	// create-then-cancel is a stock no-op
	assert.True(t, ledger.quantity(10).Equal(dec("500")))
	assert.True(t, ledger.quantity(20).Equal(dec("100")))
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ledger := &memLedger{
		stock: map[int64]decimal.Decimal{10: dec("100")},
		names: map[int64]string{10: "Milk"},
	}
	reqs := []Requirement{{IngredientID: 10, Qty: dec("60")}}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- ledger.debitAll(reqs)
		}()
	}
	wg.Wait()
	close(results)

	var oks, shorts int
	for err := range results {
		if err == nil {
			oks++
			continue
		}
		var short *InsufficientStockError
		require.True(t, errors.As(err, &short))
		shorts++
	}
	assert.Equal(t, 1, oks, "exactly one of two competing debits may succeed")
	assert.Equal(t, 1, shorts)
	assert.True(t, ledger.quantity(10).Equal(dec("40")))
	assert.False(t, ledger.quantity(10).IsNegative())
}
