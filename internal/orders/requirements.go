package orders

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AggregateRequirements turns checkout lines plus their recipes into one
// requirement per ingredient: need = Σ qtyPerUnit × lineQty. Decimal
// multiplication keeps fractional recipe amounts exact.
//
// A product with no recipe lines is a hard error (RecipeMissing) — the
// caller cannot verify stock for it, so the order must not go through.
// The result is sorted by ingredient id so callers lock rows in a stable
// order and cannot deadlock against each other.
func AggregateRequirements(lines []PricedLine, recipes map[int64][]RecipeLine) ([]Requirement, error) {
	need := map[int64]decimal.Decimal{}
	for _, l := range lines {
		rls := recipes[l.ProductID]
		if len(rls) == 0 {
			return nil, &RecipeMissingError{ProductID: l.ProductID, ProductName: l.ProductName}
		}
		qty := decimal.NewFromInt(int64(l.Qty))
		for _, rl := range rls {
			need[rl.IngredientID] = need[rl.IngredientID].Add(rl.QtyPerUnit.Mul(qty))
		}
	}

	out := make([]Requirement, 0, len(need))
	for id, q := range need {
		out = append(out, Requirement{IngredientID: id, Qty: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientID < out[j].IngredientID })
	return out, nil
}

// TotalCents computes the pre-discount order total from the priced lines.
func TotalCents(lines []PricedLine) int64 {
	var total int64
	for _, l := range lines {
		total += int64(l.Qty) * l.UnitPriceCents
	}
	return total
}

// ApplyVoucher subtracts the voucher's discount from the total, clamped at
// zero. A nil voucher is a no-op.
func ApplyVoucher(totalCents int64, v *Voucher) int64 {
	if v == nil {
		return totalCents
	}
	discount := v.AmountOffCents
	if v.PercentOff > 0 {
		discount += totalCents * int64(v.PercentOff) / 100
	}
	if t := totalCents - discount; t > 0 {
		return t
	}
	return 0
}
