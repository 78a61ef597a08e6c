package pricing

import "slices"

// Money represents a monetary value in Chilean pesos. CLP carries no decimal
// minor unit, so one Money unit is one whole peso.
type Money = int64

// Tier maps a minimum purchased quantity to a discounted unit price.
type Tier struct {
	MinQty    int32
	UnitPrice Money
}

// ResolveUnitPrice returns the unit price applicable to the requested quantity.
// Among tiers whose MinQty does not exceed the quantity, the one with the
// largest MinQty wins. Ties on MinQty resolve to the first-listed tier. When no
// tier qualifies, or no tiers exist, basePrice applies.
func ResolveUnitPrice(qty int32, tiers []Tier, basePrice Money) Money {
	if basePrice < 0 {
		basePrice = 0
	}
	if qty < 0 {
		qty = 0
	}
	if len(tiers) == 0 {
		return basePrice
	}
	sorted := slices.Clone(tiers)
	slices.SortStableFunc(sorted, func(a, b Tier) int {
		switch {
		case a.MinQty > b.MinQty:
			return -1
		case a.MinQty < b.MinQty:
			return 1
		default:
			return 0
		}
	})
	for _, t := range sorted {
		if t.MinQty <= qty {
			if t.UnitPrice < 0 {
				return 0
			}
			return t.UnitPrice
		}
	}
	return basePrice
}
