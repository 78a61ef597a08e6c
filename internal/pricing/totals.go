package pricing

// Line describes an order line used for subtotal aggregation. BasePrice is the
// fallback unit price applied when no tier covers the quantity.
type Line struct {
	Qty       int32
	BasePrice Money
	Tiers     []Tier
}

// Summary aggregates the computed components of an order total.
type Summary struct {
	Subtotal     Money
	Shipping     Money
	Fee          Money
	Total        Money
	FreeShipping bool
}

// Subtotal sums unit price times quantity across all lines, resolving the unit
// price per line through the tier table. Absent or negative quantities count as
// zero rather than failing; this layer is a display calculation helper, not a
// transactional authority.
func Subtotal(lines []Line) Money {
	var total Money
	for _, l := range lines {
		qty := l.Qty
		if qty <= 0 {
			continue
		}
		unit := ResolveUnitPrice(qty, l.Tiers, l.BasePrice)
		lineTotal := Money(qty) * unit
		if lineTotal < 0 {
			lineTotal = 0
		}
		total += lineTotal
	}
	return total
}

// ComputeTotal adds shipping and the payment-method fee on top of the subtotal.
// FreeShipping marks a zero shipping cost so callers can render a "free" label;
// it never alters Total.
func ComputeTotal(subtotal, shipping Money, fee FeePolicy) Summary {
	if subtotal < 0 {
		subtotal = 0
	}
	if shipping < 0 {
		shipping = 0
	}
	base := subtotal + shipping
	applied := fee.Apply(base)
	return Summary{
		Subtotal:     subtotal,
		Shipping:     shipping,
		Fee:          applied,
		Total:        base + applied,
		FreeShipping: shipping == 0,
	}
}
