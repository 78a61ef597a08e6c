package pricing

type feeKind int

const (
	feeNone feeKind = iota
	feeFixed
	feePercent
)

// FeePolicy captures how a payment method's commission is computed. The zero
// value means no method is selected and applies a zero fee. Policies are
// resolved once when a payment method is chosen, not re-dispatched by provider
// identifier at every total computation.
type FeePolicy struct {
	kind   feeKind
	amount Money
	bps    int64
}

// FixedFee returns a policy charging a flat amount regardless of order base.
func FixedFee(amount Money) FeePolicy {
	if amount < 0 {
		amount = 0
	}
	return FeePolicy{kind: feeFixed, amount: amount}
}

// PercentageFee returns a policy charging the given basis points of the order
// base, rounded half-up to the nearest peso.
func PercentageFee(bps int64) FeePolicy {
	if bps < 0 {
		bps = 0
	}
	return FeePolicy{kind: feePercent, bps: bps}
}

// Apply computes the fee for the provided order base.
func (p FeePolicy) Apply(base Money) Money {
	if base < 0 {
		base = 0
	}
	switch p.kind {
	case feeFixed:
		return p.amount
	case feePercent:
		return (base*p.bps + 5000) / 10000
	default:
		return 0
	}
}

// IsZero reports whether the policy is the unselected zero value.
func (p FeePolicy) IsZero() bool {
	return p.kind == feeNone
}
