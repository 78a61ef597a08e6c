package financing

import (
	"errors"
	"time"

	"github.com/sellsi/backend-sellsi/internal/pricing"
)

var (
	// ErrAmountTooSmall indicates the drawn balance is too small to finance online.
	ErrAmountTooSmall = errors.New("amount too small to finance online")
	// ErrNothingToPay indicates the line has no outstanding balance eligible for payment.
	ErrNothingToPay = errors.New("nothing available to pay")
	// ErrAmountOutOfRange indicates the requested payment amount falls outside [1, available].
	ErrAmountOutOfRange = errors.New("requested amount out of range")
	// ErrLinePaused indicates the line is administratively paused and cannot receive online payments.
	ErrLinePaused = errors.New("financing line is paused")
)

// Line is a revolving financing facility granted to a supplier. Draws and
// payments are recorded elsewhere; this package only derives availability and
// expiry status from the recorded amounts.
type Line struct {
	ID          string
	SupplierID  string
	Granted     pricing.Money
	Used        pricing.Money
	Paid        pricing.Money
	TermDays    int32
	ActivatedAt time.Time
	Paused      bool
	ExpiresAt   time.Time
}

// AvailableToPay derives the outstanding balance still owed on a line.
//
// Two data models coexist upstream: an accumulated-paid model where Paid grows
// with each payment, and a legacy model where Used already nets out payments
// and Paid stays zero. Both branches are kept explicitly until the canonical
// model is settled; see DESIGN.md.
func AvailableToPay(used, paid pricing.Money) pricing.Money {
	used = clampNonNegative(used)
	paid = clampNonNegative(paid)
	if used <= 0 {
		return 0
	}
	if paid <= 0 {
		return used
	}
	if paid >= used {
		return 0
	}
	return used - paid
}

// ResolvePaymentAmount validates a pay-down request against the line and
// returns the amount to charge. A zero requested amount defaults to the full
// outstanding balance. Validation failures surface as distinct errors so the
// caller can block the confirm action before any gateway call.
func ResolvePaymentAmount(line Line, requested pricing.Money) (pricing.Money, error) {
	if line.Paused {
		return 0, ErrLinePaused
	}
	used := clampNonNegative(line.Used)
	if used <= 1 {
		return 0, ErrAmountTooSmall
	}
	available := AvailableToPay(line.Used, line.Paid)
	if available < 1 {
		return 0, ErrNothingToPay
	}
	amount := requested
	if amount == 0 {
		amount = available
	}
	if amount < 1 || amount > available {
		return 0, ErrAmountOutOfRange
	}
	return amount, nil
}

func clampNonNegative(v pricing.Money) pricing.Money {
	if v < 0 {
		return 0
	}
	return v
}
