package financing

import "time"

// Status classifies how close a line is to its expiry term.
type Status string

const (
	// StatusError means the line term has fully elapsed.
	StatusError Status = "error"
	// StatusWarning means the line is within its near-expiry window.
	StatusWarning Status = "warning"
	// StatusSuccess means the line is comfortably within its term.
	StatusSuccess Status = "success"
)

// WarningThreshold returns the number of days before expiry at which a line
// switches from healthy to near-expiry. The breakpoints scale with the total
// term length and are fixed; downstream alerting depends on these exact values.
func WarningThreshold(termDays int32) int32 {
	switch {
	case termDays <= 7:
		return 1
	case termDays <= 15:
		return 3
	case termDays <= 44:
		return 7
	default:
		return 10
	}
}

// DaysStatus computes the remaining days on the line's term and its
// traffic-light classification at the provided instant.
func DaysStatus(line Line, now time.Time) (int32, Status) {
	elapsed := int32(now.Sub(line.ActivatedAt).Hours() / 24)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := line.TermDays - elapsed
	if remaining < 0 {
		remaining = 0
	}
	switch {
	case remaining == 0:
		return 0, StatusError
	case remaining <= WarningThreshold(line.TermDays):
		return remaining, StatusWarning
	default:
		return remaining, StatusSuccess
	}
}
