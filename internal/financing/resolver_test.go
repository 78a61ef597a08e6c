package financing

import (
	"errors"
	"testing"
	"time"
)

func TestAvailableToPay(t *testing.T) {
	cases := []struct {
		name string
		used int64
		paid int64
		want int64
	}{
		{"nothing drawn", 0, 0, 0},
		{"no payments recorded", 50_000, 0, 50_000},
		{"partial payment", 50_000, 20_000, 30_000},
		{"fully paid", 50_000, 50_000, 0},
		{"overpaid clamps to zero", 50_000, 60_000, 0},
		{"negative inputs coerced", -10, -5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AvailableToPay(tc.used, tc.paid); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestResolvePaymentAmountDefaultsToAvailable(t *testing.T) {
	line := Line{Used: 50_000, Paid: 20_000}
	amount, err := ResolvePaymentAmount(line, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount != 30_000 {
		t.Fatalf("expected default amount 30000, got %d", amount)
	}
}

func TestResolvePaymentAmountOutOfRange(t *testing.T) {
	line := Line{Used: 50_000, Paid: 20_000}
	if _, err := ResolvePaymentAmount(line, 40_000); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected ErrAmountOutOfRange, got %v", err)
	}
	if _, err := ResolvePaymentAmount(line, -5); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected ErrAmountOutOfRange for negative request, got %v", err)
	}
}

func TestResolvePaymentAmountTooSmall(t *testing.T) {
	if _, err := ResolvePaymentAmount(Line{Used: 1}, 0); !errors.Is(err, ErrAmountTooSmall) {
		t.Fatalf("expected ErrAmountTooSmall, got %v", err)
	}
}

func TestResolvePaymentAmountNothingToPay(t *testing.T) {
	if _, err := ResolvePaymentAmount(Line{Used: 40_000, Paid: 40_000}, 0); !errors.Is(err, ErrNothingToPay) {
		t.Fatalf("expected ErrNothingToPay, got %v", err)
	}
}

func TestResolvePaymentAmountPaused(t *testing.T) {
	if _, err := ResolvePaymentAmount(Line{Used: 40_000, Paused: true}, 0); !errors.Is(err, ErrLinePaused) {
		t.Fatalf("expected ErrLinePaused, got %v", err)
	}
}

func TestWarningThresholdBreakpoints(t *testing.T) {
	cases := map[int32]int32{
		1: 1, 7: 1,
		8: 3, 15: 3,
		16: 7, 44: 7,
		45: 10, 60: 10, 120: 10,
	}
	for term, want := range cases {
		if got := WarningThreshold(term); got != want {
			t.Fatalf("termDays=%d: expected threshold %d, got %d", term, want, got)
		}
	}
}

func TestDaysStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	line := Line{TermDays: 30, ActivatedAt: now.AddDate(0, 0, -5)}
	remaining, status := DaysStatus(line, now)
	if remaining != 25 || status != StatusSuccess {
		t.Fatalf("expected 25 days success, got %d %s", remaining, status)
	}

	line.ActivatedAt = now.AddDate(0, 0, -25)
	remaining, status = DaysStatus(line, now)
	if remaining != 5 || status != StatusWarning {
		t.Fatalf("expected 5 days warning, got %d %s", remaining, status)
	}

	line.ActivatedAt = now.AddDate(0, 0, -31)
	remaining, status = DaysStatus(line, now)
	if remaining != 0 || status != StatusError {
		t.Fatalf("expected expired line, got %d %s", remaining, status)
	}
}

func TestDaysStatusIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	line := Line{TermDays: 14, ActivatedAt: now.AddDate(0, 0, -12)}
	r1, s1 := DaysStatus(line, now)
	r2, s2 := DaysStatus(line, now)
	if r1 != r2 || s1 != s2 {
		t.Fatalf("expected identical results for identical inputs")
	}
}
