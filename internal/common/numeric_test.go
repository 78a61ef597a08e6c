package common

import "testing"

func TestParseNonNegative(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		fallback int64
		want     int64
	}{
		{"empty", "", 0, 0},
		{"empty with fallback", "  ", 7, 7},
		{"integer", "1500", 0, 1500},
		{"negative", "-5", 0, 0},
		{"float rounds", "81.7", 0, 82},
		{"garbage", "abc", 3, 3},
		{"nan", "NaN", 9, 9},
		{"infinity", "+Inf", 9, 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseNonNegative(tc.input, tc.fallback); got != tc.want {
				t.Fatalf("ParseNonNegative(%q) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestAtoiDefault(t *testing.T) {
	if got := AtoiDefault("12", 1); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
	if got := AtoiDefault("x", 4); got != 4 {
		t.Fatalf("expected fallback 4, got %d", got)
	}
}
