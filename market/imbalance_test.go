package market

import "testing"

func TestCalculateImbalance(t *testing.T) {
	cases := []struct {
		name     string
		bid, ask float64
		want     float64
	}{
		{"balanced", 10, 10, 0},
		{"all bids", 10, 0, 1},
		{"all asks", 0, 10, -1},
		{"bid heavy", 30, 10, 0.5},
		{"empty book", 0, 0, 0},
	}
	for _, tc := range cases {
		if got := CalculateImbalance(tc.bid, tc.ask); got != tc.want {
			t.Errorf("%s: imbalance(%v, %v) = %v, want %v", tc.name, tc.bid, tc.ask, got, tc.want)
		}
	}
}
