package market

import "math"

// VolEstimator calculates realized volatility from a rolling window of
// per-tick mid prices.
type VolEstimator struct {
	windowSize int
	prices     []float64
}

// NewVolEstimator creates a new realized-volatility estimator.
func NewVolEstimator(windowSize int) *VolEstimator {
	if windowSize < 2 {
		windowSize = 2
	}
	return &VolEstimator{
		windowSize: windowSize,
		prices:     make([]float64, 0, windowSize),
	}
}

// AddPrice adds a new mid price to the window.
func (v *VolEstimator) AddPrice(mid float64) {
	if mid <= 0 {
		return
	}
	v.prices = append(v.prices, mid)
	if len(v.prices) > v.windowSize {
		v.prices = v.prices[1:]
	}
}

// Realized calculates the realized volatility as the standard deviation of
// log returns over the window, scaled by sqrt of the observation count.
func (v *VolEstimator) Realized() float64 {
	if len(v.prices) < 2 {
		return 0
	}

	logReturns := make([]float64, 0, len(v.prices)-1)
	for i := 1; i < len(v.prices); i++ {
		if v.prices[i-1] > 0 {
			logReturns = append(logReturns, math.Log(v.prices[i]/v.prices[i-1]))
		}
	}
	if len(logReturns) < 1 {
		return 0
	}

	sum := 0.0
	for _, r := range logReturns {
		sum += r
	}
	mean := sum / float64(len(logReturns))

	sumSquaredDiff := 0.0
	for _, r := range logReturns {
		diff := r - mean
		sumSquaredDiff += diff * diff
	}
	variance := sumSquaredDiff / float64(len(logReturns))

	return math.Sqrt(variance) * math.Sqrt(float64(len(logReturns)))
}

// Ready checks if we have enough data to estimate volatility.
func (v *VolEstimator) Ready() bool {
	return len(v.prices) >= 2
}
