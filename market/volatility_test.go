package market

import (
	"testing"
)

func TestVolatilityCalculator_AddPrice(t *testing.T) {
	calculator := NewVolEstimator(5)

	// Add prices
	calculator.AddPrice(100.0)
	calculator.AddPrice(101.0)
	calculator.AddPrice(102.0)

	if len(calculator.prices) != 3 {
		t.Errorf("Expected 3 prices, got %d", len(calculator.prices))
	}

	if calculator.prices[0] != 100.0 {
		t.Errorf("Expected first price to be 100.0, got %f", calculator.prices[0])
	}

	if calculator.prices[2] != 102.0 {
		t.Errorf("Expected last price to be 102.0, got %f", calculator.prices[2])
	}
}

func TestVolatilityCalculator_RealizedVol(t *testing.T) {
	calculator := NewVolEstimator(10)

	// Add constant prices - should result in zero volatility
	for i := 0; i < 5; i++ {
		calculator.AddPrice(100.0)
	}

	vol := calculator.Realized()
	if vol != 0.0 {
		t.Errorf("Expected zero volatility for constant prices, got %f", vol)
	}

	// Test with increasing prices
	calculator2 := NewVolEstimator(10)
	for i := 0; i < 5; i++ {
		calculator2.AddPrice(100.0 + float64(i))
	}

	vol2 := calculator2.Realized()
	if vol2 < 0 {
		t.Errorf("Volatility should be non-negative, got %f", vol2)
	}
}

func TestVolatilityCalculator_WindowSize(t *testing.T) {
	calculator := NewVolEstimator(3)

	// Add more prices than window size
	for i := 0; i < 5; i++ {
		calculator.AddPrice(100.0 + float64(i))
	}

	// Should only keep the last 3 prices
	if len(calculator.prices) != 3 {
		t.Errorf("Expected window size of 3, got %d", len(calculator.prices))
	}

	if calculator.prices[0] != 102.0 {
		t.Errorf("Expected first price in window to be 102.0, got %f", calculator.prices[0])
	}
}

func TestVolatilityCalculator_IsReady(t *testing.T) {
	calculator := NewVolEstimator(5)

	// Not ready with less than 2 prices
	if calculator.Ready() {
		t.Error("Should not be ready with less than 2 prices")
	}

	// Add one price
	calculator.AddPrice(100.0)
	if calculator.Ready() {
		t.Error("Should not be ready with only 1 price")
	}

	// Add second price
	calculator.AddPrice(101.0)
	if !calculator.Ready() {
		t.Error("Should be ready with 2 prices")
	}
}
