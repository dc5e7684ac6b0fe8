package risk

import (
	"errors"
	"math"
	"testing"
)

// rampReturns is 100 evenly spaced returns from -5.0% to +4.9%.
func rampReturns() []float64 {
	out := make([]float64, 100)
	for i := range out {
		out[i] = float64(i-50) / 1000
	}
	return out
}

func TestHistoricalVaR(t *testing.T) {
	v, err := HistoricalVaR(rampReturns(), 0.95)
	if err != nil {
		t.Fatalf("HistoricalVaR failed: %v", err)
	}
	// 5th percentile of the ramp interpolates to -4.505%.
	almostEqual(t, "VaR", v, 0.04505, 1e-9)
}

func TestHistoricalVaRInsufficientData(t *testing.T) {
	_, err := HistoricalVaR(make([]float64, minSamples-1), 0.95)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

func TestHistoricalVaRAllGains(t *testing.T) {
	returns := make([]float64, 50)
	for i := range returns {
		returns[i] = 0.01
	}
	v, err := HistoricalVaR(returns, 0.95)
	if err != nil {
		t.Fatalf("HistoricalVaR failed: %v", err)
	}
	if v != 0 {
		t.Errorf("VaR = %v, want 0 floor on all-gain series", v)
	}
}

func TestParametricVaR(t *testing.T) {
	v, err := ParametricVaR(rampReturns(), 0.95)
	if err != nil {
		t.Fatalf("ParametricVaR failed: %v", err)
	}

	// mean + z(0.05) * stddev, negated.
	want := -(mean(rampReturns()) + normQuantile(0.05)*stddev(rampReturns()))
	almostEqual(t, "parametric VaR", v, want, 1e-12)
	if v <= 0 {
		t.Errorf("parametric VaR = %v, want > 0", v)
	}
}

func TestCVaRExceedsVaR(t *testing.T) {
	returns := rampReturns()

	v, err := HistoricalVaR(returns, 0.95)
	if err != nil {
		t.Fatalf("HistoricalVaR failed: %v", err)
	}
	cv, err := CVaR(returns, 0.95)
	if err != nil {
		t.Fatalf("CVaR failed: %v", err)
	}

	// Tail of the ramp: -5.0% .. -4.6%, mean 4.8%.
	almostEqual(t, "CVaR", cv, 0.048, 1e-9)
	if cv < v {
		t.Errorf("CVaR %v < VaR %v, tail mean must not be below the quantile", cv, v)
	}
}

func TestCVaREmptyTailFallsBackToVaR(t *testing.T) {
	// All returns equal: the percentile equals every observation, the
	// strict tail may be empty at high confidence after the zero floor.
	returns := make([]float64, 50)
	for i := range returns {
		returns[i] = 0.01
	}
	cv, err := CVaR(returns, 0.99)
	if err != nil {
		t.Fatalf("CVaR failed: %v", err)
	}
	if math.IsNaN(cv) {
		t.Error("CVaR = NaN, want numeric fallback")
	}
}
