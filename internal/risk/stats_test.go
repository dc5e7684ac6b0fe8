package risk

import (
	"math"
	"testing"
)

func almostEqual(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v (±%v)", name, got, want, tol)
	}
}

func TestReturns(t *testing.T) {
	prices := []float64{100, 110, 99}
	returns := Returns(prices)

	if len(returns) != 2 {
		t.Fatalf("len(returns) = %d, want 2", len(returns))
	}
	almostEqual(t, "returns[0]", returns[0], 0.10, 1e-12)
	almostEqual(t, "returns[1]", returns[1], -0.10, 1e-12)

	if Returns([]float64{100}) != nil {
		t.Error("Returns on single price != nil")
	}
}

func TestMeanStddev(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	almostEqual(t, "mean", mean(xs), 5, 1e-12)
	// Sample stddev of this classic series.
	almostEqual(t, "stddev", stddev(xs), math.Sqrt(32.0/7.0), 1e-12)
}

func TestPercentile(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}

	almostEqual(t, "p0", percentile(xs, 0), 1, 1e-12)
	almostEqual(t, "p50", percentile(xs, 50), 3, 1e-12)
	almostEqual(t, "p100", percentile(xs, 100), 5, 1e-12)
	// Interpolated between ranks.
	almostEqual(t, "p25", percentile(xs, 25), 2, 1e-12)
	almostEqual(t, "p10", percentile(xs, 10), 1.4, 1e-12)
}

func TestNormQuantile(t *testing.T) {
	tests := []struct {
		p    float64
		want float64
	}{
		{0.5, 0},
		{0.95, 1.6448536},
		{0.975, 1.9599640},
		{0.05, -1.6448536},
		{0.01, -2.3263479},
	}
	for _, tt := range tests {
		almostEqual(t, "normQuantile", normQuantile(tt.p), tt.want, 1e-6)
	}

	if !math.IsInf(normQuantile(0), -1) {
		t.Error("normQuantile(0) != -Inf")
	}
	if !math.IsInf(normQuantile(1), 1) {
		t.Error("normQuantile(1) != +Inf")
	}
}

func TestCorrelation(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{2, 4, 6, 8, 10}
	almostEqual(t, "perfect corr", correlation(xs, ys), 1, 1e-12)

	zs := []float64{10, 8, 6, 4, 2}
	almostEqual(t, "inverse corr", correlation(xs, zs), -1, 1e-12)

	flat := []float64{3, 3, 3, 3, 3}
	almostEqual(t, "flat corr", correlation(xs, flat), 0, 1e-12)
}
