package risk

import (
	"errors"
	"testing"
)

// threeSeries returns three return series: a, 2a (perfectly
// correlated), and an independent alternating series.
func threeSeries() [][]float64 {
	a := rampReturns()
	b := make([]float64, len(a))
	c := make([]float64, len(a))
	for i := range a {
		b[i] = 2 * a[i]
		if i%2 == 0 {
			c[i] = 0.01
		} else {
			c[i] = -0.01
		}
	}
	return [][]float64{a, b, c}
}

func TestCorrelationMatrix(t *testing.T) {
	matrix, err := CorrelationMatrix(threeSeries())
	if err != nil {
		t.Fatalf("CorrelationMatrix failed: %v", err)
	}

	if len(matrix) != 3 {
		t.Fatalf("matrix size = %d, want 3", len(matrix))
	}
	for i := range matrix {
		almostEqual(t, "diagonal", matrix[i][i], 1, 1e-12)
	}
	almostEqual(t, "corr(a, 2a)", matrix[0][1], 1, 1e-12)
	if matrix[0][1] != matrix[1][0] {
		t.Error("matrix not symmetric")
	}
}

func TestCorrelationMatrixLengthMismatch(t *testing.T) {
	series := [][]float64{rampReturns(), rampReturns()[:50]}
	if _, err := CorrelationMatrix(series); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

func TestAvgPairwiseCorrelation(t *testing.T) {
	a := rampReturns()
	b := make([]float64, len(a))
	for i := range a {
		b[i] = 3 * a[i]
	}

	avg, err := AvgPairwiseCorrelation([][]float64{a, b})
	if err != nil {
		t.Fatalf("AvgPairwiseCorrelation failed: %v", err)
	}
	almostEqual(t, "avg corr", avg, 1, 1e-12)
}

func TestDiversificationScore(t *testing.T) {
	a := rampReturns()
	b := make([]float64, len(a))
	for i := range a {
		b[i] = 2 * a[i]
	}

	// Lockstep holdings: no diversification.
	score, err := DiversificationScore([][]float64{a, b})
	if err != nil {
		t.Fatalf("DiversificationScore failed: %v", err)
	}
	almostEqual(t, "lockstep score", score, 0, 1e-12)

	// Inverse holdings: score caps at 1.
	inv := make([]float64, len(a))
	for i := range a {
		inv[i] = -a[i]
	}
	score, err = DiversificationScore([][]float64{a, inv})
	if err != nil {
		t.Fatalf("DiversificationScore failed: %v", err)
	}
	almostEqual(t, "inverse score", score, 1, 1e-12)
}

func TestDiversificationScoreSinglePosition(t *testing.T) {
	if _, err := DiversificationScore([][]float64{rampReturns()}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

func TestHHI(t *testing.T) {
	// Equal weights: 1/n.
	hhi, err := HHI([]float64{1, 1, 1, 1})
	if err != nil {
		t.Fatalf("HHI failed: %v", err)
	}
	almostEqual(t, "equal-weight HHI", hhi, 0.25, 1e-12)

	// Single position: 1.
	hhi, err = HHI([]float64{100})
	if err != nil {
		t.Fatalf("HHI failed: %v", err)
	}
	almostEqual(t, "single-position HHI", hhi, 1, 1e-12)

	// Unnormalized inputs are normalized.
	hhi, err = HHI([]float64{3000000, 1000000})
	if err != nil {
		t.Fatalf("HHI failed: %v", err)
	}
	almostEqual(t, "3:1 HHI", hhi, 0.625, 1e-12)
}

func TestHHIEmpty(t *testing.T) {
	if _, err := HHI(nil); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
	if _, err := HHI([]float64{0, 0}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("zero weights err = %v, want ErrInsufficientData", err)
	}
}
