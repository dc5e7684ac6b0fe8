package risk

// CorrelationMatrix returns the pairwise Pearson correlation matrix of
// the given return series. All series must share the same length.
func CorrelationMatrix(series [][]float64) ([][]float64, error) {
	n := len(series)
	if n == 0 {
		return nil, ErrInsufficientData
	}
	length := len(series[0])
	if length < minSamples {
		return nil, ErrInsufficientData
	}
	for _, s := range series {
		if len(s) != length {
			return nil, ErrInsufficientData
		}
	}

	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := correlation(series[i], series[j])
			matrix[i][j] = c
			matrix[j][i] = c
		}
	}
	return matrix, nil
}

// AvgPairwiseCorrelation returns the mean of the off-diagonal upper
// triangle of the correlation matrix.
func AvgPairwiseCorrelation(series [][]float64) (float64, error) {
	if len(series) < 2 {
		return 0, ErrInsufficientData
	}

	matrix, err := CorrelationMatrix(series)
	if err != nil {
		return 0, err
	}

	var sum float64
	pairs := 0
	for i := 0; i < len(matrix); i++ {
		for j := i + 1; j < len(matrix); j++ {
			sum += matrix[i][j]
			pairs++
		}
	}
	return sum / float64(pairs), nil
}

// DiversificationScore maps average pairwise correlation to [0, 1]:
// 1 = fully uncorrelated holdings, 0 = moving in lockstep.
func DiversificationScore(series [][]float64) (float64, error) {
	avg, err := AvgPairwiseCorrelation(series)
	if err != nil {
		return 0, err
	}

	score := 1 - avg
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score, nil
}

// HHI returns the Herfindahl-Hirschman concentration of portfolio
// weights: 1/n for equal weights, 1 for a single position. Weights
// are normalized internally.
func HHI(weights []float64) (float64, error) {
	if len(weights) == 0 {
		return 0, ErrInsufficientData
	}

	var total float64
	for _, w := range weights {
		if w < 0 {
			w = -w
		}
		total += w
	}
	if total == 0 {
		return 0, ErrInsufficientData
	}

	var sum float64
	for _, w := range weights {
		if w < 0 {
			w = -w
		}
		f := w / total
		sum += f * f
	}
	return sum, nil
}
