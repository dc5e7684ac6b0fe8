package risk

// HistoricalVaR returns the one-day Value-at-Risk at the given
// confidence level as a positive loss fraction, estimated from the
// empirical return distribution.
func HistoricalVaR(returns []float64, confidence float64) (float64, error) {
	if len(returns) < minSamples {
		return 0, ErrInsufficientData
	}

	loss := -percentile(returns, (1-confidence)*100)
	if loss < 0 {
		loss = 0
	}
	return loss, nil
}

// ParametricVaR returns the one-day VaR under a normal-returns
// assumption, as a positive loss fraction.
func ParametricVaR(returns []float64, confidence float64) (float64, error) {
	if len(returns) < minSamples {
		return 0, ErrInsufficientData
	}

	z := normQuantile(1 - confidence) // negative for confidence > 0.5
	loss := -(mean(returns) + z*stddev(returns))
	if loss < 0 {
		loss = 0
	}
	return loss, nil
}

// CVaR returns the expected shortfall: the mean loss over the tail
// beyond historical VaR, as a positive fraction. When no observation
// falls in the tail (extreme confidence on a short sample) it falls
// back to the VaR itself.
func CVaR(returns []float64, confidence float64) (float64, error) {
	v, err := HistoricalVaR(returns, confidence)
	if err != nil {
		return 0, err
	}

	var sum float64
	n := 0
	for _, r := range returns {
		if r <= -v {
			sum += r
			n++
		}
	}
	if n == 0 {
		return v, nil
	}

	loss := -sum / float64(n)
	if loss < 0 {
		loss = 0
	}
	return loss, nil
}
