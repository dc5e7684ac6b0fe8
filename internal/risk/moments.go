package risk

// Beta returns the OLS slope of asset returns against benchmark
// returns: cov(asset, benchmark) / var(benchmark).
func Beta(asset, benchmark []float64) (float64, error) {
	if len(asset) < minSamples || len(asset) != len(benchmark) {
		return 0, ErrInsufficientData
	}

	bv := variance(benchmark)
	if bv == 0 {
		return 0, ErrZeroVariance
	}
	return covariance(asset, benchmark) / bv, nil
}

// Skewness returns the bias-corrected sample skewness.
func Skewness(returns []float64) (float64, error) {
	n := len(returns)
	if n < minSamples {
		return 0, ErrInsufficientData
	}

	s := stddev(returns)
	if s == 0 {
		return 0, nil
	}

	m := mean(returns)
	var sum float64
	for _, r := range returns {
		d := (r - m) / s
		sum += d * d * d
	}

	nf := float64(n)
	return nf / ((nf - 1) * (nf - 2)) * sum, nil
}

// Kurtosis returns the bias-corrected sample excess kurtosis. Zero for
// a normal distribution, positive for fat tails.
func Kurtosis(returns []float64) (float64, error) {
	n := len(returns)
	if n < minSamples {
		return 0, ErrInsufficientData
	}

	s := stddev(returns)
	if s == 0 {
		return 0, nil
	}

	m := mean(returns)
	var sum float64
	for _, r := range returns {
		d := (r - m) / s
		sum += d * d * d * d
	}

	nf := float64(n)
	return nf*(nf+1)/((nf-1)*(nf-2)*(nf-3))*sum -
		3*(nf-1)*(nf-1)/((nf-2)*(nf-3)), nil
}
