package risk

// MaxDrawdown returns the largest peak-to-trough decline of a price
// series as a positive fraction, via a single running-max pass.
func MaxDrawdown(prices []float64) (float64, error) {
	if len(prices) < 2 {
		return 0, ErrInsufficientData
	}

	peak := prices[0]
	var maxDD float64
	for _, p := range prices[1:] {
		if p > peak {
			peak = p
			continue
		}
		if peak > 0 {
			if dd := (peak - p) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, nil
}

// CurrentDrawdown returns the decline from the running peak to the
// latest price as a positive fraction. Zero when at a new high.
func CurrentDrawdown(prices []float64) (float64, error) {
	if len(prices) < 2 {
		return 0, ErrInsufficientData
	}

	peak := prices[0]
	for _, p := range prices {
		if p > peak {
			peak = p
		}
	}
	if peak <= 0 {
		return 0, nil
	}

	last := prices[len(prices)-1]
	dd := (peak - last) / peak
	if dd < 0 {
		dd = 0
	}
	return dd, nil
}
