package risk

import (
	"math"
)

// Sharpe returns the annualized Sharpe ratio of a daily return series
// against the given annual risk-free rate.
func Sharpe(returns []float64, riskFreeRate float64) (float64, error) {
	if len(returns) < minSamples {
		return 0, ErrInsufficientData
	}

	s := stddev(returns)
	if s == 0 {
		return 0, ErrZeroVariance
	}

	annualReturn := mean(returns) * tradingDays
	annualVol := s * math.Sqrt(tradingDays)
	return (annualReturn - riskFreeRate) / annualVol, nil
}

// Sortino returns the annualized Sortino ratio: excess return over
// downside deviation, counting only negative daily returns.
func Sortino(returns []float64, riskFreeRate float64) (float64, error) {
	if len(returns) < minSamples {
		return 0, ErrInsufficientData
	}

	var sum float64
	for _, r := range returns {
		if r < 0 {
			sum += r * r
		}
	}
	downside := math.Sqrt(sum / float64(len(returns)))
	if downside == 0 {
		return 0, ErrZeroVariance
	}

	annualReturn := mean(returns) * tradingDays
	annualDownside := downside * math.Sqrt(tradingDays)
	return (annualReturn - riskFreeRate) / annualDownside, nil
}

// Omega returns the Omega ratio at the given daily threshold: the sum
// of gains above it over the sum of losses below it. Returns +Inf when
// the series has no losses below the threshold.
func Omega(returns []float64, threshold float64) (float64, error) {
	if len(returns) < minSamples {
		return 0, ErrInsufficientData
	}

	var gains, losses float64
	for _, r := range returns {
		if r > threshold {
			gains += r - threshold
		} else {
			losses += threshold - r
		}
	}
	if losses == 0 {
		return math.Inf(1), nil
	}
	return gains / losses, nil
}
