package risk

import (
	"math"

	"github.com/dhkang/kiwoom-trader/internal/model"
)

// HistoricalVolatility returns annualized close-to-close volatility
// from a daily return series.
func HistoricalVolatility(returns []float64) (float64, error) {
	if len(returns) < minSamples {
		return 0, ErrInsufficientData
	}
	return stddev(returns) * math.Sqrt(tradingDays), nil
}

// ParkinsonVolatility returns annualized volatility from daily
// high/low ranges. More efficient than close-to-close when bars are
// clean, blind to overnight gaps.
func ParkinsonVolatility(candles []model.Candle) (float64, error) {
	if len(candles) < minSamples {
		return 0, ErrInsufficientData
	}

	factor := 1.0 / (4.0 * math.Log(2))
	var sum float64
	n := 0
	for _, c := range candles {
		high, _ := c.High.Float64()
		low, _ := c.Low.Float64()
		if high <= 0 || low <= 0 {
			continue
		}
		r := math.Log(high / low)
		sum += factor * r * r
		n++
	}
	if n < minSamples {
		return 0, ErrInsufficientData
	}

	return math.Sqrt(sum/float64(n)) * math.Sqrt(tradingDays), nil
}

// GarmanKlassVolatility returns annualized volatility from full OHLC
// bars.
func GarmanKlassVolatility(candles []model.Candle) (float64, error) {
	if len(candles) < minSamples {
		return 0, ErrInsufficientData
	}

	var sum float64
	n := 0
	for _, c := range candles {
		open, _ := c.Open.Float64()
		high, _ := c.High.Float64()
		low, _ := c.Low.Float64()
		clos, _ := c.Close.Float64()
		if open <= 0 || high <= 0 || low <= 0 || clos <= 0 {
			continue
		}
		hl := math.Log(high / low)
		co := math.Log(clos / open)
		sum += 0.5*hl*hl - (2*math.Log(2)-1)*co*co
		n++
	}
	if n < minSamples {
		return 0, ErrInsufficientData
	}

	v := sum / float64(n)
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v) * math.Sqrt(tradingDays), nil
}
