package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/dhkang/kiwoom-trader/internal/model"
)

// Config holds analyzer parameters.
type Config struct {
	ConfidenceLevel float64 // VaR/CVaR confidence, e.g. 0.95
	RiskFreeRate    float64 // Annual risk-free rate, e.g. 0.035
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceLevel: 0.95,
		RiskFreeRate:    0.035,
	}
}

// Report is the full analyzer output for one stock.
type Report struct {
	Code    string `json:"code"`
	Samples int    `json:"samples"`

	HistoricalVol  float64 `json:"historical_vol"`   // Annualized
	ParkinsonVol   float64 `json:"parkinson_vol"`    // Annualized
	GarmanKlassVol float64 `json:"garman_klass_vol"` // Annualized

	HistoricalVaR float64 `json:"historical_var"` // Daily loss fraction
	ParametricVaR float64 `json:"parametric_var"`
	CVaR          float64 `json:"cvar"`

	MaxDrawdown     float64 `json:"max_drawdown"`
	CurrentDrawdown float64 `json:"current_drawdown"`

	Beta    float64 `json:"beta"`     // 1 when no benchmark given
	HasBeta bool    `json:"has_beta"` // False when no benchmark given

	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"` // Excess

	Sharpe  float64 `json:"sharpe"`
	Sortino float64 `json:"sortino"`
	Omega   float64 `json:"omega"`

	Score float64 `json:"score"` // Composite 0-100, higher = riskier
}

// Analyzer computes risk metrics from daily bar history.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.ConfidenceLevel <= 0 || cfg.ConfidenceLevel >= 1 {
		cfg.ConfidenceLevel = DefaultConfig().ConfidenceLevel
	}
	return &Analyzer{cfg: cfg}
}

// Analyze runs the full metric set for one stock. candles must be
// oldest first. benchmark may be nil; beta then defaults to 1.
func (a *Analyzer) Analyze(code string, candles, benchmark []model.Candle) (Report, error) {
	if len(candles) < minSamples+1 {
		return Report{}, fmt.Errorf("analyze %s: %w", code, ErrInsufficientData)
	}

	prices := Closes(candles)
	returns := Returns(prices)

	r := Report{
		Code:    code,
		Samples: len(returns),
		Beta:    1,
	}

	var err error
	if r.HistoricalVol, err = HistoricalVolatility(returns); err != nil {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}
	if r.ParkinsonVol, err = ParkinsonVolatility(candles); err != nil {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}
	if r.GarmanKlassVol, err = GarmanKlassVolatility(candles); err != nil {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}

	if r.HistoricalVaR, err = HistoricalVaR(returns, a.cfg.ConfidenceLevel); err != nil {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}
	if r.ParametricVaR, err = ParametricVaR(returns, a.cfg.ConfidenceLevel); err != nil {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}
	if r.CVaR, err = CVaR(returns, a.cfg.ConfidenceLevel); err != nil {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}

	if r.MaxDrawdown, err = MaxDrawdown(prices); err != nil {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}
	if r.CurrentDrawdown, err = CurrentDrawdown(prices); err != nil {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}

	if len(benchmark) > 0 {
		benchReturns := Returns(Closes(benchmark))
		// Align on the most recent overlapping window.
		n := len(returns)
		if len(benchReturns) < n {
			n = len(benchReturns)
		}
		beta, err := Beta(returns[len(returns)-n:], benchReturns[len(benchReturns)-n:])
		switch {
		case err == nil:
			r.Beta = beta
			r.HasBeta = true
		case errors.Is(err, ErrZeroVariance), errors.Is(err, ErrInsufficientData):
			// Flat benchmark or too little overlap. Keep the neutral
			// default; HasBeta stays false so callers can tell.
		default:
			return Report{}, fmt.Errorf("analyze %s: beta: %w", code, err)
		}
	}

	if r.Skewness, err = Skewness(returns); err != nil {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}
	if r.Kurtosis, err = Kurtosis(returns); err != nil {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}

	// Flat series make the ratios undefined; report them as zero
	// rather than failing the whole report.
	if r.Sharpe, err = Sharpe(returns, a.cfg.RiskFreeRate); err != nil && !errors.Is(err, ErrZeroVariance) {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}
	if r.Sortino, err = Sortino(returns, a.cfg.RiskFreeRate); err != nil && !errors.Is(err, ErrZeroVariance) {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}
	if r.Omega, err = Omega(returns, 0); err != nil {
		return Report{}, fmt.Errorf("analyze %s: %w", code, err)
	}

	r.Score = Score(r)

	return r, nil
}

// Score weights. The caps mark where a component saturates: annualized
// volatility beyond 60%, daily VaR beyond 5%, drawdown beyond 50%,
// beta more than 1 away from the market, excess kurtosis beyond 6.
const (
	weightVol      = 0.30
	weightVaR      = 0.25
	weightDrawdown = 0.20
	weightBeta     = 0.15
	weightKurtosis = 0.10

	capVol      = 0.60
	capVaR      = 0.05
	capDrawdown = 0.50
	capBeta     = 1.0
	capKurtosis = 6.0
)

// Score folds a report into a composite 0-100 risk score; higher is
// riskier.
func Score(r Report) float64 {
	score := weightVol*clamp01(r.HistoricalVol/capVol) +
		weightVaR*clamp01(r.HistoricalVaR/capVaR) +
		weightDrawdown*clamp01(r.MaxDrawdown/capDrawdown) +
		weightBeta*clamp01(math.Abs(r.Beta-1)/capBeta) +
		weightKurtosis*clamp01(math.Max(r.Kurtosis, 0)/capKurtosis)

	return score * 100
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
