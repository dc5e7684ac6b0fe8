// Package risk computes volatility, tail-risk, drawdown, and
// performance metrics from daily bar history.
//
// All estimators take return or price series oldest first and enforce
// a minimum sample size, returning ErrInsufficientData instead of
// producing NaN on short inputs. Volatilities and ratios are
// annualized on a 252-day basis. VaR, CVaR, and drawdowns are reported
// as positive loss fractions.
package risk
