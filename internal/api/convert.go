package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// kst is Korea Standard Time; all broker dates and times are KST.
var kst = time.FixedZone("KST", 9*60*60)

// parsePrice parses a broker price string into a decimal. Prices arrive
// with a sign prefix indicating direction ("+71200", "-71200", "71200");
// the magnitude is the price.
func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.TrimLeft(s, "+-")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", s, err)
	}
	return d, nil
}

// parseSigned parses a broker value keeping its sign (e.g., change vs.
// previous close).
func parseSigned(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse signed value %q: %w", s, err)
	}
	return d, nil
}

// parseInt parses a broker integer string, tolerating empty and signed values.
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.TrimPrefix(s, "+")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse int %q: %w", s, err)
	}
	return n, nil
}

// parseFloat parses a broker rate string (e.g., "-1.23").
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.TrimPrefix(s, "+")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float %q: %w", s, err)
	}
	return f, nil
}

// parseDate parses a YYYYMMDD broker date in KST.
func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("20060102", s, kst)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// parseDateTime parses a YYYYMMDDHHMMSS broker timestamp in KST.
func parseDateTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation("20060102150405", s, kst)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", s, err)
	}
	return t, nil
}
