// Package portfolio reconstructs historical portfolio value from the
// transaction ledger and computes performance over it.
package portfolio

import (
	"fmt"
	"strings"
	"time"

	"github.com/castlegate/networth/internal/domain"
)

// Period selects the time window of a reconstruction.
type Period string

const (
	Period1D  Period = "1D"
	Period1W  Period = "1W"
	Period1M  Period = "1M"
	Period3M  Period = "3M"
	Period6M  Period = "6M"
	PeriodYTD Period = "YTD"
	Period1Y  Period = "1Y"
	Period3Y  Period = "3Y"
	Period5Y  Period = "5Y"
	PeriodAll Period = "ALL"
)

// ParsePeriod validates a period string (case-insensitive). Unknown values
// return domain.ErrInvalidPeriod wrapped with the offending input.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case Period1D, Period1W, Period1M, Period3M, Period6M,
		PeriodYTD, Period1Y, Period3Y, Period5Y, PeriodAll:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidPeriod, s)
}

// Range resolves a period into [from, to] at UTC midnight. The end is the
// last completed trading day; intraday today is never part of a curve.
// PeriodAll returns a zero from: the caller anchors it at the first
// transaction date.
func (p Period) Range(clock domain.Clock) (from, to time.Time, err error) {
	to = clock.LastTradingDayBefore(clock.Now())

	switch p {
	case Period1D:
		// Previous close through last close, so the curve carries both
		// the anchor point and the day being measured.
		from = clock.LastTradingDayBefore(to)
	case Period1W:
		from = to.AddDate(0, 0, -7)
	case Period1M:
		from = to.AddDate(0, -1, 0)
	case Period3M:
		from = to.AddDate(0, -3, 0)
	case Period6M:
		from = to.AddDate(0, -6, 0)
	case PeriodYTD:
		from = time.Date(to.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case Period1Y:
		from = to.AddDate(-1, 0, 0)
	case Period3Y:
		from = to.AddDate(-3, 0, 0)
	case Period5Y:
		from = to.AddDate(-5, 0, 0)
	case PeriodAll:
		// from stays zero
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidPeriod, string(p))
	}
	return from, to, nil
}
