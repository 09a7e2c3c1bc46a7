package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPeriod is returned for unrecognized reconstruction periods.
// Surfaced to the caller, never retried.
var ErrInvalidPeriod = errors.New("invalid period")

// ErrQuoteUnavailable is returned when a quote cannot be served at all:
// the provider failed and no cached value (fresh or stale) exists.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// ErrNoPriceHistory signals that a symbol has no usable price on or before
// a requested date. The reconstruction engine converts it into a degraded
// value point rather than failing the call.
var ErrNoPriceHistory = errors.New("no price history")

// LedgerIntegrityError reports a ledger whose replay produced a negative
// quantity for a symbol at some date. The affected symbol contributes zero
// from that date on; the error is logged, not propagated.
type LedgerIntegrityError struct {
	UserID string
	Symbol string
	Date   time.Time
}

func (e *LedgerIntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity: user %s symbol %s quantity negative at %s",
		e.UserID, e.Symbol, e.Date.Format("2006-01-02"))
}

// ProviderErrorKind classifies market data provider failures.
type ProviderErrorKind string

const (
	ProviderRateLimited ProviderErrorKind = "rate_limited"
	ProviderTimeout     ProviderErrorKind = "timeout"
	ProviderUpstream    ProviderErrorKind = "upstream"
)

// ProviderError wraps a failure from the external market data provider.
// Recovered locally via stale-cache fallback wherever possible.
type ProviderError struct {
	Kind   ProviderErrorKind
	Symbol string
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("provider %s (%s): %v", e.Kind, e.Symbol, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err is (or wraps) a ProviderError of the
// given kind.
func IsProviderError(err error, kind ProviderErrorKind) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == kind
}
