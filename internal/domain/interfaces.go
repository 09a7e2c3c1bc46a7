package domain

import (
	"context"
	"time"
)

// MarketDataClient fetches live quotes and historical daily bars from an
// external provider. Implementations must honor context deadlines; the
// provider is assumed to be rate limited, so callers cache aggressively.
type MarketDataClient interface {
	// GetQuote fetches the latest quote for one symbol.
	GetQuote(ctx context.Context, symbol string) (*Quote, error)

	// GetBatchQuotes fetches quotes for many symbols. Partial results are
	// allowed: symbols the provider could not serve are simply absent from
	// the returned map, they do not fail the batch.
	GetBatchQuotes(ctx context.Context, symbols []string) (map[string]*Quote, error)

	// GetDailyBars fetches historical daily OHLCV bars for a symbol,
	// ordered ascending by date.
	GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]DailyPrice, error)
}

// HistoricalPriceStore is the persisted daily price series per symbol.
// GetPrices may return fewer rows than there are calendar days in range.
type HistoricalPriceStore interface {
	GetPrices(ctx context.Context, symbol string, from, to time.Time) ([]DailyPrice, error)
	SavePrices(ctx context.Context, prices []DailyPrice) error
}

// TransactionLedger is the ordered record of buys and sells per user.
// Mutation is an external collaborator concern; this core only reads.
type TransactionLedger interface {
	// GetTransactions returns all transactions for a user, ordered by
	// date ascending, ties broken by recording order.
	GetTransactions(ctx context.Context, userID string) ([]Transaction, error)

	// Symbols returns the distinct symbols the user has ever transacted.
	Symbols(ctx context.Context, userID string) ([]string, error)
}

// Clock answers market calendar questions. It is injected everywhere a
// component needs "is the market open" or trading-day arithmetic, so tests
// can simulate open and closed markets deterministically.
type Clock interface {
	// Now returns the current time. Injected so caches and engines are
	// testable with a fake clock.
	Now() time.Time

	// IsMarketOpen reports whether the market is open for trading at t,
	// accounting for weekends, holidays and session hours.
	IsMarketOpen(t time.Time) bool

	// IsTradingDay reports whether d falls on a trading day (ignores
	// intraday session hours).
	IsTradingDay(d time.Time) bool

	// LastTradingDayBefore returns the most recent trading day strictly
	// before d, at UTC midnight.
	LastTradingDayBefore(d time.Time) time.Time
}
