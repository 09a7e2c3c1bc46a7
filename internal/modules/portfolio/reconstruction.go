package portfolio

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/castlegate/networth/internal/domain"
	"github.com/castlegate/networth/internal/modules/ledger"
)

// EngineConfig tunes the reconstruction engine.
type EngineConfig struct {
	// PriceLookback is how far before the period start prices are loaded,
	// so the first days of a range can backfill from the latest prior bar.
	PriceLookback time.Duration
}

// DefaultEngineConfig returns the default tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{PriceLookback: 30 * 24 * time.Hour}
}

// ReconstructionEngine replays the transaction ledger against the stored
// daily price series to produce a portfolio value curve. The ledger is the
// single source of truth: no balances are read, only derived.
type ReconstructionEngine struct {
	prices domain.HistoricalPriceStore
	ledger domain.TransactionLedger
	clock  domain.Clock
	cfg    EngineConfig
	log    zerolog.Logger
}

// NewReconstructionEngine creates a reconstruction engine.
func NewReconstructionEngine(prices domain.HistoricalPriceStore, txLedger domain.TransactionLedger, clock domain.Clock, cfg EngineConfig, log zerolog.Logger) *ReconstructionEngine {
	if cfg.PriceLookback <= 0 {
		cfg.PriceLookback = 30 * 24 * time.Hour
	}
	return &ReconstructionEngine{
		prices: prices,
		ledger: txLedger,
		clock:  clock,
		cfg:    cfg,
		log:    log.With().Str("component", "reconstruction").Logger(),
	}
}

// priceSeries is one symbol's bars sorted ascending, supporting
// latest-at-or-before lookups.
type priceSeries struct {
	dates  []time.Time
	closes []float64
}

func newPriceSeries(bars []domain.DailyPrice) *priceSeries {
	s := &priceSeries{
		dates:  make([]time.Time, 0, len(bars)),
		closes: make([]float64, 0, len(bars)),
	}
	for _, b := range bars {
		s.dates = append(s.dates, domain.Day(b.Date))
		s.closes = append(s.closes, b.Close)
	}
	return s
}

// priceOn returns the close for the latest bar at or before day. Future
// bars are never used.
func (s *priceSeries) priceOn(day time.Time) (float64, bool) {
	i := sort.Search(len(s.dates), func(i int) bool {
		return s.dates[i].After(day)
	})
	if i == 0 {
		return 0, false
	}
	return s.closes[i-1], true
}

// valuation bundles the replayed positions and price series for a range.
type valuation struct {
	series *ledger.PositionSeries
	prices map[string]*priceSeries
}

// load builds a valuation for userID covering [from, to]. Price rows are
// fetched with the configured lookback before from so early days can
// backfill.
func (e *ReconstructionEngine) load(ctx context.Context, userID string, from, to time.Time) (*valuation, error) {
	txs, err := e.ledger.GetTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger for %s: %w", userID, err)
	}
	series := ledger.NewPositionSeries(userID, txs, e.log)

	v := &valuation{
		series: series,
		prices: make(map[string]*priceSeries),
	}
	priceFrom := from.Add(-e.cfg.PriceLookback)
	for _, symbol := range series.Symbols() {
		bars, err := e.prices.GetPrices(ctx, symbol, priceFrom, to)
		if err != nil {
			return nil, fmt.Errorf("failed to load prices for %s: %w", symbol, err)
		}
		v.prices[symbol] = newPriceSeries(bars)
	}
	return v, nil
}

// valueOn computes the portfolio value on one day. Degraded is set when a
// held symbol has no usable price or its ledger replay was inconsistent;
// such symbols contribute zero rather than failing the day.
func (v *valuation) valueOn(day time.Time) (total float64, degraded bool) {
	for _, symbol := range v.series.Symbols() {
		if v.series.ViolatedBy(symbol, day) {
			degraded = true
		}
		qty := v.series.QuantityOn(symbol, day)
		if qty <= 0 {
			continue
		}
		price, ok := v.prices[symbol].priceOn(day)
		if !ok {
			degraded = true
			continue
		}
		total += qty * price
	}
	return total, degraded
}

// Reconstruct returns the daily value curve for userID over period, one
// point per trading day, ascending by date. Zero-value days inside the
// range are included so the curve has no gaps. A cancelled context returns
// the error, never a truncated curve.
func (e *ReconstructionEngine) Reconstruct(ctx context.Context, userID string, period Period) ([]domain.ValuePoint, error) {
	from, to, err := period.Range(e.clock)
	if err != nil {
		return nil, err
	}

	if from.IsZero() {
		first, err := firstTransactionDate(ctx, e.ledger, userID)
		if err != nil {
			return nil, err
		}
		if first.IsZero() {
			return []domain.ValuePoint{}, nil
		}
		from = first
	}
	if from.After(to) {
		return []domain.ValuePoint{}, nil
	}

	v, err := e.load(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	var points []domain.ValuePoint
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reconstruction cancelled: %w", err)
		}
		if !e.clock.IsTradingDay(day) {
			continue
		}
		total, degraded := v.valueOn(day)
		points = append(points, domain.ValuePoint{Date: day, TotalValue: total, Degraded: degraded})
	}
	return points, nil
}

// ValueOn returns the portfolio value at end of the given day. Non-trading
// days resolve to the last trading day before them, so anchors taken on a
// weekend use Friday's close.
func (e *ReconstructionEngine) ValueOn(ctx context.Context, userID string, date time.Time) (float64, bool, error) {
	day := domain.Day(date)
	if !e.clock.IsTradingDay(day) {
		day = e.clock.LastTradingDayBefore(day)
	}

	v, err := e.load(ctx, userID, day, day)
	if err != nil {
		return 0, false, err
	}
	total, degraded := v.valueOn(day)
	return total, degraded, nil
}

// firstTransactionDate resolves the ALL-period anchor. Uses the ledger
// repository's direct lookup when available, otherwise scans.
func firstTransactionDate(ctx context.Context, l domain.TransactionLedger, userID string) (time.Time, error) {
	type firstDater interface {
		FirstTransactionDate(ctx context.Context, userID string) (time.Time, error)
	}
	if fd, ok := l.(firstDater); ok {
		return fd.FirstTransactionDate(ctx, userID)
	}

	txs, err := l.GetTransactions(ctx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load ledger for %s: %w", userID, err)
	}
	if len(txs) == 0 {
		return time.Time{}, nil
	}
	first := domain.Day(txs[0].Date)
	for _, tx := range txs[1:] {
		if d := domain.Day(tx.Date); d.Before(first) {
			first = d
		}
	}
	return first, nil
}
