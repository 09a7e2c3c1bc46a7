package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/castlegate/networth/internal/domain"
	"github.com/castlegate/networth/internal/modules/ledger"
)

// QuoteProvider supplies live quotes for summary valuation. Implemented by
// the market data service.
type QuoteProvider interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]*domain.Quote, error)
}

// Summary is the complete current state of a portfolio: live-valued
// holdings, totals and period returns. Degraded is set when any input was
// stale or inconsistent; the summary is still served.
type Summary struct {
	UserID         string               `json:"user_id"`
	Holdings       []HoldingPerformance `json:"holdings"`
	TotalValue     float64              `json:"total_value"`
	TotalCostBasis float64              `json:"total_cost_basis"`
	TotalGainLoss  Return               `json:"total_gain_loss"`
	Returns        map[string]Return    `json:"returns"`
	MarketOpen     bool                 `json:"market_open"`
	Degraded       bool                 `json:"degraded,omitempty"`
	AsOf           time.Time            `json:"as_of"`
}

// History is a reconstructed value curve with its summary statistics.
type History struct {
	Period   Period              `json:"period"`
	Points   []domain.ValuePoint `json:"points"`
	Stats    CurveStats          `json:"stats"`
	Degraded bool                `json:"degraded,omitempty"`
}

// Service composes the ledger, the reconstruction engine and live quotes
// into the portfolio read API.
type Service struct {
	ledger domain.TransactionLedger
	quotes QuoteProvider
	engine *ReconstructionEngine
	clock  domain.Clock
	log    zerolog.Logger
}

// NewService creates a portfolio service.
func NewService(txLedger domain.TransactionLedger, quotes QuoteProvider, engine *ReconstructionEngine, clock domain.Clock, log zerolog.Logger) *Service {
	return &Service{
		ledger: txLedger,
		quotes: quotes,
		engine: engine,
		clock:  clock,
		log:    log.With().Str("service", "portfolio").Logger(),
	}
}

// GetCompletePortfolioSummary values the current holdings at live quotes
// and attaches 7d/1m/3m/YTD returns against reconstructed anchors.
func (s *Service) GetCompletePortfolioSummary(ctx context.Context, userID string) (*Summary, error) {
	now := s.clock.Now()
	summary := &Summary{
		UserID:     userID,
		Holdings:   []HoldingPerformance{},
		Returns:    map[string]Return{},
		MarketOpen: s.clock.IsMarketOpen(now),
		AsOf:       now,
	}

	txs, err := s.ledger.GetTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger for %s: %w", userID, err)
	}
	series := ledger.NewPositionSeries(userID, txs, s.log)
	if len(series.Violations()) > 0 {
		summary.Degraded = true
	}

	holdings := series.Holdings(domain.Day(now))
	if len(holdings) == 0 {
		return summary, nil
	}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}
	quotes, err := s.quotes.GetQuotes(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("failed to quote holdings for %s: %w", userID, err)
	}

	for _, h := range holdings {
		q, ok := quotes[h.Symbol]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrQuoteUnavailable, h.Symbol)
		}
		hp := ValueHolding(h, q)
		if hp.Stale {
			summary.Degraded = true
		}
		summary.Holdings = append(summary.Holdings, hp)
		summary.TotalValue += hp.MarketValue
		summary.TotalCostBasis += hp.CostBasis
	}
	summary.TotalGainLoss = NewReturn(summary.TotalValue, summary.TotalCostBasis)

	s.attachPeriodReturns(ctx, summary, now)
	return summary, nil
}

// attachPeriodReturns computes returns against reconstructed anchor
// valuations. A missing anchor (engine failure) degrades the summary
// instead of failing it.
func (s *Service) attachPeriodReturns(ctx context.Context, summary *Summary, now time.Time) {
	anchors := map[string]time.Time{
		"7d":  now.AddDate(0, 0, -7),
		"1m":  now.AddDate(0, -1, 0),
		"3m":  now.AddDate(0, -3, 0),
		"ytd": time.Date(now.UTC().Year(), 1, 1, 0, 0, 0, 0, time.UTC),
	}

	for name, date := range anchors {
		anchor, degraded, err := s.engine.ValueOn(ctx, summary.UserID, date)
		if err != nil {
			s.log.Warn().Err(err).Str("user", summary.UserID).Str("period", name).
				Msg("Failed to reconstruct anchor value")
			summary.Degraded = true
			continue
		}
		if degraded {
			summary.Degraded = true
		}
		summary.Returns[name] = NewReturn(summary.TotalValue, anchor)
	}
}

// GetReconstructedHistory returns the value curve for a period with curve
// statistics. Unknown periods return domain.ErrInvalidPeriod.
func (s *Service) GetReconstructedHistory(ctx context.Context, userID string, period Period) (*History, error) {
	points, err := s.engine.Reconstruct(ctx, userID, period)
	if err != nil {
		return nil, err
	}

	h := &History{
		Period: period,
		Points: points,
		Stats:  ComputeCurveStats(points),
	}
	for _, p := range points {
		if p.Degraded {
			h.Degraded = true
			break
		}
	}
	return h, nil
}
