package portfolio

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/castlegate/networth/internal/domain"
)

// Return is an absolute and percentage change between two valuations.
// Percent is zero whenever the anchor value is zero: a portfolio that
// started from nothing has no meaningful percentage return.
type Return struct {
	Absolute float64 `json:"absolute"`
	Percent  float64 `json:"percent"`
}

// NewReturn computes the change from anchor to current.
func NewReturn(current, anchor float64) Return {
	r := Return{Absolute: current - anchor}
	if anchor != 0 {
		r.Percent = (current - anchor) / anchor * 100
	}
	return r
}

// HoldingPerformance is one position valued at its live quote.
type HoldingPerformance struct {
	Symbol          string  `json:"symbol"`
	Quantity        float64 `json:"quantity"`
	CostBasis       float64 `json:"cost_basis"`
	CurrentPrice    float64 `json:"current_price"`
	MarketValue     float64 `json:"market_value"`
	GainLoss        float64 `json:"gain_loss"`
	GainLossPercent float64 `json:"gain_loss_percent"`
	MarketOpen      bool    `json:"market_open"`
	Stale           bool    `json:"stale,omitempty"`
}

// ValueHolding prices a holding with a live quote.
func ValueHolding(h domain.Holding, q *domain.Quote) HoldingPerformance {
	value := h.Quantity * q.Price
	ret := NewReturn(value, h.CostBasis)
	return HoldingPerformance{
		Symbol:          h.Symbol,
		Quantity:        h.Quantity,
		CostBasis:       h.CostBasis,
		CurrentPrice:    q.Price,
		MarketValue:     value,
		GainLoss:        ret.Absolute,
		GainLossPercent: ret.Percent,
		MarketOpen:      q.MarketOpen,
		Stale:           q.Stale,
	}
}

// CurveStats summarizes a reconstructed value curve.
type CurveStats struct {
	// Volatility is the sample standard deviation of daily returns, in
	// percent.
	Volatility float64 `json:"volatility"`
	// MaxDrawdown is the largest peak-to-trough decline, in percent
	// (reported as a positive number).
	MaxDrawdown float64 `json:"max_drawdown"`
}

// ComputeCurveStats derives volatility and max drawdown from a value
// curve. Days with a zero previous value produce no daily return; a curve
// with fewer than two usable returns has zero volatility.
func ComputeCurveStats(points []domain.ValuePoint) CurveStats {
	var returns []float64
	for i := 1; i < len(points); i++ {
		prev := points[i-1].TotalValue
		if prev == 0 {
			continue
		}
		returns = append(returns, (points[i].TotalValue-prev)/prev*100)
	}

	var cs CurveStats
	if len(returns) >= 2 {
		cs.Volatility = stat.StdDev(returns, nil)
	}

	peak := math.Inf(-1)
	for _, p := range points {
		if p.TotalValue > peak {
			peak = p.TotalValue
		}
		if peak > 0 {
			dd := (peak - p.TotalValue) / peak * 100
			if dd > cs.MaxDrawdown {
				cs.MaxDrawdown = dd
			}
		}
	}
	return cs
}
