// Package domain contains the core types shared across modules.
// It is pure: no infrastructure dependencies, no logging, no I/O.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Quote is a point-in-time market quote for a single symbol.
type Quote struct {
	Symbol             string    `json:"symbol"`
	Price              float64   `json:"price"`
	DailyChange        float64   `json:"daily_change"`
	DailyChangePercent float64   `json:"daily_change_percent"`
	MarketOpen         bool      `json:"market_open"`
	AsOf               time.Time `json:"as_of"`

	// Stale is set when the quote was served from an expired cache entry
	// because the provider was unavailable. Never set on a fresh fetch.
	Stale bool `json:"stale,omitempty"`
}

// DailyPrice is one OHLCV bar for a symbol on a trading day.
// Date is always UTC midnight; absence of a bar for a calendar date
// (weekend, holiday, provider gap) is expected, not an error.
type DailyPrice struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// TransactionType is the side of a ledger entry.
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// Transaction is a single immutable ledger entry. Transactions are never
// updated or deleted by this system; corrections are new entries, recorded
// by an external collaborator.
type Transaction struct {
	ID            uuid.UUID       `json:"id"`
	UserID        string          `json:"user_id"`
	Symbol        string          `json:"symbol"`
	Type          TransactionType `json:"type"`
	Quantity      float64         `json:"quantity"`
	PricePerShare float64         `json:"price_per_share"`
	Date          time.Time       `json:"date"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

// Validate checks the structural invariants of a transaction.
func (t Transaction) Validate() error {
	if t.UserID == "" {
		return fmt.Errorf("transaction %s: missing user id", t.ID)
	}
	if t.Symbol == "" {
		return fmt.Errorf("transaction %s: missing symbol", t.ID)
	}
	if t.Type != TransactionBuy && t.Type != TransactionSell {
		return fmt.Errorf("transaction %s: unknown type %q", t.ID, t.Type)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("transaction %s: quantity must be positive, got %v", t.ID, t.Quantity)
	}
	if t.PricePerShare < 0 {
		return fmt.Errorf("transaction %s: negative price per share", t.ID)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction %s: missing date", t.ID)
	}
	return nil
}

// Holding is a derived position. Quantity and CostBasis are always
// recomputed from the ledger on read; they are never stored as
// authoritative state.
type Holding struct {
	UserID    string  `json:"user_id"`
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	CostBasis float64 `json:"cost_basis"`
}

// ValuePoint is one day of a reconstructed portfolio value curve.
// Degraded marks days whose total is known to be incomplete because a held
// symbol had no usable price (or the ledger was inconsistent for it).
type ValuePoint struct {
	Date       time.Time `json:"date"`
	TotalValue float64   `json:"total_value"`
	Degraded   bool      `json:"degraded,omitempty"`
}

// Day truncates a timestamp to UTC midnight. All daily series use this
// normalization so date equality is plain time.Equal.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
