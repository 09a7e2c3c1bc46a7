// Package history persists and syncs the daily price series used for
// portfolio reconstruction.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/castlegate/networth/internal/domain"
)

// Repository provides access to the daily price store. It implements
// domain.HistoricalPriceStore.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a price history repository and ensures its schema.
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	r := &Repository{
		db:  db,
		log: log.With().Str("component", "history_repository").Logger(),
	}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) initSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_prices (
			symbol TEXT NOT NULL,
			date INTEGER NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, date)
		);
		CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);
	`)
	if err != nil {
		return fmt.Errorf("failed to create daily_prices schema: %w", err)
	}
	return nil
}

// GetPrices returns the stored bars for symbol in [from, to], ordered by
// date ascending. Gaps (weekends, holidays, provider misses) simply have
// no row.
func (r *Repository) GetPrices(ctx context.Context, symbol string, from, to time.Time) ([]domain.DailyPrice, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT symbol, date, open, high, low, close, volume
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, domain.Day(from).Unix(), domain.Day(to).Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []domain.DailyPrice
	for rows.Next() {
		var p domain.DailyPrice
		var dateUnix int64
		if err := rows.Scan(&p.Symbol, &dateUnix, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		p.Date = time.Unix(dateUnix, 0).UTC()
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}
	return prices, nil
}

// SavePrices upserts bars in one transaction. Re-syncing a range is safe:
// an existing (symbol, date) row is replaced.
func (r *Repository) SavePrices(ctx context.Context, prices []domain.DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO daily_prices
		(symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		if p.Symbol == "" || p.Date.IsZero() {
			return fmt.Errorf("invalid price row: symbol=%q date=%v", p.Symbol, p.Date)
		}
		_, err := stmt.ExecContext(ctx,
			p.Symbol,
			domain.Day(p.Date).Unix(),
			p.Open,
			p.High,
			p.Low,
			p.Close,
			p.Volume,
		)
		if err != nil {
			return fmt.Errorf("failed to insert daily price %s %s: %w",
				p.Symbol, p.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit daily prices: %w", err)
	}

	r.log.Debug().Int("rows", len(prices)).Msg("Saved daily prices")
	return nil
}

// LatestDate returns the most recent stored bar date for symbol, or the
// zero time when the symbol has no history yet.
func (r *Repository) LatestDate(ctx context.Context, symbol string) (time.Time, error) {
	var dateUnix sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(date) FROM daily_prices WHERE symbol = ?
	`, symbol).Scan(&dateUnix)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest price date: %w", err)
	}
	if !dateUnix.Valid {
		return time.Time{}, nil
	}
	return time.Unix(dateUnix.Int64, 0).UTC(), nil
}

// Symbols returns the distinct symbols with any stored history.
func (r *Repository) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM daily_prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query price symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}
	return symbols, nil
}
