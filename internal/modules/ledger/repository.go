// Package ledger stores the immutable transaction record and derives
// positions from it by replay.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/castlegate/networth/internal/domain"
)

// Repository provides access to the transaction ledger. It implements
// domain.TransactionLedger. Rows are append-only: corrections are new
// entries, never updates.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a ledger repository and ensures its schema.
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	r := &Repository{
		db:  db,
		log: log.With().Str("component", "ledger_repository").Logger(),
	}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) initSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('BUY', 'SELL')),
			quantity REAL NOT NULL CHECK (quantity > 0),
			price_per_share REAL NOT NULL CHECK (price_per_share >= 0),
			date INTEGER NOT NULL,
			recorded_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, date, recorded_at);
		CREATE INDEX IF NOT EXISTS idx_transactions_symbol ON transactions(symbol);
	`)
	if err != nil {
		return fmt.Errorf("failed to create transactions schema: %w", err)
	}
	return nil
}

// Add appends a transaction. A zero ID gets a generated one; a zero
// RecordedAt is stamped with the current time.
func (r *Repository) Add(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.RecordedAt.IsZero() {
		tx.RecordedAt = time.Now().UTC()
	}
	if err := tx.Validate(); err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid transaction: %w", err)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
		(id, user_id, symbol, type, quantity, price_per_share, date, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID.String(),
		tx.UserID,
		tx.Symbol,
		string(tx.Type),
		tx.Quantity,
		tx.PricePerShare,
		domain.Day(tx.Date).Unix(),
		tx.RecordedAt.Unix(),
	)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to insert transaction: %w", err)
	}

	r.log.Debug().Str("user", tx.UserID).Str("symbol", tx.Symbol).
		Str("type", string(tx.Type)).Float64("quantity", tx.Quantity).
		Msg("Transaction recorded")
	return tx, nil
}

// GetTransactions returns all transactions for a user, ordered by date
// ascending with ties broken by recording order.
func (r *Repository) GetTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, symbol, type, quantity, price_per_share, date, recorded_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY date ASC, recorded_at ASC, rowid ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var id string
		var dateUnix, recordedUnix int64
		if err := rows.Scan(&id, &tx.UserID, &tx.Symbol, &tx.Type, &tx.Quantity,
			&tx.PricePerShare, &dateUnix, &recordedUnix); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction id %q: %w", id, err)
		}
		tx.Date = time.Unix(dateUnix, 0).UTC()
		tx.RecordedAt = time.Unix(recordedUnix, 0).UTC()
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// Symbols returns the distinct symbols the user has ever transacted.
func (r *Repository) Symbols(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT symbol FROM transactions WHERE user_id = ? ORDER BY symbol
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user symbols: %w", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

// AllSymbols returns the distinct symbols across all users. Drives the
// nightly price sync.
func (r *Repository) AllSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM transactions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger symbols: %w", err)
	}
	defer rows.Close()
	return scanSymbols(rows)
}

// FirstTransactionDate returns the date of the user's earliest transaction,
// or the zero time for an empty ledger. Anchors the ALL period.
func (r *Repository) FirstTransactionDate(ctx context.Context, userID string) (time.Time, error) {
	var dateUnix sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MIN(date) FROM transactions WHERE user_id = ?
	`, userID).Scan(&dateUnix)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query first transaction date: %w", err)
	}
	if !dateUnix.Valid {
		return time.Time{}, nil
	}
	return time.Unix(dateUnix.Int64, 0).UTC(), nil
}

func scanSymbols(rows *sql.Rows) ([]string, error) {
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
