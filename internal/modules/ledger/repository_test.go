package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/castlegate/networth/internal/domain"
)

func setupRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(db, zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func buy(userID, symbol string, qty, price float64, date time.Time) domain.Transaction {
	return domain.Transaction{
		UserID:        userID,
		Symbol:        symbol,
		Type:          domain.TransactionBuy,
		Quantity:      qty,
		PricePerShare: price,
		Date:          date,
	}
}

func sell(userID, symbol string, qty, price float64, date time.Time) domain.Transaction {
	tx := buy(userID, symbol, qty, price, date)
	tx.Type = domain.TransactionSell
	return tx
}

func TestAdd_GeneratesIDAndRecordedAt(t *testing.T) {
	repo := setupRepo(t)

	tx, err := repo.Add(context.Background(),
		buy("u1", "AAPL", 10, 150, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tx.ID)
	assert.False(t, tx.RecordedAt.IsZero())
}

func TestAdd_RejectsInvalidTransaction(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.Add(context.Background(),
		buy("u1", "AAPL", -5, 150, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)))
	assert.Error(t, err)

	_, err = repo.Add(context.Background(),
		buy("u1", "", 5, 150, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)))
	assert.Error(t, err)
}

func TestGetTransactions_OrderedByDateThenRecording(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	d1 := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	// Same trade date, recorded in sequence: a buy then the sell of it.
	later := buy("u1", "AAPL", 10, 150, d2)
	later.RecordedAt = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	_, err := repo.Add(ctx, later)
	require.NoError(t, err)

	sameDaySell := sell("u1", "AAPL", 5, 155, d2)
	sameDaySell.RecordedAt = time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	_, err = repo.Add(ctx, sameDaySell)
	require.NoError(t, err)

	earliest := buy("u1", "AAPL", 1, 140, d1)
	earliest.RecordedAt = time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC)
	_, err = repo.Add(ctx, earliest)
	require.NoError(t, err)

	txs, err := repo.GetTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, d1, txs[0].Date)
	assert.Equal(t, domain.TransactionBuy, txs[1].Type)
	assert.Equal(t, domain.TransactionSell, txs[2].Type)
}

func TestGetTransactions_FiltersByUser(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	d := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	_, err := repo.Add(ctx, buy("u1", "AAPL", 10, 150, d))
	require.NoError(t, err)
	_, err = repo.Add(ctx, buy("u2", "MSFT", 3, 400, d))
	require.NoError(t, err)

	txs, err := repo.GetTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "AAPL", txs[0].Symbol)

	txs, err = repo.GetTransactions(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSymbols_PerUserAndGlobal(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	d := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	_, err := repo.Add(ctx, buy("u1", "AAPL", 10, 150, d))
	require.NoError(t, err)
	_, err = repo.Add(ctx, buy("u1", "AAPL", 5, 151, d.AddDate(0, 0, 1)))
	require.NoError(t, err)
	_, err = repo.Add(ctx, buy("u2", "MSFT", 3, 400, d))
	require.NoError(t, err)

	symbols, err := repo.Symbols(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, symbols)

	all, err := repo.AllSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, all)
}

func TestFirstTransactionDate(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	first, err := repo.FirstTransactionDate(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, first.IsZero())

	d1 := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = repo.Add(ctx, buy("u1", "AAPL", 10, 150, d2))
	require.NoError(t, err)
	_, err = repo.Add(ctx, buy("u1", "AAPL", 10, 140, d1))
	require.NoError(t, err)

	first, err = repo.FirstTransactionDate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, d1, first)
}
