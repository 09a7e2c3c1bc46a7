package history

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/castlegate/networth/internal/domain"
)

type fakeSymbolSource struct {
	symbols []string
	err     error
}

func (s *fakeSymbolSource) AllSymbols(ctx context.Context) ([]string, error) {
	return s.symbols, s.err
}

type fakeBarClient struct {
	bars  map[string][]domain.DailyPrice
	errs  map[string]error
	calls []barCall
}

type barCall struct {
	symbol   string
	from, to time.Time
}

func (c *fakeBarClient) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeBarClient) GetBatchQuotes(ctx context.Context, symbols []string) (map[string]*domain.Quote, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeBarClient) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.DailyPrice, error) {
	c.calls = append(c.calls, barCall{symbol: symbol, from: from, to: to})
	if err, ok := c.errs[symbol]; ok {
		return nil, err
	}
	return c.bars[symbol], nil
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time              { return c.now }
func (c *fixedClock) IsMarketOpen(time.Time) bool { return false }
func (c *fixedClock) IsTradingDay(time.Time) bool { return true }
func (c *fixedClock) LastTradingDayBefore(d time.Time) time.Time {
	return domain.Day(d).AddDate(0, 0, -1)
}

func setupSyncRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(db, zerolog.Nop())
	require.NoError(t, err)
	return repo
}

func TestSyncJob_BackfillsNewSymbolWithLookback(t *testing.T) {
	repo := setupSyncRepo(t)
	today := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: today.Add(22 * time.Hour)}

	client := &fakeBarClient{bars: map[string][]domain.DailyPrice{
		"AAPL": {bar("AAPL", today.AddDate(0, 0, -1), 170), bar("AAPL", today, 171)},
	}}
	job := NewSyncJob(repo, client, &fakeSymbolSource{symbols: []string{"AAPL"}},
		clock, 30*24*time.Hour, time.Minute, zerolog.Nop())

	require.NoError(t, job.Run())
	require.Len(t, client.calls, 1)
	assert.Equal(t, today.AddDate(0, 0, -30), client.calls[0].from)
	assert.Equal(t, today, client.calls[0].to)

	prices, err := repo.GetPrices(context.Background(), "AAPL", today.AddDate(0, 0, -30), today)
	require.NoError(t, err)
	assert.Len(t, prices, 2)
}

func TestSyncJob_IncrementalFromLatestStoredBar(t *testing.T) {
	repo := setupSyncRepo(t)
	today := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: today}

	stored := today.AddDate(0, 0, -3)
	require.NoError(t, repo.SavePrices(context.Background(), []domain.DailyPrice{bar("AAPL", stored, 168)}))

	client := &fakeBarClient{bars: map[string][]domain.DailyPrice{}}
	job := NewSyncJob(repo, client, &fakeSymbolSource{symbols: []string{"AAPL"}},
		clock, 30*24*time.Hour, time.Minute, zerolog.Nop())

	require.NoError(t, job.Run())
	require.Len(t, client.calls, 1)
	assert.Equal(t, stored.AddDate(0, 0, 1), client.calls[0].from)
}

func TestSyncJob_SkipsSymbolAlreadyCurrent(t *testing.T) {
	repo := setupSyncRepo(t)
	today := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: today}

	require.NoError(t, repo.SavePrices(context.Background(), []domain.DailyPrice{bar("AAPL", today, 171)}))

	client := &fakeBarClient{}
	job := NewSyncJob(repo, client, &fakeSymbolSource{symbols: []string{"AAPL"}},
		clock, 30*24*time.Hour, time.Minute, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Empty(t, client.calls)
}

func TestSyncJob_PartialFailureDoesNotAbortRun(t *testing.T) {
	repo := setupSyncRepo(t)
	today := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	clock := &fixedClock{now: today}

	client := &fakeBarClient{
		bars: map[string][]domain.DailyPrice{"MSFT": {bar("MSFT", today, 410)}},
		errs: map[string]error{"AAPL": &domain.ProviderError{Kind: domain.ProviderUpstream, Symbol: "AAPL", Err: errors.New("503")}},
	}
	job := NewSyncJob(repo, client, &fakeSymbolSource{symbols: []string{"AAPL", "MSFT"}},
		clock, 30*24*time.Hour, time.Minute, zerolog.Nop())

	require.NoError(t, job.Run())

	prices, err := repo.GetPrices(context.Background(), "MSFT", today, today)
	require.NoError(t, err)
	assert.Len(t, prices, 1)
}

func TestSyncJob_AllSymbolsFailingReturnsError(t *testing.T) {
	repo := setupSyncRepo(t)
	clock := &fixedClock{now: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)}

	client := &fakeBarClient{
		errs: map[string]error{"AAPL": errors.New("down")},
	}
	job := NewSyncJob(repo, client, &fakeSymbolSource{symbols: []string{"AAPL"}},
		clock, 30*24*time.Hour, time.Minute, zerolog.Nop())

	assert.Error(t, job.Run())
}

func TestSyncJob_NoSymbolsIsNoop(t *testing.T) {
	repo := setupSyncRepo(t)
	clock := &fixedClock{now: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)}

	client := &fakeBarClient{}
	job := NewSyncJob(repo, client, &fakeSymbolSource{symbols: nil},
		clock, 30*24*time.Hour, time.Minute, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Empty(t, client.calls)
	assert.Equal(t, "price_sync", job.Name())
}
