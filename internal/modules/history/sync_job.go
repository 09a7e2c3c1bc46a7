package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/castlegate/networth/internal/domain"
)

// SymbolSource lists every symbol whose price history should be kept
// current. Backed by the transaction ledger in production.
type SymbolSource interface {
	AllSymbols(ctx context.Context) ([]string, error)
}

// SyncJob pulls daily bars from the provider for every ledger symbol and
// upserts them into the price store. Scheduled after market close on
// trading days; each run is incremental from the last stored bar, with a
// configurable lookback for symbols that have no history yet.
type SyncJob struct {
	repo     *Repository
	client   domain.MarketDataClient
	symbols  SymbolSource
	clock    domain.Clock
	lookback time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

// NewSyncJob creates a price sync job.
func NewSyncJob(repo *Repository, client domain.MarketDataClient, symbols SymbolSource, clock domain.Clock, lookback, timeout time.Duration, log zerolog.Logger) *SyncJob {
	if lookback <= 0 {
		lookback = 30 * 24 * time.Hour
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &SyncJob{
		repo:     repo,
		client:   client,
		symbols:  symbols,
		clock:    clock,
		lookback: lookback,
		timeout:  timeout,
		log:      log.With().Str("job", "price_sync").Logger(),
	}
}

// Name implements scheduler.Job.
func (j *SyncJob) Name() string { return "price_sync" }

// Run syncs every ledger symbol. Per-symbol failures are logged and
// counted but do not abort the run; the job fails only when nothing could
// be synced at all.
func (j *SyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	symbols, err := j.symbols.AllSymbols(ctx)
	if err != nil {
		return fmt.Errorf("failed to list ledger symbols: %w", err)
	}
	if len(symbols) == 0 {
		j.log.Debug().Msg("No symbols to sync")
		return nil
	}

	var synced, failed int
	for _, symbol := range symbols {
		if err := j.syncSymbol(ctx, symbol); err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Price sync failed for symbol")
			failed++
			continue
		}
		synced++
	}

	j.log.Info().Int("synced", synced).Int("failed", failed).Msg("Price sync complete")
	if synced == 0 && failed > 0 {
		return fmt.Errorf("price sync failed for all %d symbols", failed)
	}
	return nil
}

func (j *SyncJob) syncSymbol(ctx context.Context, symbol string) error {
	today := domain.Day(j.clock.Now())

	from := today.Add(-j.lookback)
	latest, err := j.repo.LatestDate(ctx, symbol)
	if err != nil {
		return err
	}
	if !latest.IsZero() {
		from = latest.AddDate(0, 0, 1)
	}
	if from.After(today) {
		return nil
	}

	bars, err := j.client.GetDailyBars(ctx, symbol, from, today)
	if err != nil {
		return fmt.Errorf("fetch daily bars: %w", err)
	}
	if len(bars) == 0 {
		return nil
	}
	return j.repo.SavePrices(ctx, bars)
}
