package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/castlegate/networth/internal/domain"
)

// ServiceConfig holds fetch tuning for the market data service.
type ServiceConfig struct {
	FetchTimeout     time.Duration // Deadline for a single provider fetch
	BatchParallelism int           // Concurrent provider fetches during a batch fill
}

// DefaultServiceConfig returns sensible fetch defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		FetchTimeout:     10 * time.Second,
		BatchParallelism: 4,
	}
}

// Service fronts the quote cache with the external provider client.
//
// Read path: cache hit, else a single-flight fetch per symbol; concurrent
// callers for the same uncached symbol share one outbound request. On
// provider failure the last known value is served (marked stale); only
// when no prior value exists does the failure propagate.
type Service struct {
	cache  *QuoteCache
	client domain.MarketDataClient
	clock  domain.Clock
	cfg    ServiceConfig
	flight singleflight.Group
	log    zerolog.Logger
}

// NewService creates a market data service.
func NewService(cache *QuoteCache, client domain.MarketDataClient, clock domain.Clock, cfg ServiceConfig, log zerolog.Logger) *Service {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.BatchParallelism <= 0 {
		cfg.BatchParallelism = 4
	}
	return &Service{
		cache:  cache,
		client: client,
		clock:  clock,
		cfg:    cfg,
		log:    log.With().Str("service", "marketdata").Logger(),
	}
}

// GetQuote returns a quote for symbol: from cache when fresh, otherwise via
// a coalesced provider fetch with stale fallback.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if q, ok := s.cache.Get(symbol); ok {
		return &q, nil
	}
	return s.fetchCoalesced(ctx, symbol)
}

// GetQuotes returns quotes for all symbols. Fresh cache entries are used
// as-is; misses are fetched concurrently (each through the same per-symbol
// single-flight as GetQuote). Fails as a whole if any symbol is
// irrecoverably unavailable.
func (s *Service) GetQuotes(ctx context.Context, symbols []string) (map[string]*domain.Quote, error) {
	hits, misses := s.cache.GetBatch(symbols)

	result := make(map[string]*domain.Quote, len(symbols))
	for symbol, q := range hits {
		quote := q
		result[symbol] = &quote
	}
	if len(misses) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchParallelism)

	for _, symbol := range misses {
		symbol := symbol
		g.Go(func() error {
			q, err := s.fetchCoalesced(gctx, symbol)
			if err != nil {
				return fmt.Errorf("batch quote %s: %w", symbol, err)
			}
			mu.Lock()
			result[symbol] = q
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// fetchCoalesced runs the single-flight provider fetch for one symbol.
// The fetch itself runs detached from the caller's context (with its own
// deadline) so one caller's cancellation cannot fail the waiters; the
// caller still stops waiting when its own context ends.
func (s *Service) fetchCoalesced(ctx context.Context, symbol string) (*domain.Quote, error) {
	s.cache.Pin(symbol)
	defer s.cache.Unpin(symbol)

	ch := s.flight.DoChan(symbol, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
		defer cancel()

		q, err := s.client.GetQuote(fetchCtx, symbol)
		if err != nil {
			return nil, err
		}
		s.store(q)
		return q, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return s.fallback(symbol, res.Err)
		}
		return res.Val.(*domain.Quote), nil
	}
}

// fallback serves the last known value after a provider failure, marked
// stale. With no prior value the original error propagates, wrapped as
// quote-unavailable.
func (s *Service) fallback(symbol string, cause error) (*domain.Quote, error) {
	if q, ok := s.cache.GetStale(symbol); ok {
		s.log.Warn().Err(cause).Str("symbol", symbol).Msg("Provider failed, serving stale quote")
		return &q, nil
	}
	return nil, fmt.Errorf("%w: %s: %v", domain.ErrQuoteUnavailable, symbol, cause)
}

// store stamps the market-open flag and installs the quote with the TTL
// class resolved from the market calendar at the quote's as-of time. The
// quote is stamped in place so callers hand out the same flagged value
// the cache holds.
func (s *Service) store(q *domain.Quote) {
	class := ClassOffHours
	q.MarketOpen = s.clock.IsMarketOpen(q.AsOf)
	if q.MarketOpen {
		class = ClassMarketHours
	}
	s.cache.Put(*q, class)
}

// Refresh force-fetches the given symbols, bypassing cache freshness.
// Symbols the provider omits keep their previous cached value; a total
// provider failure is returned to the caller.
func (s *Service) Refresh(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	quotes, err := s.client.GetBatchQuotes(fetchCtx, symbols)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	for _, symbol := range symbols {
		q, ok := quotes[symbol]
		if !ok {
			s.log.Warn().Str("symbol", symbol).Msg("Provider omitted symbol from refresh batch")
			continue
		}
		s.store(q)
	}
	return nil
}

// CacheStats exposes the cache's hit/miss counters.
func (s *Service) CacheStats() Stats {
	return s.cache.Stats()
}

// TopAccessed exposes the warm-ranking counters for the warming job.
func (s *Service) TopAccessed(n int) []string {
	return s.cache.TopAccessed(n)
}
