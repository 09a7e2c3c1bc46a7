package marketdata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlegate/networth/internal/domain"
)

// fakeMarketClock implements domain.Clock with a fixed market state.
type fakeMarketClock struct {
	clock *manualClock
	open  bool
}

func (c *fakeMarketClock) Now() time.Time              { return c.clock.Now() }
func (c *fakeMarketClock) IsMarketOpen(time.Time) bool { return c.open }
func (c *fakeMarketClock) IsTradingDay(time.Time) bool { return true }
func (c *fakeMarketClock) LastTradingDayBefore(d time.Time) time.Time {
	return domain.Day(d).AddDate(0, 0, -1)
}

// fakeClient counts provider calls and can be made slow or failing.
type fakeClient struct {
	quoteCalls int32
	batchCalls int32
	delay      time.Duration
	err        error

	mu    sync.Mutex
	price float64
}

func (c *fakeClient) setPrice(p float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.price = p
}

func (c *fakeClient) currentPrice() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.price
}

func (c *fakeClient) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	atomic.AddInt32(&c.quoteCalls, 1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, &domain.ProviderError{Kind: domain.ProviderTimeout, Symbol: symbol, Err: ctx.Err()}
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return &domain.Quote{Symbol: symbol, Price: c.currentPrice(), AsOf: time.Now()}, nil
}

func (c *fakeClient) GetBatchQuotes(ctx context.Context, symbols []string) (map[string]*domain.Quote, error) {
	atomic.AddInt32(&c.batchCalls, 1)
	if c.err != nil {
		return nil, c.err
	}
	quotes := make(map[string]*domain.Quote, len(symbols))
	for _, symbol := range symbols {
		quotes[symbol] = &domain.Quote{Symbol: symbol, Price: c.currentPrice(), AsOf: time.Now()}
	}
	return quotes, nil
}

func (c *fakeClient) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.DailyPrice, error) {
	return nil, nil
}

func newTestService(t *testing.T, client *fakeClient, open bool) (*Service, *manualClock) {
	t.Helper()
	clock := newManualClock(time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC))
	cache := newTestCache(clock, 100)
	svc := NewService(cache, client, &fakeMarketClock{clock: clock, open: open},
		DefaultServiceConfig(), zerolog.Nop())
	return svc, clock
}

func TestGetQuote_CacheHitSkipsProvider(t *testing.T) {
	client := &fakeClient{price: 187.5}
	svc, _ := newTestService(t, client, true)

	first, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&client.quoteCalls))

	// Provider price changes, but the fresh cache entry is served.
	client.setPrice(200)
	second, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&client.quoteCalls), "fresh hit must not invoke the client")
	assert.Equal(t, first.Price, second.Price)
}

func TestGetQuote_SingleFlightCoalescesConcurrentMisses(t *testing.T) {
	client := &fakeClient{price: 187.5, delay: 50 * time.Millisecond}
	svc, _ := newTestService(t, client, true)

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.GetQuote(context.Background(), "AAPL")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.quoteCalls),
		"concurrent misses for one symbol must share one provider call")
}

func TestGetQuote_StaleFallbackOnProviderError(t *testing.T) {
	client := &fakeClient{price: 187.5}
	svc, clock := newTestService(t, client, true)

	_, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	// Entry expires, then the provider starts failing.
	clock.Advance(10 * time.Minute)
	client.err = &domain.ProviderError{Kind: domain.ProviderRateLimited, Err: errors.New("429")}

	q, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, q.Stale)
	assert.Equal(t, 187.5, q.Price)
}

func TestGetQuote_ErrorPropagatesWithoutFallback(t *testing.T) {
	client := &fakeClient{err: &domain.ProviderError{Kind: domain.ProviderTimeout, Err: errors.New("deadline")}}
	svc, _ := newTestService(t, client, true)

	_, err := svc.GetQuote(context.Background(), "NFLX")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
}

func TestGetQuote_CallerCancellation(t *testing.T) {
	client := &fakeClient{price: 187.5, delay: 200 * time.Millisecond}
	svc, _ := newTestService(t, client, true)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.GetQuote(ctx, "AAPL")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetQuotes_MixedHitsAndMisses(t *testing.T) {
	client := &fakeClient{price: 100}
	svc, _ := newTestService(t, client, true)

	_, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	quotes, err := svc.GetQuotes(context.Background(), []string{"AAPL", "MSFT", "GOOG"})
	require.NoError(t, err)
	assert.Len(t, quotes, 3)

	// AAPL came from cache; only the two misses hit the provider.
	assert.Equal(t, int32(3), atomic.LoadInt32(&client.quoteCalls))
}

func TestRefresh_BypassesFreshCache(t *testing.T) {
	client := &fakeClient{price: 100}
	svc, _ := newTestService(t, client, true)

	_, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	client.setPrice(111)
	require.NoError(t, svc.Refresh(context.Background(), []string{"AAPL"}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.batchCalls))

	q, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 111.0, q.Price, "refresh must overwrite the fresh entry")
}

func TestStore_TTLClassFollowsMarketState(t *testing.T) {
	// Market closed: entries get the off-hours TTL and survive past the
	// market-hours window.
	client := &fakeClient{price: 100}
	svc, clock := newTestService(t, client, false)

	_, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	_, err = svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.quoteCalls))

	// Market open: the shorter TTL applies.
	client2 := &fakeClient{price: 100}
	svc2, clock2 := newTestService(t, client2, true)

	_, err = svc2.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	clock2.Advance(10 * time.Minute)
	_, err = svc2.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&client2.quoteCalls))
}

func TestGetQuote_MissPathStampsMarketOpen(t *testing.T) {
	// The first fetch for a symbol must carry the same market-open flag
	// the cached copy gets, not the provider's zero value.
	client := &fakeClient{price: 100}
	svc, _ := newTestService(t, client, true)

	q, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, q.MarketOpen)

	hit, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, hit.MarketOpen)

	closed := &fakeClient{price: 100}
	svcClosed, _ := newTestService(t, closed, false)

	q, err = svcClosed.GetQuote(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.False(t, q.MarketOpen)
}

func TestRefresh_StampsMarketOpen(t *testing.T) {
	client := &fakeClient{price: 100}
	svc, _ := newTestService(t, client, true)

	require.NoError(t, svc.Refresh(context.Background(), []string{"AAPL"}))

	q, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, q.MarketOpen)
}

func TestWarmingJob_RefreshesTopAccessed(t *testing.T) {
	client := &fakeClient{price: 100}
	svc, _ := newTestService(t, client, true)

	// Build access history.
	_, _ = svc.GetQuote(context.Background(), "AAPL")
	_, _ = svc.GetQuote(context.Background(), "AAPL")
	_, _ = svc.GetQuote(context.Background(), "MSFT")

	job := NewWarmingJob(svc, 2, time.Second, zerolog.Nop())
	assert.Equal(t, "cache_warming", job.Name())
	require.NoError(t, job.Run())

	assert.Equal(t, int32(1), atomic.LoadInt32(&client.batchCalls))
}

func TestWarmingJob_SurvivesProviderFailure(t *testing.T) {
	client := &fakeClient{price: 100}
	svc, _ := newTestService(t, client, true)

	_, _ = svc.GetQuote(context.Background(), "AAPL")

	client.err = &domain.ProviderError{Kind: domain.ProviderUpstream, Err: errors.New("503")}
	job := NewWarmingJob(svc, 5, time.Second, zerolog.Nop())

	// The error is reported to the scheduler, not panicked.
	assert.Error(t, job.Run())
}

func TestWarmingJob_NoAccessHistoryIsNoop(t *testing.T) {
	client := &fakeClient{price: 100}
	svc, _ := newTestService(t, client, true)

	job := NewWarmingJob(svc, 5, time.Second, zerolog.Nop())
	require.NoError(t, job.Run())
	assert.Equal(t, int32(0), atomic.LoadInt32(&client.batchCalls))
}
