// Package alphavantage implements the market data provider client against
// an Alpha Vantage style HTTP API.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/castlegate/networth/internal/domain"
)

// Config holds provider connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client calls the quote provider. It implements domain.MarketDataClient.
// Failures are classified into domain.ProviderError kinds so callers can
// decide between stale fallback and propagation.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a provider client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log.With().Str("client", "alphavantage").Logger(),
	}
}

// GetQuote fetches the latest quote for one symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	var resp globalQuoteResponse
	if err := c.get(ctx, symbol, params, &resp); err != nil {
		return nil, err
	}
	if err := apiError(symbol, resp.Note, resp.Information, resp.ErrorMsg); err != nil {
		return nil, err
	}
	if resp.GlobalQuote.Symbol == "" {
		return nil, &domain.ProviderError{Kind: domain.ProviderUpstream, Symbol: symbol,
			Err: fmt.Errorf("empty quote for %s", symbol)}
	}
	return parseQuote(symbol, resp.GlobalQuote.Price, resp.GlobalQuote.Change, resp.GlobalQuote.ChangePercent)
}

// GetBatchQuotes fetches quotes for many symbols in one request. Symbols
// the provider omits are absent from the result, they do not fail the
// batch.
func (c *Client) GetBatchQuotes(ctx context.Context, symbols []string) (map[string]*domain.Quote, error) {
	if len(symbols) == 0 {
		return map[string]*domain.Quote{}, nil
	}

	params := url.Values{}
	params.Set("function", "REALTIME_BULK_QUOTES")
	params.Set("symbol", strings.Join(symbols, ","))

	var resp bulkQuotesResponse
	if err := c.get(ctx, "", params, &resp); err != nil {
		return nil, err
	}
	if err := apiError("", resp.Note, resp.Information, resp.ErrorMsg); err != nil {
		return nil, err
	}

	quotes := make(map[string]*domain.Quote, len(resp.Data))
	for _, bq := range resp.Data {
		q, err := parseQuote(bq.Symbol, bq.Close, bq.Change, bq.ChangePercent)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", bq.Symbol).Msg("Skipping unparseable bulk quote")
			continue
		}
		quotes[q.Symbol] = q
	}
	return quotes, nil
}

// GetDailyBars fetches historical daily bars for a symbol in [from, to],
// ordered ascending by date.
func (c *Client) GetDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.DailyPrice, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("outputsize", "full")

	var resp dailySeriesResponse
	if err := c.get(ctx, symbol, params, &resp); err != nil {
		return nil, err
	}
	if err := apiError(symbol, resp.Note, resp.Information, resp.ErrorMsg); err != nil {
		return nil, err
	}

	fromDay, toDay := domain.Day(from), domain.Day(to)
	var bars []domain.DailyPrice
	for dateStr, bar := range resp.Series {
		date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
		if err != nil {
			c.log.Warn().Str("symbol", symbol).Str("date", dateStr).Msg("Skipping unparseable bar date")
			continue
		}
		if date.Before(fromDay) || date.After(toDay) {
			continue
		}
		p, err := parseBar(symbol, date, bar)
		if err != nil {
			c.log.Warn().Err(err).Str("symbol", symbol).Str("date", dateStr).Msg("Skipping unparseable bar")
			continue
		}
		bars = append(bars, p)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// get performs one provider request and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, symbol string, params url.Values, out interface{}) error {
	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "/query?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyTransportError(symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &domain.ProviderError{Kind: domain.ProviderRateLimited, Symbol: symbol,
			Err: fmt.Errorf("provider returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.ProviderError{Kind: domain.ProviderUpstream, Symbol: symbol,
			Err: fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.ProviderError{Kind: domain.ProviderUpstream, Symbol: symbol,
			Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// classifyTransportError maps request failures to provider error kinds.
func classifyTransportError(symbol string, err error) error {
	kind := domain.ProviderUpstream
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		kind = domain.ProviderTimeout
	}
	return &domain.ProviderError{Kind: kind, Symbol: symbol, Err: err}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// apiError checks the in-body error fields the provider delivers with a
// 200 status. A throttle note maps to rate limiting.
func apiError(symbol, note, information, errorMsg string) error {
	if note != "" || information != "" {
		msg := note
		if msg == "" {
			msg = information
		}
		return &domain.ProviderError{Kind: domain.ProviderRateLimited, Symbol: symbol,
			Err: errors.New(msg)}
	}
	if errorMsg != "" {
		return &domain.ProviderError{Kind: domain.ProviderUpstream, Symbol: symbol,
			Err: errors.New(errorMsg)}
	}
	return nil
}

func parseQuote(symbol, price, change, changePercent string) (*domain.Quote, error) {
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q for %s: %w", price, symbol, err)
	}

	q := &domain.Quote{
		Symbol: symbol,
		Price:  p,
		AsOf:   time.Now().UTC(),
	}
	if change != "" {
		if v, err := strconv.ParseFloat(change, 64); err == nil {
			q.DailyChange = v
		}
	}
	if changePercent != "" {
		if v, err := strconv.ParseFloat(strings.TrimSuffix(changePercent, "%"), 64); err == nil {
			q.DailyChangePercent = v
		}
	}
	return q, nil
}

func parseBar(symbol string, date time.Time, bar dailyBar) (domain.DailyPrice, error) {
	var p domain.DailyPrice
	var err error

	if p.Close, err = strconv.ParseFloat(bar.Close, 64); err != nil {
		return p, fmt.Errorf("invalid close %q: %w", bar.Close, err)
	}
	if p.Open, err = strconv.ParseFloat(bar.Open, 64); err != nil {
		return p, fmt.Errorf("invalid open %q: %w", bar.Open, err)
	}
	if p.High, err = strconv.ParseFloat(bar.High, 64); err != nil {
		return p, fmt.Errorf("invalid high %q: %w", bar.High, err)
	}
	if p.Low, err = strconv.ParseFloat(bar.Low, 64); err != nil {
		return p, fmt.Errorf("invalid low %q: %w", bar.Low, err)
	}
	if bar.Volume != "" {
		if v, err := strconv.ParseInt(bar.Volume, 10, 64); err == nil {
			p.Volume = v
		}
	}

	p.Symbol = symbol
	p.Date = date
	return p, nil
}
