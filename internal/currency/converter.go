// Package currency converts amounts between currencies using a TTL-bounded
// snapshot cache over a live rate provider, with a static fallback table.
// Conversion is best-effort display logic and never blocks checkout: when
// every source fails the original amount is returned at rate 1.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"

	"github.com/paycartapp/paycart/internal/observability"
)

type Source string

const (
	SourceAPI      Source = "api"
	SourceFallback Source = "fallback"
	SourceSame     Source = "same"
)

type Result struct {
	Amount decimal.Decimal `json:"amount"`
	Rate   decimal.Decimal `json:"rate"`
	Source Source          `json:"source"`
}

// Snapshot holds every known rate for one base currency at fetch time.
type Snapshot struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"fetched_at"`
}

type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Keys   int   `json:"keys"`
}

const (
	defaultFetchTimeout = 5 * time.Second
	defaultTTL          = time.Hour
	defaultPrecision    = 2
	maxCachedBases      = 64
)

type Config struct {
	APIURL   string
	TTL      time.Duration
	Fallback map[string]map[string]decimal.Decimal
	Logger   *slog.Logger
}

type Converter struct {
	apiURL   string
	client   *http.Client
	cache    *expirable.LRU[string, *Snapshot]
	fallback map[string]map[string]decimal.Decimal
	logger   *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

func NewConverter(cfg Config) *Converter {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = DefaultFallbackRates()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Converter{
		apiURL:   strings.TrimRight(cfg.APIURL, "/"),
		client:   observability.NewHTTPClient(defaultFetchTimeout),
		cache:    expirable.NewLRU[string, *Snapshot](maxCachedBases, nil, ttl),
		fallback: fallback,
		logger:   logger,
	}
}

// Convert converts amount from one currency to another, rounded to the
// default two decimal places.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) Result {
	return c.ConvertWithPrecision(ctx, amount, from, to, defaultPrecision)
}

// ConvertWithPrecision rounds the converted amount to the given number of
// decimal places after multiplication, never before.
func (c *Converter) ConvertWithPrecision(ctx context.Context, amount decimal.Decimal, from, to string, precision int32) Result {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		return Result{Amount: amount, Rate: decimal.NewFromInt(1), Source: SourceSame}
	}

	if rate, ok := c.liveRate(ctx, from, to); ok {
		return Result{Amount: amount.Mul(rate).Round(precision), Rate: rate, Source: SourceAPI}
	}

	if rate, ok := c.fallbackRate(from, to); ok {
		c.logger.Warn("using fallback exchange rate", "from", from, "to", to, "rate", rate)
		return Result{Amount: amount.Mul(rate).Round(precision), Rate: rate, Source: SourceFallback}
	}

	c.logger.Error("no exchange rate available, returning amount unconverted", "from", from, "to", to)
	return Result{Amount: amount, Rate: decimal.NewFromInt(1), Source: SourceSame}
}

func (c *Converter) liveRate(ctx context.Context, from, to string) (decimal.Decimal, bool) {
	if snapshot, ok := c.cache.Get(from); ok {
		c.hits.Add(1)
		if rate, ok := snapshot.Rates[to]; ok {
			return rate, true
		}
		return decimal.Decimal{}, false
	}
	c.misses.Add(1)

	snapshot, err := c.fetch(ctx, from)
	if err != nil {
		c.logger.Warn("exchange rate fetch failed", "base", from, "error", err)
		return decimal.Decimal{}, false
	}

	c.cache.Add(from, snapshot)
	rate, ok := snapshot.Rates[to]
	return rate, ok
}

func (c *Converter) fetch(ctx context.Context, base string) (*Snapshot, error) {
	if c.apiURL == "" {
		return nil, fmt.Errorf("rate provider not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/"+base, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate provider returned %d", resp.StatusCode)
	}

	var payload struct {
		Base  string             `json:"base"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode rate response: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("rate response for %s has no rates", base)
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates))
	for code, rate := range payload.Rates {
		rates[strings.ToUpper(code)] = decimal.NewFromFloat(rate)
	}

	return &Snapshot{
		Base:      base,
		Rates:     rates,
		FetchedAt: time.Now(),
	}, nil
}

func (c *Converter) fallbackRate(from, to string) (decimal.Decimal, bool) {
	if rates, ok := c.fallback[from]; ok {
		if rate, ok := rates[to]; ok {
			return rate, true
		}
	}
	// Try the inverse pair before giving up.
	if rates, ok := c.fallback[to]; ok {
		if rate, ok := rates[from]; ok && !rate.IsZero() {
			return decimal.NewFromInt(1).DivRound(rate, 8), true
		}
	}
	return decimal.Decimal{}, false
}

// ClearCache drops every cached snapshot. Exposed for operational use.
func (c *Converter) ClearCache() {
	c.cache.Purge()
}

func (c *Converter) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Keys:   c.cache.Len(),
	}
}
