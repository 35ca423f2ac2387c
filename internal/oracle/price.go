// Package oracle fetches the ETH/USD spot quote used to render USD-equivalent
// stake amounts. Quotes are cosmetic: a missing or stale quote never blocks a
// bet read or an action.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/duelcast/betwatch/internal/domain"
)

// DefaultBaseURL is the Coinbase public price API root.
const DefaultBaseURL = "https://api.coinbase.com"

// DefaultTTL bounds how long a cached quote is served before re-fetching.
const DefaultTTL = 60 * time.Second

// PriceOracle reads ETH/USD from Coinbase through a cache.
type PriceOracle struct {
	baseURL    string
	httpClient *http.Client
	cache      domain.PriceCache
	ttl        time.Duration
	logger     *slog.Logger
}

// New creates a PriceOracle. cache may be nil, in which case every call hits
// the upstream API.
func New(baseURL string, cache domain.PriceCache, ttl time.Duration, logger *slog.Logger) *PriceOracle {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PriceOracle{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "oracle")),
	}
}

// EthUsd returns the current ETH/USD quote, served from the cache when fresh.
// A fetch failure with a stale cached quote degrades to the stale quote.
func (o *PriceOracle) EthUsd(ctx context.Context) (float64, error) {
	var (
		cached   float64
		cachedAt time.Time
		haveOld  bool
	)
	if o.cache != nil {
		price, ts, err := o.cache.EthUsd(ctx)
		switch {
		case err == nil && time.Since(ts) < o.ttl:
			return price, nil
		case err == nil:
			cached, cachedAt, haveOld = price, ts, true
		case !errors.Is(err, domain.ErrNotFound):
			o.logger.Warn("price cache read failed", slog.String("error", err.Error()))
		}
	}

	price, err := o.fetchSpot(ctx)
	if err != nil {
		if haveOld {
			o.logger.Warn("price fetch failed, serving stale quote",
				slog.Time("cached_at", cachedAt),
				slog.String("error", err.Error()),
			)
			return cached, nil
		}
		return 0, err
	}

	if o.cache != nil {
		if err := o.cache.SetEthUsd(ctx, price, time.Now()); err != nil {
			o.logger.Warn("price cache write failed", slog.String("error", err.Error()))
		}
	}
	return price, nil
}

// spotResponse matches Coinbase's /v2/prices/{pair}/spot payload.
type spotResponse struct {
	Data struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"data"`
}

func (o *PriceOracle) fetchSpot(ctx context.Context) (float64, error) {
	url := o.baseURL + "/v2/prices/ETH-USD/spot"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("oracle: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("oracle: fetch eth/usd: %v: %w", err, domain.ErrFetch)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("oracle: read response: %v: %w", err, domain.ErrFetch)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("oracle: eth/usd status %d: %w", resp.StatusCode, domain.ErrFetch)
	}

	var out spotResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("oracle: decode eth/usd: %v: %w", err, domain.ErrDecode)
	}
	price, err := strconv.ParseFloat(out.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("oracle: parse amount %q: %v: %w", out.Data.Amount, err, domain.ErrDecode)
	}
	return price, nil
}
