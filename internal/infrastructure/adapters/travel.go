package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/domain/ratelimit"
	apperrors "github.com/cipherroom/gateway/pkg/errors"
)

// travelCacheTTL and the retry schedule are carried over unchanged
// from base_travel_connector.py's CACHE_TTL_SECONDS/MAX_RETRIES/
// RETRY_BACKOFF class attributes.
const (
	travelCacheTTL     = time.Hour
	travelMaxRetries   = 3
	travelRetryBackoff = 2 * time.Second // multiplied by 2^attempt
)

// TravelSearchResult is what a provider fetch returns, mirroring the
// source's {results, metadata} dict.
type TravelSearchResult struct {
	Results  []map[string]interface{}
	Metadata map[string]interface{}
}

// TravelFetcher performs one provider's actual search call. Each of
// the five travel connectors (buses, hotels, flights, transfers,
// events) becomes one TravelFetcher implementation plugged into a
// shared TravelSearchAdapter, rather than five near-identical copies
// of the caching/retry/rate-limit scaffolding.
type TravelFetcher interface {
	Fetch(ctx context.Context, params map[string]interface{}) (TravelSearchResult, error)
}

// TravelCache is the search-result cache keyed by a deterministic hash
// of the query, matching SearchCache in the Python source.
type TravelCache interface {
	Get(ctx context.Context, provider, queryHash string) (*TravelSearchResult, time.Duration, bool, error)
	Set(ctx context.Context, provider, queryHash string, result TravelSearchResult, ttl time.Duration) error
}

// TravelSearchAdapter generalizes BaseTravelConnector: per-user rate
// limiting via the shared Rate & Quota Gate, a query-hash cache, and a
// fixed retry schedule around the provider-specific fetch.
type TravelSearchAdapter struct {
	provider string
	fetcher  TravelFetcher
	cache    TravelCache
	gate     ratelimit.Gate
	sleep    func(time.Duration)
	logger   *zap.Logger
}

func NewTravelSearchAdapter(provider string, fetcher TravelFetcher, cache TravelCache, gate ratelimit.Gate, logger *zap.Logger) *TravelSearchAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TravelSearchAdapter{
		provider: provider,
		fetcher:  fetcher,
		cache:    cache,
		gate:     gate,
		sleep:    time.Sleep,
		logger:   logger.With(zap.String("adapter", "travel"), zap.String("provider", provider)),
	}
}

// WithSleeper overrides the backoff sleep function (tests use this to
// skip real waits between retries).
func (a *TravelSearchAdapter) WithSleeper(sleep func(time.Duration)) *TravelSearchAdapter {
	a.sleep = sleep
	return a
}

func (a *TravelSearchAdapter) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	userID := paramString(params, "user_id")

	if a.gate != nil && userID != "" {
		allowed, err := a.gate.Allow(ctx, ratelimit.ScopeTravelSearch, userID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, apperrors.NewRateLimitedError(fmt.Sprintf("rate limit exceeded for %s", a.provider))
		}
	}

	queryHash := hashQuery(params)

	if a.cache != nil {
		if cached, age, ok, err := a.cache.Get(ctx, a.provider, queryHash); err == nil && ok {
			return map[string]interface{}{
				"count":    len(cached.Results),
				"results":  cached.Results,
				"cached":   true,
				"message":  fmt.Sprintf("Results from %s (cached)", a.provider),
				"metadata": map[string]interface{}{"cache_age_seconds": int64(age.Seconds())},
			}, nil
		}
	}

	result, err := a.fetchWithRetry(ctx, params)
	if err != nil {
		return nil, apperrors.NewInternalErrorWithCause(fmt.Sprintf("failed to fetch from %s", a.provider), err)
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, a.provider, queryHash, result, travelCacheTTL); err != nil {
			a.logger.Warn("cache store failed", zap.Error(err))
		}
	}

	return map[string]interface{}{
		"count":    len(result.Results),
		"results":  result.Results,
		"cached":   false,
		"message":  fmt.Sprintf("Results from %s", a.provider),
		"metadata": result.Metadata,
	}, nil
}

func (a *TravelSearchAdapter) fetchWithRetry(ctx context.Context, params map[string]interface{}) (TravelSearchResult, error) {
	var lastErr error
	for attempt := 0; attempt < travelMaxRetries; attempt++ {
		result, err := a.fetcher.Fetch(ctx, params)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt < travelMaxRetries-1 {
			wait := travelRetryBackoff * time.Duration(1<<attempt)
			a.logger.Warn("travel fetch attempt failed, retrying",
				zap.Int("attempt", attempt+1), zap.Duration("wait", wait), zap.Error(err))
			a.sleep(wait)
		}
	}
	return TravelSearchResult{}, lastErr
}

// hashQuery deterministically hashes params the same way
// _hash_query does: JSON-encode with sorted keys, then SHA-256.
func hashQuery(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]interface{}, len(params))
	for _, k := range keys {
		ordered[k] = params[k]
	}
	encoded, _ := json.Marshal(ordered)
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
