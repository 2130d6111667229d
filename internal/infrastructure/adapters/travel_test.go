package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cipherroom/gateway/internal/domain/ratelimit"
)

var errTemporary = errors.New("temporary fetch failure")

type stubFetcher struct {
	calls   int
	failFor int // fail this many calls before succeeding
	result  TravelSearchResult
	err     error
}

func (f *stubFetcher) Fetch(ctx context.Context, params map[string]interface{}) (TravelSearchResult, error) {
	f.calls++
	if f.calls <= f.failFor {
		return TravelSearchResult{}, f.err
	}
	return f.result, nil
}

func noopSleep(time.Duration) {}

func TestTravelSearchAdapterCachesAcrossIdenticalQueries(t *testing.T) {
	fetcher := &stubFetcher{result: TravelSearchResult{Results: []map[string]interface{}{{"id": "bus-1"}}}}
	cache := NewMemoryTravelCache()
	gate := ratelimit.NewMemoryGate(ratelimit.DefaultCeilings)

	a := NewTravelSearchAdapter("buses", fetcher, cache, gate, nil).WithSleeper(noopSleep)
	params := map[string]interface{}{"user_id": "u1", "from": "Nairobi", "to": "Mombasa"}

	first, err := a.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if first["cached"] != false {
		t.Fatalf("expected first call to be a fresh fetch, got %v", first)
	}

	second, err := a.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if second["cached"] != true {
		t.Fatalf("expected second identical query to hit the cache, got %v", second)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected exactly one fetch, got %d", fetcher.calls)
	}
}

func TestTravelSearchAdapterRetriesThenSucceeds(t *testing.T) {
	fetcher := &stubFetcher{
		failFor: 2,
		err:     errTemporary,
		result:  TravelSearchResult{Results: []map[string]interface{}{{"id": "hotel-1"}}},
	}
	gate := ratelimit.NewMemoryGate(ratelimit.DefaultCeilings)

	a := NewTravelSearchAdapter("hotels", fetcher, nil, gate, nil).WithSleeper(noopSleep)
	result, err := a.Execute(context.Background(), map[string]interface{}{"user_id": "u1", "city": "Kisumu"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if fetcher.calls != 3 {
		t.Fatalf("expected 3 attempts (2 failures + 1 success), got %d", fetcher.calls)
	}
	if result["count"] != 1 {
		t.Fatalf("unexpected result: %v", result)
	}
}

func TestTravelSearchAdapterExhaustsRetriesAndFails(t *testing.T) {
	fetcher := &stubFetcher{failFor: 99, err: errTemporary}
	gate := ratelimit.NewMemoryGate(ratelimit.DefaultCeilings)

	a := NewTravelSearchAdapter("flights", fetcher, nil, gate, nil).WithSleeper(noopSleep)
	_, err := a.Execute(context.Background(), map[string]interface{}{"user_id": "u1"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if fetcher.calls != travelMaxRetries {
		t.Fatalf("expected exactly %d attempts, got %d", travelMaxRetries, fetcher.calls)
	}
}

func TestTravelSearchAdapterDeniesOverQuota(t *testing.T) {
	gate := ratelimit.NewMemoryGate(map[ratelimit.Scope]ratelimit.Ceiling{
		ratelimit.ScopeTravelSearch: {Limit: 1, Window: 3600},
	})
	fetcher := &stubFetcher{result: TravelSearchResult{Results: []map[string]interface{}{{"id": "x"}}}}

	a := NewTravelSearchAdapter("events", fetcher, nil, gate, nil).WithSleeper(noopSleep)
	params := map[string]interface{}{"user_id": "u1"}

	if _, err := a.Execute(context.Background(), params); err != nil {
		t.Fatalf("first call should be allowed: %v", err)
	}
	if _, err := a.Execute(context.Background(), map[string]interface{}{"user_id": "u1", "page": 2.0}); err == nil {
		t.Fatal("expected the second call within the window to be rate limited")
	}
}
