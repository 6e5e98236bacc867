package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sasidharan-s/marketmind/pkg/models"
)

type fakeUpstream struct {
	mu    sync.Mutex
	calls int32
	err   error
	block chan struct{}
}

func (f *fakeUpstream) Fetch(context.Context) (*models.MarketData, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &models.MarketData{
		Indices:     []models.IndexQuote{{Name: "NIFTY 50", Price: 25012.5, Change: 120.3, ChangePercent: 0.48}},
		LastUpdated: time.Now().UTC(),
		Source:      "live_api",
	}, nil
}

func (f *fakeUpstream) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func TestGetFreshHitSkipsUpstream(t *testing.T) {
	up := &fakeUpstream{}
	svc := NewService(up, nil, time.Minute, nil)
	ctx := context.Background()

	first, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	if first.Stale {
		t.Errorf("fresh result marked stale")
	}

	second, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if second.Stale {
		t.Errorf("cache hit marked stale")
	}
	if got := atomic.LoadInt32(&up.calls); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestGetCoalescesConcurrentRefreshes(t *testing.T) {
	up := &fakeUpstream{block: make(chan struct{})}
	svc := NewService(up, nil, time.Minute, nil)

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.Get(context.Background())
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			results[i] = r
		}()
	}

	// Let both goroutines reach the singleflight barrier, then release.
	time.Sleep(50 * time.Millisecond)
	close(up.block)
	wg.Wait()

	if got := atomic.LoadInt32(&up.calls); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (coalesced)", got)
	}
	for i, r := range results {
		if r == nil || len(r.Indices) == 0 {
			t.Errorf("caller %d got empty result", i)
		}
	}
}

func TestGetStaleFallback(t *testing.T) {
	up := &fakeUpstream{}
	svc := NewService(up, nil, 10*time.Millisecond, nil)
	ctx := context.Background()

	if _, err := svc.Get(ctx); err != nil {
		t.Fatalf("prime: %v", err)
	}

	up.setErr(errors.New("alpha vantage down"))
	time.Sleep(20 * time.Millisecond) // expire the entry

	res, err := svc.Get(ctx)
	if err != nil {
		t.Fatalf("Get with failed upstream: %v", err)
	}
	if !res.Stale {
		t.Errorf("fallback result not marked stale")
	}
	if res.Source != "stale_cache" {
		t.Errorf("source = %q, want stale_cache", res.Source)
	}
	if res.CacheAgeSeconds < 0 {
		t.Errorf("cacheAgeSeconds = %d", res.CacheAgeSeconds)
	}
}

func TestGetUnavailableWithoutCache(t *testing.T) {
	up := &fakeUpstream{}
	up.setErr(errors.New("boom"))
	svc := NewService(up, nil, time.Minute, nil)

	if _, err := svc.Get(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

type memCacheStore struct {
	mu    sync.Mutex
	entry *models.MarketDataEntry
}

func (m *memCacheStore) Load(context.Context) (*models.MarketDataEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entry, nil
}

func (m *memCacheStore) Save(_ context.Context, e *models.MarketDataEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = e
	return nil
}

func TestGetWarmsFromCacheStore(t *testing.T) {
	cached := &models.MarketDataEntry{
		Payload: models.MarketData{
			Indices: []models.IndexQuote{{Name: "SENSEX", Price: 81999.9}},
			Source:  "live_api",
		},
		CachedAt: time.Now().UTC().Add(-time.Hour),
	}
	up := &fakeUpstream{}
	up.setErr(errors.New("still down"))
	svc := NewService(up, &memCacheStore{entry: cached}, time.Minute, nil)

	// Entry is an hour old so a refresh is attempted, fails, and the
	// persisted copy is served stale.
	res, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !res.Stale || len(res.Indices) != 1 || res.Indices[0].Name != "SENSEX" {
		t.Errorf("result = %+v, want stale persisted copy", res)
	}
}

func TestAlphaVantageFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		var gq globalQuote
		switch symbol {
		case symbolNifty:
			gq.Quote.Price = "25012.50"
			gq.Quote.Change = "120.30"
			gq.Quote.ChangePercent = "0.48%"
		case symbolSensex:
			gq.Quote.Price = "81999.90"
			gq.Quote.Change = "-54.10"
			gq.Quote.ChangePercent = "-0.07%"
		default:
			t.Errorf("unexpected symbol %q", symbol)
		}
		json.NewEncoder(w).Encode(gq)
	}))
	defer srv.Close()

	av := NewAlphaVantage("test-key", time.Second, WithBaseURL(srv.URL))
	data, err := av.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(data.Indices) != 2 {
		t.Fatalf("got %d indices, want 2", len(data.Indices))
	}
	if data.Indices[0].Name != "NIFTY 50" || data.Indices[0].Price != 25012.50 {
		t.Errorf("nifty quote = %+v", data.Indices[0])
	}
	if data.Indices[1].ChangePercent != -0.07 {
		t.Errorf("sensex changePercent = %v", data.Indices[1].ChangePercent)
	}
	if data.Source != "live_api" {
		t.Errorf("source = %q", data.Source)
	}
	if len(data.Gainers) == 0 || len(data.Losers) == 0 || len(data.Sectors) == 0 {
		t.Errorf("movers or sectors empty")
	}
}

func TestAlphaVantageRequestPath(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		var gq globalQuote
		gq.Quote.Price = "100.00"
		json.NewEncoder(w).Encode(gq)
	}))
	defer srv.Close()

	// The client appends /query to the base URL, so a base that already
	// carries the path would double it and 404 in production.
	av := NewAlphaVantage("test-key", time.Second, WithBaseURL(srv.URL))
	if _, err := av.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) == 0 {
		t.Fatal("no upstream requests recorded")
	}
	for _, p := range paths {
		if p != "/query" {
			t.Errorf("request path = %q, want /query", p)
		}
	}
}

func TestAlphaVantagePartialDegradation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == symbolSensex {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var gq globalQuote
		gq.Quote.Price = "25012.50"
		gq.Quote.Change = "120.30"
		gq.Quote.ChangePercent = "0.48%"
		json.NewEncoder(w).Encode(gq)
	}))
	defer srv.Close()

	av := NewAlphaVantage("test-key", time.Second, WithBaseURL(srv.URL))
	data, err := av.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(data.Indices) != 1 || data.Indices[0].Name != "NIFTY 50" {
		t.Errorf("indices = %+v, want NIFTY 50 only", data.Indices)
	}
}

func TestAlphaVantageRequiresKey(t *testing.T) {
	av := NewAlphaVantage("", time.Second)
	if _, err := av.Fetch(context.Background()); err == nil {
		t.Errorf("expected error without API key")
	}
}
