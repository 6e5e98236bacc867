// Package marketdata serves the market payload through a stale-while-error
// cache: fresh entries are served directly, expired entries trigger one
// upstream refresh, and a failed refresh falls back to the stale copy.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sasidharan-s/marketmind/pkg/models"
)

// ErrUnavailable means the upstream failed and no cached copy exists.
var ErrUnavailable = errors.New("marketdata: upstream unavailable and no cached data")

// DefaultCacheTTL is how long a payload is considered fresh.
const DefaultCacheTTL = 300 * time.Second

// Upstream fetches a fresh market payload. Satisfied by AlphaVantage.
type Upstream interface {
	Fetch(ctx context.Context) (*models.MarketData, error)
}

// CacheStore persists cache entries across process restarts. Optional; the
// in-process entry remains the source of truth for freshness decisions.
type CacheStore interface {
	Load(ctx context.Context) (*models.MarketDataEntry, error)
	Save(ctx context.Context, entry *models.MarketDataEntry) error
}

// Result is a served payload plus its freshness annotation.
type Result struct {
	models.MarketData
	Stale           bool  `json:"stale"`
	CacheAgeSeconds int64 `json:"cacheAgeSeconds"`
}

// Service is the caching layer over the upstream quote provider.
type Service struct {
	upstream Upstream
	cache    CacheStore // may be nil
	ttl      time.Duration
	log      *slog.Logger

	group singleflight.Group

	mu    sync.RWMutex
	entry *models.MarketDataEntry

	loadOnce sync.Once
}

// NewService creates the market data service. cache may be nil.
func NewService(upstream Upstream, cache CacheStore, ttl time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		upstream: upstream,
		cache:    cache,
		ttl:      ttl,
		log:      log,
	}
}

// Get returns the market payload. Concurrent callers with an expired cache
// share a single upstream refresh.
func (s *Service) Get(ctx context.Context) (*Result, error) {
	s.warmFromStore(ctx)

	now := time.Now().UTC()
	if entry := s.current(); entry != nil && !entry.IsStale(now, s.ttl) {
		return s.result(entry, now), nil
	}

	// Single cache key; every caller coalesces onto one refresh.
	v, err, _ := s.group.Do("market_data", func() (any, error) {
		return s.refresh(ctx)
	})
	if err == nil {
		return s.result(v.(*models.MarketDataEntry), time.Now().UTC()), nil
	}

	// Refresh failed; a stale copy beats an error.
	if entry := s.current(); entry != nil {
		now = time.Now().UTC()
		s.log.Warn("serving stale market data",
			"ageSeconds", int64(entry.Age(now).Seconds()),
			"error", err)
		res := s.result(entry, now)
		res.Stale = true
		res.MarketData.Source = "stale_cache"
		return res, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (s *Service) current() *models.MarketDataEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entry
}

// warmFromStore loads a persisted entry on the first request so a restart
// does not lose the stale-fallback copy.
func (s *Service) warmFromStore(ctx context.Context) {
	s.loadOnce.Do(func() {
		if s.cache == nil {
			return
		}
		entry, err := s.cache.Load(ctx)
		if err != nil {
			s.log.Warn("market data cache load failed", "error", err)
			return
		}
		if entry != nil {
			s.mu.Lock()
			s.entry = entry
			s.mu.Unlock()
			s.log.Info("market data cache warmed", "cachedAt", entry.CachedAt)
		}
	})
}

func (s *Service) refresh(ctx context.Context) (*models.MarketDataEntry, error) {
	data, err := s.upstream.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	entry := &models.MarketDataEntry{
		Payload:  *data,
		CachedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.entry = entry
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Save(ctx, entry); err != nil {
			// Persistence is best effort.
			s.log.Warn("market data cache save failed", "error", err)
		}
	}
	return entry, nil
}

func (s *Service) result(entry *models.MarketDataEntry, now time.Time) *Result {
	return &Result{
		MarketData:      entry.Payload,
		Stale:           entry.IsStale(now, s.ttl),
		CacheAgeSeconds: int64(entry.Age(now).Seconds()),
	}
}
