package models

import "time"

// IndexQuote is a headline index level (NIFTY 50, SENSEX).
type IndexQuote struct {
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// MoverEntry is one top gainer or loser.
type MoverEntry struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"changePercent"`
}

// SectorPerformance is one sector's intraday move.
type SectorPerformance struct {
	Name          string  `json:"name"`
	ChangePercent float64 `json:"changePercent"`
}

// MarketData is the opaque-to-callers market payload assembled from the
// upstream quote provider.
type MarketData struct {
	Indices     []IndexQuote        `json:"indices"`
	Gainers     []MoverEntry        `json:"gainers"`
	Losers      []MoverEntry        `json:"losers"`
	Sectors     []SectorPerformance `json:"sectors"`
	LastUpdated time.Time           `json:"lastUpdated"`
	Source      string              `json:"source"` // "live_api" or "stale_cache"
}

// MarketDataEntry is the cached payload together with the freshness metadata
// the cache service bases its staleness decision on.
type MarketDataEntry struct {
	Payload  MarketData `json:"payload"`
	CachedAt time.Time  `json:"cachedAt"`
}

// Age returns how long ago the entry was refreshed.
func (e *MarketDataEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}

// IsStale reports whether the entry has outlived the given TTL.
func (e *MarketDataEntry) IsStale(now time.Time, ttl time.Duration) bool {
	return e.Age(now) > ttl
}
