// Package pipeline orchestrates one news ingestion cycle: fetch, dedup,
// validate, persist, then refresh the rolling sentiment snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sasidharan-s/marketmind/internal/analytics"
	"github.com/sasidharan-s/marketmind/internal/store"
	"github.com/sasidharan-s/marketmind/internal/validate"
	"github.com/sasidharan-s/marketmind/pkg/models"
)

// ErrRunInProgress means a pipeline run is already executing. Callers treat
// an overlapping trigger as a no-op, not a failure.
var ErrRunInProgress = errors.New("pipeline: run already in progress")

// State is the pipeline's current phase.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateDedup       State = "deduplicating"
	StateValidating  State = "validating"
	StatePersisting  State = "persisting"
	StateAggregating State = "aggregating_sentiment"
	StateFailed      State = "failed"
)

// Stats summarizes one completed run.
type Stats struct {
	Found      int   `json:"found"`
	Duplicates int   `json:"duplicates"`
	Rejected   int   `json:"rejected"`
	Saved      int   `json:"saved"`
	DurationMs int64 `json:"durationMs"`

	SentimentRefreshed bool `json:"sentimentRefreshed"`
}

// Fetcher produces raw candidate articles. Satisfied by research.Service.
type Fetcher interface {
	FetchArticles(ctx context.Context, windowMinutes int) ([]models.RawArticle, error)
}

// Options tunes a pipeline instance.
type Options struct {
	// DedupWindow is how far back the URL dedup horizon reaches.
	DedupWindow time.Duration
	// SearchWindowMinutes scopes the provider's news search recency.
	SearchWindowMinutes int
	// RunTimeout bounds one full run.
	RunTimeout time.Duration
}

func (o *Options) defaults() {
	if o.DedupWindow <= 0 {
		o.DedupWindow = 24 * time.Hour
	}
	if o.SearchWindowMinutes <= 0 {
		o.SearchWindowMinutes = 20
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = 540 * time.Second
	}
}

// Pipeline runs ingestion cycles. One instance allows one run at a time.
type Pipeline struct {
	fetcher Fetcher
	store   store.Store
	rolling *analytics.Rolling
	opts    Options
	log     *slog.Logger

	running atomic.Bool
	state   atomic.Value // State
	lastRun atomic.Value // time.Time
}

// New creates a pipeline.
func New(fetcher Fetcher, st store.Store, rolling *analytics.Rolling, opts Options, log *slog.Logger) *Pipeline {
	opts.defaults()
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		fetcher: fetcher,
		store:   st,
		rolling: rolling,
		opts:    opts,
		log:     log,
	}
	p.state.Store(StateIdle)
	return p
}

// State returns the pipeline's current phase.
func (p *Pipeline) State() State {
	return p.state.Load().(State)
}

// LastRun returns when the last run finished, zero if none has.
func (p *Pipeline) LastRun() time.Time {
	if v := p.lastRun.Load(); v != nil {
		return v.(time.Time)
	}
	return time.Time{}
}

func (p *Pipeline) setState(s State) {
	p.state.Store(s)
}

// Run executes one ingestion cycle. An overlapping call returns
// ErrRunInProgress without touching any state.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Stats{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, p.opts.RunTimeout)
	defer cancel()

	start := time.Now()
	stats, err := p.run(ctx)
	stats.DurationMs = time.Since(start).Milliseconds()
	p.lastRun.Store(time.Now().UTC())

	if err != nil {
		p.setState(StateFailed)
		p.log.Error("pipeline run failed", "error", err, "durationMs", stats.DurationMs)
		return stats, err
	}

	p.setState(StateIdle)
	p.log.Info("pipeline run complete",
		"found", stats.Found,
		"duplicates", stats.Duplicates,
		"rejected", stats.Rejected,
		"saved", stats.Saved,
		"durationMs", stats.DurationMs)
	return stats, nil
}

func (p *Pipeline) run(ctx context.Context) (Stats, error) {
	var stats Stats
	now := time.Now().UTC()

	p.setState(StateFetching)
	raw, err := p.fetcher.FetchArticles(ctx, p.opts.SearchWindowMinutes)
	if err != nil {
		return stats, fmt.Errorf("pipeline: fetch: %w", err)
	}
	stats.Found = len(raw)

	if len(raw) == 0 {
		// Nothing new; the snapshot still moves as old articles age out
		// of the window.
		return p.refreshSentiment(ctx, now, stats)
	}

	p.setState(StateDedup)
	seen, err := p.store.RecentArticleURLs(ctx, now.Add(-p.opts.DedupWindow))
	if err != nil {
		return stats, fmt.Errorf("pipeline: load dedup horizon: %w", err)
	}

	fresh := raw[:0]
	for _, r := range raw {
		if _, dup := seen[r.URL]; dup {
			stats.Duplicates++
			continue
		}
		// Guards against the same URL twice in one response.
		seen[r.URL] = struct{}{}
		fresh = append(fresh, r)
	}

	p.setState(StateValidating)
	accepted := make([]models.Article, 0, len(fresh))
	for _, r := range fresh {
		a, err := validate.Article(r, now)
		if err != nil {
			stats.Rejected++
			p.log.Warn("article rejected", "url", r.URL, "error", err)
			continue
		}
		accepted = append(accepted, a)
	}

	if len(accepted) > 0 {
		p.setState(StatePersisting)
		saved, err := p.store.SaveArticles(ctx, accepted)
		stats.Saved = saved
		if err != nil {
			return stats, fmt.Errorf("pipeline: persist: %w", err)
		}
	}

	return p.refreshSentiment(ctx, now, stats)
}

func (p *Pipeline) refreshSentiment(ctx context.Context, now time.Time, stats Stats) (Stats, error) {
	p.setState(StateAggregating)
	if _, err := p.rolling.Refresh(ctx, now); err != nil {
		return stats, fmt.Errorf("pipeline: %w", err)
	}
	stats.SentimentRefreshed = true
	return stats, nil
}
