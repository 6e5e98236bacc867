// Package schedule drives the periodic pipeline runs and the end-of-day
// analytics trigger.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sasidharan-s/marketmind/internal/analytics"
	"github.com/sasidharan-s/marketmind/internal/pipeline"
	"github.com/sasidharan-s/marketmind/pkg/utils"
)

// DefaultInterval is the gap between pipeline runs.
const DefaultInterval = 15 * time.Minute

// dailyRunHour/Minute place the analytics trigger at 23:55 UTC so the whole
// day's articles are in before the boundary.
const (
	dailyRunHour   = 23
	dailyRunMinute = 55
)

// PipelineRunner triggers one ingestion cycle. Satisfied by *pipeline.Pipeline.
type PipelineRunner interface {
	Run(ctx context.Context) (pipeline.Stats, error)
}

// Scheduler owns the timers. Start blocks until the context is canceled.
type Scheduler struct {
	pipeline    PipelineRunner
	daily       *analytics.Daily
	interval    time.Duration
	dailyHour   int
	dailyMinute int
	log         *slog.Logger
}

// New creates a scheduler. interval <= 0 selects the default.
func New(p PipelineRunner, d *analytics.Daily, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		pipeline:    p,
		daily:       d,
		interval:    interval,
		dailyHour:   dailyRunHour,
		dailyMinute: dailyRunMinute,
		log:         log,
	}
}

// SetDailyRun moves the daily trigger to hhmm ("HH:MM", UTC). Must be called
// before Start.
func (s *Scheduler) SetDailyRun(hhmm string) error {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return fmt.Errorf("schedule: bad daily run time %q: %w", hhmm, err)
	}
	s.dailyHour, s.dailyMinute = t.Hour(), t.Minute()
	return nil
}

// nextDailyRun returns the next 23:55 UTC after now.
func nextDailyRun(now time.Time) time.Time {
	return nextRunAt(now, dailyRunHour, dailyRunMinute)
}

// nextRunAt returns the next hour:minute UTC strictly after now.
func nextRunAt(now time.Time, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) nextDaily(now time.Time) time.Time {
	return nextRunAt(now, s.dailyHour, s.dailyMinute)
}

// Start runs the timer loop until ctx is canceled. The pipeline fires on a
// fixed interval; the daily aggregation fires once per day at 23:55 UTC for
// the day then ending.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	dailyTimer := time.NewTimer(time.Until(s.nextDaily(time.Now())))
	defer dailyTimer.Stop()

	s.log.Info("scheduler started",
		"interval", s.interval,
		"nextDailyRun", s.nextDaily(time.Now()))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return

		case <-ticker.C:
			s.runPipeline(ctx)

		case <-dailyTimer.C:
			s.runDaily(ctx)
			dailyTimer.Reset(time.Until(s.nextDaily(time.Now())))
		}
	}
}

func (s *Scheduler) runPipeline(ctx context.Context) {
	stats, err := s.pipeline.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.log.Warn("pipeline run skipped, previous run still active")
	case err != nil:
		s.log.Error("scheduled pipeline run failed", "error", err)
	default:
		s.log.Info("scheduled pipeline run finished", "saved", stats.Saved)
	}
}

func (s *Scheduler) runDaily(ctx context.Context) {
	date := utils.FormatDateUTC(time.Now())
	rec, err := s.daily.Run(ctx, date)
	switch {
	case errors.Is(err, analytics.ErrRunInProgress):
		s.log.Warn("daily aggregation skipped, previous run still active")
	case err != nil:
		s.log.Error("daily aggregation failed", "date", date, "error", err)
	default:
		s.log.Info("daily aggregation finished",
			"date", date, "articles", rec.ArticlesAnalyzed)
	}
}
