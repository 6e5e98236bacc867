package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sasidharan-s/marketmind/internal/store"
	"github.com/sasidharan-s/marketmind/pkg/models"
	"github.com/sasidharan-s/marketmind/pkg/utils"
)

// ErrRunInProgress means a daily aggregation is already executing.
var ErrRunInProgress = errors.New("analytics: daily run already in progress")

// DefaultBatchSize is how many articles one aggregation page loads.
const DefaultBatchSize = 1000

// Daily aggregates one calendar day of articles into a history record.
// Aggregation streams pages through running accumulators so memory stays
// flat regardless of article volume.
type Daily struct {
	store     store.Store
	batchSize int
	log       *slog.Logger
	running   atomic.Bool
}

// NewDaily creates the daily aggregator. batchSize <= 0 selects the default.
func NewDaily(st store.Store, batchSize int, log *slog.Logger) *Daily {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Daily{store: st, batchSize: batchSize, log: log}
}

// accumulator keeps a running sum and count.
type accumulator struct {
	sum   int
	count int
}

func (a *accumulator) add(score int) {
	a.sum += score
	a.count++
}

func (a *accumulator) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return round3(float64(a.sum) / float64(a.count))
}

// Run aggregates the given UTC day (YYYY-MM-DD) and upserts the history
// record. A day with no articles yields the zeroed record, written anyway so
// history has no gaps. Overlapping runs are refused with ErrRunInProgress.
func (d *Daily) Run(ctx context.Context, date string) (models.DailySentimentRecord, error) {
	if !d.running.CompareAndSwap(false, true) {
		return models.DailySentimentRecord{}, ErrRunInProgress
	}
	defer d.running.Store(false)

	from, to, err := utils.DayBoundsUTC(date)
	if err != nil {
		return models.DailySentimentRecord{}, fmt.Errorf("analytics: %w", err)
	}

	overall := &accumulator{}
	sectors := make(map[string]*accumulator)

	var cursor *store.Cursor
	pages := 0
	for {
		page, next, err := d.store.ArticlesPage(ctx, from, to, cursor, d.batchSize)
		if err != nil {
			return models.DailySentimentRecord{}, fmt.Errorf("analytics: load page %d: %w", pages, err)
		}
		if len(page) == 0 {
			break
		}
		pages++

		for _, a := range page {
			score := a.Sentiment.Score()
			overall.add(score)
			for _, sector := range a.Sectors {
				acc, ok := sectors[sector]
				if !ok {
					acc = &accumulator{}
					sectors[sector] = acc
				}
				acc.add(score)
			}
		}

		if len(page) < d.batchSize {
			break
		}
		cursor = next
	}

	now := time.Now().UTC()
	rec := models.EmptyDailyRecord(date, now)
	if overall.count > 0 {
		rec.OverallSentimentScore = overall.mean()
		rec.ArticlesAnalyzed = overall.count
		for sector, acc := range sectors {
			rec.SectorBreakdown[sector] = acc.mean()
		}
	}

	if err := d.store.UpsertDailyRecord(ctx, rec); err != nil {
		return models.DailySentimentRecord{}, fmt.Errorf("analytics: upsert daily record: %w", err)
	}

	d.log.Info("daily sentiment aggregated",
		"date", date,
		"articles", rec.ArticlesAnalyzed,
		"overallScore", rec.OverallSentimentScore,
		"pages", pages)
	return rec, nil
}
