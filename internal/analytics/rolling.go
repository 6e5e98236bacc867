// Package analytics computes the rolling sentiment snapshot and the daily
// sentiment aggregates from stored articles.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sasidharan-s/marketmind/internal/store"
	"github.com/sasidharan-s/marketmind/pkg/models"
)

// round3 rounds to three decimal places, the precision all published
// sentiment scores carry.
func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// ComputeSnapshot folds a set of articles into a snapshot. An empty input
// yields a neutral snapshot with zero articles rather than an error.
func ComputeSnapshot(articles []models.Article, now time.Time) models.SentimentSnapshot {
	snap := models.SentimentSnapshot{
		WindowHours: models.SentimentWindowHours,
		LastUpdated: now.UTC(),
	}
	if len(articles) == 0 {
		return snap
	}

	sum := 0
	for _, a := range articles {
		sum += a.Sentiment.Score()
	}
	snap.AverageScore = round3(float64(sum) / float64(len(articles)))
	snap.ArticlesAnalyzed = len(articles)
	return snap
}

// Rolling recomputes and persists the current sentiment snapshot.
type Rolling struct {
	store store.Store
	log   *slog.Logger
}

// NewRolling creates the rolling snapshot calculator.
func NewRolling(st store.Store, log *slog.Logger) *Rolling {
	if log == nil {
		log = slog.Default()
	}
	return &Rolling{store: st, log: log}
}

// Refresh recomputes the snapshot over the trailing window ending at now
// and overwrites the stored current snapshot.
func (r *Rolling) Refresh(ctx context.Context, now time.Time) (models.SentimentSnapshot, error) {
	now = now.UTC()
	from := now.Add(-time.Duration(models.SentimentWindowHours) * time.Hour)

	articles, err := r.store.ArticlesBetween(ctx, from, now)
	if err != nil {
		return models.SentimentSnapshot{}, fmt.Errorf("analytics: load window: %w", err)
	}

	snap := ComputeSnapshot(articles, now)
	if err := r.store.SaveSnapshot(ctx, snap); err != nil {
		return models.SentimentSnapshot{}, fmt.Errorf("analytics: save snapshot: %w", err)
	}

	r.log.Info("sentiment snapshot refreshed",
		"averageScore", snap.AverageScore,
		"articlesAnalyzed", snap.ArticlesAnalyzed)
	return snap, nil
}
