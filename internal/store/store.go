// Package store provides the persistence layer for MarketMind. It exposes
// exactly the primitives the core needs: range queries by timestamp, batch
// article writes, singleton upserts, and the per-user submission bookkeeping
// the access gateway relies on.
//
// Two implementations exist: Postgres (pgx) for production and Memory for
// dev mode and tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sasidharan-s/marketmind/pkg/models"
)

// Sentinel errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a uniqueness constraint would be violated.
	ErrDuplicate = errors.New("store: duplicate")
)

// Cursor identifies a resume point in a paginated article scan. Articles are
// ordered by (publishedAt, id) ascending.
type Cursor struct {
	PublishedAt time.Time
	ID          string
}

// Store is the persistence contract used by the pipeline, the analytics
// engines, and the access gateway.
type Store interface {
	// SaveArticles persists a batch of validated articles in one operation
	// and returns the number written.
	SaveArticles(ctx context.Context, articles []models.Article) (int, error)

	// RecentArticleURLs returns the URL of every article published at or
	// after since, in a single range query.
	RecentArticleURLs(ctx context.Context, since time.Time) (map[string]struct{}, error)

	// ArticlesBetween returns all articles with publishedAt in [from, to].
	ArticlesBetween(ctx context.Context, from, to time.Time) ([]models.Article, error)

	// ArticlesPage returns up to limit articles with publishedAt in
	// [from, to), ordered by (publishedAt, id), starting after the cursor
	// (nil for the first page). The returned cursor resumes the scan; a
	// short page means the scan is complete.
	ArticlesPage(ctx context.Context, from, to time.Time, after *Cursor, limit int) ([]models.Article, *Cursor, error)

	// SaveSnapshot overwrites the singleton rolling-sentiment snapshot.
	SaveSnapshot(ctx context.Context, snap models.SentimentSnapshot) error

	// CurrentSnapshot returns the singleton snapshot, or ErrNotFound if no
	// pipeline run has written one yet.
	CurrentSnapshot(ctx context.Context) (*models.SentimentSnapshot, error)

	// UpsertDailyRecord writes the daily record keyed by its date,
	// overwriting any prior record for that date.
	UpsertDailyRecord(ctx context.Context, rec models.DailySentimentRecord) error

	// DailyRecords returns records with date in [from, to] (inclusive,
	// YYYY-MM-DD), ordered by date ascending.
	DailyRecords(ctx context.Context, from, to string) ([]models.DailySentimentRecord, error)

	// SaveFeedback persists one feedback submission.
	SaveFeedback(ctx context.Context, rec models.FeedbackRecord) error

	// ReserveSubmissionSlot atomically claims the (userID, collection,
	// bucket) slot. It returns false when the slot was already claimed,
	// which the gateway surfaces as a rate-limit rejection.
	ReserveSubmissionSlot(ctx context.Context, userID, collection string, bucket int64) (bool, error)

	// AddWatchlistItem persists a watchlist entry; ErrDuplicate when the
	// user already watches the ticker.
	AddWatchlistItem(ctx context.Context, item models.WatchlistItem) error

	// RemoveWatchlistItem deletes a user's watchlist entry by item ID;
	// ErrNotFound when it does not exist.
	RemoveWatchlistItem(ctx context.Context, userID, itemID string) error

	// Close releases the underlying resources.
	Close()
}
