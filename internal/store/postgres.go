package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sasidharan-s/marketmind/pkg/models"
)

// DB is the subset of pgxpool.Pool the store uses. Declared as an interface
// so tests can substitute a pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

// Postgres is the pgx-backed Store implementation.
type Postgres struct {
	db DB
}

// NewPostgres connects a pgx pool to the given URL and bootstraps the schema.
func NewPostgres(ctx context.Context, url string, maxConns int) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("store: parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	s := &Postgres{db: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresWithDB wraps an existing pool-compatible handle. Used by tests.
func NewPostgresWithDB(db DB) *Postgres {
	return &Postgres{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id           UUID PRIMARY KEY,
	headline     TEXT NOT NULL,
	source       TEXT NOT NULL,
	url          TEXT NOT NULL,
	summary      TEXT NOT NULL,
	sentiment    TEXT NOT NULL,
	tickers      TEXT[] NOT NULL DEFAULT '{}',
	sectors      TEXT[] NOT NULL DEFAULT '{}',
	published_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_published ON articles (published_at, id);
CREATE INDEX IF NOT EXISTS idx_articles_url ON articles (url);

CREATE TABLE IF NOT EXISTS sentiment_current (
	id                SMALLINT PRIMARY KEY CHECK (id = 1),
	average_score     DOUBLE PRECISION NOT NULL,
	articles_analyzed INTEGER NOT NULL,
	window_hours      INTEGER NOT NULL,
	last_updated      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sentiment_history (
	date              TEXT PRIMARY KEY,
	overall_score     DOUBLE PRECISION NOT NULL,
	articles_analyzed INTEGER NOT NULL,
	sector_breakdown  JSONB NOT NULL,
	last_updated      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
	id           UUID PRIMARY KEY,
	user_id      TEXT NOT NULL,
	category     TEXT NOT NULL,
	message      TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS submission_slots (
	user_id    TEXT NOT NULL,
	collection TEXT NOT NULL,
	bucket     BIGINT NOT NULL,
	claimed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, collection, bucket)
);

CREATE TABLE IF NOT EXISTS watchlist_items (
	id       UUID PRIMARY KEY,
	user_id  TEXT NOT NULL,
	ticker   TEXT NOT NULL,
	added_at TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, ticker)
);
`

func (s *Postgres) ensureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

func (s *Postgres) SaveArticles(ctx context.Context, articles []models.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, a := range articles {
		batch.Queue(`
			INSERT INTO articles (id, headline, source, url, summary, sentiment, tickers, sectors, published_at, processed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			a.ID, a.Headline, a.Source, a.URL, a.Summary, string(a.Sentiment),
			a.Tickers, a.Sectors, a.PublishedAt, a.ProcessedAt,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	saved := 0
	for range articles {
		if _, err := results.Exec(); err != nil {
			return saved, fmt.Errorf("store: batch insert articles: %w", err)
		}
		saved++
	}
	return saved, nil
}

func (s *Postgres) RecentArticleURLs(ctx context.Context, since time.Time) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx,
		`SELECT url FROM articles WHERE published_at >= $1`, since)
	if err != nil {
		return nil, fmt.Errorf("store: recent urls: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("store: scan url: %w", err)
		}
		urls[url] = struct{}{}
	}
	return urls, rows.Err()
}

const articleColumns = `id, headline, source, url, summary, sentiment, tickers, sectors, published_at, processed_at`

func scanArticles(rows pgx.Rows) ([]models.Article, error) {
	var out []models.Article
	for rows.Next() {
		var a models.Article
		var sentiment string
		if err := rows.Scan(&a.ID, &a.Headline, &a.Source, &a.URL, &a.Summary,
			&sentiment, &a.Tickers, &a.Sectors, &a.PublishedAt, &a.ProcessedAt); err != nil {
			return nil, fmt.Errorf("store: scan article: %w", err)
		}
		a.Sentiment = models.Sentiment(sentiment)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Postgres) ArticlesBetween(ctx context.Context, from, to time.Time) ([]models.Article, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE published_at >= $1 AND published_at <= $2
		 ORDER BY published_at, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("store: articles between: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (s *Postgres) ArticlesPage(ctx context.Context, from, to time.Time, after *Cursor, limit int) ([]models.Article, *Cursor, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		rows, err = s.db.Query(ctx,
			`SELECT `+articleColumns+` FROM articles
			 WHERE published_at >= $1 AND published_at < $2
			 ORDER BY published_at, id
			 LIMIT $3`, from, to, limit)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT `+articleColumns+` FROM articles
			 WHERE published_at >= $1 AND published_at < $2
			   AND (published_at, id) > ($3, $4)
			 ORDER BY published_at, id
			 LIMIT $5`, from, to, after.PublishedAt, after.ID, limit)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: articles page: %w", err)
	}
	defer rows.Close()

	page, err := scanArticles(rows)
	if err != nil {
		return nil, nil, err
	}

	var next *Cursor
	if len(page) > 0 {
		last := page[len(page)-1]
		next = &Cursor{PublishedAt: last.PublishedAt, ID: last.ID}
	}
	return page, next, nil
}

func (s *Postgres) SaveSnapshot(ctx context.Context, snap models.SentimentSnapshot) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sentiment_current (id, average_score, articles_analyzed, window_hours, last_updated)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			average_score = EXCLUDED.average_score,
			articles_analyzed = EXCLUDED.articles_analyzed,
			window_hours = EXCLUDED.window_hours,
			last_updated = EXCLUDED.last_updated`,
		snap.AverageScore, snap.ArticlesAnalyzed, snap.WindowHours, snap.LastUpdated)
	if err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

func (s *Postgres) CurrentSnapshot(ctx context.Context) (*models.SentimentSnapshot, error) {
	var snap models.SentimentSnapshot
	err := s.db.QueryRow(ctx, `
		SELECT average_score, articles_analyzed, window_hours, last_updated
		FROM sentiment_current WHERE id = 1`).
		Scan(&snap.AverageScore, &snap.ArticlesAnalyzed, &snap.WindowHours, &snap.LastUpdated)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: current snapshot: %w", err)
	}
	return &snap, nil
}

func (s *Postgres) UpsertDailyRecord(ctx context.Context, rec models.DailySentimentRecord) error {
	breakdown, err := json.Marshal(rec.SectorBreakdown)
	if err != nil {
		return fmt.Errorf("store: marshal breakdown: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO sentiment_history (date, overall_score, articles_analyzed, sector_breakdown, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date) DO UPDATE SET
			overall_score = EXCLUDED.overall_score,
			articles_analyzed = EXCLUDED.articles_analyzed,
			sector_breakdown = EXCLUDED.sector_breakdown,
			last_updated = EXCLUDED.last_updated`,
		rec.Date, rec.OverallSentimentScore, rec.ArticlesAnalyzed, breakdown, rec.LastUpdated)
	if err != nil {
		return fmt.Errorf("store: upsert daily record: %w", err)
	}
	return nil
}

func (s *Postgres) DailyRecords(ctx context.Context, from, to string) ([]models.DailySentimentRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT date, overall_score, articles_analyzed, sector_breakdown, last_updated
		FROM sentiment_history
		WHERE date >= $1 AND date <= $2
		ORDER BY date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("store: daily records: %w", err)
	}
	defer rows.Close()

	var out []models.DailySentimentRecord
	for rows.Next() {
		var rec models.DailySentimentRecord
		var breakdown []byte
		if err := rows.Scan(&rec.Date, &rec.OverallSentimentScore,
			&rec.ArticlesAnalyzed, &breakdown, &rec.LastUpdated); err != nil {
			return nil, fmt.Errorf("store: scan daily record: %w", err)
		}
		if err := json.Unmarshal(breakdown, &rec.SectorBreakdown); err != nil {
			return nil, fmt.Errorf("store: unmarshal breakdown: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Postgres) SaveFeedback(ctx context.Context, rec models.FeedbackRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO feedback (id, user_id, category, message, submitted_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.UserID, string(rec.Category), rec.Message, rec.SubmittedAt)
	if err != nil {
		return fmt.Errorf("store: save feedback: %w", err)
	}
	return nil
}

func (s *Postgres) ReserveSubmissionSlot(ctx context.Context, userID, collection string, bucket int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO submission_slots (user_id, collection, bucket)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, collection, bucket) DO NOTHING`,
		userID, collection, bucket)
	if err != nil {
		return false, fmt.Errorf("store: reserve submission slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) AddWatchlistItem(ctx context.Context, item models.WatchlistItem) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO watchlist_items (id, user_id, ticker, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, ticker) DO NOTHING`,
		item.ID, item.UserID, item.Ticker, item.AddedAt)
	if err != nil {
		return fmt.Errorf("store: add watchlist item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *Postgres) RemoveWatchlistItem(ctx context.Context, userID, itemID string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM watchlist_items WHERE user_id = $1 AND id = $2`,
		userID, itemID)
	if err != nil {
		return fmt.Errorf("store: remove watchlist item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Close() {
	s.db.Close()
}
