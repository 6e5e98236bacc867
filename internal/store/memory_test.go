package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sasidharan-s/marketmind/pkg/models"
)

func testArticle(id string, published time.Time) models.Article {
	return models.Article{
		ID:          id,
		Headline:    "Nifty closes above 25,000 on IT rally",
		Source:      "Economic Times",
		URL:         "https://example.com/news/" + id,
		Summary:     "Benchmark indices ended higher led by information technology stocks.",
		Sentiment:   models.SentimentPositive,
		Tickers:     []string{"INFY"},
		Sectors:     []string{"IT"},
		PublishedAt: published,
		ProcessedAt: published.Add(time.Minute),
	}
}

func TestMemorySaveAndRecentURLs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	saved, err := m.SaveArticles(ctx, []models.Article{
		testArticle("a1", now.Add(-time.Hour)),
		testArticle("a2", now.Add(-30*time.Hour)),
	})
	if err != nil {
		t.Fatalf("SaveArticles: %v", err)
	}
	if saved != 2 {
		t.Fatalf("saved = %d, want 2", saved)
	}

	urls, err := m.RecentArticleURLs(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("RecentArticleURLs: %v", err)
	}
	if len(urls) != 1 {
		t.Fatalf("got %d recent urls, want 1", len(urls))
	}
	if _, ok := urls["https://example.com/news/a1"]; !ok {
		t.Errorf("a1 missing from recent urls")
	}
}

func TestMemoryArticlesPageOrdering(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	var articles []models.Article
	for i := 0; i < 7; i++ {
		articles = append(articles, testArticle(fmt.Sprintf("p%d", i), base.Add(time.Duration(i)*time.Minute)))
	}
	if _, err := m.SaveArticles(ctx, articles); err != nil {
		t.Fatalf("SaveArticles: %v", err)
	}

	from := base
	to := base.Add(time.Hour)

	var all []models.Article
	var cursor *Cursor
	pages := 0
	for {
		page, next, err := m.ArticlesPage(ctx, from, to, cursor, 3)
		if err != nil {
			t.Fatalf("ArticlesPage: %v", err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		cursor = next
		pages++
	}

	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if len(all) != 7 {
		t.Fatalf("got %d articles, want 7", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].PublishedAt.Before(all[i-1].PublishedAt) {
			t.Errorf("page ordering broken at index %d", i)
		}
	}
}

func TestMemorySnapshotRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.CurrentSnapshot(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty snapshot err = %v, want ErrNotFound", err)
	}

	snap := models.SentimentSnapshot{
		AverageScore:     0.333,
		ArticlesAnalyzed: 3,
		WindowHours:      models.SentimentWindowHours,
		LastUpdated:      time.Now().UTC(),
	}
	if err := m.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	got, err := m.CurrentSnapshot(ctx)
	if err != nil {
		t.Fatalf("CurrentSnapshot: %v", err)
	}
	if got.AverageScore != 0.333 || got.ArticlesAnalyzed != 3 {
		t.Errorf("snapshot = %+v, want %+v", got, snap)
	}
}

func TestMemoryReserveSubmissionSlot(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ok, err := m.ReserveSubmissionSlot(ctx, "user-1", "feedback", 100)
	if err != nil || !ok {
		t.Fatalf("first reservation: ok=%v err=%v", ok, err)
	}
	ok, err = m.ReserveSubmissionSlot(ctx, "user-1", "feedback", 100)
	if err != nil {
		t.Fatalf("second reservation: %v", err)
	}
	if ok {
		t.Errorf("same bucket reserved twice")
	}
	ok, err = m.ReserveSubmissionSlot(ctx, "user-1", "feedback", 101)
	if err != nil || !ok {
		t.Errorf("next bucket: ok=%v err=%v", ok, err)
	}
	ok, err = m.ReserveSubmissionSlot(ctx, "user-2", "feedback", 100)
	if err != nil || !ok {
		t.Errorf("other user same bucket: ok=%v err=%v", ok, err)
	}
}

func TestMemoryWatchlist(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	item := models.WatchlistItem{ID: "w1", UserID: "user-1", Ticker: "RELIANCE", AddedAt: time.Now().UTC()}
	if err := m.AddWatchlistItem(ctx, item); err != nil {
		t.Fatalf("AddWatchlistItem: %v", err)
	}

	dup := models.WatchlistItem{ID: "w2", UserID: "user-1", Ticker: "RELIANCE", AddedAt: time.Now().UTC()}
	if err := m.AddWatchlistItem(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate ticker err = %v, want ErrDuplicate", err)
	}

	if err := m.RemoveWatchlistItem(ctx, "user-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("remove missing err = %v, want ErrNotFound", err)
	}
	if err := m.RemoveWatchlistItem(ctx, "user-1", "w1"); err != nil {
		t.Errorf("remove: %v", err)
	}
	if items := m.WatchlistItems("user-1"); len(items) != 0 {
		t.Errorf("watchlist not empty after remove: %v", items)
	}
}

func TestMemoryDailyRecords(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, date := range []string{"2026-03-09", "2026-03-10", "2026-03-11"} {
		rec := models.EmptyDailyRecord(date, time.Now().UTC())
		if err := m.UpsertDailyRecord(ctx, rec); err != nil {
			t.Fatalf("UpsertDailyRecord(%s): %v", date, err)
		}
	}

	// Upsert for an existing date overwrites rather than appends.
	if err := m.UpsertDailyRecord(ctx, models.DailySentimentRecord{
		Date:                  "2026-03-10",
		OverallSentimentScore: 0.5,
		ArticlesAnalyzed:      4,
		SectorBreakdown:       map[string]float64{},
		LastUpdated:           time.Now().UTC(),
	}); err != nil {
		t.Fatalf("UpsertDailyRecord overwrite: %v", err)
	}

	recs, err := m.DailyRecords(ctx, "2026-03-10", "2026-03-11")
	if err != nil {
		t.Fatalf("DailyRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Date != "2026-03-10" || recs[0].OverallSentimentScore != 0.5 {
		t.Errorf("overwrite not applied: %+v", recs[0])
	}
}
