package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sasidharan-s/marketmind/internal/store"
	"github.com/sasidharan-s/marketmind/pkg/models"
)

func article(id string, published time.Time, sentiment models.Sentiment, sectors ...string) models.Article {
	return models.Article{
		ID:          id,
		Headline:    "headline " + id,
		Source:      "Moneycontrol",
		URL:         "https://example.com/" + id,
		Summary:     "summary long enough to pass validation bounds",
		Sentiment:   sentiment,
		Sectors:     sectors,
		PublishedAt: published,
		ProcessedAt: published,
	}
}

func TestComputeSnapshotEmpty(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	snap := ComputeSnapshot(nil, now)
	if snap.AverageScore != 0 || snap.ArticlesAnalyzed != 0 {
		t.Errorf("empty snapshot = %+v, want zeroes", snap)
	}
	if snap.WindowHours != models.SentimentWindowHours {
		t.Errorf("windowHours = %d", snap.WindowHours)
	}
}

func TestComputeSnapshotRounding(t *testing.T) {
	now := time.Now().UTC()
	articles := []models.Article{
		article("a", now, models.SentimentPositive),
		article("b", now, models.SentimentPositive),
		article("c", now, models.SentimentNegative),
	}
	snap := ComputeSnapshot(articles, now)
	// (1+1-1)/3 = 0.333...
	if snap.AverageScore != 0.333 {
		t.Errorf("averageScore = %v, want 0.333", snap.AverageScore)
	}
	if snap.ArticlesAnalyzed != 3 {
		t.Errorf("articlesAnalyzed = %d, want 3", snap.ArticlesAnalyzed)
	}
}

func TestRollingRefreshWindow(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// One inside the 6h window, one outside.
	m.SaveArticles(ctx, []models.Article{
		article("in", now.Add(-time.Hour), models.SentimentPositive),
		article("out", now.Add(-7*time.Hour), models.SentimentNegative),
	})

	snap, err := NewRolling(m, nil).Refresh(ctx, now)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.ArticlesAnalyzed != 1 || snap.AverageScore != 1 {
		t.Errorf("snapshot = %+v, want 1 article at +1", snap)
	}

	stored, err := m.CurrentSnapshot(ctx)
	if err != nil {
		t.Fatalf("CurrentSnapshot: %v", err)
	}
	if stored.AverageScore != snap.AverageScore {
		t.Errorf("stored snapshot differs: %+v", stored)
	}
}

func TestDailyRunEmptyDay(t *testing.T) {
	m := store.NewMemory()
	rec, err := NewDaily(m, 0, nil).Run(context.Background(), "2026-03-10")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.ArticlesAnalyzed != 0 || rec.OverallSentimentScore != 0 {
		t.Errorf("empty day record = %+v", rec)
	}
	if len(rec.SectorBreakdown) != len(models.Sectors) {
		t.Errorf("breakdown has %d sectors, want %d", len(rec.SectorBreakdown), len(models.Sectors))
	}

	recs, err := m.DailyRecords(context.Background(), "2026-03-10", "2026-03-10")
	if err != nil || len(recs) != 1 {
		t.Fatalf("record not persisted: %v %v", recs, err)
	}
}

func TestDailyRunBatchedMatchesUnbatched(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	var articles []models.Article
	for i := 0; i < 2500; i++ {
		sentiment := models.SentimentNeutral
		switch i % 3 {
		case 0:
			sentiment = models.SentimentPositive
		case 1:
			sentiment = models.SentimentNegative
		}
		sector := models.Sectors[i%len(models.Sectors)]
		articles = append(articles,
			article(fmt.Sprintf("d%04d", i), base.Add(time.Duration(i)*time.Second), sentiment, sector))
	}
	if _, err := m.SaveArticles(ctx, articles); err != nil {
		t.Fatalf("SaveArticles: %v", err)
	}

	batched, err := NewDaily(m, 1000, nil).Run(ctx, "2026-03-10")
	if err != nil {
		t.Fatalf("batched Run: %v", err)
	}
	// A page size larger than the dataset degenerates to a single page.
	unbatched, err := NewDaily(m, 5000, nil).Run(ctx, "2026-03-10")
	if err != nil {
		t.Fatalf("unbatched Run: %v", err)
	}

	if batched.ArticlesAnalyzed != 2500 {
		t.Errorf("articlesAnalyzed = %d, want 2500", batched.ArticlesAnalyzed)
	}
	if batched.OverallSentimentScore != unbatched.OverallSentimentScore {
		t.Errorf("overall: batched %v != unbatched %v",
			batched.OverallSentimentScore, unbatched.OverallSentimentScore)
	}
	for sector, score := range unbatched.SectorBreakdown {
		if batched.SectorBreakdown[sector] != score {
			t.Errorf("sector %s: batched %v != unbatched %v",
				sector, batched.SectorBreakdown[sector], score)
		}
	}
}

func TestDailyRunOverlapRefused(t *testing.T) {
	bs := &blockingStore{
		Store:   store.NewMemory(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	d := NewDaily(bs, 0, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Run(context.Background(), "2026-03-10")
	}()

	<-bs.entered
	if _, err := d.Run(context.Background(), "2026-03-10"); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("overlapping run err = %v, want ErrRunInProgress", err)
	}
	close(bs.release)
	wg.Wait()
}

// blockingStore parks the first ArticlesPage call so a second Run can be
// attempted while one is in flight.
type blockingStore struct {
	store.Store
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) ArticlesPage(context.Context, time.Time, time.Time, *store.Cursor, int) ([]models.Article, *store.Cursor, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return nil, nil, nil
}
