package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sasidharan-s/marketmind/pkg/models"
)

// Memory is an in-memory Store used in dev mode (no database.url configured)
// and in tests. It provides the same semantics as Postgres: ordering,
// uniqueness, and first-writer-wins submission slots.
type Memory struct {
	mu        sync.RWMutex
	articles  []models.Article
	snapshot  *models.SentimentSnapshot
	daily     map[string]models.DailySentimentRecord
	feedback  []models.FeedbackRecord
	slots     map[slotKey]struct{}
	watchlist map[string][]models.WatchlistItem // userID -> items
}

type slotKey struct {
	userID     string
	collection string
	bucket     int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		daily:     make(map[string]models.DailySentimentRecord),
		slots:     make(map[slotKey]struct{}),
		watchlist: make(map[string][]models.WatchlistItem),
	}
}

func (m *Memory) SaveArticles(_ context.Context, articles []models.Article) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.articles = append(m.articles, articles...)
	sort.Slice(m.articles, func(i, j int) bool {
		if !m.articles[i].PublishedAt.Equal(m.articles[j].PublishedAt) {
			return m.articles[i].PublishedAt.Before(m.articles[j].PublishedAt)
		}
		return m.articles[i].ID < m.articles[j].ID
	})
	return len(articles), nil
}

func (m *Memory) RecentArticleURLs(_ context.Context, since time.Time) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	urls := make(map[string]struct{})
	for _, a := range m.articles {
		if !a.PublishedAt.Before(since) {
			urls[a.URL] = struct{}{}
		}
	}
	return urls, nil
}

func (m *Memory) ArticlesBetween(_ context.Context, from, to time.Time) ([]models.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Article
	for _, a := range m.articles {
		if !a.PublishedAt.Before(from) && !a.PublishedAt.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) ArticlesPage(_ context.Context, from, to time.Time, after *Cursor, limit int) ([]models.Article, *Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var page []models.Article
	for _, a := range m.articles {
		if a.PublishedAt.Before(from) || !a.PublishedAt.Before(to) {
			continue
		}
		if after != nil {
			if a.PublishedAt.Before(after.PublishedAt) {
				continue
			}
			if a.PublishedAt.Equal(after.PublishedAt) && a.ID <= after.ID {
				continue
			}
		}
		page = append(page, a)
		if len(page) == limit {
			break
		}
	}

	var next *Cursor
	if len(page) > 0 {
		last := page[len(page)-1]
		next = &Cursor{PublishedAt: last.PublishedAt, ID: last.ID}
	}
	return page, next, nil
}

func (m *Memory) SaveSnapshot(_ context.Context, snap models.SentimentSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = &snap
	return nil
}

func (m *Memory) CurrentSnapshot(_ context.Context) (*models.SentimentSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot == nil {
		return nil, ErrNotFound
	}
	snap := *m.snapshot
	return &snap, nil
}

func (m *Memory) UpsertDailyRecord(_ context.Context, rec models.DailySentimentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.daily[rec.Date] = rec
	return nil
}

func (m *Memory) DailyRecords(_ context.Context, from, to string) ([]models.DailySentimentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.DailySentimentRecord
	for date, rec := range m.daily {
		if date >= from && date <= to {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *Memory) SaveFeedback(_ context.Context, rec models.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = append(m.feedback, rec)
	return nil
}

func (m *Memory) ReserveSubmissionSlot(_ context.Context, userID, collection string, bucket int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := slotKey{userID: userID, collection: collection, bucket: bucket}
	if _, taken := m.slots[key]; taken {
		return false, nil
	}
	m.slots[key] = struct{}{}
	return true, nil
}

func (m *Memory) AddWatchlistItem(_ context.Context, item models.WatchlistItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.watchlist[item.UserID] {
		if existing.Ticker == item.Ticker {
			return ErrDuplicate
		}
	}
	m.watchlist[item.UserID] = append(m.watchlist[item.UserID], item)
	return nil
}

func (m *Memory) RemoveWatchlistItem(_ context.Context, userID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := m.watchlist[userID]
	for i, item := range items {
		if item.ID == itemID {
			m.watchlist[userID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) Close() {}

// ArticleCount reports the number of persisted articles. Test helper.
func (m *Memory) ArticleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.articles)
}

// FeedbackCount reports the number of persisted feedback records. Test helper.
func (m *Memory) FeedbackCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.feedback)
}

// WatchlistItems returns a copy of a user's watchlist. Test helper.
func (m *Memory) WatchlistItems(userID string) []models.WatchlistItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.WatchlistItem(nil), m.watchlist[userID]...)
}
