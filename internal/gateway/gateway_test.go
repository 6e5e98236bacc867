package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sasidharan-s/marketmind/internal/store"
	"github.com/sasidharan-s/marketmind/pkg/models"
)

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	return NewService(m, time.Minute, nil), m
}

func validFeedback() FeedbackInput {
	return FeedbackInput{
		UserID:   "user-1",
		Category: "Bug Report",
		Message:  "The sentiment gauge shows stale data after midnight.",
	}
}

func TestSubmitFeedback(t *testing.T) {
	svc, m := newTestService(t)

	rec, err := svc.SubmitFeedback(context.Background(), validFeedback())
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if rec.ID == "" || rec.Category != models.FeedbackBugReport {
		t.Errorf("record = %+v", rec)
	}
	if m.FeedbackCount() != 1 {
		t.Errorf("feedback count = %d, want 1", m.FeedbackCount())
	}
}

func TestSubmitFeedbackRejections(t *testing.T) {
	svc, m := newTestService(t)

	tests := []struct {
		name     string
		mutate   func(*FeedbackInput)
		wantKind RejectionKind
	}{
		{"missing user", func(in *FeedbackInput) { in.UserID = " " }, MissingField},
		{"unknown category", func(in *FeedbackInput) { in.Category = "Complaint" }, InvalidEnum},
		{"message too short", func(in *FeedbackInput) { in.Message = "too short" }, OutOfRange},
		{"message too long", func(in *FeedbackInput) {
			in.Message = strings.Repeat("x", models.FeedbackMessageMaxLen+1)
		}, OutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validFeedback()
			tt.mutate(&in)
			_, err := svc.SubmitFeedback(context.Background(), in)
			var rej *Rejection
			if !errors.As(err, &rej) {
				t.Fatalf("err = %v, want *Rejection", err)
			}
			if rej.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", rej.Kind, tt.wantKind)
			}
		})
	}

	if m.FeedbackCount() != 0 {
		t.Errorf("rejected submissions were stored")
	}
}

func TestSubmitFeedbackMessageBoundCountsRunes(t *testing.T) {
	svc, m := newTestService(t)

	// 1990 Devanagari characters are well past the bound in bytes but not
	// in characters.
	in := validFeedback()
	in.Message = strings.Repeat("न", models.FeedbackMessageMaxLen-10)
	if _, err := svc.SubmitFeedback(context.Background(), in); err != nil {
		t.Fatalf("multibyte message within bounds rejected: %v", err)
	}
	if m.FeedbackCount() != 1 {
		t.Errorf("feedback count = %d, want 1", m.FeedbackCount())
	}
}

func TestSubmitFeedbackRateLimit(t *testing.T) {
	svc, _ := newTestService(t)
	base := time.Date(2026, 3, 10, 12, 0, 30, 0, time.UTC)
	svc.now = func() time.Time { return base }
	ctx := context.Background()

	if _, err := svc.SubmitFeedback(ctx, validFeedback()); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if _, err := svc.SubmitFeedback(ctx, validFeedback()); !errors.Is(err, ErrRateLimited) {
		t.Errorf("same bucket err = %v, want ErrRateLimited", err)
	}

	// Next bucket opens a new slot.
	svc.now = func() time.Time { return base.Add(time.Minute) }
	if _, err := svc.SubmitFeedback(ctx, validFeedback()); err != nil {
		t.Errorf("next bucket: %v", err)
	}

	// Another user is unaffected.
	in := validFeedback()
	in.UserID = "user-2"
	if _, err := svc.SubmitFeedback(ctx, in); err != nil {
		t.Errorf("other user: %v", err)
	}
}

func TestSubmitFeedbackRejectionDoesNotBurnBucket(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	bad := validFeedback()
	bad.Category = "Nonsense"
	if _, err := svc.SubmitFeedback(ctx, bad); err == nil {
		t.Fatalf("expected rejection")
	}

	// The invalid attempt must not have claimed the slot.
	if _, err := svc.SubmitFeedback(ctx, validFeedback()); err != nil {
		t.Errorf("valid submission after rejection: %v", err)
	}
}

func TestFeedbackAndWatchlistBucketsIndependent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SubmitFeedback(ctx, validFeedback()); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	// Same user, same minute, different collection.
	if _, err := svc.AddWatchlistItem(ctx, "user-1", "TCS"); err != nil {
		t.Errorf("watchlist add blocked by feedback bucket: %v", err)
	}
}

func TestAddWatchlistItem(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	item, err := svc.AddWatchlistItem(ctx, "user-1", "  reliance ")
	if err != nil {
		t.Fatalf("AddWatchlistItem: %v", err)
	}
	if item.Ticker != "RELIANCE" {
		t.Errorf("ticker = %q, want normalized RELIANCE", item.Ticker)
	}
	if len(m.WatchlistItems("user-1")) != 1 {
		t.Errorf("item not stored")
	}
}

func TestAddWatchlistItemDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	minute := 0
	svc.now = func() time.Time {
		return base.Add(time.Duration(minute) * time.Minute)
	}
	ctx := context.Background()

	if _, err := svc.AddWatchlistItem(ctx, "user-1", "TCS"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	minute++
	if _, err := svc.AddWatchlistItem(ctx, "user-1", "tcs"); !errors.Is(err, ErrDuplicateTicker) {
		t.Errorf("duplicate err = %v, want ErrDuplicateTicker", err)
	}
}

func TestRemoveWatchlistItem(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.AddWatchlistItem(ctx, "user-1", "INFY")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := svc.RemoveWatchlistItem(ctx, "user-1", "no-such-id"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("missing item err = %v, want ErrItemNotFound", err)
	}
	if err := svc.RemoveWatchlistItem(ctx, "user-1", item.ID); err != nil {
		t.Errorf("remove: %v", err)
	}
	// Second removal of the same item finds nothing.
	if err := svc.RemoveWatchlistItem(ctx, "user-1", item.ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("re-remove err = %v, want ErrItemNotFound", err)
	}
}
