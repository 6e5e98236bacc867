// Package gateway handles user-submitted writes: feedback and watchlist
// changes. Submissions are throttled per user with first-writer-wins time
// buckets claimed in the store, so the limit holds across processes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sasidharan-s/marketmind/internal/store"
	"github.com/sasidharan-s/marketmind/pkg/models"
	"github.com/sasidharan-s/marketmind/pkg/utils"
)

// Errors surfaced to the API layer.
var (
	ErrRateLimited     = errors.New("gateway: submission rate limit exceeded")
	ErrDuplicateTicker = errors.New("gateway: ticker already on watchlist")
	ErrItemNotFound    = errors.New("gateway: watchlist item not found")
)

// RejectionKind classifies an invalid submission.
type RejectionKind string

const (
	MissingField RejectionKind = "missing_field"
	OutOfRange   RejectionKind = "out_of_range"
	InvalidEnum  RejectionKind = "invalid_enum"
)

// Rejection is a validation failure on a user submission.
type Rejection struct {
	Kind   RejectionKind
	Field  string
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("gateway: %s %s: %s", r.Field, r.Kind, r.Detail)
}

// DefaultSubmitWindow is the width of one rate-limit bucket.
const DefaultSubmitWindow = 60 * time.Second

// Collections claimed in the submission slot table.
const (
	collectionFeedback  = "feedback"
	collectionWatchlist = "watchlist"
)

// Service processes user submissions.
type Service struct {
	store  store.Store
	window time.Duration
	log    *slog.Logger
	now    func() time.Time
}

// NewService creates the gateway. window <= 0 selects the default bucket.
func NewService(st store.Store, window time.Duration, log *slog.Logger) *Service {
	if window <= 0 {
		window = DefaultSubmitWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, window: window, log: log, now: time.Now}
}

func (s *Service) bucket(now time.Time) int64 {
	return now.Unix() / int64(s.window.Seconds())
}

// reserve claims the user's slot for the current bucket, failing with
// ErrRateLimited when it is already taken.
func (s *Service) reserve(ctx context.Context, userID, collection string) error {
	ok, err := s.store.ReserveSubmissionSlot(ctx, userID, collection, s.bucket(s.now()))
	if err != nil {
		return fmt.Errorf("gateway: reserve slot: %w", err)
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}

// FeedbackInput is an incoming feedback submission.
type FeedbackInput struct {
	UserID   string `json:"userId"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// SubmitFeedback validates, throttles, and stores one feedback record.
// Validation runs before the rate-limit slot is claimed so a malformed
// submission does not burn the user's bucket.
func (s *Service) SubmitFeedback(ctx context.Context, in FeedbackInput) (*models.FeedbackRecord, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, &Rejection{Kind: MissingField, Field: "userId", Detail: "empty"}
	}

	category := models.FeedbackCategory(strings.TrimSpace(in.Category))
	if !category.Valid() {
		return nil, &Rejection{Kind: InvalidEnum, Field: "category", Detail: in.Category}
	}

	message := strings.TrimSpace(in.Message)
	if n := utf8.RuneCountInString(message); n < models.FeedbackMessageMinLen || n > models.FeedbackMessageMaxLen {
		return nil, &Rejection{
			Kind:  OutOfRange,
			Field: "message",
			Detail: fmt.Sprintf("%d chars, want %d-%d",
				n, models.FeedbackMessageMinLen, models.FeedbackMessageMaxLen),
		}
	}

	if err := s.reserve(ctx, userID, collectionFeedback); err != nil {
		return nil, err
	}

	rec := models.FeedbackRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		Category:    category,
		Message:     message,
		SubmittedAt: s.now().UTC(),
	}
	if err := s.store.SaveFeedback(ctx, rec); err != nil {
		return nil, fmt.Errorf("gateway: save feedback: %w", err)
	}

	s.log.Info("feedback stored", "userId", userID, "category", string(category))
	return &rec, nil
}

// AddWatchlistItem validates the ticker, throttles, and stores the item.
func (s *Service) AddWatchlistItem(ctx context.Context, userID, ticker string) (*models.WatchlistItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &Rejection{Kind: MissingField, Field: "userId", Detail: "empty"}
	}

	norm := utils.NormalizeTicker(ticker)
	if norm == "" {
		return nil, &Rejection{Kind: MissingField, Field: "ticker", Detail: "empty"}
	}
	if !utils.ValidTicker(norm) {
		return nil, &Rejection{Kind: OutOfRange, Field: "ticker", Detail: ticker}
	}

	if err := s.reserve(ctx, userID, collectionWatchlist); err != nil {
		return nil, err
	}

	item := models.WatchlistItem{
		ID:      uuid.NewString(),
		UserID:  userID,
		Ticker:  norm,
		AddedAt: s.now().UTC(),
	}
	if err := s.store.AddWatchlistItem(ctx, item); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateTicker
		}
		return nil, fmt.Errorf("gateway: add watchlist item: %w", err)
	}

	s.log.Info("watchlist item added", "userId", userID, "ticker", norm)
	return &item, nil
}

// RemoveWatchlistItem deletes one item from the user's watchlist. Removals
// are not rate limited.
func (s *Service) RemoveWatchlistItem(ctx context.Context, userID, itemID string) error {
	userID = strings.TrimSpace(userID)
	itemID = strings.TrimSpace(itemID)
	if userID == "" || itemID == "" {
		return &Rejection{Kind: MissingField, Field: "id", Detail: "empty"}
	}

	if err := s.store.RemoveWatchlistItem(ctx, userID, itemID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("gateway: remove watchlist item: %w", err)
	}

	s.log.Info("watchlist item removed", "userId", userID, "itemId", itemID)
	return nil
}
