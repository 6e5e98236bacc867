package models

import "time"

// FeedbackCategory is the closed set of feedback categories.
type FeedbackCategory string

const (
	FeedbackGeneralInquiry      FeedbackCategory = "General Inquiry"
	FeedbackBugReport           FeedbackCategory = "Bug Report"
	FeedbackFeatureRequest      FeedbackCategory = "Feature Request"
	FeedbackAIMisclassification FeedbackCategory = "AI Misclassification"
)

// Valid reports whether c is one of the enumerated categories.
func (c FeedbackCategory) Valid() bool {
	switch c {
	case FeedbackGeneralInquiry, FeedbackBugReport,
		FeedbackFeatureRequest, FeedbackAIMisclassification:
		return true
	}
	return false
}

// Feedback message bounds.
const (
	FeedbackMessageMinLen = 10
	FeedbackMessageMaxLen = 2000
)

// FeedbackRecord is one user feedback submission. Write-once; there is no
// client-facing read path.
type FeedbackRecord struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Category    FeedbackCategory `json:"category"`
	Message     string           `json:"message"`
	SubmittedAt time.Time        `json:"submittedAt"`
}

// WatchlistItem is one ticker on a user's watchlist. (UserID, Ticker) is
// unique per user.
type WatchlistItem struct {
	ID      string    `json:"id"`
	UserID  string    `json:"userId"`
	Ticker  string    `json:"ticker"`
	AddedAt time.Time `json:"addedAt"`
}
