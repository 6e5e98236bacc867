// Package models defines the core data structures used throughout MarketMind.
package models

import "time"

// Sentiment is the closed set of sentiment labels an article may carry.
// Values outside this set never reach storage; the validator rejects them.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// Valid reports whether s is one of the three enumerated labels.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Score maps a sentiment label to its numeric value:
// Positive=+1, Neutral=0, Negative=-1. Unknown labels score 0.
func (s Sentiment) Score() int {
	switch s {
	case SentimentPositive:
		return 1
	case SentimentNegative:
		return -1
	default:
		return 0
	}
}

// RawArticle is an unvalidated candidate article as returned by the AI
// provider. Every field is untrusted input until the validator has seen it.
type RawArticle struct {
	Headline  string   `json:"headline"`
	Source    string   `json:"source"`
	URL       string   `json:"url"`
	Summary   string   `json:"summary"`
	Sentiment string   `json:"sentiment"`
	Tickers   []string `json:"tickers"`
	Sectors   []string `json:"sectors"`
}

// Article is a validated, persisted news article. Immutable once stored.
type Article struct {
	ID          string    `json:"id"`
	Headline    string    `json:"headline"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary"`
	Sentiment   Sentiment `json:"sentiment"`
	Tickers     []string  `json:"tickers"`
	Sectors     []string  `json:"sectors"`
	PublishedAt time.Time `json:"publishedAt"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Field bounds enforced by the validator.
const (
	HeadlineMaxLen = 500
	SourceMaxLen   = 100
	SummaryMinLen  = 10
	SummaryMaxLen  = 1000
	MaxTickers     = 20
	MaxSectors     = 10
	MaxArticles    = 50 // cap on one provider response
)
