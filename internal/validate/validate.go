// Package validate enforces the article contract on untrusted provider
// output. Nothing reaches storage without passing through here.
package validate

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sasidharan-s/marketmind/pkg/models"
	"github.com/sasidharan-s/marketmind/pkg/utils"
)

// RejectionKind classifies why a candidate article was refused.
type RejectionKind string

const (
	MissingField RejectionKind = "missing_field"
	OutOfRange   RejectionKind = "out_of_range"
	InvalidEnum  RejectionKind = "invalid_enum"
	InvalidURL   RejectionKind = "invalid_url"
)

// Rejection is a validation failure for a single candidate article.
type Rejection struct {
	Kind   RejectionKind
	Field  string
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("validate: %s %s: %s", r.Field, r.Kind, r.Detail)
}

func reject(kind RejectionKind, field, detail string) *Rejection {
	return &Rejection{Kind: kind, Field: field, Detail: detail}
}

// Article validates one raw candidate and returns the persisted form. The
// sentiment label must match the closed vocabulary exactly. Unknown sectors
// are dropped silently; a rejection is reserved for fields that cannot be
// repaired.
func Article(raw models.RawArticle, now time.Time) (models.Article, error) {
	var out models.Article

	headline := strings.TrimSpace(raw.Headline)
	if headline == "" {
		return out, reject(MissingField, "headline", "empty")
	}
	if n := utf8.RuneCountInString(headline); n > models.HeadlineMaxLen {
		return out, reject(OutOfRange, "headline",
			fmt.Sprintf("%d chars, max %d", n, models.HeadlineMaxLen))
	}

	source := strings.TrimSpace(raw.Source)
	if source == "" {
		return out, reject(MissingField, "source", "empty")
	}
	if n := utf8.RuneCountInString(source); n > models.SourceMaxLen {
		return out, reject(OutOfRange, "source",
			fmt.Sprintf("%d chars, max %d", n, models.SourceMaxLen))
	}

	rawURL := strings.TrimSpace(raw.URL)
	if rawURL == "" {
		return out, reject(MissingField, "url", "empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return out, reject(InvalidURL, "url", rawURL)
	}

	summary := strings.TrimSpace(raw.Summary)
	if n := utf8.RuneCountInString(summary); n < models.SummaryMinLen || n > models.SummaryMaxLen {
		return out, reject(OutOfRange, "summary",
			fmt.Sprintf("%d chars, want %d-%d", n, models.SummaryMinLen, models.SummaryMaxLen))
	}

	sentiment := models.Sentiment(strings.TrimSpace(raw.Sentiment))
	if !sentiment.Valid() {
		return out, reject(InvalidEnum, "sentiment", raw.Sentiment)
	}

	tickers := normalizeTickers(raw.Tickers)
	if len(tickers) > models.MaxTickers {
		return out, reject(OutOfRange, "tickers",
			fmt.Sprintf("%d tickers, max %d", len(tickers), models.MaxTickers))
	}

	sectors := filterSectors(raw.Sectors)
	if len(sectors) > models.MaxSectors {
		return out, reject(OutOfRange, "sectors",
			fmt.Sprintf("%d sectors, max %d", len(sectors), models.MaxSectors))
	}

	return models.Article{
		ID:          uuid.NewString(),
		Headline:    headline,
		Source:      source,
		URL:         rawURL,
		Summary:     summary,
		Sentiment:   sentiment,
		Tickers:     tickers,
		Sectors:     sectors,
		PublishedAt: now.UTC(),
		ProcessedAt: now.UTC(),
	}, nil
}

// normalizeTickers maps each symbol through the alias table, uppercases it,
// and drops empties, malformed symbols, and duplicates. Order is preserved.
func normalizeTickers(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		norm := utils.NormalizeTicker(t)
		if norm == "" || !utils.ValidTicker(norm) {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// filterSectors keeps only sectors in the known vocabulary, deduplicated,
// order preserved. Unknown labels are dropped without failing the article.
func filterSectors(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if !models.KnownSector(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
