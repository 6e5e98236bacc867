package research

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sasidharan-s/marketmind/pkg/models"
)

// ErrMalformedResponse means the provider output could not be parsed as the
// expected JSON shape even after fence stripping.
var ErrMalformedResponse = errors.New("research: malformed provider response")

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// StripFence removes a surrounding markdown code fence from s if present.
// Grounded calls cannot use a JSON response MIME type, so the model sometimes
// wraps its output in a fence despite instructions.
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	if m := jsonFenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

type articleList struct {
	Articles []models.RawArticle `json:"articles"`
}

// ParseArticles decodes a provider response into raw candidate articles.
// Both the documented object shape {"articles": [...]} and a bare top-level
// array are accepted. The result is capped at models.MaxArticles.
func ParseArticles(content string) ([]models.RawArticle, error) {
	content = StripFence(content)

	var wrapped articleList
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil && wrapped.Articles != nil {
		return capArticles(wrapped.Articles), nil
	}

	var bare []models.RawArticle
	if err := json.Unmarshal([]byte(content), &bare); err == nil {
		return capArticles(bare), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, truncate(content, 200))
}

func capArticles(articles []models.RawArticle) []models.RawArticle {
	if len(articles) > models.MaxArticles {
		return articles[:models.MaxArticles]
	}
	return articles
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// KeyFinding is one item of a research brief.
type KeyFinding struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Impact string `json:"impact"`
}

// Source is a citation attached to a research brief.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Brief is the structured result of an on-demand research query.
type Brief struct {
	ExecutiveSummary string       `json:"executiveSummary"`
	KeyFindings      []KeyFinding `json:"keyFindings"`
	RelatedTickers   []string     `json:"relatedTickers"`
	Sectors          []string     `json:"sectors"`
	RiskFactors      []string     `json:"riskFactors"`
	Sources          []Source     `json:"sources"`
	Timestamp        string       `json:"timestamp"`
}

// ParseBrief decodes a provider response into a Brief. Optional list fields
// are normalized to empty slices so the JSON rendering never emits null.
func ParseBrief(content string) (*Brief, error) {
	content = StripFence(content)

	var b Brief
	if err := json.Unmarshal([]byte(content), &b); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, truncate(content, 200))
	}
	if b.ExecutiveSummary == "" {
		return nil, fmt.Errorf("%w: missing executiveSummary", ErrMalformedResponse)
	}

	if b.KeyFindings == nil {
		b.KeyFindings = []KeyFinding{}
	}
	if b.RelatedTickers == nil {
		b.RelatedTickers = []string{}
	}
	if b.Sectors == nil {
		b.Sectors = []string{}
	}
	if b.RiskFactors == nil {
		b.RiskFactors = []string{}
	}
	if b.Sources == nil {
		b.Sources = []Source{}
	}
	return &b, nil
}
