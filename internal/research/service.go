package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sasidharan-s/marketmind/internal/llm"
	"github.com/sasidharan-s/marketmind/pkg/models"
)

// ErrEmptyQuestion is returned for a blank research query.
var ErrEmptyQuestion = errors.New("research: empty question")

const (
	newsTemperature = 0.2
	newsMaxTokens   = 8192
	briefMaxTokens  = 4096
)

// Service runs grounded generation calls against an llm.Provider.
type Service struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
	log         *slog.Logger
}

// Option configures the research service.
type Option func(*Service)

// WithTemperature overrides the generation temperature. Ignored when <= 0.
func WithTemperature(t float64) Option {
	return func(s *Service) {
		if t > 0 {
			s.temperature = t
		}
	}
}

// WithMaxTokens overrides the news-call output budget. Ignored when <= 0.
func WithMaxTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// NewService creates a research service.
func NewService(provider llm.Provider, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		provider:    provider,
		temperature: newsTemperature,
		maxTokens:   newsMaxTokens,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchArticles runs the combined search-and-analyze call and returns raw
// candidate articles. windowMinutes scopes the search recency.
func (s *Service) FetchArticles(ctx context.Context, windowMinutes int) ([]models.RawArticle, error) {
	resp, err := s.provider.Generate(ctx, llm.Request{
		Prompt:      NewsPrompt(windowMinutes),
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		JSONOutput:  true,
		WebSearch:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("research: fetch articles: %w", err)
	}

	articles, err := ParseArticles(resp.Content)
	if err != nil {
		return nil, err
	}

	s.log.Info("articles fetched",
		"count", len(articles),
		"tokens", resp.Usage.TotalTokens,
		"latency", resp.Latency.Round(time.Millisecond))
	return articles, nil
}

// ResearchBrief answers a free-form market research question with a
// structured, cited brief.
func (s *Service) ResearchBrief(ctx context.Context, question string) (*Brief, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	resp, err := s.provider.Generate(ctx, llm.Request{
		Prompt:      BriefPrompt(question),
		Temperature: s.temperature,
		MaxTokens:   briefMaxTokens,
		JSONOutput:  true,
		WebSearch:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("research: brief: %w", err)
	}

	brief, err := ParseBrief(resp.Content)
	if err != nil {
		return nil, err
	}
	if brief.Timestamp == "" {
		brief.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	s.log.Info("research brief generated",
		"findings", len(brief.KeyFindings),
		"sources", len(brief.Sources),
		"tokens", resp.Usage.TotalTokens)
	return brief, nil
}
