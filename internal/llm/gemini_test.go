package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func geminiTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Gemini) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := NewGemini("test-key", WithGeminiBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	return srv, p
}

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestGeminiGenerate(t *testing.T) {
	var captured geminiRequest
	_, p := geminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{
				Content:      geminiContent{Parts: []geminiPart{{Text: `{"articles":[]}`}}},
				FinishReason: "STOP",
			}},
			UsageMetadata: geminiUsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15},
		})
	})

	resp, err := p.Generate(context.Background(), Request{
		Prompt:      "analyze the market",
		Temperature: 0.2,
		WebSearch:   true,
		JSONOutput:  true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != `{"articles":[]}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total tokens = %d, want 15", resp.Usage.TotalTokens)
	}

	if len(captured.Tools) != 1 || captured.Tools[0].GoogleSearch == nil {
		t.Errorf("google_search tool not requested: %+v", captured.Tools)
	}
	if captured.GenerationConfig == nil || captured.GenerationConfig.Temperature != 0.2 {
		t.Errorf("temperature not forwarded: %+v", captured.GenerationConfig)
	}
	// Grounded calls must not carry a response MIME type.
	if captured.GenerationConfig.ResponseMimeType != "" {
		t.Errorf("responseMimeType set on grounded call")
	}
}

func TestGeminiGenerateJSONMimeType(t *testing.T) {
	var captured geminiRequest
	_, p := geminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Parts: []geminiPart{{Text: `{}`}}},
			}},
		})
	})

	if _, err := p.Generate(context.Background(), Request{Prompt: "x", JSONOutput: true}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if captured.GenerationConfig == nil || captured.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("responseMimeType not set: %+v", captured.GenerationConfig)
	}
}

func TestGeminiGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, "quota exceeded", ErrRateLimit},
		{"bad key", http.StatusForbidden, "API key invalid", ErrNoAPIKey},
		{"bad model", http.StatusBadRequest, "model not found", ErrInvalidModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p := geminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				var body geminiErrorResponse
				body.Error.Code = tt.status
				body.Error.Message = tt.message
				json.NewEncoder(w).Encode(body)
			})

			_, err := p.Generate(context.Background(), Request{Prompt: "x"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGeminiGenerateEmptyResponse(t *testing.T) {
	_, p := geminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{})
	})

	_, err := p.Generate(context.Background(), Request{Prompt: "x"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}
