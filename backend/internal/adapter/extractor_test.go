package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"mindmirror/backend/internal/journal"
	apperrors "mindmirror/backend/pkg/errors"
)

// chatCompletionServer fakes the LiteLLM chat endpoint, answering each request
// with the next content in sequence (the last repeats).
func chatCompletionServer(t *testing.T, calls *int32, lastBody *string, contents ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		body, _ := io.ReadAll(r.Body)
		if lastBody != nil {
			*lastBody = string(body)
		}

		idx := int(n) - 1
		if idx >= len(contents) {
			idx = len(contents) - 1
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": contents[idx]},
			}},
		})
	}))
}

func TestParseStructuredResponse_PlainJSON(t *testing.T) {
	raw := `{"category": "reflection", "mood_score": 7}`

	var out journal.ExtractionCandidate
	if err := parseStructuredResponse(raw, &out); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out.Category != "reflection" {
		t.Errorf("expected reflection, got %q", out.Category)
	}
	if out.MoodScore != 7 {
		t.Errorf("expected mood 7, got %v", out.MoodScore)
	}
}

func TestParseStructuredResponse_CodeFences(t *testing.T) {
	raw := "```json\n{\"category\": \"vent\"}\n```"

	var out journal.ExtractionCandidate
	if err := parseStructuredResponse(raw, &out); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out.Category != "vent" {
		t.Errorf("expected vent, got %q", out.Category)
	}
}

func TestParseStructuredResponse_SurroundingProse(t *testing.T) {
	raw := `Here is the analysis you asked for:

{"category": "gratitude", "title": "Thankful"}

Let me know if you need anything else!`

	var out journal.ExtractionCandidate
	if err := parseStructuredResponse(raw, &out); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out.Title != "Thankful" {
		t.Errorf("expected Thankful, got %q", out.Title)
	}
}

func TestParseStructuredResponse_NoObject(t *testing.T) {
	var out journal.ExtractionCandidate
	if err := parseStructuredResponse("I could not analyze this entry.", &out); err == nil {
		t.Fatal("expected an error for a response with no JSON object")
	}
}

func TestParseStructuredResponse_MalformedJSON(t *testing.T) {
	var out journal.ExtractionCandidate
	if err := parseStructuredResponse(`{"category": "reflection",}`, &out); err == nil {
		t.Fatal("expected an error for trailing-comma JSON")
	}
}

func TestParseStructuredResponse_FeatureSet(t *testing.T) {
	raw := `{"life_events": [{"title": "Got promoted", "significance": 8, "event_date": "2024"}], "health_metrics": [], "insights": []}`

	var out journal.FeatureSet
	if err := parseStructuredResponse(raw, &out); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(out.LifeEvents) != 1 || out.LifeEvents[0].Title != "Got promoted" {
		t.Errorf("unexpected feature set: %+v", out)
	}
	if out.LifeEvents[0].EventDate != "2024" {
		t.Errorf("bare year should pass through untouched, got %q", out.LifeEvents[0].EventDate)
	}
}

func TestExtractor_RetriesOnceOnMalformedJSON(t *testing.T) {
	var calls int32
	var lastBody string
	server := chatCompletionServer(t, &calls, &lastBody,
		"I could not produce structured output for that entry.",
		`{"category": "vent", "title": "Retry worked"}`,
	)
	defer server.Close()

	extractor := NewExtractor(server.URL, "", "test-model")
	candidate, err := extractor.Extract(context.Background(), "some entry text", "")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if candidate.Category != "vent" || candidate.Title != "Retry worked" {
		t.Errorf("unexpected candidate: %+v", candidate)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 requests, got %d", calls)
	}
	if !strings.Contains(lastBody, "ONLY the raw JSON object") {
		t.Error("retry request should carry the strict JSON instruction")
	}
}

func TestExtractor_FailsAfterSecondMalformedResponse(t *testing.T) {
	var calls int32
	server := chatCompletionServer(t, &calls, nil,
		"still not json",
	)
	defer server.Close()

	extractor := NewExtractor(server.URL, "", "test-model")
	_, err := extractor.Extract(context.Background(), "some entry text", "")
	if err == nil {
		t.Fatal("expected a parse error after the retry")
	}

	parseErr, ok := err.(*apperrors.ErrExtractionParseFailed)
	if !ok {
		t.Fatalf("expected ErrExtractionParseFailed, got %T", err)
	}
	if parseErr.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", parseErr.Attempts)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 requests, got %d", calls)
	}
}

// TestExtractor_Extract requires a running LiteLLM instance.
// Set LITELLM_URL and MODEL_ID environment variables.
func TestExtractor_Extract(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	extractor := NewExtractor("http://localhost:4000", "", "openrouter/anthropic/claude-3.5-sonnet")
	candidate, err := extractor.Extract(context.Background(), "Had coffee with Sarah today, she always cheers me up.", "")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if candidate.Category == "" {
		t.Error("expected a category in the extraction")
	}
}
