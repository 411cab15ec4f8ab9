package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"mindmirror/backend/internal/journal"
	apperrors "mindmirror/backend/pkg/errors"
	"mindmirror/backend/pkg/logger"
	"go.uber.org/zap"
)

// extractionSchema is the fixed contract sent with every extraction request.
// Every field must be present in the response; optional fields carry an
// explicit null. The downstream validators decide what survives, so the
// client does not police enum values here.
const extractionSchema = `You are the analysis engine of a personal journal. Analyze the entry and respond with a single JSON object with EXACTLY these fields (every field present, null for unknown optional values):

{
  "category": "reflection|vent|emotion|gratitude|planning|memory|dream|idea|task|question",
  "title": "short descriptive title for this entry",
  "content": "one-paragraph cleaned-up summary of what the person expressed",
  "mood_score": 1-10,
  "energy_level": 1-10,
  "self_talk_tone": "compassionate|neutral|critical|anxious" or null,
  "defense_mechanism": "denial|projection|rationalization|avoidance|humor" or null,
  "cognitive_pattern": "catastrophizing|black_and_white|overgeneralization|mind_reading|rumination|balanced" or null,
  "identity_persona": "the self-image the writer is speaking from" or null,
  "triggers": ["things that set off the emotional state"],
  "beliefs_revealed": ["self-belief statements surfaced by this entry"],
  "body_signals": ["physical sensations mentioned"],
  "is_task": true or false,
  "task_status": "pending|in_progress|done" or null,
  "due_date": "YYYY-MM-DD" or null,
  "people": [{"name": "...", "relationship": "...", "sentiment": "positive|negative|neutral|mixed or an emotion word", "context": "what was said about them"}],
  "ai_persona_selected": "companion|coach|listener|challenger",
  "ai_response": "a short empathetic response in the selected persona's voice",
  "followup_question": "one gentle question to go deeper" or null
}

Base everything strictly on the entry text. Do not invent people, events or dates that are not in the text.`

// featureSchema drives the slower background pass over the same entry
const featureSchema = `You are the analysis engine of a personal journal. Scan the entry for durable life data and respond with a single JSON object with EXACTLY these fields:

{
  "life_events": [{"title": "...", "description": "...", "significance": 1-10, "category": "...", "emotions": ["..."], "people_involved": ["..."], "event_date": "YYYY-MM-DD or a bare year, or null if the text gives no date"}],
  "health_metrics": [{"name": "e.g. weight, sleep_hours, blood_pressure_systolic", "value": number, "unit": "...", "date": "YYYY-MM-DD or null"}],
  "insights": [{"text": "a recurring pattern, dream or realization worth keeping", "category": "pattern|dream|realization"}]
}

Only include items the text actually supports; empty arrays are correct for an uneventful entry. Never default a missing event date to today.`

const strictJSONInstruction = "Respond with ONLY the raw JSON object. No markdown, no code fences, no explanation, no text before or after the JSON."

// Extractor turns raw entry text into structured candidates via the LLM
type Extractor struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewExtractor creates an extraction client against a LiteLLM-compatible endpoint
func NewExtractor(baseURL, apiKey, modelID string) *Extractor {
	// LiteLLM accepts a dummy key when none is configured
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"

	return &Extractor{
		client: openai.NewClientWithConfig(config),
		model:  modelID,
		logger: logger.Get(),
	}
}

// Extract analyzes one entry. contextBlock carries recent entries, the
// persona summary and similar past entries; it may be empty. Transport errors
// and post-retry parse failures both surface as typed extraction errors — the
// caller treats either as fatal for the run.
func (e *Extractor) Extract(ctx context.Context, text, contextBlock string) (*journal.ExtractionCandidate, error) {
	system := extractionSchema
	if contextBlock != "" {
		system = system + "\n\nContext from previous entries:\n" + contextBlock
	}

	candidate := &journal.ExtractionCandidate{}
	if err := e.generateStructured(ctx, system, text, candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}

// ExtractFeatures runs the background feature pass over the same raw text
func (e *Extractor) ExtractFeatures(ctx context.Context, text string) (*journal.FeatureSet, error) {
	features := &journal.FeatureSet{}
	if err := e.generateStructured(ctx, featureSchema, text, features); err != nil {
		return nil, err
	}
	return features, nil
}

// generateStructured performs the request plus the single structural retry.
// The retry only fires on malformed JSON; transport failures propagate
// immediately so the orchestrator can fail the run.
func (e *Extractor) generateStructured(ctx context.Context, system, user string, out any) error {
	raw, err := e.complete(ctx, system, user)
	if err != nil {
		return err
	}

	parseErr := parseStructuredResponse(raw, out)
	if parseErr == nil {
		return nil
	}

	e.logger.Warn("Extraction response was not parseable JSON, retrying once with strict instruction",
		zap.String("model", e.model),
		zap.Error(parseErr),
	)

	raw2, err := e.complete(ctx, system+"\n\n"+strictJSONInstruction, user)
	if err != nil {
		return err
	}
	if parseErr = parseStructuredResponse(raw2, out); parseErr != nil {
		return apperrors.NewExtractionParseFailed(2, truncateForLog(raw2), parseErr)
	}
	return nil
}

func (e *Extractor) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.3,
	})
	if err != nil {
		e.logger.Error("Extraction request failed",
			zap.String("model", e.model),
			zap.Error(err),
		)
		return "", apperrors.NewExtractionTransport(e.model, err)
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.ErrExtractionEmpty
	}
	return resp.Choices[0].Message.Content, nil
}

// parseStructuredResponse recovers a JSON object from a model response that
// may be wrapped in code fences or surrounded by prose: strip fences, then
// slice from the first '{' to the last '}' and parse that substring.
func parseStructuredResponse(raw string, out any) error {
	jsonStr := strings.TrimSpace(raw)

	// Remove markdown code blocks if present
	if strings.HasPrefix(jsonStr, "```") {
		lines := strings.Split(jsonStr, "\n")
		var jsonLines []string
		inCodeBlock := false
		for _, line := range lines {
			if strings.HasPrefix(line, "```") {
				inCodeBlock = !inCodeBlock
				continue
			}
			if inCodeBlock {
				jsonLines = append(jsonLines, line)
			}
		}
		jsonStr = strings.Join(jsonLines, "\n")
	}

	// Find JSON object boundaries
	start := strings.Index(jsonStr, "{")
	end := strings.LastIndex(jsonStr, "}")
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON object found in response")
	}
	jsonStr = jsonStr[start : end+1]

	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("failed to parse extraction JSON: %w", err)
	}
	return nil
}

func truncateForLog(s string) string {
	if len(s) > 500 {
		return s[:500]
	}
	return s
}
