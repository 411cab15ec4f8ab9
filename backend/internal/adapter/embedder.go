package adapter

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"mindmirror/backend/pkg/logger"
	"go.uber.org/zap"
)

// Embedder computes vector representations of entry summaries
type Embedder struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewEmbedder creates an embedding client against a LiteLLM-compatible endpoint
func NewEmbedder(baseURL, apiKey, modelID string) *Embedder {
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"

	return &Embedder{
		client: openai.NewClientWithConfig(config),
		model:  modelID,
		logger: logger.Get(),
	}
}

// Embed returns the vector for a single text. Dimensionality is fixed by the
// configured model; callers assume nothing else about the vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		e.logger.Error("Embedding request failed",
			zap.String("model", e.model),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return resp.Data[0].Embedding, nil
}
