package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"mindmirror/backend/internal/journal"
	"mindmirror/backend/internal/store"
	"mindmirror/backend/pkg/logger"
	"go.uber.org/zap"
)

const (
	personaCacheKey = "persona:last_selected"
	personaCacheTTL = 24 * time.Hour
	similarTopK     = 3
	contextSnippet  = 200
)

// ContextBuilder assembles the optional context block that accompanies an
// extraction request: recent entries, the cached persona, and similar past
// entries. Every source is best-effort; any failure just shrinks the block.
type ContextBuilder struct {
	entries     EntryReader
	embedder    Embedder
	vectors     VectorSearcher
	cache       *redis.Client
	recentCount int
	logger      *zap.Logger
}

// EntryReader is the read slice of the entry store the builder needs
type EntryReader interface {
	Recent(ctx context.Context, limit int) ([]journal.RawEntry, error)
}

// NewContextBuilder creates a context builder. cache may be nil when Redis is
// not configured.
func NewContextBuilder(entries EntryReader, embedder Embedder, vectors VectorSearcher, cache *redis.Client, recentCount int) *ContextBuilder {
	if recentCount < 1 {
		recentCount = 5
	}
	return &ContextBuilder{
		entries:     entries,
		embedder:    embedder,
		vectors:     vectors,
		cache:       cache,
		recentCount: recentCount,
		logger:      logger.Get(),
	}
}

// Build returns the context block for one entry, or "" when nothing useful is
// available. Never returns an error: extraction proceeds without context.
func (b *ContextBuilder) Build(ctx context.Context, text string) string {
	var sections []string

	if recent := b.recentSection(ctx); recent != "" {
		sections = append(sections, recent)
	}
	if persona := b.personaSection(ctx); persona != "" {
		sections = append(sections, persona)
	}
	if similar := b.similarSection(ctx, text); similar != "" {
		sections = append(sections, similar)
	}

	return strings.Join(sections, "\n\n")
}

// RememberPersona caches the persona chosen for the latest entry so the next
// extraction can keep the voice consistent. Best-effort.
func (b *ContextBuilder) RememberPersona(ctx context.Context, persona string) {
	if b.cache == nil || persona == "" {
		return
	}
	if err := b.cache.Set(ctx, personaCacheKey, persona, personaCacheTTL).Err(); err != nil {
		b.logger.Debug("Failed to cache persona", zap.Error(err))
	}
}

func (b *ContextBuilder) recentSection(ctx context.Context) string {
	entries, err := b.entries.Recent(ctx, b.recentCount)
	if err != nil {
		b.logger.Debug("Skipping recent-entry context", zap.Error(err))
		return ""
	}
	if len(entries) == 0 {
		return ""
	}

	lines := []string{"Recent entries (newest first):"}
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("- [%s] %s",
			e.CreatedAt.Format("2006-01-02"),
			snippet(e.RawText),
		))
	}
	return strings.Join(lines, "\n")
}

func (b *ContextBuilder) personaSection(ctx context.Context) string {
	if b.cache == nil {
		return ""
	}
	persona, err := b.cache.Get(ctx, personaCacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			b.logger.Debug("Skipping persona context", zap.Error(err))
		}
		return ""
	}
	if persona == "" {
		return ""
	}
	return "Persona used for the previous entry: " + persona
}

func (b *ContextBuilder) similarSection(ctx context.Context, text string) string {
	if b.embedder == nil || b.vectors == nil {
		return ""
	}

	vector, err := b.embedder.Embed(ctx, text)
	if err != nil {
		b.logger.Debug("Skipping similarity context", zap.Error(err))
		return ""
	}

	hits, err := b.vectors.SearchSimilar(ctx, vector, similarTopK)
	if err != nil {
		b.logger.Debug("Skipping similarity context", zap.Error(err))
		return ""
	}
	if len(hits) == 0 {
		return ""
	}

	lines := []string{"Similar past entries:"}
	for _, hit := range hits {
		lines = append(lines, fmt.Sprintf("- [%s, mood %d] %s", hit.Date, hit.MoodScore, snippet(hit.Text)))
	}
	return strings.Join(lines, "\n")
}

// VectorSearcher is the read slice of the embedding store the builder needs
type VectorSearcher interface {
	SearchSimilar(ctx context.Context, vector []float32, topK int) ([]store.SimilarEntry, error)
}

func snippet(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if len(s) > contextSnippet {
		return s[:contextSnippet] + "…"
	}
	return s
}
