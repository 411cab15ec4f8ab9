package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"mindmirror/backend/internal/journal"
	"mindmirror/backend/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// searchWindow caps how many recent vectors a similarity search scans. The
// scan is in-process, so the window keeps latency flat as the table grows.
const searchWindow = 200

// EmbeddingStore is the sole writer of the embeddings table and serves
// similarity search over it
type EmbeddingStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewEmbeddingStore creates an embedding store
func NewEmbeddingStore(db *gorm.DB) *EmbeddingStore {
	return &EmbeddingStore{db: db, logger: logger.Get()}
}

// Store persists one entry's vector with its retrieval metadata
func (s *EmbeddingStore) Store(ctx context.Context, emb *journal.Embedding) error {
	if emb.ID == "" {
		emb.ID = uuid.New().String()
	}
	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(emb).Error; err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	s.logger.Debug("Embedding stored",
		zap.String("entry_id", emb.EntryID),
		zap.Int("dimensions", len(emb.Vector)),
	)
	return nil
}

// DeleteByEntry removes an entry's vectors before reprocessing
func (s *EmbeddingStore) DeleteByEntry(ctx context.Context, entryID string) error {
	if err := s.db.WithContext(ctx).Where("entry_id = ?", entryID).Delete(&journal.Embedding{}).Error; err != nil {
		return fmt.Errorf("failed to delete embeddings for entry %s: %w", entryID, err)
	}
	return nil
}

// SimilarEntry is one similarity-search hit
type SimilarEntry struct {
	EntryID   string
	Text      string
	Category  string
	MoodScore int
	Date      string
	Score     float64
}

// SearchSimilar returns the topK most similar stored entries to the query
// vector, scanning the most recent searchWindow rows. Entries with a vector
// of mismatched dimension are skipped.
func (s *EmbeddingStore) SearchSimilar(ctx context.Context, vector []float32, topK int) ([]SimilarEntry, error) {
	if topK < 1 {
		topK = 3
	}

	var rows []journal.Embedding
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(searchWindow).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	results := make([]SimilarEntry, 0, len(rows))
	for _, row := range rows {
		score, ok := cosineSimilarity(vector, row.Vector)
		if !ok {
			continue
		}
		results = append(results, SimilarEntry{
			EntryID:   row.EntryID,
			Text:      row.Text,
			Category:  row.Category,
			MoodScore: row.MoodScore,
			Date:      row.Date,
			Score:     score,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// cosineSimilarity returns the similarity of two vectors, or ok=false when
// dimensions differ or either vector is zero
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
