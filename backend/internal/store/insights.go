package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"mindmirror/backend/internal/journal"
	"mindmirror/backend/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InsightStore is the sole writer of the append-only insights table
type InsightStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewInsightStore creates an insight store
func NewInsightStore(db *gorm.DB) *InsightStore {
	return &InsightStore{db: db, logger: logger.Get()}
}

// Add inserts an insight unless the same text (case-insensitive) was already
// recorded. Returns whether a new row was written.
func (s *InsightStore) Add(ctx context.Context, insight *journal.Insight) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&journal.Insight{}).Where("text_key = ?", insight.TextKey).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check for existing insight: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if insight.ID == "" {
		insight.ID = uuid.New().String()
	}
	if insight.CreatedAt.IsZero() {
		insight.CreatedAt = time.Now()
	}
	err := s.db.WithContext(ctx).Create(insight).Error
	if isDuplicateKey(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to store insight: %w", err)
	}

	s.logger.Debug("Insight stored",
		zap.String("category", insight.Category),
		zap.String("entry_id", insight.SourceEntryID),
	)
	return true, nil
}

// Recent returns the newest insights, optionally filtered by category
func (s *InsightStore) Recent(ctx context.Context, category string, limit int) ([]journal.Insight, error) {
	if limit < 1 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var insights []journal.Insight
	if err := query.Find(&insights).Error; err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	return insights, nil
}
