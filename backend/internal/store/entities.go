package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"mindmirror/backend/internal/journal"
	"mindmirror/backend/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EntityStore is the sole writer of extracted_entities (1:1 with raw entries)
type EntityStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewEntityStore creates an extracted-entity store
func NewEntityStore(db *gorm.DB) *EntityStore {
	return &EntityStore{db: db, logger: logger.Get()}
}

// Insert persists the structured analysis for an entry
func (s *EntityStore) Insert(ctx context.Context, entity *journal.ExtractedEntity) error {
	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("failed to insert extracted entity: %w", err)
	}
	s.logger.Debug("Extracted entity stored",
		zap.String("entry_id", entity.EntryID),
		zap.String("category", entity.Category),
	)
	return nil
}

// DeleteByEntry removes the entity tied to an entry. Used before reprocessing
// so the replacement analysis starts clean.
func (s *EntityStore) DeleteByEntry(ctx context.Context, entryID string) error {
	if err := s.db.WithContext(ctx).Where("entry_id = ?", entryID).Delete(&journal.ExtractedEntity{}).Error; err != nil {
		return fmt.Errorf("failed to delete entity for entry %s: %w", entryID, err)
	}
	return nil
}

// GetByEntry fetches the entity for one entry, (nil, nil) if none exists yet
func (s *EntityStore) GetByEntry(ctx context.Context, entryID string) (*journal.ExtractedEntity, error) {
	var entity journal.ExtractedEntity
	err := s.db.WithContext(ctx).Where("entry_id = ?", entryID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return &entity, nil
}
