package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mindmirror/backend/internal/journal"
	"mindmirror/backend/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EntryStore is the sole writer of raw_entries. Rows are immutable once
// written: the only mutation is the soft delete, and reprocessing goes
// through Replace, which deletes and recreates the row wholesale.
type EntryStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewEntryStore creates a raw-entry store
func NewEntryStore(db *gorm.DB) *EntryStore {
	return &EntryStore{db: db, logger: logger.Get()}
}

// Insert persists a new raw entry
func (s *EntryStore) Insert(ctx context.Context, entry *journal.RawEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to insert raw entry: %w", err)
	}
	s.logger.Debug("Raw entry stored", zap.String("entry_id", entry.ID))
	return nil
}

// Replace removes any existing row with this id (hard delete, bypassing the
// tombstone) and inserts the entry fresh. Used only for explicit reprocessing.
func (s *EntryStore) Replace(ctx context.Context, entry *journal.RawEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("id = ?", entry.ID).Delete(&journal.RawEntry{}).Error; err != nil {
			return fmt.Errorf("failed to delete entry for replace: %w", err)
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now()
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to reinsert entry: %w", err)
		}
		return nil
	})
}

// FindDuplicate looks for a non-deleted entry with byte-identical text.
// Returns (nil, nil) when there is none.
func (s *EntryStore) FindDuplicate(ctx context.Context, rawText string) (*journal.RawEntry, error) {
	var entry journal.RawEntry
	err := s.db.WithContext(ctx).
		Where("raw_text = ?", rawText).
		Order("created_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate entry: %w", err)
	}
	return &entry, nil
}

// Get fetches one entry by id
func (s *EntryStore) Get(ctx context.Context, id string) (*journal.RawEntry, error) {
	var entry journal.RawEntry
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("entry not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return &entry, nil
}

// Recent returns the most recent non-deleted entries, newest first
func (s *EntryStore) Recent(ctx context.Context, limit int) ([]journal.RawEntry, error) {
	if limit < 1 {
		limit = 5
	}
	var entries []journal.RawEntry
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent entries: %w", err)
	}
	return entries, nil
}

// SoftDelete tombstones an entry without removing the row
func (s *EntryStore) SoftDelete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&journal.RawEntry{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("entry not found: %s", id)
	}
	return nil
}
