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

// LifeEventStore is the sole writer of life_events_timeline. Dedup is
// intentionally coarse: one event per case-insensitive title, ever.
type LifeEventStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewLifeEventStore creates a life-event store
func NewLifeEventStore(db *gorm.DB) *LifeEventStore {
	return &LifeEventStore{db: db, logger: logger.Get()}
}

// Create inserts an already-validated event unless its title is taken.
// The existence check and insert run in one transaction, and a unique-index
// violation from a concurrent writer is absorbed as "already exists" — the
// second writer skips, it does not fail.
func (s *LifeEventStore) Create(ctx context.Context, event *journal.LifeEvent) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&journal.LifeEvent{}).Where("title_key = ?", event.TitleKey).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check for existing event: %w", err)
		}
		if count > 0 {
			s.logger.Debug("Skipping duplicate life event",
				zap.String("title", event.Title),
			)
			return nil
		}

		if event.ID == "" {
			event.ID = uuid.New().String()
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = time.Now()
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		created = true
		return nil
	})

	if isDuplicateKey(err) {
		s.logger.Debug("Life event lost insert race, already exists",
			zap.String("title", event.Title),
		)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to store life event: %w", err)
	}

	if created {
		s.logger.Info("Life event stored",
			zap.String("title", event.Title),
			zap.String("category", event.Category),
			zap.Int("significance", event.Significance),
		)
	}
	return created, nil
}

// ExistsByTitle reports whether an event with this title already exists
func (s *LifeEventStore) ExistsByTitle(ctx context.Context, titleKey string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&journal.LifeEvent{}).Where("title_key = ?", titleKey).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check event title: %w", err)
	}
	return count > 0, nil
}

// Timeline returns events ordered by event date (undated events last, by
// insertion time)
func (s *LifeEventStore) Timeline(ctx context.Context, limit int) ([]journal.LifeEvent, error) {
	if limit < 1 {
		limit = 100
	}
	var events []journal.LifeEvent
	err := s.db.WithContext(ctx).
		Order("event_date DESC NULLS LAST, created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list life events: %w", err)
	}
	return events, nil
}
