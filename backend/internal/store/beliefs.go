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

// BeliefStore is the sole writer of belief_system. Beliefs are never
// duplicated: a recurrence of the same statement reinforces the existing row.
type BeliefStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewBeliefStore creates a belief store
func NewBeliefStore(db *gorm.DB) *BeliefStore {
	return &BeliefStore{db: db, logger: logger.Get()}
}

// Reinforce records one occurrence of a belief statement. A new statement
// creates a row with reinforcement_count 1; a repeat bumps the count,
// refreshes last_reinforced and flips the status back to active. An insert
// that loses the race to a concurrent writer falls through to the reinforce
// path instead of failing.
func (s *BeliefStore) Reinforce(ctx context.Context, belief *journal.Belief) (*journal.Belief, error) {
	now := time.Now()

	existing, err := s.findByKey(ctx, belief.TextKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.reinforceExisting(ctx, existing, now)
	}

	fresh := &journal.Belief{
		ID:                 uuid.New().String(),
		Text:               belief.Text,
		TextKey:            belief.TextKey,
		Domain:             belief.Domain,
		FirstSurfaced:      now,
		LastReinforced:     now,
		ReinforcementCount: 1,
		Status:             journal.BeliefStatusActive,
		SourceEntryID:      belief.SourceEntryID,
	}
	err = s.db.WithContext(ctx).Create(fresh).Error
	if isDuplicateKey(err) {
		existing, err = s.findByKey(ctx, belief.TextKey)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("belief vanished after duplicate key on %q", belief.TextKey)
		}
		return s.reinforceExisting(ctx, existing, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store belief: %w", err)
	}

	s.logger.Info("New belief surfaced",
		zap.String("text", fresh.Text),
		zap.String("domain", fresh.Domain),
	)
	return fresh, nil
}

func (s *BeliefStore) reinforceExisting(ctx context.Context, belief *journal.Belief, now time.Time) (*journal.Belief, error) {
	belief.ReinforcementCount++
	belief.LastReinforced = now
	belief.Status = journal.BeliefStatusActive

	err := s.db.WithContext(ctx).Model(&journal.Belief{}).
		Where("id = ?", belief.ID).
		Updates(map[string]any{
			"reinforcement_count": belief.ReinforcementCount,
			"last_reinforced":     belief.LastReinforced,
			"status":              belief.Status,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to reinforce belief: %w", err)
	}

	s.logger.Debug("Belief reinforced",
		zap.String("text", belief.Text),
		zap.Int("count", belief.ReinforcementCount),
	)
	return belief, nil
}

// UpdateStatus moves a belief between active/questioned/evolved
func (s *BeliefStore) UpdateStatus(ctx context.Context, id, status string) error {
	result := s.db.WithContext(ctx).Model(&journal.Belief{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update belief status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("belief not found: %s", id)
	}
	return nil
}

// List returns beliefs ordered by reinforcement strength
func (s *BeliefStore) List(ctx context.Context, limit int) ([]journal.Belief, error) {
	if limit < 1 {
		limit = 100
	}
	var beliefs []journal.Belief
	err := s.db.WithContext(ctx).
		Order("reinforcement_count DESC, last_reinforced DESC").
		Limit(limit).
		Find(&beliefs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list beliefs: %w", err)
	}
	return beliefs, nil
}

func (s *BeliefStore) findByKey(ctx context.Context, textKey string) (*journal.Belief, error) {
	var belief journal.Belief
	err := s.db.WithContext(ctx).Where("text_key = ?", textKey).First(&belief).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up belief: %w", err)
	}
	return &belief, nil
}
