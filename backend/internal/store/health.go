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

// HealthMetricStore is the sole writer of health_metrics. One row per
// (name, date); a second measurement of the same metric on the same day is
// dropped, not averaged.
type HealthMetricStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewHealthMetricStore creates a health-metric store
func NewHealthMetricStore(db *gorm.DB) *HealthMetricStore {
	return &HealthMetricStore{db: db, logger: logger.Get()}
}

// Add inserts a measurement unless one already exists for the same metric and
// day. Returns whether a new row was written.
func (s *HealthMetricStore) Add(ctx context.Context, metric *journal.HealthMetric) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&journal.HealthMetric{}).
		Where("name = ? AND date = ?", metric.Name, metric.Date).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check for existing metric: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if metric.ID == "" {
		metric.ID = uuid.New().String()
	}
	if metric.CreatedAt.IsZero() {
		metric.CreatedAt = time.Now()
	}
	err = s.db.WithContext(ctx).Create(metric).Error
	if isDuplicateKey(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to store health metric: %w", err)
	}

	s.logger.Debug("Health metric stored",
		zap.String("name", metric.Name),
		zap.Float64("value", metric.Value),
		zap.String("date", metric.Date),
	)
	return true, nil
}

// History returns a metric's measurements over time, oldest first
func (s *HealthMetricStore) History(ctx context.Context, name string, limit int) ([]journal.HealthMetric, error) {
	if limit < 1 {
		limit = 90
	}
	var metrics []journal.HealthMetric
	err := s.db.WithContext(ctx).
		Where("name = ?", name).
		Order("date ASC").
		Limit(limit).
		Find(&metrics).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list health metrics: %w", err)
	}
	return metrics, nil
}
