package store

import (
	"errors"
	"strings"

	"mindmirror/backend/internal/journal"
	"gorm.io/gorm"
)

// Stores bundles every relational store. Each table has exactly one writer
// type; nothing else in the codebase issues writes against these tables.
type Stores struct {
	Entries    *EntryStore
	Entities   *EntityStore
	Events     *LifeEventStore
	Beliefs    *BeliefStore
	Insights   *InsightStore
	Health     *HealthMetricStore
	Embeddings *EmbeddingStore
}

// New creates the store bundle over one gorm connection
func New(db *gorm.DB) *Stores {
	return &Stores{
		Entries:    NewEntryStore(db),
		Entities:   NewEntityStore(db),
		Events:     NewLifeEventStore(db),
		Beliefs:    NewBeliefStore(db),
		Insights:   NewInsightStore(db),
		Health:     NewHealthMetricStore(db),
		Embeddings: NewEmbeddingStore(db),
	}
}

// AutoMigrate creates/updates all journal tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&journal.RawEntry{},
		&journal.ExtractedEntity{},
		&journal.LifeEvent{},
		&journal.Belief{},
		&journal.Insight{},
		&journal.HealthMetric{},
		&journal.Embedding{},
	)
}

// isDuplicateKey reports whether an insert lost the narrow race against a
// concurrent writer and hit the unique index. Treated as "already exists".
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
