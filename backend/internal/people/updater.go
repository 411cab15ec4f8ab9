package people

import (
	"context"
	"fmt"

	"mindmirror/backend/internal/graph"
	"mindmirror/backend/internal/journal"
	"mindmirror/backend/internal/validate"
	"mindmirror/backend/pkg/logger"
	"go.uber.org/zap"
)

// PersonGraph is the slice of the graph repository the updater needs
type PersonGraph interface {
	UpsertMention(ctx context.Context, m graph.MentionInput) (*graph.Person, error)
}

// Updater propagates extracted person mentions into the people graph. It is
// the sole writer of the graph; the orchestrator never calls it directly.
type Updater struct {
	graph  PersonGraph
	logger *zap.Logger
}

// NewUpdater creates a people-graph updater
func NewUpdater(g PersonGraph) *Updater {
	return &Updater{
		graph:  g,
		logger: logger.Get(),
	}
}

// UpdatePeopleMap records every mention in a batch. Each mention is validated
// and written independently: a placeholder name is skipped, a failed write is
// logged, and neither stops the rest of the batch. The returned error only
// summarizes write failures so the caller can record them.
func (u *Updater) UpdatePeopleMap(ctx context.Context, mentions []journal.MentionCandidate, entryID string) error {
	attempted := 0
	failed := 0

	for _, candidate := range mentions {
		cleaned := validate.ValidatePerson(candidate)
		if cleaned == nil {
			continue
		}

		attempted++
		person, err := u.graph.UpsertMention(ctx, graph.MentionInput{
			Name:         cleaned.Name,
			Relationship: cleaned.Relationship,
			Score:        ScoreSentiment(cleaned.Sentiment),
			Label:        cleaned.Sentiment,
			Context:      cleaned.Context,
			EntryID:      entryID,
		})
		if err != nil {
			failed++
			u.logger.Warn("Failed to record person mention",
				zap.String("name", cleaned.Name),
				zap.String("entry_id", entryID),
				zap.Error(err),
			)
			continue
		}

		u.logger.Debug("Person mention stored",
			zap.String("name", person.Name),
			zap.Int64("mention_count", person.MentionCount),
		)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d person mentions failed", failed, attempted)
	}
	return nil
}
