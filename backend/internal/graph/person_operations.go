package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// ============================================================================
// Person Operations
// ============================================================================

// UpsertMention records one mention of a person. The whole write is a single
// Cypher statement: MERGE on the lower-cased name key makes two concurrent
// first mentions converge on one node, and mention_count/sentiment_avg are
// recomputed from the full mention history inside the same transaction, so
// the average can never drift from the history it summarizes.
func (r *Repository) UpsertMention(ctx context.Context, m MentionInput) (*Person, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	key := strings.ToLower(strings.TrimSpace(m.Name))
	if key == "" {
		return nil, fmt.Errorf("empty person name")
	}

	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		MERGE (p:Person {key: $key})
		ON CREATE SET p.id = $personID,
		              p.name = $name,
		              p.relationship = $relationship,
		              p.first_mentioned = datetime($now)
		ON MATCH SET p.relationship = CASE
		              WHEN $relationship <> '' THEN $relationship
		              ELSE p.relationship END
		SET p.last_mentioned = datetime($now)
		CREATE (m:Mention {
			id: $mentionID,
			date: datetime($now),
			score: $score,
			label: $label,
			context: $context,
			entry_id: $entryID
		})
		CREATE (p)-[:MENTIONED_IN]->(m)
		WITH p
		MATCH (p)-[:MENTIONED_IN]->(all:Mention)
		WITH p, count(all) AS mentions, avg(all.score) AS avg_score
		SET p.mention_count = mentions,
		    p.sentiment_avg = avg_score
		RETURN p.id AS id, p.name AS name, p.relationship AS relationship,
		       p.mention_count AS mention_count, p.sentiment_avg AS sentiment_avg
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"key":          key,
		"personID":     uuid.New().String(),
		"name":         m.Name,
		"relationship": m.Relationship,
		"now":          now,
		"mentionID":    uuid.New().String(),
		"score":        m.Score,
		"label":        m.Label,
		"context":      m.Context,
		"entryID":      m.EntryID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert mention: %w", err)
	}

	record, err := result.Single(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read upsert result: %w", err)
	}

	person := &Person{
		ID:           getStringFromRecord(record, "id"),
		Name:         getStringFromRecord(record, "name"),
		Relationship: getStringFromRecord(record, "relationship"),
		MentionCount: getInt64FromRecord(record, "mention_count"),
		SentimentAvg: getFloat64FromRecord(record, "sentiment_avg"),
	}

	r.logger.Debug("Person mention recorded",
		zap.String("name", person.Name),
		zap.Int64("mention_count", person.MentionCount),
		zap.Float64("sentiment_avg", person.SentimentAvg),
	)

	return person, nil
}

// GetPerson fetches one person with their full sentiment history
func (r *Repository) GetPerson(ctx context.Context, name string) (*Person, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (p:Person {key: $key})
		OPTIONAL MATCH (p)-[:MENTIONED_IN]->(m:Mention)
		WITH p, m ORDER BY m.date
		RETURN p.id AS id, p.name AS name, p.relationship AS relationship,
		       p.first_mentioned AS first_mentioned, p.last_mentioned AS last_mentioned,
		       p.mention_count AS mention_count, p.sentiment_avg AS sentiment_avg,
		       collect({date: m.date, score: m.score, label: m.label,
		                context: m.context, entry_id: m.entry_id}) AS history
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"key": strings.ToLower(strings.TrimSpace(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to fetch record: %w", err)
		}
		return nil, ErrPersonNotFound{Name: name}
	}

	record := result.Record()
	person := &Person{
		ID:           getStringFromRecord(record, "id"),
		Name:         getStringFromRecord(record, "name"),
		Relationship: getStringFromRecord(record, "relationship"),
		MentionCount: getInt64FromRecord(record, "mention_count"),
		SentimentAvg: getFloat64FromRecord(record, "sentiment_avg"),
	}

	if first, ok := record.Get("first_mentioned"); ok {
		if t, ok := first.(time.Time); ok {
			person.FirstMentioned = t
		}
	}
	if last, ok := record.Get("last_mentioned"); ok {
		if t, ok := last.(time.Time); ok {
			person.LastMentioned = t
		}
	}

	if history, ok := record.Get("history"); ok {
		if entries, ok := history.([]interface{}); ok {
			for _, e := range entries {
				entryMap, ok := e.(map[string]interface{})
				if !ok {
					continue
				}
				entry := SentimentEntry{}
				if t, ok := entryMap["date"].(time.Time); ok {
					entry.Date = t
				} else {
					// The OPTIONAL MATCH yields one all-null row for a
					// person with no mentions
					continue
				}
				if score, ok := entryMap["score"].(int64); ok {
					entry.Score = int(score)
				}
				if label, ok := entryMap["label"].(string); ok {
					entry.Label = label
				}
				if c, ok := entryMap["context"].(string); ok {
					entry.Context = c
				}
				if id, ok := entryMap["entry_id"].(string); ok {
					entry.EntryID = id
				}
				person.History = append(person.History, entry)
			}
		}
	}

	return person, nil
}

// ListPeople returns all people ordered by most recently mentioned
func (r *Repository) ListPeople(ctx context.Context, limit int) ([]Person, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	if limit < 1 {
		limit = 50
	}

	query := `
		MATCH (p:Person)
		RETURN p.id AS id, p.name AS name, p.relationship AS relationship,
		       p.mention_count AS mention_count, p.sentiment_avg AS sentiment_avg,
		       p.last_mentioned AS last_mentioned
		ORDER BY p.last_mentioned DESC
		LIMIT $limit
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}

	var people []Person
	for result.Next(ctx) {
		record := result.Record()
		person := Person{
			ID:           getStringFromRecord(record, "id"),
			Name:         getStringFromRecord(record, "name"),
			Relationship: getStringFromRecord(record, "relationship"),
			MentionCount: getInt64FromRecord(record, "mention_count"),
			SentimentAvg: getFloat64FromRecord(record, "sentiment_avg"),
		}
		if last, ok := record.Get("last_mentioned"); ok {
			if t, ok := last.(time.Time); ok {
				person.LastMentioned = t
			}
		}
		people = append(people, person)
	}

	return people, nil
}

// Errors

type ErrPersonNotFound struct {
	Name string
}

func (e ErrPersonNotFound) Error() string {
	return fmt.Sprintf("person not found: %s", e.Name)
}
