package people

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mindmirror/backend/internal/graph"
	"mindmirror/backend/internal/journal"
)

// Mock implementations for testing

type mockPersonGraph struct {
	mentions []graph.MentionInput
	failFor  string
}

func (m *mockPersonGraph) UpsertMention(ctx context.Context, in graph.MentionInput) (*graph.Person, error) {
	if m.failFor != "" && strings.EqualFold(in.Name, m.failFor) {
		return nil, errors.New("graph unavailable")
	}
	m.mentions = append(m.mentions, in)

	count := int64(0)
	var sum float64
	for _, rec := range m.mentions {
		if strings.EqualFold(rec.Name, in.Name) {
			count++
			sum += float64(rec.Score)
		}
	}
	return &graph.Person{
		Name:         in.Name,
		MentionCount: count,
		SentimentAvg: sum / float64(count),
	}, nil
}

func TestUpdatePeopleMap_StoresValidMentions(t *testing.T) {
	ctx := context.Background()
	mock := &mockPersonGraph{}
	updater := NewUpdater(mock)

	err := updater.UpdatePeopleMap(ctx, []journal.MentionCandidate{
		{Name: "Sarah", Relationship: "sister", Sentiment: "positive", Context: "helped me move"},
		{Name: "Tom", Sentiment: "frustrated"},
	}, "entry-1")
	if err != nil {
		t.Fatalf("UpdatePeopleMap failed: %v", err)
	}

	if len(mock.mentions) != 2 {
		t.Fatalf("expected 2 mentions, got %d", len(mock.mentions))
	}
	if mock.mentions[0].Score != 8 {
		t.Errorf("expected positive score 8, got %d", mock.mentions[0].Score)
	}
	if mock.mentions[1].Score != 3 {
		t.Errorf("expected frustrated score 3, got %d", mock.mentions[1].Score)
	}
	if mock.mentions[0].EntryID != "entry-1" {
		t.Errorf("entry id not propagated: %q", mock.mentions[0].EntryID)
	}
}

func TestUpdatePeopleMap_SkipsPlaceholders(t *testing.T) {
	ctx := context.Background()
	mock := &mockPersonGraph{}
	updater := NewUpdater(mock)

	err := updater.UpdatePeopleMap(ctx, []journal.MentionCandidate{
		{Name: "user"},
		{Name: ""},
		{Name: "someone"},
		{Name: "Maria", Sentiment: "neutral"},
	}, "entry-2")
	if err != nil {
		t.Fatalf("UpdatePeopleMap failed: %v", err)
	}

	if len(mock.mentions) != 1 {
		t.Fatalf("expected only the real name to be stored, got %d mentions", len(mock.mentions))
	}
	if mock.mentions[0].Name != "Maria" {
		t.Errorf("unexpected mention: %q", mock.mentions[0].Name)
	}
}

func TestUpdatePeopleMap_BadMentionDoesNotBlockBatch(t *testing.T) {
	ctx := context.Background()
	mock := &mockPersonGraph{failFor: "Tom"}
	updater := NewUpdater(mock)

	err := updater.UpdatePeopleMap(ctx, []journal.MentionCandidate{
		{Name: "Tom", Sentiment: "negative"},
		{Name: "Sarah", Sentiment: "positive"},
	}, "entry-3")
	if err == nil {
		t.Fatal("expected a summary error for the failed write")
	}

	if len(mock.mentions) != 1 || mock.mentions[0].Name != "Sarah" {
		t.Errorf("expected Sarah to be stored despite Tom failing, got %+v", mock.mentions)
	}
}
