package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"mindmirror/backend/internal/journal"
	"mindmirror/backend/internal/validate"
)

// Mock stores for the feature pass

type mockEventStore struct {
	byTitle map[string]*journal.LifeEvent
	err     error
}

func newMockEventStore() *mockEventStore {
	return &mockEventStore{byTitle: make(map[string]*journal.LifeEvent)}
}

func (m *mockEventStore) Create(ctx context.Context, event *journal.LifeEvent) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.byTitle[event.TitleKey]; ok {
		return false, nil
	}
	m.byTitle[event.TitleKey] = event
	return true, nil
}

type mockInsightStore struct {
	byText map[string]*journal.Insight
}

func newMockInsightStore() *mockInsightStore {
	return &mockInsightStore{byText: make(map[string]*journal.Insight)}
}

func (m *mockInsightStore) Add(ctx context.Context, insight *journal.Insight) (bool, error) {
	if _, ok := m.byText[insight.TextKey]; ok {
		return false, nil
	}
	m.byText[insight.TextKey] = insight
	return true, nil
}

type mockHealthStore struct {
	byKey map[string]*journal.HealthMetric
}

func newMockHealthStore() *mockHealthStore {
	return &mockHealthStore{byKey: make(map[string]*journal.HealthMetric)}
}

func (m *mockHealthStore) Add(ctx context.Context, metric *journal.HealthMetric) (bool, error) {
	key := metric.Name + "|" + metric.Date
	if _, ok := m.byKey[key]; ok {
		return false, nil
	}
	m.byKey[key] = metric
	return true, nil
}

func newTestFeatureProcessor(extractor *mockExtractor) (*FeatureProcessor, *mockEventStore, *mockInsightStore, *mockHealthStore) {
	events := newMockEventStore()
	insights := newMockInsightStore()
	health := newMockHealthStore()
	proc := NewFeatureProcessor(extractor, events, insights, health, validate.DefaultRules())
	return proc, events, insights, health
}

func TestFeatureProcess_StoresValidatedFeatures(t *testing.T) {
	ctx := context.Background()
	extractor := &mockExtractor{
		features: &journal.FeatureSet{
			LifeEvents: []journal.LifeEventCandidate{
				{Title: "Moved to Berlin", Significance: 8, Category: "relocation", EventDate: "2019"},
			},
			HealthMetrics: []journal.HealthMetricCandidate{
				{Name: "Sleep_Hours", Value: 6.5, Unit: "hours", Date: "2024-03-01"},
			},
			Insights: []journal.InsightCandidate{
				{Text: "I avoid conflict by going quiet", Category: "Pattern"},
			},
		},
	}
	proc, events, insights, health := newTestFeatureProcessor(extractor)

	report, err := proc.Process(ctx, "entry-1", "some entry text")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if report.EventsStored != 1 || report.MetricsStored != 1 || report.InsightsStored != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	event := events.byTitle["moved to berlin"]
	if event == nil {
		t.Fatal("event not stored")
	}
	if event.EventDate == nil || *event.EventDate != "2019-01-01" {
		t.Errorf("unexpected event date: %v", event.EventDate)
	}

	metric := health.byKey["sleep_hours|2024-03-01"]
	if metric == nil {
		t.Fatal("metric not stored under normalized name")
	}

	if _, ok := insights.byText["i avoid conflict by going quiet"]; !ok {
		t.Error("insight not stored under lower-cased key")
	}
}

func TestFeatureProcess_DeduplicatesEvents(t *testing.T) {
	ctx := context.Background()
	extractor := &mockExtractor{
		features: &journal.FeatureSet{
			LifeEvents: []journal.LifeEventCandidate{
				{Title: "Got promoted", Significance: 7},
				{Title: "GOT PROMOTED", Significance: 9},
			},
		},
	}
	proc, events, _, _ := newTestFeatureProcessor(extractor)

	report, err := proc.Process(ctx, "entry-1", "text")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if report.EventsStored != 1 {
		t.Errorf("expected 1 stored event, got %d", report.EventsStored)
	}
	if len(events.byTitle) != 1 {
		t.Errorf("expected 1 unique event, got %d", len(events.byTitle))
	}
}

func TestFeatureProcess_RejectsLeakageAndEmptyItems(t *testing.T) {
	ctx := context.Background()
	extractor := &mockExtractor{
		features: &journal.FeatureSet{
			LifeEvents: []journal.LifeEventCandidate{
				{Title: "Short title", Significance: 5},
				{Title: "   "},
			},
			HealthMetrics: []journal.HealthMetricCandidate{
				{Name: "  ", Value: 80},
			},
			Insights: []journal.InsightCandidate{
				{Text: ""},
			},
		},
	}
	proc, events, insights, health := newTestFeatureProcessor(extractor)

	report, err := proc.Process(ctx, "entry-1", "text")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if report.Rejected != 4 {
		t.Errorf("expected 4 rejections, got %d", report.Rejected)
	}
	if len(events.byTitle) != 0 || len(insights.byText) != 0 || len(health.byKey) != 0 {
		t.Error("nothing should have been persisted")
	}
}

func TestFeatureProcess_MetricDateDefaultsToToday(t *testing.T) {
	ctx := context.Background()
	extractor := &mockExtractor{
		features: &journal.FeatureSet{
			HealthMetrics: []journal.HealthMetricCandidate{
				{Name: "weight", Value: 72.5, Unit: "kg", Date: "unknown"},
			},
		},
	}
	proc, _, _, health := newTestFeatureProcessor(extractor)

	if _, err := proc.Process(ctx, "entry-1", "text"); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	today := time.Now().Format("2006-01-02")
	if _, ok := health.byKey["weight|"+today]; !ok {
		t.Errorf("expected metric dated today, got keys %v", health.byKey)
	}
}

func TestFeatureProcess_ExtractionFailurePropagates(t *testing.T) {
	extractor := &mockExtractor{err: errors.New("model unavailable")}
	proc, _, _, _ := newTestFeatureProcessor(extractor)

	if _, err := proc.Process(context.Background(), "entry-1", "text"); err == nil {
		t.Fatal("expected extraction failure to propagate")
	}
}

func TestFeatureProcess_StoreFailureIsCounted(t *testing.T) {
	ctx := context.Background()
	extractor := &mockExtractor{
		features: &journal.FeatureSet{
			LifeEvents: []journal.LifeEventCandidate{
				{Title: "Started therapy", Significance: 6},
			},
		},
	}
	proc, events, _, _ := newTestFeatureProcessor(extractor)
	events.err = errors.New("db down")

	report, err := proc.Process(ctx, "entry-1", "text")
	if err != nil {
		t.Fatalf("store failures must not fail the pass: %v", err)
	}
	if report.Failed != 1 || report.EventsStored != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}
