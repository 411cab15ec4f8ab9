package pipeline

import (
	"context"
	"strings"

	"mindmirror/backend/internal/journal"
	"mindmirror/backend/internal/validate"
	"mindmirror/backend/pkg/logger"
	"go.uber.org/zap"
)

// EventWriter records deduplicated life events
type EventWriter interface {
	Create(ctx context.Context, event *journal.LifeEvent) (bool, error)
}

// InsightWriter records deduplicated insights
type InsightWriter interface {
	Add(ctx context.Context, insight *journal.Insight) (bool, error)
}

// HealthWriter records deduplicated health metrics
type HealthWriter interface {
	Add(ctx context.Context, metric *journal.HealthMetric) (bool, error)
}

// FeatureReport summarizes one background pass. Rejected counts validation
// skips (leakage, empty titles, bad values); Failed counts store errors.
type FeatureReport struct {
	EntryID        string
	EventsStored   int
	MetricsStored  int
	InsightsStored int
	Rejected       int
	Failed         int
}

// FeatureProcessor is the slower second pass over an entry: it extracts
// durable life data (events, metrics, insights) and persists what survives
// validation. It shares the extractor with the main pipeline but runs
// decoupled from it.
type FeatureProcessor struct {
	extractor Extractor
	events    EventWriter
	insights  InsightWriter
	health    HealthWriter
	rules     validate.Rules
	logger    *zap.Logger
}

// NewFeatureProcessor wires the background pass
func NewFeatureProcessor(extractor Extractor, events EventWriter, insights InsightWriter, health HealthWriter, rules validate.Rules) *FeatureProcessor {
	if rules == (validate.Rules{}) {
		rules = validate.DefaultRules()
	}
	return &FeatureProcessor{
		extractor: extractor,
		events:    events,
		insights:  insights,
		health:    health,
		rules:     rules,
		logger:    logger.Get(),
	}
}

// Process runs the feature pass for one entry. Extraction failure is the only
// returned error; per-item validation rejections and store failures are
// counted in the report and logged, never raised.
func (p *FeatureProcessor) Process(ctx context.Context, entryID, text string) (*FeatureReport, error) {
	report := &FeatureReport{EntryID: entryID}

	features, err := p.extractor.ExtractFeatures(ctx, text)
	if err != nil {
		p.logger.Error("Feature extraction failed",
			zap.String("entry_id", entryID),
			zap.Error(err),
		)
		return report, err
	}

	p.storeEvents(ctx, features.LifeEvents, entryID, report)
	p.storeMetrics(ctx, features.HealthMetrics, entryID, report)
	p.storeInsights(ctx, features.Insights, entryID, report)

	p.logger.Info("Feature pass complete",
		zap.String("entry_id", entryID),
		zap.Int("events", report.EventsStored),
		zap.Int("metrics", report.MetricsStored),
		zap.Int("insights", report.InsightsStored),
		zap.Int("rejected", report.Rejected),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (p *FeatureProcessor) storeEvents(ctx context.Context, candidates []journal.LifeEventCandidate, entryID string, report *FeatureReport) {
	for _, candidate := range candidates {
		event := p.rules.ValidateLifeEvent(candidate, entryID)
		if event == nil {
			report.Rejected++
			continue
		}
		created, err := p.events.Create(ctx, event)
		if err != nil {
			report.Failed++
			p.logger.Warn("Failed to store life event",
				zap.String("title", event.Title),
				zap.Error(err),
			)
			continue
		}
		if created {
			report.EventsStored++
		}
	}
}

func (p *FeatureProcessor) storeMetrics(ctx context.Context, candidates []journal.HealthMetricCandidate, entryID string, report *FeatureReport) {
	for _, candidate := range candidates {
		name := strings.ToLower(strings.TrimSpace(candidate.Name))
		if name == "" || validate.IsPromptLeakage(name) {
			report.Rejected++
			continue
		}
		stored, err := p.health.Add(ctx, &journal.HealthMetric{
			Name:          name,
			Value:         candidate.Value,
			Unit:          strings.TrimSpace(candidate.Unit),
			Date:          validate.ValidateDate(candidate.Date),
			SourceEntryID: entryID,
		})
		if err != nil {
			report.Failed++
			p.logger.Warn("Failed to store health metric",
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}
		if stored {
			report.MetricsStored++
		}
	}
}

func (p *FeatureProcessor) storeInsights(ctx context.Context, candidates []journal.InsightCandidate, entryID string, report *FeatureReport) {
	for _, candidate := range candidates {
		text := strings.TrimSpace(candidate.Text)
		if text == "" || validate.IsPromptLeakage(text) {
			report.Rejected++
			continue
		}
		stored, err := p.insights.Add(ctx, &journal.Insight{
			Text:          text,
			TextKey:       strings.ToLower(text),
			Category:      strings.ToLower(strings.TrimSpace(candidate.Category)),
			SourceEntryID: entryID,
		})
		if err != nil {
			report.Failed++
			p.logger.Warn("Failed to store insight", zap.Error(err))
			continue
		}
		if stored {
			report.InsightsStored++
		}
	}
}
