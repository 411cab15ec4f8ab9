package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"mindmirror/backend/internal/journal"
	"mindmirror/backend/internal/validate"
	apperrors "mindmirror/backend/pkg/errors"
	"mindmirror/backend/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// fastPathThreshold is the trimmed length below which an entry skips
// extraction entirely and gets a neutral analysis.
const fastPathThreshold = 10

// ============================================================================
// Dependencies
// ============================================================================

// Extractor produces structured candidates from raw text
type Extractor interface {
	Extract(ctx context.Context, text, contextBlock string) (*journal.ExtractionCandidate, error)
	ExtractFeatures(ctx context.Context, text string) (*journal.FeatureSet, error)
}

// Embedder computes a vector for one text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PeopleUpdater propagates person mentions into the graph
type PeopleUpdater interface {
	UpdatePeopleMap(ctx context.Context, mentions []journal.MentionCandidate, entryID string) error
}

// EntryWriter is the slice of the entry store the orchestrator writes through
type EntryWriter interface {
	Insert(ctx context.Context, entry *journal.RawEntry) error
	FindDuplicate(ctx context.Context, rawText string) (*journal.RawEntry, error)
	Get(ctx context.Context, id string) (*journal.RawEntry, error)
}

// EntityWriter is the slice of the entity store the orchestrator writes through
type EntityWriter interface {
	Insert(ctx context.Context, entity *journal.ExtractedEntity) error
	DeleteByEntry(ctx context.Context, entryID string) error
}

// EmbeddingWriter persists entry vectors
type EmbeddingWriter interface {
	Store(ctx context.Context, emb *journal.Embedding) error
	DeleteByEntry(ctx context.Context, entryID string) error
}

// BeliefWriter records belief recurrences
type BeliefWriter interface {
	Reinforce(ctx context.Context, belief *journal.Belief) (*journal.Belief, error)
}

// ContextProvider assembles the extraction context block
type ContextProvider interface {
	Build(ctx context.Context, text string) string
	RememberPersona(ctx context.Context, persona string)
}

// ============================================================================
// Orchestrator
// ============================================================================

// Result is the outcome of one pipeline run. Success refers to the critical
// path only; StepErrors carry fan-out failures that did not abort the run.
type Result struct {
	EntryID    string
	Entity     *journal.ExtractedEntity
	Duplicate  bool
	Success    bool
	StepErrors []StepError
}

// Orchestrator drives the journal entry pipeline: dedup, raw persist,
// extraction, entity persist, then the concurrent fan-out. The critical path
// is sequential and fatal; everything after the entity persist is attempted
// and recorded.
type Orchestrator struct {
	entries    EntryWriter
	entities   EntityWriter
	embeddings EmbeddingWriter
	beliefs    BeliefWriter
	extractor  Extractor
	embedder   Embedder
	people     PeopleUpdater
	contexts   ContextProvider
	rules      validate.Rules
	timeout    time.Duration
	logger     *zap.Logger
}

// Options tunes the orchestrator
type Options struct {
	Rules             validate.Rules
	ExtractionTimeout time.Duration
}

// NewOrchestrator wires the pipeline together
func NewOrchestrator(
	entries EntryWriter,
	entities EntityWriter,
	embeddings EmbeddingWriter,
	beliefs BeliefWriter,
	extractor Extractor,
	embedder Embedder,
	people PeopleUpdater,
	contexts ContextProvider,
	opts Options,
) *Orchestrator {
	if opts.ExtractionTimeout <= 0 {
		opts.ExtractionTimeout = 60 * time.Second
	}
	if opts.Rules == (validate.Rules{}) {
		opts.Rules = validate.DefaultRules()
	}
	return &Orchestrator{
		entries:    entries,
		entities:   entities,
		embeddings: embeddings,
		beliefs:    beliefs,
		extractor:  extractor,
		embedder:   embedder,
		people:     people,
		contexts:   contexts,
		rules:      opts.Rules,
		timeout:    opts.ExtractionTimeout,
		logger:     logger.Get(),
	}
}

// AudioRef carries the capture metadata for a voice entry. The audio itself
// is never stored here, only a reference to it.
type AudioRef struct {
	URL         string
	DurationSec int
}

// ProcessEntry runs the full pipeline for one submission. audio is nil for
// typed entries. The returned error is non-nil only when the critical path
// failed; fan-out failures land in Result.StepErrors with Success still true.
func (o *Orchestrator) ProcessEntry(ctx context.Context, text string, source journal.Source, audio *AudioRef) (*Result, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, apperrors.ErrEmptyEntry
	}

	// Dedup short-circuit. A failed lookup is not worth aborting for; worst
	// case we store the same text twice.
	if existing, err := o.entries.FindDuplicate(ctx, trimmed); err != nil {
		o.logger.Warn("Duplicate check failed, continuing", zap.Error(err))
	} else if existing != nil {
		o.logger.Info("Duplicate entry, skipping pipeline",
			zap.String("existing_id", existing.ID),
		)
		return &Result{EntryID: existing.ID, Duplicate: true, Success: true}, nil
	}

	entry := &journal.RawEntry{
		ID:      uuid.New().String(),
		RawText: trimmed,
		Source:  source,
	}
	if audio != nil && audio.URL != "" {
		entry.AudioURL = &audio.URL
		if audio.DurationSec > 0 {
			entry.AudioDurationSec = &audio.DurationSec
		}
	}
	if err := o.entries.Insert(ctx, entry); err != nil {
		return nil, apperrors.NewStoreWriteFailed("raw_entries", err)
	}

	return o.analyze(ctx, entry)
}

// ReprocessEntry re-runs extraction for an existing entry, replacing its
// previous analysis and vectors. The raw text is never touched.
func (o *Orchestrator) ReprocessEntry(ctx context.Context, entryID string) (*Result, error) {
	entry, err := o.entries.Get(ctx, entryID)
	if err != nil {
		return nil, apperrors.NewEntryNotFound(entryID)
	}

	if err := o.entities.DeleteByEntry(ctx, entryID); err != nil {
		return nil, apperrors.NewStoreWriteFailed("extracted_entities", err)
	}
	if err := o.embeddings.DeleteByEntry(ctx, entryID); err != nil {
		o.logger.Warn("Failed to clear old embeddings before reprocess",
			zap.String("entry_id", entryID),
			zap.Error(err),
		)
	}

	o.logger.Info("Reprocessing entry", zap.String("entry_id", entryID))
	return o.analyze(ctx, entry)
}

// analyze runs everything after the raw entry exists: fast path or extraction,
// entity persist, fan-out.
func (o *Orchestrator) analyze(ctx context.Context, entry *journal.RawEntry) (*Result, error) {
	result := &Result{EntryID: entry.ID}

	var entity *journal.ExtractedEntity
	var candidate *journal.ExtractionCandidate

	if len([]rune(strings.TrimSpace(entry.RawText))) < fastPathThreshold {
		o.logger.Debug("Entry below extraction threshold, using neutral analysis",
			zap.String("entry_id", entry.ID),
		)
		entity = neutralEntity(entry)
	} else {
		extractCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		contextBlock := o.contexts.Build(extractCtx, entry.RawText)

		var err error
		candidate, err = o.extractor.Extract(extractCtx, entry.RawText, contextBlock)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = apperrors.NewContextTimeout("extraction", o.timeout)
			}
			o.logger.Error("Extraction failed",
				zap.String("entry_id", entry.ID),
				zap.Error(err),
			)
			return result, err
		}
		entity = o.sanitize(candidate, entry.ID)
	}

	if err := o.entities.Insert(ctx, entity); err != nil {
		return result, apperrors.NewStoreWriteFailed("extracted_entities", err)
	}

	result.Entity = entity
	result.Success = true
	result.StepErrors = o.fanOut(ctx, entry, entity, candidate)

	o.contexts.RememberPersona(ctx, entity.AIPersona)

	o.logger.Info("Entry processed",
		zap.String("entry_id", entry.ID),
		zap.String("category", entity.Category),
		zap.Int("mood_score", entity.MoodScore),
		zap.Int("step_errors", len(result.StepErrors)),
	)
	return result, nil
}

// fanOut dispatches the non-critical steps concurrently. candidate is nil on
// the fast path, which skips people updates (a neutral analysis mentions
// nobody).
func (o *Orchestrator) fanOut(ctx context.Context, entry *journal.RawEntry, entity *journal.ExtractedEntity, candidate *journal.ExtractionCandidate) []StepError {
	runner := &stepRunner{}

	runner.run("embedding", func() error {
		return o.storeEmbedding(ctx, entry, entity)
	})

	if candidate != nil && len(candidate.People) > 0 {
		mentions := candidate.People
		runner.run("people_graph", func() error {
			return o.people.UpdatePeopleMap(ctx, mentions, entry.ID)
		})
	}

	if len(entity.BeliefsRevealed) > 0 {
		runner.run("beliefs", func() error {
			return o.reinforceBeliefs(ctx, entity.BeliefsRevealed, entry.ID)
		})
	}

	return runner.wait()
}

func (o *Orchestrator) storeEmbedding(ctx context.Context, entry *journal.RawEntry, entity *journal.ExtractedEntity) error {
	// Title and content together; the title often carries the only named
	// anchor (a person, a place) for later retrieval.
	text := entity.Content
	if entity.Title != "" && entity.Title != entity.Content {
		text = strings.TrimSpace(entity.Title + "\n" + entity.Content)
	}
	if strings.TrimSpace(text) == "" {
		text = entry.RawText
	}

	vector, err := o.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	names := make([]string, 0)
	for _, p := range entity.People.Data() {
		names = append(names, p.Name)
	}

	return o.embeddings.Store(ctx, &journal.Embedding{
		EntryID:   entry.ID,
		Vector:    datatypes.JSONSlice[float32](vector),
		Text:      text,
		Category:  entity.Category,
		MoodScore: entity.MoodScore,
		Date:      time.Now().Format("2006-01-02"),
		People:    datatypes.JSONSlice[string](names),
		Persona:   entity.AIPersona,
	})
}

// reinforceBeliefs records each revealed belief independently; one bad belief
// never blocks the rest
func (o *Orchestrator) reinforceBeliefs(ctx context.Context, beliefs datatypes.JSONSlice[string], entryID string) error {
	failed := 0
	for _, text := range beliefs {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || validate.IsPromptLeakage(trimmed) {
			continue
		}
		_, err := o.beliefs.Reinforce(ctx, &journal.Belief{
			Text:          trimmed,
			TextKey:       strings.ToLower(trimmed),
			Domain:        "general",
			SourceEntryID: entryID,
		})
		if err != nil {
			failed++
			o.logger.Warn("Failed to reinforce belief",
				zap.String("entry_id", entryID),
				zap.Error(err),
			)
		}
	}
	if failed > 0 {
		return apperrors.NewStoreWriteFailed("belief_system", nil)
	}
	return nil
}

// sanitize converts an untrusted candidate into a persistable entity. Every
// field passes through a validator; nothing from the model is trusted as-is.
func (o *Orchestrator) sanitize(c *journal.ExtractionCandidate, entryID string) *journal.ExtractedEntity {
	title := validate.SanitizeTitle(c.Title)
	if title == nil || validate.IsPromptLeakage(*title) {
		fallback := "Journal entry"
		title = &fallback
	}

	persona := strings.TrimSpace(c.AIPersona)
	if persona == "" {
		persona = "companion"
	}

	people := make([]journal.PersonMention, 0)
	for _, m := range c.People {
		if cleaned := validate.ValidatePerson(m); cleaned != nil {
			people = append(people, journal.PersonMention{
				Name:         cleaned.Name,
				Relationship: cleaned.Relationship,
				Sentiment:    cleaned.Sentiment,
				Context:      cleaned.Context,
			})
		}
	}

	return &journal.ExtractedEntity{
		EntryID:          entryID,
		Category:         validate.ValidateEntryCategory(c.Category),
		Title:            *title,
		Content:          strings.TrimSpace(c.Content),
		MoodScore:        validate.ValidateMoodScore(c.MoodScore),
		EnergyLevel:      validate.ValidateMoodScore(c.EnergyLevel),
		SelfTalkTone:     trimPtr(c.SelfTalkTone),
		DefenseMechanism: trimPtr(c.DefenseMechanism),
		CognitivePattern: trimPtr(c.CognitivePattern),
		IdentityPersona:  trimPtr(c.IdentityPersona),
		Triggers:         datatypes.JSONSlice[string](validate.ValidateStringArray(c.Triggers)),
		BeliefsRevealed:  datatypes.JSONSlice[string](validate.ValidateStringArray(c.BeliefsRevealed)),
		BodySignals:      datatypes.JSONSlice[string](validate.ValidateStringArray(c.BodySignals)),
		IsTask:           c.IsTask,
		TaskStatus:       trimPtr(c.TaskStatus),
		DueDate:          dueDatePtr(o.rules, c.DueDate),
		People:           datatypes.NewJSONType(people),
		AIPersona:        persona,
		AIResponse:       strings.TrimSpace(c.AIResponse),
		FollowupQuestion: trimPtr(c.FollowupQuestion),
	}
}

// neutralEntity is the fast-path analysis for trivially short entries
func neutralEntity(entry *journal.RawEntry) *journal.ExtractedEntity {
	return &journal.ExtractedEntity{
		EntryID:         entry.ID,
		Category:        journal.CategoryReflection,
		Title:           strings.TrimSpace(entry.RawText),
		Content:         strings.TrimSpace(entry.RawText),
		MoodScore:       5,
		EnergyLevel:     5,
		Triggers:        datatypes.JSONSlice[string]{},
		BeliefsRevealed: datatypes.JSONSlice[string]{},
		BodySignals:     datatypes.JSONSlice[string]{},
		People:          datatypes.NewJSONType([]journal.PersonMention{}),
		AIPersona:       "companion",
		AIResponse:      "Noted. Want to say more about it?",
	}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		return nil
	}
	return &trimmed
}

func dueDatePtr(rules validate.Rules, s *string) *string {
	if s == nil {
		return nil
	}
	return rules.ValidateDateNullable(*s)
}
