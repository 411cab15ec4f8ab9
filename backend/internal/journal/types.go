package journal

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Source identifies how a raw entry was captured
type Source string

const (
	SourceText  Source = "text"
	SourceVoice Source = "voice"
)

// Entry categories produced by extraction (whitelist; see validate.ValidateCategory)
const (
	CategoryReflection = "reflection"
	CategoryPersonal   = "personal"
)

// ============================================================================
// Persisted Records
// ============================================================================

// RawEntry is the immutable, verbatim user submission. raw_text and source are
// never mutated; reprocessing deletes and recreates the row under the same id.
type RawEntry struct {
	ID               string `gorm:"primaryKey"`
	CreatedAt        time.Time
	RawText          string `gorm:"not null"`
	Source           Source `gorm:"not null"`
	AudioURL         *string
	AudioDurationSec *int
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (RawEntry) TableName() string { return "raw_entries" }

// PersonMention is one person reference inside an extraction
type PersonMention struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Sentiment    string `json:"sentiment"`
	Context      string `json:"context"`
}

// ExtractedEntity is the structured analysis of one raw entry (1:1).
// Numeric scores are clamped into [1,10] before the row is written.
type ExtractedEntity struct {
	ID               string `gorm:"primaryKey"`
	EntryID          string `gorm:"uniqueIndex;not null"`
	Category         string
	Title            string
	Content          string
	MoodScore        int
	EnergyLevel      int
	SelfTalkTone     *string
	DefenseMechanism *string
	CognitivePattern *string
	IdentityPersona  *string
	Triggers         datatypes.JSONSlice[string]
	BeliefsRevealed  datatypes.JSONSlice[string]
	BodySignals      datatypes.JSONSlice[string]
	IsTask           bool
	TaskStatus       *string
	DueDate          *string
	People           datatypes.JSONType[[]PersonMention]
	AIPersona        string
	AIResponse       string
	FollowupQuestion *string
	CreatedAt        time.Time
}

func (ExtractedEntity) TableName() string { return "extracted_entities" }

// LifeEvent is a significant, possibly historically-dated occurrence.
// TitleKey (lower-cased title) carries the dedup constraint; EventDate stays
// null when no sane date could be resolved, it is never defaulted to today.
type LifeEvent struct {
	ID             string `gorm:"primaryKey"`
	Title          string `gorm:"not null"`
	TitleKey       string `gorm:"uniqueIndex;not null"`
	Description    string
	Significance   int
	Category       string
	Emotions       datatypes.JSONSlice[string]
	PeopleInvolved datatypes.JSONSlice[string]
	EventDate      *string
	SourceEntryID  string
	CreatedAt      time.Time
}

func (LifeEvent) TableName() string { return "life_events_timeline" }

// Belief statuses
const (
	BeliefStatusActive     = "active"
	BeliefStatusQuestioned = "questioned"
	BeliefStatusEvolved    = "evolved"
)

// Belief is a recurring self-belief statement, reinforced on every recurrence
type Belief struct {
	ID                 string `gorm:"primaryKey"`
	Text               string `gorm:"not null"`
	TextKey            string `gorm:"uniqueIndex;not null"`
	Domain             string
	FirstSurfaced      time.Time
	LastReinforced     time.Time
	ReinforcementCount int
	Status             string
	SourceEntryID      string
}

func (Belief) TableName() string { return "belief_system" }

// Insight is an append-only observation deduplicated by text
type Insight struct {
	ID            string `gorm:"primaryKey"`
	Text          string `gorm:"not null"`
	TextKey       string `gorm:"uniqueIndex;not null"`
	Category      string
	SourceEntryID string
	CreatedAt     time.Time
}

func (Insight) TableName() string { return "insights" }

// HealthMetric is a named measurement deduplicated by (name, date)
type HealthMetric struct {
	ID            string  `gorm:"primaryKey"`
	Name          string  `gorm:"uniqueIndex:idx_metric_name_date;not null"`
	Date          string  `gorm:"uniqueIndex:idx_metric_name_date;not null"`
	Value         float64
	Unit          string
	SourceEntryID string
	CreatedAt     time.Time
}

func (HealthMetric) TableName() string { return "health_metrics" }

// Embedding stores the vector representation of an entry summary for
// similarity retrieval, with enough metadata to filter results later.
type Embedding struct {
	ID        string `gorm:"primaryKey"`
	EntryID   string `gorm:"index;not null"`
	Vector    datatypes.JSONSlice[float32]
	Text      string
	Category  string
	MoodScore int
	Date      string
	People    datatypes.JSONSlice[string]
	Persona   string
	CreatedAt time.Time
}

func (Embedding) TableName() string { return "embeddings" }

// ============================================================================
// Untrusted Model Output (candidates)
// ============================================================================

// ExtractionCandidate is the leniently-parsed model response for an entry.
// Array fields are deliberately untyped: the model occasionally returns
// non-string members or a bare scalar, and validate.ValidateStringArray
// decides what survives. No candidate field reaches a store unvalidated.
type ExtractionCandidate struct {
	Category         string          `json:"category"`
	Title            string          `json:"title"`
	Content          string          `json:"content"`
	MoodScore        float64         `json:"mood_score"`
	EnergyLevel      float64         `json:"energy_level"`
	SelfTalkTone     *string         `json:"self_talk_tone"`
	DefenseMechanism *string         `json:"defense_mechanism"`
	CognitivePattern *string         `json:"cognitive_pattern"`
	IdentityPersona  *string         `json:"identity_persona"`
	Triggers         []any           `json:"triggers"`
	BeliefsRevealed  []any           `json:"beliefs_revealed"`
	BodySignals      []any           `json:"body_signals"`
	IsTask           bool            `json:"is_task"`
	TaskStatus       *string         `json:"task_status"`
	DueDate          *string         `json:"due_date"`
	People           []MentionCandidate `json:"people"`
	AIPersona        string          `json:"ai_persona_selected"`
	AIResponse       string          `json:"ai_response"`
	FollowupQuestion *string         `json:"followup_question"`
}

// MentionCandidate is one unvalidated person mention from the model
type MentionCandidate struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Sentiment    string `json:"sentiment"`
	Context      string `json:"context"`
}

// LifeEventCandidate is one unvalidated life event from the background pass
type LifeEventCandidate struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Significance   float64 `json:"significance"`
	Category       string  `json:"category"`
	Emotions       []any   `json:"emotions"`
	PeopleInvolved []any   `json:"people_involved"`
	EventDate      string  `json:"event_date"`
}

// HealthMetricCandidate is one unvalidated health measurement
type HealthMetricCandidate struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Date  string  `json:"date"`
}

// InsightCandidate is one unvalidated insight/dream observation
type InsightCandidate struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// FeatureSet is the background pipeline's extraction result
type FeatureSet struct {
	LifeEvents    []LifeEventCandidate    `json:"life_events"`
	HealthMetrics []HealthMetricCandidate `json:"health_metrics"`
	Insights      []InsightCandidate      `json:"insights"`
}
