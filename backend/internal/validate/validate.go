package validate

import (
	"math"
	"strconv"
	"strings"
	"time"

	"mindmirror/backend/internal/journal"
	"mindmirror/backend/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Everything in this package stands between untrusted model output and the
// stores. No extracted field is persisted without passing through here first.

// Rules carries the configurable bounds for historically-dated facts.
type Rules struct {
	MinEventYear   int
	MaxFutureYears int
}

// DefaultRules returns the standard date window
func DefaultRules() Rules {
	return Rules{MinEventYear: 1985, MaxFutureYears: 1}
}

// unknownSentinels are values the model emits when it has no real answer
var unknownSentinels = map[string]struct{}{
	"":          {},
	"null":      {},
	"unknown":   {},
	"n/a":       {},
	"na":        {},
	"none":      {},
	"undefined": {},
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
}

func isUnknown(raw string) bool {
	_, ok := unknownSentinels[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// ValidateDate resolves a date string to YYYY-MM-DD, defaulting to today when
// the value is missing or a sentinel. Only use where "unknown means now" is
// correct (e.g. a measurement date), never for historical events.
func ValidateDate(raw string) string {
	today := time.Now().Format("2006-01-02")
	if isUnknown(raw) {
		return today
	}

	raw = strings.TrimSpace(raw)

	// ISO-prefixed strings: truncate rather than parse the whole thing
	if len(raw) >= 10 {
		if t, err := time.Parse("2006-01-02", raw[:10]); err == nil {
			return t.Format("2006-01-02")
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}

	return today
}

// ValidateDateNullable resolves a date string to YYYY-MM-DD or nil. Unlike
// ValidateDate it never guesses "today": sentinels, unparseable values and
// years outside the configured window all come back nil. Bare 4-digit years
// expand to January 1st of that year.
func (r Rules) ValidateDateNullable(raw string) *string {
	if isUnknown(raw) {
		return nil
	}

	raw = strings.TrimSpace(raw)

	// Bare year
	if len(raw) == 4 {
		if year, err := strconv.Atoi(raw); err == nil {
			return r.checkWindow(time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))
		}
	}

	if len(raw) >= 10 {
		if t, err := time.Parse("2006-01-02", raw[:10]); err == nil {
			return r.checkWindow(t)
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return r.checkWindow(t)
		}
	}

	return nil
}

func (r Rules) checkWindow(t time.Time) *string {
	year := t.Year()
	if year < r.MinEventYear || year > time.Now().Year()+r.MaxFutureYears {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

// ValidateMoodScore clamps a numeric score into [1,10], rounding rather than
// truncating. Missing or NaN input yields the neutral 5.
func ValidateMoodScore(raw float64) int {
	return clampScore(raw)
}

// ValidateSignificance clamps a significance score into [1,10]
func ValidateSignificance(raw float64) int {
	return clampScore(raw)
}

func clampScore(raw float64) int {
	if math.IsNaN(raw) || raw == 0 {
		return 5
	}
	v := int(math.Round(raw))
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

// lifeEventCategories is the whitelist for life-event categories
var lifeEventCategories = map[string]struct{}{
	"personal":     {},
	"career":       {},
	"relationship": {},
	"health":       {},
	"family":       {},
	"finance":      {},
	"education":    {},
	"travel":       {},
	"loss":         {},
	"achievement":  {},
	"spiritual":    {},
}

// categorySynonyms maps common model phrasings onto whitelist categories.
// Matching is by substring containment against the lower-cased input.
var categorySynonyms = []struct {
	fragment string
	category string
}{
	{"job", "career"},
	{"work", "career"},
	{"promotion", "career"},
	{"business", "career"},
	{"marriage", "relationship"},
	{"wedding", "relationship"},
	{"dating", "relationship"},
	{"breakup", "relationship"},
	{"divorce", "relationship"},
	{"friend", "relationship"},
	{"fitness", "health"},
	{"medical", "health"},
	{"illness", "health"},
	{"money", "finance"},
	{"debt", "finance"},
	{"school", "education"},
	{"degree", "education"},
	{"study", "education"},
	{"trip", "travel"},
	{"move", "personal"},
	{"death", "loss"},
	{"grief", "loss"},
	{"award", "achievement"},
	{"milestone", "achievement"},
	{"faith", "spiritual"},
	{"religio", "spiritual"},
}

// ValidateCategory maps a life-event category onto the whitelist, falling
// back through the synonym table and finally to "personal".
func ValidateCategory(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := lifeEventCategories[lower]; ok {
		return lower
	}
	for _, syn := range categorySynonyms {
		if strings.Contains(lower, syn.fragment) {
			return syn.category
		}
	}
	return journal.CategoryPersonal
}

// entryCategories is the whitelist for extracted-entry categories
var entryCategories = map[string]struct{}{
	"reflection": {},
	"vent":       {},
	"emotion":    {},
	"gratitude":  {},
	"planning":   {},
	"memory":     {},
	"dream":      {},
	"idea":       {},
	"task":       {},
	"question":   {},
}

// ValidateEntryCategory normalizes an entry category, defaulting to "reflection"
func ValidateEntryCategory(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := entryCategories[lower]; ok {
		return lower
	}
	return journal.CategoryReflection
}

// ValidateStringArray filters an untyped model array down to non-empty
// trimmed strings. Non-array input yields an empty slice, never nil members.
func ValidateStringArray(raw any) []string {
	out := []string{}
	items, ok := raw.([]any)
	if !ok {
		// Already-typed slices show up when candidates are built in tests
		if typed, ok := raw.([]string); ok {
			for _, s := range typed {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					out = append(out, trimmed)
				}
			}
		}
		return out
	}
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// leakagePatterns match instructional example text the model sometimes echoes
// back instead of real user content. Any title matching one of these marks the
// whole record as hallucinated.
var leakagePatterns = []string{
	"short title",
	"brief title",
	"started a new job at google",
	"started a new job at acme",
	"your title here",
	"example event",
	"insert title",
}

// IsPromptLeakage reports whether text matches a known instruction-echo pattern
func IsPromptLeakage(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}
	for _, pattern := range leakagePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

const maxTitleLength = 200

// SanitizeTitle trims and caps a title, returning nil if nothing survives
func SanitizeTitle(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if len(trimmed) > maxTitleLength {
		trimmed = trimmed[:maxTitleLength]
	}
	return &trimmed
}

// placeholderNames are non-names the model substitutes when it has no real person
var placeholderNames = map[string]struct{}{
	"user":    {},
	"me":      {},
	"myself":  {},
	"i":       {},
	"someone": {},
	"unknown": {},
	"person":  {},
	"n/a":     {},
	"none":    {},
}

// ValidatePerson cleans a person mention, returning nil when the name is
// empty or a placeholder. Rejection is a skip, not an error.
func ValidatePerson(m journal.MentionCandidate) *journal.MentionCandidate {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		return nil
	}
	if _, ok := placeholderNames[strings.ToLower(name)]; ok {
		logger.Get().Debug("Dropping placeholder person mention", zap.String("name", name))
		return nil
	}
	if len(name) > 100 {
		name = name[:100]
	}
	return &journal.MentionCandidate{
		Name:         name,
		Relationship: strings.TrimSpace(m.Relationship),
		Sentiment:    strings.TrimSpace(m.Sentiment),
		Context:      strings.TrimSpace(m.Context),
	}
}

// ValidateLifeEvent runs a candidate through the full pass/reject decision.
// A nil return means "do not persist this record"; the reason is logged, not
// raised, so one bad event never aborts a batch.
func (r Rules) ValidateLifeEvent(c journal.LifeEventCandidate, sourceEntryID string) *journal.LifeEvent {
	log := logger.Get()

	title := SanitizeTitle(c.Title)
	if title == nil {
		log.Debug("Dropping life event with empty title", zap.String("entry_id", sourceEntryID))
		return nil
	}
	if IsPromptLeakage(*title) {
		log.Warn("Dropping life event with prompt-leakage title",
			zap.String("title", *title),
			zap.String("entry_id", sourceEntryID),
		)
		return nil
	}

	return &journal.LifeEvent{
		Title:          *title,
		TitleKey:       strings.ToLower(*title),
		Description:    strings.TrimSpace(c.Description),
		Significance:   ValidateSignificance(c.Significance),
		Category:       ValidateCategory(c.Category),
		Emotions:       datatypes.JSONSlice[string](ValidateStringArray(c.Emotions)),
		PeopleInvolved: datatypes.JSONSlice[string](ValidateStringArray(c.PeopleInvolved)),
		EventDate:      r.ValidateDateNullable(c.EventDate),
		SourceEntryID:  sourceEntryID,
	}
}
