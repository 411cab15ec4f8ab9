package validate

import (
	"fmt"
	"math"
	"testing"
	"time"

	"mindmirror/backend/internal/journal"
)

func TestValidateDate_SentinelsDefaultToToday(t *testing.T) {
	today := time.Now().Format("2006-01-02")

	for _, raw := range []string{"", "null", "unknown", "N/A", "none", "  UNKNOWN  "} {
		if got := ValidateDate(raw); got != today {
			t.Errorf("ValidateDate(%q) = %q, want today %q", raw, got, today)
		}
	}
}

func TestValidateDate_ParsesCommonLayouts(t *testing.T) {
	cases := map[string]string{
		"2023-06-15":           "2023-06-15",
		"2023-06-15T10:30:00Z": "2023-06-15",
		"2023/06/15":           "2023-06-15",
		"June 15, 2023":        "2023-06-15",
		"garbage":              time.Now().Format("2006-01-02"),
	}

	for raw, want := range cases {
		if got := ValidateDate(raw); got != want {
			t.Errorf("ValidateDate(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestValidateDateNullable_NeverGuessesToday(t *testing.T) {
	rules := DefaultRules()

	for _, raw := range []string{"", "null", "unknown", "not a date", "tomorrow-ish"} {
		if got := rules.ValidateDateNullable(raw); got != nil {
			t.Errorf("ValidateDateNullable(%q) = %q, want nil", raw, *got)
		}
	}
}

func TestValidateDateNullable_RejectsOutOfWindowYears(t *testing.T) {
	rules := DefaultRules()

	if got := rules.ValidateDateNullable("1700-01-01"); got != nil {
		t.Errorf("expected nil for year 1700, got %q", *got)
	}

	farFuture := fmt.Sprintf("%d-01-01", time.Now().Year()+2)
	if got := rules.ValidateDateNullable(farFuture); got != nil {
		t.Errorf("expected nil for %s, got %q", farFuture, *got)
	}

	// Next year is inside the default one-year future window
	nextYear := fmt.Sprintf("%d-03-01", time.Now().Year()+1)
	if got := rules.ValidateDateNullable(nextYear); got == nil || *got != nextYear {
		t.Errorf("expected %q to survive, got %v", nextYear, got)
	}
}

func TestValidateDateNullable_BareYearExpands(t *testing.T) {
	rules := DefaultRules()

	got := rules.ValidateDateNullable("2015")
	if got == nil || *got != "2015-01-01" {
		t.Errorf("ValidateDateNullable(\"2015\") = %v, want 2015-01-01", got)
	}

	// Bare year below the window floor
	if got := rules.ValidateDateNullable("1950"); got != nil {
		t.Errorf("expected nil for bare year 1950, got %q", *got)
	}
}

func TestValidateDateNullable_CustomWindow(t *testing.T) {
	rules := Rules{MinEventYear: 2000, MaxFutureYears: 0}

	if got := rules.ValidateDateNullable("1999-12-31"); got != nil {
		t.Errorf("expected nil below custom floor, got %q", *got)
	}
	if got := rules.ValidateDateNullable("2000-01-01"); got == nil {
		t.Error("expected 2000-01-01 to survive custom window")
	}
}

func TestValidateMoodScore_Clamping(t *testing.T) {
	cases := map[float64]int{
		0:          5,
		5:          5,
		1:          1,
		10:         10,
		-3:         1,
		42:         10,
		7.6:        8,
		math.NaN(): 5,
	}

	for raw, want := range cases {
		if got := ValidateMoodScore(raw); got != want {
			t.Errorf("ValidateMoodScore(%v) = %d, want %d", raw, got, want)
		}
	}
}

func TestValidateCategory_WhitelistAndSynonyms(t *testing.T) {
	cases := map[string]string{
		"career":              "career",
		"CAREER":              "career",
		"  health ":           "health",
		"got a new job":       "career",
		"marriage troubles":   "relationship",
		"something unmatched": "personal",
		"":                    "personal",
	}

	for raw, want := range cases {
		if got := ValidateCategory(raw); got != want {
			t.Errorf("ValidateCategory(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestValidateEntryCategory_DefaultsToReflection(t *testing.T) {
	if got := ValidateEntryCategory("Dream"); got != "dream" {
		t.Errorf("expected dream, got %q", got)
	}
	if got := ValidateEntryCategory("banana"); got != journal.CategoryReflection {
		t.Errorf("expected reflection fallback, got %q", got)
	}
}

func TestValidateStringArray(t *testing.T) {
	got := ValidateStringArray([]any{"anger", "  ", 42, nil, " fear "})
	if len(got) != 2 || got[0] != "anger" || got[1] != "fear" {
		t.Errorf("unexpected filtered array: %v", got)
	}

	if got := ValidateStringArray("not an array"); len(got) != 0 {
		t.Errorf("expected empty slice for non-array, got %v", got)
	}
	if got := ValidateStringArray(nil); got == nil {
		t.Error("expected empty slice, got nil")
	}
	if got := ValidateStringArray([]string{"a", ""}); len(got) != 1 {
		t.Errorf("expected 1 survivor from typed slice, got %v", got)
	}
}

func TestIsPromptLeakage(t *testing.T) {
	leaky := []string{
		"Short title",
		"Started a new job at Google",
		"  your title here  ",
	}
	for _, text := range leaky {
		if !IsPromptLeakage(text) {
			t.Errorf("expected %q to be flagged as leakage", text)
		}
	}

	clean := []string{
		"Moved to Lisbon",
		"Started therapy",
		"",
	}
	for _, text := range clean {
		if IsPromptLeakage(text) {
			t.Errorf("did not expect %q to be flagged", text)
		}
	}
}

func TestSanitizeTitle(t *testing.T) {
	if got := SanitizeTitle("   "); got != nil {
		t.Errorf("expected nil for whitespace title, got %q", *got)
	}

	long := ""
	for i := 0; i < 30; i++ {
		long += "0123456789"
	}
	got := SanitizeTitle(long)
	if got == nil || len(*got) != 200 {
		t.Errorf("expected 200-char cap, got %d", len(*got))
	}
}

func TestValidatePerson_DropsPlaceholders(t *testing.T) {
	for _, name := range []string{"user", "Me", "SOMEONE", "", "  "} {
		if got := ValidatePerson(journal.MentionCandidate{Name: name}); got != nil {
			t.Errorf("expected %q to be dropped, got %+v", name, got)
		}
	}

	got := ValidatePerson(journal.MentionCandidate{
		Name:         "  Sarah  ",
		Relationship: " sister ",
		Sentiment:    "positive",
	})
	if got == nil || got.Name != "Sarah" || got.Relationship != "sister" {
		t.Errorf("unexpected cleaned mention: %+v", got)
	}
}

func TestValidateLifeEvent_FullPass(t *testing.T) {
	rules := DefaultRules()

	event := rules.ValidateLifeEvent(journal.LifeEventCandidate{
		Title:          "  Moved to Berlin  ",
		Description:    "Relocated for work",
		Significance:   15,
		Category:       "big move",
		Emotions:       []any{"excited", ""},
		PeopleInvolved: []any{"Anna"},
		EventDate:      "2019",
	}, "entry-1")

	if event == nil {
		t.Fatal("expected event to survive validation")
	}
	if event.Title != "Moved to Berlin" {
		t.Errorf("title not trimmed: %q", event.Title)
	}
	if event.TitleKey != "moved to berlin" {
		t.Errorf("unexpected title key: %q", event.TitleKey)
	}
	if event.Significance != 10 {
		t.Errorf("significance not clamped: %d", event.Significance)
	}
	if event.Category != "personal" {
		t.Errorf("unexpected category: %q", event.Category)
	}
	if len(event.Emotions) != 1 || event.Emotions[0] != "excited" {
		t.Errorf("unexpected emotions: %v", event.Emotions)
	}
	if event.EventDate == nil || *event.EventDate != "2019-01-01" {
		t.Errorf("unexpected event date: %v", event.EventDate)
	}
	if event.SourceEntryID != "entry-1" {
		t.Errorf("unexpected source entry: %q", event.SourceEntryID)
	}
}

func TestValidateLifeEvent_Rejections(t *testing.T) {
	rules := DefaultRules()

	if got := rules.ValidateLifeEvent(journal.LifeEventCandidate{Title: "   "}, "e"); got != nil {
		t.Error("expected empty title to reject the event")
	}
	if got := rules.ValidateLifeEvent(journal.LifeEventCandidate{Title: "Short title"}, "e"); got != nil {
		t.Error("expected leakage title to reject the event")
	}

	// Out-of-window date nulls the date but keeps the event
	got := rules.ValidateLifeEvent(journal.LifeEventCandidate{
		Title:     "Childhood memory",
		EventDate: "1492-01-01",
	}, "e")
	if got == nil {
		t.Fatal("expected event to survive with nil date")
	}
	if got.EventDate != nil {
		t.Errorf("expected nil date, got %q", *got.EventDate)
	}
}
