package people

import "strings"

// ============================================================================
// Sentiment Scoring
// ============================================================================

// sentimentScores maps known sentiment labels onto the [1,10] scale
var sentimentScores = map[string]int{
	"positive": 8,
	"negative": 2,
	"neutral":  5,
	"mixed":    5,

	"joy":       9,
	"love":      9,
	"happy":     8,
	"grateful":  8,
	"excited":   8,
	"proud":     8,
	"hopeful":   7,
	"calm":      7,
	"content":   7,
	"nostalgic": 6,

	"conflicted":  4,
	"anxious":     3,
	"worried":     3,
	"frustrated":  3,
	"jealous":     3,
	"guilty":      3,
	"sad":         2,
	"angry":       2,
	"hurt":        2,
	"ashamed":     2,
	"resentful":   2,
	"betrayed":    1,
}

// Keyword lists for labels the table doesn't know
var positiveWords = []string{
	"good", "great", "happy", "love", "joy", "warm", "kind", "support",
	"fun", "laugh", "appreciate", "trust", "safe", "close",
}

var negativeWords = []string{
	"bad", "hate", "angry", "hurt", "toxic", "fight", "argue", "annoy",
	"stress", "drain", "betray", "ignore", "cold", "distant",
}

// ScoreSentiment maps a sentiment label to [1,10]. Known labels hit the
// table; anything else falls back to counting positive vs negative keywords
// in the label text, with 5 (neutral) on a tie or no match.
func ScoreSentiment(label string) int {
	lower := strings.ToLower(strings.TrimSpace(label))
	if lower == "" {
		return 5
	}

	if score, ok := sentimentScores[lower]; ok {
		return score
	}

	positive := 0
	for _, word := range positiveWords {
		if strings.Contains(lower, word) {
			positive++
		}
	}
	negative := 0
	for _, word := range negativeWords {
		if strings.Contains(lower, word) {
			negative++
		}
	}

	switch {
	case positive > negative:
		return 7
	case negative > positive:
		return 3
	default:
		return 5
	}
}
