package emotion

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Label names one of the emotions scored by the analyzer.
type Label string

const (
	Happy    Label = "Happy"
	Angry    Label = "Angry"
	Surprise Label = "Surprise"
	Sad      Label = "Sad"
	Fear     Label = "Fear"
)

// Labels returns the emotions in reporting order.
func Labels() []Label {
	return []Label{Happy, Angry, Surprise, Sad, Fear}
}

// Scores holds the share of emotional cues per label. Shares sum to 1 when any cue was
// found and are all zero otherwise.
type Scores map[Label]float64

// String renders every label in reporting order, e.g. {Happy: 0.00, Angry: 0.50, ...}.
func (s Scores) String() string {
	parts := make([]string, 0, len(Labels()))
	for _, label := range Labels() {
		parts = append(parts, fmt.Sprintf("%s: %.2f", label, s[label]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Fields flattens the scores for structured logging.
func (s Scores) Fields() map[string]any {
	fields := make(map[string]any, len(Labels()))
	for _, label := range Labels() {
		fields[string(label)] = s[label]
	}
	return fields
}

var keywordBuckets = map[Label][]string{
	Happy: {
		"happy", "glad", "great", "awesome", "amazing", "excellent", "love", "loved", "enjoy", "enjoyed",
		"thanks", "thank you", "pleased", "delighted", "excited", "wonderful", "fantastic", "proud",
		"success", "successful", "win", "celebrate", "good news", "satisfied", "smooth",
	},
	Angry: {
		"angry", "furious", "annoyed", "annoying", "irritated", "frustrated", "frustrating", "mad",
		"rage", "outraged", "fed up", "sick of", "ridiculous", "unacceptable", "hate", "pissed",
		"infuriating", "blame", "complain", "complaint", "terrible", "awful", "useless", "broken",
	},
	Surprise: {
		"surprised", "surprising", "unexpected", "unexpectedly", "shocked", "shocking", "astonished",
		"wow", "suddenly", "out of nowhere", "didn't expect", "did not expect", "can't believe",
		"cannot believe", "amazed",
	},
	Sad: {
		"sad", "unhappy", "disappointed", "disappointing", "depressed", "down", "upset", "hurt",
		"lonely", "miss", "missed", "lost", "losing", "regret", "sorry", "burned out", "burnout",
		"exhausted", "tired", "demotivated", "hopeless", "struggle", "struggling", "cry",
	},
	Fear: {
		"afraid", "scared", "fear", "worried", "worry", "anxious", "anxiety", "nervous", "panic",
		"risk", "risky", "threat", "uncertain", "uncertainty", "concerned", "concern", "dread",
		"layoff", "layoffs", "insecure", "terrified",
	},
}

// Analyze scores text against the emotion lexicon. Single words match whole tokens,
// phrases match as substrings of the normalised text.
func Analyze(text string) Scores {
	normalized := normalize(text)
	tokens := tokenize(normalized)

	counts := make(map[Label]int, len(keywordBuckets))
	total := 0
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			var hits int
			if strings.Contains(word, " ") {
				hits = strings.Count(normalized, word)
			} else {
				hits = tokens[word]
			}
			counts[label] += hits
			total += hits
		}
	}

	scores := make(Scores, len(Labels()))
	for _, label := range Labels() {
		if total == 0 {
			scores[label] = 0
			continue
		}
		scores[label] = round2(float64(counts[label]) / float64(total))
	}
	return scores
}

func normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	lowered = strings.ReplaceAll(lowered, "’", "'")
	return strings.Join(strings.Fields(lowered), " ")
}

func tokenize(normalized string) map[string]int {
	tokens := make(map[string]int)
	for _, tok := range strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		tokens[strings.Trim(tok, "'")]++
	}
	return tokens
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
