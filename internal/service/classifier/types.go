// Package classifier provides the NLP backends used by the pain-point chain and the
// retrieval engines: hosted Hugging Face models, a lexicon fallback and an LLM-backed
// zero-shot classifier.
package classifier

import (
	"context"

	"github.com/zhouzirui/workshop-copilot/backend/internal/analysis/emotion"
)

// Sentiment is a binary polarity label with its confidence.
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Intent is the best matching candidate label of a zero-shot classification.
type Intent struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Entity is a named-entity span. Start and End are rune offsets into the source text.
type Entity struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score,omitempty"`
}

// SentimentClassifier scores the polarity of a text.
type SentimentClassifier interface {
	Sentiment(ctx context.Context, text string) (Sentiment, error)
}

// EmotionAnalyzer returns per-emotion scores for a text.
type EmotionAnalyzer interface {
	Emotions(ctx context.Context, text string) (emotion.Scores, error)
}

// IntentClassifier picks the best label for a text among candidates.
type IntentClassifier interface {
	ZeroShot(ctx context.Context, text string, candidates []string) (Intent, error)
}

// EntityRecognizer extracts named entities.
type EntityRecognizer interface {
	Entities(ctx context.Context, text string) ([]Entity, error)
}
