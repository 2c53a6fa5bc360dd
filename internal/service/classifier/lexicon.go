package classifier

import (
	"context"
	"math"

	"github.com/zhouzirui/workshop-copilot/backend/internal/analysis/emotion"
)

// Lexicon serves emotion scores from the keyword analyzer and derives a coarse
// sentiment from them when no hosted model is configured.
type Lexicon struct{}

// NewLexicon returns the lexicon-backed classifier.
func NewLexicon() *Lexicon {
	return &Lexicon{}
}

// Emotions implements EmotionAnalyzer.
func (l *Lexicon) Emotions(_ context.Context, text string) (emotion.Scores, error) {
	return emotion.Analyze(text), nil
}

// Sentiment implements SentimentClassifier. Text without emotional cues is reported as
// POSITIVE with a score of 0.5. When positive and negative cues are both present the
// score is the margin between them, so conflicted remarks come back with low
// confidence and an even split is reported as NEUTRAL.
func (l *Lexicon) Sentiment(_ context.Context, text string) (Sentiment, error) {
	scores := emotion.Analyze(text)
	negative := scores[emotion.Angry] + scores[emotion.Sad] + scores[emotion.Fear]
	positive := scores[emotion.Happy]

	if negative > 0 && positive > 0 {
		margin := math.Round(math.Abs(positive-negative)*100) / 100
		switch {
		case negative > positive:
			return Sentiment{Label: "NEGATIVE", Score: margin}, nil
		case positive > negative:
			return Sentiment{Label: "POSITIVE", Score: margin}, nil
		default:
			return Sentiment{Label: "NEUTRAL", Score: margin}, nil
		}
	}
	if negative > positive {
		return Sentiment{Label: "NEGATIVE", Score: 0.5 + negative/2}, nil
	}
	return Sentiment{Label: "POSITIVE", Score: 0.5 + positive/2}, nil
}
