// Package painpoint flags utterances that signal frustration or complaints by running
// a fixed, priority-ordered chain of detectors.
package painpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/workshop-copilot/backend/internal/analysis/emotion"
	"github.com/zhouzirui/workshop-copilot/backend/internal/logging"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/classifier"
)

// Method names the stage that flagged an utterance.
type Method string

const (
	MethodSentiment Method = "sentiment"
	MethodEmotion   Method = "emotion"
	MethodIntent    Method = "intent"
	MethodNER       Method = "ner"
)

const (
	sentimentThreshold = 0.4
	emotionThreshold   = 0.3
	intentThreshold    = 0.5
	nerWindow          = 20
)

// IntentLabels are the zero-shot candidates treated as complaints.
var IntentLabels = []string{"Complaint", "Issue", "Problem", "Frustration", "Bug report"}

var complaintKeywords = []string{"issue", "problem", "challenge", "bug", "error"}

// Finding describes a flagged utterance.
type Finding struct {
	Text    string
	Method  Method
	Summary string
	Fields  map[string]any
}

// Recorder persists findings.
type Recorder interface {
	Record(ctx context.Context, finding Finding) error
}

// Stages bundles the detector backends. A nil stage is skipped.
type Stages struct {
	Sentiment classifier.SentimentClassifier
	Emotion   classifier.EmotionAnalyzer
	Intent    classifier.IntentClassifier
	Entities  classifier.EntityRecognizer
}

// Chain runs the stages in priority order and stops at the first flag.
type Chain struct {
	stages   Stages
	recorder Recorder
	log      *logrus.Entry
}

// NewChain returns a chain that records findings with recorder.
func NewChain(stages Stages, recorder Recorder) *Chain {
	return &Chain{stages: stages, recorder: recorder, log: logging.For("painpoint")}
}

// Detect reports whether text is a pain point. Only the first flagging stage is recorded.
// Any backend or recorder failure aborts the chain.
func (c *Chain) Detect(ctx context.Context, text string) (Finding, bool, error) {
	detectors := []func(context.Context, string) (Finding, bool, error){
		c.detectSentiment,
		c.detectEmotion,
		c.detectIntent,
		c.detectEntities,
	}

	for _, detect := range detectors {
		finding, flagged, err := detect(ctx, text)
		if err != nil {
			return Finding{}, false, err
		}
		if !flagged {
			continue
		}

		finding.Text = text
		if c.recorder != nil {
			if err := c.recorder.Record(ctx, finding); err != nil {
				return Finding{}, false, fmt.Errorf("record pain point: %w", err)
			}
		}
		c.log.WithField("method", finding.Method).Info(finding.Summary)
		return finding, true, nil
	}
	return Finding{}, false, nil
}

func (c *Chain) detectSentiment(ctx context.Context, text string) (Finding, bool, error) {
	if c.stages.Sentiment == nil {
		return Finding{}, false, nil
	}
	sentiment, err := c.stages.Sentiment.Sentiment(ctx, text)
	if err != nil {
		return Finding{}, false, fmt.Errorf("sentiment stage: %w", err)
	}
	// Low-confidence calls of either polarity are flagged as well.
	if !strings.HasPrefix(strings.ToUpper(sentiment.Label), "NEG") && sentiment.Score >= sentimentThreshold {
		return Finding{}, false, nil
	}
	return Finding{
		Method:  MethodSentiment,
		Summary: fmt.Sprintf("Negative sentiment detected (%.2f)", sentiment.Score),
		Fields:  map[string]any{"score": sentiment.Score},
	}, true, nil
}

func (c *Chain) detectEmotion(ctx context.Context, text string) (Finding, bool, error) {
	if c.stages.Emotion == nil {
		return Finding{}, false, nil
	}
	scores, err := c.stages.Emotion.Emotions(ctx, text)
	if err != nil {
		return Finding{}, false, fmt.Errorf("emotion stage: %w", err)
	}
	if scores[emotion.Angry] <= emotionThreshold && scores[emotion.Sad] <= emotionThreshold {
		return Finding{}, false, nil
	}
	return Finding{
		Method:  MethodEmotion,
		Summary: "Emotion flagged: " + scores.String(),
		Fields:  scores.Fields(),
	}, true, nil
}

func (c *Chain) detectIntent(ctx context.Context, text string) (Finding, bool, error) {
	if c.stages.Intent == nil {
		return Finding{}, false, nil
	}
	intent, err := c.stages.Intent.ZeroShot(ctx, text, IntentLabels)
	if err != nil {
		return Finding{}, false, fmt.Errorf("intent stage: %w", err)
	}
	if !isIntentLabel(intent.Label) || intent.Score <= intentThreshold {
		return Finding{}, false, nil
	}
	return Finding{
		Method:  MethodIntent,
		Summary: fmt.Sprintf("Intent classified as %s (%.2f)", intent.Label, intent.Score),
		Fields:  map[string]any{"label": intent.Label, "score": intent.Score},
	}, true, nil
}

func (c *Chain) detectEntities(ctx context.Context, text string) (Finding, bool, error) {
	if c.stages.Entities == nil {
		return Finding{}, false, nil
	}
	entities, err := c.stages.Entities.Entities(ctx, text)
	if err != nil {
		return Finding{}, false, fmt.Errorf("ner stage: %w", err)
	}

	lowered := []rune(strings.ToLower(text))
	for _, ent := range entities {
		if ent.Label != "PRODUCT" && ent.Label != "ORG" {
			continue
		}
		if !hasComplaintContext(lowered, ent.Start, ent.End) {
			continue
		}
		return Finding{
			Method:  MethodNER,
			Summary: fmt.Sprintf("NER flagged entity %s with complaint context", ent.Text),
			Fields:  map[string]any{"entity": ent.Text},
		}, true, nil
	}
	return Finding{}, false, nil
}

// hasComplaintContext looks for a complaint keyword within nerWindow runes of the span.
func hasComplaintContext(lowered []rune, start, end int) bool {
	from := max(start-nerWindow, 0)
	to := min(end+nerWindow, len(lowered))
	if from >= to {
		return false
	}
	window := string(lowered[from:to])
	for _, keyword := range complaintKeywords {
		if strings.Contains(window, keyword) {
			return true
		}
	}
	return false
}

func isIntentLabel(label string) bool {
	for _, candidate := range IntentLabels {
		if candidate == label {
			return true
		}
	}
	return false
}
