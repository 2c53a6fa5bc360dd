package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// LLMIntentClassifier performs zero-shot intent classification with a chat model. It is
// used when no hosted zero-shot model is configured.
type LLMIntentClassifier struct {
	classifier compose.Runnable[map[string]any, *schema.Message]
}

// NewLLMIntentClassifier compiles the classification chain around chatModel.
func NewLLMIntentClassifier(ctx context.Context, chatModel model.BaseChatModel) (*LLMIntentClassifier, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(intentSystemPrompt),
		schema.UserMessage(intentUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile intent classifier chain: %w", err)
	}
	return &LLMIntentClassifier{classifier: runnable}, nil
}

// ZeroShot implements IntentClassifier. A label outside candidates is returned as-is
// so callers can apply their own membership check.
func (c *LLMIntentClassifier) ZeroShot(ctx context.Context, text string, candidates []string) (Intent, error) {
	msg, err := c.classifier.Invoke(ctx, map[string]any{
		"labels":    strings.Join(candidates, ", "),
		"utterance": strings.TrimSpace(text),
	})
	if err != nil {
		return Intent{}, fmt.Errorf("intent classifier invoke failed: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return Intent{}, fmt.Errorf("intent classifier returned empty output")
	}

	result, err := parseClassifierOutput(msg.Content)
	if err != nil {
		return Intent{}, fmt.Errorf("intent classifier output parse failed: %w", err)
	}

	return Intent{Label: matchCandidate(result.Label, candidates), Score: clampScore(result.Score)}, nil
}

// parseClassifierOutput extracts the first JSON object from the model output.
func parseClassifierOutput(content string) (*Intent, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &Intent{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func matchCandidate(label string, candidates []string) string {
	label = strings.TrimSpace(label)
	for _, cand := range candidates {
		if strings.EqualFold(cand, label) {
			return cand
		}
	}
	return label
}

func clampScore(val float64) float64 {
	if val < 0 {
		return 0
	}
	if val > 1 {
		return 1
	}
	return val
}

const intentSystemPrompt = "You are a zero-shot intent classifier for workshop conversations. Pick the single candidate label that best describes the speaker's intent and estimate how well it fits.\nOutput only one JSON object with the fields label (exactly one of the candidate labels) and score (a number between 0 and 1). Do not output anything else."

const intentUserPrompt = "Candidate labels: {labels}\n\nUtterance:\n{utterance}\n\nReturn the JSON."
