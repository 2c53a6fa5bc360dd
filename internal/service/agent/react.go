package agent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

const finalAnswerMarker = "Final Answer:"

var (
	actionPattern    = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyPrefix = regexp.MustCompile(`Action\s*\d*\s*:`)
)

// ReActPlanner drives a chat model with the text Thought/Action/Observation format.
type ReActPlanner struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewReActPlanner compiles the ReAct prompt chain around chatModel.
func NewReActPlanner(ctx context.Context, chatModel model.BaseChatModel) (*ReActPlanner, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	template := prompt.FromMessages(schema.FString, schema.UserMessage(reactTemplate))

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile react chain: %w", err)
	}
	return &ReActPlanner{chain: runnable}, nil
}

// Next implements Planner.
func (p *ReActPlanner) Next(ctx context.Context, pad *Scratchpad) (Step, error) {
	scratch := renderScratchpad(pad.Steps)
	if pad.Final {
		scratch += forceFinalSuffix
	}

	msg, err := p.chain.Invoke(ctx, map[string]any{
		"role":             string(pad.Role),
		"tool_names":       renderToolNames(pad.Catalog),
		"tools":            renderTools(pad.Catalog),
		"chat_history":     renderHistory(pad.History),
		"input":            pad.Input,
		"agent_scratchpad": scratch,
	}, compose.WithChatModelOption(model.WithStop([]string{"\nObservation"})))
	if err != nil {
		return Step{}, fmt.Errorf("react planner invoke failed: %w", err)
	}
	if msg == nil {
		return Step{}, &ParseError{Reason: "empty model output"}
	}

	step, err := ParseReAct(msg.Content)
	if err != nil {
		return Step{}, err
	}
	if pad.Final && !step.Done {
		return Step{}, &ParseError{Output: msg.Content, Reason: "tool call requested after the step limit"}
	}
	return step, nil
}

// ParseReAct reads one Thought/Action/Action Input block or a Final Answer.
func ParseReAct(text string) (Step, error) {
	hasFinal := strings.Contains(text, finalAnswerMarker)

	if m := actionPattern.FindStringSubmatch(text); m != nil {
		if hasFinal {
			return Step{}, &ParseError{Output: text, Reason: "output holds both a final answer and an action"}
		}
		name := strings.TrimSpace(m[1])
		input := strings.Trim(strings.TrimSpace(m[2]), "\"")
		return Step{
			Thought: thoughtOf(text),
			Tool:    name,
			Input:   input,
			Log:     text,
		}, nil
	}

	if hasFinal {
		parts := strings.Split(text, finalAnswerMarker)
		return Step{
			Thought:     thoughtOf(text),
			FinalAnswer: strings.TrimSpace(parts[len(parts)-1]),
			Done:        true,
			Log:         text,
		}, nil
	}

	reason := "missing 'Action:' after 'Thought:'"
	switch {
	case actionOnlyPrefix.MatchString(text):
		reason = "missing 'Action Input:' after 'Action:'"
	case strings.TrimSpace(text) == "":
		reason = "empty model output"
	}
	return Step{}, &ParseError{Output: text, Reason: reason}
}

func thoughtOf(text string) string {
	idx := strings.Index(text, "Action")
	if final := strings.Index(text, finalAnswerMarker); final >= 0 && (idx < 0 || final < idx) {
		idx = final
	}
	if idx < 0 {
		idx = len(text)
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text[:idx]), "Thought:"))
}
