package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/zhouzirui/workshop-copilot/backend/internal/service/tools"
)

// ToolCallingPlanner relies on the chat model's native tool calling.
type ToolCallingPlanner struct {
	chatModel model.BaseChatModel
	infos     []*schema.ToolInfo
}

// NewToolCallingPlanner returns a planner offering infos to chatModel on every call.
func NewToolCallingPlanner(chatModel model.BaseChatModel, infos []*schema.ToolInfo) (*ToolCallingPlanner, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	return &ToolCallingPlanner{chatModel: chatModel, infos: infos}, nil
}

// Next implements Planner. Only the first tool call of a reply is used.
func (p *ToolCallingPlanner) Next(ctx context.Context, pad *Scratchpad) (Step, error) {
	messages := p.buildMessages(pad)

	var opts []model.Option
	if !pad.Final && len(p.infos) > 0 {
		opts = append(opts, model.WithTools(p.infos))
	}

	msg, err := p.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return Step{}, fmt.Errorf("tool calling planner generate failed: %w", err)
	}
	if msg == nil {
		return Step{}, &ParseError{Reason: "empty model output"}
	}

	content := strings.TrimSpace(msg.Content)
	if len(msg.ToolCalls) == 0 {
		if content == "" {
			return Step{}, &ParseError{Output: msg.Content, Reason: "reply has neither content nor tool calls"}
		}
		return Step{FinalAnswer: content, Done: true, Log: msg.Content}, nil
	}
	if pad.Final {
		return Step{}, &ParseError{Output: msg.Content, Reason: "tool call requested after the step limit"}
	}

	call := msg.ToolCalls[0]
	if strings.TrimSpace(call.Function.Name) == "" {
		return Step{}, &ParseError{Output: call.Function.Arguments, Reason: "tool call without a name"}
	}
	callID := call.ID
	if callID == "" {
		callID = uuid.NewString()
	}
	return Step{
		Thought: content,
		Tool:    call.Function.Name,
		Input:   tools.DecodeInput(call.Function.Arguments),
		Log:     call.Function.Arguments,
		CallID:  callID,
	}, nil
}

func (p *ToolCallingPlanner) buildMessages(pad *Scratchpad) []*schema.Message {
	system := fmt.Sprintf(toolCallingSystemPrompt, pad.Role, pad.Role.Describe(), renderHistory(pad.History))

	messages := make([]*schema.Message, 0, 2+2*len(pad.Steps))
	messages = append(messages, schema.SystemMessage(system), schema.UserMessage(pad.Input))

	for _, rec := range pad.Steps {
		if rec.Step.CallID == "" {
			messages = append(messages,
				schema.AssistantMessage(rec.Step.Log, nil),
				schema.UserMessage(rec.Observation),
			)
			continue
		}
		call := schema.ToolCall{
			ID: rec.Step.CallID,
			Function: schema.FunctionCall{
				Name:      rec.Step.Tool,
				Arguments: rec.Step.Log,
			},
		}
		messages = append(messages,
			schema.AssistantMessage(rec.Step.Thought, []schema.ToolCall{call}),
			schema.ToolMessage(rec.Observation, rec.Step.CallID),
		)
	}

	if pad.Final {
		messages = append(messages, schema.UserMessage(strings.TrimSpace(forceFinalSuffix)))
	}
	return messages
}
