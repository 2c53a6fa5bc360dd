package agent

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/workshop-copilot/backend/internal/model/role"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/session"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/tools"
)

const (
	historyLimit  = 10
	observationOn = "\nObservation: "
	// ParseErrorObservation is fed back to the planner after unparsable output.
	ParseErrorObservation = "Invalid or incomplete response"
	// StopAnswer is used when no final answer is reached.
	StopAnswer = "Agent stopped due to iteration limit or time limit."
)

const reactTemplate = `
You are a smart assistant to facilitator, listening to conversations between a facilitator, HR, and Strategy team.
Your goal is to assist by using tools when necessary or providing a brief acknowledgement.
You are listening to {role} right now.
Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [{tool_names}]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

You have access to the following tools:
{tools}

Chat history:
{chat_history}

New input:
{input}

Thought:{agent_scratchpad}
`

const toolCallingSystemPrompt = `You are a smart assistant to facilitator, listening to conversations between a facilitator, HR, and Strategy team.
Your goal is to assist by using tools when necessary or providing a brief acknowledgement.
You are listening to %s (%s) right now.
Call at most one tool at a time. When you have enough information, reply with the final answer as plain text.

Chat history:
%s`

const forceFinalSuffix = "\n\nI now need to return a final answer based on the previous steps:"

func renderToolNames(catalog []tools.Tool) string {
	names := make([]string, 0, len(catalog))
	for _, t := range catalog {
		names = append(names, string(t.ID))
	}
	return strings.Join(names, ", ")
}

func renderTools(catalog []tools.Tool) string {
	lines := make([]string, 0, len(catalog))
	for _, t := range catalog {
		lines = append(lines, fmt.Sprintf("%s: %s", t.ID, t.Description))
	}
	return strings.Join(lines, "\n")
}

// renderHistory formats the most recent chat turns and per-role utterances.
func renderHistory(history session.CombinedHistory) string {
	var b strings.Builder

	turns := tail(history.ChatHistory, historyLimit)
	b.WriteString("Assistant replies:")
	if len(turns) == 0 {
		b.WriteString(" none")
	}
	for _, turn := range turns {
		fmt.Fprintf(&b, "\n- input: %s\n  output: %s", turn.Input, turn.Output)
	}

	b.WriteString("\nWorkshop utterances:")
	for _, r := range role.All() {
		entries := tail(history.WorkshopHistory[r], historyLimit)
		fmt.Fprintf(&b, "\n%s:", r)
		if len(entries) == 0 {
			b.WriteString(" none")
		}
		for _, e := range entries {
			fmt.Fprintf(&b, "\n- [%s] %s", e.Timestamp, e.Message)
		}
	}
	return b.String()
}

// renderScratchpad formats prior steps the way the ReAct prompt expects them.
func renderScratchpad(steps []StepRecord) string {
	var b strings.Builder
	for _, rec := range steps {
		b.WriteString(rec.Step.Log)
		b.WriteString(observationOn)
		b.WriteString(rec.Observation)
		b.WriteString("\nThought: ")
	}
	return b.String()
}

func tail[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
