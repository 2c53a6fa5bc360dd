package agent

// ToolCall is one entry of the tool trace returned to clients.
type ToolCall struct {
	ToolUsed     string `json:"tool_used"`
	ToolInput    any    `json:"tool_input"`
	ToolResponse string `json:"tool_response"`
}

// Response is the structured answer for a single utterance.
type Response struct {
	FinalAnswer   string     `json:"final_answer"`
	ActionTaken   bool       `json:"action_taken"`
	ToolsSequence []ToolCall `json:"tools_sequence"`
}
