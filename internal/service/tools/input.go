package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeInput extracts the input argument from a tool-call payload. Payloads that are
// not a JSON object are used verbatim.
func DecodeInput(arguments string) string {
	trimmed := strings.TrimSpace(arguments)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return trimmed
	}
	switch v := args["input"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
