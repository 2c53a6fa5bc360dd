// Package agent routes workshop utterances through a planner that may call tools before
// producing a final answer.
package agent

import (
	"context"
	"errors"

	"github.com/zhouzirui/workshop-copilot/backend/internal/model/role"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/session"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/tools"
)

var (
	// ErrPlannerParse marks planner output that is neither a tool call nor a final answer.
	ErrPlannerParse = errors.New("planner output could not be parsed")
	// ErrToolInvocation marks a failed tool call; the request fails with it.
	ErrToolInvocation = errors.New("tool invocation failed")
)

// ParseError carries the raw planner output that failed to parse.
type ParseError struct {
	Output string
	Reason string
}

func (e *ParseError) Error() string {
	return ErrPlannerParse.Error() + ": " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return ErrPlannerParse
}

// Step is one planner decision: either a tool call or a final answer.
type Step struct {
	Thought     string
	Tool        string
	Input       string
	FinalAnswer string
	Done        bool
	// Log is the raw planner output for the step.
	Log string
	// CallID links a native tool call to its result message.
	CallID string
}

// StepRecord is a completed step with what the planner observed after it.
type StepRecord struct {
	Step        Step
	Observation string
}

// Scratchpad is everything a planner sees for one decision.
type Scratchpad struct {
	Role    role.Role
	Input   string
	History session.CombinedHistory
	Catalog []tools.Tool
	Steps   []StepRecord
	// Final asks for an answer without further tool use.
	Final bool
}

// Planner decides the next step for an utterance.
type Planner interface {
	Next(ctx context.Context, pad *Scratchpad) (Step, error)
}
