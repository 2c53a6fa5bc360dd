package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/workshop-copilot/backend/internal/logging"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/agent"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/session"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/tools"
)

const defaultMaxSteps = 3

// Memory is the session store as seen by the router.
type Memory interface {
	RecordUtterance(ctx context.Context, roleName, text string, at time.Time) (session.Utterance, error)
	CombinedHistory(ctx context.Context) session.CombinedHistory
	RecordChatTurn(ctx context.Context, input, output string) error
}

// Toolbox is the tool registry as seen by the router.
type Toolbox interface {
	Catalog() []tools.Tool
	Invoke(ctx context.Context, name, input string) (string, error)
}

// Router answers utterances by running a planner against the toolbox.
type Router struct {
	memory   Memory
	tools    Toolbox
	planner  Planner
	maxSteps int
	log      *logrus.Entry
}

// NewRouter wires a router. maxSteps <= 0 falls back to 3.
func NewRouter(memory Memory, toolbox Toolbox, planner Planner, maxSteps int) (*Router, error) {
	if memory == nil || toolbox == nil || planner == nil {
		return nil, errors.New("memory, toolbox and planner are required")
	}
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	return &Router{
		memory:   memory,
		tools:    toolbox,
		planner:  planner,
		maxSteps: maxSteps,
		log:      logging.For("agent"),
	}, nil
}

// Ask records the utterance, runs the planner loop and returns the answer with the
// tool trace. The chat turn is only recorded when the loop succeeds.
func (r *Router) Ask(ctx context.Context, roleName, text string) (*agent.Response, error) {
	utterance, err := r.memory.RecordUtterance(ctx, roleName, text, time.Time{})
	if err != nil {
		return nil, err
	}

	log := r.log.WithFields(logrus.Fields{"request_id": uuid.NewString(), "role": utterance.Role})
	pad := &Scratchpad{
		Role:    utterance.Role,
		Input:   text,
		History: r.memory.CombinedHistory(ctx),
		Catalog: r.tools.Catalog(),
	}

	trace := make([]agent.ToolCall, 0)
	final, finished := "", false

	for i := 0; i < r.maxSteps; i++ {
		step, err := r.planner.Next(ctx, pad)
		if err != nil {
			if !errors.Is(err, ErrPlannerParse) {
				return nil, fmt.Errorf("planner step %d: %w", i+1, err)
			}
			log.WithError(err).Warn("planner output rejected")
			pad.Steps = append(pad.Steps, StepRecord{Step: rejectedStep(err), Observation: ParseErrorObservation})
			continue
		}

		if step.Done {
			final, finished = step.FinalAnswer, true
			break
		}

		observation, err := r.tools.Invoke(ctx, step.Tool, step.Input)
		if err != nil {
			log.WithError(err).WithField("tool", step.Tool).Error("tool invocation failed")
			return nil, fmt.Errorf("%w: %w", ErrToolInvocation, err)
		}
		log.WithField("tool", step.Tool).Info("tool invoked")

		trace = append(trace, agent.ToolCall{
			ToolUsed:     step.Tool,
			ToolInput:    step.Input,
			ToolResponse: observation,
		})
		pad.Steps = append(pad.Steps, StepRecord{Step: step, Observation: observation})
	}

	if !finished {
		final = r.forceFinal(ctx, pad, log)
	}

	if err := r.memory.RecordChatTurn(ctx, text, final); err != nil {
		return nil, fmt.Errorf("record chat turn: %w", err)
	}

	log.WithFields(logrus.Fields{"tools": len(trace), "steps": len(pad.Steps)}).Info("utterance answered")
	return &agent.Response{
		FinalAnswer:   final,
		ActionTaken:   len(trace) > 0,
		ToolsSequence: trace,
	}, nil
}

// forceFinal asks the planner once more for an answer with tools withheld.
func (r *Router) forceFinal(ctx context.Context, pad *Scratchpad, log *logrus.Entry) string {
	pad.Final = true
	defer func() { pad.Final = false }()

	step, err := r.planner.Next(ctx, pad)
	if err != nil || !step.Done {
		log.WithError(err).Warn("step limit reached without a final answer")
		return StopAnswer
	}
	return step.FinalAnswer
}

func rejectedStep(err error) Step {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return Step{Log: parseErr.Output}
	}
	return Step{}
}
