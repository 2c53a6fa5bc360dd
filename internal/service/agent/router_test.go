package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/workshop-copilot/backend/internal/model/role"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/session"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/tools"
)

type fakeMemory struct {
	utterances []session.Utterance
	turns      []session.ChatTurn
}

func (m *fakeMemory) RecordUtterance(_ context.Context, roleName, text string, _ time.Time) (session.Utterance, error) {
	r, err := role.Parse(roleName)
	if err != nil {
		return session.Utterance{}, err
	}
	u := session.Utterance{Role: r, Text: text, Timestamp: "2025-06-02 10:00"}
	m.utterances = append(m.utterances, u)
	return u, nil
}

func (m *fakeMemory) CombinedHistory(context.Context) session.CombinedHistory {
	return session.CombinedHistory{ChatHistory: m.turns, WorkshopHistory: session.NewWorkshopLog()}
}

func (m *fakeMemory) RecordChatTurn(_ context.Context, input, output string) error {
	m.turns = append(m.turns, session.ChatTurn{Input: input, Output: output})
	return nil
}

type fakeToolbox struct {
	calls []string
	fail  error
}

func (f *fakeToolbox) Catalog() []tools.Tool {
	return []tools.Tool{{ID: tools.Search, Description: "web"}, {ID: tools.PainPointDetector, Description: "pain"}}
}

func (f *fakeToolbox) Invoke(_ context.Context, name, input string) (string, error) {
	f.calls = append(f.calls, name)
	if name != string(tools.Search) && name != string(tools.PainPointDetector) {
		return "", fmt.Errorf("%w: %q", tools.ErrUnknownTool, name)
	}
	if f.fail != nil {
		return "", f.fail
	}
	return name + " saw " + input, nil
}

type scriptedPlanner struct {
	steps []func(pad *Scratchpad) (Step, error)
	pads  []Scratchpad
}

func (p *scriptedPlanner) Next(_ context.Context, pad *Scratchpad) (Step, error) {
	snapshot := *pad
	snapshot.Steps = append([]StepRecord(nil), pad.Steps...)
	p.pads = append(p.pads, snapshot)
	if len(p.pads) > len(p.steps) {
		return Step{}, errors.New("script exhausted")
	}
	return p.steps[len(p.pads)-1](pad)
}

func call(tool, input string) func(*Scratchpad) (Step, error) {
	return func(*Scratchpad) (Step, error) {
		return Step{Tool: tool, Input: input, Log: "Action: " + tool + "\nAction Input: " + input}, nil
	}
}

func answer(text string) func(*Scratchpad) (Step, error) {
	return func(*Scratchpad) (Step, error) {
		return Step{FinalAnswer: text, Done: true}, nil
	}
}

func garbage() func(*Scratchpad) (Step, error) {
	return func(*Scratchpad) (Step, error) {
		return Step{}, &ParseError{Output: "hmm", Reason: "no action"}
	}
}

func newTestRouter(t *testing.T, planner Planner, toolbox *fakeToolbox) (*Router, *fakeMemory) {
	t.Helper()
	mem := &fakeMemory{}
	router, err := NewRouter(mem, toolbox, planner, 3)
	require.NoError(t, err)
	return router, mem
}

func TestAskDirectAnswer(t *testing.T) {
	planner := &scriptedPlanner{steps: []func(*Scratchpad) (Step, error){answer("Noted, thanks.")}}
	toolbox := &fakeToolbox{}
	router, mem := newTestRouter(t, planner, toolbox)

	resp, err := router.Ask(context.Background(), "HR", "We finished the leave policy draft.")
	require.NoError(t, err)
	assert.Equal(t, "Noted, thanks.", resp.FinalAnswer)
	assert.False(t, resp.ActionTaken)
	assert.NotNil(t, resp.ToolsSequence)
	assert.Empty(t, resp.ToolsSequence)

	require.Len(t, mem.utterances, 1)
	assert.Equal(t, role.HR, mem.utterances[0].Role)
	assert.Equal(t, []session.ChatTurn{{Input: "We finished the leave policy draft.", Output: "Noted, thanks."}}, mem.turns)
	assert.Equal(t, role.HR, planner.pads[0].Role)
	assert.Len(t, planner.pads[0].Catalog, 2)
}

func TestAskToolThenAnswer(t *testing.T) {
	planner := &scriptedPlanner{steps: []func(*Scratchpad) (Step, error){
		call("PainPointDetector", "the rollout keeps failing"),
		answer("Logged the pain point."),
	}}
	router, _ := newTestRouter(t, planner, &fakeToolbox{})

	resp, err := router.Ask(context.Background(), "strategy", "the rollout keeps failing")
	require.NoError(t, err)
	assert.True(t, resp.ActionTaken)
	require.Len(t, resp.ToolsSequence, 1)
	assert.Equal(t, "PainPointDetector", resp.ToolsSequence[0].ToolUsed)
	assert.Equal(t, "the rollout keeps failing", resp.ToolsSequence[0].ToolInput)
	assert.Equal(t, "PainPointDetector saw the rollout keeps failing", resp.ToolsSequence[0].ToolResponse)

	require.Len(t, planner.pads[1].Steps, 1)
	assert.Equal(t, "PainPointDetector saw the rollout keeps failing", planner.pads[1].Steps[0].Observation)
}

func TestAskStepLimitForcesFinalAnswer(t *testing.T) {
	planner := &scriptedPlanner{steps: []func(*Scratchpad) (Step, error){
		call("Search", "a"), call("Search", "b"), call("Search", "c"),
		func(pad *Scratchpad) (Step, error) {
			if !pad.Final {
				return Step{}, errors.New("expected a forced final call")
			}
			return Step{FinalAnswer: "Here is what I found.", Done: true}, nil
		},
	}}
	toolbox := &fakeToolbox{}
	router, _ := newTestRouter(t, planner, toolbox)

	resp, err := router.Ask(context.Background(), "facilitator", "research OKRs")
	require.NoError(t, err)
	assert.Equal(t, "Here is what I found.", resp.FinalAnswer)
	assert.Len(t, resp.ToolsSequence, 3)
	assert.Len(t, toolbox.calls, 3)
	assert.Len(t, planner.pads, 4)
}

func TestAskStepLimitFallsBackToStopAnswer(t *testing.T) {
	planner := &scriptedPlanner{steps: []func(*Scratchpad) (Step, error){
		call("Search", "a"), call("Search", "b"), call("Search", "c"), garbage(),
	}}
	router, mem := newTestRouter(t, planner, &fakeToolbox{})

	resp, err := router.Ask(context.Background(), "hr", "x")
	require.NoError(t, err)
	assert.Equal(t, StopAnswer, resp.FinalAnswer)
	assert.True(t, resp.ActionTaken)
	require.Len(t, mem.turns, 1)
	assert.Equal(t, StopAnswer, mem.turns[0].Output)
}

func TestAskParseErrorConsumesStepWithoutTrace(t *testing.T) {
	planner := &scriptedPlanner{steps: []func(*Scratchpad) (Step, error){
		garbage(),
		answer("Acknowledged."),
	}}
	router, _ := newTestRouter(t, planner, &fakeToolbox{})

	resp, err := router.Ask(context.Background(), "hr", "x")
	require.NoError(t, err)
	assert.Equal(t, "Acknowledged.", resp.FinalAnswer)
	assert.False(t, resp.ActionTaken)
	assert.Empty(t, resp.ToolsSequence)

	require.Len(t, planner.pads[1].Steps, 1)
	assert.Equal(t, ParseErrorObservation, planner.pads[1].Steps[0].Observation)
	assert.Equal(t, "hmm", planner.pads[1].Steps[0].Step.Log)
}

func TestAskUnknownToolFailsRequest(t *testing.T) {
	planner := &scriptedPlanner{steps: []func(*Scratchpad) (Step, error){call("Calculator", "1+1")}}
	router, mem := newTestRouter(t, planner, &fakeToolbox{})

	resp, err := router.Ask(context.Background(), "hr", "add these")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrToolInvocation)
	assert.ErrorIs(t, err, tools.ErrUnknownTool)
	assert.Empty(t, mem.turns, "failed requests leave no chat turn")
	assert.Len(t, mem.utterances, 1, "the utterance is still recorded")
}

func TestAskToolErrorFailsRequest(t *testing.T) {
	boom := errors.New("search offline")
	planner := &scriptedPlanner{steps: []func(*Scratchpad) (Step, error){call("Search", "q")}}
	router, mem := newTestRouter(t, planner, &fakeToolbox{fail: boom})

	_, err := router.Ask(context.Background(), "hr", "q")
	assert.ErrorIs(t, err, ErrToolInvocation)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, mem.turns)
}

func TestAskPlannerFailure(t *testing.T) {
	planner := &scriptedPlanner{steps: []func(*Scratchpad) (Step, error){
		func(*Scratchpad) (Step, error) { return Step{}, errors.New("model unavailable") },
	}}
	router, mem := newTestRouter(t, planner, &fakeToolbox{})

	_, err := router.Ask(context.Background(), "hr", "q")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "model unavailable"))
	assert.Empty(t, mem.turns)
}

func TestAskUnknownRole(t *testing.T) {
	planner := &scriptedPlanner{}
	router, mem := newTestRouter(t, planner, &fakeToolbox{})

	_, err := router.Ask(context.Background(), "marketing", "hi")
	assert.ErrorIs(t, err, role.ErrUnknownRole)
	assert.Empty(t, planner.pads)
	assert.Empty(t, mem.turns)
}
