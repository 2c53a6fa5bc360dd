package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/workshop-copilot/backend/internal/config"
	"github.com/zhouzirui/workshop-copilot/backend/internal/handler"
	"github.com/zhouzirui/workshop-copilot/backend/internal/logging"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/agent"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/session"
)

type scriptedChatModel struct {
	replies []string
}

func (m *scriptedChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return schema.AssistantMessage(reply, nil), nil
}

func (m *scriptedChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, _ := m.Generate(ctx, in, opts...)
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func testConfig(dir string) *config.Config {
	return &config.Config{
		Retrieval: config.RetrievalConfig{HRDir: dir + "/hr", StrategyDir: dir + "/strategy", TopK: 5},
		Search:    config.SearchConfig{BaseURL: "http://127.0.0.1:0/html/"},
		Store:     config.StoreConfig{LogDir: dir},
		Agent:     config.AgentConfig{MaxSteps: 3, Planner: "react", QuestionStaleness: 5 * time.Minute},
	}
}

func TestBuildAssistantEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	store, err := session.NewStore(dir)
	require.NoError(t, err)

	chat := &scriptedChatModel{replies: []string{
		"The HR team sounds blocked.\nAction: PainPointDetector\nAction Input: payroll is a frustrating mess",
		"I now know the final answer\nFinal Answer: Flagged the payroll frustration.",
	}}
	assistant, err := buildAssistant(context.Background(), cfg, store, chat, logging.Discard())
	require.NoError(t, err)

	resp, err := assistant.Ask(context.Background(), "hr", "payroll is a frustrating mess")
	require.NoError(t, err)
	assert.Equal(t, "Flagged the payroll frustration.", resp.FinalAnswer)
	require.Len(t, resp.ToolsSequence, 1)
	assert.Equal(t, "PainPointDetector", resp.ToolsSequence[0].ToolUsed)
	assert.NotEqual(t, "No pain point detected.", resp.ToolsSequence[0].ToolResponse)

	history := store.CombinedHistory(context.Background())
	require.Len(t, history.ChatHistory, 1)
	assert.Len(t, history.WorkshopHistory["hr"], 1)
}

func TestAskOverHTTP(t *testing.T) {
	action := "Checking again.\nAction: PainPointDetector\nAction Input: payroll is a frustrating mess"
	tests := []struct {
		name      string
		replies   []string
		wantTools int
		wantFinal string
	}{
		{
			name:      "step cap forces a final answer",
			replies:   []string{action, action, action, "Final Answer: Wrapping up the payroll thread."},
			wantTools: 3,
			wantFinal: "Wrapping up the payroll thread.",
		},
		{
			name:      "direct answer takes no action",
			replies:   []string{"Thought: nothing to do\nFinal Answer: Noted."},
			wantTools: 0,
			wantFinal: "Noted.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			store, err := session.NewStore(dir)
			require.NoError(t, err)

			assistant, err := buildAssistant(context.Background(), testConfig(dir), store, &scriptedChatModel{replies: tt.replies}, logging.Discard())
			require.NoError(t, err)

			srv := httptest.NewServer(handler.NewRouter(assistant, store))
			defer srv.Close()

			res, err := http.Post(srv.URL+"/ask", "application/json", strings.NewReader(`{"role":"hr","text":"payroll is a frustrating mess"}`))
			require.NoError(t, err)
			defer res.Body.Close()
			require.Equal(t, http.StatusOK, res.StatusCode)

			var body agent.Response
			require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
			assert.Equal(t, tt.wantFinal, body.FinalAnswer)
			assert.Len(t, body.ToolsSequence, tt.wantTools)
			assert.LessOrEqual(t, len(body.ToolsSequence), 3)
			assert.Equal(t, len(body.ToolsSequence) > 0, body.ActionTaken)
		})
	}
}

func TestRunServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
