package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/workshop-copilot/backend/internal/logging"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/role"
	model "github.com/zhouzirui/workshop-copilot/backend/internal/model/session"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/session"
)

func newStore(t *testing.T, opts ...session.Option) (*session.Store, string) {
	t.Helper()
	dir := t.TempDir()
	opts = append([]session.Option{session.WithLogger(logging.Discard())}, opts...)
	store, err := session.NewStore(dir, opts...)
	require.NoError(t, err)
	return store, dir
}

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation(model.TimestampLayout, value, time.Local)
	require.NoError(t, err)
	return ts
}

func TestRecordUtteranceAcceptsKnownRoles(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	for _, name := range []string{"facilitator", "HR", "Strategy", "FACILITATOR"} {
		_, err := store.RecordUtterance(ctx, name, "hello", time.Time{})
		require.NoError(t, err, name)
	}

	history := store.LoadWorkshopHistory(ctx)
	assert.Len(t, history[role.Facilitator], 2)
	assert.Len(t, history[role.HR], 1)
	assert.Len(t, history[role.Strategy], 1)
}

func TestRecordUtteranceRejectsUnknownRole(t *testing.T) {
	store, dir := newStore(t)

	_, err := store.RecordUtterance(context.Background(), "ceo", "hello", time.Time{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, role.ErrUnknownRole))

	_, statErr := os.Stat(filepath.Join(dir, "workshop_memory.json"))
	assert.True(t, os.IsNotExist(statErr), "rejected utterance must not create the log")
}

func TestRecordUtteranceDefaultsTimestampToClock(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
	store, _ := newStore(t, session.WithClock(func() time.Time { return fixed }))

	utterance, err := store.RecordUtterance(context.Background(), "hr", "benefits review", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14 09:26", utterance.Timestamp)
	assert.Equal(t, role.HR, utterance.Role)
}

func TestWorkshopHistoryStaysChronological(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	inserts := []struct {
		role string
		ts   string
	}{
		{"hr", "2025-01-01 10:05"},
		{"strategy", "2025-01-01 09:00"},
		{"hr", "2025-01-01 09:30"},
		{"facilitator", "2025-01-02 08:00"},
		{"strategy", "2024-12-31 23:59"},
		{"hr", "2025-01-01 10:00"},
		{"facilitator", "2025-01-01 08:00"},
		{"strategy", "2025-01-01 09:00"},
	}
	for i, in := range inserts {
		_, err := store.RecordUtterance(ctx, in.role, "msg", at(t, in.ts))
		require.NoError(t, err, "insert %d", i)
	}

	history := store.LoadWorkshopHistory(ctx)
	for _, r := range role.All() {
		entries := history[r]
		sorted := sort.SliceIsSorted(entries, func(i, j int) bool {
			return entries[i].Time().Before(entries[j].Time())
		})
		assert.True(t, sorted, "role %s not sorted: %v", r, entries)
	}
	assert.Equal(t, "2024-12-31 23:59", history[role.Strategy][0].Timestamp)
}

func TestLoadHistoryMissingFiles(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	assert.Empty(t, store.LoadChatHistory(ctx))

	history := store.LoadWorkshopHistory(ctx)
	for _, r := range role.All() {
		entries, ok := history[r]
		assert.True(t, ok, "role %s missing", r)
		assert.Empty(t, entries)
	}
}

func TestLoadHistoryCorruptFiles(t *testing.T) {
	store, dir := newStore(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "chatbot_memory.json"), []byte("{\"input\":\"a\",\"output\":\"b\"}\n{broken"), 0o644))
	assert.Empty(t, store.LoadChatHistory(ctx))

	for _, doc := range []string{"[1, 2", "null", "[]", "  null\n"} {
		t.Run(doc, func(t *testing.T) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, "workshop_memory.json"), []byte(doc), 0o644))

			history := store.LoadWorkshopHistory(ctx)
			assert.Len(t, history, len(role.All()))
			for _, r := range role.All() {
				assert.NotNil(t, history[r])
				assert.Empty(t, history[r])
			}

			combined := store.CombinedHistory(ctx)
			assert.Len(t, combined.WorkshopHistory, len(role.All()))
		})
	}
}

func TestLoadWorkshopHistoryFillsMissingRoles(t *testing.T) {
	store, dir := newStore(t)
	doc := `{"hr": [{"timestamp": "2025-01-01 10:00", "message": "hi"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workshop_memory.json"), []byte(doc), 0o644))

	history := store.LoadWorkshopHistory(context.Background())
	assert.Len(t, history[role.HR], 1)
	assert.NotNil(t, history[role.Facilitator])
	assert.NotNil(t, history[role.Strategy])
}

func TestRecordUtteranceRecoversFromCorruptLog(t *testing.T) {
	for _, doc := range []string{"not json", "null", "[]"} {
		t.Run(doc, func(t *testing.T) {
			store, dir := newStore(t)
			require.NoError(t, os.WriteFile(filepath.Join(dir, "workshop_memory.json"), []byte(doc), 0o644))

			_, err := store.RecordUtterance(context.Background(), "strategy", "roadmap", time.Time{})
			require.NoError(t, err)

			history := store.LoadWorkshopHistory(context.Background())
			require.Len(t, history[role.Strategy], 1)
			assert.Equal(t, "roadmap", history[role.Strategy][0].Message)
		})
	}
}

func TestChatTurnsKeepFileOrder(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordChatTurn(ctx, "first", "one"))
	require.NoError(t, store.RecordChatTurn(ctx, "second", "two"))
	require.NoError(t, store.RecordChatTurn(ctx, "", ""))

	turns := store.LoadChatHistory(ctx)
	require.Len(t, turns, 3)
	assert.Equal(t, model.ChatTurn{Input: "first", Output: "one"}, turns[0])
	assert.Equal(t, model.ChatTurn{Input: "second", Output: "two"}, turns[1])
}

func TestCombinedHistory(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.RecordUtterance(ctx, "hr", "we need a hiring plan", time.Time{})
	require.NoError(t, err)
	require.NoError(t, store.RecordChatTurn(ctx, "we need a hiring plan", "noted"))

	combined := store.CombinedHistory(ctx)
	assert.Len(t, combined.ChatHistory, 1)
	assert.Len(t, combined.WorkshopHistory[role.HR], 1)
}
