package question

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/workshop-copilot/backend/internal/model/role"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/session"
)

type staticHistory session.WorkshopLog

func (s staticHistory) LoadWorkshopHistory(context.Context) session.WorkshopLog {
	log := session.WorkshopLog(s)
	log.EnsureRoles()
	return log
}

var now = time.Date(2025, 6, 2, 14, 30, 0, 0, time.Local)

func entryAt(t time.Time, msg string) session.Entry {
	return session.Entry{Timestamp: t.Format(session.TimestampLayout), Message: msg}
}

func TestSuggestNothingWhenEveryoneIsActive(t *testing.T) {
	history := staticHistory{
		role.HR:       {entryAt(now.Add(-time.Minute), "benefits")},
		role.Strategy: {entryAt(now, "roadmap")},
	}
	gen := NewGenerator(history, 5*time.Minute).WithClock(func() time.Time { return now })

	assert.Equal(t, NoSuggestions, gen.Suggest(context.Background()))
}

func TestSuggestAsksSilentRolesForPriorities(t *testing.T) {
	gen := NewGenerator(staticHistory{}, 5*time.Minute).WithClock(func() time.Time { return now })

	got := gen.Suggest(context.Background())
	assert.Equal(t, "What are your current priorities, hr?\nWhat are your current priorities, strategy?", got)
}

func TestSuggestFlagsStaleRole(t *testing.T) {
	history := staticHistory{
		role.HR:       {entryAt(now.Add(-20*time.Minute), "old"), entryAt(now.Add(-10*time.Minute), "last")},
		role.Strategy: {entryAt(now.Add(-time.Minute), "fresh")},
	}
	gen := NewGenerator(history, 5*time.Minute).WithClock(func() time.Time { return now })

	got := gen.Suggest(context.Background())
	assert.Equal(t, "It's been a while since hr contributed. Ask them about current goals or blockers.", got)
	assert.NotContains(t, got, "strategy")
}

func TestSuggestIgnoresFacilitator(t *testing.T) {
	history := staticHistory{
		role.Facilitator: {},
		role.HR:          {entryAt(now, "a")},
		role.Strategy:    {entryAt(now, "b")},
	}
	gen := NewGenerator(history, time.Minute).WithClock(func() time.Time { return now })

	assert.Equal(t, NoSuggestions, gen.Suggest(context.Background()))
}

func TestSuggestRoleOrder(t *testing.T) {
	history := staticHistory{
		role.Strategy: {entryAt(now.Add(-time.Hour), "stale")},
	}
	gen := NewGenerator(history, time.Minute).WithClock(func() time.Time { return now })

	lines := strings.Split(gen.Suggest(context.Background()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "hr")
	assert.Contains(t, lines[1], "strategy")
}
