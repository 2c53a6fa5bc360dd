// Package question suggests facilitator prompts for roles that have gone quiet.
package question

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/workshop-copilot/backend/internal/model/role"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/session"
)

// NoSuggestions is returned when every role has spoken recently.
const NoSuggestions = "No question suggestions needed right now."

// HistorySource provides the current workshop log.
type HistorySource interface {
	LoadWorkshopHistory(ctx context.Context) session.WorkshopLog
}

// Generator proposes prompts for silent or stale roles.
type Generator struct {
	history   HistorySource
	staleness time.Duration
	now       func() time.Time
}

// NewGenerator returns a generator that treats a role as stale once its last
// utterance is older than staleness.
func NewGenerator(history HistorySource, staleness time.Duration) *Generator {
	return &Generator{history: history, staleness: staleness, now: time.Now}
}

// WithClock replaces the generator clock.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Suggest returns one suggestion per silent or stale non-facilitator role, newline
// separated, or NoSuggestions.
func (g *Generator) Suggest(ctx context.Context) string {
	log := g.history.LoadWorkshopHistory(ctx)
	now := g.now()

	var prompts []string
	for _, r := range role.All() {
		if r == role.Facilitator {
			continue
		}

		last, ok := log.Last(r)
		if !ok {
			prompts = append(prompts, fmt.Sprintf("What are your current priorities, %s?", r))
			continue
		}
		if now.Sub(last.Time()) > g.staleness {
			prompts = append(prompts, fmt.Sprintf("It's been a while since %s contributed. Ask them about current goals or blockers.", r))
		}
	}

	if len(prompts) == 0 {
		return NoSuggestions
	}
	return strings.Join(prompts, "\n")
}
