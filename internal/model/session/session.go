package session

import (
	"time"

	"github.com/zhouzirui/workshop-copilot/backend/internal/model/role"
)

// TimestampLayout is the minute-precision format used for workshop utterances.
const TimestampLayout = "2006-01-02 15:04"

// Utterance is one role-tagged contribution to the workshop.
type Utterance struct {
	Role      role.Role `json:"role"`
	Text      string    `json:"text"`
	Timestamp string    `json:"timestamp"`
}

// Entry is the persisted form of an utterance under its role key.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// Time parses the entry timestamp in local time. Unparsable values yield the zero time.
func (e Entry) Time() time.Time {
	t, err := time.ParseInLocation(TimestampLayout, e.Timestamp, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// WorkshopLog maps each role to its utterances in ascending timestamp order.
type WorkshopLog map[role.Role][]Entry

// NewWorkshopLog returns a log with every role key initialised.
func NewWorkshopLog() WorkshopLog {
	log := make(WorkshopLog, len(role.All()))
	log.EnsureRoles()
	return log
}

// EnsureRoles adds any missing role key with an empty sequence.
func (l WorkshopLog) EnsureRoles() {
	for _, r := range role.All() {
		if l[r] == nil {
			l[r] = []Entry{}
		}
	}
}

// Last returns the most recent entry for a role.
func (l WorkshopLog) Last(r role.Role) (Entry, bool) {
	entries := l[r]
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[len(entries)-1], true
}

// ChatTurn records one completed agent exchange.
type ChatTurn struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// CombinedHistory is the conversational context handed to the agent.
type CombinedHistory struct {
	ChatHistory     []ChatTurn  `json:"chatbot_history"`
	WorkshopHistory WorkshopLog `json:"workshop_history"`
}
