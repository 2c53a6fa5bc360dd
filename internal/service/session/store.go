package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/workshop-copilot/backend/internal/logging"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/role"
	"github.com/zhouzirui/workshop-copilot/backend/internal/model/session"
)

const (
	chatLogFile     = "chatbot_memory.json"
	workshopLogFile = "workshop_memory.json"
)

// ErrMalformedLog marks a persisted log that could not be decoded. It is logged and
// recovered locally, never returned to callers of the load operations.
var ErrMalformedLog = errors.New("malformed log")

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used for default timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger overrides the store logger.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Store) {
		s.log = log
	}
}

// Store persists chat turns and workshop utterances to flat files under one directory.
// All reads and writes within the process are serialized by a single mutex.
type Store struct {
	mu           sync.Mutex
	chatPath     string
	workshopPath string
	now          func() time.Time
	log          *logrus.Entry
}

// NewStore creates the log directory if needed and returns a store rooted there.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}

	s := &Store{
		chatPath:     filepath.Join(dir, chatLogFile),
		workshopPath: filepath.Join(dir, workshopLogFile),
		now:          time.Now,
		log:          logging.For("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RecordUtterance appends text under the given role. A zero timestamp means now.
// Every role's sequence is re-sorted chronologically before the log is rewritten.
func (s *Store) RecordUtterance(_ context.Context, roleName, text string, at time.Time) (session.Utterance, error) {
	r, err := role.Parse(roleName)
	if err != nil {
		return session.Utterance{}, err
	}
	if at.IsZero() {
		at = s.now()
	}

	utterance := session.Utterance{
		Role:      r,
		Text:      text,
		Timestamp: at.Format(session.TimestampLayout),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.readWorkshop()
	log[r] = append(log[r], session.Entry{Timestamp: utterance.Timestamp, Message: text})
	for key := range log {
		sortEntries(log[key])
	}

	if err := s.writeWorkshop(log); err != nil {
		return session.Utterance{}, err
	}
	return utterance, nil
}

// RecordChatTurn appends one completed exchange to the chat log.
func (s *Store) RecordChatTurn(_ context.Context, input, output string) error {
	line, err := json.Marshal(session.ChatTurn{Input: input, Output: output})
	if err != nil {
		return fmt.Errorf("encode chat turn: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return appendLine(s.chatPath, line)
}

// LoadChatHistory returns every chat turn in file order. Missing or corrupt logs yield
// an empty history.
func (s *Store) LoadChatHistory(_ context.Context) []session.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readChat()
}

// LoadWorkshopHistory returns the workshop log with all role keys present.
func (s *Store) LoadWorkshopHistory(_ context.Context) session.WorkshopLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readWorkshop()
}

// CombinedHistory merges both logs into the context handed to the agent.
func (s *Store) CombinedHistory(_ context.Context) session.CombinedHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return session.CombinedHistory{
		ChatHistory:     s.readChat(),
		WorkshopHistory: s.readWorkshop(),
	}
}

func (s *Store) readChat() []session.ChatTurn {
	data, err := os.ReadFile(s.chatPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.WithError(err).Warn("read chat log failed, using empty history")
		}
		return []session.ChatTurn{}
	}

	turns := make([]session.ChatTurn, 0, 16)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var turn session.ChatTurn
		if err := json.Unmarshal(line, &turn); err != nil {
			s.log.WithError(fmt.Errorf("%w: %s: %v", ErrMalformedLog, s.chatPath, err)).Warn("discarding chat history")
			return []session.ChatTurn{}
		}
		turns = append(turns, turn)
	}
	if err := scanner.Err(); err != nil {
		s.log.WithError(fmt.Errorf("%w: %s: %v", ErrMalformedLog, s.chatPath, err)).Warn("discarding chat history")
		return []session.ChatTurn{}
	}
	return turns
}

func (s *Store) readWorkshop() session.WorkshopLog {
	data, err := os.ReadFile(s.workshopPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.WithError(err).Warn("read workshop log failed, using empty history")
		}
		return session.NewWorkshopLog()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return session.NewWorkshopLog()
	}

	log := session.WorkshopLog{}
	if err := json.Unmarshal(data, &log); err != nil {
		s.log.WithError(fmt.Errorf("%w: %s: %v", ErrMalformedLog, s.workshopPath, err)).Warn("discarding workshop history")
		return session.NewWorkshopLog()
	}
	if log == nil {
		// a literal null decodes cleanly into a nil map
		return session.NewWorkshopLog()
	}
	log.EnsureRoles()
	return log
}

// writeWorkshop replaces the workshop document through a temp file and rename.
func (s *Store) writeWorkshop(log session.WorkshopLog) error {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("encode workshop log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.workshopPath), workshopLogFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp workshop log: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write workshop log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync workshop log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close workshop log: %w", err)
	}
	if err := os.Rename(tmpName, s.workshopPath); err != nil {
		return fmt.Errorf("replace workshop log: %w", err)
	}
	return nil
}

func sortEntries(entries []session.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time().Before(entries[j].Time())
	})
}

// appendLine writes one JSON line and closes the file before returning.
func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	return f.Close()
}
