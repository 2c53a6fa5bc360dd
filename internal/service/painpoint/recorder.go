package painpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const painPointLogFile = "pain_points.json"

// FileRecorder appends findings as JSON lines. The log is never read back.
type FileRecorder struct {
	mu   sync.Mutex
	path string
}

// NewFileRecorder writes to pain_points.json under dir.
func NewFileRecorder(dir string) (*FileRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}
	return &FileRecorder{path: filepath.Join(dir, painPointLogFile)}, nil
}

// Record implements Recorder. Method-specific fields are flattened next to text and
// method, which always win on key collisions.
func (r *FileRecorder) Record(_ context.Context, finding Finding) error {
	entry := make(map[string]any, len(finding.Fields)+2)
	for k, v := range finding.Fields {
		entry[k] = v
	}
	entry["text"] = finding.Text
	entry["method"] = string(finding.Method)

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode pain point: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.path, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", r.path, err)
	}
	return f.Close()
}
