// Package rag answers questions from prebuilt vector indexes of internal documents.
package rag

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// IndexFile is the file name expected inside a persist directory.
const IndexFile = "index.json"

// ErrIndexNotFound is returned when a persist directory holds no index.
var ErrIndexNotFound = errors.New("rag: index not found")

// Chunk is one embedded passage of a persisted index.
type Chunk struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float64      `json:"embedding"`
}

// LoadIndex reads dir/index.json.
func LoadIndex(dir string) ([]Chunk, error) {
	path := filepath.Join(dir, IndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
		}
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}

	var chunks []Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", path, err)
	}

	dims := -1
	for i, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return nil, fmt.Errorf("index %s: chunk %d has no embedding", path, i)
		}
		if dims >= 0 && len(chunk.Embedding) != dims {
			return nil, fmt.Errorf("index %s: chunk %d has %d dimensions, want %d", path, i, len(chunk.Embedding), dims)
		}
		dims = len(chunk.Embedding)
	}
	return chunks, nil
}
