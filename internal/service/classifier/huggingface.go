package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// HFConfig configures the Hugging Face Inference API client.
type HFConfig struct {
	BaseURL        string
	APIToken       string
	SentimentModel string
	IntentModel    string
	NERModel       string
	EmbedModel     string
	HTTPClient     *http.Client
}

// HFClient talks to hosted Hugging Face pipelines. It implements SentimentClassifier,
// IntentClassifier, EntityRecognizer and eino's embedding.Embedder.
type HFClient struct {
	cfg  HFConfig
	http *http.Client
}

// NewHFClient validates cfg and returns a client.
func NewHFClient(cfg HFConfig) (*HFClient, error) {
	if strings.TrimSpace(cfg.APIToken) == "" {
		return nil, errors.New("hugging face api token is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("hugging face base url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HFClient{cfg: cfg, http: client}, nil
}

// Sentiment runs the text-classification pipeline and returns the top label.
func (c *HFClient) Sentiment(ctx context.Context, text string) (Sentiment, error) {
	var raw json.RawMessage
	if err := c.post(ctx, c.cfg.SentimentModel, map[string]any{"inputs": text}, &raw); err != nil {
		return Sentiment{}, err
	}

	// The pipeline answers [[{label, score}, ...]] for a single input; some deployments
	// drop the outer list.
	var nested [][]Sentiment
	var flat []Sentiment
	var candidates []Sentiment
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		candidates = nested[0]
	} else if err := json.Unmarshal(raw, &flat); err == nil {
		candidates = flat
	} else {
		return Sentiment{}, fmt.Errorf("decode sentiment response: %w", err)
	}
	if len(candidates) == 0 {
		return Sentiment{}, errors.New("sentiment response contained no labels")
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.Score > best.Score {
			best = cand
		}
	}
	return best, nil
}

// ZeroShot runs the zero-shot-classification pipeline over candidates.
func (c *HFClient) ZeroShot(ctx context.Context, text string, candidates []string) (Intent, error) {
	payload := map[string]any{
		"inputs":     text,
		"parameters": map[string]any{"candidate_labels": candidates},
	}

	var raw json.RawMessage
	if err := c.post(ctx, c.cfg.IntentModel, payload, &raw); err != nil {
		return Intent{}, err
	}

	var columnar struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
	}
	var rows []Intent
	if err := json.Unmarshal(raw, &columnar); err == nil && len(columnar.Labels) > 0 {
		if len(columnar.Labels) != len(columnar.Scores) {
			return Intent{}, errors.New("zero-shot response labels and scores differ in length")
		}
		for i, label := range columnar.Labels {
			rows = append(rows, Intent{Label: label, Score: columnar.Scores[i]})
		}
	} else if err := json.Unmarshal(raw, &rows); err != nil {
		return Intent{}, fmt.Errorf("decode zero-shot response: %w", err)
	}
	if len(rows) == 0 {
		return Intent{}, errors.New("zero-shot response contained no labels")
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	return rows[0], nil
}

// Entities runs the token-classification pipeline with simple aggregation.
func (c *HFClient) Entities(ctx context.Context, text string) ([]Entity, error) {
	payload := map[string]any{
		"inputs":     text,
		"parameters": map[string]any{"aggregation_strategy": "simple"},
	}

	var rows []struct {
		EntityGroup string  `json:"entity_group"`
		Entity      string  `json:"entity"`
		Word        string  `json:"word"`
		Score       float64 `json:"score"`
		Start       int     `json:"start"`
		End         int     `json:"end"`
	}
	if err := c.post(ctx, c.cfg.NERModel, payload, &rows); err != nil {
		return nil, err
	}

	entities := make([]Entity, 0, len(rows))
	for _, row := range rows {
		label := row.EntityGroup
		if label == "" {
			label = strings.TrimPrefix(strings.TrimPrefix(row.Entity, "B-"), "I-")
		}
		entities = append(entities, Entity{
			Text:  strings.TrimSpace(row.Word),
			Label: strings.ToUpper(label),
			Start: row.Start,
			End:   row.End,
			Score: row.Score,
		})
	}
	return entities, nil
}

// EmbedStrings implements embedding.Embedder through the feature-extraction pipeline.
func (c *HFClient) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float64
	if err := c.post(ctx, c.cfg.EmbedModel, map[string]any{"inputs": texts}, &vectors); err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

func (c *HFClient) post(ctx context.Context, modelID string, payload any, out any) error {
	if strings.TrimSpace(modelID) == "" {
		return errors.New("hugging face model id is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+modelID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", modelID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return fmt.Errorf("read %s response: %w", modelID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s status=%d body=%s", modelID, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", modelID, err)
	}
	return nil
}
