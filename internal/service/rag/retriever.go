package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

const defaultTopK = 5

// VectorRetriever ranks index chunks by cosine similarity to the embedded query.
type VectorRetriever struct {
	chunks   []Chunk
	norms    []float64
	embedder embedding.Embedder
	topK     int
}

var _ retriever.Retriever = (*VectorRetriever)(nil)

// NewVectorRetriever returns a retriever over chunks. topK <= 0 falls back to 5.
func NewVectorRetriever(chunks []Chunk, embedder embedding.Embedder, topK int) (*VectorRetriever, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	norms := make([]float64, len(chunks))
	for i, chunk := range chunks {
		norms[i] = norm(chunk.Embedding)
	}
	return &VectorRetriever{chunks: chunks, norms: norms, embedder: embedder, topK: topK}, nil
}

// Retrieve implements retriever.Retriever.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := r.topK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}

	if len(r.chunks) == 0 {
		return nil, nil
	}

	vectors, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	queryVec := vectors[0]
	queryNorm := norm(queryVec)

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(r.chunks))
	for i, chunk := range r.chunks {
		if len(chunk.Embedding) != len(queryVec) {
			return nil, fmt.Errorf("query has %d dimensions, index has %d", len(queryVec), len(chunk.Embedding))
		}
		ranked = append(ranked, scored{idx: i, score: cosine(queryVec, queryNorm, chunk.Embedding, r.norms[i])})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if topK > len(ranked) {
		topK = len(ranked)
	}
	docs := make([]*schema.Document, 0, topK)
	for _, hit := range ranked[:topK] {
		chunk := r.chunks[hit.idx]
		meta := make(map[string]any, len(chunk.Metadata)+1)
		for k, v := range chunk.Metadata {
			meta[k] = v
		}
		doc := &schema.Document{ID: chunk.ID, Content: chunk.Content, MetaData: meta}
		docs = append(docs, doc.WithScore(hit.score))
	}
	return docs, nil
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func cosine(a []float64, normA float64, b []float64, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (normA * normB)
}
