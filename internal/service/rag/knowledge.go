package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/workshop-copilot/backend/internal/logging"
)

// Answerer answers free-text questions for one knowledge domain.
type Answerer interface {
	Query(ctx context.Context, question string) (string, error)
}

// Unavailable answers every question with a notice that the domain has no index.
type Unavailable string

// Query implements Answerer.
func (u Unavailable) Query(context.Context, string) (string, error) {
	return fmt.Sprintf("No %s knowledge base is loaded.", string(u)), nil
}

// Open loads the index persisted in dir and returns an engine for domain. A missing
// index yields Unavailable so the rest of the assistant keeps working.
func Open(ctx context.Context, domain, dir string, embedder embedding.Embedder, chatModel model.BaseChatModel, topK int) (Answerer, error) {
	chunks, err := LoadIndex(dir)
	if errors.Is(err, ErrIndexNotFound) {
		logging.For("rag").WithField("domain", domain).WithField("dir", dir).Warn("knowledge base not found")
		return Unavailable(domain), nil
	}
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		logging.For("rag").WithField("domain", domain).Warn("no embedder configured, knowledge base disabled")
		return Unavailable(domain), nil
	}

	r, err := NewVectorRetriever(chunks, embedder, topK)
	if err != nil {
		return nil, err
	}
	engine, err := NewQueryEngine(ctx, domain, r, chatModel)
	if err != nil {
		return nil, err
	}
	return engine, nil
}
