package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/workshop-copilot/backend/internal/logging"
)

// EmptyResponse is returned when retrieval finds nothing to ground an answer on.
const EmptyResponse = "Empty Response"

// QueryEngine retrieves passages and synthesizes an answer grounded on them.
type QueryEngine struct {
	domain    string
	retriever retriever.Retriever
	answerer  compose.Runnable[map[string]any, *schema.Message]
	log       *logrus.Entry
}

// NewQueryEngine builds an engine for domain. A nil chatModel makes Query return the
// retrieved passages verbatim.
func NewQueryEngine(ctx context.Context, domain string, r retriever.Retriever, chatModel model.BaseChatModel) (*QueryEngine, error) {
	if r == nil {
		return nil, errors.New("retriever is required")
	}

	engine := &QueryEngine{
		domain:    domain,
		retriever: r,
		log:       logging.For("rag").WithField("domain", domain),
	}
	if chatModel == nil {
		return engine, nil
	}

	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(answerSystemPrompt),
		schema.UserMessage(answerUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s answer chain: %w", domain, err)
	}
	engine.answerer = runnable
	return engine, nil
}

// Query answers question from the indexed documents.
func (e *QueryEngine) Query(ctx context.Context, question string) (string, error) {
	docs, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		return "", fmt.Errorf("retrieve %s passages: %w", e.domain, err)
	}
	if len(docs) == 0 {
		return EmptyResponse, nil
	}
	e.log.WithField("passages", len(docs)).Debug("retrieved passages")

	contextText := joinPassages(docs)
	if e.answerer == nil {
		return contextText, nil
	}

	msg, err := e.answerer.Invoke(ctx, map[string]any{
		"context_str": contextText,
		"query_str":   strings.TrimSpace(question),
	})
	if err != nil {
		return "", fmt.Errorf("%s answer chain invoke failed: %w", e.domain, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return EmptyResponse, nil
	}
	return strings.TrimSpace(msg.Content), nil
}

func joinPassages(docs []*schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if text := strings.TrimSpace(doc.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

const answerSystemPrompt = "You are an expert Q&A system that is trusted around the world.\nAlways answer the query using the provided context information, and not prior knowledge.\nSome rules to follow:\n1. Never directly reference the given context in your answer.\n2. Avoid statements like 'Based on the context, ...' or 'The context information ...' or anything along those lines."

const answerUserPrompt = "Context information is below.\n---------------------\n{context_str}\n---------------------\nGiven the context information and not prior knowledge, answer the query.\nQuery: {query_str}\nAnswer: "
