// Package tools holds the fixed set of capabilities the agent can invoke.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/workshop-copilot/backend/internal/logging"
	"github.com/zhouzirui/workshop-copilot/backend/internal/service/painpoint"
)

// ErrUnknownTool is returned for names outside the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// NoPainPoint is the pain-point tool output when nothing is flagged.
const NoPainPoint = "No pain point detected."

// ID names a tool.
type ID string

const (
	HRPolicyRAG       ID = "HRPolicyRAG"
	StrategyPolicyRAG ID = "StrategyPolicyRAG"
	Search            ID = "Search"
	QuestionGenerator ID = "QuestionGenerator"
	PainPointDetector ID = "PainPointDetector"
)

// IDs lists every tool in catalog order.
func IDs() []ID {
	return []ID{HRPolicyRAG, StrategyPolicyRAG, Search, QuestionGenerator, PainPointDetector}
}

var descriptions = map[ID]string{
	HRPolicyRAG:       "Use this to answer HR-related questions based on internal HR policies and workflows.",
	StrategyPolicyRAG: "Use this to answer strategy-related questions based on internal strategy policies and workflows.",
	Search:            "Useful for searching information on the internet. Use this when you need to find current or factual information.",
	QuestionGenerator: "Use this to suggest facilitator questions when HR or Strategy have been quiet lately.",
	PainPointDetector: "Analyzes an input utterance for potential pain points using sentiment analysis, " +
		"emotion detection, intent classification, and optional NER. " +
		"If a pain point is found, it logs it to pain_points.json and returns the reason.",
}

// Tool is a catalog entry.
type Tool struct {
	ID          ID
	Description string
}

// Answerer answers questions from a knowledge base.
type Answerer interface {
	Query(ctx context.Context, question string) (string, error)
}

// Searcher runs a web search and renders the result as text.
type Searcher interface {
	Run(ctx context.Context, query string) (string, error)
}

// Suggester proposes facilitator questions.
type Suggester interface {
	Suggest(ctx context.Context) string
}

// Detector flags pain-point utterances.
type Detector interface {
	Detect(ctx context.Context, text string) (painpoint.Finding, bool, error)
}

// Backends wires each tool to its implementation. All fields are required.
type Backends struct {
	HR         Answerer
	Strategy   Answerer
	Search     Searcher
	Questions  Suggester
	PainPoints Detector
}

// Registry dispatches tool invocations.
type Registry struct {
	backends Backends
	timeout  time.Duration
	log      *logrus.Entry
}

// NewRegistry validates backends. timeout bounds each invocation; zero disables it.
func NewRegistry(backends Backends, timeout time.Duration) (*Registry, error) {
	var missing []string
	if backends.HR == nil {
		missing = append(missing, string(HRPolicyRAG))
	}
	if backends.Strategy == nil {
		missing = append(missing, string(StrategyPolicyRAG))
	}
	if backends.Search == nil {
		missing = append(missing, string(Search))
	}
	if backends.Questions == nil {
		missing = append(missing, string(QuestionGenerator))
	}
	if backends.PainPoints == nil {
		missing = append(missing, string(PainPointDetector))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing tool backends: %s", strings.Join(missing, ", "))
	}
	if timeout < 0 {
		return nil, fmt.Errorf("tool timeout must not be negative: %s", timeout)
	}

	return &Registry{backends: backends, timeout: timeout, log: logging.For("tools")}, nil
}

// Catalog returns every tool in a fixed order.
func (r *Registry) Catalog() []Tool {
	ids := IDs()
	catalog := make([]Tool, 0, len(ids))
	for _, id := range ids {
		catalog = append(catalog, Tool{ID: id, Description: descriptions[id]})
	}
	return catalog
}

// Lookup resolves an exact tool name.
func (r *Registry) Lookup(name string) (Tool, error) {
	id := ID(strings.TrimSpace(name))
	desc, ok := descriptions[id]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return Tool{ID: id, Description: desc}, nil
}

// Invoke runs the named tool on input.
func (r *Registry) Invoke(ctx context.Context, name, input string) (string, error) {
	t, err := r.Lookup(name)
	if err != nil {
		return "", err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.dispatch(ctx, t.ID, input)
	entry := r.log.WithFields(logrus.Fields{"tool": t.ID, "elapsed": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Warn("tool failed")
		return "", fmt.Errorf("%s: %w", t.ID, err)
	}
	entry.Debug("tool finished")
	return out, nil
}

func (r *Registry) dispatch(ctx context.Context, id ID, input string) (string, error) {
	switch id {
	case HRPolicyRAG:
		return r.backends.HR.Query(ctx, input)
	case StrategyPolicyRAG:
		return r.backends.Strategy.Query(ctx, input)
	case Search:
		return r.backends.Search.Run(ctx, input)
	case QuestionGenerator:
		return r.backends.Questions.Suggest(ctx), nil
	case PainPointDetector:
		finding, flagged, err := r.backends.PainPoints.Detect(ctx, input)
		if err != nil {
			return "", err
		}
		if !flagged {
			return NoPainPoint, nil
		}
		return finding.Summary, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, id)
	}
}

// ToolInfos describes the catalog for chat models with native tool calling.
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	catalog := r.Catalog()
	infos := make([]*schema.ToolInfo, 0, len(catalog))
	for _, t := range catalog {
		infos = append(infos, toolInfo(t))
	}
	return infos
}

func toolInfo(t Tool) *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: string(t.ID),
		Desc: t.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"input": {
				Type:     schema.String,
				Desc:     "The text passed to the tool.",
				Required: true,
			},
		}),
	}
}
