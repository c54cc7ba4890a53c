package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// GroundingMode controls how strictly a remote answer must appear in the
// sanitized context.
type GroundingMode string

// Grounding modes.
const (
	GroundingExact   GroundingMode = "exact"
	GroundingExcerpt GroundingMode = "excerpt" // default: substring of a context line
)

// Generator issues one generation request against a remote provider.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Request carries the sanitized context and query into generation.
type Request struct {
	SystemContext  string
	UserQuery      string
	RedactionCount int
	RiskLevel      string
}

// Orchestrator produces a grounded answer string for a request.
type Orchestrator struct {
	extractive bool
	grounding  GroundingMode
	generator  Generator
	logger     hclog.Logger
}

// OrchestratorConfig holds configuration for the answer orchestrator.
type OrchestratorConfig struct {
	// Extractive forces deterministic extractive selection; the configured
	// default when strict privacy is required.
	Extractive bool

	Grounding GroundingMode // default: excerpt
	Generator Generator     // required unless Extractive
	Logger    hclog.Logger
}

// NewOrchestrator creates an answer orchestrator.
func NewOrchestrator(config OrchestratorConfig) (*Orchestrator, error) {
	if config.Grounding == "" {
		config.Grounding = GroundingExcerpt
	}
	if config.Grounding != GroundingExact && config.Grounding != GroundingExcerpt {
		return nil, fmt.Errorf("answer: unknown grounding mode %q", config.Grounding)
	}
	if !config.Extractive && config.Generator == nil {
		return nil, fmt.Errorf("answer: remote mode requires a generator")
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}

	return &Orchestrator{
		extractive: config.Extractive,
		grounding:  config.Grounding,
		generator:  config.Generator,
		logger:     config.Logger.Named("answer-orchestrator"),
	}, nil
}

// systemPrompt enforces verbatim-from-context answering with an explicit
// fallback string.
func systemPrompt() string {
	return "You answer questions using ONLY the provided context. " +
		"Your entire response must be text copied verbatim from a single context line. " +
		"Do not paraphrase, summarize, or add words. " +
		"If the context does not contain the answer, respond with exactly: " + FallbackAnswer
}

// Generate returns an answer for the request. Remote responses are accepted
// only when grounded in the context; otherwise the orchestrator falls back
// to extractive selection, and finally to the fixed fallback string.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (string, error) {
	if o.extractive || o.generator == nil {
		return o.extract(req), nil
	}

	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", req.SystemContext, req.UserQuery)

	response, err := o.generator.Generate(ctx, systemPrompt(), userPrompt)
	if err != nil {
		o.logger.Warn("remote generation failed, falling back to extraction", "error", err)
		return o.extract(req), nil
	}

	response = strings.TrimSpace(response)
	if normalizeSpace(response) == normalizeSpace(FallbackAnswer) {
		o.logger.Debug("provider returned the fallback string, trying extraction")
		return o.extract(req), nil
	}

	if !o.grounded(response, req.SystemContext) {
		o.logger.Warn("rejecting ungrounded response",
			"grounding", o.grounding,
			"response_length", len(response),
		)
		return o.extract(req), nil
	}

	return response, nil
}

// extract runs extractive selection; if no line scores above zero the fixed
// fallback string is returned unchanged.
func (o *Orchestrator) extract(req Request) string {
	if line, ok := ExtractBestLine(req.SystemContext, req.UserQuery); ok {
		return line
	}
	return FallbackAnswer
}

// grounded reports whether the response text appears in some context line
// after whitespace normalization, by equality (exact) or substring
// containment (excerpt).
func (o *Orchestrator) grounded(response, systemContext string) bool {
	normalized := normalizeSpace(response)
	if normalized == "" {
		return false
	}

	for _, raw := range strings.Split(systemContext, "\n") {
		line := normalizeSpace(reLineNumber.ReplaceAllString(strings.TrimSpace(raw), ""))
		if line == "" {
			continue
		}
		switch o.grounding {
		case GroundingExact:
			if normalized == line {
				return true
			}
		default:
			if strings.Contains(line, normalized) {
				return true
			}
		}
	}
	return false
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
