// Package gateway implements the retrieval controller, the per-query state
// machine behind the MCP tool surface: retrieve, redact, gate, optionally
// generate, return. Every transition publishes a telemetry event.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/recall/pkg/answer"
	"github.com/hashicorp-forge/recall/pkg/consent"
	"github.com/hashicorp-forge/recall/pkg/events"
	"github.com/hashicorp-forge/recall/pkg/privacy"
)

// Sentinel outputs of the query tool.
const (
	// NoContextFound is returned when retrieval yields zero rows.
	NoContextFound = "NO_CONTEXT_FOUND"

	// NoContext is returned when output is blocked by low confidence or a
	// denied high-risk release.
	NoContext = "NO_CONTEXT"

	// errPrefix prefixes every caller-visible failure. Tool handlers never
	// propagate errors past this boundary.
	errPrefix = "ERROR: "
)

// Clamp bounds for retrieval knobs.
const (
	minTopK     = 1
	maxTopK     = 10
	defaultTopK = 5

	minResultChars     = 120
	maxResultChars     = 2000
	defaultResultChars = 500
)

// Searcher is the slice of the memory store the controller retrieves with.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
	SaveUserFact(ctx context.Context, fact, category string) error
}

// Controller drives one query or save through the pipeline.
type Controller struct {
	store    Searcher
	pipeline *privacy.Pipeline
	gate     *consent.Gate
	answerer *answer.Orchestrator
	bus      *events.Bus

	topK           int
	maxResultChars int
	consentEnabled bool
	privacyDebug   bool
	generate       bool

	logger hclog.Logger
}

// ControllerConfig holds configuration for the retrieval controller.
type ControllerConfig struct {
	Store    Searcher
	Pipeline *privacy.Pipeline
	Gate     *consent.Gate
	Bus      *events.Bus

	// Answerer is consulted only when Generate is set.
	Answerer *answer.Orchestrator
	Generate bool

	TopK           int // clamped to [1, 10] (default: 5)
	MaxResultChars int // per-result truncation, clamped to [120, 2000] (default: 500)

	// ConsentEnabled controls the high-risk consent hook. nil means on.
	// When the hook is off, high-risk content is blocked outright and no
	// consent_required event is published.
	ConsentEnabled *bool

	// PrivacyDebug includes the raw pre-redaction context in telemetry
	// payloads. Off by default.
	PrivacyDebug bool

	Logger hclog.Logger
}

// NewController creates a retrieval controller.
func NewController(config ControllerConfig) (*Controller, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("gateway: memory store is required")
	}
	if config.Pipeline == nil {
		return nil, fmt.Errorf("gateway: privacy pipeline is required")
	}
	if config.Gate == nil {
		return nil, fmt.Errorf("gateway: consent gate is required")
	}
	if config.Bus == nil {
		return nil, fmt.Errorf("gateway: event bus is required")
	}
	if config.Generate && config.Answerer == nil {
		return nil, fmt.Errorf("gateway: answer generation requires an orchestrator")
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}

	consentEnabled := true
	if config.ConsentEnabled != nil {
		consentEnabled = *config.ConsentEnabled
	}

	return &Controller{
		store:          config.Store,
		pipeline:       config.Pipeline,
		gate:           config.Gate,
		answerer:       config.Answerer,
		bus:            config.Bus,
		topK:           clamp(config.TopK, minTopK, maxTopK, defaultTopK),
		maxResultChars: clamp(config.MaxResultChars, minResultChars, maxResultChars, defaultResultChars),
		consentEnabled: consentEnabled,
		privacyDebug:   config.PrivacyDebug,
		generate:       config.Generate,
		logger:         config.Logger.Named("retrieval-controller"),
	}, nil
}

// QueryPersonalMemory runs the full retrieval state machine for one topic and
// returns the caller-visible string. It never returns an error; failures are
// folded into sentinel strings so the tool boundary stays total.
func (c *Controller) QueryPersonalMemory(ctx context.Context, topic string) string {
	c.bus.Publish(events.TypeQueryReceived, map[string]any{
		"topic": topic,
	})

	results, err := c.store.Search(ctx, topic, c.topK)
	if err != nil {
		c.logger.Error("memory search failed", "topic", topic, "error", err)
		return errPrefix + "memory search failed."
	}
	if len(results) == 0 {
		c.logger.Debug("no context found", "topic", topic)
		return NoContextFound
	}

	for i, text := range results {
		results[i] = truncate(text, c.maxResultChars)
	}

	rawContext, redaction := c.shrinkToSafe(results)

	payload := map[string]any{
		"cleaned_text":    redaction.CleanedText,
		"redaction_count": redaction.RedactionCount,
		"risk":            string(redaction.RiskLevel),
		"confidence":      string(redaction.Confidence),
	}
	if c.privacyDebug {
		payload["raw_context"] = rawContext
	}
	c.bus.Publish(events.TypePrivacyProcessed, payload)

	if redaction.Confidence == privacy.ConfidenceLow {
		c.bus.Publish(events.TypeRiskBlocked, map[string]any{
			"topic":  topic,
			"reason": "low_confidence",
		})
		c.logger.Warn("blocking low-confidence redaction", "topic", topic)
		return NoContext
	}

	if redaction.RiskLevel == privacy.RiskHigh {
		if !c.consentEnabled || !c.gate.Consume(topic) {
			if c.consentEnabled {
				c.bus.Publish(events.TypeConsentRequired, map[string]any{
					"topic":        topic,
					"cleaned_text": redaction.CleanedText,
				})
			}
			c.bus.Publish(events.TypeRiskBlocked, map[string]any{
				"topic":  topic,
				"reason": "high_risk",
			})
			c.logger.Warn("blocking high-risk release",
				"topic", topic,
				"consent_enabled", c.consentEnabled,
			)
			return NoContext
		}
		c.bus.Publish(events.TypeConsentDecision, map[string]any{
			"topic":    topic,
			"granted":  true,
			"consumed": true,
		})
		c.logger.Info("consent consumed for high-risk release", "topic", topic)
	}

	if c.generate {
		if answerText, ok := c.generateAnswer(ctx, topic, redaction); ok {
			return answerText
		}
	}

	return fmt.Sprintf("SANITIZED_CONTEXT:\n%s\n\nRedactions: %d\nRisk: %s",
		redaction.CleanedText, redaction.RedactionCount, redaction.RiskLevel)
}

// SaveMemory stores one user-authored fact.
func (c *Controller) SaveMemory(ctx context.Context, fact, category string) string {
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return errPrefix + "'fact' is required."
	}
	if strings.TrimSpace(category) == "" {
		category = "general"
	}

	if err := c.store.SaveUserFact(ctx, fact, category); err != nil {
		c.logger.Error("failed to save user fact", "category", category, "error", err)
		return errPrefix + "failed to save memory."
	}

	c.bus.Publish(events.TypeMemorySaved, map[string]any{
		"category":    category,
		"fact_length": len(fact),
	})

	return "MEMORY_SAVED: " + fact
}

// GrantConsent records a consent grant for a topic and publishes the decision.
func (c *Controller) GrantConsent(topic string) {
	c.gate.Grant(topic)
	c.bus.Publish(events.TypeConsentDecision, map[string]any{
		"topic":   topic,
		"granted": true,
	})
}

// DenyConsent erases any pending consent for a topic and publishes the
// decision.
func (c *Controller) DenyConsent(topic string) {
	c.gate.Deny(topic)
	c.bus.Publish(events.TypeConsentDecision, map[string]any{
		"topic":   topic,
		"granted": false,
	})
}

// shrinkToSafe builds the numbered context and redacts it. The full context
// is accepted when the pass comes back low-risk and high-confidence;
// otherwise prefixes of length 1..N are tried in order and the first safe one
// wins. When no prefix is safe the full snapshot falls through to the gate.
func (c *Controller) shrinkToSafe(results []string) (rawContext string, redaction privacy.Result) {
	rawContext = numberedContext(results)
	redaction = c.pipeline.Redact(rawContext)
	if redaction.RiskLevel == privacy.RiskLow && redaction.Confidence == privacy.ConfidenceHigh {
		return rawContext, redaction
	}

	for n := 1; n < len(results); n++ {
		prefixRaw := numberedContext(results[:n])
		prefixRedaction := c.pipeline.Redact(prefixRaw)
		if prefixRedaction.RiskLevel == privacy.RiskLow && prefixRedaction.Confidence == privacy.ConfidenceHigh {
			c.logger.Debug("shrunk context to safe prefix",
				"results", len(results),
				"kept", n,
			)
			return prefixRaw, prefixRedaction
		}
	}

	return rawContext, redaction
}

// generateAnswer runs the orchestrator over the sanitized context. ok is
// false when generation failed and the caller should fall through to the
// default payload.
func (c *Controller) generateAnswer(ctx context.Context, topic string, redaction privacy.Result) (string, bool) {
	c.bus.Publish(events.TypeArchestraRequest, map[string]any{
		"topic":           topic,
		"context_chars":   len(redaction.CleanedText),
		"redaction_count": redaction.RedactionCount,
	})

	answerText, err := c.answerer.Generate(ctx, answer.Request{
		SystemContext:  redaction.CleanedText,
		UserQuery:      topic,
		RedactionCount: redaction.RedactionCount,
		RiskLevel:      string(redaction.RiskLevel),
	})
	if err != nil {
		c.logger.Warn("answer generation failed, returning sanitized context",
			"topic", topic,
			"error", err,
		)
		c.bus.Publish(events.TypeArchestraResponse, map[string]any{
			"topic": topic,
			"error": err.Error(),
		})
		return "", false
	}

	c.bus.Publish(events.TypeArchestraResponse, map[string]any{
		"topic":         topic,
		"answer_length": len(answerText),
	})
	return answerText, true
}

// numberedContext renders results as "[1] …\n[2] …".
func numberedContext(results []string) string {
	var b strings.Builder
	for i, text := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, text)
	}
	return b.String()
}

// truncate cuts text to at most max bytes on a rune boundary.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	for len(cut) > 0 && !isRuneStart(text[len(cut)]) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// clamp bounds v to [lo, hi], substituting def when v is unset.
func clamp(v, lo, hi, def int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
