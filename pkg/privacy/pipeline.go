// Package privacy implements the redaction pipeline that sanitizes memory
// content before it leaves the process. Redaction is a single left-to-right
// pass over an ordered list of patterns; order is load-bearing because
// broader patterns (email, phone) must run before narrow structural ones
// that could otherwise match substrings.
package privacy

import (
	"strings"

	"github.com/hashicorp/go-hclog"
)

// RiskLevel classifies the sensitivity of redacted content.
type RiskLevel string

// Risk levels. MEDIUM is reserved and never emitted.
const (
	RiskLow  RiskLevel = "LOW"
	RiskHigh RiskLevel = "HIGH"
)

// Confidence reports whether the pass is believed complete. LOW means a
// sensitive shape survived redaction and the content must not be released.
type Confidence string

// Confidence levels.
const (
	ConfidenceHigh Confidence = "HIGH"
	ConfidenceLow  Confidence = "LOW"
)

// riskThreshold is the total replacement count at which content is
// considered high risk even without a high-severity match.
const riskThreshold = 5

// Result is the outcome of a redaction pass.
type Result struct {
	CleanedText    string
	RedactionCount int
	PatternCounts  map[string]int
	RiskLevel      RiskLevel
	Confidence     Confidence

	// SyntheticMap maps each sensitive value to the placeholder that
	// replaced it. Used only for debug observability; never returned to
	// callers.
	SyntheticMap map[string]string
}

// Pipeline applies the ordered pattern set to text.
type Pipeline struct {
	patterns []pattern
	logger   hclog.Logger
}

// PipelineConfig holds configuration for the redaction pipeline.
type PipelineConfig struct {
	Logger hclog.Logger
}

// NewPipeline creates a redaction pipeline with the default pattern set.
func NewPipeline(config PipelineConfig) *Pipeline {
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}

	return &Pipeline{
		patterns: defaultPatterns(),
		logger:   config.Logger.Named("privacy-pipeline"),
	}
}

// Redact runs the ordered pattern pass and scores the result.
func (p *Pipeline) Redact(text string) Result {
	result := Result{
		CleanedText:   text,
		PatternCounts: map[string]int{},
		SyntheticMap:  map[string]string{},
	}

	highFired := false
	for _, pat := range p.patterns {
		cleaned, hits := p.applyPattern(pat, result.CleanedText, result.SyntheticMap)
		if hits > 0 {
			result.CleanedText = cleaned
			result.PatternCounts[pat.name] += hits
			result.RedactionCount += hits
			if pat.severity == severityHigh {
				highFired = true
			}
		}
	}

	result.RiskLevel = RiskLow
	if highFired || result.RedactionCount >= riskThreshold {
		result.RiskLevel = RiskHigh
	}

	result.Confidence = ConfidenceHigh
	if residual := residualShape(result.CleanedText); residual != "" {
		result.Confidence = ConfidenceLow
		p.logger.Warn("sensitive shape survived redaction",
			"shape", residual,
			"redactions", result.RedactionCount,
		)
	}

	if result.RedactionCount > 0 {
		p.logger.Debug("redaction pass completed",
			"redactions", result.RedactionCount,
			"risk", result.RiskLevel,
			"confidence", result.Confidence,
		)
	}

	return result
}

// residualShape reports the first unresolved sensitive pattern remaining in
// cleaned text, or "" when none remain. Acts as a fail-safe: a leaked
// sensitive shape degrades confidence even if no rule matched it.
func residualShape(text string) string {
	for _, r := range residualDetectors {
		if r.re.MatchString(text) {
			return r.name
		}
	}
	return ""
}

// Placeholders returns every placeholder literal the pipeline can emit.
// Stats derivation counts occurrences of these in cleaned text.
func Placeholders() []string {
	return []string{
		PlaceholderEmail,
		PlaceholderPhone,
		PlaceholderSSN,
		PlaceholderCreditCard,
		PlaceholderFinancialAmount,
		PlaceholderAPIKey,
		PlaceholderAWSAccessKey,
		PlaceholderJWT,
		PlaceholderSecret,
		PlaceholderPassword,
		PlaceholderAccountNumber,
		PlaceholderProjectCode,
	}
}

// normalizeSpace collapses runs of whitespace to single spaces and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
