// Package config parses the process environment into a validated runtime
// configuration. Problems split two ways: errors abort startup, warnings
// degrade to safe defaults and are reported once at boot.
package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"

	"github.com/hashicorp-forge/recall/pkg/answer"
	"github.com/hashicorp-forge/recall/pkg/embedding"
)

// envPrefix namespaces every recognized variable.
const envPrefix = "RECALL_"

// Config is the validated runtime configuration.
type Config struct {
	// Retrieval.
	QueryScope     string `mapstructure:"query_scope"`
	StrictMatch    bool   `mapstructure:"strict_match"`
	TopK           int    `mapstructure:"top_k"`
	MaxResultChars int    `mapstructure:"max_chars"`
	EmbedDimension int    `mapstructure:"embed_dimension"`

	// Privacy.
	PrivacyDebug bool `mapstructure:"privacy_debug"`

	// Consent.
	ConsentTTLMs   int  `mapstructure:"consent_ttl_ms"`
	ConsentEnabled bool `mapstructure:"consent_enabled"`

	// Answer orchestration.
	AnswerMode    string `mapstructure:"answer_mode"` // extractive | remote
	GroundingMode string `mapstructure:"grounding_mode"`
	Provider      string `mapstructure:"provider"` // answer provider alias
	BaseURL       string `mapstructure:"base_url"`
	ProfileID     string `mapstructure:"profile_id"`
	Model         string `mapstructure:"model"`

	// Embedding.
	EmbedProvider string `mapstructure:"embed_provider"`
	EmbedModel    string `mapstructure:"embed_model"`

	// Event bus.
	BusCapacity int `mapstructure:"bus_capacity"`

	// Process.
	DataDir string `mapstructure:"data_dir"`
	Port    int    `mapstructure:"port"`

	// Credentials, read without the prefix.
	GeminiAPIKey string `mapstructure:"-"`
	OpenAIAPIKey string `mapstructure:"-"`
}

// Answer modes.
const (
	AnswerModeExtractive = "extractive"
	AnswerModeRemote     = "remote"
)

// Default returns the configuration used when the environment sets nothing.
func Default() *Config {
	return &Config{
		QueryScope:     "hybrid",
		StrictMatch:    true,
		TopK:           5,
		MaxResultChars: 500,
		EmbedDimension: embedding.DefaultDimension,
		PrivacyDebug:   false,
		ConsentTTLMs:   int(5 * time.Minute / time.Millisecond),
		ConsentEnabled: true,
		AnswerMode:     AnswerModeExtractive,
		GroundingMode:  "excerpt",
		Provider:       "openai",
		EmbedProvider:  "",
		EmbedModel:     "text-embedding-3-small",
		BusCapacity:    200,
		DataDir:        ".recall",
		Port:           8787,
	}
}

// ConsentTTL returns the consent token lifetime.
func (c *Config) ConsentTTL() time.Duration {
	return time.Duration(c.ConsentTTLMs) * time.Millisecond
}

// Load decodes the environment over the defaults and validates the result.
// Errors make the configuration unusable; warnings describe degradations
// already applied (e.g. falling back to the local embedding provider).
func Load(env map[string]string) (*Config, []string, []string) {
	cfg := Default()

	raw := map[string]any{}
	for key, value := range env {
		if !strings.HasPrefix(key, envPrefix) || value == "" {
			continue
		}
		raw[strings.ToLower(strings.TrimPrefix(key, envPrefix))] = value
	}

	var errs []string
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, nil, []string{fmt.Sprintf("failed to build decoder: %v", err)}
	}
	if err := decoder.Decode(raw); err != nil {
		errs = append(errs, fmt.Sprintf("failed to decode environment: %v", err))
	}

	cfg.GeminiAPIKey = env["GEMINI_API_KEY"]
	cfg.OpenAIAPIKey = env["OPENAI_API_KEY"]

	warnings, merr := cfg.validate()
	for _, e := range merr.Errors {
		errs = append(errs, e.Error())
	}

	if len(errs) > 0 {
		return nil, warnings, errs
	}
	return cfg, warnings, nil
}

// validate applies range and cross-field checks, downgrading missing
// credentials to warnings with a local fallback.
func (c *Config) validate() ([]string, *multierror.Error) {
	var warnings []string
	merr := &multierror.Error{}

	if err := validation.ValidateStruct(c,
		validation.Field(&c.QueryScope, validation.In("hybrid", "facts_only", "documents_only")),
		validation.Field(&c.GroundingMode, validation.In("exact", "excerpt")),
		validation.Field(&c.AnswerMode, validation.In(AnswerModeExtractive, AnswerModeRemote)),
		validation.Field(&c.Port, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.EmbedDimension, validation.Min(8), validation.Max(4096)),
		validation.Field(&c.BusCapacity, validation.Min(1)),
		validation.Field(&c.ConsentTTLMs, validation.Min(1)),
	); err != nil {
		merr = multierror.Append(merr, err)
	}

	// ozzo skips rules on zero values, so explicit zeros need their own
	// checks. The defaults are all non-zero.
	if c.Port == 0 {
		merr = multierror.Append(merr, fmt.Errorf("port: must be between 1 and 65535"))
	}
	if c.BusCapacity == 0 {
		merr = multierror.Append(merr, fmt.Errorf("bus_capacity: must be no less than 1"))
	}
	if c.ConsentTTLMs == 0 {
		merr = multierror.Append(merr, fmt.Errorf("consent_ttl_ms: must be no less than 1"))
	}

	if kind, err := answer.NormalizeAlias(c.Provider); err != nil {
		merr = multierror.Append(merr, err)
	} else {
		c.Provider = string(kind)
	}

	if c.AnswerMode == AnswerModeRemote {
		warnings = append(warnings, c.validateRemoteAnswer(merr)...)
	}

	warnings = append(warnings, c.validateEmbedProvider()...)

	return warnings, merr
}

// validateRemoteAnswer checks the provider branch selected for generation.
// Gemini requires a real key and a routable profile id.
func (c *Config) validateRemoteAnswer(merr *multierror.Error) []string {
	var warnings []string

	switch c.Provider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			warnings = append(warnings,
				"remote answer mode selected but GEMINI_API_KEY is unset; falling back to extractive answers")
			c.AnswerMode = AnswerModeExtractive
			return warnings
		}
		if strings.HasPrefix(c.GeminiAPIKey, "archestra_") {
			merr.Errors = append(merr.Errors,
				fmt.Errorf("GEMINI_API_KEY looks like a gateway token, not a provider key"))
		}
		if c.ProfileID == "" && answer.ExtractProfileID(c.BaseURL) == "" {
			merr.Errors = append(merr.Errors,
				fmt.Errorf("gemini provider requires a profile id, standalone or embedded in the base URL"))
		}
	default:
		if c.OpenAIAPIKey == "" && c.BaseURL == "" {
			warnings = append(warnings,
				"remote answer mode selected but OPENAI_API_KEY is unset; falling back to extractive answers")
			c.AnswerMode = AnswerModeExtractive
		}
	}
	if c.AnswerMode == AnswerModeRemote && c.Model == "" {
		merr.Errors = append(merr.Errors,
			fmt.Errorf("remote answer mode requires a model id"))
	}

	return warnings
}

// validateEmbedProvider downgrades an explicitly requested remote embedding
// provider to local when its credential is missing.
func (c *Config) validateEmbedProvider() []string {
	var warnings []string

	switch c.EmbedProvider {
	case string(embedding.ProviderOpenAI):
		if c.OpenAIAPIKey == "" {
			warnings = append(warnings,
				"embed provider openai requested but OPENAI_API_KEY is unset; using the local provider")
			c.EmbedProvider = string(embedding.ProviderLocal)
		}
	case string(embedding.ProviderGemini):
		if c.GeminiAPIKey == "" {
			warnings = append(warnings,
				"embed provider gemini requested but GEMINI_API_KEY is unset; using the local provider")
			c.EmbedProvider = string(embedding.ProviderLocal)
		}
	}

	return warnings
}
