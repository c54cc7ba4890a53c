// Package embedding maps text to fixed-dimension unit vectors via a
// pluggable provider, with an on-disk cache for remote results. The local
// provider is fully deterministic and needs no network, so the gateway can
// always boot without credentials.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
)

// Provider identifies an embedding backend.
type Provider string

// Supported providers.
const (
	ProviderLocal  Provider = "local"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// DefaultDimension is the repository-wide vector dimension when none is
// configured.
const DefaultDimension = 256

// gatewayTokenPrefix marks Archestra gateway personal tokens, which are not
// direct provider credentials.
const gatewayTokenPrefix = "archestra_"

// ErrWrongKeyKind is returned when a credential carries another provider's
// prefix (e.g. a gateway personal token used as a direct provider key).
var ErrWrongKeyKind = errors.New("embedding: credential belongs to a different provider")

// remoteClient is implemented by the OpenAI-compatible and Gemini clients.
type remoteClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service embeds text with deterministic normalization and mandatory
// dimension alignment: the store assumes a fixed dimension.
type Service struct {
	provider Provider
	model    string
	dim      int
	remote   remoteClient
	cache    *Cache
	logger   hclog.Logger
}

// ServiceConfig holds configuration for the embedding service.
type ServiceConfig struct {
	Provider     string // "gemini", "openai", "local"; empty = infer from keys
	GeminiAPIKey string
	OpenAIAPIKey string
	Model        string // provider model id (default per provider)
	Dimension    int    // vector dimension (default: 256)
	BaseURL      string // optional base URL override for remote providers

	CachePath string   // on-disk cache file; empty disables persistence
	Fs        afero.Fs // filesystem for the cache (default: OS)

	Timeout time.Duration // HTTP timeout for remote providers (default: 30s)
	Logger  hclog.Logger
}

// NewService creates an embedding service, selecting the provider once:
// explicit configuration wins; otherwise the provider is inferred from which
// credentials are present.
func NewService(config ServiceConfig) (*Service, error) {
	if config.Dimension <= 0 {
		config.Dimension = DefaultDimension
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = hclog.NewNullLogger()
	}
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}

	provider, err := resolveProvider(config)
	if err != nil {
		return nil, err
	}

	s := &Service{
		provider: provider,
		model:    config.Model,
		dim:      config.Dimension,
		logger:   config.Logger.Named("embedding-service"),
	}

	switch provider {
	case ProviderOpenAI:
		if s.model == "" {
			s.model = "text-embedding-3-small"
		}
		s.remote = newOpenAIEmbedder(openAIEmbedderConfig{
			APIKey:  config.OpenAIAPIKey,
			BaseURL: config.BaseURL,
			Model:   s.model,
			Timeout: config.Timeout,
			Logger:  s.logger,
		})
	case ProviderGemini:
		if s.model == "" {
			s.model = "text-embedding-004"
		}
		s.remote = newGeminiEmbedder(geminiEmbedderConfig{
			APIKey:     config.GeminiAPIKey,
			BaseURL:    config.BaseURL,
			Model:      s.model,
			Dimensions: config.Dimension,
			Timeout:    config.Timeout,
			Logger:     s.logger,
		})
	case ProviderLocal:
		if s.model == "" {
			s.model = "local-hash-v1"
		}
	}

	if config.CachePath != "" && provider != ProviderLocal {
		s.cache = NewCache(CacheConfig{
			Fs:     config.Fs,
			Path:   config.CachePath,
			Logger: s.logger,
		})
	}

	s.logger.Info("embedding provider selected",
		"provider", provider,
		"model", s.model,
		"dimensions", s.dim,
	)

	return s, nil
}

// resolveProvider applies the explicit-wins, then infer-from-credentials
// selection policy, rejecting credentials with the wrong provider prefix.
func resolveProvider(config ServiceConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "gemini", "google":
		if err := checkKeyKind(ProviderGemini, config.GeminiAPIKey); err != nil {
			return "", err
		}
		return ProviderGemini, nil
	case "openai", "openai-compatible":
		if err := checkKeyKind(ProviderOpenAI, config.OpenAIAPIKey); err != nil {
			return "", err
		}
		return ProviderOpenAI, nil
	case "local":
		return ProviderLocal, nil
	case "":
		if config.GeminiAPIKey != "" {
			if err := checkKeyKind(ProviderGemini, config.GeminiAPIKey); err != nil {
				return "", err
			}
			return ProviderGemini, nil
		}
		if config.OpenAIAPIKey != "" {
			if err := checkKeyKind(ProviderOpenAI, config.OpenAIAPIKey); err != nil {
				return "", err
			}
			return ProviderOpenAI, nil
		}
		return ProviderLocal, nil
	default:
		return "", fmt.Errorf("embedding: unsupported provider %q", config.Provider)
	}
}

// checkKeyKind rejects credentials whose prefix belongs to another provider.
func checkKeyKind(provider Provider, key string) error {
	if key == "" {
		return fmt.Errorf("embedding: %s provider requires an API key", provider)
	}
	if strings.HasPrefix(key, gatewayTokenPrefix) {
		return fmt.Errorf("%w: gateway personal token used as %s key", ErrWrongKeyKind, provider)
	}
	switch provider {
	case ProviderGemini:
		if strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("%w: openai-shaped key used as gemini key", ErrWrongKeyKind)
		}
	case ProviderOpenAI:
		if strings.HasPrefix(key, "AIza") {
			return fmt.Errorf("%w: gemini-shaped key used as openai key", ErrWrongKeyKind)
		}
	}
	return nil
}

// Provider returns the selected provider.
func (s *Service) Provider() Provider { return s.provider }

// Dimension returns the repository-wide vector dimension.
func (s *Service) Dimension() int { return s.dim }

// Embed maps text to a unit vector of the configured dimension. The
// normalized empty string yields a nil vector and no error.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	normalized := NormalizeText(text)
	if normalized == "" {
		return nil, nil
	}

	if s.provider == ProviderLocal {
		return localEmbed(normalized, s.dim), nil
	}

	key := CacheKey(string(s.provider), s.model, normalized)
	if s.cache != nil {
		if vec, ok := s.cache.Get(key); ok {
			return vec, nil
		}
	}

	vec, err := s.remote.Embed(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("embedding: %s request failed: %w", s.provider, err)
	}

	// Dimension alignment is mandatory: the store assumes a fixed dimension.
	vec = alignDim(vec, s.dim)

	if s.cache != nil {
		// Best-effort: cache failures never break retrieval.
		s.cache.Put(key, vec)
	}

	return vec, nil
}

// NormalizeText trims and collapses interior whitespace. Runs before any
// processing or cache lookup.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// alignDim truncates or zero-pads vec to d entries.
func alignDim(vec []float32, d int) []float32 {
	if len(vec) == d {
		return vec
	}
	out := make([]float32, d)
	copy(out, vec)
	return out
}
