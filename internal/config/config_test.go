package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, warnings, errs := Load(map[string]string{})

	require.Empty(t, errs)
	assert.Empty(t, warnings)
	assert.Equal(t, "hybrid", cfg.QueryScope)
	assert.True(t, cfg.StrictMatch)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 500, cfg.MaxResultChars)
	assert.Equal(t, 256, cfg.EmbedDimension)
	assert.False(t, cfg.PrivacyDebug)
	assert.True(t, cfg.ConsentEnabled)
	assert.Equal(t, 5*time.Minute, cfg.ConsentTTL())
	assert.Equal(t, AnswerModeExtractive, cfg.AnswerMode)
	assert.Equal(t, "excerpt", cfg.GroundingMode)
	assert.Equal(t, 200, cfg.BusCapacity)
}

func TestLoadWeaklyTypedOverrides(t *testing.T) {
	cfg, _, errs := Load(map[string]string{
		"RECALL_QUERY_SCOPE":    "facts_only",
		"RECALL_TOP_K":          "8",
		"RECALL_STRICT_MATCH":   "false",
		"RECALL_PRIVACY_DEBUG":  "true",
		"RECALL_CONSENT_TTL_MS": "60000",
		"RECALL_BUS_CAPACITY":   "50",
	})

	require.Empty(t, errs)
	assert.Equal(t, "facts_only", cfg.QueryScope)
	assert.Equal(t, 8, cfg.TopK)
	assert.False(t, cfg.StrictMatch)
	assert.True(t, cfg.PrivacyDebug)
	assert.Equal(t, time.Minute, cfg.ConsentTTL())
	assert.Equal(t, 50, cfg.BusCapacity)
}

func TestLoadIgnoresUnprefixedAndEmptyValues(t *testing.T) {
	cfg, _, errs := Load(map[string]string{
		"TOP_K":        "9", // missing prefix
		"RECALL_TOP_K": "",  // empty values keep the default
	})

	require.Empty(t, errs)
	assert.Equal(t, 5, cfg.TopK)
}

func TestLoadRejectsUnknownScope(t *testing.T) {
	_, _, errs := Load(map[string]string{
		"RECALL_QUERY_SCOPE": "everything",
	})
	require.NotEmpty(t, errs)
}

func TestLoadRejectsUnknownGrounding(t *testing.T) {
	_, _, errs := Load(map[string]string{
		"RECALL_GROUNDING_MODE": "fuzzy",
	})
	require.NotEmpty(t, errs)
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	tests := map[string]map[string]string{
		"port too high":       {"RECALL_PORT": "70000"},
		"port too low":        {"RECALL_PORT": "0"},
		"dimension too small": {"RECALL_EMBED_DIMENSION": "4"},
		"dimension too large": {"RECALL_EMBED_DIMENSION": "8192"},
		"capacity zero":       {"RECALL_BUS_CAPACITY": "0"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, errs := Load(env)
			assert.NotEmpty(t, errs)
		})
	}
}

func TestRemoteAnswerWithoutCredentialsDowngrades(t *testing.T) {
	cfg, warnings, errs := Load(map[string]string{
		"RECALL_ANSWER_MODE": "remote",
	})

	require.Empty(t, errs)
	require.NotEmpty(t, warnings)
	assert.Equal(t, AnswerModeExtractive, cfg.AnswerMode)
}

func TestRemoteGeminiRequiresProfile(t *testing.T) {
	_, _, errs := Load(map[string]string{
		"RECALL_ANSWER_MODE": "remote",
		"RECALL_PROVIDER":    "gemini",
		"RECALL_MODEL":       "gemini-2.0-flash",
		"GEMINI_API_KEY":     "AIzaSyRealKey",
	})
	require.NotEmpty(t, errs)
}

func TestRemoteGeminiAcceptsProfileInBaseURL(t *testing.T) {
	cfg, _, errs := Load(map[string]string{
		"RECALL_ANSWER_MODE": "remote",
		"RECALL_PROVIDER":    "google",
		"RECALL_MODEL":       "gemini-2.0-flash",
		"RECALL_BASE_URL":    "https://gw.example.com/profiles/p9",
		"GEMINI_API_KEY":     "AIzaSyRealKey",
	})

	require.Empty(t, errs)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, AnswerModeRemote, cfg.AnswerMode)
}

func TestRemoteGeminiRejectsGatewayToken(t *testing.T) {
	_, _, errs := Load(map[string]string{
		"RECALL_ANSWER_MODE": "remote",
		"RECALL_PROVIDER":    "gemini",
		"RECALL_MODEL":       "gemini-2.0-flash",
		"RECALL_PROFILE_ID":  "p9",
		"GEMINI_API_KEY":     "archestra_personal_token",
	})
	require.NotEmpty(t, errs)
}

func TestRemoteModeRequiresModel(t *testing.T) {
	_, _, errs := Load(map[string]string{
		"RECALL_ANSWER_MODE": "remote",
		"OPENAI_API_KEY":     "sk-realkey",
	})
	require.NotEmpty(t, errs)
}

func TestExplicitEmbedProviderWithoutKeyFallsBackToLocal(t *testing.T) {
	cfg, warnings, errs := Load(map[string]string{
		"RECALL_EMBED_PROVIDER": "openai",
	})

	require.Empty(t, errs)
	require.NotEmpty(t, warnings)
	assert.Equal(t, "local", cfg.EmbedProvider)
}

func TestUnknownProviderAliasRejected(t *testing.T) {
	_, _, errs := Load(map[string]string{
		"RECALL_PROVIDER": "bedrock",
	})
	require.NotEmpty(t, errs)
}
