package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAlias(t *testing.T) {
	tests := []struct {
		alias   string
		want    ProviderKind
		wantErr bool
	}{
		{"gemini", KindGemini, false},
		{"google", KindGemini, false},
		{"", KindOpenAI, false},
		{"openai", KindOpenAI, false},
		{"OpenAI-Compatible", KindOpenAI, false},
		{"chatgpt", KindOpenAI, false},
		{"claude", KindOpenAI, false},
		{"anthropic", KindOpenAI, false},
		{"bedrock", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			got, err := NormalizeAlias(tt.alias)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractProfileID(t *testing.T) {
	assert.Equal(t, "abc123",
		ExtractProfileID("https://gw.example.com/v1/profiles/abc123/chat"))
	assert.Equal(t, "p1", ExtractProfileID("http://localhost:9099/profiles/p1"))
	assert.Equal(t, "", ExtractProfileID("https://api.openai.com/v1"))
}

func TestResolveBaseURL(t *testing.T) {
	t.Run("openai default", func(t *testing.T) {
		url, err := ResolveBaseURL(KindOpenAI, "", "")
		require.NoError(t, err)
		assert.Equal(t, "https://api.openai.com/v1", url)
	})

	t.Run("gemini default gets versioned path", func(t *testing.T) {
		url, err := ResolveBaseURL(KindGemini, "", "")
		require.NoError(t, err)
		assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", url)
	})

	t.Run("profile id joined when absent", func(t *testing.T) {
		url, err := ResolveBaseURL(KindOpenAI, "https://gw.example.com/v1", "p7")
		require.NoError(t, err)
		assert.Equal(t, "https://gw.example.com/v1/profiles/p7", url)
	})

	t.Run("embedded profile id is not doubled", func(t *testing.T) {
		url, err := ResolveBaseURL(KindOpenAI, "https://gw.example.com/v1/profiles/p7", "p7")
		require.NoError(t, err)
		assert.Equal(t, "https://gw.example.com/v1/profiles/p7", url)
	})

	t.Run("gemini suffix not doubled", func(t *testing.T) {
		url, err := ResolveBaseURL(KindGemini, "https://proxy.example.com/v1beta", "")
		require.NoError(t, err)
		assert.Equal(t, "https://proxy.example.com/v1beta", url)
	})
}
