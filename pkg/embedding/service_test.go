package embedding

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalService(t *testing.T, dim int) *Service {
	t.Helper()
	s, err := NewService(ServiceConfig{
		Provider:  "local",
		Dimension: dim,
	})
	require.NoError(t, err)
	return s
}

func TestLocalEmbeddingIsDeterministic(t *testing.T) {
	s := newLocalService(t, 64)

	a, err := s.Embed(context.Background(), "black coffee")
	require.NoError(t, err)
	b, err := s.Embed(context.Background(), "black coffee")
	require.NoError(t, err)

	require.Len(t, a, 64)
	assert.Equal(t, a, b, "identical input must be bitwise identical")
}

func TestLocalEmbeddingIsUnitLength(t *testing.T) {
	s := newLocalService(t, 32)

	vec, err := s.Embed(context.Background(), "some text")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestEmbedNormalizesWhitespace(t *testing.T) {
	s := newLocalService(t, 16)

	a, err := s.Embed(context.Background(), "  hello   world  ")
	require.NoError(t, err)
	b, err := s.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEmbedEmptyTextYieldsNil(t *testing.T) {
	s := newLocalService(t, 16)

	vec, err := s.Embed(context.Background(), "   \n\t ")
	require.NoError(t, err)
	assert.Nil(t, vec)
}

func TestAlignDim(t *testing.T) {
	vec := []float32{1, 2, 3, 4}

	assert.Len(t, alignDim(vec, 2), 2)
	assert.Equal(t, []float32{1, 2}, alignDim(vec, 2))

	padded := alignDim(vec, 6)
	require.Len(t, padded, 6)
	assert.Equal(t, float32(0), padded[5])

	// Same length passes through untouched.
	assert.Equal(t, vec, alignDim(vec, 4))
}

func TestProviderResolution(t *testing.T) {
	tests := []struct {
		name    string
		config  ServiceConfig
		want    Provider
		wantErr bool
	}{
		{"explicit local", ServiceConfig{Provider: "local"}, ProviderLocal, false},
		{"no keys infers local", ServiceConfig{}, ProviderLocal, false},
		{"gemini key infers gemini", ServiceConfig{GeminiAPIKey: "AIzaSyExample"}, ProviderGemini, false},
		{"openai key infers openai", ServiceConfig{OpenAIAPIKey: "sk-testexample"}, ProviderOpenAI, false},
		{"gemini wins over openai", ServiceConfig{GeminiAPIKey: "AIzaSyExample", OpenAIAPIKey: "sk-test"}, ProviderGemini, false},
		{"unknown provider", ServiceConfig{Provider: "bedrock"}, "", true},
		{"explicit remote without key", ServiceConfig{Provider: "openai"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveProvider(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrongKeyKindIsRejected(t *testing.T) {
	t.Run("gateway token as provider key", func(t *testing.T) {
		_, err := NewService(ServiceConfig{
			Provider:     "openai",
			OpenAIAPIKey: "archestra_personal_token",
		})
		assert.ErrorIs(t, err, ErrWrongKeyKind)
	})

	t.Run("openai key as gemini key", func(t *testing.T) {
		_, err := NewService(ServiceConfig{
			Provider:     "gemini",
			GeminiAPIKey: "sk-thisisopenai",
		})
		assert.ErrorIs(t, err, ErrWrongKeyKind)
	})

	t.Run("gemini key as openai key", func(t *testing.T) {
		_, err := NewService(ServiceConfig{
			Provider:     "openai",
			OpenAIAPIKey: "AIzaSyGemini",
		})
		assert.ErrorIs(t, err, ErrWrongKeyKind)
	})
}

func TestCacheRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()

	first := NewCache(CacheConfig{Fs: fs, Path: "/cache.json"})
	key := CacheKey("openai", "text-embedding-3-small", "hello")
	first.Put(key, []float32{0.25, -0.5})

	// A fresh cache over the same file sees the persisted entry.
	second := NewCache(CacheConfig{Fs: fs, Path: "/cache.json"})
	vec, ok := second.Get(key)
	require.True(t, ok)
	assert.Equal(t, []float32{0.25, -0.5}, vec)
}

func TestCacheIgnoresCorruptFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cache.json", []byte("{not json"), 0o644))

	c := NewCache(CacheConfig{Fs: fs, Path: "/cache.json"})
	assert.Equal(t, 0, c.Len())
}

func TestCacheKeyIsStableAndDistinct(t *testing.T) {
	a := CacheKey("openai", "m1", "text")
	b := CacheKey("openai", "m1", "text")
	c := CacheKey("gemini", "m1", "text")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
