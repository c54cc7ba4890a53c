package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hashicorp-forge/recall/pkg/embedding"
)

func newTestStore(t *testing.T, strict bool) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	embedder, err := embedding.NewService(embedding.ServiceConfig{
		Provider:  "local",
		Dimension: 64,
	})
	require.NoError(t, err)

	store, err := NewStore(StoreConfig{
		DB:          db,
		Embedder:    embedder,
		StrictMatch: &strict,
	})
	require.NoError(t, err)
	return store
}

func TestSaveAndSearchByKeyword(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	require.NoError(t, s.SaveDocument(ctx, "My number is 9876543210.", "/tmp/notes.txt"))
	require.NoError(t, s.SaveDocument(ctx, "I earn $100k.", "/tmp/notes.txt"))

	results, err := s.Search(ctx, "number", 5)
	require.NoError(t, err)
	require.Len(t, results, 1, "guardrail keeps only lexically related rows")
	assert.Contains(t, results[0], "number")
}

func TestSearchNameIntentHeuristic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	require.NoError(t, s.SaveUserFact(ctx, "JOHN DOE", "personal"))

	// "name" never appears in the stored text; the name-shape heuristic
	// must still surface the record.
	results, err := s.Search(ctx, "what is my name", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "JOHN DOE", results[0])
}

func TestStrictMatchReturnsEmptyOnUnrelatedQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	require.NoError(t, s.SaveDocument(ctx, "The weather was nice today", "/tmp/journal.md"))

	results, err := s.Search(ctx, "quantum flux capacitor", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStrictMatchOffFallsBackToVectorResults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	require.NoError(t, s.SaveDocument(ctx, "The weather was nice today", "/tmp/journal.md"))

	results, err := s.Search(ctx, "quantum flux capacitor", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchDeduplicatesIdenticalText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	require.NoError(t, s.SaveDocument(ctx, "coffee preference: black coffee", "/a/prefs.txt"))
	require.NoError(t, s.SaveDocument(ctx, "coffee preference: black coffee", "/b/prefs.txt"))

	results, err := s.Search(ctx, "coffee", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchAcrossBothTables(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	require.NoError(t, s.SaveDocument(ctx, "meeting notes about coffee budget", "/tmp/notes.txt"))
	require.NoError(t, s.SaveUserFact(ctx, "I drink coffee daily", "habits"))

	results, err := s.Search(ctx, "coffee", 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestEmptyTextIsNotSaved(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	require.NoError(t, s.SaveUserFact(ctx, "   \n ", "x"))

	recs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRecentOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	require.NoError(t, s.SaveUserFact(ctx, "first fact", "a"))
	require.NoError(t, s.SaveUserFact(ctx, "second fact", "a"))

	recs, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestDeleteDocumentsBySource(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	require.NoError(t, s.SaveDocument(ctx, "chunk one about tea", "/tmp/tea.txt"))
	require.NoError(t, s.SaveDocument(ctx, "chunk two about tea", "/tmp/tea.txt"))
	require.NoError(t, s.SaveDocument(ctx, "unrelated coffee chunk", "/tmp/coffee.txt"))

	deleted, err := s.DeleteDocumentsBySource(ctx, "/tmp/tea.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	results, err := s.Search(ctx, "coffee", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestClearTables(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	require.NoError(t, s.SaveDocument(ctx, "doc about plants", "/tmp/plants.txt"))
	require.NoError(t, s.SaveUserFact(ctx, "fact about plants", "nature"))

	deleted, err := s.ClearDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = s.ClearUserFacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	recs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestVectorCodecRoundTrip(t *testing.T) {
	vec := []float32{0.5, -0.25, 1, 0}
	assert.Equal(t, vec, decodeVector(encodeVector(vec)))
}

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	assert.InDelta(t, 0, cosineDistance(a, a), 1e-9)
	assert.InDelta(t, 1, cosineDistance(a, b), 1e-9)
	assert.Equal(t, float64(1), cosineDistance(a, []float32{0, 0}))
}
