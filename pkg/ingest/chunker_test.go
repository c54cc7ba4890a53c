package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyText(t *testing.T) {
	assert.Nil(t, Chunk("", 100, 10))
	assert.Nil(t, Chunk("   \n\t  ", 100, 10))
}

func TestChunkShortTextIsSinglePiece(t *testing.T) {
	chunks := Chunk("just a short note", 100, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, "just a short note", chunks[0])
}

func TestChunkRespectsSizeAndBreaksOnWhitespace(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta ", 50)
	chunks := Chunk(text, 100, 20)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), 100, "chunk %d exceeds size", i)
		assert.False(t, strings.HasPrefix(c, " "))
		assert.False(t, strings.HasSuffix(c, " "))
	}
}

func TestChunkOverlapCarriesTrailingWords(t *testing.T) {
	text := strings.Repeat("word ", 60)
	chunks := Chunk(text, 100, 20)
	require.Greater(t, len(chunks), 1)

	// Successive chunks repeat the tail of the previous one.
	tail := chunks[0][len(chunks[0])-10:]
	assert.Contains(t, chunks[1], strings.TrimSpace(tail))
}

func TestChunkOversizedWordBecomesOwnChunk(t *testing.T) {
	long := strings.Repeat("x", 300)
	chunks := Chunk("start "+long+" end", 100, 10)

	require.Len(t, chunks, 3)
	assert.Equal(t, long, chunks[1])
}

func TestChunkCoversAllWords(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	chunks := Chunk(text, 20, 5)

	joined := strings.Join(chunks, " ")
	for _, w := range strings.Fields(text) {
		assert.Contains(t, joined, w)
	}
}
