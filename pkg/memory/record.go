// Package memory implements the two-table vector store behind the gateway:
// documents holds ingested file chunks, user_facts holds facts written by
// the explicit save tool. The tables share a schema but are queried and
// cleared independently.
package memory

import (
	"encoding/binary"
	"math"
	"time"
)

// Source tags a record with its origin.
type Source string

// Record sources. Source is immutable post-write.
const (
	SourceDocument Source = "document"
	SourceUserFact Source = "user_fact"
)

// Table names for the two logical tables.
const (
	TableDocuments = "documents"
	TableUserFacts = "user_facts"
)

// Record is one stored memory. The vector length always equals the
// repository-wide dimension.
type Record struct {
	ID        string `gorm:"primaryKey"`
	Text      string `gorm:"not null"`
	Vector    []byte `gorm:"not null"`
	Category  string `gorm:"index"`
	Source    string `gorm:"index;not null"`
	CreatedAt time.Time
}

// encodeVector packs a float32 vector into a little-endian BLOB.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a little-endian BLOB into a float32 vector.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// cosineDistance returns 1 - cosine similarity. Lower is closer. Zero
// vectors are treated as maximally distant.
func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
