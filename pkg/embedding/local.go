package embedding

import (
	"hash/fnv"
	"math"
	"strconv"
)

// localEmbed computes a deterministic hash-based vector of the given
// dimension and unit-normalizes it. Identical inputs yield bitwise
// identical vectors across calls and processes.
func localEmbed(normalized string, dim int) []float32 {
	vec := make([]float32, dim)
	for i := range vec {
		h := fnv.New64a()
		h.Write([]byte(normalized))
		h.Write([]byte{'|'})
		h.Write([]byte(strconv.Itoa(i)))
		// Map the hash onto [-1, 1).
		vec[i] = float32(int64(h.Sum64()%2048)-1024) / 1024
	}
	return unitNormalize(vec)
}

// unitNormalize scales vec to unit length. The zero vector is returned
// unchanged.
func unitNormalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
