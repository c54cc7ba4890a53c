package ingest

import "strings"

// Chunking defaults, in characters.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120
)

// Chunk splits text into chunks of at most size characters, breaking only on
// whitespace, with successive chunks overlapping by roughly overlap
// characters of trailing words. Words longer than size become their own
// chunk rather than being split.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(words) {
		length := 0
		end := start
		for end < len(words) {
			add := len(words[end])
			if length > 0 {
				add++ // joining space
			}
			if length > 0 && length+add > size {
				break
			}
			length += add
			end++
		}

		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}

		// Walk back over trailing words until the overlap budget is covered,
		// always advancing by at least one word.
		back := end
		covered := 0
		for back > start+1 && covered < overlap {
			back--
			covered += len(words[back]) + 1
		}
		start = back
	}
	return chunks
}
