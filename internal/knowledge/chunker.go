package knowledge

import "strings"

const (
	// DefaultChunkSize is the chunk window in words
	DefaultChunkSize = 500
	// DefaultChunkOverlap is how many words consecutive chunks share
	DefaultChunkOverlap = 50
)

// Chunk splits text into overlapping word windows. Each window holds up to
// size words and the start advances by size-overlap, so consecutive chunks
// share overlap words. Empty windows are dropped. The output is
// deterministic for a given input.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = 0
		}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[start:end], " ")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(words) {
			break
		}
	}
	return chunks
}
