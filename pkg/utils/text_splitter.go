package utils

import "unicode"

// SplitText cuts text into overlapping chunks of at most chunkSize runes.
// Chunk boundaries snap back to the nearest whitespace when one exists in the
// last tenth of the chunk, so words are rarely cut in half.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := end
		for i := end; i > end-chunkSize/10 && i > start; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[start:cut]))
	}

	return chunks
}
