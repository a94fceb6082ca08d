package chunker

import "unicode/utf8"

// SplitRunes breaks text into consecutive pieces of at most size code points.
// Only the last piece may be shorter. Empty text yields no pieces.
func SplitRunes(text string, size int) []string {
	if text == "" || size <= 0 {
		return nil
	}
	n := utf8.RuneCountInString(text)
	if n <= size {
		return []string{text}
	}

	parts := make([]string, 0, (n+size-1)/size)
	start, count := 0, 0
	for i := range text {
		if count == size {
			parts = append(parts, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(parts, text[start:])
}
