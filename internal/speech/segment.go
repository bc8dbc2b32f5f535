// Package speech feeds reply text to a speech synthesiser in bounded chunks,
// preferring to cut after a sentence and otherwise between words.
package speech

import "iter"

// DefaultChunk is the largest utterance the SAM device accepts at once.
const DefaultChunk = 100

// Segments yields the chunks of text in order. Each chunk is non-empty and at
// most maxChunk bytes long; the whitespace between chunks is dropped.
func Segments(text string, maxChunk int) iter.Seq[string] {
	if maxChunk <= 0 {
		maxChunk = DefaultChunk
	}

	return func(yield func(string) bool) {
		start := skipSpace(text, 0)
		for start < len(text) {
			end := chunkEnd(text, start, maxChunk)
			if !yield(text[start:end]) {
				return
			}
			start = skipSpace(text, end)
		}
	}
}

func chunkEnd(text string, start, maxChunk int) int {
	windowEnd := min(start+maxChunk, len(text))

	for i := windowEnd - 1; i >= start; i-- {
		switch text[i] {
		case '.', '?', '!':
			return i + 1
		}
	}

	i := windowEnd
	if i == len(text) {
		i--
	}
	for ; i > start; i-- {
		if isSpace(text[i]) {
			return i
		}
	}

	return windowEnd
}

func skipSpace(text string, i int) int {
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
