// Package splitter turns raw document text into overlapping fixed-size
// chunks suitable for embedding and retrieval.
package splitter

import (
	"strings"
	"unicode/utf8"
)

// separators are tried in order when choosing a cut point: paragraph
// break, line break, sentence-ending punctuation, then a plain space.
// If none of them lands past the overlap region the chunk is cut hard
// at the size limit.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// Splitter splits text into chunks of at most ChunkSize characters,
// each chunk after the first starting ChunkOverlap characters before
// the end of its predecessor. Splitting is pure and deterministic.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// New creates a Splitter. Out-of-range parameters are clamped so the
// splitter always makes forward progress: chunkSize >= 1 and
// 0 <= chunkOverlap < chunkSize.
func New(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize - 1
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split returns the ordered chunks of text. Empty or whitespace-only
// input yields nil, and no returned chunk is empty.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	if n <= s.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < n {
		end := start + s.chunkSize
		if end >= n {
			tail := string(runes[start:])
			if strings.TrimSpace(tail) != "" {
				chunks = append(chunks, tail)
			}
			break
		}

		cut := s.cutPoint(runes, start, end)
		piece := string(runes[start:cut])
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, piece)
		}
		start = cut - s.chunkOverlap
	}
	return chunks
}

// cutPoint picks where the chunk starting at start should end. It takes
// the last occurrence of the highest-priority separator inside the
// window, provided the resulting cut lies past the overlap region
// (otherwise the next chunk would not advance). Falls back to a hard
// cut at the size limit.
func (s *Splitter) cutPoint(runes []rune, start, end int) int {
	window := string(runes[start:end])
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		cut := utf8.RuneCountInString(window[:idx]) + utf8.RuneCountInString(sep)
		if cut > s.chunkOverlap {
			return start + cut
		}
	}
	return end
}
