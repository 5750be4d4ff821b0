// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package ingest

import (
	"strings"
	"unicode"
)

// ChunkProfile is a window size and overlap, both in characters (runes).
type ChunkProfile struct {
	Size    int
	Overlap int
}

// Default chunk profiles. Documents are resumes and other PDFs; policies are
// plain-text handbooks, which answer better from smaller windows.
var (
	DocumentProfile = ChunkProfile{Size: 1000, Overlap: 200}
	PolicyProfile   = ChunkProfile{Size: 500, Overlap: 100}
)

func (p ChunkProfile) normalize() ChunkProfile {
	if p.Size <= 0 {
		p.Size = DocumentProfile.Size
	}
	if p.Overlap < 0 || p.Overlap >= p.Size {
		p.Overlap = 0
	}
	return p
}

// Split cuts text into overlapping windows of at most p.Size runes. A window
// that would end inside the text is cut at the best boundary it contains:
// a blank line, then a line break, then the end of a sentence, then any
// whitespace. Structural boundaries only count in the second half of the
// window so chunks stay near full size; a whitespace cut only has to leave
// the window longer than the overlap. Consecutive windows share at most
// p.Overlap runes, and concatenating them with the shared prefix removed
// yields the trimmed input exactly.
func Split(text string, p ChunkProfile) []string {
	p = p.normalize()

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for {
		end := min(start+p.Size, len(runes))
		if end < len(runes) {
			if cut := cutPoint(runes[start:end], p.Overlap); cut > 0 {
				end = start + cut
			}
		}

		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			return chunks
		}
		start = end - p.Overlap
	}
}

// boundary reports whether a chunk may end just before w[i].
type boundary func(w []rune, i int) bool

var (
	paragraphBreak boundary = func(w []rune, i int) bool { return i >= 2 && w[i-1] == '\n' && w[i-2] == '\n' }
	lineBreak      boundary = func(w []rune, i int) bool { return w[i-1] == '\n' }
	sentenceEnd    boundary = func(w []rune, i int) bool {
		return i >= 2 && unicode.IsSpace(w[i-1]) && strings.ContainsRune(".!?", w[i-2])
	}
	wordBreak boundary = func(w []rune, i int) bool { return unicode.IsSpace(w[i-1]) }
)

// cutPoint returns the chunk length to use for window, or 0 when the window
// has no usable boundary and must be cut hard.
func cutPoint(window []rune, overlap int) int {
	floor := max(overlap+1, len(window)/2)
	for _, b := range []boundary{paragraphBreak, lineBreak, sentenceEnd} {
		if cut := lastBoundary(window, floor, b); cut > 0 {
			return cut
		}
	}
	return lastBoundary(window, overlap+1, wordBreak)
}

func lastBoundary(window []rune, floor int, b boundary) int {
	for i := len(window); i >= max(floor, 1); i-- {
		if b(window, i) {
			return i
		}
	}
	return 0
}
