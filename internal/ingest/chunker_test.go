// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package ingest_test

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-hr/aegis/internal/ingest"
)

// reassemble joins chunks, dropping the longest prefix of each chunk (at
// most overlap runes) that repeats the tail of the text so far.
func reassemble(chunks []string, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	out := []rune(chunks[0])
	for _, c := range chunks[1:] {
		next := []rune(c)
		shared := 0
		for d := min(overlap, len(next), len(out)); d > 0; d-- {
			if string(out[len(out)-d:]) == string(next[:d]) {
				shared = d
				break
			}
		}
		out = append(out, next[shared:]...)
	}
	return string(out)
}

// numberedText produces non-repeating prose so that overlaps are unambiguous.
func numberedText(words int) string {
	var b strings.Builder
	for i := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "word%04d", i)
		if i%13 == 12 {
			b.WriteString(".\n")
		}
	}
	return b.String()
}

func TestSplit_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		profile ingest.ChunkProfile
	}{
		{"documents profile", numberedText(800), ingest.DocumentProfile},
		{"policies profile", numberedText(400), ingest.PolicyProfile},
		{"no overlap", numberedText(300), ingest.ChunkProfile{Size: 120, Overlap: 0}},
		{"no whitespace", strings.Repeat("abcdefghij", 90) + "Z", ingest.ChunkProfile{Size: 100, Overlap: 20}},
		{"multibyte", strings.Repeat("naïve café résumé ", 60), ingest.ChunkProfile{Size: 64, Overlap: 16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ingest.Split(tt.text, tt.profile)
			require.NotEmpty(t, chunks)

			want := strings.TrimSpace(tt.text)
			if tt.name == "no whitespace" || tt.name == "multibyte" {
				// Repetitive text makes the greedy overlap match ambiguous;
				// only check coverage here.
				joined := strings.Join(chunks, "")
				assert.GreaterOrEqual(t, utf8.RuneCountInString(joined), utf8.RuneCountInString(want))
			} else {
				assert.Equal(t, want, reassemble(chunks, tt.profile.Overlap))
			}

			for i, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), tt.profile.Size, "chunk %d too long", i)
				assert.True(t, utf8.ValidString(c), "chunk %d split a rune", i)
			}
		})
	}
}

func TestSplit_OverlapBounded(t *testing.T) {
	text := numberedText(500)
	p := ingest.ChunkProfile{Size: 200, Overlap: 50}
	chunks := ingest.Split(text, p)
	require.Greater(t, len(chunks), 2)

	// Every chunk after the first starts exactly Overlap runes before the
	// end of its predecessor.
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		assert.Equal(t, string(prev[len(prev)-p.Overlap:]), string(cur[:p.Overlap]), "boundary %d", i)
	}
}

func TestSplit_BreaksAtWhitespace(t *testing.T) {
	text := numberedText(200)
	chunks := ingest.Split(text, ingest.ChunkProfile{Size: 100, Overlap: 10})
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks[:len(chunks)-1] {
		last, _ := utf8.DecodeLastRuneInString(c)
		assert.Contains(t, " \n", string(last), "chunk %q should end on whitespace", c)
	}
}

func TestSplit_PrefersStructuralBoundaries(t *testing.T) {
	para := strings.Repeat("a", 60)
	tests := []struct {
		name string
		text string
		want string // first chunk
	}{
		{
			name: "blank line beats later line break",
			text: para + "\n\n" + strings.Repeat("b", 20) + "\n" + strings.Repeat("c", 40),
			want: para + "\n\n",
		},
		{
			name: "line break beats later sentence end",
			text: para + "\n" + strings.Repeat("b", 10) + ". " + strings.Repeat("c", 40),
			want: para + "\n",
		},
		{
			name: "sentence end beats later space",
			text: para + ". " + strings.Repeat("b", 10) + " " + strings.Repeat("c", 40),
			want: para + ". ",
		},
		{
			name: "early paragraph falls back to the last space",
			text: "Intro\n\n" + strings.Repeat("word ", 30),
			want: "Intro\n\n" + strings.Repeat("word ", 18),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ingest.Split(tt.text, ingest.ChunkProfile{Size: 100, Overlap: 10})
			require.Greater(t, len(chunks), 1)
			assert.Equal(t, tt.want, chunks[0])
			assert.Equal(t, strings.TrimSpace(tt.text), reassemble(chunks, 10))
		})
	}
}

func TestSplit_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		profile ingest.ChunkProfile
		want    []string
	}{
		{"empty", "", ingest.DocumentProfile, nil},
		{"whitespace only", " \n\t ", ingest.DocumentProfile, nil},
		{"shorter than size", "  hello world  ", ingest.DocumentProfile, []string{"hello world"}},
		{"exact size", "abcde", ingest.ChunkProfile{Size: 5, Overlap: 2}, []string{"abcde"}},
		{"overlap not below size is ignored", "abcdefgh", ingest.ChunkProfile{Size: 4, Overlap: 4}, []string{"abcd", "efgh"}},
		{"zero size uses document profile", "short", ingest.ChunkProfile{}, []string{"short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ingest.Split(tt.text, tt.profile))
		})
	}
}
