// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package tools_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-hr/aegis/internal/store"
	"github.com/aegis-hr/aegis/internal/tools"
)

const threeCandidates = `Candidate: Alice (alice.pdf)
Rank: 1
Justification: Eight years of Go and Kubernetes.
Summary: Strongest technical match.
---
Candidate: Bob (bob.pdf)
Rank: 2
**Justification:** Solid SQL background.
**Summary:** Good fit for data work.

   ---   

Candidate: Carol (carol.pdf)
Rank: 3
Notes: resume was mostly a photo.
`

// reportModel writes report for screening prompts and returns verdict for
// bias prompts.
func reportModel(report, verdict string) *scriptedGenerator {
	return &scriptedGenerator{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "ANALYSIS:") {
			return verdict, nil
		}
		return report, nil
	}}
}

func newTalentScout(t *testing.T, r *staticRetriever, g *scriptedGenerator, withReviewer bool) *tools.TalentScout {
	t.Helper()
	var reviewer *tools.BiasReviewer
	if withReviewer {
		var err error
		reviewer, err = tools.NewBiasReviewer(gen(g))
		require.NoError(t, err)
	}
	ts, err := tools.NewTalentScout(r.retriever(), gen(g), reviewer, nil)
	require.NoError(t, err)
	return ts
}

func resumes() *staticRetriever {
	return &staticRetriever{records: []store.ScoredRecord{
		record("alice.pdf", "Alice. Go, Kubernetes, 8 years.", 0.1),
		record("bob.pdf", "Bob. SQL, ETL.", 0.2),
		record("carol.pdf", "Carol.", 0.4),
	}}
}

func TestTalentScout_AnnotatesEveryBlock(t *testing.T) {
	g := reportModel(threeCandidates, "No bias detected.")
	ts := newTalentScout(t, resumes(), g, true)

	got, err := ts.Invoke(context.Background(), "Rank the candidates for a platform engineer role")
	require.NoError(t, err)

	blocks := strings.Split(got, "\n---\n")
	require.Len(t, blocks, 3)
	for _, b := range blocks {
		assert.Equal(t, 1, strings.Count(b, tools.BiasAnalysisField), "block: %q", b)
	}
	assert.True(t, strings.HasSuffix(blocks[0], "Bias Analysis: No bias detected."))
	assert.True(t, strings.HasSuffix(blocks[1], "Bias Analysis: No bias detected."))
	assert.True(t, strings.HasSuffix(blocks[2], "Bias Analysis: Bias check could not be performed."))

	// One screening call plus one review per block with fields.
	assert.Equal(t, 3, g.calls())
	assert.Len(t, g.promptsContaining("ANALYSIS:"), 2)
}

func TestTalentScout_PromptAsksForSources(t *testing.T) {
	g := reportModel("Candidate: Alice\nSummary: ok", "No bias detected.")
	ts := newTalentScout(t, resumes(), g, true)
	assert.Equal(t, tools.NameTalentScout, ts.Name())
	assert.Equal(t, tools.TalentScoutDescription, ts.Description())

	_, err := ts.Invoke(context.Background(), "Who knows Go?")
	require.NoError(t, err)

	screening := g.promptsContaining("TalentScout")
	require.Len(t, screening, 1)
	assert.Contains(t, screening[0], "[source: alice.pdf]")
	assert.Contains(t, screening[0], "[source: bob.pdf]")
	assert.Contains(t, screening[0], tools.ResumeRefusal)
	assert.Contains(t, screening[0], "Who knows Go?")
}

func TestTalentScout_RefusalIsNotReviewed(t *testing.T) {
	t.Run("nothing indexed", func(t *testing.T) {
		g := reportModel("unused", "unused")
		ts := newTalentScout(t, &staticRetriever{}, g, true)

		got, err := ts.Invoke(context.Background(), "Who knows Go?")
		require.NoError(t, err)
		assert.Equal(t, tools.ResumeRefusal, got)
		assert.Zero(t, g.calls())
	})

	t.Run("model refuses", func(t *testing.T) {
		g := reportModel(tools.ResumeRefusal, "unused")
		ts := newTalentScout(t, resumes(), g, true)

		got, err := ts.Invoke(context.Background(), "What is Alice's salary expectation?")
		require.NoError(t, err)
		assert.Equal(t, tools.ResumeRefusal, got)
		assert.Equal(t, 1, g.calls())
	})

	t.Run("model quotes the refusal", func(t *testing.T) {
		g := reportModel(`"`+tools.ResumeRefusal+`"`+"\n", "unused")
		ts := newTalentScout(t, resumes(), g, true)

		got, err := ts.Invoke(context.Background(), "What is Alice's salary expectation?")
		require.NoError(t, err)
		assert.Equal(t, tools.ResumeRefusal, got)
		assert.NotContains(t, got, "Bias Analysis")
		assert.Equal(t, 1, g.calls(), "no bias review for a refusal")
	})
}

func TestTalentScout_WithoutReviewer(t *testing.T) {
	g := reportModel(threeCandidates, "unused")
	ts := newTalentScout(t, resumes(), g, false)

	got, err := ts.Invoke(context.Background(), "Rank them")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(threeCandidates), got)
	assert.Equal(t, 1, g.calls())
}

func TestTalentScout_ReviewErrorFails(t *testing.T) {
	boom := errors.New("bias model down")
	g := &scriptedGenerator{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "ANALYSIS:") {
			return "", boom
		}
		return threeCandidates, nil
	}}
	ts := newTalentScout(t, resumes(), g, true)

	_, err := ts.Invoke(context.Background(), "Rank them")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSplitCandidates(t *testing.T) {
	tests := []struct {
		name   string
		report string
		want   []string
	}{
		{name: "single block", report: "Candidate: A\nSummary: x", want: []string{"Candidate: A\nSummary: x"}},
		{name: "two blocks", report: "A\n---\nB", want: []string{"A", "B"}},
		{name: "padded separator", report: "A\n  ---  \nB\n", want: []string{"A", "B"}},
		{name: "empty blocks dropped", report: "---\nA\n---\n\n---\nB\n---", want: []string{"A", "B"}},
		{name: "dashes inside text kept", report: "A --- still A\n----\nB", want: []string{"A --- still A\n----\nB"}},
		{name: "blank", report: " \n ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tools.SplitCandidates(tt.report))
		})
	}
}
