// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package tools

import (
	"context"
	"regexp"
	"strings"
)

// BiasReviewer annotates a candidate block with a bias verdict.
type BiasReviewer struct {
	gen Generation
}

// NewBiasReviewer returns a reviewer that asks gen for verdicts.
func NewBiasReviewer(gen Generation) (*BiasReviewer, error) {
	if err := gen.validate("BiasReview"); err != nil {
		return nil, err
	}
	return &BiasReviewer{gen: gen}, nil
}

// Review appends a "Bias Analysis:" line to block. The model sees only the
// block's Justification and Summary; a block with neither gets the fixed
// placeholder and no model call. Model errors are returned unchanged.
func (r *BiasReviewer) Review(ctx context.Context, block string) (string, error) {
	block = strings.TrimRight(block, " \t\r\n")

	fields := extractFields(block, "justification", "summary")
	var parts []string
	if v := fields["justification"]; v != "" {
		parts = append(parts, "Justification: "+v)
	}
	if v := fields["summary"]; v != "" {
		parts = append(parts, "Summary: "+v)
	}

	verdict := BiasCheckSkipped
	if len(parts) > 0 {
		out, err := r.gen.generate(ctx, fill(biasPrompt, map[string]string{
			"text": strings.Join(parts, "\n"),
		}))
		if err != nil {
			return "", err
		}
		verdict = normalizeVerdict(out)
	}

	return block + "\n" + BiasAnalysisField + " " + verdict, nil
}

// fieldLine matches "Name: value" with optional list bullets and markdown
// emphasis around the name. The colon must be followed by whitespace or the
// end of the line so URLs are not taken for fields.
var fieldLine = regexp.MustCompile(`^\s*(?:[-*]\s+)?[*_]{0,2}([A-Za-z][A-Za-z ]{0,40}?)[*_]{0,2}\s*:[*_]{0,2}(?:\s+(.*))?$`)

// blockFields are the field names a candidate block is written with. Other
// "Word: text" lines, such as "Key result: cut latency 40%", belong to the
// value they appear in.
var blockFields = map[string]bool{
	"candidate":     true,
	"rank":          true,
	"justification": true,
	"summary":       true,
	"bias analysis": true,
}

// extractFields returns the values of the wanted fields, lower-cased by
// name. A value runs until the next block field line or the end of the block.
func extractFields(block string, wanted ...string) map[string]string {
	want := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		want[w] = true
	}

	values := make(map[string][]string)
	current := ""
	for _, line := range strings.Split(block, "\n") {
		if m := fieldLine.FindStringSubmatch(line); m != nil {
			if name := strings.ToLower(strings.TrimSpace(m[1])); blockFields[name] || want[name] {
				current = name
				if want[current] {
					values[current] = append(values[current], stripEmphasis(m[2]))
				}
				continue
			}
		}
		if want[current] {
			values[current] = append(values[current], stripEmphasis(line))
		}
	}

	out := make(map[string]string, len(values))
	for k, lines := range values {
		out[k] = strings.TrimSpace(strings.Join(strings.Fields(strings.Join(lines, " ")), " "))
	}
	return out
}

func stripEmphasis(s string) string {
	return strings.Trim(strings.TrimSpace(s), "*_")
}

// normalizeVerdict folds the many ways a model says "no bias" onto the
// canonical literal.
func normalizeVerdict(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return BiasCheckSkipped
	}
	trimmed := strings.Trim(out, `"'.* `)
	if strings.EqualFold(trimmed, strings.TrimSuffix(NoBiasDetected, ".")) {
		return NoBiasDetected
	}
	return strings.Join(strings.Fields(out), " ")
}
