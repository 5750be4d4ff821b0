// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package tools

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aegis-hr/aegis/internal/ingest"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// TalentScout screens and ranks candidates from the indexed resumes.
type TalentScout struct {
	*RetrievalTool
	reviewer *BiasReviewer
	logger   *slog.Logger
}

// NewTalentScout returns a TalentScout. reviewer may be nil, which skips the
// bias pass.
func NewTalentScout(retriever ingest.Retriever, gen Generation, reviewer *BiasReviewer, logger *slog.Logger) (*TalentScout, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt, err := NewRetrievalTool(RetrievalConfig{
		Name:        NameTalentScout,
		Description: TalentScoutDescription,
		Retriever:   retriever,
		Generation:  gen,
		Prompt:      talentScoutPrompt,
		Refusal:     ResumeRefusal,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return &TalentScout{RetrievalTool: rt, reviewer: reviewer, logger: logger}, nil
}

// Invoke answers question and reviews every candidate block of the report.
func (t *TalentScout) Invoke(ctx context.Context, question string) (string, error) {
	report, err := t.RetrievalTool.Invoke(ctx, question)
	if err != nil {
		return "", err
	}
	if t.reviewer == nil || report == ResumeRefusal {
		return report, nil
	}

	blocks := SplitCandidates(report)
	for i, b := range blocks {
		reviewed, err := t.reviewer.Review(ctx, b)
		if err != nil {
			return "", aegiserr.With(err, aegiserr.FieldTool(t.Name()), aegiserr.Field("block", i))
		}
		blocks[i] = reviewed
	}
	t.logger.Debug("bias review complete", "tool", t.Name(), "blocks", len(blocks))
	return strings.Join(blocks, "\n"+CandidateSeparator+"\n"), nil
}

// SplitCandidates splits a report on lines that consist only of "---" and
// drops blocks that are empty after trimming.
func SplitCandidates(report string) []string {
	var (
		blocks  []string
		current []string
	)
	flush := func() {
		if b := strings.TrimSpace(strings.Join(current, "\n")); b != "" {
			blocks = append(blocks, b)
		}
		current = current[:0]
	}
	for _, line := range strings.Split(report, "\n") {
		if strings.TrimSpace(line) == CandidateSeparator {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return blocks
}
