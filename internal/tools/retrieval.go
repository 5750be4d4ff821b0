// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package tools

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aegis-hr/aegis/internal/ingest"
	"github.com/aegis-hr/aegis/internal/store"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// RetrievalConfig describes a retrieval-backed tool.
type RetrievalConfig struct {
	Name        string
	Description string
	Retriever   ingest.Retriever
	Generation  Generation
	// Prompt must contain {context} and {question}.
	Prompt string
	// Refusal is returned without a model call when nothing is retrieved.
	Refusal string
	Logger  *slog.Logger
}

// RetrievalTool answers a question from the k nearest chunks of the whole
// store. It makes at most one model call per question.
type RetrievalTool struct {
	name        string
	description string
	retrieve    ingest.Retriever
	gen         Generation
	prompt      string
	refusal     string
	logger      *slog.Logger
}

// NewRetrievalTool validates cfg.
func NewRetrievalTool(cfg RetrievalConfig) (*RetrievalTool, error) {
	if cfg.Name == "" {
		return nil, aegiserr.New(aegiserr.CodeAgentToolInvalid, "tool name is required")
	}
	if cfg.Retriever == nil {
		return nil, aegiserr.New(aegiserr.CodeAgentToolInvalid, "retriever is required", aegiserr.FieldTool(cfg.Name))
	}
	if err := cfg.Generation.validate(cfg.Name); err != nil {
		return nil, err
	}
	if !strings.Contains(cfg.Prompt, "{context}") || !strings.Contains(cfg.Prompt, "{question}") {
		return nil, aegiserr.New(aegiserr.CodeAgentToolInvalid, "prompt must reference {context} and {question}",
			aegiserr.FieldTool(cfg.Name))
	}
	if cfg.Refusal == "" {
		return nil, aegiserr.New(aegiserr.CodeAgentToolInvalid, "refusal is required", aegiserr.FieldTool(cfg.Name))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RetrievalTool{
		name:        cfg.Name,
		description: cfg.Description,
		retrieve:    cfg.Retriever,
		gen:         cfg.Generation,
		prompt:      cfg.Prompt,
		refusal:     cfg.Refusal,
		logger:      cfg.Logger,
	}, nil
}

func (t *RetrievalTool) Name() string        { return t.name }
func (t *RetrievalTool) Description() string { return t.description }

// Invoke retrieves context for question and asks the model.
func (t *RetrievalTool) Invoke(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)

	records, err := t.retrieve(ctx, question)
	if err != nil {
		return "", aegiserr.With(err, aegiserr.FieldTool(t.name))
	}
	if len(records) == 0 {
		t.logger.Info("no context retrieved", "tool", t.name)
		return t.refusal, nil
	}

	prompt := fill(t.prompt, map[string]string{
		"context":  formatContext(records),
		"question": question,
	})

	answer, err := t.gen.generate(ctx, prompt)
	if err != nil {
		return "", aegiserr.With(err, aegiserr.FieldTool(t.name))
	}

	if isRefusal(answer, t.refusal) {
		t.logger.Info("model declined from context", "tool", t.name)
		return t.refusal, nil
	}

	t.logger.Debug("tool answered",
		"tool", t.name,
		"chunks", len(records),
		"sources", len(distinctSources(records)))
	return answer, nil
}

// refusalCutset is what models wrap around a literal they were told to echo.
const refusalCutset = " \t\r\n\"'`*_[]()“”‘’«»"

// isRefusal reports whether answer is refusal, give or take surrounding
// quotes, brackets, emphasis, whitespace, a final period and letter case.
func isRefusal(answer, refusal string) bool {
	norm := func(s string) string {
		s = strings.Trim(s, refusalCutset)
		s = strings.TrimRight(s, ".")
		return strings.Trim(s, refusalCutset)
	}
	return strings.EqualFold(norm(answer), norm(refusal))
}

// formatContext renders records verbatim, each under a header naming its
// source.
func formatContext(records []store.ScoredRecord) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[source: ")
		b.WriteString(r.Source)
		b.WriteString("]\n")
		b.WriteString(r.Text)
	}
	return b.String()
}

func distinctSources(records []store.ScoredRecord) map[string]struct{} {
	out := make(map[string]struct{}, len(records))
	for _, r := range records {
		out[r.Source] = struct{}{}
	}
	return out
}
