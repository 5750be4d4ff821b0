// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package tools

import (
	"context"
	"log/slog"

	"github.com/aegis-hr/aegis/internal/ingest"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// Guard decides whether a question is an attack on the tool.
// *sanitize.Gate implements it.
type Guard interface {
	IsMalicious(ctx context.Context, text string) (bool, error)
}

// PolicyBot answers questions from the policy documents.
type PolicyBot struct {
	*RetrievalTool
	guard  Guard
	logger *slog.Logger
}

// NewPolicyBot returns a PolicyBot. guard may be nil.
func NewPolicyBot(retriever ingest.Retriever, gen Generation, guard Guard, logger *slog.Logger) (*PolicyBot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt, err := NewRetrievalTool(RetrievalConfig{
		Name:        NamePolicyBot,
		Description: PolicyBotDescription,
		Retriever:   retriever,
		Generation:  gen,
		Prompt:      policyBotPrompt,
		Refusal:     PolicyRefusal,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return &PolicyBot{RetrievalTool: rt, guard: guard, logger: logger}, nil
}

// Invoke screens question and then answers it.
func (p *PolicyBot) Invoke(ctx context.Context, question string) (string, error) {
	if p.guard != nil {
		bad, err := p.guard.IsMalicious(ctx, question)
		if err != nil {
			return "", aegiserr.With(err, aegiserr.FieldTool(p.Name()))
		}
		if bad {
			p.logger.Warn("policy question rejected", "tool", p.Name())
			return MaliciousRefusal, nil
		}
	}
	return p.RetrievalTool.Invoke(ctx, question)
}
