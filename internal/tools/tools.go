// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package tools holds the specialists the orchestrator delegates to:
// TalentScout for resume screening, PolicyBot for policy questions and
// Onboarder for onboarding plans. The retrieval-backed tools share
// RetrievalTool; TalentScout adds a bias review pass over its report.
package tools

import (
	"context"
	"strings"

	"github.com/aegis-hr/aegis/internal/provider"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// Tool names as the orchestrator's model sees them.
const (
	NameTalentScout = "TalentScout"
	NamePolicyBot   = "PolicyBot"
	NameOnboarder   = "Onboarder"
)

// Generation is the model configuration every tool calls through.
type Generation struct {
	Generator   provider.TextGenerator
	Model       string   // "provider/model"; empty uses the registry default
	Temperature *float32 // nil uses the provider default
}

func (g Generation) validate(tool string) error {
	if g.Generator == nil {
		return aegiserr.New(aegiserr.CodeAgentToolInvalid, "generator is required", aegiserr.FieldTool(tool))
	}
	return nil
}

func (g Generation) generate(ctx context.Context, prompt string) (string, error) {
	out, err := g.Generator.Generate(ctx, provider.GenerateRequest{
		Model:   g.Model,
		Prompt:  prompt,
		Options: provider.ChatOptions{Temperature: g.Temperature},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// fill substitutes {name} placeholders in tmpl. Substituted values are not
// rescanned, so braces in user text are left alone.
func fill(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
