// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package tools_test

import (
	"context"
	"strings"
	"sync"

	"github.com/aegis-hr/aegis/internal/ingest"
	"github.com/aegis-hr/aegis/internal/provider"
	"github.com/aegis-hr/aegis/internal/store"
	"github.com/aegis-hr/aegis/internal/tools"
)

// scriptedGenerator answers each prompt with respond and records it.
type scriptedGenerator struct {
	mu      sync.Mutex
	respond func(prompt string) (string, error)
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, req provider.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, req.Prompt)
	respond := g.respond
	g.mu.Unlock()
	if respond == nil {
		return "", nil
	}
	return respond(req.Prompt)
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *scriptedGenerator) promptsContaining(s string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, p := range g.prompts {
		if strings.Contains(p, s) {
			out = append(out, p)
		}
	}
	return out
}

func constGenerator(answer string) *scriptedGenerator {
	return &scriptedGenerator{respond: func(string) (string, error) { return answer, nil }}
}

func gen(g provider.TextGenerator) tools.Generation {
	return tools.Generation{Generator: g, Model: "google/gemini-2.5-flash"}
}

// staticRetriever returns records and counts queries.
type staticRetriever struct {
	mu      sync.Mutex
	records []store.ScoredRecord
	err     error
	queries []string
}

func (r *staticRetriever) retriever() ingest.Retriever {
	return func(_ context.Context, query string) ([]store.ScoredRecord, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.queries = append(r.queries, query)
		return r.records, r.err
	}
}

func (r *staticRetriever) queryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

func record(source, text string, distance float64) store.ScoredRecord {
	return store.ScoredRecord{Record: store.Record{Source: source, Text: text}, Distance: distance}
}
