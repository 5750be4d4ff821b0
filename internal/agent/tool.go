// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package agent

import (
	"context"
	"sort"
	"strings"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// Tool is a capability the orchestrator can call from its reasoning loop.
// Invoke receives the raw Action Input text and returns the observation.
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, input string) (string, error)
}

// ToolSet is an immutable, name-ordered collection of tools.
type ToolSet struct {
	byName map[string]Tool
	names  []string
}

// NewToolSet indexes tools by name. Names must be non-empty, free of
// whitespace and unique.
func NewToolSet(tools ...Tool) (*ToolSet, error) {
	ts := &ToolSet{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			return nil, aegiserr.New(aegiserr.CodeAgentToolInvalid, "tool must not be nil")
		}
		name := t.Name()
		if name == "" || strings.ContainsAny(name, " \t\r\n") {
			return nil, aegiserr.Errorf(aegiserr.CodeAgentToolInvalid, "invalid tool name %q", name)
		}
		if _, dup := ts.byName[name]; dup {
			return nil, aegiserr.Errorf(aegiserr.CodeAgentToolInvalid, "tool %q registered twice", name)
		}
		ts.byName[name] = t
		ts.names = append(ts.names, name)
	}
	sort.Strings(ts.names)
	return ts, nil
}

// Lookup returns the tool called name.
func (ts *ToolSet) Lookup(name string) (Tool, bool) {
	t, ok := ts.byName[name]
	return t, ok
}

// Names returns the tool names in ascending order.
func (ts *ToolSet) Names() []string {
	return append([]string(nil), ts.names...)
}

// Len returns the number of tools.
func (ts *ToolSet) Len() int { return len(ts.names) }

// describe renders one "name: description" line per tool.
func (ts *ToolSet) describe() string {
	var b strings.Builder
	for i, name := range ts.names {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(ts.byName[name].Description()))
	}
	return b.String()
}
