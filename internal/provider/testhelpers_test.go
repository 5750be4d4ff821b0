// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package provider_test

import (
	"context"
	"sync"

	"github.com/aegis-hr/aegis/internal/provider"
)

// mockProvider is a scriptable provider.Provider. Each Chat call pops the
// next reply; an empty reply list echoes "hello".
type mockProvider struct {
	name      string
	available bool

	mu       sync.Mutex
	replies  []mockReply
	requests []provider.ChatRequest
}

type mockReply struct {
	text string
	err  string
}

func newMockProvider(name string, available bool, replies ...mockReply) *mockProvider {
	return &mockProvider{name: name, available: available, replies: replies}
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Available(_ context.Context) bool { return m.available }

func (m *mockProvider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return []provider.ModelInfo{{ID: "mock-1", Provider: m.name}}, nil
}

func (m *mockProvider) Chat(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	reply := mockReply{text: "hello"}
	if len(m.replies) > 0 {
		reply = m.replies[0]
		m.replies = m.replies[1:]
	}
	m.mu.Unlock()

	ch := make(chan provider.ChatEvent, 4)
	if reply.err != "" {
		ch <- provider.ChatEvent{Type: provider.EventTypeError, Error: reply.err}
	} else {
		ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: reply.text}
		ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}}
		ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	}
	close(ch)
	return ch, nil
}

func (m *mockProvider) Status(_ context.Context) (provider.ProviderStatus, error) {
	return provider.ProviderStatus{Available: m.available, Provider: m.name, Message: "ok"}, nil
}

func (m *mockProvider) Close() error { return nil }

func (m *mockProvider) calls() []provider.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.ChatRequest(nil), m.requests...)
}

// mockEmbedder returns vectors of a fixed width whose first component is
// the input's length.
type mockEmbedder struct {
	*mockProvider
	dims    int
	batches [][]string
	tasks   []provider.EmbedTask
}

func (m *mockEmbedder) Embed(_ context.Context, req provider.EmbedRequest) ([][]float32, error) {
	m.batches = append(m.batches, req.Texts)
	m.tasks = append(m.tasks, req.Task)
	out := make([][]float32, len(req.Texts))
	for i, text := range req.Texts {
		v := make([]float32, m.dims)
		v[0] = float32(len(text))
		out[i] = v
	}
	return out, nil
}
