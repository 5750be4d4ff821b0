// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package agent_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aegis-hr/aegis/internal/agent"
	"github.com/aegis-hr/aegis/internal/provider"
	"github.com/aegis-hr/aegis/internal/store"
	"github.com/aegis-hr/aegis/internal/store/sqlite"
)

// scriptedModel answers each Generate call with the next reply. Once the
// script runs out, the last reply repeats.
type scriptedModel struct {
	mu       sync.Mutex
	replies  []string
	err      error
	delay    time.Duration
	requests []provider.GenerateRequest
}

func (m *scriptedModel) Generate(ctx context.Context, req provider.GenerateRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	return m.replies[min(n, len(m.replies))-1], nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *scriptedModel) prompt(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i].Prompt
}

func (m *scriptedModel) request(i int) provider.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

// fakeTool records its inputs and replies with a fixed observation.
type fakeTool struct {
	name        string
	observation string
	err         error

	mu     sync.Mutex
	inputs []string
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "Fake tool " + f.name + "." }

func (f *fakeTool) Invoke(_ context.Context, input string) (string, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.observation, nil
}

func (f *fakeTool) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

// memoryStore is an in-process ConversationStore.
type memoryStore struct {
	mu        sync.Mutex
	exchanges map[string][]*store.Exchange
	appends   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{exchanges: make(map[string][]*store.Exchange)}
}

func (s *memoryStore) AppendExchange(_ context.Context, ex *store.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	s.exchanges[ex.SessionID] = append(s.exchanges[ex.SessionID], ex)
	s.appends++
	return nil
}

func (s *memoryStore) RecentExchanges(_ context.Context, sessionID string, limit int) ([]*store.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.exchanges[sessionID]
	if limit <= 0 {
		return nil, nil
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]*store.Exchange(nil), all...), nil
}

func (s *memoryStore) TrimExchanges(_ context.Context, sessionID string, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.exchanges[sessionID]
	if len(all) <= keep {
		return 0, nil
	}
	dropped := len(all) - keep
	s.exchanges[sessionID] = all[dropped:]
	return int64(dropped), nil
}

func (s *memoryStore) ClearSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.exchanges, sessionID)
	return nil
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) appendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends
}

func (s *memoryStore) session(id string) []*store.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*store.Exchange(nil), s.exchanges[id]...)
}

func newConversationStore(t *testing.T) *sqlite.ConversationStore {
	t.Helper()
	cs, err := sqlite.NewConversationStore(filepath.Join(t.TempDir(), "conversations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

type harness struct {
	model  *scriptedModel
	store  *memoryStore
	orch   *agent.Orchestrator
	policy *fakeTool
}

type harnessOption func(*agent.Config)

func newHarness(t *testing.T, model *scriptedModel, opts ...harnessOption) *harness {
	t.Helper()

	policy := &fakeTool{name: "PolicyBot", observation: "Employees get 20 vacation days."}
	tools, err := agent.NewToolSet(policy, &fakeTool{name: "TalentScout", observation: "no candidates"})
	require.NoError(t, err)

	ms := newMemoryStore()
	mem, err := agent.NewMemory(ms, 5)
	require.NoError(t, err)

	cfg := agent.Config{
		Generator: model,
		Tools:     tools,
		Memory:    mem,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	orch, err := agent.NewOrchestrator(cfg)
	require.NoError(t, err)
	t.Cleanup(orch.Close)

	return &harness{model: model, store: ms, orch: orch, policy: policy}
}

func reply(lines ...string) string {
	return strings.Join(lines, "\n")
}
