// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package agent

import (
	"context"

	"github.com/aegis-hr/aegis/internal/store"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// DefaultMemoryWindow is how many past exchanges a session remembers.
const DefaultMemoryWindow = 5

// Memory is the sliding window of recent exchanges per session.
type Memory struct {
	store  store.ConversationStore
	window int
}

// NewMemory keeps the newest window exchanges of each session in cs.
func NewMemory(cs store.ConversationStore, window int) (*Memory, error) {
	if cs == nil {
		return nil, aegiserr.New(aegiserr.CodeAgentNotReady, "conversation store is required")
	}
	if window <= 0 {
		window = DefaultMemoryWindow
	}
	return &Memory{store: cs, window: window}, nil
}

// Window returns the number of exchanges kept per session.
func (m *Memory) Window() int { return m.window }

// Load returns the session's window, oldest first.
func (m *Memory) Load(ctx context.Context, sessionID string) ([]*store.Exchange, error) {
	return m.store.RecentExchanges(ctx, sessionID, m.window)
}

// Append records one exchange and evicts whatever falls out of the window.
func (m *Memory) Append(ctx context.Context, sessionID, question, answer string) error {
	err := m.store.AppendExchange(ctx, &store.Exchange{
		SessionID:   sessionID,
		UserMessage: question,
		Answer:      answer,
	})
	if err != nil {
		return err
	}
	_, err = m.store.TrimExchanges(ctx, sessionID, m.window)
	return err
}

// Clear forgets the session.
func (m *Memory) Clear(ctx context.Context, sessionID string) error {
	return m.store.ClearSession(ctx, sessionID)
}
