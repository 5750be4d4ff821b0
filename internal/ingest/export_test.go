// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package ingest

var (
	DecodeContentStream = decodeContentStream
	PageNumber          = pageNumber
	JoinPages           = joinPages
)

// LockedSources reports how many source names hold a lock entry.
func (m *Manager) LockedSources() int { return m.lockedSources() }
