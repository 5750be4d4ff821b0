// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package health holds serializable health snapshots shared by the provider
// layer and the HTTP server.
package health

import "time"

// Metrics is a point-in-time view of one provider's health.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	Available     bool       `json:"available"`
}

// Report aggregates provider metrics with component readiness.
type Report struct {
	Status     string             `json:"status"`
	Ready      bool               `json:"ready"`
	Documents  int                `json:"documents"`
	Providers  map[string]Metrics `json:"providers"`
	CheckedAt  time.Time          `json:"checked_at"`
	Components map[string]string  `json:"components,omitempty"`
}

// Degraded reports whether any provider is currently in cooldown.
func (r Report) Degraded() bool {
	for _, m := range r.Providers {
		if !m.Available {
			return true
		}
	}
	return false
}
