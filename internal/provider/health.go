// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package provider

import (
	"sync"
	"time"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
	"github.com/aegis-hr/aegis/pkg/health"
)

// HealthMetrics is the snapshot reported on the /health endpoint.
type HealthMetrics = health.Metrics

const (
	// DefaultHealthCooldown is how long a provider is skipped after its
	// first failure.
	DefaultHealthCooldown = 30 * time.Second

	// MaxHealthCooldown caps the backoff for a provider that keeps failing.
	MaxHealthCooldown = 5 * time.Minute
)

// HealthTracker takes a provider out of routing after a failed call. Each
// consecutive failure doubles the cooldown, up to MaxHealthCooldown; a
// success resets it. Ingestion embeds and classifies chunk after chunk, so a
// provider that is down would otherwise be retried on every chunk.
type HealthTracker struct {
	mu       sync.RWMutex
	base     time.Duration
	streak   int // consecutive failures since the last success
	total    int64
	failedAt time.Time
	until    time.Time
	now      func() time.Time
}

// NewHealthTracker returns a healthy tracker whose first cooldown is base.
func NewHealthTracker(base time.Duration) (*HealthTracker, error) {
	if base <= 0 {
		return nil, aegiserr.Errorf(aegiserr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", base)
	}
	return &HealthTracker{base: base, now: time.Now}, nil
}

func (h *HealthTracker) availableLocked() bool {
	return h.streak == 0 || !h.now().Before(h.until)
}

// IsHealthy reports whether the provider may be routed to: it has not failed
// since its last success, or its cooldown is over.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.availableLocked()
}

// RecordSuccess clears the failure streak.
func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.streak = 0
	h.until = time.Time{}
	h.mu.Unlock()
}

// RecordFailure starts or extends the cooldown.
func (h *HealthTracker) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.streak++
	h.total++
	h.failedAt = h.now()
	h.until = h.failedAt.Add(h.cooldownLocked())
}

func (h *HealthTracker) cooldownLocked() time.Duration {
	d := h.base
	for i := 1; i < h.streak && d < MaxHealthCooldown; i++ {
		d *= 2
	}
	return min(d, MaxHealthCooldown)
}

// SetNowFunc replaces the clock.
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.now = fn
	h.mu.Unlock()
}

// HealthMetrics returns a copy of the tracker state.
func (h *HealthTracker) HealthMetrics() HealthMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := HealthMetrics{
		FailureCount: h.total,
		Available:    h.availableLocked(),
	}
	if h.total > 0 {
		at := h.failedAt
		m.LastFailureAt = &at
	}
	if h.streak > 0 {
		until := h.until
		m.CooldownUntil = &until
	}
	return m
}
