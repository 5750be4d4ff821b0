// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package provider

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// Registry manages provider registration, lookup, and routing with
// failover across an ordered chain of "provider/model" refs.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	defaultRef string   // "provider/model" format
	failover   []string // ordered list of "provider/model" refs
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, aegiserr.New(
			aegiserr.CodeProviderNotFound,
			"provider not found: "+name,
			aegiserr.FieldProvider(name),
		)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDefault sets the "provider/model" reference used when a request does
// not name a model. Returns an error if the provider is not registered.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provName, _ := parseRef(ref)
	if _, ok := r.providers[provName]; !ok {
		return aegiserr.New(
			aegiserr.CodeProviderNotFound,
			"SetDefault: provider not registered: "+provName,
			aegiserr.FieldProvider(provName),
		)
	}
	r.defaultRef = ref
	return nil
}

// SetFailover sets the ordered failover chain of "provider/model" refs.
// Returns an error if any provider portion of the refs is not registered.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		provName, _ := parseRef(ref)
		if _, ok := r.providers[provName]; !ok {
			return aegiserr.New(
				aegiserr.CodeProviderNotFound,
				"SetFailover: provider not registered: "+provName,
				aegiserr.FieldProvider(provName),
			)
		}
	}
	r.failover = append([]string(nil), chain...)
	return nil
}

// MaxAttempts returns 1 (primary) + len(failover chain).
func (r *Registry) MaxAttempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return 1 + len(r.failover)
}

// Route selects a provider for modelName, falling back along the failover
// chain when the primary is unhealthy. An empty modelName selects the
// default. Providers named in exclude are skipped.
func (r *Registry) Route(ctx context.Context, modelName string, exclude []string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, err := r.resolveRef(modelName)
	if err != nil {
		return nil, "", err
	}
	if ref == "" {
		return nil, "", aegiserr.New(
			aegiserr.CodeProviderNoDefault,
			"no default provider configured",
		)
	}

	provName, _ := parseRef(ref)
	if !slices.Contains(exclude, provName) {
		p, model, err := r.tryRef(ctx, ref)
		if err == nil {
			return p, model, nil
		}
	}

	for _, fallback := range r.failover {
		fbProv, _ := parseRef(fallback)
		if slices.Contains(exclude, fbProv) {
			continue
		}
		p, model, err := r.tryRef(ctx, fallback)
		if err == nil {
			return p, model, nil
		}
	}

	return nil, "", aegiserr.New(
		aegiserr.CodeProviderAllUnavailable,
		"all providers unavailable: no healthy provider found",
	)
}

// Health returns a snapshot for every provider that tracks its own health.
// Providers without a tracker are reported from Available.
func (r *Registry) Health(ctx context.Context) map[string]HealthMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]HealthMetrics, len(r.providers))
	for name, p := range r.providers {
		if hr, ok := p.(HealthReporter); ok {
			out[name] = hr.HealthMetrics()
			continue
		}
		out[name] = HealthMetrics{Available: p.Available(ctx)}
	}
	return out
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return aegiserr.Join(errs...)
	}
	return nil
}

// resolveRef determines which "provider/model" ref to use.
// Caller must hold r.mu (at least RLock).
func (r *Registry) resolveRef(modelName string) (string, error) {
	if modelName != "" && modelName != "default" {
		if !strings.Contains(modelName, "/") {
			return "", aegiserr.Errorf(
				aegiserr.CodeProviderInvalidModelRef,
				"model name %q must use provider/model format", modelName,
			)
		}
		return modelName, nil
	}
	return r.defaultRef, nil
}

// tryRef parses a "provider/model" ref, looks up the provider, and checks
// availability. Caller must hold r.mu (at least RLock).
func (r *Registry) tryRef(ctx context.Context, ref string) (Provider, string, error) {
	providerName, model := parseRef(ref)

	p, ok := r.providers[providerName]
	if !ok {
		return nil, "", aegiserr.New(
			aegiserr.CodeProviderNotFound,
			"provider not found: "+providerName,
			aegiserr.FieldProvider(providerName),
		)
	}

	if !p.Available(ctx) {
		return nil, "", aegiserr.New(
			aegiserr.CodeProviderUpstreamFailure,
			"provider unavailable: "+providerName,
			aegiserr.FieldProvider(providerName),
		)
	}

	return p, model, nil
}

// parseRef splits a "provider/model" reference on the first "/".
func parseRef(ref string) (providerName, model string) {
	name, model, ok := strings.Cut(ref, "/")
	if !ok {
		return ref, ""
	}
	return name, model
}
