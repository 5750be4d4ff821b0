// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package store

import (
	"sort"
	"sync"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// defaultVectorDimensions matches Google text-embedding-004.
const defaultVectorDimensions = 768

// StorageConfig selects a backend and where it keeps its files.
type StorageConfig struct {
	Backend          string // empty means sqlite
	DataDir          string
	VectorDimensions int // 0 means defaultVectorDimensions
}

// Factory opens the stores of a backend rooted at dataDir.
type Factory func(dataDir string, vectorDims int) (VectorStore, ConversationStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers the factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// Open creates the vector and conversation stores under cfg.DataDir.
func Open(cfg *StorageConfig) (VectorStore, ConversationStore, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, nil, aegiserr.Errorf(aegiserr.CodeStoreBackendUnsupported,
			"unsupported storage backend: %q", backend)
	}

	dims := defaultVectorDimensions
	if cfg.VectorDimensions > 0 {
		dims = cfg.VectorDimensions
	}

	return factory(cfg.DataDir, dims)
}
