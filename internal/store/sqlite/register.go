// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/aegis-hr/aegis/internal/store"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", openStores)
}

func openStores(dataDir string, vectorDims int) (store.VectorStore, store.ConversationStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "creating data dir")
	}

	vs, err := NewVectorStore(filepath.Join(dataDir, "vectors.db"), vectorDims)
	if err != nil {
		return nil, nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "creating vector store")
	}

	cs, err := NewConversationStore(filepath.Join(dataDir, "memory.db"))
	if err != nil {
		_ = vs.Close()
		return nil, nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "creating conversation store")
	}

	return vs, cs, nil
}
