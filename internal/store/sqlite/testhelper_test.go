// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/aegis-hr/aegis/internal/store/sqlite"
	"github.com/stretchr/testify/require"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

func newVectorStore(t *testing.T, dims int) *sqlite.VectorStore {
	t.Helper()
	vs, err := sqlite.NewVectorStore(testDBPath(t, "vectors"), dims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vs.Close() })
	return vs
}
