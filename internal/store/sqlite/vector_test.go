// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package sqlite_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aegis-hr/aegis/internal/store"
	"github.com/aegis-hr/aegis/internal/store/sqlite"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(source, text string, emb ...float32) store.Record {
	return store.Record{Source: source, Text: text, Embedding: emb}
}

func TestVectorStore_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	vs := newVectorStore(t, 3)

	require.NoError(t, vs.Add(ctx, []store.Record{
		rec("handbook.txt", "vacation", 1, 0, 0),
		rec("handbook.txt", "sick leave", 0, 1, 0),
		rec("resume.pdf", "golang", 0.9, 0.1, 0),
	}))

	results, err := vs.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "vacation", results[0].Text)
	assert.Equal(t, "handbook.txt", results[0].Source)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	assert.Equal(t, "golang", results[1].Text)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestVectorStore_SearchEmpty(t *testing.T) {
	vs := newVectorStore(t, 3)
	results, err := vs.Search(context.Background(), []float32{1, 0, 0}, 15)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorStore_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	vs := newVectorStore(t, 3)

	tests := []struct {
		name string
		run  func() error
	}{
		{name: "empty source", run: func() error { return vs.Add(ctx, []store.Record{rec("", "x", 1, 0, 0)}) }},
		{name: "wrong dims on add", run: func() error { return vs.Add(ctx, []store.Record{rec("a", "x", 1, 0)}) }},
		{name: "wrong dims on search", run: func() error { _, err := vs.Search(ctx, []float32{1}, 1); return err }},
		{name: "zero k", run: func() error { _, err := vs.Search(ctx, []float32{1, 0, 0}, 0); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, aegiserr.HasCode(err, aegiserr.CodeStoreInvalidInput))
		})
	}
}

func TestVectorStore_SeqContinuesPerSource(t *testing.T) {
	ctx := context.Background()
	vs := newVectorStore(t, 3)

	require.NoError(t, vs.Add(ctx, []store.Record{
		rec("a.txt", "a0", 1, 0, 0),
		rec("b.txt", "b0", 0, 1, 0),
		rec("a.txt", "a1", 1, 1, 0),
	}))
	require.NoError(t, vs.Add(ctx, []store.Record{rec("a.txt", "a2", 0, 0, 1)}))

	chunks, err := vs.Chunks(ctx, "a.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Seq)
		assert.NotEmpty(t, c.ID)
		assert.False(t, c.CreatedAt.IsZero())
		assert.Nil(t, c.Embedding)
	}
	assert.Equal(t, []string{"a0", "a1", "a2"}, []string{chunks[0].Text, chunks[1].Text, chunks[2].Text})
}

func TestVectorStore_ListSourcesSortedDistinct(t *testing.T) {
	ctx := context.Background()
	vs := newVectorStore(t, 3)

	require.NoError(t, vs.Add(ctx, []store.Record{
		rec("zeta.pdf", "z", 1, 0, 0),
		rec("alpha.pdf", "a", 0, 1, 0),
		rec("zeta.pdf", "z2", 0, 0, 1),
		rec("mid.txt", "m", 1, 1, 1),
	}))

	sources, err := vs.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, "alpha.pdf", sources[0].Source)
	assert.Equal(t, "mid.txt", sources[1].Source)
	assert.Equal(t, "zeta.pdf", sources[2].Source)
	assert.Equal(t, 2, sources[2].Chunks)
}

func TestVectorStore_DeleteBySource(t *testing.T) {
	ctx := context.Background()
	vs := newVectorStore(t, 3)

	require.NoError(t, vs.Add(ctx, []store.Record{
		rec("old.pdf", "o1", 1, 0, 0),
		rec("old.pdf", "o2", 0.9, 0, 0),
		rec("keep.pdf", "k", 0, 1, 0),
	}))

	n, err := vs.DeleteBySource(ctx, "old.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	has, err := vs.HasSource(ctx, "old.pdf")
	require.NoError(t, err)
	assert.False(t, has)

	results, err := vs.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "deleted vectors must not be returned")
	assert.Equal(t, "keep.pdf", results[0].Source)

	n, err = vs.DeleteBySource(ctx, "missing.pdf")
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := vs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVectorStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t, "persist")

	vs, err := sqlite.NewVectorStore(path, 3)
	require.NoError(t, err)
	require.NoError(t, vs.Add(ctx, []store.Record{rec("policy.txt", "remote work", 0, 0, 1)}))
	require.NoError(t, vs.Close())

	vs, err = sqlite.NewVectorStore(path, 3)
	require.NoError(t, err)
	defer func() { _ = vs.Close() }()

	results, err := vs.Search(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "remote work", results[0].Text)
}

func TestVectorStore_DimensionMismatchOnReopen(t *testing.T) {
	path := testDBPath(t, "dims")

	vs, err := sqlite.NewVectorStore(path, 3)
	require.NoError(t, err)
	require.NoError(t, vs.Close())

	_, err = sqlite.NewVectorStore(path, 4)
	require.Error(t, err)
	assert.True(t, aegiserr.HasCode(err, aegiserr.CodeStoreInvalidInput))
}

func TestVectorStore_ConcurrentAddAndSearch(t *testing.T) {
	ctx := context.Background()
	vs := newVectorStore(t, 3)

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, vs.Add(ctx, []store.Record{rec("doc.txt", "chunk", float32(i), 1, 0)}))
		}()
		go func() {
			defer wg.Done()
			_, err := vs.Search(ctx, []float32{1, 1, 0}, 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	chunks, err := vs.Chunks(ctx, "doc.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	seen := map[int]bool{}
	for _, c := range chunks {
		seen[c.Seq] = true
	}
	assert.Len(t, seen, 4, "seq values are unique per source")
}
