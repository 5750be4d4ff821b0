// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-hr/aegis/internal/ingest"
)

type recordingIngester struct {
	mu       sync.Mutex
	indexed  map[string]bool
	ingested []string
}

func newRecordingIngester(indexed ...string) *recordingIngester {
	r := &recordingIngester{indexed: make(map[string]bool)}
	for _, s := range indexed {
		r.indexed[s] = true
	}
	return r
}

func (r *recordingIngester) IngestFile(_ context.Context, path string) (ingest.IngestReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	source := filepath.Base(path)
	r.ingested = append(r.ingested, source)
	r.indexed[source] = true
	return ingest.IngestReport{Source: source}, nil
}

func (r *recordingIngester) HasDocument(_ context.Context, source string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexed[source], nil
}

func (r *recordingIngester) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ingested...)
}

func startWatcher(t *testing.T, dir string, ing ingest.FileIngester) {
	t.Helper()

	w := ingest.NewWatcher(dir, ing, nil)
	w.SetSettleDelay(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
}

func TestWatcher_InitialSyncSkipsIndexed(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"known.pdf", "new.pdf", "policies.txt", "image.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	ing := newRecordingIngester("known.pdf")
	startWatcher(t, dir, ing)

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"new.pdf", "policies.txt"}, ing.seen())
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IngestsNewFiles(t *testing.T) {
	dir := t.TempDir()
	ing := newRecordingIngester()
	startWatcher(t, dir, ing)

	// Give the watcher a moment to subscribe.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.pdf"), []byte("x"), 0o600))

	assert.Eventually(t, func() bool {
		seen := ing.seen()
		return len(seen) > 0 && seen[len(seen)-1] == "late.pdf"
	}, 3*time.Second, 10*time.Millisecond)

	assert.NotContains(t, ing.seen(), "notes.json")
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	ing := newRecordingIngester()

	w := ingest.NewWatcher(dir, ing, nil)
	w.SetSettleDelay(200 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(dir, "growing.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	for range 5 {
		_, err := f.WriteString("more text\n")
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool { return len(ing.seen()) == 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Len(t, ing.seen(), 1)
}

func TestWatcher_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	startWatcher(t, dir, newRecordingIngester())

	assert.Eventually(t, func() bool {
		info, err := os.Stat(dir)
		return err == nil && info.IsDir()
	}, 2*time.Second, 10*time.Millisecond)
}
