// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aegis-hr/aegis/internal/ingest"
	"github.com/aegis-hr/aegis/internal/store/sqlite"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

const testDims = 4

// fakeEmbedder derives a vector from simple text statistics so that
// identical texts embed identically.
type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	queries []string
	err     error
}

func (e *fakeEmbedder) Dimensions() int { return testDims }

func (e *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, text)
	if e.err != nil {
		return nil, e.err
	}
	return vectorFor(text), nil
}

func (e *fakeEmbedder) queryCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queries)
}

func vectorFor(text string) []float32 {
	lower := strings.ToLower(text)
	return []float32{
		float32(len(text)) / 1000,
		float32(strings.Count(lower, "go")),
		float32(strings.Count(lower, "vacation")),
		1,
	}
}

// fakeSanitizer redacts chunks containing a trigger phrase.
type fakeSanitizer struct {
	trigger string
	err     error
}

func (s fakeSanitizer) Sanitize(_ context.Context, text string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if strings.Contains(text, s.trigger) {
		return "[MALICIOUS CONTENT REDACTED]", nil
	}
	return text, nil
}

// pageExtractor treats form feeds as page breaks and remembers every path
// it was asked to read.
type pageExtractor struct {
	mu    sync.Mutex
	paths []string
}

func (p *pageExtractor) Extract(_ context.Context, path string) ([]ingest.Page, error) {
	p.mu.Lock()
	p.paths = append(p.paths, path)
	p.mu.Unlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeIngestExtractFailure, "reading")
	}
	var pages []ingest.Page
	for i, text := range strings.Split(string(raw), "\f") {
		pages = append(pages, ingest.Page{Number: i + 1, Text: text})
	}
	return pages, nil
}

func (p *pageExtractor) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

type fixture struct {
	mgr       *ingest.Manager
	store     *sqlite.VectorStore
	embedder  *fakeEmbedder
	extractor *pageExtractor
	tempDir   string
}

func newFixture(t *testing.T, opts ingest.Options, sanitizer ingest.Sanitizer) *fixture {
	t.Helper()

	vs, err := sqlite.NewVectorStore(filepath.Join(t.TempDir(), "vectors.db"), testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vs.Close() })

	f := &fixture{
		store:     vs,
		embedder:  &fakeEmbedder{},
		extractor: &pageExtractor{},
		tempDir:   t.TempDir(),
	}

	opts.TempDir = f.tempDir
	opts.Extractors = map[ingest.Kind]ingest.Extractor{ingest.KindPDF: f.extractor}

	f.mgr, err = ingest.NewManager(vs, f.embedder, sanitizer, opts)
	require.NoError(t, err)
	return f
}

// tempFiles lists whatever the manager left behind in its scratch dir.
func (f *fixture) tempFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.tempDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
