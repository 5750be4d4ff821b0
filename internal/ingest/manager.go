// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package ingest turns uploaded documents into searchable chunks: it extracts
// text, splits it into overlapping windows, screens every window through the
// sanitization gate, embeds the survivors and appends them to the vector
// store.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/aegis-hr/aegis/internal/provider"
	"github.com/aegis-hr/aegis/internal/store"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// DuplicatePolicy decides what happens when a document is ingested under a
// name that is already indexed.
type DuplicatePolicy string

const (
	// DuplicateReplace deletes the earlier chunks once the new ones are
	// embedded.
	DuplicateReplace DuplicatePolicy = "replace"
	// DuplicateAppend keeps both sets of chunks.
	DuplicateAppend DuplicatePolicy = "append"
	// DuplicateReject fails with a conflict.
	DuplicateReject DuplicatePolicy = "reject"
)

// Sanitizer screens one chunk. It returns the chunk unchanged or a
// redaction placeholder.
type Sanitizer interface {
	Sanitize(ctx context.Context, text string) (string, error)
}

// Retriever returns the records nearest to query.
type Retriever func(ctx context.Context, query string) ([]store.ScoredRecord, error)

// IngestReport describes one completed ingestion.
type IngestReport struct {
	Source   string        `json:"source"`
	Pages    int           `json:"pages"`
	Chunks   int           `json:"chunks"`
	Redacted int           `json:"redacted"`
	Replaced int           `json:"replaced"`
	Duration time.Duration `json:"duration"`
}

// Options configures a Manager. Zero values select the defaults.
type Options struct {
	Documents       ChunkProfile
	Policies        ChunkProfile
	DuplicatePolicy DuplicatePolicy
	TempDir         string
	Logger          *slog.Logger

	// Extractors overrides the extractor per kind; tests use it to avoid
	// real PDFs.
	Extractors map[Kind]Extractor
}

// Manager owns the ingestion pipeline and the read side of the vector store.
type Manager struct {
	store      store.VectorStore
	embedder   provider.TextEmbedder
	sanitizer  Sanitizer
	profiles   map[Kind]ChunkProfile
	extractors map[Kind]Extractor
	policy     DuplicatePolicy
	tempDir    string
	logger     *slog.Logger

	// sourceLocks serializes ingestion of the same source name so that the
	// duplicate policy sees a consistent store. Entries exist only while a
	// source is being ingested or waited on.
	locksMu     sync.Mutex
	sourceLocks map[string]*sourceLock
}

type sourceLock struct {
	mu      sync.Mutex
	holders int // goroutines holding or waiting for mu
}

// NewManager wires a Manager. sanitizer may be nil, in which case chunks are
// stored unscreened.
func NewManager(vs store.VectorStore, embedder provider.TextEmbedder, sanitizer Sanitizer, opts Options) (*Manager, error) {
	if vs == nil {
		return nil, aegiserr.New(aegiserr.CodeIngestStoreFailure, "vector store is required")
	}
	if embedder == nil {
		return nil, aegiserr.New(aegiserr.CodeIngestEmbedFailure, "embedder is required")
	}
	if embedder.Dimensions() != vs.Dimensions() {
		return nil, aegiserr.Errorf(aegiserr.CodeIngestEmbedFailure,
			"embedder produces %d dimensions but the store holds %d", embedder.Dimensions(), vs.Dimensions())
	}

	if opts.Documents == (ChunkProfile{}) {
		opts.Documents = DocumentProfile
	}
	if opts.Policies == (ChunkProfile{}) {
		opts.Policies = PolicyProfile
	}
	switch opts.DuplicatePolicy {
	case "":
		opts.DuplicatePolicy = DuplicateReplace
	case DuplicateReplace, DuplicateAppend, DuplicateReject:
	default:
		return nil, aegiserr.Errorf(aegiserr.CodeConfigValidateInvalidValue,
			"unknown duplicate policy %q", opts.DuplicatePolicy)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	extractors := map[Kind]Extractor{
		KindPDF:  PDFExtractor{TempDir: opts.TempDir},
		KindText: TextExtractor{},
	}
	for k, e := range opts.Extractors {
		extractors[k] = e
	}

	return &Manager{
		store:     vs,
		embedder:  embedder,
		sanitizer: sanitizer,
		profiles: map[Kind]ChunkProfile{
			KindPDF:  opts.Documents,
			KindText: opts.Policies,
		},
		extractors: extractors,
		policy:     opts.DuplicatePolicy,
		tempDir:    opts.TempDir,
		logger:     opts.Logger,

		sourceLocks: make(map[string]*sourceLock),
	}, nil
}

// AddDocument ingests raw under the base name of filename. Records written
// before a failure stay in the store. The scratch file is removed on every
// path.
func (m *Manager) AddDocument(ctx context.Context, raw []byte, filename string) (IngestReport, error) {
	began := time.Now()
	source := filepath.Base(filename)
	report := IngestReport{Source: source}

	kind := KindOf(source)
	if kind == KindUnsupported || source == "." || source == string(filepath.Separator) {
		return report, aegiserr.Errorf(aegiserr.CodeUploadInvalidType,
			"unsupported file type %q", filepath.Ext(source))
	}

	unlock := m.lockSource(source)
	defer unlock()

	exists, err := m.store.HasSource(ctx, source)
	if err != nil {
		return report, aegiserr.Reclassify(err, aegiserr.CodeIngestStoreFailure, "checking existing document",
			aegiserr.FieldSource(source))
	}
	if exists && m.policy == DuplicateReject {
		return report, aegiserr.Errorf(aegiserr.CodeUploadDuplicate, "document %q is already indexed", source)
	}

	pages, err := m.extract(ctx, kind, raw, source)
	if err != nil {
		return report, err
	}
	report.Pages = len(pages)

	text := joinPages(pages)
	if text == "" {
		return report, aegiserr.New(aegiserr.CodeIngestExtractFailure, "no text could be extracted",
			aegiserr.FieldSource(source))
	}

	chunks := Split(text, m.profiles[kind])

	if m.sanitizer != nil {
		for i, chunk := range chunks {
			clean, err := m.sanitizer.Sanitize(ctx, chunk)
			if err != nil {
				return report, aegiserr.Reclassify(err, aegiserr.CodeIngestSanitizeFailure, "screening chunk",
					aegiserr.FieldSource(source), aegiserr.Field("chunk", i))
			}
			if clean != chunk {
				report.Redacted++
			}
			chunks[i] = clean
		}
	}

	vectors, err := m.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return report, aegiserr.Reclassify(err, aegiserr.CodeIngestEmbedFailure, "embedding chunks",
			aegiserr.FieldSource(source))
	}
	if len(vectors) != len(chunks) {
		return report, aegiserr.Errorf(aegiserr.CodeIngestEmbedFailure,
			"embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if exists && m.policy == DuplicateReplace {
		n, err := m.store.DeleteBySource(ctx, source)
		if err != nil {
			return report, aegiserr.Reclassify(err, aegiserr.CodeIngestStoreFailure, "removing previous version",
				aegiserr.FieldSource(source))
		}
		report.Replaced = n
	}

	records := make([]store.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = store.Record{Source: source, Text: chunk, Embedding: vectors[i]}
	}
	if err := m.store.Add(ctx, records); err != nil {
		return report, aegiserr.Reclassify(err, aegiserr.CodeIngestStoreFailure, "storing chunks",
			aegiserr.FieldSource(source))
	}

	report.Chunks = len(records)
	report.Duration = time.Since(began)
	m.logger.Info("document ingested",
		"source", source,
		"kind", kind.String(),
		"pages", report.Pages,
		"chunks", report.Chunks,
		"redacted", report.Redacted,
		"replaced", report.Replaced,
		"duration", report.Duration)

	return report, nil
}

// IngestFile reads path from disk and ingests it under its base name.
func (m *Manager) IngestFile(ctx context.Context, path string) (IngestReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return IngestReport{Source: filepath.Base(path)}, aegiserr.Wrap(err, aegiserr.CodeIngestExtractFailure,
			"reading file", aegiserr.FieldSource(path))
	}
	return m.AddDocument(ctx, raw, path)
}

// HasDocument reports whether source is indexed.
func (m *Manager) HasDocument(ctx context.Context, source string) (bool, error) {
	return m.store.HasSource(ctx, source)
}

// ListDocuments returns the distinct indexed sources in ascending order.
func (m *Manager) ListDocuments(ctx context.Context) ([]string, error) {
	infos, err := m.store.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Source)
	}
	sort.Strings(names)
	return names, nil
}

// Retriever returns a search function over the whole store limited to k
// results. An empty store answers without an embedding call.
func (m *Manager) Retriever(k int) Retriever {
	return func(ctx context.Context, query string) ([]store.ScoredRecord, error) {
		n, err := m.store.Count(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}

		vec, err := m.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, err
		}
		return m.store.Search(ctx, vec, k)
	}
}

func (m *Manager) extract(ctx context.Context, kind Kind, raw []byte, source string) ([]Page, error) {
	tmp, err := os.CreateTemp(m.tempDir, "aegis-upload-*"+filepath.Ext(source))
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeIngestTempFileFailure, "creating temp file",
			aegiserr.FieldSource(source))
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	_, werr := tmp.Write(raw)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		return nil, aegiserr.Wrap(errors.Join(werr, cerr), aegiserr.CodeIngestTempFileFailure,
			"writing temp file", aegiserr.FieldSource(source))
	}

	pages, err := m.extractors[kind].Extract(ctx, tmp.Name())
	if err != nil {
		return nil, aegiserr.Reclassify(err, aegiserr.CodeIngestExtractFailure, "extracting text",
			aegiserr.FieldSource(source))
	}
	return pages, nil
}

func (m *Manager) lockSource(source string) func() {
	m.locksMu.Lock()
	l, ok := m.sourceLocks[source]
	if !ok {
		l = &sourceLock{}
		m.sourceLocks[source] = l
	}
	l.holders++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		m.locksMu.Lock()
		l.holders--
		if l.holders == 0 {
			delete(m.sourceLocks, source)
		}
		m.locksMu.Unlock()
	}
}

func (m *Manager) lockedSources() int {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	return len(m.sourceLocks)
}
