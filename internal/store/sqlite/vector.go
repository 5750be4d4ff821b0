// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aegis-hr/aegis/internal/store"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.VectorStore = (*VectorStore)(nil)

// VectorStore implements store.VectorStore backed by SQLite with sqlite-vec.
// Chunk text and source metadata live in a plain table; embeddings live in a
// vec0 virtual table keyed by the same id.
type VectorStore struct {
	db         *sql.DB
	dimensions int

	// writeMu serializes Add and DeleteBySource so Seq assignment never
	// races within one process.
	writeMu sync.Mutex
}

// NewVectorStore opens (or creates) a SQLite database at dbPath. Reopening a
// database created with a different dimension count fails.
func NewVectorStore(dbPath string, dimensions int) (*VectorStore, error) {
	if dimensions <= 0 {
		return nil, aegiserr.Errorf(aegiserr.CodeStoreInvalidInput, "vector dimensions must be positive, got %d", dimensions)
	}

	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrateVector(db, dimensions); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &VectorStore{db: db, dimensions: dimensions}, nil
}

func openDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "pinging sqlite db")
	}
	// Owner-only: the databases hold resume text.
	if err := os.Chmod(dbPath, 0o600); err != nil {
		_ = db.Close()
		return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "restricting sqlite db permissions")
	}
	return db, nil
}

func migrateVector(db *sql.DB, dimensions int) error {
	const metaDDL = `
CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	text       TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_source_seq ON chunks(source, seq);`
	if _, err := db.Exec(metaDDL); err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "creating chunk tables")
	}

	var stored string
	err := db.QueryRow(`SELECT value FROM store_meta WHERE key = 'dimensions'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		if _, err := db.Exec(`INSERT INTO store_meta(key, value) VALUES ('dimensions', ?)`, strconv.Itoa(dimensions)); err != nil {
			return aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "recording vector dimensions")
		}
	case err != nil:
		return aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "reading vector dimensions")
	case stored != strconv.Itoa(dimensions):
		return aegiserr.Errorf(aegiserr.CodeStoreInvalidInput,
			"vector store was created with %s dimensions, configured %d; re-ingest into a new data_dir", stored, dimensions)
	}

	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "creating chunk_vectors virtual table")
	}

	return nil
}

func (v *VectorStore) Dimensions() int { return v.dimensions }

// Add inserts records in one transaction. Missing IDs are generated; Seq is
// assigned per source after the highest Seq already stored.
func (v *VectorStore) Add(ctx context.Context, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if records[i].Source == "" {
			return aegiserr.New(aegiserr.CodeStoreInvalidInput, "record source must not be empty")
		}
		if len(records[i].Embedding) != v.dimensions {
			return aegiserr.Errorf(aegiserr.CodeStoreInvalidInput,
				"record embedding has %d dimensions, want %d", len(records[i].Embedding), v.dimensions)
		}
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	next := make(map[string]int)
	now := time.Now().UTC()

	for i := range records {
		r := &records[i]

		seq, ok := next[r.Source]
		if !ok {
			var maxSeq sql.NullInt64
			if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM chunks WHERE source = ?`, r.Source).Scan(&maxSeq); err != nil {
				return aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "reading max seq", aegiserr.FieldSource(r.Source))
			}
			if maxSeq.Valid {
				seq = int(maxSeq.Int64) + 1
			}
		}
		r.Seq = seq
		next[r.Source] = seq + 1

		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}

		blob, err := sqlite_vec.SerializeFloat32(r.Embedding)
		if err != nil {
			return aegiserr.Wrap(err, aegiserr.CodeStoreInvalidInput, "serializing embedding")
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks(id, source, seq, text, created_at) VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.Source, r.Seq, r.Text, r.CreatedAt.Format(time.RFC3339Nano),
		); err != nil {
			return aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "inserting chunk", aegiserr.FieldSource(r.Source))
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO chunk_vectors(id, embedding) VALUES (?, ?)`, r.ID, blob); err != nil {
			return aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "inserting vector", aegiserr.FieldSource(r.Source))
		}
	}

	if err := tx.Commit(); err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "committing chunks")
	}
	return nil
}

// Search performs a k-nearest-neighbour search across every source.
func (v *VectorStore) Search(ctx context.Context, query []float32, k int) ([]store.ScoredRecord, error) {
	if k <= 0 {
		return nil, aegiserr.Errorf(aegiserr.CodeStoreInvalidInput, "k must be positive, got %d", k)
	}
	if len(query) != v.dimensions {
		return nil, aegiserr.Errorf(aegiserr.CodeStoreInvalidInput,
			"query has %d dimensions, want %d", len(query), v.dimensions)
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeStoreInvalidInput, "serializing query vector")
	}

	const q = `SELECT c.id, c.source, c.seq, c.text, c.created_at, v.distance
FROM chunk_vectors v
JOIN chunks c ON c.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := v.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	var results []store.ScoredRecord
	for rows.Next() {
		var (
			r       store.ScoredRecord
			created string
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.Seq, &r.Text, &created, &r.Distance); err != nil {
			return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "scanning vector result")
		}
		r.CreatedAt = parseTime(created)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "iterating vector results")
	}

	return results, nil
}

func (v *VectorStore) Chunks(ctx context.Context, source string) ([]store.Record, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT id, source, seq, text, created_at FROM chunks WHERE source = ? ORDER BY seq`, source)
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "listing chunks", aegiserr.FieldSource(source))
	}
	defer func() { _ = rows.Close() }()

	var out []store.Record
	for rows.Next() {
		var (
			r       store.Record
			created string
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.Seq, &r.Text, &created); err != nil {
			return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "scanning chunk")
		}
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "iterating chunks")
	}
	return out, nil
}

func (v *VectorStore) ListSources(ctx context.Context) ([]store.SourceInfo, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT source, COUNT(*), MIN(created_at) FROM chunks GROUP BY source ORDER BY source`)
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "listing sources")
	}
	defer func() { _ = rows.Close() }()

	var out []store.SourceInfo
	for rows.Next() {
		var (
			s       store.SourceInfo
			created string
		)
		if err := rows.Scan(&s.Source, &s.Chunks, &created); err != nil {
			return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "scanning source")
		}
		s.IngestedAt = parseTime(created)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "iterating sources")
	}
	return out, nil
}

func (v *VectorStore) HasSource(ctx context.Context, source string) (bool, error) {
	var exists int
	err := v.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM chunks WHERE source = ?)`, source).Scan(&exists)
	if err != nil {
		return false, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "checking source", aegiserr.FieldSource(source))
	}
	return exists == 1, nil
}

// DeleteBySource removes every chunk of source and returns how many were
// removed.
func (v *VectorStore) DeleteBySource(ctx context.Context, source string) (int, error) {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE source = ?`, source)
	if err != nil {
		return 0, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "selecting chunk ids", aegiserr.FieldSource(source))
	}
	var ids []any
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "scanning chunk id")
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	// vec0 does not cascade; delete vectors by id explicitly.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE id IN (`+placeholders+`)`, ids...); err != nil {
		return 0, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "deleting vectors", aegiserr.FieldSource(source))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source); err != nil {
		return 0, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "deleting chunks", aegiserr.FieldSource(source))
	}

	if err := tx.Commit(); err != nil {
		return 0, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "committing delete")
	}
	return len(ids), nil
}

func (v *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, aegiserr.Wrap(err, aegiserr.CodeStoreDatabaseFailure, "counting chunks")
	}
	return n, nil
}

// Close closes the underlying database connection.
func (v *VectorStore) Close() error {
	return v.db.Close()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
