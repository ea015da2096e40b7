// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus persists source documents and their chunks, and tracks
// chunk embeddings for the vector index.
// Implements: prd001-corpus (R1-R5);
//
//	docs/ARCHITECTURE § Corpus.
package corpus

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/draft-engine/pkg/types"
)

const dbFile = "corpus.db"

// Index metadata keys.
const (
	MetaEmbedModel = "embed_model"
	MetaDimension  = "dimension"
	MetaBuiltAt    = "built_at"
)

// Store manages the corpus SQLite database.
type Store struct {
	db        *sql.DB
	corpusDir string

	// fts records whether the driver carries the fts5 module (the
	// sqlite_fts5 build tag). Without it the store still works; only
	// keyword search is unavailable.
	fts bool
}

// NewStore opens or creates the corpus database at corpusDir/corpus.db.
// It creates the schema if it does not exist (R1.4).
func NewStore(cfg types.CorpusConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.CorpusDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating corpus directory: %w", err)
	}

	dbPath := filepath.Join(cfg.CorpusDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, corpusDir: cfg.CorpusDir}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			content_hash TEXT NOT NULL UNIQUE,
			char_count INTEGER NOT NULL,
			ingested_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			content TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			chunk_id INTEGER PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
			dim INTEGER NOT NULL,
			vector BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	return s.ensureFTS()
}

// ensureFTS creates the FTS5 virtual table and its sync triggers when the
// driver carries the fts5 module. A binary built without the sqlite_fts5
// tag degrades: the store works normally, SearchKeyword reports itself
// unavailable, and any stale sync triggers are dropped so writes keep
// working against a database a tagged binary created earlier.
func (s *Store) ensureFTS() error {
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='chunks_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists > 0 {
		// The table may predate this binary; probe whether the module
		// can actually serve it.
		var n int
		if err := s.db.QueryRow(`SELECT count(*) FROM chunks_fts`).Scan(&n); err != nil {
			if !isMissingFTSModule(err) {
				return fmt.Errorf("probing FTS table: %w", err)
			}
			return s.dropFTSTriggers()
		}
		s.fts = true
		return nil
	}

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE chunks_fts USING fts5(content, content=chunks, content_rowid=id)`,
		`CREATE TRIGGER chunks_ai AFTER INSERT ON chunks BEGIN
			INSERT INTO chunks_fts(rowid, content) VALUES (new.id, new.content);
		END`,
		`CREATE TRIGGER chunks_ad AFTER DELETE ON chunks BEGIN
			INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.id, old.content);
		END`,
		`CREATE TRIGGER chunks_au AFTER UPDATE ON chunks BEGIN
			INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.id, old.content);
			INSERT INTO chunks_fts(rowid, content) VALUES (new.id, new.content);
		END`,
	}
	for _, stmt := range ftsStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			if isMissingFTSModule(err) {
				return nil
			}
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	s.fts = true
	return nil
}

// dropFTSTriggers removes the sync triggers so chunk writes do not fail
// against an FTS table this binary cannot serve.
func (s *Store) dropFTSTriggers() error {
	for _, trigger := range []string{"chunks_ai", "chunks_ad", "chunks_au"} {
		if _, err := s.db.Exec(`DROP TRIGGER IF EXISTS ` + trigger); err != nil {
			return fmt.Errorf("dropping FTS trigger %s: %w", trigger, err)
		}
	}
	return nil
}

// isMissingFTSModule reports whether err is SQLite's complaint about a
// driver compiled without fts5.
func isMissingFTSModule(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such module: fts5")
}

// KeywordSearchAvailable reports whether FTS5 keyword search can be
// served by this binary.
func (s *Store) KeywordSearchAvailable() bool {
	return s.fts
}

// ContentHash returns the document identity hash for decoded text:
// the SHA-256 hex digest (R1.2).
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}

// HasDocument reports whether a document with the given content hash is
// already in the corpus (R1.3).
func (s *Store) HasDocument(ctx context.Context, contentHash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE content_hash = ?`, contentHash,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking document hash: %w", err)
	}
	return n > 0, nil
}

// InsertDocument stores a document and its chunks in one transaction.
// Any existing document at the same path (an older content version) is
// removed first, together with its chunks and embeddings (R1.5). The
// assigned document and chunk IDs are written back into doc and chunks.
func (s *Store) InsertDocument(ctx context.Context, doc *types.Document, chunks []types.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE path = ?`, doc.Path,
	); err != nil {
		return fmt.Errorf("removing old document version: %w", err)
	}

	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (path, content_hash, char_count, ingested_at)
		 VALUES (?, ?, ?, ?)`,
		doc.Path, doc.ContentHash, doc.CharCount,
		doc.IngestedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	docID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading document id: %w", err)
	}
	doc.ID = docID

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (document_id, ordinal, start_offset, end_offset, content)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		chunks[i].DocumentID = docID
		res, err := stmt.ExecContext(ctx,
			docID, chunks[i].Ordinal, chunks[i].Start, chunks[i].End, chunks[i].Content,
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", chunks[i].Ordinal, err)
		}
		if chunks[i].ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading chunk id: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteDocumentByPath removes the document at path with its chunks and
// embeddings. Returns false when no document matched.
func (s *Store) DeleteDocumentByPath(ctx context.Context, path string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	if err != nil {
		return false, fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading delete count: %w", err)
	}
	return n > 0, nil
}

// Documents returns all documents in ingestion order.
func (s *Store) Documents(ctx context.Context) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, content_hash, char_count, ingested_at
		 FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var (
			d  types.Document
			ts string
		)
		if err := rows.Scan(&d.ID, &d.Path, &d.ContentHash, &d.CharCount, &ts); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			d.IngestedAt = t
		}
		docs = append(docs, d)
	}

	return docs, rows.Err()
}

// PendingChunks returns chunks with no stored embedding, in insertion
// order (R5.2).
func (s *Store) PendingChunks(ctx context.Context) ([]types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.ordinal, c.start_offset, c.end_offset, c.content
		 FROM chunks c
		 LEFT JOIN embeddings e ON e.chunk_id = c.id
		 WHERE e.chunk_id IS NULL
		 ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("querying pending chunks: %w", err)
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var c types.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Start, &c.End, &c.Content); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}

	return chunks, rows.Err()
}

// SaveEmbedding stores one chunk's vector (R5.3).
func (s *Store) SaveEmbedding(ctx context.Context, chunkID int64, vec []float32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings (chunk_id, dim, vector) VALUES (?, ?, ?)
		 ON CONFLICT(chunk_id) DO UPDATE SET dim=excluded.dim, vector=excluded.vector`,
		chunkID, len(vec), encodeVector(vec),
	)
	if err != nil {
		return fmt.Errorf("saving embedding for chunk %d: %w", chunkID, err)
	}
	return nil
}

// ClearEmbeddings drops all stored vectors, forcing a full re-embed on the
// next index build (R5.4).
func (s *Store) ClearEmbeddings(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM index_meta`); err != nil {
		return fmt.Errorf("clearing index metadata: %w", err)
	}
	return nil
}

// IndexRow is one embedded chunk ready for the in-memory vector index.
type IndexRow struct {
	Chunk        types.Chunk
	DocumentPath string
	Vector       []float32
}

// IndexRows returns every embedded chunk with its vector, ordered by
// document ingestion order then chunk ordinal. The order is the index
// insertion order and breaks similarity ties (R5.5).
func (s *Store) IndexRows(ctx context.Context) ([]IndexRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.ordinal, c.start_offset, c.end_offset, c.content,
			d.path, e.dim, e.vector
		 FROM embeddings e
		 JOIN chunks c ON c.id = e.chunk_id
		 JOIN documents d ON d.id = c.document_id
		 ORDER BY c.document_id, c.ordinal`)
	if err != nil {
		return nil, fmt.Errorf("querying index rows: %w", err)
	}
	defer rows.Close()

	var out []IndexRow
	for rows.Next() {
		var (
			r    IndexRow
			dim  int
			blob []byte
		)
		if err := rows.Scan(
			&r.Chunk.ID, &r.Chunk.DocumentID, &r.Chunk.Ordinal,
			&r.Chunk.Start, &r.Chunk.End, &r.Chunk.Content,
			&r.DocumentPath, &dim, &blob,
		); err != nil {
			return nil, fmt.Errorf("scanning index row: %w", err)
		}

		vec, err := decodeVector(blob, dim)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", r.Chunk.ID, err)
		}
		r.Vector = vec
		out = append(out, r)
	}

	return out, rows.Err()
}

// SearchKeyword runs an FTS5 full-text query over chunk content and
// returns matches ranked by bm25, best first. The query uses FTS5 match
// syntax. Scores are negated bm25 values, so higher is better (R4.1).
func (s *Store) SearchKeyword(ctx context.Context, query string, limit int) ([]types.ScoredChunk, error) {
	if !s.fts {
		return nil, fmt.Errorf("keyword search unavailable: binary built without fts5 support (sqlite_fts5 tag)")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.document_id, c.ordinal, c.start_offset, c.end_offset, c.content,
			d.path, bm25(chunks_fts) AS rank
		 FROM chunks_fts
		 JOIN chunks c ON c.id = chunks_fts.rowid
		 JOIN documents d ON d.id = c.document_id
		 WHERE chunks_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var results []types.ScoredChunk
	for rows.Next() {
		var (
			sc   types.ScoredChunk
			rank float64
		)
		if err := rows.Scan(
			&sc.ID, &sc.DocumentID, &sc.Ordinal, &sc.Start, &sc.End, &sc.Content,
			&sc.DocumentPath, &rank,
		); err != nil {
			return nil, fmt.Errorf("scanning keyword result: %w", err)
		}
		sc.Score = -rank
		results = append(results, sc)
	}

	return results, rows.Err()
}

// SetIndexMeta records index build metadata (embedding model, dimension,
// build time).
func (s *Store) SetIndexMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO index_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting index meta %s: %w", key, err)
	}
	return nil
}

// IndexMeta returns the stored value for key, or "" when unset.
func (s *Store) IndexMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM index_meta WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading index meta %s: %w", key, err)
	}
	return value, nil
}

// Status summarizes the corpus for the status command.
type Status struct {
	Documents  int
	Chunks     int
	Embedded   int
	Pending    int
	EmbedModel string
	Dimension  string
	BuiltAt    string
}

// CurrentStatus collects corpus counts and index build metadata.
func (s *Store) CurrentStatus(ctx context.Context) (Status, error) {
	var st Status

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT count(*) FROM documents`, &st.Documents},
		{`SELECT count(*) FROM chunks`, &st.Chunks},
		{`SELECT count(*) FROM embeddings`, &st.Embedded},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return Status{}, fmt.Errorf("counting: %w", err)
		}
	}
	st.Pending = st.Chunks - st.Embedded

	var err error
	if st.EmbedModel, err = s.IndexMeta(ctx, MetaEmbedModel); err != nil {
		return Status{}, err
	}
	if st.Dimension, err = s.IndexMeta(ctx, MetaDimension); err != nil {
		return Status{}, err
	}
	if st.BuiltAt, err = s.IndexMeta(ctx, MetaBuiltAt); err != nil {
		return Status{}, err
	}

	return st, nil
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks little-endian float32 bytes, checking the declared
// dimension.
func decodeVector(blob []byte, dim int) ([]float32, error) {
	if len(blob) != 4*dim {
		return nil, fmt.Errorf("vector blob is %d bytes, want %d for dim %d", len(blob), 4*dim, dim)
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec, nil
}
