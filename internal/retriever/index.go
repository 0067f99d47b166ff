// Package retriever implements the semantic document index: chunk storage
// backed by SQLite, embedding via the OpenAI embeddings API, and cosine
// similarity search with optional maximal-marginal-relevance reranking.
package retriever

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Chunk is a single indexed span of document text. PageLabel is the 1-based
// PDF page the chunk came from, or -1 for non-paginated sources.
type Chunk struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Source     string    `json:"source"`
	PageLabel  int       `json:"page_label"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// Index persists chunks and their embeddings in a SQLite database, keyed by
// collection.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) the chunk index at the given path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "retriever: open index")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "retriever: exec %s", pragma)
		}
	}
	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

const indexMigration = `
CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	source     TEXT NOT NULL,
	page_label INTEGER NOT NULL DEFAULT -1,
	text       TEXT NOT NULL,
	embedding  TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

func (ix *Index) migrate() error {
	_, err := ix.db.Exec(indexMigration)
	return eris.Wrap(err, "retriever: migrate")
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// Add stores chunks with their embeddings. Chunks without an ID are assigned
// one. The write is transactional so a failed ingest leaves no partial batch.
func (ix *Index) Add(ctx context.Context, chunks []Chunk) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "retriever: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, collection, source, page_label, text, embedding) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "retriever: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.New().String()
		}
		embJSON, err := json.Marshal(chunks[i].Embedding)
		if err != nil {
			return eris.Wrap(err, "retriever: marshal embedding")
		}
		if _, err := stmt.ExecContext(ctx,
			chunks[i].ID, chunks[i].Collection, chunks[i].Source,
			chunks[i].PageLabel, chunks[i].Text, string(embJSON),
		); err != nil {
			return eris.Wrapf(err, "retriever: insert chunk %s", chunks[i].ID)
		}
	}
	return eris.Wrap(tx.Commit(), "retriever: commit")
}

// All loads every chunk in a collection with its embedding.
func (ix *Index) All(ctx context.Context, collection string) ([]Chunk, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, collection, source, page_label, text, embedding FROM chunks WHERE collection = ?`,
		collection,
	)
	if err != nil {
		return nil, eris.Wrap(err, "retriever: query chunks")
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var embJSON string
		if err := rows.Scan(&c.ID, &c.Collection, &c.Source, &c.PageLabel, &c.Text, &embJSON); err != nil {
			return nil, eris.Wrap(err, "retriever: scan chunk")
		}
		if err := json.Unmarshal([]byte(embJSON), &c.Embedding); err != nil {
			return nil, eris.Wrapf(err, "retriever: unmarshal embedding for %s", c.ID)
		}
		chunks = append(chunks, c)
	}
	return chunks, eris.Wrap(rows.Err(), "retriever: iterate chunks")
}

// Count returns the number of indexed chunks in a collection.
func (ix *Index) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := ix.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE collection = ?`, collection).Scan(&n)
	return n, eris.Wrap(err, "retriever: count chunks")
}

// Collections lists the collection IDs present in the index.
func (ix *Index) Collections(ctx context.Context) ([]string, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT DISTINCT collection FROM chunks ORDER BY collection`)
	if err != nil {
		return nil, eris.Wrap(err, "retriever: list collections")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "retriever: scan collection")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "retriever: iterate collections")
}

// Clear removes all chunks in a collection. Used when re-ingesting.
func (ix *Index) Clear(ctx context.Context, collection string) error {
	_, err := ix.db.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, collection)
	return eris.Wrap(err, "retriever: clear")
}
