// Package sqlite implements the SearchIndex on SQLite FTS5 with bm25 ranking.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"kgraph/application/ports"
	"kgraph/domain/core/entities"
	"kgraph/domain/core/valueobjects"
	"kgraph/infrastructure/search"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY,
		type TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
		type, title, content, tags,
		content=documents, content_rowid=id
	);`,
	`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
		INSERT INTO documents_fts(rowid, type, title, content, tags)
		VALUES (new.id, new.type, new.title, new.content, new.tags);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
		INSERT INTO documents_fts(documents_fts, rowid, type, title, content, tags)
		VALUES ('delete', old.id, old.type, old.title, old.content, old.tags);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
		INSERT INTO documents_fts(documents_fts, rowid, type, title, content, tags)
		VALUES ('delete', old.id, old.type, old.title, old.content, old.tags);
		INSERT INTO documents_fts(rowid, type, title, content, tags)
		VALUES (new.id, new.type, new.title, new.content, new.tags);
	END;`,
}

// column names by attribute; the map is the allow-list for partial updates
var columns = map[entities.Attribute]string{
	entities.AttrType:    "type",
	entities.AttrTitle:   "title",
	entities.AttrContent: "content",
	entities.AttrTags:    "tags",
}

// Index is a SearchIndex stored in a SQLite database
type Index struct {
	db *sql.DB
}

var _ ports.SearchIndex = (*Index)(nil)

// Open opens (or creates) the index at dsn. Use ":memory:" for a private,
// in-process database.
func Open(dsn string) (*Index, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dsn)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: SQLite serializes writers and ":memory:" is per-connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return idx, nil
}

func (i *Index) migrate() error {
	for _, q := range schema {
		if _, err := i.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Upsert inserts or replaces whole documents in one transaction
func (i *Index) Upsert(ctx context.Context, docs ...entities.SearchDocument) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, type, title, content, tags)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			title = excluded.title,
			content = excluded.content,
			tags = excluded.tags`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, d.ID.Int64(), d.Type, d.Title, d.Content, d.Tags); err != nil {
			return fmt.Errorf("failed to upsert document %d: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// UpdateFields sets individual columns, creating the row if needed
func (i *Index) UpdateFields(ctx context.Context, update entities.SearchFieldUpdate) error {
	if len(update.Fields) == 0 {
		return nil
	}

	attrs := make([]entities.Attribute, 0, len(update.Fields))
	for a := range update.Fields {
		if _, ok := columns[a]; ok {
			attrs = append(attrs, a)
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	sort.Slice(attrs, func(a, b int) bool { return attrs[a] < attrs[b] })

	cols := make([]string, 0, len(attrs))
	sets := make([]string, 0, len(attrs))
	args := []interface{}{update.ID.Int64()}
	for _, a := range attrs {
		col := columns[a]
		cols = append(cols, col)
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
		args = append(args, update.Fields[a])
	}

	query := fmt.Sprintf(
		`INSERT INTO documents (id, %s) VALUES (?%s) ON CONFLICT(id) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		strings.Repeat(", ?", len(cols)),
		strings.Join(sets, ", "),
	)
	if _, err := i.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update document %d: %w", update.ID, err)
	}
	return nil
}

// Delete removes a document
func (i *Index) Delete(ctx context.Context, id valueobjects.NodeID) error {
	if _, err := i.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id.Int64()); err != nil {
		return fmt.Errorf("failed to delete document %d: %w", id, err)
	}
	return nil
}

// matchExpression turns free text into an FTS5 OR query of quoted terms
func matchExpression(text string) string {
	terms := search.Tokenize(text)
	quoted := make([]string, len(terms))
	for n, t := range terms {
		quoted[n] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// Query ranks matches with bm25, weighting title over tags over content.
// A limit of zero or less returns every match.
func (i *Index) Query(ctx context.Context, text string, limit int) ([]entities.SearchHit, error) {
	match := matchExpression(text)
	if match == "" {
		return []entities.SearchHit{}, nil
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := i.db.QueryContext(ctx, `
		SELECT d.id, d.title
		FROM documents_fts
		JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ?
		ORDER BY bm25(documents_fts, 1.0, 3.0, 1.0, 2.0), d.id
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	hits := []entities.SearchHit{}
	for rows.Next() {
		var id int64
		var h entities.SearchHit
		if err := rows.Scan(&id, &h.Title); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		h.ID = valueobjects.NodeID(id)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Count returns the number of indexed documents
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// Close closes the database
func (i *Index) Close() error {
	return i.db.Close()
}
