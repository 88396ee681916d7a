package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteStore is an embedded Store backed by a single SQLite database.
//
// Documents live in one table keyed by (collection, id) with the record
// body serialized as JSON. Filters and ordering are pushed down through
// json_extract, so only top-level fields are filterable, matching the
// Store contract.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// NewSQLiteStore opens (creating if needed) the database at path.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc sqlite serializes access through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Create persists rec under a generated UUID and returns it.
func (s *SQLiteStore) Create(ctx context.Context, collection string, rec Record) (string, error) {
	id := uuid.New().String()
	if err := s.CreateWithID(ctx, collection, id, rec); err != nil {
		return "", err
	}
	return id, nil
}

// CreateWithID persists rec under the given id.
func (s *SQLiteStore) CreateWithID(ctx context.Context, collection, id string, rec Record) error {
	if collection == "" {
		return ErrInvalidCollection
	}
	if id == "" {
		return ErrInvalidID
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		 ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, string(data))
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateID, collection, id)
	}
	return nil
}

// Get fetches one record. Missing documents return (nil, nil).
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Record, error) {
	if collection == "" {
		return nil, ErrInvalidCollection
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching document: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling document %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

// Query translates the query into SQL over json_extract expressions.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Doc, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	args := []any{q.Collection}
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = ?`)

	for _, f := range q.Filters {
		op, err := sqlOp(f.Op)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, ` AND json_extract(data, ?) %s ?`, op)
		args = append(args, "$."+f.Field, f.Value)
	}

	if q.OrderBy != "" {
		sb.WriteString(` ORDER BY json_extract(data, ?)`)
		args = append(args, "$."+q.OrderBy)
		if q.Descending {
			sb.WriteString(` DESC`)
		}
	}
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		var rec Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("unmarshaling document %s/%s: %w", q.Collection, id, err)
		}
		docs = append(docs, Doc{ID: id, Record: rec})
	}
	return docs, rows.Err()
}

// Update merges fields into the stored record.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields Record) error {
	if collection == "" {
		return ErrInvalidCollection
	}
	if id == "" {
		return ErrInvalidID
	}

	// Read-modify-write under the single connection; SQLite serializes
	// writers so this is safe for the store's concurrency model.
	rec, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("update %s/%s: document not found", collection, id)
	}
	for k, v := range fields {
		rec[k] = v
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE documents SET data = ? WHERE collection = ? AND id = ?`,
		string(data), collection, id)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	return nil
}

// Delete removes one document; missing documents are a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	if collection == "" {
		return ErrInvalidCollection
	}
	if id == "" {
		return ErrInvalidID
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`,
		collection, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// BatchDelete removes many documents inside one transaction.
func (s *SQLiteStore) BatchDelete(ctx context.Context, collection string, ids []string) error {
	if collection == "" {
		return ErrInvalidCollection
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning batch delete: %w", err)
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`,
			collection, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("deleting document %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqlOp(op Op) (string, error) {
	switch op {
	case OpEqual:
		return "=", nil
	case OpGreaterOrEqual:
		return ">=", nil
	case OpLessOrEqual:
		return "<=", nil
	default:
		return "", fmt.Errorf("%w: unsupported operator %q", ErrInvalidFilter, op)
	}
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*SQLiteStore)(nil)
