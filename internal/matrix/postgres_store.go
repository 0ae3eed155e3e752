package matrix

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Schema creates the single table PostgresStore needs.
const Schema = `
CREATE TABLE IF NOT EXISTS matrices (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL DEFAULT '',
    doc        JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps each matrix as one JSONB document.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// OpenPostgres opens and pings a lib/pq connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate creates the matrices table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Matrix, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM matrices WHERE id=$1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var m Matrix
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("decode matrix %s: %w", id, err)
	}
	return m.Normalize(), nil
}

func (s *PostgresStore) Save(ctx context.Context, m *Matrix) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO matrices (id, title, doc, updated_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, doc=EXCLUDED.doc, updated_at=now()
    `, m.ID, m.Title, doc)
	return err
}

func (s *PostgresStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, title, coalesce(jsonb_array_length(doc->'rows'), 0), coalesce(jsonb_array_length(doc->'columns'), 0)
        FROM matrices ORDER BY id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	// Always return a non-nil slice so JSON encodes as [] instead of null
	out := make([]Summary, 0)
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Title, &sm.Rows, &sm.Columns); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}
