package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists catalog entries and their embeddings in PostgreSQL. The
// in-memory Index is rebuilt from here at startup and after ingestion.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Upsert inserts or refreshes one catalog entry.
func (s *Store) Upsert(ctx context.Context, e Entry) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata for %s: %w", e.ID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO catalog_specs (id, name, description, metadata, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    metadata = EXCLUDED.metadata,
		    embedding = EXCLUDED.embedding,
		    updated_at = NOW()
	`, e.ID, e.Name, e.Description, meta, e.Vector)
	if err != nil {
		return fmt.Errorf("upsert catalog spec %s: %w", e.ID, err)
	}
	return nil
}

// LoadAll reads every catalog entry, id-ordered.
func (s *Store) LoadAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, metadata, embedding
		FROM catalog_specs
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query catalog specs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &meta, &e.Vector); err != nil {
			return nil, fmt.Errorf("scan catalog spec: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of persisted catalog entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM catalog_specs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count catalog specs: %w", err)
	}
	return n, nil
}
