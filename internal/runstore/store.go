package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibn-labs/fulcrum/internal/pipeline"
)

// ErrNotFound is returned when no run exists under the requested id.
var ErrNotFound = errors.New("run not found")

// Record is the persisted form of one pipeline run.
type Record struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	Status     string          `json:"status"`
	ErrorKind  string          `json:"error_kind,omitempty"`
	OrderID    string          `json:"order_id,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Details    string          `json:"details,omitempty"`
	RetryCount int             `json:"retry_count"`
	Intent     json.RawMessage `json:"intent,omitempty"`
	Order      json.RawMessage `json:"order,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Store persists terminal pipeline runs in PostgreSQL so callers can fetch
// results after the fact.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// FromRun flattens a finished run into its persisted form. The intent and
// order snapshots are stored as JSON for later inspection.
func FromRun(run *pipeline.Run) (Record, error) {
	rec := Record{
		ID:         run.ID,
		Text:       run.Text,
		Status:     run.Outcome.Status,
		ErrorKind:  string(run.Outcome.ErrorKind),
		OrderID:    run.Outcome.OrderID,
		Reason:     run.Outcome.Reason,
		Details:    run.Outcome.Details,
		RetryCount: run.Outcome.RetryCount,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
	if run.Intent != nil {
		b, err := json.Marshal(run.Intent)
		if err != nil {
			return Record{}, fmt.Errorf("marshal intent for run %s: %w", run.ID, err)
		}
		rec.Intent = b
	}
	if run.Order != nil {
		b, err := json.Marshal(run.Order)
		if err != nil {
			return Record{}, fmt.Errorf("marshal order for run %s: %w", run.ID, err)
		}
		rec.Order = b
	}
	return rec, nil
}

// Save writes one terminal run record.
func (s *Store) Save(ctx context.Context, rec Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO pipeline_runs
			(id, text, status, error_kind, order_id, reason, details,
			 retry_count, intent, service_order, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, rec.ID, rec.Text, rec.Status, rec.ErrorKind, rec.OrderID, rec.Reason,
		rec.Details, rec.RetryCount, rec.Intent, rec.Order, rec.StartedAt, rec.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}
	return nil
}

// Get fetches one run record by id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.db.QueryRow(ctx, `
		SELECT id, text, status, error_kind, order_id, reason, details,
		       retry_count, intent, service_order, started_at, finished_at
		FROM pipeline_runs
		WHERE id = $1
	`, id).Scan(&rec.ID, &rec.Text, &rec.Status, &rec.ErrorKind, &rec.OrderID,
		&rec.Reason, &rec.Details, &rec.RetryCount, &rec.Intent, &rec.Order,
		&rec.StartedAt, &rec.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// Recent lists the most recently finished runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, text, status, error_kind, order_id, reason, details,
		       retry_count, intent, service_order, started_at, finished_at
		FROM pipeline_runs
		ORDER BY finished_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.Status, &rec.ErrorKind,
			&rec.OrderID, &rec.Reason, &rec.Details, &rec.RetryCount,
			&rec.Intent, &rec.Order, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
