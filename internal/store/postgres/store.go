// Package postgres implements store.Store on top of a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codecollab/execd/internal/domain"
	"github.com/codecollab/execd/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Create(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionRecord, error) {
	row := s.pool.QueryRow(ctx, queryCreate,
		req.ID, req.UserID, req.RoomID, string(req.Language), string(domain.StatusQueued))
	rec, err := scanRecord(row)
	if err != nil {
		return domain.ExecutionRecord{}, fmt.Errorf("create execution: %w", err)
	}
	return rec, nil
}

func (s *Store) SetJobID(ctx context.Context, id, jobID string) error {
	tag, err := s.pool.Exec(ctx, querySetJobID, id, jobID)
	if err != nil {
		return fmt.Errorf("set job id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	tag, err := s.pool.Exec(ctx, queryUpdateStatus, id, string(status))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyMiss(ctx, id)
	}
	return nil
}

func (s *Store) SaveResult(ctx context.Context, id string, res store.ResultUpdate) error {
	tag, err := s.pool.Exec(ctx, querySaveResult, id,
		string(res.Status),
		nullable(res.Output),
		nullable(res.ErrorMessage),
		res.ExecTimeMs,
		res.MemoryUsedKb,
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.classifyMiss(ctx, id)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, queryGetByID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExecutionRecord{}, domain.ErrNotFound
		}
		return domain.ExecutionRecord{}, fmt.Errorf("get execution: %w", err)
	}
	return rec, nil
}

func (s *Store) ListRecent(ctx context.Context, userID string, limit int) ([]domain.ExecutionRecord, error) {
	rows, err := s.pool.Query(ctx, queryListRecent, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var recs []domain.ExecutionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// classifyMiss distinguishes a missing row from a terminal-state guard hit
// after a zero-row update.
func (s *Store) classifyMiss(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, queryExists, id).Scan(&exists); err != nil {
		return fmt.Errorf("check execution: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrTerminalState
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (domain.ExecutionRecord, error) {
	var rec domain.ExecutionRecord
	var lang, status string
	var output, errMsg, jobID *string
	var execTime, memory *int64

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.RoomID,
		&lang,
		&status,
		&output,
		&errMsg,
		&execTime,
		&memory,
		&jobID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return domain.ExecutionRecord{}, err
	}

	rec.Language = domain.Language(lang)
	rec.Status = domain.Status(status)
	if output != nil {
		rec.Output = *output
	}
	if errMsg != nil {
		rec.ErrorMessage = *errMsg
	}
	if jobID != nil {
		rec.JobID = *jobID
	}
	if execTime != nil {
		rec.ExecTimeMs = *execTime
	}
	if memory != nil {
		rec.MemoryUsedKb = *memory
	}
	return rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
