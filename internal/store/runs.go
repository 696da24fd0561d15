package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deskwarrior/simulator/internal/batch"
	"github.com/deskwarrior/simulator/internal/progression"
)

// BatchSummary is one row of ListBatches.
type BatchSummary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	TargetLevel  int       `json:"target_level"`
	Iterations   int       `json:"iterations"`
	Completed    int       `json:"completed"`
	AverageLevel float64   `json:"average_level"`
	MedianLevel  float64   `json:"median_level"`
	StdDev       float64   `json:"std_dev"`
	SuccessRate  float64   `json:"success_rate"`
}

// SaveBatch stores a batch result, replacing any earlier row with the same
// id. A result without an id gets one.
func (s *Store) SaveBatch(ctx context.Context, res *batch.Result) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode batch %s: %w", res.ID, err)
	}

	err = s.exec(ctx, s.db, `
		INSERT INTO batch_runs (id, created_at, target_level, iterations, completed,
			average_level, median_level, std_dev, success_rate, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			target_level = excluded.target_level,
			iterations = excluded.iterations,
			completed = excluded.completed,
			average_level = excluded.average_level,
			median_level = excluded.median_level,
			std_dev = excluded.std_dev,
			success_rate = excluded.success_rate,
			payload = excluded.payload`,
		res.ID, time.Now().UnixNano(), res.TargetLevel, res.Requested, res.Completed,
		res.AverageLevel, res.MedianLevel, res.StdDev, res.SuccessRate, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save batch %s: %w", res.ID, err)
	}
	return nil
}

// GetBatch loads the full batch result with the given id.
func (s *Store) GetBatch(ctx context.Context, id string) (*batch.Result, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.qb.Build(`SELECT payload FROM batch_runs WHERE id = ?`), id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load batch %s: %w", id, err)
	}

	var res batch.Result
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, fmt.Errorf("failed to decode batch %s: %w", id, err)
	}
	return &res, nil
}

// ListBatches returns the most recent batches first. A limit of zero or
// less returns every batch.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	query := `SELECT id, created_at, target_level, iterations, completed,
		average_level, median_level, std_dev, success_rate
		FROM batch_runs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.qb.Build(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var out []BatchSummary
	for rows.Next() {
		var b BatchSummary
		var created int64
		if err := rows.Scan(&b.ID, &created, &b.TargetLevel, &b.Iterations, &b.Completed,
			&b.AverageLevel, &b.MedianLevel, &b.StdDev, &b.SuccessRate); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		b.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, b)
	}
	return out, rows.Err()
}

// ProgressionSummary is one row of ListProgressions.
type ProgressionSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Strategy    string    `json:"strategy"`
	TargetLevel int       `json:"target_level"`
	Success     bool      `json:"success"`
	Attempts    int       `json:"attempts"`
	BestLevel   int       `json:"best_level"`
}

// SaveProgression stores a progression result.
func (s *Store) SaveProgression(ctx context.Context, res *progression.Result) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode progression %s: %w", res.ID, err)
	}
	success := 0
	if res.Success {
		success = 1
	}

	err = s.exec(ctx, s.db, `
		INSERT INTO progression_runs (id, created_at, strategy, target_level, success,
			attempts, best_level, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			strategy = excluded.strategy,
			target_level = excluded.target_level,
			success = excluded.success,
			attempts = excluded.attempts,
			best_level = excluded.best_level,
			payload = excluded.payload`,
		res.ID, time.Now().UnixNano(), res.Strategy.String(), res.TargetLevel, success,
		res.AttemptsNeeded, res.BestLevelEver, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save progression %s: %w", res.ID, err)
	}
	return nil
}

// GetProgression loads the progression result with the given id.
func (s *Store) GetProgression(ctx context.Context, id string) (*progression.Result, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.qb.Build(`SELECT payload FROM progression_runs WHERE id = ?`), id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("progression %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load progression %s: %w", id, err)
	}

	var res progression.Result
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, fmt.Errorf("failed to decode progression %s: %w", id, err)
	}
	return &res, nil
}

// ListProgressions returns the most recent progression runs first.
func (s *Store) ListProgressions(ctx context.Context, limit int) ([]ProgressionSummary, error) {
	query := `SELECT id, created_at, strategy, target_level, success, attempts, best_level
		FROM progression_runs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.qb.Build(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list progressions: %w", err)
	}
	defer rows.Close()

	var out []ProgressionSummary
	for rows.Next() {
		var p ProgressionSummary
		var created int64
		var success int
		if err := rows.Scan(&p.ID, &created, &p.Strategy, &p.TargetLevel, &success, &p.Attempts, &p.BestLevel); err != nil {
			return nil, fmt.Errorf("failed to scan progression: %w", err)
		}
		p.CreatedAt = time.Unix(0, created).UTC()
		p.Success = success != 0
		out = append(out, p)
	}
	return out, rows.Err()
}
