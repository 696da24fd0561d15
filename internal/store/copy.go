package store

import (
	"context"
	"fmt"
	"strings"
)

// copyTables lists the tables in foreign key order.
var copyTables = []struct {
	name    string
	columns []string
}{
	{"batch_runs", []string{"id", "created_at", "target_level", "iterations", "completed",
		"average_level", "median_level", "std_dev", "success_rate", "payload"}},
	{"progression_runs", []string{"id", "created_at", "strategy", "target_level", "success",
		"attempts", "best_level", "payload"}},
	{"analyses", []string{"id", "created_at", "grade", "target_level", "cps", "crystal_budget",
		"dominance", "diversity", "top_stats", "bottom_stats", "focus_stats",
		"best_pattern_id", "best_pattern_level"}},
	{"patterns", []string{"analysis_id", "id", "allocation", "average_level", "success_rate"}},
}

// CopyResult is the outcome of copying one table.
type CopyResult struct {
	Table   string
	Read    int64
	Written int64
}

// CopyTo copies every row of s into dst, keeping ids and timestamps. Rows
// whose key already exists in dst are left alone, so a copy can be re-run.
// With dryRun nothing is written and Written stays zero.
func (s *Store) CopyTo(ctx context.Context, dst *Store, dryRun bool) ([]CopyResult, error) {
	out := make([]CopyResult, 0, len(copyTables))
	for _, t := range copyTables {
		res, err := s.copyTable(ctx, dst, t.name, t.columns, dryRun)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *Store) copyTable(ctx context.Context, dst *Store, table string, columns []string, dryRun bool) (CopyResult, error) {
	res := CopyResult{Table: table}
	cols := strings.Join(columns, ", ")

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s`, cols, table))
	if err != nil {
		return res, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	var batch [][]any
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return res, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		for i, v := range vals {
			// lib/pq hands text back as []byte; SQLite would store that as a BLOB.
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		batch = append(batch, vals)
		res.Read++
	}
	if err := rows.Err(); err != nil {
		return res, fmt.Errorf("failed to read %s: %w", table, err)
	}
	if dryRun || len(batch) == 0 {
		return res, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insert := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING`, table, cols, placeholders)

	tx, err := dst.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, dst.qb.Build(insert))
	if err != nil {
		return res, fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for _, vals := range batch {
		r, err := stmt.ExecContext(ctx, vals...)
		if err != nil {
			return res, fmt.Errorf("failed to write %s: %w", table, err)
		}
		if n, err := r.RowsAffected(); err == nil {
			res.Written += n
		}
	}
	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return res, nil
}
