package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deskwarrior/simulator/internal/pattern"
)

// HistoryWindow is how many recent analyses HistoricalRecommendations looks at.
const HistoryWindow = 10

// rankedStatsKept is how many stats are stored at each end of the ranking.
const rankedStatsKept = 5

// AnalysisRecord is the stored summary of one balance analysis.
type AnalysisRecord struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Grade            string    `json:"grade"`
	TargetLevel      int       `json:"target_level"`
	CPS              float64   `json:"cps"`
	CrystalBudget    int64     `json:"crystal_budget"`
	Dominance        float64   `json:"dominance"`
	Diversity        float64   `json:"diversity"`
	TopStats         []string  `json:"top_stats"`
	BottomStats      []string  `json:"bottom_stats"`
	FocusStats       []string  `json:"focus_stats"`
	BestPatternID    string    `json:"best_pattern_id"`
	BestPatternLevel float64   `json:"best_pattern_level"`
}

// NewAnalysisRecord summarizes an analysis. TopStats holds the five best
// single-stat patterns and BottomStats the five worst, worst first.
func NewAnalysisRecord(q *pattern.QualityResult, repo *pattern.Repository) *AnalysisRecord {
	rec := &AnalysisRecord{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	if q != nil {
		rec.Grade = string(q.Grade)
		rec.Dominance = q.DominanceRatio
		rec.Diversity = q.DiversityScore
	}
	if repo == nil {
		return rec
	}

	ranked := pattern.StatsByLevel(repo)
	rec.TopStats = append([]string{}, ranked[:min(rankedStatsKept, len(ranked))]...)
	for i := len(ranked) - 1; i >= 0 && len(rec.BottomStats) < rankedStatsKept; i-- {
		rec.BottomStats = append(rec.BottomStats, ranked[i])
	}
	if top := repo.TopByLevel(1); len(top) > 0 {
		rec.BestPatternID = top[0].ID
		rec.BestPatternLevel = top[0].Result.AverageMaxLevel
	}
	return rec
}

// SaveAnalysis stores rec and every evaluated pattern of repo in one
// transaction.
func (s *Store) SaveAnalysis(ctx context.Context, rec *AnalysisRecord, repo *pattern.Repository) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	top, err := encodeList(rec.TopStats)
	if err != nil {
		return err
	}
	bottom, err := encodeList(rec.BottomStats)
	if err != nil {
		return err
	}
	focus, err := encodeList(rec.FocusStats)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = s.exec(ctx, tx, `
		INSERT INTO analyses (id, created_at, grade, target_level, cps, crystal_budget,
			dominance, diversity, top_stats, bottom_stats, focus_stats,
			best_pattern_id, best_pattern_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UnixNano(), rec.Grade, rec.TargetLevel, rec.CPS, rec.CrystalBudget,
		rec.Dominance, rec.Diversity, top, bottom, focus, rec.BestPatternID, rec.BestPatternLevel)
	if err != nil {
		if s.dialect.IsDuplicateKeyError(err) {
			return fmt.Errorf("analysis %s already exists: %w", rec.ID, err)
		}
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	if repo != nil {
		for _, p := range repo.Evaluated() {
			alloc, err := json.Marshal(p.Allocation)
			if err != nil {
				return fmt.Errorf("failed to encode pattern %s: %w", p.ID, err)
			}
			err = s.exec(ctx, tx, `
				INSERT INTO patterns (analysis_id, id, allocation, average_level, success_rate)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(analysis_id, id) DO UPDATE SET
					allocation = excluded.allocation,
					average_level = excluded.average_level,
					success_rate = excluded.success_rate`,
				rec.ID, p.ID, string(alloc), p.Result.AverageMaxLevel, p.Result.SuccessRate)
			if err != nil {
				return fmt.Errorf("failed to save pattern %s: %w", p.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}
	return nil
}

const analysisColumns = `id, created_at, grade, target_level, cps, crystal_budget,
	dominance, diversity, top_stats, bottom_stats, focus_stats,
	best_pattern_id, best_pattern_level`

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	var created int64
	var top, bottom, focus string
	if err := row.Scan(&rec.ID, &created, &rec.Grade, &rec.TargetLevel, &rec.CPS, &rec.CrystalBudget,
		&rec.Dominance, &rec.Diversity, &top, &bottom, &focus,
		&rec.BestPatternID, &rec.BestPatternLevel); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	for _, f := range []struct {
		raw string
		dst *[]string
	}{{top, &rec.TopStats}, {bottom, &rec.BottomStats}, {focus, &rec.FocusStats}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("failed to decode analysis %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}

// GetAnalysis loads one analysis record.
func (s *Store) GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, s.qb.Build(`SELECT `+analysisColumns+` FROM analyses WHERE id = ?`), id)
	rec, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load analysis %s: %w", id, err)
	}
	return rec, nil
}

// ListAnalyses returns the most recent analyses first.
func (s *Store) ListAnalyses(ctx context.Context, limit int) ([]*AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.qb.Build(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []*AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Patterns returns the stored patterns of one analysis as a repository.
func (s *Store) Patterns(ctx context.Context, analysisID string) (*pattern.Repository, error) {
	rows, err := s.db.QueryContext(ctx, s.qb.Build(`
		SELECT id, allocation, average_level, success_rate
		FROM patterns WHERE analysis_id = ? ORDER BY id`), analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}
	defer rows.Close()

	repo := pattern.NewRepository()
	for rows.Next() {
		var id, alloc string
		res := &pattern.Result{}
		if err := rows.Scan(&id, &alloc, &res.AverageMaxLevel, &res.SuccessRate); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		var m map[string]float64
		if err := json.Unmarshal([]byte(alloc), &m); err != nil {
			return nil, fmt.Errorf("failed to decode pattern %s: %w", id, err)
		}
		p := pattern.NewNamedPattern(id, m)
		p.Result = res
		repo.Add(p)
	}
	return repo, rows.Err()
}

// HistoricalRecommendations looks at the last HistoryWindow analyses and
// returns the stat most often ranked first, the one most often ranked
// second and the one most often ranked last. Ties go to the most recent
// analysis. No history yields empty hints.
func (s *Store) HistoricalRecommendations(ctx context.Context) (pattern.Hints, error) {
	recs, err := s.ListAnalyses(ctx, HistoryWindow)
	if err != nil {
		return pattern.Hints{}, err
	}

	var top1, top2, bottom []string
	for _, rec := range recs {
		if len(rec.TopStats) > 0 {
			top1 = append(top1, rec.TopStats[0])
		}
		if len(rec.TopStats) > 1 {
			top2 = append(top2, rec.TopStats[1])
		}
		if len(rec.BottomStats) > 0 {
			bottom = append(bottom, rec.BottomStats[0])
		}
	}
	return pattern.Hints{
		Top1:    mostFrequent(top1),
		Top2:    mostFrequent(top2),
		Bottom1: mostFrequent(bottom),
	}, nil
}

// mostFrequent returns the most common value; on a tie the one seen first wins.
func mostFrequent(values []string) string {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestCount := "", 0
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode stat list: %w", err)
	}
	return string(b), nil
}
