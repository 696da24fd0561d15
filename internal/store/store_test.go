package store

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/deskwarrior/simulator/internal/batch"
	"github.com/deskwarrior/simulator/internal/pattern"
	"github.com/deskwarrior/simulator/internal/progression"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "sim.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s, err := Open(filepath.Join(dir, "sim.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
	if s.Dialect().DriverName() != "sqlite" {
		t.Errorf("driver = %s", s.Dialect().DriverName())
	}
}

func TestBatchRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res := &batch.Result{
		Requested:              10,
		Completed:              10,
		AverageLevel:           12.5,
		MedianLevel:            12,
		MinLevel:               9,
		MaxLevel:               15,
		StdDev:                 1.5,
		LevelCounts:            map[int]int{9: 1, 12: 9},
		TargetLevel:            50,
		SuccessRate:            0,
		MedianAttemptsToTarget: batch.Attempts(math.Inf(1)),
	}
	if err := s.SaveBatch(ctx, res); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	if res.ID == "" {
		t.Fatal("SaveBatch did not assign an id")
	}

	got, err := s.GetBatch(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if got.AverageLevel != 12.5 || got.MaxLevel != 15 || got.LevelCounts[12] != 9 {
		t.Errorf("GetBatch = %+v", got)
	}
	if got.MedianAttemptsToTarget.Reachable() {
		t.Errorf("unreachable attempts came back as %v", got.MedianAttemptsToTarget)
	}

	res.AverageLevel = 13
	if err := s.SaveBatch(ctx, res); err != nil {
		t.Fatalf("second SaveBatch failed: %v", err)
	}
	list, err := s.ListBatches(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].AverageLevel != 13 || list[0].Iterations != 10 {
		t.Errorf("ListBatches after update = %+v", list)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetBatch(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBatch err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetProgression(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProgression err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetAnalysis(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAnalysis err = %v, want ErrNotFound", err)
	}
}

func TestListBatchesLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := range 5 {
		if err := s.SaveBatch(ctx, &batch.Result{ID: "b" + strconv.Itoa(i), TargetLevel: i}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.ListBatches(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d batches, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Errorf("batches not newest first: %+v", list)
		}
	}
}

func TestProgressionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res := &progression.Result{
		ID:             "run-1",
		Strategy:       progression.DamageFirst,
		TargetLevel:    30,
		Success:        true,
		AttemptsNeeded: 7,
		BestLevelEver:  31,
		FinalLevels:    map[string]int{sg.BaseAttack: 4},
		Upgrades:       []progression.UpgradeRecord{{AfterSession: 1, StatID: sg.BaseAttack, FromLevel: 0, ToLevel: 1, Cost: 10}},
	}
	if err := s.SaveProgression(ctx, res); err != nil {
		t.Fatalf("SaveProgression failed: %v", err)
	}
	got, err := s.GetProgression(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetProgression failed: %v", err)
	}
	if got.Strategy != progression.DamageFirst || !got.Success || got.FinalLevels[sg.BaseAttack] != 4 || len(got.Upgrades) != 1 {
		t.Errorf("GetProgression = %+v", got)
	}

	list, err := s.ListProgressions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Strategy != "damage_first" || !list[0].Success || list[0].Attempts != 7 {
		t.Errorf("ListProgressions = %+v", list)
	}
}

func evaluated(id string, level float64, alloc map[string]float64) *pattern.AllocationPattern {
	p := pattern.NewNamedPattern(id, alloc)
	p.Result = &pattern.Result{AverageMaxLevel: level, SuccessRate: 0.25}
	return p
}

func singlesRepo(levels map[string]float64) *pattern.Repository {
	repo := pattern.NewRepository()
	for id, lvl := range levels {
		repo.Add(evaluated("single_"+id, lvl, map[string]float64{id: 1}))
	}
	return repo
}

func TestNewAnalysisRecord(t *testing.T) {
	repo := singlesRepo(map[string]float64{
		sg.BaseAttack: 20, sg.CritChance: 15, sg.CritDamage: 10,
		sg.MultiHit: 9, sg.GoldFlatPerm: 8, sg.TimeExtend: 4, sg.CrystalFlat: 2,
	})
	repo.Add(evaluated("duo", 25, map[string]float64{sg.BaseAttack: 0.5, sg.CritChance: 0.5}))
	q := &pattern.QualityResult{Grade: pattern.GradeB, DominanceRatio: 1.2, DiversityScore: 0.6}

	rec := NewAnalysisRecord(q, repo)
	wantTop := []string{sg.BaseAttack, sg.CritChance, sg.CritDamage, sg.MultiHit, sg.GoldFlatPerm}
	wantBottom := []string{sg.CrystalFlat, sg.TimeExtend, sg.GoldFlatPerm, sg.MultiHit, sg.CritDamage}
	if !equal(rec.TopStats, wantTop) {
		t.Errorf("TopStats = %v, want %v", rec.TopStats, wantTop)
	}
	if !equal(rec.BottomStats, wantBottom) {
		t.Errorf("BottomStats = %v, want %v", rec.BottomStats, wantBottom)
	}
	if rec.Grade != "B" || rec.BestPatternID != "duo" || rec.BestPatternLevel != 25 {
		t.Errorf("record = %+v", rec)
	}
}

func TestSaveAnalysisAndPatterns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	repo := singlesRepo(map[string]float64{sg.BaseAttack: 20, sg.CritChance: 10})
	rec := NewAnalysisRecord(&pattern.QualityResult{Grade: pattern.GradeF, DominanceRatio: math.MaxFloat64}, repo)
	rec.FocusStats = []string{sg.BaseAttack}
	if err := s.SaveAnalysis(ctx, rec, repo); err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}

	got, err := s.GetAnalysis(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Grade != "F" || got.Dominance != math.MaxFloat64 || !equal(got.TopStats, []string{sg.BaseAttack, sg.CritChance}) {
		t.Errorf("GetAnalysis = %+v", got)
	}
	if !equal(got.FocusStats, []string{sg.BaseAttack}) {
		t.Errorf("FocusStats = %v", got.FocusStats)
	}

	loaded, err := s.Patterns(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("loaded %d patterns, want 2", loaded.Len())
	}
	if top := loaded.TopByLevel(1)[0]; top.ID != "single_"+sg.BaseAttack || top.Allocation[sg.BaseAttack] != 1 {
		t.Errorf("top pattern = %+v", top)
	}

	if err := s.SaveAnalysis(ctx, rec, repo); err == nil {
		t.Error("saving the same analysis twice should fail")
	}
}

func TestHistoricalRecommendations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	hints, err := s.HistoricalRecommendations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !hints.Empty() {
		t.Errorf("hints without history = %+v", hints)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []struct {
		top, bottom []string
	}{
		{[]string{"a", "b"}, []string{"z"}},
		{[]string{"a", "c"}, []string{"y"}},
		{[]string{"d", "c"}, []string{"y"}},
		{[]string{"d", "b"}, []string{"x"}},
	}
	for i, r := range records {
		rec := &AnalysisRecord{
			ID:          "an" + strconv.Itoa(i),
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
			Grade:       "C",
			TopStats:    r.top,
			BottomStats: r.bottom,
		}
		if err := s.SaveAnalysis(ctx, rec, nil); err != nil {
			t.Fatal(err)
		}
	}

	hints, err = s.HistoricalRecommendations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// a and d tie for first place; d is more recent. b and c tie for second;
	// b is more recent.
	want := pattern.Hints{Top1: "d", Top2: "b", Bottom1: "y"}
	if hints != want {
		t.Errorf("hints = %+v, want %+v", hints, want)
	}
}

func TestHistoryWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range HistoryWindow + 5 {
		top := "recent"
		if i < 5 {
			top = "old"
		}
		rec := &AnalysisRecord{ID: "an" + strconv.Itoa(i), CreatedAt: base.Add(time.Duration(i) * time.Minute), TopStats: []string{top}}
		if err := s.SaveAnalysis(ctx, rec, nil); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.ListAnalyses(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != HistoryWindow+5 {
		t.Fatalf("ListAnalyses returned %d", len(list))
	}
	hints, err := s.HistoricalRecommendations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if hints.Top1 != "recent" {
		t.Errorf("Top1 = %q, want recent", hints.Top1)
	}
}

func TestQueryBuilder(t *testing.T) {
	query := "SELECT payload FROM batch_runs WHERE id = ? AND target_level = ?"
	if got := NewQueryBuilder(NewDialect(DialectSQLite)).Build(query); got != query {
		t.Errorf("sqlite Build = %q", got)
	}
	want := "SELECT payload FROM batch_runs WHERE id = $1 AND target_level = $2"
	if got := NewQueryBuilder(NewDialect(DialectPostgres)).Build(query); got != want {
		t.Errorf("postgres Build = %q, want %q", got, want)
	}
}

func TestDialectDuplicateKey(t *testing.T) {
	tests := []struct {
		dialect Dialect
		err     error
		want    bool
	}{
		{&SQLiteDialect{}, errors.New("UNIQUE constraint failed: analyses.id"), true},
		{&SQLiteDialect{}, errors.New("no such table"), false},
		{&PostgresDialect{}, errors.New(`pq: duplicate key value violates unique constraint "analyses_pkey"`), true},
		{&PostgresDialect{}, nil, false},
	}
	for _, tt := range tests {
		if got := tt.dialect.IsDuplicateKeyError(tt.err); got != tt.want {
			t.Errorf("%s IsDuplicateKeyError(%v) = %v", tt.dialect.DriverName(), tt.err, got)
		}
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := DefaultPostgresConfig()
	cfg.User, cfg.Password, cfg.Database = "sim", "secret", "simdb"
	want := "host=localhost port=5432 user=sim password=secret dbname=simdb sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
