package store

import (
	"context"
	"testing"

	"github.com/deskwarrior/simulator/internal/batch"
	"github.com/deskwarrior/simulator/internal/pattern"
	"github.com/deskwarrior/simulator/internal/progression"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

func TestCopyTo(t *testing.T) {
	src := openTestStore(t)
	dst := openTestStore(t)
	ctx := context.Background()

	if err := src.SaveBatch(ctx, &batch.Result{ID: "b1", TargetLevel: 10, Completed: 3, AverageLevel: 7}); err != nil {
		t.Fatal(err)
	}
	if err := src.SaveProgression(ctx, &progression.Result{ID: "p1", Strategy: progression.Balanced, TargetLevel: 20, Success: true}); err != nil {
		t.Fatal(err)
	}
	repo := singlesRepo(map[string]float64{sg.BaseAttack: 20, sg.CritChance: 10})
	rec := NewAnalysisRecord(&pattern.QualityResult{Grade: pattern.GradeB}, repo)
	if err := src.SaveAnalysis(ctx, rec, repo); err != nil {
		t.Fatal(err)
	}

	dry, err := src.CopyTo(ctx, dst, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range dry {
		if r.Written != 0 {
			t.Errorf("dry run wrote %d rows to %s", r.Written, r.Table)
		}
	}
	if list, _ := dst.ListBatches(ctx, 0); len(list) != 0 {
		t.Fatalf("dry run copied %d batches", len(list))
	}

	results, err := src.CopyTo(ctx, dst, false)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{"batch_runs": 1, "progression_runs": 1, "analyses": 1, "patterns": 2}
	for _, r := range results {
		if r.Read != want[r.Table] || r.Written != want[r.Table] {
			t.Errorf("%s: read %d, wrote %d, want %d", r.Table, r.Read, r.Written, want[r.Table])
		}
	}

	srcBatches, _ := src.ListBatches(ctx, 0)
	dstBatches, err := dst.ListBatches(ctx, 0)
	if err != nil || len(dstBatches) != 1 {
		t.Fatalf("ListBatches = %v, %v", dstBatches, err)
	}
	if !dstBatches[0].CreatedAt.Equal(srcBatches[0].CreatedAt) {
		t.Errorf("created_at changed: %v != %v", dstBatches[0].CreatedAt, srcBatches[0].CreatedAt)
	}
	if b, err := dst.GetBatch(ctx, "b1"); err != nil || b.AverageLevel != 7 {
		t.Errorf("GetBatch = %+v, %v", b, err)
	}
	if p, err := dst.GetProgression(ctx, "p1"); err != nil || p.Strategy != progression.Balanced || !p.Success {
		t.Errorf("GetProgression = %+v, %v", p, err)
	}
	if pats, err := dst.Patterns(ctx, rec.ID); err != nil || pats.Len() != 2 {
		t.Errorf("Patterns = %v, %v", pats, err)
	}

	again, err := src.CopyTo(ctx, dst, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range again {
		if r.Written != 0 {
			t.Errorf("second copy wrote %d rows to %s", r.Written, r.Table)
		}
	}
}
