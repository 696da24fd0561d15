package batch

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/deskwarrior/simulator/internal/session"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

func levels(ls ...int) []session.SessionResult {
	out := make([]session.SessionResult, len(ls))
	for i, l := range ls {
		out[i] = session.SessionResult{MaxLevel: l}
	}
	return out
}

func TestAggregateSuccessRateExact(t *testing.T) {
	results := make([]session.SessionResult, 1000)
	for i := range results {
		results[i].MaxLevel = 20
		if i < 400 {
			results[i].MaxLevel = 55
		}
	}
	r := Aggregate(results, 50)
	if r.SuccessRate != 0.4 {
		t.Errorf("SuccessRate = %v, want 0.4", r.SuccessRate)
	}
	if r.Successes != 400 || r.Completed != 1000 {
		t.Errorf("Successes = %d, Completed = %d", r.Successes, r.Completed)
	}
}

func TestAggregateStatistics(t *testing.T) {
	r := Aggregate(levels(4, 1, 3, 2), 3)
	if r.MedianLevel != 2.5 {
		t.Errorf("MedianLevel = %v, want 2.5", r.MedianLevel)
	}
	if r.AverageLevel != 2.5 {
		t.Errorf("AverageLevel = %v, want 2.5", r.AverageLevel)
	}
	if r.MinLevel != 1 || r.MaxLevel != 4 {
		t.Errorf("Min/Max = %d/%d, want 1/4", r.MinLevel, r.MaxLevel)
	}
	if want := math.Sqrt(1.25); math.Abs(r.StdDev-want) > 1e-12 {
		t.Errorf("StdDev = %v, want %v", r.StdDev, want)
	}
	if r.LevelDistribution[3] != 0.25 {
		t.Errorf("LevelDistribution[3] = %v, want 0.25", r.LevelDistribution[3])
	}
	if r.SuccessRate != 0.5 {
		t.Errorf("SuccessRate = %v, want 0.5", r.SuccessRate)
	}

	odd := Aggregate(levels(7, 1, 3), 1)
	if odd.MedianLevel != 3 {
		t.Errorf("odd MedianLevel = %v, want 3", odd.MedianLevel)
	}
}

func TestEstimateAttempts(t *testing.T) {
	tests := []struct {
		p    float64
		want float64
	}{
		{1, 1},
		{0.5, 1},
		{0.1, 7},
		{0.01, 69},
	}
	for _, tt := range tests {
		if got := EstimateAttempts(tt.p); float64(got) != tt.want {
			t.Errorf("EstimateAttempts(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := EstimateAttempts(0); got.Reachable() {
		t.Errorf("EstimateAttempts(0) = %v, want +Inf", got)
	}
}

func TestAttemptsJSON(t *testing.T) {
	data, err := json.Marshal(Aggregate(levels(1, 2), 10))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Result
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.MedianAttemptsToTarget.Reachable() {
		t.Errorf("unreachable estimate decoded as %v", back.MedianAttemptsToTarget)
	}
}

func TestHistogram(t *testing.T) {
	r := Aggregate(levels(1, 3, 3, 12), 1)
	got := r.Histogram(5)
	want := []Bucket{
		{Low: 1, High: 5, Count: 3, Fraction: 0.75},
		{Low: 6, High: 10, Count: 0, Fraction: 0},
		{Low: 11, High: 15, Count: 1, Fraction: 0.25},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Histogram(5) = %+v, want %+v", got, want)
	}
	if h := Aggregate(nil, 1).Histogram(5); h != nil {
		t.Errorf("empty histogram = %+v", h)
	}
}

func TestRunInvalidInput(t *testing.T) {
	runner := NewRunner(session.NewDefault(), 2)
	ctx := context.Background()

	if _, err := runner.Run(ctx, Request{Iterations: -1, TargetLevel: 5}); !errors.Is(err, ErrInvalidIterations) {
		t.Errorf("negative iterations: err = %v", err)
	}
	if _, err := runner.Run(ctx, Request{Iterations: 10, TargetLevel: 0}); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("zero target: err = %v", err)
	}

	r, err := runner.Run(ctx, Request{Iterations: 0, TargetLevel: 5})
	if err != nil {
		t.Fatalf("zero iterations: %v", err)
	}
	if r.Completed != 0 || r.Cancelled {
		t.Errorf("zero iterations result = %+v", r)
	}
}

func TestRunIndependentOfWorkerCount(t *testing.T) {
	sim := session.NewDefault()
	stats := sim.NewStats()
	stats.SetLevel(sg.BaseAttack, 10)

	req := Request{
		Stats:       stats,
		Profile:     session.DefaultInputProfile(),
		Iterations:  40,
		TargetLevel: 10,
		MasterSeed:  1234,
	}

	one, err := NewRunner(sim, 1).Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	many, err := NewRunner(sim, 4).Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(one.Sessions, many.Sessions) {
		t.Error("sessions differ between 1 and 4 workers")
	}
	if one.AverageLevel != many.AverageLevel || one.SuccessRate != many.SuccessRate {
		t.Errorf("aggregates differ: %v/%v vs %v/%v", one.AverageLevel, one.SuccessRate, many.AverageLevel, many.SuccessRate)
	}
	if one.ID == many.ID {
		t.Error("batches should get distinct ids")
	}
	if stats.Level(sg.BaseAttack) != 10 {
		t.Error("batch mutated the caller's stats")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(session.NewDefault(), 1)

	r, err := runner.Run(ctx, Request{
		Profile:     session.DefaultInputProfile(),
		Iterations:  200,
		TargetLevel: 5,
		OnProgress: func(completed, total int) {
			if completed == 5 {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatalf("cancelled batch returned error: %v", err)
	}
	if !r.Cancelled {
		t.Error("Cancelled = false")
	}
	if r.Completed != 5 || len(r.Sessions) != 5 {
		t.Errorf("Completed = %d, sessions = %d, want 5", r.Completed, len(r.Sessions))
	}
	if r.Requested != 200 {
		t.Errorf("Requested = %d, want 200", r.Requested)
	}
}

func TestRunAttemptSamples(t *testing.T) {
	runner := NewRunner(session.NewDefault(), 2)
	r, err := runner.Run(context.Background(), Request{
		Profile:        session.DefaultInputProfile(),
		Iterations:     4,
		TargetLevel:    1000,
		AttemptSamples: []float64{11, 3, 9, 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.MedianAttemptsToTarget != 7 {
		t.Errorf("MedianAttemptsToTarget = %v, want 7", r.MedianAttemptsToTarget)
	}
}
