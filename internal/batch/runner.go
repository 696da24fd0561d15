// Package batch runs many independent sessions under one configuration and
// aggregates their outcomes.
package batch

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/deskwarrior/simulator/internal/logger"
	"github.com/deskwarrior/simulator/internal/player"
	"github.com/deskwarrior/simulator/internal/rng"
	"github.com/deskwarrior/simulator/internal/session"
)

const tracerName = "github.com/deskwarrior/simulator/internal/batch"

var (
	// ErrInvalidIterations is returned for a negative iteration count.
	ErrInvalidIterations = errors.New("iterations must not be negative")
	// ErrInvalidTarget is returned for a target level of zero or less.
	ErrInvalidTarget = errors.New("target level must be positive")
)

// Request describes one batch.
type Request struct {
	Stats       *player.PermanentStats
	Profile     session.InputProfile
	Iterations  int
	TargetLevel int
	MasterSeed  uint64

	// AttemptSamples, when set, are session counts observed across repeated
	// progression runs; their median replaces the geometric estimate.
	AttemptSamples []float64

	// OnProgress is called after every finished session. It may be called
	// from several goroutines at once.
	OnProgress func(completed, total int)
}

// Runner executes batches on a bounded worker pool.
type Runner struct {
	Sim     *session.Simulator
	Workers int
	Tracer  trace.Tracer
}

// NewRunner creates a runner. workers <= 0 means one worker per CPU.
func NewRunner(sim *session.Simulator, workers int) *Runner {
	return &Runner{Sim: sim, Workers: workers}
}

func (r *Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.NumCPU()
}

func (r *Runner) tracer() trace.Tracer {
	if r.Tracer != nil {
		return r.Tracer
	}
	return otel.Tracer(tracerName)
}

// Run simulates req.Iterations sessions. Session i is seeded with
// rng.DeriveSeed(req.MasterSeed, i), so the result does not depend on the
// worker count. Cancelling ctx stops scheduling new sessions; the sessions
// already finished are aggregated and returned with Cancelled set.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Iterations < 0 {
		return nil, ErrInvalidIterations
	}
	if req.TargetLevel <= 0 {
		return nil, ErrInvalidTarget
	}

	ctx, span := r.tracer().Start(ctx, "batch.Run", trace.WithAttributes(
		attribute.Int("batch.iterations", req.Iterations),
		attribute.Int("batch.target_level", req.TargetLevel),
		attribute.Int("batch.workers", r.workers()),
	))
	defer span.End()

	sim := r.Sim
	if sim == nil {
		sim = session.NewDefault()
	}
	stats := req.Stats
	if stats == nil {
		stats = sim.NewStats()
	}

	n := req.Iterations
	results := make([]session.SessionResult, n)
	done := make([]bool, n)
	var completed atomic.Int64

	var g errgroup.Group
	g.SetLimit(r.workers())
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = sim.Run(stats.Clone(), req.Profile, rng.DeriveSeed(req.MasterSeed, i))
			done[i] = true
			c := completed.Add(1)
			if req.OnProgress != nil {
				req.OnProgress(int(c), n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	finished := results
	if int(completed.Load()) < n {
		finished = make([]session.SessionResult, 0, completed.Load())
		for i, ok := range done {
			if ok {
				finished = append(finished, results[i])
			}
		}
	}

	res := Aggregate(finished, req.TargetLevel)
	res.ID = uuid.NewString()
	res.MasterSeed = req.MasterSeed
	res.Requested = n
	res.Cancelled = res.Completed < n
	if len(req.AttemptSamples) > 0 {
		res.MedianAttemptsToTarget = Attempts(Median(req.AttemptSamples))
	}

	span.SetAttributes(
		attribute.Int("batch.completed", res.Completed),
		attribute.Float64("batch.success_rate", res.SuccessRate),
		attribute.Bool("batch.cancelled", res.Cancelled),
	)
	logger.DebugContext(ctx, "Batch finished", "completed", res.Completed, "requested", n, "cancelled", res.Cancelled)
	return res, nil
}
