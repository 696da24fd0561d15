package pattern

import (
	"context"
	"fmt"
	"slices"

	"github.com/deskwarrior/simulator/internal/batch"
	"github.com/deskwarrior/simulator/internal/player"
	"github.com/deskwarrior/simulator/internal/rng"
	"github.com/deskwarrior/simulator/internal/session"
	"github.com/deskwarrior/simulator/internal/upgrade"
)

// Exploration phases reported through Progress.
const (
	PhaseGrid    = 1
	PhaseGenetic = 2
)

// Progress is one progress report of an exploration.
type Progress struct {
	Phase   int    `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// Request describes what to explore: a crystal budget spent on top of Base.
type Request struct {
	Base        *player.PermanentStats
	Profile     session.InputProfile
	Budget      int64
	TargetLevel int
	// Hints from earlier analyses steer the focus stats of a full exploration.
	Hints Hints
}

// Exploration is the outcome of an exploration.
type Exploration struct {
	Repository  *Repository
	Focus       FocusInfo
	Best        *AllocationPattern
	Simulations int
}

// Explorer turns patterns into stat levels and evaluates them with batches.
type Explorer struct {
	Runner *batch.Runner
	Calc   *upgrade.Calculator

	// StatIDs are the stats patterns may use. Empty means every stat of the
	// permanent table.
	StatIDs               []string
	SimulationsPerPattern int
	GridTopN              int
	FocusStatCount        int
	Granularity           int
	Generations           int
	PopulationSize        int
	Seed                  uint64

	OnProgress func(Progress)
}

// NewExplorer returns an explorer with the default sizes.
func NewExplorer(runner *batch.Runner, seed uint64) *Explorer {
	return &Explorer{
		Runner:                runner,
		Calc:                  upgrade.New(runner.Sim.PermanentTable()),
		SimulationsPerPattern: 50,
		GridTopN:              20,
		FocusStatCount:        6,
		Granularity:           10,
		Generations:           100,
		PopulationSize:        50,
		Seed:                  seed,
	}
}

func (e *Explorer) statIDs() []string {
	if len(e.StatIDs) > 0 {
		return e.StatIDs
	}
	return e.Calc.Table().IDs()
}

func (e *Explorer) progress(phase, cur, total int, format string, args ...any) {
	if e.OnProgress != nil {
		e.OnProgress(Progress{Phase: phase, Current: cur, Total: total, Message: fmt.Sprintf(format, args...)})
	}
}

// ApplyPattern spends budget·share on each stat of p, buying as many levels
// of it as that slice of the budget allows.
func (e *Explorer) ApplyPattern(base *player.PermanentStats, p *AllocationPattern, budget int64) *player.PermanentStats {
	stats := base.Clone()
	for _, id := range p.Keys() {
		share := p.Allocation[id]
		if share <= 0 {
			continue
		}
		level, _ := e.Calc.MaxLevelForBudget(id, int64(float64(budget)*share), stats.Level(id))
		stats.SetLevel(id, level)
	}
	return stats
}

// Evaluate plays a batch with the stats p buys and returns its summary.
// Every pattern is played with the same seeds.
func (e *Explorer) Evaluate(ctx context.Context, p *AllocationPattern, req Request) (*Result, error) {
	base := req.Base
	if base == nil {
		base = e.Runner.Sim.NewStats()
	}
	res, err := e.Runner.Run(ctx, batch.Request{
		Stats:       e.ApplyPattern(base, p, req.Budget),
		Profile:     req.Profile,
		Iterations:  e.SimulationsPerPattern,
		TargetLevel: req.TargetLevel,
		MasterSeed:  e.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", p.ID, err)
	}
	if res.Cancelled {
		return nil, ctx.Err()
	}
	return ResultFromBatch(res), nil
}

func (e *Explorer) evaluateAll(ctx context.Context, ex *Exploration, ps []*AllocationPattern, req Request, label string, every int) error {
	for i, p := range ps {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := e.Evaluate(ctx, p, req)
		if err != nil {
			return err
		}
		p.Result = res
		ex.Repository.Add(p)
		ex.Simulations += e.SimulationsPerPattern
		if every <= 1 || (i+1)%every == 0 || i+1 == len(ps) {
			e.progress(PhaseGrid, i+1, len(ps), "%s: %d/%d", label, i+1, len(ps))
		}
	}
	return nil
}

// ExploreQuick evaluates the single-stat patterns only.
func (e *Explorer) ExploreQuick(ctx context.Context, req Request) (*Exploration, error) {
	ex := &Exploration{Repository: NewRepository()}
	grid := NewGridSearch(e.statIDs(), e.Granularity)
	err := e.evaluateAll(ctx, ex, grid.Singles(), req, "Single", 1)
	ex.Best = best(ex.Repository)
	return ex, err
}

// ExploreFull evaluates the single-stat patterns, picks focus stats from
// their ranking, evaluates the focus grid and pairs plus the category
// balanced grid, then refines the best patterns with a genetic search. The
// winner of the genetic search is stored as "ga_optimized".
func (e *Explorer) ExploreFull(ctx context.Context, req Request) (*Exploration, error) {
	ex := &Exploration{Repository: NewRepository()}
	ids := e.statIDs()
	grid := NewGridSearch(ids, e.Granularity)
	src := rng.New(rng.DeriveSeed(e.Seed, 1))

	e.progress(PhaseGrid, 0, 0, "Evaluating single-stat patterns")
	singles := grid.Singles()
	if err := e.evaluateAll(ctx, ex, singles, req, "Single", 1); err != nil {
		ex.Best = best(ex.Repository)
		return ex, err
	}

	var focus []string
	if req.Hints.Empty() {
		focus = FocusByPerformance(singles, src)
		ranked := rankSingles(singles)
		for _, id := range focus {
			ex.Focus.Selections = append(ex.Focus.Selections, FocusSelection{
				StatID:      id,
				Source:      performanceSource(id, ranked),
				CurrentRank: slices.Index(ranked, id) + 1,
			})
		}
		ex.Focus.TotalStats = len(ranked)
	} else {
		e.progress(PhaseGrid, 0, 0, "Using historical data: top1=%s, top2=%s, btm=%s",
			req.Hints.Top1, req.Hints.Top2, req.Hints.Bottom1)
		focus, ex.Focus = FocusWithHistory(singles, req.Hints, e.FocusStatCount, src)
	}
	e.progress(PhaseGrid, 0, 0, "Focus stats: %s", ex.Focus)

	var gridPatterns []*AllocationPattern
	gridPatterns = append(gridPatterns, grid.Partitions(focus)...)
	gridPatterns = append(gridPatterns, grid.Pairs(focus)...)
	gridPatterns = append(gridPatterns, grid.CategoryBalanced()...)
	if err := e.evaluateAll(ctx, ex, gridPatterns, req, "Grid", 10); err != nil {
		ex.Best = best(ex.Repository)
		return ex, err
	}

	seeds := ex.Repository.TopByLevel(e.GridTopN)
	if len(seeds) == 0 || e.Generations <= 0 {
		ex.Best = best(ex.Repository)
		return ex, nil
	}
	ga := NewGenetic(ids, rng.DeriveSeed(e.Seed, 2))
	ga.Generations = e.Generations
	if e.PopulationSize > 0 {
		ga.PopulationSize = e.PopulationSize
	}
	e.progress(PhaseGenetic, 0, ga.Generations, "Genetic optimization")
	fitness := func(ctx context.Context, p *AllocationPattern) (float64, error) {
		res, err := e.Evaluate(ctx, p, req)
		if err != nil {
			return 0, err
		}
		ex.Simulations += e.SimulationsPerPattern
		return res.AverageMaxLevel, nil
	}
	winner, err := ga.Evolve(ctx, seeds, fitness, func(gen, total int) {
		e.progress(PhaseGenetic, gen, total, "GA Generation: %d/%d", gen, total)
	})
	if err != nil {
		ex.Best = best(ex.Repository)
		return ex, err
	}
	winner.ID = "ga_optimized"
	if winner.Result, err = e.Evaluate(ctx, winner, req); err != nil {
		ex.Best = best(ex.Repository)
		return ex, err
	}
	ex.Simulations += e.SimulationsPerPattern
	ex.Repository.Add(winner)
	ex.Best = best(ex.Repository)
	return ex, nil
}

func best(repo *Repository) *AllocationPattern {
	top := repo.TopByLevel(1)
	if len(top) == 0 {
		return nil
	}
	return top[0]
}

func performanceSource(id string, ranked []string) string {
	rank := slices.Index(ranked, id) + 1
	switch {
	case rank <= 3:
		return SourceCurrentTop
	case rank == len(ranked):
		return SourceCurrentBottom
	}
	return SourceRandom
}

// StatsByLevel returns the single-stat patterns' stat ids ordered best
// first; used by history bookkeeping.
func StatsByLevel(repo *Repository) []string {
	var singles []*AllocationPattern
	for _, p := range repo.Evaluated() {
		if len(p.Allocation) == 1 {
			singles = append(singles, p)
		}
	}
	ids := rankSingles(singles)
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
