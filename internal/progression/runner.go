// Package progression plays many sessions in a row, spending the crystals
// earned after each one on permanent upgrades.
package progression

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deskwarrior/simulator/internal/batch"
	"github.com/deskwarrior/simulator/internal/player"
	"github.com/deskwarrior/simulator/internal/rng"
	"github.com/deskwarrior/simulator/internal/session"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
	"github.com/deskwarrior/simulator/internal/upgrade"
)

const (
	// DefaultMaxSessions caps a run that never reaches its target.
	DefaultMaxSessions = 1000
	// DefaultEvalIterations is the batch size SimulationBased uses per candidate.
	DefaultEvalIterations = 8

	maxPurchasesPerPass = 10000
)

var (
	ErrInvalidTarget      = errors.New("target level must be positive")
	ErrInvalidMaxSessions = errors.New("max sessions must not be negative")
	ErrInvalidDuration    = errors.New("duration must be positive")
)

// UpgradeRecord is one permanent upgrade bought between sessions.
type UpgradeRecord struct {
	AfterSession int    `json:"after_session"`
	StatID       string `json:"stat_id"`
	FromLevel    int    `json:"from_level"`
	ToLevel      int    `json:"to_level"`
	Cost         int64  `json:"cost"`
}

// SessionRecord summarizes one session of a run.
type SessionRecord struct {
	Number          int     `json:"number"`
	MaxLevel        int     `json:"max_level"`
	CrystalsEarned  int64   `json:"crystals_earned"`
	CrystalsBefore  int64   `json:"crystals_before"`
	CrystalsAfter   int64   `json:"crystals_after"`
	DurationSeconds float64 `json:"duration_seconds"`
	CumulativeTime  float64 `json:"cumulative_time"`
}

// Result is the outcome of a progression run.
type Result struct {
	ID                   string                     `json:"id"`
	Strategy             Strategy                   `json:"strategy"`
	TargetLevel          int                        `json:"target_level"`
	Success              bool                       `json:"success"`
	Cancelled            bool                       `json:"cancelled"`
	AttemptsNeeded       int                        `json:"attempts_needed"`
	FinalLevels          map[string]int             `json:"final_levels"`
	TotalCrystalsEarned  int64                      `json:"total_crystals_earned"`
	TotalCrystalsSpent   int64                      `json:"total_crystals_spent"`
	CrystalBalance       int64                      `json:"crystal_balance"`
	FinalMaxLevel        int                        `json:"final_max_level"`
	BestLevelEver        int                        `json:"best_level_ever"`
	TotalGameTimeSeconds float64                    `json:"total_game_time_seconds"`
	Sessions             []SessionRecord            `json:"sessions"`
	Upgrades             []UpgradeRecord            `json:"upgrades"`
	Lifetime             *player.LifetimeStatistics `json:"lifetime"`

	// FinalStats is the level set at the end of the run.
	FinalStats *player.PermanentStats `json:"-"`
}

// Request describes one progression run.
type Request struct {
	Initial     *player.PermanentStats
	Profile     session.InputProfile
	TargetLevel int
	MaxSessions int
	Strategy    Strategy
	Seed        uint64

	// OnSession is called after every session with the session number and
	// the session cap (0 for duration runs).
	OnSession func(rec SessionRecord, limit int)
}

// Runner drives sequential sessions. A Runner is safe for concurrent use;
// each run owns its own stats.
type Runner struct {
	Sim            *session.Simulator
	Calc           *upgrade.Calculator
	EvalIterations int
	EvalWorkers    int
}

// NewRunner creates a runner pricing upgrades against the simulator's
// permanent table.
func NewRunner(sim *session.Simulator) *Runner {
	return &Runner{Sim: sim, Calc: upgrade.New(sim.PermanentTable())}
}

var defaultSim = session.NewDefault()

func (r *Runner) sim() *session.Simulator {
	if r.Sim != nil {
		return r.Sim
	}
	return defaultSim
}

func (r *Runner) calc() *upgrade.Calculator {
	if r.Calc != nil {
		return r.Calc
	}
	return upgrade.New(r.sim().PermanentTable())
}

// run holds the mutable state of one progression run.
type run struct {
	r        *Runner
	req      Request
	stats    *player.PermanentStats
	crystals int64
	res      *Result
}

func (r *Runner) newRun(req Request) *run {
	stats := req.Initial
	if stats == nil {
		stats = r.sim().NewStats()
	}
	stats = stats.Clone()
	return &run{
		r:     r,
		req:   req,
		stats: stats,
		res: &Result{
			ID:          uuid.NewString(),
			Strategy:    req.Strategy,
			TargetLevel: req.TargetLevel,
			Lifetime:    player.NewLifetimeStatistics(),
			FinalStats:  stats,
		},
	}
}

// Run plays sessions until one reaches req.TargetLevel or req.MaxSessions
// sessions have been played. Cancelling ctx stops between sessions and
// returns the partial result.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if req.TargetLevel <= 0 {
		return nil, ErrInvalidTarget
	}
	if req.MaxSessions < 0 {
		return nil, ErrInvalidMaxSessions
	}
	limit := req.MaxSessions
	if limit == 0 {
		limit = DefaultMaxSessions
	}

	st := r.newRun(req)
	for n := 1; n <= limit; n++ {
		if ctx.Err() != nil {
			st.res.Cancelled = true
			break
		}
		sr := st.play(n, limit)
		if sr.MaxLevel >= req.TargetLevel {
			st.res.Success = true
			st.res.FinalMaxLevel = sr.MaxLevel
			break
		}
		st.spend(ctx, n)
	}
	if !st.res.Success {
		st.res.FinalMaxLevel = st.res.BestLevelEver
	}
	return st.finish(), nil
}

// RunForDuration plays sessions until the summed session time reaches hours
// of game time. The run always counts as a success; FinalMaxLevel is the
// level of the last session.
func (r *Runner) RunForDuration(ctx context.Context, req Request, hours float64) (*Result, error) {
	if hours <= 0 {
		return nil, ErrInvalidDuration
	}
	if req.TargetLevel <= 0 {
		req.TargetLevel = 1
	}
	budget := hours * 3600

	st := r.newRun(req)
	last := 0
	for n := 1; st.res.TotalGameTimeSeconds < budget; n++ {
		if ctx.Err() != nil {
			st.res.Cancelled = true
			break
		}
		sr := st.play(n, 0)
		last = sr.MaxLevel
		st.spend(ctx, n)
	}
	st.res.Success = !st.res.Cancelled
	st.res.FinalMaxLevel = last
	return st.finish(), nil
}

// Compare runs one progression per strategy in parallel. Results come back
// in the order of strategies.
func (r *Runner) Compare(ctx context.Context, req Request, strategies []Strategy) ([]*Result, error) {
	results := make([]*Result, len(strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range strategies {
		g.Go(func() error {
			sreq := req
			sreq.Strategy = s
			res, err := r.Run(gctx, sreq)
			if err != nil {
				return fmt.Errorf("strategy %s: %w", s, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (st *run) play(n, limit int) session.SessionResult {
	sr := st.r.sim().Run(st.stats, st.req.Profile, rng.DeriveSeed(st.req.Seed, n))
	earned := int64(sr.TotalCrystals())

	res := st.res
	res.TotalGameTimeSeconds += sr.Duration
	res.TotalCrystalsEarned += earned
	rec := SessionRecord{
		Number:          n,
		MaxLevel:        sr.MaxLevel,
		CrystalsEarned:  earned,
		CrystalsBefore:  st.crystals,
		CrystalsAfter:   st.crystals + earned,
		DurationSeconds: sr.Duration,
		CumulativeTime:  res.TotalGameTimeSeconds,
	}
	res.Sessions = append(res.Sessions, rec)
	st.crystals += earned
	res.BestLevelEver = max(res.BestLevelEver, sr.MaxLevel)

	lt := res.Lifetime
	lt.RecordSession(sr.Duration)
	lt.RecordKills(sr.MonstersKilled, sr.BossesKilled)
	lt.RecordStageReached(sr.MaxLevel)
	lt.RecordGoldEarned(sr.TotalGold)
	lt.RecordDamageDealt(sr.TotalDamage, int64(sr.TotalInputs))
	lt.RecordCrystals(int64(sr.CrystalsFromBosses), int64(sr.CrystalsFromStages), int64(sr.CrystalsFromGoldConvert))

	if st.req.OnSession != nil {
		st.req.OnSession(rec, limit)
	}
	return sr
}

// spend runs the strategy's spending pass after session n.
func (st *run) spend(ctx context.Context, n int) {
	pick := pickerFor(st.req.Strategy)
	if pick == nil {
		return
	}
	p := &pass{
		ctx:       ctx,
		stats:     st.stats,
		calc:      st.r.calc(),
		available: st.crystals,
		session:   n,
		bought:    make(map[string]int),
	}
	if st.req.Strategy == SimulationBased {
		p.evaluate = st.evaluator(n)
	}

	for i := 0; i < maxPurchasesPerPass && p.available > 0; i++ {
		id, ok := pick(p)
		if !ok {
			break
		}
		from := st.stats.Level(id)
		cost := p.calc.UpgradeCost(id, from)
		if cost == sg.Blocked || cost > p.available {
			break
		}
		p.available -= cost
		p.bought[id]++
		st.stats.SetLevel(id, from+1)

		st.res.TotalCrystalsSpent += cost
		st.res.Lifetime.RecordUpgrade(cost)
		st.res.Upgrades = append(st.res.Upgrades, UpgradeRecord{
			AfterSession: n,
			StatID:       id,
			FromLevel:    from,
			ToLevel:      from + 1,
			Cost:         cost,
		})
	}
	st.crystals = p.available
}

// evaluator scores candidates by the average level of a small batch. Every
// candidate in a pass shares the same seeds.
func (st *run) evaluator(n int) func(context.Context, *player.PermanentStats) float64 {
	iters := st.r.EvalIterations
	if iters <= 0 {
		iters = DefaultEvalIterations
	}
	workers := st.r.EvalWorkers
	if workers <= 0 {
		workers = 1
	}
	runner := batch.NewRunner(st.r.sim(), workers)
	seed := rng.DeriveSeed(st.req.Seed^0x9e3779b97f4a7c15, n)
	return func(ctx context.Context, candidate *player.PermanentStats) float64 {
		res, err := runner.Run(ctx, batch.Request{
			Stats:       candidate,
			Profile:     st.req.Profile,
			Iterations:  iters,
			TargetLevel: st.req.TargetLevel,
			MasterSeed:  seed,
		})
		if err != nil {
			return 0
		}
		return res.AverageLevel
	}
}

func (st *run) finish() *Result {
	st.res.AttemptsNeeded = len(st.res.Sessions)
	st.res.CrystalBalance = st.crystals
	st.res.FinalLevels = st.stats.Levels()
	return st.res
}
