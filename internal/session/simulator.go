// Package session simulates one timed play session against the production
// formulas: inputs are generated tick by tick, monsters are fought stage by
// stage, and the session ends when the clock runs out.
package session

import (
	"math"

	"github.com/deskwarrior/simulator/internal/formula"
	"github.com/deskwarrior/simulator/internal/player"
	"github.com/deskwarrior/simulator/internal/rng"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

const (
	// DefaultTickSeconds is the virtual time step of the simulation loop.
	DefaultTickSeconds = 0.1
	minCPS             = 0.1
)

// Options configures a Simulator. Tables and drops are shared read-only
// between every run of the simulator.
type Options struct {
	Permanent           *sg.Table
	InGame              *sg.Table
	Drops               BossDropConfig
	TickSeconds         float64
	UpgradeCostInterval int
}

// Simulator runs single sessions. It holds no per-run state and is safe for
// concurrent use.
type Simulator struct {
	permanent    *sg.Table
	inGame       *sg.Table
	drops        BossDropConfig
	tick         float64
	costInterval int
}

// New creates a simulator, filling unset options with defaults.
func New(opts Options) *Simulator {
	s := &Simulator{
		permanent:    opts.Permanent,
		inGame:       opts.InGame,
		drops:        opts.Drops,
		tick:         opts.TickSeconds,
		costInterval: opts.UpgradeCostInterval,
	}
	if s.permanent == nil {
		s.permanent = sg.DefaultPermanentTable()
	}
	if s.inGame == nil {
		s.inGame = sg.DefaultInGameTable()
	}
	if s.tick <= 0 {
		s.tick = DefaultTickSeconds
	}
	if s.costInterval <= 0 {
		s.costInterval = formula.DefaultUpgradeCostInterval
	}
	return s
}

// NewDefault creates a simulator with the shipped tables and drop config.
func NewDefault() *Simulator {
	return New(Options{Drops: DefaultBossDropConfig()})
}

// PermanentTable returns the permanent stat table shared by every run.
func (s *Simulator) PermanentTable() *sg.Table { return s.permanent }

// InGameTable returns the in-game stat table.
func (s *Simulator) InGameTable() *sg.Table { return s.inGame }

// Drops returns the boss drop configuration.
func (s *Simulator) Drops() BossDropConfig { return s.drops }

// NewStats creates empty permanent stats bound to the simulator's table.
func (s *Simulator) NewStats() *player.PermanentStats {
	return player.NewPermanentStats(s.permanent)
}

// EventKind identifies a notable moment inside a session.
type EventKind string

const (
	EventKill     EventKind = "kill"
	EventBossKill EventKind = "boss_kill"
	EventDrop     EventKind = "crystal_drop"
	EventUpgrade  EventKind = "upgrade"
	EventEnd      EventKind = "session_end"
)

// Event is emitted by RunWithEvents for presentation layers.
type Event struct {
	Time   float64   `json:"time"`
	Kind   EventKind `json:"kind"`
	Stage  int       `json:"stage"`
	Stat   string    `json:"stat,omitempty"`
	Amount int64     `json:"amount"`
	Gold   int64     `json:"gold"`
}

// Run plays one session with stats and profile, seeded by seed.
func (s *Simulator) Run(stats *player.PermanentStats, profile InputProfile, seed uint64) SessionResult {
	return s.RunWithEvents(stats, profile, seed, nil)
}

// RunWithEvents is Run with a callback for kills, drops and upgrades. emit may
// be nil.
func (s *Simulator) RunWithEvents(stats *player.PermanentStats, profile InputProfile, seed uint64, emit func(Event)) SessionResult {
	if stats == nil {
		stats = s.NewStats()
	}
	st := newState(s, stats, profile, rng.New(seed), emit)
	st.result.Seed = seed
	st.loop()
	return st.finish()
}

// state is everything one session mutates.
type state struct {
	sim     *Simulator
	profile InputProfile
	src     rng.Source
	emit    func(Event)
	tracker *CrystalTracker

	limit       float64
	comboWindow float64
	maxStack    int
	comboRate   float64
	critChance  float64
	critMult    float64
	multiHit    float64
	baseAttack  float64
	attackPct   float64
	comboPct    float64
	goldFlat    float64
	goldMulti   float64
	crystalFlat int
	dropBonus   float64
	discount    float64

	elapsed   float64
	pending   float64
	lastInput float64
	hasInput  bool
	stack     int
	stage     int
	gold      int64
	inGame    player.InGameStats
	monster   *Monster
	result    SessionResult
}

func newState(sim *Simulator, stats *player.PermanentStats, profile InputProfile, src rng.Source, emit func(Event)) *state {
	st := &state{
		sim:         sim,
		profile:     profile,
		src:         src,
		emit:        emit,
		tracker:     NewCrystalTracker(sim.drops, src),
		limit:       formula.EffectiveTimeLimit(stats.TimeExtend()),
		comboWindow: formula.ComboDuration + stats.ComboWindowBonus(),
		maxStack:    profile.Combo.MaxStack(),
		comboRate:   profile.Combo.SuccessRate(),
		critChance:  formula.BaseCritChance + stats.CritChanceBonus(),
		critMult:    formula.BaseCritMultiplier + stats.CritDamageBonus(),
		multiHit:    stats.MultiHitChance(),
		baseAttack:  stats.BaseAttack(),
		attackPct:   stats.AttackPercent(),
		comboPct:    stats.ComboDamagePercent(),
		goldFlat:    stats.GoldFlat(),
		goldMulti:   stats.GoldMultiPercent() / 100,
		crystalFlat: stats.CrystalFlat(),
		dropBonus:   stats.CrystalDropBonus(),
		discount:    stats.UpgradeDiscount(),
		stage:       1 + stats.StartLevel(),
		gold:        stats.StartGold(),
		inGame: player.InGameStats{
			KeyboardPower: stats.StartKeyboardPower(),
			MousePower:    stats.StartMousePower(),
		},
	}
	st.monster = NewMonster(st.stage)
	return st
}

func (st *state) loop() {
	for st.elapsed < st.limit {
		step := math.Min(st.sim.tick, st.limit-st.elapsed)

		cps := st.profile.AverageCPS * (1 + rng.Normal(st.src)*st.profile.CPSVariance)
		cps = math.Max(cps, minCPS)
		st.pending += cps * step
		n := int(st.pending)
		st.pending -= float64(n)

		for k := 1; k <= n; k++ {
			st.input(st.elapsed + step*float64(k)/float64(n))
		}

		st.elapsed += step
		if st.profile.AutoUpgrade {
			st.autoUpgrade()
		}
	}
}

func (st *state) input(at float64) {
	switch {
	case st.maxStack == 0 || !st.hasInput || at-st.lastInput > st.comboWindow:
		st.stack = 0
	case rng.Chance(st.src, st.comboRate):
		st.stack = min(st.stack+1, st.maxStack)
	default:
		st.stack = 0
	}
	st.lastInput = at
	st.hasInput = true

	power := st.inGame.KeyboardPower
	id := sg.KeyboardPower
	if st.profile.MouseRatio > 0 && rng.Chance(st.src, st.profile.MouseRatio) {
		power = st.inGame.MousePower
		id = sg.MousePower
		st.result.MouseInputs++
	} else {
		st.result.KeyboardInputs++
	}
	st.result.TotalInputs++

	critMult := 1.0
	if rng.Chance(st.src, st.critChance) {
		critMult = st.critMult
		st.result.CriticalHits++
	}
	multi := 1.0
	if st.multiHit > 0 && rng.Chance(st.src, st.multiHit) {
		multi = 2.0
	}

	basePower := 1 + st.sim.inGame.Effect(id, power)
	combo := 1.0
	if st.stack > 0 {
		combo = formula.ComboMultiplier(st.comboPct, st.stack)
	}
	dmg := formula.Damage(basePower, st.baseAttack, st.attackPct, critMult, multi, combo)
	st.result.TotalDamage = addSat(st.result.TotalDamage, st.monster.TakeDamage(dmg))

	if !st.monster.Alive() {
		st.kill(at)
	}
}

func (st *state) kill(at float64) {
	m := st.monster
	reward := formula.GoldEarned(float64(m.GoldReward), 0, st.goldFlat, 0, st.goldMulti)
	st.gold = addSat(st.gold, reward)
	st.result.TotalGold = addSat(st.result.TotalGold, reward)
	st.result.MonstersKilled++

	kind := EventKill
	if m.IsBoss {
		kind = EventBossKill
		st.result.BossesKilled++
	}
	st.notify(Event{Time: at, Kind: kind, Stage: m.Level, Amount: reward, Gold: st.gold})

	if m.IsBoss {
		drop := st.tracker.ProcessBossKill(m.Level, st.crystalFlat, st.dropBonus)
		if drop.Dropped {
			st.result.CrystalsFromBosses += drop.Amount
			st.notify(Event{Time: at, Kind: EventDrop, Stage: m.Level, Amount: int64(drop.Amount), Gold: st.gold})
		}
	}

	st.stage++
	st.monster = NewMonster(st.stage)
}

// autoUpgrade buys at most one level of each prioritized stat.
func (st *state) autoUpgrade() {
	mult := formula.StageCostMultiplier(st.stage, st.sim.costInterval)
	for _, id := range st.profile.UpgradePriority {
		level := st.inGame.Level(id)
		base := st.sim.inGame.DiscountedCost(id, level+1, st.discount)
		if base == sg.Blocked {
			continue
		}
		scaled := float64(base) * mult
		if scaled >= math.MaxInt64 {
			continue
		}
		cost := int64(scaled)
		if cost > st.gold {
			continue
		}
		if !st.inGame.Upgrade(id) {
			continue
		}
		st.gold -= cost
		st.result.InGameUpgrades++
		st.notify(Event{Time: st.elapsed, Kind: EventUpgrade, Stage: st.stage, Stat: id, Amount: cost, Gold: st.gold})
	}
}

func (st *state) finish() SessionResult {
	r := st.result
	r.MaxLevel = st.stage
	r.Duration = st.elapsed
	r.EndReason = EndTimeout
	if st.monster.IsBoss {
		r.EndReason = EndBoss
	}
	r.CrystalsFromStages = st.tracker.StageCompletionCrystals(r.MonstersKilled)
	r.CrystalsFromGoldConvert = st.tracker.ConvertGold(st.gold)
	r.FinalGold = st.gold
	st.notify(Event{Time: st.elapsed, Kind: EventEnd, Stage: st.stage, Amount: int64(r.TotalCrystals()), Gold: st.gold})
	return r
}

func (st *state) notify(e Event) {
	if st.emit != nil {
		st.emit(e)
	}
}

func addSat(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
