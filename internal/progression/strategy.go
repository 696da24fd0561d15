package progression

import (
	"context"
	"fmt"
	"strings"

	"github.com/deskwarrior/simulator/internal/player"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
	"github.com/deskwarrior/simulator/internal/upgrade"
)

// Strategy selects how crystals are spent between sessions.
type Strategy int

const (
	Greedy Strategy = iota
	DamageFirst
	SurvivalFirst
	CrystalFarm
	Balanced
	SimulationBased
	None
)

var strategyNames = []string{
	Greedy:          "greedy",
	DamageFirst:     "damage_first",
	SurvivalFirst:   "survival_first",
	CrystalFarm:     "crystal_farm",
	Balanced:        "balanced",
	SimulationBased: "simulation_based",
	None:            "none",
}

// Strategies returns every strategy in declaration order.
func Strategies() []Strategy {
	return []Strategy{Greedy, DamageFirst, SurvivalFirst, CrystalFarm, Balanced, SimulationBased, None}
}

func (s Strategy) String() string {
	if s >= 0 && int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy accepts names like "damage_first", "damage-first" or
// "DamageFirst".
func ParseStrategy(s string) (Strategy, error) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	for i, name := range strategyNames {
		if norm == strings.ReplaceAll(name, "_", "") {
			return Strategy(i), nil
		}
	}
	return Greedy, fmt.Errorf("unknown strategy %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// maxLevelsPerStat caps how far a priority strategy pushes one stat in a
// single spending pass.
const maxLevelsPerStat = 3

var (
	damageStats   = []string{sg.BaseAttack, sg.AttackPercent, sg.CritChance, sg.CritDamage, sg.MultiHit}
	survivalStats = []string{sg.TimeExtend, sg.StartLevel, sg.UpgradeDiscount}
	crystalStats  = []string{sg.CrystalFlat, sg.CrystalMulti, sg.GoldFlatPerm, sg.GoldMultiPerm}

	balancedGroups = [][]string{
		{sg.BaseAttack, sg.AttackPercent},
		{sg.CritChance, sg.CritDamage, sg.MultiHit},
		{sg.GoldFlatPerm, sg.GoldMultiPerm},
		{sg.TimeExtend},
	}
)

// PriorityStats returns the preferred stats of a priority strategy, or nil.
func (s Strategy) PriorityStats() []string {
	switch s {
	case DamageFirst:
		return damageStats
	case SurvivalFirst:
		return survivalStats
	case CrystalFarm:
		return crystalStats
	}
	return nil
}

// pass is the state of one spending pass after a session.
type pass struct {
	ctx       context.Context
	stats     *player.PermanentStats
	calc      *upgrade.Calculator
	available int64
	session   int
	bought    map[string]int

	// evaluate scores a candidate level set; used by SimulationBased only.
	evaluate func(ctx context.Context, candidate *player.PermanentStats) float64
}

// picker returns the next stat to buy, or false to end the pass.
type picker func(p *pass) (string, bool)

func pickerFor(s Strategy) picker {
	switch s {
	case Greedy:
		return greedyPick
	case DamageFirst, SurvivalFirst, CrystalFarm:
		return priorityPicker(s.PriorityStats())
	case Balanced:
		return balancedPick
	case SimulationBased:
		return simulationPick
	}
	return nil
}

func greedyPick(p *pass) (string, bool) {
	ch, ok := p.calc.BestUpgrade(p.stats, p.available)
	return ch.StatID, ok
}

func priorityPicker(ids []string) picker {
	return func(p *pass) (string, bool) {
		if id, ok := firstAffordable(p, ids); ok {
			return id, true
		}
		return greedyPick(p)
	}
}

func firstAffordable(p *pass, ids []string) (string, bool) {
	for _, id := range ids {
		if p.bought[id] >= maxLevelsPerStat {
			continue
		}
		if p.calc.CanUpgrade(id, p.stats.Level(id), p.available) {
			return id, true
		}
	}
	return "", false
}

// balancedPick favors one stat group per session, rotating through the groups.
func balancedPick(p *pass) (string, bool) {
	group := balancedGroups[p.session%len(balancedGroups)]
	if id, ok := firstAffordable(p, group); ok {
		return id, true
	}
	return greedyPick(p)
}

// simulationPick tries every affordable single-level upgrade with a small
// batch and keeps the one with the best average level. Ties fall back to
// cost efficiency, then id.
func simulationPick(p *pass) (string, bool) {
	if p.evaluate == nil {
		return greedyPick(p)
	}
	candidates := p.calc.Affordable(p.stats, p.available, nil)
	if len(candidates) == 0 {
		return "", false
	}

	best := candidates[0]
	bestScore := -1.0
	for _, ch := range candidates {
		if p.ctx.Err() != nil {
			break
		}
		trial := p.stats.Clone()
		trial.Upgrade(ch.StatID)
		score := p.evaluate(p.ctx, trial)
		if score > bestScore || (score == bestScore && ch.Efficiency > best.Efficiency) {
			best, bestScore = ch, score
		}
	}
	return best.StatID, true
}
