// Package player holds the simulated player's upgrade levels: permanent
// (crystal-bought, kept across sessions) and in-game (gold-bought, reset every
// session).
package player

import (
	"sort"

	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

// PermanentStats tracks permanent upgrade levels. Effects are read through a
// shared stat table the struct does not own; Clone keeps pointing at the same
// table.
type PermanentStats struct {
	levels map[string]int
	table  *sg.Table
}

// NewPermanentStats creates an empty level set bound to table.
func NewPermanentStats(table *sg.Table) *PermanentStats {
	return &PermanentStats{
		levels: make(map[string]int),
		table:  table,
	}
}

// Table returns the stat table the levels are evaluated against.
func (p *PermanentStats) Table() *sg.Table {
	return p.table
}

// WithTable re-binds the stats to another shared table and returns p.
func (p *PermanentStats) WithTable(table *sg.Table) *PermanentStats {
	p.table = table
	return p
}

// Level returns the current level of a stat.
func (p *PermanentStats) Level(id string) int {
	return p.levels[id]
}

// SetLevel sets a stat level. Negative levels are clamped to zero.
func (p *PermanentStats) SetLevel(id string, level int) {
	if level <= 0 {
		delete(p.levels, id)
		return
	}
	p.levels[id] = level
}

// Upgrade raises a stat by one level and returns the new level.
func (p *PermanentStats) Upgrade(id string) int {
	p.levels[id]++
	return p.levels[id]
}

// Levels returns a copy of all non-zero levels.
func (p *PermanentStats) Levels() map[string]int {
	out := make(map[string]int, len(p.levels))
	for id, lvl := range p.levels {
		out[id] = lvl
	}
	return out
}

// TotalLevels returns the sum of all levels.
func (p *PermanentStats) TotalLevels() int {
	total := 0
	for _, lvl := range p.levels {
		total += lvl
	}
	return total
}

// IDs returns the ids with a non-zero level, sorted.
func (p *PermanentStats) IDs() []string {
	ids := make([]string, 0, len(p.levels))
	for id := range p.levels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone copies the levels. The clone shares the stat table.
func (p *PermanentStats) Clone() *PermanentStats {
	return &PermanentStats{
		levels: p.Levels(),
		table:  p.table,
	}
}

// effect returns the non-negative effect of a stat at its current level.
func (p *PermanentStats) effect(id string) float64 {
	v := p.table.Effect(id, p.levels[id])
	if v < 0 {
		return 0
	}
	return v
}

// Effect returns the non-negative effect of any stat at its current level.
func (p *PermanentStats) Effect(id string) float64 {
	return p.effect(id)
}

// BaseAttack is flat damage added to every hit.
func (p *PermanentStats) BaseAttack() float64 { return p.effect(sg.BaseAttack) }

// AttackPercent is the fractional attack bonus.
func (p *PermanentStats) AttackPercent() float64 { return p.effect(sg.AttackPercent) }

// CritChanceBonus is added to the base critical chance.
func (p *PermanentStats) CritChanceBonus() float64 { return p.effect(sg.CritChance) }

// CritDamageBonus is added to the base critical multiplier.
func (p *PermanentStats) CritDamageBonus() float64 { return p.effect(sg.CritDamage) }

// MultiHitChance is the probability that a hit lands twice.
func (p *PermanentStats) MultiHitChance() float64 { return p.effect(sg.MultiHit) }

// GoldFlat is flat gold added to every kill.
func (p *PermanentStats) GoldFlat() float64 { return p.effect(sg.GoldFlatPerm) }

// GoldMultiPercent is the gold bonus in percent.
func (p *PermanentStats) GoldMultiPercent() float64 { return p.effect(sg.GoldMultiPerm) }

// CrystalFlat is added to every boss crystal drop.
func (p *PermanentStats) CrystalFlat() int { return int(p.effect(sg.CrystalFlat)) }

// CrystalDropBonus is added to the boss crystal drop chance.
func (p *PermanentStats) CrystalDropBonus() float64 { return p.effect(sg.CrystalMulti) }

// TimeExtend is extra session time in seconds.
func (p *PermanentStats) TimeExtend() float64 { return p.effect(sg.TimeExtend) }

// UpgradeDiscount is the fractional discount on in-game upgrade prices.
func (p *PermanentStats) UpgradeDiscount() float64 {
	d := p.effect(sg.UpgradeDiscount)
	if d > 0.9 {
		return 0.9
	}
	return d
}

// StartLevel is the number of stages skipped at session start.
func (p *PermanentStats) StartLevel() int { return int(p.effect(sg.StartLevel)) }

// StartGold is the gold a session begins with.
func (p *PermanentStats) StartGold() int64 {
	base := p.effect(sg.StartGold) + p.effect(sg.StartGoldFlat)
	return int64(base * (1 + p.effect(sg.StartGoldMulti)))
}

// StartKeyboardPower is the keyboard power level a session begins with.
func (p *PermanentStats) StartKeyboardPower() int { return int(p.effect(sg.StartKeyboard)) }

// StartMousePower is the mouse power level a session begins with.
func (p *PermanentStats) StartMousePower() int { return int(p.effect(sg.StartMouse)) }

// ComboWindowBonus extends the combo window in seconds.
func (p *PermanentStats) ComboWindowBonus() float64 { return p.effect(sg.StartComboFlex) }

// ComboDamagePercent is the extra combo damage in percent.
func (p *PermanentStats) ComboDamagePercent() float64 { return p.effect(sg.StartComboDamage) }

// InGameStats tracks the per-session gold upgrades.
type InGameStats struct {
	KeyboardPower int
	MousePower    int
}

// Reset zeroes every level.
func (s *InGameStats) Reset() {
	s.KeyboardPower = 0
	s.MousePower = 0
}

// Clone returns a copy.
func (s InGameStats) Clone() InGameStats {
	return s
}

// Level returns the level of an in-game stat, or 0 for unknown ids.
func (s *InGameStats) Level(id string) int {
	switch id {
	case sg.KeyboardPower:
		return s.KeyboardPower
	case sg.MousePower:
		return s.MousePower
	}
	return 0
}

// Upgrade raises an in-game stat by one level. It reports false for unknown ids.
func (s *InGameStats) Upgrade(id string) bool {
	switch id {
	case sg.KeyboardPower:
		s.KeyboardPower++
	case sg.MousePower:
		s.MousePower++
	default:
		return false
	}
	return true
}
