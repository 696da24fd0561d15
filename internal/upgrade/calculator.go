// Package upgrade prices permanent upgrades and picks the most efficient one.
package upgrade

import (
	"math"

	"github.com/deskwarrior/simulator/internal/player"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

// Calculator answers cost questions against one stat table.
type Calculator struct {
	table *sg.Table
}

// New creates a calculator over table.
func New(table *sg.Table) *Calculator {
	return &Calculator{table: table}
}

// Table returns the stat table the calculator prices against.
func (c *Calculator) Table() *sg.Table {
	return c.table
}

// UpgradeCost is the price of going from currentLevel to currentLevel+1.
// Unknown stats and stats at their cap cost sg.Blocked.
func (c *Calculator) UpgradeCost(id string, currentLevel int) int64 {
	return c.table.Cost(id, currentLevel+1)
}

// TotalCost sums the prices of every level from from+1 up to and including to.
// It returns sg.Blocked if any level on the way is blocked.
func (c *Calculator) TotalCost(id string, from, to int) int64 {
	var total int64
	for lvl := from + 1; lvl <= to; lvl++ {
		cost := c.table.Cost(id, lvl)
		if cost == sg.Blocked || total > math.MaxInt64-cost {
			return sg.Blocked
		}
		total += cost
	}
	return total
}

// MaxLevelForBudget returns the highest level reachable from start with budget
// and how much of the budget that costs.
func (c *Calculator) MaxLevelForBudget(id string, budget int64, start int) (int, int64) {
	level := start
	var spent int64
	for {
		cost := c.UpgradeCost(id, level)
		if cost == sg.Blocked || cost > budget-spent {
			return level, spent
		}
		spent += cost
		level++
	}
}

// Efficiency is effect gained per crystal for the next level of id.
func (c *Calculator) Efficiency(id string, level int) float64 {
	cfg, ok := c.table.Lookup(id)
	if !ok {
		return 0
	}
	cost := c.UpgradeCost(id, level)
	if cost == sg.Blocked || cost <= 0 {
		return 0
	}
	return cfg.EffectPerLevel / float64(cost)
}

// CanUpgrade reports whether the next level of id is affordable.
func (c *Calculator) CanUpgrade(id string, level int, available int64) bool {
	cost := c.UpgradeCost(id, level)
	return cost != sg.Blocked && cost <= available
}

// Choice is a candidate purchase.
type Choice struct {
	StatID     string
	Level      int
	Cost       int64
	Efficiency float64
}

// Affordable lists every stat in ids whose next level fits available. A nil
// ids means every stat in the table.
func (c *Calculator) Affordable(stats *player.PermanentStats, available int64, ids []string) []Choice {
	if ids == nil {
		ids = c.table.IDs()
	}
	var out []Choice
	for _, id := range ids {
		lvl := stats.Level(id)
		if !c.CanUpgrade(id, lvl, available) {
			continue
		}
		out = append(out, Choice{
			StatID:     id,
			Level:      lvl,
			Cost:       c.UpgradeCost(id, lvl),
			Efficiency: c.Efficiency(id, lvl),
		})
	}
	return out
}

// BestUpgrade returns the affordable stat with the highest efficiency. Ties go
// to the lexically smallest id.
func (c *Calculator) BestUpgrade(stats *player.PermanentStats, available int64) (Choice, bool) {
	return c.BestAmong(stats, available, nil)
}

// BestAmong is BestUpgrade restricted to ids.
func (c *Calculator) BestAmong(stats *player.PermanentStats, available int64, ids []string) (Choice, bool) {
	var best Choice
	found := false
	for _, ch := range c.Affordable(stats, available, ids) {
		if !found || ch.Efficiency > best.Efficiency ||
			(ch.Efficiency == best.Efficiency && ch.StatID < best.StatID) {
			best = ch
			found = true
		}
	}
	return best, found
}
