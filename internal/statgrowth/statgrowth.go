// Package statgrowth describes how each upgradeable stat scales: what the next
// level costs and what a level is worth.
package statgrowth

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/deskwarrior/simulator/internal/formula"
)

// Blocked is the cost reported for a stat that cannot be upgraded further.
const Blocked int64 = math.MaxInt64

// Config is one stat's cost and effect curve.
type Config struct {
	StatName        string  `yaml:"stat_name" json:"stat_name"`
	Category        string  `yaml:"category" json:"category"`
	BaseCost        float64 `yaml:"base_cost" json:"base_cost"`
	GrowthRate      float64 `yaml:"growth_rate" json:"growth_rate"`
	Multiplier      float64 `yaml:"multiplier" json:"multiplier"`
	SoftcapInterval int     `yaml:"softcap_interval" json:"softcap_interval"`
	EffectPerLevel  float64 `yaml:"effect_per_level" json:"effect_per_level"`
	MaxLevel        int     `yaml:"max_level" json:"max_level"` // 0 = uncapped
}

// DefaultConfig returns the curve used for fields missing from a data file.
func DefaultConfig() Config {
	return Config{
		BaseCost:        100,
		GrowthRate:      0.5,
		Multiplier:      1.5,
		SoftcapInterval: 10,
		EffectPerLevel:  1,
	}
}

// Cost returns the price of reaching level, rounded up.
// Level 0 and below is free; levels at or past MaxLevel are Blocked.
func (c Config) Cost(level int) int64 {
	return c.DiscountedCost(level, 0)
}

// DiscountedCost is Cost with a fractional discount applied, rounded up.
func (c Config) DiscountedCost(level int, discount float64) int64 {
	if level <= 0 {
		return 0
	}
	if c.MaxLevel > 0 && level >= c.MaxLevel {
		return Blocked
	}
	return formula.DiscountedUpgradeCost(c.BaseCost, c.GrowthRate, c.Multiplier, c.SoftcapInterval, level, discount)
}

// Effect returns the stat's total effect at level.
func (c Config) Effect(level int) float64 {
	return formula.StatEffect(c.EffectPerLevel, level)
}

// Validate reports problems that make a curve unusable or non-monotonic.
func (c Config) Validate() error {
	var errs []error
	if c.BaseCost < 0 {
		errs = append(errs, fmt.Errorf("base_cost must be >= 0, got %v", c.BaseCost))
	}
	if c.GrowthRate < 0 {
		errs = append(errs, fmt.Errorf("growth_rate must be >= 0, got %v", c.GrowthRate))
	}
	if c.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("multiplier must be >= 1, got %v", c.Multiplier))
	}
	if c.SoftcapInterval < 0 {
		errs = append(errs, fmt.Errorf("softcap_interval must be >= 0, got %d", c.SoftcapInterval))
	}
	if c.EffectPerLevel < 0 {
		errs = append(errs, fmt.Errorf("effect_per_level must be >= 0, got %v", c.EffectPerLevel))
	}
	if c.MaxLevel < 0 {
		errs = append(errs, fmt.Errorf("max_level must be >= 0, got %d", c.MaxLevel))
	}
	return errors.Join(errs...)
}

// Table is a read-only stat table keyed by stat id. It is shared by every
// simulation that uses it and must not be modified after construction.
type Table struct {
	stats map[string]Config
	ids   []string
}

// NewTable builds a table from a map. The map is copied.
func NewTable(stats map[string]Config) *Table {
	t := &Table{stats: make(map[string]Config, len(stats))}
	for id, c := range stats {
		if c.Category == "" {
			c.Category = CategoryOf(id)
		}
		t.stats[id] = c
		t.ids = append(t.ids, id)
	}
	sort.Strings(t.ids)
	return t
}

// Lookup returns the config for id.
func (t *Table) Lookup(id string) (Config, bool) {
	if t == nil {
		return Config{}, false
	}
	c, ok := t.stats[id]
	return c, ok
}

// Effect returns the effect of id at level. Unknown ids yield the raw level.
func (t *Table) Effect(id string, level int) float64 {
	c, ok := t.Lookup(id)
	if !ok {
		return float64(level)
	}
	return c.Effect(level)
}

// Cost returns the cost of reaching level for id, or Blocked for unknown ids.
func (t *Table) Cost(id string, level int) int64 {
	c, ok := t.Lookup(id)
	if !ok {
		return Blocked
	}
	return c.Cost(level)
}

// DiscountedCost returns the discounted cost of reaching level for id, or Blocked for unknown ids.
func (t *Table) DiscountedCost(id string, level int, discount float64) int64 {
	c, ok := t.Lookup(id)
	if !ok {
		return Blocked
	}
	return c.DiscountedCost(level, discount)
}

// IDs returns the stat ids in sorted order.
func (t *Table) IDs() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.ids))
	copy(out, t.ids)
	return out
}

// Len returns the number of stats in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ids)
}

// Category returns the category of id as recorded in the table, falling back
// to the canonical category list.
func (t *Table) Category(id string) string {
	if c, ok := t.Lookup(id); ok && c.Category != "" {
		return c.Category
	}
	return CategoryOf(id)
}

// Validate checks every entry and joins the problems found.
func (t *Table) Validate() error {
	var errs []error
	for _, id := range t.IDs() {
		if err := t.stats[id].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("stat %q: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
