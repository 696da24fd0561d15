// Package pattern explores crystal allocation patterns and judges whether the
// stat shop offers more than one viable upgrade route.
package pattern

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/deskwarrior/simulator/internal/batch"
)

// SignificantShare is the allocation share above which a stat counts as part
// of a pattern's route.
const SignificantShare = 0.05

// Result is the batch outcome of playing with a pattern's stat levels.
type Result struct {
	AverageMaxLevel  float64 `json:"average_max_level" yaml:"average_max_level"`
	MedianMaxLevel   float64 `json:"median_max_level" yaml:"median_max_level"`
	MinMaxLevel      float64 `json:"min_max_level" yaml:"min_max_level"`
	MaxMaxLevel      float64 `json:"max_max_level" yaml:"max_max_level"`
	StdDev           float64 `json:"std_dev" yaml:"std_dev"`
	SuccessRate      float64 `json:"success_rate" yaml:"success_rate"`
	AttemptsToTarget int     `json:"attempts_to_target" yaml:"attempts_to_target"`
	AverageCrystals  float64 `json:"average_crystals" yaml:"average_crystals"`
}

// ResultFromBatch summarizes a batch result.
func ResultFromBatch(b *batch.Result) *Result {
	r := &Result{
		AverageMaxLevel: b.AverageLevel,
		MedianMaxLevel:  b.MedianLevel,
		MinMaxLevel:     float64(b.MinLevel),
		MaxMaxLevel:     float64(b.MaxLevel),
		StdDev:          b.StdDev,
		SuccessRate:     b.SuccessRate,
		AverageCrystals: b.AverageCrystals,
	}
	if b.MedianAttemptsToTarget.Reachable() {
		r.AttemptsToTarget = int(b.MedianAttemptsToTarget)
	}
	return r
}

// AllocationPattern splits a crystal budget between stats.
type AllocationPattern struct {
	ID         string             `json:"id" yaml:"id"`
	Allocation map[string]float64 `json:"allocation" yaml:"allocation"`
	Result     *Result            `json:"result,omitempty" yaml:"result,omitempty"`
}

// NewPattern creates a pattern with a short random id.
func NewPattern(allocation map[string]float64) *AllocationPattern {
	if allocation == nil {
		allocation = make(map[string]float64)
	}
	return &AllocationPattern{
		ID:         strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Allocation: allocation,
	}
}

// NewNamedPattern creates a pattern with a fixed id.
func NewNamedPattern(id string, allocation map[string]float64) *AllocationPattern {
	p := NewPattern(allocation)
	p.ID = id
	return p
}

// Clone deep-copies the pattern.
func (p *AllocationPattern) Clone() *AllocationPattern {
	c := &AllocationPattern{
		ID:         p.ID,
		Allocation: make(map[string]float64, len(p.Allocation)),
	}
	for k, v := range p.Allocation {
		c.Allocation[k] = v
	}
	if p.Result != nil {
		r := *p.Result
		c.Result = &r
	}
	return c
}

// Normalize drops non-positive entries and rescales the rest to sum to 1.
// A vector with nothing positive ends up empty.
func (p *AllocationPattern) Normalize() {
	total := 0.0
	for k, v := range p.Allocation {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			delete(p.Allocation, k)
			continue
		}
		total += v
	}
	if total <= 0 || math.Abs(total-1) < 1e-12 {
		return
	}
	for k, v := range p.Allocation {
		p.Allocation[k] = v / total
	}
}

// Sum returns the total of all shares.
func (p *AllocationPattern) Sum() float64 {
	total := 0.0
	for _, v := range p.Allocation {
		total += v
	}
	return total
}

// Keys returns the stat ids in sorted order.
func (p *AllocationPattern) Keys() []string {
	keys := make([]string, 0, len(p.Allocation))
	for k := range p.Allocation {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type share struct {
	id    string
	value float64
}

// ranked returns the entries above min, largest first, ties by id.
func (p *AllocationPattern) ranked(min float64) []share {
	var out []share
	for _, k := range p.Keys() {
		if v := p.Allocation[k]; v > min {
			out = append(out, share{k, v})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].value > out[j].value })
	return out
}

// SignificantStats returns the stats holding more than min of the budget.
func (p *AllocationPattern) SignificantStats(min float64) map[string]bool {
	set := make(map[string]bool)
	for k, v := range p.Allocation {
		if v > min {
			set[k] = true
		}
	}
	return set
}

// Description lists the three largest shares above 5%, e.g.
// "base_attack:40% + crit_chance:30%".
func (p *AllocationPattern) Description() string {
	top := p.ranked(SignificantShare)
	if len(top) > 3 {
		top = top[:3]
	}
	parts := make([]string, len(top))
	for i, s := range top {
		parts[i] = fmt.Sprintf("%s:%.0f%%", s.id, s.value*100)
	}
	return strings.Join(parts, " + ")
}

// PrimaryStat returns the stat with the largest share.
func (p *AllocationPattern) PrimaryStat() string {
	top := p.ranked(0)
	if len(top) == 0 {
		return ""
	}
	return top[0].id
}
