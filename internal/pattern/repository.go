package pattern

import (
	"sort"
	"sync"

	"github.com/deskwarrior/simulator/internal/batch"
)

// Repository collects patterns and their results. It is safe for concurrent use.
type Repository struct {
	mu       sync.RWMutex
	patterns []*AllocationPattern
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{}
}

// Add stores a pattern.
func (r *Repository) Add(p *AllocationPattern) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, p)
}

// AddRange stores several patterns.
func (r *Repository) AddRange(ps []*AllocationPattern) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, ps...)
}

// All returns every pattern in insertion order.
func (r *Repository) All() []*AllocationPattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AllocationPattern, len(r.patterns))
	copy(out, r.patterns)
	return out
}

// Len returns the number of stored patterns.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}

// Evaluated returns the patterns that have a result.
func (r *Repository) Evaluated() []*AllocationPattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*AllocationPattern
	for _, p := range r.patterns {
		if p.Result != nil {
			out = append(out, p)
		}
	}
	return out
}

func (r *Repository) top(n int, key func(*Result) float64) []*AllocationPattern {
	ev := r.Evaluated()
	sort.SliceStable(ev, func(i, j int) bool { return key(ev[i].Result) > key(ev[j].Result) })
	if n >= 0 && len(ev) > n {
		ev = ev[:n]
	}
	return ev
}

// TopByLevel returns up to n evaluated patterns, best average level first.
// Equal levels keep insertion order.
func (r *Repository) TopByLevel(n int) []*AllocationPattern {
	return r.top(n, func(res *Result) float64 { return res.AverageMaxLevel })
}

// TopBySuccessRate returns up to n evaluated patterns, best success rate first.
func (r *Repository) TopBySuccessRate(n int) []*AllocationPattern {
	return r.top(n, func(res *Result) float64 { return res.SuccessRate })
}

// Stats summarizes the repository.
type Stats struct {
	TotalPatterns     int     `json:"total_patterns"`
	EvaluatedPatterns int     `json:"evaluated_patterns"`
	BestLevel         float64 `json:"best_level"`
	WorstLevel        float64 `json:"worst_level"`
	AverageLevel      float64 `json:"average_level"`
	LevelStdDev       float64 `json:"level_std_dev"`
}

// Stats returns level statistics over the evaluated patterns.
func (r *Repository) Stats() Stats {
	ev := r.Evaluated()
	s := Stats{TotalPatterns: r.Len(), EvaluatedPatterns: len(ev)}
	if len(ev) == 0 {
		return s
	}
	levels := make([]float64, len(ev))
	s.BestLevel = ev[0].Result.AverageMaxLevel
	s.WorstLevel = ev[0].Result.AverageMaxLevel
	for i, p := range ev {
		lvl := p.Result.AverageMaxLevel
		levels[i] = lvl
		s.BestLevel = max(s.BestLevel, lvl)
		s.WorstLevel = min(s.WorstLevel, lvl)
	}
	s.AverageLevel = batch.Mean(levels)
	s.LevelStdDev = batch.StdDev(levels)
	return s
}
