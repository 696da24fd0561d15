package batch

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/deskwarrior/simulator/internal/session"
)

// Attempts is an expected number of sessions. +Inf means the target is
// unreachable and encodes as JSON null.
type Attempts float64

// MarshalJSON implements json.Marshaler.
func (a Attempts) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(a), 0) || math.IsNaN(float64(a)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(a))
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Attempts) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = Attempts(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = Attempts(f)
	return nil
}

// Reachable reports whether the estimate is finite.
func (a Attempts) Reachable() bool {
	return !math.IsInf(float64(a), 0) && !math.IsNaN(float64(a))
}

// Result aggregates the sessions of one batch.
type Result struct {
	ID         string `json:"id"`
	MasterSeed uint64 `json:"master_seed"`
	Requested  int    `json:"requested"`
	Completed  int    `json:"completed"`
	Cancelled  bool   `json:"cancelled"`

	AverageLevel float64 `json:"average_level"`
	MedianLevel  float64 `json:"median_level"`
	MinLevel     int     `json:"min_level"`
	MaxLevel     int     `json:"max_level"`
	StdDev       float64 `json:"std_dev"`

	LevelCounts       map[int]int     `json:"level_counts"`
	LevelDistribution map[int]float64 `json:"level_distribution"`

	TargetLevel            int      `json:"target_level"`
	Successes              int      `json:"successes"`
	SuccessRate            float64  `json:"success_rate"`
	MedianAttemptsToTarget Attempts `json:"median_attempts_to_target"`

	AverageDuration           float64 `json:"average_duration"`
	AverageCrystals           float64 `json:"average_crystals"`
	AverageCrystalsFromBosses float64 `json:"average_crystals_from_bosses"`
	AverageCrystalsFromStages float64 `json:"average_crystals_from_stages"`
	AverageCrystalsFromGold   float64 `json:"average_crystals_from_gold"`
	AverageKills              float64 `json:"average_kills"`
	AverageGold               float64 `json:"average_gold"`

	Sessions []session.SessionResult `json:"sessions,omitempty"`
}

// Aggregate builds a Result from finished sessions. Results are taken in the
// given order; SuccessRate is successes/len(results) exactly.
func Aggregate(results []session.SessionResult, target int) *Result {
	r := &Result{
		Requested:         len(results),
		Completed:         len(results),
		TargetLevel:       target,
		LevelCounts:       make(map[int]int),
		LevelDistribution: make(map[int]float64),
		Sessions:          results,
	}
	n := len(results)
	if n == 0 {
		r.MedianAttemptsToTarget = EstimateAttempts(0)
		return r
	}

	levels := make([]float64, n)
	r.MinLevel = results[0].MaxLevel
	r.MaxLevel = results[0].MaxLevel

	var duration, crystals, bosses, stages, gold, kills, goldEarned float64
	for i, s := range results {
		levels[i] = float64(s.MaxLevel)
		r.LevelCounts[s.MaxLevel]++
		if s.MaxLevel >= target {
			r.Successes++
		}
		if s.MaxLevel < r.MinLevel {
			r.MinLevel = s.MaxLevel
		}
		if s.MaxLevel > r.MaxLevel {
			r.MaxLevel = s.MaxLevel
		}
		duration += s.Duration
		crystals += float64(s.TotalCrystals())
		bosses += float64(s.CrystalsFromBosses)
		stages += float64(s.CrystalsFromStages)
		gold += float64(s.CrystalsFromGoldConvert)
		kills += float64(s.MonstersKilled)
		goldEarned += float64(s.TotalGold)
	}

	fn := float64(n)
	r.AverageLevel = Mean(levels)
	r.MedianLevel = Median(levels)
	r.StdDev = StdDev(levels)
	for lvl, c := range r.LevelCounts {
		r.LevelDistribution[lvl] = float64(c) / fn
	}
	r.SuccessRate = float64(r.Successes) / fn
	r.MedianAttemptsToTarget = EstimateAttempts(r.SuccessRate)

	r.AverageDuration = duration / fn
	r.AverageCrystals = crystals / fn
	r.AverageCrystalsFromBosses = bosses / fn
	r.AverageCrystalsFromStages = stages / fn
	r.AverageCrystalsFromGold = gold / fn
	r.AverageKills = kills / fn
	r.AverageGold = goldEarned / fn
	return r
}

// EstimateAttempts returns the median number of independent sessions needed
// for the first success at per-session probability p.
func EstimateAttempts(p float64) Attempts {
	switch {
	case p <= 0:
		return Attempts(math.Inf(1))
	case p >= 1:
		return 1
	}
	return Attempts(math.Ceil(math.Log(0.5) / math.Log(1-p)))
}

// Bucket is one bar of a level histogram.
type Bucket struct {
	Low      int     `json:"low"`
	High     int     `json:"high"`
	Count    int     `json:"count"`
	Fraction float64 `json:"fraction"`
}

// Histogram groups the level counts into buckets of width levels, starting at
// level 1. Empty buckets between the lowest and highest level are included.
func (r *Result) Histogram(width int) []Bucket {
	if width <= 0 {
		width = 1
	}
	if r.Completed == 0 || len(r.LevelCounts) == 0 {
		return nil
	}

	bucketOf := func(level int) int {
		if level < 1 {
			return 0
		}
		return (level - 1) / width
	}
	counts := make(map[int]int)
	keys := make([]int, 0, len(r.LevelCounts))
	for lvl := range r.LevelCounts {
		keys = append(keys, lvl)
	}
	sort.Ints(keys)
	for _, lvl := range keys {
		counts[bucketOf(lvl)] += r.LevelCounts[lvl]
	}

	first, last := bucketOf(keys[0]), bucketOf(keys[len(keys)-1])
	out := make([]Bucket, 0, last-first+1)
	for b := first; b <= last; b++ {
		out = append(out, Bucket{
			Low:      b*width + 1,
			High:     (b + 1) * width,
			Count:    counts[b],
			Fraction: float64(counts[b]) / float64(r.Completed),
		})
	}
	return out
}

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the middle value, averaging the two middle values for an
// even count. values is not modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
