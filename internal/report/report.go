// Package report turns an exploration and its analysis into a balance report
// and writes it as JSON, YAML or Markdown.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deskwarrior/simulator/internal/pattern"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

const (
	// Version is the report format version.
	Version = "1.0"

	topPatternCount  = 20
	categoryTopCount = 20
	statTopCount     = 10
	mainStatShare    = 0.1
	activeUsage      = 0.5
	moderateUsage    = 0.3
)

// Category usage statuses.
const (
	StatusActive    = "Active"
	StatusModerate  = "Moderate"
	StatusUnderused = "Underused"
	StatusOverused  = "Overused"
	StatusBalanced  = "Balanced"
)

// Recommendation priorities, most urgent first.
const (
	PriorityCritical = "Critical"
	PriorityHigh     = "High"
	PriorityMedium   = "Medium"
	PriorityLow      = "Low"
)

var priorityOrder = map[string]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// Metadata identifies a report.
type Metadata struct {
	ID                string    `json:"id" yaml:"id"`
	Version           string    `json:"version" yaml:"version"`
	GeneratedAt       time.Time `json:"generated_at" yaml:"generated_at"`
	DurationSeconds   float64   `json:"duration_seconds" yaml:"duration_seconds"`
	PatternsEvaluated int       `json:"patterns_evaluated" yaml:"patterns_evaluated"`
	SimulationsRun    int       `json:"simulations_run" yaml:"simulations_run"`
}

// Config records the analysis settings.
type Config struct {
	Mode                  string         `json:"mode" yaml:"mode"`
	TargetLevel           int            `json:"target_level" yaml:"target_level"`
	CPS                   float64        `json:"cps" yaml:"cps"`
	CrystalBudget         int64          `json:"crystal_budget" yaml:"crystal_budget"`
	SimulationsPerPattern int            `json:"simulations_per_pattern" yaml:"simulations_per_pattern"`
	GAGenerations         int            `json:"ga_generations" yaml:"ga_generations"`
	GAPopulationSize      int            `json:"ga_population_size" yaml:"ga_population_size"`
	InitialStats          map[string]int `json:"initial_stats,omitempty" yaml:"initial_stats,omitempty"`
	Focus                 string         `json:"focus,omitempty" yaml:"focus,omitempty"`
}

// Summary is the headline verdict.
type Summary struct {
	Grade                string   `json:"grade" yaml:"grade"`
	GradeDescription     string   `json:"grade_description" yaml:"grade_description"`
	HasDominantRoute     bool     `json:"has_dominant_route" yaml:"has_dominant_route"`
	DominanceRatio       float64  `json:"dominance_ratio" yaml:"dominance_ratio"`
	DiversityScore       float64  `json:"diversity_score" yaml:"diversity_score"`
	TopPatternSimilarity float64  `json:"top_pattern_similarity" yaml:"top_pattern_similarity"`
	BestPatternLevel     float64  `json:"best_pattern_level" yaml:"best_pattern_level"`
	WorstPatternLevel    float64  `json:"worst_pattern_level" yaml:"worst_pattern_level"`
	AveragePatternLevel  float64  `json:"average_pattern_level" yaml:"average_pattern_level"`
	LevelSpread          float64  `json:"level_spread" yaml:"level_spread"`
	ActiveCategories     int      `json:"active_categories" yaml:"active_categories"`
	TotalCategories      int      `json:"total_categories" yaml:"total_categories"`
	UnderusedCategories  []string `json:"underused_categories" yaml:"underused_categories"`
}

// PatternDetail describes one of the best patterns.
type PatternDetail struct {
	Rank             int                `json:"rank" yaml:"rank"`
	PatternID        string             `json:"pattern_id" yaml:"pattern_id"`
	Description      string             `json:"description" yaml:"description"`
	AverageLevel     float64            `json:"average_level" yaml:"average_level"`
	MedianLevel      float64            `json:"median_level" yaml:"median_level"`
	MinLevel         float64            `json:"min_level" yaml:"min_level"`
	MaxLevel         float64            `json:"max_level" yaml:"max_level"`
	StdDev           float64            `json:"std_dev" yaml:"std_dev"`
	SuccessRate      float64            `json:"success_rate" yaml:"success_rate"`
	Allocation       map[string]float64 `json:"allocation" yaml:"allocation"`
	MainStats        []string           `json:"main_stats" yaml:"main_stats"`
	PrimaryCategory  string             `json:"primary_category" yaml:"primary_category"`
	LevelDiffFromTop float64            `json:"level_diff_from_top" yaml:"level_diff_from_top"`
	LevelDiffPercent float64            `json:"level_diff_percent" yaml:"level_diff_percent"`
}

// CategoryAnalysis describes how much the top patterns lean on a category.
type CategoryAnalysis struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Stats          []string `json:"stats" yaml:"stats"`
	UsageRate      float64  `json:"usage_rate" yaml:"usage_rate"`
	Status         string   `json:"status" yaml:"status"`
	BestPattern    string   `json:"best_pattern" yaml:"best_pattern"`
	BestLevel      float64  `json:"best_level" yaml:"best_level"`
	Recommendation string   `json:"recommendation" yaml:"recommendation"`
}

// StatAnalysis ranks one stat by its single-stat pattern.
type StatAnalysis struct {
	StatID           string  `json:"stat_id" yaml:"stat_id"`
	Name             string  `json:"name" yaml:"name"`
	Category         string  `json:"category" yaml:"category"`
	SingleStatLevel  float64 `json:"single_stat_level" yaml:"single_stat_level"`
	Rank             int     `json:"rank" yaml:"rank"`
	UsageInTop       float64 `json:"usage_in_top" yaml:"usage_in_top"`
	AverageShareUsed float64 `json:"average_share_used" yaml:"average_share_used"`
	Rating           string  `json:"rating" yaml:"rating"`
	Status           string  `json:"status" yaml:"status"`
}

// Recommendation is one actionable finding.
type Recommendation struct {
	Priority       string `json:"priority" yaml:"priority"`
	Kind           string `json:"kind" yaml:"kind"`
	Target         string `json:"target" yaml:"target"`
	Issue          string `json:"issue" yaml:"issue"`
	Suggestion     string `json:"suggestion" yaml:"suggestion"`
	ExpectedImpact string `json:"expected_impact" yaml:"expected_impact"`
}

// Report is a complete balance report.
type Report struct {
	Metadata        Metadata           `json:"metadata" yaml:"metadata"`
	Config          Config             `json:"config" yaml:"config"`
	Summary         Summary            `json:"summary" yaml:"summary"`
	TopPatterns     []PatternDetail    `json:"top_patterns" yaml:"top_patterns"`
	Categories      []CategoryAnalysis `json:"categories" yaml:"categories"`
	Stats           []StatAnalysis     `json:"stats" yaml:"stats"`
	Recommendations []Recommendation   `json:"recommendations" yaml:"recommendations"`
}

// Build assembles a report. Zero metadata fields are filled in: a fresh id,
// the current time and the repository's pattern count.
func Build(meta Metadata, cfg Config, repo *pattern.Repository, q *pattern.QualityResult) *Report {
	if meta.ID == "" {
		meta.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	if meta.Version == "" {
		meta.Version = Version
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}
	if meta.PatternsEvaluated == 0 {
		meta.PatternsEvaluated = len(repo.Evaluated())
	}
	if meta.SimulationsRun == 0 {
		meta.SimulationsRun = meta.PatternsEvaluated * cfg.SimulationsPerPattern
	}
	if q == nil {
		q = &pattern.QualityResult{Grade: pattern.GradeF, CategoryUsage: map[string]float64{}}
	}

	r := &Report{Metadata: meta, Config: cfg}
	r.Summary = summarize(repo, q)
	r.TopPatterns = details(repo)
	r.Categories = categories(repo, q)
	r.Stats = stats(repo)
	r.Recommendations = recommend(q, r)
	return r
}

func summarize(repo *pattern.Repository, q *pattern.QualityResult) Summary {
	s := Summary{
		Grade:                string(q.Grade),
		GradeDescription:     q.Grade.Summary(),
		HasDominantRoute:     q.HasDominantRoute,
		DominanceRatio:       q.DominanceRatio,
		DiversityScore:       q.DiversityScore,
		TopPatternSimilarity: q.TopPatternSimilarity,
		TotalCategories:      len(q.CategoryUsage),
		UnderusedCategories:  []string{},
	}
	if q.Summary != "" {
		s.GradeDescription = q.Summary
	}
	top := repo.TopByLevel(100)
	if len(top) > 0 {
		sum := 0.0
		for _, p := range top {
			sum += p.Result.AverageMaxLevel
		}
		s.BestPatternLevel = top[0].Result.AverageMaxLevel
		s.WorstPatternLevel = top[len(top)-1].Result.AverageMaxLevel
		s.AveragePatternLevel = sum / float64(len(top))
		s.LevelSpread = s.BestPatternLevel - s.WorstPatternLevel
	}
	for _, cat := range sg.CategoryOrder {
		usage, ok := q.CategoryUsage[cat]
		if !ok {
			continue
		}
		if usage >= moderateUsage {
			s.ActiveCategories++
		} else {
			s.UnderusedCategories = append(s.UnderusedCategories, cat)
		}
	}
	return s
}

func mainStats(p *pattern.AllocationPattern) []string {
	var ids []string
	for _, id := range p.Keys() {
		if p.Allocation[id] >= mainStatShare {
			ids = append(ids, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool { return p.Allocation[ids[i]] > p.Allocation[ids[j]] })
	return ids
}

func details(repo *pattern.Repository) []PatternDetail {
	top := repo.TopByLevel(topPatternCount)
	out := make([]PatternDetail, 0, len(top))
	if len(top) == 0 {
		return out
	}
	best := top[0].Result.AverageMaxLevel
	for i, p := range top {
		res := p.Result
		alloc := make(map[string]float64)
		for k, v := range p.Allocation {
			if v > 0.01 {
				alloc[k] = v
			}
		}
		main := mainStats(p)
		primary := sg.CategoryUnknown
		if len(main) > 0 {
			primary = sg.CategoryOf(main[0])
		}
		d := PatternDetail{
			Rank:             i + 1,
			PatternID:        p.ID,
			Description:      p.Description(),
			AverageLevel:     res.AverageMaxLevel,
			MedianLevel:      res.MedianMaxLevel,
			MinLevel:         res.MinMaxLevel,
			MaxLevel:         res.MaxMaxLevel,
			StdDev:           res.StdDev,
			SuccessRate:      res.SuccessRate,
			Allocation:       alloc,
			MainStats:        main,
			PrimaryCategory:  primary,
			LevelDiffFromTop: res.AverageMaxLevel - best,
		}
		if best > 0 {
			d.LevelDiffPercent = d.LevelDiffFromTop / best * 100
		}
		out = append(out, d)
	}
	return out
}

// CategoryName returns the display name of a category.
func CategoryName(id string) string {
	switch id {
	case sg.CategoryBaseStats:
		return "Base Stats (Attack/Crit)"
	case sg.CategoryCurrencyBonus:
		return "Currency Bonus (Gold/Crystal)"
	case sg.CategoryUtility:
		return "Utility (Time/Discount)"
	case sg.CategoryStartingBonus:
		return "Starting Bonus"
	}
	return id
}

// StatName turns "crit_chance" into "Crit Chance".
func StatName(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func categories(repo *pattern.Repository, q *pattern.QualityResult) []CategoryAnalysis {
	top := repo.TopByLevel(categoryTopCount)
	out := make([]CategoryAnalysis, 0, len(sg.CategoryOrder))
	for _, cat := range sg.CategoryOrder {
		stats := sg.Categories[cat]
		usage := q.CategoryUsage[cat]
		c := CategoryAnalysis{
			ID:          cat,
			Name:        CategoryName(cat),
			Stats:       stats,
			UsageRate:   usage,
			BestPattern: "N/A",
		}
		switch {
		case usage >= activeUsage:
			c.Status, c.Recommendation = StatusActive, "Currently well-balanced"
		case usage >= moderateUsage:
			c.Status, c.Recommendation = StatusModerate, "Monitor for potential improvements"
		default:
			c.Status, c.Recommendation = StatusUnderused, "Consider buffing stats in this category or reducing costs"
		}
	search:
		for _, p := range top {
			for _, id := range stats {
				if p.Allocation[id] >= moderateUsage {
					c.BestPattern = p.ID
					c.BestLevel = p.Result.AverageMaxLevel
					break search
				}
			}
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UsageRate > out[j].UsageRate })
	return out
}

// Rating grades a stat by its single-stat rank: S for the top three down to
// D, and F for a stat that reaches no level at all.
func Rating(rank int, level float64) string {
	switch {
	case level <= 0:
		return "F"
	case rank <= 3:
		return "S"
	case rank <= 6:
		return "A"
	case rank <= 10:
		return "B"
	case rank <= 14:
		return "C"
	}
	return "D"
}

func stats(repo *pattern.Repository) []StatAnalysis {
	all := repo.Evaluated()
	top := repo.TopByLevel(statTopCount)

	var singles []*pattern.AllocationPattern
	for _, p := range all {
		if strings.HasPrefix(p.ID, "single_") {
			singles = append(singles, p)
		}
	}
	sort.SliceStable(singles, func(i, j int) bool {
		return singles[i].Result.AverageMaxLevel > singles[j].Result.AverageMaxLevel
	})

	out := make([]StatAnalysis, 0, len(singles))
	for i, sp := range singles {
		id := strings.TrimPrefix(sp.ID, "single_")
		used := 0
		for _, p := range top {
			if p.Allocation[id] >= mainStatShare {
				used++
			}
		}
		usage := 0.0
		if len(top) > 0 {
			usage = float64(used) / float64(len(top))
		}
		shareSum, shareN := 0.0, 0
		for _, p := range all {
			if v := p.Allocation[id]; v >= mainStatShare {
				shareSum += v
				shareN++
			}
		}
		a := StatAnalysis{
			StatID:          id,
			Name:            StatName(id),
			Category:        sg.CategoryOf(id),
			SingleStatLevel: sp.Result.AverageMaxLevel,
			Rank:            i + 1,
			UsageInTop:      usage,
			Rating:          Rating(i+1, sp.Result.AverageMaxLevel),
		}
		if shareN > 0 {
			a.AverageShareUsed = shareSum / float64(shareN)
		}
		switch {
		case usage >= 0.5:
			a.Status = StatusOverused
		case usage >= 0.2:
			a.Status = StatusBalanced
		default:
			a.Status = StatusUnderused
		}
		out = append(out, a)
	}
	return out
}

func recommend(q *pattern.QualityResult, r *Report) []Recommendation {
	var recs []Recommendation
	if q.HasDominantRoute {
		target := "Top pattern"
		if len(r.TopPatterns) > 0 {
			target = r.TopPatterns[0].PatternID
		}
		recs = append(recs, Recommendation{
			Priority:       PriorityCritical,
			Kind:           "Balance",
			Target:         target,
			Issue:          fmt.Sprintf("Dominant route detected (ratio: %.2f)", q.DominanceRatio),
			Suggestion:     "Nerf the top strategy or significantly buff alternatives",
			ExpectedImpact: "Improved route diversity and player choice",
		})
	}
	if q.DiversityScore < 0.3 {
		recs = append(recs, Recommendation{
			Priority:       PriorityHigh,
			Kind:           "Design",
			Target:         "Overall balance",
			Issue:          fmt.Sprintf("Low pattern diversity (score: %.2f)", q.DiversityScore),
			Suggestion:     "Review stat cost/effect ratios to create more viable combinations",
			ExpectedImpact: "More strategic depth and replay value",
		})
	}
	for _, c := range r.Categories {
		if c.Status != StatusUnderused {
			continue
		}
		recs = append(recs, Recommendation{
			Priority:       PriorityMedium,
			Kind:           "Buff",
			Target:         c.Name,
			Issue:          fmt.Sprintf("Category underutilized (%.0f%% usage)", c.UsageRate*100),
			Suggestion:     "Consider buffing stats: " + strings.Join(c.Stats[:min(3, len(c.Stats))], ", "),
			ExpectedImpact: "Increased build variety",
		})
	}
	for _, s := range r.Stats {
		if s.Status == StatusUnderused && s.Rank > 15 {
			recs = append(recs, Recommendation{
				Priority:       PriorityLow,
				Kind:           "Buff",
				Target:         s.Name,
				Issue:          fmt.Sprintf("Stat underperforming (rank #%d)", s.Rank),
				Suggestion:     "Reduce cost or increase effect per level",
				ExpectedImpact: "Stat becomes viable in some builds",
			})
		}
		if s.Status == StatusOverused && s.Rank <= 3 {
			recs = append(recs, Recommendation{
				Priority:       PriorityMedium,
				Kind:           "Nerf",
				Target:         s.Name,
				Issue:          fmt.Sprintf("Stat overperforming (rank #%d, %.0f%% usage in top builds)", s.Rank, s.UsageInTop*100),
				Suggestion:     "Slightly increase cost or reduce effect",
				ExpectedImpact: "More balanced stat distribution",
			})
		}
	}
	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Priority:       PriorityLow,
			Kind:           "Design",
			Target:         "Overall",
			Issue:          "No critical issues detected",
			Suggestion:     "Continue monitoring with different scenarios (CPS, target levels)",
			ExpectedImpact: "Maintain healthy balance",
		})
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return priorityOrder[recs[i].Priority] < priorityOrder[recs[j].Priority]
	})
	return recs
}
