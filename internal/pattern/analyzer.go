package pattern

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

// ErrEmptyAllocation is returned when an evaluated pattern allocates nothing.
var ErrEmptyAllocation = errors.New("evaluated pattern has an empty allocation")

// Grade rates the balance of the stat shop, A best.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Summary describes the grade in one sentence.
func (g Grade) Summary() string {
	switch g {
	case GradeA:
		return "Excellent! Multiple viable upgrade routes exist."
	case GradeB:
		return "Good balance with minor issues."
	case GradeC:
		return "Moderate balance issues - some paths underutilized."
	case GradeD:
		return "Poor balance - significant path preference."
	case GradeF:
		return "Balance failure - single dominant route detected."
	}
	return "Unknown"
}

// Summary is a compact view of one top pattern.
type Summary struct {
	Rank         int                `json:"rank"`
	PatternID    string             `json:"pattern_id"`
	Description  string             `json:"description"`
	AverageLevel float64            `json:"average_level"`
	SuccessRate  float64            `json:"success_rate"`
	MainStats    map[string]float64 `json:"main_stats"`
}

// QualityResult is the verdict of an analysis.
type QualityResult struct {
	Grade                Grade              `json:"grade"`
	Summary              string             `json:"summary"`
	HasDominantRoute     bool               `json:"has_dominant_route"`
	DominanceRatio       float64            `json:"dominance_ratio"`
	DiversityScore       float64            `json:"diversity_score"`
	TopPatternSimilarity float64            `json:"top_pattern_similarity"`
	CategoryUsage        map[string]float64 `json:"category_usage"`
	UnderusedStats       []string           `json:"underused_stats"`
	OverusedStats        []string           `json:"overused_stats"`
	TopPatterns          []Summary          `json:"top_patterns"`
	Recommendations      []string           `json:"recommendations"`
}

// Analyzer judges route diversity over the best patterns of a repository.
type Analyzer struct {
	DominanceThreshold   float64
	DiversityThreshold   float64
	CategoryUsageWarning float64
	TopN                 int

	// StatIDs is the stat universe for under/overuse detection. Empty means
	// every categorized permanent stat.
	StatIDs []string
}

// NewAnalyzer returns an analyzer with the default thresholds.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		DominanceThreshold:   1.3,
		DiversityThreshold:   0.5,
		CategoryUsageWarning: 0.3,
		TopN:                 10,
	}
}

const mainStatShare = 0.1

// Analyze grades the repository's top patterns by average level.
func (a *Analyzer) Analyze(repo *Repository) (*QualityResult, error) {
	if repo == nil {
		return nil, errors.New("nil repository")
	}
	for _, p := range repo.Evaluated() {
		if len(p.Allocation) == 0 {
			return nil, fmt.Errorf("pattern %s: %w", p.ID, ErrEmptyAllocation)
		}
	}

	topN := a.TopN
	if topN <= 0 {
		topN = 10
	}
	top := repo.TopByLevel(topN)
	res := &QualityResult{
		CategoryUsage:  make(map[string]float64),
		UnderusedStats: []string{},
		OverusedStats:  []string{},
		TopPatterns:    []Summary{},
	}
	if len(top) < 2 {
		res.Grade = GradeF
		res.Summary = res.Grade.Summary()
		res.Recommendations = []string{"Insufficient patterns to analyze"}
		return res, nil
	}

	res.DominanceRatio = dominance(top)
	res.HasDominantRoute = res.DominanceRatio > a.DominanceThreshold
	res.DiversityScore = diversity(top)
	res.TopPatternSimilarity = similarity(top)
	res.CategoryUsage = categoryUsage(top)
	res.UnderusedStats, res.OverusedStats = a.usageIssues(top)
	res.TopPatterns = summaries(top)
	res.Grade = a.grade(res)
	res.Summary = res.Grade.Summary()
	res.Recommendations = a.recommend(res)
	return res, nil
}

// dominance is the rank 1 to rank 2 level ratio.
func dominance(top []*AllocationPattern) float64 {
	first := top[0].Result.AverageMaxLevel
	second := top[1].Result.AverageMaxLevel
	if second <= 0 {
		return math.MaxFloat64
	}
	return first / second
}

// diversity is the mean pairwise Jaccard distance of the significant stat sets.
func diversity(top []*AllocationPattern) float64 {
	sets := make([]map[string]bool, len(top))
	for i, p := range top {
		sets[i] = p.SignificantStats(SignificantShare)
	}
	total, pairs := 0.0, 0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			pairs++
			inter, union := 0, len(sets[j])
			for k := range sets[i] {
				if sets[j][k] {
					inter++
				} else {
					union++
				}
			}
			if union > 0 {
				total += 1 - float64(inter)/float64(union)
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

// similarity is the mean cosine similarity between the top three patterns.
func similarity(top []*AllocationPattern) float64 {
	if len(top) > 3 {
		top = top[:3]
	}
	keySet := make(map[string]bool)
	for _, p := range top {
		for k := range p.Allocation {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total, pairs := 0.0, 0
	for i := 0; i < len(top); i++ {
		for j := i + 1; j < len(top); j++ {
			total += cosine(keys, top[i].Allocation, top[j].Allocation)
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return total / float64(pairs)
}

func cosine(keys []string, a, b map[string]float64) float64 {
	var dot, na, nb float64
	for _, k := range keys {
		dot += a[k] * b[k]
		na += a[k] * a[k]
		nb += b[k] * b[k]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// categoryUsage is, per category, the share of top patterns that put more
// than 10% into any of its stats.
func categoryUsage(top []*AllocationPattern) map[string]float64 {
	usage := make(map[string]float64, len(sg.CategoryOrder))
	for _, cat := range sg.CategoryOrder {
		used := 0
		for _, p := range top {
			for _, id := range sg.Categories[cat] {
				if p.Allocation[id] > mainStatShare {
					used++
					break
				}
			}
		}
		usage[cat] = float64(used) / float64(len(top))
	}
	return usage
}

func (a *Analyzer) universe() []string {
	if len(a.StatIDs) > 0 {
		return a.StatIDs
	}
	var ids []string
	for _, cat := range sg.CategoryOrder {
		ids = append(ids, sg.Categories[cat]...)
	}
	return ids
}

// usageIssues flags stats whose summed share over the top patterns is far
// below or far above the average.
func (a *Analyzer) usageIssues(top []*AllocationPattern) (under, over []string) {
	usage := make(map[string]float64)
	for _, id := range a.universe() {
		usage[id] = 0
	}
	for _, p := range top {
		for k, v := range p.Allocation {
			usage[k] += v
		}
	}
	ids := make([]string, 0, len(usage))
	sum := 0.0
	for k, v := range usage {
		ids = append(ids, k)
		sum += v
	}
	sort.Strings(ids)
	avg := sum / float64(len(usage))

	under, over = []string{}, []string{}
	for _, id := range ids {
		switch {
		case usage[id] < avg*0.2:
			under = append(under, id)
		case usage[id] > avg*3:
			over = append(over, id)
		}
	}
	return under, over
}

func summaries(top []*AllocationPattern) []Summary {
	out := make([]Summary, len(top))
	for i, p := range top {
		main := make(map[string]float64)
		for k, v := range p.Allocation {
			if v > mainStatShare {
				main[k] = v
			}
		}
		out[i] = Summary{
			Rank:         i + 1,
			PatternID:    p.ID,
			Description:  p.Description(),
			AverageLevel: p.Result.AverageMaxLevel,
			SuccessRate:  p.Result.SuccessRate,
			MainStats:    main,
		}
	}
	return out
}

func (a *Analyzer) grade(res *QualityResult) Grade {
	if res.HasDominantRoute {
		return GradeF
	}
	if res.DiversityScore < 0.2 {
		return GradeD
	}
	low := 0
	for _, u := range res.CategoryUsage {
		if u < a.CategoryUsageWarning {
			low++
		}
	}
	if low >= 2 {
		return GradeC
	}
	if res.DiversityScore < a.DiversityThreshold {
		return GradeB
	}
	return GradeA
}

func (a *Analyzer) recommend(res *QualityResult) []string {
	var recs []string
	if res.HasDominantRoute {
		recs = append(recs, fmt.Sprintf("Dominant route detected (ratio: %.2f). "+
			"Consider nerfing top strategy or buffing alternatives.", res.DominanceRatio))
	}
	if res.DiversityScore < 0.3 {
		recs = append(recs, "Low pattern diversity. Consider balancing stat cost/effect ratios.")
	}
	for _, cat := range sg.CategoryOrder {
		usage, ok := res.CategoryUsage[cat]
		if ok && usage < a.CategoryUsageWarning {
			recs = append(recs, fmt.Sprintf("Category '%s' underutilized (%.0f%%). "+
				"Consider buffing stats in this category.", cat, usage*100))
		}
	}
	if len(res.UnderusedStats) > 0 {
		recs = append(recs, fmt.Sprintf("Underused stats: %s. Consider reducing costs or increasing effects.",
			strings.Join(res.UnderusedStats, ", ")))
	}
	if len(res.OverusedStats) > 0 {
		recs = append(recs, fmt.Sprintf("Overused stats: %s. Consider increasing costs or reducing effects.",
			strings.Join(res.OverusedStats, ", ")))
	}
	if len(recs) == 0 {
		recs = append(recs, "Balance appears healthy. Continue monitoring with different scenarios.")
	}
	return recs
}
