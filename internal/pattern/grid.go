package pattern

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/deskwarrior/simulator/internal/rng"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

// DuoRatios are the splits tried for every two-stat pattern.
var DuoRatios = []float64{0.3, 0.5, 0.7}

// GridSearch generates allocation patterns over a fixed stat list.
type GridSearch struct {
	StatIDs []string
	// Granularity is the number of steps 100% is split into; 10 means 10% steps.
	Granularity int
}

// NewGridSearch returns a generator; granularity <= 0 means 10.
func NewGridSearch(statIDs []string, granularity int) *GridSearch {
	if granularity <= 0 {
		granularity = 10
	}
	return &GridSearch{StatIDs: statIDs, Granularity: granularity}
}

// Singles puts the whole budget into one stat, one pattern per stat.
func (g *GridSearch) Singles() []*AllocationPattern {
	out := make([]*AllocationPattern, 0, len(g.StatIDs))
	for _, id := range g.StatIDs {
		out = append(out, NewNamedPattern("single_"+id, map[string]float64{id: 1}))
	}
	return out
}

// Pairs splits the budget between every pair of ids at each DuoRatio.
// A nil ids means the generator's stat list.
func (g *GridSearch) Pairs(ids []string) []*AllocationPattern {
	if ids == nil {
		ids = g.StatIDs
	}
	var out []*AllocationPattern
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			for _, r := range DuoRatios {
				id := fmt.Sprintf("duo_%s_%s_%d", ids[i], ids[j], int(r*100+0.5))
				out = append(out, NewNamedPattern(id, map[string]float64{
					ids[i]: r,
					ids[j]: 1 - r,
				}))
			}
		}
	}
	return out
}

// Partitions enumerates every split of the budget across focus in
// granularity steps. Zero shares are left out of the allocation.
func (g *GridSearch) Partitions(focus []string) []*AllocationPattern {
	return g.partitionPatterns("grid", focus)
}

// CategoryBalanced splits the budget across the first stat of each category.
func (g *GridSearch) CategoryBalanced() []*AllocationPattern {
	var ids []string
	for _, cat := range sg.CategoryOrder {
		if stats := sg.Categories[cat]; len(stats) > 0 {
			ids = append(ids, stats[0])
		}
	}
	return g.partitionPatterns("balanced", ids)
}

func (g *GridSearch) partitionPatterns(prefix string, ids []string) []*AllocationPattern {
	if len(ids) == 0 {
		return nil
	}
	var out []*AllocationPattern
	for _, parts := range partitions(len(ids), g.Granularity) {
		alloc := make(map[string]float64, len(ids))
		names := make([]string, len(parts))
		for i, pct := range parts {
			names[i] = strconv.Itoa(pct)
			if pct > 0 {
				alloc[ids[i]] = float64(pct) / 100
			}
		}
		out = append(out, NewNamedPattern(prefix+"_"+strings.Join(names, "_"), alloc))
	}
	return out
}

// partitions lists every n-tuple of percentages in 100/granularity steps
// that sums to 100.
func partitions(n, granularity int) [][]int {
	step := 100 / granularity
	if step <= 0 {
		step = 1
	}
	var out [][]int
	cur := make([]int, n)
	var walk func(idx, remaining int)
	walk = func(idx, remaining int) {
		if idx == n-1 {
			cur[idx] = remaining
			out = append(out, slices.Clone(cur))
			return
		}
		for v := 0; v <= remaining; v += step {
			cur[idx] = v
			walk(idx+1, remaining-v)
		}
	}
	walk(0, 100)
	return out
}

// rankSingles orders evaluated single-stat patterns by average level and
// returns their stat ids.
func rankSingles(singles []*AllocationPattern) []string {
	var ev []*AllocationPattern
	for _, p := range singles {
		if p.Result != nil && len(p.Allocation) > 0 {
			ev = append(ev, p)
		}
	}
	sort.SliceStable(ev, func(i, j int) bool {
		return ev[i].Result.AverageMaxLevel > ev[j].Result.AverageMaxLevel
	})
	ids := make([]string, len(ev))
	for i, p := range ev {
		ids[i] = p.PrimaryStat()
	}
	return ids
}

// FocusByPerformance picks the focus stats for the grid phase: the three
// best singles, the worst one, and one random stat from the middle.
func FocusByPerformance(singles []*AllocationPattern, src rng.Source) []string {
	ranked := rankSingles(singles)
	if len(ranked) < 5 {
		return ranked
	}
	selected := slices.Clone(ranked[:3])
	selected = append(selected, ranked[len(ranked)-1])
	var middle []string
	for _, id := range ranked[3 : len(ranked)-1] {
		if !slices.Contains(selected, id) {
			middle = append(middle, id)
		}
	}
	if len(middle) > 0 {
		selected = append(selected, middle[src.IntN(len(middle))])
	}
	return selected
}

// Hints are stat picks carried over from earlier analyses.
type Hints struct {
	Top1    string `json:"top1"`
	Top2    string `json:"top2"`
	Bottom1 string `json:"bottom1"`
}

// Empty reports whether there is no history to draw on.
func (h Hints) Empty() bool {
	return h.Top1 == "" && h.Top2 == ""
}

// Focus sources.
const (
	SourceCurrentTop    = "CUR_TOP"
	SourceHistoryTop1   = "HIST_TOP1"
	SourceHistoryTop2   = "HIST_TOP2"
	SourceCurrentBottom = "CUR_BTM"
	SourceHistoryBottom = "HIST_BTM"
	SourceRandom        = "RANDOM"
)

// FocusSelection records why a stat was picked for the grid phase.
type FocusSelection struct {
	StatID      string `json:"stat_id"`
	Source      string `json:"source"`
	CurrentRank int    `json:"current_rank"`
}

// FocusInfo lists the focus picks.
type FocusInfo struct {
	Selections []FocusSelection `json:"selections"`
	TotalStats int              `json:"total_stats"`
}

func (f FocusInfo) String() string {
	parts := make([]string, len(f.Selections))
	for i, s := range f.Selections {
		parts[i] = fmt.Sprintf("%s(#%d/%s)", s.StatID, s.CurrentRank, s.Source)
	}
	return strings.Join(parts, ", ")
}

// FocusWithHistory picks up to count focus stats: the current top three,
// then historical favourites, the current and historical worst, and random
// middle stats to fill up.
func FocusWithHistory(singles []*AllocationPattern, h Hints, count int, src rng.Source) ([]string, FocusInfo) {
	ranked := rankSingles(singles)
	rankOf := func(id string) int { return slices.Index(ranked, id) + 1 }

	var sel []FocusSelection
	has := func(id string) bool {
		return slices.ContainsFunc(sel, func(s FocusSelection) bool { return s.StatID == id })
	}
	add := func(id, source string, capped bool) {
		if id == "" || rankOf(id) == 0 || has(id) || (capped && len(sel) >= count) {
			return
		}
		sel = append(sel, FocusSelection{StatID: id, Source: source, CurrentRank: rankOf(id)})
	}

	for i := 0; i < min(3, len(ranked)); i++ {
		add(ranked[i], SourceCurrentTop, false)
	}
	add(h.Top1, SourceHistoryTop1, false)
	add(h.Top2, SourceHistoryTop2, true)
	if len(ranked) > 0 {
		add(ranked[len(ranked)-1], SourceCurrentBottom, true)
	}
	add(h.Bottom1, SourceHistoryBottom, true)

	var middle []string
	if len(ranked) > 4 {
		for _, id := range ranked[3 : len(ranked)-1] {
			if !has(id) {
				middle = append(middle, id)
			}
		}
	}
	for len(sel) < count && len(middle) > 0 {
		i := src.IntN(len(middle))
		add(middle[i], SourceRandom, true)
		middle = slices.Delete(middle, i, i+1)
	}

	ids := make([]string, len(sel))
	for i, s := range sel {
		ids[i] = s.StatID
	}
	return ids, FocusInfo{Selections: sel, TotalStats: len(ranked)}
}
