package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deskwarrior/simulator/internal/pattern"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

func evaluated(id string, level float64, alloc map[string]float64) *pattern.AllocationPattern {
	p := pattern.NewNamedPattern(id, alloc)
	p.Result = &pattern.Result{AverageMaxLevel: level, SuccessRate: 0.5}
	return p
}

func sample(t *testing.T) (*pattern.Repository, *pattern.QualityResult) {
	t.Helper()
	repo := pattern.NewRepository()
	repo.AddRange([]*pattern.AllocationPattern{
		evaluated("single_base_attack", 12, map[string]float64{sg.BaseAttack: 1}),
		evaluated("single_crit_chance", 8, map[string]float64{sg.CritChance: 1}),
		evaluated("single_time_extend", 0, map[string]float64{sg.TimeExtend: 1}),
		evaluated("duo", 10, map[string]float64{sg.BaseAttack: 0.5, sg.GoldFlatPerm: 0.5}),
	})
	q, err := pattern.NewAnalyzer().Analyze(repo)
	if err != nil {
		t.Fatal(err)
	}
	return repo, q
}

func TestBuild(t *testing.T) {
	repo, q := sample(t)
	r := Build(Metadata{DurationSeconds: 3}, Config{Mode: "quick", SimulationsPerPattern: 10}, repo, q)

	if len(r.Metadata.ID) != 8 || r.Metadata.GeneratedAt.IsZero() || r.Metadata.Version != Version {
		t.Errorf("Metadata = %+v", r.Metadata)
	}
	if r.Metadata.PatternsEvaluated != 4 || r.Metadata.SimulationsRun != 40 {
		t.Errorf("PatternsEvaluated = %d, SimulationsRun = %d", r.Metadata.PatternsEvaluated, r.Metadata.SimulationsRun)
	}
	if r.Summary.Grade != string(q.Grade) || r.Summary.BestPatternLevel != 12 || r.Summary.WorstPatternLevel != 0 {
		t.Errorf("Summary = %+v", r.Summary)
	}
	if r.Summary.LevelSpread != 12 || r.Summary.AveragePatternLevel != 7.5 {
		t.Errorf("spread = %v, average = %v", r.Summary.LevelSpread, r.Summary.AveragePatternLevel)
	}

	if len(r.TopPatterns) != 4 || r.TopPatterns[1].PatternID != "duo" {
		t.Fatalf("TopPatterns = %+v", r.TopPatterns)
	}
	duo := r.TopPatterns[1]
	if duo.LevelDiffFromTop != -2 || duo.PrimaryCategory != sg.CategoryBaseStats && duo.PrimaryCategory != sg.CategoryCurrencyBonus {
		t.Errorf("duo detail = %+v", duo)
	}

	if len(r.Categories) != len(sg.CategoryOrder) {
		t.Errorf("%d categories", len(r.Categories))
	}
	for i := 1; i < len(r.Categories); i++ {
		if r.Categories[i].UsageRate > r.Categories[i-1].UsageRate {
			t.Errorf("categories not sorted by usage: %+v", r.Categories)
		}
	}

	if len(r.Stats) != 3 {
		t.Fatalf("Stats = %+v", r.Stats)
	}
	if r.Stats[0].StatID != sg.BaseAttack || r.Stats[0].Rating != "S" || r.Stats[0].Name != "Base Attack" {
		t.Errorf("first stat = %+v", r.Stats[0])
	}
	if last := r.Stats[2]; last.StatID != sg.TimeExtend || last.Rating != "F" {
		t.Errorf("last stat = %+v", last)
	}

	for i := 1; i < len(r.Recommendations); i++ {
		if priorityOrder[r.Recommendations[i].Priority] < priorityOrder[r.Recommendations[i-1].Priority] {
			t.Errorf("recommendations out of order: %+v", r.Recommendations)
		}
	}
}

func TestBuildKeepsGivenMetadata(t *testing.T) {
	repo, q := sample(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := Build(Metadata{ID: "fixed", GeneratedAt: at, SimulationsRun: 7}, Config{}, repo, q)
	if r.Metadata.ID != "fixed" || !r.Metadata.GeneratedAt.Equal(at) || r.Metadata.SimulationsRun != 7 {
		t.Errorf("Metadata = %+v", r.Metadata)
	}
}

func TestRating(t *testing.T) {
	tests := []struct {
		rank  int
		level float64
		want  string
	}{
		{1, 10, "S"},
		{3, 10, "S"},
		{4, 10, "A"},
		{10, 10, "B"},
		{14, 10, "C"},
		{15, 10, "D"},
		{1, 0, "F"},
	}
	for _, tt := range tests {
		if got := Rating(tt.rank, tt.level); got != tt.want {
			t.Errorf("Rating(%d, %v) = %s, want %s", tt.rank, tt.level, got, tt.want)
		}
	}
}

func TestStatName(t *testing.T) {
	if got := StatName("start_combo_damage"); got != "Start Combo Damage" {
		t.Errorf("StatName = %q", got)
	}
}

func TestWriters(t *testing.T) {
	repo, q := sample(t)
	r := Build(Metadata{}, Config{Mode: "full", TargetLevel: 50}, repo, q)

	var js bytes.Buffer
	if err := r.Write(&js, FormatJSON); err != nil {
		t.Fatal(err)
	}
	var decoded Report
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Summary.Grade != r.Summary.Grade || len(decoded.TopPatterns) != len(r.TopPatterns) {
		t.Errorf("JSON lost data: %+v", decoded.Summary)
	}

	var ym bytes.Buffer
	if err := r.Write(&ym, FormatYAML); err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(ym.Bytes(), &doc); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if _, ok := doc["summary"]; !ok {
		t.Errorf("YAML missing summary: %s", ym.String())
	}

	var md bytes.Buffer
	if err := r.Write(&md, FormatMarkdown); err != nil {
		t.Fatal(err)
	}
	out := md.String()
	for _, want := range []string{
		"# Balance Analysis Report",
		"### Balance Grade: **" + r.Summary.Grade + "**",
		"| Rank | Pattern ID | Avg Level | Success | Main Stats | Diff |",
		"| 1 | single_base_attack | 12.0 | 50% | base_attack | +0.0% |",
		"## Recommendations",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "YML": FormatYAML, "markdown": FormatMarkdown, "md": FormatMarkdown} {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("expected error for pdf")
	}
}
