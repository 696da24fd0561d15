package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an output format for a report.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "md"
)

// ParseFormat accepts json, yaml/yml and md/markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// Extension is the file extension for the format, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// Write writes the report in format f.
func (r *Report) Write(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		return r.WriteJSON(w)
	case FormatYAML:
		return r.WriteYAML(w)
	case FormatMarkdown:
		return r.WriteMarkdown(w)
	}
	return fmt.Errorf("unknown report format %q", f)
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteYAML writes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

func pct(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func status(ok bool) string {
	if ok {
		return "OK"
	}
	return "WARN"
}

// WriteMarkdown writes a human-readable report.
func (r *Report) WriteMarkdown(w io.Writer) error {
	b := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		fmt.Fprintf(b, format+"\n", args...)
	}

	p("# Balance Analysis Report")
	p("")
	p("- Report: `%s` (v%s)", r.Metadata.ID, r.Metadata.Version)
	p("- Generated: %s", r.Metadata.GeneratedAt.Format("2006-01-02 15:04:05"))
	p("- Duration: %.1fs, %d patterns, %d simulations",
		r.Metadata.DurationSeconds, r.Metadata.PatternsEvaluated, r.Metadata.SimulationsRun)
	p("")

	c := r.Config
	p("## Analysis Configuration")
	p("")
	p("| Parameter | Value |")
	p("|-----------|-------|")
	p("| Mode | %s |", c.Mode)
	p("| Target Level | %d |", c.TargetLevel)
	p("| CPS | %.1f |", c.CPS)
	p("| Crystal Budget | %d |", c.CrystalBudget)
	p("| Simulations / Pattern | %d |", c.SimulationsPerPattern)
	if c.GAGenerations > 0 {
		p("| GA Generations | %d |", c.GAGenerations)
		p("| GA Population | %d |", c.GAPopulationSize)
	}
	if c.Focus != "" {
		p("| Focus Stats | %s |", c.Focus)
	}
	p("")

	s := r.Summary
	p("## Executive Summary")
	p("")
	p("### Balance Grade: **%s**", s.Grade)
	p("")
	p("> %s", s.GradeDescription)
	p("")
	p("| Metric | Value | Status |")
	p("|--------|-------|--------|")
	p("| Dominance Ratio | %.2f | %s |", s.DominanceRatio, status(!s.HasDominantRoute))
	p("| Diversity Score | %.2f | %s |", s.DiversityScore, status(s.DiversityScore >= 0.3))
	p("| Top-3 Similarity | %.2f | %s |", s.TopPatternSimilarity, status(s.TopPatternSimilarity < 0.8))
	p("| Active Categories | %d/%d | %s |", s.ActiveCategories, s.TotalCategories, status(len(s.UnderusedCategories) < 2))
	p("")
	p("Best %.1f, worst %.1f, average %.1f, spread %.1f levels.",
		s.BestPatternLevel, s.WorstPatternLevel, s.AveragePatternLevel, s.LevelSpread)
	p("")

	p("## Top Patterns")
	p("")
	p("| Rank | Pattern ID | Avg Level | Success | Main Stats | Diff |")
	p("|------|------------|-----------|---------|------------|------|")
	for _, d := range r.TopPatterns[:min(10, len(r.TopPatterns))] {
		p("| %d | %s | %.1f | %s | %s | %+.1f%% |",
			d.Rank, d.PatternID, d.AverageLevel, pct(d.SuccessRate), strings.Join(d.MainStats, ", "), d.LevelDiffPercent)
	}
	p("")

	p("## Category Analysis")
	p("")
	p("| Category | Usage | Status | Best Pattern | Best Level |")
	p("|----------|-------|--------|--------------|------------|")
	for _, cat := range r.Categories {
		p("| %s | %s | %s | %s | %.1f |", cat.Name, pct(cat.UsageRate), cat.Status, cat.BestPattern, cat.BestLevel)
	}
	p("")

	if len(r.Stats) > 0 {
		p("## Stat Analysis")
		p("")
		p("| Rank | Stat | Category | Level | Rating | Top10 Usage | Status |")
		p("|------|------|----------|-------|--------|-------------|--------|")
		for _, st := range r.Stats {
			p("| %d | %s | %s | %.1f | %s | %s | %s |",
				st.Rank, st.Name, st.Category, st.SingleStatLevel, st.Rating, pct(st.UsageInTop), st.Status)
		}
		p("")
	}

	p("## Recommendations")
	p("")
	for i, rec := range r.Recommendations {
		p("%d. **[%s] %s** (%s): %s", i+1, rec.Priority, rec.Target, rec.Kind, rec.Issue)
		p("   - Suggestion: %s", rec.Suggestion)
		p("   - Expected impact: %s", rec.ExpectedImpact)
	}
	p("")

	p("## Grade Scale")
	p("")
	p("| Grade | Meaning |")
	p("|-------|---------|")
	p("| A | Excellent - Multiple viable routes, high diversity |")
	p("| B | Good - Minor dominance tendency |")
	p("| C | Moderate - Some paths underutilized |")
	p("| D | Poor - Significant path preference |")
	p("| F | Fail - Single dominant route detected |")

	return b.Flush()
}
