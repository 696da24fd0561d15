package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/deskwarrior/simulator/internal/batch"
	"github.com/deskwarrior/simulator/internal/logger"
	"github.com/deskwarrior/simulator/internal/pattern"
	"github.com/deskwarrior/simulator/internal/report"
	"github.com/deskwarrior/simulator/internal/store"
)

func runAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to simulator config YAML file")
	crystals := fs.Int64("crystals", 0, "Crystal budget to allocate (default from config)")
	quick := fs.Bool("quick", false, "Evaluate single-stat patterns only")
	runs := fs.Int("runs", 0, "Simulations per pattern (default from config)")
	target := fs.Int("target", 0, "Target level (default from config)")
	generations := fs.Int("generations", -1, "Genetic search generations (default from config)")
	population := fs.Int("population", 0, "Genetic search population (default from config)")
	seed := fs.Uint64("seed", 0, "Seed (0 = config or random)")
	formatName := fs.String("report", "md", "Report format: md, json or yaml")
	out := fs.String("out", "", "Write the report to this file instead of stdout")
	noHistory := fs.Bool("no-history", false, "Ignore earlier analyses when picking focus stats")
	noSave := fs.Bool("no-save", false, "Do not store the analysis")
	pf := addPlayerFlags(fs)
	fs.Parse(args)

	format, err := report.ParseFormat(*formatName)
	if err != nil {
		return err
	}

	a := setup(ctx, *configPath)
	defer a.close()

	ac := a.cfg.Analyzer
	if *crystals <= 0 {
		*crystals = ac.CrystalBudget
	}
	if *runs <= 0 {
		*runs = ac.SimulationsPerPattern
	}
	if *target <= 0 {
		*target = a.cfg.Batch.TargetLevel
	}
	if *generations < 0 {
		*generations = ac.Generations
	}
	if *population <= 0 {
		*population = ac.PopulationSize
	}
	profile, err := pf.profile(a.cfg.Profile)
	if err != nil {
		return err
	}
	base, err := pf.stats(a.sim)
	if err != nil {
		return err
	}
	s, err := a.seed(*seed)
	if err != nil {
		return err
	}

	var st *store.Store
	if !*noSave || !*noHistory && !*quick {
		if st, err = a.openStore(); err != nil {
			logger.Warning("Database unavailable, analysis history disabled", "error", err)
			st = nil
		} else {
			defer st.Close()
		}
	}

	req := pattern.Request{
		Base:        base,
		Profile:     profile,
		Budget:      *crystals,
		TargetLevel: *target,
	}
	if st != nil && !*noHistory && !*quick {
		if req.Hints, err = st.HistoricalRecommendations(ctx); err != nil {
			logger.Warning("Failed to read analysis history", "error", err)
		}
	}

	explorer := pattern.NewExplorer(batch.NewRunner(a.sim, a.cfg.Batch.Workers), s)
	explorer.SimulationsPerPattern = *runs
	explorer.Generations = *generations
	explorer.PopulationSize = *population
	explorer.OnProgress = func(p pattern.Progress) {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", phaseName(p.Phase), p.Message)
	}

	mode := "full"
	if *quick {
		mode = "quick"
	}
	logger.Info("Starting analysis", "mode", mode, "crystals", *crystals, "runs", *runs, "seed", s)

	started := time.Now()
	var ex *pattern.Exploration
	if *quick {
		ex, err = explorer.ExploreQuick(ctx, req)
	} else {
		ex, err = explorer.ExploreFull(ctx, req)
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) || ex == nil || ex.Repository.Len() == 0 {
			return err
		}
		logger.Warning("Analysis interrupted, reporting partial results", "patterns", ex.Repository.Len())
	}

	analyzer := pattern.NewAnalyzer()
	analyzer.DominanceThreshold = ac.DominanceThreshold
	analyzer.DiversityThreshold = ac.DiversityThreshold
	analyzer.CategoryUsageWarning = ac.CategoryUsageWarning
	analyzer.TopN = ac.TopN
	q, err := analyzer.Analyze(ex.Repository)
	if err != nil {
		return err
	}

	rec := store.NewAnalysisRecord(q, ex.Repository)
	rec.TargetLevel = *target
	rec.CPS = profile.AverageCPS
	rec.CrystalBudget = *crystals
	for _, sel := range ex.Focus.Selections {
		rec.FocusStats = append(rec.FocusStats, sel.StatID)
	}

	rep := report.Build(
		report.Metadata{
			ID:              rec.ID,
			GeneratedAt:     rec.CreatedAt,
			DurationSeconds: time.Since(started).Seconds(),
			SimulationsRun:  ex.Simulations,
		},
		report.Config{
			Mode:                  mode,
			TargetLevel:           *target,
			CPS:                   profile.AverageCPS,
			CrystalBudget:         *crystals,
			SimulationsPerPattern: *runs,
			GAGenerations:         gaSetting(*quick, *generations),
			GAPopulationSize:      gaSetting(*quick, *population),
			InitialStats:          pf.levels,
			Focus:                 ex.Focus.String(),
		},
		ex.Repository, q)

	if st != nil && !*noSave {
		if err := st.SaveAnalysis(context.WithoutCancel(ctx), rec, ex.Repository); err != nil {
			logger.Error("Failed to store analysis", "id", rec.ID, "error", err)
		} else {
			logger.Info("Analysis saved", "id", rec.ID, "grade", rec.Grade)
		}
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := rep.Write(w, format); err != nil {
		return err
	}
	if *out != "" {
		fmt.Printf("Grade %s, %d patterns, report written to %s\n", q.Grade, ex.Repository.Len(), *out)
	}
	return nil
}

func phaseName(phase int) string {
	switch phase {
	case pattern.PhaseGrid:
		return "grid"
	case pattern.PhaseGenetic:
		return "genetic"
	}
	return "phase"
}

func gaSetting(quick bool, v int) int {
	if quick {
		return 0
	}
	return v
}
