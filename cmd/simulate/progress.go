package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/deskwarrior/simulator/internal/logger"
	"github.com/deskwarrior/simulator/internal/progression"
)

func runProgress(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to simulator config YAML file")
	strategyName := fs.String("strategy", "", "Spending strategy (default from config)")
	target := fs.Int("target", 0, "Target level (default from config)")
	maxSessions := fs.Int("max-sessions", -1, "Session cap, 0 = unlimited (default from config)")
	hours := fs.Float64("hours", 0, "Play for this many hours of game time instead of towards a target")
	compare := fs.Bool("compare", false, "Run every strategy and compare them")
	seed := fs.Uint64("seed", 0, "Seed (0 = config or random)")
	verbose := fs.Bool("verbose", false, "Print every session and upgrade")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	save := fs.Bool("save", false, "Store the result in the database")
	pf := addPlayerFlags(fs)
	fs.Parse(args)

	a := setup(ctx, *configPath)
	defer a.close()

	if *strategyName == "" {
		*strategyName = a.cfg.Progression.Strategy
	}
	strategy, err := progression.ParseStrategy(*strategyName)
	if err != nil {
		return err
	}
	if *target <= 0 {
		*target = a.cfg.Batch.TargetLevel
	}
	if *maxSessions < 0 {
		*maxSessions = a.cfg.Progression.MaxSessions
	}
	profile, err := pf.profile(a.cfg.Profile)
	if err != nil {
		return err
	}
	initial, err := pf.stats(a.sim)
	if err != nil {
		return err
	}
	s, err := a.seed(*seed)
	if err != nil {
		return err
	}

	runner := progression.NewRunner(a.sim)
	runner.EvalIterations = a.cfg.Analyzer.SimulationsPerPattern
	runner.EvalWorkers = a.cfg.Batch.Workers

	req := progression.Request{
		Initial:     initial,
		Profile:     profile,
		TargetLevel: *target,
		MaxSessions: *maxSessions,
		Strategy:    strategy,
		Seed:        s,
	}
	if !*asJSON && !*compare {
		if *verbose {
			req.OnSession = func(rec progression.SessionRecord, _ int) {
				fmt.Fprintf(os.Stderr, "Session %d: level %d, +%d crystals (%d -> %d)\n",
					rec.Number, rec.MaxLevel, rec.CrystalsEarned, rec.CrystalsBefore, rec.CrystalsAfter)
			}
		} else {
			req.OnSession = func(rec progression.SessionRecord, limit int) {
				if limit > 0 && (rec.Number%10 == 0 || rec.Number == limit) {
					fmt.Fprintf(os.Stderr, "\rSessions: %d/%d", rec.Number, limit)
				}
			}
		}
	}

	var results []*progression.Result
	switch {
	case *compare:
		logger.Info("Comparing strategies", "target", *target, "seed", s)
		results, err = runner.Compare(ctx, req, progression.Strategies())
	case *hours > 0:
		logger.Info("Starting timed progression", "strategy", strategy, "hours", *hours, "seed", s)
		var res *progression.Result
		res, err = runner.RunForDuration(ctx, req, *hours)
		results = []*progression.Result{res}
	default:
		logger.Info("Starting progression", "strategy", strategy, "target", *target, "seed", s)
		var res *progression.Result
		res, err = runner.Run(ctx, req)
		results = []*progression.Result{res}
	}
	if req.OnSession != nil && !*verbose {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	if *save {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		for _, res := range results {
			if err := st.SaveProgression(context.WithoutCancel(ctx), res); err != nil {
				return err
			}
			logger.Info("Progression saved", "id", res.ID, "strategy", res.Strategy)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if *compare {
			return enc.Encode(results)
		}
		return enc.Encode(results[0])
	}

	if *compare {
		printComparison(results)
		return nil
	}
	printProgression(results[0], *hours, *verbose)
	return nil
}

func printProgression(res *progression.Result, hours float64, verbose bool) {
	fmt.Println("=== Progression Simulation ===")
	fmt.Println()
	if hours > 0 {
		fmt.Printf("Strategy: %s, Game time: %.1f hours\n", res.Strategy, hours)
	} else {
		fmt.Printf("Strategy: %s, Target: %d\n", res.Strategy, res.TargetLevel)
	}
	if res.Cancelled {
		fmt.Println("(interrupted, partial result)")
	}
	fmt.Println()

	fmt.Println("Results:")
	if hours <= 0 {
		if res.Success {
			fmt.Printf("  Target reached after %d sessions\n", res.AttemptsNeeded)
		} else {
			fmt.Printf("  Target not reached in %d sessions\n", len(res.Sessions))
		}
	}
	fmt.Printf("  Final level:   %d (best %d)\n", res.FinalMaxLevel, res.BestLevelEver)
	fmt.Printf("  Crystals:      %d earned, %d spent, %d left\n",
		res.TotalCrystalsEarned, res.TotalCrystalsSpent, res.CrystalBalance)
	fmt.Printf("  Game time:     %.1f hours\n", res.TotalGameTimeSeconds/3600)
	fmt.Printf("  Upgrades:      %d\n", len(res.Upgrades))
	fmt.Println()

	if verbose && len(res.Sessions) > 0 {
		fmt.Println("Session | Level | Earned | Before | After | Duration")
		fmt.Println("--------|-------|--------|--------|-------|---------")
		for _, s := range res.Sessions {
			fmt.Printf("%7d | %5d | %6d | %6d | %5d | %7.1fs\n",
				s.Number, s.MaxLevel, s.CrystalsEarned, s.CrystalsBefore, s.CrystalsAfter, s.DurationSeconds)
		}
		fmt.Println()
	}

	if len(res.FinalLevels) > 0 {
		ids := make([]string, 0, len(res.FinalLevels))
		for id, lvl := range res.FinalLevels {
			if lvl > 0 {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool {
			if res.FinalLevels[ids[i]] != res.FinalLevels[ids[j]] {
				return res.FinalLevels[ids[i]] > res.FinalLevels[ids[j]]
			}
			return ids[i] < ids[j]
		})
		fmt.Println("Final Stats:")
		for _, id := range ids {
			fmt.Printf("  %-20s %d\n", id, res.FinalLevels[id])
		}
	}
}

func printComparison(results []*progression.Result) {
	fmt.Println("=== Strategy Comparison ===")
	fmt.Println()
	fmt.Println("Strategy         | Success | Sessions | Best | Earned | Spent | Hours")
	fmt.Println("-----------------|---------|----------|------|--------|-------|------")
	for _, res := range results {
		ok := "no"
		if res.Success {
			ok = "yes"
		}
		fmt.Printf("%-16s | %-7s | %8d | %4d | %6d | %5d | %5.1f\n",
			res.Strategy, ok, len(res.Sessions), res.BestLevelEver,
			res.TotalCrystalsEarned, res.TotalCrystalsSpent, res.TotalGameTimeSeconds/3600)
	}
	fmt.Println()

	best := bestStrategy(results)
	if best != nil {
		fmt.Printf("Fastest: %s (%d sessions)\n", best.Strategy, best.AttemptsNeeded)
	} else {
		fmt.Println("No strategy reached the target.")
	}
}

// bestStrategy is the successful result with the fewest sessions; ties go
// to the higher best level.
func bestStrategy(results []*progression.Result) *progression.Result {
	var best *progression.Result
	for _, res := range results {
		if !res.Success {
			continue
		}
		if best == nil || res.AttemptsNeeded < best.AttemptsNeeded ||
			res.AttemptsNeeded == best.AttemptsNeeded && res.BestLevelEver > best.BestLevelEver {
			best = res
		}
	}
	return best
}
