package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/deskwarrior/simulator/internal/batch"
	"github.com/deskwarrior/simulator/internal/logger"
)

func runBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to simulator config YAML file")
	runs := fs.Int("runs", 0, "Number of sessions (default from config)")
	target := fs.Int("target", 0, "Target level (default from config)")
	workers := fs.Int("workers", 0, "Worker goroutines (default from config, 0 = every CPU)")
	seed := fs.Uint64("seed", 0, "Master seed (0 = config or random)")
	width := fs.Int("bucket", 5, "Histogram bucket width in levels")
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	save := fs.Bool("save", false, "Store the result in the database")
	pf := addPlayerFlags(fs)
	fs.Parse(args)

	a := setup(ctx, *configPath)
	defer a.close()

	if *runs <= 0 {
		*runs = a.cfg.Batch.Runs
	}
	if *target <= 0 {
		*target = a.cfg.Batch.TargetLevel
	}
	if *workers <= 0 {
		*workers = a.cfg.Batch.Workers
	}
	profile, err := pf.profile(a.cfg.Profile)
	if err != nil {
		return err
	}
	stats, err := pf.stats(a.sim)
	if err != nil {
		return err
	}
	master, err := a.seed(*seed)
	if err != nil {
		return err
	}

	logger.Info("Starting batch", "runs", *runs, "target", *target, "seed", master)

	req := batch.Request{
		Stats:       stats,
		Profile:     profile,
		Iterations:  *runs,
		TargetLevel: *target,
		MasterSeed:  master,
	}
	if !*asJSON {
		req.OnProgress = progressPrinter("Sessions")
	}
	res, err := batch.NewRunner(a.sim, *workers).Run(ctx, req)
	if err != nil {
		return err
	}
	if res.Cancelled {
		logger.Warning("Batch interrupted", "completed", res.Completed, "requested", res.Requested)
	}

	if *save {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveBatch(context.WithoutCancel(ctx), res); err != nil {
			return err
		}
		logger.Info("Batch saved", "id", res.ID)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Println("=== Batch Simulation ===")
	fmt.Println()
	fmt.Printf("Profile: %.1f CPS (±%.0f%%), combo %s, mouse %.0f%%, auto-upgrade %v\n",
		profile.AverageCPS, profile.CPSVariance*100, profile.Combo, profile.MouseRatio*100, profile.AutoUpgrade)
	if len(pf.levels) > 0 {
		fmt.Printf("Stats:   %s\n", pf.levels)
	}
	fmt.Printf("Runs: %d/%d, Target: %d, Seed: %d\n", res.Completed, res.Requested, res.TargetLevel, res.MasterSeed)
	if res.Cancelled {
		fmt.Println("(interrupted, partial result)")
	}
	fmt.Println()
	printBatchResult(res, *width)
	if *save {
		fmt.Printf("\nSaved as %s\n", res.ID)
	}
	return nil
}

func printBatchResult(res *batch.Result, width int) {
	fmt.Println("Level Distribution:")
	for _, b := range res.Histogram(width) {
		label := fmt.Sprintf("%d-%d", b.Low, b.High)
		if b.Low == b.High {
			label = fmt.Sprintf("%d", b.Low)
		}
		bar := strings.Repeat("#", int(b.Fraction*50+0.5))
		fmt.Printf("  %-9s | %6d | %5.1f%% %s\n", label, b.Count, b.Fraction*100, bar)
	}
	fmt.Println()

	fmt.Println("Results:")
	fmt.Printf("  Level:      avg %.1f, median %.1f, min %d, max %d, stddev %.2f\n",
		res.AverageLevel, res.MedianLevel, res.MinLevel, res.MaxLevel, res.StdDev)
	fmt.Printf("  Target:     %d/%d reached (%.1f%%)\n", res.Successes, res.Completed, res.SuccessRate*100)
	if res.MedianAttemptsToTarget.Reachable() {
		fmt.Printf("  Attempts:   ~%.0f sessions to reach level %d\n", float64(res.MedianAttemptsToTarget), res.TargetLevel)
	} else {
		fmt.Printf("  Attempts:   level %d not reached\n", res.TargetLevel)
	}
	fmt.Printf("  Duration:   %.1fs per session\n", res.AverageDuration)
	fmt.Printf("  Kills:      %.1f, Gold: %.0f\n", res.AverageKills, res.AverageGold)
	fmt.Printf("  Crystals:   %.1f (bosses %.1f, stages %.1f, gold %.1f)\n",
		res.AverageCrystals, res.AverageCrystalsFromBosses, res.AverageCrystalsFromStages, res.AverageCrystalsFromGold)
}
