package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
)

func runValidate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to simulator config YAML file")
	fs.Parse(args)

	a := setup(ctx, *configPath)
	defer a.close()

	fmt.Println("=== Configuration Check ===")
	fmt.Println()
	fmt.Printf("Config:          %s\n", *configPath)
	fmt.Printf("Permanent stats: %d\n", a.sim.PermanentTable().Len())
	fmt.Printf("In-game stats:   %d\n", a.sim.InGameTable().Len())
	fmt.Printf("Database:        %s\n", a.cfg.Database.Driver)
	fmt.Println()

	if err := a.cfg.Validate(); err != nil {
		fmt.Println("Problems:")
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Printf("  - %s\n", line)
		}
		return fmt.Errorf("configuration is invalid")
	}
	fmt.Println("OK")
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to simulator config YAML file")
	limit := fs.Int("limit", 10, "Rows per table (0 = all)")
	fs.Parse(args)

	a := setup(ctx, *configPath)
	defer a.close()

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	batches, err := st.ListBatches(ctx, *limit)
	if err != nil {
		return err
	}
	progressions, err := st.ListProgressions(ctx, *limit)
	if err != nil {
		return err
	}
	analyses, err := st.ListAnalyses(ctx, *limit)
	if err != nil {
		return err
	}

	const when = "2006-01-02 15:04"

	fmt.Println("=== Batches ===")
	fmt.Println()
	fmt.Println("ID                                   | Created          | Target | Runs  | Avg   | Success")
	fmt.Println("-------------------------------------|------------------|--------|-------|-------|--------")
	for _, b := range batches {
		fmt.Printf("%-36s | %s | %6d | %5d | %5.1f | %5.1f%%\n",
			b.ID, b.CreatedAt.Local().Format(when), b.TargetLevel, b.Completed, b.AverageLevel, b.SuccessRate*100)
	}
	fmt.Println()

	fmt.Println("=== Progressions ===")
	fmt.Println()
	fmt.Println("ID                                   | Created          | Strategy         | Target | Success | Sessions | Best")
	fmt.Println("-------------------------------------|------------------|------------------|--------|---------|----------|-----")
	for _, p := range progressions {
		ok := "no"
		if p.Success {
			ok = "yes"
		}
		fmt.Printf("%-36s | %s | %-16s | %6d | %-7s | %8d | %4d\n",
			p.ID, p.CreatedAt.Local().Format(when), p.Strategy, p.TargetLevel, ok, p.Attempts, p.BestLevel)
	}
	fmt.Println()

	fmt.Println("=== Analyses ===")
	fmt.Println()
	fmt.Println("ID                                   | Created          | Grade | Dominance | Diversity | Top stats")
	fmt.Println("-------------------------------------|------------------|-------|-----------|-----------|----------")
	for _, r := range analyses {
		fmt.Printf("%-36s | %s | %-5s | %9.2f | %9.2f | %s\n",
			r.ID, r.CreatedAt.Local().Format(when), r.Grade, r.Dominance, r.Diversity,
			strings.Join(r.TopStats[:min(3, len(r.TopStats))], ", "))
	}

	hints, err := st.HistoricalRecommendations(ctx)
	if err != nil {
		return err
	}
	if !hints.Empty() {
		fmt.Println()
		fmt.Printf("Next focus hints: top1=%s, top2=%s, bottom=%s\n", hints.Top1, hints.Top2, hints.Bottom1)
	}
	return nil
}
