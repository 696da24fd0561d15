package main

import (
	"context"
	"flag"
	"fmt"
	"math"

	"github.com/deskwarrior/simulator/internal/formula"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

var costLevels = []int{1, 5, 10, 25, 50}

func runFormulas(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("formulas", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to simulator config YAML file")
	stages := fs.Int("stages", 100, "Last stage to print")
	step := fs.Int("step", 10, "Stage step")
	pf := addPlayerFlags(fs)
	fs.Parse(args)

	if *stages < 1 || *step < 1 {
		return fmt.Errorf("stages and step must be positive")
	}

	a := setup(ctx, *configPath)
	defer a.close()

	stats, err := pf.stats(a.sim)
	if err != nil {
		return err
	}
	basePower := 1 + a.sim.InGameTable().Effect(sg.KeyboardPower, stats.StartKeyboardPower())
	damage := float64(formula.Damage(basePower, stats.BaseAttack(), stats.AttackPercent(), 1, 1, 1))
	limit := formula.EffectiveTimeLimit(stats.TimeExtend())
	interval := a.cfg.Balance.UpgradeCostInterval

	fmt.Println("=== Stage Curves ===")
	fmt.Println()
	fmt.Printf("Damage per input: %.0f, Time limit: %.0fs\n", damage, limit)
	fmt.Println()
	fmt.Println("Stage | Monster HP      | Boss HP         | Gold     | Cost x | Req CPS  | Boss CPS")
	fmt.Println("------|-----------------|-----------------|----------|--------|----------|---------")
	for stage := 1; stage <= *stages; stage += stageStep(stage, *step) {
		hp := formula.MonsterHP(stage)
		boss := formula.BossHP(stage)
		fmt.Printf("%5d | %15d | %15d | %8d | %6.0f | %8s | %8s\n",
			stage, hp, boss, formula.BaseGold(stage), formula.StageCostMultiplier(stage, interval),
			cps(formula.RequiredCPS(float64(hp), damage, limit)),
			cps(formula.RequiredCPS(float64(boss), damage, limit)))
	}
	fmt.Println()

	ref := a.cfg.Balance.ReferenceBossHPMultiplier
	fmt.Println("=== Boss HP Multiplier ===")
	fmt.Println()
	fmt.Printf("Simulated: %.1fx, Reference: %.1fx\n", formula.BossHPMulti, ref)
	if ref > 0 && ref != formula.BossHPMulti {
		fmt.Printf("Bosses are %.0f%% tougher than the reference sheet assumes.\n",
			(formula.BossHPMulti/ref-1)*100)
	}
	fmt.Println()

	table := a.sim.PermanentTable()
	fmt.Println("=== Permanent Upgrade Costs ===")
	fmt.Println()
	fmt.Printf("%-20s", "Stat")
	for _, lvl := range costLevels {
		fmt.Printf(" | %10s", fmt.Sprintf("L%d", lvl))
	}
	fmt.Println()
	for _, id := range table.IDs() {
		fmt.Printf("%-20s", id)
		for _, lvl := range costLevels {
			c := table.Cost(id, lvl)
			if c == sg.Blocked {
				fmt.Printf(" | %10s", "max")
			} else {
				fmt.Printf(" | %10d", c)
			}
		}
		fmt.Println()
	}
	return nil
}

// stageStep prints stage 1 and then every multiple of step.
func stageStep(stage, step int) int {
	if stage == 1 && step > 1 {
		return step - 1
	}
	return step
}

func cps(v float64) string {
	if math.IsInf(v, 1) || v > 1e6 {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
