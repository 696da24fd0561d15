package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/deskwarrior/simulator/internal/session"
)

func runDebug(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("debug", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to simulator config YAML file")
	seed := fs.Uint64("seed", 0, "Session seed (0 = config or random)")
	kills := fs.Bool("kills", false, "Also print regular monster kills")
	pf := addPlayerFlags(fs)
	fs.Parse(args)

	a := setup(ctx, *configPath)
	defer a.close()

	profile, err := pf.profile(a.cfg.Profile)
	if err != nil {
		return err
	}
	stats, err := pf.stats(a.sim)
	if err != nil {
		return err
	}
	s, err := a.seed(*seed)
	if err != nil {
		return err
	}

	fmt.Println("=== Debug Session ===")
	fmt.Println()
	fmt.Printf("Seed: %d, %.1f CPS, combo %s\n", s, profile.AverageCPS, profile.Combo)
	fmt.Println()

	counts := map[session.EventKind]int{}
	res := a.sim.RunWithEvents(stats, profile, s, func(e session.Event) {
		counts[e.Kind]++
		if e.Kind == session.EventKill && !*kills {
			return
		}
		fmt.Println(formatEvent(e))
	})

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Ended:     %s at %.1fs\n", res.EndReason, res.Duration)
	fmt.Printf("  Level:     %d\n", res.MaxLevel)
	fmt.Printf("  Kills:     %d monsters, %d bosses\n", res.MonstersKilled, res.BossesKilled)
	fmt.Printf("  Inputs:    %d (%d keyboard, %d mouse), %d crits\n",
		res.TotalInputs, res.KeyboardInputs, res.MouseInputs, res.CriticalHits)
	fmt.Printf("  Damage:    %d\n", res.TotalDamage)
	fmt.Printf("  Gold:      %d earned, %d left\n", res.TotalGold, res.FinalGold)
	fmt.Printf("  Upgrades:  %d\n", res.InGameUpgrades)
	fmt.Printf("  Crystals:  %d (bosses %d, stages %d, gold %d)\n",
		res.TotalCrystals(), res.CrystalsFromBosses, res.CrystalsFromStages, res.CrystalsFromGoldConvert)
	fmt.Printf("  Events:    %d kills, %d boss kills, %d drops, %d upgrades\n",
		counts[session.EventKill], counts[session.EventBossKill], counts[session.EventDrop], counts[session.EventUpgrade])
	return nil
}

func formatEvent(e session.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%6.2fs] stage %-4d %-13s", e.Time, e.Stage, e.Kind)
	switch e.Kind {
	case session.EventKill, session.EventBossKill:
		fmt.Fprintf(&b, " +%d gold (total %d)", e.Amount, e.Gold)
	case session.EventDrop:
		fmt.Fprintf(&b, " +%d crystals", e.Amount)
	case session.EventUpgrade:
		fmt.Fprintf(&b, " %s for %d gold (left %d)", e.Stat, e.Amount, e.Gold)
	case session.EventEnd:
		fmt.Fprintf(&b, " %d crystals, gold %d", e.Amount, e.Gold)
	}
	return b.String()
}
