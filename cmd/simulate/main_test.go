package main

import (
	"flag"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/deskwarrior/simulator/internal/progression"
	"github.com/deskwarrior/simulator/internal/session"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

func TestStatLevelsSet(t *testing.T) {
	s := statLevels{}
	if err := s.Set("base_attack=12"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("crit_chance=3"); err != nil {
		t.Fatal(err)
	}
	if s.String() != "base_attack=12,crit_chance=3" {
		t.Errorf("String() = %q", s.String())
	}
	for _, bad := range []string{"base_attack", "=3", "base_attack=x", "base_attack=-1"} {
		if err := s.Set(bad); err == nil {
			t.Errorf("Set(%q) should fail", bad)
		}
	}
}

func TestStatLevelsBuild(t *testing.T) {
	sim := session.NewDefault()
	stats, err := statLevels{sg.BaseAttack: 7}.build(sim)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Level(sg.BaseAttack) != 7 {
		t.Errorf("base_attack = %d", stats.Level(sg.BaseAttack))
	}
	if _, err := (statLevels{"no_such_stat": 1}).build(sim); err == nil {
		t.Error("expected unknown stat error")
	}
}

func TestLoadStatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	if err := os.WriteFile(path, []byte(`{"base_attack": 4, "crit_chance": 2}`), 0644); err != nil {
		t.Fatal(err)
	}
	s := statLevels{sg.BaseAttack: 9}
	if err := s.loadStatsFile(path); err != nil {
		t.Fatal(err)
	}
	if s[sg.BaseAttack] != 9 || s[sg.CritChance] != 2 {
		t.Errorf("levels = %v, command line value should win", s)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"base_attack": "high"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := (statLevels{}).loadStatsFile(bad); err == nil {
		t.Error("expected error for non-numeric level")
	}
}

func TestPlayerFlagsKeepConfiguredProfile(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	pf := addPlayerFlags(fs)
	if err := fs.Parse([]string{"-combo=expert"}); err != nil {
		t.Fatal(err)
	}

	base := session.DefaultInputProfile()
	base.AverageCPS = 9
	prof, err := pf.profile(base)
	if err != nil {
		t.Fatal(err)
	}
	if prof.AverageCPS != 9 {
		t.Errorf("AverageCPS = %v, want configured 9", prof.AverageCPS)
	}
	if prof.Combo != session.ComboExpert {
		t.Errorf("Combo = %v, want expert", prof.Combo)
	}
}

func TestPlayerFlagsRejectBadProfile(t *testing.T) {
	for _, args := range [][]string{{"-cps=0"}, {"-mouse=1.5"}, {"-combo=godlike"}} {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		pf := addPlayerFlags(fs)
		if err := fs.Parse(args); err != nil {
			t.Fatal(err)
		}
		if _, err := pf.profile(session.DefaultInputProfile()); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestBestStrategy(t *testing.T) {
	results := []*progression.Result{
		{Strategy: progression.Greedy, Success: true, AttemptsNeeded: 12, BestLevelEver: 50},
		{Strategy: progression.Balanced, Success: true, AttemptsNeeded: 9, BestLevelEver: 50},
		{Strategy: progression.DamageFirst, Success: true, AttemptsNeeded: 9, BestLevelEver: 53},
		{Strategy: progression.None, Success: false, AttemptsNeeded: 0},
	}
	if got := bestStrategy(results); got == nil || got.Strategy != progression.DamageFirst {
		t.Errorf("bestStrategy = %+v", got)
	}
	if bestStrategy(results[3:]) != nil {
		t.Error("no successful run should give nil")
	}
}

func TestStageStep(t *testing.T) {
	var got []int
	for stage := 1; stage <= 30; stage += stageStep(stage, 10) {
		got = append(got, stage)
	}
	want := []int{1, 10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("stages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stages = %v, want %v", got, want)
		}
	}
}

func TestCPSFormat(t *testing.T) {
	if cps(math.Inf(1)) != "-" || cps(2.5) != "2.50" {
		t.Errorf("cps formatting: %q %q", cps(math.Inf(1)), cps(2.5))
	}
}
