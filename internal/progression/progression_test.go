package progression

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/deskwarrior/simulator/internal/session"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

func testRunner() *Runner {
	r := NewRunner(session.NewDefault())
	r.EvalIterations = 2
	return r
}

func baseRequest() Request {
	p := session.DefaultInputProfile()
	return Request{
		Profile:     p,
		TargetLevel: 1000,
		MaxSessions: 4,
		Strategy:    None,
		Seed:        77,
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in   string
		want Strategy
	}{
		{"greedy", Greedy},
		{"damage_first", DamageFirst},
		{"DamageFirst", DamageFirst},
		{"survival-first", SurvivalFirst},
		{"crystal_farm", CrystalFarm},
		{"Balanced", Balanced},
		{"simulation_based", SimulationBased},
		{"none", None},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseStrategy("yolo"); err == nil {
		t.Error("expected error for unknown strategy")
	}
	for _, s := range Strategies() {
		back, err := ParseStrategy(s.String())
		if err != nil || back != s {
			t.Errorf("round trip %v -> %v, %v", s, back, err)
		}
	}
}

func TestRunInvalidInput(t *testing.T) {
	r := testRunner()
	req := baseRequest()

	req.TargetLevel = 0
	if _, err := r.Run(context.Background(), req); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("target 0: err = %v", err)
	}
	req.TargetLevel = 10
	req.MaxSessions = -1
	if _, err := r.Run(context.Background(), req); !errors.Is(err, ErrInvalidMaxSessions) {
		t.Errorf("negative max sessions: err = %v", err)
	}
	if _, err := r.RunForDuration(context.Background(), baseRequest(), 0); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("zero hours: err = %v", err)
	}
}

func TestRunFailureUsesBestLevel(t *testing.T) {
	res, err := testRunner().Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Error("unreachable target reported success")
	}
	if res.AttemptsNeeded != 4 || len(res.Sessions) != 4 {
		t.Errorf("AttemptsNeeded = %d, sessions = %d, want 4", res.AttemptsNeeded, len(res.Sessions))
	}
	if res.FinalMaxLevel != res.BestLevelEver {
		t.Errorf("FinalMaxLevel = %d, BestLevelEver = %d", res.FinalMaxLevel, res.BestLevelEver)
	}
	if len(res.Upgrades) != 0 || res.TotalCrystalsSpent != 0 {
		t.Errorf("strategy none bought %d upgrades", len(res.Upgrades))
	}
	if res.CrystalBalance != res.TotalCrystalsEarned {
		t.Errorf("CrystalBalance = %d, earned = %d", res.CrystalBalance, res.TotalCrystalsEarned)
	}
	if res.Lifetime.GetSessions() != 4 {
		t.Errorf("lifetime sessions = %d", res.Lifetime.GetSessions())
	}
}

func TestRunSucceedsOnFirstSession(t *testing.T) {
	r := testRunner()
	req := baseRequest()
	req.TargetLevel = 2
	initial := r.Sim.NewStats()
	initial.SetLevel(sg.BaseAttack, 10)
	req.Initial = initial

	res, err := r.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.AttemptsNeeded != 1 {
		t.Fatalf("Success = %v, AttemptsNeeded = %d", res.Success, res.AttemptsNeeded)
	}
	if res.FinalMaxLevel < 2 {
		t.Errorf("FinalMaxLevel = %d", res.FinalMaxLevel)
	}
	if initial.Level(sg.BaseAttack) != 10 {
		t.Error("run mutated the initial stats")
	}
}

func TestGreedyAccounting(t *testing.T) {
	r := testRunner()
	req := baseRequest()
	req.Strategy = Greedy
	req.MaxSessions = 6
	initial := r.Sim.NewStats()
	initial.SetLevel(sg.BaseAttack, 15)
	req.Initial = initial

	res, err := r.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	var spent int64
	levels := 0
	for _, u := range res.Upgrades {
		if u.ToLevel != u.FromLevel+1 {
			t.Errorf("upgrade %+v skips levels", u)
		}
		spent += u.Cost
		levels++
	}
	if spent != res.TotalCrystalsSpent {
		t.Errorf("sum of costs = %d, TotalCrystalsSpent = %d", spent, res.TotalCrystalsSpent)
	}
	if res.CrystalBalance != res.TotalCrystalsEarned-res.TotalCrystalsSpent {
		t.Errorf("balance %d != earned %d - spent %d", res.CrystalBalance, res.TotalCrystalsEarned, res.TotalCrystalsSpent)
	}
	if res.CrystalBalance < 0 {
		t.Errorf("negative balance %d", res.CrystalBalance)
	}
	total := 0
	for _, l := range res.FinalLevels {
		total += l
	}
	if total != 15+levels {
		t.Errorf("final levels sum = %d, want %d", total, 15+levels)
	}
}

func TestPrioritySpendOrder(t *testing.T) {
	r := testRunner()
	req := baseRequest()
	req.Strategy = DamageFirst

	st := r.newRun(req)
	st.crystals = 1000
	st.spend(context.Background(), 1)

	ups := st.res.Upgrades
	if len(ups) < 15 {
		t.Fatalf("got %d upgrades, want at least 15", len(ups))
	}
	for i, id := range damageStats {
		for j := 0; j < maxLevelsPerStat; j++ {
			if got := ups[i*maxLevelsPerStat+j].StatID; got != id {
				t.Errorf("upgrade %d = %s, want %s", i*maxLevelsPerStat+j, got, id)
			}
		}
	}
	if st.crystals < 0 {
		t.Errorf("crystals = %d", st.crystals)
	}
}

func TestBalancedRotatesGroups(t *testing.T) {
	r := testRunner()
	req := baseRequest()
	req.Strategy = Balanced

	st := r.newRun(req)
	st.crystals = 1000
	st.spend(context.Background(), 1)

	want := []string{
		sg.CritChance, sg.CritChance, sg.CritChance,
		sg.CritDamage, sg.CritDamage, sg.CritDamage,
		sg.MultiHit, sg.MultiHit, sg.MultiHit,
	}
	ups := st.res.Upgrades
	if len(ups) < len(want) {
		t.Fatalf("got %d upgrades", len(ups))
	}
	for i, id := range want {
		if ups[i].StatID != id {
			t.Errorf("upgrade %d = %s, want %s", i, ups[i].StatID, id)
		}
	}
}

func TestSimulationBasedDeterministic(t *testing.T) {
	r := testRunner()
	req := baseRequest()
	req.Strategy = SimulationBased

	spend := func() []UpgradeRecord {
		st := r.newRun(req)
		st.crystals = 60
		st.spend(context.Background(), 1)
		return st.res.Upgrades
	}
	a, b := spend(), spend()
	if len(a) == 0 {
		t.Fatal("simulation-based strategy bought nothing with 60 crystals")
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("non-deterministic picks:\n%+v\n%+v", a, b)
	}
}

func TestRunDeterministic(t *testing.T) {
	r := testRunner()
	req := baseRequest()
	req.Strategy = Greedy
	a, _ := r.Run(context.Background(), req)
	b, _ := r.Run(context.Background(), req)
	if !reflect.DeepEqual(a.Sessions, b.Sessions) || !reflect.DeepEqual(a.Upgrades, b.Upgrades) {
		t.Error("same seed produced different runs")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	req := baseRequest()
	req.MaxSessions = 50
	req.OnSession = func(rec SessionRecord, limit int) {
		if rec.Number == 3 {
			cancel()
		}
	}

	res, err := testRunner().Run(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cancelled || res.AttemptsNeeded != 3 {
		t.Errorf("Cancelled = %v, AttemptsNeeded = %d", res.Cancelled, res.AttemptsNeeded)
	}
}

func TestRunForDuration(t *testing.T) {
	res, err := testRunner().RunForDuration(context.Background(), baseRequest(), 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Error("duration run should succeed")
	}
	if res.TotalGameTimeSeconds < 180 || res.TotalGameTimeSeconds > 240 {
		t.Errorf("TotalGameTimeSeconds = %v", res.TotalGameTimeSeconds)
	}
	last := res.Sessions[len(res.Sessions)-1]
	if res.FinalMaxLevel != last.MaxLevel {
		t.Errorf("FinalMaxLevel = %d, last session = %d", res.FinalMaxLevel, last.MaxLevel)
	}
	if last.CumulativeTime != res.TotalGameTimeSeconds {
		t.Errorf("CumulativeTime = %v", last.CumulativeTime)
	}
}

func TestCompareKeepsOrder(t *testing.T) {
	req := baseRequest()
	req.MaxSessions = 2
	order := []Strategy{None, Greedy, CrystalFarm}

	results, err := testRunner().Compare(context.Background(), req, order)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range order {
		if results[i].Strategy != s {
			t.Errorf("results[%d].Strategy = %v, want %v", i, results[i].Strategy, s)
		}
	}

	req.TargetLevel = 0
	if _, err := testRunner().Compare(context.Background(), req, order); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("Compare with bad target: err = %v", err)
	}
}
