package player

import (
	"testing"

	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

func TestPermanentStatsLevels(t *testing.T) {
	p := NewPermanentStats(sg.DefaultPermanentTable())

	if got := p.Level(sg.BaseAttack); got != 0 {
		t.Errorf("initial level = %d, want 0", got)
	}
	p.Upgrade(sg.BaseAttack)
	p.Upgrade(sg.BaseAttack)
	if got := p.Level(sg.BaseAttack); got != 2 {
		t.Errorf("level after two upgrades = %d, want 2", got)
	}

	p.SetLevel(sg.CritChance, -4)
	if got := p.Level(sg.CritChance); got != 0 {
		t.Errorf("negative level should clamp to 0, got %d", got)
	}
	p.SetLevel(sg.TimeExtend, 10)
	if got := p.TotalLevels(); got != 12 {
		t.Errorf("TotalLevels() = %d, want 12", got)
	}
}

func TestPermanentStatsEffects(t *testing.T) {
	p := NewPermanentStats(sg.DefaultPermanentTable())
	p.SetLevel(sg.BaseAttack, 5)
	p.SetLevel(sg.AttackPercent, 10)
	p.SetLevel(sg.TimeExtend, 20)
	p.SetLevel(sg.StartGold, 2)
	p.SetLevel(sg.StartKeyboard, 25)
	p.SetLevel(sg.CrystalFlat, 3)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"BaseAttack", p.BaseAttack(), 5},
		{"AttackPercent", p.AttackPercent(), 0.1},
		{"TimeExtend", p.TimeExtend(), 2},
		{"StartGold", float64(p.StartGold()), 100},
		{"StartKeyboardPower", float64(p.StartKeyboardPower()), 2},
		{"CrystalFlat", float64(p.CrystalFlat()), 3},
		{"CritChanceBonus", p.CritChanceBonus(), 0},
	}
	for _, tt := range tests {
		if diff := tt.got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestStartGoldBonuses(t *testing.T) {
	p := NewPermanentStats(sg.DefaultPermanentTable())
	p.SetLevel(sg.StartGold, 2)       // 100
	p.SetLevel(sg.StartGoldFlat, 4)   // +100
	p.SetLevel(sg.StartGoldMulti, 50) // +50%
	if got := p.StartGold(); got != 300 {
		t.Errorf("StartGold() = %d, want 300", got)
	}
}

func TestUnknownTableFallsBackToLevel(t *testing.T) {
	p := NewPermanentStats(sg.NewTable(nil))
	p.SetLevel(sg.BaseAttack, 4)
	if got := p.BaseAttack(); got != 4 {
		t.Errorf("BaseAttack() with empty table = %v, want raw level 4", got)
	}
}

func TestEffectsNeverNegative(t *testing.T) {
	table := sg.NewTable(map[string]sg.Config{
		sg.BaseAttack: {BaseCost: 1, Multiplier: 1, EffectPerLevel: -3},
	})
	p := NewPermanentStats(table)
	p.SetLevel(sg.BaseAttack, 2)
	if got := p.BaseAttack(); got != 0 {
		t.Errorf("BaseAttack() = %v, want 0", got)
	}
}

func TestCloneSharesTable(t *testing.T) {
	table := sg.DefaultPermanentTable()
	p := NewPermanentStats(table)
	p.SetLevel(sg.MultiHit, 3)

	c := p.Clone()
	if c.Table() != table {
		t.Error("clone should share the original table handle")
	}

	c.Upgrade(sg.MultiHit)
	if p.Level(sg.MultiHit) != 3 {
		t.Errorf("mutating clone changed original: %d", p.Level(sg.MultiHit))
	}
	if c.Level(sg.MultiHit) != 4 {
		t.Errorf("clone level = %d, want 4", c.Level(sg.MultiHit))
	}
}

func TestUpgradeDiscountCapped(t *testing.T) {
	table := sg.NewTable(map[string]sg.Config{
		sg.UpgradeDiscount: {BaseCost: 1, Multiplier: 1, EffectPerLevel: 0.5},
	})
	p := NewPermanentStats(table)
	p.SetLevel(sg.UpgradeDiscount, 10)
	if got := p.UpgradeDiscount(); got != 0.9 {
		t.Errorf("UpgradeDiscount() = %v, want 0.9", got)
	}
}

func TestInGameStats(t *testing.T) {
	var s InGameStats
	if !s.Upgrade(sg.KeyboardPower) {
		t.Fatal("Upgrade(keyboard_power) returned false")
	}
	s.Upgrade(sg.MousePower)
	s.Upgrade(sg.MousePower)
	if s.Upgrade("bogus") {
		t.Error("Upgrade(bogus) should return false")
	}

	c := s.Clone()
	if c.Level(sg.KeyboardPower) != 1 || c.Level(sg.MousePower) != 2 {
		t.Errorf("clone = %+v", c)
	}

	s.Reset()
	if s.KeyboardPower != 0 || s.MousePower != 0 {
		t.Errorf("Reset() left %+v", s)
	}
	if c.MousePower != 2 {
		t.Error("Reset() affected the clone")
	}
}

func TestLifetimeStatistics(t *testing.T) {
	s := NewLifetimeStatistics()
	s.RecordSession(30)
	s.RecordSession(31.5)
	s.RecordKills(12, 1)
	s.RecordStageReached(13)
	s.RecordStageReached(9)
	s.RecordGoldEarned(250)
	s.RecordDamageDealt(1000, 140)
	s.RecordCrystals(8, 12, 1)
	s.RecordUpgrade(15)

	if got := s.GetSessions(); got != 2 {
		t.Errorf("GetSessions() = %d, want 2", got)
	}
	if got := s.GetHighestStage(); got != 13 {
		t.Errorf("GetHighestStage() = %d, want 13", got)
	}
	if got := s.TotalCrystals(); got != 21 {
		t.Errorf("TotalCrystals() = %d, want 21", got)
	}

	restored := NewLifetimeStatistics()
	if err := restored.FromJSON(s.ToJSON()); err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if restored.PlayTimeSeconds != 61.5 || restored.UpgradesPurchased != 1 || restored.BossKills != 1 {
		t.Errorf("restored = %s", restored.ToJSON())
	}
	if err := restored.FromJSON(""); err != nil {
		t.Errorf("FromJSON(\"\") = %v, want nil", err)
	}
}
