package session

import (
	"fmt"
	"math"
	"os"

	"github.com/tidwall/gjson"

	"github.com/deskwarrior/simulator/internal/formula"
	"github.com/deskwarrior/simulator/internal/rng"
)

// BossDropConfig controls crystal drops from bosses and the end-of-session
// crystal conversions.
type BossDropConfig struct {
	BaseDropChance             float64 `yaml:"base_drop_chance" json:"base_drop_chance"`
	DropChancePerLevel         float64 `yaml:"drop_chance_per_level" json:"drop_chance_per_level"`
	MaxDropChance              float64 `yaml:"max_drop_chance" json:"max_drop_chance"`
	BaseCrystalAmount          int     `yaml:"base_crystal_amount" json:"base_crystal_amount"`
	CrystalPerLevel            int     `yaml:"crystal_per_level" json:"crystal_per_level"`
	CrystalVariance            float64 `yaml:"crystal_variance" json:"crystal_variance"`
	GuaranteedDropEveryNBosses int     `yaml:"guaranteed_drop_every_n_bosses" json:"guaranteed_drop_every_n_bosses"` // 0 disables pity
	StageCompletionCrystal     int     `yaml:"stage_completion_crystal" json:"stage_completion_crystal"`
	GoldToCrystalRate          int     `yaml:"gold_to_crystal_rate" json:"gold_to_crystal_rate"`
}

// DefaultBossDropConfig returns the game's shipped drop table.
func DefaultBossDropConfig() BossDropConfig {
	return BossDropConfig{
		BaseDropChance:             0.5,
		DropChancePerLevel:         0.005,
		MaxDropChance:              0.95,
		BaseCrystalAmount:          5,
		CrystalPerLevel:            1,
		CrystalVariance:            0.2,
		GuaranteedDropEveryNBosses: 10,
		StageCompletionCrystal:     1,
		GoldToCrystalRate:          formula.GoldToCrystalRate,
	}
}

// LoadBossDropsJSON reads a BossDrops.json document. Missing fields keep their
// defaults; a missing file returns the defaults and no error.
func LoadBossDropsJSON(path string) (BossDropConfig, error) {
	cfg := DefaultBossDropConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read boss drops: %w", err)
	}
	doc := string(data)
	if !gjson.Valid(doc) {
		return cfg, fmt.Errorf("failed to parse boss drops %s: invalid JSON", path)
	}

	floatField := func(name string, dst *float64) {
		if v := gjson.Get(doc, name); v.Exists() {
			*dst = v.Float()
		}
	}
	intField := func(name string, dst *int) {
		if v := gjson.Get(doc, name); v.Exists() {
			*dst = int(v.Int())
		}
	}
	floatField("base_drop_chance", &cfg.BaseDropChance)
	floatField("drop_chance_per_level", &cfg.DropChancePerLevel)
	floatField("max_drop_chance", &cfg.MaxDropChance)
	intField("base_crystal_amount", &cfg.BaseCrystalAmount)
	intField("crystal_per_level", &cfg.CrystalPerLevel)
	floatField("crystal_variance", &cfg.CrystalVariance)
	intField("guaranteed_drop_every_n_bosses", &cfg.GuaranteedDropEveryNBosses)
	intField("stage_completion_crystal", &cfg.StageCompletionCrystal)
	intField("gold_to_crystal_rate", &cfg.GoldToCrystalRate)
	return cfg, nil
}

// DropResult is the outcome of one boss kill.
type DropResult struct {
	Dropped    bool
	Amount     int
	Guaranteed bool
}

// CrystalTracker rolls boss crystal drops for one session and keeps the pity
// counter. The counter resets on every drop, rolled or guaranteed.
type CrystalTracker struct {
	cfg     BossDropConfig
	src     rng.Source
	counter int
}

// NewCrystalTracker creates a tracker with an empty pity counter.
func NewCrystalTracker(cfg BossDropConfig, src rng.Source) *CrystalTracker {
	return &CrystalTracker{cfg: cfg, src: src}
}

// PityCounter returns the number of bosses killed since the last drop.
func (t *CrystalTracker) PityCounter() int {
	return t.counter
}

// DropChance returns the rolled drop chance for a boss at stage.
func (t *CrystalTracker) DropChance(stage int, bonus float64) float64 {
	chance := t.cfg.BaseDropChance + float64(stage)*t.cfg.DropChancePerLevel + bonus
	return math.Min(chance, t.cfg.MaxDropChance)
}

// ProcessBossKill records a boss kill at stage and rolls for crystals.
func (t *CrystalTracker) ProcessBossKill(stage, crystalFlat int, chanceBonus float64) DropResult {
	t.counter++

	guaranteed := t.cfg.GuaranteedDropEveryNBosses > 0 && t.counter >= t.cfg.GuaranteedDropEveryNBosses
	dropped := guaranteed || rng.Chance(t.src, t.DropChance(stage, chanceBonus))
	if !dropped {
		return DropResult{}
	}
	t.counter = 0

	base := t.cfg.BaseCrystalAmount + stage*t.cfg.CrystalPerLevel + crystalFlat
	variance := 1.0 + (t.src.Float64()*2-1)*t.cfg.CrystalVariance
	amount := max(1, int(float64(base)*variance))

	return DropResult{Dropped: true, Amount: amount, Guaranteed: guaranteed}
}

// StageCompletionCrystals returns the crystals earned for clearing kills stages.
func (t *CrystalTracker) StageCompletionCrystals(kills int) int {
	return kills * t.cfg.StageCompletionCrystal
}

// ConvertGold converts leftover gold into crystals.
func (t *CrystalTracker) ConvertGold(gold int64) int {
	rate := t.cfg.GoldToCrystalRate
	if rate <= 0 || gold <= 0 {
		return 0
	}
	return int(gold / int64(rate))
}

// Reset clears the pity counter.
func (t *CrystalTracker) Reset() {
	t.counter = 0
}
