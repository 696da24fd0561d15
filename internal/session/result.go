package session

// EndReason records why a session stopped.
type EndReason string

const (
	EndTimeout EndReason = "timeout"
	EndBoss    EndReason = "boss"
	// EndNormal is reserved; no current rule ends a session early.
	EndNormal EndReason = "normal"
)

// SessionResult is the outcome of one simulated session.
type SessionResult struct {
	MaxLevel                int       `json:"max_level" yaml:"max_level"`
	TotalGold               int64     `json:"total_gold" yaml:"total_gold"`
	TotalDamage             int64     `json:"total_damage" yaml:"total_damage"`
	TotalInputs             int       `json:"total_inputs" yaml:"total_inputs"`
	KeyboardInputs          int       `json:"keyboard_inputs" yaml:"keyboard_inputs"`
	MouseInputs             int       `json:"mouse_inputs" yaml:"mouse_inputs"`
	CriticalHits            int       `json:"critical_hits" yaml:"critical_hits"`
	MonstersKilled          int       `json:"monsters_killed" yaml:"monsters_killed"`
	BossesKilled            int       `json:"bosses_killed" yaml:"bosses_killed"`
	InGameUpgrades          int       `json:"in_game_upgrades" yaml:"in_game_upgrades"`
	CrystalsFromBosses      int       `json:"crystals_from_bosses" yaml:"crystals_from_bosses"`
	CrystalsFromStages      int       `json:"crystals_from_stages" yaml:"crystals_from_stages"`
	CrystalsFromGoldConvert int       `json:"crystals_from_gold_convert" yaml:"crystals_from_gold_convert"`
	FinalGold               int64     `json:"final_gold" yaml:"final_gold"`
	Duration                float64   `json:"duration" yaml:"duration"`
	EndReason               EndReason `json:"end_reason" yaml:"end_reason"`
	Seed                    uint64    `json:"seed" yaml:"seed"`
}

// TotalCrystals sums crystals from every source.
func (r SessionResult) TotalCrystals() int {
	return r.CrystalsFromBosses + r.CrystalsFromStages + r.CrystalsFromGoldConvert
}
