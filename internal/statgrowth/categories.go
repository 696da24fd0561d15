package statgrowth

// Stat ids of the permanent upgrade shop.
const (
	BaseAttack    = "base_attack"
	AttackPercent = "attack_percent"
	CritChance    = "crit_chance"
	CritDamage    = "crit_damage"
	MultiHit      = "multi_hit"

	GoldFlatPerm  = "gold_flat_perm"
	GoldMultiPerm = "gold_multi_perm"
	CrystalFlat   = "crystal_flat"
	CrystalMulti  = "crystal_multi"

	TimeExtend      = "time_extend"
	UpgradeDiscount = "upgrade_discount"

	StartLevel       = "start_level"
	StartGold        = "start_gold"
	StartKeyboard    = "start_keyboard"
	StartMouse       = "start_mouse"
	StartGoldFlat    = "start_gold_flat"
	StartGoldMulti   = "start_gold_multi"
	StartComboFlex   = "start_combo_flex"
	StartComboDamage = "start_combo_damage"
)

// In-game (per session) stat ids.
const (
	KeyboardPower = "keyboard_power"
	MousePower    = "mouse_power"
)

// Stat categories.
const (
	CategoryBaseStats     = "base_stats"
	CategoryCurrencyBonus = "currency_bonus"
	CategoryUtility       = "utility"
	CategoryStartingBonus = "starting_bonus"
	CategoryUnknown       = "unknown"
)

// CategoryOrder lists the categories in display order.
var CategoryOrder = []string{
	CategoryBaseStats,
	CategoryCurrencyBonus,
	CategoryUtility,
	CategoryStartingBonus,
}

// Categories maps each category to its member stats.
var Categories = map[string][]string{
	CategoryBaseStats:     {BaseAttack, AttackPercent, CritChance, CritDamage, MultiHit},
	CategoryCurrencyBonus: {GoldFlatPerm, GoldMultiPerm, CrystalFlat, CrystalMulti},
	CategoryUtility:       {TimeExtend, UpgradeDiscount},
	CategoryStartingBonus: {StartLevel, StartGold, StartKeyboard, StartMouse, StartGoldFlat, StartGoldMulti, StartComboFlex, StartComboDamage},
}

// CategoryOf returns the canonical category of a permanent stat, or
// CategoryUnknown.
func CategoryOf(id string) string {
	for _, cat := range CategoryOrder {
		for _, s := range Categories[cat] {
			if s == id {
				return cat
			}
		}
	}
	return CategoryUnknown
}
