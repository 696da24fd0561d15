package statgrowth

// DefaultPermanentTable returns the built-in permanent (crystal) stat table.
// Costs are in crystals.
func DefaultPermanentTable() *Table {
	return NewTable(map[string]Config{
		BaseAttack:    {StatName: "Base Attack", BaseCost: 10, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 1},
		AttackPercent: {StatName: "Attack %", BaseCost: 15, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 0.01},
		CritChance:    {StatName: "Critical Chance", BaseCost: 20, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 0.005, MaxLevel: 100},
		CritDamage:    {StatName: "Critical Damage", BaseCost: 20, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 0.02},
		MultiHit:      {StatName: "Multi Hit", BaseCost: 25, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 0.005, MaxLevel: 100},

		GoldFlatPerm:  {StatName: "Gold +", BaseCost: 10, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 2},
		GoldMultiPerm: {StatName: "Gold %", BaseCost: 15, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 3},
		CrystalFlat:   {StatName: "Crystal +", BaseCost: 30, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 1},
		CrystalMulti:  {StatName: "Crystal Drop %", BaseCost: 30, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 0.02, MaxLevel: 20},

		TimeExtend:      {StatName: "Time Extend", BaseCost: 25, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 0.1, MaxLevel: 300},
		UpgradeDiscount: {StatName: "Upgrade Discount", BaseCost: 20, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 0.001, MaxLevel: 500},

		StartLevel:       {StatName: "Start Level", BaseCost: 50, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 1},
		StartGold:        {StatName: "Start Gold", BaseCost: 10, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 50},
		StartKeyboard:    {StatName: "Start Keyboard", BaseCost: 15, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 0.1},
		StartMouse:       {StatName: "Start Mouse", BaseCost: 15, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 0.1},
		StartGoldFlat:    {StatName: "Start Gold +", BaseCost: 10, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 25},
		StartGoldMulti:   {StatName: "Start Gold %", BaseCost: 20, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 0.01},
		StartComboFlex:   {StatName: "Combo Window", BaseCost: 40, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 0.05, MaxLevel: 20},
		StartComboDamage: {StatName: "Combo Damage", BaseCost: 40, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 1},
	})
}

// DefaultInGameTable returns the built-in in-game (gold) stat table.
func DefaultInGameTable() *Table {
	return NewTable(map[string]Config{
		KeyboardPower: {StatName: "Keyboard Power", Category: "in_game", BaseCost: 10, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 1},
		MousePower:    {StatName: "Mouse Power", Category: "in_game", BaseCost: 10, GrowthRate: 0.5, Multiplier: 1.5, SoftcapInterval: 10, EffectPerLevel: 1},
	})
}
