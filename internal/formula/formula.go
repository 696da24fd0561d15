// Package formula holds the numeric rules shared by the game and the balance
// simulator. Every function is pure. The constants must match the production
// game.
package formula

import "math"

// Game constants. Changing any of these changes balance results.
const (
	BaseCritChance     = 0.1
	BaseCritMultiplier = 2.0
	BaseTimeLimit      = 30.0 // seconds
	ComboDuration      = 3.0  // seconds an input may lag before the combo drops
	MaxComboStack      = 3
	GoldToCrystalRate  = 1000
	BaseHP             = 100.0
	HPGrowth           = 1.2
	BossInterval       = 10
	BossHPMulti        = 5.0
	BaseGoldMulti      = 1.5

	// DefaultUpgradeCostInterval is the stage span after which in-game upgrade
	// prices double.
	DefaultUpgradeCostInterval = 50
)

// floorInt floors x into an int64, saturating instead of overflowing.
func floorInt(x float64) int64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= math.MaxInt64:
		return math.MaxInt64
	case x <= math.MinInt64:
		return math.MinInt64
	}
	return int64(math.Floor(x))
}

// ceilInt ceils x into an int64, saturating instead of overflowing.
func ceilInt(x float64) int64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= math.MaxInt64:
		return math.MaxInt64
	case x <= math.MinInt64:
		return math.MinInt64
	}
	return int64(math.Ceil(x))
}

// rawCost is the unrounded cost curve. A softcap interval of zero or less
// disables the exponential term.
func rawCost(baseCost, growthRate, multiplier float64, softcapInterval, level int) float64 {
	if level < 0 {
		level = 0
	}
	linear := 1.0 + float64(level)*growthRate
	exp := 1.0
	if softcapInterval > 0 {
		exp = math.Pow(multiplier, float64(level)/float64(softcapInterval))
	}
	return baseCost * linear * exp
}

// UpgradeCost returns baseCost·(1+level·growthRate)·multiplier^(level/softcapInterval), floored.
func UpgradeCost(baseCost, growthRate, multiplier float64, softcapInterval, level int) int64 {
	return floorInt(rawCost(baseCost, growthRate, multiplier, softcapInterval, level))
}

// DiscountedUpgradeCost applies a fractional discount to the cost curve and
// rounds up so a discount never underprices an upgrade.
func DiscountedUpgradeCost(baseCost, growthRate, multiplier float64, softcapInterval, level int, discount float64) int64 {
	return ceilInt(rawCost(baseCost, growthRate, multiplier, softcapInterval, level) * (1.0 - discount))
}

// StatEffect returns the linear effect of a stat at the given level.
func StatEffect(effectPerLevel float64, level int) float64 {
	return effectPerLevel * float64(level)
}

// Damage composes a single hit, floored.
func Damage(basePower, baseAttack, attackPercent, critMultiplier, multiHitMultiplier, comboMultiplier float64) int64 {
	return floorInt((basePower + baseAttack) * (1.0 + attackPercent) * critMultiplier * multiHitMultiplier * comboMultiplier)
}

// GoldEarned returns the gold paid out for a kill, floored.
func GoldEarned(baseGold, goldFlat, goldFlatPerm, goldMulti, goldMultiPerm float64) int64 {
	return floorInt((baseGold + goldFlat + goldFlatPerm) * (1.0 + goldMulti + goldMultiPerm))
}

// ComboMultiplier returns (1+comboDamagePercent/100)·2^stack.
func ComboMultiplier(comboDamagePercent float64, stack int) float64 {
	return (1.0 + comboDamagePercent/100.0) * math.Pow(2, float64(stack))
}

func monsterHP(stage int) float64 {
	return BaseHP * math.Pow(HPGrowth, float64(stage))
}

// MonsterHP returns the hit points of a regular monster at stage.
func MonsterHP(stage int) int64 {
	return floorInt(monsterHP(stage))
}

// BossHP returns the hit points of a boss at stage. The multiplier is applied
// before flooring.
func BossHP(stage int) int64 {
	return floorInt(monsterHP(stage) * BossHPMulti)
}

// IsBossStage reports whether stage spawns a boss.
func IsBossStage(stage int) bool {
	return stage > 0 && stage%BossInterval == 0
}

// BaseGold returns the base gold reward for a monster at stage.
func BaseGold(stage int) int64 {
	return floorInt(float64(stage) * BaseGoldMulti)
}

// RequiredCPS estimates the clicks per second needed to clear a monster in
// timeLimit seconds. It returns +Inf when the stage is unreachable.
// Design-time estimation only; the simulator never calls it.
func RequiredCPS(monsterHP, damage, timeLimit float64) float64 {
	if damage <= 0 || timeLimit <= 0 {
		return math.Inf(1)
	}
	return monsterHP / damage / timeLimit
}

// StageCostMultiplier doubles in-game upgrade prices every interval stages.
func StageCostMultiplier(stage, interval int) float64 {
	if interval <= 0 {
		interval = DefaultUpgradeCostInterval
	}
	if stage < 1 {
		stage = 1
	}
	return math.Pow(2, float64((stage-1)/interval))
}

// EffectiveTimeLimit returns the session length after the time-extend bonus,
// capped at twice the base limit.
func EffectiveTimeLimit(timeExtend float64) float64 {
	if timeExtend < 0 {
		timeExtend = 0
	}
	return math.Min(BaseTimeLimit+timeExtend, 2*BaseTimeLimit)
}
