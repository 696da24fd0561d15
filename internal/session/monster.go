package session

import "github.com/deskwarrior/simulator/internal/formula"

// Monster is the enemy standing on a stage.
type Monster struct {
	Level      int
	MaxHP      int64
	HP         int64
	GoldReward int64
	IsBoss     bool
}

// NewMonster spawns the monster for stage. Every BossInterval-th stage spawns a boss.
func NewMonster(stage int) *Monster {
	m := &Monster{
		Level:      stage,
		GoldReward: formula.BaseGold(stage),
		IsBoss:     formula.IsBossStage(stage),
	}
	if m.IsBoss {
		m.MaxHP = formula.BossHP(stage)
	} else {
		m.MaxHP = formula.MonsterHP(stage)
	}
	m.HP = m.MaxHP
	return m
}

// TakeDamage subtracts dmg from HP, never going below zero, and returns the
// damage actually absorbed.
func (m *Monster) TakeDamage(dmg int64) int64 {
	if dmg <= 0 {
		return 0
	}
	if dmg >= m.HP {
		absorbed := m.HP
		m.HP = 0
		return absorbed
	}
	m.HP -= dmg
	return dmg
}

// Alive reports whether the monster still has HP.
func (m *Monster) Alive() bool {
	return m.HP > 0
}
