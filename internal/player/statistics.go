package player

import (
	"encoding/json"
	"sync"
)

// LifetimeStatistics accumulates activity across every session of a
// progression run. It is safe to read while a run is still writing to it.
type LifetimeStatistics struct {
	Sessions           int     `json:"sessions"`
	TotalKills         int     `json:"total_kills"`
	BossKills          int     `json:"boss_kills"`
	HighestStage       int     `json:"highest_stage"`
	GoldAccumulated    int64   `json:"gold_accumulated"`
	DamageDealt        int64   `json:"damage_dealt"`
	Inputs             int64   `json:"inputs"`
	CrystalsFromBosses int64   `json:"crystals_from_bosses"`
	CrystalsFromStages int64   `json:"crystals_from_stages"`
	CrystalsFromGold   int64   `json:"crystals_from_gold"`
	PlayTimeSeconds    float64 `json:"play_time_seconds"`
	UpgradesPurchased  int     `json:"upgrades_purchased"`
	CrystalsSpent      int64   `json:"crystals_spent"`
	mu                 sync.RWMutex
}

// NewLifetimeStatistics creates an empty tracker.
func NewLifetimeStatistics() *LifetimeStatistics {
	return &LifetimeStatistics{}
}

// RecordSession counts one finished session and its play time.
func (s *LifetimeStatistics) RecordSession(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sessions++
	s.PlayTimeSeconds += seconds
}

// RecordKills adds monster and boss kills.
func (s *LifetimeStatistics) RecordKills(kills, bosses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalKills += kills
	s.BossKills += bosses
}

// RecordStageReached updates the highest stage if stage is higher.
func (s *LifetimeStatistics) RecordStageReached(stage int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stage > s.HighestStage {
		s.HighestStage = stage
	}
}

// RecordGoldEarned adds to lifetime gold earned.
func (s *LifetimeStatistics) RecordGoldEarned(amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GoldAccumulated += amount
}

// RecordDamageDealt adds to total damage dealt and inputs made.
func (s *LifetimeStatistics) RecordDamageDealt(amount, inputs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DamageDealt += amount
	s.Inputs += inputs
}

// RecordCrystals adds crystals earned, split by source.
func (s *LifetimeStatistics) RecordCrystals(fromBosses, fromStages, fromGold int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CrystalsFromBosses += fromBosses
	s.CrystalsFromStages += fromStages
	s.CrystalsFromGold += fromGold
}

// RecordUpgrade counts one permanent upgrade purchase.
func (s *LifetimeStatistics) RecordUpgrade(cost int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpgradesPurchased++
	s.CrystalsSpent += cost
}

// TotalCrystals returns crystals earned from every source.
func (s *LifetimeStatistics) TotalCrystals() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CrystalsFromBosses + s.CrystalsFromStages + s.CrystalsFromGold
}

// GetHighestStage returns the highest stage reached.
func (s *LifetimeStatistics) GetHighestStage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.HighestStage
}

// GetSessions returns the number of sessions recorded.
func (s *LifetimeStatistics) GetSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Sessions
}

// ToJSON serializes statistics to JSON.
func (s *LifetimeStatistics) ToJSON() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// FromJSON deserializes statistics from JSON.
func (s *LifetimeStatistics) FromJSON(jsonStr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if jsonStr == "" || jsonStr == "{}" {
		return nil
	}
	return json.Unmarshal([]byte(jsonStr), s)
}
