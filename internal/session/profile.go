package session

import (
	"fmt"
	"strings"

	"github.com/deskwarrior/simulator/internal/formula"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
)

// ComboSkill describes how reliably a player keeps a click rhythm.
type ComboSkill int

const (
	ComboNone ComboSkill = iota
	ComboBeginner
	ComboIntermediate
	ComboExpert
	ComboPerfect
)

var comboSkillNames = map[ComboSkill]string{
	ComboNone:         "none",
	ComboBeginner:     "beginner",
	ComboIntermediate: "intermediate",
	ComboExpert:       "expert",
	ComboPerfect:      "perfect",
}

// String returns the lower-case name of the skill.
func (c ComboSkill) String() string {
	if name, ok := comboSkillNames[c]; ok {
		return name
	}
	return fmt.Sprintf("combo(%d)", int(c))
}

// SuccessRate is the chance that an input inside the combo window extends the combo.
func (c ComboSkill) SuccessRate() float64 {
	switch c {
	case ComboBeginner:
		return 0.5
	case ComboIntermediate:
		return 0.7
	case ComboExpert:
		return 0.9
	case ComboPerfect:
		return 1.0
	}
	return 0
}

// MaxStack is the highest combo stack the skill can hold.
func (c ComboSkill) MaxStack() int {
	var n int
	switch c {
	case ComboBeginner:
		n = 1
	case ComboIntermediate:
		n = 2
	case ComboExpert, ComboPerfect:
		n = 3
	}
	return min(n, formula.MaxComboStack)
}

// ParseComboSkill parses a skill by name or by its numeric level.
func ParseComboSkill(s string) (ComboSkill, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for skill, name := range comboSkillNames {
		if s == name || s == fmt.Sprint(int(skill)) {
			return skill, nil
		}
	}
	return ComboNone, fmt.Errorf("unknown combo skill %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c ComboSkill) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ComboSkill) UnmarshalText(text []byte) error {
	skill, err := ParseComboSkill(string(text))
	if err != nil {
		return err
	}
	*c = skill
	return nil
}

// InputProfile describes how the simulated player clicks.
type InputProfile struct {
	AverageCPS      float64    `yaml:"average_cps" json:"average_cps"`
	CPSVariance     float64    `yaml:"cps_variance" json:"cps_variance"` // 0.2 = ±20%
	Combo           ComboSkill `yaml:"combo_skill" json:"combo_skill"`
	MouseRatio      float64    `yaml:"mouse_ratio" json:"mouse_ratio"` // 0 = keyboard only, 1 = mouse only
	AutoUpgrade     bool       `yaml:"auto_upgrade" json:"auto_upgrade"`
	UpgradePriority []string   `yaml:"upgrade_priority" json:"upgrade_priority"`
}

// DefaultInputProfile returns a casual keyboard player with auto-upgrade on.
func DefaultInputProfile() InputProfile {
	return InputProfile{
		AverageCPS:      5.0,
		CPSVariance:     0.2,
		Combo:           ComboNone,
		MouseRatio:      0,
		AutoUpgrade:     true,
		UpgradePriority: []string{sg.KeyboardPower, sg.MousePower},
	}
}
