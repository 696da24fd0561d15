package statgrowth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// LoadFile loads a stat table, picking the decoder from the file extension.
// A missing file yields fallback and no error; a malformed file yields
// fallback and the parse error.
func LoadFile(path string, fallback *Table) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(path, fallback)
	default:
		return LoadYAML(path, fallback)
	}
}

// LoadYAML loads a table from a YAML document of the form:
//
//	stats:
//	  base_attack:
//	    base_cost: 10
//	    effect_per_level: 1
//
// Fields left out of an entry take DefaultConfig values.
func LoadYAML(path string, fallback *Table) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fallback, nil
		}
		return fallback, fmt.Errorf("failed to read stat table: %w", err)
	}

	var raw struct {
		Stats map[string]yaml.Node `yaml:"stats"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fallback, fmt.Errorf("failed to parse stat table %s: %w", path, err)
	}

	stats := make(map[string]Config, len(raw.Stats))
	for id, node := range raw.Stats {
		if strings.HasPrefix(id, "_") {
			continue
		}
		c := DefaultConfig()
		if err := node.Decode(&c); err != nil {
			return fallback, fmt.Errorf("failed to parse stat %q: %w", id, err)
		}
		if c.StatName == "" {
			c.StatName = id
		}
		stats[id] = c
	}
	return NewTable(stats), nil
}

// LoadJSON loads a table from the game's JSON data files. Keys that start
// with an underscore are comments and are skipped.
func LoadJSON(path string, fallback *Table) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fallback, nil
		}
		return fallback, fmt.Errorf("failed to read stat table: %w", err)
	}
	return ParseJSON(string(data), fallback)
}

// ParseJSON parses a JSON stat table document.
func ParseJSON(doc string, fallback *Table) (*Table, error) {
	if !gjson.Valid(doc) {
		return fallback, fmt.Errorf("failed to parse stat table: invalid JSON")
	}

	stats := make(map[string]Config)
	gjson.Get(doc, "stats").ForEach(func(key, v gjson.Result) bool {
		id := key.String()
		if strings.HasPrefix(id, "_") {
			return true
		}
		c := DefaultConfig()
		c.StatName = id
		if f := v.Get("stat_name"); f.Exists() {
			c.StatName = f.String()
		}
		if f := v.Get("category"); f.Exists() {
			c.Category = f.String()
		}
		if f := v.Get("base_cost"); f.Exists() {
			c.BaseCost = f.Float()
		}
		if f := v.Get("growth_rate"); f.Exists() {
			c.GrowthRate = f.Float()
		}
		if f := v.Get("multiplier"); f.Exists() {
			c.Multiplier = f.Float()
		}
		if f := v.Get("softcap_interval"); f.Exists() {
			c.SoftcapInterval = int(f.Int())
		}
		if f := v.Get("effect_per_level"); f.Exists() {
			c.EffectPerLevel = f.Float()
		}
		if f := v.Get("max_level"); f.Exists() {
			c.MaxLevel = int(f.Int())
		}
		stats[id] = c
		return true
	})
	return NewTable(stats), nil
}

// WriteYAML writes the table in the format LoadYAML reads.
func (t *Table) WriteYAML(path string) error {
	doc := struct {
		Stats map[string]Config `yaml:"stats"`
	}{Stats: t.stats}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode stat table: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write stat table: %w", err)
	}
	return nil
}
