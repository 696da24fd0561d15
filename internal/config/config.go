// Package config loads the simulator's YAML configuration and its SIM_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/deskwarrior/simulator/internal/formula"
	"github.com/deskwarrior/simulator/internal/session"
	sg "github.com/deskwarrior/simulator/internal/statgrowth"
	"github.com/deskwarrior/simulator/internal/store"
	"github.com/deskwarrior/simulator/internal/telemetry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SIM_"

// SimulatorConfig is the whole configuration document.
type SimulatorConfig struct {
	Data        DataConfig             `yaml:"data" envPrefix:"DATA_"`
	Balance     BalanceConfig          `yaml:"balance" envPrefix:"BALANCE_"`
	Drops       session.BossDropConfig `yaml:"drops"`
	Profile     session.InputProfile   `yaml:"profile"`
	Batch       BatchConfig            `yaml:"batch" envPrefix:"BATCH_"`
	Progression ProgressionConfig      `yaml:"progression" envPrefix:"PROGRESSION_"`
	Analyzer    AnalyzerConfig         `yaml:"analyzer" envPrefix:"ANALYZER_"`
	Database    store.Config           `yaml:"database" envPrefix:"DB_"`
	Dashboard   DashboardConfig        `yaml:"dashboard" envPrefix:"DASHBOARD_"`
	Telemetry   telemetry.Config       `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// DataConfig points at the stat and drop tables.
type DataConfig struct {
	// PermanentStats is the permanent stat table. Empty uses the built-in table.
	PermanentStats string `yaml:"permanent_stats" env:"PERMANENT_STATS"`

	// InGameStats is the in-game stat table. Empty uses the built-in table.
	InGameStats string `yaml:"ingame_stats" env:"INGAME_STATS"`

	// BossDrops is a BossDrops.json document. When set it replaces the drops
	// section.
	BossDrops string `yaml:"boss_drops" env:"BOSS_DROPS"`

	// Format forces the table decoder: "json", "yaml", or "" to pick by
	// file extension.
	Format string `yaml:"format" env:"FORMAT"`
}

// BalanceConfig holds simulation constants that may be tuned per run.
type BalanceConfig struct {
	// TickSeconds is the virtual time step of a session.
	TickSeconds float64 `yaml:"tick_seconds" env:"TICK_SECONDS"`

	// UpgradeCostInterval is the stage span of in-game upgrade cost steps.
	UpgradeCostInterval int `yaml:"upgrade_cost_interval" env:"UPGRADE_COST_INTERVAL"`

	// ReferenceBossHPMultiplier is the multiplier older balance sheets used.
	// It is reported next to the formula constant and never simulated.
	ReferenceBossHPMultiplier float64 `yaml:"reference_boss_hp_multiplier" env:"REFERENCE_BOSS_HP_MULTIPLIER"`
}

// BatchConfig holds batch defaults.
type BatchConfig struct {
	Runs        int `yaml:"runs" env:"RUNS"`
	TargetLevel int `yaml:"target_level" env:"TARGET_LEVEL"`

	// Workers is the pool size; 0 uses every CPU.
	Workers int `yaml:"workers" env:"WORKERS"`

	// MasterSeed makes batches reproducible; 0 draws a fresh seed per batch.
	MasterSeed uint64 `yaml:"master_seed" env:"MASTER_SEED"`
}

// ProgressionConfig holds progression defaults.
type ProgressionConfig struct {
	Strategy    string `yaml:"strategy" env:"STRATEGY"`
	MaxSessions int    `yaml:"max_sessions" env:"MAX_SESSIONS"`
}

// AnalyzerConfig holds the balance analyzer thresholds and exploration sizes.
type AnalyzerConfig struct {
	DominanceThreshold    float64 `yaml:"dominance_threshold" env:"DOMINANCE_THRESHOLD"`
	DiversityThreshold    float64 `yaml:"diversity_threshold" env:"DIVERSITY_THRESHOLD"`
	CategoryUsageWarning  float64 `yaml:"category_usage_warning" env:"CATEGORY_USAGE_WARNING"`
	TopN                  int     `yaml:"top_n" env:"TOP_N"`
	SimulationsPerPattern int     `yaml:"simulations_per_pattern" env:"SIMULATIONS_PER_PATTERN"`
	Generations           int     `yaml:"generations" env:"GENERATIONS"`
	PopulationSize        int     `yaml:"population_size" env:"POPULATION_SIZE"`
	CrystalBudget         int64   `yaml:"crystal_budget" env:"CRYSTAL_BUDGET"`
}

// DashboardConfig holds the HTTP/WebSocket server settings.
type DashboardConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`

	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`

	// MaxPerIP is the maximum concurrent connections allowed from a single IP address.
	// 0 means unlimited.
	MaxPerIP int `yaml:"max_per_ip" env:"MAX_PER_IP"`

	// MaxTotal is the maximum total concurrent connections. 0 means unlimited.
	MaxTotal int `yaml:"max_total" env:"MAX_TOTAL"`

	// PasswordHash is a bcrypt hash guarding the job endpoints. Empty leaves
	// them open.
	PasswordHash string `yaml:"password_hash" env:"PASSWORD_HASH"`

	// MaxAttempts is the number of failed passwords before lockout.
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`

	// LockoutDuration is the first lockout; it doubles on each repeat up to
	// MaxLockoutDuration.
	LockoutDuration    time.Duration `yaml:"lockout_duration" env:"LOCKOUT_DURATION"`
	MaxLockoutDuration time.Duration `yaml:"max_lockout_duration" env:"MAX_LOCKOUT_DURATION"`

	// MaxConcurrentJobs bounds background batch and progression jobs.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" env:"MAX_CONCURRENT_JOBS"`

	// SubmitLimit is the number of jobs one client may start per
	// SubmitWindow. 0 means unlimited.
	SubmitLimit  int           `yaml:"submit_limit" env:"SUBMIT_LIMIT"`
	SubmitWindow time.Duration `yaml:"submit_window" env:"SUBMIT_WINDOW"`

	// RepeatCooldown rejects an identical seeded job from the same client
	// within this span. 0 disables the check.
	RepeatCooldown time.Duration `yaml:"repeat_cooldown" env:"REPEAT_COOLDOWN"`
}

// DefaultConfig returns a SimulatorConfig with the shipped defaults.
func DefaultConfig() *SimulatorConfig {
	return &SimulatorConfig{
		Balance: BalanceConfig{
			TickSeconds:               session.DefaultTickSeconds,
			UpgradeCostInterval:       formula.DefaultUpgradeCostInterval,
			ReferenceBossHPMultiplier: 3.0,
		},
		Drops:   session.DefaultBossDropConfig(),
		Profile: session.DefaultInputProfile(),
		Batch: BatchConfig{
			Runs:        100,
			TargetLevel: 50,
		},
		Progression: ProgressionConfig{
			Strategy:    "greedy",
			MaxSessions: 1000,
		},
		Analyzer: AnalyzerConfig{
			DominanceThreshold:    1.3,
			DiversityThreshold:    0.5,
			CategoryUsageWarning:  0.3,
			TopN:                  10,
			SimulationsPerPattern: 50,
			Generations:           100,
			PopulationSize:        50,
			CrystalBudget:         1000,
		},
		Database: store.DefaultConfig("data/simulator.db"),
		Dashboard: DashboardConfig{
			Addr:               ":8080",
			AllowedOrigins:     []string{}, // Same-origin only by default
			MaxPerIP:           3,
			MaxTotal:           100,
			MaxAttempts:        5,
			LockoutDuration:    30 * time.Second,
			MaxLockoutDuration: 5 * time.Minute,
			MaxConcurrentJobs:  2,
			SubmitLimit:        20,
			SubmitWindow:       time.Minute,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// LoadConfig loads configuration from a YAML file over the defaults.
// A missing file returns the defaults and no error. A malformed file returns
// the defaults and the parse error.
func LoadConfig(path string) (*SimulatorConfig, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Use defaults if file doesn't exist
		}
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return config, nil
}

// ApplyEnv overlays SIM_* environment variables, e.g. SIM_BATCH_RUNS or
// SIM_DB_POSTGRES_HOST.
func (c *SimulatorConfig) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}
	return nil
}

// Load is LoadConfig followed by ApplyEnv. Errors from both are joined;
// the returned config is always usable.
func Load(path string) (*SimulatorConfig, error) {
	cfg, err := LoadConfig(path)
	return cfg, errors.Join(err, cfg.ApplyEnv())
}

func (c *SimulatorConfig) loadTable(path string, fallback *sg.Table) (*sg.Table, error) {
	if path == "" {
		return fallback, nil
	}
	switch strings.ToLower(c.Data.Format) {
	case "json":
		return sg.LoadJSON(path, fallback)
	case "yaml", "yml":
		return sg.LoadYAML(path, fallback)
	}
	return sg.LoadFile(path, fallback)
}

// NewSimulator builds a simulator from the configured tables. Tables that
// fail to load fall back to the built-in ones; every failure is returned
// joined with the others.
func (c *SimulatorConfig) NewSimulator() (*session.Simulator, error) {
	permanent, permErr := c.loadTable(c.Data.PermanentStats, sg.DefaultPermanentTable())
	inGame, inGameErr := c.loadTable(c.Data.InGameStats, sg.DefaultInGameTable())

	drops := c.Drops
	var dropsErr error
	if c.Data.BossDrops != "" {
		drops, dropsErr = session.LoadBossDropsJSON(c.Data.BossDrops)
	}

	sim := session.New(session.Options{
		Permanent:           permanent,
		InGame:              inGame,
		Drops:               drops,
		TickSeconds:         c.Balance.TickSeconds,
		UpgradeCostInterval: c.Balance.UpgradeCostInterval,
	})
	return sim, errors.Join(permErr, inGameErr, dropsErr)
}

// Validate reports every problem in the configuration and the tables it
// points at.
func (c *SimulatorConfig) Validate() error {
	var errs []error
	sim, err := c.NewSimulator()
	if err != nil {
		errs = append(errs, err)
	}
	if err := sim.PermanentTable().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("permanent stats: %w", err))
	}
	if err := sim.InGameTable().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("in-game stats: %w", err))
	}

	d := sim.Drops()
	if d.BaseDropChance < 0 || d.BaseDropChance > 1 || d.MaxDropChance < 0 || d.MaxDropChance > 1 {
		errs = append(errs, errors.New("drops: chances must be within [0, 1]"))
	}
	if d.GoldToCrystalRate <= 0 {
		errs = append(errs, errors.New("drops: gold_to_crystal_rate must be positive"))
	}
	if c.Balance.TickSeconds < 0 {
		errs = append(errs, errors.New("balance: tick_seconds must not be negative"))
	}
	if c.Profile.AverageCPS <= 0 {
		errs = append(errs, errors.New("profile: average_cps must be positive"))
	}
	if c.Profile.MouseRatio < 0 || c.Profile.MouseRatio > 1 {
		errs = append(errs, errors.New("profile: mouse_ratio must be within [0, 1]"))
	}
	if c.Batch.Runs < 0 {
		errs = append(errs, errors.New("batch: runs must not be negative"))
	}
	if c.Batch.TargetLevel <= 0 {
		errs = append(errs, errors.New("batch: target_level must be positive"))
	}
	if c.Dashboard.SubmitLimit < 0 || c.Dashboard.SubmitWindow < 0 || c.Dashboard.RepeatCooldown < 0 {
		errs = append(errs, errors.New("dashboard: submit limits must not be negative"))
	}
	if c.Dashboard.SubmitLimit > 0 && c.Dashboard.SubmitWindow == 0 {
		errs = append(errs, errors.New("dashboard: submit_window is required with submit_limit"))
	}
	if c.Analyzer.DominanceThreshold <= 1 {
		errs = append(errs, errors.New("analyzer: dominance_threshold must be above 1"))
	}
	switch store.DialectType(c.Database.Driver) {
	case store.DialectSQLite, store.DialectPostgres:
	default:
		errs = append(errs, fmt.Errorf("database: unknown driver %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *DashboardConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host (same-origin policy).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means same-origin (e.g., non-browser client)
	}

	// "http://localhost:3000" -> "localhost:3000"
	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
