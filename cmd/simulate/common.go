package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/deskwarrior/simulator/internal/config"
	"github.com/deskwarrior/simulator/internal/logger"
	"github.com/deskwarrior/simulator/internal/player"
	"github.com/deskwarrior/simulator/internal/rng"
	"github.com/deskwarrior/simulator/internal/session"
	"github.com/deskwarrior/simulator/internal/store"
	"github.com/deskwarrior/simulator/internal/telemetry"
)

const defaultConfigPath = "data/simulator.yaml"

// app is what every command needs after flag parsing.
type app struct {
	cfg      *config.SimulatorConfig
	sim      *session.Simulator
	shutdown func(context.Context) error
}

// setup loads logging, configuration, the simulator and tracing. Problems
// are logged and the built-in defaults are used in their place.
func setup(ctx context.Context, configPath string) *app {
	logConfig, logErr := logger.LoadConfig(configPath)
	if err := logger.Initialize(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
	}
	if logErr != nil {
		logger.Warning("Logging config problem, using defaults", "path", configPath, "error", logErr)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Warning("Config problem, continuing with defaults", "path", configPath, "error", err)
	}

	sim, err := cfg.NewSimulator()
	if err != nil {
		logger.Warning("Stat table problem, using built-in tables", "error", err)
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Warning("Tracing disabled", "error", err)
		shutdown = func(context.Context) error { return nil }
	}

	return &app{cfg: cfg, sim: sim, shutdown: shutdown}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		logger.Warning("Failed to flush traces", "error", err)
	}
}

func (a *app) openStore() (*store.Store, error) {
	return store.OpenWithConfig(a.cfg.Database)
}

// seed returns explicit, then the configured master seed, then a fresh one.
func (a *app) seed(explicit uint64) (uint64, error) {
	if explicit != 0 {
		return explicit, nil
	}
	if a.cfg.Batch.MasterSeed != 0 {
		return a.cfg.Batch.MasterSeed, nil
	}
	return rng.NewSeed()
}

// statLevels collects repeated -stat id=level flags.
type statLevels map[string]int

func (s statLevels) String() string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s=%d", id, s[id])
	}
	return strings.Join(parts, ",")
}

func (s statLevels) Set(v string) error {
	id, level, ok := strings.Cut(v, "=")
	if !ok || id == "" {
		return fmt.Errorf("expected id=level, got %q", v)
	}
	n, err := strconv.Atoi(level)
	if err != nil {
		return fmt.Errorf("invalid level for %s: %w", id, err)
	}
	if n < 0 {
		return fmt.Errorf("level for %s must not be negative", id)
	}
	s[id] = n
	return nil
}

// loadStatsFile reads {"stat_id": level, ...} from a JSON file. Flags given
// on the command line win over the file.
func (s statLevels) loadStatsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read stats file: %w", err)
	}
	doc := string(data)
	if !gjson.Valid(doc) {
		return fmt.Errorf("stats file %s is not valid JSON", path)
	}
	var parseErr error
	gjson.Parse(doc).ForEach(func(key, v gjson.Result) bool {
		if v.Type != gjson.Number || v.Int() < 0 {
			parseErr = fmt.Errorf("stats file %s: %s must be a non-negative number", path, key.String())
			return false
		}
		if _, set := s[key.String()]; !set {
			s[key.String()] = int(v.Int())
		}
		return true
	})
	return parseErr
}

// build returns fresh stats with the collected levels applied.
func (s statLevels) build(sim *session.Simulator) (*player.PermanentStats, error) {
	stats := sim.NewStats()
	for id, level := range s {
		if _, ok := sim.PermanentTable().Lookup(id); !ok {
			return nil, fmt.Errorf("unknown stat %q", id)
		}
		stats.SetLevel(id, level)
	}
	return stats, nil
}

// playerFlags are the input profile and starting stat flags shared by the
// simulation commands. Profile flags that are not given keep the
// configured values.
type playerFlags struct {
	fs        *flag.FlagSet
	cps       *float64
	variance  *float64
	combo     *string
	mouse     *float64
	noAuto    *bool
	levels    statLevels
	statsFile *string
}

func addPlayerFlags(fs *flag.FlagSet) *playerFlags {
	def := session.DefaultInputProfile()
	p := &playerFlags{
		fs:        fs,
		cps:       fs.Float64("cps", def.AverageCPS, "Average clicks per second"),
		variance:  fs.Float64("cps-variance", def.CPSVariance, "CPS variance (0.2 = ±20%)"),
		combo:     fs.String("combo", def.Combo.String(), "Combo skill (none, beginner, intermediate, expert, perfect)"),
		mouse:     fs.Float64("mouse", def.MouseRatio, "Share of mouse inputs (0 = keyboard only)"),
		noAuto:    fs.Bool("no-auto-upgrade", false, "Disable in-game auto upgrades"),
		levels:    statLevels{},
		statsFile: fs.String("stats-file", "", "JSON file of starting permanent stat levels"),
	}
	fs.Var(p.levels, "stat", "Starting permanent stat level as id=level (repeatable)")
	return p
}

func (p *playerFlags) profile(base session.InputProfile) (session.InputProfile, error) {
	set := map[string]bool{}
	p.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	prof := base
	if set["cps"] {
		prof.AverageCPS = *p.cps
	}
	if set["cps-variance"] {
		prof.CPSVariance = *p.variance
	}
	if set["combo"] {
		c, err := session.ParseComboSkill(*p.combo)
		if err != nil {
			return prof, err
		}
		prof.Combo = c
	}
	if set["mouse"] {
		prof.MouseRatio = *p.mouse
	}
	if *p.noAuto {
		prof.AutoUpgrade = false
	}
	if prof.AverageCPS <= 0 {
		return prof, fmt.Errorf("cps must be positive, got %v", prof.AverageCPS)
	}
	if prof.MouseRatio < 0 || prof.MouseRatio > 1 {
		return prof, fmt.Errorf("mouse ratio must be within 0..1, got %v", prof.MouseRatio)
	}
	return prof, nil
}

func (p *playerFlags) stats(sim *session.Simulator) (*player.PermanentStats, error) {
	if *p.statsFile != "" {
		if err := p.levels.loadStatsFile(*p.statsFile); err != nil {
			return nil, err
		}
	}
	return p.levels.build(sim)
}

// progressPrinter rewrites one stderr line with a percentage. The returned
// func may be called from several goroutines.
func progressPrinter(label string) func(completed, total int) {
	var mu sync.Mutex
	last := -1
	return func(completed, total int) {
		if total <= 0 {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		pct := completed * 100 / total
		if pct <= last {
			return
		}
		last = pct
		fmt.Fprintf(os.Stderr, "\r%s: %3d%% (%d/%d)", label, pct, completed, total)
		if completed == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}
