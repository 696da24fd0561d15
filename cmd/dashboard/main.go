// dashboard serves the simulator over HTTP: batch and progression jobs are
// started through a JSON API and their progress is streamed over WebSocket.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/deskwarrior/simulator/internal/config"
	"github.com/deskwarrior/simulator/internal/dashboard"
	"github.com/deskwarrior/simulator/internal/logger"
	"github.com/deskwarrior/simulator/internal/store"
	"github.com/deskwarrior/simulator/internal/telemetry"
)

func main() {
	configFile := flag.String("config", "data/simulator.yaml", "Path to simulator config YAML file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	hashPassword := flag.Bool("hash-password", false, "Read a password from stdin, print its bcrypt hash and exit")
	flag.Parse()

	if *hashPassword {
		handleHashPassword()
		return
	}

	// Initialize logger first (before any logging)
	logConfig, logErr := logger.LoadConfig(*configFile)
	if err := logger.Initialize(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
	}
	if logErr != nil {
		logger.Warning("Logging config problem, using defaults", "error", logErr)
	}

	logger.Info("Starting DeskWarrior simulator dashboard")

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Warning("Config problem, continuing with defaults", "path", *configFile, "error", err)
	}
	if *addr != "" {
		cfg.Dashboard.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	sim, err := cfg.NewSimulator()
	if err != nil {
		logger.Warning("Stat table problem, using built-in tables", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		logger.Warning("Tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warning("Failed to flush traces", "error", err)
		}
	}()

	st, err := store.OpenWithConfig(cfg.Database)
	if err != nil {
		logger.Error("Failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("Database opened", "driver", cfg.Database.Driver)

	if cfg.Dashboard.PasswordHash == "" {
		logger.Warning("No dashboard password configured, job endpoints are open")
	}

	srv := dashboard.New(cfg, sim, st)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("Dashboard stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Dashboard stopped")
}

// handleHashPassword prints the bcrypt hash of the first stdin line for use
// as dashboard.password_hash or SIM_DASHBOARD_PASSWORD_HASH.
func handleHashPassword() {
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintf(os.Stderr, "Failed to read password: %v\n", err)
		os.Exit(1)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		fmt.Fprintln(os.Stderr, "Password must not be empty")
		os.Exit(1)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(hash))
}
