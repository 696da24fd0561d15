// simulate is a Monte Carlo balance simulator for the DeskWarrior idle
// clicker.
//
// Usage:
//
//	simulate [command] [options]
//
// Commands:
//
//	batch     - Play many independent sessions with one set of stats
//	progress  - Play sessions back to back, spending crystals in between
//	analyze   - Search crystal allocations and grade route diversity
//	debug     - Play one session and print every event
//	formulas  - Print the HP, gold, cost and CPS curves
//	validate  - Check the configuration and stat tables
//	history   - List stored batches, progressions and analyses
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "batch":
		err = runBatch(ctx, os.Args[2:])
	case "progress":
		err = runProgress(ctx, os.Args[2:])
	case "analyze":
		err = runAnalyze(ctx, os.Args[2:])
	case "debug":
		err = runDebug(ctx, os.Args[2:])
	case "formulas":
		err = runFormulas(ctx, os.Args[2:])
	case "validate":
		err = runValidate(ctx, os.Args[2:])
	case "history":
		err = runHistory(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`DeskWarrior Balance Simulator

A Monte Carlo simulator for testing idle clicker balance.

Usage: simulate <command> [options]

Commands:
  batch     Play many independent sessions with one set of stats
  progress  Play sessions back to back, spending crystals in between
  analyze   Search crystal allocations and grade route diversity
  debug     Play one session and print every event
  formulas  Print the HP, gold, cost and CPS curves
  validate  Check the configuration and stat tables
  history   List stored batches, progressions and analyses

Examples:
  simulate batch -runs=1000 -target=50 -cps=8 -combo=expert -stat base_attack=20
  simulate progress -strategy=balanced -target=100 -max-sessions=500
  simulate progress -compare -target=60
  simulate analyze -crystals=5000 -quick -report=md -out=report.md
  simulate debug -seed=42 -cps=6
  simulate formulas -stages=100 -step=10
  simulate validate -config=data/simulator.yaml
  simulate history -limit=20

Every command accepts -config (default data/simulator.yaml). SIM_* environment
variables override the file, e.g. SIM_BATCH_RUNS=500.

Use "simulate <command> -h" for more information about a command.`)
}
