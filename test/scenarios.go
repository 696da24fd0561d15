// Package test holds end-to-end scenarios run against a live dashboard by
// cmd/testrunner.
package test

import (
	"context"
	"fmt"
	"time"

	"github.com/deskwarrior/simulator/internal/dashclient"
)

// Verbose controls whether detailed logging is shown during tests
var Verbose = false

// jobTimeout bounds how long a scenario waits for one job.
var jobTimeout = 2 * time.Minute

// Target is the dashboard under test.
type Target struct {
	URL      string
	Password string
}

// TestResult represents the result of a test
type TestResult struct {
	Name    string
	Passed  bool
	Message string
}

func pass(name, format string, args ...any) TestResult {
	return TestResult{Name: name, Passed: true, Message: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) TestResult {
	return TestResult{Name: name, Passed: false, Message: fmt.Sprintf(format, args...)}
}

// logAction logs a test action when verbose mode is enabled
func logAction(testName, action string) {
	if Verbose {
		fmt.Printf("  [%s] %s\n", testName, action)
	}
}

// logResult logs an expected vs actual result when verbose mode is enabled
func logResult(testName string, success bool, detail string) {
	if Verbose {
		status := "OK"
		if !success {
			status = "FAIL"
		}
		fmt.Printf("  [%s] %s: %s\n", testName, status, detail)
	}
}

// connect returns a client subscribed to the progress stream.
func connect(ctx context.Context, t Target) (*dashclient.Client, error) {
	c := dashclient.New(t.URL, t.Password)
	if err := c.Subscribe(ctx); err != nil {
		return nil, err
	}
	// Give the hub a moment to register the subscriber.
	time.Sleep(100 * time.Millisecond)
	return c, nil
}

// Scenario is one named end-to-end check.
type Scenario struct {
	Name string
	Run  func(Target) TestResult
}

// Scenarios lists every check in the order RunAllTests runs them. API
// checks come first so a broken dashboard fails fast.
var Scenarios = []Scenario{
	{"health", TestHealth},
	{"bad-requests", TestRejectsBadRequests},
	{"unknown-result", TestUnknownResult},
	{"batch", TestBatchJob},
	{"batch-reproducible", TestBatchReproducible},
	{"progression", TestProgressionJob},
}

// RunAllTests runs every scenario in order.
func RunAllTests(t Target) []TestResult {
	return RunMatching(t, nil)
}

// RunMatching runs the scenarios whose name match accepts. A nil match
// runs them all.
func RunMatching(t Target, match func(string) bool) []TestResult {
	var results []TestResult
	for _, sc := range Scenarios {
		if match != nil && !match(sc.Name) {
			continue
		}
		results = append(results, sc.Run(t))
	}
	return results
}

// WaitReady polls the dashboard health endpoint until it answers or ctx
// ends.
func WaitReady(ctx context.Context, t Target) error {
	c := dashclient.New(t.URL, t.Password)
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()
	for {
		err := c.Healthy(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("dashboard not ready: %w", err)
		case <-tick.C:
		}
	}
}

// PrintResults prints each result and a summary line, and returns the
// number of failures.
func PrintResults(results []TestResult) int {
	failed := 0
	fmt.Println("=== Dashboard Scenarios ===")
	fmt.Println()
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
			failed++
		}
		fmt.Printf("[%s] %-20s %s\n", status, r.Name, r.Message)
	}
	fmt.Println()
	fmt.Printf("%d run, %d passed, %d failed\n", len(results), len(results)-failed, failed)
	return failed
}
