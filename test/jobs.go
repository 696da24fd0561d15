package test

import (
	"context"
	"fmt"
	"maps"

	"github.com/deskwarrior/simulator/internal/dashboard"
	"github.com/deskwarrior/simulator/internal/dashclient"
	"github.com/deskwarrior/simulator/internal/progression"
)

// =============================================================================
// Group 2: Jobs
// =============================================================================

// checkEvents verifies the event stream of a finished job: started comes
// first when seen, progress never goes backwards, done comes last.
func checkEvents(events []dashboard.Event, total int) error {
	if len(events) == 0 {
		return fmt.Errorf("no events")
	}
	if events[0].Type != dashboard.EventStarted && events[0].Type != dashboard.EventProgress &&
		events[0].Type != dashboard.EventDone {
		return fmt.Errorf("unexpected first event %+v", events[0])
	}
	last := 0
	for i, e := range events {
		if e.Type == dashboard.EventStarted && i != 0 {
			return fmt.Errorf("started event at position %d", i)
		}
		if e.Type == dashboard.EventProgress {
			if e.Completed < last {
				return fmt.Errorf("progress went back from %d to %d", last, e.Completed)
			}
			last = e.Completed
			if total > 0 && e.Total != total {
				return fmt.Errorf("progress total %d, want %d", e.Total, total)
			}
		}
	}
	done := events[len(events)-1]
	if done.Type != dashboard.EventDone {
		return fmt.Errorf("last event is %s, want done", done.Type)
	}
	if done.Message != dashboard.StateDone || done.Error != "" {
		return fmt.Errorf("job ended as %s: %s", done.Message, done.Error)
	}
	return nil
}

// TestBatchJob runs a small batch and checks its events, status and
// stored result.
func TestBatchJob(t Target) TestResult {
	const testName = "Batch Job"
	ctx := context.Background()

	c, err := connect(ctx, t)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer c.Close()

	logAction(testName, "Starting batch of 20 runs")
	started, err := c.StartBatch(ctx, dashclient.JobRequest{Runs: 20, TargetLevel: 5, Seed: 1})
	if err != nil {
		return fail(testName, "Start failed: %v", err)
	}

	if _, ok := c.WaitForDone(started.Job, jobTimeout); !ok {
		return fail(testName, "Job %s did not finish in %s", started.Job, jobTimeout)
	}
	if err := checkEvents(c.JobEvents(started.Job), 20); err != nil {
		return fail(testName, "Event stream: %v", err)
	}
	logResult(testName, true, "Event stream complete")

	status, err := c.Job(ctx, started.Job)
	if err != nil {
		return fail(testName, "Job status failed: %v", err)
	}
	if status.State != dashboard.StateDone || status.Completed != status.Total {
		return fail(testName, "Job status = %+v", status)
	}

	res, err := c.Batch(ctx, started.Job)
	if err != nil {
		return fail(testName, "Stored result missing: %v", err)
	}
	if res.Completed != 20 || res.MasterSeed != 1 || res.TargetLevel != 5 {
		return fail(testName, "Stored result = completed %d, seed %d, target %d", res.Completed, res.MasterSeed, res.TargetLevel)
	}
	logResult(testName, true, fmt.Sprintf("Average level %.1f", res.AverageLevel))
	return pass(testName, "20 sessions, average level %.1f, success %.0f%%", res.AverageLevel, res.SuccessRate*100)
}

// TestBatchReproducible runs the same seeded batch twice.
func TestBatchReproducible(t Target) TestResult {
	const testName = "Batch Reproducible"
	ctx := context.Background()

	c, err := connect(ctx, t)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer c.Close()

	req := dashclient.JobRequest{Runs: 10, TargetLevel: 5, Seed: 424242}
	var levels []map[int]int
	for i := range 2 {
		logAction(testName, fmt.Sprintf("Starting run %d", i+1))
		started, err := c.StartBatch(ctx, req)
		if err != nil {
			return fail(testName, "Start failed: %v", err)
		}
		if _, ok := c.WaitForDone(started.Job, jobTimeout); !ok {
			return fail(testName, "Job %s did not finish", started.Job)
		}
		res, err := c.Batch(ctx, started.Job)
		if err != nil {
			return fail(testName, "Stored result missing: %v", err)
		}
		levels = append(levels, res.LevelCounts)
	}

	same := maps.Equal(levels[0], levels[1])
	logResult(testName, same, fmt.Sprintf("%v vs %v", levels[0], levels[1]))
	if !same {
		return fail(testName, "Level counts differ: %v vs %v", levels[0], levels[1])
	}
	return pass(testName, "Same seed gave the same level distribution")
}

// TestProgressionJob runs a short progression and checks the stored
// result.
func TestProgressionJob(t Target) TestResult {
	const testName = "Progression Job"
	ctx := context.Background()

	c, err := connect(ctx, t)
	if err != nil {
		return fail(testName, "Connection failed: %v", err)
	}
	defer c.Close()

	logAction(testName, "Starting greedy progression to level 5")
	started, err := c.StartProgression(ctx, dashclient.JobRequest{
		TargetLevel: 5, Seed: 3, Strategy: "greedy", MaxSessions: 30,
	})
	if err != nil {
		return fail(testName, "Start failed: %v", err)
	}
	if _, ok := c.WaitForDone(started.Job, jobTimeout); !ok {
		return fail(testName, "Job %s did not finish", started.Job)
	}
	if err := checkEvents(c.JobEvents(started.Job), 0); err != nil {
		return fail(testName, "Event stream: %v", err)
	}

	res, err := c.Progression(ctx, started.Job)
	if err != nil {
		return fail(testName, "Stored result missing: %v", err)
	}
	if res.Strategy != progression.Greedy || len(res.Sessions) == 0 || len(res.Sessions) > 30 {
		return fail(testName, "Stored result = strategy %s, %d sessions", res.Strategy, len(res.Sessions))
	}
	if res.Success && res.AttemptsNeeded != len(res.Sessions) {
		return fail(testName, "Attempts %d but %d sessions", res.AttemptsNeeded, len(res.Sessions))
	}
	return pass(testName, "%d sessions, best level %d, success %v", len(res.Sessions), res.BestLevelEver, res.Success)
}
