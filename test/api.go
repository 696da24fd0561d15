package test

import (
	"context"
	"fmt"
	"net/http"

	"github.com/deskwarrior/simulator/internal/dashclient"
)

// =============================================================================
// Group 1: API surface
// =============================================================================

// TestHealth checks the health endpoint.
func TestHealth(t Target) TestResult {
	const testName = "Health Check"

	logAction(testName, "GET /healthz")
	if err := dashclient.New(t.URL, t.Password).Healthy(context.Background()); err != nil {
		return fail(testName, "Health check failed: %v", err)
	}
	return pass(testName, "Dashboard is up")
}

// TestRejectsBadRequests checks that invalid job requests are refused
// before anything runs.
func TestRejectsBadRequests(t Target) TestResult {
	const testName = "Bad Requests"
	ctx := context.Background()
	c := dashclient.New(t.URL, t.Password)

	cases := []struct {
		label string
		start func() error
	}{
		{"unknown stat", func() error {
			_, err := c.StartBatch(ctx, dashclient.JobRequest{Runs: 1, Stats: map[string]int{"no_such_stat": 1}})
			return err
		}},
		{"negative stat level", func() error {
			_, err := c.StartBatch(ctx, dashclient.JobRequest{Runs: 1, Stats: map[string]int{"base_attack": -1}})
			return err
		}},
		{"too many runs", func() error {
			_, err := c.StartBatch(ctx, dashclient.JobRequest{Runs: 1_000_000})
			return err
		}},
		{"unknown strategy", func() error {
			_, err := c.StartProgression(ctx, dashclient.JobRequest{Strategy: "yolo"})
			return err
		}},
	}

	for _, tc := range cases {
		logAction(testName, "Sending "+tc.label)
		err := tc.start()
		code := dashclient.StatusCode(err)
		ok := code == http.StatusBadRequest
		logResult(testName, ok, fmt.Sprintf("%s -> %d", tc.label, code))
		if !ok {
			return fail(testName, "%s: want 400, got %d (%v)", tc.label, code, err)
		}
	}
	return pass(testName, "%d invalid requests rejected", len(cases))
}

// TestUnknownResult checks that missing results are reported as 404.
func TestUnknownResult(t Target) TestResult {
	const testName = "Unknown Result"
	ctx := context.Background()
	c := dashclient.New(t.URL, t.Password)

	if _, err := c.Batch(ctx, "does-not-exist"); dashclient.StatusCode(err) != http.StatusNotFound {
		return fail(testName, "batch: want 404, got %v", err)
	}
	if _, err := c.Job(ctx, "does-not-exist"); dashclient.StatusCode(err) != http.StatusNotFound {
		return fail(testName, "job: want 404, got %v", err)
	}
	return pass(testName, "Missing batch and job return 404")
}
