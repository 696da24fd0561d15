package test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/deskwarrior/simulator/internal/config"
	"github.com/deskwarrior/simulator/internal/dashboard"
	"github.com/deskwarrior/simulator/internal/session"
	"github.com/deskwarrior/simulator/internal/store"
)

func TestScenariosAgainstLocalDashboard(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Batch.Workers = 2
	st, err := store.Open(filepath.Join(t.TempDir(), "scenarios.db"))
	if err != nil {
		t.Fatal(err)
	}
	srv := dashboard.New(cfg, session.NewDefault(), st)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		st.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := WaitReady(ctx, Target{URL: ts.URL}); err != nil {
		t.Fatal(err)
	}

	for _, r := range RunAllTests(Target{URL: ts.URL}) {
		if !r.Passed {
			t.Errorf("%s: %s", r.Name, r.Message)
		}
	}
}

func TestRunMatchingFilters(t *testing.T) {
	calls := 0
	saved := Scenarios
	defer func() { Scenarios = saved }()
	Scenarios = []Scenario{
		{"batch", func(Target) TestResult { calls++; return pass("batch", "ok") }},
		{"progression", func(Target) TestResult { calls++; return fail("progression", "no") }},
	}

	results := RunMatching(Target{}, func(name string) bool { return name == "progression" })
	if len(results) != 1 || calls != 1 || results[0].Passed {
		t.Errorf("results = %+v, calls = %d", results, calls)
	}
	if got := len(RunAllTests(Target{})); got != 2 {
		t.Errorf("RunAllTests ran %d scenarios", got)
	}
}

func TestWaitReadyTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := WaitReady(ctx, Target{URL: "http://127.0.0.1:1"}); err == nil {
		t.Error("expected error for unreachable dashboard")
	}
}
