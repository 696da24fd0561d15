// lambda runs simulator batches behind an AWS Lambda function URL. Build
// with -tags lambda for the Lambda runtime; without the tag the binary
// reads one request from stdin, which is handy for local checks.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/deskwarrior/simulator/internal/batch"
	"github.com/deskwarrior/simulator/internal/config"
	"github.com/deskwarrior/simulator/internal/logger"
	"github.com/deskwarrior/simulator/internal/rng"
	"github.com/deskwarrior/simulator/internal/session"
)

const maxRuns = 10000

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

type batchRequest struct {
	Runs        int                   `json:"runs"`
	TargetLevel int                   `json:"target_level"`
	Seed        uint64                `json:"seed"`
	Stats       map[string]int        `json:"stats"`
	Profile     *session.InputProfile `json:"profile"`
	Sessions    bool                  `json:"sessions"`
}

// handler runs one batch. Settings come from SIM_* environment variables;
// the body and the runs, target and seed query parameters override them.
type handler struct {
	cfg *config.SimulatorConfig
	sim *session.Simulator
}

func newHandler() (*handler, error) {
	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	sim, err := cfg.NewSimulator()
	if err != nil {
		logger.Warning("Stat table problem, using built-in tables", "error", err)
	}
	return &handler{cfg: cfg, sim: sim}, nil
}

func (h *handler) handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(http.StatusBadRequest, "invalid base64 body")
		}
		body = string(decoded)
	}

	var req batchRequest
	if body != "" {
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return errResp(http.StatusBadRequest, "invalid JSON: "+err.Error())
		}
	}
	if err := applyQuery(&req, event.QueryStringParameters); err != nil {
		return errResp(http.StatusBadRequest, err.Error())
	}

	if req.Runs == 0 {
		req.Runs = h.cfg.Batch.Runs
	}
	if req.Runs < 1 || req.Runs > maxRuns {
		return errResp(http.StatusBadRequest, fmt.Sprintf("runs must be within 1..%d", maxRuns))
	}
	if req.TargetLevel == 0 {
		req.TargetLevel = h.cfg.Batch.TargetLevel
	}
	if req.TargetLevel < 1 {
		return errResp(http.StatusBadRequest, "target_level must be positive")
	}

	stats := h.sim.NewStats()
	for id, level := range req.Stats {
		if _, ok := h.sim.PermanentTable().Lookup(id); !ok {
			return errResp(http.StatusBadRequest, fmt.Sprintf("unknown stat %q", id))
		}
		if level < 0 {
			return errResp(http.StatusBadRequest, fmt.Sprintf("stat %q: level must not be negative", id))
		}
		stats.SetLevel(id, level)
	}

	profile := h.cfg.Profile
	if req.Profile != nil {
		profile = *req.Profile
	}
	if profile.AverageCPS <= 0 {
		return errResp(http.StatusBadRequest, "profile.average_cps must be positive")
	}

	seed := req.Seed
	if seed == 0 {
		seed = h.cfg.Batch.MasterSeed
	}
	if seed == 0 {
		var err error
		if seed, err = rng.NewSeed(); err != nil {
			return errResp(http.StatusInternalServerError, "failed to draw a seed")
		}
	}

	res, err := batch.NewRunner(h.sim, h.cfg.Batch.Workers).Run(ctx, batch.Request{
		Stats:       stats,
		Profile:     profile,
		Iterations:  req.Runs,
		TargetLevel: req.TargetLevel,
		MasterSeed:  seed,
	})
	if err != nil {
		return errResp(http.StatusBadRequest, err.Error())
	}
	if !req.Sessions {
		res.Sessions = nil
	}
	logger.Info("Batch finished", "id", res.ID, "runs", res.Completed, "average", res.AverageLevel)

	respJSON, err := json.Marshal(res)
	if err != nil {
		return errResp(http.StatusInternalServerError, "failed to encode result")
	}
	return events.LambdaFunctionURLResponse{StatusCode: http.StatusOK, Headers: jsonHeader, Body: string(respJSON)}, nil
}

func applyQuery(req *batchRequest, query map[string]string) error {
	if v, ok := query["runs"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid runs %q", v)
		}
		req.Runs = n
	}
	if v, ok := query["target"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid target %q", v)
		}
		req.TargetLevel = n
	}
	if v, ok := query["seed"]; ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed %q", v)
		}
		req.Seed = n
	}
	return nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}
