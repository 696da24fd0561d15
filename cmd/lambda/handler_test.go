package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/deskwarrior/simulator/internal/batch"
)

func newTestHandler(t *testing.T) *handler {
	t.Helper()
	h, err := newHandler()
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestHandleRunsBatch(t *testing.T) {
	h := newTestHandler(t)
	resp, err := h.handle(context.Background(), events.LambdaFunctionURLRequest{
		Body: `{"runs": 8, "target_level": 5, "seed": 42, "stats": {"base_attack": 3}}`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}
	var res batch.Result
	if err := json.Unmarshal([]byte(resp.Body), &res); err != nil {
		t.Fatal(err)
	}
	if res.Completed != 8 || res.MasterSeed != 42 || res.TargetLevel != 5 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Sessions) != 0 {
		t.Errorf("sessions should be omitted, got %d", len(res.Sessions))
	}
}

func TestHandleQueryAndBase64(t *testing.T) {
	h := newTestHandler(t)
	resp, _ := h.handle(context.Background(), events.LambdaFunctionURLRequest{
		Body:                  base64.StdEncoding.EncodeToString([]byte(`{"runs": 100, "sessions": true}`)),
		IsBase64Encoded:       true,
		QueryStringParameters: map[string]string{"runs": "3", "seed": "7"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, resp.Body)
	}
	var res batch.Result
	if err := json.Unmarshal([]byte(resp.Body), &res); err != nil {
		t.Fatal(err)
	}
	if res.Completed != 3 || res.MasterSeed != 7 || len(res.Sessions) != 3 {
		t.Errorf("completed = %d, seed = %d, sessions = %d", res.Completed, res.MasterSeed, len(res.Sessions))
	}
}

func TestHandleSameSeedSameResult(t *testing.T) {
	h := newTestHandler(t)
	req := events.LambdaFunctionURLRequest{Body: `{"runs": 5, "seed": 99}`}
	a, _ := h.handle(context.Background(), req)
	b, _ := h.handle(context.Background(), req)
	var ra, rb batch.Result
	if err := json.Unmarshal([]byte(a.Body), &ra); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(b.Body), &rb); err != nil {
		t.Fatal(err)
	}
	if ra.AverageLevel != rb.AverageLevel || ra.MaxLevel != rb.MaxLevel {
		t.Errorf("same seed gave %v/%d and %v/%d", ra.AverageLevel, ra.MaxLevel, rb.AverageLevel, rb.MaxLevel)
	}
}

func TestHandleRejectsBadRequests(t *testing.T) {
	h := newTestHandler(t)
	tests := []struct {
		name  string
		event events.LambdaFunctionURLRequest
	}{
		{"bad json", events.LambdaFunctionURLRequest{Body: `{"runs":`}},
		{"bad base64", events.LambdaFunctionURLRequest{Body: "!!", IsBase64Encoded: true}},
		{"too many runs", events.LambdaFunctionURLRequest{Body: `{"runs": 10001}`}},
		{"negative target", events.LambdaFunctionURLRequest{Body: `{"target_level": -1}`}},
		{"unknown stat", events.LambdaFunctionURLRequest{Body: `{"stats": {"luck": 1}}`}},
		{"negative stat", events.LambdaFunctionURLRequest{Body: `{"stats": {"base_attack": -2}}`}},
		{"bad profile", events.LambdaFunctionURLRequest{Body: `{"profile": {"average_cps": 0}}`}},
		{"bad query", events.LambdaFunctionURLRequest{QueryStringParameters: map[string]string{"runs": "many"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.handle(context.Background(), tt.event)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, body = %s", resp.StatusCode, resp.Body)
			}
			var body map[string]string
			if err := json.Unmarshal([]byte(resp.Body), &body); err != nil || body["error"] == "" {
				t.Errorf("body = %s", resp.Body)
			}
		})
	}
}

func TestHandlerReadsEnvironment(t *testing.T) {
	t.Setenv("SIM_BATCH_RUNS", "4")
	t.Setenv("SIM_BATCH_MASTER_SEED", "11")
	h := newTestHandler(t)
	resp, _ := h.handle(context.Background(), events.LambdaFunctionURLRequest{})
	var res batch.Result
	if err := json.Unmarshal([]byte(resp.Body), &res); err != nil {
		t.Fatal(err)
	}
	if res.Completed != 4 || res.MasterSeed != 11 {
		t.Errorf("completed = %d, seed = %d", res.Completed, res.MasterSeed)
	}
}
