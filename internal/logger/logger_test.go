package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLogLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("nonexistent.yaml")
	if err != nil {
		t.Fatalf("LoadConfig returned error for missing file: %v", err)
	}

	if config.Level != "INFO" {
		t.Errorf("Default level = %q, want %q", config.Level, "INFO")
	}
	if !config.ConsoleEnabled {
		t.Error("Default ConsoleEnabled = false, want true")
	}
	if config.ConsoleFormat != "text" {
		t.Errorf("Default ConsoleFormat = %q, want %q", config.ConsoleFormat, "text")
	}
	if config.FileEnabled {
		t.Error("Default FileEnabled = true, want false")
	}
	if config.FilePath != "logs/simulator.log" {
		t.Errorf("Default FilePath = %q, want %q", config.FilePath, "logs/simulator.log")
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "logging-test-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	yamlContent := `logging:
  level: DEBUG
  console_enabled: true
  console_format: json
  file_enabled: true
  file_path: test.log
  file_max_size_mb: 20
`
	if _, err := tmpFile.Write([]byte(yamlContent)); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	tmpFile.Close()

	config, err := LoadConfig(tmpFile.Name())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.Level != "DEBUG" {
		t.Errorf("Level = %q, want %q", config.Level, "DEBUG")
	}
	if config.ConsoleFormat != "json" {
		t.Errorf("ConsoleFormat = %q, want %q", config.ConsoleFormat, "json")
	}
	if !config.FileEnabled {
		t.Error("FileEnabled = false, want true")
	}
	if config.FilePath != "test.log" {
		t.Errorf("FilePath = %q, want %q", config.FilePath, "test.log")
	}
	if config.FileMaxSizeMB != 20 {
		t.Errorf("FileMaxSizeMB = %d, want %d", config.FileMaxSizeMB, 20)
	}
}

func TestEnvVarOverride(t *testing.T) {
	t.Setenv("SIM_LOG_LEVEL", "ERROR")
	t.Setenv("SIM_LOG_FORMAT", "json")
	t.Setenv("SIM_LOG_FILE_ENABLED", "true")
	t.Setenv("SIM_LOG_FILE_PATH", "/custom/path.log")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.Level != "ERROR" {
		t.Errorf("Level = %q, want %q (from env var)", config.Level, "ERROR")
	}
	if config.ConsoleFormat != "json" {
		t.Errorf("ConsoleFormat = %q, want %q (from env var)", config.ConsoleFormat, "json")
	}
	if !config.FileEnabled {
		t.Error("FileEnabled = false, want true (from env var)")
	}
	if config.FilePath != "/custom/path.log" {
		t.Errorf("FilePath = %q, want %q (from env var)", config.FilePath, "/custom/path.log")
	}
}

func TestEnvVarInvalid(t *testing.T) {
	t.Setenv("SIM_LOG_FILE_ENABLED", "sometimes")
	if _, err := LoadConfig(""); err == nil {
		t.Error("expected error for invalid SIM_LOG_FILE_ENABLED")
	}
}

func TestLoadConfigKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulator.yaml")
	content := `batch:
  runs: 10
logging:
  level: WARN
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if config.Level != "WARN" {
		t.Errorf("Level = %q, want WARN", config.Level)
	}
	if !config.ConsoleEnabled || config.ConsoleOutput != "stderr" {
		t.Errorf("console defaults lost: %+v", config)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulator.yaml")
	if err := os.WriteFile(path, []byte("logging: [oops"), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err == nil {
		t.Error("expected parse error")
	}
	if config.Level != "INFO" {
		t.Errorf("Level = %q, want default INFO", config.Level)
	}
}

func TestInitializeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sim.log")
	config := DefaultConfig()
	config.ConsoleEnabled = false
	config.FileEnabled = true
	config.FilePath = path
	config.FileFormat = "json"
	if err := Initialize(config); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer func() { logger = nil }()

	Info("batch finished", "runs", 3)
	Debug("below level")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"batch finished"`) || !strings.Contains(out, `"runs":3`) {
		t.Errorf("unexpected file contents: %s", out)
	}
	if strings.Contains(out, "below level") {
		t.Errorf("DEBUG written at INFO level: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(newHandler(&buf, "text", slog.LevelWarn))
	defer func() { logger = nil }()

	Debug("debug message")
	Info("info message")
	Warning("warning message", "job", "j1")
	Error("error message")

	out := buf.String()
	for _, hidden := range []string{"debug message", "info message"} {
		if strings.Contains(out, hidden) {
			t.Errorf("%q logged at WARN level", hidden)
		}
	}
	for _, shown := range []string{"warning message", "job=j1", "error message"} {
		if !strings.Contains(out, shown) {
			t.Errorf("output missing %q: %s", shown, out)
		}
	}
}

func TestContextAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(traceHandler{newHandler(&buf, "json", slog.LevelDebug)})
	defer func() { logger = nil }()

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b},
		SpanID:     trace.SpanID{0x01},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	InfoContext(ctx, "in span")
	Info("no span")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"trace_id":"`+sc.TraceID().String()+`"`) ||
		!strings.Contains(lines[0], `"span_id":"`+sc.SpanID().String()+`"`) {
		t.Errorf("span ids missing: %s", lines[0])
	}
	if strings.Contains(lines[1], "trace_id") {
		t.Errorf("trace id without a span: %s", lines[1])
	}
}

func TestFanout(t *testing.T) {
	var info, errs bytes.Buffer
	logger = slog.New(fanout{
		newHandler(&info, "text", slog.LevelInfo),
		newHandler(&errs, "text", slog.LevelError),
	}.WithAttrs([]slog.Attr{slog.String("component", "batch")}))
	defer func() { logger = nil }()

	Info("progress")
	Error("failed")

	if !strings.Contains(info.String(), "progress") || !strings.Contains(info.String(), "failed") {
		t.Errorf("info sink = %s", info.String())
	}
	if strings.Contains(errs.String(), "progress") || !strings.Contains(errs.String(), "component=batch") {
		t.Errorf("error sink = %s", errs.String())
	}
}

func TestNilLogger(t *testing.T) {
	logger = nil
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("logging before Initialize panicked: %v", r)
		}
	}()

	Debug("debug")
	Info("info")
	Warning("warning")
	Error("error")
	InfoContext(context.Background(), "info")
}
