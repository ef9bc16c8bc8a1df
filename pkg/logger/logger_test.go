package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// swapDefault installs l as the default logger for the duration of the test
func swapDefault(t *testing.T, l *slog.Logger) {
	t.Helper()
	prev := Default
	SetDefault(l)
	t.Cleanup(func() { SetDefault(prev) })
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewFormat(t *testing.T) {
	var jsonBuf, textBuf bytes.Buffer
	NewFormat("json", "info", &jsonBuf).Info("hello", "generation", 3)
	NewFormat("text", "info", &textBuf).Info("hello", "generation", 3)

	var entry map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &entry); err != nil {
		t.Fatalf("json format did not produce JSON: %v", err)
	}
	if !strings.Contains(textBuf.String(), "generation=3") {
		t.Errorf("text format output %q missing generation=3", textBuf.String())
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		logFunc  func(string, ...any)
		logMsg   string
		expected bool
	}{
		{"Debug when debug level", "debug", Debug, "debug message", true},
		{"Debug when info level", "info", Debug, "debug message", false},
		{"Info when warn level", "warn", Info, "info message", false},
		{"Warn when info level", "info", Warn, "warn message", true},
		{"Error when error level", "error", Error, "error message", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			swapDefault(t, New(tt.logLevel, &buf))

			tt.logFunc(tt.logMsg)
			output := buf.String()

			if tt.expected && !strings.Contains(output, tt.logMsg) {
				t.Errorf("Expected log output to contain '%s', got: %s", tt.logMsg, output)
			}
			if !tt.expected && strings.Contains(output, tt.logMsg) {
				t.Errorf("Expected log output NOT to contain '%s', but it did: %s", tt.logMsg, output)
			}
		})
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	swapDefault(t, New("info", &buf))

	Info("generation cranked", "session_id", "sess-1", "generation", 42)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("Failed to parse JSON log output: %v", err)
	}
	if logEntry["msg"] != "generation cranked" {
		t.Errorf("Expected msg 'generation cranked', got '%v'", logEntry["msg"])
	}
	if logEntry["session_id"] != "sess-1" {
		t.Errorf("Expected session_id 'sess-1', got '%v'", logEntry["session_id"])
	}
	if logEntry["generation"] != float64(42) {
		t.Errorf("Expected generation 42, got '%v'", logEntry["generation"])
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	swapDefault(t, New("info", &buf))

	With("problem", "schwefel").Info("solution found")

	output := buf.String()
	if !strings.Contains(output, `"problem":"schwefel"`) {
		t.Errorf("Expected log output to carry the problem attribute, got: %s", output)
	}
}
