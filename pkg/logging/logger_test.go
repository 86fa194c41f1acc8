package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
	if cfg.File.Path != "" {
		t.Errorf("Expected file logging off by default, got %q", cfg.File.Path)
	}
	if cfg.File.MaxSizeMB == 0 || cfg.File.MaxBackups == 0 {
		t.Error("Expected rotation defaults to be set")
	}
}

// decodeLine parses the single JSON log line written to buf.
func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log output is not one JSON line: %v: %q", err, buf.String())
	}
	return line
}

func TestSetup_Levels(t *testing.T) {
	tests := []struct {
		level LogLevel
		emit  func(l *zerolog.Logger) *zerolog.Event
		want  string
	}{
		{LevelDebug, (*zerolog.Logger).Debug, "debug"},
		{LevelInfo, (*zerolog.Logger).Info, "info"},
		{LevelWarn, (*zerolog.Logger).Warn, "warn"},
		{LevelError, (*zerolog.Logger).Error, "error"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.emit(&logger).
				Str("url", "https://export.arxiv.org/api/query?start=0").
				Int("attempt", 1).
				Msg("Requesting page")

			line := decodeLine(t, buf)
			if line["level"] != tt.want {
				t.Errorf("level = %v, want %s", line["level"], tt.want)
			}
			if line["url"] != "https://export.arxiv.org/api/query?start=0" {
				t.Errorf("url = %v", line["url"])
			}
			if line["attempt"] != float64(1) {
				t.Errorf("attempt = %v, want 1", line["attempt"])
			}
			if _, ok := line["time"]; !ok {
				t.Error("expected a timestamp field")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseLevelString(t *testing.T) {
	tests := map[string]LogLevel{
		"DEBUG":   LevelDebug,
		" info ":  LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("arxiv-client")
	logger.Warn().
		Str("url", "https://export.arxiv.org/api/query?start=200").
		Int("index", 3).
		Str("field", "id").
		Msg("Dropped malformed entry")

	line := decodeLine(t, buf)
	if line["component"] != "arxiv-client" {
		t.Errorf("component = %v, want arxiv-client", line["component"])
	}
	if line["field"] != "id" {
		t.Errorf("field = %v, want id", line["field"])
	}
	if line["message"] != "Dropped malformed entry" {
		t.Errorf("message = %v", line["message"])
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})

	logger := NewLogger("pagination")

	logger.Debug().Int("offset", 0).Msg("Starting result walk")
	logger.Info().Str("entry_id", "2101.00001v1").Msg("Downloaded")
	logger.Warn().Int("offset", 300).Msg("Fetcher returned empty page")
	logger.Error().Str("error_class", "server").Msg("Retry attempts exhausted")

	output := buf.String()
	if strings.Contains(output, "Starting result walk") {
		t.Error("Debug message should be filtered out at Warn level")
	}
	if strings.Contains(output, "Downloaded") {
		t.Error("Info message should be filtered out at Warn level")
	}
	if !strings.Contains(output, "Fetcher returned empty page") {
		t.Error("Warn message should be included at Warn level")
	}
	if !strings.Contains(output, `"error_class":"server"`) {
		t.Error("Error message should be included at Warn level")
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Str("entry_id", "2101.00001v1").Msg("Downloaded")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("expected console output, got JSON: %q", out)
	}
	if !strings.Contains(out, "Downloaded") || !strings.Contains(out, "2101.00001v1") {
		t.Errorf("console output missing message or field: %q", out)
	}
}

func TestSetupWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arxiv.log")
	buf := &bytes.Buffer{}

	cfg := DefaultConfig()
	cfg.Output = buf
	cfg.File.Path = path
	Setup(cfg)
	t.Cleanup(func() { Close() })

	logger := NewLogger("download")
	logger.Info().Str("entry_id", "2101.00001v1").Msg("saved document")

	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{"saved document", "2101.00001v1", `"component":"download"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %q: %s", want, data)
		}
		if !strings.Contains(buf.String(), want) {
			t.Errorf("console output missing %q: %s", want, buf.String())
		}
	}
}

func TestCloseWithoutFile(t *testing.T) {
	Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}})
	if err := Close(); err != nil {
		t.Errorf("Close without file: %v", err)
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("buffer reported as terminal")
	}

	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Error("regular file reported as terminal")
	}
}
