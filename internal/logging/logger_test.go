package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("creates log file in directory", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := New(Options{Dir: dir, Level: LevelDebug})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		logger.Info("hello")
		if err := logger.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(dir, FileName))
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if lines := decodeLines(t, data); len(lines) != 1 || lines[0]["msg"] != "hello" {
			t.Errorf("unexpected log content: %s", data)
		}
	})

	t.Run("writes to stderr when dir is empty", func(t *testing.T) {
		logger, err := New(Options{Level: LevelInfo})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close on stderr logger returned %v", err)
		}
	})
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelWarn)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	lines := decodeLines(t, buf.Bytes())
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines at WARN, got %d: %s", len(lines), buf.String())
	}
	if lines[0]["level"] != "WARN" || lines[1]["level"] != "ERROR" {
		t.Errorf("unexpected levels: %v, %v", lines[0]["level"], lines[1]["level"])
	}
}

func TestSetLevelAffectsChildren(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(&buf, LevelInfo)
	child := root.WithComponent("aggregator")

	child.Debug("hidden")
	root.SetLevel("debug")
	child.Debug("visible")

	lines := decodeLines(t, buf.Bytes())
	if len(lines) != 1 || lines[0]["msg"] != "visible" {
		t.Fatalf("expected only the post-SetLevel debug line, got %s", buf.String())
	}
	if got := child.Level(); got != LevelDebug {
		t.Errorf("Level() = %q, want %q", got, LevelDebug)
	}
	if !child.Enabled(LevelDebug) {
		t.Error("Enabled(DEBUG) = false after SetLevel")
	}
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo)

	logger.WithSession("s-1").
		WithComponent("linereader").
		With("pid", 42, 7, "ignored-non-string-key").
		Warn("dropped lines", "count", 3)

	lines := decodeLines(t, buf.Bytes())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	line := lines[0]
	want := map[string]any{
		"session_id": "s-1",
		"component":  "linereader",
		"pid":        float64(42),
		"count":      float64(3),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
}

func TestWithNoArgsReturnsSameLogger(t *testing.T) {
	logger := NopLogger()
	if logger.With() != logger {
		t.Error("With() without args should return the receiver")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	logger, err := New(Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	child := logger.WithSession("x")

	if err := child.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if got := len(ValidLevels()); got != 4 {
		t.Errorf("len(ValidLevels()) = %d, want 4", got)
	}
}

func TestConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Options{Dir: dir, Level: LevelInfo})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l := logger.With("worker", n)
			for j := 0; j < 50; j++ {
				l.Info("tick", "j", j)
			}
		}(i)
	}
	wg.Wait()
	logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if got := len(decodeLines(t, data)); got != 500 {
		t.Errorf("expected 500 lines, got %d", got)
	}
}
