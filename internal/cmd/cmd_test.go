package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/netmon/internal/config"
	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/monitor"
	"github.com/Iron-Ham/netmon/internal/nettop"
	"github.com/Iron-Ham/netmon/internal/testutil"
	"github.com/Iron-Ham/netmon/internal/traffic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// executeCommand runs a cobra command with args and returns captured stdout
// and stderr.
func executeCommand(t *testing.T, root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	outBuf, errBuf := new(bytes.Buffer), new(bytes.Buffer)
	root.SetOut(outBuf)
	root.SetErr(errBuf)
	root.SetArgs(args)
	t.Cleanup(func() {
		root.SetOut(nil)
		root.SetErr(nil)
		root.SetArgs(nil)
		_ = root.PersistentFlags().Set("config", "")
	})
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// isolateConfig points the config and state directories at a temp dir.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	return dir
}

func threeWindowCapture() string {
	return testutil.Capture(
		[]string{testutil.NettopRow("curl", 200, 1000, 0), testutil.NettopRow("idle", 300, 50, 50)},
		[]string{testutil.NettopRow("curl", 200, 2000, 500), testutil.NettopRow("idle", 300, 50, 50)},
		[]string{testutil.NettopRow("curl", 200, 4000, 500), testutil.NettopRow("idle", 300, 50, 50)},
	)
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "netmon" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "netmon")
	}

	expectedCmds := []string{"watch", "serve", "replay", "config", "logs"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestReplay(t *testing.T) {
	var windows []uint64
	final, stats, err := replay(strings.NewReader(threeWindowCapture()), nettop.DefaultSchema(),
		replayOptions{Interval: time.Second}, func(s traffic.Snapshot) error {
			windows = append(windows, s.Window)
			return nil
		})
	if err != nil {
		t.Fatalf("replay() error = %v", err)
	}

	if stats.Windows != 3 {
		t.Errorf("stats.Windows = %d, want 3", stats.Windows)
	}
	if len(windows) != 3 || windows[2] != 3 {
		t.Errorf("emitted windows = %v, want [1 2 3]", windows)
	}

	curl, ok := final.Lookup(traffic.ProcessKey{Name: "curl", PID: 200})
	if !ok || !curl.HasRate {
		t.Fatalf("curl missing or without rate: %+v", curl)
	}
	if curl.Rate.InPerSec != 2000 || curl.Rate.OutPerSec != 0 {
		t.Errorf("curl rate = %+v, want in 2000 out 0", curl.Rate)
	}
	if len(curl.History) != 2 {
		t.Errorf("curl history length = %d, want 2", len(curl.History))
	}
	if !final.Taken.Equal(replayEpoch.Add(2 * time.Second)) {
		t.Errorf("final.Taken = %v, want the third window's time", final.Taken)
	}
}

func TestReplay_Errors(t *testing.T) {
	if _, _, err := replay(strings.NewReader(""), nettop.DefaultSchema(), replayOptions{}, nil); err == nil {
		t.Error("replay() with zero interval succeeded")
	}

	stop := errors.New("stop")
	_, stats, err := replay(strings.NewReader(threeWindowCapture()), nettop.DefaultSchema(),
		replayOptions{Interval: time.Second}, func(traffic.Snapshot) error { return stop })
	if err != stop {
		t.Errorf("replay() error = %v, want the emit error", err)
	}
	if stats.Windows != 1 {
		t.Errorf("stats.Windows = %d, want 1 (stopped at the first emit)", stats.Windows)
	}
}

func TestReplayCommand(t *testing.T) {
	isolateConfig(t)
	path := testutil.WriteCapture(t, threeWindowCapture())

	tests := []struct {
		name   string
		args   []string
		check  func(t *testing.T, out string)
		stderr string
	}{
		{
			name: "json",
			args: []string{"replay", path, "--format", "json", "--every=false", "--min-rate", "0", "--limit", "0", "--sort", "in"},
			check: func(t *testing.T, out string) {
				var snap traffic.Snapshot
				if err := json.Unmarshal([]byte(out), &snap); err != nil {
					t.Fatalf("output is not a JSON snapshot: %v\n%s", err, out)
				}
				if snap.Window != 3 || len(snap.Processes) != 2 {
					t.Errorf("window = %d, processes = %d", snap.Window, len(snap.Processes))
				}
				if snap.Processes[0].Key.Name != "curl" {
					t.Errorf("first process = %s, want curl", snap.Processes[0].Key)
				}
			},
			stderr: "replayed 9 lines: 3 windows",
		},
		{
			name: "yaml with filter",
			args: []string{"replay", path, "--format", "yaml", "--every=false", "--min-rate", "100", "--limit", "0", "--sort", "in"},
			check: func(t *testing.T, out string) {
				var snap map[string]any
				if err := yaml.Unmarshal([]byte(out), &snap); err != nil {
					t.Fatalf("output is not YAML: %v\n%s", err, out)
				}
				procs, _ := snap["processes"].([]any)
				if len(procs) != 1 {
					t.Errorf("processes = %d, want 1 (idle filtered)", len(procs))
				}
				if !strings.Contains(out, "process: curl.200") {
					t.Errorf("output lacks the process key:\n%s", out)
				}
			},
		},
		{
			name: "table every window",
			args: []string{"replay", path, "--format", "table", "--every", "--min-rate", "0", "--limit", "1", "--sort", "in"},
			check: func(t *testing.T, out string) {
				if n := strings.Count(out, "PROCESS"); n != 3 {
					t.Errorf("printed %d tables, want 3", n)
				}
				if !strings.Contains(out, "2.0 KB/s") {
					t.Errorf("output lacks curl's final rate:\n%s", out)
				}
				if strings.Contains(out, "idle") {
					t.Errorf("limit 1 still lists idle:\n%s", out)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut, err := executeCommand(t, rootCmd, tt.args...)
			if err != nil {
				t.Fatalf("replay error = %v", err)
			}
			tt.check(t, out)
			if tt.stderr != "" && !strings.Contains(errOut, tt.stderr) {
				t.Errorf("stderr = %q, want it to contain %q", errOut, tt.stderr)
			}
		})
	}
}

func TestReplayCommand_BadInput(t *testing.T) {
	isolateConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"replay", filepath.Join(t.TempDir(), "nope.csv"), "--format", "table", "--sort", "in"}},
		{"unknown format", []string{"replay", "-", "--format", "xml", "--sort", "in"}},
		{"unknown sort", []string{"replay", "-", "--format", "table", "--sort", "cpu"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := executeCommand(t, rootCmd, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRenderSnapshotTable(t *testing.T) {
	snap := traffic.Snapshot{
		Window: 4,
		Processes: []traffic.ProcessView{
			{Key: traffic.ProcessKey{Name: "com.apple.WebKit.Networking", PID: 812}, Rate: traffic.RateRecord{InPerSec: 1536}, HasRate: true, Connections: 3},
			{Key: traffic.ProcessKey{Name: "new", PID: 9}},
		},
		Totals: traffic.RateRecord{InPerSec: 1536},
	}

	out := renderSnapshotTable(snap, 0)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "window 4  in 1.5 KB/s") {
		t.Errorf("summary line = %q", lines[0])
	}
	if !strings.Contains(lines[2], "1.5 KB/s") || !strings.Contains(lines[2], "812") {
		t.Errorf("process line = %q", lines[2])
	}
	if !strings.Contains(lines[3], " -") {
		t.Errorf("process without rate should show '-': %q", lines[3])
	}

	for _, line := range strings.Split(strings.TrimSpace(renderSnapshotTable(snap, 30)), "\n") {
		if len([]rune(line)) > 30 {
			t.Errorf("line exceeds width 30: %q", line)
		}
	}
}

func TestPresent(t *testing.T) {
	snap := traffic.Snapshot{Processes: []traffic.ProcessView{
		{Key: traffic.ProcessKey{Name: "a", PID: 1}, Rate: traffic.RateRecord{InPerSec: 10}, HasRate: true},
		{Key: traffic.ProcessKey{Name: "b", PID: 2}, Rate: traffic.RateRecord{InPerSec: 500}, HasRate: true},
		{Key: traffic.ProcessKey{Name: "c", PID: 3}, Rate: traffic.RateRecord{OutPerSec: 200}, HasRate: true},
	}}

	got := present(snap, traffic.SortByName, false, 100)
	if len(got.Processes) != 2 || got.Processes[0].Key.Name != "b" || got.Processes[1].Key.Name != "c" {
		t.Errorf("present() = %+v", got.Processes)
	}
	if len(snap.Processes) != 3 || snap.Processes[0].Key.Name != "a" {
		t.Error("present() modified the input snapshot")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStreamJSON(t *testing.T) {
	var mu sync.Mutex
	var window uint64
	source := monitor.SourceFunc(func(context.Context) (traffic.Snapshot, error) {
		mu.Lock()
		defer mu.Unlock()
		window++
		return traffic.Snapshot{
			Window: window,
			Processes: []traffic.ProcessView{
				{Key: traffic.ProcessKey{Name: "curl", PID: 1}, Rate: traffic.RateRecord{InPerSec: 1000}, HasRate: true},
			},
		}, nil
	})
	pub := monitor.NewPublisher(source, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	done := make(chan uint64)
	go func() {
		last, err := streamJSON(ctx, out, pub, traffic.SortByIn, 0)
		if err != nil {
			t.Errorf("streamJSON() error = %v", err)
		}
		done <- last
	}()

	deadline := time.After(5 * time.Second)
	for strings.Count(out.String(), "\n") < 3 {
		select {
		case <-deadline:
			t.Fatalf("only got %q", out.String())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	last := <-done

	var prev uint64
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	for scanner.Scan() {
		var snap traffic.Snapshot
		if err := json.Unmarshal(scanner.Bytes(), &snap); err != nil {
			t.Fatalf("line is not a snapshot: %v", err)
		}
		if snap.Window <= prev {
			t.Errorf("window %d after %d", snap.Window, prev)
		}
		prev = snap.Window
	}
	if last != prev {
		t.Errorf("streamJSON() = %d, want the last written window %d", last, prev)
	}
}

func TestConfigCommands(t *testing.T) {
	dir := isolateConfig(t)
	path := filepath.Join(dir, "netmon.yaml")

	out, _, err := executeCommand(t, rootCmd, "config", "init", "--config", path)
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("config init output = %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	var written config.Config
	if err := yaml.Unmarshal(data, &written); err != nil {
		t.Fatalf("config file is not YAML: %v", err)
	}
	if written.Sampler.Command != config.Default().Sampler.Command || written.TUI.MinRate != 100 {
		t.Errorf("written config = %+v", written)
	}

	if _, _, err := executeCommand(t, rootCmd, "config", "init", "--config", path, "--force=false"); err == nil {
		t.Error("config init overwrote an existing file without --force")
	}

	out, _, err = executeCommand(t, rootCmd, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(out, "# Config file: "+path) || !strings.Contains(out, "sampler:") {
		t.Errorf("config show output:\n%s", out)
	}

	out, _, err = executeCommand(t, rootCmd, "config", "path", "--config", path)
	if err != nil || strings.TrimSpace(out) != path {
		t.Errorf("config path = %q, %v; want %s", out, err, path)
	}

	out, _, err = executeCommand(t, rootCmd, "config", "validate", "--config", path)
	if err != nil || !strings.Contains(out, "valid") {
		t.Errorf("config validate = %q, %v", out, err)
	}
}

func TestConfigValidate_Invalid(t *testing.T) {
	isolateConfig(t)
	t.Setenv("NETMON_TUI_REFRESH_MS", "1")

	_, _, err := executeCommand(t, rootCmd, "config", "validate")
	if err == nil || !strings.Contains(err.Error(), "tui.refresh_ms") {
		t.Errorf("config validate error = %v, want a tui.refresh_ms failure", err)
	}
}

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), logging.FileName)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	logger := logging.NewWithWriter(f, logging.LevelDebug)
	logger.WithSession("s1").WithComponent("monitor").Info("monitoring session started")
	logger.WithSession("s1").WithComponent("ptysession").Debug("sampling tool launched", "pid", 42)
	logger.WithSession("s2").WithComponent("monitor").Warn("sampling stream stalled")
	logger.WithSession("s2").WithComponent("monitor").Error("monitoring session failed")
	return path
}

func TestDisplayLogs(t *testing.T) {
	path := writeLog(t)

	tests := []struct {
		name   string
		filter logging.Filter
		tail   int
		want   []string
		absent []string
	}{
		{"all", logging.Filter{}, 0, []string{"started", "launched", "stalled", "failed"}, nil},
		{"tail", logging.Filter{}, 1, []string{"failed"}, []string{"started"}},
		{"level", logging.Filter{Level: "warn"}, 0, []string{"stalled", "failed"}, []string{"started"}},
		{"session", logging.Filter{SessionID: "s1"}, 0, []string{"started", "launched"}, []string{"stalled"}},
		{"component", logging.Filter{Component: "ptysession"}, 0, []string{"launched", "pid=42"}, []string{"started"}},
		{"no match", logging.Filter{Contains: "nothing like this"}, 0, []string{"No matching log entries"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := displayLogs(&buf, path, tt.filter, tt.tail); err != nil {
				t.Fatalf("displayLogs() error = %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(out, a) {
					t.Errorf("output unexpectedly contains %q:\n%s", a, out)
				}
			}
		})
	}
}

func TestTailer(t *testing.T) {
	path := filepath.Join(t.TempDir(), logging.FileName)
	var buf bytes.Buffer
	tl := &tailer{path: path, filter: logging.Filter{Level: "info"}, w: &buf}
	defer tl.close()

	// Missing file is not an error.
	if err := tl.open(true); err != nil {
		t.Fatalf("open() on missing file error = %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	write := func(s string) {
		if _, err := f.WriteString(s); err != nil {
			t.Fatal(err)
		}
	}

	write(`{"time":"2026-01-01T10:00:00Z","level":"INFO","msg":"first"}` + "\n")
	write(`{"time":"2026-01-01T10:00:01Z","level":"DEBUG","msg":"hidden"}` + "\n")
	write(`{"time":"2026-01-01T10:00:02Z","level":"WARN","msg":"sec`)
	tl.drain()

	out := buf.String()
	if !strings.Contains(out, "first") || strings.Contains(out, "hidden") || strings.Contains(out, "sec") {
		t.Fatalf("after first drain:\n%s", out)
	}

	write(`ond"}` + "\nnot json\n")
	tl.drain()
	out = buf.String()
	if !strings.Contains(out, "second") {
		t.Errorf("completed line not printed:\n%s", out)
	}
	if !strings.Contains(out, "not json") {
		t.Errorf("raw line not printed:\n%s", out)
	}
}

func TestFormatLogEntry(t *testing.T) {
	e := logging.Entry{
		Time:      time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		Level:     logging.LevelWarn,
		Message:   "sampling stream stalled",
		Component: "monitor",
	}
	out := formatLogEntry(e)
	for _, want := range []string{"10:00:00.000", "WARN", "[monitor]", "sampling stream stalled"} {
		if !strings.Contains(out, want) {
			t.Errorf("formatLogEntry() = %q, missing %q", out, want)
		}
	}
}

func TestNewSecrets_UsesEnv(t *testing.T) {
	cfg := config.Default()
	cfg.Sampler.SecretEnv = "NETMON_TEST_PASSWORD"
	t.Setenv("NETMON_TEST_PASSWORD", "hunter2")

	s, err := newSecrets(cfg).Obtain(context.Background())
	if err != nil {
		t.Fatalf("Obtain() error = %v", err)
	}
	if s.Reveal() != "hunter2" {
		t.Error("secret not read from the environment")
	}
}

func TestNewLogger_Disabled(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Enabled = false
	cfg.Logging.Dir = t.TempDir()
	logger, err := newLogger(cfg)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Error("dropped")
	_ = logger.Close()

	if _, err := os.Stat(filepath.Join(cfg.Logging.Dir, logging.FileName)); !os.IsNotExist(err) {
		t.Errorf("disabled logging created a log file (stat error %v)", err)
	}
}

func TestNewLogger_WritesFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Dir = t.TempDir()
	logger, err := newLogger(cfg)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("hello")
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := logging.ReadFile(filepath.Join(cfg.Logging.Dir, logging.FileName))
	if err != nil || len(entries) != 1 || entries[0].Message != "hello" {
		t.Errorf("log entries = %+v, %v", entries, err)
	}
}
