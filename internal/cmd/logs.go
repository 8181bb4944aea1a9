package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the debug log",
	Long: `View and filter the netmon debug log.

Examples:
  # Show the last 50 entries
  netmon logs

  # Everything one session logged at WARN or above
  netmon logs -s 1a2b3c4d --level warn -n 0

  # Follow the sampling tool's launch and exit
  netmon logs -f --component ptysession`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsFile      string
	logsSessionID string
	logsComponent string
	logsTail      int
	logsFollow    bool
	logsLevel     string
	logsSince     time.Duration
	logsGrep      string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsFile, "file", "", "Log file (default: netmon.log in logging.dir)")
	logsCmd.Flags().StringVarP(&logsSessionID, "session", "s", "", "Only entries from this session ID")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Only entries from this component")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Minimum level (debug/info/warn/error)")
	logsCmd.Flags().DurationVar(&logsSince, "since", 0, "Only entries newer than this (e.g. 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Only entries whose message contains this text")
}

var levelStyles = map[string]lipgloss.Style{
	logging.LevelDebug: styles.Muted,
	logging.LevelInfo:  styles.Primary,
	logging.LevelWarn:  styles.Warning,
	logging.LevelError: styles.Error,
}

// formatLogEntry renders an entry for the terminal.
func formatLogEntry(e logging.Entry) string {
	style, ok := levelStyles[logging.ParseLevel(e.Level)]
	if !ok {
		style = styles.Text
	}
	line := e.Format()
	level := fmt.Sprintf("%-5s", e.Level)
	return strings.Replace(line, level, style.Render(level), 1)
}

func runLogs(cmd *cobra.Command, args []string) error {
	path := logsFile
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = filepath.Join(cfg.Logging.ResolveLogDir(), logging.FileName)
	}

	filter := logging.Filter{
		Level:     logsLevel,
		SessionID: logsSessionID,
		Component: logsComponent,
		Contains:  logsGrep,
	}
	if logsSince > 0 {
		filter.Since = time.Now().Add(-logsSince)
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(path); os.IsNotExist(err) && !logsFollow {
		fmt.Fprintf(out, "No log file at %s\n", path)
		return nil
	}

	if logsFollow {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return followLogs(ctx, out, path, filter)
	}
	return displayLogs(out, path, filter, logsTail)
}

// displayLogs prints the entries of path matching filter.
func displayLogs(w io.Writer, path string, filter logging.Filter, tail int) error {
	entries, err := logging.ReadFile(path)
	if err != nil {
		return err
	}

	matched := filter.Apply(entries, tail)
	for _, e := range matched {
		fmt.Fprintln(w, formatLogEntry(e))
	}
	if len(matched) == 0 {
		fmt.Fprintln(w, "No matching log entries found.")
	}
	return nil
}

// followLogs prints entries appended to path until ctx ends. A rotated
// file is picked up from its start.
func followLogs(ctx context.Context, w io.Writer, path string, filter logging.Filter) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so rotation and late creation are seen.
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch log directory: %w", err)
	}

	t := &tailer{path: path, filter: filter, w: w}
	defer t.close()
	if err := t.open(true); err != nil {
		return err
	}

	fmt.Fprintf(w, "Following %s... (Ctrl+C to stop)\n\n", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("log watcher failed: %w", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create):
				if err := t.open(false); err != nil {
					return err
				}
				t.drain()
			case ev.Has(fsnotify.Write):
				t.drain()
			}
		}
	}
}

// tailer reads complete lines appended to a log file.
type tailer struct {
	path   string
	filter logging.Filter
	w      io.Writer

	file    *os.File
	reader  *bufio.Reader
	partial string
}

// open (re)opens the file, at its end when atEnd is set. A missing file is
// not an error; it is opened once created.
func (t *tailer) open(atEnd bool) error {
	t.close()
	f, err := os.Open(t.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if atEnd {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to seek to end: %w", err)
		}
	}
	t.file = f
	t.reader = bufio.NewReader(f)
	t.partial = ""
	return nil
}

func (t *tailer) drain() {
	if t.reader == nil {
		if err := t.open(false); err != nil || t.reader == nil {
			return
		}
	}
	for {
		chunk, err := t.reader.ReadString('\n')
		t.partial += chunk
		if err != nil {
			// Keep an unterminated line for the next write.
			return
		}
		line := strings.TrimSpace(t.partial)
		t.partial = ""
		if line == "" {
			continue
		}
		e, perr := logging.ParseEntry(line)
		if perr != nil {
			fmt.Fprintln(t.w, line)
			continue
		}
		if t.filter.Match(e) {
			fmt.Fprintln(t.w, formatLogEntry(e))
		}
	}
}

func (t *tailer) close() {
	if t.file != nil {
		_ = t.file.Close()
		t.file, t.reader = nil, nil
	}
}
