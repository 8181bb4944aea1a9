package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Entry is one parsed JSON log line.
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	SessionID string         `json:"session_id,omitempty"`
	Component string         `json:"component,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// Filter selects log entries. Zero-valued fields do not filter.
type Filter struct {
	// Level is the minimum level (DEBUG < INFO < WARN < ERROR).
	Level     string
	Since     time.Time
	SessionID string
	Component string
	// Contains matches a substring of the message.
	Contains string
}

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadFile parses every JSON line in path, skipping lines that are not
// valid log entries.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses JSON log lines from r.
func Read(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := ParseEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("error reading log file: %w", err)
	}
	return entries, nil
}

// ParseEntry parses a single JSON log line. Attributes other than the
// well-known keys end up in Attrs.
func ParseEntry(line string) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, fmt.Errorf("invalid log line: %w", err)
	}

	var entry Entry
	if ts, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.Time = t
		}
	}
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	entry.SessionID, _ = raw["session_id"].(string)
	entry.Component, _ = raw["component"].(string)

	for _, k := range []string{"time", "level", "msg", "session_id", "component"} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		entry.Attrs = raw
	}
	if entry.Level == "" {
		return Entry{}, fmt.Errorf("log line has no level")
	}
	return entry, nil
}

// Match reports whether e satisfies f.
func (f Filter) Match(e Entry) bool {
	if f.Level != "" && levelRank[ParseLevel(e.Level)] < levelRank[ParseLevel(f.Level)] {
		return false
	}
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Component != "" && e.Component != f.Component {
		return false
	}
	if f.Contains != "" && !strings.Contains(e.Message, f.Contains) {
		return false
	}
	return true
}

// Apply returns the entries matching f, keeping at most the last tail
// entries when tail is positive.
func (f Filter) Apply(entries []Entry, tail int) []Entry {
	var out []Entry
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	if tail > 0 && len(out) > tail {
		out = out[len(out)-tail:]
	}
	return out
}

// Format renders an entry as a single human-readable line.
func (e Entry) Format() string {
	var sb strings.Builder
	sb.WriteString(e.Time.Format("15:04:05.000"))
	sb.WriteString(fmt.Sprintf(" %-5s", e.Level))
	if e.Component != "" {
		sb.WriteString(" [" + e.Component + "]")
	}
	sb.WriteString(" " + e.Message)
	for k, v := range e.Attrs {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, v))
	}
	return sb.String()
}
