package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/netmon/internal/nettop"
	"github.com/spf13/viper"
)

// Config represents the complete netmon configuration
type Config struct {
	Sampler    SamplerConfig    `mapstructure:"sampler" yaml:"sampler"`
	Schema     SchemaConfig     `mapstructure:"schema" yaml:"schema"`
	Reader     ReaderConfig     `mapstructure:"reader" yaml:"reader"`
	Aggregator AggregatorConfig `mapstructure:"aggregator" yaml:"aggregator"`
	Publisher  PublisherConfig  `mapstructure:"publisher" yaml:"publisher"`
	Watchdog   WatchdogConfig   `mapstructure:"watchdog" yaml:"watchdog"`
	API        APIConfig        `mapstructure:"api" yaml:"api"`
	NATS       NATSConfig       `mapstructure:"nats" yaml:"nats"`
	TUI        TUIConfig        `mapstructure:"tui" yaml:"tui"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// SamplerConfig controls how the external sampling tool is launched
type SamplerConfig struct {
	// Command is the sampling tool binary (default: "nettop")
	Command string `mapstructure:"command" yaml:"command"`
	// Args are passed to the tool. The defaults request CSV output, an
	// unlimited number of samples and a one second cadence.
	Args []string `mapstructure:"args" yaml:"args"`
	// Elevation is "none" or "sudo" (default: "sudo")
	Elevation string `mapstructure:"elevation" yaml:"elevation"`
	// SecretEnv names the environment variable consulted for the sudo
	// password before prompting (default: "NETMON_SUDO_PASSWORD")
	SecretEnv string `mapstructure:"secret_env" yaml:"secret_env"`
	// SecretTTLHours is how long an obtained password is reused (default: 24, 0 = never cache)
	SecretTTLHours int `mapstructure:"secret_ttl_hours" yaml:"secret_ttl_hours"`
	// StopGraceMs is how long the tool gets to exit after SIGTERM before SIGKILL (default: 2000)
	StopGraceMs int `mapstructure:"stop_grace_ms" yaml:"stop_grace_ms"`
}

// SchemaConfig describes the sampling tool's CSV layout
type SchemaConfig struct {
	// HeaderPrefix marks a header line, which is also a window boundary (default: "time,")
	HeaderPrefix string `mapstructure:"header_prefix" yaml:"header_prefix"`
	// AltHeaderPrefix is a second header form emitted by some tool versions (default: ",interface,state")
	AltHeaderPrefix string `mapstructure:"alt_header_prefix" yaml:"alt_header_prefix"`
	// IdentityIndex is the column holding "name.pid" (default: 1)
	IdentityIndex int `mapstructure:"identity_index" yaml:"identity_index"`
	// BytesInColumn is the header name of the cumulative inbound counter (default: "bytes_in")
	BytesInColumn string `mapstructure:"bytes_in_column" yaml:"bytes_in_column"`
	// BytesOutColumn is the header name of the cumulative outbound counter (default: "bytes_out")
	BytesOutColumn string `mapstructure:"bytes_out_column" yaml:"bytes_out_column"`
	// BytesInIndex is used until a header declares the column order (default: 4)
	BytesInIndex int `mapstructure:"bytes_in_index" yaml:"bytes_in_index"`
	// BytesOutIndex is used until a header declares the column order (default: 5)
	BytesOutIndex int `mapstructure:"bytes_out_index" yaml:"bytes_out_index"`
	// ConnectionMarkers identify per-connection rows: a row containing a
	// marker, or whose identity starts with one, is a connection.
	ConnectionMarkers []string `mapstructure:"connection_markers" yaml:"connection_markers"`
}

func newSchemaConfig(s nettop.Schema) SchemaConfig {
	return SchemaConfig{
		HeaderPrefix:      s.HeaderPrefix,
		AltHeaderPrefix:   s.AltHeaderPrefix,
		IdentityIndex:     s.IdentityIndex,
		BytesInColumn:     s.BytesInColumn,
		BytesOutColumn:    s.BytesOutColumn,
		BytesInIndex:      s.BytesInIndex,
		BytesOutIndex:     s.BytesOutIndex,
		ConnectionMarkers: s.ConnectionMarkers,
	}
}

// NettopSchema returns the parser schema this section describes.
func (c SchemaConfig) NettopSchema() nettop.Schema {
	return nettop.Schema{
		HeaderPrefix:      c.HeaderPrefix,
		AltHeaderPrefix:   c.AltHeaderPrefix,
		IdentityIndex:     c.IdentityIndex,
		BytesInColumn:     c.BytesInColumn,
		BytesOutColumn:    c.BytesOutColumn,
		BytesInIndex:      c.BytesInIndex,
		BytesOutIndex:     c.BytesOutIndex,
		ConnectionMarkers: append([]string(nil), c.ConnectionMarkers...),
	}
}

// ReaderConfig controls the pty line reader
type ReaderConfig struct {
	// MaxPendingLines caps lines waiting for the parser; the oldest is dropped past it (default: 512)
	MaxPendingLines int `mapstructure:"max_pending_lines" yaml:"max_pending_lines"`
	// ReadBufferSize is the size of a single read from the pty in bytes (default: 4096)
	ReadBufferSize int `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
}

// AggregatorConfig controls rate history and process eviction
type AggregatorConfig struct {
	// HistorySize is the number of rate records kept per process (default: 60)
	HistorySize int `mapstructure:"history_size" yaml:"history_size"`
	// StaleThreshold is the number of consecutive missed windows before a process is evicted (default: 2)
	StaleThreshold int `mapstructure:"stale_threshold" yaml:"stale_threshold"`
}

// PublisherConfig controls the snapshot publishing cadence
type PublisherConfig struct {
	// IntervalMs is how often a snapshot is published (default: 1000)
	IntervalMs int `mapstructure:"interval_ms" yaml:"interval_ms"`
}

// WatchdogConfig controls stall detection
type WatchdogConfig struct {
	// TimeoutSeconds without output before the session is reported degraded (default: 15, 0 = disabled)
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// APIConfig controls the HTTP pull interface served by "netmon serve"
type APIConfig struct {
	// Listen is the address the HTTP server binds to (default: "127.0.0.1:7878")
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// NATSConfig controls the optional NATS snapshot sink
type NATSConfig struct {
	// Enabled turns on publishing of snapshots to NATS (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// URL of the NATS server (default: nats://127.0.0.1:4222)
	URL string `mapstructure:"url" yaml:"url"`
	// Subject snapshots are published to (default: "netmon.snapshot")
	Subject string `mapstructure:"subject" yaml:"subject"`
}

// TUIConfig controls the terminal UI
type TUIConfig struct {
	// RefreshMs is the TUI redraw cadence (default: 1000)
	RefreshMs int `mapstructure:"refresh_ms" yaml:"refresh_ms"`
	// MaxRows limits how many processes are listed, 0 = fit to terminal (default: 0)
	MaxRows int `mapstructure:"max_rows" yaml:"max_rows"`
	// SortBy is the initial sort column: "in", "out", "name", "pid", "conns" (default: "in")
	SortBy string `mapstructure:"sort_by" yaml:"sort_by"`
	// MinRate hides processes whose inbound and outbound rates are both
	// below this many bytes per second, 0 = show all (default: 100)
	MinRate float64 `mapstructure:"min_rate" yaml:"min_rate"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the directory holding netmon.log. Empty uses the state directory.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Sampler: SamplerConfig{
			Command:        "nettop",
			Args:           []string{"-x", "-L", "0", "-s", "1"},
			Elevation:      ElevationSudo,
			SecretEnv:      "NETMON_SUDO_PASSWORD",
			SecretTTLHours: 24,
			StopGraceMs:    2000,
		},
		Schema: newSchemaConfig(nettop.DefaultSchema()),
		Reader: ReaderConfig{
			MaxPendingLines: 512,
			ReadBufferSize:  4096,
		},
		Aggregator: AggregatorConfig{
			HistorySize:    60,
			StaleThreshold: 2,
		},
		Publisher: PublisherConfig{
			IntervalMs: 1000,
		},
		Watchdog: WatchdogConfig{
			TimeoutSeconds: 15,
		},
		API: APIConfig{
			Listen: "127.0.0.1:7878",
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "netmon.snapshot",
		},
		TUI: TUIConfig{
			RefreshMs: 1000,
			MaxRows:   0,
			SortBy:    "in",
			MinRate:   100,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Elevation modes for the sampling tool
const (
	ElevationNone = "none"
	ElevationSudo = "sudo"
)

// StopGrace returns the stop grace period as a time.Duration
func (c *SamplerConfig) StopGrace() time.Duration {
	return time.Duration(c.StopGraceMs) * time.Millisecond
}

// SecretTTL returns how long an obtained secret may be reused (0 means never cached)
func (c *SamplerConfig) SecretTTL() time.Duration {
	return time.Duration(c.SecretTTLHours) * time.Hour
}

// Interval returns the publish interval as a time.Duration
func (c *PublisherConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// Timeout returns the watchdog timeout as a time.Duration (0 means disabled)
func (c *WatchdogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Refresh returns the TUI refresh interval as a time.Duration
func (c *TUIConfig) Refresh() time.Duration {
	return time.Duration(c.RefreshMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Sampler defaults
	viper.SetDefault("sampler.command", defaults.Sampler.Command)
	viper.SetDefault("sampler.args", defaults.Sampler.Args)
	viper.SetDefault("sampler.elevation", defaults.Sampler.Elevation)
	viper.SetDefault("sampler.secret_env", defaults.Sampler.SecretEnv)
	viper.SetDefault("sampler.secret_ttl_hours", defaults.Sampler.SecretTTLHours)
	viper.SetDefault("sampler.stop_grace_ms", defaults.Sampler.StopGraceMs)

	// Schema defaults
	viper.SetDefault("schema.header_prefix", defaults.Schema.HeaderPrefix)
	viper.SetDefault("schema.alt_header_prefix", defaults.Schema.AltHeaderPrefix)
	viper.SetDefault("schema.identity_index", defaults.Schema.IdentityIndex)
	viper.SetDefault("schema.bytes_in_column", defaults.Schema.BytesInColumn)
	viper.SetDefault("schema.bytes_out_column", defaults.Schema.BytesOutColumn)
	viper.SetDefault("schema.bytes_in_index", defaults.Schema.BytesInIndex)
	viper.SetDefault("schema.bytes_out_index", defaults.Schema.BytesOutIndex)
	viper.SetDefault("schema.connection_markers", defaults.Schema.ConnectionMarkers)

	// Reader defaults
	viper.SetDefault("reader.max_pending_lines", defaults.Reader.MaxPendingLines)
	viper.SetDefault("reader.read_buffer_size", defaults.Reader.ReadBufferSize)

	// Aggregator defaults
	viper.SetDefault("aggregator.history_size", defaults.Aggregator.HistorySize)
	viper.SetDefault("aggregator.stale_threshold", defaults.Aggregator.StaleThreshold)

	// Publisher defaults
	viper.SetDefault("publisher.interval_ms", defaults.Publisher.IntervalMs)

	// Watchdog defaults
	viper.SetDefault("watchdog.timeout_seconds", defaults.Watchdog.TimeoutSeconds)

	// API defaults
	viper.SetDefault("api.listen", defaults.API.Listen)

	// NATS defaults
	viper.SetDefault("nats.enabled", defaults.NATS.Enabled)
	viper.SetDefault("nats.url", defaults.NATS.URL)
	viper.SetDefault("nats.subject", defaults.NATS.Subject)

	// TUI defaults
	viper.SetDefault("tui.refresh_ms", defaults.TUI.RefreshMs)
	viper.SetDefault("tui.max_rows", defaults.TUI.MaxRows)
	viper.SetDefault("tui.sort_by", defaults.TUI.SortBy)
	viper.SetDefault("tui.min_rate", defaults.TUI.MinRate)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "netmon")
	}
	// Fall back to ~/.config/netmon
	home, err := os.UserHomeDir()
	if err != nil {
		return ".netmon"
	}
	return filepath.Join(home, ".config", "netmon")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateDir returns the directory netmon writes logs to by default
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "netmon")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".netmon"
	}
	return filepath.Join(home, ".local", "state", "netmon")
}

// ResolveLogDir returns the log directory, expanding ~ and falling back to StateDir.
func (c *LoggingConfig) ResolveLogDir() string {
	if c.Dir == "" {
		return StateDir()
	}

	path := c.Dir
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}
	return path
}

// ValidElevations returns the list of valid sampler elevation modes
func ValidElevations() []string {
	return []string{ElevationNone, ElevationSudo}
}

// ValidSortColumns returns the list of valid TUI sort columns
func ValidSortColumns() []string {
	return []string{"in", "out", "name", "pid", "conns"}
}
