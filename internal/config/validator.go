package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "aggregator.history_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSampler()...)
	errors = append(errors, c.validateSchema()...)
	errors = append(errors, c.validateReader()...)
	errors = append(errors, c.validateAggregator()...)
	errors = append(errors, c.validateCadence()...)
	errors = append(errors, c.validateAPI()...)
	errors = append(errors, c.validateNATS()...)
	errors = append(errors, c.validateTUI()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateSampler validates the SamplerConfig
func (c *Config) validateSampler() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Sampler.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "sampler.command",
			Value:   c.Sampler.Command,
			Message: "must not be empty",
		})
	}

	if !slices.Contains(ValidElevations(), c.Sampler.Elevation) {
		errors = append(errors, ValidationError{
			Field:   "sampler.elevation",
			Value:   c.Sampler.Elevation,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidElevations(), ", ")),
		})
	}

	if c.Sampler.Elevation == ElevationSudo && c.Sampler.SecretEnv == "" {
		errors = append(errors, ValidationError{
			Field:   "sampler.secret_env",
			Value:   c.Sampler.SecretEnv,
			Message: "must be set when elevation is sudo",
		})
	}

	if c.Sampler.SecretTTLHours < 0 {
		errors = append(errors, ValidationError{
			Field:   "sampler.secret_ttl_hours",
			Value:   c.Sampler.SecretTTLHours,
			Message: "must be non-negative",
		})
	}

	if c.Sampler.StopGraceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "sampler.stop_grace_ms",
			Value:   c.Sampler.StopGraceMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateSchema validates the SchemaConfig
func (c *Config) validateSchema() []ValidationError {
	var errors []ValidationError

	if c.Schema.HeaderPrefix == "" {
		errors = append(errors, ValidationError{
			Field:   "schema.header_prefix",
			Value:   c.Schema.HeaderPrefix,
			Message: "must not be empty",
		})
	}

	if c.Schema.BytesInColumn == "" {
		errors = append(errors, ValidationError{
			Field:   "schema.bytes_in_column",
			Value:   c.Schema.BytesInColumn,
			Message: "must not be empty",
		})
	}
	if c.Schema.BytesOutColumn == "" {
		errors = append(errors, ValidationError{
			Field:   "schema.bytes_out_column",
			Value:   c.Schema.BytesOutColumn,
			Message: "must not be empty",
		})
	}

	indices := []struct {
		field string
		value int
	}{
		{"schema.identity_index", c.Schema.IdentityIndex},
		{"schema.bytes_in_index", c.Schema.BytesInIndex},
		{"schema.bytes_out_index", c.Schema.BytesOutIndex},
	}
	for _, idx := range indices {
		if idx.value < 0 {
			errors = append(errors, ValidationError{
				Field:   idx.field,
				Value:   idx.value,
				Message: "must be non-negative",
			})
		}
	}

	if c.Schema.BytesInIndex == c.Schema.BytesOutIndex {
		errors = append(errors, ValidationError{
			Field:   "schema.bytes_out_index",
			Value:   c.Schema.BytesOutIndex,
			Message: "must differ from schema.bytes_in_index",
		})
	}
	if c.Schema.IdentityIndex == c.Schema.BytesInIndex || c.Schema.IdentityIndex == c.Schema.BytesOutIndex {
		errors = append(errors, ValidationError{
			Field:   "schema.identity_index",
			Value:   c.Schema.IdentityIndex,
			Message: "must differ from the counter column indices",
		})
	}

	for i, m := range c.Schema.ConnectionMarkers {
		if m == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("schema.connection_markers[%d]", i),
				Value:   m,
				Message: "must not be empty",
			})
		}
	}

	return errors
}

// validateReader validates the ReaderConfig
func (c *Config) validateReader() []ValidationError {
	var errors []ValidationError

	if c.Reader.MaxPendingLines <= 0 {
		errors = append(errors, ValidationError{
			Field:   "reader.max_pending_lines",
			Value:   c.Reader.MaxPendingLines,
			Message: "must be positive",
		})
	}

	// Upper bound keeps the pending queue small enough to matter as a cap
	const maxPendingLinesLimit = 100000
	if c.Reader.MaxPendingLines > maxPendingLinesLimit {
		errors = append(errors, ValidationError{
			Field:   "reader.max_pending_lines",
			Value:   c.Reader.MaxPendingLines,
			Message: fmt.Sprintf("exceeds maximum of %d", maxPendingLinesLimit),
		})
	}

	const minReadBuffer = 64
	if c.Reader.ReadBufferSize < minReadBuffer {
		errors = append(errors, ValidationError{
			Field:   "reader.read_buffer_size",
			Value:   c.Reader.ReadBufferSize,
			Message: fmt.Sprintf("must be at least %d bytes", minReadBuffer),
		})
	}

	return errors
}

// validateAggregator validates the AggregatorConfig
func (c *Config) validateAggregator() []ValidationError {
	var errors []ValidationError

	if c.Aggregator.HistorySize < 1 {
		errors = append(errors, ValidationError{
			Field:   "aggregator.history_size",
			Value:   c.Aggregator.HistorySize,
			Message: "must be at least 1",
		})
	}

	const maxHistorySize = 3600
	if c.Aggregator.HistorySize > maxHistorySize {
		errors = append(errors, ValidationError{
			Field:   "aggregator.history_size",
			Value:   c.Aggregator.HistorySize,
			Message: fmt.Sprintf("exceeds maximum of %d", maxHistorySize),
		})
	}

	if c.Aggregator.StaleThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "aggregator.stale_threshold",
			Value:   c.Aggregator.StaleThreshold,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateCadence validates the publisher and watchdog timing settings
func (c *Config) validateCadence() []ValidationError {
	var errors []ValidationError

	const minIntervalMs = 50
	if c.Publisher.IntervalMs < minIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "publisher.interval_ms",
			Value:   c.Publisher.IntervalMs,
			Message: fmt.Sprintf("must be at least %d", minIntervalMs),
		})
	}

	if c.Watchdog.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "watchdog.timeout_seconds",
			Value:   c.Watchdog.TimeoutSeconds,
			Message: "must be non-negative (0 disables the watchdog)",
		})
	}

	return errors
}

// validateAPI validates the APIConfig
func (c *Config) validateAPI() []ValidationError {
	var errors []ValidationError

	if _, _, err := net.SplitHostPort(c.API.Listen); err != nil {
		errors = append(errors, ValidationError{
			Field:   "api.listen",
			Value:   c.API.Listen,
			Message: "must be a host:port address",
		})
	}

	return errors
}

// validateNATS validates the NATSConfig. Only checked when the sink is enabled.
func (c *Config) validateNATS() []ValidationError {
	var errors []ValidationError

	if !c.NATS.Enabled {
		return errors
	}

	u, err := url.Parse(c.NATS.URL)
	if err != nil || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "nats.url",
			Value:   c.NATS.URL,
			Message: "must be a valid URL such as nats://host:4222",
		})
	}

	if c.NATS.Subject == "" || strings.ContainsAny(c.NATS.Subject, " \t*>") {
		errors = append(errors, ValidationError{
			Field:   "nats.subject",
			Value:   c.NATS.Subject,
			Message: "must be a non-empty subject without spaces or wildcards",
		})
	}

	return errors
}

// validateTUI validates the TUIConfig
func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	const minRefreshMs = 50
	if c.TUI.RefreshMs < minRefreshMs {
		errors = append(errors, ValidationError{
			Field:   "tui.refresh_ms",
			Value:   c.TUI.RefreshMs,
			Message: fmt.Sprintf("must be at least %d", minRefreshMs),
		})
	}

	if c.TUI.MaxRows < 0 {
		errors = append(errors, ValidationError{
			Field:   "tui.max_rows",
			Value:   c.TUI.MaxRows,
			Message: "must be non-negative",
		})
	}

	if c.TUI.MinRate < 0 {
		errors = append(errors, ValidationError{
			Field:   "tui.min_rate",
			Value:   c.TUI.MinRate,
			Message: "must be non-negative",
		})
	}

	if c.TUI.SortBy != "" && !slices.Contains(ValidSortColumns(), c.TUI.SortBy) {
		errors = append(errors, ValidationError{
			Field:   "tui.sort_by",
			Value:   c.TUI.SortBy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSortColumns(), ", ")),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	if strings.ContainsRune(c.Logging.Dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "logging.dir",
			Value:   c.Logging.Dir,
			Message: "contains invalid null character",
		})
	}

	return errors
}
