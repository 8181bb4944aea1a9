// Package logging provides structured logging for netmon.
//
// It wraps log/slog with a JSON handler so that a monitoring session's
// diagnostics (parse warnings, counter resets, dropped lines, tool exits) can
// be filtered after the fact with `netmon logs` or any JSON tool.
//
// # Basic Usage
//
//	logger, err := logging.New(logging.Options{Dir: "/var/log/netmon", Level: "info"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithSession("s-1").WithComponent("aggregator")
//	log.Warn("non-positive elapsed time", "process", "chrome.1234")
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"non-positive elapsed time","session_id":"s-1","component":"aggregator","process":"chrome.1234"}
//
// # Levels
//
// Parse warnings are logged at DEBUG, recoverable stream conditions at WARN
// and session-ending failures at ERROR. The level can be changed at runtime
// with [Logger.SetLevel]; child loggers share the parent's level.
//
// # Rotation
//
// When Options.Rotation.MaxSizeMB is positive the log file is rotated by
// size: netmon.log.1 is the newest backup, optionally gzip compressed.
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWithWriter] to capture it.
package logging
