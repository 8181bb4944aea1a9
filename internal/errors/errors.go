// Package errors provides centralized error definitions and error handling utilities
// for netmon. It defines the failure taxonomy of a monitoring session, semantic
// error types, error constructors with context wrapping, and classification helpers.
//
// # Error Types
//
// Session-fatal errors end a monitoring session and require an explicit restart:
//   - SpawnError: the sampling tool is missing, unlaunchable, or elevation was declined
//   - PtyAllocationError: no pseudo-terminal could be allocated
//   - StreamEndedError: the sampling tool exited while the session was running
//
// Recoverable conditions are logged and skipped, never fatal:
//   - ParseWarning: a line did not match the tool's schema
//   - TimingWarning: a window arrived with a non-positive elapsed time
//   - CounterResetEvent: a counter went backwards (pid reuse or tool restart)
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or configuration
//   - TimeoutError: an operation (or the sampling stream) stalled
//
// # Usage
//
//	err := errors.NewSpawnError("nettop", errors.ErrToolNotFound)
//
//	if errors.IsTerminal(err) {
//	    // show "monitoring stopped / restart required"
//	}
//
//	var ended *errors.StreamEndedError
//	if errors.As(err, &ended) {
//	    log.Printf("tool exited with code %d", ended.ExitCode)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for conditions that are only interesting while debugging.
	SeverityDebug Severity = iota
	// SeverityInfo is for expected conditions worth recording.
	SeverityInfo
	// SeverityWarning is for recoverable problems.
	SeverityWarning
	// SeverityError is for problems that stop a unit of work.
	SeverityError
	// SeverityCritical is for problems that stop the monitoring session.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session start sentinel errors
var (
	// ErrToolNotFound indicates the sampling tool binary could not be found.
	ErrToolNotFound = New("sampling tool not found")
	// ErrPrivilegeDeclined indicates the secret provider declined to supply credentials.
	ErrPrivilegeDeclined = New("privilege elevation declined")
	// ErrAuthenticationFailed indicates the supplied credentials were rejected.
	ErrAuthenticationFailed = New("privilege authentication failed")
	// ErrPtyUnavailable indicates the platform cannot provide a pseudo-terminal.
	ErrPtyUnavailable = New("pseudo-terminal unavailable")
)

// Session lifecycle sentinel errors
var (
	// ErrStreamEnded indicates the sampling stream ended without a stop request.
	ErrStreamEnded = New("sampling stream ended")
	// ErrSessionStopped indicates an operation on a session that has already ended.
	ErrSessionStopped = New("monitoring session stopped")
	// ErrStalled indicates the sampling tool produced no output for too long.
	ErrStalled = New("sampling stream stalled")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// NetmonError is the base interface for all netmon errors.
type NetmonError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if restarting the operation may succeed.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error      { return e.cause }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) IsRetryable() bool  { return e.retryable }
func (e *baseError) IsUserFacing() bool { return e.userFacing }

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Session-Fatal Errors
// -----------------------------------------------------------------------------

// SpawnError reports that the sampling tool could not be launched.
//
// Example:
//
//	err := errors.NewSpawnError("nettop", errors.ErrToolNotFound)
//	fmt.Println(err) // "spawn error [tool=nettop]: failed to launch sampling tool: sampling tool not found"
type SpawnError struct {
	baseError
	Tool string
}

// NewSpawnError creates a new SpawnError for the given tool.
func NewSpawnError(tool string, cause error) *SpawnError {
	return &SpawnError{
		baseError: baseError{
			message:    "failed to launch sampling tool",
			cause:      cause,
			severity:   SeverityCritical,
			userFacing: true,
		},
		Tool: tool,
	}
}

// WithMessage replaces the default message.
func (e *SpawnError) WithMessage(msg string) *SpawnError {
	e.message = msg
	return e
}

func (e *SpawnError) Error() string {
	var parts []string
	if e.Tool != "" {
		parts = append(parts, fmt.Sprintf("tool=%s", e.Tool))
	}
	return e.format("spawn error", parts)
}

// PtyAllocationError reports that no pseudo-terminal pair could be allocated.
// Allocation usually fails on resource exhaustion, so a later restart may succeed.
type PtyAllocationError struct {
	baseError
}

// NewPtyAllocationError creates a new PtyAllocationError.
func NewPtyAllocationError(cause error) *PtyAllocationError {
	return &PtyAllocationError{
		baseError: baseError{
			message:    "failed to allocate pseudo-terminal",
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  true,
			userFacing: true,
		},
	}
}

func (e *PtyAllocationError) Error() string {
	return e.format("pty error", nil)
}

// StreamEndedError reports that the sampling tool exited while the session
// was still running (crash, kill, revoked privileges).
type StreamEndedError struct {
	baseError
	PID      int
	ExitCode int    // -1 when the process was killed by a signal
	Signal   string // empty unless killed by a signal
}

// NewStreamEndedError creates a new StreamEndedError.
func NewStreamEndedError(pid, exitCode int, signal string) *StreamEndedError {
	return &StreamEndedError{
		baseError: baseError{
			message:    "sampling tool exited unexpectedly",
			cause:      ErrStreamEnded,
			severity:   SeverityCritical,
			userFacing: true,
		},
		PID:      pid,
		ExitCode: exitCode,
		Signal:   signal,
	}
}

// WithCause replaces the cause, keeping ErrStreamEnded reachable through Is.
func (e *StreamEndedError) WithCause(cause error) *StreamEndedError {
	e.cause = Join(ErrStreamEnded, cause)
	return e
}

func (e *StreamEndedError) Error() string {
	var parts []string
	if e.PID > 0 {
		parts = append(parts, fmt.Sprintf("pid=%d", e.PID))
	}
	if e.Signal != "" {
		parts = append(parts, fmt.Sprintf("signal=%s", e.Signal))
	} else {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}
	return fmt.Sprintf("stream ended [%s]: %s", strings.Join(parts, ", "), e.message)
}

// -----------------------------------------------------------------------------
// Recoverable Conditions
// -----------------------------------------------------------------------------

// ParseWarning reports a line that could not be interpreted. Never fatal.
type ParseWarning struct {
	baseError
	Line   string
	Reason string
}

// NewParseWarning creates a new ParseWarning.
func NewParseWarning(line, reason string) *ParseWarning {
	return &ParseWarning{
		baseError: baseError{
			message:  reason,
			severity: SeverityDebug,
		},
		Line:   line,
		Reason: reason,
	}
}

func (e *ParseWarning) Error() string {
	return fmt.Sprintf("parse warning: %s: %q", e.Reason, e.Line)
}

// TimingWarning reports a window whose elapsed time since the previous
// observation of a process was not positive.
type TimingWarning struct {
	baseError
	Process string
	Elapsed time.Duration
}

// NewTimingWarning creates a new TimingWarning.
func NewTimingWarning(process string, elapsed time.Duration) *TimingWarning {
	return &TimingWarning{
		baseError: baseError{
			message:  "non-positive elapsed time between windows",
			severity: SeverityWarning,
		},
		Process: process,
		Elapsed: elapsed,
	}
}

func (e *TimingWarning) Error() string {
	return fmt.Sprintf("timing warning [process=%s, elapsed=%s]: %s", e.Process, e.Elapsed, e.message)
}

// CounterResetEvent records a counter that went backwards. It is handled by
// re-baselining the process and is not a failure.
type CounterResetEvent struct {
	baseError
	Process    string
	PrevIn     uint64
	PrevOut    uint64
	CurrentIn  uint64
	CurrentOut uint64
}

// NewCounterResetEvent creates a new CounterResetEvent.
func NewCounterResetEvent(process string, prevIn, prevOut, curIn, curOut uint64) *CounterResetEvent {
	return &CounterResetEvent{
		baseError: baseError{
			message:  "counter reset, re-baselining",
			severity: SeverityInfo,
		},
		Process:    process,
		PrevIn:     prevIn,
		PrevOut:    prevOut,
		CurrentIn:  curIn,
		CurrentOut: curOut,
	}
}

func (e *CounterResetEvent) Error() string {
	return fmt.Sprintf("counter reset [process=%s]: in %d->%d, out %d->%d",
		e.Process, e.PrevIn, e.CurrentIn, e.PrevOut, e.CurrentOut)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("history size must be positive").WithField("history_size").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is matches ErrInvalidInput in addition to the wrapped cause.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for sampler output", 15*time.Second)
//	fmt.Println(err) // "timeout error: waiting for sampler output (timeout: 15s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is matches ErrTimeout in addition to the wrapped cause.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsTerminal reports whether err ends a monitoring session. Terminal errors
// are never retried automatically; the session owner decides whether to restart.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	var spawn *SpawnError
	var pty *PtyAllocationError
	var ended *StreamEndedError
	return As(err, &spawn) || As(err, &pty) || As(err, &ended)
}

// IsRetryable returns true if the error represents a transient condition.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr NetmonError
	if As(err, &netErr) {
		return netErr.IsRetryable()
	}
	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
// Parse and timing warnings are never user facing.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var netErr NetmonError
	if As(err, &netErr) {
		return netErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement NetmonError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var netErr NetmonError
	if As(err, &netErr) {
		return netErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
