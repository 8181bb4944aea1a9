// Package ptysession launches the sampling tool attached to a
// pseudo-terminal and owns its lifecycle.
//
// The tool writes line-buffered output only when stdout is a terminal, so
// it runs with the pty slave as stdout and stderr. The master side is
// exposed through Session.Master for the line reader.
package ptysession

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Iron-Ham/netmon/internal/errors"
	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/secret"
)

// Elevation modes.
const (
	ElevationNone = "none"
	ElevationSudo = "sudo"
)

// DefaultStopGrace is how long Stop waits after SIGTERM before SIGKILL.
const DefaultStopGrace = 2 * time.Second

// Default terminal size. Wide enough that the tool never truncates a row.
const (
	DefaultCols = 1024
	DefaultRows = 50
)

// Command describes the tool to run.
type Command struct {
	Path string
	Args []string
	// Env is appended to the current environment.
	Env []string
}

// String renders the command line.
func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// Elevation describes how the tool acquires privileges.
type Elevation struct {
	// Mode is ElevationNone (or empty) or ElevationSudo.
	Mode string
	// Secrets supplies the sudo password. Required for ElevationSudo.
	Secrets secret.Provider
	// SudoPath defaults to "sudo" looked up in PATH.
	SudoPath string
}

type options struct {
	logger     *logging.Logger
	cols, rows uint16
}

// Option configures Start.
type Option func(*options)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithWindowSize overrides the terminal size reported to the tool.
func WithWindowSize(cols, rows uint16) Option {
	return func(o *options) {
		if cols > 0 {
			o.cols = cols
		}
		if rows > 0 {
			o.rows = rows
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: logging.NopLogger(),
		cols:   DefaultCols,
		rows:   DefaultRows,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.WithComponent("ptysession")
	return o
}

// Session is a running sampling tool attached to a pty.
type Session struct {
	cmd     *exec.Cmd
	master  *os.File
	command Command
	pid     int
	logger  *logging.Logger

	done    chan struct{}
	mu      sync.Mutex
	exitErr error

	stopping  atomic.Bool
	stopOnce  sync.Once
	stopErr   error
	closeOnce sync.Once
	closeErr  error
}

func newSession(cmd *exec.Cmd, master *os.File, c Command, logger *logging.Logger) *Session {
	s := &Session{
		cmd:     cmd,
		master:  master,
		command: c,
		pid:     cmd.Process.Pid,
		done:    make(chan struct{}),
	}
	s.logger = logger.With("pid", s.pid)
	go s.wait()
	return s
}

// Master returns the pty master. Reads yield the tool's output.
func (s *Session) Master() *os.File {
	return s.master
}

// PID returns the process id of the launched process (sudo when elevated).
func (s *Session) PID() int {
	return s.pid
}

// Command returns the command the session was started with.
func (s *Session) Command() Command {
	return s.command
}

// Done is closed once the process has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// ExitErr returns nil while the process runs, when it exited with status 0,
// or when it was stopped through Stop. Otherwise it is a
// *errors.StreamEndedError.
func (s *Session) ExitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

// Wait blocks until the process exits or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.ExitErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) wait() {
	err := s.cmd.Wait()
	exitErr := s.classifyExit(err)

	if exitErr != nil {
		s.logger.Error("sampling tool exited", "error", exitErr)
	} else {
		s.logger.Info("sampling tool exited", "stopped", s.stopping.Load())
	}

	s.mu.Lock()
	s.exitErr = exitErr
	s.mu.Unlock()
	close(s.done)
}

func (s *Session) classifyExit(err error) error {
	if err == nil || s.stopping.Load() {
		return nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return errors.NewStreamEndedError(s.pid, -1, ws.Signal().String())
		}
		return errors.NewStreamEndedError(s.pid, ee.ExitCode(), "")
	}
	return errors.NewStreamEndedError(s.pid, -1, "").WithCause(err)
}

// Stop terminates the process group, escalating to SIGKILL after grace,
// and closes the master. Later calls return the first call's result.
func (s *Session) Stop(grace time.Duration) error {
	s.stopOnce.Do(func() {
		s.stopErr = s.stop(grace)
	})
	return s.stopErr
}

func (s *Session) stop(grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	s.stopping.Store(true)

	select {
	case <-s.done:
		return s.closeMaster()
	default:
	}

	if err := s.signal(false); err != nil {
		s.logger.Debug("failed to signal sampling tool", "signal", "TERM", "error", err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-s.done:
		return s.closeMaster()
	case <-timer.C:
	}

	s.logger.Warn("sampling tool ignored SIGTERM, killing", "grace", grace)
	if err := s.signal(true); err != nil {
		s.logger.Debug("failed to signal sampling tool", "signal", "KILL", "error", err)
	}
	// Hanging up the terminal reaches processes we may not signal
	// directly, such as a root-owned child of sudo.
	closeErr := s.closeMaster()

	select {
	case <-s.done:
		return closeErr
	case <-time.After(grace):
		return errors.NewTimeoutError("stop sampling tool", 2*grace)
	}
}

func (s *Session) closeMaster() error {
	s.closeOnce.Do(func() {
		if err := s.master.Close(); err != nil {
			s.closeErr = fmt.Errorf("failed to close pty master: %w", err)
		}
	})
	return s.closeErr
}
