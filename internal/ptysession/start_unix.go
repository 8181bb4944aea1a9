//go:build unix

package ptysession

import (
	"context"
	"io/fs"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/Iron-Ham/netmon/internal/errors"
)

// Start launches c attached to a new pseudo-terminal, in its own session
// and process group. ctx bounds only the launch (secret retrieval and sudo
// validation); use Stop to end the session.
func Start(ctx context.Context, c Command, elev Elevation, opts ...Option) (*Session, error) {
	o := buildOptions(opts)
	logger := o.logger

	toolPath, err := exec.LookPath(c.Path)
	if err != nil {
		return nil, errors.NewSpawnError(c.Path, errors.Join(errors.ErrToolNotFound, err))
	}

	l, err := prepareLaunch(ctx, toolPath, c, elev, logger)
	if err != nil {
		return nil, err
	}

	master, slave, err := pty.Open()
	if err != nil {
		return nil, errors.NewPtyAllocationError(err)
	}
	if err := pty.Setsize(master, &pty.Winsize{Cols: o.cols, Rows: o.rows}); err != nil {
		logger.Debug("failed to set pty size", "error", err)
	}

	cmd := exec.Command(l.argv[0], l.argv[1:]...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdout = slave
	cmd.Stderr = slave

	// Ctty is a descriptor number in the child. With a password on stdin
	// the terminal is only reachable through stdout.
	ctty := 0
	if l.stdin != nil {
		cmd.Stdin = l.stdin
		ctty = 1
	} else {
		cmd.Stdin = slave
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    ctty,
	}

	if err := cmd.Start(); err != nil {
		_ = master.Close()
		_ = slave.Close()
		cause := err
		if errors.Is(err, fs.ErrNotExist) {
			cause = errors.Join(errors.ErrToolNotFound, err)
		}
		return nil, errors.NewSpawnError(c.Path, cause)
	}

	// The child holds its own copy; keeping ours would stop EOF/EIO from
	// reaching the master when the tool exits.
	if err := slave.Close(); err != nil {
		logger.Debug("failed to close pty slave", "error", err)
	}

	s := newSession(cmd, master, c, logger)
	s.logger.Info("sampling tool started",
		"command", c.String(),
		"elevation", elev.mode(),
	)
	return s, nil
}

// signal sends SIGTERM (or SIGKILL when force is set) to the process
// group, falling back to the leader alone.
func (s *Session) signal(force bool) error {
	sig := unix.SIGTERM
	if force {
		sig = unix.SIGKILL
	}

	err := unix.Kill(-s.pid, sig)
	if err == nil || err == unix.ESRCH {
		return nil
	}
	if leaderErr := unix.Kill(s.pid, sig); leaderErr == nil || leaderErr == unix.ESRCH {
		return nil
	}
	return err
}
