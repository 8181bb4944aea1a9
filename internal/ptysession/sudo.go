package ptysession

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/Iron-Ham/netmon/internal/errors"
	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/secret"
)

// sudoValidateTimeout bounds the credential check.
const sudoValidateTimeout = 30 * time.Second

type launch struct {
	argv  []string
	stdin io.Reader
}

func (e Elevation) mode() string {
	if e.Mode == "" {
		return ElevationNone
	}
	return e.Mode
}

func (e Elevation) sudoPath() string {
	if e.SudoPath == "" {
		return "sudo"
	}
	return e.SudoPath
}

// prepareLaunch resolves the argv for the requested elevation. For sudo it
// obtains and validates the password before anything is allocated.
func prepareLaunch(ctx context.Context, toolPath string, c Command, elev Elevation, logger *logging.Logger) (launch, error) {
	switch elev.mode() {
	case ElevationNone:
		return launch{argv: append([]string{toolPath}, c.Args...)}, nil
	case ElevationSudo:
	default:
		return launch{}, errors.NewSpawnError(c.Path, errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("unknown elevation mode %q", elev.Mode))
	}

	sudoPath, err := exec.LookPath(elev.sudoPath())
	if err != nil {
		return launch{}, errors.NewSpawnError(elev.sudoPath(), errors.Join(errors.ErrToolNotFound, err))
	}

	if elev.Secrets == nil {
		return launch{}, errors.NewSpawnError(c.Path, errors.ErrPrivilegeDeclined)
	}
	pw, err := elev.Secrets.Obtain(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return launch{}, errors.NewSpawnError(c.Path, errors.Join(errors.ErrCanceled, err))
		}
		return launch{}, errors.NewSpawnError(c.Path, errors.Join(errors.ErrPrivilegeDeclined, err))
	}
	if pw.IsZero() {
		return launch{}, errors.NewSpawnError(c.Path, errors.ErrPrivilegeDeclined)
	}

	if err := validateSudo(ctx, sudoPath, c.Path, pw, logger); err != nil {
		if errors.Is(err, errors.ErrAuthenticationFailed) {
			if inv, ok := elev.Secrets.(secret.Invalidator); ok {
				inv.Invalidate()
			}
		}
		return launch{}, err
	}

	argv := append([]string{sudoPath, "-S", "-p", "", "--", toolPath}, c.Args...)
	return launch{argv: argv, stdin: strings.NewReader(pw.Reveal() + "\n")}, nil
}

// validateSudo runs `sudo -S -v` with the password on stdin.
func validateSudo(ctx context.Context, sudoPath, tool string, pw secret.Secret, logger *logging.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, sudoValidateTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, sudoPath, "-S", "-v", "-p", "")
	cmd.Stdin = strings.NewReader(pw.Reveal() + "\n")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	switch {
	case err == nil:
		logger.Debug("sudo credentials validated")
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.NewSpawnError(tool, errors.NewTimeoutError("sudo validation", sudoValidateTimeout).WithCause(err))
	case ctx.Err() != nil:
		return errors.NewSpawnError(tool, errors.Join(errors.ErrCanceled, ctx.Err()))
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		logger.Warn("sudo rejected credentials",
			"exit_code", ee.ExitCode(),
			"stderr", strings.TrimSpace(stderr.String()),
		)
		return errors.NewSpawnError(tool, errors.ErrAuthenticationFailed).
			WithMessage("sudo rejected the password")
	}
	return errors.NewSpawnError(tool, err).WithMessage("failed to run sudo")
}
