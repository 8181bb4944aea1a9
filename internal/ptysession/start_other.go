//go:build !unix

package ptysession

import (
	"context"

	"github.com/Iron-Ham/netmon/internal/errors"
)

// Start always fails: pseudo-terminals are only supported on unix.
func Start(ctx context.Context, c Command, elev Elevation, opts ...Option) (*Session, error) {
	return nil, errors.NewPtyAllocationError(errors.ErrPtyUnavailable)
}

func (s *Session) signal(force bool) error {
	if s.cmd.Process == nil {
		return nil
	}
	return s.cmd.Process.Kill()
}
