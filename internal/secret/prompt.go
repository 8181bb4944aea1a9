package secret

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompt asks for the secret on the controlling terminal without echo.
type Prompt struct {
	// TTYPath defaults to /dev/tty.
	TTYPath string
	// Message is printed before reading.
	Message string
}

type promptResult struct {
	value string
	err   error
}

// Obtain implements Provider. It returns ErrUnavailable when there is no
// terminal and ErrDeclined for an empty answer.
func (p Prompt) Obtain(ctx context.Context) (Secret, error) {
	path := p.TTYPath
	if path == "" {
		path = "/dev/tty"
	}

	tty, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Secret{}, ErrUnavailable
	}
	defer tty.Close()

	if !term.IsTerminal(int(tty.Fd())) {
		return Secret{}, ErrUnavailable
	}

	msg := p.Message
	if msg == "" {
		msg = "Password for sudo (used to run the sampling tool): "
	}

	res := make(chan promptResult, 1)
	go func() {
		v, err := readPassword(tty, msg)
		res <- promptResult{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		// Closing the tty unblocks the read; the terminal state is
		// restored by ReadPassword on its way out.
		_ = tty.Close()
		return Secret{}, ctx.Err()
	case r := <-res:
		if r.err != nil {
			return Secret{}, fmt.Errorf("failed to read password: %w", r.err)
		}
		if strings.TrimSpace(r.value) == "" {
			return Secret{}, ErrDeclined
		}
		return New(r.value), nil
	}
}

func readPassword(tty *os.File, msg string) (string, error) {
	if _, err := io.WriteString(tty, msg); err != nil {
		return "", err
	}
	b, err := term.ReadPassword(int(tty.Fd()))
	_, _ = io.WriteString(tty, "\n")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
