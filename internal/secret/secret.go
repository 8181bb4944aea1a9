// Package secret supplies the credentials needed to launch the sampling
// tool with elevated privileges. The monitoring core only ever calls
// Provider.Obtain; caching and expiry live in the providers here.
package secret

import (
	"context"
	"log/slog"

	"github.com/Iron-Ham/netmon/internal/errors"
)

var (
	// ErrDeclined means the user refused, or gave an empty answer.
	ErrDeclined = errors.New("secret declined")
	// ErrUnavailable means this provider has nothing to offer; a Chain
	// moves on to the next provider.
	ErrUnavailable = errors.New("secret unavailable")
)

const redacted = "[REDACTED]"

// Secret holds a credential. Its formatting and logging forms are
// redacted; only Reveal exposes the value.
type Secret struct {
	value string
}

// New wraps value.
func New(value string) Secret {
	return Secret{value: value}
}

// Reveal returns the raw value.
func (s Secret) Reveal() string {
	return s.value
}

// IsZero reports whether the secret is empty.
func (s Secret) IsZero() bool {
	return s.value == ""
}

func (s Secret) String() string               { return redacted }
func (s Secret) GoString() string             { return redacted }
func (s Secret) LogValue() slog.Value         { return slog.StringValue(redacted) }
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Provider obtains a secret, returning ErrDeclined when none is given.
type Provider interface {
	Obtain(ctx context.Context) (Secret, error)
}

// Invalidator is implemented by providers that cache. Callers invalidate
// after the secret was rejected so the next Obtain asks again.
type Invalidator interface {
	Invalidate()
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Secret, error)

// Obtain implements Provider.
func (f ProviderFunc) Obtain(ctx context.Context) (Secret, error) {
	return f(ctx)
}

// Static always returns the same secret.
func Static(value string) Provider {
	return ProviderFunc(func(context.Context) (Secret, error) {
		if value == "" {
			return Secret{}, ErrDeclined
		}
		return New(value), nil
	})
}

// Chain tries providers in order, moving on while they report
// ErrUnavailable. It returns ErrDeclined when every provider is unavailable.
func Chain(providers ...Provider) Provider {
	return &chain{providers: providers}
}

type chain struct {
	providers []Provider
}

func (c *chain) Obtain(ctx context.Context) (Secret, error) {
	for _, p := range c.providers {
		s, err := p.Obtain(ctx)
		if errors.Is(err, ErrUnavailable) {
			continue
		}
		return s, err
	}
	return Secret{}, ErrDeclined
}

// Invalidate forwards to every provider in the chain that caches.
func (c *chain) Invalidate() {
	for _, p := range c.providers {
		if inv, ok := p.(Invalidator); ok {
			inv.Invalidate()
		}
	}
}
