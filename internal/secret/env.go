package secret

import (
	"context"
	"os"
)

// DefaultEnvVar is consulted by Env when no name is given.
const DefaultEnvVar = "NETMON_SUDO_PASSWORD"

// Env reads the secret from an environment variable.
type Env struct {
	Name string
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Obtain implements Provider. An unset or empty variable is ErrUnavailable.
func (e Env) Obtain(ctx context.Context) (Secret, error) {
	if err := ctx.Err(); err != nil {
		return Secret{}, err
	}

	name := e.Name
	if name == "" {
		name = DefaultEnvVar
	}
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	v, ok := lookup(name)
	if !ok || v == "" {
		return Secret{}, ErrUnavailable
	}
	return New(v), nil
}
