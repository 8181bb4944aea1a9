package monitor

import (
	"context"
	"os"
	"time"

	"github.com/Iron-Ham/netmon/internal/config"
	"github.com/Iron-Ham/netmon/internal/nettop"
	"github.com/Iron-Ham/netmon/internal/ptysession"
	"github.com/Iron-Ham/netmon/internal/secret"
)

// Config holds everything a monitoring session needs to run.
type Config struct {
	Command   ptysession.Command
	Elevation ptysession.Elevation
	Schema    nettop.Schema

	MaxPendingLines int
	ReadBufferSize  int

	HistorySize    int
	StaleThreshold int

	// WatchdogTimeout is the silence after which the session is degraded.
	// Zero disables the watchdog.
	WatchdogTimeout time.Duration
	StopGrace       time.Duration
}

// NewConfig derives a session Config from the loaded configuration. The
// secret provider is only used when the sampler elevates.
func NewConfig(c *config.Config, secrets secret.Provider) Config {
	return Config{
		Command: ptysession.Command{
			Path: c.Sampler.Command,
			Args: append([]string(nil), c.Sampler.Args...),
		},
		Elevation: ptysession.Elevation{
			Mode:    c.Sampler.Elevation,
			Secrets: secrets,
		},
		Schema:          c.Schema.NettopSchema(),
		MaxPendingLines: c.Reader.MaxPendingLines,
		ReadBufferSize:  c.Reader.ReadBufferSize,
		HistorySize:     c.Aggregator.HistorySize,
		StaleThreshold:  c.Aggregator.StaleThreshold,
		WatchdogTimeout: c.Watchdog.Timeout(),
		StopGrace:       c.Sampler.StopGrace(),
	}
}

// Process is a running sampling tool. *ptysession.Session implements it.
type Process interface {
	Master() *os.File
	PID() int
	// Wait blocks until exit and returns nil for a clean exit or a stop.
	Wait(ctx context.Context) error
	Stop(grace time.Duration) error
}

// Launcher starts the sampling tool.
type Launcher func(ctx context.Context, cmd ptysession.Command, elev ptysession.Elevation) (Process, error)
