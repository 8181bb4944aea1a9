package cmd

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/netmon/internal/config"
	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/monitor"
	"github.com/Iron-Ham/netmon/internal/secret"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// loadConfig returns the validated configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger opens the debug log configured in cfg. Disabled logging
// returns a logger that discards everything.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.New(logging.Options{
		Dir:   cfg.Logging.ResolveLogDir(),
		Level: cfg.Logging.Level,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		},
	})
}

// newSecrets builds the sudo password source: the environment first, then
// an interactive prompt, cached for the configured TTL.
func newSecrets(cfg *config.Config) *secret.Cached {
	return secret.WithTTL(secret.Chain(
		secret.Env{Name: cfg.Sampler.SecretEnv},
		secret.Prompt{Message: fmt.Sprintf("netmon needs administrator rights to run %s.\nPassword: ", cfg.Sampler.Command)},
	), cfg.Sampler.SecretTTL())
}

// newManager wires a monitoring manager from the configuration.
func newManager(cfg *config.Config, logger *logging.Logger) *monitor.Manager {
	return monitor.NewManager(
		monitor.NewConfig(cfg, newSecrets(cfg)),
		monitor.Deps{Logger: logger},
	)
}

// watchConfig reloads the log level whenever the config file changes.
// Other settings apply to the next session.
func watchConfig(logger *logging.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := viper.GetString("logging.level")
		logger.SetLevel(level)
		logger.Info("configuration reloaded", "file", e.Name, "level", logger.Level())
	})
	viper.WatchConfig()
}

// startMonitor starts a manager whose sessions stop when ctx ends.
func startMonitor(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*monitor.Manager, error) {
	mgr := newManager(cfg, logger)
	if err := mgr.Start(ctx); err != nil {
		return mgr, err
	}
	return mgr, nil
}
