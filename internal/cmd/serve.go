package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/netmon/internal/api"
	"github.com/Iron-Ham/netmon/internal/config"
	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/monitor"
	"github.com/Iron-Ham/netmon/internal/sink"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve live snapshots over HTTP",
	Long: `Start monitoring and serve snapshots on the HTTP API, optionally
publishing every snapshot to NATS.

Endpoints:
  GET  /api/v1/snapshot                 all processes (?sort=&order=&limit=&min_rate=)
  GET  /api/v1/processes/{name}/{pid}   one process with its history
  POST /api/v1/history/clear            drop rate history, keep baselines
  GET  /api/v1/health                   session state

A failed session is not restarted; restart the server to resume.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveListen string
	serveNATS   string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (default: api.listen)")
	serveCmd.Flags().StringVar(&serveNATS, "nats", "", "Publish snapshots to this NATS URL (default: nats.url when nats.enabled)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.API.Listen = serveListen
	}
	if cmd.Flags().Changed("nats") {
		cfg.NATS.Enabled = true
		cfg.NATS.URL = serveNATS
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	watchConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, err := startMonitor(ctx, cfg, logger)
	defer func() { _ = mgr.Stop() }()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "netmon serving on http://%s/api/v1 (session %s)\n", cfg.API.Listen, mgr.ID())
	return serve(ctx, cfg, mgr, logger)
}

// serve runs the HTTP API and, when enabled, the NATS sink until ctx ends.
func serve(ctx context.Context, cfg *config.Config, mgr *monitor.Manager, logger *logging.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var nc *sink.NATS
	if cfg.NATS.Enabled {
		host, _ := os.Hostname()
		var err error
		nc, err = sink.DialNATS(cfg.NATS.URL, cfg.NATS.Subject, host, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
	}

	pub := monitor.NewPublisher(mgr, cfg.Publisher.Interval(), logger)
	server := api.NewServer(mgr, logger)

	var serveErr error
	var wg conc.WaitGroup
	if nc != nil {
		snaps, unsubscribe := pub.Subscribe()
		wg.Go(func() {
			defer unsubscribe()
			nc.Run(ctx, snaps)
		})
	}
	wg.Go(func() { pub.Run(ctx) })
	wg.Go(func() {
		defer cancel()
		serveErr = server.ListenAndServe(ctx, cfg.API.Listen)
	})
	wg.Wait()

	if nc != nil {
		published, failed := nc.Stats()
		logger.Info("nats sink stopped", "published", published, "failed", failed)
	}
	return serveErr
}
