// Package sink forwards published snapshots to external systems.
package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Iron-Ham/netmon/internal/errors"
	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/traffic"
)

// Conn is the subset of *nats.Conn the sink uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Message is the JSON document published for each snapshot.
type Message struct {
	Host     string           `json:"host,omitempty"`
	Snapshot traffic.Snapshot `json:"snapshot"`
}

// NATS publishes snapshots as JSON to a subject.
type NATS struct {
	conn    Conn
	subject string
	host    string
	logger  *logging.Logger

	published uint64
	failed    uint64
}

// DialNATS connects to url and returns a sink publishing to subject.
func DialNATS(url, subject, host string, logger *logging.Logger) (*NATS, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithComponent("sink")

	nc, err := nats.Connect(url,
		nats.Name("netmon"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to NATS at %s", url)
	}
	logger.Info("connected to NATS", "url", url, "subject", subject)
	return NewNATS(nc, subject, host, logger), nil
}

// NewNATS wraps an existing connection.
func NewNATS(conn Conn, subject, host string, logger *logging.Logger) *NATS {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &NATS{
		conn:    conn,
		subject: subject,
		host:    host,
		logger:  logger.WithComponent("sink"),
	}
}

// Publish serializes snap and publishes it to the subject.
func (n *NATS) Publish(snap traffic.Snapshot) error {
	data, err := json.Marshal(Message{Host: n.host, Snapshot: snap})
	if err != nil {
		return errors.Wrap(err, "failed to encode snapshot")
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		n.failed++
		return errors.Wrapf(err, "failed to publish to %s", n.subject)
	}
	n.published++
	return nil
}

// Run publishes every snapshot received on snapshots until the channel is
// closed or ctx is done. Publish failures are logged and skipped.
func (n *NATS) Run(ctx context.Context, snapshots <-chan traffic.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := n.Publish(snap); err != nil {
				n.logger.Warn("snapshot not forwarded", "error", err.Error())
			}
		}
	}
}

// Stats returns how many snapshots were published and how many failed.
// It must not be called concurrently with Run.
func (n *NATS) Stats() (published, failed uint64) {
	return n.published, n.failed
}

// Close drains and closes the connection.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	if err := n.conn.Drain(); err != nil {
		return errors.Wrap(err, "failed to drain NATS connection")
	}
	n.logger.Info("NATS connection drained and closed")
	return nil
}
