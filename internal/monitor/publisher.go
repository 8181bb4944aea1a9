package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/traffic"
)

// DefaultPublishInterval is the snapshot cadence, independent of the
// tool's sampling cadence.
const DefaultPublishInterval = time.Second

// SnapshotSource supplies snapshots. *Session implements it.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (traffic.Snapshot, error)
}

// SourceFunc adapts a function to SnapshotSource.
type SourceFunc func(ctx context.Context) (traffic.Snapshot, error)

// Snapshot implements SnapshotSource.
func (f SourceFunc) Snapshot(ctx context.Context) (traffic.Snapshot, error) {
	return f(ctx)
}

// Publisher pulls a snapshot from its source on a fixed interval and
// delivers it to subscribers. Each subscriber holds at most one pending
// snapshot; a newer one replaces an unread older one, so a slow consumer
// never blocks publishing.
type Publisher struct {
	source   SnapshotSource
	interval time.Duration
	logger   *logging.Logger

	mu        sync.Mutex
	subs      map[int]chan traffic.Snapshot
	nextID    int
	latest    traffic.Snapshot
	published bool
	closed    bool
}

// NewPublisher creates a Publisher. A non-positive interval uses
// DefaultPublishInterval.
func NewPublisher(source SnapshotSource, interval time.Duration, logger *logging.Logger) *Publisher {
	if interval <= 0 {
		interval = DefaultPublishInterval
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Publisher{
		source:   source,
		interval: interval,
		logger:   logger.WithComponent("publisher"),
		subs:     make(map[int]chan traffic.Snapshot),
	}
}

// Run publishes immediately and then on every tick until ctx is done.
// It closes all subscriber channels before returning.
func (p *Publisher) Run(ctx context.Context) {
	defer p.closeAll()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.publishOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publishOnce(ctx)
		}
	}
}

func (p *Publisher) publishOnce(ctx context.Context) {
	snap, err := p.source.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Debug("snapshot unavailable", "error", err.Error())
		}
		return
	}
	p.Publish(snap)
}

// Publish delivers snap to every subscriber without blocking.
func (p *Publisher) Publish(snap traffic.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.latest, p.published = snap, true
	for _, ch := range p.subs {
		deliverLatest(ch, snap)
	}
}

// deliverLatest puts snap into a capacity-1 channel, replacing any unread
// value.
func deliverLatest(ch chan traffic.Snapshot, snap traffic.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Subscribe registers a subscriber. The returned cancel function
// unregisters it and closes the channel; it is safe to call more than once.
func (p *Publisher) Subscribe() (<-chan traffic.Snapshot, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan traffic.Snapshot, 1)
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	if p.published {
		ch <- p.latest
	}

	id := p.nextID
	p.nextID++
	p.subs[id] = ch

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(c)
		}
	}
}

// Latest returns the most recently published snapshot, and false when
// nothing has been published yet.
func (p *Publisher) Latest() (traffic.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.published
}

// Subscribers returns the number of registered subscribers.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *Publisher) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}
