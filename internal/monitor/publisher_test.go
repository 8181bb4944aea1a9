package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/netmon/internal/errors"
	"github.com/Iron-Ham/netmon/internal/traffic"
)

func TestPublisher_LatestWins(t *testing.T) {
	p := NewPublisher(SourceFunc(func(context.Context) (traffic.Snapshot, error) {
		return traffic.Snapshot{}, nil
	}), time.Hour, nil)

	ch, cancel := p.Subscribe()
	defer cancel()

	for i := uint64(1); i <= 5; i++ {
		p.Publish(traffic.Snapshot{Window: i})
	}

	select {
	case snap := <-ch:
		if snap.Window != 5 {
			t.Errorf("received window %d, want 5", snap.Window)
		}
	default:
		t.Fatal("no snapshot pending")
	}

	select {
	case snap := <-ch:
		t.Errorf("unexpected second snapshot %d", snap.Window)
	default:
	}
}

func TestPublisher_SubscribeReceivesLatest(t *testing.T) {
	p := NewPublisher(SourceFunc(func(context.Context) (traffic.Snapshot, error) {
		return traffic.Snapshot{}, nil
	}), time.Hour, nil)

	if _, ok := p.Latest(); ok {
		t.Error("Latest() ok before any publish")
	}

	p.Publish(traffic.Snapshot{Window: 3})

	latest, ok := p.Latest()
	if !ok || latest.Window != 3 {
		t.Errorf("Latest() = %d, %v; want 3, true", latest.Window, ok)
	}

	ch, cancel := p.Subscribe()
	defer cancel()
	select {
	case snap := <-ch:
		if snap.Window != 3 {
			t.Errorf("received window %d, want 3", snap.Window)
		}
	default:
		t.Fatal("new subscriber did not receive the latest snapshot")
	}
}

func TestPublisher_Run(t *testing.T) {
	var calls atomic.Uint64
	source := SourceFunc(func(context.Context) (traffic.Snapshot, error) {
		n := calls.Add(1)
		if n == 2 {
			return traffic.Snapshot{}, errors.ErrSessionStopped
		}
		return traffic.Snapshot{Window: n}, nil
	})

	p := NewPublisher(source, 20*time.Millisecond, nil)
	ch, cancel := p.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	// The first snapshot is published without waiting for a tick.
	select {
	case snap := <-ch:
		if snap.Window != 1 {
			t.Errorf("first window = %d, want 1", snap.Window)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	// The failed pull is skipped; the next one arrives.
	select {
	case snap := <-ch:
		if snap.Window < 3 {
			t.Errorf("window = %d, want >= 3", snap.Window)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot after a failed pull")
	}

	stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Run closes subscriber channels on exit.
	for range ch {
	}
	if got := p.Subscribers(); got != 0 {
		t.Errorf("Subscribers() = %d after Run, want 0", got)
	}

	late, lateCancel := p.Subscribe()
	defer lateCancel()
	if _, ok := <-late; ok {
		t.Error("subscription after Run should be closed")
	}
}

func TestPublisher_Cancel(t *testing.T) {
	p := NewPublisher(SourceFunc(func(context.Context) (traffic.Snapshot, error) {
		return traffic.Snapshot{}, nil
	}), time.Hour, nil)

	ch, cancel := p.Subscribe()
	if got := p.Subscribers(); got != 1 {
		t.Fatalf("Subscribers() = %d, want 1", got)
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel not closed after cancel")
	}
	if got := p.Subscribers(); got != 0 {
		t.Errorf("Subscribers() = %d, want 0", got)
	}

	// Publishing to no subscribers must not panic.
	p.Publish(traffic.Snapshot{Window: 1})
}

func TestPublisher_SessionSource(t *testing.T) {
	h := startHarness(t, testConfig())
	var _ SnapshotSource = h.session

	p := NewPublisher(h.session, 10*time.Millisecond, nil)
	ch, cancel := p.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go p.Run(ctx)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no snapshot from session source")
	}
}
