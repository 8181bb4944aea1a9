package monitor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/netmon/internal/aggregator"
	"github.com/Iron-Ham/netmon/internal/errors"
	"github.com/Iron-Ham/netmon/internal/event"
	"github.com/Iron-Ham/netmon/internal/linereader"
	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/nettop"
	"github.com/Iron-Ham/netmon/internal/ptysession"
	"github.com/Iron-Ham/netmon/internal/traffic"
)

// eofWait bounds how long the reader waits for the tool's exit status
// after the pty reports end of stream.
const eofWait = 5 * time.Second

// Deps are the collaborators of a Session. Zero values take defaults.
type Deps struct {
	Logger *logging.Logger
	Bus    *event.Bus
	// Now stamps windows and snapshots. Defaults to time.Now.
	Now func() time.Time
	// Launch starts the sampling tool. Defaults to ptysession.Start.
	Launch Launcher
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.NopLogger()
	}
	if d.Bus == nil {
		d.Bus = event.NewBus(d.Logger)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Launch == nil {
		logger := d.Logger
		d.Launch = func(ctx context.Context, cmd ptysession.Command, elev ptysession.Elevation) (Process, error) {
			s, err := ptysession.Start(ctx, cmd, elev, ptysession.WithLogger(logger))
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	return d
}

// op runs on the actor goroutine with exclusive access to the aggregator.
type op func(a *aggregator.Aggregator)

// Session is one run of the sampling tool feeding an aggregator.
//
// Three goroutines make up a session: the line reader draining the pty,
// the actor that exclusively owns parser, assembler and aggregator, and
// the watchdog. Everything else talks to the actor through messages.
type Session struct {
	id     string
	cfg    Config
	logger *logging.Logger
	bus    *event.Bus
	now    func() time.Time

	proc   Process
	reader *linereader.Reader
	dog    *watchdog

	parser *nettop.Parser
	asm    *nettop.Assembler
	agg    *aggregator.Aggregator

	ops       chan op
	actorDone chan struct{}
	final     traffic.Snapshot

	cancel   context.CancelFunc
	wg       conc.WaitGroup
	done     chan struct{}
	stopping atomic.Bool
	stopOnce sync.Once
	stopErr  error

	mu    sync.RWMutex
	state State
	err   error
}

// Start launches the sampling tool and begins aggregating its output. The
// session also stops when ctx is canceled.
func Start(ctx context.Context, cfg Config, deps Deps) (*Session, error) {
	deps = deps.withDefaults()
	id := generateID()

	s := &Session{
		id:        id,
		cfg:       cfg,
		logger:    deps.Logger.WithSession(id).WithComponent("monitor"),
		bus:       deps.Bus,
		now:       deps.Now,
		parser:    nettop.NewParser(cfg.Schema),
		asm:       nettop.NewAssembler(),
		ops:       make(chan op),
		actorDone: make(chan struct{}),
		done:      make(chan struct{}),
		state:     StateStarting,
	}
	s.agg = aggregator.New(aggregator.Options{
		HistorySize:    cfg.HistorySize,
		StaleThreshold: cfg.StaleThreshold,
		Logger:         deps.Logger.WithSession(id),
	})
	s.dog = newWatchdog(cfg.WatchdogTimeout, deps.Now)

	proc, err := deps.Launch(ctx, cfg.Command, cfg.Elevation)
	if err != nil {
		s.fail(err)
		s.bus.Publish(event.NewSessionStoppedEvent(id, err, 0))
		return nil, err
	}
	s.proc = proc

	reader, err := linereader.New(proc.Master(), linereader.Options{
		MaxPending: cfg.MaxPendingLines,
		BufferSize: cfg.ReadBufferSize,
		OnEOF:      s.exitStatus,
		OnActivity: s.activity,
		OnDrop:     s.dropped,
		Logger:     deps.Logger.WithSession(id),
	})
	if err != nil {
		_ = proc.Stop(cfg.StopGrace)
		err = errors.NewPtyAllocationError(err)
		s.fail(err)
		s.bus.Publish(event.NewSessionStoppedEvent(id, err, 0))
		return nil, err
	}
	s.reader = reader

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.setState(StateRunning)
	s.logger.Info("monitoring session started", "pid", proc.PID(), "command", cfg.Command.String())
	s.bus.Publish(event.NewSessionStartedEvent(id, proc.PID(), cfg.Command.String()))

	s.wg.Go(func() { reader.Run(runCtx) })
	s.wg.Go(func() { s.run(runCtx) })
	if s.dog.enabled() {
		s.wg.Go(func() { s.watch(runCtx) })
	}
	go s.supervise()

	context.AfterFunc(ctx, func() { _ = s.Stop() })
	return s, nil
}

// ID returns the session identifier used in logs and events.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the terminal error once the session has failed.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Done is closed when every goroutine of the session has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns the current aggregate. After the session has ended it
// returns the final snapshot.
func (s *Session) Snapshot(ctx context.Context) (traffic.Snapshot, error) {
	reply := make(chan traffic.Snapshot, 1)
	err := s.send(ctx, func(a *aggregator.Aggregator) {
		reply <- a.Snapshot(s.now())
	})
	if errors.Is(err, errors.ErrSessionStopped) {
		return s.final, nil
	}
	if err != nil {
		return traffic.Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	default:
		// The actor panicked while building the snapshot.
		return traffic.Snapshot{}, errors.ErrSessionStopped
	}
}

// ClearHistory empties the rate histories while keeping live processes
// and their baselines.
func (s *Session) ClearHistory(ctx context.Context) error {
	return s.send(ctx, func(a *aggregator.Aggregator) {
		a.ClearHistory()
		s.logger.Info("rate history cleared")
	})
}

// send hands fn to the actor and waits until it has run.
func (s *Session) send(ctx context.Context, fn op) error {
	ran := make(chan struct{})
	wrapped := func(a *aggregator.Aggregator) {
		defer close(ran)
		fn(a)
	}

	select {
	case s.ops <- wrapped:
	case <-s.actorDone:
		return errors.ErrSessionStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ran
	return nil
}

// Stop cancels the reader, stops the tool and waits for the session's
// goroutines. It is safe to call more than once.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		if s.reader != nil {
			s.reader.Cancel()
		}
		if s.proc != nil {
			s.stopErr = s.proc.Stop(s.cfg.StopGrace)
		}
		if s.cancel != nil {
			s.cancel()
		}
		<-s.done
	})
	return s.stopErr
}

// run is the actor loop.
func (s *Session) run(ctx context.Context) {
	defer close(s.actorDone)
	defer func() { s.final = s.agg.Snapshot(s.now()) }()
	// Once the actor is gone nothing consumes lines; end the other
	// goroutines too, including when it exits by panicking.
	defer s.cancel()
	defer s.reader.Cancel()

	lines := s.reader.Lines()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.ops:
			fn(s.agg)
		case line, ok := <-lines:
			if !ok {
				s.finish(s.reader.Err())
				return
			}
			// Lines still queued when Stop began are discarded.
			if s.stopping.Load() {
				continue
			}
			s.handleLine(line)
		}
	}
}

func (s *Session) handleLine(line string) {
	res := s.parser.Parse(line)
	if warn := res.Warning(); warn != nil {
		s.logger.Debug("ignoring line", "reason", res.Reason, "line", truncate(res.Line, 120))
	}
	if w, ok := s.asm.Add(res); ok {
		s.apply(w)
	}
}

func (s *Session) apply(w nettop.Window) {
	res := s.agg.ApplyWindow(s.now(), w)

	for _, ev := range res.Evicted {
		s.logger.Debug("process evicted", "process", ev.Key.String(), "last_seen", ev.LastSeen)
		s.bus.Publish(event.NewProcessEvictedEvent(s.id, ev.Key.String(), ev.LastSeen))
	}
	s.bus.Publish(event.NewWindowAppliedEvent(
		s.id, s.agg.Windows(), res.Records, s.agg.Len(),
		res.New, res.Resets, len(res.Evicted), w.Ignored,
	))
}

// finish handles the end of the line sequence. A clean end applies the
// trailing window; a stop applies nothing.
func (s *Session) finish(err error) {
	if s.stopping.Load() {
		return
	}
	if err != nil {
		s.fail(err)
		return
	}
	if w, ok := s.asm.Flush(); ok {
		s.apply(w)
	}
	s.logger.Info("sampling stream ended")
	s.setState(StateStopped)
}

// supervise waits for the session goroutines, turning a panic into a
// terminal error, then publishes the stopped event.
func (s *Session) supervise() {
	if r := s.wg.WaitAndRecover(); r != nil {
		s.logger.Error("monitoring session panicked", "panic", fmt.Sprint(r.Value), "stack", string(r.Stack))
		s.fail(r.AsError())
		if s.proc != nil {
			_ = s.proc.Stop(s.cfg.StopGrace)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}

	if !s.State().IsTerminal() {
		s.setState(StateStopped)
	}
	s.logger.Info("monitoring session stopped", "state", s.State().String(), "windows", s.agg.Windows())
	s.bus.Publish(event.NewSessionStoppedEvent(s.id, s.Err(), s.agg.Windows()))
	close(s.done)
}

// watch runs the watchdog until ctx is done.
func (s *Session) watch(ctx context.Context) {
	ticker := time.NewTicker(s.dog.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tripped, silence := s.dog.check()
			if !tripped || !s.transition(StateRunning, StateDegraded) {
				continue
			}
			err := errors.NewTimeoutError("sampling output", s.cfg.WatchdogTimeout).WithCause(errors.ErrStalled)
			s.logger.Warn("no output from sampling tool", "silence", silence.String(), "timeout", s.cfg.WatchdogTimeout.String())
			s.bus.Publish(event.NewSessionDegradedEvent(s.id, silence, err))
		}
	}
}

// activity is called by the reader for every chunk it reads.
func (s *Session) activity() {
	recovered, stalledFor := s.dog.recordActivity()
	if !recovered {
		return
	}
	if s.transition(StateDegraded, StateRunning) {
		s.logger.Info("sampling output resumed", "stalled", stalledFor.String())
		s.bus.Publish(event.NewSessionRecoveredEvent(s.id, stalledFor))
	}
}

// dropped is called by the reader when lines were discarded.
func (s *Session) dropped(n, total uint64) {
	s.bus.Publish(event.NewLinesDroppedEvent(s.id, n, total))
}

// exitStatus is the reader's end-of-stream hook: the tool's exit error.
func (s *Session) exitStatus() error {
	ctx, cancel := context.WithTimeout(context.Background(), eofWait)
	defer cancel()

	err := s.proc.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewStreamEndedError(s.proc.PID(), -1, "").
			WithCause(errors.NewTimeoutError("wait for sampling tool exit", eofWait))
	}
	return err
}

// transition moves from one state to another, reporting whether the
// session was in from.
func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// fail records a terminal error. The first error wins.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.state = StateFailed
	s.mu.Unlock()

	s.logger.Error("monitoring session failed",
		"error", err.Error(),
		"severity", errors.GetSeverity(err).String(),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// generateID creates a short random hex ID.
func generateID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xFFFFFFFF)
	}
	return hex.EncodeToString(b)
}
