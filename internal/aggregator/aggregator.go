// Package aggregator turns windows of cumulative per-process counters into
// per-second rates with a bounded rolling history per process.
//
// An Aggregator is owned by exactly one goroutine. It holds no locks; the
// monitoring session serializes every ApplyWindow and Snapshot call through
// its actor loop, so a Snapshot always reflects whole windows.
package aggregator

import (
	"slices"
	"time"

	"github.com/Iron-Ham/netmon/internal/errors"
	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/nettop"
	"github.com/Iron-Ham/netmon/internal/traffic"
)

// Default tuning values.
const (
	DefaultHistorySize    = traffic.DefaultHistorySize
	DefaultStaleThreshold = 2
)

// Options configures an Aggregator.
type Options struct {
	// HistorySize is the per-process rate history capacity.
	HistorySize int
	// StaleThreshold is the number of consecutive windows a process may be
	// absent from before it is evicted.
	StaleThreshold int
	Logger         *logging.Logger
}

// Result summarizes one ApplyWindow call.
type Result struct {
	Records        int
	New            int
	Rates          int
	Resets         int
	TimingWarnings int
	Evicted        []Eviction
}

// Eviction records a process dropped as stale.
type Eviction struct {
	Key      traffic.ProcessKey
	LastSeen time.Time
}

type processState struct {
	counters    traffic.CounterSample
	counted     time.Time // timestamp of counters
	history     *traffic.History
	rate        traffic.RateRecord
	hasRate     bool
	missed      int
	connections int
	lastSeen    time.Time
}

// Aggregator is the sole owner of per-process state. It is not safe for
// concurrent use.
type Aggregator struct {
	historySize    int
	staleThreshold int
	logger         *logging.Logger

	states  map[traffic.ProcessKey]*processState
	totals  *traffic.History
	windows uint64
}

// New creates an empty Aggregator. Zero option values take the defaults.
func New(opts Options) *Aggregator {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.StaleThreshold <= 0 {
		opts.StaleThreshold = DefaultStaleThreshold
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	return &Aggregator{
		historySize:    opts.HistorySize,
		staleThreshold: opts.StaleThreshold,
		logger:         opts.Logger.WithComponent("aggregator"),
		states:         make(map[traffic.ProcessKey]*processState),
		totals:         traffic.NewHistory(opts.HistorySize),
	}
}

// ApplyWindow applies one complete sampling window observed at ts.
func (a *Aggregator) ApplyWindow(ts time.Time, w nettop.Window) Result {
	a.windows++
	res := Result{Records: len(w.Records)}

	seen := make(map[traffic.ProcessKey]struct{}, len(w.Records))
	var total traffic.RateRecord
	total.At = ts

	for _, rec := range w.Records {
		seen[rec.Key] = struct{}{}

		st, ok := a.states[rec.Key]
		if !ok {
			a.states[rec.Key] = &processState{
				counters:    rec.Counters,
				counted:     ts,
				history:     traffic.NewHistory(a.historySize),
				connections: w.Connections[rec.Key],
				lastSeen:    ts,
			}
			res.New++
			continue
		}

		st.missed = 0
		st.lastSeen = ts
		st.connections = w.Connections[rec.Key]

		deltaIn, deltaOut, monotonic := rec.Counters.Delta(st.counters)
		if !monotonic {
			reset := errors.NewCounterResetEvent(rec.Key.String(),
				st.counters.BytesIn, st.counters.BytesOut, rec.Counters.BytesIn, rec.Counters.BytesOut)
			a.logger.Debug("counter reset, re-baselining", "process", rec.Key.String(), "event", reset.Error())
			st.counters = rec.Counters
			st.counted = ts
			st.hasRate = false
			res.Resets++
			continue
		}

		rate, ok := traffic.NewRateRecord(ts, deltaIn, deltaOut, ts.Sub(st.counted))
		if !ok {
			warn := errors.NewTimingWarning(rec.Key.String(), ts.Sub(st.counted))
			a.logger.Warn("skipping rate computation", "process", rec.Key.String(), "error", warn.Error())
			res.TimingWarnings++
			continue
		}

		st.history.Push(rate)
		st.rate = rate
		st.hasRate = true
		st.counters = rec.Counters
		st.counted = ts
		total = total.Add(rate)
		res.Rates++
	}

	for key, st := range a.states {
		if _, ok := seen[key]; ok {
			continue
		}
		st.missed++
		// The tool reported nothing for it this window; history stays.
		st.rate = traffic.RateRecord{}
		st.hasRate = false
		if st.missed >= a.staleThreshold {
			delete(a.states, key)
			res.Evicted = append(res.Evicted, Eviction{Key: key, LastSeen: st.lastSeen})
			a.logger.Debug("evicted stale process", "process", key.String(), "missed", st.missed)
		}
	}

	if res.Rates > 0 {
		a.totals.Push(total)
	}
	return res
}

// Snapshot returns a deep copy of the current state. Processes are ordered
// by key only to keep output stable; callers must not rely on it.
func (a *Aggregator) Snapshot(now time.Time) traffic.Snapshot {
	snap := traffic.Snapshot{
		Taken:         now,
		Window:        a.windows,
		Processes:     make([]traffic.ProcessView, 0, len(a.states)),
		TotalsHistory: a.totals.Records(),
	}
	if latest, ok := a.totals.Latest(); ok {
		snap.Totals = latest
	}

	for key, st := range a.states {
		snap.Processes = append(snap.Processes, traffic.ProcessView{
			Key:         key,
			Rate:        st.rate,
			HasRate:     st.hasRate,
			History:     st.history.Records(),
			Connections: st.connections,
			LastSeen:    st.lastSeen,
		})
	}
	slices.SortFunc(snap.Processes, func(x, y traffic.ProcessView) int {
		switch {
		case x.Key.Less(y.Key):
			return -1
		case y.Key.Less(x.Key):
			return 1
		}
		return 0
	})
	return snap
}

// Len returns the number of tracked processes.
func (a *Aggregator) Len() int {
	return len(a.states)
}

// Windows returns the number of windows applied.
func (a *Aggregator) Windows() uint64 {
	return a.windows
}

// ClearHistory discards every rate history, including the totals, while
// keeping counter baselines so rates resume with the next window.
func (a *Aggregator) ClearHistory() {
	for _, st := range a.states {
		st.history.Reset()
	}
	a.totals.Reset()
}
