package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "session.started", "window.applied")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeSessionStarted   = "session.started"
	TypeSessionStopped   = "session.stopped"
	TypeSessionDegraded  = "session.degraded"
	TypeSessionRecovered = "session.recovered"
	TypeWindowApplied    = "window.applied"
	TypeProcessEvicted   = "process.evicted"
	TypeLinesDropped     = "lines.dropped"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Session Lifecycle Events
// -----------------------------------------------------------------------------

// SessionStartedEvent is emitted once the sampling tool is running.
type SessionStartedEvent struct {
	baseEvent
	SessionID string
	PID       int
	Command   string
}

// NewSessionStartedEvent creates a SessionStartedEvent.
func NewSessionStartedEvent(sessionID string, pid int, command string) SessionStartedEvent {
	return SessionStartedEvent{
		baseEvent: newBaseEvent(TypeSessionStarted),
		SessionID: sessionID,
		PID:       pid,
		Command:   command,
	}
}

// SessionStoppedEvent is emitted when a session ends, on request or
// because of a terminal error. Err is nil for a requested stop.
type SessionStoppedEvent struct {
	baseEvent
	SessionID string
	Err       error
	Windows   uint64 // windows applied over the session's lifetime
}

// NewSessionStoppedEvent creates a SessionStoppedEvent.
func NewSessionStoppedEvent(sessionID string, err error, windows uint64) SessionStoppedEvent {
	return SessionStoppedEvent{
		baseEvent: newBaseEvent(TypeSessionStopped),
		SessionID: sessionID,
		Err:       err,
		Windows:   windows,
	}
}

// RestartRequired reports whether the session ended on a terminal error.
func (e SessionStoppedEvent) RestartRequired() bool {
	return e.Err != nil
}

// SessionDegradedEvent is emitted when the sampling tool has produced no
// output for longer than the watchdog timeout.
type SessionDegradedEvent struct {
	baseEvent
	SessionID string
	Silence   time.Duration
	Err       error
}

// NewSessionDegradedEvent creates a SessionDegradedEvent.
func NewSessionDegradedEvent(sessionID string, silence time.Duration, err error) SessionDegradedEvent {
	return SessionDegradedEvent{
		baseEvent: newBaseEvent(TypeSessionDegraded),
		SessionID: sessionID,
		Silence:   silence,
		Err:       err,
	}
}

// SessionRecoveredEvent is emitted when output resumes after degradation.
type SessionRecoveredEvent struct {
	baseEvent
	SessionID string
	Stalled   time.Duration
}

// NewSessionRecoveredEvent creates a SessionRecoveredEvent.
func NewSessionRecoveredEvent(sessionID string, stalled time.Duration) SessionRecoveredEvent {
	return SessionRecoveredEvent{
		baseEvent: newBaseEvent(TypeSessionRecovered),
		SessionID: sessionID,
		Stalled:   stalled,
	}
}

// -----------------------------------------------------------------------------
// Sampling Events
// -----------------------------------------------------------------------------

// WindowAppliedEvent is emitted after the aggregator has applied one
// complete sampling window.
type WindowAppliedEvent struct {
	baseEvent
	SessionID string
	Window    uint64 // sequence number of the window, starting at 1
	Records   int    // process rows in the window
	Live      int    // processes tracked after the window
	New       int    // processes seen for the first time
	Resets    int    // counter resets (re-baselined)
	Evicted   int    // processes dropped as stale
	Ignored   int    // lines skipped by the parser
}

// NewWindowAppliedEvent creates a WindowAppliedEvent.
func NewWindowAppliedEvent(sessionID string, window uint64, records, live, created, resets, evicted, ignored int) WindowAppliedEvent {
	return WindowAppliedEvent{
		baseEvent: newBaseEvent(TypeWindowApplied),
		SessionID: sessionID,
		Window:    window,
		Records:   records,
		Live:      live,
		New:       created,
		Resets:    resets,
		Evicted:   evicted,
		Ignored:   ignored,
	}
}

// ProcessEvictedEvent is emitted when a process is removed after missing
// too many consecutive windows.
type ProcessEvictedEvent struct {
	baseEvent
	SessionID string
	Process   string // "name.pid"
	LastSeen  time.Time
}

// NewProcessEvictedEvent creates a ProcessEvictedEvent.
func NewProcessEvictedEvent(sessionID, process string, lastSeen time.Time) ProcessEvictedEvent {
	return ProcessEvictedEvent{
		baseEvent: newBaseEvent(TypeProcessEvicted),
		SessionID: sessionID,
		Process:   process,
		LastSeen:  lastSeen,
	}
}

// LinesDroppedEvent is emitted when the line reader discards pending
// lines because the parser fell behind.
type LinesDroppedEvent struct {
	baseEvent
	SessionID string
	Dropped   uint64 // dropped since the previous event
	Total     uint64 // dropped over the session's lifetime
}

// NewLinesDroppedEvent creates a LinesDroppedEvent.
func NewLinesDroppedEvent(sessionID string, dropped, total uint64) LinesDroppedEvent {
	return LinesDroppedEvent{
		baseEvent: newBaseEvent(TypeLinesDropped),
		SessionID: sessionID,
		Dropped:   dropped,
		Total:     total,
	}
}
