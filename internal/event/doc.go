// Package event provides a pub-sub event bus for decoupled communication
// between a monitoring session and whoever observes it (the TUI, the HTTP
// server, log sinks).
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Session Lifecycle:
//   - [SessionStartedEvent]: the sampling tool is running
//   - [SessionStoppedEvent]: the session ended; Err is set on terminal failure
//   - [SessionDegradedEvent]: the watchdog saw no output for too long
//   - [SessionRecoveredEvent]: output resumed after degradation
//
// Sampling:
//   - [WindowAppliedEvent]: one sampling window reached the aggregator
//   - [ProcessEvictedEvent]: a process went stale and was dropped
//   - [LinesDroppedEvent]: the line reader shed backlog
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously on the publishing goroutine and are protected against
// panics; a panicking handler is logged and the remaining handlers still run.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypeSessionStopped, func(e event.Event) {
//	    stopped := e.(event.SessionStoppedEvent)
//	    if stopped.RestartRequired() {
//	        fmt.Println("monitoring stopped:", stopped.Err)
//	    }
//	})
//
//	id := bus.SubscribeAll(func(e event.Event) {
//	    logger.Debug("event", "type", e.EventType())
//	})
//	defer bus.Unsubscribe(id)
package event
