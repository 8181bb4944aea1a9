// Package monitor runs a monitoring session: it launches the sampling
// tool through ptysession, reads its output with linereader, and feeds
// parsed windows into an aggregator owned by a single actor goroutine.
//
// Consumers never touch the aggregator directly. They pull snapshots with
// Session.Snapshot or subscribe to a Publisher, which pulls on its own
// fixed cadence and hands each subscriber the latest snapshot.
//
// Terminal errors (a tool that cannot be launched, or one that exits
// while the session runs) put the session into StateFailed. The session
// never restarts itself; callers start a new one when they want to.
package monitor
