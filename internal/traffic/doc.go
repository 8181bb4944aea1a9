// Package traffic defines the data model shared by the sampling pipeline
// and its consumers: process identity, cumulative counters, derived rates,
// the bounded per-process rate history and immutable snapshots.
//
// # Main Types
//
//   - [ProcessKey]: (name, pid) identity; text form "name.pid"
//   - [CounterSample]: cumulative bytes in/out for one sampling window
//   - [RateRecord]: bytes per second in/out derived from two samples
//   - [History]: fixed-capacity ring of RateRecord, oldest evicted first
//   - [Snapshot]: point-in-time copy of every live process
//
// # Ownership
//
// History is not safe for concurrent use; it belongs to the aggregator that
// mutates it. Snapshots hold fresh copies of everything and are never
// mutated after construction, so they can be handed to any goroutine.
package traffic
