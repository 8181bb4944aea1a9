package nettop

import "github.com/Iron-Ham/netmon/internal/traffic"

// Window is every record between two boundaries. Records hold at most one
// entry per key; a key repeated inside a window keeps its last row.
type Window struct {
	Records     []Record
	Connections map[traffic.ProcessKey]int
	Ignored     int
}

// Len returns the number of process records.
func (w Window) Len() int {
	return len(w.Records)
}

// Assembler accumulates Results into Windows. It is not safe for
// concurrent use.
type Assembler struct {
	records     []Record
	index       map[traffic.ProcessKey]int
	connections map[traffic.ProcessKey]int
	ignored     int
	current     traffic.ProcessKey
	hasCurrent  bool
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	a := &Assembler{}
	a.reset()
	return a
}

// Add feeds one result. When r is a boundary and the pending window holds
// at least one record, that window is returned and a new one begins.
func (a *Assembler) Add(r Result) (Window, bool) {
	switch r.Kind {
	case KindBoundary:
		return a.Flush()
	case KindProcess:
		if i, ok := a.index[r.Record.Key]; ok {
			a.records[i] = r.Record
		} else {
			a.index[r.Record.Key] = len(a.records)
			a.records = append(a.records, r.Record)
		}
		a.current, a.hasCurrent = r.Record.Key, true
	case KindConnection:
		if a.hasCurrent {
			a.connections[a.current]++
		}
	default:
		if r.Reason != ReasonBlank {
			a.ignored++
		}
	}
	return Window{}, false
}

// Flush returns the pending window, if it has any records, and starts a
// new one. Call it at a clean end of stream to apply the trailing sample.
func (a *Assembler) Flush() (Window, bool) {
	if len(a.records) == 0 {
		a.reset()
		return Window{}, false
	}
	w := Window{
		Records:     a.records,
		Connections: a.connections,
		Ignored:     a.ignored,
	}
	a.reset()
	return w, true
}

// Pending returns the number of records in the unfinished window.
func (a *Assembler) Pending() int {
	return len(a.records)
}

func (a *Assembler) reset() {
	a.records = nil
	a.index = make(map[traffic.ProcessKey]int)
	a.connections = make(map[traffic.ProcessKey]int)
	a.ignored = 0
	a.hasCurrent = false
}
