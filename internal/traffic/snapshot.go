package traffic

import "time"

// ProcessView is one process inside a Snapshot.
type ProcessView struct {
	Key ProcessKey `json:"process" yaml:"process"`
	// Rate is the most recent rate; meaningful only when HasRate is set.
	// A process seen once has a baseline but no rate yet.
	Rate        RateRecord   `json:"rate" yaml:"rate"`
	HasRate     bool         `json:"has_rate" yaml:"has_rate"`
	History     []RateRecord `json:"history" yaml:"history"`
	Connections int          `json:"connections" yaml:"connections"`
	LastSeen    time.Time    `json:"last_seen" yaml:"last_seen"`
}

// Snapshot is an immutable, internally consistent view of the aggregator
// between two windows. Processes are in no particular order.
type Snapshot struct {
	Taken         time.Time     `json:"taken" yaml:"taken"`
	Window        uint64        `json:"window" yaml:"window"`
	Processes     []ProcessView `json:"processes" yaml:"processes"`
	Totals        RateRecord    `json:"totals" yaml:"totals"`
	TotalsHistory []RateRecord  `json:"totals_history" yaml:"totals_history"`
}

// Len returns the number of live processes.
func (s Snapshot) Len() int {
	return len(s.Processes)
}

// Lookup returns the view for key.
func (s Snapshot) Lookup(key ProcessKey) (ProcessView, bool) {
	for _, p := range s.Processes {
		if p.Key == key {
			return p, true
		}
	}
	return ProcessView{}, false
}

// IsZero reports whether no window has been applied yet.
func (s Snapshot) IsZero() bool {
	return s.Window == 0 && len(s.Processes) == 0
}
