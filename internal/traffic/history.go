package traffic

// DefaultHistorySize is one minute of one-second windows.
const DefaultHistorySize = 60

// History is a fixed-capacity ring of rate records. Once full, each Push
// overwrites the oldest record, so memory stays constant regardless of how
// long the process is observed.
//
//	Push a,b,c into cap 3:  [a, b, c]  start=0, full
//	Push d:                 [d, b, c]  start=1 -> Records() = b, c, d
//
// History is not safe for concurrent use.
type History struct {
	data  []RateRecord
	start int
	n     int
}

// NewHistory creates an empty history with the given capacity. A
// non-positive capacity falls back to DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{data: make([]RateRecord, capacity)}
}

// Push appends r, evicting the oldest record when at capacity.
func (h *History) Push(r RateRecord) {
	end := (h.start + h.n) % len(h.data)
	h.data[end] = r
	if h.n < len(h.data) {
		h.n++
		return
	}
	h.start = (h.start + 1) % len(h.data)
}

// Len returns the number of stored records, never more than Cap.
func (h *History) Len() int {
	return h.n
}

// Cap returns the fixed capacity.
func (h *History) Cap() int {
	return len(h.data)
}

// Records returns a chronological copy, oldest first.
func (h *History) Records() []RateRecord {
	out := make([]RateRecord, 0, h.n)
	for i := 0; i < h.n; i++ {
		out = append(out, h.data[(h.start+i)%len(h.data)])
	}
	return out
}

// Latest returns the newest record, or false when empty.
func (h *History) Latest() (RateRecord, bool) {
	if h.n == 0 {
		return RateRecord{}, false
	}
	return h.data[(h.start+h.n-1)%len(h.data)], true
}

// Reset discards all records, keeping the capacity.
func (h *History) Reset() {
	h.start = 0
	h.n = 0
	clear(h.data)
}
