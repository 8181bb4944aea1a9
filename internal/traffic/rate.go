package traffic

import (
	"math"
	"time"
)

// CounterSample holds cumulative byte counters as reported by the sampling
// tool. Counters are monotonic within one process lifetime.
type CounterSample struct {
	BytesIn  uint64 `json:"bytes_in" yaml:"bytes_in"`
	BytesOut uint64 `json:"bytes_out" yaml:"bytes_out"`
}

// Delta returns s - prev per direction. ok is false when either counter
// went backwards, which means the counters were reset.
func (s CounterSample) Delta(prev CounterSample) (in, out uint64, ok bool) {
	if s.BytesIn < prev.BytesIn || s.BytesOut < prev.BytesOut {
		return 0, 0, false
	}
	return s.BytesIn - prev.BytesIn, s.BytesOut - prev.BytesOut, true
}

// RateRecord is a bytes-per-second measurement. Rates are never negative
// and never NaN.
type RateRecord struct {
	At        time.Time `json:"at" yaml:"at"`
	InPerSec  float64   `json:"in_per_sec" yaml:"in_per_sec"`
	OutPerSec float64   `json:"out_per_sec" yaml:"out_per_sec"`
}

// NewRateRecord computes delta/elapsed per direction. It returns false when
// elapsed is not positive.
func NewRateRecord(at time.Time, deltaIn, deltaOut uint64, elapsed time.Duration) (RateRecord, bool) {
	if elapsed <= 0 {
		return RateRecord{}, false
	}
	secs := elapsed.Seconds()
	return RateRecord{
		At:        at,
		InPerSec:  sanitize(float64(deltaIn) / secs),
		OutPerSec: sanitize(float64(deltaOut) / secs),
	}, true
}

// Add returns the per-direction sum of r and other, stamped with r.At.
func (r RateRecord) Add(other RateRecord) RateRecord {
	return RateRecord{
		At:        r.At,
		InPerSec:  sanitize(r.InPerSec + other.InPerSec),
		OutPerSec: sanitize(r.OutPerSec + other.OutPerSec),
	}
}

// Total returns in + out.
func (r RateRecord) Total() float64 {
	return r.InPerSec + r.OutPerSec
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}
