package traffic

import (
	"math"
	"testing"
	"time"
)

func TestCounterSampleDelta(t *testing.T) {
	tests := []struct {
		name          string
		prev, cur     CounterSample
		wantIn, wantO uint64
		wantOK        bool
	}{
		{"increase", CounterSample{1000, 2000}, CounterSample{3000, 2500}, 2000, 500, true},
		{"unchanged", CounterSample{10, 10}, CounterSample{10, 10}, 0, 0, true},
		{"in reset", CounterSample{1000, 2000}, CounterSample{500, 2500}, 0, 0, false},
		{"out reset", CounterSample{1000, 2000}, CounterSample{1500, 100}, 0, 0, false},
		{"both reset", CounterSample{1000, 2000}, CounterSample{500, 100}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out, ok := tt.cur.Delta(tt.prev)
			if in != tt.wantIn || out != tt.wantO || ok != tt.wantOK {
				t.Errorf("Delta() = (%d, %d, %v), want (%d, %d, %v)", in, out, ok, tt.wantIn, tt.wantO, tt.wantOK)
			}
		})
	}
}

func TestNewRateRecord(t *testing.T) {
	at := time.Unix(1, 0)

	r, ok := NewRateRecord(at, 2000, 500, time.Second)
	if !ok {
		t.Fatal("expected rate for positive elapsed")
	}
	if r.InPerSec != 2000 || r.OutPerSec != 500 {
		t.Errorf("rate = (%v, %v), want (2000, 500)", r.InPerSec, r.OutPerSec)
	}
	if !r.At.Equal(at) {
		t.Errorf("At = %v, want %v", r.At, at)
	}

	r, ok = NewRateRecord(at, 3000, 0, 1500*time.Millisecond)
	if !ok || math.Abs(r.InPerSec-2000) > 1e-9 || r.OutPerSec != 0 {
		t.Errorf("variable interval rate = %+v", r)
	}

	for _, elapsed := range []time.Duration{0, -time.Second} {
		if _, ok := NewRateRecord(at, 1, 1, elapsed); ok {
			t.Errorf("elapsed %v should not produce a rate", elapsed)
		}
	}
}

func TestRateRecordAdd(t *testing.T) {
	a := RateRecord{At: time.Unix(5, 0), InPerSec: 1, OutPerSec: 2}
	b := RateRecord{At: time.Unix(9, 0), InPerSec: 3, OutPerSec: 4}

	sum := a.Add(b)
	if sum.InPerSec != 4 || sum.OutPerSec != 6 || !sum.At.Equal(a.At) {
		t.Errorf("Add() = %+v", sum)
	}
	if sum.Total() != 10 {
		t.Errorf("Total() = %v, want 10", sum.Total())
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{math.NaN(), 0},
		{-1, 0},
		{math.Inf(1), math.MaxFloat64},
		{42.5, 42.5},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
