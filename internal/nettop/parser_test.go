package nettop

import (
	"testing"

	"github.com/Iron-Ham/netmon/internal/errors"
	"github.com/Iron-Ham/netmon/internal/traffic"
)

const header = "time,,interface,state,bytes_in,bytes_out,rx_dupe,rx_ooo,re-tx,rtt_avg,rcvsize,tx_win,tc_class,tc_mgt,cc_algo,P,C,R,W,arch,"

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantKind   Kind
		wantReason string
		wantRecord Record
	}{
		{
			name:     "header",
			line:     header,
			wantKind: KindBoundary,
		},
		{
			name:     "alternate header",
			line:     ",interface,state,bytes_in,bytes_out",
			wantKind: KindBoundary,
		},
		{
			name:     "process row",
			line:     "10:00:01.123456,chrome.1234,,,1000,2000,0,0,0,,,,,,,,,,,,",
			wantKind: KindProcess,
			wantRecord: Record{
				Key:      traffic.ProcessKey{Name: "chrome", PID: 1234},
				Counters: traffic.CounterSample{BytesIn: 1000, BytesOut: 2000},
			},
		},
		{
			name:     "process with dotted name and crlf",
			line:     "10:00:01,com.apple.WebKit.Networking.812,,,5,6\r",
			wantKind: KindProcess,
			wantRecord: Record{
				Key:      traffic.ProcessKey{Name: "com.apple.WebKit.Networking", PID: 812},
				Counters: traffic.CounterSample{BytesIn: 5, BytesOut: 6},
			},
		},
		{
			name:     "connection row",
			line:     "10:00:01,tcp4 10.0.0.2:50000<->1.1.1.1:443,en0,Established,900,1800",
			wantKind: KindConnection,
		},
		{
			name:     "connection arrow only",
			line:     "10:00:01,10.0.0.2:5353<->224.0.0.251:5353,en0,,1,2",
			wantKind: KindConnection,
		},
		{
			name:     "process named like a protocol",
			line:     "10:00:01,tcpdump.311,,,1,2",
			wantKind: KindProcess,
			wantRecord: Record{
				Key:      traffic.ProcessKey{Name: "tcpdump", PID: 311},
				Counters: traffic.CounterSample{BytesIn: 1, BytesOut: 2},
			},
		},
		{
			name:       "blank",
			line:       "   \r",
			wantKind:   KindIgnorable,
			wantReason: ReasonBlank,
		},
		{
			name:       "truncated row",
			line:       "10:00:01,chrome.1234,,,10",
			wantKind:   KindIgnorable,
			wantReason: ReasonShortRow,
		},
		{
			name:       "single field",
			line:       "garbage",
			wantKind:   KindIgnorable,
			wantReason: ReasonShortRow,
		},
		{
			name:       "empty identity",
			line:       "10:00:01,,,,1,2",
			wantKind:   KindIgnorable,
			wantReason: ReasonMissingIdentity,
		},
		{
			name:       "non-numeric pid",
			line:       "10:00:01,chrome.12ab,,,1,2",
			wantKind:   KindIgnorable,
			wantReason: ReasonBadIdentity,
		},
		{
			name:       "no pid",
			line:       "10:00:01,launchd,,,1,2",
			wantKind:   KindIgnorable,
			wantReason: ReasonBadIdentity,
		},
		{
			name:       "non-numeric counter",
			line:       "10:00:01,chrome.1234,,,abc,2",
			wantKind:   KindIgnorable,
			wantReason: ReasonNonNumericCounts,
		},
		{
			name:       "negative counter",
			line:       "10:00:01,chrome.1234,,,-5,2",
			wantKind:   KindIgnorable,
			wantReason: ReasonNonNumericCounts,
		},
		{
			name:       "empty counter",
			line:       "10:00:01,chrome.1234,,,,2",
			wantKind:   KindIgnorable,
			wantReason: ReasonNonNumericCounts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(DefaultSchema())
			got := p.Parse(tt.line)

			if got.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v (reason %q)", got.Kind, tt.wantKind, got.Reason)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
			if tt.wantKind == KindProcess && got.Record != tt.wantRecord {
				t.Errorf("Record = %+v, want %+v", got.Record, tt.wantRecord)
			}
		})
	}
}

func TestParser_LearnsColumnsFromHeader(t *testing.T) {
	p := NewParser(DefaultSchema())
	if in, out := p.Columns(); in != 4 || out != 5 {
		t.Fatalf("fallback Columns() = (%d, %d), want (4, 5)", in, out)
	}

	// A future tool version that moves the counters and swaps their order.
	p.Parse("time,,interface,state,extra,bytes_out,bytes_in")
	if in, out := p.Columns(); in != 6 || out != 5 {
		t.Fatalf("Columns() after header = (%d, %d), want (6, 5)", in, out)
	}

	got := p.Parse("10:00:01,chrome.1234,,,x,200,100")
	if got.Kind != KindProcess {
		t.Fatalf("Kind = %v (%s)", got.Kind, got.Reason)
	}
	if got.Record.Counters.BytesIn != 100 || got.Record.Counters.BytesOut != 200 {
		t.Errorf("Counters = %+v, want in=100 out=200", got.Record.Counters)
	}
}

func TestParser_HeaderWithoutCountersKeepsColumns(t *testing.T) {
	p := NewParser(DefaultSchema())
	p.Parse("time,,interface,state,rx,tx")
	if in, out := p.Columns(); in != 4 || out != 5 {
		t.Errorf("Columns() = (%d, %d), want fallback (4, 5)", in, out)
	}

	// The alternate header is a boundary only, never a column source.
	p.Parse(",interface,state,bytes_in,bytes_out")
	if in, out := p.Columns(); in != 4 || out != 5 {
		t.Errorf("Columns() after alt header = (%d, %d), want (4, 5)", in, out)
	}
}

func TestResult_Warning(t *testing.T) {
	p := NewParser(DefaultSchema())

	if err := p.Parse("").Warning(); err != nil {
		t.Errorf("blank line should not warn, got %v", err)
	}
	if err := p.Parse(header).Warning(); err != nil {
		t.Errorf("header should not warn, got %v", err)
	}

	err := p.Parse("10:00:01,chrome.x,,,1,2").Warning()
	var pw *errors.ParseWarning
	if !errors.As(err, &pw) {
		t.Fatalf("Warning() = %v, want *ParseWarning", err)
	}
	if pw.Reason != ReasonBadIdentity {
		t.Errorf("Reason = %q, want %q", pw.Reason, ReasonBadIdentity)
	}
}

func TestSchema_IsConnection(t *testing.T) {
	s := DefaultSchema()
	tests := []struct {
		identity string
		want     bool
	}{
		{"tcp4 10.0.0.2:50000<->1.1.1.1:443", true},
		{"udp6 *:5353<->*:*", true},
		{"tcp", true},
		{"a<->b", true},
		{"tcpdump.311", false},
		{"udpserver.9", false},
		{"chrome.1234", false},
	}
	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			if got := s.IsConnection(tt.identity); got != tt.want {
				t.Errorf("IsConnection(%q) = %v, want %v", tt.identity, got, tt.want)
			}
		})
	}
}
