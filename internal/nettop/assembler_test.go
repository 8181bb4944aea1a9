package nettop

import (
	"strings"
	"testing"

	"github.com/Iron-Ham/netmon/internal/traffic"
)

func assemble(t *testing.T, lines ...string) ([]Window, *Assembler) {
	t.Helper()
	p := NewParser(DefaultSchema())
	a := NewAssembler()

	var windows []Window
	for _, l := range lines {
		if w, ok := a.Add(p.Parse(l)); ok {
			windows = append(windows, w)
		}
	}
	return windows, a
}

func TestAssembler_BoundaryFlushesWindow(t *testing.T) {
	windows, a := assemble(t,
		header,
		"t,chrome.1234,,,1000,2000",
		"t,tcp4 a<->b,en0,Established,1,1",
		"t,tcp4 c<->d,en0,Established,1,1",
		"t,kernel_task.0,,,5,5",
		"t,garbage",
		header,
		"t,chrome.1234,,,3000,2500",
	)

	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}
	w := windows[0]
	if w.Len() != 2 {
		t.Errorf("Len() = %d, want 2", w.Len())
	}
	chrome := traffic.ProcessKey{Name: "chrome", PID: 1234}
	if w.Connections[chrome] != 2 {
		t.Errorf("Connections[chrome] = %d, want 2", w.Connections[chrome])
	}
	if w.Ignored != 1 {
		t.Errorf("Ignored = %d, want 1", w.Ignored)
	}

	if a.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", a.Pending())
	}
	trailing, ok := a.Flush()
	if !ok || trailing.Records[0].Counters.BytesIn != 3000 {
		t.Errorf("Flush() = %+v, %v", trailing, ok)
	}
	if _, ok := a.Flush(); ok {
		t.Error("second Flush() should return nothing")
	}
}

func TestAssembler_EmptyWindowsAreNotEmitted(t *testing.T) {
	windows, _ := assemble(t, header, header, "", header, "t,bad", header)
	if len(windows) != 0 {
		t.Errorf("got %d windows, want 0", len(windows))
	}
}

func TestAssembler_DuplicateKeyLastRowWins(t *testing.T) {
	windows, _ := assemble(t,
		header,
		"t,chrome.1234,,,1,1",
		"t,safari.9,,,7,7",
		"t,chrome.1234,,,5,6",
		header,
	)

	if len(windows) != 1 || windows[0].Len() != 2 {
		t.Fatalf("windows = %+v", windows)
	}
	first := windows[0].Records[0]
	if first.Key.Name != "chrome" || first.Counters != (traffic.CounterSample{BytesIn: 5, BytesOut: 6}) {
		t.Errorf("Records[0] = %+v, want chrome with last counters", first)
	}
}

func TestAssembler_ConnectionBeforeAnyProcessIsDropped(t *testing.T) {
	windows, _ := assemble(t,
		header,
		"t,tcp4 a<->b,en0,,1,1",
		"t,chrome.1234,,,1,1",
		header,
		"t,tcp4 a<->b,en0,,1,1",
		"t,chrome.1234,,,2,2",
		header,
	)

	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
	for i, w := range windows {
		if len(w.Connections) != 0 {
			t.Errorf("window %d Connections = %v, want none", i, w.Connections)
		}
	}
}

func TestDecode(t *testing.T) {
	capture := strings.Join([]string{
		header,
		"t,chrome.1234,,,1000,2000",
		header,
		"t,chrome.1234,,,3000,2500",
		"not,a,row",
		header,
		"t,chrome.1234,,,4000,2600",
		"t,trailing", // fragment without newline at end of capture
	}, "\r\n")

	var got []Window
	stats, err := Decode(strings.NewReader(capture), DefaultSchema(), func(w Window) error {
		got = append(got, w)
		return nil
	})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if stats.Windows != 3 || len(got) != 3 {
		t.Errorf("Windows = %d (%d delivered), want 3", stats.Windows, len(got))
	}
	if stats.Lines != 8 {
		t.Errorf("Lines = %d, want 8", stats.Lines)
	}
	if stats.Ignored != 2 {
		t.Errorf("Ignored = %d, want 2", stats.Ignored)
	}
}
