package keymap

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestKeymap_Lookup(t *testing.T) {
	km := Default()

	tests := []struct {
		name   string
		msg    tea.KeyMsg
		want   Command
		wantOK bool
	}{
		{"q quits", runeKey('q'), CmdQuit, true},
		{"ctrl+c quits", tea.KeyMsg{Type: tea.KeyCtrlC}, CmdQuit, true},
		{"r restarts", runeKey('r'), CmdRestart, true},
		{"c clears history", runeKey('c'), CmdClearHistory, true},
		{"a toggles active", runeKey('a'), CmdToggleActive, true},
		{"3 sorts by in", runeKey('3'), CmdSortIn, true},
		{"5 sorts by conns", runeKey('5'), CmdSortConns, true},
		{"unbound rune", runeKey('z'), "", false},
		{"alt+q is not quit", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}, Alt: true}, "", false},
		{"arrow keys are unbound", tea.KeyMsg{Type: tea.KeyDown}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := km.Lookup(tt.msg)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Lookup() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestKeymap_HelpEntries(t *testing.T) {
	km := Default()

	short := km.HelpEntries(false)
	full := km.HelpEntries(true)
	if len(short) == 0 || len(full) <= len(short) {
		t.Fatalf("HelpEntries: short=%d full=%d, want 0 < short < full", len(short), len(full))
	}
	if short[0][0] != "q/ctrl+c" {
		t.Errorf("first short entry key = %q, want %q", short[0][0], "q/ctrl+c")
	}

	seen := make(map[string]bool)
	for _, e := range full {
		if seen[e[1]] {
			t.Errorf("duplicate help entry %q", e[1])
		}
		seen[e[1]] = true
	}
}
