// Package keymap maps key presses in the netmon TUI to commands.
package keymap

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Command represents an action the TUI can perform.
type Command string

const (
	CmdQuit         Command = "quit"
	CmdRestart      Command = "restart"
	CmdClearHistory Command = "clear_history"
	CmdToggleActive Command = "toggle_active"
	CmdToggleOrder  Command = "toggle_order"
	CmdToggleHelp   Command = "toggle_help"
	CmdSortIn       Command = "sort_in"
	CmdSortOut      Command = "sort_out"
	CmdSortName     Command = "sort_name"
	CmdSortPID      Command = "sort_pid"
	CmdSortConns    Command = "sort_conns"
)

// KeyBinding represents a single key binding.
type KeyBinding struct {
	// KeyType is the key for this binding. For rune keys, use tea.KeyRunes
	// and set Rune.
	KeyType tea.KeyType

	// Rune is the character for rune-based keys.
	Rune rune

	// Command is the action to execute when this binding is triggered.
	Command Command

	// Description is a human-readable description for help display.
	Description string

	// Short marks bindings shown in the one-line help bar.
	Short bool
}

// Matches checks if a tea.KeyMsg matches this binding.
func (kb KeyBinding) Matches(msg tea.KeyMsg) bool {
	if msg.Alt {
		return false
	}
	if kb.KeyType != tea.KeyRunes {
		return msg.Type == kb.KeyType
	}
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return false
	}
	return msg.Runes[0] == kb.Rune
}

// String returns a human-readable representation of the key binding.
func (kb KeyBinding) String() string {
	if kb.KeyType != tea.KeyRunes {
		return kb.KeyType.String()
	}
	if kb.Rune == ' ' {
		return "space"
	}
	return string(kb.Rune)
}

// Keymap is an ordered list of bindings. The first match wins.
type Keymap struct {
	Bindings []KeyBinding
}

// Default returns the standard netmon bindings.
func Default() *Keymap {
	return &Keymap{
		Bindings: []KeyBinding{
			{KeyType: tea.KeyRunes, Rune: 'q', Command: CmdQuit, Description: "quit", Short: true},
			{KeyType: tea.KeyCtrlC, Command: CmdQuit, Description: "quit"},
			{KeyType: tea.KeyRunes, Rune: 'r', Command: CmdRestart, Description: "restart monitoring", Short: true},
			{KeyType: tea.KeyRunes, Rune: 'c', Command: CmdClearHistory, Description: "clear history", Short: true},
			{KeyType: tea.KeyRunes, Rune: 'a', Command: CmdToggleActive, Description: "show all / active only", Short: true},
			{KeyType: tea.KeyRunes, Rune: 'o', Command: CmdToggleOrder, Description: "reverse order"},
			{KeyType: tea.KeyRunes, Rune: '?', Command: CmdToggleHelp, Description: "help", Short: true},
			{KeyType: tea.KeyRunes, Rune: '1', Command: CmdSortName, Description: "sort by process"},
			{KeyType: tea.KeyRunes, Rune: '2', Command: CmdSortPID, Description: "sort by pid"},
			{KeyType: tea.KeyRunes, Rune: '3', Command: CmdSortIn, Description: "sort by download", Short: true},
			{KeyType: tea.KeyRunes, Rune: '4', Command: CmdSortOut, Description: "sort by upload", Short: true},
			{KeyType: tea.KeyRunes, Rune: '5', Command: CmdSortConns, Description: "sort by connections"},
		},
	}
}

// Lookup returns the command bound to msg.
func (km *Keymap) Lookup(msg tea.KeyMsg) (Command, bool) {
	for _, b := range km.Bindings {
		if b.Matches(msg) {
			return b.Command, true
		}
	}
	return "", false
}

// KeysFor returns the key names bound to cmd.
func (km *Keymap) KeysFor(cmd Command) []string {
	var keys []string
	for _, b := range km.Bindings {
		if b.Command == cmd {
			keys = append(keys, b.String())
		}
	}
	return keys
}

// HelpEntries returns "key description" pairs, restricted to the short
// bindings unless full is set. Commands bound to several keys appear once.
func (km *Keymap) HelpEntries(full bool) [][2]string {
	seen := make(map[Command]bool)
	var out [][2]string
	for _, b := range km.Bindings {
		if seen[b.Command] || (!full && !b.Short) {
			continue
		}
		seen[b.Command] = true
		out = append(out, [2]string{strings.Join(km.KeysFor(b.Command), "/"), b.Description})
	}
	return out
}
