package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxWidth int
		expected string
	}{
		{name: "short string unchanged", input: "chrome", maxWidth: 10, expected: "chrome"},
		{name: "exact width unchanged", input: "chrome", maxWidth: 6, expected: "chrome"},
		{name: "long string truncated", input: "Google Chrome Helper", maxWidth: 10, expected: "Google ..."},
		{name: "maxWidth of 3 returns ellipsis", input: "chrome", maxWidth: 3, expected: "..."},
		{name: "zero maxWidth returns ellipsis", input: "chrome", maxWidth: 0, expected: "..."},
		{name: "negative maxWidth returns ellipsis", input: "chrome", maxWidth: -1, expected: "..."},
		{name: "empty string", input: "", maxWidth: 5, expected: ""},
		{name: "wide characters unchanged when they fit", input: "微信", maxWidth: 4, expected: "微信"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateWidth(tt.input, tt.maxWidth); got != tt.expected {
				t.Errorf("TruncateWidth(%q, %d) = %q, want %q", tt.input, tt.maxWidth, got, tt.expected)
			}
		})
	}
}

func TestTruncateWidth_WideCharacters(t *testing.T) {
	got := TruncateWidth("微信微信微信", 7)
	if w := runewidth.StringWidth(got); w > 7 {
		t.Errorf("width = %d, want <= 7 (%q)", w, got)
	}
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{name: "pads short", input: "curl", width: 6, want: "curl  "},
		{name: "exact", input: "curl", width: 4, want: "curl"},
		{name: "truncates long", input: "mDNSResponder", width: 8, want: "mDNSR..."},
		{name: "zero width", input: "curl", width: 0, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PadRight(tt.input, tt.width); got != tt.want {
				t.Errorf("PadRight(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.want)
			}
		})
	}
}

func TestTruncateANSI(t *testing.T) {
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	tests := []struct {
		name     string
		input    string
		maxWidth int
		check    func(t *testing.T, result string)
	}{
		{
			name:     "plain string unchanged",
			input:    "chrome",
			maxWidth: 10,
			check: func(t *testing.T, result string) {
				if result != "chrome" {
					t.Errorf("expected %q, got %q", "chrome", result)
				}
			},
		},
		{
			name:     "plain string truncated",
			input:    "Google Chrome Helper",
			maxWidth: 10,
			check: func(t *testing.T, result string) {
				if result != "Google ..." {
					t.Errorf("expected %q, got %q", "Google ...", result)
				}
			},
		},
		{
			name:     "styled string unchanged when it fits",
			input:    red.Render("chrome"),
			maxWidth: 10,
			check: func(t *testing.T, result string) {
				if result != red.Render("chrome") {
					t.Errorf("styled string modified: %q", result)
				}
			},
		},
		{
			name:     "styled string truncated by visible width",
			input:    red.Render("Google Chrome Helper"),
			maxWidth: 10,
			check: func(t *testing.T, result string) {
				if w := lipgloss.Width(result); w > 10 {
					t.Errorf("width %d exceeds 10", w)
				}
			},
		},
		{
			name:     "tiny width returns ellipsis",
			input:    "chrome",
			maxWidth: 2,
			check: func(t *testing.T, result string) {
				if result != "..." {
					t.Errorf("expected ellipsis, got %q", result)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, TruncateANSI(tt.input, tt.maxWidth))
		})
	}
}
