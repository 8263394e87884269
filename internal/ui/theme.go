package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// ThemeColors holds the hex palette used for dark terminals. Light
// terminals get the paired values from adaptive.
type ThemeColors struct {
	Primary   string
	Secondary string
	Success   string
	Warning   string
	Error     string
	Muted     string
	Border    string
	Text      string
}

// Theme carries the palette and whether styling is disabled.
type Theme struct {
	NoColor bool
	Colors  ThemeColors
}

var lightPalette = ThemeColors{
	Primary:   "#C45A3C",
	Secondary: "#5B21B6",
	Success:   "#059669",
	Warning:   "#D97706",
	Error:     "#DC2626",
	Muted:     "#9CA3AF",
	Border:    "#D1D5DB",
	Text:      "#111827",
}

// NewTheme returns the default palette. Color is disabled when noColor is
// set or NO_COLOR is present in the environment.
func NewTheme(noColor bool) *Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		noColor = true
	}
	return &Theme{
		NoColor: noColor,
		Colors: ThemeColors{
			Primary:   "#DA7756",
			Secondary: "#7C3AED",
			Success:   "#10B981",
			Warning:   "#F59E0B",
			Error:     "#EF4444",
			Muted:     "#6B7280",
			Border:    "#4B5563",
			Text:      "#F9FAFB",
		},
	}
}

func (t *Theme) adaptive(dark, light string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func (t *Theme) fg(dark, light string) lipgloss.Style {
	if t.NoColor {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(t.adaptive(dark, light))
}

// Primary styles headings and the active marker.
func (t *Theme) Primary() lipgloss.Style { return t.fg(t.Colors.Primary, lightPalette.Primary) }

// Success styles passing results.
func (t *Theme) Success() lipgloss.Style { return t.fg(t.Colors.Success, lightPalette.Success) }

// Warning styles stale entries and consistency warnings.
func (t *Theme) Warning() lipgloss.Style { return t.fg(t.Colors.Warning, lightPalette.Warning) }

// Error styles refusals and critical gaps.
func (t *Theme) Error() lipgloss.Style { return t.fg(t.Colors.Error, lightPalette.Error) }

// Muted styles secondary detail.
func (t *Theme) Muted() lipgloss.Style { return t.fg(t.Colors.Muted, lightPalette.Muted) }

// Border returns the border color, or no color when disabled.
func (t *Theme) Border() lipgloss.TerminalColor {
	if t.NoColor {
		return lipgloss.NoColor{}
	}
	return t.adaptive(t.Colors.Border, lightPalette.Border)
}

// Symbols used in status lines.
func (t *Theme) SymSuccess() string { return t.Success().Render("✓") }
func (t *Theme) SymError() string   { return t.Error().Render("✗") }
func (t *Theme) SymWarning() string { return t.Warning().Render("!") }
func (t *Theme) SymActive() string  { return t.Primary().Render("●") }
