package ui

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// DefaultWrap is the markdown word-wrap width.
const DefaultWrap = 80

// RenderMarkdown renders doc for the terminal. With color disabled it uses
// the plain "notty" style.
func (t *Theme) RenderMarkdown(doc string, width int) (string, error) {
	if width <= 0 {
		width = DefaultWrap
	}
	style := glamour.WithAutoStyle()
	if t.NoColor {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", fmt.Errorf("markdown renderer: %w", err)
	}
	out, err := r.Render(doc)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
