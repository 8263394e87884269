package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

func (t *Theme) cardStyle() lipgloss.Style {
	s := lipgloss.NewStyle().Padding(0, 2)
	if t.NoColor {
		return s.Border(lipgloss.NormalBorder())
	}
	return s.Border(lipgloss.RoundedBorder()).BorderForeground(t.Border())
}

// Card renders lines inside a bordered box under a bold title.
func (t *Theme) Card(title string, lines ...string) string {
	body := t.Primary().Bold(true).Render(title)
	if len(lines) > 0 {
		body += "\n\n" + strings.Join(lines, "\n")
	}
	return t.cardStyle().Render(body)
}

// SuccessCard renders a card whose title carries the success symbol.
func (t *Theme) SuccessCard(title string, lines ...string) string {
	return t.Card(t.SymSuccess()+" "+title, lines...)
}

// ErrorCard renders a card whose title carries the error symbol.
func (t *Theme) ErrorCard(title string, lines ...string) string {
	return t.Card(t.SymError()+" "+title, lines...)
}

// Table renders rows under headers. styleRow, when set, picks a style per
// data row (row index starts at 0).
func (t *Theme) Table(headers []string, rows [][]string, styleRow func(row int) lipgloss.Style) string {
	tbl := table.New().
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Inherit(t.Primary().Bold(true))
			}
			if styleRow != nil {
				return base.Inherit(styleRow(row))
			}
			return base
		})
	if t.NoColor {
		tbl = tbl.Border(lipgloss.NormalBorder())
	} else {
		tbl = tbl.Border(lipgloss.RoundedBorder()).BorderStyle(lipgloss.NewStyle().Foreground(t.Border()))
	}
	return tbl.Render()
}

// KeyValues aligns key: value pairs, keeping the order given.
func (t *Theme) KeyValues(pairs ...[2]string) []string {
	width := 0
	for _, p := range pairs {
		width = max(width, lipgloss.Width(p[0]))
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		pad := strings.Repeat(" ", width-lipgloss.Width(p[0]))
		out[i] = t.Muted().Render(p[0]+":") + pad + " " + p[1]
	}
	return out
}
