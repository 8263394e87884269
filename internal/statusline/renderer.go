package statusline

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Fallback is printed when nothing else can be shown.
const Fallback = "orchestrator"

// Renderer formats StatusData into a single line.
type Renderer struct {
	separator string
	threshold int

	muted   lipgloss.Style
	good    lipgloss.Style
	warning lipgloss.Style
}

// NewRenderer creates a Renderer. Scores below threshold are highlighted.
func NewRenderer(threshold int, noColor bool) *Renderer {
	r := &Renderer{separator: " | ", threshold: threshold}
	if noColor {
		r.muted, r.good, r.warning = lipgloss.NewStyle(), lipgloss.NewStyle(), lipgloss.NewStyle()
		return r
	}
	r.muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	r.good = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	r.warning = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	return r
}

// Render formats data for mode. The result never contains a newline.
func (r *Renderer) Render(data *StatusData, mode Mode) string {
	if data == nil {
		return Fallback
	}

	var sections []string
	switch mode {
	case ModeMinimal:
		sections = []string{r.project(data), r.mismatch(data)}
	case ModeVerbose:
		sections = append(r.compact(data), r.state(data))
	default:
		sections = r.compact(data)
	}

	filtered := sections[:0]
	for _, s := range sections {
		if s != "" {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return Fallback
	}
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(strings.Join(filtered, r.separator))
}

// compact is model | project score | mismatch | directory.
func (r *Renderer) compact(data *StatusData) []string {
	var sections []string
	if data.Model != "" {
		sections = append(sections, data.Model)
	}
	project := r.project(data)
	if score := r.score(data); score != "" {
		project += " " + score
	}
	sections = append(sections, project, r.mismatch(data))
	if data.Directory != "" {
		sections = append(sections, r.muted.Render(data.Directory))
	}
	return sections
}

func (r *Renderer) project(data *StatusData) string {
	if data.Project == "" {
		return r.muted.Render("◇ no project")
	}
	return "◆ " + data.Project
}

func (r *Renderer) score(data *StatusData) string {
	if data.Project == "" || data.Score == nil {
		return ""
	}
	s := fmt.Sprintf("%d%%", *data.Score)
	if *data.Score < r.threshold {
		return r.warning.Render(s)
	}
	return r.good.Render(s)
}

func (r *Renderer) mismatch(data *StatusData) string {
	if data.Owner == "" {
		return ""
	}
	return r.warning.Render("⚠ in " + data.Owner)
}

// state is shown only for projects that can no longer be switched to.
func (r *Renderer) state(data *StatusData) string {
	if data.Project == "" || data.State == "" || !data.State.Stale() {
		return ""
	}
	return r.warning.Render(string(data.State))
}
