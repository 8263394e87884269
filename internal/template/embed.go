package template

import (
	"embed"
	"io/fs"
)

//go:embed all:templates
var embedded embed.FS

// EmbeddedTemplates returns the component templates rooted at the project
// directory, e.g. ".claude/CLAUDE.md.tmpl".
func EmbeddedTemplates() (fs.FS, error) {
	return fs.Sub(embedded, "templates")
}
