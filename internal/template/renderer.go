package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
)

var funcs = template.FuncMap{
	// jsonEscape quotes s for use inside a JSON string literal.
	"jsonEscape": func(s string) string {
		b, err := json.Marshal(s)
		if err != nil {
			return s
		}
		return string(b[1 : len(b)-1])
	},
}

// leftoverToken finds placeholders a template failed to expand: ${VAR},
// {{VAR}} and $VAR.
var leftoverToken = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}|\{\{\.?[A-Za-z_][A-Za-z0-9_.]*\}\}|\$[A-Z_][A-Z0-9_]*`)

// claudeVars are expanded by Claude Code at hook time, so they are allowed
// in rendered output.
var claudeVars = strings.NewReplacer("$CLAUDE_PROJECT_DIR", "", "$ARGUMENTS", "")

// Renderer renders the component templates.
type Renderer interface {
	// Render executes the named template with data. It returns
	// ErrMissingTemplateKey for undefined keys and ErrUnexpandedToken when
	// a placeholder is left in the output.
	Render(name string, data any) ([]byte, error)
}

// renderer parses each template once and keeps it for later renders.
type renderer struct {
	fsys   fs.FS
	mu     sync.Mutex
	parsed map[string]*template.Template
}

// NewRenderer creates a Renderer reading templates from fsys.
func NewRenderer(fsys fs.FS) Renderer {
	return &renderer{fsys: fsys, parsed: make(map[string]*template.Template)}
}

func (r *renderer) Render(name string, data any) ([]byte, error) {
	tmpl, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingTemplateKey, err)
	}
	if tok := leftoverToken.FindString(claudeVars.Replace(buf.String())); tok != "" {
		return nil, fmt.Errorf("%w: %q in %s", ErrUnexpandedToken, tok, name)
	}
	return buf.Bytes(), nil
}

func (r *renderer) lookup(name string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.parsed[name]; ok {
		return t, nil
	}
	src, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	r.parsed[name] = t
	return t, nil
}
