package template

import (
	"runtime"
	"time"
)

// DefaultStructureVersion is stamped into freshly rendered metadata.
const DefaultStructureVersion = "1.0.0"

// TemplateContext provides data for rendering project components.
// All fields are exported for use with Go's text/template package.
type TemplateContext struct {
	// Project
	ProjectName string
	ProjectRoot string
	ProjectType string
	Description string

	// Meta
	StructureVersion string
	CreatedAt        string // RFC 3339, UTC
	Platform         string

	// HookCommand is the executable invoked by the prompt hook script.
	HookCommand string
}

// ContextOption configures a TemplateContext.
type ContextOption func(*TemplateContext)

// NewTemplateContext creates a TemplateContext with defaults, then applies
// any provided options.
func NewTemplateContext(opts ...ContextOption) *TemplateContext {
	ctx := &TemplateContext{
		ProjectType:      "generic",
		StructureVersion: DefaultStructureVersion,
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
		Platform:         runtime.GOOS,
		HookCommand:      "orchestrator",
	}

	for _, opt := range opts {
		opt(ctx)
	}

	if ctx.Description == "" && ctx.ProjectName != "" {
		ctx.Description = "Claude configuration for " + ctx.ProjectName + "."
	}
	return ctx
}

// WithProject sets project-related fields.
func WithProject(name, root string) ContextOption {
	return func(c *TemplateContext) {
		c.ProjectName = name
		c.ProjectRoot = root
	}
}

// WithProjectType sets the project type recorded in metadata.
func WithProjectType(kind string) ContextOption {
	return func(c *TemplateContext) {
		if kind != "" {
			c.ProjectType = kind
		}
	}
}

// WithDescription sets the one-line project description.
func WithDescription(desc string) ContextOption {
	return func(c *TemplateContext) {
		c.Description = desc
	}
}

// WithCreatedAt sets the creation timestamp.
func WithCreatedAt(t time.Time) ContextOption {
	return func(c *TemplateContext) {
		c.CreatedAt = t.UTC().Format(time.RFC3339)
	}
}

// WithStructureVersion overrides the structure version.
func WithStructureVersion(v string) ContextOption {
	return func(c *TemplateContext) {
		if v != "" {
			c.StructureVersion = v
		}
	}
}

// WithHookCommand sets the binary the prompt hook script runs.
func WithHookCommand(bin string) ContextOption {
	return func(c *TemplateContext) {
		if bin != "" {
			c.HookCommand = bin
		}
	}
}
