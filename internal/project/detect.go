// Package project inspects a project directory before it is registered: it
// classifies the project type from its manifests and layout, and finds the
// nearest directory that carries a .claude structure.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
)

// ErrInvalidRoot indicates the given project root is missing or not a
// directory.
var ErrInvalidRoot = errors.New("invalid project root path")

// Type classifies a project. It is recorded as project_type and matched by
// project_type triggers in skill rules.
type Type string

const (
	TypeWebApp  Type = "web-app"
	TypeAPI     Type = "api"
	TypeCLI     Type = "cli"
	TypeLibrary Type = "library"
)

// Framework is a framework found in one of the project's manifests.
type Framework struct {
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	Manifest string `json:"manifest"`
	Kind     Type   `json:"kind"`
}

// Detection is the result of inspecting a project directory.
type Detection struct {
	Type       Type        `json:"type"`
	Frameworks []Framework `json:"frameworks,omitempty"`
}

// FrameworkNames returns the detected framework names in manifest order.
func (d *Detection) FrameworkNames() []string {
	names := make([]string, len(d.Frameworks))
	for i, f := range d.Frameworks {
		names[i] = f.Name
	}
	return names
}

// frameworkMapping ties a dependency name to the framework it indicates.
type frameworkMapping struct {
	Dependency string
	Framework  string
	Kind       Type
}

var jsFrameworks = []frameworkMapping{
	{"next", "Next.js", TypeWebApp},
	{"react", "React", TypeWebApp},
	{"vue", "Vue", TypeWebApp},
	{"@angular/core", "Angular", TypeWebApp},
	{"svelte", "Svelte", TypeWebApp},
	{"express", "Express", TypeAPI},
	{"@nestjs/core", "NestJS", TypeAPI},
	{"commander", "Commander", TypeCLI},
}

var goFrameworks = []frameworkMapping{
	{"github.com/gin-gonic/gin", "Gin", TypeAPI},
	{"github.com/labstack/echo", "Echo", TypeAPI},
	{"github.com/gofiber/fiber", "Fiber", TypeAPI},
	{"github.com/go-chi/chi", "Chi", TypeAPI},
	{"github.com/spf13/cobra", "Cobra", TypeCLI},
}

var pythonFrameworks = []frameworkMapping{
	{"fastapi", "FastAPI", TypeAPI},
	{"django", "Django", TypeWebApp},
	{"flask", "Flask", TypeAPI},
	{"typer", "Typer", TypeCLI},
	{"click", "Click", TypeCLI},
}

var rustFrameworks = []frameworkMapping{
	{"actix-web", "Actix", TypeAPI},
	{"axum", "Axum", TypeAPI},
	{"rocket", "Rocket", TypeAPI},
	{"clap", "Clap", TypeCLI},
}

// Detector classifies project directories.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a Detector. A nil logger discards output.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Detector{logger: logger}
}

// Detect inspects root. The type comes from the first framework found;
// without one it falls back to the directory layout.
func (d *Detector) Detect(root string) (*Detection, error) {
	root = filepath.Clean(root)
	if err := validateRoot(root); err != nil {
		return nil, err
	}

	det := &Detection{Frameworks: d.DetectFrameworks(root)}
	if len(det.Frameworks) > 0 {
		det.Type = det.Frameworks[0].Kind
	} else {
		det.Type = layoutType(root)
	}
	d.logger.Debug("project detected", "root", root, "type", det.Type, "frameworks", len(det.Frameworks))
	return det, nil
}

// DetectFrameworks reads package.json, go.mod, pyproject.toml (or
// requirements.txt) and Cargo.toml under root. Unreadable or malformed
// manifests are skipped.
func (d *Detector) DetectFrameworks(root string) []Framework {
	var out []Framework
	out = append(out, d.packageJSONFrameworks(root)...)
	out = append(out, d.goModFrameworks(root)...)
	out = append(out, d.pythonFrameworks(root)...)
	out = append(out, d.cargoFrameworks(root)...)
	return out
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func (d *Detector) packageJSONFrameworks(root string) []Framework {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return nil
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		d.logger.Debug("failed to parse package.json", "error", err)
		return nil
	}
	deps := make(map[string]string, len(pkg.Dependencies)+len(pkg.DevDependencies))
	maps.Copy(deps, pkg.DevDependencies)
	maps.Copy(deps, pkg.Dependencies)
	return match(jsFrameworks, "package.json", func(dep string) (string, bool) {
		v, ok := deps[dep]
		return v, ok
	})
}

func (d *Detector) goModFrameworks(root string) []Framework {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return nil
	}
	f, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil {
		d.logger.Debug("failed to parse go.mod", "error", err)
		return nil
	}
	return match(goFrameworks, "go.mod", func(dep string) (string, bool) {
		for _, r := range f.Require {
			// Major version suffixes: github.com/labstack/echo/v4.
			if r.Mod.Path == dep || strings.HasPrefix(r.Mod.Path, dep+"/") {
				return r.Mod.Version, true
			}
		}
		return "", false
	})
}

type pyproject struct {
	Project struct {
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func (d *Detector) pythonFrameworks(root string) []Framework {
	deps := map[string]string{}
	manifest := "pyproject.toml"
	if data, err := os.ReadFile(filepath.Join(root, manifest)); err == nil {
		var py pyproject
		if err := toml.Unmarshal(data, &py); err != nil {
			d.logger.Debug("failed to parse pyproject.toml", "error", err)
		}
		for _, spec := range py.Project.Dependencies {
			name, version := splitRequirement(spec)
			deps[name] = version
		}
		for name, v := range py.Tool.Poetry.Dependencies {
			deps[strings.ToLower(name)] = tomlVersion(v)
		}
	}
	if len(deps) == 0 {
		manifest = "requirements.txt"
		data, err := os.ReadFile(filepath.Join(root, manifest))
		if err != nil {
			return nil
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
				continue
			}
			name, version := splitRequirement(line)
			deps[name] = version
		}
	}
	return match(pythonFrameworks, manifest, func(dep string) (string, bool) {
		v, ok := deps[dep]
		return v, ok
	})
}

type cargoManifest struct {
	Dependencies map[string]any `toml:"dependencies"`
}

func (d *Detector) cargoFrameworks(root string) []Framework {
	data, err := os.ReadFile(filepath.Join(root, "Cargo.toml"))
	if err != nil {
		return nil
	}
	var cargo cargoManifest
	if err := toml.Unmarshal(data, &cargo); err != nil {
		d.logger.Debug("failed to parse Cargo.toml", "error", err)
		return nil
	}
	return match(rustFrameworks, "Cargo.toml", func(dep string) (string, bool) {
		v, ok := cargo.Dependencies[dep]
		if !ok {
			return "", false
		}
		return tomlVersion(v), true
	})
}

// match applies mappings in order using lookup to find each dependency.
func match(mappings []frameworkMapping, manifest string, lookup func(string) (string, bool)) []Framework {
	var out []Framework
	for _, m := range mappings {
		if version, ok := lookup(m.Dependency); ok {
			out = append(out, Framework{Name: m.Framework, Version: version, Manifest: manifest, Kind: m.Kind})
		}
	}
	return out
}

// splitRequirement splits a PEP 508 requirement such as "fastapi>=0.110"
// into its lowercased name and version constraint.
func splitRequirement(spec string) (string, string) {
	spec = strings.TrimSpace(spec)
	i := strings.IndexAny(spec, "<>=!~[; ")
	if i < 0 {
		return strings.ToLower(spec), ""
	}
	name := strings.ToLower(spec[:i])
	rest := spec[i:]
	if j := strings.Index(rest, ";"); j >= 0 {
		rest = rest[:j]
	}
	if strings.HasPrefix(rest, "[") {
		if k := strings.Index(rest, "]"); k >= 0 {
			rest = rest[k+1:]
		}
	}
	return name, strings.TrimSpace(rest)
}

// tomlVersion reads a dependency version written either as a string or as a
// table with a version key.
func tomlVersion(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["version"].(string); ok {
			return s
		}
	}
	return ""
}

// layoutType classifies root by its directory layout.
func layoutType(root string) Type {
	switch {
	case dirExists(filepath.Join(root, "cmd")) || fileExists(filepath.Join(root, "main.go")):
		return TypeCLI
	case dirExists(filepath.Join(root, "public")) || dirExists(filepath.Join(root, "src", "pages")):
		return TypeWebApp
	case dirExists(filepath.Join(root, "api")) || dirExists(filepath.Join(root, "routes")):
		return TypeAPI
	default:
		return TypeLibrary
	}
}

// @MX:NOTE: [AUTO] the home directory is skipped because ~/.claude holds
// Claude Code's user settings, not a project structure
// FindRoot walks up from dir to the nearest directory containing a .claude
// directory. It returns ErrInvalidRoot when there is none.
func FindRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", dir, err)
	}
	home, _ := os.UserHomeDir()
	for cur := abs; ; {
		if cur != home && dirExists(filepath.Join(cur, defs.ConfigDir)) {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("%w: no %s directory in %s or any parent", ErrInvalidRoot, defs.ConfigDir, abs)
		}
		cur = parent
	}
}

func validateRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRoot, root)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
