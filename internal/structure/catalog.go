// Package structure inspects a project's .claude tree against the
// versioned component catalog and scores how complete it is.
package structure

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/rules"
)

// Version is the structure specification the catalog implements.
const Version = "1.0.0"

// Tier weights a component in the completeness score.
type Tier int

const (
	Critical Tier = iota
	Important
)

// Tier weights.
const (
	CriticalWeight  = 0.7
	ImportantWeight = 0.3
)

func (t Tier) String() string {
	switch t {
	case Critical:
		return "CRITICAL"
	case Important:
		return "IMPORTANT"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CRITICAL":
		*t = Critical
	case "IMPORTANT":
		*t = Important
	default:
		return fmt.Errorf("structure: unknown tier %q", text)
	}
	return nil
}

// Component is one expected entry of the project tree.
type Component struct {
	ID   string `json:"id"`
	Tier Tier   `json:"tier"`
	// Path is slash separated and relative to the project root.
	Path       string `json:"path"`
	Dir        bool   `json:"dir,omitempty"`
	Executable bool   `json:"executable,omitempty"`
	// Template names the file that repair renders for this component. For
	// directories it is a placeholder written inside the directory.
	Template string `json:"template,omitempty"`

	check checkFunc
}

// checkFunc returns nil when the component at abs is present and well formed.
type checkFunc func(c *checker, abs string) error

// checker carries per-validation settings into component checks.
type checker struct {
	root          string
	defaultWindow time.Duration
}

func claudePath(parts ...string) string {
	return path.Join(append([]string{defs.ConfigDir}, parts...)...)
}

func tmplName(p string) string {
	return p + ".tmpl"
}

// catalog is the fixed, ordered component list. Order within a tier is the
// gap order.
var catalog = []Component{
	{
		ID: "config_root", Tier: Critical, Path: defs.ConfigDir, Dir: true,
		check: isDir,
	},
	{
		ID: "context_file", Tier: Critical, Path: claudePath(defs.ClaudeMD),
		Template: tmplName(claudePath(defs.ClaudeMD)),
		check:    minSize(32),
	},
	{
		ID: "metadata", Tier: Critical, Path: claudePath(defs.MetadataJSON),
		Template: tmplName(claudePath(defs.MetadataJSON)),
		check:    jsonObject,
	},
	{
		ID: "skill_rules", Tier: Critical, Path: claudePath(defs.SkillRulesJSON),
		Template: tmplName(claudePath(defs.SkillRulesJSON)),
		check:    ruleSet,
	},
	{
		ID: "settings", Tier: Important, Path: claudePath(defs.SettingsJSON),
		Template: tmplName(claudePath(defs.SettingsJSON)),
		check:    jsonObject,
	},
	{
		ID: "prompt_hook", Tier: Important, Path: claudePath(defs.HooksDir, defs.PromptHookSh),
		Executable: true,
		Template:   tmplName(claudePath(defs.HooksDir, defs.PromptHookSh)),
		check:      minSize(10),
	},
	{
		ID: "skills_dir", Tier: Important, Path: claudePath(defs.SkillsDir), Dir: true,
		Template: tmplName(claudePath(defs.SkillsDir, "README.md")),
		check:    isDir,
	},
	{
		ID: "commands_dir", Tier: Important, Path: claudePath(defs.CommandsDir), Dir: true,
		Template: tmplName(claudePath(defs.CommandsDir, "README.md")),
		check:    isDir,
	},
	{
		ID: "agents_dir", Tier: Important, Path: claudePath(defs.AgentsDir), Dir: true,
		Template: tmplName(claudePath(defs.AgentsDir, "README.md")),
		check:    isDir,
	},
}

// Catalog returns a copy of the component list in gap order.
func Catalog() []Component {
	out := make([]Component, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry with the given id.
func Lookup(id string) (Component, bool) {
	for _, c := range catalog {
		if c.ID == id {
			return c, true
		}
	}
	return Component{}, false
}

func isDir(_ *checker, abs string) error {
	info, err := os.Stat(abs)
	if err != nil {
		return errMissing(err)
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}
	return nil
}

func minSize(n int64) checkFunc {
	return func(_ *checker, abs string) error {
		info, err := os.Stat(abs)
		if err != nil {
			return errMissing(err)
		}
		if !info.Mode().IsRegular() {
			return errors.New("not a regular file")
		}
		if info.Size() < n {
			return fmt.Errorf("too small (%d < %d bytes)", info.Size(), n)
		}
		return nil
	}
}

func jsonObject(_ *checker, abs string) error {
	data, err := os.ReadFile(abs)
	if err != nil {
		return errMissing(err)
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("not a JSON object: %v", err)
	}
	if obj == nil {
		return errors.New("not a JSON object")
	}
	return nil
}

func ruleSet(c *checker, _ string) error {
	_, err := rules.Load(c.root, c.defaultWindow)
	if errors.Is(err, rules.ErrNoRuleSet) {
		return errAbsent
	}
	return err
}

var errAbsent = errors.New("missing")

func errMissing(err error) error {
	if os.IsNotExist(err) {
		return errAbsent
	}
	return err
}

func (c Component) abs(root string) string {
	return filepath.Join(root, filepath.FromSlash(c.Path))
}
