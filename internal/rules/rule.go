// Package rules loads a project's activation rules and ranks skills for
// an incoming request. Matching is a pure function of the rule set, the
// request and the throttle view; Session adds the per-project state.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
)

// Priority bounds and default.
const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

var skillIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Duration accepts "10m" style strings or integer seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("throttle_window must be a scalar, got %s", node.Tag)
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: use a value like 30s, 10m or 1h", s)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON writes the duration as a string such as "10m0s".
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// ActivationRule maps request signals onto a skill.
type ActivationRule struct {
	SkillID           string   `json:"skill_id" yaml:"skill_id"`
	Description       string   `json:"description,omitempty" yaml:"description,omitempty"`
	TriggerPhrases    []string `json:"trigger_phrases,omitempty" yaml:"trigger_phrases,omitempty"`
	FilePatterns      []string `json:"file_patterns,omitempty" yaml:"file_patterns,omitempty"`
	DirectoryPatterns []string `json:"directory_patterns,omitempty" yaml:"directory_patterns,omitempty"`
	ProjectTypes      []string `json:"project_types,omitempty" yaml:"project_types,omitempty"`
	Priority          int      `json:"priority,omitempty" yaml:"priority,omitempty"`
	ThrottleWindow    Duration `json:"throttle_window,omitempty" yaml:"throttle_window,omitempty"`
}

// UnmarshalYAML implements yaml.Unmarshaler. An absent priority becomes
// DefaultPriority; an explicit one, including 0, is kept for validation.
func (r *ActivationRule) UnmarshalYAML(node *yaml.Node) error {
	type plain ActivationRule
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = ActivationRule(p)
	if !hasKey(node, "priority") {
		r.Priority = DefaultPriority
	}
	return nil
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

// Window returns the throttle window as a time.Duration.
func (r ActivationRule) Window() time.Duration {
	return time.Duration(r.ThrottleWindow)
}

func (r ActivationRule) hasSignal() bool {
	return len(r.TriggerPhrases)+len(r.FilePatterns)+len(r.DirectoryPatterns)+len(r.ProjectTypes) > 0
}

// RuleSet is one project's ordered list of rules.
type RuleSet struct {
	Version string           `json:"version,omitempty" yaml:"version,omitempty"`
	Rules   []ActivationRule `json:"rules" yaml:"rules"`

	// Source is the file the set was read from.
	Source string `json:"-" yaml:"-"`
}

// SkillIDs returns the distinct skill ids in rule order.
func (rs *RuleSet) SkillIDs() []string {
	if rs == nil {
		return nil
	}
	seen := make(map[string]bool, len(rs.Rules))
	var ids []string
	for _, r := range rs.Rules {
		if !seen[r.SkillID] {
			seen[r.SkillID] = true
			ids = append(ids, r.SkillID)
		}
	}
	return ids
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rules)
}

// Locate returns the rule file under projectPath/.claude, preferring JSON.
func Locate(projectPath string) (string, error) {
	for _, name := range []string{defs.SkillRulesJSON, defs.SkillRulesYAML} {
		p := filepath.Join(projectPath, defs.ConfigDir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoRuleSet, filepath.Join(projectPath, defs.ConfigDir))
}

// Load reads and validates the project's rule set. Rules without a
// throttle window get defaultWindow.
func Load(projectPath string, defaultWindow time.Duration) (*RuleSet, error) {
	p, err := Locate(projectPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}
	rs, err := Parse(data, defaultWindow)
	if err != nil {
		var se *SchemaErrors
		if errors.As(err, &se) {
			se.Source = p
		}
		return nil, err
	}
	rs.Source = p
	return rs, nil
}

// Parse decodes a JSON or YAML rule set, applies defaults and validates it.
// JSON documents are read as YAML flow mappings, so both formats share one
// decoder.
func Parse(data []byte, defaultWindow time.Duration) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRuleSet, err)
	}
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if r.ThrottleWindow == 0 {
			r.ThrottleWindow = Duration(defaultWindow)
		}
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks every rule and returns *SchemaErrors listing all problems.
func (rs *RuleSet) Validate() error {
	var errs []SchemaError
	add := func(i int, id, field, msg, hint string) {
		errs = append(errs, SchemaError{Index: i, SkillID: id, Field: field, Message: msg, Suggestion: hint})
	}

	for i, r := range rs.Rules {
		if !skillIDPattern.MatchString(r.SkillID) {
			add(i, r.SkillID, "skill_id", fmt.Sprintf("%q is not a valid skill id", r.SkillID),
				"use lowercase letters, digits, '-' or '_', e.g. \"api-design\"")
		}
		if r.Priority < MinPriority || r.Priority > MaxPriority {
			add(i, r.SkillID, "priority", fmt.Sprintf("%d is out of range", r.Priority),
				fmt.Sprintf("use a value between %d and %d", MinPriority, MaxPriority))
		}
		if !r.hasSignal() {
			add(i, r.SkillID, "trigger_phrases", "rule has no activation signal",
				"add at least one trigger phrase, file pattern, directory pattern or project type")
		}
		for _, p := range r.TriggerPhrases {
			if strings.TrimSpace(p) == "" {
				add(i, r.SkillID, "trigger_phrases", "empty phrase", "remove the empty entry")
			}
		}
		for _, g := range append(append([]string{}, r.FilePatterns...), r.DirectoryPatterns...) {
			if strings.TrimSpace(g) == "" || !validGlob(g) {
				add(i, r.SkillID, "file_patterns", fmt.Sprintf("malformed glob %q", g),
					"check brackets and escapes, e.g. \"src/**/*.ts\"")
			}
		}
		if r.ThrottleWindow < 0 {
			add(i, r.SkillID, "throttle_window", "must not be negative", "use a value like 10m")
		}
	}

	if len(errs) > 0 {
		return &SchemaErrors{Source: rs.Source, Errors: errs}
	}
	return nil
}
