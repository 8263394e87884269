package structure

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/rules"
)

// Severity grades a consistency issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ConsistencyIssue is a structural problem that does not affect the score.
type ConsistencyIssue struct {
	Component  string   `json:"component"`
	Severity   Severity `json:"severity"`
	Path       string   `json:"path,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

func (i ConsistencyIssue) String() string {
	s := fmt.Sprintf("[%s] %s: %s", i.Severity, i.Component, i.Message)
	if i.Suggestion != "" {
		s += " (" + i.Suggestion + ")"
	}
	return s
}

// Metadata is the identity document at .claude/metadata.json.
type Metadata struct {
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	ProjectType      string `json:"project_type,omitempty"`
	StructureVersion string `json:"structure_version"`
	CreatedAt        string `json:"created_at"`
}

// ReadMetadata decodes the metadata document of the project at root.
func ReadMetadata(root string) (*Metadata, error) {
	p := filepath.Join(root, defs.ConfigDir, defs.MetadataJSON)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", p, err)
	}
	return &md, nil
}

// hookRefPattern finds hook scripts referenced from settings commands.
var hookRefPattern = regexp.MustCompile(`\.claude/hooks/([A-Za-z0-9._/-]+)`)

// CheckConsistency runs the deeper structural checks on root. Issues never
// affect the score. A missing or unreadable root yields no issues.
func (v *Validator) CheckConsistency(root string) []ConsistencyIssue {
	root, err := checkRoot(root)
	if err != nil {
		return nil
	}
	return v.checkConsistency(root)
}

func (v *Validator) checkConsistency(root string) []ConsistencyIssue {
	var issues []ConsistencyIssue
	issues = append(issues, checkMetadata(root)...)
	issues = append(issues, checkHookModes(root)...)
	issues = append(issues, checkSettingsHooks(root)...)
	issues = append(issues, v.checkSkillRefs(root)...)
	return issues
}

func checkMetadata(root string) []ConsistencyIssue {
	md, err := ReadMetadata(root)
	if err != nil {
		// Absent or malformed metadata is already a gap.
		return nil
	}

	p := filepath.Join(defs.ConfigDir, defs.MetadataJSON)
	issue := func(sev Severity, msg, hint string) ConsistencyIssue {
		return ConsistencyIssue{Component: "metadata", Severity: sev, Path: p, Message: msg, Suggestion: hint}
	}

	var issues []ConsistencyIssue
	if md.Name == "" {
		issues = append(issues, issue(SeverityError, "name is empty", "set \"name\" to the registered project name"))
	} else if err := registry.ValidateName(md.Name); err != nil {
		issues = append(issues, issue(SeverityWarning, fmt.Sprintf("name %q is not a valid slug", md.Name),
			fmt.Sprintf("use %q", registry.Slugify(md.Name))))
	}

	sv := "v" + md.StructureVersion
	switch {
	case md.StructureVersion == "":
		issues = append(issues, issue(SeverityError, "structure_version is empty",
			fmt.Sprintf("set \"structure_version\" to %q", Version)))
	case !semver.IsValid(sv):
		issues = append(issues, issue(SeverityError, fmt.Sprintf("structure_version %q is not semver", md.StructureVersion),
			fmt.Sprintf("use %q", Version)))
	case semver.Compare(semver.Major(sv), semver.Major("v"+Version)) > 0:
		issues = append(issues, issue(SeverityError, fmt.Sprintf("structure_version %s is newer than supported %s", md.StructureVersion, Version),
			"upgrade the orchestrator"))
	case semver.Compare(sv, "v"+Version) < 0:
		issues = append(issues, issue(SeverityWarning, fmt.Sprintf("structure_version %s is outdated (current %s)", md.StructureVersion, Version),
			"run orchestrator validate --fix and update structure_version"))
	}

	if md.CreatedAt == "" {
		issues = append(issues, issue(SeverityWarning, "created_at is empty", "set an RFC 3339 timestamp"))
	} else if _, err := time.Parse(time.RFC3339, md.CreatedAt); err != nil {
		issues = append(issues, issue(SeverityWarning, fmt.Sprintf("created_at %q is not RFC 3339", md.CreatedAt),
			"use a timestamp such as 2026-01-02T15:04:05Z"))
	}
	return issues
}

func checkHookModes(root string) []ConsistencyIssue {
	dir := filepath.Join(root, defs.ConfigDir, defs.HooksDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var issues []ConsistencyIssue
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sh") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o111 == 0 {
			rel := filepath.Join(defs.ConfigDir, defs.HooksDir, e.Name())
			issues = append(issues, ConsistencyIssue{
				Component:  "hooks",
				Severity:   SeverityError,
				Path:       rel,
				Message:    fmt.Sprintf("%s is not executable", e.Name()),
				Suggestion: "chmod +x " + rel,
			})
		}
	}
	return issues
}

// claudeSettings is the subset of settings.json that wires hooks:
// hooks -> event -> [{matcher, hooks: [{type, command}]}].
type claudeSettings struct {
	Hooks map[string][]struct {
		Hooks []struct {
			Type    string `json:"type"`
			Command string `json:"command"`
		} `json:"hooks"`
	} `json:"hooks"`
}

func checkSettingsHooks(root string) []ConsistencyIssue {
	data, err := os.ReadFile(filepath.Join(root, defs.ConfigDir, defs.SettingsJSON))
	if err != nil {
		return nil
	}
	var s claudeSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}

	events := make([]string, 0, len(s.Hooks))
	for ev := range s.Hooks {
		events = append(events, ev)
	}
	slices.Sort(events)

	var issues []ConsistencyIssue
	seen := make(map[string]bool)
	for _, ev := range events {
		for _, group := range s.Hooks[ev] {
			for _, h := range group.Hooks {
				for _, m := range hookRefPattern.FindAllStringSubmatch(h.Command, -1) {
					script := m[1]
					if seen[script] {
						continue
					}
					seen[script] = true
					p := filepath.Join(root, defs.ConfigDir, defs.HooksDir, filepath.FromSlash(script))
					if _, err := os.Stat(p); err == nil {
						continue
					}
					issues = append(issues, ConsistencyIssue{
						Component:  "settings",
						Severity:   SeverityError,
						Path:       filepath.Join(defs.ConfigDir, defs.SettingsJSON),
						Message:    fmt.Sprintf("%s hook references missing script hooks/%s", ev, script),
						Suggestion: "create the script or remove the hook entry",
					})
				}
			}
		}
	}
	return issues
}

func (v *Validator) checkSkillRefs(root string) []ConsistencyIssue {
	rs, err := rules.Load(root, v.defaultWindow)
	if err != nil {
		return nil
	}

	var issues []ConsistencyIssue
	for _, id := range rs.SkillIDs() {
		p := filepath.Join(root, defs.ConfigDir, defs.SkillsDir, id, defs.SkillMD)
		if _, err := os.Stat(p); err == nil {
			continue
		}
		rel := filepath.Join(defs.ConfigDir, defs.SkillsDir, id, defs.SkillMD)
		issues = append(issues, ConsistencyIssue{
			Component:  "skill_rules",
			Severity:   SeverityWarning,
			Path:       rel,
			Message:    fmt.Sprintf("skill %q has rules but no %s", id, defs.SkillMD),
			Suggestion: "create " + rel,
		})
	}
	return issues
}
