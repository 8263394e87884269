// Package registry persists the set of known projects and the single
// active project. Every write is preceded by a timestamped backup and is
// performed through temp-file-then-rename under an advisory lock.
package registry

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
)

// CurrentVersion is the registry format version written by this release.
const CurrentVersion = "1.0.0"

// ProjectState describes whether a record still points at a usable project.
type ProjectState string

const (
	StateValid         ProjectState = "valid"         // path exists with a .claude/ root
	StateUninitialized ProjectState = "uninitialized" // path exists, no .claude/
	StateMissing       ProjectState = "missing"       // path does not exist
)

// Stale reports whether the record can no longer be switched to.
func (s ProjectState) Stale() bool {
	return s != StateValid
}

// ProjectRecord is one registered project. Unknown JSON fields are kept in
// Extra and written back unchanged.
type ProjectRecord struct {
	Name         string         `json:"name"`
	Path         string         `json:"path"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActiveAt *time.Time     `json:"last_active_at"`
	Score        *int           `json:"score"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type recordAlias ProjectRecord

var recordFields = []string{"name", "path", "created_at", "last_active_at", "score", "metadata"}

// UnmarshalJSON decodes known fields and retains the rest.
func (r *ProjectRecord) UnmarshalJSON(data []byte) error {
	var a recordAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := unknownFields(data, recordFields)
	if err != nil {
		return err
	}
	*r = ProjectRecord(a)
	r.Extra = extra
	return nil
}

// MarshalJSON encodes known fields followed by preserved unknown ones.
func (r ProjectRecord) MarshalJSON() ([]byte, error) {
	return mergeFields(recordAlias(r), r.Extra)
}

// State inspects the filesystem to classify the record.
func (r *ProjectRecord) State() ProjectState {
	info, err := os.Stat(r.Path)
	if err != nil || !info.IsDir() {
		return StateMissing
	}
	root, err := os.Stat(filepath.Join(r.Path, defs.ConfigDir))
	if err != nil || !root.IsDir() {
		return StateUninitialized
	}
	return StateValid
}

// ScoreValue returns the cached score or -1 when never validated.
func (r *ProjectRecord) ScoreValue() int {
	if r.Score == nil {
		return -1
	}
	return *r.Score
}

// SetScore caches a rounded validation score.
func (r *ProjectRecord) SetScore(score int) {
	r.Score = &score
}

// Touch records activation time.
func (r *ProjectRecord) Touch(at time.Time) {
	at = at.UTC()
	r.LastActiveAt = &at
}

// Registry is the in-memory form of the registry file.
type Registry struct {
	Version       string
	ActiveProject string
	Projects      map[string]*ProjectRecord

	Extra map[string]json.RawMessage
}

type registryJSON struct {
	Version       string                    `json:"version"`
	ActiveProject *string                   `json:"active_project"`
	Projects      map[string]*ProjectRecord `json:"projects"`
}

var registryFields = []string{"version", "active_project", "projects"}

// New returns an empty registry at the current version.
func New() *Registry {
	return &Registry{
		Version:  CurrentVersion,
		Projects: make(map[string]*ProjectRecord),
	}
}

// UnmarshalJSON decodes the registry and retains unknown top-level fields.
func (r *Registry) UnmarshalJSON(data []byte) error {
	var raw registryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra, err := unknownFields(data, registryFields)
	if err != nil {
		return err
	}

	r.Version = raw.Version
	r.ActiveProject = ""
	if raw.ActiveProject != nil {
		r.ActiveProject = *raw.ActiveProject
	}
	r.Projects = make(map[string]*ProjectRecord, len(raw.Projects))
	for name, rec := range raw.Projects {
		if rec == nil {
			continue
		}
		rec.Name = name
		r.Projects[name] = rec
	}
	r.Extra = extra
	return nil
}

// MarshalJSON encodes the registry; a cleared active project is written as null.
func (r Registry) MarshalJSON() ([]byte, error) {
	raw := registryJSON{
		Version:  r.Version,
		Projects: r.Projects,
	}
	if raw.Projects == nil {
		raw.Projects = map[string]*ProjectRecord{}
	}
	if r.ActiveProject != "" {
		active := r.ActiveProject
		raw.ActiveProject = &active
	}
	return mergeFields(raw, r.Extra)
}

// Get returns the named record.
func (r *Registry) Get(name string) (*ProjectRecord, error) {
	rec, ok := r.Projects[name]
	if !ok {
		return nil, &NotFoundError{Name: name, Suggestions: Suggest(name, r.Names())}
	}
	return rec, nil
}

// Upsert inserts or replaces a record after validating its name and path.
func (r *Registry) Upsert(rec *ProjectRecord) error {
	if err := ValidateName(rec.Name); err != nil {
		return err
	}
	if !filepath.IsAbs(rec.Path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, rec.Path)
	}
	rec.Path = filepath.Clean(rec.Path)
	if r.Projects == nil {
		r.Projects = make(map[string]*ProjectRecord)
	}
	if existing, ok := r.Projects[rec.Name]; ok && rec.Extra == nil {
		rec.Extra = existing.Extra
	}
	r.Projects[rec.Name] = rec
	return nil
}

// Remove deletes the entry only. Project files are never touched.
// Removing the active project clears the active pointer.
func (r *Registry) Remove(name string) error {
	if _, err := r.Get(name); err != nil {
		return err
	}
	delete(r.Projects, name)
	if r.ActiveProject == name {
		r.ActiveProject = ""
	}
	return nil
}

// SetActive marks name as the single active project.
func (r *Registry) SetActive(name string) error {
	if _, err := r.Get(name); err != nil {
		return err
	}
	r.ActiveProject = name
	return nil
}

// Active returns the active record, if any.
func (r *Registry) Active() (*ProjectRecord, bool) {
	if r.ActiveProject == "" {
		return nil, false
	}
	rec, ok := r.Projects[r.ActiveProject]
	return rec, ok
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.Projects))
}

// Records returns the records sorted by name.
func (r *Registry) Records() []*ProjectRecord {
	out := make([]*ProjectRecord, 0, len(r.Projects))
	for _, name := range r.Names() {
		out = append(out, r.Projects[name])
	}
	return out
}

// FindByPath returns the record whose path is dir or the closest ancestor
// of dir.
func (r *Registry) FindByPath(dir string) (*ProjectRecord, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, false
	}
	abs = filepath.Clean(abs)

	var best *ProjectRecord
	for _, rec := range r.Projects {
		if abs != rec.Path && !strings.HasPrefix(abs, rec.Path+string(filepath.Separator)) {
			continue
		}
		if best == nil || len(rec.Path) > len(best.Path) {
			best = rec
		}
	}
	return best, best != nil
}

// Stale returns records that are no longer switchable, sorted by name.
func (r *Registry) Stale() []*ProjectRecord {
	var out []*ProjectRecord
	for _, rec := range r.Records() {
		if rec.State().Stale() {
			out = append(out, rec)
		}
	}
	return out
}

// Prune removes every stale record and returns their names.
func (r *Registry) Prune() []string {
	var removed []string
	for _, rec := range r.Stale() {
		_ = r.Remove(rec.Name)
		removed = append(removed, rec.Name)
	}
	return removed
}

func unknownFields(data []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func mergeFields(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}
