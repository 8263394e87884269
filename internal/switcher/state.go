package switcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/fsutil"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/rules"
)

// State is a step of the switch state machine.
type State int

const (
	Idle State = iota
	ValidatingTarget
	UnloadingCurrent
	LoadingTarget
	Active
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case ValidatingTarget:
		return "VALIDATING_TARGET"
	case UnloadingCurrent:
		return "UNLOADING_CURRENT"
	case LoadingTarget:
		return "LOADING_TARGET"
	case Active:
		return "ACTIVE"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for st := Idle; st <= Failed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("switcher: unknown state %q", text)
}

// Resume is the minimal snapshot written when a project is deactivated.
// It never holds project content.
type Resume struct {
	Project       string    `json:"project"`
	DeactivatedAt time.Time `json:"deactivated_at"`
}

// ReadResume returns the last deactivated project recorded under dir.
func ReadResume(dir string) (*Resume, error) {
	var r Resume
	if err := fsutil.ReadJSON(filepath.Join(dir, defs.ResumeJSON), &r); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoResume
		}
		return nil, err
	}
	if r.Project == "" {
		return nil, ErrNoResume
	}
	return &r, nil
}

func writeResume(dir string, r Resume) error {
	return fsutil.WriteJSON(filepath.Join(dir, defs.ResumeJSON), r)
}

// ReadThrottle loads persisted surfacing times. A missing file yields an
// empty state.
func ReadThrottle(dir string) (rules.ThrottleState, error) {
	var ts rules.ThrottleState
	err := fsutil.ReadJSON(filepath.Join(dir, defs.ThrottleJSON), &ts)
	if errors.Is(err, fs.ErrNotExist) {
		return rules.ThrottleState{}, nil
	}
	return ts, err
}

// WriteThrottle persists surfacing times for the next hook process.
func WriteThrottle(dir string, ts rules.ThrottleState) error {
	return fsutil.WriteJSON(filepath.Join(dir, defs.ThrottleJSON), ts)
}

func clearThrottle(dir string) error {
	err := os.Remove(filepath.Join(dir, defs.ThrottleJSON))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// LoadProject reads rec's rule set and context file into session. On error
// the session is left unchanged.
func LoadProject(session *rules.Session, rec *registry.ProjectRecord, defaultWindow time.Duration) (int, error) {
	rs, err := rules.Load(rec.Path, defaultWindow)
	if err != nil {
		return 0, fmt.Errorf("load rule set for %q: %w", rec.Name, err)
	}
	doc, err := os.ReadFile(filepath.Join(rec.Path, defs.ConfigDir, defs.ClaudeMD))
	if err != nil {
		return 0, fmt.Errorf("load context file for %q: %w", rec.Name, err)
	}
	session.Load(rec.Name, rs, string(doc))
	return rs.Len(), nil
}
