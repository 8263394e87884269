package rules

import (
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// ThrottleState is the persisted form of a session's surfacing times and
// active skills.
type ThrottleState struct {
	Project  string               `json:"project"`
	Surfaced map[string]time.Time `json:"surfaced"`
	Active   []string             `json:"active,omitempty"`
}

// LastSurfaced implements ThrottleView.
func (t ThrottleState) LastSurfaced(skillID string) (time.Time, bool) {
	at, ok := t.Surfaced[skillID]
	return at, ok
}

// Snapshot captures everything a Session holds so a failed switch can put
// it back.
type Snapshot struct {
	Project  string
	Rules    *RuleSet
	Context  string
	Throttle map[string]time.Time
	Active   map[string]bool
}

// Session is the suggestion front-end for the active project. It owns the
// loaded rule set, the context document and the throttle map, all of which
// are discarded on Unload. Safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	project  string
	rules    *RuleSet
	context  string
	throttle map[string]time.Time
	active   map[string]bool

	topK   int
	logger *slog.Logger
	now    func() time.Time
}

// NewSession returns an empty session that suggests at most topK skills.
func NewSession(topK int, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		topK:     topK,
		logger:   logger,
		now:      time.Now,
		throttle: make(map[string]time.Time),
		active:   make(map[string]bool),
	}
}

// SetClock replaces the time source.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Load installs project's rule set and context document. Throttle and
// active-skill state start empty.
func (s *Session) Load(project string, rs *RuleSet, contextDoc string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = project
	s.rules = rs
	s.context = contextDoc
	s.throttle = make(map[string]time.Time)
	s.active = make(map[string]bool)
	s.logger.Debug("rule set loaded", "project", project, "rules", rs.Len())
}

// Unload discards all project state.
func (s *Session) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project != "" {
		s.logger.Debug("rule set unloaded", "project", s.project)
	}
	s.project = ""
	s.rules = nil
	s.context = ""
	s.throttle = make(map[string]time.Time)
	s.active = make(map[string]bool)
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Project:  s.project,
		Rules:    s.rules,
		Context:  s.context,
		Throttle: maps.Clone(s.throttle),
		Active:   maps.Clone(s.active),
	}
}

// Restore reinstates a snapshot taken earlier.
func (s *Session) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = snap.Project
	s.rules = snap.Rules
	s.context = snap.Context
	s.throttle = maps.Clone(snap.Throttle)
	s.active = maps.Clone(snap.Active)
	if s.throttle == nil {
		s.throttle = make(map[string]time.Time)
	}
	if s.active == nil {
		s.active = make(map[string]bool)
	}
}

// Project returns the loaded project name, or "" when idle.
func (s *Session) Project() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project
}

// Rules returns the loaded rule set.
func (s *Session) Rules() *RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// ContextDocument returns the loaded context file contents.
func (s *Session) ContextDocument() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.context
}

// Activate marks a skill active so it is no longer suggested.
func (s *Session) Activate(skillID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[skillID] = true
}

// Deactivate clears the active mark.
func (s *Session) Deactivate(skillID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, skillID)
}

// Suggest ranks skills for req and records each returned skill as
// surfaced. It never fails: with nothing loaded, or on any internal fault,
// it returns an empty list and logs.
func (s *Session) Suggest(req Request) (out []Suggestion) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("suggestion matcher failed", "project", s.project, "panic", r)
			out = nil
		}
	}()

	if s.rules == nil {
		return nil
	}

	now := s.now()
	out = Match(s.rules.Rules, req, MatchOptions{
		TopK:     s.topK,
		Active:   s.active,
		Throttle: throttleMap(s.throttle),
	}, now)

	for _, sug := range out {
		s.throttle[sug.SkillID] = now
	}
	return out
}

// ThrottleState exports surfacing times and active skills for persistence
// between processes.
func (s *Session) ThrottleState() ThrottleState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ThrottleState{
		Project:  s.project,
		Surfaced: maps.Clone(s.throttle),
		Active:   slices.Sorted(maps.Keys(s.active)),
	}
}

// ActiveSkills returns the active skill ids in sorted order.
func (s *Session) ActiveSkills() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.active))
}

// RestoreThrottle imports surfacing times and active skills saved by an
// earlier process. State recorded for a different project is ignored.
func (s *Session) RestoreThrottle(ts ThrottleState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts.Project == "" || ts.Project != s.project {
		return false
	}
	s.throttle = maps.Clone(ts.Surfaced)
	if s.throttle == nil {
		s.throttle = make(map[string]time.Time)
	}
	s.active = make(map[string]bool, len(ts.Active))
	for _, id := range ts.Active {
		s.active[id] = true
	}
	return true
}

// InvokedSkills returns the skills of rs that prompt invokes by name as a
// slash command, such as "/seo-audit", in order of appearance.
func InvokedSkills(rs *RuleSet, prompt string) []string {
	known := rs.SkillIDs()
	var out []string
	for _, field := range strings.Fields(strings.ToLower(prompt)) {
		id, ok := strings.CutPrefix(field, "/")
		if !ok {
			continue
		}
		id = strings.TrimRight(id, ".,;:!?)")
		if slices.Contains(known, id) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

type throttleMap map[string]time.Time

func (m throttleMap) LastSurfaced(skillID string) (time.Time, bool) {
	at, ok := m[skillID]
	return at, ok
}
