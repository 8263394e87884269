package rules

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Points awarded per signal type. Each type counts at most once per rule.
const (
	FilePoints        = 3
	PhrasePoints      = 2
	DirectoryPoints   = 2
	ProjectTypePoints = 1
)

// Request carries the signals of one incoming request.
type Request struct {
	PromptText       string
	OpenFilePaths    []string
	CurrentDirectory string
	ProjectType      string
}

// Suggestion is one ranked skill.
type Suggestion struct {
	SkillID  string   `json:"skill_id"`
	Score    int      `json:"score"`
	Priority int      `json:"priority"`
	Reasons  []string `json:"reasons"`
}

// ThrottleView answers when a skill was last surfaced for the active project.
type ThrottleView interface {
	LastSurfaced(skillID string) (time.Time, bool)
}

// MatchOptions holds the non-request inputs of Match.
type MatchOptions struct {
	// TopK truncates the result. Zero or negative means no limit.
	TopK int

	// Active lists skills already active; they are never suggested.
	Active map[string]bool

	// Throttle may be nil.
	Throttle ThrottleView
}

type candidate struct {
	Suggestion
	index  int
	window time.Duration
}

// Match scores every rule against req and returns the top suggestions,
// ordered by score, then priority, then first appearance in rules. Rules
// sharing a skill id add their points together. Skills scoring zero,
// already active, or surfaced within their throttle window are dropped.
func Match(rules []ActivationRule, req Request, opts MatchOptions, now time.Time) []Suggestion {
	if len(rules) == 0 {
		return nil
	}

	prompt := strings.ToLower(req.PromptText)
	byID := make(map[string]*candidate)
	var order []*candidate

	for i, r := range rules {
		points, reasons := scoreRule(r, prompt, req)
		if points == 0 {
			continue
		}
		c, ok := byID[r.SkillID]
		if !ok {
			c = &candidate{Suggestion: Suggestion{SkillID: r.SkillID}, index: i}
			byID[r.SkillID] = c
			order = append(order, c)
		}
		c.Score += points
		c.Priority = max(c.Priority, r.Priority)
		c.window = max(c.window, r.Window())
		c.Reasons = append(c.Reasons, reasons...)
	}

	out := make([]*candidate, 0, len(order))
	for _, c := range order {
		if opts.Active[c.SkillID] {
			continue
		}
		if throttled(opts.Throttle, c.SkillID, c.window, now) {
			continue
		}
		out = append(out, c)
	}

	slices.SortStableFunc(out, func(a, b *candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})

	if opts.TopK > 0 && len(out) > opts.TopK {
		out = out[:opts.TopK]
	}

	result := make([]Suggestion, len(out))
	for i, c := range out {
		result[i] = c.Suggestion
	}
	return result
}

func scoreRule(r ActivationRule, prompt string, req Request) (int, []string) {
	var points int
	var reasons []string

	if p, ok := firstMatch(r.FilePatterns, func(g string) bool {
		return slices.ContainsFunc(req.OpenFilePaths, func(f string) bool { return matchPath(g, f) })
	}); ok {
		points += FilePoints
		reasons = append(reasons, "file:"+p)
	}

	if prompt != "" {
		if p, ok := firstMatch(r.TriggerPhrases, func(ph string) bool {
			ph = strings.ToLower(strings.TrimSpace(ph))
			return ph != "" && strings.Contains(prompt, ph)
		}); ok {
			points += PhrasePoints
			reasons = append(reasons, fmt.Sprintf("phrase:%q", p))
		}
	}

	if req.CurrentDirectory != "" {
		if p, ok := firstMatch(r.DirectoryPatterns, func(g string) bool {
			return matchDir(g, req.CurrentDirectory)
		}); ok {
			points += DirectoryPoints
			reasons = append(reasons, "dir:"+p)
		}
	}

	if req.ProjectType != "" {
		if p, ok := firstMatch(r.ProjectTypes, func(t string) bool {
			return strings.EqualFold(strings.TrimSpace(t), req.ProjectType)
		}); ok {
			points += ProjectTypePoints
			reasons = append(reasons, "type:"+p)
		}
	}

	return points, reasons
}

func firstMatch(items []string, pred func(string) bool) (string, bool) {
	for _, it := range items {
		if pred(it) {
			return it, true
		}
	}
	return "", false
}

func throttled(view ThrottleView, skillID string, window time.Duration, now time.Time) bool {
	if view == nil || window <= 0 {
		return false
	}
	last, ok := view.LastSurfaced(skillID)
	if !ok {
		return false
	}
	return now.Sub(last) < window
}
