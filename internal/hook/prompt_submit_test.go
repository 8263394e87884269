package hook

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/rules"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/switcher"
)

const seoRules = `{
  "version": "1.0",
  "rules": [
    {
      "skill_id": "seo-optimizer",
      "trigger_phrases": ["seo"],
      "file_patterns": ["**/*.html"],
      "throttle_window": "10m"
    },
    {
      "skill_id": "api-designer",
      "trigger_phrases": ["endpoint"],
      "directory_patterns": ["api"],
      "project_types": ["service"]
    }
  ]
}`

const seoOnlyRules = `{"rules": [{"skill_id": "seo-optimizer", "trigger_phrases": ["seo"]}]}`

type hookFixture struct {
	home  string
	store *registry.Store
	clock time.Time
}

func (f *hookFixture) now() time.Time { return f.clock }

func newHookFixture(t *testing.T) *hookFixture {
	t.Helper()
	home := t.TempDir()
	return &hookFixture{
		home:  home,
		store: registry.NewStore(registry.Options{Path: filepath.Join(home, defs.RegistryJSON)}),
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// project writes a minimal activatable project and registers it.
func (f *hookFixture) project(t *testing.T, name, ruleSet string, active bool) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), name)
	cfg := filepath.Join(root, defs.ConfigDir)
	if err := os.MkdirAll(cfg, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		defs.ClaudeMD:       "# " + name + "\n\nProject context for the hook tests.\n",
		defs.SkillRulesJSON: ruleSet,
		defs.MetadataJSON:   `{"name":"` + name + `","project_type":"service"}`,
	}
	for file, content := range files {
		if err := os.WriteFile(filepath.Join(cfg, file), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	err := f.store.Update(context.Background(), func(reg *registry.Registry) error {
		if err := reg.Upsert(&registry.ProjectRecord{Name: name, Path: root, CreatedAt: f.clock}); err != nil {
			return err
		}
		if active {
			return reg.SetActive(name)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return root
}

func (f *hookFixture) handler() *suggestHandler {
	return NewSuggestHandler(SuggestOptions{
		Store:         f.store,
		StateDir:      f.home,
		TopK:          3,
		DefaultWindow: 10 * time.Minute,
		Now:           f.now,
	})
}

func TestSuggestHandlerThrottlesAcrossProcesses(t *testing.T) {
	t.Parallel()

	f := newHookFixture(t)
	root := f.project(t, "shop", seoRules, true)
	input := &HookInput{
		Prompt:    "Improve the SEO of the landing page",
		CWD:       root,
		OpenFiles: []string{filepath.Join(root, "site", "index.html")},
	}

	out, err := f.handler().Handle(context.Background(), input)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	ctx := out.AdditionalContext()
	if !strings.Contains(ctx, "seo-optimizer (score 5") {
		t.Fatalf("AdditionalContext = %q, want seo-optimizer scored 5", ctx)
	}
	if _, err := os.Stat(filepath.Join(f.home, defs.ThrottleJSON)); err != nil {
		t.Fatalf("throttle state not persisted: %v", err)
	}

	// A fresh handler stands in for the next hook process.
	f.clock = f.clock.Add(time.Minute)
	out, err = f.handler().Handle(context.Background(), input)
	if err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if strings.Contains(out.AdditionalContext(), "seo-optimizer") {
		t.Errorf("seo-optimizer suggested again inside its throttle window: %q", out.AdditionalContext())
	}

	f.clock = f.clock.Add(10 * time.Minute)
	out, err = f.handler().Handle(context.Background(), input)
	if err != nil {
		t.Fatalf("third Handle: %v", err)
	}
	if !strings.Contains(out.AdditionalContext(), "seo-optimizer") {
		t.Errorf("seo-optimizer not suggested after its window: %q", out.AdditionalContext())
	}
}

func TestSuggestHandlerSkipsActiveSkills(t *testing.T) {
	t.Parallel()

	f := newHookFixture(t)
	root := f.project(t, "shop", seoOnlyRules, true)

	h := NewSuggestHandler(SuggestOptions{Store: f.store, StateDir: f.home, TopK: 3, Now: f.now})
	out, err := h.Handle(context.Background(), &HookInput{Prompt: "/seo-optimizer fix the seo titles", CWD: root})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out.AdditionalContext() != "" {
		t.Errorf("invoked skill suggested: %q", out.AdditionalContext())
	}

	ts, err := switcher.ReadThrottle(f.home)
	if err != nil {
		t.Fatal(err)
	}
	if ts.Project != "shop" || !slices.Equal(ts.Active, []string{"seo-optimizer"}) {
		t.Fatalf("persisted state = %+v, want seo-optimizer active for shop", ts)
	}

	// No throttle window applies, so only the active mark holds it back.
	f.clock = f.clock.Add(time.Hour)
	out, err = h.Handle(context.Background(), &HookInput{Prompt: "more seo work", CWD: root})
	if err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if strings.Contains(out.AdditionalContext(), "seo-optimizer") {
		t.Errorf("active skill suggested again: %q", out.AdditionalContext())
	}
}

func TestSuggestHandlerUsesRelativeDirectoryAndProjectType(t *testing.T) {
	t.Parallel()

	f := newHookFixture(t)
	root := f.project(t, "billing", seoRules, true)

	out, err := f.handler().Handle(context.Background(), &HookInput{
		Prompt: "add an endpoint for refunds",
		CWD:    filepath.Join(root, "api", "v1"),
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	// phrase 2 + dir 2 + type 1
	if !strings.Contains(out.AdditionalContext(), "api-designer (score 5") {
		t.Errorf("AdditionalContext = %q, want api-designer scored 5", out.AdditionalContext())
	}
}

func TestSuggestHandlerNoActiveProject(t *testing.T) {
	t.Parallel()

	f := newHookFixture(t)
	f.project(t, "shop", seoRules, false)

	out, err := f.handler().Handle(context.Background(), &HookInput{Prompt: "seo please"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out.HookSpecificOutput != nil {
		t.Errorf("output = %+v, want empty", out)
	}
}

func TestSuggestHandlerNoMatch(t *testing.T) {
	t.Parallel()

	f := newHookFixture(t)
	f.project(t, "shop", seoOnlyRules, true)

	out, err := f.handler().Handle(context.Background(), &HookInput{Prompt: "rename a variable"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out.HookSpecificOutput != nil {
		t.Errorf("output = %+v, want empty", out)
	}
	if _, err := os.Stat(filepath.Join(f.home, defs.ThrottleJSON)); !os.IsNotExist(err) {
		t.Errorf("throttle file written without suggestions: %v", err)
	}
}

func TestSuggestHandlerBrokenRulesErrors(t *testing.T) {
	t.Parallel()

	f := newHookFixture(t)
	f.project(t, "shop", `{"rules": [{"skill_id": "Bad ID"}]}`, true)

	if _, err := f.handler().Handle(context.Background(), &HookInput{Prompt: "seo"}); err == nil {
		t.Fatal("expected error for invalid rule set")
	}

	// Through the registry the failure degrades to the empty output.
	r := NewRegistry(nil)
	r.Register(f.handler())
	out := r.Dispatch(context.Background(), EventUserPromptSubmit, &HookInput{Prompt: "seo"})
	if out.HookSpecificOutput != nil {
		t.Errorf("output = %+v, want empty", out)
	}
}

func TestMismatchHandler(t *testing.T) {
	t.Parallel()

	f := newHookFixture(t)
	f.project(t, "shop", seoRules, true)
	blog := f.project(t, "blog", seoRules, false)
	h := NewMismatchHandler(f.store, EventUserPromptSubmit)

	out, err := h.Handle(context.Background(), &HookInput{CWD: filepath.Join(blog, "posts")})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got := out.AdditionalContext()
	if !strings.Contains(got, "belongs to project blog") || !strings.Contains(got, "active project is shop") {
		t.Errorf("AdditionalContext = %q, want mismatch warning", got)
	}
	if !strings.Contains(got, "orchestrator switch blog") {
		t.Errorf("AdditionalContext = %q, want switch command", got)
	}

	out, err = h.Handle(context.Background(), &HookInput{CWD: t.TempDir()})
	if err != nil {
		t.Fatalf("Handle outside projects: %v", err)
	}
	if out.HookSpecificOutput != nil {
		t.Errorf("output = %+v, want empty outside registered projects", out)
	}
}

func TestFormatSuggestions(t *testing.T) {
	t.Parallel()

	if got := FormatSuggestions("shop", nil); got != "" {
		t.Errorf("FormatSuggestions(nil) = %q, want empty", got)
	}
	got := FormatSuggestions("shop", []rules.Suggestion{
		{SkillID: "seo-optimizer", Score: 5, Reasons: []string{"file:**/*.html", `phrase:"seo"`}},
		{SkillID: "copywriter", Score: 2},
	})
	want := "Suggested skills for project shop:\n" +
		"- seo-optimizer (score 5; file:**/*.html, phrase:\"seo\")\n" +
		"- copywriter (score 2)"
	if got != want {
		t.Errorf("FormatSuggestions =\n%s\nwant\n%s", got, want)
	}
}

func TestRelativeTo(t *testing.T) {
	t.Parallel()

	root := filepath.FromSlash("/home/dev/shop")
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"src/app.go", "src/app.go"},
		{filepath.FromSlash("/home/dev/shop"), ""},
		{filepath.FromSlash("/home/dev/shop/api/v1"), "api/v1"},
		{filepath.FromSlash("/home/dev/shopping/x"), filepath.FromSlash("/home/dev/shopping/x")},
		{filepath.FromSlash("/etc/hosts"), filepath.FromSlash("/etc/hosts")},
	}
	for _, tt := range tests {
		if got := relativeTo(root, tt.in); got != tt.want {
			t.Errorf("relativeTo(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
