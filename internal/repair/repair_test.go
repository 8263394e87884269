package repair

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/rules"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/structure"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/template"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	e, err := NewEngine(opts)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return e
}

func validate(t *testing.T, root string) *structure.ValidationResult {
	t.Helper()
	res, err := structure.New(structure.Options{DefaultWindow: 10 * time.Minute}).Validate(root)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	return res
}

func TestRepairEmptyProjectReachesFullScore(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	before := validate(t, root)

	res := newEngine(t, Options{}).Repair(context.Background(), root, before.Gaps, nil,
		template.WithProject("demo", root))
	if !res.Complete() {
		t.Fatalf("Failures = %v", res.Failures)
	}
	if len(res.Installed) != len(structure.Catalog()) {
		t.Errorf("Installed = %v, want every component", res.Installed)
	}

	after := validate(t, root)
	if after.Score != 100 {
		t.Errorf("score after repair = %v, gaps %v", after.Score, after.GapIDs())
	}
	if len(after.Issues) != 0 {
		t.Errorf("repaired project has issues: %v", after.Issues)
	}

	md, err := structure.ReadMetadata(root)
	if err != nil {
		t.Fatal(err)
	}
	if md.Name != "demo" || md.CreatedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("metadata = %+v, want rendered name and timestamp", md)
	}
}

func TestRepairOrderCriticalFirst(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gaps := validate(t, root).Gaps
	slices.Reverse(gaps)

	res := newEngine(t, Options{}).Repair(context.Background(), root, gaps, nil)
	if res.Attempted[0] != "config_root" {
		t.Errorf("Attempted = %v, want CRITICAL components first", res.Attempted)
	}
	seenImportant := false
	for _, id := range res.Attempted {
		c, _ := structure.Lookup(id)
		if c.Tier == structure.Important {
			seenImportant = true
		} else if seenImportant {
			t.Fatalf("CRITICAL %s attempted after an IMPORTANT component: %v", id, res.Attempted)
		}
	}
}

func TestRepairReversedGapsReportsEveryInstall(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gaps := validate(t, root).Gaps
	slices.Reverse(gaps)

	res := newEngine(t, Options{}).Repair(context.Background(), root, gaps, nil)
	if len(res.Skipped) != 0 {
		t.Errorf("Skipped = %v, want none on an empty project", res.Skipped)
	}
	if !slices.Contains(res.Installed, "config_root") {
		t.Errorf("Installed = %v, want config_root", res.Installed)
	}
	want := make([]string, 0, len(gaps))
	for _, c := range structure.Catalog() {
		want = append(want, c.ID)
	}
	if !slices.Equal(res.Attempted, want) {
		t.Errorf("Attempted = %v, want catalog order %v", res.Attempted, want)
	}
}

func TestRepairLeavesInvalidRuleFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	yamlPath := filepath.Join(root, ".claude", "skill-rules.yaml")
	if err := os.MkdirAll(filepath.Dir(yamlPath), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "rules:\n  - skill_id: seo\n    trigger_phrases: [seo]\n    priority: 11\n"
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	before := validate(t, root)
	if !slices.Contains(before.GapIDs(), "skill_rules") {
		t.Fatalf("gaps = %v, want skill_rules", before.GapIDs())
	}

	res := newEngine(t, Options{}).Repair(context.Background(), root, before.Gaps, nil)

	var failure *Failure
	for i := range res.Failures {
		if res.Failures[i].ComponentID == "skill_rules" {
			failure = &res.Failures[i]
		}
	}
	if failure == nil {
		t.Fatalf("Failures = %v, want skill_rules", res.Failures)
	}
	if !strings.Contains(failure.Reason, ErrNotRepairable.Error()) || !strings.Contains(failure.Reason, "skill-rules.yaml") {
		t.Errorf("reason = %q", failure.Reason)
	}
	if slices.Contains(res.Installed, "skill_rules") {
		t.Errorf("Installed = %v, skill_rules must not be written", res.Installed)
	}

	if _, err := os.Stat(filepath.Join(root, ".claude", "skill-rules.json")); !os.IsNotExist(err) {
		t.Errorf("skill-rules.json written next to the YAML file: %v", err)
	}
	if got, err := rules.Locate(root); err != nil || got != yamlPath {
		t.Errorf("Locate() = %q, %v; want %q", got, err, yamlPath)
	}
	data, _ := os.ReadFile(yamlPath)
	if string(data) != content {
		t.Errorf("YAML rules changed: %q", data)
	}
	if after := validate(t, root); after.Score == 100 {
		t.Error("score after repair = 100 with an invalid rule file")
	}
}

func TestRepairIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gaps := validate(t, root).Gaps
	e := newEngine(t, Options{})

	first := e.Repair(context.Background(), root, gaps, nil)
	second := e.Repair(context.Background(), root, gaps, nil)

	if len(first.Installed) == 0 {
		t.Fatal("first run installed nothing")
	}
	if len(second.Installed) != 0 || len(second.Failures) != 0 {
		t.Errorf("second run = %+v, want everything skipped", second)
	}
	if len(second.Skipped) != len(gaps) {
		t.Errorf("Skipped = %v, want %d", second.Skipped, len(gaps))
	}
}

func TestRepairNeverOverwrites(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := filepath.Join(root, ".claude", "CLAUDE.md")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("short"), 0o644); err != nil {
		t.Fatal(err)
	}

	gaps := validate(t, root).Gaps
	res := newEngine(t, Options{}).Repair(context.Background(), root, gaps, nil)

	if !slices.Contains(res.Skipped, "context_file") {
		t.Errorf("Skipped = %v, want context_file", res.Skipped)
	}
	data, _ := os.ReadFile(p)
	if string(data) != "short" {
		t.Errorf("CLAUDE.md overwritten: %q", data)
	}
}

func TestRepairSetsExecuteBit(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gap, _ := structure.Lookup("prompt_hook")
	res := newEngine(t, Options{}).Repair(context.Background(), root, []structure.Gap{{Component: gap}}, nil)
	if !slices.Equal(res.Installed, []string{"prompt_hook"}) {
		t.Fatalf("Installed = %v, failures %v", res.Installed, res.Failures)
	}

	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(gap.Path)))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Errorf("hook mode = %v, want executable", info.Mode().Perm())
	}
}

func TestRepairRendersHookCommandAndVersion(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var gaps []structure.Gap
	for _, id := range []string{"metadata", "settings", "prompt_hook"} {
		c, _ := structure.Lookup(id)
		gaps = append(gaps, structure.Gap{Component: c})
	}

	res := newEngine(t, Options{HookCommand: "/opt/bin/orchestrator"}).Repair(context.Background(), root, gaps, nil)
	if !res.Complete() {
		t.Fatalf("Failures = %v", res.Failures)
	}

	script, err := os.ReadFile(filepath.Join(root, ".claude", "hooks", "user-prompt-submit.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(script), "exec /opt/bin/orchestrator hook user-prompt-submit") {
		t.Errorf("hook script = %q", script)
	}
	settings, err := os.ReadFile(filepath.Join(root, ".claude", "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(settings), `"/opt/bin/orchestrator hook statusline"`) {
		t.Errorf("settings.json = %s", settings)
	}

	md, err := structure.ReadMetadata(root)
	if err != nil {
		t.Fatal(err)
	}
	if md.StructureVersion != structure.Version {
		t.Errorf("structure_version = %q, want %q", md.StructureVersion, structure.Version)
	}
}

func TestRepairContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	// Only the metadata template exists.
	fsys := fstest.MapFS{
		".claude/metadata.json.tmpl": &fstest.MapFile{Data: []byte(`{"name":"{{.ProjectName}}"}`)},
	}
	root := t.TempDir()
	var gaps []structure.Gap
	for _, id := range []string{"context_file", "metadata", "settings"} {
		c, _ := structure.Lookup(id)
		gaps = append(gaps, structure.Gap{Component: c, Reason: "missing"})
	}

	res := newEngine(t, Options{Templates: fsys}).Repair(context.Background(), root, gaps, nil)

	if !slices.Equal(res.Installed, []string{"metadata"}) {
		t.Errorf("Installed = %v, want [metadata]", res.Installed)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("Failures = %v, want 2", res.Failures)
	}
	for _, f := range res.Failures {
		if !strings.Contains(f.Reason, "not found") {
			t.Errorf("failure %s reason = %q, want template not found", f.ComponentID, f.Reason)
		}
	}
	if res.Complete() {
		t.Error("Complete() = true with failures")
	}
}

func TestRepairDirectoryBlockedByFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".claude"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".claude", "agents"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, _ := structure.Lookup("agents_dir")
	res := newEngine(t, Options{}).Repair(context.Background(), root, []structure.Gap{{Component: c}}, nil)
	if len(res.Failures) != 1 || !strings.Contains(res.Failures[0].Reason, "not a directory") {
		t.Errorf("Failures = %v", res.Failures)
	}
}

func TestRepairProgress(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	gaps := validate(t, root).Gaps

	var calls []int
	newEngine(t, Options{}).Repair(context.Background(), root, gaps, func(done, total int, _ string) {
		if total != len(gaps) {
			t.Errorf("total = %d, want %d", total, len(gaps))
		}
		calls = append(calls, done)
	})

	if len(calls) != len(gaps) || calls[len(calls)-1] != len(gaps) {
		t.Errorf("progress calls = %v", calls)
	}
}

func TestRepairHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := t.TempDir()
	gaps := validate(t, root).Gaps
	res := newEngine(t, Options{}).Repair(ctx, root, gaps, nil)
	if len(res.Failures) != len(gaps) || len(res.Installed) != 0 {
		t.Errorf("result = %+v, want every component failed", res)
	}
}
