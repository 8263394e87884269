package statusline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/registry"
)

func intPtr(v int) *int { return &v }

func TestRenderModes(t *testing.T) {
	r := NewRenderer(70, true)
	data := &StatusData{
		Model:     "Opus",
		Directory: "shop",
		Project:   "shop",
		Score:     intPtr(94),
		State:     registry.StateMissing,
	}

	tests := []struct {
		name string
		mode Mode
		want string
	}{
		{"minimal", ModeMinimal, "◆ shop"},
		{"default", ModeDefault, "Opus | ◆ shop 94% | shop"},
		{"verbose", ModeVerbose, "Opus | ◆ shop 94% | shop | missing"},
		{"empty mode is default", "", "Opus | ◆ shop 94% | shop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Render(data, tt.mode); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderMismatchAndNoProject(t *testing.T) {
	r := NewRenderer(70, true)

	got := r.Render(&StatusData{Owner: "blog"}, ModeMinimal)
	if got != "◇ no project | ⚠ in blog" {
		t.Errorf("Render() = %q", got)
	}
	if got := r.Render(nil, ModeDefault); got != Fallback {
		t.Errorf("Render(nil) = %q, want %q", got, Fallback)
	}
	if got := r.Render(&StatusData{Project: "a\nb"}, ModeMinimal); strings.Contains(got, "\n") {
		t.Errorf("Render() contains a newline: %q", got)
	}
}

func TestBuild(t *testing.T) {
	home := t.TempDir()
	store := registry.NewStore(registry.Options{Path: filepath.Join(home, defs.RegistryJSON)})

	shop := filepath.Join(t.TempDir(), "shop")
	blog := filepath.Join(t.TempDir(), "blog")
	for _, dir := range []string{shop, blog} {
		if err := os.MkdirAll(filepath.Join(dir, defs.ConfigDir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	err := store.Update(context.Background(), func(reg *registry.Registry) error {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		for name, dir := range map[string]string{"shop": shop, "blog": blog} {
			rec := &registry.ProjectRecord{Name: name, Path: dir, CreatedAt: now}
			rec.SetScore(85)
			if err := reg.Upsert(rec); err != nil {
				return err
			}
		}
		return reg.SetActive("shop")
	})
	if err != nil {
		t.Fatal(err)
	}

	b := New(Options{Store: store, Threshold: 70, NoColor: true})

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "inside active project",
			input: `{"model":{"display_name":"Opus"},"workspace":{"current_dir":"` + shop + `"}}`,
			want:  "Opus | ◆ shop 85% | shop",
		},
		{
			name:  "inside another project",
			input: `{"cwd":"` + filepath.Join(blog, "src") + `"}`,
			want:  "◆ shop 85% | ⚠ in blog | src",
		},
		{
			name:  "invalid input",
			input: "not json",
			want:  "◆ shop 85%",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Build(strings.NewReader(tt.input)); got != tt.want {
				t.Errorf("Build() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildWithoutRegistry(t *testing.T) {
	b := New(Options{NoColor: true, Mode: ModeMinimal})
	if got := b.Build(strings.NewReader(`{}`)); got != "◇ no project" {
		t.Errorf("Build() = %q", got)
	}
}
