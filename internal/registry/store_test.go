package registry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// tickingClock returns a clock that advances one second per call so
// backups taken in quick succession get distinct names.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "registry.json")
	}
	if opts.Now == nil {
		opts.Now = tickingClock()
	}
	if opts.LockWait == 0 {
		opts.LockWait = 200 * time.Millisecond
	}
	return NewStore(opts)
}

func newProjectDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".claude"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func addProject(t *testing.T, s *Store, name, path string) {
	t.Helper()
	err := s.Update(context.Background(), func(r *Registry) error {
		return r.Upsert(&ProjectRecord{Name: name, Path: path, CreatedAt: time.Now().UTC()})
	})
	if err != nil {
		t.Fatalf("Update(upsert %s) error: %v", name, err)
	}
}

func TestLoadMissingFileReturnsEmptyRegistry(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	reg, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(reg.Projects) != 0 || reg.ActiveProject != "" {
		t.Errorf("expected empty registry, got %+v", reg)
	}
	if reg.Version != CurrentVersion {
		t.Errorf("Version = %q, want %q", reg.Version, CurrentVersion)
	}
}

func TestUpdatePersistsAndBacksUp(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	addProject(t, s, "alpha", newProjectDir(t))
	addProject(t, s, "beta", newProjectDir(t))

	err := s.Update(context.Background(), func(r *Registry) error {
		return r.SetActive("beta")
	})
	if err != nil {
		t.Fatalf("Update(SetActive) error: %v", err)
	}

	reg, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if reg.ActiveProject != "beta" {
		t.Errorf("ActiveProject = %q, want beta", reg.ActiveProject)
	}
	if got := reg.Names(); len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Errorf("Names() = %v", got)
	}

	backups, err := s.Backups()
	if err != nil {
		t.Fatalf("Backups() error: %v", err)
	}
	// The first save has nothing to back up.
	if len(backups) != 2 {
		t.Errorf("len(backups) = %d, want 2", len(backups))
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(s.Path()), "registry.lock")); !os.IsNotExist(err) {
		t.Error("lock file should be released after Update")
	}
}

func TestUpdateFailureWritesNothing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	addProject(t, s, "alpha", newProjectDir(t))
	before, _ := os.ReadFile(s.Path())

	boom := errors.New("boom")
	err := s.Update(context.Background(), func(r *Registry) error {
		_ = r.Remove("alpha")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	after, _ := os.ReadFile(s.Path())
	if string(before) != string(after) {
		t.Error("registry changed although fn failed")
	}
}

func TestSetActiveUnknownProject(t *testing.T) {
	t.Parallel()

	reg := New()
	_ = reg.Upsert(&ProjectRecord{Name: "web-app", Path: "/tmp/web-app"})

	err := reg.SetActive("webap")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetActive() error = %v, want ErrNotFound", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || len(nf.Suggestions) == 0 || nf.Suggestions[0] != "web-app" {
		t.Errorf("expected suggestion web-app, got %v", err)
	}
	if reg.ActiveProject != "" {
		t.Errorf("ActiveProject = %q, want empty", reg.ActiveProject)
	}
}

func TestRemoveActiveClearsPointer(t *testing.T) {
	t.Parallel()

	reg := New()
	_ = reg.Upsert(&ProjectRecord{Name: "alpha", Path: "/tmp/alpha"})
	_ = reg.SetActive("alpha")

	if err := reg.Remove("alpha"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if reg.ActiveProject != "" {
		t.Errorf("ActiveProject = %q after removal", reg.ActiveProject)
	}
	if _, ok := reg.Active(); ok {
		t.Error("Active() should report no active project")
	}
}

func TestUpsertRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	reg := New()
	if err := reg.Upsert(&ProjectRecord{Name: "Bad Name", Path: "/tmp/x"}); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Upsert(bad name) error = %v, want ErrInvalidName", err)
	}
	if err := reg.Upsert(&ProjectRecord{Name: "ok", Path: "relative/path"}); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Upsert(relative path) error = %v, want ErrInvalidPath", err)
	}
}

func TestUnknownFieldsSurviveRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	dir := newProjectDir(t)
	raw := `{
  "version": "1.0.0",
  "active_project": null,
  "future_setting": {"mode": "fast"},
  "projects": {
    "alpha": {"name": "alpha", "path": "` + dir + `", "created_at": "2026-01-01T00:00:00Z",
              "last_active_at": null, "score": 80, "color": "teal"}
  }
}`
	if err := os.WriteFile(s.Path(), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	err := s.Update(context.Background(), func(r *Registry) error {
		return r.SetActive("alpha")
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	data, _ := os.ReadFile(s.Path())
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("saved registry is not JSON: %v", err)
	}
	if _, ok := doc["future_setting"]; !ok {
		t.Error("top-level unknown field was dropped")
	}
	alpha := doc["projects"].(map[string]any)["alpha"].(map[string]any)
	if alpha["color"] != "teal" {
		t.Errorf("record unknown field = %v, want teal", alpha["color"])
	}
	if doc["active_project"] != "alpha" {
		t.Errorf("active_project = %v", doc["active_project"])
	}
}

func TestClearedActiveProjectIsNull(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(New())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"active_project":null`) {
		t.Errorf("marshalled registry = %s, want active_project null", data)
	}
}

// Not parallel: replaces the package-level rename step.
func TestSaveIsAtomicWhenRenameFails(t *testing.T) {
	s := newTestStore(t, Options{})
	addProject(t, s, "alpha", newProjectDir(t))
	before, _ := os.ReadFile(s.Path())

	orig := renameFile
	renameFile = func(string, string) error { return errors.New("injected crash") }
	defer func() { renameFile = orig }()

	err := s.Update(context.Background(), func(r *Registry) error {
		return r.Upsert(&ProjectRecord{Name: "beta", Path: "/tmp/beta"})
	})
	if err == nil {
		t.Fatal("Update() should fail when rename fails")
	}

	after, _ := os.ReadFile(s.Path())
	if string(before) != string(after) {
		t.Error("registry file changed after failed rename")
	}
	renameFile = orig
	reg, err := s.Load()
	if err != nil {
		t.Fatalf("registry must still parse: %v", err)
	}
	if _, err := reg.Get("beta"); !errors.Is(err, ErrNotFound) {
		t.Error("failed write must not be visible")
	}
}

func TestLoadRecoversFromBackup(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	addProject(t, s, "alpha", newProjectDir(t))
	addProject(t, s, "beta", newProjectDir(t))

	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, err := reg.Get("alpha"); err != nil {
		t.Errorf("restored registry lacks alpha: %v", err)
	}

	matches, _ := filepath.Glob(s.Path() + ".corrupt-*")
	if len(matches) != 1 {
		t.Fatalf("corrupt copy count = %d, want 1", len(matches))
	}
	kept, _ := os.ReadFile(matches[0])
	if string(kept) != "{not json" {
		t.Errorf("corrupt copy = %q", kept)
	}
}

func TestLoadRecoveryWaitsForLock(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{LockWait: 50 * time.Millisecond, LockStale: time.Hour})
	addProject(t, s, "alpha", newProjectDir(t))
	addProject(t, s, "beta", newProjectDir(t))
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	lockPath := filepath.Join(filepath.Dir(s.Path()), "registry.lock")
	held := `{"pid": 999999, "host": "elsewhere", "acquired_at": "` + time.Now().UTC().Format(time.RFC3339Nano) + `"}`
	if err := os.WriteFile(lockPath, []byte(held), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Load(); !errors.Is(err, ErrCorruptRegistry) {
		t.Fatalf("Load() under a held lock = %v, want ErrCorruptRegistry", err)
	}
	if data, _ := os.ReadFile(s.Path()); string(data) != "{not json" {
		t.Error("registry restored without holding the lock")
	}
	if matches, _ := filepath.Glob(s.Path() + ".corrupt-*"); len(matches) != 0 {
		t.Errorf("corrupt copies written without the lock: %v", matches)
	}

	if err := os.Remove(lockPath); err != nil {
		t.Fatal(err)
	}
	reg, err := s.Load()
	if err != nil {
		t.Fatalf("Load() after release: %v", err)
	}
	if _, err := reg.Get("alpha"); err != nil {
		t.Errorf("restored registry lacks alpha: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("recovery left the lock behind")
	}
}

func TestSaveKeepsNewerMinorVersion(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct{ stored, want string }{
		{"1.3.0", "1.3.0"},
		{"0.9.0", CurrentVersion},
	} {
		s := newTestStore(t, Options{})
		if err := os.WriteFile(s.Path(), []byte(`{"version":"`+tt.stored+`","projects":{}}`), 0o644); err != nil {
			t.Fatal(err)
		}
		addProject(t, s, "alpha", newProjectDir(t))

		data, _ := os.ReadFile(s.Path())
		var doc struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatal(err)
		}
		if doc.Version != tt.want {
			t.Errorf("stored %s: saved version = %q, want %q", tt.stored, doc.Version, tt.want)
		}
	}
}

func TestLoadCorruptWithoutBackup(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := s.Load()
	if !errors.Is(err, ErrCorruptRegistry) {
		t.Fatalf("Load() error = %v, want ErrCorruptRegistry", err)
	}
	var ce *CorruptError
	if !errors.As(err, &ce) || !strings.Contains(ce.Remediation(), "registry restore") {
		t.Errorf("CorruptError remediation missing: %v", err)
	}

	data, _ := os.ReadFile(s.Path())
	if string(data) != "garbage" {
		t.Error("corrupt registry must not be overwritten")
	}
}

func TestLoadRejectsNewerMajorVersion(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	if err := os.WriteFile(s.Path(), []byte(`{"version":"2.0.0","projects":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Load() error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestLoadClearsDanglingActiveProject(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	if err := os.WriteFile(s.Path(), []byte(`{"version":"1.0.0","active_project":"ghost","projects":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if reg.ActiveProject != "" {
		t.Errorf("ActiveProject = %q, want cleared", reg.ActiveProject)
	}
}

func TestBackupRetention(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{Backups: 3})
	for _, name := range []string{"a1", "a2", "a3", "a4", "a5", "a6"} {
		addProject(t, s, name, "/tmp/"+name)
	}

	backups, err := s.Backups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 3 {
		t.Fatalf("len(backups) = %d, want 3", len(backups))
	}
	if !backups[0].TakenAt.After(backups[2].TakenAt) {
		t.Error("backups should be listed newest first")
	}
}

func TestRestoreBackup(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{})
	addProject(t, s, "alpha", "/tmp/alpha")
	addProject(t, s, "beta", "/tmp/beta")

	backups, _ := s.Backups()
	if len(backups) != 1 {
		t.Fatalf("len(backups) = %d, want 1", len(backups))
	}

	if err := s.Restore(context.Background(), backups[0].Name); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	reg, _ := s.Load()
	if _, err := reg.Get("beta"); !errors.Is(err, ErrNotFound) {
		t.Error("restored registry should predate beta")
	}

	if err := s.Restore(context.Background(), "registry-nope.json"); !errors.Is(err, ErrBackupNotFound) {
		t.Errorf("Restore(unknown) error = %v, want ErrBackupNotFound", err)
	}
}

func TestUpdateWaitsOnHeldLock(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{LockWait: 100 * time.Millisecond, LockStale: time.Hour, Now: time.Now})
	lockPath := filepath.Join(filepath.Dir(s.Path()), "registry.lock")
	held := `{"pid": 999999, "host": "elsewhere", "acquired_at": "` + time.Now().UTC().Format(time.RFC3339Nano) + `"}`
	if err := os.WriteFile(lockPath, []byte(held), 0o644); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	err := s.Update(context.Background(), func(*Registry) error { return nil })
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("Update() error = %v, want ErrLocked", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("lock wait was not bounded")
	}
}

func TestUpdateReclaimsStaleLock(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{LockStale: time.Second, Now: time.Now})
	lockPath := filepath.Join(filepath.Dir(s.Path()), "registry.lock")
	old := `{"pid": 999999, "host": "elsewhere", "acquired_at": "2020-01-01T00:00:00Z"}`
	if err := os.WriteFile(lockPath, []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Update(context.Background(), func(r *Registry) error {
		return r.Upsert(&ProjectRecord{Name: "alpha", Path: "/tmp/alpha"})
	}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("reclaimed lock should be released")
	}
}

func TestStaleLockReclaimedOnce(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{LockStale: time.Second, Now: time.Now})
	lockPath := filepath.Join(filepath.Dir(s.Path()), "registry.lock")
	old := `{"pid": 999999, "host": "elsewhere", "acquired_at": "2020-01-01T00:00:00Z"}`
	if err := os.WriteFile(lockPath, []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}

	var (
		mu    sync.Mutex
		held  []*FileLock
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			lock, err := s.lock.tryAcquire()
			if err != nil {
				if !errors.Is(err, ErrLocked) {
					t.Errorf("tryAcquire() error = %v, want ErrLocked", err)
				}
				return
			}
			mu.Lock()
			held = append(held, lock)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	if len(held) != 1 {
		t.Fatalf("%d goroutines hold the lock, want exactly 1", len(held))
	}
	if _, err := os.Stat(lockPath + reclaimSuffix); !os.IsNotExist(err) {
		t.Error("reclaim guard left behind")
	}
	if err := held[0].Release(); err != nil {
		t.Fatal(err)
	}
}

func TestAbandonedReclaimGuardExpires(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{LockWait: 2 * time.Second, LockStale: time.Second, Now: time.Now})
	lockPath := filepath.Join(filepath.Dir(s.Path()), "registry.lock")
	old := `{"pid": 999999, "host": "elsewhere", "acquired_at": "2020-01-01T00:00:00Z"}`
	guard := lockPath + reclaimSuffix
	for _, p := range []string{lockPath, guard} {
		if err := os.WriteFile(p, []byte(old), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(guard, past, past); err != nil {
		t.Fatal(err)
	}

	if err := s.Update(context.Background(), func(*Registry) error { return nil }); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if _, err := os.Stat(guard); !os.IsNotExist(err) {
		t.Error("abandoned guard still present")
	}
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, Options{LockWait: 5 * time.Second, Now: time.Now})
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := "p" + string(rune('a'+i))
			if err := s.Update(context.Background(), func(r *Registry) error {
				return r.Upsert(&ProjectRecord{Name: name, Path: "/tmp/" + name})
			}); err != nil {
				t.Errorf("Update(%s) error: %v", name, err)
			}
		}()
	}
	wg.Wait()

	reg, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(reg.Projects) != 8 {
		t.Errorf("len(Projects) = %d, want 8 (lost updates)", len(reg.Projects))
	}
}

func TestProjectStateAndPrune(t *testing.T) {
	t.Parallel()

	valid := newProjectDir(t)
	bare := t.TempDir()
	reg := New()
	_ = reg.Upsert(&ProjectRecord{Name: "valid", Path: valid})
	_ = reg.Upsert(&ProjectRecord{Name: "bare", Path: bare})
	_ = reg.Upsert(&ProjectRecord{Name: "gone", Path: filepath.Join(bare, "missing")})

	tests := map[string]ProjectState{
		"valid": StateValid,
		"bare":  StateUninitialized,
		"gone":  StateMissing,
	}
	for name, want := range tests {
		rec, _ := reg.Get(name)
		if got := rec.State(); got != want {
			t.Errorf("State(%s) = %s, want %s", name, got, want)
		}
	}

	removed := reg.Prune()
	if len(removed) != 2 || removed[0] != "bare" || removed[1] != "gone" {
		t.Errorf("Prune() = %v, want [bare gone]", removed)
	}
	if len(reg.Projects) != 1 {
		t.Errorf("len(Projects) = %d after prune", len(reg.Projects))
	}
}

func TestFindByPath(t *testing.T) {
	t.Parallel()

	reg := New()
	_ = reg.Upsert(&ProjectRecord{Name: "mono", Path: "/work/mono"})
	_ = reg.Upsert(&ProjectRecord{Name: "svc", Path: "/work/mono/services/svc"})

	tests := []struct {
		dir  string
		want string
	}{
		{"/work/mono", "mono"},
		{"/work/mono/docs", "mono"},
		{"/work/mono/services/svc/cmd", "svc"},
		{"/work/monolith", ""},
	}
	for _, tt := range tests {
		rec, ok := reg.FindByPath(tt.dir)
		got := ""
		if ok {
			got = rec.Name
		}
		if got != tt.want {
			t.Errorf("FindByPath(%q) = %q, want %q", tt.dir, got, tt.want)
		}
	}
}
