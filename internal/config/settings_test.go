package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ORCHESTRATOR_HOME", home)

	s, err := Load(NewViper())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.Home != home {
		t.Errorf("Home = %q, want %q", s.Home, home)
	}
	if s.Validation.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %d, want %d", s.Validation.Threshold, DefaultThreshold)
	}
	if !s.Validation.AutoRepair {
		t.Error("AutoRepair should default to true")
	}
	if s.Matcher.TopK != DefaultTopK {
		t.Errorf("TopK = %d, want %d", s.Matcher.TopK, DefaultTopK)
	}
	if s.Registry.LockStale != DefaultLockStale {
		t.Errorf("LockStale = %v, want %v", s.Registry.LockStale, DefaultLockStale)
	}
	if s.Hook.Timeout != 100*time.Millisecond {
		t.Errorf("Hook.Timeout = %v, want 100ms", s.Hook.Timeout)
	}
	if got := s.RegistryPath(); got != filepath.Join(home, "registry.json") {
		t.Errorf("RegistryPath() = %q", got)
	}
}

func TestLoadConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ORCHESTRATOR_HOME", home)

	content := "validation:\n  threshold: 85\n  auto_repair: false\nmatcher:\n  top_k: 5\n  default_throttle: 2m\nregistry:\n  lock_wait: 1s\n"
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(NewViper())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.Validation.Threshold != 85 {
		t.Errorf("Threshold = %d, want 85", s.Validation.Threshold)
	}
	if s.Validation.AutoRepair {
		t.Error("AutoRepair = true, want false")
	}
	if s.Matcher.TopK != 5 {
		t.Errorf("TopK = %d, want 5", s.Matcher.TopK)
	}
	if s.Matcher.DefaultThrottle != 2*time.Minute {
		t.Errorf("DefaultThrottle = %v, want 2m", s.Matcher.DefaultThrottle)
	}
	if s.Registry.LockWait != time.Second {
		t.Errorf("LockWait = %v, want 1s", s.Registry.LockWait)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ORCHESTRATOR_HOME", home)
	t.Setenv("ORCHESTRATOR_VALIDATION_THRESHOLD", "55")
	t.Setenv("ORCHESTRATOR_LOG_LEVEL", "debug")
	t.Setenv("ORCHESTRATOR_HOOK_TIMEOUT", "250ms")
	t.Setenv("ORCHESTRATOR_HOOK_COMMAND", "/opt/bin/orchestrator")

	s, err := Load(NewViper())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.Validation.Threshold != 55 {
		t.Errorf("Threshold = %d, want 55", s.Validation.Threshold)
	}
	if s.Hook.Timeout != 250*time.Millisecond {
		t.Errorf("Hook.Timeout = %v, want 250ms", s.Hook.Timeout)
	}
	if s.Hook.Command != "/opt/bin/orchestrator" {
		t.Errorf("Hook.Command = %q", s.Hook.Command)
	}
	if s.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", s.Log.SlogLevel())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ORCHESTRATOR_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte("validation: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(NewViper())
	if !errors.Is(err, ErrInvalidYAML) {
		t.Errorf("Load() error = %v, want ErrInvalidYAML", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr error
	}{
		{"defaults are valid", func(*Settings) {}, nil},
		{"threshold above 100", func(s *Settings) { s.Validation.Threshold = 101 }, ErrInvalidThreshold},
		{"negative threshold", func(s *Settings) { s.Validation.Threshold = -1 }, ErrInvalidThreshold},
		{"zero top k", func(s *Settings) { s.Matcher.TopK = 0 }, ErrInvalidConfig},
		{"zero lock wait", func(s *Settings) { s.Registry.LockWait = 0 }, ErrInvalidDuration},
		{"zero hook timeout", func(s *Settings) { s.Hook.Timeout = 0 }, ErrInvalidDuration},
		{"empty hook command", func(s *Settings) { s.Hook.Command = "" }, ErrInvalidConfig},
		{"unknown log level", func(s *Settings) { s.Log.Level = "verbose" }, ErrInvalidLogLevel},
		{"unknown log format", func(s *Settings) { s.Log.Format = "xml" }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewDefaultSettings()
			tt.mutate(s)
			err := Validate(s)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			var ve *ValidationErrors
			if !errors.As(err, &ve) || len(ve.Errors) != 1 {
				t.Errorf("expected exactly one ValidationError, got %v", err)
			}
		})
	}
}
