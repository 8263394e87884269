package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
)

// Settings is the resolved orchestrator configuration.
type Settings struct {
	Home       string
	Validation ValidationSettings
	Matcher    MatcherSettings
	Registry   RegistrySettings
	Hook       HookSettings
	Log        LogSettings
}

// ValidationSettings controls the switch and register gates.
type ValidationSettings struct {
	Threshold  int
	AutoRepair bool
}

// MatcherSettings controls suggestion output.
type MatcherSettings struct {
	TopK            int
	DefaultThrottle time.Duration
}

// RegistrySettings controls persistence and locking of the registry file.
type RegistrySettings struct {
	Backups   int
	LockWait  time.Duration
	LockStale time.Duration
}

// HookSettings bounds the Claude Code hook entry points.
type HookSettings struct {
	Timeout time.Duration
	// Command is the executable that generated hook scripts and the
	// status line invoke.
	Command string
}

// LogSettings selects the slog handler.
type LogSettings struct {
	Level  string
	Format string
}

// RegistryPath returns the registry file location under Home.
func (s *Settings) RegistryPath() string {
	return filepath.Join(s.Home, defs.RegistryJSON)
}

// Path joins name onto the orchestrator home.
func (s *Settings) Path(name string) string {
	return filepath.Join(s.Home, name)
}

// NewViper returns a viper instance with defaults and the ORCHESTRATOR_
// environment binding applied. Nested keys map to ORCHESTRATOR_SECTION_KEY.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(defs.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads config.yaml from the resolved home (if present) and returns
// validated Settings. A missing file is not an error.
func Load(v *viper.Viper) (*Settings, error) {
	home := v.GetString(KeyHome)
	if home == "" {
		home = DefaultHome()
	}

	v.SetConfigName(strings.TrimSuffix(defs.ConfigYAML, filepath.Ext(defs.ConfigYAML)))
	v.SetConfigType("yaml")
	v.AddConfigPath(home)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
		}
	}

	s := &Settings{
		Home: home,
		Validation: ValidationSettings{
			Threshold:  v.GetInt(KeyThreshold),
			AutoRepair: v.GetBool(KeyAutoRepair),
		},
		Matcher: MatcherSettings{
			TopK:            v.GetInt(KeyTopK),
			DefaultThrottle: v.GetDuration(KeyDefaultThrottle),
		},
		Registry: RegistrySettings{
			Backups:   v.GetInt(KeyBackups),
			LockWait:  v.GetDuration(KeyLockWait),
			LockStale: v.GetDuration(KeyLockStale),
		},
		Hook: HookSettings{
			Timeout: v.GetDuration(KeyHookTimeout),
			Command: strings.TrimSpace(v.GetString(KeyHookCommand)),
		},
		Log: LogSettings{
			Level:  strings.ToLower(v.GetString(KeyLogLevel)),
			Format: strings.ToLower(v.GetString(KeyLogFormat)),
		},
	}

	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}
