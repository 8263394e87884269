package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/defs"
)

// Default value constants to avoid magic numbers and strings.
const (
	DefaultThreshold       = 70
	DefaultAutoRepair      = true
	DefaultTopK            = 3
	DefaultThrottleWindow  = 10 * time.Minute
	DefaultBackupRetention = 10
	DefaultLockWait        = 5 * time.Second
	DefaultLockStale       = 30 * time.Second
	DefaultHookTimeout     = 100 * time.Millisecond
	DefaultHookCommand     = "orchestrator"

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
)

// Setting keys shared by viper, flags and environment bindings.
const (
	KeyHome            = "home"
	KeyThreshold       = "validation.threshold"
	KeyAutoRepair      = "validation.auto_repair"
	KeyTopK            = "matcher.top_k"
	KeyDefaultThrottle = "matcher.default_throttle"
	KeyBackups         = "registry.backups"
	KeyLockWait        = "registry.lock_wait"
	KeyLockStale       = "registry.lock_stale"
	KeyHookTimeout     = "hook.timeout"
	KeyHookCommand     = "hook.command"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
)

// DefaultHome returns ~/.claude/orchestrator, falling back to a relative
// directory when the home directory cannot be determined.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(defs.ConfigDir, defs.HomeDirName)
	}
	return filepath.Join(home, defs.ConfigDir, defs.HomeDirName)
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyHome, DefaultHome())
	v.SetDefault(KeyThreshold, DefaultThreshold)
	v.SetDefault(KeyAutoRepair, DefaultAutoRepair)
	v.SetDefault(KeyTopK, DefaultTopK)
	v.SetDefault(KeyDefaultThrottle, DefaultThrottleWindow)
	v.SetDefault(KeyBackups, DefaultBackupRetention)
	v.SetDefault(KeyLockWait, DefaultLockWait)
	v.SetDefault(KeyLockStale, DefaultLockStale)
	v.SetDefault(KeyHookTimeout, DefaultHookTimeout)
	v.SetDefault(KeyHookCommand, DefaultHookCommand)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
}

// NewDefaultSettings returns the built-in settings without consulting
// files or the environment.
func NewDefaultSettings() *Settings {
	return &Settings{
		Home: DefaultHome(),
		Validation: ValidationSettings{
			Threshold:  DefaultThreshold,
			AutoRepair: DefaultAutoRepair,
		},
		Matcher: MatcherSettings{
			TopK:            DefaultTopK,
			DefaultThrottle: DefaultThrottleWindow,
		},
		Registry: RegistrySettings{
			Backups:   DefaultBackupRetention,
			LockWait:  DefaultLockWait,
			LockStale: DefaultLockStale,
		},
		Hook: HookSettings{
			Timeout: DefaultHookTimeout,
			Command: DefaultHookCommand,
		},
		Log: LogSettings{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
