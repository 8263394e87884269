package config

import (
	"log/slog"
	"slices"
	"time"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the settings for correctness and returns
// *ValidationErrors listing every problem found.
func Validate(s *Settings) error {
	var errs []ValidationError

	if s.Home == "" {
		errs = append(errs, ValidationError{
			Field:   KeyHome,
			Message: "orchestrator home must not be empty; set ORCHESTRATOR_HOME or --home",
			Wrapped: ErrInvalidConfig,
		})
	}

	if s.Validation.Threshold < 0 || s.Validation.Threshold > 100 {
		errs = append(errs, ValidationError{
			Field:   KeyThreshold,
			Message: "must be between 0 and 100",
			Value:   s.Validation.Threshold,
			Wrapped: ErrInvalidThreshold,
		})
	}

	if s.Matcher.TopK < 1 {
		errs = append(errs, ValidationError{
			Field:   KeyTopK,
			Message: "must be at least 1",
			Value:   s.Matcher.TopK,
			Wrapped: ErrInvalidConfig,
		})
	}

	if s.Registry.Backups < 1 {
		errs = append(errs, ValidationError{
			Field:   KeyBackups,
			Message: "at least one backup must be retained",
			Value:   s.Registry.Backups,
			Wrapped: ErrInvalidConfig,
		})
	}

	errs = append(errs, validateDurations(map[string]time.Duration{
		KeyDefaultThrottle: s.Matcher.DefaultThrottle,
		KeyLockWait:        s.Registry.LockWait,
		KeyLockStale:       s.Registry.LockStale,
		KeyHookTimeout:     s.Hook.Timeout,
	})...)

	if s.Hook.Command == "" {
		errs = append(errs, ValidationError{
			Field:   KeyHookCommand,
			Message: "must name the orchestrator executable",
			Value:   s.Hook.Command,
			Wrapped: ErrInvalidConfig,
		})
	}

	if !slices.Contains(validLogLevels, s.Log.Level) {
		errs = append(errs, ValidationError{
			Field:   KeyLogLevel,
			Message: "unknown level",
			Value:   s.Log.Level,
			Wrapped: ErrInvalidLogLevel,
		})
	}

	if s.Log.Format != "text" && s.Log.Format != "json" {
		errs = append(errs, ValidationError{
			Field:   KeyLogFormat,
			Message: "must be text or json",
			Value:   s.Log.Format,
			Wrapped: ErrInvalidConfig,
		})
	}

	if len(errs) > 0 {
		return &ValidationErrors{Errors: errs}
	}
	return nil
}

func validateDurations(durations map[string]time.Duration) []ValidationError {
	var errs []ValidationError
	for _, key := range []string{KeyDefaultThrottle, KeyLockWait, KeyLockStale, KeyHookTimeout} {
		if d := durations[key]; d <= 0 {
			errs = append(errs, ValidationError{
				Field:   key,
				Message: "must be a positive duration such as 30s or 10m",
				Value:   d,
				Wrapped: ErrInvalidDuration,
			})
		}
	}
	return errs
}

// SlogLevel maps the configured level name onto slog.Level.
func (l LogSettings) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
