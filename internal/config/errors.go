// Package config provides settings management for the orchestrator.
// It resolves the orchestrator home, reads config.yaml through viper,
// applies environment and flag overrides, and validates the result.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Sentinel errors for configuration operations.
var (
	// ErrInvalidConfig indicates the configuration is invalid.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrInvalidThreshold indicates a validation threshold outside 0..100.
	ErrInvalidThreshold = errors.New("config: threshold must be between 0 and 100")

	// ErrInvalidDuration indicates a non-positive duration setting.
	ErrInvalidDuration = errors.New("config: duration must be positive")

	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("config: invalid log level, must be one of: debug, info, warn, error")

	// ErrInvalidYAML indicates invalid YAML syntax in the configuration file.
	ErrInvalidYAML = errors.New("config: invalid YAML syntax")
)

// ValidationError reports one invalid setting by its config key.
type ValidationError struct {
	Field   string
	Message string
	Value   any
	Wrapped error
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return e.Field + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return e.Wrapped
}

// ValidationErrors collects every invalid setting found by Validate. It
// matches ErrInvalidConfig and the sentinel of each contained error.
type ValidationErrors struct {
	Errors []ValidationError
}

func (e *ValidationErrors) Error() string {
	var b strings.Builder
	b.WriteString("invalid settings")
	for i, ve := range e.Errors {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(ve.Error())
	}
	return b.String()
}

func (e *ValidationErrors) Is(target error) bool {
	if target == ErrInvalidConfig {
		return true
	}
	return slices.ContainsFunc(e.Errors, func(ve ValidationError) bool {
		return ve.Wrapped != nil && errors.Is(ve.Wrapped, target)
	})
}
