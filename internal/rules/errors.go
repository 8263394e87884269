package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for rule set operations.
var (
	// ErrNoRuleSet indicates the project has no skill-rules file.
	ErrNoRuleSet = errors.New("rules: no rule set found")

	// ErrInvalidRuleSet indicates the rule set failed to parse or validate.
	ErrInvalidRuleSet = errors.New("rules: invalid rule set")
)

// SchemaError describes one invalid field in a rule set, with a hint on
// how to correct it.
type SchemaError struct {
	Index      int
	SkillID    string
	Field      string
	Message    string
	Suggestion string
}

// Error implements the error interface.
func (e SchemaError) Error() string {
	loc := fmt.Sprintf("rules[%d]", e.Index)
	if e.SkillID != "" {
		loc += fmt.Sprintf(" (%s)", e.SkillID)
	}
	msg := fmt.Sprintf("%s.%s: %s", loc, e.Field, e.Message)
	if e.Suggestion != "" {
		msg += " (" + e.Suggestion + ")"
	}
	return msg
}

// SchemaErrors collects every problem found in a rule set.
type SchemaErrors struct {
	Source string
	Errors []SchemaError
}

// Error implements the error interface.
func (e *SchemaErrors) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, se := range e.Errors {
		msgs[i] = se.Error()
	}
	return fmt.Sprintf("rules: %s has %d schema error(s): %s", e.Source, len(e.Errors), strings.Join(msgs, "; "))
}

// Is reports whether target is ErrInvalidRuleSet.
func (e *SchemaErrors) Is(target error) bool {
	return target == ErrInvalidRuleSet
}
