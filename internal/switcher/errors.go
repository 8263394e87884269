package switcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/repair"
	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/structure"
)

// Sentinel errors for the switcher package.
var (
	// ErrInvalidTarget indicates the target cannot become active: its path
	// is missing or its structure scores below the threshold.
	ErrInvalidTarget = errors.New("switcher: invalid target")

	// ErrDuplicatePath indicates another project is registered at the same path.
	ErrDuplicatePath = errors.New("switcher: path already registered")

	// ErrNoResume indicates there is no previously active project to return to.
	ErrNoResume = errors.New("switcher: no previous project recorded")
)

// RefusalError reports why a project was not activated or registered,
// with the gaps found and the command that fixes them.
type RefusalError struct {
	Project   string
	Path      string
	Cause     string
	Score     float64
	Threshold int
	Gaps      []structure.Gap
	Repair    *repair.Result
}

func (e *RefusalError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "project %q refused: ", e.Project)
	if e.Cause != "" {
		b.WriteString(e.Cause)
	} else {
		fmt.Fprintf(&b, "structure score %.2f is below threshold %d", e.Score, e.Threshold)
	}
	if len(e.Gaps) > 0 {
		ids := make([]string, len(e.Gaps))
		for i, g := range e.Gaps {
			ids[i] = g.ID
		}
		fmt.Fprintf(&b, " (gaps: %s)", strings.Join(ids, ", "))
	}
	return b.String()
}

// Is reports ErrInvalidTarget.
func (e *RefusalError) Is(target error) bool {
	return target == ErrInvalidTarget
}

// Remediation returns the command that resolves the refusal.
func (e *RefusalError) Remediation() string {
	if e.Cause != "" {
		return fmt.Sprintf("restore %s, or run: orchestrator remove %s", e.Path, e.Project)
	}
	return fmt.Sprintf("orchestrator validate %s --fix", e.Project)
}
