package index

import (
	"strings"

	serrors "github.com/Aman-CERP/issuesync/internal/errors"
)

// Cause is why a project-level indexing pass was requested.
type Cause string

const (
	CauseCreation         Cause = "CREATION"
	CauseKeyUpdate        Cause = "KEY_UPDATE"
	CauseTagsUpdate       Cause = "TAGS_UPDATE"
	CauseDeletion         Cause = "DELETION"
	CausePermissionChange Cause = "PERMISSION_CHANGE"
	CauseAnalysis         Cause = "ANALYSIS"
	CauseManual           Cause = "MANUAL"
)

var causes = []Cause{
	CauseCreation, CauseKeyUpdate, CauseTagsUpdate, CauseDeletion,
	CausePermissionChange, CauseAnalysis, CauseManual,
}

// Causes returns every known cause.
func Causes() []Cause {
	return append([]Cause(nil), causes...)
}

// ParseCause parses a cause name, case-insensitively.
func ParseCause(s string) (Cause, error) {
	c := Cause(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range causes {
		if c == known {
			return c, nil
		}
	}
	return "", serrors.New(serrors.ErrCodeUnknownCause, "unknown cause "+s, nil).
		WithSuggestion("use one of CREATION, KEY_UPDATE, TAGS_UPDATE, DELETION, PERMISSION_CHANGE, ANALYSIS, MANUAL")
}

// ProducesRecoveryWork reports whether a project pass for this cause can leave
// index state behind. A project that was just created, renamed or retagged has
// no orphaned documents; a deleted one leaves every document it had.
func (c Cause) ProducesRecoveryWork() bool {
	return c == CauseDeletion
}

func (c Cause) String() string {
	return string(c)
}
