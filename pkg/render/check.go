package render

import (
	"errors"
	"fmt"
	"sort"

	"github.com/marek-kar/codeaudit/pkg/model"
)

// ErrVerdictInconsistency means a scan result contradicts itself. It points
// at a defect in the engine and must never be reported as a verdict.
var ErrVerdictInconsistency = errors.New("verdict inconsistency")

func inconsistent(file, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrVerdictInconsistency, file, fmt.Sprintf(format, args...))
}

// Check recomputes the counts of a result from its violations and compares
// them with what the result claims.
func Check(r *model.ScanResult) error {
	recount := model.CountViolations(r.Violations)
	if recount != r.Counts {
		return inconsistent(r.File, "counts %s, violations add up to %s", r.Counts, recount)
	}
	if sum := r.Pass1.Counts.Plus(r.Pass2.Counts); sum != r.Counts {
		return inconsistent(r.File, "pass counts add up to %s, total is %s", sum, r.Counts)
	}
	if r.Pass1Only() {
		if r.Pass1.Counts.Critical == 0 {
			return inconsistent(r.File, "pass 2 skipped without a CRITICAL pass 1 violation")
		}
		if len(r.ViolationsIn(model.PassSemantic)) > 0 {
			return inconsistent(r.File, "pass 2 violations present but pass 2 was not evaluated")
		}
	}
	ordered := sort.SliceIsSorted(r.Violations, func(i, j int) bool {
		a, b := r.Violations[i], r.Violations[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.Message < b.Message
	})
	if !ordered {
		return inconsistent(r.File, "violations are not in report order")
	}
	return nil
}
