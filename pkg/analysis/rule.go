package analysis

import (
	"fmt"

	"github.com/marek-kar/codeaudit/pkg/catalog"
	"github.com/marek-kar/codeaudit/pkg/model"
)

// RuleEvaluationError is recovered per rule: the rule is marked
// INDETERMINATE for the file and the scan continues.
type RuleEvaluationError struct {
	RuleID string
	Err    error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s could not be evaluated: %v", e.RuleID, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error { return e.Err }

// Evaluate runs one rule against one file and reports occurrence counts,
// matched lines and the concrete defects when the rule is not satisfied.
func Evaluate(r catalog.Rule, fc model.FileContext) (f model.Finding, err error) {
	defer func() {
		if p := recover(); p != nil {
			f = model.Finding{}
			err = &RuleEvaluationError{RuleID: r.ID, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	f = model.Finding{
		RuleID:   r.ID,
		Kind:     r.Kind,
		Severity: r.Severity,
		Pass:     r.Pass(),
		Status:   model.FindingEvaluated,
	}

	switch r.Kind {
	case model.KindRequired:
		err = evaluateRequired(r, fc, &f)
	case model.KindForbidden:
		err = evaluateForbidden(r, fc, &f)
	case model.KindStructural:
		if r.ExportsMatcher() != nil {
			err = evaluateExports(r, fc, &f)
		} else {
			err = evaluateStructure(r, fc, &f)
		}
	default:
		err = fmt.Errorf("unknown kind %q", r.Kind)
	}
	if err != nil {
		return model.Finding{}, &RuleEvaluationError{RuleID: r.ID, Err: err}
	}
	f.Satisfied = len(f.Defects) == 0
	return f, nil
}

// Indeterminate is the finding recorded for a rule that failed to evaluate.
func Indeterminate(r catalog.Rule, err error) model.Finding {
	return model.Finding{
		RuleID:   r.ID,
		Kind:     r.Kind,
		Severity: r.Severity,
		Pass:     r.Pass(),
		Status:   model.FindingIndeterminate,
		Error:    err.Error(),
	}
}
