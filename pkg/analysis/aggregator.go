package analysis

import (
	"sort"
	"strings"

	"github.com/marek-kar/codeaudit/pkg/catalog"
	"github.com/marek-kar/codeaudit/pkg/model"
)

const indeterminateRemediation = "Check the rule definition against this file's layout; the rule was skipped for this file."

type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Violations turns the failed findings of one pass into classified
// violations. INDETERMINATE findings become a MAJOR meta-violation.
func (a *Aggregator) Violations(file string, rules map[string]catalog.Rule, findings []model.Finding) []model.Violation {
	var out []model.Violation
	for _, f := range findings {
		r := rules[f.RuleID]
		if f.Status == model.FindingIndeterminate {
			out = append(out, model.Violation{
				RuleID:        f.RuleID,
				Category:      r.Category,
				File:          file,
				Severity:      model.SeverityMajor,
				Kind:          f.Kind,
				Pass:          f.Pass,
				Anchor:        "rule evaluation",
				Message:       f.Error,
				Remediation:   indeterminateRemediation,
				Indeterminate: true,
			})
			continue
		}
		for _, d := range f.Defects {
			v := model.Violation{
				RuleID:      f.RuleID,
				Category:    r.Category,
				File:        file,
				Line:        d.Line,
				Severity:    r.Severity,
				Kind:        f.Kind,
				Pass:        f.Pass,
				Message:     d.Message,
				Remediation: r.Remediation,
			}
			if d.Line == 0 {
				v.Anchor = r.AnchorText()
			}
			out = append(out, v)
		}
	}
	return out
}

// Merge deduplicates by (rule, file, line) and returns the violations in
// report order.
func (a *Aggregator) Merge(groups ...[]model.Violation) []model.Violation {
	order := make([]string, 0)
	byKey := make(map[string]model.Violation)

	for _, g := range groups {
		for _, v := range g {
			key := v.Key()
			if prev, ok := byKey[key]; ok {
				byKey[key] = mergePair(prev, v)
				continue
			}
			order = append(order, key)
			byKey[key] = v
		}
	}

	result := make([]model.Violation, 0, len(order))
	for _, key := range order {
		result = append(result, byKey[key])
	}
	SortViolations(result)
	return result
}

func mergePair(primary, secondary model.Violation) model.Violation {
	if secondary.Severity.Rank() > primary.Severity.Rank() {
		primary.Severity = secondary.Severity
	}
	if secondary.Message != "" && !containsPart(primary.Message, secondary.Message) {
		msgs := []string{primary.Message, secondary.Message}
		sort.Strings(msgs)
		primary.Message = strings.Join(msgs, "; ")
	}
	return primary
}

func containsPart(joined, part string) bool {
	for _, p := range strings.Split(joined, "; ") {
		if p == part {
			return true
		}
	}
	return false
}

// SortViolations applies the stable report order: severity descending,
// then line, rule id and message ascending.
func SortViolations(vs []model.Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		ri, rj := vs[i].Severity.Rank(), vs[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		if vs[i].Line != vs[j].Line {
			return vs[i].Line < vs[j].Line
		}
		if vs[i].RuleID != vs[j].RuleID {
			return vs[i].RuleID < vs[j].RuleID
		}
		return vs[i].Message < vs[j].Message
	})
}
