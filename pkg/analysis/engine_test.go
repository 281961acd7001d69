package analysis

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marek-kar/codeaudit/pkg/catalog"
	"github.com/marek-kar/codeaudit/pkg/model"
	"github.com/marek-kar/codeaudit/pkg/render"
)

var baseRules = []string{
	`{id: REQ-1, category: header, severity: CRITICAL, kind: REQUIRED, pattern: '^# 1\. SYSTEM IMPORTS', remediation: add banner 1}`,
	`{id: REQ-2, category: header, severity: CRITICAL, kind: REQUIRED, pattern: '^# 2\. PROJECT IMPORTS', remediation: add banner 2}`,
	`{id: STR-DEPTH, category: structure, severity: CRITICAL, kind: STRUCTURAL, depth_variants: [{min_depth: 0, pattern: 'resolve\(\)\.parent\)'}, {min_depth: 1, pattern: 'resolve\(\)\.parent\.parent\)'}], remediation: fix project_root}`,
	`{id: SEC-EVAL, category: safety, severity: CRITICAL, kind: FORBIDDEN, immediate: true, pattern: 'eval\(', remediation: remove eval}`,
	exportsRule,
	`{id: STY-TODO, category: style, severity: MINOR, kind: FORBIDDEN, pattern: '# TODO', match: contains, remediation: resolve the todo}`,
}

func compliant(extra ...string) []string {
	lines := []string{
		"# 1. SYSTEM IMPORTS",
		"import sys",
		"project_root = str(Path(__file__).resolve().parent.parent)",
		"# 2. PROJECT IMPORTS",
		"def run():",
		`    """`,
		"    Description: run it.",
		`    """`,
		"    return 1",
	}
	lines = append(lines, extra...)
	return append(lines, "__all__ = [", `    "run",`, "]")
}

func scan(t *testing.T, c *catalog.Catalog, fc model.FileContext) *model.ScanResult {
	t.Helper()
	res := NewEngine(c).Scan(fc)
	require.NoError(t, render.Check(res))
	return res
}

func ofKind(vs []model.Violation, k model.Kind) []model.Violation {
	var out []model.Violation
	for _, v := range vs {
		if v.Kind == k {
			out = append(out, v)
		}
	}
	return out
}

func TestScan_Compliant(t *testing.T) {
	res := scan(t, mustCatalog(t, baseRules...), file(1, compliant()...))

	assert.Equal(t, model.VerdictPass, res.Verdict())
	assert.Empty(t, res.Violations)
	assert.Equal(t, model.PassEvaluated, res.Pass2.Status)
	assert.Len(t, res.Pass1.Findings, 4)
	assert.Len(t, res.Pass2.Findings, 2)
}

func TestScan_ScenarioA_NoMarkers(t *testing.T) {
	res := scan(t, mustCatalog(t, baseRules...), file(1, "x = 1", "# TODO tidy"))

	required := ofKind(res.Violations, model.KindRequired)
	require.Len(t, required, 2)
	for _, v := range required {
		assert.Equal(t, model.SeverityCritical, v.Severity)
		assert.Equal(t, 0, v.Line)
		assert.Equal(t, catalog.DefaultAnchor, v.Anchor)
	}
	assert.Equal(t, model.PassNotEvaluated, res.Pass2.Status)
	assert.NotNil(t, res.Pass2.Findings)
	assert.Empty(t, res.Pass2.Findings)
	assert.Empty(t, res.ViolationsIn(model.PassSemantic))
	assert.Equal(t, model.VerdictFail, res.Verdict())
}

func TestScan_ScenarioB_MissingDescription(t *testing.T) {
	lines := compliant()
	lines[6] = "    return 0"
	res := scan(t, mustCatalog(t, baseRules...), file(1, lines...))

	assert.Empty(t, res.ViolationsIn(model.PassMechanical))
	require.Len(t, res.Violations, 1)
	v := res.Violations[0]
	assert.Equal(t, "D1", v.RuleID)
	assert.Equal(t, model.SeverityMajor, v.Severity)
	assert.Equal(t, model.PassSemantic, v.Pass)
	assert.Equal(t, 5, v.Line)
	assert.Equal(t, model.VerdictFail, res.Verdict())
}

func TestScan_ScenarioC_MinorOnly(t *testing.T) {
	res := scan(t, mustCatalog(t, baseRules...), file(1, compliant("# TODO merge with the duplicate helper")...))

	require.Len(t, res.Violations, 1)
	assert.Equal(t, model.SeverityMinor, res.Violations[0].Severity)
	assert.Equal(t, model.Counts{Minor: 1}, res.Counts)
	assert.Equal(t, model.VerdictConditionalPass, res.Verdict())
}

func TestScan_ScenarioD_ForbiddenTwice(t *testing.T) {
	res := scan(t, mustCatalog(t, baseRules...), file(1, compliant("    a = eval(x)", "    b = eval(y)")...))

	forbidden := ofKind(res.ViolationsIn(model.PassMechanical), model.KindForbidden)
	require.Len(t, forbidden, 2)
	assert.Equal(t, 10, forbidden[0].Line)
	assert.Equal(t, 11, forbidden[1].Line)
	assert.Equal(t, model.PassNotEvaluated, res.Pass2.Status)
}

func TestScan_ScenarioE_DepthMismatch(t *testing.T) {
	lines := compliant()
	lines[2] = "project_root = str(Path(__file__).resolve().parent)"
	res := scan(t, mustCatalog(t, baseRules...), file(1, lines...))

	structural := ofKind(res.Violations, model.KindStructural)
	require.Len(t, structural, 1)
	assert.Equal(t, 3, structural[0].Line)
	assert.Contains(t, structural[0].Message, "depth mismatch")
	assert.NotContains(t, structural[0].Message, "missing")
}

func TestScan_Idempotent(t *testing.T) {
	c := mustCatalog(t, baseRules...)
	fc := file(1, compliant("# TODO one", "x = eval(1)")...)

	a := scan(t, c, fc)
	b := scan(t, c, fc)
	assert.Equal(t, a, b)

	var ra, rb bytes.Buffer
	for _, pair := range []struct {
		res *model.ScanResult
		buf *bytes.Buffer
	}{{a, &ra}, {b, &rb}} {
		s := model.NewSummary(c.Ref(), []model.FileOutcome{model.NewFileOutcome(fc.Path, pair.res, nil)})
		require.NoError(t, render.New(render.FormatText, render.Options{}).Render(pair.buf, s))
	}
	assert.Equal(t, ra.String(), rb.String())
}

func TestScan_Monotonic(t *testing.T) {
	inputs := [][]string{
		compliant(),
		compliant("# TODO later"),
		{"x = 1"},
	}
	unused := `{id: NEW-1, category: extra, severity: CRITICAL, kind: FORBIDDEN, pattern: 'os\.system\(', remediation: r}`
	violated := `{id: NEW-2, category: extra, severity: MINOR, kind: FORBIDDEN, immediate: true, pattern: 'import', remediation: r}`

	rank := map[model.Verdict]int{model.VerdictPass: 0, model.VerdictConditionalPass: 1, model.VerdictFail: 2}
	for _, lines := range inputs {
		fc := file(1, lines...)
		before := scan(t, mustCatalog(t, baseRules...), fc).Verdict()

		withUnused := scan(t, mustCatalog(t, append(append([]string{}, baseRules...), unused)...), fc).Verdict()
		assert.Equal(t, before, withUnused)

		withViolated := scan(t, mustCatalog(t, append(append([]string{}, baseRules...), violated)...), fc).Verdict()
		assert.GreaterOrEqual(t, rank[withViolated], rank[before])
	}
}

func TestScan_RuleOrderIndependent(t *testing.T) {
	reversed := make([]string, len(baseRules))
	for i, r := range baseRules {
		reversed[len(baseRules)-1-i] = r
	}
	for _, lines := range [][]string{compliant("# TODO x"), {"x = eval(1)"}, compliant("eval(2)")} {
		fc := file(1, lines...)
		a := scan(t, mustCatalog(t, baseRules...), fc)
		b := scan(t, mustCatalog(t, reversed...), fc)
		assert.Equal(t, a.Violations, b.Violations)
		assert.Equal(t, a.Pass1.Findings, b.Pass1.Findings)
	}
}

func TestScan_IndeterminateRule(t *testing.T) {
	lines := compliant("# TODO later")
	lines = lines[:len(lines)-1]
	res := scan(t, mustCatalog(t, baseRules...), file(1, lines...))

	require.Equal(t, model.PassEvaluated, res.Pass2.Status)
	var meta *model.Violation
	for i := range res.Violations {
		if res.Violations[i].RuleID == "D1" {
			meta = &res.Violations[i]
		}
	}
	require.NotNil(t, meta)
	assert.Equal(t, model.SeverityMajor, meta.Severity)
	assert.True(t, strings.HasPrefix(meta.Message, "rule D1 could not be evaluated"))

	var statuses []model.FindingStatus
	for _, f := range res.Pass2.Findings {
		statuses = append(statuses, f.Status)
	}
	assert.ElementsMatch(t, []model.FindingStatus{model.FindingIndeterminate, model.FindingEvaluated}, statuses)
	assert.Equal(t, model.Counts{Major: 1, Minor: 1}, res.Counts)
}

func TestScan_MissingDefinitionsOnOneListLineShareAViolation(t *testing.T) {
	res := scan(t, mustCatalog(t, exportsRule), file(0, `__all__ = ["alpha", "beta"]`))

	require.Len(t, res.Violations, 1)
	v := res.Violations[0]
	assert.Equal(t, 1, v.Line)
	assert.Equal(t, `exported name "alpha" has no definition; exported name "beta" has no definition`, v.Message)
	assert.Equal(t, model.Counts{Major: 1}, res.Counts)
}

func TestScan_Applicability(t *testing.T) {
	c := mustCatalog(t,
		`{id: DEEP, category: c, severity: CRITICAL, kind: REQUIRED, pattern: never, applicability: {min_depth: 2}, remediation: r}`,
		`{id: PY, category: c, severity: MINOR, kind: REQUIRED, pattern: nowhere, applicability: {extensions: [".go"]}, remediation: r}`,
	)
	res := scan(t, c, file(1, "x = 1"))
	assert.Empty(t, res.Pass1.Findings)
	assert.Equal(t, model.VerdictPass, res.Verdict())

	res = scan(t, c, file(2, "x = 1"))
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "DEEP", res.Violations[0].RuleID)
}

func TestScan_StateTransitions(t *testing.T) {
	c := mustCatalog(t, baseRules...)
	e := NewEngine(c)

	var got []State
	e.Observe(func(file string, from, to State) { got = append(got, to) })

	e.Scan(file(1, compliant()...))
	assert.Equal(t, []State{StatePass1Running, StatePass1Clean, StatePass2Running, StateDone}, got)

	got = nil
	e.Scan(file(1, "x = 1"))
	assert.Equal(t, []State{StatePass1Running, StatePass1CriticalFound, StateDone}, got)
}

func TestScanState_IllegalTransitionPanics(t *testing.T) {
	s := &scanState{state: StateNotStarted}
	assert.Panics(t, func() { s.advance(StateDone) })
}
