package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marek-kar/codeaudit/pkg/model"
)

const testRules = `
version: "1"
name: cli
rules:
  - {id: HDR, category: header, severity: CRITICAL, kind: REQUIRED, pattern: '^# header', remediation: add the header}
  - {id: TODO, category: style, severity: MINOR, kind: FORBIDDEN, pattern: 'TODO', match: contains, remediation: resolve it}
`

type workspace struct {
	dir     string
	ruleset string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{dir: dir, ruleset: filepath.Join(dir, "rules.yaml")}
	require.NoError(t, os.WriteFile(ws.ruleset, []byte(testRules), 0o644))
	return ws
}

func (ws workspace) file(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(ws.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestAudit_ExitCodes(t *testing.T) {
	ws := newWorkspace(t)
	pass := ws.file(t, "pass.py", "# header\nx = 1\n")
	minor := ws.file(t, "minor.py", "# header\n# TODO\n")
	fail := ws.file(t, "fail.py", "x = 1\n")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"pass", []string{pass}, exitOK},
		{"conditional pass", []string{minor}, exitOK},
		{"fail", []string{fail}, exitFail},
		{"fail wins over pass", []string{pass, fail}, exitFail},
		{"unreadable file", []string{pass, filepath.Join(ws.dir, "missing.py")}, exitLoad},
		{"unreadable beats fail", []string{fail, filepath.Join(ws.dir, "missing.py")}, exitLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := execute(append([]string{"--ruleset", ws.ruleset, "--root", ws.dir}, tt.args...)...)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestAudit_BadRuleset(t *testing.T) {
	ws := newWorkspace(t)
	target := ws.file(t, "a.py", "# header\n")
	bad := ws.file(t, "bad.yaml", "version: \"1\"\nrules:\n  - {id: a, category: c, severity: SEVERE, kind: REQUIRED, pattern: '(', remediation: r}\n")

	code, stdout, stderr := execute("--ruleset", bad, target)
	assert.Equal(t, exitLoad, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "invalid ruleset")
	assert.Contains(t, stderr, "rule a: severity")
	assert.Contains(t, stderr, "rule a: pattern")

	code, _, stderr = execute("--ruleset", filepath.Join(ws.dir, "none.yaml"), target)
	assert.Equal(t, exitLoad, code)
	assert.Contains(t, stderr, "read ruleset")
}

func TestAudit_UsageErrors(t *testing.T) {
	ws := newWorkspace(t)
	target := ws.file(t, "a.py", "# header\n")

	code, _, _ := execute("--ruleset", ws.ruleset)
	assert.Equal(t, exitLoad, code)

	code, _, stderr := execute("--ruleset", ws.ruleset, "--format", "xml", target)
	assert.Equal(t, exitLoad, code)
	assert.Contains(t, stderr, "unknown format")

	code, _, stderr = execute("--ruleset", ws.ruleset, "--format", "pdf", target)
	assert.Equal(t, exitLoad, code)
	assert.Contains(t, stderr, "needs --out")
}

func TestAudit_TextReport(t *testing.T) {
	ws := newWorkspace(t)
	target := ws.file(t, "pkg/a.py", "x = 1\n")

	code, stdout, _ := execute("--ruleset", ws.ruleset, "--root", ws.dir, target)
	assert.Equal(t, exitFail, code)
	assert.Contains(t, stdout, "== AUDIT pkg/a.py ==")
	assert.Contains(t, stdout, "Depth:   1")
	assert.Contains(t, stdout, "VERDICT: FAIL")

	_, again, _ := execute("--ruleset", ws.ruleset, "--root", ws.dir, target)
	assert.Equal(t, stdout, again)
}

func TestAudit_JSONDirectory(t *testing.T) {
	ws := newWorkspace(t)
	ws.file(t, "src/b.py", "# header\n# TODO\n")
	ws.file(t, "src/a.py", "# header\n")
	ws.file(t, "src/readme.md", "TODO\n")

	code, stdout, _ := execute("--ruleset", ws.ruleset, "--root", ws.dir, "--include", "*.py", "--format", "json", filepath.Join(ws.dir, "src"))
	assert.Equal(t, exitOK, code)

	var s model.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &s))
	require.Len(t, s.Files, 2)
	assert.Equal(t, "src/a.py", s.Files[0].File)
	assert.Equal(t, model.StatusPass, s.Files[0].Status)
	assert.Equal(t, model.StatusConditionalPass, s.Files[1].Status)
	assert.Equal(t, "cli", s.Catalog.Name)
}

func TestAudit_OutputsHistoryAndMetrics(t *testing.T) {
	ws := newWorkspace(t)
	target := ws.file(t, "a.py", "x = 1\n")
	report := filepath.Join(ws.dir, "report.pdf")
	db := filepath.Join(ws.dir, "history.db")
	prom := filepath.Join(ws.dir, "audit.prom")

	code, stdout, _ := execute("--ruleset", ws.ruleset, "--format", "pdf", "--out", report, "--history", db, "--metrics-out", prom, target)
	assert.Equal(t, exitFail, code)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	metrics, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `audit_files_total{status="FAIL"} 1`)

	code, stdout, _ = execute("history", "--history", db)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "cli@1")
}

func TestRulesCommand(t *testing.T) {
	ws := newWorkspace(t)

	code, stdout, _ := execute("rules", "--ruleset", ws.ruleset)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "2 rule(s)")
	assert.Contains(t, stdout, "HDR")

	code, stdout, _ = execute("rules", "--ruleset", ws.ruleset, "--category", "style")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "TODO")
	assert.NotContains(t, stdout, "HDR ")
}

func TestRulesCommand_Example(t *testing.T) {
	code, stdout, stderr := execute("rules", "--ruleset", filepath.Join("..", "..", "examples", "python-modules.yaml"))
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "DOC-001")
}
