package batch

import (
	"context"
	"errors"
	"io/fs"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/marek-kar/codeaudit/pkg/analysis"
	"github.com/marek-kar/codeaudit/pkg/catalog"
	"github.com/marek-kar/codeaudit/pkg/collector"
	"github.com/marek-kar/codeaudit/pkg/metrics"
	"github.com/marek-kar/codeaudit/pkg/model"
)

const testRules = `
version: "1"
rules:
  - id: no-print
    category: style
    severity: MINOR
    kind: FORBIDDEN
    immediate: true
    pattern: 'print\('
    remediation: use the logger
`

type mapReader struct {
	files map[string]string
	reads atomic.Int32
}

func (m *mapReader) ReadText(ctx context.Context, path string) (string, error) {
	m.reads.Add(1)
	text, ok := m.files[path]
	if !ok {
		return "", fs.ErrNotExist
	}
	return text, nil
}

func newRunner(t *testing.T, r collector.Reader) *Runner {
	t.Helper()
	c, err := catalog.Parse("test", []byte(testRules))
	require.NoError(t, err)
	return &Runner{
		Engine:  analysis.NewEngine(c),
		Reader:  r,
		Workers: 3,
		Log:     zaptest.NewLogger(t).Sugar(),
	}
}

func TestRunner_InputOrderAndErrors(t *testing.T) {
	reader := &mapReader{files: map[string]string{
		"a.py": "x = 1\n",
		"c.py": "print(1)\n",
		"d.py": "y = 2\n",
	}}
	runner := newRunner(t, reader)
	runner.Metrics = metrics.New()

	targets := []collector.Target{
		{Path: "a.py", Display: "a.py"},
		{Path: "b.py", Display: "b.py"},
		{Path: "c.py", Display: "c.py"},
		{Path: "d.py", Display: "d.py"},
	}
	outcomes, err := runner.Run(context.Background(), targets)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.Equal(t, []string{"a.py", "b.py", "c.py", "d.py"}, []string{outcomes[0].File, outcomes[1].File, outcomes[2].File, outcomes[3].File})
	assert.Equal(t, model.StatusPass, outcomes[0].Status)
	assert.Equal(t, model.StatusError, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Error, "read b.py")
	assert.Nil(t, outcomes[1].Result)
	assert.Equal(t, model.StatusConditionalPass, outcomes[2].Status)
	assert.Equal(t, model.StatusPass, outcomes[3].Status)
}

func TestRunner_StopsSubmittingWhenCancelled(t *testing.T) {
	reader := &mapReader{files: map[string]string{"a.py": ""}}
	runner := newRunner(t, reader)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := runner.Run(ctx, []collector.Target{{Path: "a.py", Display: "a.py"}})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, outcomes)
	assert.Zero(t, reader.reads.Load())
}

func TestRunner_ScanOneMatchesBatch(t *testing.T) {
	reader := &mapReader{files: map[string]string{"c.py": "print(1)\nprint(2)\n"}}
	runner := newRunner(t, reader)
	target := collector.Target{Path: "c.py", Display: "c.py"}

	one := runner.ScanOne(context.Background(), target)
	many, err := runner.Run(context.Background(), []collector.Target{target})
	require.NoError(t, err)
	assert.Equal(t, one, many[0])
	assert.Equal(t, 2, one.Result.Counts.Minor)
}
