package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name                   string
		critical, major, minor int
		want                   Verdict
	}{
		{"clean", 0, 0, 0, VerdictPass},
		{"minor only", 0, 0, 3, VerdictConditionalPass},
		{"major", 0, 1, 0, VerdictFail},
		{"major and minor", 0, 2, 5, VerdictFail},
		{"critical", 1, 0, 0, VerdictFail},
		{"everything", 4, 4, 4, VerdictFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.critical, tt.major, tt.minor))
		})
	}
}

func TestDecide_SeverityDominance(t *testing.T) {
	for c := 0; c < 3; c++ {
		for m := 0; m < 3; m++ {
			for n := 0; n < 3; n++ {
				v := Decide(c, m, n)
				if c > 0 {
					assert.Equal(t, VerdictFail, v)
				}
				if c == 0 && m == 0 && n > 0 {
					assert.Equal(t, VerdictConditionalPass, v)
				}
				assert.Equal(t, c+m > 0, v.Blocking())
			}
		}
	}
}

func TestCounts(t *testing.T) {
	var c Counts
	c.Add(SeverityCritical)
	c.Add(SeverityMinor)
	c.Add(SeverityMinor)
	c.Add(Severity("BOGUS"))

	assert.Equal(t, Counts{Critical: 1, Minor: 2}, c)
	assert.Equal(t, 3, c.Total())
	assert.Equal(t, VerdictFail, c.Verdict())
	assert.Equal(t, "CRITICAL=1 MAJOR=0 MINOR=2", c.String())
	assert.Equal(t, Counts{Critical: 1, Major: 1, Minor: 2}, c.Plus(Counts{Major: 1}))
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityMajor.Rank())
	assert.Greater(t, SeverityMajor.Rank(), SeverityMinor.Rank())
	assert.Zero(t, Severity("LOW").Rank())
	assert.False(t, Severity("LOW").Valid())
	assert.True(t, KindStructural.Valid())
	assert.False(t, Kind("OPTIONAL").Valid())
}

func TestNewSummary(t *testing.T) {
	minor := &ScanResult{
		Pass2:  PassResult{Status: PassEvaluated},
		Counts: Counts{Minor: 2},
	}
	major := &ScanResult{
		Pass2:  PassResult{Status: PassEvaluated},
		Counts: Counts{Major: 1},
	}
	s := NewSummary(CatalogRef{Version: "1"}, []FileOutcome{
		NewFileOutcome("b.py", minor, nil),
		NewFileOutcome("a.py", major, nil),
		NewFileOutcome("c.py", nil, errors.New("denied")),
	})

	assert.Equal(t, []string{"b.py", "a.py", "c.py"}, []string{s.Files[0].File, s.Files[1].File, s.Files[2].File})
	assert.Equal(t, StatusConditionalPass, s.Files[0].Status)
	assert.Equal(t, StatusFail, s.Files[1].Status)
	assert.Equal(t, StatusError, s.Files[2].Status)
	assert.Equal(t, "denied", s.Files[2].Error)
	assert.Equal(t, Counts{Major: 1, Minor: 2}, s.Totals)
	assert.True(t, s.HasErrors())
	assert.True(t, s.HasFailures())
}
