package model

import "fmt"

type Counts struct {
	Critical int `json:"critical"`
	Major    int `json:"major"`
	Minor    int `json:"minor"`
}

func (c *Counts) Add(s Severity) {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityMajor:
		c.Major++
	case SeverityMinor:
		c.Minor++
	}
}

func (c Counts) Total() int {
	return c.Critical + c.Major + c.Minor
}

func (c Counts) Plus(o Counts) Counts {
	return Counts{
		Critical: c.Critical + o.Critical,
		Major:    c.Major + o.Major,
		Minor:    c.Minor + o.Minor,
	}
}

func (c Counts) Verdict() Verdict {
	return Decide(c.Critical, c.Major, c.Minor)
}

func (c Counts) String() string {
	return fmt.Sprintf("CRITICAL=%d MAJOR=%d MINOR=%d", c.Critical, c.Major, c.Minor)
}

func CountViolations(vs []Violation) Counts {
	var c Counts
	for _, v := range vs {
		c.Add(v.Severity)
	}
	return c
}

type PassStatus string

const (
	PassEvaluated    PassStatus = "EVALUATED"
	PassNotEvaluated PassStatus = "NOT_EVALUATED"
)

type PassResult struct {
	Status   PassStatus `json:"status"`
	Findings []Finding  `json:"findings"`
	Counts   Counts     `json:"counts"`
}

type CatalogRef struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version"`
	SHA256  string `json:"sha256"`
}

// ScanResult is the per-file aggregate. It is built once by the analysis
// engine and never mutated afterwards; the verdict is always derived.
type ScanResult struct {
	SchemaVersion string      `json:"schemaVersion"`
	File          string      `json:"file"`
	Depth         int         `json:"depth"`
	Catalog       CatalogRef  `json:"catalog"`
	Pass1         PassResult  `json:"pass1"`
	Pass2         PassResult  `json:"pass2"`
	Violations    []Violation `json:"violations"`
	Counts        Counts      `json:"counts"`
}

func (r ScanResult) Verdict() Verdict {
	return r.Counts.Verdict()
}

// Pass1Only reports whether the scan stopped before the semantic pass.
func (r ScanResult) Pass1Only() bool {
	return r.Pass2.Status != PassEvaluated
}

func (r ScanResult) ViolationsIn(p Pass) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Pass == p {
			out = append(out, v)
		}
	}
	return out
}
