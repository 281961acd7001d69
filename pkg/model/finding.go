package model

import (
	"fmt"
	"strings"
)

const SchemaVersion = "v1"

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityMinor    Severity = "MINOR"
)

var severityRanks = map[Severity]int{
	SeverityMinor:    1,
	SeverityMajor:    2,
	SeverityCritical: 3,
}

func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// Rank orders severities for reporting; unknown severities rank 0.
func (s Severity) Rank() int {
	return severityRanks[s]
}

type Kind string

const (
	KindRequired   Kind = "REQUIRED"
	KindForbidden  Kind = "FORBIDDEN"
	KindStructural Kind = "STRUCTURAL"
)

func (k Kind) Valid() bool {
	switch k {
	case KindRequired, KindForbidden, KindStructural:
		return true
	}
	return false
}

type Pass int

const (
	PassMechanical Pass = 1
	PassSemantic   Pass = 2
)

func (p Pass) String() string {
	switch p {
	case PassMechanical:
		return "pass1"
	case PassSemantic:
		return "pass2"
	}
	return fmt.Sprintf("pass%d", int(p))
}

type FindingStatus string

const (
	FindingEvaluated     FindingStatus = "EVALUATED"
	FindingIndeterminate FindingStatus = "INDETERMINATE"
)

// Defect is one concrete deviation inside a finding. Line 0 means the
// defect has no line of its own and is reported against the whole file.
type Defect struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Finding is the raw outcome of evaluating one rule against one file.
type Finding struct {
	RuleID    string        `json:"ruleId"`
	Kind      Kind          `json:"kind"`
	Severity  Severity      `json:"severity"`
	Pass      Pass          `json:"pass"`
	Status    FindingStatus `json:"status"`
	Satisfied bool          `json:"satisfied"`
	Expected  string        `json:"expected"`
	Count     int           `json:"count"`
	Lines     []int         `json:"lines,omitempty"`
	Defects   []Defect      `json:"defects,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Violation is a failed finding with remediation attached. Indeterminate
// marks the meta-violation of a rule that could not be evaluated; its
// remediation is generic, not the rule's own.
type Violation struct {
	RuleID        string   `json:"ruleId"`
	Category      string   `json:"category"`
	File          string   `json:"file"`
	Line          int      `json:"line"`
	Anchor        string   `json:"anchor,omitempty"`
	Severity      Severity `json:"severity"`
	Kind          Kind     `json:"kind"`
	Pass          Pass     `json:"pass"`
	Message       string   `json:"message"`
	Remediation   string   `json:"remediation,omitempty"`
	Indeterminate bool     `json:"indeterminate,omitempty"`
}

// Key identifies a defect for deduplication: the same rule can report a
// file/line pair at most once.
func (v Violation) Key() string {
	return fmt.Sprintf("%s|%s|%d", v.RuleID, v.File, v.Line)
}

// Location renders the line or, for file-level violations, the anchor.
func (v Violation) Location() string {
	if v.Line > 0 {
		return fmt.Sprintf("%d", v.Line)
	}
	if v.Anchor != "" {
		return v.Anchor
	}
	return "file"
}

type FileContext struct {
	Path  string   `json:"path"`
	Depth int      `json:"depth"`
	Lines []string `json:"-"`
}

func NewFileContext(path string, depth int, text string) FileContext {
	return FileContext{
		Path:  path,
		Depth: depth,
		Lines: SplitLines(text),
	}
}

// SplitLines splits on "\n" and treats a trailing "\r" as part of the line
// terminator. A final newline does not produce an extra empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
