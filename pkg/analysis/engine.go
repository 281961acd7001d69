package analysis

import (
	"fmt"
	"sort"

	"github.com/marek-kar/codeaudit/pkg/catalog"
	"github.com/marek-kar/codeaudit/pkg/model"
)

type State string

const (
	StateNotStarted         State = "NOT_STARTED"
	StatePass1Running       State = "PASS1_RUNNING"
	StatePass1CriticalFound State = "PASS1_CRITICAL_FOUND"
	StatePass1Clean         State = "PASS1_CLEAN"
	StatePass2Running       State = "PASS2_RUNNING"
	StateDone               State = "DONE"
)

var transitions = map[State][]State{
	StateNotStarted:         {StatePass1Running},
	StatePass1Running:       {StatePass1CriticalFound, StatePass1Clean},
	StatePass1CriticalFound: {StateDone},
	StatePass1Clean:         {StatePass2Running},
	StatePass2Running:       {StateDone},
}

// Observer is told about every state change of a file scan.
type Observer func(file string, from, to State)

type Engine struct {
	catalog    *catalog.Catalog
	aggregator *Aggregator
	observer   Observer
}

func NewEngine(c *catalog.Catalog) *Engine {
	return &Engine{catalog: c, aggregator: NewAggregator()}
}

func (e *Engine) Observe(o Observer) {
	e.observer = o
}

func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

type scanState struct {
	file     string
	state    State
	observer Observer
}

func (s *scanState) advance(next State) {
	for _, allowed := range transitions[s.state] {
		if allowed == next {
			if s.observer != nil {
				s.observer(s.file, s.state, next)
			}
			s.state = next
			return
		}
	}
	panic(fmt.Sprintf("illegal scan transition %s -> %s", s.state, next))
}

// Scan runs the two-pass protocol over one file. The mechanical pass always
// runs to completion; the semantic pass only runs when it found no
// CRITICAL violation. The returned result is complete and never shared.
func (e *Engine) Scan(fc model.FileContext) *model.ScanResult {
	s := &scanState{file: fc.Path, state: StateNotStarted, observer: e.observer}

	applicable := e.catalog.ApplicableRules(fc)
	sort.Slice(applicable, func(i, j int) bool { return applicable[i].ID < applicable[j].ID })

	byID := make(map[string]catalog.Rule, len(applicable))
	var mechanical, semantic []catalog.Rule
	for _, r := range applicable {
		byID[r.ID] = r
		if r.Pass() == model.PassMechanical {
			mechanical = append(mechanical, r)
		} else {
			semantic = append(semantic, r)
		}
	}

	result := &model.ScanResult{
		SchemaVersion: model.SchemaVersion,
		File:          fc.Path,
		Depth:         fc.Depth,
		Catalog:       e.catalog.Ref(),
	}

	s.advance(StatePass1Running)
	f1 := evaluateAll(mechanical, fc)
	v1 := e.aggregator.Merge(e.aggregator.Violations(fc.Path, byID, f1))
	result.Pass1 = model.PassResult{
		Status:   model.PassEvaluated,
		Findings: f1,
		Counts:   model.CountViolations(v1),
	}

	var v2 []model.Violation
	if result.Pass1.Counts.Critical > 0 {
		s.advance(StatePass1CriticalFound)
		result.Pass2 = model.PassResult{Status: model.PassNotEvaluated, Findings: []model.Finding{}}
	} else {
		s.advance(StatePass1Clean)
		s.advance(StatePass2Running)
		f2 := evaluateAll(semantic, fc)
		v2 = e.aggregator.Merge(e.aggregator.Violations(fc.Path, byID, f2))
		result.Pass2 = model.PassResult{
			Status:   model.PassEvaluated,
			Findings: f2,
			Counts:   model.CountViolations(v2),
		}
	}

	result.Violations = e.aggregator.Merge(v1, v2)
	result.Counts = model.CountViolations(result.Violations)
	s.advance(StateDone)
	return result
}

func evaluateAll(rules []catalog.Rule, fc model.FileContext) []model.Finding {
	findings := make([]model.Finding, 0, len(rules))
	for _, r := range rules {
		f, err := Evaluate(r, fc)
		if err != nil {
			f = Indeterminate(r, err)
		}
		findings = append(findings, f)
	}
	return findings
}
