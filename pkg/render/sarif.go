package render

import (
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/marek-kar/codeaudit/pkg/model"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	toolName     = "codeaudit"
)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations"`
	Results     []sarifResult     `json:"results"`
}

type sarifInvocation struct {
	ExecutionSuccessful        bool                `json:"executionSuccessful"`
	ToolExecutionNotifications []sarifNotification `json:"toolExecutionNotifications,omitempty"`
}

// sarifNotification reports a file that could not be audited at all.
type sarifNotification struct {
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID   string       `json:"id"`
	Help sarifMessage `json:"help"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

type ruleHelp struct {
	text string
	own  bool
}

type sarifRenderer struct{}

func (r *sarifRenderer) Render(w io.Writer, summary model.Summary) error {
	if err := checkSummary(summary); err != nil {
		return err
	}

	results := make([]sarifResult, 0)
	var notes []sarifNotification
	help := make(map[string]ruleHelp)
	for _, o := range summary.Files {
		if o.Result == nil {
			notes = append(notes, sarifNotification{
				Level:   "error",
				Message: sarifMessage{Text: o.Error},
				Locations: []sarifLocation{{
					PhysicalLocation: sarifPhysical{ArtifactLocation: sarifArtifact{URI: o.File}},
				}},
			})
			continue
		}
		for _, v := range o.Result.Violations {
			results = append(results, toSARIF(v))
			// A meta-violation only stands in until the rule's own
			// remediation turns up.
			if h, ok := help[v.RuleID]; !ok || (!h.own && !v.Indeterminate) {
				help[v.RuleID] = ruleHelp{text: v.Remediation, own: !v.Indeterminate}
			}
		}
	}

	ids := make([]string, 0, len(help))
	for id := range help {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rules := make([]sarifRule, 0, len(ids))
	for _, id := range ids {
		rules = append(rules, sarifRule{ID: id, Help: sarifMessage{Text: help[id].text}})
	}

	log := sarifLog{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:    toolName,
				Version: summary.Catalog.Version,
				Rules:   rules,
			}},
			Invocations: []sarifInvocation{{
				ExecutionSuccessful:        len(notes) == 0,
				ToolExecutionNotifications: notes,
			}},
			Results: results,
		}},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func toSARIF(v model.Violation) sarifResult {
	// SARIF regions are 1-based; file-level violations point at the first line.
	start := v.Line
	if start <= 0 {
		start = 1
	}
	text := strings.TrimSpace(v.Message)
	if v.Line == 0 && v.Anchor != "" {
		text += " (" + v.Anchor + ")"
	}
	return sarifResult{
		RuleID:  v.RuleID,
		Level:   sarifLevel(v.Severity),
		Message: sarifMessage{Text: text},
		Locations: []sarifLocation{{
			PhysicalLocation: sarifPhysical{
				ArtifactLocation: sarifArtifact{URI: v.File},
				Region:           &sarifRegion{StartLine: start},
			},
		}},
	}
}

func sarifLevel(s model.Severity) string {
	switch s {
	case model.SeverityCritical, model.SeverityMajor:
		return "error"
	case model.SeverityMinor:
		return "warning"
	default:
		return "note"
	}
}
