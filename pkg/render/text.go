package render

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/marek-kar/codeaudit/pkg/model"
)

type textRenderer struct {
	opts Options
}

func (r *textRenderer) Render(w io.Writer, summary model.Summary) error {
	if err := checkSummary(summary); err != nil {
		return err
	}

	for i, o := range summary.Files {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := r.renderFile(w, summary.Catalog, o); err != nil {
			return err
		}
	}
	if len(summary.Files) > 1 {
		fmt.Fprintln(w)
		return renderSummaryTable(w, summary)
	}
	return nil
}

func (r *textRenderer) renderFile(w io.Writer, cat model.CatalogRef, o model.FileOutcome) error {
	fmt.Fprintf(w, "== AUDIT %s ==\n", o.File)
	if o.Result == nil {
		fmt.Fprintf(w, "ERROR: %s\n", o.Error)
		return nil
	}
	res := o.Result

	if r.opts.Quick {
		fmt.Fprintf(w, "%s  %s\n", res.Counts, res.Verdict())
		return nil
	}

	fmt.Fprintf(w, "Depth:   %d\n", res.Depth)
	fmt.Fprintf(w, "Catalog: %s\n", catalogLabel(cat))

	fmt.Fprintf(w, "\nPASS 1 (mechanical)\n")
	if err := renderPass1(w, res); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nPASS 2 (semantic)\n")
	if res.Pass1Only() {
		fmt.Fprintf(w, "not evaluated: pass 1 found %d CRITICAL violation(s)\n", res.Pass1.Counts.Critical)
	} else if err := renderViolationTable(w, res.ViolationsIn(model.PassSemantic)); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nSUMMARY\n")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "CRITICAL\tMAJOR\tMINOR\tTOTAL\n")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", res.Counts.Critical, res.Counts.Major, res.Counts.Minor, res.Counts.Total())
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "VERDICT: %s\n", res.Verdict())
	return nil
}

func renderPass1(w io.Writer, res *model.ScanResult) error {
	if len(res.Pass1.Findings) == 0 {
		fmt.Fprintln(w, "no applicable rules")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RULE\tKIND\tSEVERITY\tEXPECTED\tFOUND\tRESULT\n")
	for _, f := range res.Pass1.Findings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			f.RuleID, f.Kind, f.Severity, dash(f.Expected), f.Count, findingResult(f))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	vs := res.ViolationsIn(model.PassMechanical)
	if len(vs) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	return renderViolationTable(w, vs)
}

func renderViolationTable(w io.Writer, vs []model.Violation) error {
	if len(vs) == 0 {
		fmt.Fprintln(w, "no violations")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RULE\tLINE\tSEVERITY\tMESSAGE\n")
	for _, v := range vs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.RuleID, v.Location(), v.Severity, v.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "Remediation:\n")
	for _, v := range vs {
		if v.Remediation == "" {
			continue
		}
		fmt.Fprintf(w, "  %s (%s): %s\n", v.RuleID, v.Location(), v.Remediation)
	}
	return nil
}

func renderSummaryTable(w io.Writer, s model.Summary) error {
	fmt.Fprintf(w, "FILES\n")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "FILE\tSTATUS\tCRITICAL\tMAJOR\tMINOR\n")
	for _, o := range s.Files {
		var c model.Counts
		if o.Result != nil {
			c = o.Result.Counts
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", o.File, o.Status, c.Critical, c.Major, c.Minor)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "TOTAL: %s  files=%d pass=%d conditional=%d fail=%d error=%d\n",
		s.Totals, len(s.Files),
		s.Statuses[model.StatusPass], s.Statuses[model.StatusConditionalPass],
		s.Statuses[model.StatusFail], s.Statuses[model.StatusError])
	return nil
}

func findingResult(f model.Finding) string {
	switch {
	case f.Status == model.FindingIndeterminate:
		return string(model.FindingIndeterminate)
	case f.Satisfied:
		return "ok"
	default:
		return "VIOLATED"
	}
}

func catalogLabel(c model.CatalogRef) string {
	sha := c.SHA256
	if len(sha) > 12 {
		sha = sha[:12]
	}
	name := c.Name
	if name == "" {
		name = "catalog"
	}
	return fmt.Sprintf("%s %s (sha256:%s)", name, c.Version, sha)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
