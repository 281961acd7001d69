package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/marek-kar/codeaudit/pkg/model"
)

// Reports carry no wall-clock time; the PDF dates are pinned so the
// same run always produces the same bytes.
var pdfEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

const pdfFont = "Helvetica"

type pdfRenderer struct {
	opts Options
}

func (r *pdfRenderer) Render(w io.Writer, summary model.Summary) error {
	if err := checkSummary(summary); err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(pdfEpoch)
	pdf.SetModificationDate(pdfEpoch)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("Compliance audit report", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 16)
	pdf.CellFormat(0, 9, "Compliance audit report", "", 1, "L", false, 0, "")
	pdf.SetFont(pdfFont, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, tr("Catalog: "+catalogLabel(summary.Catalog)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Totals: "+summary.Totals.String()), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, o := range summary.Files {
		pdfSection(pdf, tr(fmt.Sprintf("%s  [%s]", o.File, o.Status)))
		if o.Result == nil {
			pdfLine(pdf, tr, "Error", o.Error)
			continue
		}
		res := o.Result
		pdfLine(pdf, tr, "Depth", fmt.Sprintf("%d", res.Depth))
		pdfLine(pdf, tr, "Counts", res.Counts.String())
		pdfLine(pdf, tr, "Verdict", string(res.Verdict()))
		if res.Pass1Only() {
			pdfLine(pdf, tr, "Pass 2", "not evaluated")
		}
		if r.opts.Quick {
			pdf.Ln(2)
			continue
		}
		for _, v := range res.Violations {
			pdf.SetFont(pdfFont, "B", 9)
			pdf.SetTextColor(severityColor(v.Severity))
			pdf.MultiCell(0, 4.5, tr(fmt.Sprintf("%s  %s  line %s  pass %d", v.Severity, v.RuleID, v.Location(), v.Pass)), "", "L", false)
			pdf.SetFont(pdfFont, "", 9)
			pdf.SetTextColor(20, 20, 20)
			pdf.MultiCell(0, 4.5, tr(flatten(v.Message)), "", "L", false)
			if v.Remediation != "" {
				pdf.SetTextColor(90, 90, 90)
				pdf.MultiCell(0, 4.5, tr("Remediation: "+flatten(v.Remediation)), "", "L", false)
			}
			pdf.Ln(1)
		}
		pdf.Ln(2)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	return pdf.Output(w)
}

func pdfSection(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(pdfFont, "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(pdf.GetX(), pdf.GetY(), 196, pdf.GetY())
	pdf.Ln(2)
}

func pdfLine(pdf *gofpdf.Fpdf, tr func(string) string, key, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	pdf.SetFont(pdfFont, "B", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(30, 5.2, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(pdfFont, "", 10)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 5.2, tr(flatten(value)), "", "L", false)
}

func severityColor(s model.Severity) (int, int, int) {
	switch s {
	case model.SeverityCritical:
		return 170, 0, 0
	case model.SeverityMajor:
		return 190, 90, 0
	default:
		return 90, 90, 0
	}
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}
