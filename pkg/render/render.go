package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/marek-kar/codeaudit/pkg/model"
)

type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
	FormatPDF   Format = "pdf"
)

var formats = []Format{FormatText, FormatJSON, FormatSARIF, FormatPDF}

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want text, json, sarif or pdf)", s)
}

// Binary reports whether the format must be written to a file.
func (f Format) Binary() bool {
	return f == FormatPDF
}

type Options struct {
	// Quick renders only the verdict and counts; the verdict itself is the
	// same as for the full report.
	Quick bool
}

// Renderer writes a run. Single-file runs are a summary with one entry.
type Renderer interface {
	Render(w io.Writer, summary model.Summary) error
}

func New(f Format, opts Options) Renderer {
	switch f {
	case FormatJSON:
		return &jsonRenderer{opts: opts}
	case FormatSARIF:
		return &sarifRenderer{}
	case FormatPDF:
		return &pdfRenderer{opts: opts}
	default:
		return &textRenderer{opts: opts}
	}
}

// checkSummary verifies every scan result before anything is written so a
// broken result never reaches the output.
func checkSummary(s model.Summary) error {
	for _, o := range s.Files {
		if o.Result == nil {
			continue
		}
		if err := Check(o.Result); err != nil {
			return err
		}
		if o.Status != model.Status(o.Result.Verdict()) {
			return inconsistent(o.File, "status %s does not match verdict %s", o.Status, o.Result.Verdict())
		}
	}
	return nil
}
