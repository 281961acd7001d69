package render

import (
	"encoding/json"
	"io"

	"github.com/marek-kar/codeaudit/pkg/model"
)

type jsonRenderer struct {
	opts Options
}

type quickFile struct {
	File   string       `json:"file"`
	Status model.Status `json:"status"`
	Counts model.Counts `json:"counts"`
	Error  string       `json:"error,omitempty"`
}

type quickSummary struct {
	SchemaVersion string               `json:"schemaVersion"`
	Catalog       model.CatalogRef     `json:"catalog"`
	Files         []quickFile          `json:"files"`
	Totals        model.Counts         `json:"totals"`
	Statuses      map[model.Status]int `json:"statuses"`
}

func (r *jsonRenderer) Render(w io.Writer, summary model.Summary) error {
	if err := checkSummary(summary); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if !r.opts.Quick {
		return enc.Encode(summary)
	}

	q := quickSummary{
		SchemaVersion: summary.SchemaVersion,
		Catalog:       summary.Catalog,
		Files:         make([]quickFile, 0, len(summary.Files)),
		Totals:        summary.Totals,
		Statuses:      summary.Statuses,
	}
	for _, o := range summary.Files {
		f := quickFile{File: o.File, Status: o.Status, Error: o.Error}
		if o.Result != nil {
			f.Counts = o.Result.Counts
		}
		q.Files = append(q.Files, f)
	}
	return enc.Encode(q)
}
