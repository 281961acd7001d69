package model

type FileOutcome struct {
	File   string      `json:"file"`
	Status Status      `json:"status"`
	Result *ScanResult `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func NewFileOutcome(file string, result *ScanResult, err error) FileOutcome {
	if err != nil {
		return FileOutcome{File: file, Status: StatusError, Error: err.Error()}
	}
	return FileOutcome{File: file, Status: Status(result.Verdict()), Result: result}
}

// Summary is the optional multi-file view. Files keep the caller's order.
type Summary struct {
	SchemaVersion string         `json:"schemaVersion"`
	Catalog       CatalogRef     `json:"catalog"`
	Files         []FileOutcome  `json:"files"`
	Totals        Counts         `json:"totals"`
	Statuses      map[Status]int `json:"statuses"`
}

func NewSummary(catalog CatalogRef, outcomes []FileOutcome) Summary {
	s := Summary{
		SchemaVersion: SchemaVersion,
		Catalog:       catalog,
		Files:         outcomes,
		Statuses:      make(map[Status]int),
	}
	for _, o := range outcomes {
		s.Statuses[o.Status]++
		if o.Result != nil {
			s.Totals = s.Totals.Plus(o.Result.Counts)
		}
	}
	return s
}

func (s Summary) HasErrors() bool {
	return s.Statuses[StatusError] > 0
}

func (s Summary) HasFailures() bool {
	return s.Statuses[StatusFail] > 0
}
