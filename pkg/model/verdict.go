package model

type Verdict string

const (
	VerdictPass            Verdict = "PASS"
	VerdictConditionalPass Verdict = "CONDITIONAL_PASS"
	VerdictFail            Verdict = "FAIL"
)

// Decide is the only place a verdict is computed. Quick and full audits,
// single files and batches all go through it.
func Decide(critical, major, minor int) Verdict {
	switch {
	case critical > 0:
		return VerdictFail
	case major > 0:
		return VerdictFail
	case minor > 0:
		return VerdictConditionalPass
	default:
		return VerdictPass
	}
}

func (v Verdict) Blocking() bool {
	return v == VerdictFail
}

// Status is the per-file outcome of a run. ERROR is reserved for files
// that could not be scanned at all and is never produced by Decide.
type Status string

const (
	StatusPass            Status = Status(VerdictPass)
	StatusConditionalPass Status = Status(VerdictConditionalPass)
	StatusFail            Status = Status(VerdictFail)
	StatusError           Status = "ERROR"
)
