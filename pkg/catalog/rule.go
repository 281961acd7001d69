package catalog

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/marek-kar/codeaudit/pkg/model"
)

const DefaultAnchor = "expected near top-of-file region"

// Rule is one catalog entry. Exported fields mirror the catalog document;
// the compiled matchers are filled in by the catalog at load time and a
// Rule is never modified after that.
type Rule struct {
	ID                 string         `yaml:"id" json:"id"`
	Category           string         `yaml:"category" json:"category"`
	Severity           model.Severity `yaml:"severity" json:"severity"`
	Kind               model.Kind     `yaml:"kind" json:"kind"`
	Pattern            string         `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Match              MatchMode      `yaml:"match,omitempty" json:"match,omitempty"`
	WhitespaceTolerant bool           `yaml:"whitespace_tolerant,omitempty" json:"whitespace_tolerant,omitempty"`
	MinCount           *int           `yaml:"min_count,omitempty" json:"min_count,omitempty"`
	Immediate          bool           `yaml:"immediate,omitempty" json:"immediate,omitempty"`
	Anchor             string         `yaml:"anchor,omitempty" json:"anchor,omitempty"`
	Applicability      *Applicability `yaml:"applicability,omitempty" json:"applicability,omitempty"`
	Sections           []string       `yaml:"sections,omitempty" json:"sections,omitempty"`
	DepthVariants      []DepthVariant `yaml:"depth_variants,omitempty" json:"depth_variants,omitempty"`
	Exports            *ExportsSpec   `yaml:"exports,omitempty" json:"exports,omitempty"`
	Remediation        string         `yaml:"remediation" json:"remediation"`

	matcher  LineMatcher
	sections []LineMatcher
	variants []compiledVariant
	exports  *ExportsMatcher
}

type Applicability struct {
	MinDepth   *int     `yaml:"min_depth,omitempty" json:"min_depth,omitempty"`
	MaxDepth   *int     `yaml:"max_depth,omitempty" json:"max_depth,omitempty"`
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Paths      []string `yaml:"paths,omitempty" json:"paths,omitempty"`
}

type DepthVariant struct {
	MinDepth int    `yaml:"min_depth" json:"min_depth"`
	Pattern  string `yaml:"pattern" json:"pattern"`
}

// ExportsSpec correlates an export list with description blocks next to
// each exported definition.
type ExportsSpec struct {
	ListStart   string `yaml:"list_start" json:"list_start"`
	ListEnd     string `yaml:"list_end" json:"list_end"`
	Item        string `yaml:"item" json:"item"`
	Definition  string `yaml:"definition" json:"definition"`
	Description string `yaml:"description" json:"description"`
	Before      int    `yaml:"before,omitempty" json:"before,omitempty"`
	After       int    `yaml:"after,omitempty" json:"after,omitempty"`
}

const (
	namePlaceholder = "{name}"
	anyName         = `\w+`
)

func (r Rule) RequiredCount() int {
	if r.MinCount == nil {
		return 1
	}
	return *r.MinCount
}

func (r Rule) AnchorText() string {
	if r.Anchor == "" {
		return DefaultAnchor
	}
	return r.Anchor
}

// Pass returns the scan pass the rule belongs to. Immediate-fail forbidden
// patterns run with the mechanical checks; the rest of the forbidden
// catalog and export correlations run in the semantic pass.
func (r Rule) Pass() model.Pass {
	switch r.Kind {
	case model.KindForbidden:
		if !r.Immediate {
			return model.PassSemantic
		}
	case model.KindStructural:
		if r.Exports != nil {
			return model.PassSemantic
		}
	}
	return model.PassMechanical
}

func (r Rule) Matcher() LineMatcher { return r.matcher }

func (r Rule) SectionMatchers() []LineMatcher { return r.sections }

func (r Rule) Variants() []Variant {
	out := make([]Variant, len(r.variants))
	for i, v := range r.variants {
		out[i] = Variant{MinDepth: v.minDepth, Pattern: v.pattern, Matcher: v.matcher}
	}
	return out
}

func (r Rule) ExportsMatcher() *ExportsMatcher { return r.exports }

// Applies evaluates the applicability predicate; a rule without one applies
// to every file.
func (r Rule) Applies(fc model.FileContext) bool {
	if r.Applicability == nil {
		return true
	}
	return r.Applicability.applies(fc)
}

func (a *Applicability) applies(fc model.FileContext) bool {
	if a.MinDepth != nil && fc.Depth < *a.MinDepth {
		return false
	}
	if a.MaxDepth != nil && fc.Depth > *a.MaxDepth {
		return false
	}
	if len(a.Extensions) > 0 {
		ext := filepath.Ext(fc.Path)
		found := false
		for _, e := range a.Extensions {
			if e == ext {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(a.Paths) > 0 {
		p := filepath.ToSlash(fc.Path)
		for _, glob := range a.Paths {
			if ok, _ := path.Match(glob, p); ok {
				return true
			}
		}
		return false
	}
	return true
}

type Variant struct {
	MinDepth int
	Pattern  string
	Matcher  LineMatcher
}

type compiledVariant struct {
	minDepth int
	pattern  string
	matcher  LineMatcher
}

type ExportsMatcher struct {
	listStart   *regexp.Regexp
	listEnd     *regexp.Regexp
	item        *regexp.Regexp
	definition  string
	anyDef      *regexp.Regexp
	description *regexp.Regexp
	before      int
	after       int
}

func (e *ExportsMatcher) IsListStart(line string) bool { return e.listStart.MatchString(line) }

func (e *ExportsMatcher) IsListEnd(line string) bool { return e.listEnd.MatchString(line) }

func (e *ExportsMatcher) IsDescription(line string) bool { return e.description.MatchString(line) }

// IsDefinition reports whether line defines any name, exported or not.
func (e *ExportsMatcher) IsDefinition(line string) bool { return e.anyDef.MatchString(line) }

func (e *ExportsMatcher) Window() (before, after int) { return e.before, e.after }

// Items returns the exported names captured on a line, in order.
func (e *ExportsMatcher) Items(line string) []string {
	var names []string
	for _, m := range e.item.FindAllStringSubmatch(line, -1) {
		if len(m) > 1 && m[1] != "" {
			names = append(names, m[1])
		}
	}
	return names
}

// Definition builds the matcher for the definition line of one exported
// name. The name is quoted, so only a broken template can fail here.
func (e *ExportsMatcher) Definition(name string) (*regexp.Regexp, error) {
	return regexp.Compile(strings.ReplaceAll(e.definition, namePlaceholder, regexp.QuoteMeta(name)))
}
