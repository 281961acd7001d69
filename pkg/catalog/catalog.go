package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marek-kar/codeaudit/pkg/model"
)

// Document is the on-disk catalog format. JSON documents are accepted as
// well since they are valid YAML.
type Document struct {
	Version string `yaml:"version" json:"version"`
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`
	Rules   []Rule `yaml:"rules" json:"rules"`
}

// Catalog is an immutable, validated rule set. It is safe for any number of
// concurrent readers; accessors return copies.
type Catalog struct {
	ref        model.CatalogRef
	rules      []Rule
	categories map[string][]int
}

// Parse validates a raw catalog document. Any problem, including a single
// malformed pattern, fails the whole load with a *ConfigError.
func Parse(source string, data []byte) (*Catalog, error) {
	if err := checkShape(data); err != nil {
		return nil, &ConfigError{Source: source, Errors: []FieldError{{Field: "schema", Message: err.Error()}}}
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &ConfigError{Source: source, Errors: []FieldError{{Field: "document", Message: err.Error()}}}
	}

	sum := sha256.Sum256(data)
	return build(source, doc, hex.EncodeToString(sum[:]))
}

// New builds a catalog from an in-memory document. The fingerprint is taken
// over the document's JSON encoding.
func New(doc Document) (*Catalog, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	sum := sha256.Sum256(raw)
	return build("", doc, hex.EncodeToString(sum[:]))
}

func build(source string, doc Document, sha string) (*Catalog, error) {
	var errs []FieldError
	if strings.TrimSpace(doc.Version) == "" {
		errs = append(errs, FieldError{Field: "version", Message: "version is required"})
	}
	if len(doc.Rules) == 0 {
		errs = append(errs, FieldError{Field: "rules", Message: "catalog has no rules"})
	}

	rules := make([]Rule, len(doc.Rules))
	seen := make(map[string]bool, len(doc.Rules))
	signatures := make(map[string]Rule)

	for i, r := range doc.Rules {
		r.Sections = slices.Clone(r.Sections)
		r.DepthVariants = slices.Clone(r.DepthVariants)
		if r.Applicability != nil {
			a := *r.Applicability
			a.Extensions = slices.Clone(a.Extensions)
			a.Paths = slices.Clone(a.Paths)
			r.Applicability = &a
		}
		if r.Exports != nil {
			e := *r.Exports
			r.Exports = &e
		}

		errs = append(errs, compileRule(&r)...)

		if id := strings.TrimSpace(r.ID); id != "" {
			if seen[id] {
				errs = append(errs, FieldError{RuleID: id, Field: "id", Message: "duplicate rule id"})
			}
			seen[id] = true
		}
		if key := conflictKey(r); key != "" && r.Severity.Valid() {
			if prev, ok := signatures[key]; ok && prev.Severity != r.Severity {
				errs = append(errs, FieldError{
					RuleID:  r.ID,
					Field:   "severity",
					Message: fmt.Sprintf("conflicting severity: %s here, %s in rule %s for the same pattern", r.Severity, prev.Severity, prev.ID),
				})
			} else if !ok {
				signatures[key] = r
			}
		}
		rules[i] = r
	}

	if len(errs) > 0 {
		return nil, &ConfigError{Source: source, Errors: errs}
	}

	c := &Catalog{
		ref:        model.CatalogRef{Name: doc.Name, Version: doc.Version, SHA256: sha},
		rules:      rules,
		categories: make(map[string][]int),
	}
	for i, r := range rules {
		c.categories[r.Category] = append(c.categories[r.Category], i)
	}
	return c, nil
}

func (c *Catalog) Ref() model.CatalogRef { return c.ref }

func (c *Catalog) Len() int { return len(c.rules) }

// Rules returns every rule in declaration order.
func (c *Catalog) Rules() []Rule {
	return slices.Clone(c.rules)
}

func (c *Catalog) Rule(id string) (Rule, bool) {
	for _, r := range c.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

func (c *Catalog) RulesFor(category string) []Rule {
	idx := c.categories[category]
	out := make([]Rule, 0, len(idx))
	for _, i := range idx {
		out = append(out, c.rules[i])
	}
	return out
}

// ApplicableRules filters by each rule's applicability predicate.
func (c *Catalog) ApplicableRules(fc model.FileContext) []Rule {
	var out []Rule
	for _, r := range c.rules {
		if r.Applies(fc) {
			out = append(out, r)
		}
	}
	return out
}

func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.categories))
	for k := range c.categories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
