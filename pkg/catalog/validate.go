package catalog

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/marek-kar/codeaudit/pkg/model"
)

// compileRule validates one rule and fills in its matchers. Every problem
// is returned; a rule is never partially accepted.
func compileRule(r *Rule) []FieldError {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{RuleID: r.ID, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Rules taken from a loaded catalog arrive with matchers already set.
	r.matcher, r.sections, r.variants, r.exports = nil, nil, nil, nil

	if strings.TrimSpace(r.ID) == "" {
		add("id", "rule id is required")
	}
	if strings.TrimSpace(r.Category) == "" {
		add("category", "category is required")
	}
	if !r.Severity.Valid() {
		add("severity", "invalid severity %q, must be CRITICAL, MAJOR or MINOR", r.Severity)
	}
	if !r.Kind.Valid() {
		add("kind", "invalid kind %q, must be REQUIRED, FORBIDDEN or STRUCTURAL", r.Kind)
		return errs
	}
	switch r.Match {
	case "", MatchRegex, MatchExact, MatchContains:
	default:
		add("match", "invalid match mode %q, must be regex, exact or contains", r.Match)
		return errs
	}

	if r.MinCount != nil {
		if r.Kind != model.KindRequired {
			add("min_count", "min_count only applies to REQUIRED rules")
		} else if *r.MinCount < 0 {
			add("min_count", "min_count must not be negative")
		}
	}
	if r.Immediate && r.Kind != model.KindForbidden {
		add("immediate", "immediate only applies to FORBIDDEN rules")
	}
	if a := r.Applicability; a != nil {
		if a.MinDepth != nil && *a.MinDepth < 0 {
			add("applicability.min_depth", "must not be negative")
		}
		if a.MinDepth != nil && a.MaxDepth != nil && *a.MinDepth > *a.MaxDepth {
			add("applicability", "min_depth %d is greater than max_depth %d", *a.MinDepth, *a.MaxDepth)
		}
		for _, glob := range a.Paths {
			if _, err := path.Match(glob, ""); err != nil {
				add("applicability.paths", "bad glob %q: %v", glob, err)
			}
		}
	}

	switch r.Kind {
	case model.KindRequired, model.KindForbidden:
		if len(r.Sections) > 0 || len(r.DepthVariants) > 0 || r.Exports != nil {
			add("kind", "sections, depth_variants and exports only apply to STRUCTURAL rules")
		}
		m, err := compileMatcher(r.Pattern, r.Match, r.WhitespaceTolerant)
		if err != nil {
			add("pattern", "%v", err)
		} else {
			r.matcher = m
		}
	case model.KindStructural:
		errs = append(errs, compileStructural(r)...)
	}
	return errs
}

func compileStructural(r *Rule) []FieldError {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{RuleID: r.ID, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if r.Pattern != "" {
		add("pattern", "STRUCTURAL rules use sections, depth_variants or exports instead of pattern")
	}
	if r.Exports != nil && (len(r.Sections) > 0 || len(r.DepthVariants) > 0) {
		add("exports", "exports cannot be combined with sections or depth_variants")
		return errs
	}
	if r.Exports == nil && len(r.Sections) == 0 && len(r.DepthVariants) == 0 {
		add("kind", "STRUCTURAL rule needs sections, depth_variants or exports")
		return errs
	}

	for i, s := range r.Sections {
		m, err := compileMatcher(s, r.Match, r.WhitespaceTolerant)
		if err != nil {
			add(fmt.Sprintf("sections[%d]", i), "%v", err)
			continue
		}
		r.sections = append(r.sections, m)
	}

	depths := make(map[int]bool)
	for i, v := range r.DepthVariants {
		field := fmt.Sprintf("depth_variants[%d]", i)
		if v.MinDepth < 0 {
			add(field, "min_depth must not be negative")
		}
		if depths[v.MinDepth] {
			add(field, "duplicate min_depth %d", v.MinDepth)
		}
		depths[v.MinDepth] = true
		m, err := compileMatcher(v.Pattern, r.Match, r.WhitespaceTolerant)
		if err != nil {
			add(field, "%v", err)
			continue
		}
		r.variants = append(r.variants, compiledVariant{minDepth: v.MinDepth, pattern: v.Pattern, matcher: m})
	}
	sort.Slice(r.variants, func(i, j int) bool {
		return r.variants[i].minDepth < r.variants[j].minDepth
	})

	if e := r.Exports; e != nil {
		em := &ExportsMatcher{before: e.Before, after: e.After, definition: e.Definition}
		compile := func(field, expr string) *regexp.Regexp {
			if expr == "" {
				add(field, "pattern is empty")
				return nil
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				add(field, "%v", err)
				return nil
			}
			return re
		}
		em.listStart = compile("exports.list_start", e.ListStart)
		em.listEnd = compile("exports.list_end", e.ListEnd)
		em.item = compile("exports.item", e.Item)
		em.description = compile("exports.description", e.Description)
		if em.item != nil && em.item.NumSubexp() < 1 {
			add("exports.item", "item pattern needs a capture group for the exported name")
		}
		if !strings.Contains(e.Definition, namePlaceholder) {
			add("exports.definition", "definition must contain the %s placeholder", namePlaceholder)
		} else if _, err := em.Definition("x"); err != nil {
			add("exports.definition", "%v", err)
		} else if em.anyDef, err = regexp.Compile(strings.ReplaceAll(e.Definition, namePlaceholder, anyName)); err != nil {
			add("exports.definition", "%v", err)
		}
		if e.Before < 0 || e.After < 0 {
			add("exports", "before and after must not be negative")
		}
		if len(errs) == 0 {
			r.exports = em
		}
	}
	return errs
}

// conflictKey identifies rules that detect the same thing. Two rules with
// the same key must agree on severity.
func conflictKey(r Rule) string {
	if r.Pattern == "" {
		return ""
	}
	mode := r.Match
	if mode == "" {
		mode = MatchRegex
	}
	return fmt.Sprintf("%s|%s|%t|%s", r.Kind, mode, r.WhitespaceTolerant, r.Pattern)
}
