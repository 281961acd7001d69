package analysis

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/marek-kar/codeaudit/pkg/catalog"
	"github.com/marek-kar/codeaudit/pkg/model"
)

var errNoMatcher = errors.New("rule has no compiled matcher; rules must come from a loaded catalog")

// matchLines returns the 1-based numbers of every matching line. A line
// counts once no matter how often the pattern occurs in it.
func matchLines(m catalog.LineMatcher, lines []string) []int {
	var out []int
	for i, l := range lines {
		if m.Match(l) {
			out = append(out, i+1)
		}
	}
	return out
}

func firstMatch(m catalog.LineMatcher, lines []string) int {
	for i, l := range lines {
		if m.Match(l) {
			return i + 1
		}
	}
	return 0
}

func evaluateRequired(r catalog.Rule, fc model.FileContext, f *model.Finding) error {
	m := r.Matcher()
	if m == nil {
		return errNoMatcher
	}
	want := r.RequiredCount()
	f.Lines = matchLines(m, fc.Lines)
	f.Count = len(f.Lines)
	f.Expected = fmt.Sprintf(">=%d", want)
	if f.Count < want {
		f.Defects = append(f.Defects, model.Defect{
			Message: fmt.Sprintf("required pattern missing: expected at least %d occurrence(s), found %d", want, f.Count),
		})
	}
	return nil
}

func evaluateForbidden(r catalog.Rule, fc model.FileContext, f *model.Finding) error {
	m := r.Matcher()
	if m == nil {
		return errNoMatcher
	}
	f.Lines = matchLines(m, fc.Lines)
	f.Count = len(f.Lines)
	f.Expected = "0"
	for _, ln := range f.Lines {
		f.Defects = append(f.Defects, model.Defect{
			Line:    ln,
			Message: fmt.Sprintf("forbidden pattern found: %s", truncate(strings.TrimSpace(fc.Lines[ln-1]), maxSnippetLen)),
		})
	}
	return nil
}

func evaluateStructure(r catalog.Rule, fc model.FileContext, f *model.Finding) error {
	sections := r.SectionMatchers()
	variants := r.Variants()
	if len(sections) == 0 && len(variants) == 0 {
		return errNoMatcher
	}

	var expected []string
	if len(sections) > 0 {
		expected = append(expected, fmt.Sprintf("%d section(s) in order", len(sections)))
		evaluateSections(r, sections, fc, f)
	}
	if len(variants) > 0 {
		expected = append(expected, fmt.Sprintf("depth %d marker", fc.Depth))
		evaluateVariants(variants, fc, f)
	}
	f.Expected = strings.Join(expected, ", ")
	return nil
}

func evaluateSections(r catalog.Rule, sections []catalog.LineMatcher, fc model.FileContext, f *model.Finding) {
	first := make([]int, len(sections))
	var missing []string
	for i, m := range sections {
		first[i] = firstMatch(m, fc.Lines)
		if first[i] == 0 {
			missing = append(missing, r.Sections[i])
			continue
		}
		f.Count++
		f.Lines = append(f.Lines, first[i])
	}
	if len(missing) > 0 {
		f.Defects = append(f.Defects, model.Defect{
			Message: fmt.Sprintf("missing section marker(s): %s", strings.Join(missing, ", ")),
		})
	}

	prevLine, prevIdx := 0, -1
	for i, ln := range first {
		if ln == 0 {
			continue
		}
		if prevIdx >= 0 && ln <= prevLine {
			f.Defects = append(f.Defects, model.Defect{
				Line: ln,
				Message: fmt.Sprintf("section %q is out of order: must follow %q (line %d)",
					r.Sections[i], r.Sections[prevIdx], prevLine),
			})
			continue
		}
		prevLine, prevIdx = ln, i
	}
}

// evaluateVariants checks a depth-conditional marker. The expected variant
// is the one with the highest min_depth not above the file's depth. Finding
// a different variant is a depth mismatch, distinct from a missing marker.
func evaluateVariants(variants []catalog.Variant, fc model.FileContext, f *model.Finding) {
	want := -1
	for i, v := range variants {
		if v.MinDepth <= fc.Depth {
			want = i
		}
	}
	if want < 0 {
		return
	}

	if lines := matchLines(variants[want].Matcher, fc.Lines); len(lines) > 0 {
		f.Count += len(lines)
		f.Lines = append(f.Lines, lines...)
		return
	}

	for i, v := range variants {
		if i == want {
			continue
		}
		if ln := firstMatch(v.Matcher, fc.Lines); ln > 0 {
			f.Defects = append(f.Defects, model.Defect{
				Line: ln,
				Message: fmt.Sprintf("depth mismatch: file depth %d requires the depth>=%d variant, found the depth>=%d variant",
					fc.Depth, variants[want].MinDepth, v.MinDepth),
			})
			return
		}
	}
	f.Defects = append(f.Defects, model.Defect{
		Message: fmt.Sprintf("missing depth-specific marker for depth %d", fc.Depth),
	})
}

// evaluateExports correlates the export list with description blocks
// around each exported definition.
func evaluateExports(r catalog.Rule, fc model.FileContext, f *model.Finding) error {
	em := r.ExportsMatcher()
	start, end := -1, -1
	var names []string
	listLine := make(map[string]int)

	for i, line := range fc.Lines {
		if start < 0 {
			if !em.IsListStart(line) {
				continue
			}
			start = i
		}
		for _, n := range em.Items(line) {
			if _, ok := listLine[n]; !ok {
				listLine[n] = i + 1
				names = append(names, n)
			}
		}
		if em.IsListEnd(line) {
			end = i
			break
		}
	}

	f.Expected = fmt.Sprintf("%d documented export(s)", len(names))
	if start < 0 {
		return nil
	}
	if end < 0 {
		return fmt.Errorf("export list opened at line %d is never closed", start+1)
	}

	before, after := em.Window()
	for _, name := range names {
		def, err := em.Definition(name)
		if err != nil {
			return err
		}
		defLine := -1
		for i, l := range fc.Lines {
			if i >= start && i <= end {
				continue
			}
			if def.MatchString(l) {
				defLine = i
				break
			}
		}
		if defLine < 0 {
			f.Defects = append(f.Defects, model.Defect{
				Line:    listLine[name],
				Message: fmt.Sprintf("exported name %q has no definition", name),
			})
			continue
		}
		if hasDescription(em, fc.Lines, defLine, before, after) {
			f.Count++
			f.Lines = append(f.Lines, defLine+1)
			continue
		}
		f.Defects = append(f.Defects, model.Defect{
			Line:    defLine + 1,
			Message: fmt.Sprintf("exported %q has no description block", name),
		})
	}
	return nil
}

// hasDescription looks for a description on the definition line and within
// the window around it. The window never crosses another definition, so a
// description is only credited to the definition it belongs to.
func hasDescription(em *catalog.ExportsMatcher, lines []string, at, before, after int) bool {
	if em.IsDescription(lines[at]) {
		return true
	}
	for i := at - 1; i >= 0 && i >= at-before; i-- {
		if em.IsDefinition(lines[i]) {
			break
		}
		if em.IsDescription(lines[i]) {
			return true
		}
	}
	for i := at + 1; i < len(lines) && i <= at+after; i++ {
		if em.IsDefinition(lines[i]) {
			break
		}
		if em.IsDescription(lines[i]) {
			return true
		}
	}
	return false
}

const maxSnippetLen = 120

// truncate shortens s to at most max bytes without splitting a character.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	n := max - 3
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
