package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

type MatchMode string

const (
	MatchRegex    MatchMode = "regex"
	MatchExact    MatchMode = "exact"
	MatchContains MatchMode = "contains"
)

// LineMatcher decides whether a single line carries a pattern.
type LineMatcher interface {
	Match(line string) bool
}

func compileMatcher(pattern string, mode MatchMode, tolerant bool) (LineMatcher, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern is empty")
	}
	switch mode {
	case "", MatchRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		return &regexMatcher{re: re, tolerant: tolerant}, nil
	case MatchExact:
		if tolerant {
			pattern = normalizeSpace(pattern)
		}
		return &exactMatcher{want: pattern, tolerant: tolerant}, nil
	case MatchContains:
		if tolerant {
			pattern = normalizeSpace(pattern)
		}
		return &containsMatcher{needle: pattern, tolerant: tolerant}, nil
	}
	return nil, fmt.Errorf("unknown match mode %q", mode)
}

type regexMatcher struct {
	re       *regexp.Regexp
	tolerant bool
}

func (m *regexMatcher) Match(line string) bool {
	if m.tolerant {
		line = normalizeSpace(line)
	}
	return m.re.MatchString(line)
}

type exactMatcher struct {
	want     string
	tolerant bool
}

func (m *exactMatcher) Match(line string) bool {
	if m.tolerant {
		line = normalizeSpace(line)
	}
	return line == m.want
}

type containsMatcher struct {
	needle   string
	tolerant bool
}

func (m *containsMatcher) Match(line string) bool {
	if m.tolerant {
		line = normalizeSpace(line)
	}
	return strings.Contains(line, m.needle)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
