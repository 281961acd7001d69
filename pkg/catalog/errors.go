package catalog

import (
	"fmt"
	"strings"
)

type FieldError struct {
	RuleID  string
	Field   string
	Message string
}

func (e FieldError) Error() string {
	if e.RuleID == "" {
		return e.Field + ": " + e.Message
	}
	return fmt.Sprintf("rule %s: %s: %s", e.RuleID, e.Field, e.Message)
}

// ConfigError reports every problem found in a catalog. A catalog that
// produced a ConfigError must not be used for scanning.
type ConfigError struct {
	Source string
	Errors []FieldError
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Error())
	}
	src := e.Source
	if src == "" {
		src = "catalog"
	}
	return fmt.Sprintf("%s: %d problem(s): %s", src, len(e.Errors), strings.Join(parts, "; "))
}
