package analysis

import (
	"strings"
	"testing"

	"github.com/marek-kar/codeaudit/pkg/catalog"
	"github.com/marek-kar/codeaudit/pkg/model"
)

func mustCatalog(t *testing.T, rules ...string) *catalog.Catalog {
	t.Helper()
	doc := "version: \"test\"\nrules:\n"
	for _, r := range rules {
		doc += "  - " + r + "\n"
	}
	c, err := catalog.Parse("test", []byte(doc))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	return c
}

func mustRule(t *testing.T, rule string) catalog.Rule {
	t.Helper()
	c := mustCatalog(t, rule)
	return c.Rules()[0]
}

func file(depth int, lines ...string) model.FileContext {
	return model.NewFileContext("pkg/mod.py", depth, strings.Join(lines, "\n")+"\n")
}
