package collector

import (
	"context"
	"fmt"
	"os"

	"github.com/marek-kar/codeaudit/pkg/model"
)

// Reader returns the full text of the file at path.
type Reader interface {
	ReadText(ctx context.Context, path string) (string, error)
}

// IOError marks a file that could not be read. It fails that file only.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

type FSReader struct{}

func (FSReader) ReadText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Load reads a target and builds the file context the engine consumes.
func Load(ctx context.Context, r Reader, t Target) (model.FileContext, error) {
	text, err := r.ReadText(ctx, t.Path)
	if err != nil {
		return model.FileContext{}, &IOError{Path: t.Path, Err: err}
	}
	return model.NewFileContext(t.Display, t.Depth, text), nil
}
