package workflow

import (
	"context"
	"io"
	"log/slog"

	"github.com/JaimeStill/tally/pkg/pdf"
)

// Store is the document store parts are read from and the result written to.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, data []byte, contentType string) error
}

// Runtime bundles the dependencies that workflow nodes require. Render and
// Merge default to the pdf package.
type Runtime struct {
	Documents Store
	Logger    *slog.Logger
	Render    func(w io.Writer, page pdf.Page) error
	Merge     func(w io.Writer, docs ...[]byte) error
}

func (rt *Runtime) render() func(io.Writer, pdf.Page) error {
	if rt.Render != nil {
		return rt.Render
	}
	return pdf.Render
}

func (rt *Runtime) merge() func(io.Writer, ...[]byte) error {
	if rt.Merge != nil {
		return rt.Merge
	}
	return pdf.Merge
}
