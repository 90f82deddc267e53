// Package pdf holds the document operations the workflow needs: pdfcpu
// merges, counts and renders pages; text extraction decodes fonts with
// ledongthuc/pdf.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ContentType is the MIME type of PDF documents.
const ContentType = "application/pdf"

var (
	// ErrNoDocuments is returned when Merge is called without input.
	ErrNoDocuments = errors.New("no documents to merge")
	// ErrMergeFailed wraps pdfcpu merge failures.
	ErrMergeFailed = errors.New("pdf merge failed")
	// ErrExtractFailed wraps text extraction failures.
	ErrExtractFailed = errors.New("pdf text extraction failed")
	// ErrRenderFailed wraps pdfcpu page creation failures.
	ErrRenderFailed = errors.New("pdf render failed")
)

// Merge concatenates docs in order and writes the result to w.
func Merge(w io.Writer, docs ...[]byte) error {
	if len(docs) == 0 {
		return ErrNoDocuments
	}

	readers := make([]io.ReadSeeker, len(docs))
	for i, d := range docs {
		readers[i] = bytes.NewReader(d)
	}

	if err := api.MergeRaw(readers, w, false, configuration()); err != nil {
		return fmt.Errorf("%w: %w", ErrMergeFailed, err)
	}
	return nil
}

// PageCount returns the number of pages in data.
func PageCount(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), configuration())
}

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-"))
}

func configuration() *model.Configuration {
	return model.NewDefaultConfiguration()
}
