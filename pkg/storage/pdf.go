package storage

import (
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// CountPDFPages reads the page tree of a PDF. The parser panics on some
// malformed inputs; those are reported as errors.
func CountPDFPages(r io.ReaderAt, size int64) (pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages = 0
			err = fmt.Errorf("read pdf: %v", rec)
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}
