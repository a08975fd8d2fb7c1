// Package pdf defines the text-extraction port the process_pdf_case
// handler consumes (spec §4.6, §1 Non-goals: PDF byte decoding is an
// external collaborator). No third-party PDF library is exercised
// anywhere in the example pack, so this boundary is intentionally
// stdlib-only; see DESIGN.md.
package pdf

import (
	"context"
	"errors"
)

// ErrExtractionFailed is returned when pdfBytes cannot be parsed into
// text.
var ErrExtractionFailed = errors.New("pdf text extraction failed")

// Extractor turns raw PDF bytes into concatenated page text.
type Extractor interface {
	ExtractText(ctx context.Context, pdfBytes []byte) (string, error)
}
