package extractor

import "fmt"

// PageAccessError reports a page that could not be opened or read at all.
// The pipeline records it on the page's result and moves on; it never
// aborts the rest of the document.
type PageAccessError struct {
	Page int
	Err  error
}

func (e *PageAccessError) Error() string {
	return fmt.Sprintf("page %d: access failed: %v", e.Page, e.Err)
}

func (e *PageAccessError) Unwrap() error { return e.Err }

// ExtractionError reports a page that opened fine but whose table
// extraction failed, including unreadable text layers and results below
// the confidence threshold. On text pages it routes the page to the
// raster fallback.
type ExtractionError struct {
	Page   int
	Method string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("page %d: %s extraction failed: %v", e.Page, e.Method, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
