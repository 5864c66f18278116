package extractor

import (
	"errors"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// Document is an open PDF. Page access is not safe for concurrent use;
// the pipeline reads pages sequentially and only parallelizes the raster
// stage, which re-renders from the file path.
type Document struct {
	file   *os.File
	reader *pdf.Reader
}

// Open opens a PDF for extraction. This is the only failure that is
// fatal to a document; everything after it degrades per page.
func Open(path string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("failed to open pdf: panic: %v", r)
		}
	}()
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	return &Document{file: f, reader: reader}, nil
}

// NumPages returns the page count.
func (d *Document) NumPages() int {
	return d.reader.NumPage()
}

// Close releases the underlying file.
func (d *Document) Close() error {
	return d.file.Close()
}

// Fragments reads the positioned text of one page (1-based) as merged
// word fragments. Malformed pages make the library panic, so reads are
// fenced and converted to PageAccessError.
func (d *Document) Fragments(pageNum int) (frags []Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			frags = nil
			err = &PageAccessError{Page: pageNum, Err: fmt.Errorf("panic reading page content: %v", r)}
		}
	}()

	page := d.reader.Page(pageNum)
	if page.V.IsNull() {
		return nil, &PageAccessError{Page: pageNum, Err: errors.New("page object is null")}
	}
	return mergeWords(page.Content().Text), nil
}
