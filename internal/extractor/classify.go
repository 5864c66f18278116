package extractor

import (
	"strings"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Classify decides how a page carries its content: any non-whitespace
// text in the layer means a text page, otherwise the page is treated as
// scanned and goes straight to OCR.
func Classify(frags []Fragment) models.PageType {
	for _, f := range frags {
		if strings.TrimSpace(f.Text) != "" {
			return models.PageText
		}
	}
	return models.PageScanned
}
