package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// currencySymbols maps the symbols that show up in statement cells to
// ISO codes. First symbol found in the raw cell decides the row.
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"£", "GBP"},
	{"$", "USD"},
	{"€", "EUR"},
}

// DetectCurrency returns the ISO code for the first currency symbol in
// s, or "" when the cell carries none.
func DetectCurrency(s string) string {
	best := -1
	code := ""
	for _, c := range currencySymbols {
		if i := strings.Index(s, c.symbol); i >= 0 && (best < 0 || i < best) {
			best, code = i, c.code
		}
	}
	return code
}

// Tesseract habitually misreads the decimal point inside amounts as a
// semicolon or colon, and sprays stray "NA" tokens into sparse rows.
var (
	ocrSemicolonRe  = regexp.MustCompile(`(\d);(\s*)(\d)`)
	ocrColonRe      = regexp.MustCompile(`(\d):(\d)`)
	ocrColonSpaceRe = regexp.MustCompile(`(\d):\s`)
	ocrColonEndRe   = regexp.MustCompile(`(\d):$`)
	ocrNoiseRe      = regexp.MustCompile(`\s+NA\b`)
)

// SanitizeOCR repairs common OCR damage in amount-bearing text, so that
// "19,720; 15" reads back as "19,720.15".
func SanitizeOCR(line string) string {
	line = ocrSemicolonRe.ReplaceAllString(line, "$1.$3")
	line = ocrColonRe.ReplaceAllString(line, "$1.$2")
	line = ocrColonSpaceRe.ReplaceAllString(line, "$1 ")
	line = ocrColonEndRe.ReplaceAllString(line, "$1")
	line = ocrNoiseRe.ReplaceAllString(line, "")
	line = strings.ReplaceAll(line, "−", "-")
	return line
}

// ParseAmount converts a statement cell like "1,234.56", "-£45.00",
// "(45.00)" or "45.00-" into a decimal. The boolean reports whether the
// cell held a parseable amount; empty cells are not amounts.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = SanitizeOCR(strings.TrimSpace(s))

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && len(s) > 2 {
		neg = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") && len(s) > 1 {
		neg = true
		s = strings.TrimSuffix(s, "-")
	}

	for _, c := range currencySymbols {
		s = strings.ReplaceAll(s, c.symbol, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	if s == "" || s == "-" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}
