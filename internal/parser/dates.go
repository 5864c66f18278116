package parser

import (
	"regexp"
	"strings"
	"time"
)

// fullDateFormats are tried in order. US month-first forms come ahead of
// day-first ones, so an ambiguous 03/04/2024 resolves as March 4th; an
// impossible month like 15/01/2024 falls through to the day-first form.
var fullDateFormats = []string{
	"1/2/06",
	"1/2/2006",
	"2/1/06",
	"2/1/2006",
	"1-2-06",
	"1-2-2006",
	"2-1-06",
	"2-1-2006",
	"2006-01-02",
	"2 January 2006",
	"2 Jan 2006",
	"2 Jan 06",
	"2-Jan-2006",
	"2-Jan-06",
	"January 2, 2006",
	"Jan 2, 2006",
	"2Jan2006",
}

// partialDateFormats carry no year. Matches take the caller's year hint
// verbatim; a statement spanning December into January keeps the hint on
// both sides rather than guessing a rollover.
var partialDateFormats = []string{
	"1/2",
	"2/1",
	"1-2",
	"2-1",
	"2 January",
	"2 Jan",
	"2Jan",
}

// ParseDate parses a statement date cell, trying full formats first and
// then year-less partials resolved against yearHint. Returns false for
// anything that does not land on a calendar date.
func ParseDate(s string, yearHint int) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range fullDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if yearHint <= 0 {
		yearHint = time.Now().Year()
	}
	for _, layout := range partialDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(yearHint, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// Date shapes that open a transaction line in free statement text.
var lineDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}/\d{1,2}(?:/\d{2,4})?`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`\d{1,2}-\d{1,2}(?:-\d{2,4})?`),
	regexp.MustCompile(`\d{1,2}\s+(?i:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[A-Za-z]*`),
	regexp.MustCompile(`\d{1,2}(?i:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[A-Za-z]*`),
}

// startsWithDate reports whether a date sits at or near the start of the
// line. A little leading slack absorbs OCR droppings before the date.
func startsWithDate(line string) bool {
	for _, re := range lineDatePatterns {
		if loc := re.FindStringIndex(line); loc != nil && loc[0] < 3 {
			return true
		}
	}
	return false
}
