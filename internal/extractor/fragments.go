package extractor

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"
)

// Fragment is a positioned run of text in PDF user space (origin bottom
// left, Y increasing upward). The library hands back individual glyphs;
// mergeWords joins them into word-level fragments.
type Fragment struct {
	Text string
	X    float64 // left edge
	Y    float64 // baseline
	W    float64
	Size float64 // font size in points
}

// wordGapFactor scales font size into the widest horizontal gap that
// still belongs to the same word.
const wordGapFactor = 0.3

// mergeWords joins adjacent glyphs on the same baseline into words and
// normalizes the text (NFKC folds the ligatures and presentation forms
// some statement fonts emit).
func mergeWords(texts []pdf.Text) []Fragment {
	var frags []Fragment
	var cur *Fragment
	var lastEnd float64

	for _, t := range texts {
		if t.S == "" {
			continue
		}
		maxGap := wordGapFactor * t.FontSize
		if maxGap < 1 {
			maxGap = 1
		}
		gap := t.X - lastEnd
		if cur != nil && math.Abs(t.Y-cur.Y) < 0.5 && gap >= -1 && gap <= maxGap {
			cur.Text += t.S
			cur.W = t.X + t.W - cur.X
		} else {
			if cur != nil {
				frags = append(frags, *cur)
			}
			cur = &Fragment{Text: t.S, X: t.X, Y: t.Y, W: t.W, Size: t.FontSize}
		}
		lastEnd = t.X + t.W
	}
	if cur != nil {
		frags = append(frags, *cur)
	}

	for i := range frags {
		frags[i].Text = norm.NFKC.String(frags[i].Text)
	}
	return frags
}

// ReadingText rebuilds the page text in reading order: lines top to
// bottom, words left to right, with wide gaps rendered as a double space
// so downstream line parsing can split on them.
func ReadingText(frags []Fragment) string {
	if len(frags) == 0 {
		return ""
	}
	const lineTolerance = 2.0
	const columnGap = 15.0

	sorted := append([]Fragment(nil), frags...)
	sort.Slice(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > lineTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var sb strings.Builder
	lineY := sorted[0].Y
	lineEnd := 0.0
	for i, f := range sorted {
		switch {
		case i == 0:
		case math.Abs(f.Y-lineY) > lineTolerance:
			sb.WriteByte('\n')
			lineY = f.Y
		case f.X-lineEnd > columnGap:
			sb.WriteString("  ")
		default:
			sb.WriteByte(' ')
		}
		sb.WriteString(f.Text)
		lineEnd = f.X + f.W
	}
	return sb.String()
}

// fragmentQuality returns the ratio of basic readable characters to total
// characters across the fragments. A strict ASCII check is deliberate:
// unicode.IsLetter is too broad and matches the accented garbage that
// identity-encoded fonts decode to.
func fragmentQuality(frags []Fragment) float64 {
	total := 0
	readable := 0
	for _, f := range frags {
		for _, r := range f.Text {
			total++
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
				(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
				r == '.' || r == ',' || r == '-' || r == '/' || r == ':' ||
				r == ';' || r == '(' || r == ')' || r == '\'' || r == '"' ||
				r == '£' || r == '$' || r == '€' || r == '%' || r == '&' ||
				r == '@' || r == '#' || r == '!' || r == '?' || r == '+' ||
				r == '=' || r == '*' {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

// fragmentTextLen sums the rune count of all fragments.
func fragmentTextLen(frags []Fragment) int {
	n := 0
	for _, f := range frags {
		n += len([]rune(f.Text))
	}
	return n
}

// hasReadableText reports whether the text layer is usable for layout
// analysis. Short text passes (nothing to misread); longer text must be
// mostly readable characters or the font encoding is broken and the page
// belongs to the raster path.
func hasReadableText(frags []Fragment) bool {
	if fragmentTextLen(frags) <= 50 {
		return true
	}
	return fragmentQuality(frags) > 0.6
}
