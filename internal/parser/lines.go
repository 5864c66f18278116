package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Line grammar for free statement text: a date, a description, then one
// amount, or an amount and a running balance.
const (
	lineDateAlt = `\d{1,2}/\d{1,2}(?:/\d{2,4})?` +
		`|\d{4}-\d{2}-\d{2}` +
		`|\d{1,2}-\d{1,2}(?:-\d{2,4})?` +
		`|\d{1,2}\s*(?i:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[A-Za-z]*(?:\s+\d{2,4})?`
	lineAmountPat = `\(?-?[£$€]?[\d,]+\.\d{2}\)?-?`
)

var (
	lineTripleRe = regexp.MustCompile(`^(` + lineDateAlt + `)\s+(.+?)\s+(` + lineAmountPat + `)\s+(` + lineAmountPat + `)\s+(` + lineAmountPat + `)\s*$`)
	lineFullRe   = regexp.MustCompile(`^(` + lineDateAlt + `)\s+(.+?)\s+(` + lineAmountPat + `)\s+(` + lineAmountPat + `)\s*$`)
	lineSimpleRe = regexp.MustCompile(`^(` + lineDateAlt + `)\s+(.+?)\s+(` + lineAmountPat + `)\s*$`)
	lineAmountRe = regexp.MustCompile(`[\d,]+\.\d{2}`)
)

// normalizeLine strips extraction artifacts: zero-width spaces from the
// text layer and non-breaking spaces from OCR.
func normalizeLine(line string) string {
	line = strings.ReplaceAll(line, "​", "")
	line = strings.ReplaceAll(line, " ", " ")
	return strings.TrimSpace(line)
}

// balanceTolerance absorbs OCR rounding when checking balance arithmetic.
var balanceTolerance = decimal.NewFromFloat(0.015)

// parseLines recovers transactions from a page's raw text when its
// tables yielded nothing. Lines with a leading date parse as
// transactions; lines without one extend the previous description once
// the transaction section has started.
func (p *Parser) parseLines(text string, opts Options) []models.Transaction {
	var txns []models.Transaction
	var lastBalance decimal.NullDecimal
	inSection := false

	for _, raw := range strings.Split(text, "\n") {
		line := SanitizeOCR(normalizeLine(raw))
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		if bal, ok := extractOpeningBalance(lower, line); ok {
			lastBalance = decimal.NullDecimal{Decimal: bal, Valid: true}
			inSection = true
			continue
		}
		if isSummaryText(lower) {
			continue
		}
		if isHeaderLine(lower) {
			inSection = true
			continue
		}

		var amtCells []string
		m := lineTripleRe.FindStringSubmatch(line)
		if m != nil {
			amtCells = m[3:6]
		} else if m = lineFullRe.FindStringSubmatch(line); m != nil {
			amtCells = m[3:5]
		} else if m = lineSimpleRe.FindStringSubmatch(line); m != nil {
			amtCells = m[3:4]
		}
		if m == nil {
			if inSection && len(txns) > 0 && !startsWithDate(line) && hasLetter(line) {
				txns[len(txns)-1].Payee += " " + line
			}
			continue
		}

		date, ok := ParseDate(m[1], opts.YearHint)
		if !ok {
			continue
		}
		inSection = true

		payee := strings.TrimSpace(m[2])
		if payee == "" {
			payee = "Unknown Transaction"
		}

		amt, balance, txnType, ok := resolveLineAmounts(amtCells, lastBalance, payee)
		if !ok {
			continue
		}
		if txnType == models.TypeDebit {
			amt = amt.Abs().Neg()
		} else {
			amt = amt.Abs()
		}

		currency := DetectCurrency(m[0])
		if currency == "" {
			currency = opts.DefaultCurrency
		}

		txns = append(txns, models.Transaction{
			Date:     date,
			Payee:    payee,
			Amount:   amt,
			Type:     txnType,
			Balance:  balance,
			Currency: currency,
		})
		if balance.Valid {
			lastBalance = balance
		}
	}
	return txns
}

// resolveLineAmounts assigns the trailing amounts of a line. One amount
// stands alone; with two, the last is the running balance; with three,
// the middle amounts are the money-out/money-in pair and balance
// arithmetic picks the one that actually moved the balance.
func resolveLineAmounts(cells []string, lastBalance decimal.NullDecimal, payee string) (decimal.Decimal, decimal.NullDecimal, string, bool) {
	var balance decimal.NullDecimal

	switch len(cells) {
	case 1:
		amt, ok := ParseAmount(cells[0])
		if !ok {
			return decimal.Decimal{}, balance, "", false
		}
		txnType := InferType(payee)
		if amt.IsNegative() {
			txnType = models.TypeDebit
		}
		return amt, balance, txnType, true

	case 2:
		amt, ok := ParseAmount(cells[0])
		if !ok {
			return decimal.Decimal{}, balance, "", false
		}
		if b, okB := ParseAmount(cells[1]); okB {
			balance = decimal.NullDecimal{Decimal: b, Valid: true}
		}
		var txnType string
		switch {
		case amt.IsNegative():
			txnType = models.TypeDebit
		case balance.Valid:
			txnType = classifyByBalance(amt, balance.Decimal, lastBalance, payee)
		default:
			txnType = InferType(payee)
		}
		return amt, balance, txnType, true

	case 3:
		out, okOut := ParseAmount(cells[0])
		in, okIn := ParseAmount(cells[1])
		b, okB := ParseAmount(cells[2])
		if !okB || (!okOut && !okIn) {
			return decimal.Decimal{}, balance, "", false
		}
		balance = decimal.NullDecimal{Decimal: b, Valid: true}
		if okOut && !okIn {
			return out, balance, models.TypeDebit, true
		}
		if okIn && !okOut {
			return in, balance, models.TypeCredit, true
		}
		// Both parsed: test each against the balance movement.
		if lastBalance.Valid {
			if lastBalance.Decimal.Sub(out.Abs()).Sub(b).Abs().LessThanOrEqual(balanceTolerance) {
				return out, balance, models.TypeDebit, true
			}
			if lastBalance.Decimal.Add(in.Abs()).Sub(b).Abs().LessThanOrEqual(balanceTolerance) {
				return in, balance, models.TypeCredit, true
			}
		}
		// No balance to test against: money-out column comes first on
		// every layout this grammar matches.
		return out, balance, models.TypeDebit, true
	}
	return decimal.Decimal{}, balance, "", false
}

// classifyByBalance decides debit against credit from the running
// balance: whichever direction makes previous +/- amount land on the
// printed balance wins. Keyword inference settles lines the arithmetic
// cannot.
func classifyByBalance(amt, balance decimal.Decimal, prev decimal.NullDecimal, payee string) string {
	if prev.Valid {
		a := amt.Abs()
		debitDiff := prev.Decimal.Sub(a).Sub(balance).Abs()
		creditDiff := prev.Decimal.Add(a).Sub(balance).Abs()
		debitOK := debitDiff.LessThanOrEqual(balanceTolerance)
		creditOK := creditDiff.LessThanOrEqual(balanceTolerance)
		switch {
		case debitOK && !creditOK:
			return models.TypeDebit
		case creditOK && !debitOK:
			return models.TypeCredit
		case debitOK && creditOK:
			if debitDiff.LessThanOrEqual(creditDiff) {
				return models.TypeDebit
			}
			return models.TypeCredit
		}
	}
	return InferType(payee)
}

// extractOpeningBalance seeds the running balance from an opening
// balance line so the first transaction after it can classify by
// balance arithmetic.
func extractOpeningBalance(lower, line string) (decimal.Decimal, bool) {
	if !strings.Contains(lower, "opening balance") &&
		!strings.Contains(lower, "brought forward") &&
		!strings.Contains(lower, "beginning balance") {
		return decimal.Decimal{}, false
	}
	amounts := lineAmountRe.FindAllString(line, -1)
	if len(amounts) == 0 {
		return decimal.Decimal{}, false
	}
	return ParseAmount(amounts[len(amounts)-1])
}

// isHeaderLine spots the column header row inside free text, which marks
// the start of the transaction section.
func isHeaderLine(lower string) bool {
	if !strings.Contains(lower, "date") {
		return false
	}
	desc := strings.Contains(lower, "description") ||
		strings.Contains(lower, "details") ||
		strings.Contains(lower, "payment type") ||
		strings.Contains(lower, "transaction")
	amount := strings.Contains(lower, "paid out") ||
		strings.Contains(lower, "paid in") ||
		strings.Contains(lower, "money out") ||
		strings.Contains(lower, "money in") ||
		strings.Contains(lower, "withdrawal") ||
		strings.Contains(lower, "deposit") ||
		strings.Contains(lower, "amount") ||
		strings.Contains(lower, "balance")
	return desc && amount
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}
