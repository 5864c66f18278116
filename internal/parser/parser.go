package parser

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Options tune a parse run.
type Options struct {
	// YearHint resolves dates printed without a year. Zero means the
	// current year.
	YearHint int
	// DefaultCurrency applies when no currency symbol appears in a row.
	DefaultCurrency string
}

// Stats counts what the parser did with the extracted material.
type Stats struct {
	TablesSeen    int `json:"tablesSeen"`
	RowsSeen      int `json:"rowsSeen"`
	RowsParsed    int `json:"rowsParsed"`
	RowsDropped   int `json:"rowsDropped"`
	PagesWithText int `json:"pagesWithText"`
}

// Result is a parse outcome. Parsing never fails as a whole; malformed
// rows are dropped and counted instead.
type Result struct {
	Transactions []models.Transaction
	Stats        Stats
}

// Parser turns extracted tables into transactions, falling back to raw
// text lines on pages whose tables yield nothing.
type Parser struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{log: log}
}

// Parse walks the pipeline result page by page. A malformed row never
// aborts the run; it is dropped, counted, and logged at debug.
func (p *Parser) Parse(result *models.PipelineResult, opts Options) *Result {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "GBP"
	}

	res := &Result{Transactions: []models.Transaction{}}
	for _, page := range result.Pages {
		pageTxns := 0
		for _, table := range page.Tables {
			res.Stats.TablesSeen++
			txns := p.parseTable(table, opts, &res.Stats)
			pageTxns += len(txns)
			res.Transactions = append(res.Transactions, txns...)
		}
		if pageTxns == 0 && strings.TrimSpace(page.FullText) != "" {
			txns := p.parseLines(page.FullText, opts)
			if len(txns) > 0 {
				res.Stats.PagesWithText++
				p.log.Debug("recovered transactions from text lines",
					"page", page.Page, "count", len(txns))
			}
			res.Transactions = append(res.Transactions, txns...)
		}
	}
	return res
}

type rowOutcome int

const (
	rowParsed rowOutcome = iota
	rowDropped
	rowSkipped // summary and blank rows, not counted as failures
)

func (p *Parser) parseTable(table models.Table, opts Options, stats *Stats) []models.Transaction {
	rows := table.Rows
	if len(rows) == 0 {
		return nil
	}
	cm := resolveColumns(rows)
	data := rows
	if cm.headerRow {
		data = rows[1:]
	}

	var txns []models.Transaction
	for _, row := range data {
		stats.RowsSeen++
		txn, outcome := p.parseRow(row, cm, opts)
		switch outcome {
		case rowParsed:
			stats.RowsParsed++
			txns = append(txns, txn)
		case rowDropped:
			stats.RowsDropped++
			p.log.Debug("dropped unparseable row", "row", strings.Join(row, " | "))
		}
	}
	return txns
}

// parseRow applies the row rules: a date is mandatory, a missing payee
// becomes "Unknown Transaction", split withdrawal/deposit columns fix
// the sign and type directly, and a single amount column infers the
// type from the payee unless the cell carries an explicit sign.
func (p *Parser) parseRow(row []string, cm columnMap, opts Options) (models.Transaction, rowOutcome) {
	cellAt := func(i int) string {
		if i >= 0 && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	joined := strings.TrimSpace(strings.Join(row, " "))
	if joined == "" || isSummaryText(strings.ToLower(joined)) {
		return models.Transaction{}, rowSkipped
	}

	dateStr := cellAt(cm.date)
	if dateStr == "" {
		return models.Transaction{}, rowDropped
	}
	date, ok := ParseDate(dateStr, opts.YearHint)
	if !ok {
		return models.Transaction{}, rowDropped
	}

	payee := cellAt(cm.payee)
	if payee == "" {
		payee = "Unknown Transaction"
	}

	var (
		amount   decimal.Decimal
		txnType  string
		rawCell  string
		resolved bool
	)

	if wStr := cellAt(cm.withdrawal); wStr != "" {
		if w, okW := ParseAmount(wStr); okW {
			amount = w.Abs().Neg()
			txnType = models.TypeDebit
			rawCell = wStr
			resolved = true
		}
	}
	if !resolved {
		if dStr := cellAt(cm.deposit); dStr != "" {
			if d, okD := ParseAmount(dStr); okD {
				amount = d.Abs()
				txnType = models.TypeCredit
				rawCell = dStr
				resolved = true
			}
		}
	}
	if !resolved {
		if aStr := cellAt(cm.amount); aStr != "" {
			if a, okA := ParseAmount(aStr); okA {
				if a.IsNegative() {
					amount = a
					txnType = models.TypeDebit
				} else {
					txnType = InferType(payee)
					amount = a
					if txnType == models.TypeDebit {
						amount = a.Neg()
					}
				}
				rawCell = aStr
				resolved = true
			}
		}
	}
	if !resolved {
		return models.Transaction{}, rowDropped
	}

	var balance decimal.NullDecimal
	if bStr := cellAt(cm.balance); bStr != "" {
		if b, okB := ParseAmount(bStr); okB {
			balance = decimal.NullDecimal{Decimal: b, Valid: true}
		}
	}

	currency := DetectCurrency(rawCell)
	if currency == "" {
		currency = opts.DefaultCurrency
	}

	return models.Transaction{
		Date:     date,
		Payee:    payee,
		Amount:   amount,
		Type:     txnType,
		Balance:  balance,
		Currency: currency,
	}, rowParsed
}

// summaryPhrases mark non-transaction rows. The multi-word phrases match
// anywhere; the bare totals only at the start, so a payee like "TOTAL
// GAS" read mid-row does not lose its transaction.
var summaryPhrases = []string{
	"opening balance",
	"closing balance",
	"balance brought forward",
	"balance carried forward",
	"beginning balance",
	"ending balance",
	"total paid in",
	"total paid out",
	"total payments",
	"total receipts",
	"statement period",
	"continued on",
	"continued overleaf",
}

var summaryPrefixes = []string{
	"total",
	"subtotal",
	"page ",
}

func isSummaryText(lower string) bool {
	for _, p := range summaryPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	for _, p := range summaryPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
