package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

func TestParseLinesGrammar(t *testing.T) {
	text := `ACME BANK Statement
Date Description Paid Out Paid In Balance
Opening balance 1,000.00
15/06 CARD PAYMENT TESCO 25.99 974.01
16/06 BGC ACME LTD 2,000.00 2,974.01
17/06 ATM WITHDRAWAL LEEDS 40.00`

	txns := testParser().parseLines(text, Options{YearHint: 2024, DefaultCurrency: "GBP"})
	if len(txns) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txns))
	}

	// Two amounts: the second is the running balance, and the movement
	// from the seeded opening balance decides the direction.
	checkTxn(t, txns[0],
		time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		"CARD PAYMENT TESCO", "-25.99", models.TypeDebit)
	if b := txns[0].Balance; !b.Valid || b.Decimal.String() != "974.01" {
		t.Errorf("balance = %+v, want valid 974.01", b)
	}

	// 974.01 + 2,000.00 lands on the printed balance, so this is a
	// credit even though the payee alone reads as a debit.
	checkTxn(t, txns[1],
		time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC),
		"BGC ACME LTD", "2000", models.TypeCredit)

	// One amount: type comes from the payee, no balance recorded.
	checkTxn(t, txns[2],
		time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC),
		"ATM WITHDRAWAL LEEDS", "-40", models.TypeDebit)
	if txns[2].Balance.Valid {
		t.Error("single-amount line should carry no balance")
	}
}

// Three amounts are the money-out/money-in pair plus the balance; the
// arithmetic picks whichever column actually moved the balance.
func TestParseLinesTripleAmounts(t *testing.T) {
	text := `Balance brought forward 500.00
15/06 REFUND ONLINE ORDER 0.00 50.00 550.00
16/06 CARD PAYMENT COSTA 75.00 0.00 475.00`

	txns := testParser().parseLines(text, Options{YearHint: 2024, DefaultCurrency: "GBP"})
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txns))
	}
	checkTxn(t, txns[0],
		time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		"REFUND ONLINE ORDER", "50", models.TypeCredit)
	checkTxn(t, txns[1],
		time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC),
		"CARD PAYMENT COSTA", "-75", models.TypeDebit)
}

// A line without a date extends the previous payee once the transaction
// section has started; before that it is ignored.
func TestParseLinesContinuation(t *testing.T) {
	text := `Your statement for account 12345678
Date Description Amount Balance
15/06 CARD PAYMENT TESCO 25.99 974.01
REF 8841 STORE LONDON
16/06 CASH WDL 40.00 934.01`

	txns := testParser().parseLines(text, Options{YearHint: 2024, DefaultCurrency: "GBP"})
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txns))
	}
	if want := "CARD PAYMENT TESCO REF 8841 STORE LONDON"; txns[0].Payee != want {
		t.Errorf("payee = %q, want %q", txns[0].Payee, want)
	}
	if txns[1].Payee != "CASH WDL" {
		t.Errorf("payee = %q, want CASH WDL", txns[1].Payee)
	}
}

func TestResolveLineAmounts(t *testing.T) {
	prev := decimal.NullDecimal{Decimal: decimal.RequireFromString("999.01"), Valid: true}
	noPrev := decimal.NullDecimal{}

	tests := []struct {
		name    string
		cells   []string
		prev    decimal.NullDecimal
		payee   string
		amount  string
		typ     string
		balance string // "" means invalid
		ok      bool
	}{
		{"single inferred", []string{"45.00"}, noPrev, "CARD PAYMENT", "45", models.TypeDebit, "", true},
		{"single negative wins over payee", []string{"(45.00)"}, noPrev, "REFUND", "45", models.TypeDebit, "", true},
		{"pair debit by arithmetic", []string{"45.00", "954.01"}, prev, "MYSTERY 1", "45", models.TypeDebit, "954.01", true},
		{"pair credit by arithmetic", []string{"45.00", "1044.01"}, prev, "MYSTERY 2", "45", models.TypeCredit, "1044.01", true},
		{"pair without prior balance infers", []string{"45.00", "500.00"}, noPrev, "REFUND XYZ", "45", models.TypeCredit, "500", true},
		{"triple out only", []string{"75.00", "x", "924.01"}, prev, "ANY", "75", models.TypeDebit, "924.01", true},
		{"triple in only", []string{"x", "75.00", "1074.01"}, prev, "ANY", "75", models.TypeCredit, "1074.01", true},
		{"triple both defaults to out", []string{"75.00", "25.00", "100.00"}, noPrev, "ANY", "75", models.TypeDebit, "100", true},
		{"triple unparseable balance", []string{"75.00", "25.00", "x"}, prev, "ANY", "0", "", "", false},
		{"unparseable amount", []string{"x"}, noPrev, "ANY", "0", "", "", false},
	}
	for _, tt := range tests {
		amt, bal, typ, ok := resolveLineAmounts(tt.cells, tt.prev, tt.payee)
		if ok != tt.ok {
			t.Errorf("%s: ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if amt.Abs().String() != tt.amount {
			t.Errorf("%s: amount = %s, want %s", tt.name, amt.Abs(), tt.amount)
		}
		if typ != tt.typ {
			t.Errorf("%s: type = %q, want %q", tt.name, typ, tt.typ)
		}
		if (tt.balance != "") != bal.Valid {
			t.Errorf("%s: balance valid = %v, want %v", tt.name, bal.Valid, tt.balance != "")
		} else if bal.Valid && bal.Decimal.String() != tt.balance {
			t.Errorf("%s: balance = %s, want %s", tt.name, bal.Decimal, tt.balance)
		}
	}
}

func TestClassifyByBalance(t *testing.T) {
	prev := decimal.NullDecimal{Decimal: decimal.NewFromInt(1000), Valid: true}

	tests := []struct {
		name    string
		amount  string
		balance string
		prev    decimal.NullDecimal
		payee   string
		want    string
	}{
		{"balance fell", "25.99", "974.01", prev, "ANY", models.TypeDebit},
		{"balance rose", "50.00", "1050.00", prev, "ANY", models.TypeCredit},
		{"within tolerance", "25.99", "974.02", prev, "ANY", models.TypeDebit},
		{"arithmetic dead end falls back to payee", "10.00", "500.00", prev, "REFUND", models.TypeCredit},
		{"no prior balance falls back to payee", "10.00", "500.00", decimal.NullDecimal{}, "CARD PAYMENT", models.TypeDebit},
	}
	for _, tt := range tests {
		got := classifyByBalance(
			decimal.RequireFromString(tt.amount),
			decimal.RequireFromString(tt.balance),
			tt.prev, tt.payee)
		if got != tt.want {
			t.Errorf("%s: classifyByBalance = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExtractOpeningBalance(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"Opening balance 1,234.56", "1234.56", true},
		{"Balance brought forward £500.00", "500", true},
		{"Opening balance", "0", false},
		{"15/06 CARD PAYMENT 25.99", "0", false},
	}
	for _, tt := range tests {
		got, ok := extractOpeningBalance(strings.ToLower(tt.line), tt.line)
		if ok != tt.ok {
			t.Errorf("extractOpeningBalance(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			continue
		}
		if ok && got.String() != tt.want {
			t.Errorf("extractOpeningBalance(%q) = %s, want %s", tt.line, got, tt.want)
		}
	}
}

func TestIsHeaderLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"date description paid out paid in balance", true},
		{"date details amount", true},
		{"transaction date amount", true},
		{"date balance summary", false}, // no description column
		{"description and amount", false},
		{"sort code 12-34-56", false},
	}
	for _, tt := range tests {
		if got := isHeaderLine(tt.line); got != tt.want {
			t.Errorf("isHeaderLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestNormalizeLine(t *testing.T) {
	in := " ​15/06 CARD PAYMENT​ 25.99 "
	if got, want := normalizeLine(in), "15/06 CARD PAYMENT 25.99"; got != want {
		t.Errorf("normalizeLine = %q, want %q", got, want)
	}
}
