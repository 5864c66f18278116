package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types. Amount is signed to match: debits are stored
// negative, credits positive.
const (
	TypeCredit = "Credit"
	TypeDebit  = "Debit"
)

// Transaction is a single parsed statement row.
type Transaction struct {
	ID          int64               `json:"id"`
	StatementID int64               `json:"statementId"`
	Date        time.Time           `json:"date"`
	Payee       string              `json:"payee"`
	Amount      decimal.Decimal     `json:"amount"`
	Type        string              `json:"type"` // Credit or Debit
	Balance     decimal.NullDecimal `json:"balance"`
	Currency    string              `json:"currency"`
}
