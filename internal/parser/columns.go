package parser

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// columnRole identifies what a statement table column carries.
type columnRole int

const (
	colNone columnRole = iota
	colDate
	colPayee
	colWithdrawal
	colDeposit
	colAmount
	colBalance
)

// headerSynonyms maps header substrings to roles. Order matters: the
// first hit wins per cell, so date outranks "transaction date" noise and
// the split withdrawal/deposit names outrank the generic "amount".
var headerSynonyms = []struct {
	token string
	role  columnRole
}{
	{"date", colDate},
	{"description", colPayee},
	{"payee", colPayee},
	{"details", colPayee},
	{"narrative", colPayee},
	{"transaction", colPayee},
	{"withdrawal", colWithdrawal},
	{"paid out", colWithdrawal},
	{"money out", colWithdrawal},
	{"debit", colWithdrawal},
	{"deposit", colDeposit},
	{"paid in", colDeposit},
	{"money in", colDeposit},
	{"credit", colDeposit},
	{"amount", colAmount},
	{"balance", colBalance},
}

// matchHeaderCell maps one normalized header cell to a role. A fuzzy
// second pass lets a single OCR misread ("Dale", "Debil") still map;
// short and multi-word tokens stay exact-only, they are too easy to hit
// by accident.
func matchHeaderCell(cell string) columnRole {
	for _, s := range headerSynonyms {
		if strings.Contains(cell, s.token) {
			return s.role
		}
	}
	words := strings.Fields(cell)
	for _, s := range headerSynonyms {
		if len(s.token) < 4 || strings.Contains(s.token, " ") {
			continue
		}
		for _, w := range words {
			if fuzzy.LevenshteinDistance(w, s.token) <= 1 {
				return s.role
			}
		}
	}
	return colNone
}

// columnMap resolves table columns to roles, -1 when absent.
type columnMap struct {
	date       int
	payee      int
	withdrawal int
	deposit    int
	amount     int
	balance    int
	headerRow  bool // first row was a recognized header, not data
}

// resolveColumns reads the first row as a candidate header and fills the
// gaps positionally: date first, payee second, amount next to last when
// the table is wide enough, balance last. The first row only counts as a
// header when it maps a date column or at least two roles; a lone
// keyword in a data cell ("DIRECT DEBIT") must not eat the row.
func resolveColumns(rows [][]string) columnMap {
	cm := columnMap{date: -1, payee: -1, withdrawal: -1, deposit: -1, amount: -1, balance: -1}
	if len(rows) == 0 {
		return cm
	}

	header := rows[0]
	mapped := 0
	for i, cell := range header {
		norm := strings.ToLower(strings.TrimSpace(cell))
		if norm == "" {
			continue
		}
		role := matchHeaderCell(norm)
		if role == colNone {
			continue
		}
		mapped++
		switch role {
		case colDate:
			if cm.date < 0 {
				cm.date = i
			}
		case colPayee:
			if cm.payee < 0 {
				cm.payee = i
			}
		case colWithdrawal:
			if cm.withdrawal < 0 {
				cm.withdrawal = i
			}
		case colDeposit:
			if cm.deposit < 0 {
				cm.deposit = i
			}
		case colAmount:
			if cm.amount < 0 {
				cm.amount = i
			}
		case colBalance:
			if cm.balance < 0 {
				cm.balance = i
			}
		}
	}
	cm.headerRow = cm.date >= 0 || mapped >= 2
	if !cm.headerRow {
		// A stray keyword in a data row ("DIRECT DEBIT") is not a
		// header; keep nothing from it.
		cm = columnMap{date: -1, payee: -1, withdrawal: -1, deposit: -1, amount: -1, balance: -1}
	}

	width := len(header)
	if cm.date < 0 {
		cm.date = 0
	}
	if cm.payee < 0 && width > 1 {
		cm.payee = 1
	}
	if cm.amount < 0 && cm.withdrawal < 0 && cm.deposit < 0 && width >= 3 {
		cm.amount = width - 2
	}
	if cm.balance < 0 && width >= 4 {
		cm.balance = width - 1
	}
	return cm
}
