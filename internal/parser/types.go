package parser

import (
	"strings"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Keyword ladders for inferring transaction type from payee text. Strong
// phrases decide outright; the general lists settle what remains, with
// credit words checked first because debit words like "payment" appear
// inside phrases that are actually credits ("biweekly payment").
var (
	strongDebitKeywords = []string{
		"card payment",
		"pos purchase",
		"atm withdrawal",
		"cash withdrawal",
		"cash wdl",
		"direct debit",
		"service charge",
		"monthly rent",
	}
	strongCreditKeywords = []string{
		"preauthorized credit",
		"interest credit",
		"salary credit",
		"credit wage",
		"wage credit",
		"payroll deposit",
		"direct deposit",
		"biweekly payment",
	}
	creditKeywords = []string{
		"credit",
		"deposit",
		"interest",
		"payroll",
		"refund",
		"salary",
		"pension",
		"benefit",
		"transfer in",
		"wage",
	}
	debitKeywords = []string{
		"purchase",
		"pos",
		"withdrawal",
		"atm",
		"check",
		"payment",
		"debit",
		"fee",
		"charge",
		"transfer out",
		"wdl",
	}
)

// InferType classifies a transaction from its payee text. Debit is the
// default: on a bank statement, unrecognized rows are far more often
// spending than income.
func InferType(payee string) string {
	lower := strings.ToLower(payee)
	for _, kw := range strongDebitKeywords {
		if strings.Contains(lower, kw) {
			return models.TypeDebit
		}
	}
	for _, kw := range strongCreditKeywords {
		if strings.Contains(lower, kw) {
			return models.TypeCredit
		}
	}
	for _, kw := range creditKeywords {
		if strings.Contains(lower, kw) {
			return models.TypeCredit
		}
	}
	for _, kw := range debitKeywords {
		if strings.Contains(lower, kw) {
			return models.TypeDebit
		}
	}
	return models.TypeDebit
}
