package statement

// normalize.go converts statement field arrays into Records.
//
// Normalization never fails. Unrecognized dates pass through unchanged (the
// commit step validates them), unparsable amounts become zero with
// AmountValid=false, and absent columns become empty strings.

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Column positions (0-indexed) in the Banco do Brasil export.
const (
	ColDate          = 3
	ColDocument      = 7
	ColOperationCode = 8
	ColOperationType = 9
	ColAmount        = 10
	ColCounterparty  = 12
)

// counterpartyPrefix matches the internal numeric code the bank prepends to names,
// e.g. "00123/JOAO DA SILVA" or "4411 - ACME LTDA".
var counterpartyPrefix = regexp.MustCompile(`^\d+[\s/\-:]*`)

// Record is one normalized statement transaction.
type Record struct {
	Date             string
	DocumentRef      string
	OperationCode    string
	OperationType    string
	Amount           decimal.Decimal
	AmountValid      bool
	CounterpartyName string
}

// Parse tokenizes text and normalizes every transaction line.
func Parse(text string) ([]Record, error) {
	rows, err := Tokenize(text)
	if err != nil {
		return nil, err
	}

	records := make([]Record, len(rows))
	for i, fields := range rows {
		records[i] = Normalize(fields)
	}
	return records, nil
}

// Normalize maps one field array to a Record. It always succeeds.
func Normalize(fields []string) Record {
	amount, ok := ParseAmount(field(fields, ColAmount))

	return Record{
		Date:             NormalizeDate(field(fields, ColDate)),
		DocumentRef:      field(fields, ColDocument),
		OperationCode:    field(fields, ColOperationCode),
		OperationType:    field(fields, ColOperationType),
		Amount:           amount,
		AmountValid:      ok,
		CounterpartyName: CleanCounterparty(field(fields, ColCounterparty)),
	}
}

// NormalizeDate converts DD/MM/YYYY or DD.MM.YYYY to YYYY-MM-DD, padding day
// and month to two digits. Any other shape is returned trimmed but otherwise
// unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)

	sep := ""
	switch {
	case strings.Contains(s, "/"):
		sep = "/"
	case strings.Contains(s, "."):
		sep = "."
	default:
		return s
	}

	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return s
	}

	day, month, year := parts[0], parts[1], parts[2]
	return year + "-" + padTwo(month) + "-" + padTwo(day)
}

// ParseAmount parses a comma-decimal amount such as "-150,75".
//
// Only the decimal comma is replaced; thousands separators are not stripped,
// so "1.234,56" does not parse. The second return value is false when the
// input could not be parsed, in which case the amount is zero.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// CleanCounterparty strips the leading numeric transaction code and the
// separators that follow it, then trims whitespace.
func CleanCounterparty(s string) string {
	return strings.TrimSpace(counterpartyPrefix.ReplaceAllString(s, ""))
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

func padTwo(s string) string {
	if len(s) >= 2 {
		return s
	}
	return strings.Repeat("0", 2-len(s)) + s
}
