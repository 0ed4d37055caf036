// Package statement parses semicolon-delimited bank statement exports into
// normalized transaction records.
//
// The pipeline has two pure steps:
//
//  1. [Tokenize] splits decoded text into field arrays, discarding blank lines
//     and the opening/closing balance lines.
//  2. [Normalize] maps one field array to a [Record], converting the locale
//     specific date and amount formats and cleaning the counterparty name.
//
// [Parse] runs both. Neither step has side effects, so the same text always
// yields the same records.
package statement

import (
	"errors"
	"strings"
)

// FieldSeparator separates the columns of a statement line.
const FieldSeparator = ";"

// minStatementLines is the opening balance, one transaction and the closing balance.
const minStatementLines = 3

// ErrInvalidFile is returned when a statement is too short to contain a
// transaction between its balance lines.
var ErrInvalidFile = errors.New("invalid file: expected opening balance, transactions and closing balance")

// Tokenize splits statement text into transaction field arrays.
//
// Blank lines are dropped first. If fewer than three lines remain the file is
// rejected with ErrInvalidFile. Otherwise the first and last lines (balances)
// are discarded and the rest are split on ';' in statement order. Field counts
// are not checked; short lines yield short arrays.
func Tokenize(text string) ([][]string, error) {
	lines := nonBlankLines(text)
	if len(lines) < minStatementLines {
		return nil, ErrInvalidFile
	}

	body := lines[1 : len(lines)-1]
	out := make([][]string, len(body))
	for i, line := range body {
		out[i] = strings.Split(line, FieldSeparator)
	}
	return out, nil
}

// nonBlankLines splits on '\n' and keeps lines with visible content.
// A trailing '\r' from CRLF exports is removed.
func nonBlankLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
