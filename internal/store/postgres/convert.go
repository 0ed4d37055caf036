package postgres

// convert.go maps ledger row fields to pgtype values for COPY.
//
// Optional references (cost center, project, direction) become NULL when
// unset. Dates and amounts have already been validated by the commit gate;
// a conversion failure here is still reported per row rather than inserting
// a NULL.

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/Luuk00/eco-costa-track/internal/core"
)

const isoDate = "2006-01-02"

// toPgUUID converts an optional id. nil becomes NULL.
func toPgUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

// fromPgUUID converts a scanned id. NULL becomes uuid.Nil.
func fromPgUUID(u pgtype.UUID) uuid.UUID {
	if !u.Valid {
		return uuid.Nil
	}
	return uuid.UUID(u.Bytes)
}

// toPgDate parses a YYYY-MM-DD ledger date.
func toPgDate(s string) (pgtype.Date, error) {
	t, err := time.Parse(isoDate, s)
	if err != nil {
		return pgtype.Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

// toPgNumeric converts an amount without going through float64.
func toPgNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("invalid amount %s: %w", d, err)
	}
	return n, nil
}

// toPgDirection stores the direction label ("Entrada"/"Saída"). nil becomes NULL.
func toPgDirection(d *core.Direction) pgtype.Text {
	if d == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: d.String(), Valid: true}
}

// ledgerValues returns the COPY values of row in ledgerColumns order.
func ledgerValues(row core.LedgerRow) ([]any, error) {
	date, err := toPgDate(row.Date)
	if err != nil {
		return nil, err
	}
	amount, err := toPgNumeric(row.Amount)
	if err != nil {
		return nil, err
	}

	return []any{
		pgtype.UUID{Bytes: row.TenantID, Valid: true},
		toPgUUID(row.CostCenterID),
		toPgUUID(row.ProjectID),
		toPgDirection(row.Direction),
		date,
		amount,
		row.DocumentRef,
		row.OperationCode,
		row.OperationType,
		row.CounterpartyName,
		row.Description,
	}, nil
}
