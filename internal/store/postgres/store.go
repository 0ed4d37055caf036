// Package postgres implements core.Store on PostgreSQL with pgx.
//
// Lookups read the tenant's cost centers ("obras") and projects ("gastos").
// Ledger rows go into "custos" with a single COPY inside a transaction, so a
// failing row rolls back the whole batch.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Luuk00/eco-costa-track/internal/core"
)

// DB is the subset of *pgxpool.Pool and *pgx.Conn the store needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

const (
	ledgerTable = "custos"

	listCostCentersSQL = `SELECT id, nome FROM obras WHERE empresa_id = $1 ORDER BY nome`
	listProjectsSQL    = `SELECT id, nome FROM gastos WHERE empresa_id = $1 ORDER BY nome`
)

var ledgerColumns = []string{
	"empresa_id",
	"obra_id",
	"gasto_id",
	"tipo_transacao",
	"data",
	"valor",
	"documento",
	"codigo_operacao",
	"tipo_operacao",
	"receptor_destinatario",
	"descricao",
}

// Store reads lookups and writes ledger rows.
type Store struct {
	db DB
}

var _ core.Store = (*Store)(nil)

// New creates a Store over db.
func New(db DB) *Store {
	return &Store{db: db}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// ListCostCenters returns the tenant's cost centers ordered by name.
func (s *Store) ListCostCenters(ctx context.Context, tenantID uuid.UUID) ([]core.Lookup, error) {
	items, err := s.listLookups(ctx, listCostCentersSQL, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list cost centers: %w", err)
	}
	return items, nil
}

// ListProjects returns the tenant's projects ordered by name.
func (s *Store) ListProjects(ctx context.Context, tenantID uuid.UUID) ([]core.Lookup, error) {
	items, err := s.listLookups(ctx, listProjectsSQL, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return items, nil
}

func (s *Store) listLookups(ctx context.Context, query string, tenantID uuid.UUID) ([]core.Lookup, error) {
	rows, err := s.db.Query(ctx, query, pgtype.UUID{Bytes: tenantID, Valid: true})
	if err != nil {
		return nil, err
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Lookup, error) {
		var id pgtype.UUID
		var name pgtype.Text
		if err := row.Scan(&id, &name); err != nil {
			return core.Lookup{}, err
		}
		return core.Lookup{ID: fromPgUUID(id), Name: name.String}, nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// InsertLedgerRows copies rows into the ledger in one transaction.
// It returns the number of rows inserted; on error nothing is inserted.
func (s *Store) InsertLedgerRows(ctx context.Context, rows []core.LedgerRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		values, err := ledgerValues(rows[i])
		if err != nil {
			return nil, fmt.Errorf("ledger row %d: %w", i, err)
		}
		return values, nil
	})

	n, err := tx.CopyFrom(ctx, pgx.Identifier{ledgerTable}, ledgerColumns, src)
	if err != nil {
		return 0, describe("copy into "+ledgerTable, err)
	}
	if n != int64(len(rows)) {
		return 0, fmt.Errorf("copy into %s: wrote %d of %d rows", ledgerTable, n, len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, describe("commit", err)
	}
	return n, nil
}

// describe wraps err with op, adding the violated constraint when Postgres
// reports one.
func describe(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName != "" {
		return fmt.Errorf("%s (constraint %s): %w", op, pgErr.ConstraintName, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
