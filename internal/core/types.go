package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tenant identifies the company ("empresa") an import belongs to.
// Every lookup and every inserted ledger row is scoped to one tenant.
type Tenant struct {
	ID uuid.UUID
}

// IsZero reports whether the tenant is unset.
func (t Tenant) IsZero() bool {
	return t.ID == uuid.Nil
}

func (t Tenant) String() string {
	return t.ID.String()
}

// Direction is the operator-chosen money flow of a ledger row.
// It is independent of the sign the bank puts on the amount.
type Direction int

const (
	Inflow Direction = iota + 1
	Outflow
)

// Labels stored in custos.tipo_transacao.
const (
	inflowLabel  = "Entrada"
	outflowLabel = "Saída"
)

func (d Direction) String() string {
	switch d {
	case Inflow:
		return inflowLabel
	case Outflow:
		return outflowLabel
	default:
		return ""
	}
}

// ParseDirection accepts the stored labels and their common spellings,
// case-insensitively: Entrada/inflow/in and Saída/Saida/outflow/out.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "entrada", "inflow", "in":
		return Inflow, nil
	case "saída", "saida", "outflow", "out":
		return Outflow, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if d != Inflow && d != Outflow {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// StagedTransaction is one normalized statement row awaiting reconciliation.
// Only CostCenterID, ProjectID and Direction change after staging.
type StagedTransaction struct {
	Date             string          `json:"date"`
	DocumentRef      string          `json:"documentRef"`
	OperationCode    string          `json:"operationCode"`
	OperationType    string          `json:"operationType"`
	Amount           decimal.Decimal `json:"amount"`
	AmountValid      bool            `json:"amountValid"`
	CounterpartyName string          `json:"counterpartyName"`

	CostCenterID *uuid.UUID `json:"costCenterId"`
	ProjectID    *uuid.UUID `json:"projectId"`
	Direction    *Direction `json:"direction"`
}

// Linked reports whether the row references a cost center or a project.
// Unlinked rows are never committed.
func (t StagedTransaction) Linked() bool {
	return t.CostCenterID != nil || t.ProjectID != nil
}

// SuggestedDirection derives a direction from the amount sign.
// It is a display hint only and is never applied to the row.
func (t StagedTransaction) SuggestedDirection() *Direction {
	var d Direction
	switch t.Amount.Sign() {
	case 1:
		d = Inflow
	case -1:
		d = Outflow
	default:
		return nil
	}
	return &d
}

// LedgerDescriptionPrefix is prepended to the operation type to build
// the description of every imported ledger row.
const LedgerDescriptionPrefix = "Importado de CSV - "

// LedgerRow is the insert payload for one committed transaction ("custo").
type LedgerRow struct {
	TenantID         uuid.UUID
	CostCenterID     *uuid.UUID
	ProjectID        *uuid.UUID
	Direction        *Direction
	Date             string
	Amount           decimal.Decimal
	DocumentRef      string
	OperationCode    string
	OperationType    string
	CounterpartyName string
	Description      string
}

// NewLedgerRow builds the insert payload for a staged transaction.
func NewLedgerRow(tenant Tenant, t StagedTransaction) LedgerRow {
	return LedgerRow{
		TenantID:         tenant.ID,
		CostCenterID:     t.CostCenterID,
		ProjectID:        t.ProjectID,
		Direction:        t.Direction,
		Date:             t.Date,
		Amount:           t.Amount,
		DocumentRef:      t.DocumentRef,
		OperationCode:    t.OperationCode,
		OperationType:    t.OperationType,
		CounterpartyName: t.CounterpartyName,
		Description:      LedgerDescriptionPrefix + t.OperationType,
	}
}

// Lookup is a selectable cost center ("obra") or project ("gasto").
type Lookup struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// LookupReader reads the tenant's cost centers and projects, ordered by name.
type LookupReader interface {
	ListCostCenters(ctx context.Context, tenantID uuid.UUID) ([]Lookup, error)
	ListProjects(ctx context.Context, tenantID uuid.UUID) ([]Lookup, error)
}

// LedgerWriter inserts ledger rows. The insert is all-or-nothing: on error
// no row is persisted.
type LedgerWriter interface {
	InsertLedgerRows(ctx context.Context, rows []LedgerRow) (int64, error)
}

// Store is the external row store consumed by the import service.
type Store interface {
	LookupReader
	LedgerWriter
}

// CommitState is a stage of the commit gate state machine.
type CommitState string

const (
	StateIdle                 CommitState = "idle"
	StateValidating           CommitState = "validating"
	StateAwaitingConfirmation CommitState = "awaiting_confirmation"
	StateInserting            CommitState = "inserting"
	StateCommitted            CommitState = "committed"
	StateAborted              CommitState = "aborted"
	StateFailed               CommitState = "failed"
	StateCancelled            CommitState = "cancelled"
)

// Terminal reports whether no further edits or commits are accepted.
func (s CommitState) Terminal() bool {
	return s == StateCommitted || s == StateAborted || s == StateCancelled
}

// CommitResult reports the outcome of one commit attempt.
type CommitResult struct {
	State      CommitState `json:"state"`
	Inserted   int         `json:"inserted"`
	Linked     int         `json:"linked"`
	Unlinked   int         `json:"unlinked"`
	DurationMs int64       `json:"durationMs"`
}
