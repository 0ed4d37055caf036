package core

// buffer.go holds the staged statement rows of one import session.
//
// The buffer is plain presentation state: it keeps rows in statement order and
// replaces exactly one operator field per mutation. It performs no business
// validation and no locking; the owning CommitGate serializes access.

import (
	"fmt"

	"github.com/Luuk00/eco-costa-track/internal/statement"
	"github.com/google/uuid"
)

// Buffer is the ordered list of staged transactions of an import session.
type Buffer struct {
	records []StagedTransaction
}

// NewBuffer creates a buffer holding a copy of records.
func NewBuffer(records []StagedTransaction) *Buffer {
	b := &Buffer{records: make([]StagedTransaction, len(records))}
	copy(b.records, records)
	return b
}

// StageRecords converts normalized statement records into unlinked staged transactions.
func StageRecords(records []statement.Record) []StagedTransaction {
	staged := make([]StagedTransaction, len(records))
	for i, r := range records {
		staged[i] = StagedTransaction{
			Date:             r.Date,
			DocumentRef:      r.DocumentRef,
			OperationCode:    r.OperationCode,
			OperationType:    r.OperationType,
			Amount:           r.Amount,
			AmountValid:      r.AmountValid,
			CounterpartyName: r.CounterpartyName,
		}
	}
	return staged
}

// Len returns the number of staged rows.
func (b *Buffer) Len() int {
	return len(b.records)
}

// LinkedCount returns the number of rows with a cost center or project set.
func (b *Buffer) LinkedCount() int {
	n := 0
	for _, r := range b.records {
		if r.Linked() {
			n++
		}
	}
	return n
}

// UnlinkedCount returns the number of rows that would be dropped on commit.
func (b *Buffer) UnlinkedCount() int {
	return b.Len() - b.LinkedCount()
}

// Records returns a copy of all rows.
func (b *Buffer) Records() []StagedTransaction {
	out := make([]StagedTransaction, len(b.records))
	copy(out, b.records)
	return out
}

// Record returns the row at index i.
func (b *Buffer) Record(i int) (StagedTransaction, error) {
	if err := b.checkIndex(i); err != nil {
		return StagedTransaction{}, err
	}
	return b.records[i], nil
}

// Linked returns the linked rows in statement order together with their
// buffer indices.
func (b *Buffer) Linked() ([]StagedTransaction, []int) {
	var rows []StagedTransaction
	var idx []int
	for i, r := range b.records {
		if r.Linked() {
			rows = append(rows, r)
			idx = append(idx, i)
		}
	}
	return rows, idx
}

// SetCostCenter replaces the cost center of row i. A nil id clears it.
func (b *Buffer) SetCostCenter(i int, id *uuid.UUID) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	b.records[i].CostCenterID = cloneID(id)
	return nil
}

// SetProject replaces the project of row i. A nil id clears it.
func (b *Buffer) SetProject(i int, id *uuid.UUID) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	b.records[i].ProjectID = cloneID(id)
	return nil
}

// SetDirection replaces the direction of row i. A nil direction clears it.
func (b *Buffer) SetDirection(i int, d *Direction) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	if d == nil {
		b.records[i].Direction = nil
		return nil
	}
	v := *d
	b.records[i].Direction = &v
	return nil
}

// Apply applies patch to row i.
func (b *Buffer) Apply(i int, patch RecordPatch) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	if patch.ClearCostCenter || patch.CostCenterID != nil {
		_ = b.SetCostCenter(i, patch.CostCenterID)
	}
	if patch.ClearProject || patch.ProjectID != nil {
		_ = b.SetProject(i, patch.ProjectID)
	}
	if patch.ClearDirection || patch.Direction != nil {
		_ = b.SetDirection(i, patch.Direction)
	}
	return nil
}

// ApplyMany applies the same patch to every index. All indices are checked
// before any row changes.
func (b *Buffer) ApplyMany(indices []int, patch RecordPatch) error {
	for _, i := range indices {
		if err := b.checkIndex(i); err != nil {
			return err
		}
	}
	for _, i := range indices {
		_ = b.Apply(i, patch)
	}
	return nil
}

// Clear drops every row.
func (b *Buffer) Clear() {
	b.records = nil
}

func (b *Buffer) checkIndex(i int) error {
	if i < 0 || i >= len(b.records) {
		return fmt.Errorf("%w: %d (have %d records)", ErrIndexOutOfRange, i, len(b.records))
	}
	return nil
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// RecordPatch describes an operator edit of one staged row.
//
// A non-nil field replaces the current value. A Clear flag with a nil field
// unsets it. Fields that are nil and not cleared are left untouched.
type RecordPatch struct {
	CostCenterID *uuid.UUID
	ProjectID    *uuid.UUID
	Direction    *Direction

	ClearCostCenter bool
	ClearProject    bool
	ClearDirection  bool
}

// Empty reports whether the patch changes nothing.
func (p RecordPatch) Empty() bool {
	return p.CostCenterID == nil && p.ProjectID == nil && p.Direction == nil &&
		!p.ClearCostCenter && !p.ClearProject && !p.ClearDirection
}
