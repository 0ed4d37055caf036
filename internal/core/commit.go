package core

// commit.go implements the commit gate that turns a staging buffer into
// ledger rows.
//
// State machine:
//
//	Idle -> Validating -> AwaitingConfirmation   (unlinked rows, not confirmed)
//	                   -> Aborted                (a linked row has a bad date)
//	                   -> Inserting -> Committed (store accepted every row)
//	                                -> Failed    (store error, back to Idle)
//
// Committed, Aborted and Cancelled are terminal. Failed is reported to the
// caller and the gate returns to Idle with the buffer intact, so the operator
// can retry without uploading again.
//
// Only one commit runs at a time. While a commit is Inserting, further
// commits and every buffer edit fail with ErrCommitInFlight instead of
// waiting, because a successful commit clears the buffer.

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CommitOptions controls commit-time validation and the store call.
type CommitOptions struct {
	// StrictCalendar rejects days that do not exist in the month.
	StrictCalendar bool

	// Timeout bounds the store call. Zero means no timeout.
	Timeout time.Duration
}

// CommitGate serializes edits and commits of one staging buffer.
type CommitGate struct {
	mu      sync.Mutex
	buf     *Buffer
	writer  LedgerWriter
	tenant  Tenant
	opts    CommitOptions
	state   CommitState
	lastErr error
}

// NewCommitGate creates a gate in the Idle state.
func NewCommitGate(buf *Buffer, writer LedgerWriter, tenant Tenant, opts CommitOptions) *CommitGate {
	return &CommitGate{
		buf:    buf,
		writer: writer,
		tenant: tenant,
		opts:   opts,
		state:  StateIdle,
	}
}

// State returns the current state.
func (g *CommitGate) State() CommitState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// LastError returns the error of the most recent failed store call, if any.
func (g *CommitGate) LastError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// View calls fn with the buffer and state under the gate lock.
// fn must not retain or modify the buffer.
func (g *CommitGate) View(fn func(buf *Buffer, state CommitState)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g.buf, g.state)
}

// Edit runs fn against the buffer unless a commit is in flight or the gate
// is closed. An edit while awaiting confirmation returns the gate to Idle,
// so the operator confirms again against the new link counts.
func (g *CommitGate) Edit(fn func(buf *Buffer) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkOpenLocked(); err != nil {
		return err
	}
	if err := fn(g.buf); err != nil {
		return err
	}
	if g.state == StateAwaitingConfirmation {
		g.state = StateIdle
	}
	return nil
}

// Cancel discards the buffer and closes the gate.
func (g *CommitGate) Cancel() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkOpenLocked(); err != nil {
		return err
	}
	g.buf.Clear()
	g.state = StateCancelled
	return nil
}

// Commit validates the buffer and inserts every linked row in one store call.
//
// Errors:
//   - ErrNothingLinked: no row has a cost center or project. State stays Idle.
//   - ErrConfirmationRequired: unlinked rows exist and confirmUnlinked is
//     false. State becomes AwaitingConfirmation; result.Unlinked has the count.
//   - *DateError (wraps ErrInvalidDate): a linked row has an invalid date.
//     Nothing is inserted and the gate is Aborted.
//   - ErrStoreRejected: the store call failed. Nothing is inserted, the
//     buffer is kept and the gate returns to Idle.
//   - ErrCommitInFlight, ErrSessionClosed: the gate does not accept commits.
func (g *CommitGate) Commit(ctx context.Context, confirmUnlinked bool) (CommitResult, error) {
	start := time.Now()

	g.mu.Lock()
	if err := g.checkOpenLocked(); err != nil {
		state := g.state
		g.mu.Unlock()
		return CommitResult{State: state}, err
	}

	g.state = StateValidating
	rows, indices := g.buf.Linked()
	result := CommitResult{
		Linked:   len(rows),
		Unlinked: g.buf.Len() - len(rows),
	}

	if len(rows) == 0 {
		g.state = StateIdle
		result.State = g.state
		g.mu.Unlock()
		return result, ErrNothingLinked
	}

	if result.Unlinked > 0 && !confirmUnlinked {
		g.state = StateAwaitingConfirmation
		result.State = g.state
		g.mu.Unlock()
		return result, fmt.Errorf("%w: %d of %d records have no cost center or project and will be dropped",
			ErrConfirmationRequired, result.Unlinked, result.Linked+result.Unlinked)
	}

	if err := validateLinkedDates(rows, indices, g.opts.StrictCalendar); err != nil {
		g.state = StateAborted
		result.State = g.state
		g.mu.Unlock()
		return result, err
	}

	ledger := make([]LedgerRow, len(rows))
	for i, row := range rows {
		ledger[i] = NewLedgerRow(g.tenant, row)
	}

	g.state = StateInserting
	g.mu.Unlock()

	inserted, err := g.insert(ctx, ledger)

	g.mu.Lock()
	defer g.mu.Unlock()

	result.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		g.lastErr = err
		g.state = StateIdle
		result.State = StateFailed
		return result, fmt.Errorf("%w: %w", ErrStoreRejected, err)
	}

	g.lastErr = nil
	g.buf.Clear()
	g.state = StateCommitted
	result.State = g.state
	result.Inserted = int(inserted)
	return result, nil
}

// insert runs the store call without holding the gate lock. A panicking
// store is reported as an error so the gate never stays Inserting.
func (g *CommitGate) insert(ctx context.Context, rows []LedgerRow) (n int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("internal error: %v", r)
		}
	}()

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}
	return g.writer.InsertLedgerRows(ctx, rows)
}

func (g *CommitGate) checkOpenLocked() error {
	switch {
	case g.state == StateInserting || g.state == StateValidating:
		return ErrCommitInFlight
	case g.state.Terminal():
		return fmt.Errorf("%w: %s", ErrSessionClosed, g.state)
	default:
		return nil
	}
}
