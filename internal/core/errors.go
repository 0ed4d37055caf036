package core

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound      = errors.New("import session not found")
	ErrSessionClosed        = errors.New("import session is closed")
	ErrTooManySessions      = errors.New("too many open import sessions")
	ErrIndexOutOfRange      = errors.New("record index out of range")
	ErrUnknownCostCenter    = errors.New("unknown cost center")
	ErrUnknownProject       = errors.New("unknown project")
	ErrInvalidDirection     = errors.New("invalid direction")
	ErrMissingTenant        = errors.New("missing tenant")
	ErrNothingLinked        = errors.New("no linked records to commit")
	ErrConfirmationRequired = errors.New("unlinked records require confirmation")
	ErrCommitInFlight       = errors.New("commit already in progress")
	ErrInvalidDate          = errors.New("invalid date")
	ErrStoreRejected        = errors.New("store rejected ledger rows")
)

// DateError reports the staged row whose date failed commit validation.
type DateError struct {
	Index int
	Value string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("invalid date %q at record %d (expected YYYY-MM-DD)", e.Value, e.Index)
}

func (e *DateError) Unwrap() error {
	return ErrInvalidDate
}
