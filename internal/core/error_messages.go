package core

// # Error Codes Reference
//
// This file maps technical errors to operator-facing messages with a code
// that can be quoted to support.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate row: The ledger already has one of these transactions
//	DB002 - Foreign key: A linked cost center or project no longer exists
//	DB003 - Check constraint: The ledger rejected a value
//	DB004 - Connection refused: Unable to connect to database
//	DB005 - Connection reset: Database connection was interrupted
//	DB006 - Timeout: Operation timed out
//	DB007 - Deadlock: Database was busy with conflicting operations
//	DB008 - Store rejected: Transactions could not be saved (generic)
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Invalid file: Fewer than three non-blank lines
//	IMP002 - Empty file
//	IMP003 - File too large
//	IMP004 - Encoding error
//	IMP005 - No file provided
//	IMP006 - System busy: Too many imports in progress
//
// # Commit and Session Errors (COM001-COM099)
//
//	COM001 - Unlinked records need confirmation
//	COM002 - Invalid date on a linked record
//	COM003 - Nothing linked
//	COM004 - Commit already in progress
//	COM005 - Session closed
//	COM006 - Session not found or expired
//	COM007 - Unknown cost center
//	COM008 - Unknown project
//	COM009 - Record index out of range
//	COM010 - Invalid direction
//	COM011 - Too many open sessions
//	COM012 - Missing tenant
//
// # Request Errors (UPL001-UPL099, RATE001)
//
//	UPL001 - Invalid request body
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//	RATE001 - Too many requests
//
// # Pattern Matching
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins. Store errors arrive wrapped as "store rejected ledger rows: ...",
// so the specific DB patterns come before the generic DB008 entry.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "The ledger already has one of these transactions",
			Action:  "Unlink the rows that were imported before and commit again",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "A linked cost center or project no longer exists",
			Action:  "Reload the session and link the rows again",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates check constraint",
		msg: UserMessage{
			Message: "The ledger rejected one of the values",
			Action:  "Check the direction and amount of the linked rows",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "store rejected",
		msg: UserMessage{
			Message: "The transactions could not be saved",
			Action:  "Your links are kept. Please try committing again",
			Code:    "DB008",
		},
	},

	// Import
	{
		pattern: "invalid file",
		msg: UserMessage{
			Message: "This file does not look like a bank statement",
			Action:  "Export the statement again including opening and closing balance lines",
			Code:    "IMP001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a statement with transactions",
			Code:    "IMP002",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Export a shorter date range",
			Code:    "IMP003",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Export the statement again as CSV",
			Code:    "IMP004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a statement file to upload",
			Code:    "IMP005",
		},
	},
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP006",
		},
	},

	// Commit and session
	{
		pattern: "require confirmation",
		msg: UserMessage{
			Message: "Some records are not linked and will be dropped",
			Action:  "Confirm to commit only the linked records",
			Code:    "COM001",
		},
	},
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "A linked record has an invalid date",
			Action:  "Unlink that record or fix the statement and upload again",
			Code:    "COM002",
		},
	},
	{
		pattern: "no linked records",
		msg: UserMessage{
			Message: "No record is linked to a cost center or project",
			Action:  "Link at least one record before committing",
			Code:    "COM003",
		},
	},
	{
		pattern: "commit already in progress",
		msg: UserMessage{
			Message: "This import is already being committed",
			Action:  "Wait for the commit to finish",
			Code:    "COM004",
		},
	},
	{
		pattern: "session is closed",
		msg: UserMessage{
			Message: "This import is already finished",
			Action:  "Upload the statement again to start a new import",
			Code:    "COM005",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The import may have expired. Please upload the statement again",
			Code:    "COM006",
		},
	},
	{
		pattern: "unknown cost center",
		msg: UserMessage{
			Message: "Unknown cost center",
			Action:  "Pick a cost center from the list",
			Code:    "COM007",
		},
	},
	{
		pattern: "unknown project",
		msg: UserMessage{
			Message: "Unknown project",
			Action:  "Pick a project from the list",
			Code:    "COM008",
		},
	},
	{
		pattern: "index out of range",
		msg: UserMessage{
			Message: "Record not found in this import",
			Action:  "Reload the import and try again",
			Code:    "COM009",
		},
	},
	{
		pattern: "invalid direction",
		msg: UserMessage{
			Message: "Direction must be Entrada or Saída",
			Action:  "Pick Entrada or Saída",
			Code:    "COM010",
		},
	},
	{
		pattern: "too many open import sessions",
		msg: UserMessage{
			Message: "Too many imports are open",
			Action:  "Finish or cancel an open import and try again",
			Code:    "COM011",
		},
	},
	{
		pattern: "missing tenant",
		msg: UserMessage{
			Message: "No company selected",
			Action:  "Select a company and try again",
			Code:    "COM012",
		},
	},

	// Request
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Check the request fields and try again",
			Code:    "UPL001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "UPL005",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or ERR000 when nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
