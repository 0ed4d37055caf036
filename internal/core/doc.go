// Package core holds the business logic of bank-statement imports.
//
// It has no HTTP or database dependencies: the web layer calls [Service] and
// the ledger is reached through the [Store] interface, so everything here can
// be driven from tests with an in-memory store.
//
// # Import Flow
//
//  1. [Service.OpenSession] reads the uploaded statement (package statement
//     decodes, tokenizes and normalizes it) and stages every transaction,
//     unlinked, in a [Buffer]. The tenant's cost centers and projects are
//     loaded at the same time.
//  2. The operator links rows with [Service.UpdateRecord] or
//     [Service.LinkRecords]. Each row may get a cost center, a project and a
//     [Direction]; only ids from the session's lookups are accepted.
//  3. [Service.Commit] runs the [CommitGate]. Rows without a cost center or
//     project are dropped after an explicit confirmation, every linked row's
//     date is checked, and the linked rows go to the store in one
//     all-or-nothing insert.
//
// # Commit Gate
//
// The gate is a small state machine (see [CommitState]). Committed, Aborted
// and Cancelled are terminal. A store failure leaves the buffer untouched and
// the gate Idle so the operator can retry. While a commit is running every
// edit and every other commit is rejected with [ErrCommitInFlight].
//
// # Sessions
//
// Sessions are held in memory. Each belongs to one [Tenant]; asking for a
// session with another tenant reports [ErrSessionNotFound]. Idle sessions are
// expired by [Service.StartSessionSweeper]. Changes are fanned out to
// subscribers of [Service.SubscribeEvents].
//
// # Error Handling
//
// Technical errors are mapped to operator messages with codes by [MapError]
// (IMP: import, COM: commit and session, DB: store).
package core
