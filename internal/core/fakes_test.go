package core

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// memStore is an in-memory Store. Inserts are all-or-nothing like the real one.
type memStore struct {
	mu          sync.Mutex
	costCenters map[uuid.UUID][]Lookup
	projects    map[uuid.UUID][]Lookup
	rows        []LedgerRow
	insertCalls int

	// insertErr, when set, fails every insert.
	insertErr error
	// lookupErr, when set, fails every lookup.
	lookupErr error
	// started receives once per insert call; release must be closed
	// before the insert returns. Both are optional.
	started chan struct{}
	release chan struct{}
	// panicOnInsert makes InsertLedgerRows panic.
	panicOnInsert bool
	// waitForCtx makes InsertLedgerRows block until ctx ends.
	waitForCtx bool
}

func newMemStore() *memStore {
	return &memStore{
		costCenters: make(map[uuid.UUID][]Lookup),
		projects:    make(map[uuid.UUID][]Lookup),
	}
}

func (m *memStore) ListCostCenters(_ context.Context, tenantID uuid.UUID) ([]Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return append([]Lookup(nil), m.costCenters[tenantID]...), nil
}

func (m *memStore) ListProjects(_ context.Context, tenantID uuid.UUID) ([]Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return append([]Lookup(nil), m.projects[tenantID]...), nil
}

func (m *memStore) InsertLedgerRows(ctx context.Context, rows []LedgerRow) (int64, error) {
	m.mu.Lock()
	m.insertCalls++
	started, release := m.started, m.release
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if m.panicOnInsert {
		panic("insert exploded")
	}
	if m.waitForCtx {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.rows = append(m.rows, rows...)
	return int64(len(rows)), nil
}

func (m *memStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCalls
}

func (m *memStore) inserted() []LedgerRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LedgerRow(nil), m.rows...)
}

var errStoreDown = errors.New("connection reset by peer")

// statementLine builds one ';'-separated statement line with the fields the
// normalizer reads.
func statementLine(date, doc, code, opType, amount, name string) string {
	fields := make([]string, 13)
	fields[3] = date
	fields[7] = doc
	fields[8] = code
	fields[9] = opType
	fields[10] = amount
	fields[12] = name
	return strings.Join(fields, ";")
}

// statementFile wraps transaction lines with opening and closing balance lines.
func statementFile(lines ...string) string {
	all := []string{"Saldo Anterior;;;01/01/2024;;;;;;;1000,00;;"}
	all = append(all, lines...)
	all = append(all, "Saldo;;;31/01/2024;;;;;;;900,00;;")
	return strings.Join(all, "\n")
}

func ptr[T any](v T) *T {
	return &v
}
