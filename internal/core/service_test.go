package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luuk00/eco-costa-track/internal/statement"
)

type serviceFixture struct {
	svc        *Service
	store      *memStore
	costCenter Lookup
	project    Lookup
}

func newServiceFixture(t *testing.T, opts ServiceOptions) *serviceFixture {
	t.Helper()
	store := newMemStore()
	cc := Lookup{ID: uuid.New(), Name: "Obra Centro"}
	proj := Lookup{ID: uuid.New(), Name: "Cimento"}
	store.costCenters[testTenant.ID] = []Lookup{cc}
	store.projects[testTenant.ID] = []Lookup{proj}
	return &serviceFixture{
		svc:        NewService(store, opts),
		store:      store,
		costCenter: cc,
		project:    proj,
	}
}

func sampleStatement() string {
	return statementFile(
		statementLine("02/01/2024", "1001", "870", "Pix - Enviado", "-150,75", "00123/JOAO DA SILVA"),
		statementLine("03/01/2024", "1002", "821", "Pix - Recebido", "2000,00", "987 - CONSTRUTORA XYZ"),
		statementLine("04/01/2024", "1003", "109", "Tarifa", "-12,00", ""),
	)
}

func (f *serviceFixture) open(t *testing.T) SessionView {
	t.Helper()
	view, err := f.svc.OpenSession(context.Background(), testTenant, "extrato.csv", strings.NewReader(sampleStatement()))
	require.NoError(t, err)
	return view
}

func TestService_OpenSession(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{})
	view := f.open(t)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "extrato.csv", view.FileName)
	assert.Equal(t, StateIdle, view.State)
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, 0, view.Linked)
	assert.Equal(t, 3, view.Unlinked)
	assert.Equal(t, []Lookup{f.costCenter}, view.CostCenters)
	assert.Equal(t, []Lookup{f.project}, view.Projects)
	assert.False(t, view.ExpiresAt.IsZero())

	require.Len(t, view.Records, 3)
	first := view.Records[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "2024-01-02", first.Date)
	assert.Equal(t, "JOAO DA SILVA", first.CounterpartyName)
	assert.Equal(t, "-150.75", first.Amount.String())
	assert.False(t, first.Linked)
	require.NotNil(t, first.SuggestedDirection)
	assert.Equal(t, Outflow, *first.SuggestedDirection)
	assert.Nil(t, first.Direction)

	assert.Equal(t, "CONSTRUTORA XYZ", view.Records[1].CounterpartyName)
	assert.Equal(t, 1, f.svc.SessionCount())
	assert.Equal(t, 0, f.svc.LimiterStatus().Active)
}

func TestService_OpenSessionErrors(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{MaxFileSize: 64})

	_, err := f.svc.OpenSession(context.Background(), Tenant{}, "x.csv", strings.NewReader(sampleStatement()))
	assert.ErrorIs(t, err, ErrMissingTenant)

	_, err = f.svc.OpenSession(context.Background(), testTenant, "x.csv", strings.NewReader("only\nTwo lines"))
	assert.ErrorIs(t, err, statement.ErrInvalidFile)

	_, err = f.svc.OpenSession(context.Background(), testTenant, "x.csv", strings.NewReader(sampleStatement()))
	assert.ErrorIs(t, err, statement.ErrFileTooLarge)

	_, err = f.svc.OpenSession(context.Background(), testTenant, "x.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, statement.ErrEmptyFile)

	assert.Equal(t, 0, f.svc.SessionCount())
	assert.Equal(t, 0, f.svc.LimiterStatus().Active)
}

func TestService_OpenSessionLookupFailure(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{})
	f.store.lookupErr = errStoreDown

	_, err := f.svc.OpenSession(context.Background(), testTenant, "x.csv", strings.NewReader(sampleStatement()))
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 0, f.svc.SessionCount())
}

func TestService_MaxSessions(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{MaxSessions: 1})
	f.open(t)

	_, err := f.svc.OpenSession(context.Background(), testTenant, "x.csv", strings.NewReader(sampleStatement()))
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestService_TenantIsolation(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{})
	view := f.open(t)
	other := Tenant{ID: uuid.New()}

	_, err := f.svc.Session(other, view.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.UpdateRecord(context.Background(), other, view.ID, 0, RecordPatch{CostCenterID: &f.costCenter.ID})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.Commit(context.Background(), other, view.ID, true)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, f.svc.CancelSession(context.Background(), other, view.ID), ErrSessionNotFound)

	_, err = f.svc.Session(Tenant{}, view.ID)
	assert.ErrorIs(t, err, ErrMissingTenant)

	_, err = f.svc.Session(testTenant, "no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_UpdateRecord(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{})
	view := f.open(t)
	ctx := context.Background()

	rec, err := f.svc.UpdateRecord(ctx, testTenant, view.ID, 1, RecordPatch{
		CostCenterID: &f.costCenter.ID,
		Direction:    ptr(Inflow),
	})
	require.NoError(t, err)
	assert.True(t, rec.Linked)
	assert.Equal(t, 1, rec.Index)
	assert.Equal(t, f.costCenter.ID, *rec.CostCenterID)
	assert.Equal(t, Inflow, *rec.Direction)

	unknown := uuid.New()
	_, err = f.svc.UpdateRecord(ctx, testTenant, view.ID, 0, RecordPatch{CostCenterID: &unknown})
	assert.ErrorIs(t, err, ErrUnknownCostCenter)
	_, err = f.svc.UpdateRecord(ctx, testTenant, view.ID, 0, RecordPatch{ProjectID: &unknown})
	assert.ErrorIs(t, err, ErrUnknownProject)
	// A project id is not a valid cost center.
	_, err = f.svc.UpdateRecord(ctx, testTenant, view.ID, 0, RecordPatch{CostCenterID: &f.project.ID})
	assert.ErrorIs(t, err, ErrUnknownCostCenter)

	_, err = f.svc.UpdateRecord(ctx, testTenant, view.ID, 9, RecordPatch{ProjectID: &f.project.ID})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	got, err := f.svc.Session(testTenant, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Linked)
	assert.Nil(t, got.Records[0].CostCenterID)
}

func TestService_LinkRecords(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{})
	view := f.open(t)

	got, err := f.svc.LinkRecords(context.Background(), testTenant, view.ID, []int{0, 2}, RecordPatch{ProjectID: &f.project.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Linked)
	assert.True(t, got.Records[0].Linked)
	assert.False(t, got.Records[1].Linked)
	assert.True(t, got.Records[2].Linked)

	_, err = f.svc.LinkRecords(context.Background(), testTenant, view.ID, []int{1, 5}, RecordPatch{ProjectID: &f.project.ID})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	got, _ = f.svc.Session(testTenant, view.ID)
	assert.Equal(t, 2, got.Linked)
}

func TestService_CommitFlow(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{})
	view := f.open(t)
	ctx := context.Background()

	_, err := f.svc.LinkRecords(ctx, testTenant, view.ID, []int{0, 1}, RecordPatch{CostCenterID: &f.costCenter.ID})
	require.NoError(t, err)

	result, err := f.svc.Commit(ctx, testTenant, view.ID, false)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Equal(t, 1, result.Unlinked)

	result, err = f.svc.Commit(ctx, testTenant, view.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)

	rows := f.store.inserted()
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-02", rows[0].Date)
	assert.Equal(t, "Importado de CSV - Pix - Enviado", rows[0].Description)
	assert.Equal(t, "CONSTRUTORA XYZ", rows[1].CounterpartyName)

	// The session lingers in its terminal state.
	got, err := f.svc.Session(testTenant, view.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, got.State)
	assert.Equal(t, 0, got.Total)

	_, err = f.svc.UpdateRecord(ctx, testTenant, view.ID, 0, RecordPatch{CostCenterID: &f.costCenter.ID})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestService_CommitFailureIsRetryable(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{})
	view := f.open(t)
	ctx := context.Background()

	_, err := f.svc.LinkRecords(ctx, testTenant, view.ID, []int{0, 1, 2}, RecordPatch{ProjectID: &f.project.ID})
	require.NoError(t, err)

	f.store.insertErr = errStoreDown
	_, err = f.svc.Commit(ctx, testTenant, view.ID, false)
	require.ErrorIs(t, err, ErrStoreRejected)

	got, _ := f.svc.Session(testTenant, view.ID)
	assert.Equal(t, StateIdle, got.State)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 3, got.Linked)

	f.store.insertErr = nil
	result, err := f.svc.Commit(ctx, testTenant, view.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inserted)
}

func TestService_RetiresFinishedSession(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{SessionLinger: 10 * time.Millisecond})
	view := f.open(t)

	require.NoError(t, f.svc.CancelSession(context.Background(), testTenant, view.ID))

	assert.Eventually(t, func() bool {
		return f.svc.SessionCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, err := f.svc.Session(testTenant, view.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestService_Events(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{})
	view := f.open(t)
	ctx := context.Background()

	events, unsubscribe, err := f.svc.SubscribeEvents(testTenant, view.ID)
	require.NoError(t, err)
	defer unsubscribe()

	next := func() Event {
		t.Helper()
		select {
		case e := <-events:
			return e
		case <-time.After(time.Second):
			t.Fatal("no event received")
			return Event{}
		}
	}

	snapshot := next()
	assert.Equal(t, view.ID, snapshot.SessionID)
	assert.Equal(t, 3, snapshot.Total)

	_, err = f.svc.UpdateRecord(ctx, testTenant, view.ID, 2, RecordPatch{CostCenterID: &f.costCenter.ID})
	require.NoError(t, err)
	e := next()
	assert.Equal(t, EventRecordsUpdated, e.Type)
	assert.Equal(t, []int{2}, e.Indices)
	assert.Equal(t, 1, e.Linked)

	_, _ = f.svc.Commit(ctx, testTenant, view.ID, false)
	e = next()
	assert.Equal(t, EventConfirmationRequired, e.Type)
	assert.Equal(t, 2, e.Unlinked)
	assert.Equal(t, StateAwaitingConfirmation, e.State)

	_, err = f.svc.Commit(ctx, testTenant, view.ID, true)
	require.NoError(t, err)
	e = next()
	assert.Equal(t, EventCommitted, e.Type)
	assert.Equal(t, 1, e.Inserted)
	assert.Equal(t, StateCommitted, e.State)
}

func TestService_SweepExpiresIdleSessions(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{SessionTTL: time.Minute})
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return start }

	stale := f.open(t)
	f.svc.now = func() time.Time { return start.Add(50 * time.Second) }
	fresh := f.open(t)

	events, _, err := f.svc.SubscribeEvents(testTenant, stale.ID)
	require.NoError(t, err)
	<-events // snapshot

	f.svc.now = func() time.Time { return start.Add(90 * time.Second) }
	assert.Equal(t, 1, f.svc.sweep())

	e, ok := <-events
	require.True(t, ok)
	assert.Equal(t, EventExpired, e.Type)
	_, ok = <-events
	assert.False(t, ok, "channel should close after expiry")

	_, err = f.svc.Session(testTenant, stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.svc.Session(testTenant, fresh.ID)
	assert.NoError(t, err)
}

func TestService_SweepSkipsCommitInFlight(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{SessionTTL: time.Minute})
	start := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return start }
	view := f.open(t)

	_, err := f.svc.LinkRecords(context.Background(), testTenant, view.ID, []int{0, 1, 2}, RecordPatch{ProjectID: &f.project.ID})
	require.NoError(t, err)

	f.store.started = make(chan struct{}, 1)
	f.store.release = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Commit(context.Background(), testTenant, view.ID, false)
		done <- err
	}()
	<-f.store.started

	f.svc.now = func() time.Time { return start.Add(time.Hour) }
	assert.Equal(t, 0, f.svc.sweep())

	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.svc.WaitForCommits(waitCtx), context.DeadlineExceeded)

	close(f.store.release)
	require.NoError(t, <-done)
	assert.NoError(t, f.svc.WaitIdle(context.Background()))
}

func TestService_StartSessionSweeperStops(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{})
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		f.svc.StartSessionSweeper(ctx, 5*time.Millisecond)
		close(stopped)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestService_Lookups(t *testing.T) {
	f := newServiceFixture(t, ServiceOptions{})

	ccs, err := f.svc.ListCostCenters(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, []Lookup{f.costCenter}, ccs)

	projects, err := f.svc.ListProjects(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, []Lookup{f.project}, projects)

	_, err = f.svc.ListProjects(context.Background(), Tenant{})
	assert.ErrorIs(t, err, ErrMissingTenant)
}
