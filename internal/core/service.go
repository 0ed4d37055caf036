package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Luuk00/eco-costa-track/internal/logging"
	"github.com/Luuk00/eco-costa-track/internal/statement"
)

// Defaults applied by NewService to zero-valued options.
const (
	DefaultSessionTTL    = 30 * time.Minute
	DefaultMaxSessions   = 100
	DefaultSessionLinger = 2 * time.Minute
)

const commitDrainInterval = 50 * time.Millisecond

// ServiceOptions configures the import service.
type ServiceOptions struct {
	// MaxFileSize caps the size of an uploaded statement in bytes.
	MaxFileSize int64

	// MaxConcurrent and MaxWait bound concurrent statement parsing.
	MaxConcurrent int
	MaxWait       time.Duration

	// SessionTTL is how long an untouched session lives.
	SessionTTL time.Duration

	// MaxSessions caps the number of open sessions across tenants.
	MaxSessions int

	// SessionLinger keeps a finished session readable for this long.
	SessionLinger time.Duration

	Commit CommitOptions
}

func (o ServiceOptions) withDefaults() ServiceOptions {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = statement.DefaultMaxFileSize
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
	if o.MaxSessions <= 0 {
		o.MaxSessions = DefaultMaxSessions
	}
	if o.SessionLinger <= 0 {
		o.SessionLinger = DefaultSessionLinger
	}
	return o
}

// Service manages import sessions: opening them from uploaded statements,
// applying operator edits, committing them to the store and expiring them.
type Service struct {
	store   Store
	limiter *ImportLimiter
	opts    ServiceOptions
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	commits atomic.Int64
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ServiceOptions) *Service {
	opts = opts.withDefaults()
	return &Service{
		store:    store,
		limiter:  NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// OpenSession parses an uploaded statement and opens a session holding its
// transactions, all unlinked. The tenant's cost centers and projects are
// loaded once here and used to validate every later link.
func (s *Service) OpenSession(ctx context.Context, tenant Tenant, fileName string, r io.Reader) (SessionView, error) {
	if tenant.IsZero() {
		return SessionView{}, ErrMissingTenant
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return SessionView{}, err
	}
	defer s.limiter.Release()

	start := s.now()

	text, err := statement.ReadAll(r, s.opts.MaxFileSize)
	if err != nil {
		return SessionView{}, err
	}
	records, err := statement.Parse(text)
	if err != nil {
		return SessionView{}, err
	}

	costCenters, err := s.store.ListCostCenters(ctx, tenant.ID)
	if err != nil {
		return SessionView{}, fmt.Errorf("load cost centers: %w", err)
	}
	projects, err := s.store.ListProjects(ctx, tenant.ID)
	if err != nil {
		return SessionView{}, fmt.Errorf("load projects: %w", err)
	}

	sess := newSession(tenant, fileName, StageRecords(records), costCenters, projects, s.store, s.opts.Commit, s.now())

	s.mu.Lock()
	if len(s.sessions) >= s.opts.MaxSessions {
		s.mu.Unlock()
		return SessionView{}, ErrTooManySessions
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	sess.events.publish(sess.event(EventOpened, s.now()))

	invalidAmounts := 0
	for _, rec := range records {
		if !rec.AmountValid {
			invalidAmounts++
		}
	}
	logging.WithFields(ctx, "session_id", sess.ID).Info("import session opened",
		"file_name", fileName,
		"records", len(records),
		"invalid_amounts", invalidAmounts,
		"cost_centers", len(costCenters),
		"projects", len(projects),
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)

	return sess.view(s.opts.SessionTTL), nil
}

// Session returns a snapshot of a session owned by tenant.
func (s *Service) Session(tenant Tenant, id string) (SessionView, error) {
	sess, err := s.lookup(tenant, id)
	if err != nil {
		return SessionView{}, err
	}
	return sess.view(s.opts.SessionTTL), nil
}

// UpdateRecord applies an operator edit to one staged row.
func (s *Service) UpdateRecord(ctx context.Context, tenant Tenant, id string, index int, patch RecordPatch) (RecordView, error) {
	sess, err := s.lookup(tenant, id)
	if err != nil {
		return RecordView{}, err
	}
	if err := sess.validatePatch(patch); err != nil {
		return RecordView{}, err
	}

	var updated StagedTransaction
	err = sess.gate.Edit(func(buf *Buffer) error {
		if err := buf.Apply(index, patch); err != nil {
			return err
		}
		updated, _ = buf.Record(index)
		return nil
	})
	if err != nil {
		return RecordView{}, err
	}

	sess.touch(s.now())
	e := sess.event(EventRecordsUpdated, s.now())
	e.Indices = []int{index}
	sess.events.publish(e)

	logging.WithFields(ctx, "session_id", id).Debug("record updated", "index", index, "linked", updated.Linked())
	return newRecordView(index, updated), nil
}

// LinkRecords applies the same edit to several rows. Either every row
// changes or none does.
func (s *Service) LinkRecords(ctx context.Context, tenant Tenant, id string, indices []int, patch RecordPatch) (SessionView, error) {
	sess, err := s.lookup(tenant, id)
	if err != nil {
		return SessionView{}, err
	}
	if err := sess.validatePatch(patch); err != nil {
		return SessionView{}, err
	}

	err = sess.gate.Edit(func(buf *Buffer) error {
		return buf.ApplyMany(indices, patch)
	})
	if err != nil {
		return SessionView{}, err
	}

	sess.touch(s.now())
	e := sess.event(EventRecordsUpdated, s.now())
	e.Indices = append([]int(nil), indices...)
	sess.events.publish(e)

	logging.WithFields(ctx, "session_id", id).Debug("records linked", "count", len(indices))
	return sess.view(s.opts.SessionTTL), nil
}

// Commit runs the session's commit gate. See CommitGate.Commit for the
// error contract.
//
// The store call is not cancelled when ctx is, so a client that hangs up
// mid-commit cannot leave the outcome unknown. CommitOptions.Timeout still
// bounds it.
func (s *Service) Commit(ctx context.Context, tenant Tenant, id string, confirmUnlinked bool) (CommitResult, error) {
	sess, err := s.lookup(tenant, id)
	if err != nil {
		return CommitResult{}, err
	}

	s.commits.Add(1)
	defer s.commits.Add(-1)

	log := logging.WithFields(ctx,
		"session_id", id,
		"client_ip", GetIPAddressFromContext(ctx),
		"user_agent", GetUserAgentFromContext(ctx),
	)
	result, err := sess.gate.Commit(context.WithoutCancel(ctx), confirmUnlinked)
	sess.touch(s.now())

	e := sess.event("", s.now())
	e.Unlinked = result.Unlinked

	switch {
	case err == nil:
		e.Type = EventCommitted
		e.Inserted = result.Inserted
		log.Info("import committed",
			"inserted", result.Inserted,
			"dropped_unlinked", result.Unlinked,
			"duration_ms", result.DurationMs,
		)
		s.retire(sess)

	case errors.Is(err, ErrConfirmationRequired):
		e.Type = EventConfirmationRequired
		log.Info("commit awaiting confirmation", "unlinked", result.Unlinked)

	case errors.Is(err, ErrInvalidDate):
		e.Type = EventAborted
		e.Error = err.Error()
		log.Warn("commit aborted", "error", err)
		s.retire(sess)

	case errors.Is(err, ErrStoreRejected):
		e.Type = EventCommitFailed
		e.Error = MapError(err).Message
		log.Error("commit failed", "error", err, "linked", result.Linked, "duration_ms", result.DurationMs)

	default:
		// Rejected before the gate changed state.
		return result, err
	}

	sess.events.publish(e)
	return result, err
}

// CancelSession discards a session's buffer.
func (s *Service) CancelSession(ctx context.Context, tenant Tenant, id string) error {
	sess, err := s.lookup(tenant, id)
	if err != nil {
		return err
	}
	if err := sess.gate.Cancel(); err != nil {
		return err
	}

	sess.events.publish(sess.event(EventCancelled, s.now()))
	logging.WithFields(ctx, "session_id", id).Info("import session cancelled")
	s.retire(sess)
	return nil
}

// SubscribeEvents streams a session's events. The first event is a
// snapshot of the current state. The channel closes when the session is
// removed; call the returned function to stop early.
func (s *Service) SubscribeEvents(tenant Tenant, id string) (<-chan Event, func(), error) {
	sess, err := s.lookup(tenant, id)
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe := sess.events.subscribe(sess.event(EventOpened, s.now()))
	return ch, unsubscribe, nil
}

// ListCostCenters returns the tenant's cost centers ordered by name.
func (s *Service) ListCostCenters(ctx context.Context, tenant Tenant) ([]Lookup, error) {
	if tenant.IsZero() {
		return nil, ErrMissingTenant
	}
	return s.store.ListCostCenters(ctx, tenant.ID)
}

// ListProjects returns the tenant's projects ordered by name.
func (s *Service) ListProjects(ctx context.Context, tenant Tenant) ([]Lookup, error) {
	if tenant.IsZero() {
		return nil, ErrMissingTenant
	}
	return s.store.ListProjects(ctx, tenant.ID)
}

// SessionCount returns the number of open sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForCommits blocks until no commit is running or ctx ends.
func (s *Service) WaitForCommits(ctx context.Context) error {
	if s.commits.Load() == 0 {
		return nil
	}

	ticker := time.NewTicker(commitDrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.commits.Load() == 0 {
				return nil
			}
		}
	}
}

// WaitIdle waits for running imports and commits to finish.
func (s *Service) WaitIdle(ctx context.Context) error {
	if err := s.limiter.WaitForDrain(ctx); err != nil {
		return err
	}
	return s.WaitForCommits(ctx)
}

// lookup finds a session owned by tenant. Sessions of other tenants are
// reported as not found.
func (s *Service) lookup(tenant Tenant, id string) (*Session, error) {
	if tenant.IsZero() {
		return nil, ErrMissingTenant
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || sess.Tenant != tenant {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// retire removes a finished session after the linger delay so clients can
// still read its final state.
func (s *Service) retire(sess *Session) {
	time.AfterFunc(s.opts.SessionLinger, func() {
		s.remove(sess)
	})
}

func (s *Service) remove(sess *Session) {
	s.mu.Lock()
	if cur, ok := s.sessions[sess.ID]; ok && cur == sess {
		delete(s.sessions, sess.ID)
	}
	s.mu.Unlock()
	sess.events.close()
}
