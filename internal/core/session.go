package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one import: the staged statement of a single uploaded file,
// the tenant's lookups captured at open, and the commit gate guarding both.
type Session struct {
	ID        string
	Tenant    Tenant
	FileName  string
	CreatedAt time.Time

	costCenters   []Lookup
	projects      []Lookup
	costCenterIDs map[uuid.UUID]struct{}
	projectIDs    map[uuid.UUID]struct{}

	gate   *CommitGate
	events *eventHub

	activeMu   sync.Mutex
	lastActive time.Time
}

func newSession(tenant Tenant, fileName string, staged []StagedTransaction,
	costCenters, projects []Lookup, writer LedgerWriter, opts CommitOptions, now time.Time) *Session {
	if costCenters == nil {
		costCenters = []Lookup{}
	}
	if projects == nil {
		projects = []Lookup{}
	}
	return &Session{
		ID:            uuid.New().String(),
		Tenant:        tenant,
		FileName:      fileName,
		CreatedAt:     now,
		costCenters:   costCenters,
		projects:      projects,
		costCenterIDs: lookupSet(costCenters),
		projectIDs:    lookupSet(projects),
		gate:          NewCommitGate(NewBuffer(staged), writer, tenant, opts),
		events:        newEventHub(),
		lastActive:    now,
	}
}

func lookupSet(items []Lookup) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(items))
	for _, it := range items {
		set[it.ID] = struct{}{}
	}
	return set
}

// validatePatch rejects ids that are not among the session's lookups.
func (s *Session) validatePatch(p RecordPatch) error {
	if p.CostCenterID != nil {
		if _, ok := s.costCenterIDs[*p.CostCenterID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCostCenter, p.CostCenterID)
		}
	}
	if p.ProjectID != nil {
		if _, ok := s.projectIDs[*p.ProjectID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProject, p.ProjectID)
		}
	}
	return nil
}

func (s *Session) touch(now time.Time) {
	s.activeMu.Lock()
	s.lastActive = now
	s.activeMu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return s.lastActive
}

// event builds an event stamped with the current counts.
func (s *Session) event(typ EventType, now time.Time) Event {
	e := Event{Type: typ, SessionID: s.ID, At: now}
	s.gate.View(func(buf *Buffer, state CommitState) {
		e.State = state
		e.Total = buf.Len()
		e.Linked = buf.LinkedCount()
	})
	return e
}

func (s *Session) view(ttl time.Duration) SessionView {
	v := SessionView{
		ID:          s.ID,
		FileName:    s.FileName,
		CreatedAt:   s.CreatedAt,
		CostCenters: s.costCenters,
		Projects:    s.projects,
	}
	if ttl > 0 {
		v.ExpiresAt = s.idleSince().Add(ttl)
	}

	s.gate.View(func(buf *Buffer, state CommitState) {
		v.State = state
		v.Total = buf.Len()
		v.Linked = buf.LinkedCount()
		v.Unlinked = v.Total - v.Linked

		records := buf.Records()
		v.Records = make([]RecordView, len(records))
		for i, r := range records {
			v.Records[i] = newRecordView(i, r)
		}
	})
	return v
}
