package core

import "time"

// RecordView is a staged row as served to the operator.
type RecordView struct {
	Index int `json:"index"`
	StagedTransaction
	Linked             bool       `json:"linked"`
	SuggestedDirection *Direction `json:"suggestedDirection,omitempty"`
}

func newRecordView(i int, t StagedTransaction) RecordView {
	return RecordView{
		Index:              i,
		StagedTransaction:  t,
		Linked:             t.Linked(),
		SuggestedDirection: t.SuggestedDirection(),
	}
}

// SessionView is a snapshot of an import session.
type SessionView struct {
	ID          string       `json:"id"`
	FileName    string       `json:"fileName"`
	State       CommitState  `json:"state"`
	CreatedAt   time.Time    `json:"createdAt"`
	ExpiresAt   time.Time    `json:"expiresAt,omitzero"`
	Total       int          `json:"total"`
	Linked      int          `json:"linked"`
	Unlinked    int          `json:"unlinked"`
	Records     []RecordView `json:"records"`
	CostCenters []Lookup     `json:"costCenters"`
	Projects    []Lookup     `json:"projects"`
}
