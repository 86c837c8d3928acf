package domain

import (
	"database/sql"
	"time"
)

const (
	WorkflowActive    = "active"
	WorkflowCompleted = "completed"
	WorkflowCancelled = "cancelled"
	WorkflowOnHold    = "on_hold"
)

// WorkflowInstance is one candidate's progression through one job's pipeline.
type WorkflowInstance struct {
	ID              int64
	BusinessKey     string
	CandidateID     string
	JobID           string
	TemplateName    string
	TemplateVersion int
	CurrentState    string
	PreviousState   sql.NullString
	Status          string
	Progress        int
	StartedAt       time.Time
	CompletedAt     sql.NullTime
	Created         time.Time
	Modified        time.Time
}

// IsTerminalStatus reports whether the instance has reached a status that no
// transition or cancel may change without explicit reentry.
func (w *WorkflowInstance) IsTerminalStatus() bool {
	return w.Status == WorkflowCompleted || w.Status == WorkflowCancelled
}

// StateRecord is the open/closed interval an instance spends in one state.
// ExitedAt is null while the state is current.
type StateRecord struct {
	ID              int64
	WorkflowID      int64
	StateName       string
	EnteredAt       time.Time
	ExitedAt        sql.NullTime
	DurationMinutes sql.NullInt64
	Trigger         string
	Actor           string
	Metadata        map[string]string
}

// HistoryEntry is one immutable row of an instance's append-only history.
// Seq increases monotonically per workflow.
type HistoryEntry struct {
	ID         int64
	WorkflowID int64
	Seq        int
	FromState  sql.NullString
	ToState    string
	Trigger    string
	Actor      string
	Metadata   map[string]string
	Created    time.Time
}

// TransitionApply carries everything a single validated transition writes.
// The repository applies it in one transaction guarded by the Modified
// timestamp so concurrent writers on the same instance never interleave.
type TransitionApply struct {
	WorkflowID  int64
	Modified    time.Time // optimistic lock: apply only if the row still carries this timestamp
	FromState   string
	ToState     string
	Trigger     string
	Actor       string
	Metadata    map[string]string
	Progress    int
	Status      string
	CompletedAt sql.NullTime // set when ToState is terminal, cleared on reentry
}
