package domain

import (
	"database/sql"
	"time"
)

const (
	InterviewPending    = "pending"
	InterviewScheduled  = "scheduled"
	InterviewInProgress = "in_progress"
	InterviewCompleted  = "completed"
	InterviewCancelled  = "cancelled"
)

// InterviewStep is a time boxed sub task attached to a workflow instance. It
// runs its own linear state machine independent of the parent pipeline and is
// never deleted; cancellation is a status.
type InterviewStep struct {
	ID             int64
	WorkflowID     int64
	InterviewType  string // phone, video, onsite, panel
	RoundNumber    int
	Title          string
	Description    string
	ScheduledStart sql.NullTime
	ScheduledEnd   sql.NullTime
	ActualStart    sql.NullTime
	ActualEnd      sql.NullTime
	InterviewerIDs []string
	MeetingURL     string
	MeetingID      string
	Location       string
	Status         string
	Feedback       map[string]string
	Scores         map[string]int
	CancelReason   string
	Created        time.Time
	Modified       time.Time
}

// IsTerminalStatus reports whether the interview can no longer move.
func (s *InterviewStep) IsTerminalStatus() bool {
	return s.Status == InterviewCompleted || s.Status == InterviewCancelled
}
