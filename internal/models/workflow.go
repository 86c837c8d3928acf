package models

import "time"

// CreateWorkflowRequest is the payload for creating a workflow instance.
type CreateWorkflowRequest struct {
	CandidateID  string            `json:"candidateId"`
	JobID        string            `json:"jobId"`
	TemplateName string            `json:"templateName,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Actor        string            `json:"actor"`
}

// TransitionRequest applies a named trigger to a workflow instance.
type TransitionRequest struct {
	Trigger  string            `json:"trigger"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Actor    string            `json:"actor"`
}

// CancelWorkflowRequest soft-cancels an instance.
type CancelWorkflowRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// SearchWorkflowsRequest filters the workflow listing.
type SearchWorkflowsRequest struct {
	Status      string `json:"status"`
	CandidateID string `json:"candidateId"`
	JobID       string `json:"jobId"`
	Limit       int64  `json:"limit"`
	Offset      int64  `json:"offset"`
}

// WorkflowApiResponse is the wire representation of a workflow instance.
type WorkflowApiResponse struct {
	ID              int64      `json:"id"`
	BusinessKey     string     `json:"businessKey"`
	CandidateID     string     `json:"candidateId"`
	JobID           string     `json:"jobId"`
	TemplateName    string     `json:"templateName"`
	TemplateVersion int        `json:"templateVersion"`
	CurrentState    string     `json:"currentState"`
	PreviousState   string     `json:"previousState,omitempty"`
	Status          string     `json:"status"`
	Progress        int        `json:"progressPercentage"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	Created         time.Time  `json:"created"`
	Modified        time.Time  `json:"modified"`
}

// ValidAction is one trigger currently legal for an instance.
type ValidAction struct {
	Trigger string `json:"trigger"`
	Dest    string `json:"destinationState"`
}

// TimelineEntry is one state interval in an instance's replayable timeline.
type TimelineEntry struct {
	StateName       string            `json:"stateName"`
	EnteredAt       time.Time         `json:"enteredAt"`
	ExitedAt        *time.Time        `json:"exitedAt,omitempty"`
	DurationMinutes *int64            `json:"durationMinutes,omitempty"`
	Trigger         string            `json:"trigger"`
	Actor           string            `json:"actor,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// StateClockResponse surfaces time spent in the current state plus the
// template's advisory timeout for external schedulers to act on.
type StateClockResponse struct {
	CurrentState          string    `json:"currentState"`
	EnteredAt             time.Time `json:"enteredAt"`
	MinutesInState        int64     `json:"minutesInState"`
	AdvisoryTimeoutMinute int       `json:"advisoryTimeoutMinutes,omitempty"`
	Overdue               bool      `json:"overdue"`
}

// CancelResult reports whether a cancel took effect or lost the race to a
// terminal state.
type CancelResult struct {
	Cancelled bool   `json:"cancelled"`
	Status    string `json:"status"`
}
