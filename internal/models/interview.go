package models

import "time"

// CreateInterviewRequest attaches a new interview step to a workflow.
type CreateInterviewRequest struct {
	WorkflowID    int64  `json:"workflowId"`
	InterviewType string `json:"interviewType"`
	RoundNumber   int    `json:"roundNumber"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
}

// ScheduleInterviewRequest books a time window and participants.
type ScheduleInterviewRequest struct {
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	InterviewerIDs []string  `json:"interviewerIds"`
	MeetingURL     string    `json:"meetingUrl,omitempty"`
	MeetingID      string    `json:"meetingId,omitempty"`
	Location       string    `json:"location,omitempty"`
}

// CompleteInterviewRequest records the outcome of a finished interview.
type CompleteInterviewRequest struct {
	Feedback map[string]string `json:"feedback,omitempty"`
	Scores   map[string]int    `json:"scores,omitempty"`
}

// CancelInterviewRequest cancels a non-terminal interview.
type CancelInterviewRequest struct {
	Reason string `json:"reason"`
}

// InterviewApiResponse is the wire representation of an interview step.
type InterviewApiResponse struct {
	ID             int64             `json:"id"`
	WorkflowID     int64             `json:"workflowId"`
	InterviewType  string            `json:"interviewType"`
	RoundNumber    int               `json:"roundNumber"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	ScheduledStart *time.Time        `json:"scheduledStart,omitempty"`
	ScheduledEnd   *time.Time        `json:"scheduledEnd,omitempty"`
	ActualStart    *time.Time        `json:"actualStart,omitempty"`
	ActualEnd      *time.Time        `json:"actualEnd,omitempty"`
	InterviewerIDs []string          `json:"interviewerIds,omitempty"`
	MeetingURL     string            `json:"meetingUrl,omitempty"`
	Location       string            `json:"location,omitempty"`
	Status         string            `json:"status"`
	Feedback       map[string]string `json:"feedback,omitempty"`
	Scores         map[string]int    `json:"scores,omitempty"`
	CancelReason   string            `json:"cancelReason,omitempty"`
}
