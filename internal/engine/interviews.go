package engine

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/models"
)

// ConflictPolicy controls what a participant double-booking does to
// scheduling. The source system only ever warned, so warn is the default;
// block turns the check into a hard rejection.
type ConflictPolicy string

const (
	ConflictWarn  ConflictPolicy = "warn"
	ConflictBlock ConflictPolicy = "block"
)

// InterviewManager runs the per-interview state machine:
// pending -> scheduled -> in_progress -> completed, with cancellation from
// any non-terminal status. It is independent of the parent workflow's
// machine but feeds the same event stream.
type InterviewManager struct {
	interviews InterviewRepo
	instances  InstanceRepo
	history    HistoryRepo
	emitter    *Emitter
	clock      core.Clock
	policy     ConflictPolicy
}

func NewInterviewManager(interviews InterviewRepo, instances InstanceRepo, history HistoryRepo,
	emitter *Emitter, clock core.Clock, policy ConflictPolicy) *InterviewManager {
	if policy != ConflictBlock {
		policy = ConflictWarn
	}
	return &InterviewManager{
		interviews: interviews,
		instances:  instances,
		history:    history,
		emitter:    emitter,
		clock:      clock,
		policy:     policy,
	}
}

// Create attaches a pending interview step to a workflow instance.
func (m *InterviewManager) Create(req models.CreateInterviewRequest) (*domain.InterviewStep, error) {
	wf, err := m.instances.FindByID(req.WorkflowID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: workflow %d", ErrNotFound, req.WorkflowID)
		}
		return nil, err
	}
	now := m.clock.Now()
	round := req.RoundNumber
	if round <= 0 {
		round = 1
	}
	step := &domain.InterviewStep{
		WorkflowID:    wf.ID,
		InterviewType: req.InterviewType,
		RoundNumber:   round,
		Title:         req.Title,
		Description:   req.Description,
		Status:        domain.InterviewPending,
		Created:       now,
		Modified:      now,
	}
	id, err := m.interviews.Save(step)
	if err != nil {
		return nil, err
	}
	step.ID = id
	slog.Info("Created interview", "interview_id", id, "workflow_id", wf.ID,
		"type", req.InterviewType, "round", round)
	return step, nil
}

// Schedule books a time window and participants. Rescheduling an already
// scheduled interview is allowed; anything further along is not.
func (m *InterviewManager) Schedule(id int64, req models.ScheduleInterviewRequest) (*domain.InterviewStep, error) {
	step, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if step.Status != domain.InterviewPending && step.Status != domain.InterviewScheduled {
		return nil, fmt.Errorf("%w: schedule from %q", ErrInterviewStatus, step.Status)
	}
	if !req.End.After(req.Start) {
		return nil, fmt.Errorf("schedule window end must be after start")
	}

	if len(req.InterviewerIDs) > 0 {
		overlapping, err := m.interviews.FindOverlapping(req.InterviewerIDs, req.Start, req.End, id)
		if err != nil {
			return nil, err
		}
		if overlapping != nil && len(*overlapping) > 0 {
			if m.policy == ConflictBlock {
				return nil, fmt.Errorf("%w: %s", ErrScheduleConflict, conflictSummary(*overlapping))
			}
			slog.Warn("Scheduling despite participant conflict", "interview_id", id,
				"conflicts", conflictSummary(*overlapping))
		}
	}

	now := m.clock.Now()
	step.ScheduledStart = sql.NullTime{Time: req.Start, Valid: true}
	step.ScheduledEnd = sql.NullTime{Time: req.End, Valid: true}
	step.InterviewerIDs = req.InterviewerIDs
	step.MeetingURL = req.MeetingURL
	step.MeetingID = req.MeetingID
	step.Location = req.Location
	step.Status = domain.InterviewScheduled
	step.Modified = now
	if err := m.interviews.Update(step); err != nil {
		return nil, err
	}

	slog.Info("Scheduled interview", "interview_id", id, "workflow_id", step.WorkflowID,
		"start", req.Start, "end", req.End)
	m.emitInterviewEvent(EventInterviewScheduled, step, now, map[string]string{
		"interview_type": step.InterviewType,
		"start":          req.Start.Format(time.RFC3339),
		"end":            req.End.Format(time.RFC3339),
	})
	return step, nil
}

// Start marks a scheduled interview as running.
func (m *InterviewManager) Start(id int64) (*domain.InterviewStep, error) {
	step, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if step.Status != domain.InterviewScheduled {
		return nil, fmt.Errorf("%w: start from %q", ErrInterviewStatus, step.Status)
	}
	now := m.clock.Now()
	step.ActualStart = sql.NullTime{Time: now, Valid: true}
	step.Status = domain.InterviewInProgress
	step.Modified = now
	if err := m.interviews.Update(step); err != nil {
		return nil, err
	}
	slog.Info("Started interview", "interview_id", id, "workflow_id", step.WorkflowID)
	return step, nil
}

// Complete records feedback and scores for a running interview.
func (m *InterviewManager) Complete(id int64, req models.CompleteInterviewRequest) (*domain.InterviewStep, error) {
	step, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if step.Status != domain.InterviewInProgress {
		return nil, fmt.Errorf("%w: complete from %q", ErrInterviewStatus, step.Status)
	}
	now := m.clock.Now()
	step.ActualEnd = sql.NullTime{Time: now, Valid: true}
	step.Feedback = req.Feedback
	step.Scores = req.Scores
	step.Status = domain.InterviewCompleted
	step.Modified = now
	if err := m.interviews.Update(step); err != nil {
		return nil, err
	}
	slog.Info("Completed interview", "interview_id", id, "workflow_id", step.WorkflowID)
	return step, nil
}

// Cancel cancels a non-terminal interview. Cancelling a terminal one is a
// reported no-op, not an error, so cancels racing a completion are safe.
func (m *InterviewManager) Cancel(id int64, reason string) (*models.CancelResult, error) {
	step, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if step.IsTerminalStatus() {
		return &models.CancelResult{Cancelled: false, Status: step.Status}, nil
	}
	now := m.clock.Now()
	step.Status = domain.InterviewCancelled
	step.CancelReason = reason
	step.Modified = now
	if err := m.interviews.Update(step); err != nil {
		return nil, err
	}
	slog.Info("Cancelled interview", "interview_id", id, "workflow_id", step.WorkflowID, "reason", reason)
	m.emitInterviewEvent(EventInterviewCancelled, step, now, map[string]string{
		"interview_type": step.InterviewType,
		"reason":         reason,
	})
	return &models.CancelResult{Cancelled: true, Status: domain.InterviewCancelled}, nil
}

// Get returns an interview by id.
func (m *InterviewManager) Get(id int64) (*domain.InterviewStep, error) {
	return m.get(id)
}

// ListForWorkflow returns all interview steps of a workflow ordered by round.
func (m *InterviewManager) ListForWorkflow(workflowID int64) (*[]domain.InterviewStep, error) {
	return m.interviews.FindByWorkflowID(workflowID)
}

func (m *InterviewManager) get(id int64) (*domain.InterviewStep, error) {
	step, err := m.interviews.FindByID(id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: interview %d", ErrNotFound, id)
		}
		return nil, err
	}
	return step, nil
}

func (m *InterviewManager) emitInterviewEvent(kind EventKind, step *domain.InterviewStep, now time.Time, ctx map[string]string) {
	wf, err := m.instances.FindByID(step.WorkflowID)
	if err != nil {
		slog.Error("Failed to load workflow for interview event", "workflow_id", step.WorkflowID, "error", err)
		return
	}
	// The parent workflow's creation metadata (candidate email, job title)
	// rides along so downstream consumers can address the candidate.
	if entries, err := m.history.FindByWorkflowID(step.WorkflowID); err == nil && len(*entries) > 0 {
		ctx = mergeContext((*entries)[0].Metadata, ctx)
	}
	m.emitter.Emit(Event{
		Kind:        kind,
		WorkflowID:  wf.ID,
		CandidateID: wf.CandidateID,
		JobID:       wf.JobID,
		InterviewID: step.ID,
		Occurred:    now,
		Context:     ctx,
	})
}

func conflictSummary(steps []domain.InterviewStep) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		parts = append(parts, fmt.Sprintf("interview %d", s.ID))
	}
	return strings.Join(parts, ", ")
}
