package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/models"
)

func newInterviewFixture(t *testing.T, policy ConflictPolicy) (*InterviewManager, *MockInterviewRepo, *domain.WorkflowInstance, <-chan Event) {
	t.Helper()
	clock := newFixedClock()
	instances := newMemInstanceRepo(clock)
	emitter := NewEmitter()
	events := emitter.Subscribe(64)
	im := NewInstanceManager(instances, instances, &memHistoryRepo{repo: instances}, defaultTemplateRepo(), emitter, clock)
	wf, err := im.Create(models.CreateWorkflowRequest{
		CandidateID: "cand-1", JobID: "job-1",
		Metadata: map[string]string{
			"candidate_email": "sam@example.com",
			"candidate_name":  "Sam",
			"job_title":       "Backend Engineer",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	<-events // drain the created event

	interviews := newMockInterviewRepo()
	m := NewInterviewManager(interviews, instances, &memHistoryRepo{repo: instances}, emitter, clock, policy)
	return m, interviews, wf, events
}

func scheduleWindow() (time.Time, time.Time) {
	start := time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC)
	return start, start.Add(time.Hour)
}

func TestInterviewManager_Lifecycle(t *testing.T) {
	m, _, wf, events := newInterviewFixture(t, ConflictWarn)

	step, err := m.Create(models.CreateInterviewRequest{
		WorkflowID: wf.ID, InterviewType: "phone", Title: "Phone screen",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if step.Status != domain.InterviewPending {
		t.Errorf("expected pending, got %q", step.Status)
	}
	if step.RoundNumber != 1 {
		t.Errorf("expected default round 1, got %d", step.RoundNumber)
	}

	start, end := scheduleWindow()
	step, err = m.Schedule(step.ID, models.ScheduleInterviewRequest{
		Start: start, End: end, InterviewerIDs: []string{"int-1"},
	})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if step.Status != domain.InterviewScheduled {
		t.Errorf("expected scheduled, got %q", step.Status)
	}
	ev := <-events
	if ev.Kind != EventInterviewScheduled || ev.InterviewID != step.ID {
		t.Errorf("expected interview.scheduled event, got %+v", ev)
	}
	// The event carries the workflow's creation metadata plus the window, so
	// consumers can notify the candidate.
	if ev.Context["candidate_email"] != "sam@example.com" {
		t.Errorf("creation metadata missing from event context: %+v", ev.Context)
	}
	if ev.Context["interview_type"] != "phone" || ev.Context["start"] == "" || ev.Context["end"] == "" {
		t.Errorf("interview details missing from event context: %+v", ev.Context)
	}

	step, err = m.Start(step.ID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if step.Status != domain.InterviewInProgress || !step.ActualStart.Valid {
		t.Errorf("expected in_progress with actual start, got %+v", step)
	}

	step, err = m.Complete(step.ID, models.CompleteInterviewRequest{
		Feedback: map[string]string{"overall": "strong"},
		Scores:   map[string]int{"coding": 4},
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if step.Status != domain.InterviewCompleted || !step.ActualEnd.Valid {
		t.Errorf("expected completed with actual end, got %+v", step)
	}
	if step.Scores["coding"] != 4 {
		t.Errorf("scores not stored: %+v", step.Scores)
	}
}

func TestInterviewManager_IllegalMoves(t *testing.T) {
	m, _, wf, _ := newInterviewFixture(t, ConflictWarn)
	step, err := m.Create(models.CreateInterviewRequest{WorkflowID: wf.ID, InterviewType: "phone"})
	if err != nil {
		t.Fatal(err)
	}

	// Cannot start or complete a pending interview.
	if _, err := m.Start(step.ID); !errors.Is(err, ErrInterviewStatus) {
		t.Errorf("expected ErrInterviewStatus on start from pending, got %v", err)
	}
	if _, err := m.Complete(step.ID, models.CompleteInterviewRequest{}); !errors.Is(err, ErrInterviewStatus) {
		t.Errorf("expected ErrInterviewStatus on complete from pending, got %v", err)
	}

	// Window must be positive.
	start, _ := scheduleWindow()
	if _, err := m.Schedule(step.ID, models.ScheduleInterviewRequest{Start: start, End: start}); err == nil {
		t.Error("expected error for empty window")
	}
}

func TestInterviewManager_ConflictBlocks(t *testing.T) {
	m, repo, wf, _ := newInterviewFixture(t, ConflictBlock)
	repo.FindOverlappingFunc = func(ids []string, start, end time.Time, excludeID int64) (*[]domain.InterviewStep, error) {
		return &[]domain.InterviewStep{{ID: 42, Status: domain.InterviewScheduled}}, nil
	}

	step, err := m.Create(models.CreateInterviewRequest{WorkflowID: wf.ID, InterviewType: "panel"})
	if err != nil {
		t.Fatal(err)
	}
	start, end := scheduleWindow()
	_, err = m.Schedule(step.ID, models.ScheduleInterviewRequest{
		Start: start, End: end, InterviewerIDs: []string{"int-1"},
	})
	if !errors.Is(err, ErrScheduleConflict) {
		t.Fatalf("expected ErrScheduleConflict, got %v", err)
	}

	// The interview stays pending after the rejected schedule.
	after, _ := m.Get(step.ID)
	if after.Status != domain.InterviewPending {
		t.Errorf("expected pending after blocked schedule, got %q", after.Status)
	}
}

func TestInterviewManager_ConflictWarnsButSchedules(t *testing.T) {
	m, repo, wf, _ := newInterviewFixture(t, ConflictWarn)
	repo.FindOverlappingFunc = func(ids []string, start, end time.Time, excludeID int64) (*[]domain.InterviewStep, error) {
		return &[]domain.InterviewStep{{ID: 42, Status: domain.InterviewScheduled}}, nil
	}

	step, err := m.Create(models.CreateInterviewRequest{WorkflowID: wf.ID, InterviewType: "panel"})
	if err != nil {
		t.Fatal(err)
	}
	start, end := scheduleWindow()
	step, err = m.Schedule(step.ID, models.ScheduleInterviewRequest{
		Start: start, End: end, InterviewerIDs: []string{"int-1"},
	})
	if err != nil {
		t.Fatalf("warn policy should schedule anyway: %v", err)
	}
	if step.Status != domain.InterviewScheduled {
		t.Errorf("expected scheduled, got %q", step.Status)
	}
}

func TestInterviewManager_CancelSemantics(t *testing.T) {
	m, _, wf, events := newInterviewFixture(t, ConflictWarn)
	step, err := m.Create(models.CreateInterviewRequest{WorkflowID: wf.ID, InterviewType: "phone"})
	if err != nil {
		t.Fatal(err)
	}

	result, err := m.Cancel(step.ID, "candidate unavailable")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if !result.Cancelled {
		t.Fatal("expected cancel to take effect")
	}
	ev := <-events
	if ev.Kind != EventInterviewCancelled {
		t.Fatalf("expected interview.cancelled event, got %q", ev.Kind)
	}
	if ev.Context["candidate_email"] != "sam@example.com" || ev.Context["reason"] != "candidate unavailable" {
		t.Errorf("cancel event context incomplete: %+v", ev.Context)
	}

	// Cancelling a terminal interview is a no-op.
	again, err := m.Cancel(step.ID, "twice")
	if err != nil {
		t.Fatalf("second cancel errored: %v", err)
	}
	if again.Cancelled {
		t.Error("expected second cancel to be a no-op")
	}
	after, _ := m.Get(step.ID)
	if after.CancelReason != "candidate unavailable" {
		t.Errorf("cancel reason overwritten: %q", after.CancelReason)
	}
}
