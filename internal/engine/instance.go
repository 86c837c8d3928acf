package engine

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/models"
)

const createdTrigger = "created"
const cancelTrigger = "cancel"

// InstanceManager owns the lifecycle of workflow instances. Transitions on
// the same instance are linearized with a per-instance lock plus an
// optimistic modified-timestamp guard in SQL; different instances proceed
// fully in parallel.
type InstanceManager struct {
	instances InstanceRepo
	records   StateRecordRepo
	history   HistoryRepo
	templates TemplateRepo
	emitter   *Emitter
	clock     core.Clock

	locks sync.Map // workflow id -> *sync.Mutex
}

func NewInstanceManager(instances InstanceRepo, records StateRecordRepo, history HistoryRepo,
	templates TemplateRepo, emitter *Emitter, clock core.Clock) *InstanceManager {
	return &InstanceManager{
		instances: instances,
		records:   records,
		history:   history,
		templates: templates,
		emitter:   emitter,
		clock:     clock,
	}
}

func (m *InstanceManager) lockFor(id int64) *sync.Mutex {
	mu, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// creationMetadata returns the metadata the instance was created with, held
// in its first history entry. Event consumers resolve recipient details
// (candidate email, job title) from it, so it rides along on every event the
// instance produces.
func (m *InstanceManager) creationMetadata(id int64) map[string]string {
	entries, err := m.history.FindByWorkflowID(id)
	if err != nil || len(*entries) == 0 {
		return nil
	}
	return (*entries)[0].Metadata
}

// graphFor loads and compiles the template version an instance is pinned to.
func (m *InstanceManager) graphFor(wf *domain.WorkflowInstance) (*Graph, error) {
	t, err := m.templates.FindByNameAndVersion(wf.TemplateName, wf.TemplateVersion)
	if err != nil {
		return nil, fmt.Errorf("load template %s v%d: %w", wf.TemplateName, wf.TemplateVersion, err)
	}
	return NewGraph(t)
}

// Create starts a new instance in the template's initial state. It fails
// with ErrDuplicateActive when the (candidate, job) pair already has an
// active instance.
func (m *InstanceManager) Create(req models.CreateWorkflowRequest) (*domain.WorkflowInstance, error) {
	templateName := req.TemplateName
	if templateName == "" {
		templateName = DefaultTemplateName
	}
	t, err := m.templates.FindLatestByName(templateName)
	if err != nil {
		return nil, fmt.Errorf("load template %q: %w", templateName, err)
	}
	graph, err := NewGraph(t)
	if err != nil {
		return nil, err
	}

	existing, err := m.instances.FindActiveByCandidateAndJob(req.CandidateID, req.JobID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: candidate %s, job %s", ErrDuplicateActive, req.CandidateID, req.JobID)
	}

	now := m.clock.Now()
	initial := graph.InitialState()
	wf := &domain.WorkflowInstance{
		BusinessKey:     uuid.NewString(),
		CandidateID:     req.CandidateID,
		JobID:           req.JobID,
		TemplateName:    t.Name,
		TemplateVersion: t.Version,
		CurrentState:    initial,
		Status:          domain.WorkflowActive,
		Progress:        graph.ProgressFor(initial),
		StartedAt:       now,
		Created:         now,
		Modified:        now,
	}
	rec := &domain.StateRecord{
		StateName: initial,
		EnteredAt: now,
		Trigger:   createdTrigger,
		Actor:     req.Actor,
		Metadata:  req.Metadata,
	}
	hist := &domain.HistoryEntry{
		Seq:      1,
		ToState:  initial,
		Trigger:  createdTrigger,
		Actor:    req.Actor,
		Metadata: req.Metadata,
		Created:  now,
	}
	id, err := m.instances.Create(wf, rec, hist)
	if err != nil {
		return nil, err
	}
	wf.ID = id

	slog.Info("Created workflow instance", "workflow_id", id, "candidate_id", req.CandidateID,
		"job_id", req.JobID, "template", t.Name, "state", initial)
	m.emitter.Emit(Event{
		Kind:        EventWorkflowCreated,
		WorkflowID:  id,
		CandidateID: wf.CandidateID,
		JobID:       wf.JobID,
		ToState:     initial,
		Trigger:     createdTrigger,
		Actor:       req.Actor,
		Occurred:    now,
		Context:     req.Metadata,
	})
	return wf, nil
}

// Transition applies a trigger to an instance. Validation happens before any
// write, so a rejected transition leaves state, history and progress
// untouched. On success the state record close/open, the history append and
// the instance update land in one transaction.
func (m *InstanceManager) Transition(id int64, req models.TransitionRequest) (*domain.WorkflowInstance, error) {
	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	// The modified guard can still miss if an external writer touched the
	// row between read and apply; re-read and retry a bounded number of
	// times before giving up.
	for attempt := 0; attempt < 3; attempt++ {
		wf, err := m.instances.FindByID(id)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, fmt.Errorf("%w: workflow %d", ErrNotFound, id)
			}
			return nil, err
		}
		graph, err := m.graphFor(wf)
		if err != nil {
			return nil, err
		}
		if wf.Status == domain.WorkflowCancelled {
			return nil, invalidTransition(wf.CurrentState, req.Trigger)
		}
		dest, err := graph.Resolve(wf.CurrentState, req.Trigger)
		if err != nil {
			return nil, err
		}

		now := m.clock.Now()
		apply := &domain.TransitionApply{
			WorkflowID: id,
			Modified:   wf.Modified,
			FromState:  wf.CurrentState,
			ToState:    dest,
			Trigger:    req.Trigger,
			Actor:      req.Actor,
			Metadata:   req.Metadata,
			Progress:   graph.ProgressFor(dest),
			Status:     domain.WorkflowActive,
		}
		if graph.EndsJourney(dest) {
			apply.Status = domain.WorkflowCompleted
			apply.CompletedAt = sql.NullTime{Time: now, Valid: true}
		}
		// A legal trigger out of a completed instance reopens it: status back
		// to active, completed_at cleared. The template opted into that by
		// allowing the rule to exist.
		applied, err := m.instances.ApplyTransition(apply)
		if err != nil {
			return nil, err
		}
		if !applied {
			slog.Warn("Transition lost modified guard, retrying", "workflow_id", id, "attempt", attempt)
			continue
		}

		slog.Info("Transitioned workflow", "workflow_id", id, "from", apply.FromState,
			"to", dest, "trigger", req.Trigger, "progress", apply.Progress, "status", apply.Status)
		m.emitter.Emit(Event{
			Kind:        EventWorkflowTransitioned,
			WorkflowID:  id,
			CandidateID: wf.CandidateID,
			JobID:       wf.JobID,
			FromState:   apply.FromState,
			ToState:     dest,
			Trigger:     req.Trigger,
			Actor:       req.Actor,
			Occurred:    now,
			Context:     mergeContext(m.creationMetadata(id), req.Metadata),
		})
		return m.instances.FindByID(id)
	}
	return nil, fmt.Errorf("workflow %d: transition retries exhausted under concurrent modification", id)
}

// Cancel soft-cancels an instance. Racing against an in-flight transition is
// safe: the cancel wins only if the instance has not reached a terminal
// status, otherwise it reports a no-op rather than an error.
func (m *InstanceManager) Cancel(id int64, reason, actor string) (*models.CancelResult, error) {
	mu := m.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < 3; attempt++ {
		wf, err := m.instances.FindByID(id)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, fmt.Errorf("%w: workflow %d", ErrNotFound, id)
			}
			return nil, err
		}
		if wf.IsTerminalStatus() {
			return &models.CancelResult{Cancelled: false, Status: wf.Status}, nil
		}
		now := m.clock.Now()
		ok, err := m.instances.CancelInstance(id, wf.Modified, reason, actor, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		slog.Info("Cancelled workflow", "workflow_id", id, "reason", reason, "actor", actor)
		m.emitter.Emit(Event{
			Kind:        EventWorkflowCancelled,
			WorkflowID:  id,
			CandidateID: wf.CandidateID,
			JobID:       wf.JobID,
			FromState:   wf.CurrentState,
			ToState:     wf.CurrentState,
			Trigger:     cancelTrigger,
			Actor:       actor,
			Occurred:    now,
			Context:     mergeContext(m.creationMetadata(id), map[string]string{"reason": reason}),
		})
		return &models.CancelResult{Cancelled: true, Status: domain.WorkflowCancelled}, nil
	}
	return nil, fmt.Errorf("workflow %d: cancel retries exhausted under concurrent modification", id)
}

// Get returns an instance by id.
func (m *InstanceManager) Get(id int64) (*domain.WorkflowInstance, error) {
	wf, err := m.instances.FindByID(id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: workflow %d", ErrNotFound, id)
		}
		return nil, err
	}
	return wf, nil
}

// List returns instances matching the filters.
func (m *InstanceManager) List(req models.SearchWorkflowsRequest) (*[]domain.WorkflowInstance, error) {
	return m.instances.Search(req)
}

// ValidActions lists the triggers currently legal for an instance.
func (m *InstanceManager) ValidActions(id int64) ([]models.ValidAction, error) {
	wf, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	graph, err := m.graphFor(wf)
	if err != nil {
		return nil, err
	}
	rules := graph.ValidActions(wf.CurrentState)
	actions := make([]models.ValidAction, 0, len(rules))
	for _, r := range rules {
		actions = append(actions, models.ValidAction{Trigger: r.Trigger, Dest: r.Dest})
	}
	return actions, nil
}

// Timeline returns the ordered state records of an instance.
func (m *InstanceManager) Timeline(id int64) ([]models.TimelineEntry, error) {
	if _, err := m.Get(id); err != nil {
		return nil, err
	}
	recs, err := m.records.FindByWorkflowID(id)
	if err != nil {
		return nil, err
	}
	timeline := make([]models.TimelineEntry, 0, len(*recs))
	for _, r := range *recs {
		entry := models.TimelineEntry{
			StateName: r.StateName,
			EnteredAt: r.EnteredAt,
			Trigger:   r.Trigger,
			Actor:     r.Actor,
			Metadata:  r.Metadata,
		}
		if r.ExitedAt.Valid {
			t := r.ExitedAt.Time
			entry.ExitedAt = &t
		}
		if r.DurationMinutes.Valid {
			d := r.DurationMinutes.Int64
			entry.DurationMinutes = &d
		}
		timeline = append(timeline, entry)
	}
	return timeline, nil
}

// StateClock surfaces time in the current state and the template's advisory
// timeout. The engine never forces a transition on timeout; external
// schedulers act on this.
func (m *InstanceManager) StateClock(id int64) (*models.StateClockResponse, error) {
	wf, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	graph, err := m.graphFor(wf)
	if err != nil {
		return nil, err
	}
	open, err := m.records.FindOpenByWorkflowID(id)
	if err != nil {
		return nil, err
	}
	enteredAt := wf.StartedAt
	if open != nil {
		enteredAt = open.EnteredAt
	}
	minutes := int64(m.clock.Now().Sub(enteredAt) / time.Minute)
	timeout := graph.TimeoutMinutes(wf.CurrentState)
	return &models.StateClockResponse{
		CurrentState:          wf.CurrentState,
		EnteredAt:             enteredAt,
		MinutesInState:        minutes,
		AdvisoryTimeoutMinute: timeout,
		Overdue:               timeout > 0 && minutes > int64(timeout),
	}, nil
}

// History returns the append-only history entries of an instance.
func (m *InstanceManager) History(id int64) (*[]domain.HistoryEntry, error) {
	if _, err := m.Get(id); err != nil {
		return nil, err
	}
	return m.history.FindByWorkflowID(id)
}
