package engine

import (
	"database/sql"
	"sync"
	"time"

	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/models"
)

// fixedClock steps forward a minute per Now call so modified timestamps are
// always distinct.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}
func (c *fixedClock) After(d time.Duration) <-chan time.Time { return time.After(0) }
func (c *fixedClock) Sleep(d time.Duration)                  {}

// memInstanceRepo is an in-memory InstanceRepo with real modified-guard
// semantics so the manager's CAS loop is exercised.
type memInstanceRepo struct {
	mu        sync.Mutex
	seq       int64
	instances map[int64]*domain.WorkflowInstance
	records   map[int64][]domain.StateRecord
	history   map[int64][]domain.HistoryEntry
	clock     *fixedClock
}

func newMemInstanceRepo(clock *fixedClock) *memInstanceRepo {
	return &memInstanceRepo{
		instances: make(map[int64]*domain.WorkflowInstance),
		records:   make(map[int64][]domain.StateRecord),
		history:   make(map[int64][]domain.HistoryEntry),
		clock:     clock,
	}
}

func (m *memInstanceRepo) Create(wf *domain.WorkflowInstance, rec *domain.StateRecord, hist *domain.HistoryEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	cp := *wf
	cp.ID = m.seq
	m.instances[cp.ID] = &cp
	r := *rec
	r.WorkflowID = cp.ID
	m.records[cp.ID] = []domain.StateRecord{r}
	h := *hist
	h.WorkflowID = cp.ID
	m.history[cp.ID] = []domain.HistoryEntry{h}
	return cp.ID, nil
}

func (m *memInstanceRepo) FindByID(id int64) (*domain.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.instances[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *wf
	return &cp, nil
}

func (m *memInstanceRepo) FindByBusinessKey(key string) (*domain.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, wf := range m.instances {
		if wf.BusinessKey == key {
			cp := *wf
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memInstanceRepo) FindActiveByCandidateAndJob(candidateID, jobID string) (*domain.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, wf := range m.instances {
		if wf.CandidateID == candidateID && wf.JobID == jobID && !wf.IsTerminalStatus() {
			cp := *wf
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memInstanceRepo) Search(req models.SearchWorkflowsRequest) (*[]domain.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WorkflowInstance
	for _, wf := range m.instances {
		if req.Status != "" && wf.Status != req.Status {
			continue
		}
		out = append(out, *wf)
	}
	return &out, nil
}

func (m *memInstanceRepo) ApplyTransition(t *domain.TransitionApply) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.instances[t.WorkflowID]
	if !ok {
		return false, sql.ErrNoRows
	}
	if !wf.Modified.Equal(t.Modified) {
		return false, nil
	}
	now := m.clock.Now()
	wf.PreviousState = sql.NullString{String: t.FromState, Valid: true}
	wf.CurrentState = t.ToState
	wf.Status = t.Status
	wf.Progress = t.Progress
	wf.CompletedAt = t.CompletedAt
	wf.Modified = now

	recs := m.records[t.WorkflowID]
	if len(recs) > 0 {
		last := &recs[len(recs)-1]
		if !last.ExitedAt.Valid {
			last.ExitedAt = sql.NullTime{Time: now, Valid: true}
			last.DurationMinutes = sql.NullInt64{Int64: int64(now.Sub(last.EnteredAt) / time.Minute), Valid: true}
		}
	}
	m.records[t.WorkflowID] = append(recs, domain.StateRecord{
		WorkflowID: t.WorkflowID, StateName: t.ToState, EnteredAt: now,
		Trigger: t.Trigger, Actor: t.Actor, Metadata: t.Metadata,
	})
	hist := m.history[t.WorkflowID]
	m.history[t.WorkflowID] = append(hist, domain.HistoryEntry{
		WorkflowID: t.WorkflowID, Seq: len(hist) + 1,
		FromState: sql.NullString{String: t.FromState, Valid: true},
		ToState:   t.ToState, Trigger: t.Trigger, Actor: t.Actor, Created: now,
	})
	return true, nil
}

func (m *memInstanceRepo) CancelInstance(id int64, modified time.Time, reason, actor string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.instances[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	if !wf.Modified.Equal(modified) || wf.IsTerminalStatus() {
		return false, nil
	}
	wf.Status = domain.WorkflowCancelled
	wf.CompletedAt = sql.NullTime{Time: now, Valid: true}
	wf.Modified = now
	hist := m.history[id]
	m.history[id] = append(hist, domain.HistoryEntry{
		WorkflowID: id, Seq: len(hist) + 1,
		FromState: sql.NullString{String: wf.CurrentState, Valid: true},
		ToState:   wf.CurrentState, Trigger: "cancel", Actor: actor, Created: now,
	})
	return true, nil
}

func (m *memInstanceRepo) FindByWorkflowID(workflowID int64) (*[]domain.StateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := append([]domain.StateRecord(nil), m.records[workflowID]...)
	return &recs, nil
}

func (m *memInstanceRepo) FindOpenByWorkflowID(workflowID int64) (*domain.StateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.records[workflowID]
	for i := len(recs) - 1; i >= 0; i-- {
		if !recs[i].ExitedAt.Valid {
			cp := recs[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memInstanceRepo) historyFor(workflowID int64) *[]domain.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := append([]domain.HistoryEntry(nil), m.history[workflowID]...)
	return &h
}

// memHistoryRepo adapts memInstanceRepo to the HistoryRepo interface.
type memHistoryRepo struct{ repo *memInstanceRepo }

func (m *memHistoryRepo) FindByWorkflowID(workflowID int64) (*[]domain.HistoryEntry, error) {
	return m.repo.historyFor(workflowID), nil
}

// MockTemplateRepo is a function-field TemplateRepo.
type MockTemplateRepo struct {
	FindLatestByNameFunc     func(name string) (*domain.PipelineTemplate, error)
	FindByNameAndVersionFunc func(name string, version int) (*domain.PipelineTemplate, error)
	SaveFunc                 func(t *domain.PipelineTemplate) (int64, error)
}

func (m *MockTemplateRepo) FindLatestByName(name string) (*domain.PipelineTemplate, error) {
	if m.FindLatestByNameFunc != nil {
		return m.FindLatestByNameFunc(name)
	}
	return nil, sql.ErrNoRows
}
func (m *MockTemplateRepo) FindByNameAndVersion(name string, version int) (*domain.PipelineTemplate, error) {
	if m.FindByNameAndVersionFunc != nil {
		return m.FindByNameAndVersionFunc(name, version)
	}
	return nil, sql.ErrNoRows
}
func (m *MockTemplateRepo) Save(t *domain.PipelineTemplate) (int64, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(t)
	}
	return 1, nil
}

// defaultTemplateRepo serves the built-in pipeline for every lookup.
func defaultTemplateRepo() *MockTemplateRepo {
	return &MockTemplateRepo{
		FindLatestByNameFunc: func(name string) (*domain.PipelineTemplate, error) {
			return DefaultTemplate(), nil
		},
		FindByNameAndVersionFunc: func(name string, version int) (*domain.PipelineTemplate, error) {
			return DefaultTemplate(), nil
		},
	}
}

// MockInterviewRepo is a function-field InterviewRepo backed by a map.
type MockInterviewRepo struct {
	mu    sync.Mutex
	seq   int64
	steps map[int64]*domain.InterviewStep

	FindOverlappingFunc func(interviewerIDs []string, start, end time.Time, excludeID int64) (*[]domain.InterviewStep, error)
}

func newMockInterviewRepo() *MockInterviewRepo {
	return &MockInterviewRepo{steps: make(map[int64]*domain.InterviewStep)}
}

func (m *MockInterviewRepo) Save(s *domain.InterviewStep) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	cp := *s
	cp.ID = m.seq
	m.steps[cp.ID] = &cp
	return cp.ID, nil
}

func (m *MockInterviewRepo) Update(s *domain.InterviewStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.steps[s.ID] = &cp
	return nil
}

func (m *MockInterviewRepo) FindByID(id int64) (*domain.InterviewStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *MockInterviewRepo) FindByWorkflowID(workflowID int64) (*[]domain.InterviewStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.InterviewStep
	for _, s := range m.steps {
		if s.WorkflowID == workflowID {
			out = append(out, *s)
		}
	}
	return &out, nil
}

func (m *MockInterviewRepo) FindOverlapping(interviewerIDs []string, start, end time.Time, excludeID int64) (*[]domain.InterviewStep, error) {
	if m.FindOverlappingFunc != nil {
		return m.FindOverlappingFunc(interviewerIDs, start, end, excludeID)
	}
	return &[]domain.InterviewStep{}, nil
}
