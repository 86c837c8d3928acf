package engine

import (
	"time"

	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/models"
)

// InstanceRepo defines workflow instance persistence, matching
// repository.WorkflowRepository.
type InstanceRepo interface {
	// Create inserts the instance, its first state record and the created
	// history entry in one transaction.
	Create(wf *domain.WorkflowInstance, rec *domain.StateRecord, hist *domain.HistoryEntry) (int64, error)
	FindByID(id int64) (*domain.WorkflowInstance, error)
	FindByBusinessKey(key string) (*domain.WorkflowInstance, error)
	FindActiveByCandidateAndJob(candidateID, jobID string) (*domain.WorkflowInstance, error)
	Search(req models.SearchWorkflowsRequest) (*[]domain.WorkflowInstance, error)
	// ApplyTransition applies a validated transition atomically: update the
	// instance row guarded by the modified timestamp, close the open state
	// record, open the next one, append the history entry. Returns false
	// without error when the guard misses.
	ApplyTransition(t *domain.TransitionApply) (bool, error)
	// CancelInstance soft-cancels a non-terminal instance with the same
	// guard semantics as ApplyTransition.
	CancelInstance(id int64, modified time.Time, reason, actor string, now time.Time) (bool, error)
}

// StateRecordRepo reads the replayable timeline of an instance.
type StateRecordRepo interface {
	FindByWorkflowID(workflowID int64) (*[]domain.StateRecord, error)
	FindOpenByWorkflowID(workflowID int64) (*domain.StateRecord, error)
}

// HistoryRepo reads the append-only history log.
type HistoryRepo interface {
	FindByWorkflowID(workflowID int64) (*[]domain.HistoryEntry, error)
}

// TemplateRepo defines pipeline template persistence.
type TemplateRepo interface {
	FindLatestByName(name string) (*domain.PipelineTemplate, error)
	FindByNameAndVersion(name string, version int) (*domain.PipelineTemplate, error)
	Save(t *domain.PipelineTemplate) (int64, error)
}

// InterviewRepo defines interview step persistence.
type InterviewRepo interface {
	Save(s *domain.InterviewStep) (int64, error)
	Update(s *domain.InterviewStep) error
	FindByID(id int64) (*domain.InterviewStep, error)
	FindByWorkflowID(workflowID int64) (*[]domain.InterviewStep, error)
	// FindOverlapping returns scheduled or running interviews that share a
	// participant with the given window.
	FindOverlapping(interviewerIDs []string, start, end time.Time, excludeID int64) (*[]domain.InterviewStep, error)
}
