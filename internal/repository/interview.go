package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/util"
)

// InterviewRepository persists interview steps. Interviewer ids, feedback and
// scores are JSON text columns; overlap checks pull candidate rows by window
// and match participants in Go, which keeps the query dialect-portable.
type InterviewRepository struct {
	db    *sql.DB
	clock core.Clock
}

const interviewColumns = ` id, workflow_id, interview_type, round_number, title, description,
		       scheduled_start, scheduled_end, actual_start, actual_end,
		       interviewer_ids, meeting_url, meeting_id, location, status,
		       feedback, scores, cancel_reason, created, modified `

func NewInterviewRepository(db *sql.DB, clock core.Clock) *InterviewRepository {
	return &InterviewRepository{db: db, clock: clock}
}

func (r *InterviewRepository) Save(s *domain.InterviewStep) (int64, error) {
	vals := []interface{}{
		s.WorkflowID, s.InterviewType, s.RoundNumber, s.Title, s.Description,
		formatDateInDatabaseNull(s.ScheduledStart), formatDateInDatabaseNull(s.ScheduledEnd),
		formatDateInDatabaseNull(s.ActualStart), formatDateInDatabaseNull(s.ActualEnd),
		util.ToJSON(s.InterviewerIDs), s.MeetingURL, s.MeetingID, s.Location, s.Status,
		util.ToJSON(s.Feedback), util.ToJSON(s.Scores), s.CancelReason,
		formatDateInDatabase(s.Created), formatDateInDatabase(s.Modified),
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	query := `INSERT INTO interview_steps (
		workflow_id, interview_type, round_number, title, description,
		scheduled_start, scheduled_end, actual_start, actual_end,
		interviewer_ids, meeting_url, meeting_id, location, status,
		feedback, scores, cancel_reason, created, modified
	) VALUES (` + strings.Join(pps, ", ") + `)`
	id, err := insertReturningID(r.db, query, vals...)
	if err != nil {
		return 0, err
	}
	s.ID = id
	return id, nil
}

func (r *InterviewRepository) Update(s *domain.InterviewStep) error {
	query := `
		UPDATE interview_steps
		SET scheduled_start = ` + placeholder(1) + `,
		    scheduled_end = ` + placeholder(2) + `,
		    actual_start = ` + placeholder(3) + `,
		    actual_end = ` + placeholder(4) + `,
		    interviewer_ids = ` + placeholder(5) + `,
		    meeting_url = ` + placeholder(6) + `,
		    meeting_id = ` + placeholder(7) + `,
		    location = ` + placeholder(8) + `,
		    status = ` + placeholder(9) + `,
		    feedback = ` + placeholder(10) + `,
		    scores = ` + placeholder(11) + `,
		    cancel_reason = ` + placeholder(12) + `,
		    modified = ` + placeholder(13) + `
		WHERE id = ` + placeholder(14) + `
	`
	_, err := r.db.Exec(query,
		formatDateInDatabaseNull(s.ScheduledStart), formatDateInDatabaseNull(s.ScheduledEnd),
		formatDateInDatabaseNull(s.ActualStart), formatDateInDatabaseNull(s.ActualEnd),
		util.ToJSON(s.InterviewerIDs), s.MeetingURL, s.MeetingID, s.Location, s.Status,
		util.ToJSON(s.Feedback), util.ToJSON(s.Scores), s.CancelReason,
		formatDateInDatabase(s.Modified), s.ID,
	)
	return err
}

func (r *InterviewRepository) FindByID(id int64) (*domain.InterviewStep, error) {
	query := `
		SELECT ` + interviewColumns + `
		FROM interview_steps WHERE id = ` + placeholder(1) + `
	`
	return scanInterview(r.db.QueryRow(query, id))
}

func (r *InterviewRepository) FindByWorkflowID(workflowID int64) (*[]domain.InterviewStep, error) {
	query := `
		SELECT ` + interviewColumns + `
		FROM interview_steps
		WHERE workflow_id = ` + placeholder(1) + `
		ORDER BY round_number ASC, id ASC
	`
	rows, err := r.db.Query(query, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInterviews(rows)
}

// FindOverlapping returns scheduled or running interviews whose window
// overlaps [start, end) and that share at least one participant.
func (r *InterviewRepository) FindOverlapping(interviewerIDs []string, start, end time.Time, excludeID int64) (*[]domain.InterviewStep, error) {
	query := `
		SELECT ` + interviewColumns + `
		FROM interview_steps
		WHERE status IN ('scheduled', 'in_progress')
		  AND id != ` + placeholder(1) + `
		  AND scheduled_start IS NOT NULL
		  AND scheduled_start < ` + placeholder(2) + `
		  AND scheduled_end > ` + placeholder(3) + `
	`
	rows, err := r.db.Query(query, excludeID,
		formatDateInDatabase(end), formatDateInDatabase(start))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates, err := collectInterviews(rows)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(interviewerIDs))
	for _, id := range interviewerIDs {
		wanted[id] = true
	}
	var overlapping []domain.InterviewStep
	for _, s := range *candidates {
		for _, id := range s.InterviewerIDs {
			if wanted[id] {
				overlapping = append(overlapping, s)
				break
			}
		}
	}
	return &overlapping, nil
}

func collectInterviews(rows *sql.Rows) (*[]domain.InterviewStep, error) {
	var steps []domain.InterviewStep
	for rows.Next() {
		s, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *s)
	}
	return &steps, rows.Err()
}

func scanInterview(row rowScanner) (*domain.InterviewStep, error) {
	var s domain.InterviewStep
	var interviewers, feedback, scores string
	err := row.Scan(
		&s.ID, &s.WorkflowID, &s.InterviewType, &s.RoundNumber, &s.Title, &s.Description,
		&s.ScheduledStart, &s.ScheduledEnd, &s.ActualStart, &s.ActualEnd,
		&interviewers, &s.MeetingURL, &s.MeetingID, &s.Location, &s.Status,
		&feedback, &scores, &s.CancelReason, &s.Created, &s.Modified,
	)
	if err != nil {
		return nil, err
	}
	if err := util.FromJSON(interviewers, &s.InterviewerIDs); err != nil {
		return nil, err
	}
	if err := util.FromJSON(feedback, &s.Feedback); err != nil {
		return nil, err
	}
	if err := util.FromJSON(scores, &s.Scores); err != nil {
		return nil, err
	}
	return &s, nil
}
