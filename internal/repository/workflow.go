package repository

import (
	"database/sql"
	"strings"
	"time"

	"log/slog"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/models"
	"github.com/hireflow/hireflow/internal/util"
)

// WorkflowRepository persists workflow instances. Transitions and cancels go
// through single transactions guarded by the modified timestamp, so a row
// that changed under a caller simply reports no rows affected.
type WorkflowRepository struct {
	db    *sql.DB
	clock core.Clock
}

const workflowColumns = ` id, business_key, candidate_id, job_id, template_name, template_version,
		       current_state, previous_state, status, progress_pct,
		       started_at, completed_at, created, modified `

func NewWorkflowRepository(db *sql.DB, clock core.Clock) *WorkflowRepository {
	return &WorkflowRepository{db: db, clock: clock}
}

// Create inserts the instance, its first state record and the creation
// history entry in one transaction.
func (r *WorkflowRepository) Create(wf *domain.WorkflowInstance, rec *domain.StateRecord, hist *domain.HistoryEntry) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	vals := []interface{}{
		wf.BusinessKey, wf.CandidateID, wf.JobID, wf.TemplateName, wf.TemplateVersion,
		wf.CurrentState, wf.PreviousState, wf.Status, wf.Progress,
		formatDateInDatabase(wf.StartedAt), formatDateInDatabaseNull(wf.CompletedAt),
		formatDateInDatabase(wf.Created), formatDateInDatabase(wf.Modified),
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	query := `INSERT INTO workflow_instances (
		business_key, candidate_id, job_id, template_name, template_version,
		current_state, previous_state, status, progress_pct,
		started_at, completed_at, created, modified
	) VALUES (` + strings.Join(pps, ", ") + `)`
	id, err := txInsertReturningID(tx, query, vals...)
	if err != nil {
		return 0, err
	}

	rec.WorkflowID = id
	if err := insertStateRecord(tx, rec); err != nil {
		return 0, err
	}
	hist.WorkflowID = id
	if err := insertHistoryEntry(tx, hist); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	wf.ID = id
	return id, nil
}

func (r *WorkflowRepository) FindByID(id int64) (*domain.WorkflowInstance, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflow_instances WHERE id = ` + placeholder(1) + `
	`
	return scanWorkflow(r.db.QueryRow(query, id))
}

func (r *WorkflowRepository) FindByBusinessKey(key string) (*domain.WorkflowInstance, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflow_instances WHERE business_key = ` + placeholder(1) + `
	`
	return scanWorkflow(r.db.QueryRow(query, key))
}

// FindActiveByCandidateAndJob returns the non-terminal instance for the pair,
// or nil when there is none.
func (r *WorkflowRepository) FindActiveByCandidateAndJob(candidateID, jobID string) (*domain.WorkflowInstance, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflow_instances
		WHERE candidate_id = ` + placeholder(1) + ` AND job_id = ` + placeholder(2) + `
		  AND status IN ('active', 'on_hold')
		LIMIT 1
	`
	wf, err := scanWorkflow(r.db.QueryRow(query, candidateID, jobID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return wf, err
}

func (r *WorkflowRepository) Search(req models.SearchWorkflowsRequest) (*[]domain.WorkflowInstance, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflow_instances
		WHERE 1=1
	`
	var vals []interface{}
	idx := 1
	if req.Status != "" {
		query += ` AND status = ` + placeholder(idx)
		vals = append(vals, req.Status)
		idx++
	}
	if req.CandidateID != "" {
		query += ` AND candidate_id = ` + placeholder(idx)
		vals = append(vals, req.CandidateID)
		idx++
	}
	if req.JobID != "" {
		query += ` AND job_id = ` + placeholder(idx)
		vals = append(vals, req.JobID)
		idx++
	}
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += ` ORDER BY modified DESC LIMIT ` + placeholder(idx)
	vals = append(vals, limit)
	idx++
	if req.Offset > 0 {
		query += ` OFFSET ` + placeholder(idx)
		vals = append(vals, req.Offset)
	}

	rows, err := r.db.Query(query, vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []domain.WorkflowInstance
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *wf)
	}
	return &workflows, rows.Err()
}

// ApplyTransition applies a validated transition atomically: the instance row
// update is guarded by the modified timestamp, then the open state record is
// closed, the next one opened and the history entry appended. Returns false
// without error when the guard misses.
func (r *WorkflowRepository) ApplyTransition(t *domain.TransitionApply) (bool, error) {
	now := r.clock.Now()
	tx, err := r.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	update := `
		UPDATE workflow_instances
		SET current_state = ` + placeholder(1) + `,
		    previous_state = ` + placeholder(2) + `,
		    status = ` + placeholder(3) + `,
		    progress_pct = ` + placeholder(4) + `,
		    completed_at = ` + placeholder(5) + `,
		    modified = ` + placeholder(6) + `
		WHERE id = ` + placeholder(7) + ` AND modified = ` + placeholder(8) + `
	`
	res, err := tx.Exec(update,
		t.ToState, t.FromState, t.Status, t.Progress,
		formatDateInDatabaseNull(t.CompletedAt), formatDateInDatabase(now),
		t.WorkflowID, formatDateInDatabase(t.Modified),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected != 1 {
		slog.Warn("Transition lost the modified guard", "workflow_id", t.WorkflowID)
		return false, nil
	}

	if err := closeOpenStateRecord(tx, t.WorkflowID, now); err != nil {
		return false, err
	}
	if err := insertStateRecord(tx, &domain.StateRecord{
		WorkflowID: t.WorkflowID,
		StateName:  t.ToState,
		EnteredAt:  now,
		Trigger:    t.Trigger,
		Actor:      t.Actor,
		Metadata:   t.Metadata,
	}); err != nil {
		return false, err
	}
	if err := appendHistory(tx, t.WorkflowID, t.FromState, t.ToState, t.Trigger, t.Actor, t.Metadata, now); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// CancelInstance soft-cancels a non-terminal instance with the same guard
// semantics as ApplyTransition. State stays where it was; only the status
// moves and the history records the cancel.
func (r *WorkflowRepository) CancelInstance(id int64, modified time.Time, reason, actor string, now time.Time) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	update := `
		UPDATE workflow_instances
		SET status = 'cancelled',
		    completed_at = ` + placeholder(1) + `,
		    modified = ` + placeholder(2) + `
		WHERE id = ` + placeholder(3) + ` AND modified = ` + placeholder(4) + `
		  AND status IN ('active', 'on_hold')
	`
	res, err := tx.Exec(update,
		formatDateInDatabase(now), formatDateInDatabase(now),
		id, formatDateInDatabase(modified),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected != 1 {
		return false, nil
	}

	var current string
	if err := tx.QueryRow(`SELECT current_state FROM workflow_instances WHERE id = `+placeholder(1), id).Scan(&current); err != nil {
		return false, err
	}
	if err := closeOpenStateRecord(tx, id, now); err != nil {
		return false, err
	}
	meta := map[string]string{"reason": reason}
	if err := appendHistory(tx, id, current, current, "cancel", actor, meta, now); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func scanWorkflow(row rowScanner) (*domain.WorkflowInstance, error) {
	var wf domain.WorkflowInstance
	err := row.Scan(
		&wf.ID, &wf.BusinessKey, &wf.CandidateID, &wf.JobID,
		&wf.TemplateName, &wf.TemplateVersion,
		&wf.CurrentState, &wf.PreviousState, &wf.Status, &wf.Progress,
		&wf.StartedAt, &wf.CompletedAt, &wf.Created, &wf.Modified,
	)
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

func insertStateRecord(tx *sql.Tx, rec *domain.StateRecord) error {
	vals := []interface{}{
		rec.WorkflowID, rec.StateName, formatDateInDatabase(rec.EnteredAt),
		formatDateInDatabaseNull(rec.ExitedAt), rec.DurationMinutes,
		rec.Trigger, rec.Actor, util.ToJSON(rec.Metadata),
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	query := `INSERT INTO state_records (
		workflow_id, state_name, entered_at, exited_at, duration_minutes,
		trigger_name, actor, metadata
	) VALUES (` + strings.Join(pps, ", ") + `)`
	_, err := tx.Exec(query, vals...)
	return err
}

// closeOpenStateRecord stamps the exit time and duration on the record with
// no exited_at yet. Every instance has at most one such row.
func closeOpenStateRecord(tx *sql.Tx, workflowID int64, now time.Time) error {
	var id int64
	var entered time.Time
	query := `
		SELECT id, entered_at FROM state_records
		WHERE workflow_id = ` + placeholder(1) + ` AND exited_at IS NULL
		ORDER BY id DESC LIMIT 1
	`
	err := tx.QueryRow(query, workflowID).Scan(&id, &entered)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	minutes := int64(now.Sub(entered) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	update := `
		UPDATE state_records
		SET exited_at = ` + placeholder(1) + `, duration_minutes = ` + placeholder(2) + `
		WHERE id = ` + placeholder(3) + `
	`
	_, err = tx.Exec(update, formatDateInDatabase(now), minutes, id)
	return err
}

func appendHistory(tx *sql.Tx, workflowID int64, fromState, toState, trigger, actor string, metadata map[string]string, now time.Time) error {
	entry := &domain.HistoryEntry{
		WorkflowID: workflowID,
		FromState:  sql.NullString{String: fromState, Valid: fromState != ""},
		ToState:    toState,
		Trigger:    trigger,
		Actor:      actor,
		Metadata:   metadata,
		Created:    now,
	}
	return insertHistoryEntry(tx, entry)
}

func insertHistoryEntry(tx *sql.Tx, entry *domain.HistoryEntry) error {
	seq := entry.Seq
	if seq <= 0 {
		query := `SELECT COALESCE(MAX(seq), 0) + 1 FROM workflow_history WHERE workflow_id = ` + placeholder(1)
		if err := tx.QueryRow(query, entry.WorkflowID).Scan(&seq); err != nil {
			return err
		}
	}
	vals := []interface{}{
		entry.WorkflowID, seq, entry.FromState, entry.ToState,
		entry.Trigger, entry.Actor, util.ToJSON(entry.Metadata),
		formatDateInDatabase(entry.Created),
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	query := `INSERT INTO workflow_history (
		workflow_id, seq, from_state, to_state, trigger_name, actor, metadata, created
	) VALUES (` + strings.Join(pps, ", ") + `)`
	_, err := tx.Exec(query, vals...)
	return err
}
