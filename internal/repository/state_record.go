package repository

import (
	"database/sql"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/util"
)

// StateRecordRepository reads the replayable timeline of an instance. Writes
// happen inside WorkflowRepository transactions only.
type StateRecordRepository struct {
	db    *sql.DB
	clock core.Clock
}

const stateRecordColumns = ` id, workflow_id, state_name, entered_at, exited_at,
		       duration_minutes, trigger_name, actor, metadata `

func NewStateRecordRepository(db *sql.DB, clock core.Clock) *StateRecordRepository {
	return &StateRecordRepository{db: db, clock: clock}
}

func (r *StateRecordRepository) FindByWorkflowID(workflowID int64) (*[]domain.StateRecord, error) {
	query := `
		SELECT ` + stateRecordColumns + `
		FROM state_records
		WHERE workflow_id = ` + placeholder(1) + `
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.StateRecord
	for rows.Next() {
		rec, err := scanStateRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return &records, rows.Err()
}

// FindOpenByWorkflowID returns the record of the current state, nil when the
// instance has none (should not happen for a live instance).
func (r *StateRecordRepository) FindOpenByWorkflowID(workflowID int64) (*domain.StateRecord, error) {
	query := `
		SELECT ` + stateRecordColumns + `
		FROM state_records
		WHERE workflow_id = ` + placeholder(1) + ` AND exited_at IS NULL
		ORDER BY id DESC LIMIT 1
	`
	rec, err := scanStateRecord(r.db.QueryRow(query, workflowID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func scanStateRecord(row rowScanner) (*domain.StateRecord, error) {
	var rec domain.StateRecord
	var metadata string
	err := row.Scan(
		&rec.ID, &rec.WorkflowID, &rec.StateName, &rec.EnteredAt, &rec.ExitedAt,
		&rec.DurationMinutes, &rec.Trigger, &rec.Actor, &metadata,
	)
	if err != nil {
		return nil, err
	}
	if err := util.FromJSON(metadata, &rec.Metadata); err != nil {
		return nil, err
	}
	return &rec, nil
}
