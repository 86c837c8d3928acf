package repository

import (
	"database/sql"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/util"
)

// HistoryRepository reads the append-only workflow history. There is no
// update or delete path by construction.
type HistoryRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewHistoryRepository(db *sql.DB, clock core.Clock) *HistoryRepository {
	return &HistoryRepository{db: db, clock: clock}
}

func (r *HistoryRepository) FindByWorkflowID(workflowID int64) (*[]domain.HistoryEntry, error) {
	query := `
		SELECT id, workflow_id, seq, from_state, to_state, trigger_name, actor, metadata, created
		FROM workflow_history
		WHERE workflow_id = ` + placeholder(1) + `
		ORDER BY seq ASC
	`
	rows, err := r.db.Query(query, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var metadata string
		err := rows.Scan(&e.ID, &e.WorkflowID, &e.Seq, &e.FromState, &e.ToState,
			&e.Trigger, &e.Actor, &metadata, &e.Created)
		if err != nil {
			return nil, err
		}
		if err := util.FromJSON(metadata, &e.Metadata); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return &entries, rows.Err()
}
