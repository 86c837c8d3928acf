package repository

import (
	"database/sql"
	"strings"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/util"
)

// PipelineTemplateRepository persists pipeline templates. The structured
// parts (states, rules, progress, timeouts) are stored as JSON text columns;
// the engine compiles them into a graph on load.
type PipelineTemplateRepository struct {
	db    *sql.DB
	clock core.Clock
}

const templateColumns = ` id, name, version, description, states, rules,
		       progress_map, state_timeouts, allow_reentry, active, created, updated `

func NewPipelineTemplateRepository(db *sql.DB, clock core.Clock) *PipelineTemplateRepository {
	return &PipelineTemplateRepository{db: db, clock: clock}
}

func (r *PipelineTemplateRepository) FindLatestByName(name string) (*domain.PipelineTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM pipeline_templates
		WHERE name = ` + placeholder(1) + ` AND active = ` + boolLiteral(true) + `
		ORDER BY version DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRow(query, name))
}

func (r *PipelineTemplateRepository) FindByNameAndVersion(name string, version int) (*domain.PipelineTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM pipeline_templates
		WHERE name = ` + placeholder(1) + ` AND version = ` + placeholder(2) + `
	`
	return r.scanOne(r.db.QueryRow(query, name, version))
}

func (r *PipelineTemplateRepository) FindAll() (*[]domain.PipelineTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM pipeline_templates
		ORDER BY name ASC, version DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []domain.PipelineTemplate
	for rows.Next() {
		t, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return &templates, rows.Err()
}

// Save inserts a template row. Versioning is the caller's concern: saving an
// edited template means saving it under the next version number.
func (r *PipelineTemplateRepository) Save(t *domain.PipelineTemplate) (int64, error) {
	now := r.clock.Now()
	if t.Created.IsZero() {
		t.Created = now
	}
	t.Updated = now
	vals := []interface{}{
		t.Name, t.Version, t.Description,
		util.ToJSON(t.States), util.ToJSON(t.Rules),
		util.ToJSON(t.Progress), util.ToJSON(t.StateTimeouts),
		t.AllowReentry, t.Active,
		formatDateInDatabase(t.Created), formatDateInDatabase(t.Updated),
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	query := `INSERT INTO pipeline_templates (
		name, version, description, states, rules,
		progress_map, state_timeouts, allow_reentry, active, created, updated
	) VALUES (` + strings.Join(pps, ", ") + `)`
	id, err := insertReturningID(r.db, query, vals...)
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PipelineTemplateRepository) scanOne(row *sql.Row) (*domain.PipelineTemplate, error) {
	return r.scanRow(row)
}

func (r *PipelineTemplateRepository) scanRow(row rowScanner) (*domain.PipelineTemplate, error) {
	var t domain.PipelineTemplate
	var states, rules, progress, timeouts string
	err := row.Scan(
		&t.ID, &t.Name, &t.Version, &t.Description,
		&states, &rules, &progress, &timeouts,
		&t.AllowReentry, &t.Active, &t.Created, &t.Updated,
	)
	if err != nil {
		return nil, err
	}
	if err := util.FromJSON(states, &t.States); err != nil {
		return nil, err
	}
	if err := util.FromJSON(rules, &t.Rules); err != nil {
		return nil, err
	}
	if err := util.FromJSON(progress, &t.Progress); err != nil {
		return nil, err
	}
	if err := util.FromJSON(timeouts, &t.StateTimeouts); err != nil {
		return nil, err
	}
	return &t, nil
}
