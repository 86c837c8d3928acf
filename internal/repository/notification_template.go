package repository

import (
	"database/sql"
	"strings"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
)

// NotificationTemplateRepository persists notification templates.
type NotificationTemplateRepository struct {
	db    *sql.DB
	clock core.Clock
}

const notificationTemplateColumns = ` id, name, channel, category, subject_template, body_template,
		       active, created, updated `

func NewNotificationTemplateRepository(db *sql.DB, clock core.Clock) *NotificationTemplateRepository {
	return &NotificationTemplateRepository{db: db, clock: clock}
}

func (r *NotificationTemplateRepository) FindByName(name string) (*domain.NotificationTemplate, error) {
	query := `
		SELECT ` + notificationTemplateColumns + `
		FROM notification_templates
		WHERE name = ` + placeholder(1) + ` AND active = ` + boolLiteral(true) + `
	`
	var t domain.NotificationTemplate
	err := r.db.QueryRow(query, name).Scan(
		&t.ID, &t.Name, &t.Channel, &t.Category, &t.SubjectTemplate, &t.BodyTemplate,
		&t.Active, &t.Created, &t.Updated,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *NotificationTemplateRepository) Save(t *domain.NotificationTemplate) (int64, error) {
	now := r.clock.Now()
	if t.Created.IsZero() {
		t.Created = now
	}
	t.Updated = now
	vals := []interface{}{
		t.Name, t.Channel, t.Category, t.SubjectTemplate, t.BodyTemplate,
		t.Active, formatDateInDatabase(t.Created), formatDateInDatabase(t.Updated),
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	query := `INSERT INTO notification_templates (
		name, channel, category, subject_template, body_template, active, created, updated
	) VALUES (` + strings.Join(pps, ", ") + `)`
	id, err := insertReturningID(r.db, query, vals...)
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}
