package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
)

// PreferenceRepository persists per-recipient delivery preferences. Records
// are created lazily with safe defaults on first lookup.
type PreferenceRepository struct {
	db    *sql.DB
	clock core.Clock
}

const preferenceColumns = ` id, recipient_id, email_enabled, sms_enabled, push_enabled,
		       chat_enabled, webhook_enabled, workflow_updates, interview_reminders,
		       system_alerts, quiet_hours_start, quiet_hours_end, timezone, created, updated `

func NewPreferenceRepository(db *sql.DB, clock core.Clock) *PreferenceRepository {
	return &PreferenceRepository{db: db, clock: clock}
}

// FindOrCreate returns the recipient's preferences, inserting the default
// record if none exists. A concurrent insert racing ours is resolved by
// re-reading after the insert fails on the unique recipient constraint.
func (r *PreferenceRepository) FindOrCreate(recipientID string, now time.Time) (*domain.DeliveryPreference, error) {
	p, err := r.findByRecipient(recipientID)
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	def := domain.DefaultDeliveryPreference(recipientID, now)
	if _, insErr := r.insert(def); insErr != nil {
		if p, err := r.findByRecipient(recipientID); err == nil {
			return p, nil
		}
		return nil, insErr
	}
	return def, nil
}

func (r *PreferenceRepository) Update(p *domain.DeliveryPreference) error {
	query := `
		UPDATE delivery_preferences
		SET email_enabled = ` + placeholder(1) + `,
		    sms_enabled = ` + placeholder(2) + `,
		    push_enabled = ` + placeholder(3) + `,
		    chat_enabled = ` + placeholder(4) + `,
		    webhook_enabled = ` + placeholder(5) + `,
		    workflow_updates = ` + placeholder(6) + `,
		    interview_reminders = ` + placeholder(7) + `,
		    system_alerts = ` + placeholder(8) + `,
		    quiet_hours_start = ` + placeholder(9) + `,
		    quiet_hours_end = ` + placeholder(10) + `,
		    timezone = ` + placeholder(11) + `,
		    updated = ` + placeholder(12) + `
		WHERE recipient_id = ` + placeholder(13) + `
	`
	_, err := r.db.Exec(query,
		p.EmailEnabled, p.SMSEnabled, p.PushEnabled, p.ChatEnabled, p.WebhookEnabled,
		p.WorkflowUpdates, p.InterviewReminders, p.SystemAlerts,
		p.QuietHoursStart, p.QuietHoursEnd, p.Timezone,
		formatDateInDatabase(p.Updated), p.RecipientID,
	)
	return err
}

func (r *PreferenceRepository) findByRecipient(recipientID string) (*domain.DeliveryPreference, error) {
	query := `
		SELECT ` + preferenceColumns + `
		FROM delivery_preferences WHERE recipient_id = ` + placeholder(1) + `
	`
	var p domain.DeliveryPreference
	err := r.db.QueryRow(query, recipientID).Scan(
		&p.ID, &p.RecipientID, &p.EmailEnabled, &p.SMSEnabled, &p.PushEnabled,
		&p.ChatEnabled, &p.WebhookEnabled, &p.WorkflowUpdates, &p.InterviewReminders,
		&p.SystemAlerts, &p.QuietHoursStart, &p.QuietHoursEnd, &p.Timezone, &p.Created, &p.Updated,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PreferenceRepository) insert(p *domain.DeliveryPreference) (int64, error) {
	vals := []interface{}{
		p.RecipientID, p.EmailEnabled, p.SMSEnabled, p.PushEnabled,
		p.ChatEnabled, p.WebhookEnabled, p.WorkflowUpdates, p.InterviewReminders,
		p.SystemAlerts, p.QuietHoursStart, p.QuietHoursEnd, p.Timezone,
		formatDateInDatabase(p.Created), formatDateInDatabase(p.Updated),
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	query := `INSERT INTO delivery_preferences (
		recipient_id, email_enabled, sms_enabled, push_enabled,
		chat_enabled, webhook_enabled, workflow_updates, interview_reminders,
		system_alerts, quiet_hours_start, quiet_hours_end, timezone, created, updated
	) VALUES (` + strings.Join(pps, ", ") + `)`
	id, err := insertReturningID(r.db, query, vals...)
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}
