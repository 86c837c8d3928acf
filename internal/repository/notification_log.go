package repository

import (
	"database/sql"
	"strings"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
)

// NotificationLogRepository appends to the immutable per-notification audit
// trail. Insert and read are the only operations; there is no update path.
type NotificationLogRepository struct {
	db    *sql.DB
	clock core.Clock
}

func NewNotificationLogRepository(db *sql.DB, clock core.Clock) *NotificationLogRepository {
	return &NotificationLogRepository{db: db, clock: clock}
}

func (r *NotificationLogRepository) Append(e *domain.NotificationLogEntry) error {
	vals := []interface{}{
		e.NotificationID, e.Level, e.Message, formatDateInDatabase(e.Created),
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	query := `INSERT INTO notification_logs (
		notification_id, level, message, created
	) VALUES (` + strings.Join(pps, ", ") + `)`
	_, err := r.db.Exec(query, vals...)
	return err
}

func (r *NotificationLogRepository) FindByNotificationID(notificationID int64) (*[]domain.NotificationLogEntry, error) {
	query := `
		SELECT id, notification_id, level, message, created
		FROM notification_logs
		WHERE notification_id = ` + placeholder(1) + `
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, notificationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.NotificationLogEntry
	for rows.Next() {
		var e domain.NotificationLogEntry
		if err := rows.Scan(&e.ID, &e.NotificationID, &e.Level, &e.Message, &e.Created); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return &entries, rows.Err()
}
