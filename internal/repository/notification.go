package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/util"
)

// NotificationRepository persists notifications. Status moves are CAS
// updates on the current status so concurrent sweepers and the cancel path
// never clobber each other; a miss reports zero rows, never an error.
type NotificationRepository struct {
	db    *sql.DB
	clock core.Clock
}

const notificationColumns = ` id, business_key, template_name, channel, category,
		       recipient_id, address, subject, body, context,
		       priority, status, scheduled_at, sent_at, failed_at, failure_reason,
		       retry_count, max_retries, external_id, created, modified `

func NewNotificationRepository(db *sql.DB, clock core.Clock) *NotificationRepository {
	return &NotificationRepository{db: db, clock: clock}
}

func (r *NotificationRepository) Save(n *domain.NotificationRequest) (int64, error) {
	vals := []interface{}{
		n.BusinessKey, n.TemplateName, n.Channel, n.Category,
		n.RecipientID, n.Address, n.Subject, n.Body, util.ToJSON(n.Context),
		n.Priority, n.Status, formatDateInDatabase(n.ScheduledAt),
		formatDateInDatabaseNull(n.SentAt), formatDateInDatabaseNull(n.FailedAt), n.FailureReason,
		n.RetryCount, n.MaxRetries, n.ExternalID,
		formatDateInDatabase(n.Created), formatDateInDatabase(n.Modified),
	}
	pps := make([]string, 0, len(vals))
	for i := range vals {
		pps = append(pps, placeholder(i+1))
	}
	query := `INSERT INTO notifications (
		business_key, template_name, channel, category,
		recipient_id, address, subject, body, context,
		priority, status, scheduled_at, sent_at, failed_at, failure_reason,
		retry_count, max_retries, external_id, created, modified
	) VALUES (` + strings.Join(pps, ", ") + `)`
	id, err := insertReturningID(r.db, query, vals...)
	if err != nil {
		return 0, err
	}
	n.ID = id
	return id, nil
}

func (r *NotificationRepository) FindByID(id int64) (*domain.NotificationRequest, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications WHERE id = ` + placeholder(1) + `
	`
	return scanNotification(r.db.QueryRow(query, id))
}

func (r *NotificationRepository) FindByBusinessKey(key string) (*domain.NotificationRequest, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications WHERE business_key = ` + placeholder(1) + `
	`
	return scanNotification(r.db.QueryRow(query, key))
}

// FindDue returns pending notifications whose scheduled time has passed,
// urgent first then oldest first.
func (r *NotificationRepository) FindDue(now time.Time, limit int) (*[]domain.NotificationRequest, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE status = 'pending'
		  AND ` + dateBeforeLiteral("scheduled_at", now) + `
		ORDER BY CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END,
		         scheduled_at ASC
		LIMIT ` + placeholder(1) + `
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []domain.NotificationRequest
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	return &notifications, rows.Err()
}

// MarkQueued claims a pending notification. Returns false when another
// sweeper already has it.
func (r *NotificationRepository) MarkQueued(id int64, now time.Time) (bool, error) {
	query := `
		UPDATE notifications
		SET status = 'queued', modified = ` + placeholder(1) + `
		WHERE id = ` + placeholder(2) + ` AND status = 'pending'
	`
	return r.execGuarded(query, formatDateInDatabase(now), id)
}

func (r *NotificationRepository) MarkSent(id int64, externalID string, now time.Time) error {
	query := `
		UPDATE notifications
		SET status = 'sent', sent_at = ` + placeholder(1) + `, external_id = ` + placeholder(2) + `,
		    modified = ` + placeholder(3) + `
		WHERE id = ` + placeholder(4) + `
	`
	_, err := r.db.Exec(query, formatDateInDatabase(now), externalID, formatDateInDatabase(now), id)
	return err
}

func (r *NotificationRepository) MarkFailedPermanent(id int64, reason string, retryCount int, now time.Time) error {
	query := `
		UPDATE notifications
		SET status = 'failed', failed_at = ` + placeholder(1) + `, failure_reason = ` + placeholder(2) + `,
		    retry_count = ` + placeholder(3) + `, modified = ` + placeholder(4) + `
		WHERE id = ` + placeholder(5) + `
	`
	_, err := r.db.Exec(query, formatDateInDatabase(now), reason, retryCount, formatDateInDatabase(now), id)
	return err
}

func (r *NotificationRepository) ScheduleRetry(id int64, retryCount int, nextAttempt time.Time, reason string, now time.Time) error {
	query := `
		UPDATE notifications
		SET status = 'pending', scheduled_at = ` + placeholder(1) + `, retry_count = ` + placeholder(2) + `,
		    failure_reason = ` + placeholder(3) + `, modified = ` + placeholder(4) + `
		WHERE id = ` + placeholder(5) + `
	`
	_, err := r.db.Exec(query, formatDateInDatabase(nextAttempt), retryCount, reason, formatDateInDatabase(now), id)
	return err
}

// Requeue puts a claimed notification back to pending untouched, used when a
// channel worker pool is saturated.
func (r *NotificationRepository) Requeue(id int64, now time.Time) error {
	query := `
		UPDATE notifications
		SET status = 'pending', modified = ` + placeholder(1) + `
		WHERE id = ` + placeholder(2) + ` AND status = 'queued'
	`
	_, err := r.db.Exec(query, formatDateInDatabase(now), id)
	return err
}

// Defer pushes a pending notification forward without consuming a retry.
func (r *NotificationRepository) Defer(id int64, until time.Time, now time.Time) error {
	query := `
		UPDATE notifications
		SET status = 'pending', scheduled_at = ` + placeholder(1) + `, modified = ` + placeholder(2) + `
		WHERE id = ` + placeholder(3) + `
	`
	_, err := r.db.Exec(query, formatDateInDatabase(until), formatDateInDatabase(now), id)
	return err
}

// Cancel moves a pending notification to cancelled. Returns false once
// delivery has started.
func (r *NotificationRepository) Cancel(id int64, now time.Time) (bool, error) {
	query := `
		UPDATE notifications
		SET status = 'cancelled', modified = ` + placeholder(1) + `
		WHERE id = ` + placeholder(2) + ` AND status = 'pending'
	`
	return r.execGuarded(query, formatDateInDatabase(now), id)
}

func (r *NotificationRepository) Search(status, channel, recipientID string, limit, offset int) (*[]domain.NotificationRequest, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE 1=1
	`
	var vals []interface{}
	idx := 1
	if status != "" {
		query += ` AND status = ` + placeholder(idx)
		vals = append(vals, status)
		idx++
	}
	if channel != "" {
		query += ` AND channel = ` + placeholder(idx)
		vals = append(vals, channel)
		idx++
	}
	if recipientID != "" {
		query += ` AND recipient_id = ` + placeholder(idx)
		vals = append(vals, recipientID)
		idx++
	}
	query += ` ORDER BY created DESC LIMIT ` + placeholder(idx)
	vals = append(vals, limit)
	idx++
	if offset > 0 {
		query += ` OFFSET ` + placeholder(idx)
		vals = append(vals, offset)
	}

	rows, err := r.db.Query(query, vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []domain.NotificationRequest
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	return &notifications, rows.Err()
}

func (r *NotificationRepository) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM notifications GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *NotificationRepository) execGuarded(query string, vals ...interface{}) (bool, error) {
	res, err := r.db.Exec(query, vals...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func scanNotification(row rowScanner) (*domain.NotificationRequest, error) {
	var n domain.NotificationRequest
	var context string
	err := row.Scan(
		&n.ID, &n.BusinessKey, &n.TemplateName, &n.Channel, &n.Category,
		&n.RecipientID, &n.Address, &n.Subject, &n.Body, &context,
		&n.Priority, &n.Status, &n.ScheduledAt, &n.SentAt, &n.FailedAt, &n.FailureReason,
		&n.RetryCount, &n.MaxRetries, &n.ExternalID, &n.Created, &n.Modified,
	)
	if err != nil {
		return nil, err
	}
	if err := util.FromJSON(context, &n.Context); err != nil {
		return nil, err
	}
	return &n, nil
}
