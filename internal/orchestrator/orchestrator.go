package orchestrator

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/engine"
	"github.com/hireflow/hireflow/internal/models"
	"github.com/hireflow/hireflow/internal/notify"
)

// TemplateStore is notification template persistence.
type TemplateStore interface {
	FindByName(name string) (*domain.NotificationTemplate, error)
	Save(t *domain.NotificationTemplate) (int64, error)
}

// Orchestrator is the single entry point tying the workflow engine, the
// interview scheduler and the delivery pipeline together. Controllers talk to
// it; the pieces underneath never call each other directly.
type Orchestrator struct {
	Instances  *engine.InstanceManager
	Interviews *engine.InterviewManager
	Queue      *notify.DeliveryQueue

	notifications notify.NotificationRepo
	preferences   notify.PreferenceRepo
	logs          notify.LogRepo
	templates     TemplateStore
	clock         core.Clock

	defaultMaxRetries int
}

func New(instances *engine.InstanceManager, interviews *engine.InterviewManager, queue *notify.DeliveryQueue,
	notifications notify.NotificationRepo, preferences notify.PreferenceRepo, logs notify.LogRepo,
	templates TemplateStore, clock core.Clock, defaultMaxRetries int) *Orchestrator {
	if defaultMaxRetries <= 0 {
		defaultMaxRetries = 3
	}
	return &Orchestrator{
		Instances:         instances,
		Interviews:        interviews,
		Queue:             queue,
		notifications:     notifications,
		preferences:       preferences,
		logs:              logs,
		templates:         templates,
		clock:             clock,
		defaultMaxRetries: defaultMaxRetries,
	}
}

// SendNotification validates, renders and persists one notification in
// pending status, then pokes the queue. A render failure rejects the request;
// nothing is stored.
func (o *Orchestrator) SendNotification(req models.SendNotificationRequest) (*domain.NotificationRequest, error) {
	subject, body := req.Subject, req.Body
	templateName := sql.NullString{}
	if req.TemplateName != "" {
		t, err := o.templates.FindByName(req.TemplateName)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, fmt.Errorf("%w: notification template %q", engine.ErrNotFound, req.TemplateName)
			}
			return nil, err
		}
		subject, body, err = notify.Render(t, req.Context)
		if err != nil {
			return nil, err
		}
		templateName = sql.NullString{String: t.Name, Valid: true}
	}
	if body == "" {
		return nil, fmt.Errorf("notification needs a template or a body")
	}
	if req.Channel == "" || req.Address == "" {
		return nil, fmt.Errorf("notification needs a channel and an address")
	}

	now := o.clock.Now()
	scheduledAt := now
	if req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		scheduledAt = *req.ScheduledAt
	}
	maxRetries := o.defaultMaxRetries
	if req.MaxRetries != nil && *req.MaxRetries > 0 {
		maxRetries = *req.MaxRetries
	}
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	category := req.Category
	if category == "" {
		category = domain.CategorySystem
	}

	n := &domain.NotificationRequest{
		BusinessKey:  uuid.NewString(),
		TemplateName: templateName,
		Channel:      req.Channel,
		Category:     category,
		RecipientID:  req.RecipientID,
		Address:      req.Address,
		Subject:      subject,
		Body:         body,
		Context:      req.Context,
		Priority:     priority,
		Status:       domain.NotificationPending,
		ScheduledAt:  scheduledAt,
		MaxRetries:   maxRetries,
		Created:      now,
		Modified:     now,
	}
	id, err := o.notifications.Save(n)
	if err != nil {
		return nil, err
	}
	n.ID = id
	slog.Info("Queued notification", "notification_id", id, "channel", n.Channel,
		"recipient_id", n.RecipientID, "scheduled_at", scheduledAt)
	o.Queue.Wakeup()
	return n, nil
}

// SendBulk fans one template out to many recipients. Each recipient is
// processed independently: one bad address or render failure is recorded and
// the rest still go out.
func (o *Orchestrator) SendBulk(req models.BulkNotificationRequest) (*models.BulkNotificationResponse, error) {
	t, err := o.templates.FindByName(req.TemplateName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: notification template %q", engine.ErrNotFound, req.TemplateName)
		}
		return nil, err
	}

	resp := &models.BulkNotificationResponse{TotalRequested: len(req.Recipients)}
	var errs *multierror.Error
	for i, r := range req.Recipients {
		ctx := make(map[string]string, len(req.SharedContext)+len(r.Context))
		for k, v := range req.SharedContext {
			ctx[k] = v
		}
		for k, v := range r.Context {
			ctx[k] = v
		}
		n, err := o.SendNotification(models.SendNotificationRequest{
			Channel:      t.Channel,
			Category:     t.Category,
			RecipientID:  r.RecipientID,
			Address:      r.Address,
			TemplateName: t.Name,
			Context:      ctx,
			Priority:     req.Priority,
			ScheduledAt:  req.ScheduledAt,
		})
		if err != nil {
			resp.Failed++
			resp.Errors = append(resp.Errors, fmt.Sprintf("recipient %d (%s): %v", i, r.Address, err))
			errs = multierror.Append(errs, fmt.Errorf("recipient %s: %w", r.Address, err))
			continue
		}
		resp.Queued++
		resp.NotificationIDs = append(resp.NotificationIDs, n.ID)
	}
	if errs != nil {
		slog.Warn("Bulk send finished with failures", "template", req.TemplateName,
			"queued", resp.Queued, "failed", resp.Failed, "errors", errs.Error())
	}
	return resp, nil
}

// GetNotification returns one notification by id.
func (o *Orchestrator) GetNotification(id int64) (*domain.NotificationRequest, error) {
	n, err := o.notifications.FindByID(id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: notification %d", engine.ErrNotFound, id)
		}
		return nil, err
	}
	return n, nil
}

// ListNotifications filters notifications by status, channel and recipient.
func (o *Orchestrator) ListNotifications(status, channel, recipientID string, limit, offset int) (*[]domain.NotificationRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return o.notifications.Search(status, channel, recipientID, limit, offset)
}

// NotificationLogs returns the append-only audit trail of a notification.
func (o *Orchestrator) NotificationLogs(id int64) (*[]domain.NotificationLogEntry, error) {
	if _, err := o.GetNotification(id); err != nil {
		return nil, err
	}
	return o.logs.FindByNotificationID(id)
}

// CancelNotification cancels a notification that is still pending.
func (o *Orchestrator) CancelNotification(id int64) (*models.CancelResult, error) {
	n, err := o.GetNotification(id)
	if err != nil {
		return nil, err
	}
	ok, err := o.Queue.CancelPending(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &models.CancelResult{Cancelled: false, Status: n.Status}, nil
	}
	return &models.CancelResult{Cancelled: true, Status: domain.NotificationCancelled}, nil
}

// NotificationStats summarises delivery outcomes.
func (o *Orchestrator) NotificationStats() (*models.NotificationStatsResponse, error) {
	counts, err := o.notifications.CountByStatus()
	if err != nil {
		return nil, err
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	resolved := counts[domain.NotificationSent] + counts[domain.NotificationFailed]
	rate := 0.0
	if resolved > 0 {
		rate = float64(counts[domain.NotificationSent]) / float64(resolved)
	}
	return &models.NotificationStatsResponse{
		Total:        total,
		ByStatus:     counts,
		DeliveryRate: rate,
		To:           o.clock.Now(),
	}, nil
}

// GetPreferences returns a recipient's delivery preferences, creating the
// default record on first lookup.
func (o *Orchestrator) GetPreferences(recipientID string) (*domain.DeliveryPreference, error) {
	return o.preferences.FindOrCreate(recipientID, o.clock.Now())
}

// UpdatePreferences applies the non-nil fields of the request.
func (o *Orchestrator) UpdatePreferences(recipientID string, req models.UpdatePreferencesRequest) (*domain.DeliveryPreference, error) {
	p, err := o.preferences.FindOrCreate(recipientID, o.clock.Now())
	if err != nil {
		return nil, err
	}
	applyBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	applyBool(&p.EmailEnabled, req.EmailEnabled)
	applyBool(&p.SMSEnabled, req.SMSEnabled)
	applyBool(&p.PushEnabled, req.PushEnabled)
	applyBool(&p.ChatEnabled, req.ChatEnabled)
	applyBool(&p.WebhookEnabled, req.WebhookEnabled)
	applyBool(&p.WorkflowUpdates, req.WorkflowUpdates)
	applyBool(&p.InterviewReminders, req.InterviewReminders)
	applyBool(&p.SystemAlerts, req.SystemAlerts)
	if req.QuietHoursStart != nil {
		p.QuietHoursStart = *req.QuietHoursStart
	}
	if req.QuietHoursEnd != nil {
		p.QuietHoursEnd = *req.QuietHoursEnd
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, fmt.Errorf("unknown timezone %q", *req.Timezone)
		}
		p.Timezone = *req.Timezone
	}
	p.Updated = o.clock.Now()
	if err := o.preferences.Update(p); err != nil {
		return nil, err
	}
	return p, nil
}
