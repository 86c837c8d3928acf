package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hireflow/hireflow/internal/core"
	"github.com/hireflow/hireflow/internal/domain"
)

// NotificationRepo is the persistence surface the delivery queue drives. All
// status moves are CAS updates so two sweepers never deliver the same row.
type NotificationRepo interface {
	Save(n *domain.NotificationRequest) (int64, error)
	FindByID(id int64) (*domain.NotificationRequest, error)
	FindByBusinessKey(key string) (*domain.NotificationRequest, error)
	// FindDue returns pending notifications whose scheduled time has passed,
	// oldest first, up to limit.
	FindDue(now time.Time, limit int) (*[]domain.NotificationRequest, error)
	// MarkQueued claims a pending notification. Returns false when another
	// sweeper got there first.
	MarkQueued(id int64, now time.Time) (bool, error)
	MarkSent(id int64, externalID string, now time.Time) error
	// MarkFailedPermanent ends the retry cycle. retryCount is written as-is;
	// suppression passes the current count untouched.
	MarkFailedPermanent(id int64, reason string, retryCount int, now time.Time) error
	// ScheduleRetry moves a queued notification back to pending with a new
	// scheduled time and an incremented retry count.
	ScheduleRetry(id int64, retryCount int, nextAttempt time.Time, reason string, now time.Time) error
	// Requeue puts a claimed notification back to pending unchanged, used
	// when a channel's worker pool is saturated.
	Requeue(id int64, now time.Time) error
	// Defer pushes a pending notification's scheduled time forward without
	// consuming a retry, used for quiet hours.
	Defer(id int64, until time.Time, now time.Time) error
	// Cancel moves a pending notification to cancelled. Returns false when
	// it already left pending.
	Cancel(id int64, now time.Time) (bool, error)
	Search(status, channel, recipientID string, limit, offset int) (*[]domain.NotificationRequest, error)
	CountByStatus() (map[string]int, error)
}

// PreferenceRepo stores per-recipient delivery preferences.
type PreferenceRepo interface {
	// FindOrCreate returns the recipient's preferences, creating the default
	// record on first lookup.
	FindOrCreate(recipientID string, now time.Time) (*domain.DeliveryPreference, error)
	Update(p *domain.DeliveryPreference) error
}

// LogRepo appends to the immutable per-notification audit trail.
type LogRepo interface {
	Append(e *domain.NotificationLogEntry) error
	FindByNotificationID(notificationID int64) (*[]domain.NotificationLogEntry, error)
}

// QueueSettings bounds the queue's sweep and retry behaviour.
type QueueSettings struct {
	SweepInterval     time.Duration
	BatchSize         int
	WorkersPerChannel int
	RetryBase         time.Duration
	RetryCap          time.Duration
	DefaultMaxRetries int
}

// DeliveryQueue owns every notification from claim to terminal status. It
// sweeps for due rows on a ticker, claims them with a CAS, and hands them to
// per-channel worker pools so one slow provider cannot starve the others.
type DeliveryQueue struct {
	repo        NotificationRepo
	preferences PreferenceRepo
	logs        LogRepo
	dispatcher  *Dispatcher
	clock       core.Clock
	settings    QueueSettings

	wakeup   chan struct{}
	channels map[string]chan domain.NotificationRequest
}

func NewDeliveryQueue(repo NotificationRepo, preferences PreferenceRepo, logs LogRepo,
	dispatcher *Dispatcher, clock core.Clock, settings QueueSettings) *DeliveryQueue {
	if settings.BatchSize <= 0 {
		settings.BatchSize = 50
	}
	if settings.WorkersPerChannel <= 0 {
		settings.WorkersPerChannel = 3
	}
	if settings.SweepInterval <= 0 {
		settings.SweepInterval = 3 * time.Second
	}
	if settings.RetryBase <= 0 {
		settings.RetryBase = 30 * time.Second
	}
	if settings.RetryCap <= 0 {
		settings.RetryCap = 300 * time.Second
	}
	if settings.DefaultMaxRetries <= 0 {
		settings.DefaultMaxRetries = 3
	}
	return &DeliveryQueue{
		repo:        repo,
		preferences: preferences,
		logs:        logs,
		dispatcher:  dispatcher,
		clock:       clock,
		settings:    settings,
		wakeup:      make(chan struct{}, 1),
		channels:    make(map[string]chan domain.NotificationRequest),
	}
}

// Wakeup pokes the sweep loop so a freshly created notification does not wait
// for the next tick. Duplicate pokes while one is pending are dropped.
func (q *DeliveryQueue) Wakeup() {
	select {
	case q.wakeup <- struct{}{}:
	default:
	}
}

// Start runs the sweep loop until ctx is cancelled. It spawns the per-channel
// worker pools first so claimed work always has somewhere to go.
func (q *DeliveryQueue) Start(ctx context.Context) {
	allChannels := []string{
		domain.ChannelEmail, domain.ChannelSMS, domain.ChannelPush,
		domain.ChannelChat, domain.ChannelWebhook,
	}
	for _, ch := range allChannels {
		work := make(chan domain.NotificationRequest, q.settings.BatchSize)
		q.channels[ch] = work
		for i := 0; i < q.settings.WorkersPerChannel; i++ {
			go q.worker(ctx, ch, i, work)
		}
	}
	slog.Info("Starting delivery queue", "sweep_interval", q.settings.SweepInterval.String(),
		"batch_size", q.settings.BatchSize, "workers_per_channel", q.settings.WorkersPerChannel)

	ticker := time.NewTicker(q.settings.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Delivery queue stopping due to context cancel")
			return
		case <-ticker.C:
			q.sweep(ctx)
		case <-q.wakeup:
			q.sweep(ctx)
		}
	}
}

// sweep claims due notifications and routes them to their channel pools. A
// full pool means the row goes back to pending for a later sweep rather than
// blocking the loop.
func (q *DeliveryQueue) sweep(ctx context.Context) {
	now := q.clock.Now()
	due, err := q.repo.FindDue(now, q.settings.BatchSize)
	if err != nil {
		slog.Error("Delivery sweep failed", "error", err)
		return
	}
	for _, n := range *due {
		claimed, err := q.repo.MarkQueued(n.ID, now)
		if err != nil {
			slog.Error("Failed to claim notification", "notification_id", n.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		n.Status = domain.NotificationQueued
		work, ok := q.channels[n.Channel]
		if !ok {
			q.failPermanent(&n, fmt.Sprintf("unknown channel %q", n.Channel), n.RetryCount)
			continue
		}
		select {
		case work <- n:
		default:
			if err := q.repo.Requeue(n.ID, q.clock.Now()); err != nil {
				slog.Error("Failed to requeue notification", "notification_id", n.ID, "error", err)
			}
		}
	}
}

func (q *DeliveryQueue) worker(ctx context.Context, channel string, id int, work <-chan domain.NotificationRequest) {
	slog.Debug("Starting delivery worker", "channel", channel, "worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-work:
			q.deliver(ctx, &n)
		}
	}
}

// deliver runs one claimed notification to an outcome: sent, retry scheduled,
// or permanently failed. Preference suppression is a permanent failure that
// consumes no retries.
func (q *DeliveryQueue) deliver(ctx context.Context, n *domain.NotificationRequest) {
	if n.RecipientID != "" {
		pref, err := q.preferences.FindOrCreate(n.RecipientID, q.clock.Now())
		if err != nil {
			slog.Error("Failed to load delivery preferences", "notification_id", n.ID, "error", err)
			q.retryOrFail(n, fmt.Sprintf("preference lookup failed: %v", err))
			return
		}
		if !pref.ChannelEnabled(n.Channel) {
			q.suppress(n, fmt.Sprintf("recipient disabled channel %s", n.Channel))
			return
		}
		if !pref.CategoryEnabled(n.Category) {
			q.suppress(n, fmt.Sprintf("recipient disabled category %s", n.Category))
			return
		}
		// Urgent traffic cuts through quiet hours, everything else waits.
		if n.Priority != domain.PriorityUrgent {
			if quiet, until := pref.InQuietHours(q.clock.Now()); quiet {
				if err := q.repo.Defer(n.ID, until, q.clock.Now()); err != nil {
					slog.Error("Failed to defer notification", "notification_id", n.ID, "error", err)
					return
				}
				q.log(n.ID, "info", fmt.Sprintf("deferred to %s for quiet hours", until.Format(time.RFC3339)))
				return
			}
		}
	}

	result := q.dispatcher.Dispatch(ctx, n)
	now := q.clock.Now()
	if result.Success {
		if err := q.repo.MarkSent(n.ID, result.ExternalID, now); err != nil {
			slog.Error("Failed to mark notification sent", "notification_id", n.ID, "error", err)
			return
		}
		slog.Info("Delivered notification", "notification_id", n.ID, "channel", n.Channel,
			"provider", result.Provider, "external_id", result.ExternalID)
		q.log(n.ID, "info", fmt.Sprintf("sent via %s, external id %s", result.Provider, result.ExternalID))
		return
	}
	q.retryOrFail(n, result.Err.Error())
}

// retryOrFail schedules the next attempt or ends the cycle. A notification
// with max retries three is attempted exactly three times in total.
func (q *DeliveryQueue) retryOrFail(n *domain.NotificationRequest, reason string) {
	attempts := n.RetryCount + 1
	maxRetries := n.MaxRetries
	if maxRetries <= 0 {
		maxRetries = q.settings.DefaultMaxRetries
	}
	if attempts >= maxRetries {
		q.failPermanent(n, reason, attempts)
		return
	}
	delay := q.backoff(attempts)
	now := q.clock.Now()
	next := now.Add(delay)
	if err := q.repo.ScheduleRetry(n.ID, attempts, next, reason, now); err != nil {
		slog.Error("Failed to schedule retry", "notification_id", n.ID, "error", err)
		return
	}
	slog.Warn("Delivery attempt failed, retry scheduled", "notification_id", n.ID,
		"channel", n.Channel, "attempt", attempts, "next_attempt", next, "reason", reason)
	q.log(n.ID, "warn", fmt.Sprintf("attempt %d failed: %s; retrying in %s", attempts, reason, delay))
}

// reasonPreferenceSuppressed is the stable failure_reason written when a
// recipient's preferences block delivery. Audit consumers match on it to
// tell suppression apart from exhausted retries.
const reasonPreferenceSuppressed = "preference-suppressed"

// suppress permanently fails a notification the recipient opted out of. The
// retry count is left untouched and the human-readable detail goes to the
// audit log, not the stored reason.
func (q *DeliveryQueue) suppress(n *domain.NotificationRequest, detail string) {
	now := q.clock.Now()
	if err := q.repo.MarkFailedPermanent(n.ID, reasonPreferenceSuppressed, n.RetryCount, now); err != nil {
		slog.Error("Failed to mark notification suppressed", "notification_id", n.ID, "error", err)
		return
	}
	slog.Info("Notification suppressed by delivery preferences", "notification_id", n.ID,
		"channel", n.Channel, "detail", detail)
	q.log(n.ID, "info", "suppressed: "+detail)
}

func (q *DeliveryQueue) failPermanent(n *domain.NotificationRequest, reason string, retryCount int) {
	now := q.clock.Now()
	if err := q.repo.MarkFailedPermanent(n.ID, reason, retryCount, now); err != nil {
		slog.Error("Failed to mark notification failed", "notification_id", n.ID, "error", err)
		return
	}
	slog.Warn("Notification permanently failed", "notification_id", n.ID,
		"channel", n.Channel, "reason", reason)
	q.log(n.ID, "error", "permanently failed: "+reason)
}

// backoff is min(cap, base * 2^retryCount) with the already-incremented
// count: 2*base after the first failure, then 4*base, 8*base, capped. No
// jitter, so the next attempt time is exactly predictable from the count.
func (q *DeliveryQueue) backoff(retryCount int) time.Duration {
	d := q.settings.RetryBase
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= q.settings.RetryCap {
			return q.settings.RetryCap
		}
	}
	if d > q.settings.RetryCap {
		return q.settings.RetryCap
	}
	return d
}

// CancelPending cancels a notification that has not been claimed yet. Once
// delivery started the outcome stands.
func (q *DeliveryQueue) CancelPending(id int64) (bool, error) {
	now := q.clock.Now()
	ok, err := q.repo.Cancel(id, now)
	if err != nil {
		return false, err
	}
	if ok {
		q.log(id, "info", "cancelled before delivery")
	}
	return ok, nil
}

func (q *DeliveryQueue) log(notificationID int64, level, message string) {
	err := q.logs.Append(&domain.NotificationLogEntry{
		NotificationID: notificationID,
		Level:          level,
		Message:        message,
		Created:        q.clock.Now(),
	})
	if err != nil {
		slog.Error("Failed to append notification log", "notification_id", notificationID, "error", err)
	}
}
