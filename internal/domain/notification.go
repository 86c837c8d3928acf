package domain

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	NotificationPending   = "pending"
	NotificationQueued    = "queued"
	NotificationSent      = "sent"
	NotificationFailed    = "failed"
	NotificationCancelled = "cancelled"
)

const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelPush    = "push"
	ChannelChat    = "chat"
	ChannelWebhook = "webhook"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const (
	CategoryWorkflow  = "workflow"
	CategoryInterview = "interview"
	CategorySystem    = "system"
)

// NotificationRequest is one message to one recipient on one channel. Created
// in pending status, mutated only by the delivery queue, retained forever for
// audit.
type NotificationRequest struct {
	ID            int64
	BusinessKey   string
	TemplateName  sql.NullString
	Channel       string
	Category      string
	RecipientID   string // empty for recipients with no preference record, eg raw webhook targets
	Address       string // channel dependent: email address, phone, device token, chat channel, url
	Subject       string
	Body          string
	Context       map[string]string
	Priority      string
	Status        string
	ScheduledAt   time.Time // initial send time, then the retry backoff deadline
	SentAt        sql.NullTime
	FailedAt      sql.NullTime
	FailureReason sql.NullString
	RetryCount    int
	MaxRetries    int
	ExternalID    sql.NullString
	Created       time.Time
	Modified      time.Time
}

// NotificationTemplate renders the subject/body of a notification from a
// context map. Variable substitution failures are typed errors and never
// produce a partially rendered message.
type NotificationTemplate struct {
	ID              int64
	Name            string
	Channel         string
	Category        string
	SubjectTemplate string
	BodyTemplate    string
	Active          bool
	Created         time.Time
	Updated         time.Time
}

// NotificationLogEntry is one immutable row of a notification's audit trail.
// Entries are append-only and never updated or removed.
type NotificationLogEntry struct {
	ID             int64
	NotificationID int64
	Level          string
	Message        string
	Created        time.Time
}

// DeliveryPreference holds a recipient's per-channel and per-category opt-in
// flags plus a quiet-hours window. Created lazily with safe defaults on first
// lookup.
type DeliveryPreference struct {
	ID                 int64
	RecipientID        string
	EmailEnabled       bool
	SMSEnabled         bool
	PushEnabled        bool
	ChatEnabled        bool
	WebhookEnabled     bool
	WorkflowUpdates    bool
	InterviewReminders bool
	SystemAlerts       bool
	QuietHoursStart    string // HH:MM, empty means no quiet hours
	QuietHoursEnd      string
	Timezone           string
	Created            time.Time
	Updated            time.Time
}

// DefaultDeliveryPreference returns the safe defaults applied on first lookup.
func DefaultDeliveryPreference(recipientID string, now time.Time) *DeliveryPreference {
	return &DeliveryPreference{
		RecipientID:        recipientID,
		EmailEnabled:       true,
		SMSEnabled:         false,
		PushEnabled:        true,
		ChatEnabled:        false,
		WebhookEnabled:     true,
		WorkflowUpdates:    true,
		InterviewReminders: true,
		SystemAlerts:       true,
		Timezone:           "UTC",
		Created:            now,
		Updated:            now,
	}
}

// ChannelEnabled reports whether the recipient accepts the given channel.
func (p *DeliveryPreference) ChannelEnabled(channel string) bool {
	switch channel {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	case ChannelPush:
		return p.PushEnabled
	case ChannelChat:
		return p.ChatEnabled
	case ChannelWebhook:
		return p.WebhookEnabled
	}
	return false
}

// CategoryEnabled reports whether the recipient accepts the given category.
// Unknown categories are allowed so new event kinds are not silently dropped.
func (p *DeliveryPreference) CategoryEnabled(category string) bool {
	switch category {
	case CategoryWorkflow:
		return p.WorkflowUpdates
	case CategoryInterview:
		return p.InterviewReminders
	case CategorySystem:
		return p.SystemAlerts
	}
	return true
}

// InQuietHours reports whether now falls inside the recipient's quiet-hours
// window and, if so, when the window ends. Windows may wrap past midnight.
func (p *DeliveryPreference) InQuietHours(now time.Time) (bool, time.Time) {
	if p.QuietHoursStart == "" || p.QuietHoursEnd == "" {
		return false, time.Time{}
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start, err1 := parseClock(p.QuietHoursStart)
	end, err2 := parseClock(p.QuietHoursEnd)
	if err1 != nil || err2 != nil {
		return false, time.Time{}
	}
	minutes := local.Hour()*60 + local.Minute()

	endToday := time.Date(local.Year(), local.Month(), local.Day(), end/60, end%60, 0, 0, loc)
	if start <= end {
		if minutes >= start && minutes < end {
			return true, endToday
		}
		return false, time.Time{}
	}
	// window wraps midnight, eg 22:00 -> 07:00
	if minutes >= start {
		return true, endToday.Add(24 * time.Hour)
	}
	if minutes < end {
		return true, endToday
	}
	return false, time.Time{}
}

func parseClock(v string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock value %q", v)
	}
	return h*60 + m, nil
}
