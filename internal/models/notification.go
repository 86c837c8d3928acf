package models

import "time"

// SendNotificationRequest creates one notification. Either TemplateName plus
// Context, or pre-rendered Subject/Body, must be supplied.
type SendNotificationRequest struct {
	Channel      string            `json:"channel"`
	Category     string            `json:"category,omitempty"`
	RecipientID  string            `json:"recipientId,omitempty"`
	Address      string            `json:"address"`
	TemplateName string            `json:"templateName,omitempty"`
	Context      map[string]string `json:"context,omitempty"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body,omitempty"`
	Priority     string            `json:"priority,omitempty"`
	ScheduledAt  *time.Time        `json:"scheduledAt,omitempty"`
	MaxRetries   *int              `json:"maxRetries,omitempty"`
}

// BulkRecipient is one target of a bulk send with its per-recipient context.
type BulkRecipient struct {
	RecipientID string            `json:"recipientId,omitempty"`
	Address     string            `json:"address"`
	Context     map[string]string `json:"context,omitempty"`
}

// BulkNotificationRequest fans one template out to many recipients.
type BulkNotificationRequest struct {
	TemplateName  string            `json:"templateName"`
	Recipients    []BulkRecipient   `json:"recipients"`
	SharedContext map[string]string `json:"sharedContext,omitempty"`
	Priority      string            `json:"priority,omitempty"`
	ScheduledAt   *time.Time        `json:"scheduledAt,omitempty"`
}

// BulkNotificationResponse reports per-recipient outcomes of a bulk send.
type BulkNotificationResponse struct {
	TotalRequested  int      `json:"totalRequested"`
	Queued          int      `json:"queued"`
	Failed          int      `json:"failed"`
	NotificationIDs []int64  `json:"notificationIds"`
	Errors          []string `json:"errors,omitempty"`
}

// NotificationApiResponse is the wire representation of a notification.
type NotificationApiResponse struct {
	ID            int64             `json:"id"`
	BusinessKey   string            `json:"businessKey"`
	TemplateName  string            `json:"templateName,omitempty"`
	Channel       string            `json:"channel"`
	Category      string            `json:"category,omitempty"`
	RecipientID   string            `json:"recipientId,omitempty"`
	Address       string            `json:"address"`
	Subject       string            `json:"subject,omitempty"`
	Body          string            `json:"body"`
	Context       map[string]string `json:"context,omitempty"`
	Priority      string            `json:"priority"`
	Status        string            `json:"status"`
	ScheduledAt   time.Time         `json:"scheduledAt"`
	SentAt        *time.Time        `json:"sentAt,omitempty"`
	FailedAt      *time.Time        `json:"failedAt,omitempty"`
	FailureReason string            `json:"failureReason,omitempty"`
	RetryCount    int               `json:"retryCount"`
	MaxRetries    int               `json:"maxRetries"`
	ExternalID    string            `json:"externalId,omitempty"`
	Created       time.Time         `json:"created"`
}

// NotificationLogApiEntry is one audit-trail row.
type NotificationLogApiEntry struct {
	ID      int64     `json:"id"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Created time.Time `json:"created"`
}

// NotificationStatsResponse summarises delivery outcomes over a period.
type NotificationStatsResponse struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"byStatus"`
	DeliveryRate float64        `json:"deliveryRate"`
	From         time.Time      `json:"from"`
	To           time.Time      `json:"to"`
}

// UpdatePreferencesRequest overwrites a recipient's delivery preferences.
type UpdatePreferencesRequest struct {
	EmailEnabled       *bool   `json:"emailEnabled,omitempty"`
	SMSEnabled         *bool   `json:"smsEnabled,omitempty"`
	PushEnabled        *bool   `json:"pushEnabled,omitempty"`
	ChatEnabled        *bool   `json:"chatEnabled,omitempty"`
	WebhookEnabled     *bool   `json:"webhookEnabled,omitempty"`
	WorkflowUpdates    *bool   `json:"workflowUpdates,omitempty"`
	InterviewReminders *bool   `json:"interviewReminders,omitempty"`
	SystemAlerts       *bool   `json:"systemAlerts,omitempty"`
	QuietHoursStart    *string `json:"quietHoursStart,omitempty"`
	QuietHoursEnd      *string `json:"quietHoursEnd,omitempty"`
	Timezone           *string `json:"timezone,omitempty"`
}
