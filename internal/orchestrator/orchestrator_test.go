package orchestrator

import (
	"errors"
	"testing"
	"time"

	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/engine"
	"github.com/hireflow/hireflow/internal/models"
	"github.com/hireflow/hireflow/internal/notify"
)

func greetingTemplate() *domain.NotificationTemplate {
	return &domain.NotificationTemplate{
		Name:            "greeting",
		Channel:         domain.ChannelEmail,
		Category:        domain.CategoryWorkflow,
		SubjectTemplate: "Hello {{.name}}",
		BodyTemplate:    "Hi {{.name}}, welcome to {{.stage}}.",
		Active:          true,
	}
}

func TestSendNotification_InlineBodyDefaults(t *testing.T) {
	f := newOrchestratorFixture()

	n, err := f.orch.SendNotification(models.SendNotificationRequest{
		Channel: domain.ChannelEmail,
		Address: "a@example.com",
		Subject: "hi",
		Body:    "inline body",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if n.Status != domain.NotificationPending {
		t.Errorf("expected pending, got %q", n.Status)
	}
	if n.Priority != domain.PriorityNormal {
		t.Errorf("expected default priority normal, got %q", n.Priority)
	}
	if n.Category != domain.CategorySystem {
		t.Errorf("expected default category system, got %q", n.Category)
	}
	if n.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", n.MaxRetries)
	}
	if n.BusinessKey == "" {
		t.Error("expected a generated business key")
	}
	if !n.ScheduledAt.Equal(f.clock.Now()) {
		t.Errorf("expected immediate scheduling, got %v", n.ScheduledAt)
	}
	if f.notifications.savedCount() != 1 {
		t.Fatalf("expected one save, got %d", f.notifications.savedCount())
	}
}

func TestSendNotification_RendersTemplate(t *testing.T) {
	f := newOrchestratorFixture(greetingTemplate())

	n, err := f.orch.SendNotification(models.SendNotificationRequest{
		Channel:      domain.ChannelEmail,
		Address:      "a@example.com",
		TemplateName: "greeting",
		Context:      map[string]string{"name": "Sam", "stage": "screening"},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if n.Subject != "Hello Sam" {
		t.Errorf("unexpected subject: %q", n.Subject)
	}
	if n.Body != "Hi Sam, welcome to screening." {
		t.Errorf("unexpected body: %q", n.Body)
	}
	if !n.TemplateName.Valid || n.TemplateName.String != "greeting" {
		t.Errorf("template name not recorded: %+v", n.TemplateName)
	}
}

func TestSendNotification_RenderFailureStoresNothing(t *testing.T) {
	f := newOrchestratorFixture(greetingTemplate())

	_, err := f.orch.SendNotification(models.SendNotificationRequest{
		Channel:      domain.ChannelEmail,
		Address:      "a@example.com",
		TemplateName: "greeting",
		Context:      map[string]string{"name": "Sam"}, // stage missing
	})
	var renderErr *notify.RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if f.notifications.savedCount() != 0 {
		t.Errorf("render failure must not persist anything, got %d saves", f.notifications.savedCount())
	}
}

func TestSendNotification_UnknownTemplate(t *testing.T) {
	f := newOrchestratorFixture()

	_, err := f.orch.SendNotification(models.SendNotificationRequest{
		Channel:      domain.ChannelEmail,
		Address:      "a@example.com",
		TemplateName: "nope",
	})
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendNotification_RequiresChannelAndAddress(t *testing.T) {
	f := newOrchestratorFixture()

	if _, err := f.orch.SendNotification(models.SendNotificationRequest{Body: "b"}); err == nil {
		t.Error("expected error without channel and address")
	}
	if _, err := f.orch.SendNotification(models.SendNotificationRequest{
		Channel: domain.ChannelEmail, Address: "a@example.com",
	}); err == nil {
		t.Error("expected error without body or template")
	}
}

func TestSendNotification_PastScheduleClampedToNow(t *testing.T) {
	f := newOrchestratorFixture()
	past := f.clock.Now().Add(-time.Hour)
	future := f.clock.Now().Add(time.Hour)

	n, err := f.orch.SendNotification(models.SendNotificationRequest{
		Channel: domain.ChannelEmail, Address: "a@example.com", Body: "b",
		ScheduledAt: &past,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !n.ScheduledAt.Equal(f.clock.Now()) {
		t.Errorf("past schedule not clamped: %v", n.ScheduledAt)
	}

	n, err = f.orch.SendNotification(models.SendNotificationRequest{
		Channel: domain.ChannelEmail, Address: "a@example.com", Body: "b",
		ScheduledAt: &future,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !n.ScheduledAt.Equal(future) {
		t.Errorf("future schedule not kept: %v", n.ScheduledAt)
	}
}

func TestSendBulk_PartialFailureIsolated(t *testing.T) {
	f := newOrchestratorFixture(greetingTemplate())

	resp, err := f.orch.SendBulk(models.BulkNotificationRequest{
		TemplateName:  "greeting",
		SharedContext: map[string]string{"stage": "screening"},
		Recipients: []models.BulkRecipient{
			{RecipientID: "r-1", Address: "one@example.com", Context: map[string]string{"name": "One"}},
			{RecipientID: "r-2", Address: "two@example.com"}, // name missing, render fails
			{RecipientID: "r-3", Address: "three@example.com", Context: map[string]string{"name": "Three"}},
		},
	})
	if err != nil {
		t.Fatalf("bulk send errored: %v", err)
	}
	if resp.TotalRequested != 3 || resp.Queued != 2 || resp.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", resp)
	}
	if len(resp.NotificationIDs) != 2 {
		t.Errorf("expected 2 notification ids, got %v", resp.NotificationIDs)
	}
	if len(resp.Errors) != 1 {
		t.Errorf("expected 1 recorded error, got %v", resp.Errors)
	}
	if f.notifications.savedCount() != 2 {
		t.Errorf("expected 2 saves, got %d", f.notifications.savedCount())
	}
}

func TestSendBulk_RecipientContextOverridesShared(t *testing.T) {
	f := newOrchestratorFixture(greetingTemplate())

	_, err := f.orch.SendBulk(models.BulkNotificationRequest{
		TemplateName:  "greeting",
		SharedContext: map[string]string{"name": "Everyone", "stage": "screening"},
		Recipients: []models.BulkRecipient{
			{Address: "one@example.com", Context: map[string]string{"name": "One"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.notifications.last().Subject; got != "Hello One" {
		t.Errorf("recipient context should win, got subject %q", got)
	}
}

func TestSendBulk_UnknownTemplate(t *testing.T) {
	f := newOrchestratorFixture()
	_, err := f.orch.SendBulk(models.BulkNotificationRequest{TemplateName: "nope"})
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetNotification_UnknownIsNotFound(t *testing.T) {
	f := newOrchestratorFixture()
	if _, err := f.orch.GetNotification(999); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotificationStats_DeliveryRate(t *testing.T) {
	f := newOrchestratorFixture()
	f.notifications.saved = []domain.NotificationRequest{
		{ID: 1, Status: domain.NotificationSent},
		{ID: 2, Status: domain.NotificationSent},
		{ID: 3, Status: domain.NotificationSent},
		{ID: 4, Status: domain.NotificationFailed},
		{ID: 5, Status: domain.NotificationPending},
	}

	stats, err := f.orch.NotificationStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 5 {
		t.Errorf("expected total 5, got %d", stats.Total)
	}
	if stats.DeliveryRate != 0.75 {
		t.Errorf("expected delivery rate 0.75, got %v", stats.DeliveryRate)
	}
}

func TestUpdatePreferences_AppliesOnlyProvidedFields(t *testing.T) {
	f := newOrchestratorFixture()
	off := false
	start, end := "22:00", "07:00"

	p, err := f.orch.UpdatePreferences("rec-1", models.UpdatePreferencesRequest{
		EmailEnabled:    &off,
		QuietHoursStart: &start,
		QuietHoursEnd:   &end,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.EmailEnabled {
		t.Error("email flag not applied")
	}
	if !p.PushEnabled || !p.WorkflowUpdates {
		t.Error("untouched defaults must survive a partial update")
	}
	if p.QuietHoursStart != "22:00" || p.QuietHoursEnd != "07:00" {
		t.Errorf("quiet hours not applied: %q-%q", p.QuietHoursStart, p.QuietHoursEnd)
	}

	// The update persisted.
	again, err := f.orch.GetPreferences("rec-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.EmailEnabled {
		t.Error("update did not persist")
	}
}

func TestUpdatePreferences_RejectsBadTimezone(t *testing.T) {
	f := newOrchestratorFixture()
	tz := "Mars/Olympus_Mons"
	_, err := f.orch.UpdatePreferences("rec-1", models.UpdatePreferencesRequest{Timezone: &tz})
	if err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
