package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/engine"
	"github.com/hireflow/hireflow/internal/models"
)

// Template names the event consumer renders with. Seeded at startup; a
// missing template means the event produces no notification, which is logged,
// never fatal.
const (
	TemplateWorkflowStateChanged = "workflow-state-changed"
	TemplateWorkflowCancelled    = "workflow-cancelled"
	TemplateInterviewScheduled   = "interview-scheduled"
	TemplateInterviewCancelled   = "interview-cancelled"
)

// metadata keys the consumer reads to resolve a recipient. Callers that want
// candidates notified pass these on create/transition requests.
const (
	metaCandidateEmail = "candidate_email"
	metaCandidateName  = "candidate_name"
	metaJobTitle       = "job_title"
)

// ConsumeEvents subscribes to engine events and turns them into
// notifications. Run it in its own goroutine; it exits when the channel
// closes or ctx is cancelled.
func (o *Orchestrator) ConsumeEvents(ctx context.Context, events <-chan engine.Event) {
	slog.Info("Starting event consumer")
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Event consumer stopping due to context cancel")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.handleEvent(ev)
		}
	}
}

func (o *Orchestrator) handleEvent(ev engine.Event) {
	email := ev.Context[metaCandidateEmail]
	if email == "" {
		// Nothing to address the candidate at; workflow metadata did not
		// carry an email for this instance.
		return
	}

	var templateName, category string
	switch ev.Kind {
	case engine.EventWorkflowTransitioned:
		templateName, category = TemplateWorkflowStateChanged, domain.CategoryWorkflow
	case engine.EventWorkflowCancelled:
		templateName, category = TemplateWorkflowCancelled, domain.CategoryWorkflow
	case engine.EventInterviewScheduled:
		templateName, category = TemplateInterviewScheduled, domain.CategoryInterview
	case engine.EventInterviewCancelled:
		templateName, category = TemplateInterviewCancelled, domain.CategoryInterview
	default:
		return
	}

	ctx := map[string]string{
		"candidate_name": orDefault(ev.Context[metaCandidateName], "Candidate"),
		"job_title":      orDefault(ev.Context[metaJobTitle], "the position"),
		"from_state":     ev.FromState,
		"to_state":       ev.ToState,
		"trigger":        ev.Trigger,
		"workflow_id":    fmt.Sprintf("%d", ev.WorkflowID),
	}
	for k, v := range ev.Context {
		if _, taken := ctx[k]; !taken {
			ctx[k] = v
		}
	}

	n, err := o.SendNotification(models.SendNotificationRequest{
		Channel:      domain.ChannelEmail,
		Category:     category,
		RecipientID:  ev.CandidateID,
		Address:      email,
		TemplateName: templateName,
		Context:      ctx,
	})
	if err != nil {
		slog.Error("Failed to create notification for event", "kind", ev.Kind,
			"workflow_id", ev.WorkflowID, "error", err)
		return
	}
	slog.Info("Event produced notification", "kind", ev.Kind, "workflow_id", ev.WorkflowID,
		"notification_id", n.ID)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// SeedTemplates installs the built-in notification templates if they are not
// present. Existing rows are left alone so operators can edit copy in place.
func (o *Orchestrator) SeedTemplates() error {
	now := o.clock.Now()
	builtin := []domain.NotificationTemplate{
		{
			Name:            TemplateWorkflowStateChanged,
			Channel:         domain.ChannelEmail,
			Category:        domain.CategoryWorkflow,
			SubjectTemplate: "Update on your application for {{.job_title}}",
			BodyTemplate:    "Hi {{.candidate_name}},\n\nYour application for {{.job_title}} has moved to the {{.to_state}} stage.\n\nThe Hiring Team",
			Active:          true,
			Created:         now,
			Updated:         now,
		},
		{
			Name:            TemplateWorkflowCancelled,
			Channel:         domain.ChannelEmail,
			Category:        domain.CategoryWorkflow,
			SubjectTemplate: "Your application for {{.job_title}}",
			BodyTemplate:    "Hi {{.candidate_name}},\n\nYour application for {{.job_title}} is no longer being processed.\n\nThe Hiring Team",
			Active:          true,
			Created:         now,
			Updated:         now,
		},
		{
			Name:            TemplateInterviewScheduled,
			Channel:         domain.ChannelEmail,
			Category:        domain.CategoryInterview,
			SubjectTemplate: "Interview scheduled for {{.job_title}}",
			BodyTemplate:    "Hi {{.candidate_name}},\n\nAn {{.interview_type}} interview has been scheduled from {{.start}} to {{.end}}.\n\nThe Hiring Team",
			Active:          true,
			Created:         now,
			Updated:         now,
		},
		{
			Name:            TemplateInterviewCancelled,
			Channel:         domain.ChannelEmail,
			Category:        domain.CategoryInterview,
			SubjectTemplate: "Interview cancelled for {{.job_title}}",
			BodyTemplate:    "Hi {{.candidate_name}},\n\nYour {{.interview_type}} interview has been cancelled. We will follow up with next steps.\n\nThe Hiring Team",
			Active:          true,
			Created:         now,
			Updated:         now,
		},
	}
	for i := range builtin {
		if _, err := o.templates.FindByName(builtin[i].Name); err == nil {
			continue
		}
		if _, err := o.templates.Save(&builtin[i]); err != nil {
			return fmt.Errorf("seed template %q: %w", builtin[i].Name, err)
		}
		slog.Info("Seeded notification template", "name", builtin[i].Name)
	}
	return nil
}
